// Package storage 定义持久化存储层抽象接口
//
// 设计原则：依赖倒置 (DIP)
//   - 调用方只依赖接口，不知道具体实现
//   - 具体实现在子包中：mongostore/（MongoDB，默认）、repository/（SQL）
//   - 初始化时通过依赖注入传入实现
//
// 查询约定（与各实现保持一致）：
//   - GetXxx 在实体不存在时返回 (nil, nil)，调用方自行映射为 404
//   - 写操作在实体不存在时返回 ErrNotFound
//   - UpdateUser 按 Version 做条件更新，版本不匹配返回 ErrConflict
//   - TransitionPayment 仅在当前状态为 pending 时生效，否则返回 ErrConflict
package storage

import (
	"context"
	"time"

	"course-admin/internal/shared/model"
)

// UserStore 用户存储接口
type UserStore interface {
	// CreateUser 创建用户；邮箱/手机号唯一冲突时返回 ErrDuplicate
	CreateUser(ctx context.Context, user *model.User) error

	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUserByPhone(ctx context.Context, phone string) (*model.User, error)
	GetUserByGoogleID(ctx context.Context, googleID string) (*model.User, error)

	// GetUserByResetToken 按重置令牌哈希查找用户
	GetUserByResetToken(ctx context.Context, tokenHash string) (*model.User, error)
	// GetUserByVerifyToken 按验证令牌哈希查找用户
	GetUserByVerifyToken(ctx context.Context, tokenHash string) (*model.User, error)

	// UpdateUser 按 user.Version 做条件整体更新（乐观锁）
	// 成功后 user.Version 自增；版本不匹配（含用户已删除）返回 ErrConflict
	UpdateUser(ctx context.Context, user *model.User) error

	DeleteUser(ctx context.Context, id string) error
	ListUsers(ctx context.Context) ([]*model.User, error)
}

// CourseStore 课程目录存储接口
type CourseStore interface {
	// CreateCourse 创建课程；标题唯一冲突时返回 ErrDuplicate
	CreateCourse(ctx context.Context, course *model.Course) error

	GetCourse(ctx context.Context, id string) (*model.Course, error)
	GetCourseByTitle(ctx context.Context, title string) (*model.Course, error)

	// UpdateCourse 按 ID 整体替换
	UpdateCourse(ctx context.Context, course *model.Course) error

	DeleteCourse(ctx context.Context, id string) error
	ListCourses(ctx context.Context) ([]*model.Course, error)
}

// PaymentStore 支付记录存储接口
type PaymentStore interface {
	CreatePayment(ctx context.Context, payment *model.Payment) error
	GetPayment(ctx context.Context, id string) (*model.Payment, error)

	// ListPayments 按状态过滤（status 为空时返回全部），按创建时间倒序
	ListPayments(ctx context.Context, status model.PaymentStatus) ([]*model.Payment, error)
	ListPaymentsByUser(ctx context.Context, userID string) ([]*model.Payment, error)

	// TransitionPayment 原子状态转换：仅当当前状态为 pending 时设置
	// status/remarks/reviewedBy/reviewedAt。已处于终态返回 ErrConflict，
	// 记录不存在返回 ErrNotFound。
	TransitionPayment(ctx context.Context, id string, to model.PaymentStatus,
		reviewedBy, remarks string, reviewedAt time.Time) error
}

// SuggestionStore 课程建议存储接口
type SuggestionStore interface {
	CreateSuggestion(ctx context.Context, s *model.Suggestion) error
	GetSuggestion(ctx context.Context, id string) (*model.Suggestion, error)
	UpdateSuggestion(ctx context.Context, s *model.Suggestion) error
	DeleteSuggestion(ctx context.Context, id string) error
	ListSuggestions(ctx context.Context) ([]*model.Suggestion, error)
	ListSuggestionsByUser(ctx context.Context, userID string) ([]*model.Suggestion, error)
}

// PersistentStore 持久化存储组合接口
type PersistentStore interface {
	UserStore
	CourseStore
	PaymentStore
	SuggestionStore

	Close() error
}
