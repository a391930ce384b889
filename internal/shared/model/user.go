// Package model 定义核心数据模型
//
// user.go 包含用户相关的数据模型定义：
//   - User：用户（含已购课程、学习进度、验证/重置令牌）
//   - ProgressRecord：单课程学习进度（嵌入在 User 文档中）
//   - UserRole：用户角色枚举
//
// 不变量（历史数据曾违反，必须在模型层强制）：
//   - PurchasedCourses 不允许重复课程 ID
//   - CourseProgress 每个课程至多一条进度记录
package model

import (
	"math"
	"time"
)

// UserRole 用户角色
type UserRole string

const (
	UserRoleVisitor UserRole = "visitor"
	UserRoleEditor  UserRole = "editor"
	UserRoleAdmin   UserRole = "admin"
)

// Valid 角色是否合法
func (r UserRole) Valid() bool {
	switch r {
	case UserRoleVisitor, UserRoleEditor, UserRoleAdmin:
		return true
	}
	return false
}

// User 用户
//
// Email 和 Phone 至少填一个，各自全局唯一（存储层 sparse unique 索引保证）。
// Version 用于乐观并发控制：所有读-改-写路径（进度更新、购买授权）
// 必须通过版本号条件更新落盘，版本不匹配时返回 storage.ErrConflict。
type User struct {
	ID           string   `json:"id" bson:"_id" db:"id"`
	Name         string   `json:"name" bson:"name" db:"name"`
	Email        string   `json:"email,omitempty" bson:"email,omitempty" db:"email"`
	Phone        string   `json:"phone,omitempty" bson:"phone,omitempty" db:"phone"`
	PasswordHash string   `json:"-" bson:"password_hash" db:"password_hash"` // never expose in JSON
	Role         UserRole `json:"role" bson:"role" db:"role"`

	// GoogleID Google 身份登录的 subject（首次 Google 登录时创建用户）
	GoogleID string `json:"-" bson:"google_id,omitempty" db:"google_id"`

	// IsEmailVerified 邮箱是否已验证（支付前置条件）
	IsEmailVerified bool `json:"is_email_verified" bson:"is_email_verified" db:"is_email_verified"`

	// PurchasedCourses 已购课程 ID 集合（去重，按规范化 ID 比较）
	PurchasedCourses []string `json:"purchased_courses" bson:"purchased_courses" db:"purchased_courses"`

	// CourseProgress 学习进度，每课程至多一条
	CourseProgress []ProgressRecord `json:"course_progress" bson:"course_progress" db:"course_progress"`

	// 验证/重置令牌：只存 sha256 哈希，一次性使用，发送失败时清除
	VerifyTokenHash   string     `json:"-" bson:"verify_token_hash,omitempty" db:"verify_token_hash"`
	VerifyTokenExpiry *time.Time `json:"-" bson:"verify_token_expiry,omitempty" db:"verify_token_expiry"`
	ResetTokenHash    string     `json:"-" bson:"reset_token_hash,omitempty" db:"reset_token_hash"`
	ResetTokenExpiry  *time.Time `json:"-" bson:"reset_token_expiry,omitempty" db:"reset_token_expiry"`

	// Version 乐观锁版本号
	Version int64 `json:"-" bson:"version" db:"version"`

	CreatedAt time.Time `json:"created_at" bson:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at" db:"updated_at"`
}

// ProgressRecord 单课程学习进度
//
// 首次授予课程访问权时创建（支付审批通过），或授权用户首次拉取课程详情时
// 惰性创建。CompletedTopics 为去重集合。
type ProgressRecord struct {
	CourseID         string    `json:"course_id" bson:"course_id" db:"course_id"`
	CompletedTopics  []string  `json:"completed_topics" bson:"completed_topics" db:"completed_topics"`
	LastWatchedTopic string    `json:"last_watched_topic,omitempty" bson:"last_watched_topic,omitempty" db:"last_watched_topic"`
	ProgressPercent  int       `json:"progress_percent" bson:"progress_percent" db:"progress_percent"`
	UpdatedAt        time.Time `json:"updated_at" bson:"updated_at" db:"updated_at"`
}

// ============================================================================
// User 辅助方法
// ============================================================================

// IsStaff 是否为职员（editor/admin），职员绕过购买检查
func (u *User) IsStaff() bool {
	return u.Role == UserRoleEditor || u.Role == UserRoleAdmin
}

// HasPurchased 课程是否已购（按规范化 ID 字符串比较，而非引用比较）
func (u *User) HasPurchased(courseID string) bool {
	for _, id := range u.PurchasedCourses {
		if id == courseID {
			return true
		}
	}
	return false
}

// AddPurchasedCourse 将课程加入已购集合，已存在时不重复添加
// 返回是否实际发生了添加
func (u *User) AddPurchasedCourse(courseID string) bool {
	if u.HasPurchased(courseID) {
		return false
	}
	u.PurchasedCourses = append(u.PurchasedCourses, courseID)
	return true
}

// ProgressFor 返回指定课程的进度记录
//
// 历史数据可能存在同课程的重复记录：这里选第一条，读路径不修改多余记录
// （清理由维护操作 DedupProgress 完成）。
func (u *User) ProgressFor(courseID string) *ProgressRecord {
	for i := range u.CourseProgress {
		if u.CourseProgress[i].CourseID == courseID {
			return &u.CourseProgress[i]
		}
	}
	return nil
}

// EnsureProgress 确保指定课程存在进度记录，不存在时创建空记录
// 返回记录指针和是否新建
func (u *User) EnsureProgress(courseID string, now time.Time) (*ProgressRecord, bool) {
	if p := u.ProgressFor(courseID); p != nil {
		return p, false
	}
	u.CourseProgress = append(u.CourseProgress, ProgressRecord{
		CourseID:        courseID,
		CompletedTopics: []string{},
		UpdatedAt:       now,
	})
	return &u.CourseProgress[len(u.CourseProgress)-1], true
}

// DedupPurchases 去除已购课程中的重复 ID，返回移除数量
func (u *User) DedupPurchases() int {
	seen := make(map[string]bool, len(u.PurchasedCourses))
	out := u.PurchasedCourses[:0]
	removed := 0
	for _, id := range u.PurchasedCourses {
		if seen[id] {
			removed++
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	u.PurchasedCourses = out
	return removed
}

// DedupProgress 合并同课程的重复进度记录（保留首条），返回移除数量
func (u *User) DedupProgress() int {
	seen := make(map[string]bool, len(u.CourseProgress))
	out := u.CourseProgress[:0]
	removed := 0
	for _, p := range u.CourseProgress {
		if seen[p.CourseID] {
			removed++
			continue
		}
		seen[p.CourseID] = true
		out = append(out, p)
	}
	u.CourseProgress = out
	return removed
}

// ============================================================================
// ProgressRecord 辅助方法
// ============================================================================

// MarkComplete 将主题标记为已完成并重算进度百分比
//
// 集合添加是幂等的（重复完成不增长集合），但 LastWatchedTopic 无条件更新。
// totalTopics 为 0 的退化课程按分母 1 处理，避免除零。
func (p *ProgressRecord) MarkComplete(topicID string, totalTopics int, now time.Time) {
	if !p.HasCompleted(topicID) {
		p.CompletedTopics = append(p.CompletedTopics, topicID)
	}
	p.LastWatchedTopic = topicID
	p.ProgressPercent = ProgressPercent(len(p.CompletedTopics), totalTopics)
	p.UpdatedAt = now
}

// HasCompleted 主题是否已完成
func (p *ProgressRecord) HasCompleted(topicID string) bool {
	for _, id := range p.CompletedTopics {
		if id == topicID {
			return true
		}
	}
	return false
}

// ProgressPercent 计算进度百分比 round(100 * completed / total)，上限 100
//
// 课程削减主题后 completed 可能超过 total（已完成 ID 不回收），
// 百分比不允许超出 0-100 区间。
func ProgressPercent(completed, total int) int {
	if total <= 0 {
		total = 1
	}
	percent := int(math.Round(100 * float64(completed) / float64(total)))
	if percent > 100 {
		return 100
	}
	return percent
}
