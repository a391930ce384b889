// Package course 实现课程目录与访问/进度引擎
//
// 引擎回答三个问题：
//   - 当前用户能看到课程的什么内容（完整内容 vs 试看投影）
//   - 主题完成如何落盘（集合添加幂等，百分比重算，乐观锁防丢更新）
//   - 评论挂在哪个主题下
//
// 访问权 = 已购买（规范化 ID 比较）或职员角色（editor/admin）。
// 严格模式下无访问权的进度/评论写入被拒绝；宽松模式跳过该检查
// （兼容历史行为，由 policy.strict_progress_access 控制）。
package course

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"time"

	"course-admin/internal/shared/model"
	"course-admin/internal/shared/storage"
)

// 引擎层错误，处理器映射为对应的 HTTP 状态码
var (
	ErrCourseNotFound = errors.New("course not found")
	ErrTopicNotFound  = errors.New("topic not found")
	ErrUnknownUser    = errors.New("unknown user")
	ErrNoAccess       = errors.New("course access required")
)

// Engine 访问与进度引擎
type Engine struct {
	users   storage.UserStore
	courses storage.CourseStore
	strict  bool
}

// NewEngine 创建引擎；strict 控制进度/评论写入是否要求课程访问权
func NewEngine(users storage.UserStore, courses storage.CourseStore, strict bool) *Engine {
	return &Engine{users: users, courses: courses, strict: strict}
}

// View 课程详情响应
//
// 无访问权时 Course 为只含试看主题的投影，Progress 为空。
type View struct {
	Course    *model.Course         `json:"course"`
	HasAccess bool                  `json:"has_access"`
	Progress  *model.ProgressRecord `json:"progress,omitempty"`
}

// CourseView 按调用方身份裁剪课程详情
//
// userID 为空表示匿名访问者。已登录用户必须仍能解析为存量用户，
// 否则返回 ErrUnknownUser（令牌有效但账号已删除）。
// 有访问权但没有进度记录时在读路径上惰性创建并落盘；
// 落盘失败不阻塞响应，下次访问会重试。
func (e *Engine) CourseView(ctx context.Context, c *model.Course, userID string) (*View, error) {
	if userID == "" {
		return &View{Course: c.PreviewView(), HasAccess: false}, nil
	}

	user, err := e.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if user == nil {
		return nil, ErrUnknownUser
	}

	if !user.IsStaff() && !user.HasPurchased(c.ID) {
		return &View{Course: c.PreviewView(), HasAccess: false}, nil
	}

	progress := user.ProgressFor(c.ID)
	if progress == nil {
		updated, err := e.mutateUser(ctx, userID, func(u *model.User) error {
			u.EnsureProgress(c.ID, time.Now())
			return nil
		})
		if err != nil {
			// 惰性创建失败只记为缺进度，不影响课程返回
			log.Printf("[course.view] init progress course=%s user=%s: %v", c.ID, userID, err)
		} else {
			progress = updated.ProgressFor(c.ID)
		}
	}

	return &View{Course: c, HasAccess: true, Progress: progress}, nil
}

// MarkTopicComplete 标记主题完成并返回更新后的进度
//
// 集合添加幂等；LastWatchedTopic 无条件更新；百分比按课程当前
// TotalTopics 重算。写入经过版本号条件更新，冲突时整体重试。
func (e *Engine) MarkTopicComplete(ctx context.Context, courseID, topicID, userID string) (*model.ProgressRecord, error) {
	c, err := e.courses.GetCourse(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("load course: %w", err)
	}
	if c == nil {
		return nil, ErrCourseNotFound
	}
	if _, topic := c.FindTopic(topicID); topic == nil {
		return nil, ErrTopicNotFound
	}

	if _, err := e.requireUser(ctx, userID, c.ID); err != nil {
		return nil, err
	}

	updated, err := e.mutateUser(ctx, userID, func(u *model.User) error {
		now := time.Now()
		p, _ := u.EnsureProgress(c.ID, now)
		p.MarkComplete(topicID, c.TotalTopics, now)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated.ProgressFor(c.ID), nil
}

// AddComment 在主题下追加评论并整体保存课程
func (e *Engine) AddComment(ctx context.Context, courseID, topicID, userID, text string) (*model.Comment, error) {
	c, err := e.courses.GetCourse(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("load course: %w", err)
	}
	if c == nil {
		return nil, ErrCourseNotFound
	}
	_, topic := c.FindTopic(topicID)
	if topic == nil {
		return nil, ErrTopicNotFound
	}

	user, err := e.requireUser(ctx, userID, c.ID)
	if err != nil {
		return nil, err
	}

	comment := model.Comment{
		ID:        newID("cmt"),
		UserID:    user.ID,
		UserName:  user.Name,
		Text:      text,
		CreatedAt: time.Now(),
	}
	topic.Comments = append(topic.Comments, comment)
	c.UpdatedAt = time.Now()

	if err := e.courses.UpdateCourse(ctx, c); err != nil {
		return nil, fmt.Errorf("save comment: %w", err)
	}
	return &comment, nil
}

// requireUser 解析用户并按严格模式校验课程访问权
func (e *Engine) requireUser(ctx context.Context, userID, courseID string) (*model.User, error) {
	user, err := e.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if user == nil {
		return nil, ErrUnknownUser
	}
	if e.strict && !user.IsStaff() && !user.HasPurchased(courseID) {
		return nil, ErrNoAccess
	}
	return user, nil
}

const userMutateAttempts = 3

// mutateUser 读-改-写循环，版本冲突时重读重试
func (e *Engine) mutateUser(ctx context.Context, id string, mutate func(*model.User) error) (*model.User, error) {
	var lastErr error
	for attempt := 0; attempt < userMutateAttempts; attempt++ {
		user, err := e.users.GetUserByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if user == nil {
			return nil, ErrUnknownUser
		}
		if err := mutate(user); err != nil {
			return nil, err
		}
		user.UpdatedAt = time.Now()
		err = e.users.UpdateUser(ctx, user)
		if errors.Is(err, storage.ErrConflict) {
			lastErr = err
			continue
		}
		if err != nil {
			return nil, err
		}
		return user, nil
	}
	return nil, fmt.Errorf("update user %s: %w", id, lastErr)
}

func newID(prefix string) string {
	b := make([]byte, 6)
	rand.Read(b)
	return prefix + "-" + hex.EncodeToString(b)
}
