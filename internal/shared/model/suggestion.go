// Package model 定义核心数据模型
//
// suggestion.go 包含课程建议的数据模型定义。简单 CRUD 记录，
// 无派生字段，也不产生跨实体副作用。
package model

import "time"

// SuggestionStatus 建议审核状态
type SuggestionStatus string

const (
	SuggestionStatusPending  SuggestionStatus = "pending"
	SuggestionStatusReviewed SuggestionStatus = "reviewed"
	SuggestionStatusApproved SuggestionStatus = "approved"
	SuggestionStatusRejected SuggestionStatus = "rejected"
)

// Valid 状态是否合法
func (s SuggestionStatus) Valid() bool {
	switch s {
	case SuggestionStatusPending, SuggestionStatusReviewed,
		SuggestionStatusApproved, SuggestionStatusRejected:
		return true
	}
	return false
}

// Suggestion 用户提交的课程建议
type Suggestion struct {
	ID             string `json:"id" bson:"_id" db:"id"`
	Title          string `json:"title" bson:"title" db:"title"`
	Description    string `json:"description" bson:"description" db:"description"`
	Category       string `json:"category,omitempty" bson:"category,omitempty" db:"category"`
	TargetAudience string `json:"target_audience,omitempty" bson:"target_audience,omitempty" db:"target_audience"`

	TechStack           string `json:"tech_stack,omitempty" bson:"tech_stack,omitempty" db:"tech_stack"`
	PreferredInstructor string `json:"preferred_instructor,omitempty" bson:"preferred_instructor,omitempty" db:"preferred_instructor"`
	Reason              string `json:"reason,omitempty" bson:"reason,omitempty" db:"reason"`

	// 提交者引用 + 冗余展示字段
	UserID    string `json:"user_id" bson:"user_id" db:"user_id"`
	UserName  string `json:"user_name,omitempty" bson:"user_name,omitempty" db:"user_name"`
	UserEmail string `json:"user_email,omitempty" bson:"user_email,omitempty" db:"user_email"`

	Status     SuggestionStatus `json:"status" bson:"status" db:"status"`
	AdminNotes string           `json:"admin_notes,omitempty" bson:"admin_notes,omitempty" db:"admin_notes"`
	ReviewedBy string           `json:"reviewed_by,omitempty" bson:"reviewed_by,omitempty" db:"reviewed_by"`
	ReviewedAt *time.Time       `json:"reviewed_at,omitempty" bson:"reviewed_at,omitempty" db:"reviewed_at"`

	CreatedAt time.Time `json:"created_at" bson:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at" db:"updated_at"`
}
