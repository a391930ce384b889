// Package model 定义核心数据模型
//
// payment.go 包含支付记录的数据模型定义。
//
// 状态机：pending → approved 或 pending → rejected，均为终态。
// 终态后不允许再次转换（存储层以条件更新保证原子性，
// 冲突时返回 storage.ErrConflict）。
package model

import "time"

// PaymentStatus 支付审核状态
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusApproved PaymentStatus = "approved"
	PaymentStatusRejected PaymentStatus = "rejected"
)

// Payment 支付记录（每次购买尝试一条，允许重复提交）
type Payment struct {
	ID       string `json:"id" bson:"_id" db:"id"`
	UserID   string `json:"user_id" bson:"user_id" db:"user_id"`
	CourseID string `json:"course_id" bson:"course_id" db:"course_id"`

	// Screenshot UPI 转账截图（对象存储引用）
	Screenshot FileRef `json:"screenshot" bson:"screenshot" db:"screenshot"`

	// Amount 用户申报的转账金额（不校验与课程价格一致）
	Amount float64 `json:"amount" bson:"amount" db:"amount"`
	UpiID  string  `json:"upi_id,omitempty" bson:"upi_id,omitempty" db:"upi_id"`

	Status  PaymentStatus `json:"status" bson:"status" db:"status"`
	Remarks string        `json:"remarks,omitempty" bson:"remarks,omitempty" db:"remarks"`

	// ReviewedBy 审核管理员的用户 ID
	ReviewedBy string     `json:"reviewed_by,omitempty" bson:"reviewed_by,omitempty" db:"reviewed_by"`
	ReviewedAt *time.Time `json:"reviewed_at,omitempty" bson:"reviewed_at,omitempty" db:"reviewed_at"`

	CreatedAt time.Time `json:"created_at" bson:"created_at" db:"created_at"`
}

// IsTerminal 是否已处于终态
func (p *Payment) IsTerminal() bool {
	return p.Status == PaymentStatusApproved || p.Status == PaymentStatusRejected
}

// DefaultRejectRemarks 拒绝时未填备注的默认文案
const DefaultRejectRemarks = "Payment could not be verified. Please submit a valid payment screenshot."
