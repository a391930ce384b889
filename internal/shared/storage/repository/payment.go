package repository

import (
	"context"
	"database/sql"
	"time"

	"course-admin/internal/shared/model"
	"course-admin/internal/shared/storage"
)

const paymentColumns = `id, user_id, course_id, screenshot, amount, upi_id,
	status, remarks, reviewed_by, reviewed_at, created_at`

func (r *Store) CreatePayment(ctx context.Context, payment *model.Payment) error {
	_, err := r.db.ExecContext(ctx,
		r.q(`INSERT INTO payments (`+paymentColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`),
		payment.ID, payment.UserID, payment.CourseID,
		marshalJSON(payment.Screenshot, "{}"), payment.Amount, payment.UpiID,
		payment.Status, payment.Remarks,
		nullString(payment.ReviewedBy), nullTime(payment.ReviewedAt),
		payment.CreatedAt,
	)
	return wrapInsertErr(err)
}

func (r *Store) GetPayment(ctx context.Context, id string) (*model.Payment, error) {
	row := r.db.QueryRowContext(ctx,
		r.q(`SELECT `+paymentColumns+` FROM payments WHERE id = $1`), id)
	p, err := scanPayment(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// ListPayments 按状态过滤（status 为空时返回全部），按创建时间倒序
func (r *Store) ListPayments(ctx context.Context, status model.PaymentStatus) ([]*model.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments`
	args := []interface{}{}
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC`
	return r.listPayments(ctx, query, args...)
}

func (r *Store) ListPaymentsByUser(ctx context.Context, userID string) ([]*model.Payment, error) {
	return r.listPayments(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE user_id = $1 ORDER BY created_at DESC`,
		userID)
}

// TransitionPayment 原子状态转换：仅当当前状态为 pending 时生效
//
// 条件更新是支付状态机的并发守卫：两个并发的审批请求只有一个能匹配到
// pending 行，另一个收到 ErrConflict。
func (r *Store) TransitionPayment(ctx context.Context, id string, to model.PaymentStatus,
	reviewedBy, remarks string, reviewedAt time.Time) error {

	res, err := r.db.ExecContext(ctx,
		r.q(`UPDATE payments SET status = $1, remarks = $2, reviewed_by = $3, reviewed_at = $4
		 WHERE id = $5 AND status = $6`),
		to, remarks, reviewedBy, reviewedAt, id, model.PaymentStatusPending,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// 区分不存在与已终态
		existing, err := r.GetPayment(ctx, id)
		if err != nil {
			return err
		}
		if existing == nil {
			return storage.ErrNotFound
		}
		return storage.ErrConflict
	}
	return nil
}

// ============================================================================
// 内部辅助
// ============================================================================

func (r *Store) listPayments(ctx context.Context, query string, args ...interface{}) ([]*model.Payment, error) {
	rows, err := r.db.QueryContext(ctx, r.q(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []*model.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

func scanPayment(row rowScanner) (*model.Payment, error) {
	p := &model.Payment{}
	var screenshot string
	var reviewedBy sql.NullString
	var reviewedAt sql.NullTime

	err := row.Scan(&p.ID, &p.UserID, &p.CourseID, &screenshot, &p.Amount, &p.UpiID,
		&p.Status, &p.Remarks, &reviewedBy, &reviewedAt, &p.CreatedAt)
	if err != nil {
		return nil, err
	}

	p.ReviewedBy = reviewedBy.String
	if reviewedAt.Valid {
		t := reviewedAt.Time
		p.ReviewedAt = &t
	}
	if err := unmarshalJSON(screenshot, &p.Screenshot); err != nil {
		return nil, err
	}
	return p, nil
}
