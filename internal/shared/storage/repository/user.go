package repository

import (
	"context"
	"database/sql"
	"time"

	"course-admin/internal/shared/model"
	"course-admin/internal/shared/storage"
)

const userColumns = `id, name, email, phone, password_hash, role, google_id,
	is_email_verified, purchased_courses, course_progress,
	verify_token_hash, verify_token_expiry, reset_token_hash, reset_token_expiry,
	version, created_at, updated_at`

// CreateUser 创建用户；邮箱/手机号唯一冲突时返回 ErrDuplicate
func (r *Store) CreateUser(ctx context.Context, user *model.User) error {
	_, err := r.db.ExecContext(ctx,
		r.q(`INSERT INTO users (`+userColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`),
		user.ID, user.Name, nullString(user.Email), nullString(user.Phone),
		user.PasswordHash, user.Role, nullString(user.GoogleID),
		user.IsEmailVerified,
		marshalJSON(user.PurchasedCourses, "[]"), marshalJSON(user.CourseProgress, "[]"),
		nullString(user.VerifyTokenHash), nullTime(user.VerifyTokenExpiry),
		nullString(user.ResetTokenHash), nullTime(user.ResetTokenExpiry),
		user.Version, user.CreatedAt, user.UpdatedAt,
	)
	return wrapInsertErr(err)
}

func (r *Store) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	return r.getUser(ctx, "id = $1", id)
}

func (r *Store) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.getUser(ctx, "email = $1", email)
}

func (r *Store) GetUserByPhone(ctx context.Context, phone string) (*model.User, error) {
	return r.getUser(ctx, "phone = $1", phone)
}

func (r *Store) GetUserByGoogleID(ctx context.Context, googleID string) (*model.User, error) {
	return r.getUser(ctx, "google_id = $1", googleID)
}

func (r *Store) GetUserByResetToken(ctx context.Context, tokenHash string) (*model.User, error) {
	return r.getUser(ctx, "reset_token_hash = $1", tokenHash)
}

func (r *Store) GetUserByVerifyToken(ctx context.Context, tokenHash string) (*model.User, error) {
	return r.getUser(ctx, "verify_token_hash = $1", tokenHash)
}

// UpdateUser 乐观锁整体更新：WHERE id AND version 匹配才生效
// 成功后 user.Version 自增；版本不匹配（含用户已删除）返回 ErrConflict
func (r *Store) UpdateUser(ctx context.Context, user *model.User) error {
	res, err := r.db.ExecContext(ctx,
		r.q(`UPDATE users SET name = $1, email = $2, phone = $3, password_hash = $4,
		   role = $5, google_id = $6, is_email_verified = $7,
		   purchased_courses = $8, course_progress = $9,
		   verify_token_hash = $10, verify_token_expiry = $11,
		   reset_token_hash = $12, reset_token_expiry = $13,
		   version = $14, updated_at = $15
		 WHERE id = $16 AND version = $17`),
		user.Name, nullString(user.Email), nullString(user.Phone), user.PasswordHash,
		user.Role, nullString(user.GoogleID), user.IsEmailVerified,
		marshalJSON(user.PurchasedCourses, "[]"), marshalJSON(user.CourseProgress, "[]"),
		nullString(user.VerifyTokenHash), nullTime(user.VerifyTokenExpiry),
		nullString(user.ResetTokenHash), nullTime(user.ResetTokenExpiry),
		user.Version+1, time.Now(), user.ID, user.Version,
	)
	if err != nil {
		return wrapInsertErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storage.ErrConflict
	}
	user.Version++
	return nil
}

func (r *Store) DeleteUser(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, r.q(`DELETE FROM users WHERE id = $1`), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (r *Store) ListUsers(ctx context.Context) ([]*model.User, error) {
	rows, err := r.db.QueryContext(ctx,
		r.q(`SELECT `+userColumns+` FROM users ORDER BY created_at DESC`))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// ============================================================================
// 内部辅助
// ============================================================================

func (r *Store) getUser(ctx context.Context, where string, arg interface{}) (*model.User, error) {
	row := r.db.QueryRowContext(ctx,
		r.q(`SELECT `+userColumns+` FROM users WHERE `+where), arg)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row rowScanner) (*model.User, error) {
	u := &model.User{}
	var email, phone, googleID, verifyHash, resetHash sql.NullString
	var verifyExpiry, resetExpiry sql.NullTime
	var purchased, progress string

	err := row.Scan(&u.ID, &u.Name, &email, &phone, &u.PasswordHash, &u.Role, &googleID,
		&u.IsEmailVerified, &purchased, &progress,
		&verifyHash, &verifyExpiry, &resetHash, &resetExpiry,
		&u.Version, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}

	u.Email = email.String
	u.Phone = phone.String
	u.GoogleID = googleID.String
	u.VerifyTokenHash = verifyHash.String
	u.ResetTokenHash = resetHash.String
	if verifyExpiry.Valid {
		t := verifyExpiry.Time
		u.VerifyTokenExpiry = &t
	}
	if resetExpiry.Valid {
		t := resetExpiry.Time
		u.ResetTokenExpiry = &t
	}

	if err := unmarshalJSON(purchased, &u.PurchasedCourses); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(progress, &u.CourseProgress); err != nil {
		return nil, err
	}
	return u, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
