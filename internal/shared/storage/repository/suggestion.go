package repository

import (
	"context"
	"database/sql"
	"time"

	"course-admin/internal/shared/model"
	"course-admin/internal/shared/storage"
)

const suggestionColumns = `id, title, description, category, target_audience,
	tech_stack, preferred_instructor, reason, user_id, user_name, user_email,
	status, admin_notes, reviewed_by, reviewed_at, created_at, updated_at`

func (r *Store) CreateSuggestion(ctx context.Context, s *model.Suggestion) error {
	_, err := r.db.ExecContext(ctx,
		r.q(`INSERT INTO suggestions (`+suggestionColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`),
		s.ID, s.Title, s.Description, s.Category, s.TargetAudience,
		s.TechStack, s.PreferredInstructor, s.Reason,
		s.UserID, s.UserName, s.UserEmail,
		s.Status, s.AdminNotes, nullString(s.ReviewedBy), nullTime(s.ReviewedAt),
		s.CreatedAt, s.UpdatedAt,
	)
	return wrapInsertErr(err)
}

func (r *Store) GetSuggestion(ctx context.Context, id string) (*model.Suggestion, error) {
	row := r.db.QueryRowContext(ctx,
		r.q(`SELECT `+suggestionColumns+` FROM suggestions WHERE id = $1`), id)
	s, err := scanSuggestion(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (r *Store) UpdateSuggestion(ctx context.Context, s *model.Suggestion) error {
	res, err := r.db.ExecContext(ctx,
		r.q(`UPDATE suggestions SET title = $1, description = $2, category = $3,
		   target_audience = $4, tech_stack = $5, preferred_instructor = $6,
		   reason = $7, status = $8, admin_notes = $9, reviewed_by = $10,
		   reviewed_at = $11, updated_at = $12
		 WHERE id = $13`),
		s.Title, s.Description, s.Category, s.TargetAudience,
		s.TechStack, s.PreferredInstructor, s.Reason,
		s.Status, s.AdminNotes, nullString(s.ReviewedBy), nullTime(s.ReviewedAt),
		time.Now(), s.ID,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (r *Store) DeleteSuggestion(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, r.q(`DELETE FROM suggestions WHERE id = $1`), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (r *Store) ListSuggestions(ctx context.Context) ([]*model.Suggestion, error) {
	return r.listSuggestions(ctx,
		`SELECT `+suggestionColumns+` FROM suggestions ORDER BY created_at DESC`)
}

func (r *Store) ListSuggestionsByUser(ctx context.Context, userID string) ([]*model.Suggestion, error) {
	return r.listSuggestions(ctx,
		`SELECT `+suggestionColumns+` FROM suggestions WHERE user_id = $1 ORDER BY created_at DESC`,
		userID)
}

// ============================================================================
// 内部辅助
// ============================================================================

func (r *Store) listSuggestions(ctx context.Context, query string, args ...interface{}) ([]*model.Suggestion, error) {
	rows, err := r.db.QueryContext(ctx, r.q(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var suggestions []*model.Suggestion
	for rows.Next() {
		s, err := scanSuggestion(rows)
		if err != nil {
			return nil, err
		}
		suggestions = append(suggestions, s)
	}
	return suggestions, rows.Err()
}

func scanSuggestion(row rowScanner) (*model.Suggestion, error) {
	s := &model.Suggestion{}
	var reviewedBy sql.NullString
	var reviewedAt sql.NullTime

	err := row.Scan(&s.ID, &s.Title, &s.Description, &s.Category, &s.TargetAudience,
		&s.TechStack, &s.PreferredInstructor, &s.Reason,
		&s.UserID, &s.UserName, &s.UserEmail,
		&s.Status, &s.AdminNotes, &reviewedBy, &reviewedAt,
		&s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}

	s.ReviewedBy = reviewedBy.String
	if reviewedAt.Valid {
		t := reviewedAt.Time
		s.ReviewedAt = &t
	}
	return s, nil
}
