package repository

import (
	"context"
	"database/sql"
	"time"

	"course-admin/internal/shared/model"
	"course-admin/internal/shared/storage"
)

const courseColumns = `id, title, description, instructor, price, discounted_price,
	discount_percent, thumbnail, chapters, total_topics, created_by, created_at, updated_at`

// CreateCourse 创建课程；标题唯一冲突时返回 ErrDuplicate
func (r *Store) CreateCourse(ctx context.Context, course *model.Course) error {
	_, err := r.db.ExecContext(ctx,
		r.q(`INSERT INTO courses (`+courseColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`),
		course.ID, course.Title, course.Description, course.Instructor,
		course.Price, nullFloat(course.DiscountedPrice), course.DiscountPercent,
		marshalJSON(course.Thumbnail, "{}"), marshalJSON(course.Chapters, "[]"),
		course.TotalTopics, nullString(course.CreatedBy),
		course.CreatedAt, course.UpdatedAt,
	)
	return wrapInsertErr(err)
}

func (r *Store) GetCourse(ctx context.Context, id string) (*model.Course, error) {
	return r.getCourse(ctx, "id = $1", id)
}

func (r *Store) GetCourseByTitle(ctx context.Context, title string) (*model.Course, error) {
	return r.getCourse(ctx, "title = $1", title)
}

// UpdateCourse 按 ID 整体替换
func (r *Store) UpdateCourse(ctx context.Context, course *model.Course) error {
	res, err := r.db.ExecContext(ctx,
		r.q(`UPDATE courses SET title = $1, description = $2, instructor = $3,
		   price = $4, discounted_price = $5, discount_percent = $6,
		   thumbnail = $7, chapters = $8, total_topics = $9, updated_at = $10
		 WHERE id = $11`),
		course.Title, course.Description, course.Instructor,
		course.Price, nullFloat(course.DiscountedPrice), course.DiscountPercent,
		marshalJSON(course.Thumbnail, "{}"), marshalJSON(course.Chapters, "[]"),
		course.TotalTopics, time.Now(), course.ID,
	)
	if err != nil {
		return wrapInsertErr(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (r *Store) DeleteCourse(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, r.q(`DELETE FROM courses WHERE id = $1`), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (r *Store) ListCourses(ctx context.Context) ([]*model.Course, error) {
	rows, err := r.db.QueryContext(ctx,
		r.q(`SELECT `+courseColumns+` FROM courses ORDER BY created_at DESC`))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var courses []*model.Course
	for rows.Next() {
		c, err := scanCourse(rows)
		if err != nil {
			return nil, err
		}
		courses = append(courses, c)
	}
	return courses, rows.Err()
}

// ============================================================================
// 内部辅助
// ============================================================================

func (r *Store) getCourse(ctx context.Context, where string, arg interface{}) (*model.Course, error) {
	row := r.db.QueryRowContext(ctx,
		r.q(`SELECT `+courseColumns+` FROM courses WHERE `+where), arg)
	c, err := scanCourse(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

func scanCourse(row rowScanner) (*model.Course, error) {
	c := &model.Course{}
	var discounted sql.NullFloat64
	var createdBy sql.NullString
	var thumbnail, chapters string

	err := row.Scan(&c.ID, &c.Title, &c.Description, &c.Instructor,
		&c.Price, &discounted, &c.DiscountPercent,
		&thumbnail, &chapters, &c.TotalTopics, &createdBy,
		&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if discounted.Valid {
		f := discounted.Float64
		c.DiscountedPrice = &f
	}
	c.CreatedBy = createdBy.String

	if err := unmarshalJSON(thumbnail, &c.Thumbnail); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(chapters, &c.Chapters); err != nil {
		return nil, err
	}
	if c.Chapters == nil {
		c.Chapters = []model.Chapter{}
	}
	return c, nil
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}
