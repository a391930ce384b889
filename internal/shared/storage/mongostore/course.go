package mongostore

import (
	"context"

	"course-admin/internal/shared/model"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// ============================================================================
// CourseStore
// ============================================================================

func (s *Store) CreateCourse(ctx context.Context, course *model.Course) error {
	return insertOne(ctx, s.col(ColCourses), course)
}

func (s *Store) GetCourse(ctx context.Context, id string) (*model.Course, error) {
	return findOne[model.Course](ctx, s.col(ColCourses), bson.D{{Key: "_id", Value: id}})
}

func (s *Store) GetCourseByTitle(ctx context.Context, title string) (*model.Course, error) {
	return findOne[model.Course](ctx, s.col(ColCourses), bson.D{{Key: "title", Value: title}})
}

func (s *Store) UpdateCourse(ctx context.Context, course *model.Course) error {
	return replaceByID(ctx, s.col(ColCourses), course.ID, course)
}

func (s *Store) DeleteCourse(ctx context.Context, id string) error {
	return deleteByID(ctx, s.col(ColCourses), id)
}

func (s *Store) ListCourses(ctx context.Context) ([]*model.Course, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	return findMany[model.Course](ctx, s.col(ColCourses), bson.D{}, opts)
}
