package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"course-admin/internal/shared/cache"
	"course-admin/internal/shared/model"
)

// 目录缓存键
const (
	keyCourseList   = "catalog:courses"
	keyCoursePrefix = "catalog:course:"
)

var _ cache.CatalogCache = (*Store)(nil)

func (s *Store) GetCourseList(ctx context.Context) ([]*model.Course, error) {
	data, err := s.client.Get(ctx, keyCourseList).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("cache get %s: %w", keyCourseList, err)
	}
	var courses []*model.Course
	if err := json.Unmarshal(data, &courses); err != nil {
		// 缓存内容损坏时按未命中处理，下次写入覆盖
		return nil, nil
	}
	return courses, nil
}

func (s *Store) SetCourseList(ctx context.Context, courses []*model.Course) error {
	data, err := json.Marshal(courses)
	if err != nil {
		return fmt.Errorf("cache marshal course list: %w", err)
	}
	return s.client.Set(ctx, keyCourseList, data, s.ttl).Err()
}

func (s *Store) GetCourse(ctx context.Context, id string) (*model.Course, error) {
	data, err := s.client.Get(ctx, keyCoursePrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("cache get course %s: %w", id, err)
	}
	var course model.Course
	if err := json.Unmarshal(data, &course); err != nil {
		return nil, nil
	}
	return &course, nil
}

func (s *Store) SetCourse(ctx context.Context, course *model.Course) error {
	data, err := json.Marshal(course)
	if err != nil {
		return fmt.Errorf("cache marshal course %s: %w", course.ID, err)
	}
	return s.client.Set(ctx, keyCoursePrefix+course.ID, data, s.ttl).Err()
}

// InvalidateCatalog 删除列表键和所有单课键
func (s *Store) InvalidateCatalog(ctx context.Context) error {
	if err := s.client.Del(ctx, keyCourseList).Err(); err != nil {
		return fmt.Errorf("cache invalidate list: %w", err)
	}
	iter := s.client.Scan(ctx, 0, keyCoursePrefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("cache scan courses: %w", err)
	}
	if len(keys) > 0 {
		if err := s.client.Del(ctx, keys...).Err(); err != nil {
			return fmt.Errorf("cache invalidate courses: %w", err)
		}
	}
	return nil
}
