// Package cache 缓存层 mock 实现
package cache

import (
	"context"

	"course-admin/internal/shared/model"
)

// NoOpCache 是一个不做任何操作的 CatalogCache 实现
// Redis 未启用时使用，所有读取均视为未命中
type NoOpCache struct{}

// NewNoOpCache 创建 NoOpCache 实例
func NewNoOpCache() *NoOpCache {
	return &NoOpCache{}
}

func (c *NoOpCache) GetCourseList(ctx context.Context) ([]*model.Course, error) {
	return nil, nil
}

func (c *NoOpCache) SetCourseList(ctx context.Context, courses []*model.Course) error {
	return nil
}

func (c *NoOpCache) GetCourse(ctx context.Context, id string) (*model.Course, error) {
	return nil, nil
}

func (c *NoOpCache) SetCourse(ctx context.Context, course *model.Course) error {
	return nil
}

func (c *NoOpCache) InvalidateCatalog(ctx context.Context) error {
	return nil
}

func (c *NoOpCache) Close() error {
	return nil
}

// 确保 NoOpCache 实现了 CatalogCache 接口
var _ CatalogCache = (*NoOpCache)(nil)
