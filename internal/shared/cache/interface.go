// Package cache 缓存层抽象接口
//
// 课程目录读多写少，列表和单课详情缓存在 Redis 中，
// 任何课程写操作后整体失效。缓存不可用时调用方直查数据库。
package cache

import (
	"context"

	"course-admin/internal/shared/model"
)

// CatalogCache 课程目录缓存接口
type CatalogCache interface {
	// GetCourseList 读取课程列表缓存，未命中返回 (nil, nil)
	GetCourseList(ctx context.Context) ([]*model.Course, error)
	SetCourseList(ctx context.Context, courses []*model.Course) error

	// GetCourse 读取单课缓存，未命中返回 (nil, nil)
	GetCourse(ctx context.Context, id string) (*model.Course, error)
	SetCourse(ctx context.Context, course *model.Course) error

	// InvalidateCatalog 清空列表与所有单课缓存
	InvalidateCatalog(ctx context.Context) error

	Close() error
}
