// Package model 核心数据模型测试
package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// 已购课程去重
// ============================================================================

func TestUser_AddPurchasedCourse_Dedup(t *testing.T) {
	u := &User{}

	assert.True(t, u.AddPurchasedCourse("course-001"))
	assert.False(t, u.AddPurchasedCourse("course-001"), "重复添加不应生效")
	assert.True(t, u.AddPurchasedCourse("course-002"))

	assert.Equal(t, []string{"course-001", "course-002"}, u.PurchasedCourses)
	assert.True(t, u.HasPurchased("course-001"))
	assert.False(t, u.HasPurchased("course-999"))
}

func TestUser_DedupPurchases(t *testing.T) {
	// 模拟历史脏数据：同一课程出现三次
	u := &User{PurchasedCourses: []string{"c1", "c2", "c1", "c1", "c3"}}

	removed := u.DedupPurchases()
	assert.Equal(t, 2, removed)
	assert.Equal(t, []string{"c1", "c2", "c3"}, u.PurchasedCourses)

	// 幂等
	assert.Equal(t, 0, u.DedupPurchases())
}

// ============================================================================
// 进度记录
// ============================================================================

func TestUser_EnsureProgress(t *testing.T) {
	now := time.Now()
	u := &User{}

	p, created := u.EnsureProgress("c1", now)
	require.NotNil(t, p)
	assert.True(t, created)
	assert.Equal(t, "c1", p.CourseID)
	assert.Empty(t, p.CompletedTopics)
	assert.Equal(t, 0, p.ProgressPercent)

	// 已存在时返回同一条记录
	p2, created := u.EnsureProgress("c1", now)
	assert.False(t, created)
	assert.Same(t, &u.CourseProgress[0], p2)
	assert.Len(t, u.CourseProgress, 1)
}

func TestUser_ProgressFor_DuplicateRecords(t *testing.T) {
	// 历史数据含重复进度记录：选第一条，不修改多余记录
	u := &User{CourseProgress: []ProgressRecord{
		{CourseID: "c1", ProgressPercent: 40},
		{CourseID: "c1", ProgressPercent: 80},
	}}

	p := u.ProgressFor("c1")
	require.NotNil(t, p)
	assert.Equal(t, 40, p.ProgressPercent)
	assert.Len(t, u.CourseProgress, 2, "读路径不应删除重复记录")
}

func TestUser_DedupProgress(t *testing.T) {
	u := &User{CourseProgress: []ProgressRecord{
		{CourseID: "c1", ProgressPercent: 40},
		{CourseID: "c2", ProgressPercent: 10},
		{CourseID: "c1", ProgressPercent: 80},
	}}

	removed := u.DedupProgress()
	assert.Equal(t, 1, removed)
	require.Len(t, u.CourseProgress, 2)
	assert.Equal(t, 40, u.CourseProgress[0].ProgressPercent, "保留首条")
}

// ============================================================================
// 完成主题：幂等 + lastWatched 语义
// ============================================================================

func TestProgressRecord_MarkComplete_Idempotent(t *testing.T) {
	now := time.Now()
	p := &ProgressRecord{CourseID: "c1", CompletedTopics: []string{}}

	p.MarkComplete("t1", 4, now)
	assert.Equal(t, []string{"t1"}, p.CompletedTopics)
	assert.Equal(t, "t1", p.LastWatchedTopic)
	assert.Equal(t, 25, p.ProgressPercent)

	// 重复完成同一主题：集合不增长
	p.MarkComplete("t1", 4, now)
	assert.Len(t, p.CompletedTopics, 1)
	assert.Equal(t, 25, p.ProgressPercent)

	// lastWatched 无条件更新
	p.MarkComplete("t2", 4, now)
	p.MarkComplete("t1", 4, now)
	assert.Equal(t, "t1", p.LastWatchedTopic)
	assert.Len(t, p.CompletedTopics, 2)
	assert.Equal(t, 50, p.ProgressPercent)
}

func TestProgressPercent(t *testing.T) {
	assert.Equal(t, 0, ProgressPercent(0, 10))
	assert.Equal(t, 33, ProgressPercent(1, 3))
	assert.Equal(t, 67, ProgressPercent(2, 3))
	assert.Equal(t, 100, ProgressPercent(3, 3))

	// 退化课程：totalTopics == 0 按分母 1 处理
	assert.Equal(t, 0, ProgressPercent(0, 0))
	assert.Equal(t, 100, ProgressPercent(1, 0))

	// 课程削减主题后 completed 可能超过 total，百分比封顶 100
	assert.Equal(t, 100, ProgressPercent(4, 3))
	assert.Equal(t, 100, ProgressPercent(2, 0))
}

func TestProgressRecord_MarkComplete_ShrunkenCourseCapsAt100(t *testing.T) {
	now := time.Now()
	p := &ProgressRecord{CourseID: "c1", CompletedTopics: []string{"t1", "t2", "t3"}}

	// 课程从 3 个主题削减到 2 个，已完成集合保留历史 ID
	p.MarkComplete("t2", 2, now)
	assert.Len(t, p.CompletedTopics, 3)
	assert.Equal(t, 100, p.ProgressPercent)
}

// ============================================================================
// 角色
// ============================================================================

func TestUser_IsStaff(t *testing.T) {
	assert.False(t, (&User{Role: UserRoleVisitor}).IsStaff())
	assert.True(t, (&User{Role: UserRoleEditor}).IsStaff())
	assert.True(t, (&User{Role: UserRoleAdmin}).IsStaff())
}

func TestUserRole_Valid(t *testing.T) {
	assert.True(t, UserRoleVisitor.Valid())
	assert.True(t, UserRoleEditor.Valid())
	assert.True(t, UserRoleAdmin.Valid())
	assert.False(t, UserRole("superuser").Valid())
}
