// Package repository 数据库无关的业务逻辑存储层
//
// 所有 SQL 以 PostgreSQL 风格编写（$N 占位符），执行前经过
// dbutil.Dialect.Rebind 转换为目标数据库的语法。
// 嵌套结构（章节、已购课程、学习进度、文件引用）以 JSON 文本列存储。
package repository

import (
	"database/sql"
	"encoding/json"
	"strings"

	"course-admin/internal/shared/storage"
	"course-admin/internal/shared/storage/dbutil"
)

// Store 通用存储实现
// 实现了 storage.PersistentStore 接口
type Store struct {
	db      *sql.DB
	dialect dbutil.Dialect
}

var _ storage.PersistentStore = (*Store)(nil)

// NewStore 创建通用存储
func NewStore(db *sql.DB, dialect dbutil.Dialect) *Store {
	return &Store{db: db, dialect: dialect}
}

// Close 关闭数据库连接
func (r *Store) Close() error {
	return r.db.Close()
}

// DB 返回底层数据库连接（仅用于测试）
func (r *Store) DB() *sql.DB {
	return r.db
}

// Dialect 返回当前方言
func (r *Store) Dialect() dbutil.Dialect {
	return r.dialect
}

// q 将 PostgreSQL 风格查询转换为当前方言的语法
// 所有进入 database/sql 的查询都必须经过该方法
func (r *Store) q(query string) string {
	return r.dialect.Rebind(query)
}

// wrapInsertErr 将唯一键冲突转换为领域错误
func wrapInsertErr(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if strings.Contains(msg, "UNIQUE constraint") || strings.Contains(msg, "duplicate key") {
		return storage.ErrDuplicate
	}
	return err
}

// marshalJSON 序列化 JSON 列，失败时落空值
func marshalJSON(v interface{}, empty string) string {
	b, err := json.Marshal(v)
	if err != nil {
		return empty
	}
	return string(b)
}

// unmarshalJSON 反序列化 JSON 列，空串按空值处理
func unmarshalJSON(data string, v interface{}) error {
	if data == "" {
		return nil
	}
	return json.Unmarshal([]byte(data), v)
}
