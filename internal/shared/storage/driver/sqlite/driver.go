// Package sqlite SQLite 数据库驱动
//
// 提供 SQLite 连接管理、方言实现和自动 Schema 迁移。
// 适用于开发、测试和轻量级部署场景。
package sqlite

import (
	"database/sql"
	"fmt"

	"course-admin/internal/shared/storage/dbutil"

	_ "modernc.org/sqlite"
)

// Dialect SQLite 方言实现
type Dialect struct{}

var _ dbutil.Dialect = (*Dialect)(nil)

func (d *Dialect) DriverType() dbutil.DriverType {
	return dbutil.DriverSQLite
}

func (d *Dialect) Rebind(query string) string {
	return dbutil.StripPgCasts(dbutil.RebindToQuestion(query))
}

func (d *Dialect) AutoMigrate(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}

// Open 创建 SQLite 数据库连接
// dsn 示例: "file:course.db?cache=shared&mode=rwc" 或 ":memory:"
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	// SQLite 优化设置
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return nil, fmt.Errorf("failed to set pragma %s: %w", p, err)
		}
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping sqlite: %w", err)
	}

	return db, nil
}

// NewDialect 创建 SQLite 方言
func NewDialect() *Dialect {
	return &Dialect{}
}

// schema SQLite 完整建表语句（等价于 PostgreSQL 迁移文件）
//
// 嵌套结构（章节、已购课程、学习进度、文件引用）以 JSON 文本列存储。
// email/phone 的 UNIQUE 对 NULL 不生效，与文档存储的 sparse unique 语义一致。
const schema = `
-- users
CREATE TABLE IF NOT EXISTS users (
    id VARCHAR(64) PRIMARY KEY,
    name VARCHAR(200) NOT NULL,
    email VARCHAR(320) UNIQUE,
    phone VARCHAR(32) UNIQUE,
    password_hash VARCHAR(200) NOT NULL DEFAULT '',
    role VARCHAR(32) NOT NULL DEFAULT 'visitor',
    google_id VARCHAR(128),
    is_email_verified INTEGER NOT NULL DEFAULT 0,
    purchased_courses TEXT NOT NULL DEFAULT '[]',
    course_progress TEXT NOT NULL DEFAULT '[]',
    verify_token_hash VARCHAR(64),
    verify_token_expiry DATETIME,
    reset_token_hash VARCHAR(64),
    reset_token_expiry DATETIME,
    version INTEGER NOT NULL DEFAULT 0,
    created_at DATETIME DEFAULT (datetime('now')),
    updated_at DATETIME DEFAULT (datetime('now'))
);
CREATE INDEX IF NOT EXISTS idx_users_google_id ON users(google_id);
CREATE INDEX IF NOT EXISTS idx_users_reset_token ON users(reset_token_hash);
CREATE INDEX IF NOT EXISTS idx_users_verify_token ON users(verify_token_hash);

-- courses
CREATE TABLE IF NOT EXISTS courses (
    id VARCHAR(64) PRIMARY KEY,
    title VARCHAR(300) NOT NULL UNIQUE,
    description TEXT,
    instructor VARCHAR(200),
    price REAL NOT NULL DEFAULT 0,
    discounted_price REAL,
    discount_percent INTEGER NOT NULL DEFAULT 0,
    thumbnail TEXT NOT NULL DEFAULT '{}',
    chapters TEXT NOT NULL DEFAULT '[]',
    total_topics INTEGER NOT NULL DEFAULT 0,
    created_by VARCHAR(64),
    created_at DATETIME DEFAULT (datetime('now')),
    updated_at DATETIME DEFAULT (datetime('now'))
);

-- payments
CREATE TABLE IF NOT EXISTS payments (
    id VARCHAR(64) PRIMARY KEY,
    user_id VARCHAR(64) NOT NULL,
    course_id VARCHAR(64) NOT NULL,
    screenshot TEXT NOT NULL DEFAULT '{}',
    amount REAL NOT NULL DEFAULT 0,
    upi_id VARCHAR(128),
    status VARCHAR(32) NOT NULL DEFAULT 'pending',
    remarks TEXT,
    reviewed_by VARCHAR(64),
    reviewed_at DATETIME,
    created_at DATETIME DEFAULT (datetime('now'))
);
CREATE INDEX IF NOT EXISTS idx_payments_status ON payments(status);
CREATE INDEX IF NOT EXISTS idx_payments_user_id ON payments(user_id);

-- suggestions
CREATE TABLE IF NOT EXISTS suggestions (
    id VARCHAR(64) PRIMARY KEY,
    title VARCHAR(300) NOT NULL,
    description TEXT,
    category VARCHAR(100),
    target_audience VARCHAR(200),
    tech_stack VARCHAR(300),
    preferred_instructor VARCHAR(200),
    reason TEXT,
    user_id VARCHAR(64) NOT NULL,
    user_name VARCHAR(200),
    user_email VARCHAR(320),
    status VARCHAR(32) NOT NULL DEFAULT 'pending',
    admin_notes TEXT,
    reviewed_by VARCHAR(64),
    reviewed_at DATETIME,
    created_at DATETIME DEFAULT (datetime('now')),
    updated_at DATETIME DEFAULT (datetime('now'))
);
CREATE INDEX IF NOT EXISTS idx_suggestions_status ON suggestions(status);
CREATE INDEX IF NOT EXISTS idx_suggestions_user_id ON suggestions(user_id);
`
