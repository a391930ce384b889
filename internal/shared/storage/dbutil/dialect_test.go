package dbutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRebindToQuestion(t *testing.T) {
	assert.Equal(t, "SELECT id FROM users WHERE id = ? AND version = ?",
		RebindToQuestion("SELECT id FROM users WHERE id = $1 AND version = $2"))
	assert.Equal(t, "VALUES (?, ?, ?)", RebindToQuestion("VALUES ($1, $2, $3)"))
}

func TestStripPgCasts(t *testing.T) {
	assert.Equal(t, "SELECT id FROM users WHERE email = $1",
		StripPgCasts("SELECT id::varchar FROM users WHERE email = $1::text"))
	// 无类型转换时原样返回
	assert.Equal(t, "SELECT 1", StripPgCasts("SELECT 1"))
}
