package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"log"
)

// GenerateToken 生成 URL 安全的随机令牌（邮箱验证 / 密码重置）
//
// 原始令牌只出现在发给用户的邮件里，数据库中只存哈希。
func GenerateToken(length int) string {
	byteLength := (length * 6) / 8
	b := make([]byte, byteLength)
	if _, err := rand.Read(b); err != nil {
		log.Printf("[auth] token generation error: %v", err)
		return ""
	}
	encoding := base64.URLEncoding.WithPadding(base64.NoPadding)
	return encoding.EncodeToString(b)[:length]
}

// HashToken 对令牌做 SHA-256，返回十六进制串
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
