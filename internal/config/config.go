package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// configDir 由外部通过 SetConfigDir 指定，优先级最高
var configDir string

// envSearchDirs .env 文件搜索目录（仅 dev/test 使用，生产环境由 systemd 注入）
var envSearchDirs = []string{
	".",
	"..",
}

// SetConfigDir 设置配置文件目录（用于 --config 命令行参数）
func SetConfigDir(dir string) {
	configDir = dir
}

// Load 加载配置
// 1. 加载 .env.{env}（敏感信息 + APP_ENV）
// 2. 根据 APP_ENV 加载 configs/{env}.yaml
// 3. 环境变量覆盖敏感字段，构建最终配置
func Load() *Config {
	env := parseEnv(getEnv("APP_ENV", "dev"))
	loadEnvFiles(env)
	// .env 可能重新指定 APP_ENV
	env = parseEnv(getEnv("APP_ENV", string(env)))

	yamlCfg := loadYAMLConfig(env)

	// 敏感信息只从环境变量读取
	yamlCfg.Database.Password = firstEnv("DB_PASSWORD", "MONGO_ROOT_PASSWORD")
	yamlCfg.Redis.Password = os.Getenv("REDIS_PASSWORD")
	yamlCfg.MinIO.AccessKey = os.Getenv("MINIO_ROOT_USER")
	yamlCfg.MinIO.SecretKey = os.Getenv("MINIO_ROOT_PASSWORD")
	yamlCfg.SMTP.Password = os.Getenv("SMTP_PASSWORD")
	yamlCfg.Auth.JWTSecret = os.Getenv("JWT_SECRET")
	yamlCfg.Auth.AdminEmail = os.Getenv("ADMIN_EMAIL")
	yamlCfg.Auth.AdminPassword = os.Getenv("ADMIN_PASSWORD")
	yamlCfg.Auth.GoogleClientID = os.Getenv("GOOGLE_CLIENT_ID")

	driver := yamlCfg.Database.Driver
	if driver == "" {
		driver = "mongodb"
	}

	cfg := &Config{
		Env:            env,
		DatabaseDriver: driver,
		DatabaseURL:    buildDatabaseURL(driver, yamlCfg.Database),
		DatabaseDBName: yamlCfg.Database.Name,
		APIPort:        yamlCfg.Server.Port,
		Server:         yamlCfg.Server,
		Redis:          yamlCfg.Redis,
		MinIO:          yamlCfg.MinIO,
		SMTP:           yamlCfg.SMTP,
		Auth:           yamlCfg.Auth,
		Policy:         yamlCfg.Policy,
	}

	return cfg
}

// loadYAMLConfig 加载 YAML 配置文件
// 加载顺序：默认值 → {env}.yaml
func loadYAMLConfig(env Environment) *YAMLConfig {
	cfg := &YAMLConfig{
		Server: ServerConfig{
			Port:        "8080",
			BaseURL:     "http://localhost:8080",
			FrontendURL: "http://localhost:3000",
		},
		Database: DatabaseConfig{
			Driver: "mongodb",
			Host:   "localhost",
			Port:   27017,
			Name:   "course_admin",
		},
		Redis: RedisConfig{Host: "localhost", Port: 6379, DB: 0, CatalogTTL: "5m"},
		MinIO: MinIOConfig{Endpoint: "localhost:9000", Bucket: "course-admin"},
		SMTP:  SMTPConfig{Host: "localhost", Port: 587},
		Auth: AuthConfig{
			AccessTokenTTL:  "15m",
			RefreshTokenTTL: "168h",
			VerifyTokenTTL:  "24h",
			ResetTokenTTL:   "1h",
		},
		Policy: PolicyConfig{MaxScreenshotBytes: 5 << 20},
	}

	filename := fmt.Sprintf("%s.yaml", env)
	for _, base := range effectiveConfigPaths(env) {
		path := filepath.Join(base, filename)
		if data, err := os.ReadFile(path); err == nil {
			yaml.Unmarshal(data, cfg)
			break
		}
	}

	return cfg
}

// effectiveConfigPaths 返回配置文件搜索路径
//
// 优先级：
//  1. --config 命令行参数（SetConfigDir）
//  2. CONFIG_DIR 环境变量
//  3. 按 APP_ENV 选择默认路径
func effectiveConfigPaths(env Environment) []string {
	if configDir != "" {
		return []string{configDir}
	}
	if dir := os.Getenv("CONFIG_DIR"); dir != "" {
		return []string{dir}
	}
	if env == EnvProduction {
		return []string{"/etc/course-admin"}
	}
	return []string{"configs", "../configs", "../../configs", "../../../configs"}
}

// loadEnvFiles 加载 .env 文件
//
// 生产环境不搜索 .env 文件（密码由 systemd EnvironmentFile 或 shell 环境注入）。
// godotenv.Load 不覆盖已有环境变量，优先级低于 shell 环境变量。
func loadEnvFiles(env Environment) {
	if env == EnvProduction {
		return
	}
	envFileName := fmt.Sprintf(".env.%s", string(env))
	for _, dir := range envSearchDirs {
		if err := godotenv.Load(filepath.Join(dir, envFileName)); err == nil {
			break
		}
	}
}

// buildDatabaseURL 按驱动构建连接字符串
func buildDatabaseURL(driver string, db DatabaseConfig) string {
	switch driver {
	case "sqlite":
		if db.Path != "" {
			return db.Path
		}
		return "course_admin.db"
	case "postgres":
		sslmode := db.SSLMode
		if sslmode == "" {
			sslmode = "disable"
		}
		return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
			db.User, db.Password, db.Host, db.Port, db.Name, sslmode)
	default: // mongodb
		if db.URI != "" {
			return db.URI
		}
		if db.User != "" {
			return fmt.Sprintf("mongodb://%s:%s@%s:%d", db.User, db.Password, db.Host, db.Port)
		}
		return fmt.Sprintf("mongodb://%s:%d", db.Host, db.Port)
	}
}

// RedisAddr Redis 连接地址
func (r RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// CatalogCacheTTL 解析目录缓存 TTL，解析失败回退 5 分钟
func (r RedisConfig) CatalogCacheTTL() time.Duration {
	if d, err := time.ParseDuration(r.CatalogTTL); err == nil && d > 0 {
		return d
	}
	return 5 * time.Minute
}

// StrictProgress 未配置时默认开启严格访问控制
func (p PolicyConfig) StrictProgress() bool {
	if p.StrictProgressAccess == nil {
		return true
	}
	return *p.StrictProgressAccess
}

// ScreenshotLimit 截图大小上限，未配置时 5MiB
func (p PolicyConfig) ScreenshotLimit() int64 {
	if p.MaxScreenshotBytes <= 0 {
		return 5 << 20
	}
	return p.MaxScreenshotBytes
}

// AccessTTL 解析访问令牌有效期，解析失败回退 15 分钟
func (a AuthConfig) AccessTTL() time.Duration {
	if d, err := time.ParseDuration(a.AccessTokenTTL); err == nil && d > 0 {
		return d
	}
	return 15 * time.Minute
}

// RefreshTTL 解析刷新令牌有效期，解析失败回退 7 天
func (a AuthConfig) RefreshTTL() time.Duration {
	if d, err := time.ParseDuration(a.RefreshTokenTTL); err == nil && d > 0 {
		return d
	}
	return 168 * time.Hour
}

// VerifyTTL 解析邮箱验证令牌有效期，解析失败回退 24 小时
func (a AuthConfig) VerifyTTL() time.Duration {
	if d, err := time.ParseDuration(a.VerifyTokenTTL); err == nil && d > 0 {
		return d
	}
	return 24 * time.Hour
}

// ResetTTL 解析密码重置令牌有效期，解析失败回退 1 小时
func (a AuthConfig) ResetTTL() time.Duration {
	if d, err := time.ParseDuration(a.ResetTokenTTL); err == nil && d > 0 {
		return d
	}
	return time.Hour
}

// PublicURL 对象公开访问地址
func (m MinIOConfig) PublicURL(key string) string {
	base := m.PublicBaseURL
	if base == "" {
		scheme := "http"
		if m.UseSSL {
			scheme = "https"
		}
		base = fmt.Sprintf("%s://%s/%s", scheme, m.Endpoint, m.Bucket)
	}
	return strings.TrimRight(base, "/") + "/" + key
}

func parseEnv(env string) Environment {
	switch strings.ToLower(env) {
	case "test":
		return EnvTest
	case "prod", "production":
		return EnvProduction
	default:
		return EnvDevelopment
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

// IsTest 是否为测试环境
func (c *Config) IsTest() bool {
	return c.Env == EnvTest
}

// String 返回配置摘要（隐藏密码）
func (c *Config) String() string {
	return fmt.Sprintf("Config{Env: %s, Driver: %s, DB: %s}",
		c.Env, c.DatabaseDriver, maskPassword(c.DatabaseURL))
}

// maskPassword 隐藏连接串中的密码
func maskPassword(url string) string {
	re := regexp.MustCompile(`(://[^:]+:)([^@]+)(@)`)
	return re.ReplaceAllString(url, "${1}***${3}")
}
