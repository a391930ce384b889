// Package config 统一配置管理
//
// 配置加载优先级（高→低）：
//  1. 环境变量（通过 .env 文件或 shell/systemd 注入）
//  2. YAML 配置文件（{env}.yaml，如 dev.yaml、test.yaml、prod.yaml）
//  3. 代码硬编码默认值
//
// 凭据单一数据源：
//
//	密码/密钥只存在 .env 文件中（YAML 中不存储任何密码）。
//	.env 文件同时被 Docker Compose（--env-file）和 Go 应用（godotenv）
//	共用，确保单一数据源。
//
// 环境：
//   - 开发: APP_ENV=dev → configs/dev.yaml + .env.dev
//   - 测试: APP_ENV=test → configs/test.yaml + .env.test
//   - 生产: APP_ENV=prod → /etc/course-admin/prod.yaml + prod.env
package config

// Environment 环境类型
type Environment string

const (
	EnvProduction  Environment = "prod"
	EnvTest        Environment = "test" // 测试环境（集成测试 + E2E 共用）
	EnvDevelopment Environment = "dev"
)

// YAMLConfig YAML 配置文件结构
type YAMLConfig struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	MinIO    MinIOConfig    `yaml:"minio"`
	SMTP     SMTPConfig     `yaml:"smtp"`
	Auth     AuthConfig     `yaml:"auth"`
	Policy   PolicyConfig   `yaml:"policy"`
}

// ServerConfig HTTP 服务配置
type ServerConfig struct {
	Port string `yaml:"port"` // 监听端口
	// BaseURL 对外可达的服务地址，用于拼接邮件中的验证/重置链接
	BaseURL string `yaml:"base_url"`
	// FrontendURL 前端站点地址，用于 CORS 白名单和邮件跳转链接
	FrontendURL string `yaml:"frontend_url"`
}

type DatabaseConfig struct {
	Driver   string `yaml:"driver"` // "mongodb"（默认）, "postgres", or "sqlite"
	Path     string `yaml:"path"`   // SQLite 文件路径
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"-"` // 只从环境变量读取（DB_PASSWORD / MONGO_ROOT_PASSWORD）
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"sslmode"`
	URI      string `yaml:"uri"` // MongoDB 连接 URI（优先于 host/port，如 mongodb://localhost:27017）
}

type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"` // 关闭时目录缓存退化为直查数据库
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	DB       int    `yaml:"db"`
	Password string `yaml:"-"` // 只从 REDIS_PASSWORD 环境变量读取
	// CatalogTTL 课程目录缓存有效期，如 "5m"
	CatalogTTL string `yaml:"catalog_ttl"`
}

// MinIOConfig MinIO 对象存储配置
type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"` // 例如 localhost:9000
	AccessKey string `yaml:"-"`        // 只从 MINIO_ROOT_USER 环境变量读取
	SecretKey string `yaml:"-"`        // 只从 MINIO_ROOT_PASSWORD 环境变量读取
	UseSSL    bool   `yaml:"use_ssl"`  // 是否使用 HTTPS
	Bucket    string `yaml:"bucket"`   // 默认 bucket 名称
	// PublicBaseURL 对象的公开访问前缀（反向代理地址），为空时按
	// endpoint + bucket 拼接
	PublicBaseURL string `yaml:"public_base_url"`
}

// SMTPConfig 邮件发送配置
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"-"` // 只从 SMTP_PASSWORD 环境变量读取
	From     string `yaml:"from"`
}

// AuthConfig 认证配置
// 注意：JWTSecret/AdminEmail/AdminPassword/GoogleClientID 只从环境变量读取
type AuthConfig struct {
	JWTSecret       string `yaml:"-"`                 // 只从 JWT_SECRET 环境变量读取
	AccessTokenTTL  string `yaml:"access_token_ttl"`  // 例如 "15m"
	RefreshTokenTTL string `yaml:"refresh_token_ttl"` // 例如 "168h"
	AdminEmail      string `yaml:"-"`                 // 只从 ADMIN_EMAIL 环境变量读取
	AdminPassword   string `yaml:"-"`                 // 只从 ADMIN_PASSWORD 环境变量读取
	GoogleClientID  string `yaml:"-"`                 // 只从 GOOGLE_CLIENT_ID 环境变量读取
	// VerifyTokenTTL 邮箱验证令牌有效期，如 "24h"
	VerifyTokenTTL string `yaml:"verify_token_ttl"`
	// ResetTokenTTL 密码重置令牌有效期，如 "1h"
	ResetTokenTTL string `yaml:"reset_token_ttl"`
}

// PolicyConfig 业务策略开关
type PolicyConfig struct {
	// StrictProgressAccess 为 true 时未购买用户的进度/评论写入返回 403，
	// 为 false 时放行（历史兼容模式）
	StrictProgressAccess *bool `yaml:"strict_progress_access"`
	// RejectDuplicatePurchase 为 true 时已购用户再次提交支付返回 409
	RejectDuplicatePurchase bool `yaml:"reject_duplicate_purchase"`
	// MaxScreenshotBytes 支付截图大小上限，默认 5MiB
	MaxScreenshotBytes int64 `yaml:"max_screenshot_bytes"`
}

// Config 应用配置（最终使用的配置）
type Config struct {
	Env            Environment
	DatabaseDriver string // "mongodb", "postgres", or "sqlite"
	DatabaseURL    string
	DatabaseDBName string // MongoDB 数据库名称
	APIPort        string
	Server         ServerConfig
	Redis          RedisConfig
	MinIO          MinIOConfig
	SMTP           SMTPConfig
	Auth           AuthConfig
	Policy         PolicyConfig
}
