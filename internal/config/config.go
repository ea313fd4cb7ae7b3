package config

import (
	"log/slog"
	"strings"
	"time"
)

// Config 汇总应用的全部配置。
type Config struct {
	HTTP    HTTPConfig    `mapstructure:"http" yaml:"http"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
	DB      DBConfig      `mapstructure:"database" yaml:"database"`
	Panel   PanelConfig   `mapstructure:"panel" yaml:"panel"`
	Webhook WebhookConfig `mapstructure:"webhook" yaml:"webhook"`
	Sync    SyncConfig    `mapstructure:"sync" yaml:"sync"`
	Status  StatusConfig  `mapstructure:"status" yaml:"status"`
	Units   UnitsConfig   `mapstructure:"units" yaml:"units"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
	Admin   AdminConfig   `mapstructure:"admin" yaml:"admin"`
	Auth    AuthConfig    `mapstructure:"auth" yaml:"auth"`
}

// HTTPConfig 定义 HTTP 服务配置。
type HTTPConfig struct {
	Addr            string        `mapstructure:"addr" yaml:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// LogConfig 定义日志配置。
type LogConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	Environment string `mapstructure:"environment" yaml:"environment"`
}

// DBConfig 定义数据库配置。
type DBConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// PanelConfig 定义远端面板 API 的访问参数。
type PanelConfig struct {
	URL              string        `mapstructure:"url" yaml:"url"`
	ApplicationToken string        `mapstructure:"application_token" yaml:"application_token"`
	ClientToken      string        `mapstructure:"client_token" yaml:"client_token"`
	ConnectTimeout   time.Duration `mapstructure:"connect_timeout" yaml:"connect_timeout"`
	Timeout          time.Duration `mapstructure:"timeout" yaml:"timeout"`
	Retry            RetryConfig   `mapstructure:"retry" yaml:"retry"`
}

// RetryConfig 控制远端 API 的重试策略，默认关闭。
type RetryConfig struct {
	Enabled         bool          `mapstructure:"enabled" yaml:"enabled"`
	MaxRetries      int           `mapstructure:"max_retries" yaml:"max_retries"`
	InitialInterval time.Duration `mapstructure:"initial_interval" yaml:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval" yaml:"max_interval"`
}

// WebhookConfig 定义 webhook 入口。
type WebhookConfig struct {
	Path         string `mapstructure:"path" yaml:"path"`
	MaxBodyBytes int64  `mapstructure:"max_body_bytes" yaml:"max_body_bytes"`
}

// SyncConfig 定义同步队列的 worker 行为。
type SyncConfig struct {
	Workers         int           `mapstructure:"workers" yaml:"workers"`
	BatchSize       int           `mapstructure:"batch_size" yaml:"batch_size"`
	Schedule        string        `mapstructure:"schedule" yaml:"schedule"`
	Retention       time.Duration `mapstructure:"retention" yaml:"retention"`
	CleanupSchedule string        `mapstructure:"cleanup_schedule" yaml:"cleanup_schedule"`
}

// StatusConfig 定义服务器状态轮询。
type StatusConfig struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
	Schedule string `mapstructure:"schedule" yaml:"schedule"`
}

// UnitsConfig 定义单位换算选项。
type UnitsConfig struct {
	LegacyMiBRatio bool `mapstructure:"legacy_mib_ratio" yaml:"legacy_mib_ratio"`
}

// MetricsConfig 定义 Prometheus 指标配置。
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled" yaml:"enabled"`
	Namespace string `mapstructure:"namespace" yaml:"namespace"`
	Token     string `mapstructure:"token" yaml:"token"`
}

// AdminConfig 定义管理接口的访问令牌，为空则关闭管理接口。
type AdminConfig struct {
	Token string `mapstructure:"token" yaml:"token"`
}

// AuthConfig 定义密码哈希参数。
type AuthConfig struct {
	BcryptCost int `mapstructure:"bcrypt_cost" yaml:"bcrypt_cost"`
}

func (c LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(c.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Redacted returns a copy with tokens masked, suitable for printing.
func (c Config) Redacted() Config {
	c.Panel.ApplicationToken = mask(c.Panel.ApplicationToken)
	c.Panel.ClientToken = mask(c.Panel.ClientToken)
	c.Metrics.Token = mask(c.Metrics.Token)
	c.Admin.Token = mask(c.Admin.Token)
	return c
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 4 {
		return "****"
	}
	return secret[:4] + strings.Repeat("*", len(secret)-4)
}
