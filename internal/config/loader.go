package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. PANELMIRROR_PANEL_URL.
const EnvPrefix = "PANELMIRROR"

// Load reads config.yaml (if any), .env files and environment variables on top of the defaults.
func Load() (*Config, error) {
	return LoadFrom("")
}

// LoadFrom behaves like Load but reads an explicit config file when path is set.
func LoadFrom(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/panelmirror/")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || path != "" {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if err := loadDotEnv(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.Panel.URL = strings.TrimRight(strings.TrimSpace(cfg.Panel.URL), "/")
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.addr", "0.0.0.0:8080")
	v.SetDefault("http.shutdown_timeout", "15s")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.add_source", false)
	v.SetDefault("log.environment", "production")

	v.SetDefault("database.path", "data/panelmirror.db")

	v.SetDefault("panel.url", "")
	v.SetDefault("panel.application_token", "")
	v.SetDefault("panel.client_token", "")
	v.SetDefault("panel.connect_timeout", "5s")
	v.SetDefault("panel.timeout", "20s")
	v.SetDefault("panel.retry.enabled", false)
	v.SetDefault("panel.retry.max_retries", 3)
	v.SetDefault("panel.retry.initial_interval", "500ms")
	v.SetDefault("panel.retry.max_interval", "5s")

	v.SetDefault("webhook.path", "/api/webhook")
	v.SetDefault("webhook.max_body_bytes", 1<<20)

	v.SetDefault("sync.workers", 4)
	v.SetDefault("sync.batch_size", 32)
	v.SetDefault("sync.schedule", "@every 2s")
	v.SetDefault("sync.retention", "168h")
	v.SetDefault("sync.cleanup_schedule", "@every 1h")

	v.SetDefault("status.enabled", true)
	v.SetDefault("status.schedule", "@every 1m")

	v.SetDefault("units.legacy_mib_ratio", false)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.namespace", "panelmirror")
	v.SetDefault("metrics.token", "")

	v.SetDefault("admin.token", "")

	v.SetDefault("auth.bcrypt_cost", 12)
}

func loadDotEnv(v *viper.Viper) error {
	candidates := []string{".", ".."}
	for _, dir := range candidates {
		file := filepath.Clean(filepath.Join(dir, ".env"))
		if _, err := os.Stat(file); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return fmt.Errorf("stat .env: %w", err)
		}

		envViper := viper.New()
		envViper.SetConfigFile(file)
		envViper.SetConfigType("env")
		if err := envViper.ReadInConfig(); err != nil {
			return fmt.Errorf("read .env: %w", err)
		}
		bindDotEnv(v, envViper)
	}
	return nil
}

// bindDotEnv maps flat .env keys onto the config tree. Viper's Set outranks the
// environment, so keys that already have a real PANELMIRROR_ variable are left alone.
func bindDotEnv(target *viper.Viper, source *viper.Viper) {
	mappings := map[string]string{
		"PANEL_API_URL":               "panel.url",
		"PANEL_API_APPLICATION_TOKEN": "panel.application_token",
		"PANEL_API_CLIENT_TOKEN":      "panel.client_token",
		"HTTP_ADDR":                   "http.addr",
		"LOG_LEVEL":                   "log.level",
		"LOG_FORMAT":                  "log.format",
		"APP_ENV":                     "log.environment",
		"DB_PATH":                     "database.path",
		"ADMIN_TOKEN":                 "admin.token",
		"METRICS_TOKEN":               "metrics.token",
	}
	for oldKey, newKey := range mappings {
		val := source.GetString(oldKey)
		if val == "" {
			continue
		}
		if _, ok := os.LookupEnv(envName(newKey)); ok {
			continue
		}
		target.Set(newKey, val)
	}
}

func envName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}
