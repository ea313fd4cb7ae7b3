// 文件路径: internal/panel/retry.go
// 模块说明: 远端请求的指数退避重试，默认关闭；只重试网络错误、429 与 5xx。
package panel

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryConfig 控制面板请求的重试策略。
type RetryConfig struct {
	Enabled         bool
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
}

// normalizeRetryConfig 填补缺省值，确保配置可用。
func normalizeRetryConfig(cfg RetryConfig) RetryConfig {
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = 500 * time.Millisecond
	}
	if cfg.MaxInterval <= 0 {
		cfg.MaxInterval = 5 * time.Second
	}
	if cfg.Multiplier <= 0 {
		cfg.Multiplier = 2
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	return cfg
}

// IsRetryable reports whether err is worth another attempt.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Retryable()
	}
	return false
}

// doWithRetry runs fn once when retry is disabled, otherwise until it succeeds,
// fails permanently or runs out of attempts.
func doWithRetry(ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) error) error {
	if !cfg.Enabled {
		return fn(ctx)
	}
	cfg = normalizeRetryConfig(cfg)

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = cfg.InitialInterval
	policy.MaxInterval = cfg.MaxInterval
	policy.Multiplier = cfg.Multiplier
	policy.MaxElapsedTime = 0

	attempts := 0
	operation := func() error {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if !IsRetryable(err) || attempts >= cfg.MaxRetries {
			return backoff.Permanent(err)
		}
		attempts++
		return err
	}
	return backoff.Retry(operation, backoff.WithContext(policy, ctx))
}
