// 文件路径: internal/cache/store.go
// 模块说明: 基于 go-cache 的进程内缓存，状态轮询与模板导出共用，支持命名空间隔离。
package cache

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Store is the in-memory cache used by pollers and remote lookups.
type Store interface {
	SetString(ctx context.Context, key, value string, ttl time.Duration)
	GetString(ctx context.Context, key string) (string, bool)
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
	GetJSON(ctx context.Context, key string, dest any) (bool, error)
	Delete(ctx context.Context, key string)
	ItemCount() int
	Namespace(prefix string) Store
}

// Options 配置内存缓存行为。
type Options struct {
	DefaultTTL      time.Duration
	CleanupInterval time.Duration
	Prefix          string
}

// NewStore 创建基于 go-cache 的缓存实现。
func NewStore(opts Options) Store {
	defaultTTL := opts.DefaultTTL
	if defaultTTL <= 0 {
		defaultTTL = 10 * time.Minute
	}
	cleanup := opts.CleanupInterval
	if cleanup <= 0 {
		cleanup = defaultTTL
	}
	return &goCacheStore{
		backend:    gocache.New(defaultTTL, cleanup),
		defaultTTL: defaultTTL,
		prefix:     normalizePrefix(opts.Prefix),
	}
}

type goCacheStore struct {
	backend    *gocache.Cache
	defaultTTL time.Duration
	prefix     string
}

func (s *goCacheStore) SetString(_ context.Context, key, value string, ttl time.Duration) {
	s.backend.Set(s.prefixed(key), value, s.normalizeTTL(ttl))
}

func (s *goCacheStore) GetString(_ context.Context, key string) (string, bool) {
	raw, ok := s.backend.Get(s.prefixed(key))
	if !ok {
		return "", false
	}
	v, ok := raw.(string)
	return v, ok
}

func (s *goCacheStore) SetJSON(_ context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	s.backend.Set(s.prefixed(key), data, s.normalizeTTL(ttl))
	return nil
}

func (s *goCacheStore) GetJSON(_ context.Context, key string, dest any) (bool, error) {
	raw, ok := s.backend.Get(s.prefixed(key))
	if !ok {
		return false, nil
	}
	data, ok := raw.([]byte)
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, err
	}
	return true, nil
}

func (s *goCacheStore) Delete(_ context.Context, key string) {
	s.backend.Delete(s.prefixed(key))
}

// ItemCount counts entries across every namespace sharing the backend.
func (s *goCacheStore) ItemCount() int {
	return s.backend.ItemCount()
}

func (s *goCacheStore) Namespace(prefix string) Store {
	return &goCacheStore{
		backend:    s.backend,
		defaultTTL: s.defaultTTL,
		prefix:     joinPrefixes(s.prefix, prefix),
	}
}

func (s *goCacheStore) prefixed(key string) string {
	key = strings.TrimSpace(key)
	if s.prefix == "" {
		return key
	}
	return s.prefix + ":" + key
}

func (s *goCacheStore) normalizeTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return s.defaultTTL
	}
	return ttl
}

func normalizePrefix(prefix string) string {
	return strings.Trim(prefix, ": ")
}

func joinPrefixes(parts ...string) string {
	var normalized []string
	for _, part := range parts {
		if trimmed := normalizePrefix(part); trimmed != "" {
			normalized = append(normalized, trimmed)
		}
	}
	return strings.Join(normalized, ":")
}
