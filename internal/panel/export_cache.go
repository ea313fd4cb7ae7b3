package panel

import (
	"context"
	"time"

	"github.com/creamcroissant/panelmirror/internal/cache"
)

// Exporter fetches egg export documents.
type Exporter interface {
	FetchEggExport(ctx context.Context, url string) (*EggExport, error)
}

// CachedExporter memoises egg exports by URL; a burst of egg updates hits the URL once per ttl.
type CachedExporter struct {
	next  Exporter
	cache cache.Store
	ttl   time.Duration
}

// NewCachedExporter wraps next with cache. Failed fetches are not cached.
func NewCachedExporter(next Exporter, store cache.Store, ttl time.Duration) *CachedExporter {
	return &CachedExporter{next: next, cache: store.Namespace("egg_export"), ttl: ttl}
}

func (c *CachedExporter) FetchEggExport(ctx context.Context, url string) (*EggExport, error) {
	var cached EggExport
	if ok, err := c.cache.GetJSON(ctx, url, &cached); err == nil && ok {
		return &cached, nil
	}
	export, err := c.next.FetchEggExport(ctx, url)
	if err != nil {
		return nil, err
	}
	_ = c.cache.SetJSON(ctx, url, export, c.ttl)
	return export, nil
}
