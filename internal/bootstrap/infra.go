// 文件路径: internal/bootstrap/infra.go
// 模块说明: 组装服务进程与命令行共用的基础设施：存储、同步队列、远端客户端、缓存、换算器、指标与分发器。
package bootstrap

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/creamcroissant/panelmirror/internal/async"
	"github.com/creamcroissant/panelmirror/internal/cache"
	"github.com/creamcroissant/panelmirror/internal/config"
	"github.com/creamcroissant/panelmirror/internal/mirror"
	"github.com/creamcroissant/panelmirror/internal/panel"
	"github.com/creamcroissant/panelmirror/internal/repository/sqlite"
	"github.com/creamcroissant/panelmirror/internal/service"
	"github.com/creamcroissant/panelmirror/internal/support/hash"
	"github.com/creamcroissant/panelmirror/internal/units"
)

const eggExportTTL = time.Minute

// Infrastructure bundles the shared collaborators of the serve loop and the CLI.
type Infrastructure struct {
	Store      *sqlite.Store
	Queue      *async.SyncQueue
	Panel      *panel.Client
	Cache      cache.Store
	Hasher     hash.Hasher
	Converter  units.Converter
	Registry   *prometheus.Registry
	Dispatcher *mirror.Dispatcher
	Deletions  service.ServerDeletionService
}

// BuildInfrastructure wires default implementations on top of an open, migrated database.
func BuildInfrastructure(cfg *config.Config, db *sql.DB, logger *slog.Logger) (*Infrastructure, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required / 配置不能为空")
	}
	if db == nil {
		return nil, fmt.Errorf("database is required / 数据库不能为空")
	}
	if logger == nil {
		logger = slog.Default()
	}

	hasher, err := hash.NewBcryptHasher(cfg.Auth.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("bcrypt hasher: %w", err)
	}

	cacheStore := cache.NewStore(cache.Options{
		Prefix:          "panelmirror",
		DefaultTTL:      5 * time.Minute,
		CleanupInterval: time.Minute,
	})

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	store := sqlite.NewStore(db)
	client := panel.NewClient(cfg.Panel, logger)
	conv := units.NewConverter(units.Options{LegacyRatio: cfg.Units.LegacyMiBRatio})

	var mirrorMetrics *mirror.Metrics
	if cfg.Metrics.Enabled {
		mirrorMetrics = mirror.NewMetrics(registry, cfg.Metrics.Namespace)
	}
	dispatcher := mirror.NewDispatcher(store, conv, hasher, logger,
		mirror.WithEggExporter(panel.NewCachedExporter(client, cacheStore, eggExportTTL)),
		mirror.WithMetrics(mirrorMetrics),
	)

	return &Infrastructure{
		Store:      store,
		Queue:      async.NewSyncQueue(store.SyncJobs()),
		Panel:      client,
		Cache:      cacheStore,
		Hasher:     hasher,
		Converter:  conv,
		Registry:   registry,
		Dispatcher: dispatcher,
		Deletions:  service.NewServerDeletionService(store, client, logger),
	}, nil
}
