// 文件路径: internal/job/server_status.go
// 模块说明: 定时轮询每台本地服务器的远端运行状态并覆盖 status 字段，状态未变化时跳过写库。
package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/errgroup"

	"github.com/creamcroissant/panelmirror/internal/cache"
	"github.com/creamcroissant/panelmirror/internal/panel"
	"github.com/creamcroissant/panelmirror/internal/repository"
)

const defaultStatusConcurrency = 4

// ResourceReader reads live server state from the client API.
type ResourceReader interface {
	ServerResources(ctx context.Context, uuid string) (*panel.Resources, error)
}

// StatusMetrics counts poll results.
type StatusMetrics struct {
	polls *prometheus.CounterVec
}

// NewStatusMetrics registers status poll counters on reg (prometheus.DefaultRegisterer when nil).
func NewStatusMetrics(reg prometheus.Registerer, namespace string) *StatusMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "panelmirror"
	}
	return &StatusMetrics{
		polls: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "status",
				Name:      "poll_total",
				Help:      "Server status polls, by result.",
			},
			[]string{"result"},
		),
	}
}

func (m *StatusMetrics) observe(result string) {
	if m == nil {
		return
	}
	m.polls.WithLabelValues(result).Inc()
}

// ServerStatusJob overwrites local server status with the remote current_state.
type ServerStatusJob struct {
	Servers repository.ServerRepository
	Remote  ResourceReader
	Cache   cache.Store
	Metrics *StatusMetrics
	Logger  *slog.Logger
}

// NewServerStatusJob 组装状态轮询任务；cache 可为空。
func NewServerStatusJob(servers repository.ServerRepository, remote ResourceReader, store cache.Store, metrics *StatusMetrics, logger *slog.Logger) *ServerStatusJob {
	if logger == nil {
		logger = slog.Default()
	}
	if store != nil {
		store = store.Namespace("status")
	}
	return &ServerStatusJob{Servers: servers, Remote: remote, Cache: store, Metrics: metrics, Logger: logger}
}

// Name 返回任务标识。
func (j *ServerStatusJob) Name() string { return "server.status" }

// Run polls every mirrored server. Per-server failures are logged and skipped.
func (j *ServerStatusJob) Run(ctx context.Context) error {
	if j == nil || j.Servers == nil || j.Remote == nil {
		return fmt.Errorf("server status job dependencies not configured / 状态轮询任务依赖未配置")
	}
	uuids, err := j.Servers.ListUUIDs(ctx)
	if err != nil {
		return fmt.Errorf("list server uuids: %w", err)
	}

	var g errgroup.Group
	g.SetLimit(defaultStatusConcurrency)
	for _, uuid := range uuids {
		g.Go(func() error {
			j.Metrics.observe(j.poll(ctx, uuid))
			return nil
		})
	}
	_ = g.Wait()
	return nil
}

func (j *ServerStatusJob) poll(ctx context.Context, uuid string) string {
	res, err := j.Remote.ServerResources(ctx, uuid)
	if err != nil {
		j.Logger.Warn("server status poll failed", "uuid", uuid, "error", err)
		return "error"
	}
	state := res.CurrentState
	// The row is written on every pass; the cache only tells repeats apart for the metric.
	if err := j.Servers.UpdateStatus(ctx, uuid, state); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "gone"
		}
		j.Logger.Error("server status not saved", "uuid", uuid, "error", err)
		return "error"
	}
	if j.Cache == nil {
		return "updated"
	}
	last, seen := j.Cache.GetString(ctx, uuid)
	j.Cache.SetString(ctx, uuid, state, 0)
	if seen && last == state {
		return "unchanged"
	}
	return "updated"
}
