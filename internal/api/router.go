// 文件路径: internal/api/router.go
// 模块说明: HTTP 路由：健康检查、Prometheus 指标、webhook 入口与受令牌保护的管理接口。
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/creamcroissant/panelmirror/internal/api/handler"
	"github.com/creamcroissant/panelmirror/internal/api/middleware"
	"github.com/creamcroissant/panelmirror/internal/async"
	"github.com/creamcroissant/panelmirror/internal/config"
	"github.com/creamcroissant/panelmirror/internal/repository"
	"github.com/creamcroissant/panelmirror/internal/units"
)

const defaultWebhookPath = "/api/webhook"

// Pinger reports whether the mirror database is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Services are the collaborators the router exposes over HTTP.
type Services struct {
	Queue     *async.SyncQueue
	Servers   repository.ServerRepository
	Converter units.Converter
	DB        Pinger
}

// Options tune the router. Registry, when set, backs both the collectors and /metrics.
type Options struct {
	Webhook  config.WebhookConfig
	Metrics  config.MetricsConfig
	Admin    config.AdminConfig
	Registry *prometheus.Registry
}

// NewRouter wires every HTTP endpoint.
func NewRouter(logger *slog.Logger, services Services, opts Options) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if services.Queue == nil {
		panic("router requires SyncQueue")
	}
	if services.Servers == nil {
		panic("router requires ServerRepository")
	}

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID, chiMiddleware.RealIP)

	var (
		registerer prometheus.Registerer = prometheus.DefaultRegisterer
		gatherer   prometheus.Gatherer   = prometheus.DefaultGatherer
	)
	if opts.Registry != nil {
		registerer, gatherer = opts.Registry, opts.Registry
	}
	if opts.Metrics.Enabled {
		mCfg := middleware.DefaultMetricsConfig()
		if opts.Metrics.Namespace != "" {
			mCfg.Namespace = opts.Metrics.Namespace
		}
		mCfg.Registerer = registerer
		r.Use(middleware.NewMetrics(mCfg).Middleware)
	}

	r.Use(
		middleware.StructuredLogger(middleware.LoggingConfig{
			Logger:        logger,
			SlowThreshold: 500 * time.Millisecond,
			SkipPaths:     []string{"/health", "/healthz", "/metrics"},
		}),
		chiMiddleware.Recoverer,
	)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	})
	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if services.DB != nil {
			if err := services.DB.PingContext(req.Context()); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unavailable", "error": err.Error()})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"status": "ok",
			"ts":     time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	if opts.Metrics.Enabled {
		metricsHandler := promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
		if opts.Metrics.Token != "" {
			r.With(middleware.MetricsGuard(opts.Metrics.Token)).Handle("/metrics", metricsHandler)
		} else {
			r.Handle("/metrics", metricsHandler)
		}
	}

	registerWebhookRoute(r, logger, services.Queue, opts.Webhook)
	if opts.Admin.Token != "" {
		registerAdminRoutes(r, services, opts.Admin.Token)
	}
	return r
}

func registerWebhookRoute(r chi.Router, logger *slog.Logger, queue *async.SyncQueue, cfg config.WebhookConfig) {
	path := cfg.Path
	if path == "" {
		path = defaultWebhookPath
	}
	webhook := handler.NewWebhookHandler(queue, logger)
	r.With(middleware.BodyLimit(middleware.BodyLimitConfig{MaxBytes: cfg.MaxBodyBytes})).
		Post(path, webhook.Receive)
}

func registerAdminRoutes(r chi.Router, services Services, token string) {
	servers := handler.NewAdminServerHandler(services.Servers, services.Queue, services.Converter)
	sync := handler.NewAdminSyncHandler(services.Queue)

	r.Route("/api/admin", func(admin chi.Router) {
		admin.Use(middleware.AdminGuard(token))
		admin.Get("/servers", servers.List)
		admin.Delete("/servers/{uuid}", servers.Delete)
		admin.Get("/sync/jobs", sync.Jobs)
		admin.Get("/sync/stats", sync.Stats)
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
