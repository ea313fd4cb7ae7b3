package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/creamcroissant/panelmirror/internal/api"
	"github.com/creamcroissant/panelmirror/internal/bootstrap"
	"github.com/creamcroissant/panelmirror/internal/job"
	"github.com/creamcroissant/panelmirror/internal/migrations"
	"github.com/creamcroissant/panelmirror/internal/support/logging"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the webhook receiver and sync workers",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger := logging.New(logging.Options{
		Level:     cfg.Log.SlogLevel(),
		Format:    cfg.Log.Format,
		AddSource: cfg.Log.AddSource,
	}).With("env", cfg.Log.Environment, "version", Version)

	db, err := bootstrap.OpenSQLite(cfg.DB.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := migrations.Up(db); err != nil {
		return err
	}

	infra, err := bootstrap.BuildInfrastructure(cfg, db, logger)
	if err != nil {
		return err
	}

	// Jobs left running by a crash are handed back to the workers.
	recovered, err := infra.Queue.Recover(ctx)
	if err != nil {
		return err
	}
	if recovered > 0 {
		logger.Warn("sync jobs recovered", "count", recovered)
	}

	if cfg.Panel.URL == "" {
		logger.Warn("panel.url is empty; remote calls will fail until it is configured")
	}

	scheduler := job.NewScheduler(logger, 0)

	syncWorker := job.NewSyncWorkerJob(infra.Queue, infra.Dispatcher, infra.Deletions, cfg.Sync.Workers, cfg.Sync.BatchSize, logger)
	if _, err := scheduler.Register(cfg.Sync.Schedule, syncWorker); err != nil {
		return err
	}

	cleanup := job.NewSyncJobCleanupJob(infra.Queue, cfg.Sync.Retention, logger)
	if _, err := scheduler.Register(cfg.Sync.CleanupSchedule, cleanup); err != nil {
		return err
	}

	if cfg.Status.Enabled {
		var statusMetrics *job.StatusMetrics
		if cfg.Metrics.Enabled {
			statusMetrics = job.NewStatusMetrics(infra.Registry, cfg.Metrics.Namespace)
		}
		status := job.NewServerStatusJob(infra.Store.Servers(), infra.Panel, infra.Cache, statusMetrics, logger)
		if _, err := scheduler.Register(cfg.Status.Schedule, status); err != nil {
			return err
		}
	}

	scheduler.Start()

	router := api.NewRouter(logger, api.Services{
		Queue:     infra.Queue,
		Servers:   infra.Store.Servers(),
		Converter: infra.Converter,
		DB:        db,
	}, api.Options{
		Webhook:  cfg.Webhook,
		Metrics:  cfg.Metrics,
		Admin:    cfg.Admin,
		Registry: infra.Registry,
	})
	server := bootstrap.NewHTTPServer(cfg.HTTP, router)

	go func() {
		logger.Info("http server starting", "addr", server.Addr, "webhook", cfg.Webhook.Path, "jobs", scheduler.Jobs())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownTimeout := cfg.HTTP.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 15 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	logger.Info("shutting down http server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	logger.Info("waiting for background jobs")
	select {
	case <-scheduler.Stop().Done():
	case <-shutdownCtx.Done():
		logger.Warn("background jobs still running at shutdown deadline")
	}
	logger.Info("server exited cleanly")
	return nil
}
