package job

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/creamcroissant/panelmirror/internal/async"
)

const defaultSyncRetention = 7 * 24 * time.Hour

// SyncJobCleanupJob prunes finished sync jobs.
type SyncJobCleanupJob struct {
	Queue     *async.SyncQueue
	Retention time.Duration
	Logger    *slog.Logger
}

// NewSyncJobCleanupJob creates a new SyncJobCleanupJob.
func NewSyncJobCleanupJob(queue *async.SyncQueue, retention time.Duration, logger *slog.Logger) *SyncJobCleanupJob {
	if logger == nil {
		logger = slog.Default()
	}
	if retention <= 0 {
		retention = defaultSyncRetention
	}
	return &SyncJobCleanupJob{Queue: queue, Retention: retention, Logger: logger}
}

// Name implements Runnable interface.
func (j *SyncJobCleanupJob) Name() string {
	return "sync.cleanup"
}

// Run implements Runnable interface.
func (j *SyncJobCleanupJob) Run(ctx context.Context) error {
	if j == nil || j.Queue == nil {
		return fmt.Errorf("sync cleanup job dependencies not configured / 同步任务清理依赖未配置")
	}

	deleted, err := j.Queue.Prune(ctx, j.Retention)
	if err != nil {
		return fmt.Errorf("sync cleanup job: %w", err)
	}

	if deleted > 0 {
		j.Logger.Info("cleaned up finished sync jobs", "deleted_rows", deleted)
	}

	return nil
}
