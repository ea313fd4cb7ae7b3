// 文件路径: internal/job/sync_worker.go
// 模块说明: 认领 sync_jobs 中的待处理任务，用有界 errgroup 并行执行；任务之间没有顺序保证，也不会重试。
package job

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/creamcroissant/panelmirror/internal/async"
	"github.com/creamcroissant/panelmirror/internal/mirror"
	"github.com/creamcroissant/panelmirror/internal/repository"
	"github.com/creamcroissant/panelmirror/internal/service"
)

const (
	defaultSyncWorkers   = 4
	defaultSyncBatchSize = 50
)

// EventHandler applies one mirror event and absorbs its failure.
type EventHandler interface {
	Handle(ctx context.Context, ev mirror.Event) mirror.Outcome
}

// SyncWorkerJob drains the persistent sync queue.
type SyncWorkerJob struct {
	Queue     *async.SyncQueue
	Events    EventHandler
	Deletions service.ServerDeletionService
	Workers   int
	BatchSize int
	Logger    *slog.Logger
}

// NewSyncWorkerJob 组装队列、分发器与删除流程。
func NewSyncWorkerJob(queue *async.SyncQueue, events EventHandler, deletions service.ServerDeletionService, workers, batchSize int, logger *slog.Logger) *SyncWorkerJob {
	if logger == nil {
		logger = slog.Default()
	}
	if workers <= 0 {
		workers = defaultSyncWorkers
	}
	if batchSize <= 0 {
		batchSize = defaultSyncBatchSize
	}
	return &SyncWorkerJob{Queue: queue, Events: events, Deletions: deletions, Workers: workers, BatchSize: batchSize, Logger: logger}
}

// Name 返回任务标识。
func (j *SyncWorkerJob) Name() string { return "sync.worker" }

// Run claims one batch and processes it. Individual job failures are recorded
// on the job row; only a failed claim is returned.
func (j *SyncWorkerJob) Run(ctx context.Context) error {
	if j == nil || j.Queue == nil || j.Events == nil {
		return fmt.Errorf("sync worker dependencies not configured / 同步任务依赖未配置")
	}
	jobs, err := j.Queue.Drain(ctx, j.BatchSize)
	if err != nil {
		return fmt.Errorf("claim sync jobs: %w", err)
	}
	if len(jobs) == 0 {
		return nil
	}

	var g errgroup.Group
	g.SetLimit(j.Workers)
	for _, item := range jobs {
		g.Go(func() error {
			j.process(ctx, item)
			return nil
		})
	}
	_ = g.Wait()
	j.Logger.Debug("sync batch processed", "count", len(jobs))
	return nil
}

func (j *SyncWorkerJob) process(ctx context.Context, item *repository.SyncJob) {
	runErr := j.execute(ctx, item)

	// The row must be finished even when the run deadline has passed.
	finishCtx := context.WithoutCancel(ctx)
	var err error
	if runErr != nil {
		err = j.Queue.Fail(finishCtx, item.ID, runErr)
	} else {
		err = j.Queue.Complete(finishCtx, item.ID)
	}
	if err != nil {
		j.Logger.Error("sync job state not saved", "job", item.ID, "type", item.Type, "error", err)
	}
}

func (j *SyncWorkerJob) execute(ctx context.Context, item *repository.SyncJob) error {
	switch item.Type {
	case repository.JobTypeMirrorSync:
		ev, err := async.DecodeEvent(item)
		if err != nil {
			j.Logger.Error("sync job undecodable", "job", item.ID, "error", err)
			return err
		}
		if outcome := j.Events.Handle(ctx, ev); outcome == mirror.Dropped {
			return fmt.Errorf("%s dropped", ev.Type)
		}
		return nil
	case repository.JobTypeServerDelete:
		if j.Deletions == nil {
			return fmt.Errorf("server deletion not configured / 未配置服务器删除流程")
		}
		result, err := j.Deletions.Delete(ctx, item.Subject)
		if err != nil {
			j.Logger.Error("server deletion failed", "job", item.ID, "uuid", item.Subject, "error", err)
			return err
		}
		if !result.RemoteDeleted {
			j.Logger.Warn("server deletion skipped, no remote match", "job", item.ID, "uuid", item.Subject)
		}
		return nil
	default:
		err := fmt.Errorf("unknown job type %q", item.Type)
		j.Logger.Error("sync job rejected", "job", item.ID, "error", err)
		return err
	}
}
