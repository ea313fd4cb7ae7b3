// 文件路径: internal/async/sync_queue.go
// 模块说明: 基于 sync_jobs 表的持久化队列，webhook 与管理接口写入，后台 worker 认领执行。
package async

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/creamcroissant/panelmirror/internal/mirror"
	"github.com/creamcroissant/panelmirror/internal/repository"
)

// SyncQueue persists webhook deliveries and deletion requests until a worker claims them.
type SyncQueue struct {
	jobs repository.SyncJobRepository
	now  func() time.Time
}

// NewSyncQueue constructs a queue over the sync job repository.
func NewSyncQueue(jobs repository.SyncJobRepository) *SyncQueue {
	return &SyncQueue{jobs: jobs, now: time.Now}
}

// EnqueueEvent stores one mirror event and returns the job id.
func (q *SyncQueue) EnqueueEvent(ctx context.Context, ev mirror.Event) (string, error) {
	if !ev.Type.Valid() {
		return "", fmt.Errorf("enqueue %s: %w", ev.Type, mirror.ErrMalformedPayload)
	}
	job := &repository.SyncJob{
		ID:        uuid.NewString(),
		Type:      repository.JobTypeMirrorSync,
		Kind:      ev.Type.Kind.String(),
		Operation: ev.Type.Op.String(),
		Payload:   append([]byte(nil), ev.Payload...),
		CreatedAt: q.now().Unix(),
	}
	if err := q.jobs.Enqueue(ctx, job); err != nil {
		return "", fmt.Errorf("enqueue %s: %w", ev.Type, err)
	}
	return job.ID, nil
}

// EnqueueServerDeletion schedules the remote-then-local deletion of a server.
func (q *SyncQueue) EnqueueServerDeletion(ctx context.Context, serverUUID string) (string, error) {
	if serverUUID == "" {
		return "", fmt.Errorf("server uuid is required / 服务器 uuid 不能为空")
	}
	job := &repository.SyncJob{
		ID:        uuid.NewString(),
		Type:      repository.JobTypeServerDelete,
		Kind:      mirror.KindServer.String(),
		Operation: mirror.OpDelete.String(),
		Subject:   serverUUID,
		CreatedAt: q.now().Unix(),
	}
	if err := q.jobs.Enqueue(ctx, job); err != nil {
		return "", fmt.Errorf("enqueue server deletion: %w", err)
	}
	return job.ID, nil
}

// Drain claims up to limit pending jobs for this process.
func (q *SyncQueue) Drain(ctx context.Context, limit int) ([]*repository.SyncJob, error) {
	return q.jobs.Claim(ctx, limit, q.now().Unix())
}

// Complete marks a claimed job as done.
func (q *SyncQueue) Complete(ctx context.Context, id string) error {
	return q.jobs.Finish(ctx, id, repository.JobStatusDone, "", q.now().Unix())
}

// Fail marks a claimed job as failed. Failed jobs are kept for inspection and never retried.
func (q *SyncQueue) Fail(ctx context.Context, id string, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return q.jobs.Finish(ctx, id, repository.JobStatusFailed, msg, q.now().Unix())
}

// Recover returns jobs orphaned in the running state by a previous process to pending.
func (q *SyncQueue) Recover(ctx context.Context) (int64, error) {
	return q.jobs.ResetRunning(ctx, q.now().Unix())
}

// Prune deletes finished jobs older than retention.
func (q *SyncQueue) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	return q.jobs.PurgeFinished(ctx, q.now().Add(-retention).Unix())
}

// Stats reports the number of jobs in each status.
func (q *SyncQueue) Stats(ctx context.Context) (map[repository.JobStatus]int64, error) {
	return q.jobs.CountByStatus(ctx)
}

// List returns recent jobs, newest first.
func (q *SyncQueue) List(ctx context.Context, filter repository.SyncJobFilter) ([]*repository.SyncJob, error) {
	return q.jobs.List(ctx, filter)
}

// DecodeEvent rebuilds the mirror event stored in a mirror.sync job.
func DecodeEvent(job *repository.SyncJob) (mirror.Event, error) {
	if job.Type != repository.JobTypeMirrorSync {
		return mirror.Event{}, fmt.Errorf("job %s is %s, not %s", job.ID, job.Type, repository.JobTypeMirrorSync)
	}
	t, ok := mirror.ParseEventType(job.Kind, job.Operation)
	if !ok {
		return mirror.Event{}, fmt.Errorf("job %s: unknown event %s.%s: %w", job.ID, job.Kind, job.Operation, mirror.ErrMalformedPayload)
	}
	return mirror.Event{Type: t, Payload: job.Payload}, nil
}
