// 文件路径: internal/repository/sqlite/sync_job.go
// 模块说明: 持久化同步任务队列。认领操作用单条 UPDATE ... RETURNING 完成，保证一个任务只被一个 worker 拿到。
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/creamcroissant/panelmirror/internal/repository"
)

type syncJobRepo struct {
	db querier
}

const syncJobColumns = `id, type, kind, operation, subject, payload, status, attempts, last_error, created_at, updated_at, finished_at`

func (r *syncJobRepo) Enqueue(ctx context.Context, job *repository.SyncJob) error {
	if job.ID == "" {
		return fmt.Errorf("sync job id is required / 任务编号不能为空")
	}
	now := time.Now().Unix()
	if job.CreatedAt == 0 {
		job.CreatedAt = now
	}
	job.UpdatedAt = job.CreatedAt
	job.Status = repository.JobStatusPending
	const query = `INSERT INTO sync_jobs (id, type, kind, operation, subject, payload, status, attempts, last_error, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, 0, '', ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		job.ID, string(job.Type), job.Kind, job.Operation, job.Subject, job.Payload,
		string(job.Status), job.CreatedAt, job.UpdatedAt)
	return err
}

func (r *syncJobRepo) Claim(ctx context.Context, limit int, now int64) ([]*repository.SyncJob, error) {
	if limit <= 0 {
		return nil, nil
	}
	const query = `UPDATE sync_jobs
        SET status = ?, attempts = attempts + 1, updated_at = ?
        WHERE id IN (
            SELECT id FROM sync_jobs WHERE status = ? ORDER BY created_at ASC, rowid ASC LIMIT ?
        )
        RETURNING rowid, ` + syncJobColumns
	rows, err := r.db.QueryContext(ctx, query,
		string(repository.JobStatusRunning), now, string(repository.JobStatusPending), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	type claimed struct {
		seq int64
		job *repository.SyncJob
	}
	var batch []claimed
	for rows.Next() {
		var seq int64
		job, err := scanSyncJob(seqScanner{rowScanner: rows, seq: &seq})
		if err != nil {
			return nil, err
		}
		batch = append(batch, claimed{seq: seq, job: job})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// RETURNING does not keep the subquery order.
	sort.Slice(batch, func(i, j int) bool { return batch[i].seq < batch[j].seq })
	jobs := make([]*repository.SyncJob, len(batch))
	for i, c := range batch {
		jobs[i] = c.job
	}
	return jobs, nil
}

func (r *syncJobRepo) Finish(ctx context.Context, id string, status repository.JobStatus, lastError string, now int64) error {
	return affected(r.db.ExecContext(ctx,
		`UPDATE sync_jobs SET status = ?, last_error = ?, updated_at = ?, finished_at = ? WHERE id = ?`,
		string(status), lastError, now, now, id))
}

func (r *syncJobRepo) FindByID(ctx context.Context, id string) (*repository.SyncJob, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+syncJobColumns+` FROM sync_jobs WHERE id = ?`, id)
	job, err := scanSyncJob(row)
	return job, notFound(err)
}

func (r *syncJobRepo) List(ctx context.Context, filter repository.SyncJobFilter) ([]*repository.SyncJob, error) {
	query := `SELECT ` + syncJobColumns + ` FROM sync_jobs`
	var args []any
	if filter.Status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC, rowid DESC`
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*repository.SyncJob
	for rows.Next() {
		job, err := scanSyncJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func (r *syncJobRepo) CountByStatus(ctx context.Context) (map[repository.JobStatus]int64, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM sync_jobs GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[repository.JobStatus]int64)
	for rows.Next() {
		var (
			status string
			count  int64
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[repository.JobStatus(status)] = count
	}
	return counts, rows.Err()
}

func (r *syncJobRepo) ResetRunning(ctx context.Context, now int64) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE sync_jobs SET status = ?, updated_at = ? WHERE status = ?`,
		string(repository.JobStatusPending), now, string(repository.JobStatusRunning))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *syncJobRepo) PurgeFinished(ctx context.Context, before int64) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM sync_jobs WHERE status IN (?, ?) AND finished_at IS NOT NULL AND finished_at < ?`,
		string(repository.JobStatusDone), string(repository.JobStatusFailed), before)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// seqScanner reads a leading rowid column before the regular job columns.
type seqScanner struct {
	rowScanner
	seq *int64
}

func (s seqScanner) Scan(dest ...any) error {
	return s.rowScanner.Scan(append([]any{s.seq}, dest...)...)
}

func scanSyncJob(scanner rowScanner) (*repository.SyncJob, error) {
	var (
		job        repository.SyncJob
		jobType    string
		status     string
		finishedAt sql.NullInt64
	)
	if err := scanner.Scan(
		&job.ID,
		&jobType,
		&job.Kind,
		&job.Operation,
		&job.Subject,
		&job.Payload,
		&status,
		&job.Attempts,
		&job.LastError,
		&job.CreatedAt,
		&job.UpdatedAt,
		&finishedAt,
	); err != nil {
		return nil, err
	}
	job.Type = repository.JobType(jobType)
	job.Status = repository.JobStatus(status)
	if finishedAt.Valid {
		v := finishedAt.Int64
		job.FinishedAt = &v
	}
	return &job, nil
}
