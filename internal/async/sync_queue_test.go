package async

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/creamcroissant/panelmirror/internal/mirror"
	"github.com/creamcroissant/panelmirror/internal/repository"
	"github.com/creamcroissant/panelmirror/internal/repository/sqlite/sqlitetest"
)

func TestEnqueueAndDecodeEvent(t *testing.T) {
	_, store := sqlitetest.Open(t)
	q := NewSyncQueue(store.SyncJobs())
	ctx := context.Background()

	ev := mirror.Event{
		Type:    mirror.EventType{Kind: mirror.KindServer, Op: mirror.OpUpdate},
		Payload: json.RawMessage(`{"uuid":"srv-1"}`),
	}
	id, err := q.EnqueueEvent(ctx, ev)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	jobs, err := q.Drain(ctx, 10)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, id, jobs[0].ID)

	decoded, err := DecodeEvent(jobs[0])
	require.NoError(t, err)
	assert.Equal(t, ev.Type, decoded.Type)
	assert.JSONEq(t, `{"uuid":"srv-1"}`, string(decoded.Payload))

	require.NoError(t, q.Complete(ctx, id))
	stats, err := q.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats[repository.JobStatusDone])
}

func TestEnqueueRejectsInvalidType(t *testing.T) {
	_, store := sqlitetest.Open(t)
	q := NewSyncQueue(store.SyncJobs())
	_, err := q.EnqueueEvent(context.Background(), mirror.Event{})
	assert.ErrorIs(t, err, mirror.ErrMalformedPayload)
}

func TestServerDeletionJobAndFailure(t *testing.T) {
	_, store := sqlitetest.Open(t)
	q := NewSyncQueue(store.SyncJobs())
	ctx := context.Background()

	_, err := q.EnqueueServerDeletion(ctx, "")
	assert.Error(t, err)

	id, err := q.EnqueueServerDeletion(ctx, "srv-9")
	require.NoError(t, err)
	jobs, err := q.Drain(ctx, 1)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, repository.JobTypeServerDelete, jobs[0].Type)
	assert.Equal(t, "srv-9", jobs[0].Subject)

	_, err = DecodeEvent(jobs[0])
	assert.Error(t, err)

	require.NoError(t, q.Fail(ctx, id, errors.New("panel unreachable")))
	failed, err := q.List(ctx, repository.SyncJobFilter{Status: repository.JobStatusFailed})
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "panel unreachable", failed[0].LastError)
}

func TestPruneUsesRetention(t *testing.T) {
	_, store := sqlitetest.Open(t)
	q := NewSyncQueue(store.SyncJobs())
	ctx := context.Background()

	base := time.Unix(1_700_000_000, 0)
	q.now = func() time.Time { return base }
	id, err := q.EnqueueServerDeletion(ctx, "srv-1")
	require.NoError(t, err)
	_, err = q.Drain(ctx, 1)
	require.NoError(t, err)
	require.NoError(t, q.Complete(ctx, id))

	q.now = func() time.Time { return base.Add(time.Hour) }
	pruned, err := q.Prune(ctx, 2*time.Hour)
	require.NoError(t, err)
	assert.Zero(t, pruned)

	pruned, err = q.Prune(ctx, 30*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), pruned)
}
