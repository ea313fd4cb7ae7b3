package job

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/creamcroissant/panelmirror/internal/async"
	"github.com/creamcroissant/panelmirror/internal/cache"
	"github.com/creamcroissant/panelmirror/internal/mirror"
	"github.com/creamcroissant/panelmirror/internal/panel"
	"github.com/creamcroissant/panelmirror/internal/repository"
	"github.com/creamcroissant/panelmirror/internal/repository/sqlite"
	"github.com/creamcroissant/panelmirror/internal/repository/sqlite/sqlitetest"
	"github.com/creamcroissant/panelmirror/internal/service"
	"github.com/creamcroissant/panelmirror/internal/support/hash"
	"github.com/creamcroissant/panelmirror/internal/support/logging"
	"github.com/creamcroissant/panelmirror/internal/units"
)

type fakeDeletions struct {
	mu     sync.Mutex
	uuids  []string
	result service.DeletionResult
	err    error
}

func (f *fakeDeletions) Delete(_ context.Context, uuid string) (service.DeletionResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uuids = append(f.uuids, uuid)
	return f.result, f.err
}

func newDispatcher(t *testing.T, store *sqlite.Store) *mirror.Dispatcher {
	t.Helper()
	hasher, err := hash.NewBcryptHasher(bcrypt.MinCost)
	require.NoError(t, err)
	return mirror.NewDispatcher(store, units.NewConverter(units.Options{}), hasher, logging.Discard())
}

func enqueue(t *testing.T, q *async.SyncQueue, kind mirror.EntityKind, op mirror.Operation, payload string) string {
	t.Helper()
	id, err := q.EnqueueEvent(context.Background(), mirror.Event{
		Type:    mirror.EventType{Kind: kind, Op: op},
		Payload: json.RawMessage(payload),
	})
	require.NoError(t, err)
	return id
}

func TestSyncWorkerAppliesAndFinishesJobs(t *testing.T) {
	_, store := sqlitetest.Open(t)
	ctx := context.Background()
	q := async.NewSyncQueue(store.SyncJobs())
	deletions := &fakeDeletions{result: service.DeletionResult{UUID: "srv-9", RemoteDeleted: true}}

	okID := enqueue(t, q, mirror.KindNode, mirror.OpCreate, `{"id":1,"uuid":"n-1","name":"Tokyo"}`)
	badID := enqueue(t, q, mirror.KindNode, mirror.OpUpdate, `{"id":2,"uuid":"n-unknown","name":"x"}`)
	delID, err := q.EnqueueServerDeletion(ctx, "srv-9")
	require.NoError(t, err)

	worker := NewSyncWorkerJob(q, newDispatcher(t, store), deletions, 2, 10, logging.Discard())
	require.NoError(t, worker.Run(ctx))

	node, err := store.Nodes().FindByUUID(ctx, "n-1")
	require.NoError(t, err)
	assert.Equal(t, "Tokyo", node.Name)
	assert.Equal(t, []string{"srv-9"}, deletions.uuids)

	for id, want := range map[string]repository.JobStatus{
		okID:  repository.JobStatusDone,
		badID: repository.JobStatusFailed,
		delID: repository.JobStatusDone,
	} {
		job, err := store.SyncJobs().FindByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, want, job.Status, id)
	}

	stats, err := q.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats[repository.JobStatusPending])
	assert.Zero(t, stats[repository.JobStatusRunning])
}

func TestSyncWorkerRecordsDeletionFailure(t *testing.T) {
	_, store := sqlitetest.Open(t)
	ctx := context.Background()
	q := async.NewSyncQueue(store.SyncJobs())
	deletions := &fakeDeletions{err: errors.New("remote api: 500")}

	id, err := q.EnqueueServerDeletion(ctx, "srv-1")
	require.NoError(t, err)
	require.NoError(t, NewSyncWorkerJob(q, newDispatcher(t, store), deletions, 1, 1, logging.Discard()).Run(ctx))

	job, err := store.SyncJobs().FindByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, repository.JobStatusFailed, job.Status)
	assert.Contains(t, job.LastError, "500")
}

func TestSyncWorkerWithEmptyQueue(t *testing.T) {
	_, store := sqlitetest.Open(t)
	q := async.NewSyncQueue(store.SyncJobs())
	assert.NoError(t, NewSyncWorkerJob(q, newDispatcher(t, store), nil, 0, 0, nil).Run(context.Background()))

	var nilJob *SyncWorkerJob
	assert.Error(t, nilJob.Run(context.Background()))
}

type fakeResources struct {
	mu     sync.Mutex
	states map[string]string
	calls  int
}

func (f *fakeResources) ServerResources(_ context.Context, uuid string) (*panel.Resources, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	state, ok := f.states[uuid]
	if !ok {
		return nil, &panel.APIError{Method: "GET", Path: "/api/client/servers/" + uuid + "/resources", StatusCode: 404}
	}
	return &panel.Resources{CurrentState: state}, nil
}

func TestServerStatusJobOverwritesStatus(t *testing.T) {
	_, store := sqlitetest.Open(t)
	ctx := context.Background()
	for _, uuid := range []string{"srv-1", "srv-2"} {
		ok, err := store.Servers().Create(ctx, &repository.Server{UUID: uuid, Name: uuid, Slug: "s-" + uuid, Status: "installing"})
		require.NoError(t, err)
		require.True(t, ok)
	}

	remote := &fakeResources{states: map[string]string{"srv-1": "running"}}
	reg := prometheus.NewRegistry()
	metrics := NewStatusMetrics(reg, "test")
	statusJob := NewServerStatusJob(store.Servers(), remote, cache.NewStore(cache.Options{}), metrics, logging.Discard())

	require.NoError(t, statusJob.Run(ctx))
	srv1, err := store.Servers().FindByUUID(ctx, "srv-1")
	require.NoError(t, err)
	assert.Equal(t, "running", srv1.Status)
	srv2, err := store.Servers().FindByUUID(ctx, "srv-2")
	require.NoError(t, err)
	assert.Equal(t, "installing", srv2.Status)

	require.NoError(t, statusJob.Run(ctx))
	assert.Equal(t, 4, remote.calls)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.polls.WithLabelValues("updated")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.polls.WithLabelValues("unchanged")))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.polls.WithLabelValues("error")))
}

func TestServerStatusJobCorrectsLocalDrift(t *testing.T) {
	_, store := sqlitetest.Open(t)
	ctx := context.Background()
	_, err := store.Servers().Create(ctx, &repository.Server{UUID: "srv-1", Name: "survival", Slug: "s-srv-1", Status: "installing"})
	require.NoError(t, err)

	remote := &fakeResources{states: map[string]string{"srv-1": "running"}}
	statusJob := NewServerStatusJob(store.Servers(), remote, cache.NewStore(cache.Options{}), nil, logging.Discard())

	require.NoError(t, statusJob.Run(ctx))
	require.NoError(t, store.Servers().UpdateStatus(ctx, "srv-1", "offline"))
	require.NoError(t, statusJob.Run(ctx))

	srv, err := store.Servers().FindByUUID(ctx, "srv-1")
	require.NoError(t, err)
	assert.Equal(t, "running", srv.Status)
}

func TestSyncJobCleanupPrunesFinished(t *testing.T) {
	_, store := sqlitetest.Open(t)
	ctx := context.Background()
	q := async.NewSyncQueue(store.SyncJobs())
	id, err := q.EnqueueServerDeletion(ctx, "srv-1")
	require.NoError(t, err)
	_, err = q.Drain(ctx, 1)
	require.NoError(t, err)
	require.NoError(t, q.Complete(ctx, id))

	require.NoError(t, NewSyncJobCleanupJob(q, time.Hour, nil).Run(ctx))
	_, err = store.SyncJobs().FindByID(ctx, id)
	require.NoError(t, err)

	require.NoError(t, NewSyncJobCleanupJob(q, -time.Second, nil).Run(ctx))
}

type stubRunnable struct {
	err      error
	deadline bool
}

func (s *stubRunnable) Name() string { return "stub" }

func (s *stubRunnable) Run(ctx context.Context) error {
	_, s.deadline = ctx.Deadline()
	return s.err
}

func TestSchedulerRunOnceLogsFailure(t *testing.T) {
	logs := &bytes.Buffer{}
	s := NewScheduler(logging.New(logging.Options{Level: slog.LevelDebug, Output: logs}), time.Second)

	ok := &stubRunnable{}
	s.RunOnce(context.Background(), ok)
	assert.True(t, ok.deadline)

	s.RunOnce(context.Background(), &stubRunnable{err: errors.New("boom")})
	assert.Equal(t, 1, strings.Count(logs.String(), `"level":"ERROR"`))
}

func TestSchedulerRegister(t *testing.T) {
	s := NewScheduler(logging.Discard(), 0)
	_, err := s.Register("", &stubRunnable{})
	assert.Error(t, err)
	_, err = s.Register("@every 1m", nil)
	assert.Error(t, err)
	_, err = s.Register("not a schedule", &stubRunnable{})
	assert.Error(t, err)

	_, err = s.Register("@every 30s", &stubRunnable{})
	require.NoError(t, err)
	assert.Equal(t, []string{"stub"}, s.Jobs())

	s.Start()
	<-s.Stop().Done()
}
