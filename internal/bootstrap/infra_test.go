package bootstrap

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/creamcroissant/panelmirror/internal/config"
	"github.com/creamcroissant/panelmirror/internal/job"
	"github.com/creamcroissant/panelmirror/internal/migrations"
	"github.com/creamcroissant/panelmirror/internal/mirror"
	"github.com/creamcroissant/panelmirror/internal/repository"
	"github.com/creamcroissant/panelmirror/internal/support/logging"
)

func TestBuildInfrastructureRequiresConfigAndDB(t *testing.T) {
	_, err := BuildInfrastructure(nil, nil, nil)
	require.Error(t, err)
	_, err = BuildInfrastructure(&config.Config{}, nil, nil)
	require.Error(t, err)
}

func TestBuildInfrastructureRejectsBadBcryptCost(t *testing.T) {
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "mirror.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = BuildInfrastructure(&config.Config{Auth: config.AuthConfig{BcryptCost: 99}}, db, logging.Discard())
	require.Error(t, err)
}

func TestInfrastructureAppliesQueuedEvent(t *testing.T) {
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "mirror.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, migrations.Up(db))

	cfg := &config.Config{
		Metrics: config.MetricsConfig{Enabled: true, Namespace: "infra"},
		Auth:    config.AuthConfig{BcryptCost: bcrypt.MinCost},
	}
	infra, err := BuildInfrastructure(cfg, db, logging.Discard())
	require.NoError(t, err)

	ctx := context.Background()
	_, err = infra.Queue.EnqueueEvent(ctx, mirror.Event{
		Type:    mirror.EventType{Kind: mirror.KindNode, Op: mirror.OpCreate},
		Payload: json.RawMessage(`{"id":3,"uuid":"node-3","name":"Frankfurt","public":true}`),
	})
	require.NoError(t, err)

	worker := job.NewSyncWorkerJob(infra.Queue, infra.Dispatcher, infra.Deletions, 1, 10, logging.Discard())
	require.NoError(t, worker.Run(ctx))

	node, err := infra.Store.Nodes().FindByUUID(ctx, "node-3")
	require.NoError(t, err)
	assert.Equal(t, "Frankfurt", node.Name)

	stats, err := infra.Queue.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats[repository.JobStatusDone])

	n, err := testutil.GatherAndCount(infra.Registry, "infra_mirror_events_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
