package sqlite_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/creamcroissant/panelmirror/internal/repository"
	"github.com/creamcroissant/panelmirror/internal/repository/sqlite/sqlitetest"
)

func TestNodeCreateIsIdempotent(t *testing.T) {
	_, store := sqlitetest.Open(t)
	ctx := context.Background()

	node := &repository.Node{OriginID: 7, UUID: "node-7", Name: "Node A", Slug: "node-a", Public: true}
	created, err := store.Nodes().Create(ctx, node)
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotZero(t, node.ID)

	created, err = store.Nodes().Create(ctx, &repository.Node{OriginID: 7, UUID: "node-7", Name: "Other"})
	require.NoError(t, err)
	assert.False(t, created)

	got, err := store.Nodes().FindByUUID(ctx, "node-7")
	require.NoError(t, err)
	assert.Equal(t, "Node A", got.Name)
	assert.True(t, got.Public)
}

func TestUpdateMissingRowReturnsNotFound(t *testing.T) {
	_, store := sqlitetest.Open(t)
	err := store.Nodes().Update(context.Background(), &repository.Node{ID: 999, Name: "ghost"})
	assert.ErrorIs(t, err, repository.ErrNotFound)

	_, err = store.Eggs().FindByUUID(context.Background(), "missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestEggJSONColumnsRoundTrip(t *testing.T) {
	_, store := sqlitetest.Open(t)
	ctx := context.Background()

	egg := &repository.Egg{
		OriginID:     3,
		UUID:         "egg-3",
		Name:         "Paper",
		DockerImages: map[string]string{"Java 21": "ghcr.io/java:21"},
		Variables: []repository.EggVariable{
			{Name: "Version", EnvVariable: "MC_VERSION", DefaultValue: "latest", UserViewable: true},
		},
	}
	_, err := store.Eggs().Create(ctx, egg)
	require.NoError(t, err)

	got, err := store.Eggs().FindByOriginID(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, egg.DockerImages, got.DockerImages)
	require.Len(t, got.Variables, 1)
	assert.Equal(t, "MC_VERSION", got.Variables[0].EnvVariable)

	exists, err := store.Eggs().ExistsByOriginID(ctx, 3)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestServerCreateSkipsDuplicateUUID(t *testing.T) {
	_, store := sqlitetest.Open(t)
	ctx := context.Background()

	server := &repository.Server{
		OriginID: 11, UUID: "srv-11", Name: "Survival", Slug: "survival",
		AllocationID: 1, NodeID: 2, OwnerID: 3, EggID: 4,
		Limits: repository.ServerLimits{CPU: 1.5, Memory: 2048, Disk: -1},
	}
	created, err := store.Servers().Create(ctx, server)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = store.Servers().Create(ctx, &repository.Server{UUID: "srv-11", Name: "Dup", Slug: "dup"})
	require.NoError(t, err)
	assert.False(t, created)

	got, err := store.Servers().FindByUUID(ctx, "srv-11")
	require.NoError(t, err)
	assert.Equal(t, 1.5, got.Limits.CPU)
	assert.Equal(t, int64(-1), got.Limits.Disk)

	require.NoError(t, store.Servers().UpdateStatus(ctx, "srv-11", "running"))
	uuids, err := store.Servers().ListUUIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"srv-11"}, uuids)
}

func TestServerCreateSlugCollisionFails(t *testing.T) {
	_, store := sqlitetest.Open(t)
	ctx := context.Background()

	created, err := store.Servers().Create(ctx, &repository.Server{UUID: "srv-1", Name: "One", Slug: "a1b2c3d4e5"})
	require.NoError(t, err)
	require.True(t, created)

	created, err = store.Servers().Create(ctx, &repository.Server{UUID: "srv-2", Name: "Two", Slug: "a1b2c3d4e5"})
	require.Error(t, err)
	assert.False(t, created)

	_, err = store.Servers().FindByUUID(ctx, "srv-2")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestLocalServersWithoutUUIDCoexist(t *testing.T) {
	_, store := sqlitetest.Open(t)
	ctx := context.Background()

	for _, slug := range []string{"a", "b"} {
		created, err := store.Servers().Create(ctx, &repository.Server{Name: slug, Slug: slug})
		require.NoError(t, err)
		assert.True(t, created)
	}
	uuids, err := store.Servers().ListUUIDs(ctx)
	require.NoError(t, err)
	assert.Empty(t, uuids)
}

func TestWithTxRollsBackOnError(t *testing.T) {
	_, store := sqlitetest.Open(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := store.WithTx(ctx, func(tx repository.Store) error {
		_, err := tx.Nodes().Create(ctx, &repository.Node{OriginID: 1, UUID: "n1", Name: "n1"})
		require.NoError(t, err)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = store.Nodes().FindByOriginID(ctx, 1)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestAllocationAssignment(t *testing.T) {
	_, store := sqlitetest.Open(t)
	ctx := context.Background()

	_, err := store.Allocations().Create(ctx, &repository.Allocation{OriginID: 5, NodeOriginID: 2, IP: "10.0.0.1", Port: 25565})
	require.NoError(t, err)

	exists, err := store.Allocations().ExistsByNodePort(ctx, 2, 25565)
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, store.Allocations().SetAssigned(ctx, 5, true))
	got, err := store.Allocations().FindByNodeAndOriginID(ctx, 2, 5)
	require.NoError(t, err)
	assert.True(t, got.Assigned)

	assert.ErrorIs(t, store.Allocations().SetAssigned(ctx, 404, false), repository.ErrNotFound)
}

func TestUserLookup(t *testing.T) {
	_, store := sqlitetest.Open(t)
	ctx := context.Background()

	user := &repository.User{OriginID: 9, Name: "alice", Email: "alice@example.com", Password: "hash"}
	_, err := store.Users().Create(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, "en", user.Lang)

	exists, err := store.Users().ExistsByEmailAndName(ctx, "alice@example.com", "alice")
	require.NoError(t, err)
	assert.True(t, exists)

	got, err := store.Users().FindByOriginID(ctx, 9)
	require.NoError(t, err)
	assert.Equal(t, "UTC", got.Timezone)

	count, err := store.Users().Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}
