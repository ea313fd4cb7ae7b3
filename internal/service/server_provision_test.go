package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/creamcroissant/panelmirror/internal/repository"
	"github.com/creamcroissant/panelmirror/internal/support/logging"
	"github.com/creamcroissant/panelmirror/internal/units"
)

func seedEgg(t *testing.T, store repository.Store) {
	t.Helper()
	ok, err := store.Eggs().Create(context.Background(), &repository.Egg{
		OriginID:     3,
		UUID:         "egg-3",
		Name:         "Paper",
		DockerImages: map[string]string{"Java 21": "ghcr.io/java:21", "Java 17": "ghcr.io/java:17"},
		Variables: []repository.EggVariable{
			{Name: "Version", EnvVariable: "MC_VERSION", DefaultValue: "latest"},
			{Name: "Jar", EnvVariable: "SERVER_JARFILE", DefaultValue: "server.jar"},
		},
		Startup: "java -jar {{SERVER_JARFILE}}",
		Public:  true,
	})
	require.NoError(t, err)
	require.True(t, ok)
}

func newProvisioner(store repository.Store, remote *fakePanel) ServerProvisionService {
	return NewServerProvisionService(store, remote, units.NewConverter(units.Options{}), logging.Discard())
}

func TestProvisionConvertsLimitsAndMirrorsRemoteIdentity(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	seedEgg(t, store)
	seedAllocation(t, store, 10, 1, 25565, false)
	remote := &fakePanel{}

	server, err := newProvisioner(store, remote).Provision(ctx, ProvisionRequest{
		Name:         "  survival ",
		OwnerID:      2,
		EggID:        3,
		AllocationID: 10,
		Environment:  map[string]string{"MC_VERSION": "1.21"},
		Limits:       repository.ServerLimits{CPU: 1.5, Memory: 1024, Disk: -1, Swap: 0, IO: 500},
	})
	require.NoError(t, err)

	require.Len(t, remote.created, 1)
	req := remote.created[0]
	assert.Equal(t, "survival", req.Name)
	assert.Equal(t, 150.0, req.Limits.CPU)
	assert.Equal(t, int64(1074), req.Limits.Memory)
	assert.Equal(t, int64(-1), req.Limits.Disk)
	assert.Equal(t, int64(10), req.Allocation.Default)
	assert.Equal(t, "ghcr.io/java:17", req.DockerImage)
	assert.Equal(t, map[string]string{"MC_VERSION": "1.21", "SERVER_JARFILE": "server.jar"}, req.Environment)

	assert.Equal(t, "remote-uuid-77", server.UUID)
	stored, err := store.Servers().FindByUUID(ctx, "remote-uuid-77")
	require.NoError(t, err)
	assert.Equal(t, int64(77), stored.OriginID)
	assert.Equal(t, int64(1), stored.NodeID)
	assert.Equal(t, 1.5, stored.Limits.CPU)
	assert.Equal(t, int64(1024), stored.Limits.Memory)
	assert.Equal(t, "installing", stored.Status)

	alloc, err := store.Allocations().FindByOriginID(ctx, 10)
	require.NoError(t, err)
	assert.True(t, alloc.Assigned)
}

func TestProvisionRemoteFailureRollsBackLocalInsert(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	seedEgg(t, store)
	seedAllocation(t, store, 10, 1, 25565, false)
	remote := &fakePanel{createErr: errors.New("panel down")}

	_, err := newProvisioner(store, remote).Provision(ctx, ProvisionRequest{Name: "x", OwnerID: 2, EggID: 3, AllocationID: 10})
	require.Error(t, err)

	servers, err := store.Servers().List(ctx)
	require.NoError(t, err)
	assert.Empty(t, servers)
	alloc, err := store.Allocations().FindByOriginID(ctx, 10)
	require.NoError(t, err)
	assert.False(t, alloc.Assigned)
}

func TestProvisionValidation(t *testing.T) {
	store := openStore(t)
	seedEgg(t, store)
	seedAllocation(t, store, 10, 1, 25565, true)
	p := newProvisioner(store, &fakePanel{})
	ctx := context.Background()

	_, err := p.Provision(ctx, ProvisionRequest{OwnerID: 2, EggID: 3, AllocationID: 10})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = p.Provision(ctx, ProvisionRequest{Name: "x", OwnerID: 2, EggID: 99, AllocationID: 10})
	assert.ErrorIs(t, err, ErrEggNotMirrored)

	_, err = p.Provision(ctx, ProvisionRequest{Name: "x", OwnerID: 2, EggID: 3, AllocationID: 11})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = p.Provision(ctx, ProvisionRequest{Name: "x", OwnerID: 2, EggID: 3, AllocationID: 10})
	assert.ErrorIs(t, err, ErrAllocationInUse)
}
