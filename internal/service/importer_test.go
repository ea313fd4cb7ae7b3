package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/creamcroissant/panelmirror/internal/panel"
	"github.com/creamcroissant/panelmirror/internal/support/hash"
	"github.com/creamcroissant/panelmirror/internal/support/logging"
	"github.com/creamcroissant/panelmirror/internal/units"
)

func catalogue() *fakePanel {
	alias := "mc.example"
	threads := "0-3"
	return &fakePanel{
		nodes: []panel.Node{{ID: 1, UUID: "node-1", Name: "Tokyo 01", Description: "<b>fast</b> &amp; close", Public: true}},
		allocations: map[int64][]panel.Allocation{
			1: {
				{ID: 10, IP: "10.0.0.1", Alias: &alias, Port: 25565},
				{ID: 11, IP: "10.0.0.1", Port: 25566},
			},
		},
		eggs: []panel.Egg{{ID: 3, UUID: "egg-3", Name: "Paper", DockerImages: panel.DockerImages{"Java": "ghcr.io/java:21"}}},
		servers: []panel.Server{{
			ID: 5, UUID: "srv-1", Name: "survival", Allocation: 10, Node: 1, User: 2, Egg: 3,
			Limits:    panel.Limits{CPU: 200, Memory: 1000, Disk: 0, Threads: &threads},
			Container: panel.Container{Image: "ghcr.io/java:21", Environment: map[string]any{"MC_VERSION": "1.21", "EULA": true}},
		}},
	}
}

func TestImportCopiesCatalogueOnce(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	importer := NewImportService(store, catalogue(), units.NewConverter(units.Options{}), logging.Discard())

	report, err := importer.Import(ctx)
	require.NoError(t, err)
	assert.Equal(t, ImportReport{Nodes: 1, Allocations: 2, Eggs: 1, Servers: 1}, report)

	node, err := store.Nodes().FindByUUID(ctx, "node-1")
	require.NoError(t, err)
	assert.Equal(t, "fast & close", node.Description)
	assert.Equal(t, "tokyo-01", node.Slug)

	alloc, err := store.Allocations().FindByOriginID(ctx, 11)
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1", alloc.Alias)

	server, err := store.Servers().FindByUUID(ctx, "srv-1")
	require.NoError(t, err)
	assert.Equal(t, 2.0, server.Limits.CPU)
	assert.Equal(t, int64(954), server.Limits.Memory)
	assert.Equal(t, int64(0), server.Limits.Disk)
	assert.Equal(t, "0-3", server.Limits.Threads)
	assert.Equal(t, map[string]string{"MC_VERSION": "1.21", "EULA": "true"}, server.EggVariables)

	assigned, err := store.Allocations().FindByOriginID(ctx, 10)
	require.NoError(t, err)
	assert.True(t, assigned.Assigned)

	again, err := importer.Import(ctx)
	require.NoError(t, err)
	assert.Equal(t, ImportReport{Skipped: 5}, again)
}

func TestImportAbortsOnListFailure(t *testing.T) {
	remote := catalogue()
	remote.listErr = errors.New("unauthorized")
	_, err := NewImportService(openStore(t), remote, units.NewConverter(units.Options{}), logging.Discard()).Import(context.Background())
	assert.Error(t, err)
}

func TestUserImportGeneratesPasswords(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	hasher, err := hash.NewBcryptHasher(bcrypt.MinCost)
	require.NoError(t, err)
	remote := &fakePanel{users: []panel.User{
		{ID: 1, Username: "alice", Email: "alice@example.com", RootAdmin: true},
		{ID: 2, Username: "bob", Email: "bob@example.com", Language: "ja"},
	}}
	svc := NewUserImportService(store, remote, hasher, logging.Discard())

	result, err := svc.Import(ctx)
	require.NoError(t, err)
	require.Len(t, result.Imported, 2)

	for _, imported := range result.Imported {
		assert.Len(t, imported.Password, hash.DefaultPasswordLength)
		user, err := store.Users().FindByOriginID(ctx, imported.OriginID)
		require.NoError(t, err)
		assert.NoError(t, hasher.Compare(user.Password, imported.Password))
	}
	alice, err := store.Users().FindByOriginID(ctx, 1)
	require.NoError(t, err)
	assert.True(t, alice.RootAdmin)

	again, err := svc.Import(ctx)
	require.NoError(t, err)
	assert.Empty(t, again.Imported)
	assert.Equal(t, 2, again.Skipped)
}
