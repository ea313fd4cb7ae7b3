package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/creamcroissant/panelmirror/internal/panel"
	"github.com/creamcroissant/panelmirror/internal/repository"
	"github.com/creamcroissant/panelmirror/internal/support/logging"
)

func TestDeleteWithoutRemoteMatchLeavesLocalRow(t *testing.T) {
	store := openStore(t)
	seedAllocation(t, store, 10, 1, 25565, true)
	seedServer(t, store, "srv-1", 10)
	remote := &fakePanel{}

	result, err := NewServerDeletionService(store, remote, logging.Discard()).Delete(context.Background(), "srv-1")
	require.NoError(t, err)
	assert.Equal(t, DeletionResult{}, result)
	assert.Empty(t, remote.deleted)

	_, err = store.Servers().FindByUUID(context.Background(), "srv-1")
	assert.NoError(t, err)
	alloc, err := store.Allocations().FindByOriginID(context.Background(), 10)
	require.NoError(t, err)
	assert.True(t, alloc.Assigned)
}

func TestDeleteReleasesAllocationAndRemovesRow(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	seedAllocation(t, store, 10, 1, 25565, true)
	seedServer(t, store, "srv-1", 10)
	remote := &fakePanel{servers: []panel.Server{{ID: 42, UUID: "srv-1"}}}

	result, err := NewServerDeletionService(store, remote, logging.Discard()).Delete(ctx, "srv-1")
	require.NoError(t, err)
	assert.Equal(t, []int64{42}, remote.deleted)
	assert.Equal(t, DeletionResult{UUID: "srv-1", RemoteID: 42, RemoteDeleted: true, LocalDeleted: true, AllocationReleased: true}, result)

	_, err = store.Servers().FindByUUID(ctx, "srv-1")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	alloc, err := store.Allocations().FindByOriginID(ctx, 10)
	require.NoError(t, err)
	assert.False(t, alloc.Assigned)
}

func TestDeleteRemoteFailureKeepsLocalState(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	seedAllocation(t, store, 10, 1, 25565, true)
	seedServer(t, store, "srv-1", 10)
	apiErr := &panel.APIError{Method: "DELETE", Path: "/api/application/servers/42", StatusCode: 500}
	remote := &fakePanel{servers: []panel.Server{{ID: 42, UUID: "srv-1"}}, deleteErr: apiErr}

	result, err := NewServerDeletionService(store, remote, logging.Discard()).Delete(ctx, "srv-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, panel.ErrRemoteAPI)
	assert.False(t, result.RemoteDeleted)

	_, err = store.Servers().FindByUUID(ctx, "srv-1")
	assert.NoError(t, err)
	alloc, err := store.Allocations().FindByOriginID(ctx, 10)
	require.NoError(t, err)
	assert.True(t, alloc.Assigned)
}

func TestDeleteLookupFailureIsReturned(t *testing.T) {
	store := openStore(t)
	remote := &fakePanel{findErr: errors.New("dial tcp: timeout")}
	_, err := NewServerDeletionService(store, remote, logging.Discard()).Delete(context.Background(), "srv-1")
	assert.Error(t, err)
}

func TestDeleteRemoteOnlyServer(t *testing.T) {
	store := openStore(t)
	remote := &fakePanel{servers: []panel.Server{{ID: 9, UUID: "srv-remote"}}}
	result, err := NewServerDeletionService(store, remote, logging.Discard()).Delete(context.Background(), "srv-remote")
	require.NoError(t, err)
	assert.True(t, result.RemoteDeleted)
	assert.False(t, result.LocalDeleted)
}

func TestDeleteRequiresUUID(t *testing.T) {
	_, err := NewServerDeletionService(openStore(t), &fakePanel{}, logging.Discard()).Delete(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidInput)
}
