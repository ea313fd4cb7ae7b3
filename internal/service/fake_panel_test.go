package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/creamcroissant/panelmirror/internal/panel"
	"github.com/creamcroissant/panelmirror/internal/repository"
	"github.com/creamcroissant/panelmirror/internal/repository/sqlite"
	"github.com/creamcroissant/panelmirror/internal/repository/sqlite/sqlitetest"
)

// fakePanel is an in-memory stand-in for the remote panel API.
type fakePanel struct {
	servers     []panel.Server
	nodes       []panel.Node
	allocations map[int64][]panel.Allocation
	eggs        []panel.Egg
	users       []panel.User

	findErr   error
	deleteErr error
	createErr error
	listErr   error

	deleted []int64
	created []panel.CreateServerRequest
}

func (f *fakePanel) FindServerByUUID(_ context.Context, uuid string) (*panel.Server, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	for i := range f.servers {
		if f.servers[i].UUID == uuid {
			return &f.servers[i], nil
		}
	}
	return nil, panel.ErrServerNotFound
}

func (f *fakePanel) DeleteServer(_ context.Context, id int64) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakePanel) CreateServer(_ context.Context, req panel.CreateServerRequest) (*panel.Server, error) {
	f.created = append(f.created, req)
	if f.createErr != nil {
		return nil, f.createErr
	}
	status := "installing"
	return &panel.Server{ID: 77, UUID: "remote-uuid-77", Name: req.Name, Status: &status}, nil
}

func (f *fakePanel) ListNodes(context.Context) ([]panel.Node, error) { return f.nodes, f.listErr }

func (f *fakePanel) ListAllocations(_ context.Context, nodeID int64) ([]panel.Allocation, error) {
	return f.allocations[nodeID], f.listErr
}

func (f *fakePanel) ListEggs(context.Context) ([]panel.Egg, error) { return f.eggs, f.listErr }

func (f *fakePanel) ListServers(context.Context) ([]panel.Server, error) { return f.servers, f.listErr }

func (f *fakePanel) ListUsers(context.Context) ([]panel.User, error) { return f.users, f.listErr }

func openStore(t *testing.T) *sqlite.Store {
	t.Helper()
	_, store := sqlitetest.Open(t)
	return store
}

func seedAllocation(t *testing.T, store repository.Store, originID, node int64, port int, assigned bool) {
	t.Helper()
	ok, err := store.Allocations().Create(context.Background(), &repository.Allocation{
		OriginID: originID, NodeOriginID: node, IP: "10.0.0.1", Alias: "play.example", Port: port, Assigned: assigned, Public: true,
	})
	require.NoError(t, err)
	require.True(t, ok)
}

func seedServer(t *testing.T, store repository.Store, uuid string, allocation int64) *repository.Server {
	t.Helper()
	server := &repository.Server{
		OriginID: 5, UUID: uuid, Name: "survival", Slug: "slug-" + uuid, AllocationID: allocation,
		NodeID: 1, OwnerID: 1, EggID: 3,
	}
	ok, err := store.Servers().Create(context.Background(), server)
	require.NoError(t, err)
	require.True(t, ok)
	return server
}
