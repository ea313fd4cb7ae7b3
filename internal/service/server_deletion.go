// 文件路径: internal/service/server_deletion.go
// 模块说明: 服务器删除流程：先按 uuid 查找并删除远端服务器，成功后在一个本地事务里释放端口并删除镜像行。
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/creamcroissant/panelmirror/internal/panel"
	"github.com/creamcroissant/panelmirror/internal/repository"
)

// RemoteServers is the slice of the panel API the deletion workflow needs.
type RemoteServers interface {
	FindServerByUUID(ctx context.Context, uuid string) (*panel.Server, error)
	DeleteServer(ctx context.Context, id int64) error
}

// DeletionResult reports what the workflow did. The zero value means the
// remote panel had no such server and nothing was changed.
type DeletionResult struct {
	UUID               string
	RemoteID           int64
	RemoteDeleted      bool
	LocalDeleted       bool
	AllocationReleased bool
}

// ServerDeletionService removes a server remotely, then locally.
type ServerDeletionService interface {
	Delete(ctx context.Context, uuid string) (DeletionResult, error)
}

type serverDeletionService struct {
	store  repository.Store
	remote RemoteServers
	logger *slog.Logger
}

// NewServerDeletionService wires the deletion workflow.
func NewServerDeletionService(store repository.Store, remote RemoteServers, logger *slog.Logger) ServerDeletionService {
	if logger == nil {
		logger = slog.Default()
	}
	return &serverDeletionService{store: store, remote: remote, logger: logger}
}

func (s *serverDeletionService) Delete(ctx context.Context, uuid string) (DeletionResult, error) {
	if uuid == "" {
		return DeletionResult{}, fmt.Errorf("%w: server uuid is required / 服务器 uuid 不能为空", ErrInvalidInput)
	}

	remote, err := s.remote.FindServerByUUID(ctx, uuid)
	if errors.Is(err, panel.ErrServerNotFound) {
		s.logger.Warn("remote server not found, local mirror left untouched", "uuid", uuid)
		return DeletionResult{}, nil
	}
	if err != nil {
		return DeletionResult{}, fmt.Errorf("lookup remote server %s: %w", uuid, err)
	}

	result := DeletionResult{UUID: uuid, RemoteID: remote.ID}
	if err := s.remote.DeleteServer(ctx, remote.ID); err != nil {
		return result, fmt.Errorf("delete remote server %d: %w", remote.ID, err)
	}
	result.RemoteDeleted = true

	err = s.store.WithTx(ctx, func(tx repository.Store) error {
		server, err := tx.Servers().FindByUUID(ctx, uuid)
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if server.AllocationID > 0 {
			err := tx.Allocations().SetAssigned(ctx, server.AllocationID, false)
			switch {
			case err == nil:
				result.AllocationReleased = true
			case !errors.Is(err, repository.ErrNotFound):
				return err
			}
		}
		if err := tx.Servers().Delete(ctx, server.ID); err != nil {
			return err
		}
		result.LocalDeleted = true
		return nil
	})
	if err != nil {
		// Remote is gone but the local row survives; a later run finds nothing remotely and stops.
		s.logger.Error("local cleanup failed after remote delete", "uuid", uuid, "remote_id", remote.ID, "error", err)
		return DeletionResult{UUID: uuid, RemoteID: remote.ID, RemoteDeleted: true}, fmt.Errorf("delete local server %s: %w", uuid, err)
	}

	s.logger.Info("server deleted", "uuid", uuid, "remote_id", remote.ID, "local_deleted", result.LocalDeleted)
	return result, nil
}
