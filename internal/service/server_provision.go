// 文件路径: internal/service/server_provision.go
// 模块说明: 服务器创建流程：本地插入与远端创建放在同一个本地事务里，远端失败则回滚本地插入。
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/creamcroissant/panelmirror/internal/panel"
	"github.com/creamcroissant/panelmirror/internal/repository"
	"github.com/creamcroissant/panelmirror/internal/support/slug"
	"github.com/creamcroissant/panelmirror/internal/units"
)

const (
	serverSlugLength     = 10
	defaultInstallStatus = "installing"
)

// RemoteProvisioner creates servers on the panel.
type RemoteProvisioner interface {
	CreateServer(ctx context.Context, req panel.CreateServerRequest) (*panel.Server, error)
}

// ProvisionRequest describes a new server. Limits are in local units (cores, MiB);
// OwnerID, EggID and AllocationID are remote ids.
type ProvisionRequest struct {
	Name          string
	Description   string
	OwnerID       int64
	EggID         int64
	AllocationID  int64
	DockerImage   string
	Startup       string
	Environment   map[string]string
	Limits        repository.ServerLimits
	FeatureLimits repository.FeatureLimits
}

// ServerProvisionService creates servers remotely and mirrors them locally.
type ServerProvisionService interface {
	Provision(ctx context.Context, req ProvisionRequest) (*repository.Server, error)
}

type serverProvisionService struct {
	store  repository.Store
	remote RemoteProvisioner
	limits units.LimitConverter
	logger *slog.Logger
}

// NewServerProvisionService wires the provisioning workflow.
func NewServerProvisionService(store repository.Store, remote RemoteProvisioner, conv units.Converter, logger *slog.Logger) ServerProvisionService {
	if logger == nil {
		logger = slog.Default()
	}
	return &serverProvisionService{store: store, remote: remote, limits: units.NewLimitConverter(conv), logger: logger}
}

func (s *serverProvisionService) Provision(ctx context.Context, req ProvisionRequest) (*repository.Server, error) {
	req.Name = strings.TrimSpace(req.Name)
	switch {
	case req.Name == "":
		return nil, fmt.Errorf("%w: name is required / 名称不能为空", ErrInvalidInput)
	case req.OwnerID <= 0:
		return nil, fmt.Errorf("%w: owner is required / 所有者不能为空", ErrInvalidInput)
	case req.EggID <= 0:
		return nil, fmt.Errorf("%w: egg is required / 模板不能为空", ErrInvalidInput)
	case req.AllocationID <= 0:
		return nil, fmt.Errorf("%w: allocation is required / 端口分配不能为空", ErrInvalidInput)
	}

	egg, err := s.store.Eggs().FindByOriginID(ctx, req.EggID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: egg %d", ErrEggNotMirrored, req.EggID)
	}
	if err != nil {
		return nil, err
	}
	allocation, err := s.store.Allocations().FindByOriginID(ctx, req.AllocationID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: allocation %d", ErrNotFound, req.AllocationID)
	}
	if err != nil {
		return nil, err
	}
	if allocation.Assigned {
		return nil, fmt.Errorf("%w: allocation %d", ErrAllocationInUse, req.AllocationID)
	}

	server := &repository.Server{
		Name:              req.Name,
		Slug:              slug.Random(serverSlugLength),
		Description:       req.Description,
		Status:            defaultInstallStatus,
		AllocationID:      allocation.OriginID,
		NodeID:            allocation.NodeOriginID,
		OwnerID:           req.OwnerID,
		EggID:             egg.OriginID,
		StartOnCompletion: true,
		DockerImage:       firstNonEmpty(req.DockerImage, defaultImage(egg)),
		Startup:           firstNonEmpty(req.Startup, egg.Startup),
		Limits:            req.Limits,
		FeatureLimits:     req.FeatureLimits,
		EggVariables:      environmentFor(egg, req.Environment),
	}

	err = s.store.WithTx(ctx, func(tx repository.Store) error {
		if _, err := tx.Servers().Create(ctx, server); err != nil {
			return fmt.Errorf("insert local server: %w", err)
		}
		created, err := s.remote.CreateServer(ctx, s.createRequest(server))
		if err != nil {
			return fmt.Errorf("create remote server: %w", err)
		}
		server.OriginID = created.ID
		server.UUID = created.UUID
		if created.Status != nil && *created.Status != "" {
			server.Status = *created.Status
		}
		server.UpdatedAt = 0
		if err := tx.Servers().Update(ctx, server); err != nil {
			return fmt.Errorf("store remote identity: %w", err)
		}
		return tx.Allocations().SetAssigned(ctx, allocation.OriginID, true)
	})
	if err != nil {
		s.logger.Error("server provisioning failed", "name", req.Name, "error", err)
		return nil, err
	}
	s.logger.Info("server provisioned", "uuid", server.UUID, "remote_id", server.OriginID, "allocation", server.AllocationID)
	return server, nil
}

// createRequest converts local cores/MiB limits into panel percent/MB.
func (s *serverProvisionService) createRequest(server *repository.Server) panel.CreateServerRequest {
	req := panel.CreateServerRequest{
		Name:              server.Name,
		Description:       server.Description,
		User:              server.OwnerID,
		Egg:               server.EggID,
		DockerImage:       server.DockerImage,
		Startup:           server.Startup,
		Environment:       server.EggVariables,
		OOMKiller:         server.Limits.OOMKiller,
		StartOnCompletion: server.StartOnCompletion,
		Limits: panel.Limits{
			Memory:    s.limits.MBFromMiB(server.Limits.Memory),
			Swap:      server.Limits.Swap,
			Disk:      s.limits.MBFromMiB(server.Limits.Disk),
			IO:        server.Limits.IO,
			CPU:       s.limits.PercentFromCores(server.Limits.CPU),
			OOMKiller: server.Limits.OOMKiller,
		},
		FeatureLimits: panel.FeatureLimits{
			Databases:   server.FeatureLimits.Databases,
			Allocations: server.FeatureLimits.Allocations,
			Backups:     server.FeatureLimits.Backups,
		},
	}
	if server.Limits.Threads != "" {
		threads := server.Limits.Threads
		req.Limits.Threads = &threads
	}
	if req.Environment == nil {
		req.Environment = map[string]string{}
	}
	req.Allocation.Default = server.AllocationID
	return req
}

// defaultImage picks the egg's first image by label so the choice is stable.
func defaultImage(egg *repository.Egg) string {
	if len(egg.DockerImages) == 0 {
		return ""
	}
	labels := make([]string, 0, len(egg.DockerImages))
	for label := range egg.DockerImages {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return egg.DockerImages[labels[0]]
}

// environmentFor starts from the egg's defaults and applies overrides.
func environmentFor(egg *repository.Egg, overrides map[string]string) map[string]string {
	env := make(map[string]string, len(egg.Variables)+len(overrides))
	for _, v := range egg.Variables {
		if v.EnvVariable != "" {
			env[v.EnvVariable] = v.DefaultValue
		}
	}
	for k, v := range overrides {
		env[k] = v
	}
	return env
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
