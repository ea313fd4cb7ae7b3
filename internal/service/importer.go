// 文件路径: internal/service/importer.go
// 模块说明: 从远端面板批量导入节点、端口分配、模板与服务器，已存在的身份直接跳过。
package service

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/creamcroissant/panelmirror/internal/panel"
	"github.com/creamcroissant/panelmirror/internal/repository"
	"github.com/creamcroissant/panelmirror/internal/support/slug"
	"github.com/creamcroissant/panelmirror/internal/units"
)

// RemoteCatalog lists the remote entities the importer copies.
type RemoteCatalog interface {
	ListNodes(ctx context.Context) ([]panel.Node, error)
	ListAllocations(ctx context.Context, nodeID int64) ([]panel.Allocation, error)
	ListEggs(ctx context.Context) ([]panel.Egg, error)
	ListServers(ctx context.Context) ([]panel.Server, error)
}

// ImportReport counts the records created per kind; Failed counts records that could not be stored.
type ImportReport struct {
	Nodes       int `json:"nodes" yaml:"nodes"`
	Allocations int `json:"allocations" yaml:"allocations"`
	Eggs        int `json:"eggs" yaml:"eggs"`
	Servers     int `json:"servers" yaml:"servers"`
	Skipped     int `json:"skipped" yaml:"skipped"`
	Failed      int `json:"failed" yaml:"failed"`
}

// ImportService copies the remote catalogue into an empty or partial mirror.
type ImportService interface {
	Import(ctx context.Context) (ImportReport, error)
}

type importService struct {
	store     repository.Store
	remote    RemoteCatalog
	limits    units.LimitConverter
	sanitizer *bluemonday.Policy
	logger    *slog.Logger
}

// NewImportService wires the importer.
func NewImportService(store repository.Store, remote RemoteCatalog, conv units.Converter, logger *slog.Logger) ImportService {
	if logger == nil {
		logger = slog.Default()
	}
	return &importService{
		store:     store,
		remote:    remote,
		limits:    units.NewLimitConverter(conv),
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger,
	}
}

// Import runs nodes, allocations, eggs and servers in that order. A failed
// remote listing aborts the run; failed records are logged and counted.
func (s *importService) Import(ctx context.Context) (ImportReport, error) {
	var report ImportReport

	nodes, err := s.remote.ListNodes(ctx)
	if err != nil {
		return report, fmt.Errorf("list remote nodes: %w", err)
	}
	for _, n := range nodes {
		s.count(&report, &report.Nodes, "node", n.UUID, func() (bool, error) {
			return s.store.Nodes().Create(ctx, &repository.Node{
				OriginID:        n.ID,
				UUID:            n.UUID,
				Name:            n.Name,
				Slug:            slug.Make(n.Name),
				Description:     s.clean(n.Description),
				Public:          n.Public,
				MaintenanceMode: n.MaintenanceMode,
			})
		})
	}

	for _, n := range nodes {
		allocations, err := s.remote.ListAllocations(ctx, n.ID)
		if err != nil {
			return report, fmt.Errorf("list allocations of node %d: %w", n.ID, err)
		}
		for _, a := range allocations {
			identity := fmt.Sprintf("%s:%d", a.IP, a.Port)
			s.count(&report, &report.Allocations, "allocation", identity, func() (bool, error) {
				taken, err := s.store.Allocations().ExistsByNodePort(ctx, n.ID, a.Port)
				if err != nil || taken {
					return false, err
				}
				return s.store.Allocations().Create(ctx, &repository.Allocation{
					OriginID:     a.ID,
					NodeOriginID: n.ID,
					IP:           a.IP,
					Alias:        aliasOf(a),
					Port:         a.Port,
					Assigned:     a.Assigned,
					Public:       true,
				})
			})
		}
	}

	eggs, err := s.remote.ListEggs(ctx)
	if err != nil {
		return report, fmt.Errorf("list remote eggs: %w", err)
	}
	for _, e := range eggs {
		s.count(&report, &report.Eggs, "egg", e.UUID, func() (bool, error) {
			return s.store.Eggs().Create(ctx, &repository.Egg{
				OriginID:     e.ID,
				UUID:         e.UUID,
				Name:         e.Name,
				Description:  s.clean(e.Description),
				DockerImages: map[string]string(e.DockerImages),
				Startup:      e.Startup,
				Slug:         slug.Make(e.Name),
				Public:       true,
			})
		})
	}

	servers, err := s.remote.ListServers(ctx)
	if err != nil {
		return report, fmt.Errorf("list remote servers: %w", err)
	}
	for _, srv := range servers {
		s.count(&report, &report.Servers, "server", srv.UUID, func() (bool, error) {
			return s.importServer(ctx, srv)
		})
	}

	s.logger.Info("import finished",
		"nodes", report.Nodes, "allocations", report.Allocations, "eggs", report.Eggs,
		"servers", report.Servers, "skipped", report.Skipped, "failed", report.Failed)
	return report, nil
}

func (s *importService) importServer(ctx context.Context, srv panel.Server) (bool, error) {
	if srv.UUID == "" {
		return false, fmt.Errorf("%w: server %d has no uuid", ErrInvalidInput, srv.ID)
	}
	if _, err := s.store.Servers().FindByUUID(ctx, srv.UUID); err == nil {
		return false, nil
	} else if !errors.Is(err, repository.ErrNotFound) {
		return false, err
	}

	server := &repository.Server{
		OriginID:          srv.ID,
		UUID:              srv.UUID,
		Name:              srv.Name,
		Slug:              importedSlug(srv),
		Description:       s.clean(srv.Description),
		AllocationID:      srv.Allocation,
		NodeID:            srv.Node,
		OwnerID:           srv.User,
		EggID:             srv.Egg,
		StartOnCompletion: true,
		DockerImage:       srv.Container.Image,
		Startup:           srv.Container.StartupCommand,
		Limits: repository.ServerLimits{
			CPU:       s.limits.CoresFromPercent(srv.Limits.CPU),
			Memory:    s.limits.MiBFromMB(srv.Limits.Memory),
			Swap:      srv.Limits.Swap,
			Disk:      s.limits.MiBFromMB(srv.Limits.Disk),
			IO:        srv.Limits.IO,
			OOMKiller: srv.Limits.OOMKiller,
		},
		FeatureLimits: repository.FeatureLimits{
			Databases:   srv.FeatureLimits.Databases,
			Allocations: srv.FeatureLimits.Allocations,
			Backups:     srv.FeatureLimits.Backups,
		},
		EggVariables: stringifyEnvironment(srv.Container.Environment),
	}
	if srv.Limits.Threads != nil {
		server.Limits.Threads = *srv.Limits.Threads
	}
	if srv.Status != nil {
		server.Status = *srv.Status
	}

	created := false
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		ok, err := tx.Servers().Create(ctx, server)
		if err != nil || !ok {
			return err
		}
		created = true
		if server.AllocationID <= 0 {
			return nil
		}
		err = tx.Allocations().SetAssigned(ctx, server.AllocationID, true)
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return err
	})
	return created, err
}

// count runs one create and books the result.
func (s *importService) count(report *ImportReport, counter *int, kind, identity string, create func() (bool, error)) {
	created, err := create()
	switch {
	case err != nil:
		report.Failed++
		s.logger.Warn("import record failed", "kind", kind, "identity", identity, "error", err)
	case created:
		*counter++
	default:
		report.Skipped++
	}
}

func (s *importService) clean(text string) string {
	return strings.TrimSpace(html.UnescapeString(s.sanitizer.Sanitize(text)))
}

func aliasOf(a panel.Allocation) string {
	if a.Alias != nil && *a.Alias != "" {
		return *a.Alias
	}
	return a.IP
}

func importedSlug(srv panel.Server) string {
	if srv.ExternalID != nil {
		if s := slug.Make(*srv.ExternalID); s != "" {
			return s
		}
	}
	return slug.Random(serverSlugLength)
}

func stringifyEnvironment(env map[string]any) map[string]string {
	out := make(map[string]string, len(env))
	for k, v := range env {
		if v == nil {
			out[k] = ""
			continue
		}
		out[k] = fmt.Sprint(v)
	}
	return out
}
