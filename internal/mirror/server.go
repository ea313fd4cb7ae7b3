package mirror

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/creamcroissant/panelmirror/internal/repository"
	"github.com/creamcroissant/panelmirror/internal/support/slug"
)

const serverSlugLength = 10

func (d *Dispatcher) decodeServer(raw json.RawMessage) (serverPayload, error) {
	var p serverPayload
	if err := decode(raw, &p); err != nil {
		return p, err
	}
	if p.UUID == "" {
		return p, fmt.Errorf("%w: server uuid is required", ErrMalformedPayload)
	}
	return p, nil
}

// limitsFrom converts remote percent/MB limits to local cores/MiB.
func (d *Dispatcher) limitsFrom(p serverPayload, oomDefault bool) repository.ServerLimits {
	oom := oomDefault
	if p.OOMKiller != nil {
		oom = bool(*p.OOMKiller)
	}
	return repository.ServerLimits{
		CPU:       d.limits.CoresFromPercent(float64(p.CPU)),
		Memory:    d.limits.MiBFromMB(int64(p.Memory)),
		Swap:      int64(p.Swap),
		Disk:      d.limits.MiBFromMB(int64(p.Disk)),
		IO:        int64(p.IO),
		Threads:   deref(p.Threads),
		OOMKiller: oom,
	}
}

func featureLimitsFrom(p serverPayload) repository.FeatureLimits {
	return repository.FeatureLimits{
		Databases:   int64(p.DatabaseLimit),
		Allocations: int64(p.AllocationLimit),
		Backups:     int64(p.BackupLimit),
	}
}

func variablesFrom(p serverPayload) map[string]string {
	vars := make(map[string]string, len(p.Variables))
	for _, v := range p.Variables {
		if v.EnvVariable == "" || v.ServerValue == nil {
			continue
		}
		vars[v.EnvVariable] = *v.ServerValue
	}
	return vars
}

// setAssigned flips an allocation flag, tolerating allocations that are not mirrored.
func setAssigned(ctx context.Context, tx repository.Store, originID int64, assigned bool) error {
	if originID <= 0 {
		return nil
	}
	err := tx.Allocations().SetAssigned(ctx, originID, assigned)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	return err
}

func (d *Dispatcher) createServer(ctx context.Context, raw json.RawMessage) (Outcome, string, error) {
	p, err := d.decodeServer(raw)
	if err != nil {
		return Dropped, "", err
	}
	exists, err := d.store.Eggs().ExistsByOriginID(ctx, int64(p.EggID))
	if err != nil {
		return Dropped, p.UUID, err
	}
	if !exists {
		return Dropped, p.UUID, fmt.Errorf("%w: egg %d", ErrMissingReference, p.EggID)
	}

	server := &repository.Server{
		OriginID:          int64(p.ID),
		UUID:              p.UUID,
		Name:              p.Name,
		Slug:              slug.Random(serverSlugLength),
		Description:       d.clean(p.Description),
		AllocationID:      int64(p.AllocationID),
		NodeID:            int64(p.NodeID),
		OwnerID:           int64(p.OwnerID),
		EggID:             int64(p.EggID),
		StartOnCompletion: true,
		DockerImage:       p.Image,
		Startup:           p.Startup,
		Limits:            d.limitsFrom(p, true),
		FeatureLimits:     featureLimitsFrom(p),
		EggVariables:      variablesFrom(p),
	}

	outcome := Applied
	err = d.store.WithTx(ctx, func(tx repository.Store) error {
		created, err := tx.Servers().Create(ctx, server)
		if err != nil {
			return err
		}
		if !created {
			outcome = Skipped
			return nil
		}
		return setAssigned(ctx, tx, server.AllocationID, true)
	})
	if err != nil {
		return Dropped, p.UUID, err
	}
	return outcome, p.UUID, nil
}

func (d *Dispatcher) updateServer(ctx context.Context, raw json.RawMessage) (Outcome, string, error) {
	p, err := d.decodeServer(raw)
	if err != nil {
		return Dropped, "", err
	}
	err = d.store.WithTx(ctx, func(tx repository.Store) error {
		server, err := tx.Servers().FindByUUID(ctx, p.UUID)
		if err != nil {
			return err
		}
		previousAllocation := server.AllocationID

		server.Name = p.Name
		server.Description = d.clean(p.Description)
		server.AllocationID = int64(p.AllocationID)
		server.DockerImage = p.Image
		if p.Variables != nil {
			server.EggVariables = variablesFrom(p)
		}
		server.Limits = d.limitsFrom(p, server.Limits.OOMKiller)
		server.FeatureLimits = featureLimitsFrom(p)
		server.UpdatedAt = int64(p.UpdatedAt)
		if err := tx.Servers().Update(ctx, server); err != nil {
			return err
		}

		if previousAllocation != server.AllocationID {
			if err := setAssigned(ctx, tx, previousAllocation, false); err != nil {
				return err
			}
			return setAssigned(ctx, tx, server.AllocationID, true)
		}
		return nil
	})
	if err != nil {
		return Dropped, p.UUID, err
	}
	return Applied, p.UUID, nil
}

func (d *Dispatcher) deleteServer(ctx context.Context, raw json.RawMessage) (Outcome, string, error) {
	p, err := d.decodeServer(raw)
	if err != nil {
		return Dropped, "", err
	}
	err = d.store.WithTx(ctx, func(tx repository.Store) error {
		server, err := tx.Servers().FindByUUID(ctx, p.UUID)
		if err != nil {
			return err
		}
		if err := tx.Servers().Delete(ctx, server.ID); err != nil {
			return err
		}
		return setAssigned(ctx, tx, server.AllocationID, false)
	})
	if err != nil {
		return Dropped, p.UUID, err
	}
	return Applied, p.UUID, nil
}
