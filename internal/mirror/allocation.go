package mirror

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/creamcroissant/panelmirror/internal/repository"
)

func (d *Dispatcher) decodeAllocation(raw json.RawMessage) (allocationPayload, string, error) {
	var p allocationPayload
	if err := decode(raw, &p); err != nil {
		return p, "", err
	}
	identity := fmt.Sprintf("node=%d id=%d", p.NodeID, p.ID)
	if p.ID <= 0 || p.NodeID <= 0 {
		return p, identity, fmt.Errorf("%w: allocation id and node_id are required", ErrMalformedPayload)
	}
	return p, identity, nil
}

func (d *Dispatcher) createAllocation(ctx context.Context, raw json.RawMessage) (Outcome, string, error) {
	p, identity, err := d.decodeAllocation(raw)
	if err != nil {
		return Dropped, identity, err
	}
	created, err := d.store.Allocations().Create(ctx, &repository.Allocation{
		OriginID:     int64(p.ID),
		NodeOriginID: int64(p.NodeID),
		IP:           p.IP,
		Alias:        deref(p.IPAlias),
		Port:         int(p.Port),
		Public:       true,
		Assigned:     false,
	})
	if err != nil {
		return Dropped, identity, err
	}
	if !created {
		return Skipped, identity, nil
	}
	return Applied, identity, nil
}

func (d *Dispatcher) updateAllocation(ctx context.Context, raw json.RawMessage) (Outcome, string, error) {
	p, identity, err := d.decodeAllocation(raw)
	if err != nil {
		return Dropped, identity, err
	}
	allocation, err := d.store.Allocations().FindByNodeAndOriginID(ctx, int64(p.NodeID), int64(p.ID))
	if err != nil {
		return Dropped, identity, err
	}
	allocation.Alias = deref(p.IPAlias)
	allocation.Port = int(p.Port)
	allocation.UpdatedAt = int64(p.UpdatedAt)
	if err := d.store.Allocations().Update(ctx, allocation); err != nil {
		return Dropped, identity, err
	}
	return Applied, identity, nil
}

func (d *Dispatcher) deleteAllocation(ctx context.Context, raw json.RawMessage) (Outcome, string, error) {
	p, identity, err := d.decodeAllocation(raw)
	if err != nil {
		return Dropped, identity, err
	}
	allocation, err := d.store.Allocations().FindByNodeAndOriginID(ctx, int64(p.NodeID), int64(p.ID))
	if err != nil {
		return Dropped, identity, err
	}
	if err := d.store.Allocations().Delete(ctx, allocation.ID); err != nil {
		return Dropped, identity, err
	}
	return Applied, identity, nil
}
