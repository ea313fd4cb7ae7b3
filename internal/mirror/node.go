package mirror

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/creamcroissant/panelmirror/internal/repository"
	"github.com/creamcroissant/panelmirror/internal/support/slug"
)

func (d *Dispatcher) decodeNode(raw json.RawMessage) (nodePayload, error) {
	var p nodePayload
	if err := decode(raw, &p); err != nil {
		return p, err
	}
	if p.UUID == "" {
		return p, fmt.Errorf("%w: node uuid is required", ErrMalformedPayload)
	}
	return p, nil
}

func (d *Dispatcher) createNode(ctx context.Context, raw json.RawMessage) (Outcome, string, error) {
	p, err := d.decodeNode(raw)
	if err != nil {
		return Dropped, "", err
	}
	if p.ID <= 0 {
		return Dropped, p.UUID, fmt.Errorf("%w: node id is required", ErrMalformedPayload)
	}
	created, err := d.store.Nodes().Create(ctx, &repository.Node{
		OriginID:        int64(p.ID),
		UUID:            p.UUID,
		Name:            p.Name,
		Slug:            slug.Make(p.Name),
		Description:     d.clean(p.Description),
		Public:          bool(p.Public),
		MaintenanceMode: bool(p.MaintenanceMode),
	})
	if err != nil {
		return Dropped, p.UUID, err
	}
	if !created {
		return Skipped, p.UUID, nil
	}
	return Applied, p.UUID, nil
}

func (d *Dispatcher) updateNode(ctx context.Context, raw json.RawMessage) (Outcome, string, error) {
	p, err := d.decodeNode(raw)
	if err != nil {
		return Dropped, "", err
	}
	node, err := d.store.Nodes().FindByUUID(ctx, p.UUID)
	if err != nil {
		return Dropped, p.UUID, err
	}
	node.Name = p.Name
	node.Description = d.clean(p.Description)
	node.MaintenanceMode = bool(p.MaintenanceMode)
	node.Public = bool(p.Public)
	if err := d.store.Nodes().Update(ctx, node); err != nil {
		return Dropped, p.UUID, err
	}
	return Applied, p.UUID, nil
}

func (d *Dispatcher) deleteNode(ctx context.Context, raw json.RawMessage) (Outcome, string, error) {
	p, err := d.decodeNode(raw)
	if err != nil {
		return Dropped, "", err
	}
	node, err := d.store.Nodes().FindByUUID(ctx, p.UUID)
	if err != nil {
		return Dropped, p.UUID, err
	}
	if err := d.store.Nodes().Delete(ctx, node.ID); err != nil {
		return Dropped, p.UUID, err
	}
	return Applied, p.UUID, nil
}
