package mirror

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/creamcroissant/panelmirror/internal/repository"
	"github.com/creamcroissant/panelmirror/internal/support/slug"
)

func (d *Dispatcher) createEgg(ctx context.Context, raw json.RawMessage) (Outcome, string, error) {
	var p eggPayload
	if err := decode(raw, &p); err != nil {
		return Dropped, "", err
	}
	if p.UUID == "" || p.ID <= 0 {
		return Dropped, p.UUID, fmt.Errorf("%w: egg id and uuid are required", ErrMalformedPayload)
	}
	created, err := d.store.Eggs().Create(ctx, &repository.Egg{
		OriginID:     int64(p.ID),
		UUID:         p.UUID,
		Name:         p.Name,
		Description:  d.clean(p.Description),
		URL:          deref(p.UpdateURL),
		DockerImages: p.DockerImages,
		Startup:      p.Startup,
		Slug:         slug.Make(p.Name),
		Public:       true,
	})
	if err != nil {
		return Dropped, p.UUID, err
	}
	if !created {
		return Skipped, p.UUID, nil
	}
	return Applied, p.UUID, nil
}

// updateEgg refreshes the remote fields and, when the egg has an export URL,
// its variable definitions. An unreachable export keeps the previous variables.
func (d *Dispatcher) updateEgg(ctx context.Context, raw json.RawMessage) (Outcome, string, error) {
	var p eggPayload
	if err := decode(raw, &p); err != nil {
		return Dropped, "", err
	}
	if p.UUID == "" {
		return Dropped, "", fmt.Errorf("%w: egg uuid is required", ErrMalformedPayload)
	}
	egg, err := d.store.Eggs().FindByUUID(ctx, p.UUID)
	if err != nil {
		return Dropped, p.UUID, err
	}
	egg.Name = p.Name
	egg.Description = d.clean(p.Description)
	if p.DockerImages != nil {
		egg.DockerImages = p.DockerImages
	}
	if p.Startup != "" {
		egg.Startup = p.Startup
	}
	if url := deref(p.UpdateURL); url != "" {
		egg.URL = url
	}

	if egg.URL != "" && d.exporter != nil {
		export, err := d.exporter.FetchEggExport(ctx, egg.URL)
		if err != nil {
			d.logger.Warn("egg export unavailable, keeping variables", "egg", egg.UUID, "url", egg.URL, "error", err)
		} else {
			egg.Variables = make([]repository.EggVariable, 0, len(export.Variables))
			for _, v := range export.Variables {
				egg.Variables = append(egg.Variables, repository.EggVariable{
					Name:         v.Name,
					Description:  v.Description,
					EnvVariable:  v.EnvVariable,
					DefaultValue: v.DefaultValue,
					UserViewable: v.UserViewable,
					UserEditable: v.UserEditable,
					Rules:        string(v.Rules),
				})
			}
		}
	}

	if err := d.store.Eggs().Update(ctx, egg); err != nil {
		return Dropped, p.UUID, err
	}
	return Applied, p.UUID, nil
}

func (d *Dispatcher) deleteEgg(ctx context.Context, raw json.RawMessage) (Outcome, string, error) {
	var p eggPayload
	if err := decode(raw, &p); err != nil {
		return Dropped, "", err
	}
	identity := "id=" + strconv.FormatInt(int64(p.ID), 10)
	if p.ID <= 0 {
		return Dropped, identity, fmt.Errorf("%w: egg id is required", ErrMalformedPayload)
	}
	egg, err := d.store.Eggs().FindByOriginID(ctx, int64(p.ID))
	if err != nil {
		return Dropped, identity, err
	}
	if err := d.store.Eggs().Delete(ctx, egg.ID); err != nil {
		return Dropped, identity, err
	}
	return Applied, identity, nil
}
