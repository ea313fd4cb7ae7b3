package mirror

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/creamcroissant/panelmirror/internal/repository"
	"github.com/creamcroissant/panelmirror/internal/support/hash"
)

func (d *Dispatcher) decodeUser(raw json.RawMessage) (userPayload, string, error) {
	var p userPayload
	if err := decode(raw, &p); err != nil {
		return p, "", err
	}
	identity := "id=" + strconv.FormatInt(int64(p.ID), 10)
	if p.ID <= 0 {
		return p, identity, fmt.Errorf("%w: user id is required", ErrMalformedPayload)
	}
	return p, identity, nil
}

func (d *Dispatcher) createUser(ctx context.Context, raw json.RawMessage) (Outcome, string, error) {
	p, identity, err := d.decodeUser(raw)
	if err != nil {
		return Dropped, identity, err
	}
	_, err = d.store.Users().FindByOriginID(ctx, int64(p.ID))
	switch {
	case err == nil:
		return Skipped, identity, nil
	case !errors.Is(err, repository.ErrNotFound):
		return Dropped, identity, err
	}

	_, hashed, err := hash.NewRandomCredential(d.hasher)
	if err != nil {
		return Dropped, identity, err
	}
	created, err := d.store.Users().Create(ctx, &repository.User{
		OriginID:  int64(p.ID),
		Name:      p.Username,
		Email:     p.Email,
		Password:  hashed,
		Lang:      p.Language,
		Timezone:  p.Timezone,
		RootAdmin: bool(p.RootAdmin),
	})
	if err != nil {
		return Dropped, identity, err
	}
	if !created {
		return Skipped, identity, nil
	}
	return Applied, identity, nil
}

func (d *Dispatcher) updateUser(ctx context.Context, raw json.RawMessage) (Outcome, string, error) {
	p, identity, err := d.decodeUser(raw)
	if err != nil {
		return Dropped, identity, err
	}
	user, err := d.store.Users().FindByOriginID(ctx, int64(p.ID))
	if err != nil {
		return Dropped, identity, err
	}
	user.Name = p.Username
	user.Email = p.Email
	user.UpdatedAt = int64(p.UpdatedAt)
	if err := d.store.Users().Update(ctx, user); err != nil {
		return Dropped, identity, err
	}
	return Applied, identity, nil
}

func (d *Dispatcher) deleteUser(ctx context.Context, raw json.RawMessage) (Outcome, string, error) {
	p, identity, err := d.decodeUser(raw)
	if err != nil {
		return Dropped, identity, err
	}
	user, err := d.store.Users().FindByOriginID(ctx, int64(p.ID))
	if err != nil {
		return Dropped, identity, err
	}
	if err := d.store.Users().Delete(ctx, user.ID); err != nil {
		return Dropped, identity, err
	}
	return Applied, identity, nil
}
