// Package mirror applies remote panel change events to the local mirror.
package mirror

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
	"github.com/creamcroissant/panelmirror/internal/support/hash"
	"github.com/creamcroissant/panelmirror/internal/units"
)

// Outcome is the effect a delivery had on the mirror.
type Outcome int

const (
	// Applied means the mirror changed.
	Applied Outcome = iota + 1
	// Skipped means a create named an identity that is already mirrored.
	Skipped
	// Dropped means the delivery failed and was logged.
	Dropped
)

func (o Outcome) String() string {
	switch o {
	case Applied:
		return "applied"
	case Skipped:
		return "skipped"
	case Dropped:
		return "dropped"
	default:
		return "unknown"
	}
}

// EggExporter fetches the export document behind an egg's update URL.
type EggExporter interface {
	FetchEggExport(ctx context.Context, url string) (*panel.EggExport, error)
}

// Option customises a Dispatcher.
type Option func(*Dispatcher)

// WithEggExporter enables variable refresh on egg updates.
func WithEggExporter(e EggExporter) Option {
	return func(d *Dispatcher) { d.exporter = e }
}

// WithMetrics attaches outcome counters.
func WithMetrics(m *Metrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

// Dispatcher routes each event to the handler for its kind and operation.
type Dispatcher struct {
	store     repository.Store
	limits    units.LimitConverter
	hasher    hash.Hasher
	exporter  EggExporter
	sanitizer *bluemonday.Policy
	metrics   *Metrics
	logger    *slog.Logger
}

// NewDispatcher wires a dispatcher over store.
func NewDispatcher(store repository.Store, conv units.Converter, hasher hash.Hasher, logger *slog.Logger, opts ...Option) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Dispatcher{
		store:     store,
		limits:    units.NewLimitConverter(conv),
		hasher:    hasher,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Apply runs the handler for ev and reports what happened. Errors are *SyncError.
func (d *Dispatcher) Apply(ctx context.Context, ev Event) (Outcome, error) {
	var (
		outcome  Outcome
		identity string
		err      error
	)
	switch ev.Type.Kind {
	case KindNode:
		switch ev.Type.Op {
		case OpCreate:
			outcome, identity, err = d.createNode(ctx, ev.Payload)
		case OpUpdate:
			outcome, identity, err = d.updateNode(ctx, ev.Payload)
		case OpDelete:
			outcome, identity, err = d.deleteNode(ctx, ev.Payload)
		default:
			err = errUnknownType(ev.Type)
		}
	case KindAllocation:
		switch ev.Type.Op {
		case OpCreate:
			outcome, identity, err = d.createAllocation(ctx, ev.Payload)
		case OpUpdate:
			outcome, identity, err = d.updateAllocation(ctx, ev.Payload)
		case OpDelete:
			outcome, identity, err = d.deleteAllocation(ctx, ev.Payload)
		default:
			err = errUnknownType(ev.Type)
		}
	case KindEgg:
		switch ev.Type.Op {
		case OpCreate:
			outcome, identity, err = d.createEgg(ctx, ev.Payload)
		case OpUpdate:
			outcome, identity, err = d.updateEgg(ctx, ev.Payload)
		case OpDelete:
			outcome, identity, err = d.deleteEgg(ctx, ev.Payload)
		default:
			err = errUnknownType(ev.Type)
		}
	case KindServer:
		switch ev.Type.Op {
		case OpCreate:
			outcome, identity, err = d.createServer(ctx, ev.Payload)
		case OpUpdate:
			outcome, identity, err = d.updateServer(ctx, ev.Payload)
		case OpDelete:
			outcome, identity, err = d.deleteServer(ctx, ev.Payload)
		default:
			err = errUnknownType(ev.Type)
		}
	case KindUser:
		switch ev.Type.Op {
		case OpCreate:
			outcome, identity, err = d.createUser(ctx, ev.Payload)
		case OpUpdate:
			outcome, identity, err = d.updateUser(ctx, ev.Payload)
		case OpDelete:
			outcome, identity, err = d.deleteUser(ctx, ev.Payload)
		default:
			err = errUnknownType(ev.Type)
		}
	default:
		err = errUnknownType(ev.Type)
	}
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			err = fmt.Errorf("%w: %w", ErrRecordNotFound, err)
		}
		return Dropped, &SyncError{Type: ev.Type, Identity: identity, Err: err}
	}
	return outcome, nil
}

// Handle is the terminal boundary for a delivery: failures are logged once and never returned.
func (d *Dispatcher) Handle(ctx context.Context, ev Event) Outcome {
	outcome, err := d.Apply(ctx, ev)
	d.metrics.observe(ev.Type, outcome)
	switch {
	case err != nil:
		d.logger.Error("mirror sync failed", "event", ev.Type.String(), "error", err)
	case outcome == Skipped:
		d.logger.Debug("mirror sync skipped existing record", "event", ev.Type.String())
	default:
		d.logger.Debug("mirror sync applied", "event", ev.Type.String())
	}
	return outcome
}

func errUnknownType(t EventType) error {
	return fmt.Errorf("%w: unsupported event %s", ErrMalformedPayload, t)
}

// clean strips markup from remote free text; entities escaped by the policy are restored.
func (d *Dispatcher) clean(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(d.sanitizer.Sanitize(*s)))
}
