package invalidation

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mohammed-shakir/stac-mosaic/internal/core/observability"
)

// Invalidator drops the cached sample of one collection.
type Invalidator interface {
	Invalidate(ctx context.Context, catalog, collection string) error
}

// Applier validates events, skips stale ones and forwards the rest to an Invalidator.
type Applier struct {
	inv    Invalidator
	seen   *tsDedupe
	logger *slog.Logger
	source string
}

// NewApplier builds an Applier remembering the last timestamp of up to dedupeSize
// collections. source labels the invalidation counter.
func NewApplier(logger *slog.Logger, inv Invalidator, dedupeSize int, source string) *Applier {
	if logger == nil {
		logger = slog.Default()
	}
	if source == "" {
		source = "event"
	}
	return &Applier{inv: inv, seen: newTSDedupe(dedupeSize), logger: logger, source: source}
}

// Apply reports whether the event reached the invalidator. Stale events return
// false and no error. A failed invalidation is not recorded so a redelivery retries it.
func (a *Applier) Apply(ctx context.Context, ev Event) (bool, error) {
	if err := ev.Validate(); err != nil {
		observability.IncInvalidationEvent("invalid", err)
		return false, err
	}
	key := ev.dedupeKey()
	ts := ev.TS.UnixNano()
	if !a.seen.shouldApply(key, ts) {
		observability.IncInvalidationEvent("stale", nil)
		a.logger.Debug("stale invalidation event skipped",
			"catalog", ev.Catalog, "collection", ev.Collection, "ts", ev.TS)
		return false, nil
	}
	if err := a.inv.Invalidate(ctx, ev.Catalog, ev.Collection); err != nil {
		observability.IncInvalidationEvent(ev.Op, err)
		return false, fmt.Errorf("invalidate %s %s: %w", ev.Catalog, ev.Collection, err)
	}
	a.seen.record(key, ts)
	observability.IncInvalidationEvent(ev.Op, nil)
	observability.IncSampleInvalidation(a.source)
	return true, nil
}
