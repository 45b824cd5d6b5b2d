package cache

import (
	"context"
	"errors"
	"log/slog"

	"agent-console/internal/upstream"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Source tells the caller where a listing came from.
type Source string

const (
	SourceLive  Source = "live"
	SourceCache Source = "cache"
)

var (
	readsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "console_cache_reads_total",
		Help: "Resource reads by kind and the source that answered them.",
	}, []string{"kind", "source"})
	writeFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "console_cache_write_failures_total",
		Help: "Failed write-through upserts by kind.",
	}, []string{"kind"})
)

type Listing[T any] struct {
	Items  []T
	Source Source
}

// ReadThrough fetches a listing from the provider and falls back to the
// tenant's cached copy.
//
//   - non-empty live result: written through, returned as live
//   - unavailable or empty live result: cached rows, if any
//   - any other provider error (rejected, not found, cancellation): returned as is
//   - nothing cached: the unavailable error, or an empty live listing
//
// A failed write-through is logged and does not fail the read.
func ReadThrough[T any](ctx context.Context, store *Typed[T], tenantID uuid.UUID, fetch func(context.Context) ([]T, error), log *slog.Logger) (Listing[T], error) {
	if log == nil {
		log = slog.Default()
	}
	kind := string(store.Kind())

	items, err := fetch(ctx)
	if err == nil && len(items) > 0 {
		if perr := store.Put(ctx, tenantID, items); perr != nil {
			writeFailuresTotal.WithLabelValues(kind).Inc()
			log.Warn("cache write-through failed", "kind", kind, "tenant_id", tenantID.String(), "err", perr)
		}
		readsTotal.WithLabelValues(kind, string(SourceLive)).Inc()
		return Listing[T]{Items: items, Source: SourceLive}, nil
	}
	if err != nil && !upstream.IsUnavailable(err) {
		return Listing[T]{}, err
	}

	cached, cerr := store.All(ctx, tenantID)
	if cerr != nil {
		log.Error("cache read failed", "kind", kind, "tenant_id", tenantID.String(), "err", cerr)
		if err != nil {
			return Listing[T]{}, err
		}
		return Listing[T]{Items: []T{}, Source: SourceLive}, nil
	}
	if len(cached) > 0 {
		log.Info("serving cached listing", "kind", kind, "tenant_id", tenantID.String(), "count", len(cached), "upstream_err", err)
		readsTotal.WithLabelValues(kind, string(SourceCache)).Inc()
		return Listing[T]{Items: cached, Source: SourceCache}, nil
	}
	if err != nil {
		return Listing[T]{}, err
	}
	readsTotal.WithLabelValues(kind, string(SourceLive)).Inc()
	return Listing[T]{Items: []T{}, Source: SourceLive}, nil
}

// GetThrough is ReadThrough for a single resource. Only an unavailable
// provider falls back to the cache; a provider 404 stays a 404.
func GetThrough[T any](ctx context.Context, store *Typed[T], tenantID uuid.UUID, id string, fetch func(context.Context) (T, error), log *slog.Logger) (T, Source, error) {
	if log == nil {
		log = slog.Default()
	}
	kind := string(store.Kind())

	v, err := fetch(ctx)
	if err == nil {
		if perr := store.Put(ctx, tenantID, []T{v}); perr != nil {
			writeFailuresTotal.WithLabelValues(kind).Inc()
			log.Warn("cache write-through failed", "kind", kind, "tenant_id", tenantID.String(), "err", perr)
		}
		readsTotal.WithLabelValues(kind, string(SourceLive)).Inc()
		return v, SourceLive, nil
	}
	if !upstream.IsUnavailable(err) {
		return v, "", err
	}

	cached, cerr := store.Get(ctx, tenantID, id)
	if cerr != nil {
		if !errors.Is(cerr, ErrNotFound) {
			log.Error("cache read failed", "kind", kind, "tenant_id", tenantID.String(), "err", cerr)
		}
		return v, "", err
	}
	readsTotal.WithLabelValues(kind, string(SourceCache)).Inc()
	return cached, SourceCache, nil
}
