// Package metrics wraps the OpenTelemetry counters the buffer pool manager
// updates on every page fetch/evict/write-back. It is deliberately thin:
// the manager never branches on whether metrics are present, since the
// default meter (no SDK registered) is already a safe no-op.
package metrics

import (
	"context"

	"go.opentelemetry.io/otel/metric"
)

// BufferPoolMetrics holds the counters a Manager updates.
type BufferPoolMetrics struct {
	hits       metric.Int64Counter
	misses     metric.Int64Counter
	evictions  metric.Int64Counter
	writebacks metric.Int64Counter
	newPages   metric.Int64Counter
}

// New builds the counters against meter. Pass otel.Meter("pagecache") for
// production use, or a meter backed by an in-memory reader in tests.
func New(meter metric.Meter) (*BufferPoolMetrics, error) {
	hits, err := meter.Int64Counter(
		"pagecache.page_hits",
		metric.WithDescription("pages served from an already-resident frame"),
	)
	if err != nil {
		return nil, err
	}

	misses, err := meter.Int64Counter(
		"pagecache.page_misses",
		metric.WithDescription("pages that required acquiring a frame"),
	)
	if err != nil {
		return nil, err
	}

	evictions, err := meter.Int64Counter(
		"pagecache.evictions",
		metric.WithDescription("frames reclaimed via the replacer rather than the free list"),
	)
	if err != nil {
		return nil, err
	}

	writebacks, err := meter.Int64Counter(
		"pagecache.dirty_writebacks",
		metric.WithDescription("dirty pages written back to disk, on eviction or on flush"),
	)
	if err != nil {
		return nil, err
	}

	newPages, err := meter.Int64Counter(
		"pagecache.new_pages",
		metric.WithDescription("pages allocated via NewPage"),
	)
	if err != nil {
		return nil, err
	}

	return &BufferPoolMetrics{
		hits:       hits,
		misses:     misses,
		evictions:  evictions,
		writebacks: writebacks,
		newPages:   newPages,
	}, nil
}

func (m *BufferPoolMetrics) Hit(ctx context.Context) { m.hits.Add(ctx, 1) }
func (m *BufferPoolMetrics) Miss(ctx context.Context) { m.misses.Add(ctx, 1) }
func (m *BufferPoolMetrics) Eviction(ctx context.Context) { m.evictions.Add(ctx, 1) }
func (m *BufferPoolMetrics) Writeback(ctx context.Context) { m.writebacks.Add(ctx, 1) }
func (m *BufferPoolMetrics) NewPage(ctx context.Context) { m.newPages.Add(ctx, 1) }
