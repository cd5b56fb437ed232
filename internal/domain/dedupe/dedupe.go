// Package dedupe tracks identifiers that have already triggered a notification.
package dedupe

import (
	"context"
	"sync"
	"sync/atomic"
)

// Deduper records seen identifiers to ensure at-most-once notification.
type Deduper interface {
	// SeenAndRecord atomically checks if id was seen and records it if not.
	// Returns true if id was already seen, false if it was newly recorded.
	SeenAndRecord(ctx context.Context, id string) bool

	// Has is a pure membership check.
	Has(ctx context.Context, id string) bool

	// IDs returns the recorded identifiers in insertion order.
	IDs() []string

	Size() int64
}

// inMemoryDeduper implements Deduper with a map plus an insertion-ordered
// slice. It never evicts: an identifier stays recorded for the lifetime of
// the process.
type inMemoryDeduper struct {
	mu    sync.RWMutex
	seen  map[string]struct{}
	order []string
	size  atomic.Int64
}

// NewInMemoryDeduper creates a new in-memory deduper with configuration options.
func NewInMemoryDeduper(opts ...Option) Deduper {
	cfg := options{}
	for _, opt := range opts {
		opt(&cfg)
	}

	d := &inMemoryDeduper{
		seen:  make(map[string]struct{}, cfg.capacity+len(cfg.seed)),
		order: make([]string, 0, cfg.capacity+len(cfg.seed)),
	}
	for _, id := range cfg.seed {
		d.record(id)
	}
	return d
}

// SeenAndRecord atomically checks if id was seen and records it if not.
func (d *inMemoryDeduper) SeenAndRecord(ctx context.Context, id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.seen[id]; exists {
		return true
	}
	d.record(id)
	return false
}

// Has reports whether id was recorded.
func (d *inMemoryDeduper) Has(ctx context.Context, id string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.seen[id]
	return ok
}

// IDs returns a copy of the recorded identifiers in insertion order.
func (d *inMemoryDeduper) IDs() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]string, len(d.order))
	copy(out, d.order)
	return out
}

// Size returns the current number of entries in the deduper.
func (d *inMemoryDeduper) Size() int64 {
	return d.size.Load()
}

// record adds id. Must be called with d.mu held (or before publication).
func (d *inMemoryDeduper) record(id string) {
	if _, exists := d.seen[id]; exists {
		return
	}
	d.seen[id] = struct{}{}
	d.order = append(d.order, id)
	d.size.Add(1)
}
