// Package ledger holds what the watcher has already announced: the set of
// notified event identities and the last seen raid and egg rosters.
package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/eventwatch/internal/adapters/repository"
	"github.com/okian/eventwatch/internal/domain/dedupe"
	"github.com/okian/eventwatch/internal/domain/model"
	"github.com/okian/eventwatch/pkg/logger"
	"github.com/okian/eventwatch/pkg/metrics"
)

// Stats is a point-in-time view of the ledger.
type Stats struct {
	Notified    int64           `json:"notified"`
	Raids       int             `json:"raids"`
	Eggs        int             `json:"eggs"`
	LastPersist time.Time       `json:"last_persist,omitempty"`
	Corrupt     []model.Dataset `json:"corrupt,omitempty"`
}

// Ledger is the in-memory authoritative state, flushed to a Store.
type Ledger struct {
	store repository.Store
	log   logger.Logger
	now   func() time.Time

	mu          sync.RWMutex
	notified    dedupe.Deduper
	raids       []model.RaidRecord
	eggs        []model.EggRecord
	corrupt     []model.Dataset
	lastPersist time.Time

	persistMu sync.Mutex

	locksMu sync.Mutex
	locks   map[model.Dataset]*sync.Mutex
}

// New creates an empty ledger backed by store.
func New(store repository.Store, opts ...Option) *Ledger {
	l := &Ledger{
		store:    store,
		log:      logger.Nop(),
		now:      time.Now,
		notified: dedupe.NewInMemoryDeduper(),
		locks:    make(map[model.Dataset]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load replaces the in-memory state with what the store holds. Parts the
// store could not decode start empty and are reported in Stats.
func (l *Ledger) Load(ctx context.Context) error {
	st, err := l.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load ledger: %w", err)
	}
	for _, part := range st.Corrupt {
		l.log.Warn(ctx, "ledger part was corrupt and starts empty", logger.String("dataset", part.String()))
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.notified = dedupe.NewInMemoryDeduper(dedupe.WithSeed(st.Notified...))
	l.raids = st.Raids
	l.eggs = st.Eggs
	l.corrupt = st.Corrupt
	metrics.UpdateLedgerSize(int(l.notified.Size()))

	l.log.Info(ctx, "ledger loaded",
		logger.Int64("notified", l.notified.Size()),
		logger.Int("raids", len(l.raids)),
		logger.Int("eggs", len(l.eggs)))
	return nil
}

// RecordNotified adds id to the notified set. It reports whether id was
// newly added.
func (l *Ledger) RecordNotified(ctx context.Context, id model.EventID) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	added := !l.notified.SeenAndRecord(ctx, id.String())
	if added {
		metrics.UpdateLedgerSize(int(l.notified.Size()))
	}
	return added
}

// IsNotified reports whether id is in the notified set.
func (l *Ledger) IsNotified(ctx context.Context, id model.EventID) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.notified.Has(ctx, id.String())
}

// Raids returns a copy of the last raid roster.
func (l *Ledger) Raids() []model.RaidRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]model.RaidRecord(nil), l.raids...)
}

// SetRaids replaces the last raid roster with a copy of recs.
func (l *Ledger) SetRaids(recs []model.RaidRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.raids = append([]model.RaidRecord(nil), recs...)
}

// Eggs returns a copy of the last egg roster.
func (l *Ledger) Eggs() []model.EggRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]model.EggRecord(nil), l.eggs...)
}

// SetEggs replaces the last egg roster with a copy of recs.
func (l *Ledger) SetEggs(recs []model.EggRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.eggs = append([]model.EggRecord(nil), recs...)
}

// Persist writes a consistent copy of the whole state to the store. On
// failure the in-memory state is unchanged.
func (l *Ledger) Persist(ctx context.Context) error {
	l.persistMu.Lock()
	defer l.persistMu.Unlock()

	l.mu.RLock()
	st := repository.State{
		Notified: l.notified.IDs(),
		Raids:    append([]model.RaidRecord(nil), l.raids...),
		Eggs:     append([]model.EggRecord(nil), l.eggs...),
	}
	l.mu.RUnlock()

	if err := l.store.Save(ctx, st); err != nil {
		return fmt.Errorf("persist ledger: %w", err)
	}

	l.mu.Lock()
	l.lastPersist = l.now()
	l.mu.Unlock()
	return nil
}

// Lock serializes the read-decide-mutate-persist sequence of one dataset.
// The returned func releases the lock.
func (l *Ledger) Lock(dataset model.Dataset) func() {
	l.locksMu.Lock()
	m, ok := l.locks[dataset]
	if !ok {
		m = &sync.Mutex{}
		l.locks[dataset] = m
	}
	l.locksMu.Unlock()

	m.Lock()
	return m.Unlock
}

// Stats returns current counts.
func (l *Ledger) Stats() Stats {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return Stats{
		Notified:    l.notified.Size(),
		Raids:       len(l.raids),
		Eggs:        len(l.eggs),
		LastPersist: l.lastPersist,
		Corrupt:     append([]model.Dataset(nil), l.corrupt...),
	}
}
