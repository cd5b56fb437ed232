package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/okian/eventwatch/internal/adapters/repository"
	"github.com/okian/eventwatch/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

type failingStore struct {
	repository.MemoryStore
	err error
}

func (f *failingStore) Save(ctx context.Context, s repository.State) error { return f.err }

type corruptStore struct {
	repository.MemoryStore
}

func (c *corruptStore) Load(ctx context.Context) (repository.State, error) {
	return repository.State{Notified: []string{"a"}, Corrupt: []model.Dataset{model.DatasetRaids}}, nil
}

func TestLedger(t *testing.T) {
	ctx := context.Background()

	Convey("Given a ledger over a memory store", t, func() {
		store := repository.NewMemoryStore()
		fixed := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
		l := New(store, WithClock(func() time.Time { return fixed }))
		So(l.Load(ctx), ShouldBeNil)

		Convey("When recording an identity", func() {
			first := l.RecordNotified(ctx, "cd-june")
			second := l.RecordNotified(ctx, "cd-june")

			Convey("Then it is recorded once", func() {
				So(first, ShouldBeTrue)
				So(second, ShouldBeFalse)
				So(l.IsNotified(ctx, "cd-june"), ShouldBeTrue)
				So(l.IsNotified(ctx, "other"), ShouldBeFalse)
				So(l.Stats().Notified, ShouldEqual, 1)
			})
		})

		Convey("When snapshots are set", func() {
			raids := []model.RaidRecord{{Name: "Rayquaza", Tier: "Tier 5"}}
			l.SetRaids(raids)
			raids[0].Name = "mutated"
			l.SetEggs([]model.EggRecord{{Name: "Pichu", EggType: "2 km"}})

			Convey("Then copies are kept and returned", func() {
				So(l.Raids()[0].Name, ShouldEqual, "Rayquaza")
				got := l.Raids()
				got[0].Name = "again"
				So(l.Raids()[0].Name, ShouldEqual, "Rayquaza")
				So(l.Eggs(), ShouldHaveLength, 1)
			})
		})

		Convey("When persisted and reloaded into a fresh ledger", func() {
			l.RecordNotified(ctx, "a")
			l.RecordNotified(ctx, "b")
			l.SetRaids([]model.RaidRecord{{Name: "Rayquaza", Tier: "Tier 5"}})
			So(l.Persist(ctx), ShouldBeNil)

			fresh := New(store)
			So(fresh.Load(ctx), ShouldBeNil)

			Convey("Then the state survives", func() {
				So(fresh.IsNotified(ctx, "a"), ShouldBeTrue)
				So(fresh.IsNotified(ctx, "b"), ShouldBeTrue)
				So(fresh.Raids(), ShouldHaveLength, 1)
				So(l.Stats().LastPersist, ShouldEqual, fixed)
			})
		})
	})

	Convey("Given a store that fails to save", t, func() {
		boom := errors.New("disk full")
		l := New(&failingStore{err: boom})
		So(l.Load(ctx), ShouldBeNil)
		l.RecordNotified(ctx, "cd-june")

		err := l.Persist(ctx)

		Convey("Then the error is returned and memory stays authoritative", func() {
			So(errors.Is(err, boom), ShouldBeTrue)
			So(l.IsNotified(ctx, "cd-june"), ShouldBeTrue)
			So(l.Stats().LastPersist.IsZero(), ShouldBeTrue)
		})
	})

	Convey("Given a store with a corrupt part", t, func() {
		l := New(&corruptStore{})
		So(l.Load(ctx), ShouldBeNil)

		Convey("Then the rest loads and the part is reported", func() {
			So(l.IsNotified(ctx, "a"), ShouldBeTrue)
			So(l.Stats().Corrupt, ShouldResemble, []model.Dataset{model.DatasetRaids})
		})
	})
}

func TestLedgerDatasetLock(t *testing.T) {
	Convey("Given concurrent holders of the same dataset lock", t, func() {
		l := New(repository.NewMemoryStore())
		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			inside  int
			maxSeen int
		)
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				unlock := l.Lock(model.DatasetRaids)
				defer unlock()
				mu.Lock()
				inside++
				if inside > maxSeen {
					maxSeen = inside
				}
				mu.Unlock()
				time.Sleep(time.Millisecond)
				mu.Lock()
				inside--
				mu.Unlock()
			}()
		}
		wg.Wait()

		So(maxSeen, ShouldEqual, 1)

		Convey("Then different datasets do not block each other", func() {
			unlockRaids := l.Lock(model.DatasetRaids)
			unlockEggs := l.Lock(model.DatasetEggs)
			unlockEggs()
			unlockRaids()
		})
	})
}
