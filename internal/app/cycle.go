package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/eventwatch/internal/adapters/dispatch"
	"github.com/okian/eventwatch/internal/domain/describe"
	"github.com/okian/eventwatch/internal/domain/format"
	"github.com/okian/eventwatch/internal/domain/model"
	"github.com/okian/eventwatch/internal/domain/snapshot"
	"github.com/okian/eventwatch/internal/domain/window"
	"github.com/okian/eventwatch/pkg/logger"
	"github.com/okian/eventwatch/pkg/metrics"
)

type pipeline struct {
	dataset model.Dataset
	run     func(ctx context.Context, cycleID string) error
}

// RunCycle runs one pass over every enabled dataset. Pipelines run
// concurrently and independently; the joined error reports every failed
// pipeline. It returns ErrCycleInProgress if a pass is already running.
func (s *Service) RunCycle(ctx context.Context) error {
	if !s.cycleMu.TryLock() {
		return ErrCycleInProgress
	}
	defer s.cycleMu.Unlock()
	return s.runCycle(ctx)
}

func (s *Service) runCycle(ctx context.Context) error {
	cycleID := uuid.NewString()
	started := time.Now()

	s.mu.Lock()
	s.stats.lastCycleID = cycleID
	s.stats.lastStarted = s.now()
	s.mu.Unlock()
	s.setState(StateRunning)
	defer s.setState(StateIdle)

	var pipelines []pipeline
	for _, p := range []pipeline{
		{model.DatasetEvents, s.runEvents},
		{model.DatasetRaids, s.runRaids},
		{model.DatasetEggs, s.runEggs},
	} {
		if s.enabled[p.dataset] {
			pipelines = append(pipelines, p)
		}
	}

	s.logger.Debug(ctx, "cycle started", logger.String("cycle", cycleID), logger.Int("pipelines", len(pipelines)))

	errs := make([]error, len(pipelines))
	var wg sync.WaitGroup
	for i, p := range pipelines {
		i, p := i, p
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = s.runPipeline(ctx, cycleID, p)
		}()
	}
	wg.Wait()

	s.mu.Lock()
	s.stats.cycles++
	s.stats.lastDuration = time.Since(started)
	for i, p := range pipelines {
		if errs[i] != nil {
			s.stats.lastErrors[p.dataset] = errs[i].Error()
		} else {
			delete(s.stats.lastErrors, p.dataset)
		}
	}
	s.mu.Unlock()

	err := errors.Join(errs...)
	s.logger.Info(ctx, "cycle finished",
		logger.String("cycle", cycleID),
		logger.Duration("took", time.Since(started)),
		logger.Bool("ok", err == nil))
	return err
}

// runPipeline isolates one dataset pass: a panic is converted to an error
// and never reaches the scheduler or the sibling pipelines.
func (s *Service) runPipeline(ctx context.Context, cycleID string, p pipeline) (err error) {
	started := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %s: %v", ErrPipelinePanic, p.dataset, r)
		}
		outcome := "ok"
		switch {
		case err == nil:
		case errors.Is(err, ErrPipelinePanic):
			outcome = "panicked"
		case errors.Is(err, ErrFetchFailure):
			outcome = "fetch_failed"
		case errors.Is(err, ErrPersistenceFailure):
			outcome = "persist_failed"
		default:
			outcome = "partial"
		}
		metrics.RecordCycle(p.dataset.String(), outcome, time.Since(started))
		if err != nil {
			s.logger.Error(ctx, "pipeline failed",
				logger.String("cycle", cycleID),
				logger.String("dataset", p.dataset.String()),
				logger.Error(err))
		}
	}()
	return p.run(ctx, cycleID)
}

// runEvents announces events whose window is due and that were never
// announced. An identity is recorded before dispatch, so a failed delivery
// is not retried on later cycles.
func (s *Service) runEvents(ctx context.Context, cycleID string) error {
	unlock := s.ledger.Lock(model.DatasetEvents)
	defer unlock()

	events, err := s.feed.Events(ctx)
	if err != nil {
		metrics.RecordFetchFailure(model.DatasetEvents.String())
		return fmt.Errorf("%w: events: %w", ErrFetchFailure, err)
	}

	now := s.now()
	var failed []error
	sent := 0
	for _, ev := range events {
		id := ev.Identity()
		if id.IsZero() {
			failed = append(failed, s.skip(ctx, cycleID, model.DatasetEvents, ev.Name, errMissingIdentity))
			continue
		}
		start, end, err := ev.Window(s.loc)
		if err != nil {
			failed = append(failed, s.skip(ctx, cycleID, model.DatasetEvents, id.String(), err))
			continue
		}
		reason := window.Match(now, start, end, s.interval)
		if reason == window.NotDue || s.ledger.IsNotified(ctx, id) {
			continue
		}

		ev.Description = s.describe(ctx, ev)
		payload, err := s.formatter.Event(ev)
		if err != nil {
			failed = append(failed, s.skip(ctx, cycleID, model.DatasetEvents, id.String(), err))
			continue
		}

		s.ledger.RecordNotified(ctx, id)
		s.logger.Info(ctx, "announcing event",
			logger.String("cycle", cycleID),
			logger.String("event", id.String()),
			logger.String("name", ev.Name),
			logger.String("reason", reason.String()))
		if err := s.send(ctx, model.DatasetEvents, payload); err != nil {
			failed = append(failed, fmt.Errorf("event %s: %w", id, err))
		}
		sent++
	}

	if err := s.persist(ctx, cycleID); err != nil {
		failed = append(failed, err)
	}
	s.logger.Debug(ctx, "events pass done",
		logger.String("cycle", cycleID), logger.Int("fetched", len(events)), logger.Int("announced", sent))
	return errors.Join(failed...)
}

// describe fetches and normalizes the detail page text. Any failure yields
// the placeholder; it never skips the event.
func (s *Service) describe(ctx context.Context, ev model.EventRecord) string {
	raw, err := s.feed.Description(ctx, ev.Link)
	if err != nil {
		metrics.RecordFetchFailure("description")
		s.logger.Warn(ctx, "description unavailable",
			logger.String("event", ev.Identity().String()), logger.Error(err))
		return describe.Placeholder
	}
	text := describe.Normalize(raw)
	if text == "" {
		return describe.Placeholder
	}
	return text
}

func (s *Service) runRaids(ctx context.Context, cycleID string) error {
	unlock := s.ledger.Lock(model.DatasetRaids)
	defer unlock()

	raids, err := s.feed.Raids(ctx)
	if err != nil {
		metrics.RecordFetchFailure(model.DatasetRaids.String())
		return fmt.Errorf("%w: raids: %w", ErrFetchFailure, err)
	}

	var failed []error
	if snapshot.HasChanged(raids, s.ledger.Raids()) {
		metrics.RecordSnapshotChange(model.DatasetRaids.String())
		s.ledger.SetRaids(raids)

		payload, skipped := s.formatter.Raids(raids)
		failed = append(failed, s.reportSkipped(ctx, cycleID, model.DatasetRaids, skipped))
		s.logger.Info(ctx, "raid roster changed", logger.String("cycle", cycleID), logger.Int("raids", len(raids)))
		if err := s.send(ctx, model.DatasetRaids, payload); err != nil {
			failed = append(failed, err)
		}
	}

	if err := s.persist(ctx, cycleID); err != nil {
		failed = append(failed, err)
	}
	return errors.Join(failed...)
}

func (s *Service) runEggs(ctx context.Context, cycleID string) error {
	unlock := s.ledger.Lock(model.DatasetEggs)
	defer unlock()

	eggs, err := s.feed.Eggs(ctx)
	if err != nil {
		metrics.RecordFetchFailure(model.DatasetEggs.String())
		return fmt.Errorf("%w: eggs: %w", ErrFetchFailure, err)
	}

	var failed []error
	if snapshot.HasChanged(eggs, s.ledger.Eggs()) {
		metrics.RecordSnapshotChange(model.DatasetEggs.String())
		s.ledger.SetEggs(eggs)

		payload, skipped := s.formatter.Eggs(eggs)
		failed = append(failed, s.reportSkipped(ctx, cycleID, model.DatasetEggs, skipped))
		s.logger.Info(ctx, "egg pool changed", logger.String("cycle", cycleID), logger.Int("eggs", len(eggs)))
		if err := s.send(ctx, model.DatasetEggs, payload); err != nil {
			failed = append(failed, err)
		}
	}

	if err := s.persist(ctx, cycleID); err != nil {
		failed = append(failed, err)
	}
	return errors.Join(failed...)
}

// reportSkipped logs and counts records the formatter left out and
// returns them joined as format failures.
func (s *Service) reportSkipped(ctx context.Context, cycleID string, d model.Dataset, skipped []format.Skipped) error {
	errs := make([]error, 0, len(skipped))
	for _, sk := range skipped {
		errs = append(errs, s.skip(ctx, cycleID, d, sk.Name, sk.Err))
	}
	return errors.Join(errs...)
}

func (s *Service) skip(ctx context.Context, cycleID string, d model.Dataset, record string, err error) error {
	metrics.RecordFormatFailure(d.String())
	s.logger.Warn(ctx, "skipping malformed record",
		logger.String("cycle", cycleID),
		logger.String("dataset", d.String()),
		logger.String("record", record),
		logger.Error(err))
	return fmt.Errorf("%w: %s %q: %w", ErrFormatFailure, d, record, err)
}

// send fans p out to the dataset's endpoints. Failed endpoints are already
// logged by the dispatcher; the returned error only summarizes them.
func (s *Service) send(ctx context.Context, d model.Dataset, p format.Payload) error {
	endpoints := s.targets.forDataset(d)
	if len(endpoints) == 0 {
		return nil
	}
	results := s.dispatcher.Send(ctx, d.String(), endpoints, p)
	if n := dispatch.Failed(results); n > 0 {
		return fmt.Errorf("%w: %d of %d %s endpoints", ErrDispatchFailure, n, len(results), d)
	}
	return nil
}

func (s *Service) persist(ctx context.Context, cycleID string) error {
	if err := s.ledger.Persist(ctx); err != nil {
		metrics.RecordPersistFailure()
		s.logger.Error(ctx, "ledger not persisted, state will not survive a restart",
			logger.String("cycle", cycleID), logger.Error(err))
		return fmt.Errorf("%w: %w", ErrPersistenceFailure, err)
	}
	return nil
}
