package stats

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/skrafl/server/internal/store"
)

// Runner drives the nightly pipeline: it derives the aggregation window
// from the completion log, finishes any interrupted run first, then
// aggregates up to now and rebuilds the ranking tables.
type Runner struct {
	sm       *store.SessionManager
	svc      *Service
	deadline time.Duration
	log      *zap.Logger
	now      func() time.Time
}

func NewRunner(sm *store.SessionManager, svc *Service, deadline time.Duration, log *zap.Logger) *Runner {
	return &Runner{
		sm:       sm,
		svc:      svc,
		deadline: deadline,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// RunNightly executes one scheduler tick under the configured deadline.
func (r *Runner) RunNightly(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.deadline)
	defer cancel()

	from, to, err := r.window(ctx)
	if err != nil {
		return err
	}
	err = r.sm.Do(ctx, func(ctx context.Context, b store.Backend) error {
		return r.svc.RunStats(ctx, b, from, to)
	})
	if err != nil {
		if errors.Is(err, store.ErrDeadline) {
			// Partial progress is committed; the next tick resumes.
			r.log.Warn("stats run hit deadline, will resume",
				zap.Time("from", from), zap.Time("to", to))
			return nil
		}
		return err
	}
	return r.sm.Do(ctx, func(ctx context.Context, b store.Backend) error {
		return r.svc.RebuildRatings(ctx, b)
	})
}

// window picks the aggregation bounds. An interrupted run is re-invoked
// with its original window; otherwise the window opens at the last
// successful boundary, or 24 hours back on a fresh deployment.
func (r *Runner) window(ctx context.Context) (time.Time, time.Time, error) {
	var from, to time.Time
	err := r.sm.Do(ctx, func(ctx context.Context, b store.Backend) error {
		last, err := b.Completions().Latest(ctx, ProcStats)
		if err != nil {
			return err
		}
		now := r.now()
		switch {
		case last == nil:
			from, to = now.Add(-24*time.Hour), now
		case !last.Success:
			from, to = last.TsFrom, last.TsTo
		default:
			from, to = last.TsTo, now
		}
		return nil
	})
	return from, to, err
}

// Loop blocks, firing RunNightly once per day at the given UTC hour,
// until the context is canceled.
func (r *Runner) Loop(ctx context.Context, hourUTC int) {
	for {
		next := nextRunAt(r.now(), hourUTC)
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		if err := r.RunNightly(ctx); err != nil {
			r.log.Error("nightly run failed", zap.Error(err))
		}
	}
}

func nextRunAt(now time.Time, hourUTC int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hourUTC, 0, 0, 0, time.UTC)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
