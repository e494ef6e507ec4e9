// Package sweep expires stale offerings and rolls recurring ones forward.
package sweep

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/erazemk/foodmap/internal/media"
	"github.com/erazemk/foodmap/internal/model"
	"github.com/erazemk/foodmap/internal/store"
)

// DefaultInterval is how often Run sweeps.
const DefaultInterval = 5 * time.Minute

// Result counts what a sweep did. Every expired offering is removed; Rolled
// of them were replaced by their next occurrence and Failed had a successor
// that could not be created.
type Result struct {
	Expired int `json:"expired"`
	Rolled  int `json:"rolled"`
	Failed  int `json:"failed"`
}

// Sweeper runs the roll-forward job.
type Sweeper struct {
	db     *sql.DB
	images media.Store
	log    *slog.Logger
	tick   time.Duration
	now    func() time.Time
	zone   *time.Location

	// Sweeps from the ticker and the API must not interleave.
	mu sync.Mutex
}

// New creates a Sweeper with the default interval.
func New(db *sql.DB, images media.Store, log *slog.Logger) *Sweeper {
	return &Sweeper{
		db:     db,
		images: images,
		log:    log,
		tick:   DefaultInterval,
		now:    time.Now,
		zone:   time.UTC,
	}
}

// SetTickInterval overrides the default interval.
func (s *Sweeper) SetTickInterval(d time.Duration) {
	s.tick = d
}

// SetZone sets the calendar that recurrences follow. Successors keep the
// wall-clock time of the series in this zone, across DST changes too.
func (s *Sweeper) SetZone(zone *time.Location) {
	if zone == nil {
		zone = time.UTC
	}
	s.zone = zone
}

// SetClock overrides the time source (useful for testing).
func (s *Sweeper) SetClock(now func() time.Time) {
	s.now = now
}

// Run sweeps immediately and then on every tick, blocking until ctx is
// cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	s.runOnce(ctx)

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Sweeper) runOnce(ctx context.Context) {
	if _, err := s.Sweep(ctx); err != nil && ctx.Err() == nil {
		s.log.Error("sweep", "error", err)
	}
}

// Sweep processes every offering whose timestamp is at or before now minus
// the freshness window, oldest first. A recurring offering is replaced by
// its next occurrence that is still in the future of the cutoff and before
// the recurrence end; any other expired offering is deleted. A successor
// that cannot be created is logged and the old offering is deleted anyway.
func (s *Sweeper) Sweep(ctx context.Context) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var res Result
	now := s.now()
	cutoff := now.Add(-model.FreshnessWindow)

	expired, err := store.ListExpiredOfferings(ctx, s.db, cutoff)
	if err != nil {
		return res, err
	}

	for _, o := range expired {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.Expired++

		if successor, ok := s.inZone(o).Successor(cutoff); ok {
			if s.replace(ctx, o, successor) {
				res.Rolled++
				continue
			}
			res.Failed++
		}

		if err := store.DeleteOffering(ctx, s.db, s.images, o.ID); err != nil && !errors.Is(err, model.ErrOfferingNotFound) {
			s.log.Error("delete expired offering", "offering", o.ID, "error", err)
		}
	}

	if err := store.RecordSweep(ctx, s.db, now); err != nil {
		s.log.Warn("record sweep", "error", err)
	}
	if res.Expired > 0 {
		s.log.Info("swept offerings", "expired", res.Expired, "rolled", res.Rolled, "failed", res.Failed)
	}
	return res, nil
}

// inZone returns a copy of o with its times on the sweeper's calendar.
// Stored times are UTC.
func (s *Sweeper) inZone(o *model.Offering) *model.Offering {
	local := *o
	local.Timestamp = o.Timestamp.In(s.zone)
	if o.RecurEnd != nil {
		end := o.RecurEnd.In(s.zone)
		local.RecurEnd = &end
	}
	return &local
}

// replace swaps o for successor and reports whether the successor exists.
func (s *Sweeper) replace(ctx context.Context, o, successor *model.Offering) bool {
	next, err := store.ReplaceOffering(ctx, s.db, s.images, o, successor)
	if next != nil {
		if err != nil {
			s.log.Warn("roll forward", "offering", o.ID, "successor", next.ID, "error", err)
		}
		s.log.Debug("rolled offering forward", "offering", o.ID, "successor", next.ID, "timestamp", next.Timestamp)
		return true
	}

	s.log.Error("roll forward", "offering", o.ID, "location", o.LocationID, "error", err)
	return false
}
