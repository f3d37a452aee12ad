package service

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/coderace/coderace/internal/platform/timeouts"
	"github.com/coderace/coderace/internal/race/domain"
	"github.com/coderace/coderace/internal/race/events"
	"github.com/coderace/coderace/internal/race/storage"
)

// DefaultTickInterval is how often the lifecycle sweep runs.
const DefaultTickInterval = time.Second

// Ticker periodically advances the lifecycle of every active race. A single
// sweep goroutine visits races one at a time, so a race is never ticked
// concurrently with itself.
type Ticker struct {
	races     storage.RaceStore
	publisher events.Publisher
	interval  time.Duration
	cfg       domain.TickConfig
	clock     func() time.Time
}

// NewTicker creates a Ticker. A non-positive interval falls back to
// DefaultTickInterval.
func NewTicker(races storage.RaceStore, publisher events.Publisher, interval time.Duration, cfg domain.TickConfig) *Ticker {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	return &Ticker{
		races:     races,
		publisher: publisher,
		interval:  interval,
		cfg:       cfg,
		clock:     time.Now,
	}
}

// Run sweeps until the context is cancelled. Sweep failures are logged and
// the loop continues; a broken store must not stop lifecycle progress for
// the next interval.
func (t *Ticker) Run(ctx context.Context) error {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			sweepCtx, cancel := context.WithTimeout(ctx, timeouts.StoreOp)
			err := t.Sweep(sweepCtx)
			cancel()
			if err != nil {
				log.Printf("ticker: sweep: %v", err)
			}
		}
	}
}

// Sweep ticks every active race once. Races whose state advanced are
// persisted and announced; untouched races cause no I/O. A conditional-save
// rejection is skipped silently: the next sweep re-reads fresh state.
func (t *Ticker) Sweep(ctx context.Context) error {
	races, err := t.races.ListActive(ctx)
	if err != nil {
		return err
	}

	now := t.clock().UTC()
	for i := range races {
		race := races[i]
		if !race.Tick(now, t.cfg) {
			continue
		}
		race.UpdatedAt = now
		if err := t.races.SaveRace(ctx, &race); err != nil {
			if errors.Is(err, storage.ErrVersionConflict) {
				continue
			}
			log.Printf("ticker: persist race %s: %v", race.ID, err)
			continue
		}
		if t.publisher != nil {
			t.publisher.Publish(events.TopicGamesUpdate, race)
		}
	}
	return nil
}
