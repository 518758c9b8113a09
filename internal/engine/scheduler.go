package engine

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/brandond/obra-upgrades/internal/discipline"
)

// Scheduler drives the Engine on two independent timers (spec §5): a long
// period that rescrapes and fully reprocesses every discipline, and a
// short period that only scrapes and reprocesses recent races. Grounded on
// the teacher's multi-ticker daemon select loop
// (cmd/bd/daemon_event_loop.go), generalized from a single remote-sync
// tick to the two discipline-scan cadences this domain needs.
type Scheduler struct {
	engine     *Engine
	group      singleflight.Group
	log        zerolog.Logger
	fullEvery  time.Duration
	recentEvery time.Duration
	recentDays int
}

// NewScheduler constructs a Scheduler. fullEvery/recentEvery are the two
// tick periods; recentDays bounds how far back the short tick's scrape
// looks.
func NewScheduler(e *Engine, fullEvery, recentEvery time.Duration, recentDays int, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		engine:      e,
		log:         log.With().Str("component", "scheduler").Logger(),
		fullEvery:   fullEvery,
		recentEvery: recentEvery,
		recentDays:  recentDays,
	}
}

// Run blocks, driving both ticks until ctx is canceled. singleflight
// collapses an overlapping full+recent tick for the same discipline into
// one pipeline run, since a discipline's transaction is already exclusive
// and a second concurrent run would just queue behind SQLITE_BUSY retries.
func (s *Scheduler) Run(ctx context.Context) {
	fullTicker := time.NewTicker(s.fullEvery)
	defer fullTicker.Stop()
	recentTicker := time.NewTicker(s.recentEvery)
	defer recentTicker.Stop()

	for {
		select {
		case <-fullTicker.C:
			s.tick(ctx, false)
		case <-recentTicker.C:
			s.tick(ctx, true)
		case <-ctx.Done():
			s.log.Info().Msg("scheduler stopping")
			return
		}
	}
}

func (s *Scheduler) tick(ctx context.Context, recentOnly bool) {
	for _, d := range discipline.All() {
		d := d
		key := string(d)
		_, _, _ = s.group.Do(key, func() (interface{}, error) {
			if err := s.engine.ScrapeThenRun(ctx, d, recentOnly, s.recentDays); err != nil {
				s.log.Error().Err(err).Str("discipline", key).Bool("recent_only", recentOnly).Msg("discipline run failed")
			}
			return nil, nil
		})
	}
}

// RunOnce runs a single pass over every discipline (recent-only scrape and
// incremental run when recentOnly, else a full one) and returns, rather
// than blocking on a ticker.
func (s *Scheduler) RunOnce(ctx context.Context, recentOnly bool) {
	s.tick(ctx, recentOnly)
}
