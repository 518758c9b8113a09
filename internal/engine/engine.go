// Package engine orchestrates the pipeline (spec §5): for each
// upgrade-discipline, Points Assigner -> Category State Machine -> Race
// Ranker -> Pending-Upgrade Confirmer run inside one eagerly-locked
// transaction, with each stage isolated in its own savepoint so a failing
// stage rolls back without losing the others' work.
package engine

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/brandond/obra-upgrades/internal/assigner"
	"github.com/brandond/obra-upgrades/internal/cache"
	"github.com/brandond/obra-upgrades/internal/category"
	"github.com/brandond/obra-upgrades/internal/discipline"
	"github.com/brandond/obra-upgrades/internal/pending"
	"github.com/brandond/obra-upgrades/internal/ranker"
	"github.com/brandond/obra-upgrades/internal/storage"
	"github.com/brandond/obra-upgrades/internal/telemetry"
)

// Scraper is the engine's narrow view of internal/scraper: only the
// entry points a discipline run actually drives.
type Scraper interface {
	ScrapeRecent(ctx context.Context, d discipline.Tag, days int) (bool, error)
	ScrapeNew(ctx context.Context, d discipline.Tag) (bool, error)
	ScrapeYear(ctx context.Context, year int, d discipline.Tag) error
}

// Engine ties the four per-discipline stages together.
type Engine struct {
	store    storage.Store
	scraper  Scraper
	assigner *assigner.Assigner
	category *category.Machine
	ranker   *ranker.Ranker
	pending  *pending.Confirmer
	cache    cache.Cache
	log      zerolog.Logger
}

// New constructs an Engine. scraper and c may be nil (no-op scrape calls,
// no cache invalidation), matching how internal/memberapi and
// internal/category already tolerate a nil collaborator.
func New(store storage.Store, scraper Scraper, members category.MemberLookup, c cache.Cache, log zerolog.Logger) *Engine {
	log = log.With().Str("component", "engine").Logger()
	categoryMachine := category.New(store, members, log)
	return &Engine{
		store:    store,
		scraper:  scraper,
		assigner: assigner.New(store, log),
		category: categoryMachine,
		ranker:   ranker.New(store, log),
		pending:  pending.New(store, categoryMachine, log),
		cache:    c,
		log:      log,
	}
}

// RunDiscipline executes one full pipeline pass for d. incremental selects
// the Points Assigner's candidate-race mode (spec §4.3); full reprocessing
// (incremental=false) is what the long-period scheduler tick and `obrad
// once` both ask for, while the short-period tick runs incrementally.
func (e *Engine) RunDiscipline(ctx context.Context, d discipline.Tag, incremental bool) error {
	ctx, span := telemetry.StartDisciplineSpan(ctx, string(d))
	defer span.End()

	tx, err := e.store.BeginDisciplineTx(ctx, d)
	if err != nil {
		return fmt.Errorf("begin transaction for %s: %w", d, err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var pointsCreated int
	if err := tx.Savepoint(ctx, "assigner", func(ctx context.Context) error {
		n, err := e.assigner.Run(ctx, tx, d, incremental)
		pointsCreated = n
		return err
	}); err != nil {
		return fmt.Errorf("points assigner for %s: %w", d, err)
	}
	telemetry.Metrics.PointsAssigned.Add(ctx, int64(pointsCreated))

	if err := tx.Savepoint(ctx, "category", func(ctx context.Context) error {
		return e.category.Run(ctx, tx, d)
	}); err != nil {
		return fmt.Errorf("category state machine for %s: %w", d, err)
	}

	if err := tx.Savepoint(ctx, "ranker", func(ctx context.Context) error {
		_, err := e.ranker.Run(ctx, tx, d)
		return err
	}); err != nil {
		return fmt.Errorf("race ranker for %s: %w", d, err)
	}

	if err := tx.Savepoint(ctx, "pending", func(ctx context.Context) error {
		return e.pending.Run(ctx, tx, d)
	}); err != nil {
		return fmt.Errorf("pending-upgrade confirmer for %s: %w", d, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction for %s: %w", d, err)
	}
	committed = true

	if e.cache != nil && pointsCreated > 0 {
		if err := e.cache.Clear(ctx, string(d)); err != nil {
			e.log.Warn().Err(err).Str("discipline", string(d)).Msg("cache invalidation failed")
		}
	}

	e.log.Info().Str("discipline", string(d)).Int("points_created", pointsCreated).Msg("discipline run complete")
	return nil
}

// ScrapeThenRun refreshes upstream data for d (recent-only when
// recentOnly, else a full scan via ScrapeNew) before running the
// pipeline, the shape both scheduler ticks share.
func (e *Engine) ScrapeThenRun(ctx context.Context, d discipline.Tag, recentOnly bool, recentDays int) error {
	if e.scraper != nil {
		var err error
		if recentOnly {
			_, err = e.scraper.ScrapeRecent(ctx, d, recentDays)
		} else {
			_, err = e.scraper.ScrapeNew(ctx, d)
		}
		if err != nil {
			e.log.Warn().Err(err).Str("discipline", string(d)).Bool("recent_only", recentOnly).Msg("scrape failed, running pipeline on existing data")
		}
	}
	return e.RunDiscipline(ctx, d, recentOnly)
}
