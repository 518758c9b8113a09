// Package ranker implements the Race Ranker (component F, spec §4.9): a
// per-race Quality score and per-result Rank value. The spec leaves the
// scalar formula to the policy layer (§4.9/§9 open question); this package
// resolves that question with a concrete, deterministic policy, recorded
// as a decision in DESIGN.md.
package ranker

import (
	"context"
	"fmt"
	"math"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"

	"github.com/brandond/obra-upgrades/internal/discipline"
	"github.com/brandond/obra-upgrades/internal/storage"
	"github.com/brandond/obra-upgrades/internal/types"
)

// Ranker runs the Race Ranker stage.
type Ranker struct {
	store storage.Store
	log   zerolog.Logger
}

// New constructs a Ranker over store, logging through log.
func New(store storage.Store, log zerolog.Logger) *Ranker {
	return &Ranker{store: store, log: log.With().Str("stage", "ranker").Logger()}
}

// Run computes Quality and Rank rows for every race in d that does not
// already have one, in chronological order (a race's Quality depends on
// its participants' prior Rank values, so order matters: spec §4.9
// "ordering invariant").
func (r *Ranker) Run(ctx context.Context, tx storage.Tx, d discipline.Tag) (int, error) {
	races, err := r.store.RacesNeedingRank(ctx, tx, d)
	if err != nil {
		return 0, fmt.Errorf("races needing rank for %s: %w", d, err)
	}

	computed := 0
	for _, race := range races {
		n, err := r.rankRace(ctx, tx, race)
		if err != nil {
			r.log.Warn().Err(err).Int64("race_id", race.ID).Msg("skipping race ranking")
			continue
		}
		computed += n
	}
	return computed, nil
}

func (r *Ranker) rankRace(ctx context.Context, tx storage.Tx, race *types.Race) (int, error) {
	results, err := r.store.ResultsForRace(ctx, tx, race.ID)
	if err != nil {
		return 0, fmt.Errorf("results for race %d: %w", race.ID, err)
	}
	if len(results) == 0 {
		return 0, nil
	}

	personIDs := make([]int64, 0, len(results))
	for _, res := range results {
		if res.PersonID != nil {
			personIDs = append(personIDs, *res.PersonID)
		}
	}

	priorRanks, err := r.store.PriorRanksForPersons(ctx, tx, personIDs, race.Date)
	if err != nil {
		return 0, fmt.Errorf("prior ranks for race %d: %w", race.ID, err)
	}

	quality, pointsPerPlace := computeQuality(race, priorRanks, results)
	if err := r.store.SaveQuality(ctx, tx, &types.Quality{RaceID: race.ID, Value: quality, PointsPerPlace: pointsPerPlace}); err != nil {
		return 0, fmt.Errorf("save quality for race %d: %w", race.ID, err)
	}

	saved := 0
	for _, res := range results {
		value := computeRank(quality, res, race.Starters)
		if err := r.store.SaveRank(ctx, tx, &types.Rank{ResultID: res.ID, Value: value}); err != nil {
			return saved, fmt.Errorf("save rank for result %d: %w", res.ID, err)
		}
		saved++
	}
	return saved, nil
}

// computeQuality implements the resolved §4.9 policy: a 0-10 scalar
// combining field depth (log of starters), category spread (distinct
// categories present), and field strength (mean of participants' prior
// Rank values, via gonum's stat.Mean). Two races with identical starters,
// identical category lists and the same participants' prior Rank values
// share every term and so produce equal Quality; races that differ only in
// their category lists score differently.
func computeQuality(race *types.Race, priorRanks map[int64]float64, results []*types.Result) (quality float64, pointsPerPlace float64) {
	depth := math.Log1p(float64(race.Starters))

	spread := float64(len(race.Categories))
	if spread == 0 {
		spread = 1
	}

	priors := make([]float64, 0, len(priorRanks))
	for _, v := range priorRanks {
		priors = append(priors, v)
	}
	strength := 0.0
	if len(priors) > 0 {
		strength = stat.Mean(priors, nil)
	}

	quality = depth*0.4 + spread*0.3 + strength*0.3
	if quality > 10 {
		quality = 10
	}
	if quality < 0 {
		quality = 0
	}

	if race.Starters > 0 {
		pointsPerPlace = quality / float64(race.Starters)
	}
	return quality, pointsPerPlace
}

// computeRank implements the resolved §4.9 per-result policy: a numeric
// place scales the race's Quality down linearly toward zero as place
// worsens; a non-numeric place (dnf, dq, unknown) earns no Rank credit.
func computeRank(quality float64, res *types.Result, starters int) float64 {
	place, ok := res.PlaceInt()
	if !ok || starters <= 0 {
		return 0
	}
	fraction := 1 - float64(place-1)/float64(starters)
	if fraction < 0 {
		fraction = 0
	}
	return quality * fraction
}
