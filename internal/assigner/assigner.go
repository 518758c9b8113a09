// Package assigner implements the Points Assigner (component C): for
// each categorized Race in an upgrade-discipline's affected set, it
// creates Points rows for the finishers a schedule actually pays out.
package assigner

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/brandond/obra-upgrades/internal/discipline"
	"github.com/brandond/obra-upgrades/internal/schedule"
	"github.com/brandond/obra-upgrades/internal/storage"
	"github.com/brandond/obra-upgrades/internal/types"
)

// Assigner runs the Points Assigner stage.
type Assigner struct {
	store storage.Store
	log   zerolog.Logger
}

// New constructs an Assigner over store, logging through log.
func New(store storage.Store, log zerolog.Logger) *Assigner {
	return &Assigner{store: store, log: log.With().Str("stage", "assigner").Logger()}
}

// Run processes every candidate Race for d, returning the count of
// Points rows created. incremental selects which Races are candidates
// (spec §4.3 "Mode").
func (a *Assigner) Run(ctx context.Context, tx storage.Tx, d discipline.Tag, incremental bool) (int, error) {
	if !incremental {
		deleted, err := a.store.DeletePointsForDiscipline(ctx, tx, d)
		if err != nil {
			return 0, fmt.Errorf("delete points for %s: %w", d, err)
		}
		a.log.Debug().Str("discipline", string(d)).Int64("deleted", deleted).Msg("cleared existing points")
	}

	races, err := a.store.CandidateRaces(ctx, tx, d, incremental)
	if err != nil {
		return 0, fmt.Errorf("candidate races for %s: %w", d, err)
	}

	created := 0
	for _, race := range races {
		n, err := a.assignRace(ctx, tx, race)
		if err != nil {
			a.log.Warn().Err(err).Int64("race_id", race.ID).Msg("skipping race")
			continue
		}
		created += n
	}
	return created, nil
}

func (a *Assigner) assignRace(ctx context.Context, tx storage.Tx, race *types.Race) (int, error) {
	eventDiscipline := ""
	if race.Event != nil {
		eventDiscipline = race.Event.Discipline
	}

	pointsVector := schedule.Lookup(eventDiscipline, race.Date, race.Name, race.Starters)
	if len(pointsVector) == 0 {
		return 0, nil
	}

	results, err := a.store.ResultsForRace(ctx, tx, race.ID)
	if err != nil {
		return 0, fmt.Errorf("results for race %d: %w", race.ID, err)
	}

	created := 0
	for _, res := range results {
		place, ok := res.PlaceInt()
		if !ok || place < 1 || place > len(pointsVector) {
			continue
		}
		if res.Person == nil || !validName(res.Person.FirstName) || !validName(res.Person.LastName) {
			continue
		}
		value := pointsVector[place-1]
		if err := a.store.CreatePoints(ctx, tx, res.ID, value); err != nil {
			return created, fmt.Errorf("create points for result %d: %w", res.ID, err)
		}
		created++
	}
	return created, nil
}

func validName(name string) bool {
	return types.NameValidPattern.MatchString(name)
}
