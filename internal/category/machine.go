// Package category implements the Category State Machine (component D,
// spec §4.4) — the engine's heart: a streaming, per-person finite-state
// walk over a discipline's Results that infers each rider's category
// across time, accumulates point totals, and detects upgrades and
// downgrades against the Points Schedule and external membership data.
package category

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/brandond/obra-upgrades/internal/discipline"
	"github.com/brandond/obra-upgrades/internal/storage"
	"github.com/brandond/obra-upgrades/internal/types"
)

// MemberLookup resolves a Person's category-of-record as of a given date
// (spec §4.7), applying the §9 freshness policy. internal/memberapi is the
// only implementation.
type MemberLookup interface {
	Lookup(ctx context.Context, tx storage.Tx, personID int64, requestDate time.Time) (*types.MemberSnapshot, error)
}

// Machine runs the Category State Machine for a single upgrade-discipline.
type Machine struct {
	store   storage.Store
	members MemberLookup
	log     zerolog.Logger
}

// New constructs a Machine. members may be nil (membership lookups then
// always resolve to "no opinion").
func New(store storage.Store, members MemberLookup, log zerolog.Logger) *Machine {
	return &Machine{store: store, members: members, log: log.With().Str("stage", "category").Logger()}
}

type catPoint struct {
	Value int
	Place int
	Date  time.Time
}

// personState holds the per-rider running state threaded across a
// discipline's chronologically ordered Results (spec §4.4).
type personState struct {
	PersonID              int64
	CategorySet           types.CategorySet
	CatPoints             []catPoint
	UpgradeRace           *types.Race
	IsWoman               bool
	PrevResult            *types.Result
	NeededUpgradeLastTime bool
	// UpgradeCat is the pre-transition "max(category_set) - 1" computed in
	// step 5 (spec §4.4) the last time the gate opened; step 7 reuses this
	// exact value rather than recomputing it from the post-transition
	// category set, matching upgrades.py's single `upgrade_category` local.
	UpgradeCat int
}

func newPersonState(personID int64) *personState {
	s := &personState{
		PersonID:    personID,
		CategorySet: types.NewCategorySet(types.UnknownCategory),
	}
	s.UpgradeCat = s.CategorySet.Max() - 1
	return s
}

const farPastSentinelDays = 1 << 30

// Run streams every Result for d and walks the state machine, persisting
// Points as it goes.
func (m *Machine) Run(ctx context.Context, tx storage.Tx, d discipline.Tag) error {
	stream, err := m.store.StreamResultsForDiscipline(ctx, tx, d)
	if err != nil {
		return fmt.Errorf("stream results for %s: %w", d, err)
	}
	defer func() { _ = stream.Close() }()

	var state *personState
	for stream.Next(ctx) {
		res := stream.Result()
		pts := stream.Points()

		if res.PersonID == nil {
			continue
		}
		if state == nil || state.PersonID != *res.PersonID {
			state = newPersonState(*res.PersonID)
		}

		if err := m.processResult(ctx, tx, d, state, res, pts); err != nil {
			m.log.Warn().Err(err).Int64("result_id", res.ID).Msg("skipping result")
		}
	}
	return stream.Err()
}

func (m *Machine) processResult(ctx context.Context, tx storage.Tx, d discipline.Tag, state *personState, res *types.Result, pts *types.Points) error {
	// 1. Duplicate suppression.
	if state.PrevResult != nil && state.PrevResult.PersonID != nil && res.PersonID != nil &&
		*state.PrevResult.PersonID == *res.PersonID && state.PrevResult.RaceID == res.RaceID {
		m.log.Warn().Int64("person_id", *res.PersonID).Int64("race_id", res.RaceID).Msg("duplicate result for person in race")
		return nil
	}

	race := res.Race
	var notes []string

	// 2. Expiration sweep.
	expiry := expiryWindowDays(race.Date)
	kept := state.CatPoints[:0]
	expired := 0
	for _, cp := range state.CatPoints {
		if daysBetween(cp.Date, race.Date) > expiry {
			expired++
			continue
		}
		kept = append(kept, cp)
	}
	state.CatPoints = kept
	if expired == 1 {
		notes = append(notes, "1 POINT HAS EXPIRED")
	} else if expired > 1 {
		notes = append(notes, fmt.Sprintf("%d POINTS HAVE EXPIRED", expired))
	}

	// 3. Gate.
	place, placeOK := res.PlaceInt()
	gateOpen := placeOK && len(race.Categories) > 0

	if gateOpen {
		// 4. Gender inference.
		if race.IsWomen() {
			state.IsWoman = true
		}

		// 5. Transition logic. upgrade_cat is computed here, against the
		// pre-transition category set, and carried on state for step 7 to
		// reuse even after this call mutates CategorySet.
		state.UpgradeCat = state.CategorySet.Max() - 1
		var err error
		notes, err = m.transition(ctx, tx, d, state, res, pts, notes)
		if err != nil {
			return err
		}
	}

	// 6. Point accumulation.
	value := 0
	if pts != nil {
		value = pts.Value
	}
	state.CatPoints = append(state.CatPoints, catPoint{Value: value, Place: place, Date: race.Date})

	// 7. Persist.
	return m.persist(ctx, tx, d, state, res, pts, notes)
}

func expiryWindowDays(raceDate time.Time) int {
	if raceDate.Year() == 2021 {
		return 730
	}
	return 365
}

func daysBetween(earlier, later time.Time) int {
	return int(later.Sub(earlier).Hours() / 24)
}

func sumCatPoints(cp []catPoint) int {
	sum := 0
	for _, p := range cp {
		sum += p.Value
	}
	return sum
}

func (m *Machine) memberSnapshot(ctx context.Context, tx storage.Tx, personID int64, date time.Time) (*types.MemberSnapshot, error) {
	if m.members == nil {
		return nil, nil
	}
	snap, err := m.members.Lookup(ctx, tx, personID, date)
	if err != nil {
		return nil, fmt.Errorf("member lookup for person %d: %w", personID, err)
	}
	return snap, nil
}
