package category

import (
	"context"
	"fmt"

	"github.com/brandond/obra-upgrades/internal/discipline"
	"github.com/brandond/obra-upgrades/internal/storage"
	"github.com/brandond/obra-upgrades/internal/types"
)

// firstSightingCandidates are the field shapes §4.4 5(c) treats as
// plausible "new rider" fields worth an external membership lookup.
var firstSightingCandidates = [][]int{{1}, {1, 2}, {1, 2, 3}, {3, 4, 5}}

func isFirstSightingCandidate(cats []int) bool {
	for _, candidate := range firstSightingCandidates {
		if intSliceEqual(candidate, cats) {
			return true
		}
	}
	return false
}

func intSliceEqual(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// transition implements §4.4 step 5, the six-branch transition logic.
func (m *Machine) transition(ctx context.Context, tx storage.Tx, d discipline.Tag, state *personState, res *types.Result, pts *types.Points, notes []string) ([]string, error) {
	race := res.Race
	r := race.CategorySet()
	upgradeCat := state.UpgradeCat

	switch {
	// (a) Already cat 1.
	case state.CategorySet.Equal(types.NewCategorySet(1)) && containsCategory(r, 1):
		state.CatPoints = nil
		if err := m.store.DeletePointsForResult(ctx, tx, res.ID); err != nil {
			return notes, fmt.Errorf("erase points (already cat 1): %w", err)
		}
		return notes, nil

	// (b) Confirming earned upgrade.
	case containsCategory(r, upgradeCat) && state.NeededUpgradeLastTime:
		snapshot, err := m.memberSnapshot(ctx, tx, state.PersonID, race.Date)
		if err != nil {
			return notes, err
		}
		obraCat := memberCategoryFor(snapshot, raceEventDiscipline(race))
		if obraCat == nil || *obraCat <= upgradeCat {
			sum := sumCatPoints(state.CatPoints)
			notes = append(notes, fmt.Sprintf("UPGRADED TO %d WITH %d POINTS", upgradeCat, sum))
			state.CatPoints = nil
			state.CategorySet = types.NewCategorySet(upgradeCat)
			state.UpgradeRace = race
		}
		return notes, nil

	// (c) Jumped up (more skilled race).
	case r.Intersect(state.CategorySet).Equal(types.NewCategorySet()) && state.CategorySet.Min() > r.Min():
		return m.handleJumpedUp(ctx, tx, d, state, res, r, notes)

	// (d) Dropped down (less skilled race).
	case r.Intersect(state.CategorySet).Equal(types.NewCategorySet()) && state.CategorySet.Max() < r.Max():
		return m.handleDroppedDown(ctx, tx, d, state, res, pts, r, notes)

	// (e) Multi-category refinement.
	case r.Intersect(state.CategorySet).IsProperSubsetOf(state.CategorySet) && len(state.CategorySet) > 1:
		intersection := r.Intersect(state.CategorySet)
		if len(intersection) > 0 {
			state.CategorySet = intersection
			notes = append(notes, "")
		}
		return notes, nil
	}

	return notes, nil
}

func (m *Machine) handleJumpedUp(ctx context.Context, tx storage.Tx, d discipline.Tag, state *personState, res *types.Result, r types.CategorySet, notes []string) ([]string, error) {
	race := res.Race

	if state.CategorySet.Equal(types.NewCategorySet(types.UnknownCategory)) {
		if isFirstSightingCandidate(r.Sorted()) {
			target := r.Max()
			snapshot, err := m.memberSnapshot(ctx, tx, state.PersonID, race.Date)
			if err != nil {
				return notes, err
			}
			obraCat := memberCategoryFor(snapshot, raceEventDiscipline(race))
			if obraCat != nil && containsCategory(r, *obraCat) {
				target = *obraCat
			}
			state.CategorySet = types.NewCategorySet(target)
		} else {
			state.CategorySet = r
		}
		if state.CategorySet.Equal(types.NewCategorySet(1)) {
			if err := m.store.DeletePointsForResult(ctx, tx, res.ID); err != nil {
				return notes, fmt.Errorf("erase points (first-sighting cat 1): %w", err)
			}
		}
		notes = append(notes, "")
		return notes, nil
	}

	target := r.Max()
	sum := sumCatPoints(state.CatPoints)
	ok := canUpgrade(d, target, sum, state.CatPoints, true)
	note := fmt.Sprintf("UPGRADED TO %d WITH %d POINTS", target, sum)
	if !ok {
		note = "PREMATURELY " + note
	}
	notes = append(notes, note)
	state.CatPoints = nil
	state.CategorySet = types.NewCategorySet(target)
	state.UpgradeRace = race
	return notes, nil
}

func (m *Machine) handleDroppedDown(ctx context.Context, tx storage.Tx, d discipline.Tag, state *personState, res *types.Result, pts *types.Points, r types.CategorySet, notes []string) ([]string, error) {
	race := res.Race

	if state.IsWoman && !race.IsWomen() {
		return notes, nil
	}

	sum := sumCatPoints(state.CatPoints)
	if sum == 0 && daysSinceUpgrade(state.UpgradeRace, race) > expiryWindowDays(race.Date) {
		state.CatPoints = nil
		notes = append(notes, fmt.Sprintf("DOWNGRADED TO %d", r.Min()))
		state.CategorySet = types.NewCategorySet(r.Min())
		state.UpgradeRace = race
		return notes, nil
	}

	if pts != nil {
		notes = append(notes, "NO POINTS FOR RACING BELOW CATEGORY")
		if err := m.store.SetPointsValue(ctx, tx, res.ID, 0); err != nil {
			return notes, fmt.Errorf("zero points (below category): %w", err)
		}
		pts.Value = 0
	}
	return notes, nil
}

func daysSinceUpgrade(upgradeRace *types.Race, current *types.Race) int {
	if upgradeRace == nil {
		return farPastSentinelDays
	}
	return daysBetween(upgradeRace.Date, current.Date)
}

func containsCategory(set types.CategorySet, cat int) bool {
	_, ok := set[cat]
	return ok
}

func raceEventDiscipline(race *types.Race) string {
	if race.Event == nil {
		return ""
	}
	return race.Event.Discipline
}

func memberCategoryFor(snapshot *types.MemberSnapshot, eventDiscipline string) *int {
	if snapshot == nil {
		return nil
	}
	return snapshot.CategoryFor(eventDiscipline)
}
