package category

import (
	"context"
	"fmt"

	"github.com/brandond/obra-upgrades/internal/discipline"
	"github.com/brandond/obra-upgrades/internal/storage"
	"github.com/brandond/obra-upgrades/internal/types"
)

// persist implements §4.4 step 7: ensure/update the Result's Points row
// with the post-transition category state, evaluate the needs-upgrade
// predicates against state.UpgradeCat (the pre-transition "upgrade_cat"
// step 5 computed), run confirmation if this race produced the upgrade,
// and write the accumulated notes.
func (m *Machine) persist(ctx context.Context, tx storage.Tx, d discipline.Tag, state *personState, res *types.Result, existing *types.Points, notes []string) error {
	defer func() { state.PrevResult = res }()

	sum := sumCatPoints(state.CatPoints)
	upgradedThisRace := state.UpgradeRace == res.Race
	shouldEnsure := upgradedThisRace || len(notes) > 0 || sum != 0
	if !shouldEnsure {
		state.NeededUpgradeLastTime = false
		return nil
	}

	pts := existing
	if pts == nil {
		var err error
		pts, err = m.store.EnsurePoints(ctx, tx, res.ID)
		if err != nil {
			return fmt.Errorf("ensure points: %w", err)
		}
	}

	upgradeCat := state.UpgradeCat
	needsUp := needsUpgrade(d, upgradeCat, sum, state.CatPoints)
	carriedOver := state.NeededUpgradeLastTime && canUpgrade(d, upgradeCat, sum, state.CatPoints, false) && !upgradedThisRace
	pts.NeedsUpgrade = needsUp || carriedOver
	if pts.NeedsUpgrade {
		notes = append(notes, "NEEDS UPGRADE")
	}

	pts.SumCategories = state.CategorySet.Sorted()
	pts.SumValue = sum

	if upgradedThisRace {
		var err error
		var confirmedID *int64
		notes, confirmedID, err = m.confirm(ctx, tx, res, notes, state.CategorySet, raceEventDiscipline(res.Race))
		if err != nil {
			return fmt.Errorf("confirm transition: %w", err)
		}
		if confirmedID != nil {
			pts.UpgradeConfirmation = confirmedID
		}
	}

	if len(notes) > 0 {
		pts.Notes = formatNotes(notes)
	}

	if err := m.store.SavePoints(ctx, tx, pts); err != nil {
		return fmt.Errorf("save points: %w", err)
	}

	state.NeededUpgradeLastTime = pts.NeedsUpgrade
	return nil
}
