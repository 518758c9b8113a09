// Package pending implements the Pending-Upgrade Confirmer (component E,
// spec §4.8): for each rider whose most recent categorized Result still
// needs an upgrade, check whether external membership data already
// confirms it, and if so record a PendingUpgrade.
package pending

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/brandond/obra-upgrades/internal/category"
	"github.com/brandond/obra-upgrades/internal/discipline"
	"github.com/brandond/obra-upgrades/internal/storage"
	"github.com/brandond/obra-upgrades/internal/types"
)

// Confirmer runs the Pending-Upgrade Confirmer stage.
type Confirmer struct {
	store    storage.Store
	confirm  category.Confirmer
	log      zerolog.Logger
}

// New constructs a Confirmer. confirm performs the §4.5 confirmation
// check shared with the Category State Machine.
func New(store storage.Store, confirm category.Confirmer, log zerolog.Logger) *Confirmer {
	return &Confirmer{store: store, confirm: confirm, log: log.With().Str("stage", "pending").Logger()}
}

// Run implements §4.8.
func (c *Confirmer) Run(ctx context.Context, tx storage.Tx, d discipline.Tag) error {
	if err := c.store.DeletePendingUpgradesForDiscipline(ctx, tx, d); err != nil {
		return fmt.Errorf("delete pending upgrades for %s: %w", d, err)
	}

	results, points, err := c.store.MostRecentNeedsUpgradeResults(ctx, tx, d)
	if err != nil {
		return fmt.Errorf("most recent needs-upgrade results for %s: %w", d, err)
	}

	candidates := make([]candidate, 0, len(results))
	for i, res := range results {
		if strings.Contains(strings.ToLower(resultRaceName(res)), "junior") {
			continue
		}
		candidates = append(candidates, candidate{result: res, points: points[i]})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		mi, mj := minSumCategory(candidates[i].points), minSumCategory(candidates[j].points)
		if mi != mj {
			return mi < mj
		}
		return candidates[i].points.SumValue > candidates[j].points.SumValue
	})

	for _, cand := range candidates {
		if err := c.confirmOne(ctx, tx, d, cand); err != nil {
			c.log.Warn().Err(err).Int64("result_id", cand.result.ID).Msg("skipping pending-upgrade candidate")
		}
	}
	return nil
}

type candidate struct {
	result *types.Result
	points *types.Points
}

func minSumCategory(p *types.Points) int {
	if p == nil || len(p.SumCategories) == 0 {
		return types.UnknownCategory
	}
	min := p.SumCategories[0]
	for _, c := range p.SumCategories[1:] {
		if c < min {
			min = c
		}
	}
	return min
}

func resultRaceName(res *types.Result) string {
	if res.Race == nil {
		return ""
	}
	return res.Race.Name
}

func (c *Confirmer) confirmOne(ctx context.Context, tx storage.Tx, d discipline.Tag, cand candidate) error {
	target := minSumCategory(cand.points) - 1
	upgradeCategories := types.NewCategorySet(target)

	confirmedID, err := c.confirm.ConfirmUpgrade(ctx, tx, cand.result, upgradeCategories)
	if err != nil {
		return fmt.Errorf("confirm pending upgrade: %w", err)
	}
	if confirmedID == nil {
		return nil
	}

	return c.store.UpsertPendingUpgrade(ctx, tx, &types.PendingUpgrade{
		ResultID:          cand.result.ID,
		MemberSnapshotID:  *confirmedID,
		UpgradeDiscipline: string(d),
	})
}
