package sqlite

import (
	"context"
	"database/sql"

	"github.com/brandond/obra-upgrades/internal/storage"
	"github.com/brandond/obra-upgrades/internal/types"
)

// CreatePoints inserts the Points Assigner's award for a Result (spec
// §4.3 step 3). A Result gets at most one Points row; callers are
// expected to have already deleted or skipped existing rows.
func (s *SQLiteStorage) CreatePoints(ctx context.Context, t storage.Tx, resultID int64, value int) error {
	_, err := s.execer(t).ExecContext(ctx, `
		INSERT INTO points (result_id, value, notes, needs_upgrade, sum_value, sum_categories)
		VALUES (?, ?, '', 0, ?, '[]')
		ON CONFLICT (result_id) DO UPDATE SET value = excluded.value
	`, resultID, value, value)
	return wrapDBError("create points", err)
}

func scanPoints(row scanner) (*types.Points, error) {
	var (
		p              types.Points
		sumCategoriesJ string
		upgradeConf    *int64
	)
	if err := row.Scan(&p.ResultID, &p.Value, &p.Notes, &p.NeedsUpgrade, &upgradeConf,
		&p.SumValue, &sumCategoriesJ); err != nil {
		return nil, err
	}
	p.UpgradeConfirmation = upgradeConf
	cats, err := unmarshalCategories(sumCategoriesJ)
	if err != nil {
		return nil, err
	}
	p.SumCategories = cats
	return &p, nil
}

const pointsSelectColumns = `result_id, value, notes, needs_upgrade, upgrade_confirmation, sum_value, sum_categories`

// EnsurePoints implements the Category State Machine's "attach or create"
// step (§4.4): return the Points row for resultID, creating a zero-value
// one if the Points Assigner never ran for this Result (uncategorized
// races have no Points Assigner pass but still flow through the state
// machine for category inference).
func (s *SQLiteStorage) EnsurePoints(ctx context.Context, t storage.Tx, resultID int64) (*types.Points, error) {
	row := s.execer(t).QueryRowContext(ctx, `SELECT `+pointsSelectColumns+` FROM points WHERE result_id = ?`, resultID)
	p, err := scanPoints(row)
	if err == nil {
		return p, nil
	}
	if err != sql.ErrNoRows {
		return nil, wrapDBError("query points", err)
	}

	_, err = s.execer(t).ExecContext(ctx, `
		INSERT INTO points (result_id, value, notes, needs_upgrade, sum_value, sum_categories)
		VALUES (?, 0, '', 0, 0, '[]')
	`, resultID)
	if err != nil {
		return nil, wrapDBError("create empty points", err)
	}
	return &types.Points{ResultID: resultID, SumCategories: nil}, nil
}

// SavePoints persists the Category State Machine's updated per-result
// state (NeedsUpgrade, UpgradeConfirmation, SumValue, SumCategories,
// Notes) back onto the existing Points row.
func (s *SQLiteStorage) SavePoints(ctx context.Context, t storage.Tx, p *types.Points) error {
	_, err := s.execer(t).ExecContext(ctx, `
		UPDATE points
		SET notes = ?, needs_upgrade = ?, upgrade_confirmation = ?, sum_value = ?, sum_categories = ?
		WHERE result_id = ?
	`, p.Notes, p.NeedsUpgrade, p.UpgradeConfirmation, p.SumValue, marshalCategories(p.SumCategories), p.ResultID)
	return wrapDBError("save points", err)
}

// ClearPoints resets needs_upgrade and upgrade_confirmation on a Points
// row. Nothing in this repository calls it.
func (s *SQLiteStorage) ClearPoints(ctx context.Context, t storage.Tx, resultID int64) error {
	_, err := s.execer(t).ExecContext(ctx, `
		UPDATE points SET needs_upgrade = 0, upgrade_confirmation = NULL WHERE result_id = ?
	`, resultID)
	return wrapDBError("clear points", err)
}

// DeletePointsForResult removes a Result's Points row outright, used by
// the Category State Machine's "already cat 1" and first-sighting
// branches where a result is retroactively deemed to earn no points
// (spec §4.4 5(a), 5(c)).
func (s *SQLiteStorage) DeletePointsForResult(ctx context.Context, t storage.Tx, resultID int64) error {
	_, err := s.execer(t).ExecContext(ctx, `DELETE FROM points WHERE result_id = ?`, resultID)
	return wrapDBError("delete points for result", err)
}

// SetPointsValue overwrites a Points row's awarded value, used when the
// Category State Machine's dropped-down branch zeroes the points of a
// result raced below the rider's category (§4.4 step 5).
func (s *SQLiteStorage) SetPointsValue(ctx context.Context, t storage.Tx, resultID int64, value int) error {
	_, err := s.execer(t).ExecContext(ctx, `UPDATE points SET value = ? WHERE result_id = ?`, value, resultID)
	return wrapDBError("set points value", err)
}
