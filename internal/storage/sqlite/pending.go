package sqlite

import (
	"context"
	"time"

	"github.com/brandond/obra-upgrades/internal/discipline"
	"github.com/brandond/obra-upgrades/internal/storage"
	"github.com/brandond/obra-upgrades/internal/types"
)

// DeletePendingUpgradesForDiscipline clears the discipline's prior
// Pending-Upgrade Confirmer run before recomputing it from scratch.
func (s *SQLiteStorage) DeletePendingUpgradesForDiscipline(ctx context.Context, t storage.Tx, d discipline.Tag) error {
	_, err := s.execer(t).ExecContext(ctx, `DELETE FROM pending_upgrades WHERE upgrade_discipline = ?`, string(d))
	return wrapDBError("delete pending upgrades for discipline", err)
}

// MostRecentNeedsUpgradeResults returns, for each rider in d with at
// least one Points row flagged needs_upgrade, only that rider's most
// recent such Result (spec §4.8: the confirmer only ever tracks the
// latest outstanding upgrade per rider). A window function picks the
// single newest row per person_id in one query rather than N+1 lookups.
func (s *SQLiteStorage) MostRecentNeedsUpgradeResults(ctx context.Context, t storage.Tx, d discipline.Tag) ([]*types.Result, []*types.Points, error) {
	eventDisciplines := discipline.EventDisciplines(d)
	if len(eventDisciplines) == 0 {
		return nil, nil, nil
	}
	placeholders, args := inClause(eventDisciplines)
	query := `
		WITH ranked AS (
			SELECT res.id AS result_id,
			       ROW_NUMBER() OVER (PARTITION BY res.person_id ORDER BY r.date DESC, r.created_at DESC) AS rn
			FROM results res
			JOIN races r ON r.id = res.race_id
			JOIN events e ON e.id = r.event_id
			JOIN points pts ON pts.result_id = res.id
			WHERE e.discipline IN (` + placeholders + `)
			  AND pts.needs_upgrade = 1
			  AND res.person_id IS NOT NULL
		)
		SELECT res.id, res.race_id, res.person_id, res.place, res.finish_time, res.laps,
		       p.id, p.first_name, p.last_name, p.team,
		       pts.result_id, pts.value, pts.notes, pts.needs_upgrade, pts.upgrade_confirmation,
		       pts.sum_value, pts.sum_categories
		FROM ranked
		JOIN results res ON res.id = ranked.result_id
		LEFT JOIN people p ON p.id = res.person_id
		JOIN points pts ON pts.result_id = res.id
		WHERE ranked.rn = 1
	`
	rows, err := s.execer(t).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, nil, wrapDBError("query most recent needs-upgrade results", err)
	}
	defer func() { _ = rows.Close() }()

	var results []*types.Result
	var points []*types.Points
	for rows.Next() {
		var (
			res                  types.Result
			personID             *int64
			pID                  *int64
			pFirst, pLast, pTeam *string
			finishTimeNs         *int64
			laps                 *int

			ptsResultID    int64
			ptsValue       int
			ptsNotes       string
			ptsNeedsUp     bool
			ptsUpgradeConf *int64
			ptsSumValue    int
			ptsSumCatsJS   string
		)
		if err := rows.Scan(&res.ID, &res.RaceID, &personID, &res.Place, &finishTimeNs, &laps,
			&pID, &pFirst, &pLast, &pTeam,
			&ptsResultID, &ptsValue, &ptsNotes, &ptsNeedsUp, &ptsUpgradeConf, &ptsSumValue, &ptsSumCatsJS,
		); err != nil {
			return nil, nil, wrapDBError("scan most recent needs-upgrade result", err)
		}
		res.PersonID = personID
		res.Laps = laps
		if finishTimeNs != nil {
			d := time.Duration(*finishTimeNs)
			res.FinishTime = &d
		}
		if pID != nil {
			res.Person = &types.Person{ID: *pID}
			if pFirst != nil {
				res.Person.FirstName = *pFirst
			}
			if pLast != nil {
				res.Person.LastName = *pLast
			}
			if pTeam != nil {
				res.Person.Team = *pTeam
			}
		}
		cats, cerr := unmarshalCategories(ptsSumCatsJS)
		if cerr != nil {
			return nil, nil, cerr
		}
		results = append(results, &res)
		points = append(points, &types.Points{
			ResultID:            ptsResultID,
			Value:               ptsValue,
			Notes:               ptsNotes,
			NeedsUpgrade:        ptsNeedsUp,
			UpgradeConfirmation: ptsUpgradeConf,
			SumValue:            ptsSumValue,
			SumCategories:       cats,
		})
	}
	return results, points, wrapDBError("iterate most recent needs-upgrade results", rows.Err())
}

// UpsertPendingUpgrade records (or replaces) the pending-upgrade marker
// for a Result, keyed by MemberSnapshot so a later re-run can tell
// whether the same snapshot still explains the pending state.
func (s *SQLiteStorage) UpsertPendingUpgrade(ctx context.Context, t storage.Tx, pu *types.PendingUpgrade) error {
	_, err := s.execer(t).ExecContext(ctx, `
		INSERT INTO pending_upgrades (result_id, member_snapshot_id, upgrade_discipline)
		VALUES (?, ?, ?)
		ON CONFLICT (result_id) DO UPDATE SET
			member_snapshot_id = excluded.member_snapshot_id,
			upgrade_discipline = excluded.upgrade_discipline
	`, pu.ResultID, pu.MemberSnapshotID, pu.UpgradeDiscipline)
	return wrapDBError("upsert pending upgrade", err)
}
