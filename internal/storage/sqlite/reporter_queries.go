package sqlite

import (
	"context"
	"time"

	"github.com/brandond/obra-upgrades/internal/discipline"
	"github.com/brandond/obra-upgrades/internal/types"
)

// RosterForDiscipline implements the Reporter's sole storage dependency
// (spec §4.10): every Result (with Points, Person, and Race prefetched)
// for races in d dated on or after since. Run directly against the pool
// rather than inside a discipline's write transaction, since reporting
// happens after the engine's transaction has committed.
func (s *SQLiteStorage) RosterForDiscipline(ctx context.Context, d discipline.Tag, since time.Time) ([]*types.Result, []*types.Points, error) {
	eventDisciplines := discipline.EventDisciplines(d)
	if len(eventDisciplines) == 0 {
		return nil, nil, nil
	}
	placeholders, args := inClause(eventDisciplines)
	args = append(args, since.Format("2006-01-02"))

	query := `
		SELECT res.id, res.race_id, res.person_id, res.place, res.finish_time, res.laps,
		       p.id, p.first_name, p.last_name, p.team,
		       r.id, r.name, r.date, r.categories, r.starters, r.created_at, r.updated_at,
		       r.event_id, e.name, e.discipline,
		       pts.result_id, pts.value, pts.notes, pts.needs_upgrade, pts.upgrade_confirmation,
		       pts.sum_value, pts.sum_categories
		FROM results res
		JOIN races r ON r.id = res.race_id
		JOIN events e ON e.id = r.event_id
		LEFT JOIN people p ON p.id = res.person_id
		LEFT JOIN points pts ON pts.result_id = res.id
		WHERE e.discipline IN (` + placeholders + `)
		  AND e.ignore = 0
		  AND r.date >= ?
		ORDER BY r.date ASC, r.created_at ASC, res.id ASC
	`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, nil, wrapDBError("query roster for discipline", err)
	}
	defer func() { _ = rows.Close() }()

	var results []*types.Result
	var points []*types.Points
	for rows.Next() {
		res, race, pts, err := scanRosterRow(rows)
		if err != nil {
			return nil, nil, wrapDBError("scan roster row", err)
		}
		res.Race = race
		results = append(results, res)
		points = append(points, pts)
	}
	return results, points, wrapDBError("iterate roster for discipline", rows.Err())
}

func scanRosterRow(row scanner) (*types.Result, *types.Race, *types.Points, error) {
	var (
		res                  types.Result
		personID             *int64
		pID                  *int64
		pFirst, pLast, pTeam *string
		finishTimeNs         *int64
		laps                 *int

		race                            types.Race
		categoriesJS                    string
		dateStr, createdStr, updatedStr string
		eventName, eventDisc            string

		ptsResultID    *int64
		ptsValue       *int
		ptsNotes       *string
		ptsNeedsUp     *bool
		ptsUpgradeConf *int64
		ptsSumValue    *int
		ptsSumCatsJS   *string
	)

	if err := row.Scan(&res.ID, &res.RaceID, &personID, &res.Place, &finishTimeNs, &laps,
		&pID, &pFirst, &pLast, &pTeam,
		&race.ID, &race.Name, &dateStr, &categoriesJS, &race.Starters, &createdStr, &updatedStr,
		&race.EventID, &eventName, &eventDisc,
		&ptsResultID, &ptsValue, &ptsNotes, &ptsNeedsUp, &ptsUpgradeConf, &ptsSumValue, &ptsSumCatsJS,
	); err != nil {
		return nil, nil, nil, err
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

	var err error
	if race.Date, err = parseDate(dateStr); err != nil {
		return nil, nil, nil, err
	}
	if race.CreatedAt, err = parseTimestamp(createdStr); err != nil {
		return nil, nil, nil, err
	}
	if race.UpdatedAt, err = parseTimestamp(updatedStr); err != nil {
		return nil, nil, nil, err
	}
	if race.Categories, err = unmarshalCategories(categoriesJS); err != nil {
		return nil, nil, nil, err
	}
	race.Event = &types.Event{ID: race.EventID, Name: eventName, Discipline: eventDisc}

	var pts *types.Points
	if ptsResultID != nil {
		pts = &types.Points{ResultID: *ptsResultID}
		if ptsValue != nil {
			pts.Value = *ptsValue
		}
		if ptsNotes != nil {
			pts.Notes = *ptsNotes
		}
		if ptsNeedsUp != nil {
			pts.NeedsUpgrade = *ptsNeedsUp
		}
		pts.UpgradeConfirmation = ptsUpgradeConf
		if ptsSumValue != nil {
			pts.SumValue = *ptsSumValue
		}
		if ptsSumCatsJS != nil {
			cats, cerr := unmarshalCategories(*ptsSumCatsJS)
			if cerr != nil {
				return nil, nil, nil, cerr
			}
			pts.SumCategories = cats
		}
	}

	return &res, &race, pts, nil
}
