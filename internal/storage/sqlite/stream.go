package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/brandond/obra-upgrades/internal/discipline"
	"github.com/brandond/obra-upgrades/internal/storage"
	"github.com/brandond/obra-upgrades/internal/types"
)

// resultStream is the storage.ResultStream implementation: a thin wrapper
// over *sql.Rows that scans one (Result, Points) pair per Next() call,
// grounded on the teacher's streaming issue-export cursor in
// internal/storage/sqlite/export.go.
type resultStream struct {
	rows    *sql.Rows
	result  *types.Result
	points  *types.Points
	err     error
}

var _ storage.ResultStream = (*resultStream)(nil)

// StreamResultsForDiscipline implements the Category State Machine's
// input feed (spec §4.4): every Result whose Race rolls up into d's event
// disciplines, ordered by (Person.ID, Race.Date, Race.CreatedAt) so the
// state machine sees one rider's entire history in chronological order
// before moving to the next rider.
func (s *SQLiteStorage) StreamResultsForDiscipline(ctx context.Context, t storage.Tx, d discipline.Tag) (storage.ResultStream, error) {
	eventDisciplines := discipline.EventDisciplines(d)
	if len(eventDisciplines) == 0 {
		return &resultStream{}, nil
	}
	placeholders, args := inClause(eventDisciplines)
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
		  AND res.person_id IS NOT NULL
		ORDER BY res.person_id ASC, r.date ASC, r.created_at ASC
	`
	rows, err := s.execer(t).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapDBError("query result stream", err)
	}
	return &resultStream{rows: rows}, nil
}

func (rs *resultStream) Next(ctx context.Context) bool {
	if rs.rows == nil || rs.err != nil {
		return false
	}
	if !rs.rows.Next() {
		rs.err = wrapDBError("iterate result stream", rs.rows.Err())
		return false
	}

	var (
		res          types.Result
		personID     *int64
		pID          *int64
		pFirst, pLast, pTeam *string
		finishTime   *int64
		laps         *int
		race         types.Race
		categoriesJS string
		dateStr, createdStr, updatedStr string
		eventName, eventDisc string

		ptsResultID  *int64
		ptsValue     *int
		ptsNotes     *string
		ptsNeedsUp   *bool
		ptsUpgradeConf *int64
		ptsSumValue  *int
		ptsSumCats   *string
	)

	if err := rs.rows.Scan(&res.ID, &res.RaceID, &personID, &res.Place, &finishTime, &laps,
		&pID, &pFirst, &pLast, &pTeam,
		&race.ID, &race.Name, &dateStr, &categoriesJS, &race.Starters, &createdStr, &updatedStr,
		&race.EventID, &eventName, &eventDisc,
		&ptsResultID, &ptsValue, &ptsNotes, &ptsNeedsUp, &ptsUpgradeConf, &ptsSumValue, &ptsSumCats,
	); err != nil {
		rs.err = wrapDBError("scan result stream row", err)
		return false
	}

	res.PersonID = personID
	res.Laps = laps
	if finishTime != nil {
		d := time.Duration(*finishTime)
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
		rs.err = err
		return false
	}
	if race.CreatedAt, err = parseTimestamp(createdStr); err != nil {
		rs.err = err
		return false
	}
	if race.UpdatedAt, err = parseTimestamp(updatedStr); err != nil {
		rs.err = err
		return false
	}
	if race.Categories, err = unmarshalCategories(categoriesJS); err != nil {
		rs.err = err
		return false
	}
	race.Event = &types.Event{ID: race.EventID, Name: eventName, Discipline: eventDisc}
	res.Race = &race
	rs.result = &res

	if ptsResultID == nil {
		rs.points = nil
	} else {
		p := &types.Points{ResultID: *ptsResultID}
		if ptsValue != nil {
			p.Value = *ptsValue
		}
		if ptsNotes != nil {
			p.Notes = *ptsNotes
		}
		if ptsNeedsUp != nil {
			p.NeedsUpgrade = *ptsNeedsUp
		}
		p.UpgradeConfirmation = ptsUpgradeConf
		if ptsSumValue != nil {
			p.SumValue = *ptsSumValue
		}
		if ptsSumCats != nil {
			cats, cerr := unmarshalCategories(*ptsSumCats)
			if cerr != nil {
				rs.err = cerr
				return false
			}
			p.SumCategories = cats
		}
		rs.points = p
	}

	return true
}

func (rs *resultStream) Result() *types.Result { return rs.result }
func (rs *resultStream) Points() *types.Points  { return rs.points }
func (rs *resultStream) Err() error             { return rs.err }

func (rs *resultStream) Close() error {
	if rs.rows == nil {
		return nil
	}
	return rs.rows.Close()
}
