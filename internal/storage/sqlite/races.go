package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/brandond/obra-upgrades/internal/discipline"
	"github.com/brandond/obra-upgrades/internal/storage"
	"github.com/brandond/obra-upgrades/internal/types"
)

func marshalCategories(cats []int) string {
	if len(cats) == 0 {
		return "[]"
	}
	b, _ := json.Marshal(cats)
	return string(b)
}

func unmarshalCategories(raw string) ([]int, error) {
	if raw == "" {
		return nil, nil
	}
	var cats []int
	if err := json.Unmarshal([]byte(raw), &cats); err != nil {
		return nil, fmt.Errorf("unmarshal categories %q: %w", raw, err)
	}
	return cats, nil
}

func scanRace(row scanner) (*types.Race, error) {
	var (
		r            types.Race
		categoriesJS string
		dateStr      string
		createdStr   string
		updatedStr   string
		eventName    string
		eventDisc    string
	)
	if err := row.Scan(&r.ID, &r.Name, &dateStr, &categoriesJS, &r.Starters,
		&createdStr, &updatedStr, &r.EventID, &eventName, &eventDisc); err != nil {
		return nil, err
	}
	var err error
	if r.Date, err = parseDate(dateStr); err != nil {
		return nil, err
	}
	if r.CreatedAt, err = parseTimestamp(createdStr); err != nil {
		return nil, err
	}
	if r.UpdatedAt, err = parseTimestamp(updatedStr); err != nil {
		return nil, err
	}
	if r.Categories, err = unmarshalCategories(categoriesJS); err != nil {
		return nil, err
	}
	r.Event = &types.Event{ID: r.EventID, Name: eventName, Discipline: eventDisc}
	return &r, nil
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

const raceSelectColumns = `
	r.id, r.name, r.date, r.categories, r.starters, r.created_at, r.updated_at,
	r.event_id, e.name, e.discipline
`

// CandidateRaces implements the race-selection half of the Points
// Assigner (spec §4.3): every categorized Race whose Event.discipline
// rolls up into d. In incremental mode, only races with zero Points rows
// are returned.
func (s *SQLiteStorage) CandidateRaces(ctx context.Context, t storage.Tx, d discipline.Tag, incremental bool) ([]*types.Race, error) {
	eventDisciplines := discipline.EventDisciplines(d)
	if len(eventDisciplines) == 0 {
		return nil, nil
	}

	placeholders, args := inClause(eventDisciplines)
	query := fmt.Sprintf(`
		SELECT %s
		FROM races r
		JOIN events e ON e.id = r.event_id
		WHERE e.discipline IN (%s)
		  AND e.ignore = 0
		  AND r.categories != '[]'
	`, raceSelectColumns, placeholders)

	if incremental {
		query += `
		  AND NOT EXISTS (SELECT 1 FROM results res JOIN points p ON p.result_id = res.id WHERE res.race_id = r.id)
		`
	}
	query += ` ORDER BY r.date ASC, r.created_at ASC`

	rows, err := s.execer(t).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapDBError("query candidate races", err)
	}
	defer func() { _ = rows.Close() }()

	var races []*types.Race
	for rows.Next() {
		race, err := scanRace(rows)
		if err != nil {
			return nil, wrapDBError("scan candidate race", err)
		}
		races = append(races, race)
	}
	return races, wrapDBError("iterate candidate races", rows.Err())
}

// RacesNeedingRank returns every race for the discipline, categorized or
// not, that does not yet have a Quality row, in chronological order (ranker input
// order matters: earlier races' Ranks feed later races' Quality).
func (s *SQLiteStorage) RacesNeedingRank(ctx context.Context, t storage.Tx, d discipline.Tag) ([]*types.Race, error) {
	eventDisciplines := discipline.EventDisciplines(d)
	if len(eventDisciplines) == 0 {
		return nil, nil
	}
	placeholders, args := inClause(eventDisciplines)
	query := fmt.Sprintf(`
		SELECT %s
		FROM races r
		JOIN events e ON e.id = r.event_id
		WHERE e.discipline IN (%s)
		  AND e.ignore = 0
		  AND NOT EXISTS (SELECT 1 FROM quality q WHERE q.race_id = r.id)
		ORDER BY r.date ASC, r.created_at ASC
	`, raceSelectColumns, placeholders)

	rows, err := s.execer(t).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapDBError("query races needing rank", err)
	}
	defer func() { _ = rows.Close() }()

	var races []*types.Race
	for rows.Next() {
		race, err := scanRace(rows)
		if err != nil {
			return nil, wrapDBError("scan race needing rank", err)
		}
		races = append(races, race)
	}
	return races, wrapDBError("iterate races needing rank", rows.Err())
}

// DeletePointsForDiscipline implements the non-incremental assigner mode:
// delete all Points for Results whose Race's Event.discipline is in d's
// map, returning the number of rows removed.
func (s *SQLiteStorage) DeletePointsForDiscipline(ctx context.Context, t storage.Tx, d discipline.Tag) (int64, error) {
	eventDisciplines := discipline.EventDisciplines(d)
	if len(eventDisciplines) == 0 {
		return 0, nil
	}
	placeholders, args := inClause(eventDisciplines)
	query := fmt.Sprintf(`
		DELETE FROM points WHERE result_id IN (
			SELECT res.id FROM results res
			JOIN races r ON r.id = res.race_id
			JOIN events e ON e.id = r.event_id
			WHERE e.discipline IN (%s)
		)
	`, placeholders)
	res, err := s.execer(t).ExecContext(ctx, query, args...)
	if err != nil {
		return 0, wrapDBError("delete points for discipline", err)
	}
	n, err := res.RowsAffected()
	return n, wrapDBError("rows affected deleting points", err)
}

// ResultsForRace returns every Result for raceID with Person prefetched,
// ordered ascending by parsed integer place for results that parse as an
// integer (non-numeric places sort last) — the order step 2 of §4.3 needs.
func (s *SQLiteStorage) ResultsForRace(ctx context.Context, t storage.Tx, raceID int64) ([]*types.Result, error) {
	rows, err := s.execer(t).QueryContext(ctx, `
		SELECT res.id, res.race_id, res.person_id, res.place, res.finish_time, res.laps,
		       p.id, p.first_name, p.last_name, p.team
		FROM results res
		LEFT JOIN people p ON p.id = res.person_id
		WHERE res.race_id = ?
	`, raceID)
	if err != nil {
		return nil, wrapDBError("query results for race", err)
	}
	defer func() { _ = rows.Close() }()

	var results []*types.Result
	for rows.Next() {
		res, err := scanResultWithPerson(rows)
		if err != nil {
			return nil, wrapDBError("scan result", err)
		}
		results = append(results, res)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBError("iterate results for race", err)
	}

	sortResultsByPlace(results)
	return results, nil
}

func sortResultsByPlace(results []*types.Result) {
	// Stable insertion sort: the candidate-race result sets are always
	// small (field size), and stability matters for tie ordering.
	for i := 1; i < len(results); i++ {
		for j := i; j > 0; j-- {
			a, aok := results[j-1].PlaceInt()
			b, bok := results[j].PlaceInt()
			less := false
			switch {
			case aok && bok:
				less = b < a
			case !aok && bok:
				less = true
			}
			if !less {
				break
			}
			results[j-1], results[j] = results[j], results[j-1]
		}
	}
}

func scanResultWithPerson(row scanner) (*types.Result, error) {
	var (
		res                  types.Result
		personID             *int64
		pID                  *int64
		pFirst, pLast, pTeam *string
		finishTime           *int64
		laps                 *int
	)
	if err := row.Scan(&res.ID, &res.RaceID, &personID, &res.Place, &finishTime, &laps,
		&pID, &pFirst, &pLast, &pTeam); err != nil {
		return nil, err
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
	return &res, nil
}

func inClause(values []string) (string, []interface{}) {
	placeholders := ""
	args := make([]interface{}, len(values))
	for i, v := range values {
		if i > 0 {
			placeholders += ", "
		}
		placeholders += "?"
		args[i] = v
	}
	return placeholders, args
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02", time.RFC3339, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable date %q", s)
}

func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02 15:04:05", time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp %q", s)
}
