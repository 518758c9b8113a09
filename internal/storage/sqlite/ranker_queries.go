package sqlite

import (
	"context"
	"time"

	"github.com/brandond/obra-upgrades/internal/storage"
	"github.com/brandond/obra-upgrades/internal/types"
)

// PriorRanksForPersons returns each person's mean Rank.Value over every
// Result strictly before the given date — the Race Ranker's "how good is
// this field" input (spec §4.9, resolved formula in the expanded spec).
// Persons with no prior Rank rows are simply absent from the map.
func (s *SQLiteStorage) PriorRanksForPersons(ctx context.Context, t storage.Tx, personIDs []int64, before time.Time) (map[int64]float64, error) {
	out := make(map[int64]float64, len(personIDs))
	if len(personIDs) == 0 {
		return out, nil
	}

	idPlaceholders, idArgs := inClauseInt64(personIDs)
	query := `
		SELECT res.person_id, AVG(rk.value)
		FROM ranks rk
		JOIN results res ON res.id = rk.result_id
		JOIN races r ON r.id = res.race_id
		WHERE res.person_id IN (` + idPlaceholders + `)
		  AND r.date < ?
		GROUP BY res.person_id
	`
	args := append(idArgs, before.Format("2006-01-02"))

	rows, err := s.execer(t).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapDBError("query prior ranks for persons", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var personID int64
		var mean float64
		if err := rows.Scan(&personID, &mean); err != nil {
			return nil, wrapDBError("scan prior rank", err)
		}
		out[personID] = mean
	}
	return out, wrapDBError("iterate prior ranks for persons", rows.Err())
}

// SaveQuality persists the Race Ranker's per-race quality score.
func (s *SQLiteStorage) SaveQuality(ctx context.Context, t storage.Tx, q *types.Quality) error {
	_, err := s.execer(t).ExecContext(ctx, `
		INSERT INTO quality (race_id, value, points_per_place) VALUES (?, ?, ?)
		ON CONFLICT (race_id) DO UPDATE SET value = excluded.value, points_per_place = excluded.points_per_place
	`, q.RaceID, q.Value, q.PointsPerPlace)
	return wrapDBError("save quality", err)
}

// SaveRank persists the Race Ranker's per-result rank value.
func (s *SQLiteStorage) SaveRank(ctx context.Context, t storage.Tx, r *types.Rank) error {
	_, err := s.execer(t).ExecContext(ctx, `
		INSERT INTO ranks (result_id, value) VALUES (?, ?)
		ON CONFLICT (result_id) DO UPDATE SET value = excluded.value
	`, r.ResultID, r.Value)
	return wrapDBError("save rank", err)
}

func inClauseInt64(values []int64) (string, []interface{}) {
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
