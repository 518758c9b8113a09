package sqlite

import (
	"context"
	"time"

	"github.com/brandond/obra-upgrades/internal/storage"
	"github.com/brandond/obra-upgrades/internal/types"
)

const memberSnapshotSelectColumns = `
	id, date, person_id, license_num, category_mtb, category_dh, category_ccx, category_road, category_trk
`

func scanMemberSnapshot(row scanner) (*types.MemberSnapshot, error) {
	var (
		m       types.MemberSnapshot
		dateStr string
		license *string
	)
	if err := row.Scan(&m.ID, &dateStr, &m.PersonID, &license,
		&m.CategoryMTB, &m.CategoryDH, &m.CategoryCCX, &m.CategoryRoad, &m.CategoryTrk); err != nil {
		return nil, err
	}
	date, err := parseDate(dateStr)
	if err != nil {
		return nil, err
	}
	m.Date = date
	if license != nil {
		m.LicenseNum = *license
	}
	return &m, nil
}

// MemberSnapshotOnOrBefore returns the most recent MemberSnapshot for
// personID with date <= the given date — the "category of record at the
// time of the race" lookup the Category State Machine and Pending-Upgrade
// Confirmer both perform (spec §4.4, §4.7).
func (s *SQLiteStorage) MemberSnapshotOnOrBefore(ctx context.Context, t storage.Tx, personID int64, date time.Time) (*types.MemberSnapshot, error) {
	row := s.execer(t).QueryRowContext(ctx, `
		SELECT `+memberSnapshotSelectColumns+`
		FROM member_snapshots
		WHERE person_id = ? AND date <= ?
		ORDER BY date DESC
		LIMIT 1
	`, personID, date.Format("2006-01-02"))
	m, err := scanMemberSnapshot(row)
	if err != nil {
		return nil, wrapDBError("member snapshot on or before", err)
	}
	return m, nil
}

// MemberSnapshotOldestAfter returns the earliest MemberSnapshot for
// personID with date > the given date — used by the freshness policy
// (§9) to find a later snapshot confirming a pending upgrade.
func (s *SQLiteStorage) MemberSnapshotOldestAfter(ctx context.Context, t storage.Tx, personID int64, date time.Time) (*types.MemberSnapshot, error) {
	row := s.execer(t).QueryRowContext(ctx, `
		SELECT `+memberSnapshotSelectColumns+`
		FROM member_snapshots
		WHERE person_id = ? AND date > ?
		ORDER BY date ASC
		LIMIT 1
	`, personID, date.Format("2006-01-02"))
	m, err := scanMemberSnapshot(row)
	if err != nil {
		return nil, wrapDBError("member snapshot oldest after", err)
	}
	return m, nil
}

// CreateMemberSnapshot inserts a freshly scraped membership record. A
// (date, person) pair is unique; a re-scrape of the same day overwrites
// that day's license number and categories rather than failing.
func (s *SQLiteStorage) CreateMemberSnapshot(ctx context.Context, t storage.Tx, m *types.MemberSnapshot) error {
	_, err := s.execer(t).ExecContext(ctx, `
		INSERT INTO member_snapshots (date, person_id, license_num, category_mtb, category_dh, category_ccx, category_road, category_trk)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (date, person_id) DO UPDATE SET
			license_num = excluded.license_num,
			category_mtb = excluded.category_mtb,
			category_dh = excluded.category_dh,
			category_ccx = excluded.category_ccx,
			category_road = excluded.category_road,
			category_trk = excluded.category_trk
	`, m.Date.Format("2006-01-02"), m.PersonID, nullableString(m.LicenseNum),
		m.CategoryMTB, m.CategoryDH, m.CategoryCCX, m.CategoryRoad, m.CategoryTrk)
	if err != nil {
		return wrapDBError("create member snapshot", err)
	}
	return wrapDBError("reload member snapshot id", s.execer(t).QueryRowContext(ctx, `
		SELECT id FROM member_snapshots WHERE date = ? AND person_id = ?
	`, m.Date.Format("2006-01-02"), m.PersonID).Scan(&m.ID))
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
