// Package storage defines the persistence port the engine depends on: a
// transactional relational store with savepoints, prefetch/join queries,
// and the handful of domain-shaped operations each pipeline stage needs
// (spec §6 "Storage collaborator"). internal/storage/sqlite is the only
// implementation; the interface exists so internal/engine and its
// component packages can be tested against a fake.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/brandond/obra-upgrades/internal/discipline"
	"github.com/brandond/obra-upgrades/internal/types"
)

// Sentinel errors, mirroring the teacher's wrapDBError convention: storage
// implementations should translate "no rows" into ErrNotFound so callers
// can use errors.Is regardless of backend.
var (
	ErrNotFound      = errors.New("not found")
	ErrInvalidPlace  = errors.New("invalid place")
	ErrNoSchedule    = errors.New("no points schedule for discipline")
	ErrTxClosed      = errors.New("transaction already committed or rolled back")
)

// Tx is one discipline's atomic unit of work (spec §5): an immediate
// transaction within which pipeline stages run under nested savepoints.
type Tx interface {
	// Savepoint runs fn inside a nested SAVEPOINT named for label. A
	// failure in fn rolls back to the savepoint but leaves the
	// enclosing transaction alive.
	Savepoint(ctx context.Context, label string, fn func(ctx context.Context) error) error
	Commit() error
	Rollback() error
}

// ResultStream is a forward-only cursor over Results for a discipline,
// ordered by (Person.ID ASC, Race.Date ASC, Race.CreatedAt ASC) — the
// order the Category State Machine (§4.4) requires. Implemented as a
// streaming consumer over the join, per spec §9, to avoid loading every
// Result for a discipline into memory at once.
type ResultStream interface {
	Next(ctx context.Context) bool
	Result() *types.Result
	Points() *types.Points // points already attached to this result, or nil
	Err() error
	Close() error
}

// Store is the full persistence port.
type Store interface {
	BeginDisciplineTx(ctx context.Context, d discipline.Tag) (Tx, error)

	// Points Assigner (C)
	DeletePointsForDiscipline(ctx context.Context, tx Tx, d discipline.Tag) (int64, error)
	CandidateRaces(ctx context.Context, tx Tx, d discipline.Tag, incremental bool) ([]*types.Race, error)
	ResultsForRace(ctx context.Context, tx Tx, raceID int64) ([]*types.Result, error)
	CreatePoints(ctx context.Context, tx Tx, resultID int64, value int) error

	// Category State Machine (D)
	StreamResultsForDiscipline(ctx context.Context, tx Tx, d discipline.Tag) (ResultStream, error)
	EnsurePoints(ctx context.Context, tx Tx, resultID int64) (*types.Points, error)
	SavePoints(ctx context.Context, tx Tx, p *types.Points) error
	ClearPoints(ctx context.Context, tx Tx, resultID int64) error
	SetPointsValue(ctx context.Context, tx Tx, resultID int64, value int) error
	DeletePointsForResult(ctx context.Context, tx Tx, resultID int64) error

	// MemberSnapshot lookup (§4.7)
	MemberSnapshotOnOrBefore(ctx context.Context, tx Tx, personID int64, date time.Time) (*types.MemberSnapshot, error)
	MemberSnapshotOldestAfter(ctx context.Context, tx Tx, personID int64, date time.Time) (*types.MemberSnapshot, error)
	CreateMemberSnapshot(ctx context.Context, tx Tx, m *types.MemberSnapshot) error

	// Pending-Upgrade Confirmer (E)
	DeletePendingUpgradesForDiscipline(ctx context.Context, tx Tx, d discipline.Tag) error
	MostRecentNeedsUpgradeResults(ctx context.Context, tx Tx, d discipline.Tag) ([]*types.Result, []*types.Points, error)
	UpsertPendingUpgrade(ctx context.Context, tx Tx, pu *types.PendingUpgrade) error

	// Race Ranker (F)
	RacesNeedingRank(ctx context.Context, tx Tx, d discipline.Tag) ([]*types.Race, error)
	PriorRanksForPersons(ctx context.Context, tx Tx, personIDs []int64, before time.Time) (map[int64]float64, error)
	SaveQuality(ctx context.Context, tx Tx, q *types.Quality) error
	SaveRank(ctx context.Context, tx Tx, r *types.Rank) error

	// Reporter (G)
	RosterForDiscipline(ctx context.Context, d discipline.Tag, since time.Time) ([]*types.Result, []*types.Points, error)

	Close() error
}
