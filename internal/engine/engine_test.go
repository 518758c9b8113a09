package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/brandond/obra-upgrades/internal/discipline"
	"github.com/brandond/obra-upgrades/internal/storage"
	"github.com/brandond/obra-upgrades/internal/types"
)

// emptyStream is a storage.ResultStream with nothing in it.
type emptyStream struct{}

func (emptyStream) Next(context.Context) bool    { return false }
func (emptyStream) Result() *types.Result        { return nil }
func (emptyStream) Points() *types.Points        { return nil }
func (emptyStream) Err() error                   { return nil }
func (emptyStream) Close() error                 { return nil }

// fakeTx is a no-op storage.Tx: Savepoint just runs fn inline.
type fakeTx struct {
	committed, rolledBack bool
}

func (t *fakeTx) Savepoint(ctx context.Context, _ string, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
func (t *fakeTx) Commit() error   { t.committed = true; return nil }
func (t *fakeTx) Rollback() error { t.rolledBack = true; return nil }

// emptyStore gives the assigner one cyclocross race with a single
// first-place finisher (unless noCandidateRaces) and answers every later
// stage's queries with "nothing to do", so a full discipline run exercises
// all four savepoints against real data shapes without needing a database.
type emptyStore struct {
	tx               *fakeTx
	deleteCalls      int
	cacheCleared     bool
	beginErr         error
	commitErr        error
	noCandidateRaces bool
}

func (s *emptyStore) BeginDisciplineTx(context.Context, discipline.Tag) (storage.Tx, error) {
	if s.beginErr != nil {
		return nil, s.beginErr
	}
	s.tx = &fakeTx{}
	return s.tx, nil
}
func (s *emptyStore) DeletePointsForDiscipline(context.Context, storage.Tx, discipline.Tag) (int64, error) {
	s.deleteCalls++
	return 0, nil
}
func (s *emptyStore) CandidateRaces(context.Context, storage.Tx, discipline.Tag, bool) ([]*types.Race, error) {
	if s.noCandidateRaces {
		return nil, nil
	}
	return []*types.Race{{
		ID:         1,
		Date:       time.Date(2019, 10, 1, 0, 0, 0, 0, time.UTC),
		Categories: []int{4},
		Starters:   50,
		Event:      &types.Event{Discipline: "cyclocross"},
	}}, nil
}
func (s *emptyStore) ResultsForRace(context.Context, storage.Tx, int64) ([]*types.Result, error) {
	person := &types.Person{ID: 1, FirstName: "Jane", LastName: "Doe"}
	return []*types.Result{{ID: 1, RaceID: 1, PersonID: &person.ID, Person: person, Place: "1"}}, nil
}
func (s *emptyStore) CreatePoints(context.Context, storage.Tx, int64, int) error { return nil }
func (s *emptyStore) StreamResultsForDiscipline(context.Context, storage.Tx, discipline.Tag) (storage.ResultStream, error) {
	return emptyStream{}, nil
}
func (s *emptyStore) EnsurePoints(context.Context, storage.Tx, int64) (*types.Points, error) {
	return nil, nil
}
func (s *emptyStore) SavePoints(context.Context, storage.Tx, *types.Points) error      { return nil }
func (s *emptyStore) ClearPoints(context.Context, storage.Tx, int64) error            { return nil }
func (s *emptyStore) SetPointsValue(context.Context, storage.Tx, int64, int) error     { return nil }
func (s *emptyStore) DeletePointsForResult(context.Context, storage.Tx, int64) error   { return nil }
func (s *emptyStore) MemberSnapshotOnOrBefore(context.Context, storage.Tx, int64, time.Time) (*types.MemberSnapshot, error) {
	return nil, storage.ErrNotFound
}
func (s *emptyStore) MemberSnapshotOldestAfter(context.Context, storage.Tx, int64, time.Time) (*types.MemberSnapshot, error) {
	return nil, storage.ErrNotFound
}
func (s *emptyStore) CreateMemberSnapshot(context.Context, storage.Tx, *types.MemberSnapshot) error {
	return nil
}
func (s *emptyStore) DeletePendingUpgradesForDiscipline(context.Context, storage.Tx, discipline.Tag) error {
	return nil
}
func (s *emptyStore) MostRecentNeedsUpgradeResults(context.Context, storage.Tx, discipline.Tag) ([]*types.Result, []*types.Points, error) {
	return nil, nil, nil
}
func (s *emptyStore) UpsertPendingUpgrade(context.Context, storage.Tx, *types.PendingUpgrade) error {
	return nil
}
func (s *emptyStore) RacesNeedingRank(context.Context, storage.Tx, discipline.Tag) ([]*types.Race, error) {
	return nil, nil
}
func (s *emptyStore) PriorRanksForPersons(context.Context, storage.Tx, []int64, time.Time) (map[int64]float64, error) {
	return nil, nil
}
func (s *emptyStore) SaveQuality(context.Context, storage.Tx, *types.Quality) error { return nil }
func (s *emptyStore) SaveRank(context.Context, storage.Tx, *types.Rank) error       { return nil }
func (s *emptyStore) RosterForDiscipline(context.Context, discipline.Tag, time.Time) ([]*types.Result, []*types.Points, error) {
	return nil, nil, nil
}
func (s *emptyStore) Close() error { return nil }

type fakeCache struct {
	cleared []string
}

func (c *fakeCache) Clear(_ context.Context, namespace string) error {
	c.cleared = append(c.cleared, namespace)
	return nil
}
func (c *fakeCache) Get(context.Context, string, string) ([]byte, bool, error) { return nil, false, nil }
func (c *fakeCache) Set(context.Context, string, string, []byte) error        { return nil }
func (c *fakeCache) Close() error                                             { return nil }

func TestRunDisciplineCommitsAndClearsCacheOnSuccess(t *testing.T) {
	store := &emptyStore{}
	c := &fakeCache{}
	e := New(store, nil, nil, c, zerolog.Nop())

	if err := e.RunDiscipline(context.Background(), discipline.Road, false); err != nil {
		t.Fatalf("RunDiscipline() error = %v", err)
	}
	if !store.tx.committed {
		t.Error("expected the transaction to be committed")
	}
	if store.tx.rolledBack {
		t.Error("a committed transaction should not also be rolled back")
	}
	if store.deleteCalls != 1 {
		t.Errorf("DeletePointsForDiscipline called %d times, want 1 for a non-incremental run", store.deleteCalls)
	}
	if len(c.cleared) != 1 || c.cleared[0] != "road" {
		t.Errorf("cache cleared = %v, want [road]", c.cleared)
	}
}

func TestRunDisciplineRollsBackOnBeginError(t *testing.T) {
	store := &emptyStore{beginErr: errors.New("db unavailable")}
	e := New(store, nil, nil, nil, zerolog.Nop())

	err := e.RunDiscipline(context.Background(), discipline.Road, false)
	if err == nil {
		t.Fatal("RunDiscipline() error = nil, want non-nil")
	}
}

func TestRunDisciplineToleratesNilCache(t *testing.T) {
	store := &emptyStore{}
	e := New(store, nil, nil, nil, zerolog.Nop())

	if err := e.RunDiscipline(context.Background(), discipline.Road, true); err != nil {
		t.Fatalf("RunDiscipline() error = %v", err)
	}
}

type countingScraper struct {
	recentCalls, newCalls, yearCalls int
}

func (c *countingScraper) ScrapeRecent(context.Context, discipline.Tag, int) (bool, error) {
	c.recentCalls++
	return false, nil
}
func (c *countingScraper) ScrapeNew(context.Context, discipline.Tag) (bool, error) {
	c.newCalls++
	return false, nil
}
func (c *countingScraper) ScrapeYear(context.Context, int, discipline.Tag) error {
	c.yearCalls++
	return nil
}

func TestScrapeThenRunChoosesRecentOrFullScrape(t *testing.T) {
	store := &emptyStore{}
	scraper := &countingScraper{}
	e := New(store, scraper, nil, nil, zerolog.Nop())

	if err := e.ScrapeThenRun(context.Background(), discipline.Road, true, 14); err != nil {
		t.Fatalf("ScrapeThenRun(recentOnly) error = %v", err)
	}
	if scraper.recentCalls != 1 || scraper.newCalls != 0 {
		t.Errorf("recentCalls=%d newCalls=%d, want 1,0", scraper.recentCalls, scraper.newCalls)
	}

	if err := e.ScrapeThenRun(context.Background(), discipline.Road, false, 14); err != nil {
		t.Fatalf("ScrapeThenRun(full) error = %v", err)
	}
	if scraper.newCalls != 1 {
		t.Errorf("newCalls=%d, want 1", scraper.newCalls)
	}
}

func TestScrapeThenRunNilScraperStillRunsPipeline(t *testing.T) {
	store := &emptyStore{}
	e := New(store, nil, nil, nil, zerolog.Nop())

	if err := e.ScrapeThenRun(context.Background(), discipline.Road, true, 14); err != nil {
		t.Fatalf("ScrapeThenRun() error = %v", err)
	}
}
