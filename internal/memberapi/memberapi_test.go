package memberapi

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/brandond/obra-upgrades/internal/storage"
	"github.com/brandond/obra-upgrades/internal/types"
)

type fakeMemberStore struct {
	storage.Store
	onOrBefore      *types.MemberSnapshot
	onOrBeforeErr   error
	oldestAfter     *types.MemberSnapshot
	oldestAfterErr  error
	afterRefresh    *types.MemberSnapshot
	refreshed       bool
}

func (s *fakeMemberStore) MemberSnapshotOnOrBefore(_ context.Context, _ storage.Tx, _ int64, _ time.Time) (*types.MemberSnapshot, error) {
	if s.refreshed && s.afterRefresh != nil {
		return s.afterRefresh, nil
	}
	return s.onOrBefore, s.onOrBeforeErr
}

func (s *fakeMemberStore) MemberSnapshotOldestAfter(_ context.Context, _ storage.Tx, _ int64, _ time.Time) (*types.MemberSnapshot, error) {
	return s.oldestAfter, s.oldestAfterErr
}

type fakeScraper struct {
	err       error
	scrapedID int64
	called    bool
}

func (f *fakeScraper) ScrapePerson(_ context.Context, personID int64) error {
	f.called = true
	f.scrapedID = personID
	return f.err
}

func TestLookupFreshSnapshotIsTrustedOutright(t *testing.T) {
	requestDate := time.Date(2020, 6, 1, 0, 0, 0, 0, time.UTC)
	snap := &types.MemberSnapshot{ID: 1, Date: requestDate.Add(-10 * 24 * time.Hour)}
	store := &fakeMemberStore{onOrBefore: snap}
	scraper := &fakeScraper{}
	c := New(store, scraper, zerolog.Nop())

	got, err := c.Lookup(context.Background(), nil, 42, requestDate)
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if got != snap {
		t.Errorf("Lookup() = %v, want the fresh snapshot", got)
	}
	if scraper.called {
		t.Error("scraper should not be called for a fresh snapshot")
	}
}

func TestLookupSnapshotAtOrAfterRequestDateIsAlwaysFresh(t *testing.T) {
	requestDate := time.Date(2020, 6, 1, 0, 0, 0, 0, time.UTC)
	snap := &types.MemberSnapshot{ID: 1, Date: requestDate.Add(365 * 24 * time.Hour)}
	store := &fakeMemberStore{onOrBefore: snap}
	c := New(store, &fakeScraper{}, zerolog.Nop())

	got, err := c.Lookup(context.Background(), nil, 42, requestDate)
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if got != snap {
		t.Error("a snapshot dated at/after the request date should never be considered stale")
	}
}

func TestLookupStaleSnapshotRefreshesAndPrefersNewData(t *testing.T) {
	requestDate := time.Date(2020, 6, 1, 0, 0, 0, 0, time.UTC)
	stale := &types.MemberSnapshot{ID: 1, Date: requestDate.Add(-60 * 24 * time.Hour)}
	fresh := &types.MemberSnapshot{ID: 2, Date: requestDate.Add(-1 * 24 * time.Hour)}
	scraper := &fakeScraper{}

	// refresh() re-queries MemberSnapshotOnOrBefore; the store returns
	// stale on the first read and fresh on the second, simulating a
	// successful scrape landing new data in between.
	store := &refreshingStore{fakeMemberStore: &fakeMemberStore{}, stale: stale, fresh: fresh}
	c := New(store, scraper, zerolog.Nop())

	got, err := c.Lookup(context.Background(), nil, 42, requestDate)
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if !scraper.called || scraper.scrapedID != 42 {
		t.Error("expected the scraper to be invoked for person 42")
	}
	if got != fresh {
		t.Errorf("Lookup() = %v, want the refreshed snapshot", got)
	}
}

// refreshingStore returns stale on the first MemberSnapshotOnOrBefore call
// and fresh on subsequent ones, simulating a successful scrape landing new
// data between the initial read and refresh's re-read.
type refreshingStore struct {
	*fakeMemberStore
	stale, fresh *types.MemberSnapshot
	calls        int
}

func (s *refreshingStore) MemberSnapshotOnOrBefore(_ context.Context, _ storage.Tx, _ int64, _ time.Time) (*types.MemberSnapshot, error) {
	s.calls++
	if s.calls == 1 {
		return s.stale, nil
	}
	return s.fresh, nil
}

func TestLookupStaleSnapshotRefreshFailureFallsBackToStale(t *testing.T) {
	requestDate := time.Date(2020, 6, 1, 0, 0, 0, 0, time.UTC)
	stale := &types.MemberSnapshot{ID: 1, Date: requestDate.Add(-60 * 24 * time.Hour)}
	store := &fakeMemberStore{onOrBefore: stale}
	scraper := &fakeScraper{err: errors.New("network error")}
	c := New(store, scraper, zerolog.Nop())

	got, err := c.Lookup(context.Background(), nil, 42, requestDate)
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if got != stale {
		t.Errorf("Lookup() = %v, want the stale snapshot to be used as a fallback", got)
	}
}

func TestLookupNotFoundFallsBackToOldestAfter(t *testing.T) {
	requestDate := time.Now()
	after := &types.MemberSnapshot{ID: 9, Date: requestDate.Add(24 * time.Hour)}
	store := &fakeMemberStore{onOrBeforeErr: storage.ErrNotFound, oldestAfter: after}
	c := New(store, &fakeScraper{}, zerolog.Nop())

	got, err := c.Lookup(context.Background(), nil, 1, requestDate)
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if got != after {
		t.Errorf("Lookup() = %v, want the oldest-after snapshot", got)
	}
}

func TestLookupNilScraperReturnsStaleSnapshot(t *testing.T) {
	requestDate := time.Date(2020, 6, 1, 0, 0, 0, 0, time.UTC)
	stale := &types.MemberSnapshot{ID: 1, Date: requestDate.Add(-60 * 24 * time.Hour)}
	store := &fakeMemberStore{onOrBefore: stale}
	c := New(store, nil, zerolog.Nop())

	got, err := c.Lookup(context.Background(), nil, 1, requestDate)
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if got != stale {
		t.Errorf("Lookup() = %v, want the stale snapshot when no scraper is configured", got)
	}
}

func TestLookupNeitherFoundNorScraperConfiguredReturnsNil(t *testing.T) {
	store := &fakeMemberStore{onOrBeforeErr: storage.ErrNotFound, oldestAfterErr: storage.ErrNotFound}
	c := New(store, nil, zerolog.Nop())

	got, err := c.Lookup(context.Background(), nil, 1, time.Now())
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if got != nil {
		t.Errorf("Lookup() = %v, want nil", got)
	}
}
