package pending

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/brandond/obra-upgrades/internal/discipline"
	"github.com/brandond/obra-upgrades/internal/storage"
	"github.com/brandond/obra-upgrades/internal/types"
)

func TestMinSumCategory(t *testing.T) {
	if got := minSumCategory(nil); got != types.UnknownCategory {
		t.Errorf("minSumCategory(nil) = %d, want %d", got, types.UnknownCategory)
	}
	p := &types.Points{SumCategories: []int{3, 1, 2}}
	if got := minSumCategory(p); got != 1 {
		t.Errorf("minSumCategory() = %d, want 1", got)
	}
}

func TestResultRaceName(t *testing.T) {
	if got := resultRaceName(&types.Result{}); got != "" {
		t.Errorf("resultRaceName(no race) = %q, want empty", got)
	}
	r := &types.Result{Race: &types.Race{Name: "Junior Crit"}}
	if got := resultRaceName(r); got != "Junior Crit" {
		t.Errorf("resultRaceName() = %q, want %q", got, "Junior Crit")
	}
}

// fakeConfirmer always confirms, recording the targets it was asked about.
type fakeConfirmer struct {
	confirmedID int64
	calls       []types.CategorySet
}

func (f *fakeConfirmer) ConfirmUpgrade(_ context.Context, _ storage.Tx, _ *types.Result, targets types.CategorySet) (*int64, error) {
	f.calls = append(f.calls, targets)
	id := f.confirmedID
	return &id, nil
}

type fakePendingStore struct {
	storage.Store
	deletedDiscipline discipline.Tag
	results           []*types.Result
	points            []*types.Points
	upserted          []*types.PendingUpgrade
}

func (s *fakePendingStore) DeletePendingUpgradesForDiscipline(_ context.Context, _ storage.Tx, d discipline.Tag) error {
	s.deletedDiscipline = d
	return nil
}

func (s *fakePendingStore) MostRecentNeedsUpgradeResults(context.Context, storage.Tx, discipline.Tag) ([]*types.Result, []*types.Points, error) {
	return s.results, s.points, nil
}

func (s *fakePendingStore) UpsertPendingUpgrade(_ context.Context, _ storage.Tx, pu *types.PendingUpgrade) error {
	s.upserted = append(s.upserted, pu)
	return nil
}

func TestRunSkipsJuniorAndOrdersBySumCategoryThenPoints(t *testing.T) {
	store := &fakePendingStore{
		results: []*types.Result{
			{ID: 1, Race: &types.Race{Name: "Junior Men"}},
			{ID: 2, Race: &types.Race{Name: "Cat 3/4 Men"}},
			{ID: 3, Race: &types.Race{Name: "Cat 3/4 Men"}},
		},
		points: []*types.Points{
			{SumCategories: []int{2}, SumValue: 10},
			{SumCategories: []int{4}, SumValue: 20},
			{SumCategories: []int{4}, SumValue: 30},
		},
	}
	confirmer := &fakeConfirmer{confirmedID: 99}
	c := New(store, confirmer, zerolog.Nop())

	if err := c.Run(context.Background(), nil, discipline.Road); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if store.deletedDiscipline != discipline.Road {
		t.Errorf("DeletePendingUpgradesForDiscipline called with %q, want road", store.deletedDiscipline)
	}
	if len(store.upserted) != 2 {
		t.Fatalf("upserted %d pending upgrades, want 2 (junior excluded)", len(store.upserted))
	}
	// Result 3 (sum 30) should be processed before result 2 (sum 20):
	// both are category 4, higher points sorts first.
	if store.upserted[0].ResultID != 3 || store.upserted[1].ResultID != 2 {
		t.Errorf("upsert order = %+v, want [3, 2]", store.upserted)
	}
	for _, pu := range store.upserted {
		if pu.MemberSnapshotID != 99 || pu.UpgradeDiscipline != "road" {
			t.Errorf("unexpected pending upgrade: %+v", pu)
		}
	}
}

func TestRunSkipsWhenConfirmerReturnsNil(t *testing.T) {
	store := &fakePendingStore{
		results: []*types.Result{{ID: 1, Race: &types.Race{Name: "Cat 4 Men"}}},
		points:  []*types.Points{{SumCategories: []int{4}, SumValue: 10}},
	}
	confirmer := &fakeConfirmer{confirmedID: 0}
	// confirmedID of 0 is still a valid pointer (not nil); use a confirmer
	// that returns nil explicitly to test the skip path.
	nilConfirmer := &nilConfirmerStub{}
	c := New(store, nilConfirmer, zerolog.Nop())
	_ = confirmer

	if err := c.Run(context.Background(), nil, discipline.Road); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(store.upserted) != 0 {
		t.Errorf("expected no pending upgrades when confirmer returns nil, got %d", len(store.upserted))
	}
}

type nilConfirmerStub struct{}

func (nilConfirmerStub) ConfirmUpgrade(context.Context, storage.Tx, *types.Result, types.CategorySet) (*int64, error) {
	return nil, nil
}
