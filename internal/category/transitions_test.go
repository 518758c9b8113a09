package category

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/brandond/obra-upgrades/internal/discipline"
	"github.com/brandond/obra-upgrades/internal/storage"
	"github.com/brandond/obra-upgrades/internal/types"
)

func TestIsFirstSightingCandidate(t *testing.T) {
	tests := []struct {
		cats []int
		want bool
	}{
		{[]int{1}, true},
		{[]int{1, 2}, true},
		{[]int{1, 2, 3}, true},
		{[]int{3, 4, 5}, true},
		{[]int{2, 3}, false},
		{[]int{4}, false},
		{nil, false},
	}
	for _, tt := range tests {
		if got := isFirstSightingCandidate(tt.cats); got != tt.want {
			t.Errorf("isFirstSightingCandidate(%v) = %v, want %v", tt.cats, got, tt.want)
		}
	}
}

func TestContainsCategory(t *testing.T) {
	s := types.NewCategorySet(1, 3)
	if !containsCategory(s, 1) {
		t.Error("expected set to contain 1")
	}
	if containsCategory(s, 2) {
		t.Error("expected set not to contain 2")
	}
}

func TestRaceEventDiscipline(t *testing.T) {
	if got := raceEventDiscipline(&types.Race{}); got != "" {
		t.Errorf("raceEventDiscipline(no event) = %q, want empty", got)
	}
	r := &types.Race{Event: &types.Event{Discipline: "cyclocross"}}
	if got := raceEventDiscipline(r); got != "cyclocross" {
		t.Errorf("raceEventDiscipline() = %q, want cyclocross", got)
	}
}

func TestMemberCategoryFor(t *testing.T) {
	if got := memberCategoryFor(nil, "road"); got != nil {
		t.Error("expected nil snapshot to yield nil category")
	}
	cat := 2
	snap := &types.MemberSnapshot{CategoryRoad: &cat}
	got := memberCategoryFor(snap, "road")
	if got == nil || *got != 2 {
		t.Errorf("memberCategoryFor() = %v, want 2", got)
	}
}

func TestDaysSinceUpgradeNilIsFarPast(t *testing.T) {
	current := &types.Race{Date: time.Now()}
	if got := daysSinceUpgrade(nil, current); got != farPastSentinelDays {
		t.Errorf("daysSinceUpgrade(nil, ...) = %d, want sentinel %d", got, farPastSentinelDays)
	}
}

func TestDaysSinceUpgrade(t *testing.T) {
	upgrade := &types.Race{Date: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)}
	current := &types.Race{Date: time.Date(2020, 2, 1, 0, 0, 0, 0, time.UTC)}
	if got := daysSinceUpgrade(upgrade, current); got != 31 {
		t.Errorf("daysSinceUpgrade() = %d, want 31", got)
	}
}

// deletePointsStore is a minimal storage.Store that only records calls to
// DeletePointsForResult and SetPointsValue, the only two mutations the
// transition handlers perform directly.
type deletePointsStore struct {
	storage.Store
	deletedResult   int64
	deleteCalled    bool
	setValueResult  int64
	setValue        int
	setValueCalled  bool
}

func (s *deletePointsStore) DeletePointsForResult(_ context.Context, _ storage.Tx, resultID int64) error {
	s.deleteCalled = true
	s.deletedResult = resultID
	return nil
}

func (s *deletePointsStore) SetPointsValue(_ context.Context, _ storage.Tx, resultID int64, value int) error {
	s.setValueCalled = true
	s.setValueResult = resultID
	s.setValue = value
	return nil
}

func TestTransitionAlreadyCatOneErasesPoints(t *testing.T) {
	store := &deletePointsStore{}
	m := &Machine{store: store, log: zerolog.Nop()}

	state := &personState{
		PersonID:    1,
		CategorySet: types.NewCategorySet(1),
		CatPoints:   []catPoint{{Value: 5}},
	}
	res := &types.Result{ID: 42, Race: &types.Race{Categories: []int{1}}}

	notes, err := m.transition(context.Background(), nil, discipline.Road, state, res, nil, nil)
	if err != nil {
		t.Fatalf("transition() error = %v", err)
	}
	if len(state.CatPoints) != 0 {
		t.Errorf("expected CatPoints to be cleared, got %v", state.CatPoints)
	}
	if !store.deleteCalled || store.deletedResult != 42 {
		t.Errorf("expected DeletePointsForResult(42), called=%v id=%d", store.deleteCalled, store.deletedResult)
	}
	if len(notes) != 0 {
		t.Errorf("expected no notes, got %v", notes)
	}
}

func TestTransitionDroppedDownZeroesPoints(t *testing.T) {
	store := &deletePointsStore{}
	m := &Machine{store: store, log: zerolog.Nop()}

	state := &personState{
		PersonID:    1,
		CategorySet: types.NewCategorySet(2),
		CatPoints:   []catPoint{{Value: 5}},
		UpgradeRace: &types.Race{Date: time.Now()},
	}
	res := &types.Result{ID: 7, Race: &types.Race{Categories: []int{3}, Date: time.Now()}}
	pts := &types.Points{ResultID: 7, Value: 4}

	notes, err := m.transition(context.Background(), nil, discipline.Road, state, res, pts, nil)
	if err != nil {
		t.Fatalf("transition() error = %v", err)
	}
	if !store.setValueCalled || store.setValueResult != 7 || store.setValue != 0 {
		t.Errorf("expected SetPointsValue(7, 0), called=%v id=%d value=%d", store.setValueCalled, store.setValueResult, store.setValue)
	}
	if pts.Value != 0 {
		t.Errorf("expected in-memory Points.Value to be zeroed, got %d", pts.Value)
	}
	found := false
	for _, n := range notes {
		if n == "NO POINTS FOR RACING BELOW CATEGORY" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected the below-category note, got %v", notes)
	}
}

// TestHandleJumpedUpFromUnknownNonFirstSighting covers a "Cat 2/3"
// first-sighting field: [2,3] is not one of the candidate
// shapes (§4.4 5(c)), so the rider's category set becomes the full race
// category set, not a singleton of its max.
func TestHandleJumpedUpFromUnknownNonFirstSighting(t *testing.T) {
	store := &deletePointsStore{}
	m := &Machine{store: store, log: zerolog.Nop()}

	state := &personState{PersonID: 1, CategorySet: types.NewCategorySet(types.UnknownCategory)}
	res := &types.Result{ID: 9, Race: &types.Race{Categories: []int{2, 3}, Date: time.Now()}}
	r := res.Race.CategorySet()

	notes, err := m.handleJumpedUp(context.Background(), nil, discipline.Road, state, res, r, nil)
	if err != nil {
		t.Fatalf("handleJumpedUp() error = %v", err)
	}
	if !state.CategorySet.Equal(types.NewCategorySet(2, 3)) {
		t.Errorf("expected new category set to be the full race set {2,3}, got %v", state.CategorySet.Sorted())
	}
	if len(notes) != 1 || notes[0] != "" {
		t.Errorf("expected a single blank placeholder note, got %v", notes)
	}
}

// TestHandleJumpedUpFromUnknownFirstSightingCandidate covers a candidate
// shape ([3,4,5]) with no membership data available: the rider's
// category becomes the singleton max of the field, not the full set.
func TestHandleJumpedUpFromUnknownFirstSightingCandidate(t *testing.T) {
	store := &deletePointsStore{}
	m := &Machine{store: store, log: zerolog.Nop()}

	state := &personState{PersonID: 1, CategorySet: types.NewCategorySet(types.UnknownCategory)}
	res := &types.Result{ID: 10, Race: &types.Race{Categories: []int{3, 4, 5}, Date: time.Now()}}
	r := res.Race.CategorySet()

	notes, err := m.handleJumpedUp(context.Background(), nil, discipline.Road, state, res, r, nil)
	if err != nil {
		t.Fatalf("handleJumpedUp() error = %v", err)
	}
	if !state.CategorySet.Equal(types.NewCategorySet(5)) {
		t.Errorf("expected new category to be the singleton race max (5), got %v", state.CategorySet.Sorted())
	}
	if len(notes) != 1 || notes[0] != "" {
		t.Errorf("expected a single blank placeholder note, got %v", notes)
	}
}
