package report

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/brandond/obra-upgrades/internal/discipline"
	"github.com/brandond/obra-upgrades/internal/storage"
	"github.com/brandond/obra-upgrades/internal/types"
)

type fakeReportStore struct {
	storage.Store
	results []*types.Result
	points  []*types.Points
}

func (s *fakeReportStore) RosterForDiscipline(context.Context, discipline.Tag, time.Time) ([]*types.Result, []*types.Points, error) {
	return s.results, s.points, nil
}

func personID(id int64) *int64 { return &id }

func TestDisciplineHeading(t *testing.T) {
	tests := []struct {
		in   discipline.Tag
		want string
	}{
		{discipline.Road, "Road"},
		{discipline.MountainBike, "Mountain Bike"},
		{discipline.Cyclocross, "Cyclocross"},
	}
	for _, tt := range tests {
		if got := disciplineHeading(tt.in); got != tt.want {
			t.Errorf("disciplineHeading(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestBuildSectionGroupsAndSortsByName(t *testing.T) {
	race := &types.Race{Name: "Cat 3/4 Men", Date: time.Date(2020, 5, 1, 0, 0, 0, 0, time.UTC)}
	results := []*types.Result{
		{PersonID: personID(2), Person: &types.Person{FirstName: "Zed", LastName: "Zane"}, Race: race},
		{PersonID: personID(1), Person: &types.Person{FirstName: "Amy", LastName: "Adams"}, Race: race},
		{PersonID: nil, Person: nil, Race: race},
	}
	points := []*types.Points{
		{Value: 5, SumValue: 5, NeedsUpgrade: true},
		{Value: 3, SumValue: 3},
		nil,
	}
	store := &fakeReportStore{results: results, points: points}
	r := New(store)

	section, err := r.buildSection(context.Background(), discipline.Road, time.Now())
	if err != nil {
		t.Fatalf("buildSection() error = %v", err)
	}
	if len(section.History) != 2 {
		t.Fatalf("History has %d entries, want 2 (nil-person result excluded)", len(section.History))
	}
	if section.History[0].Name != "Amy Adams" || section.History[1].Name != "Zed Zane" {
		t.Errorf("History not sorted by name: %v, %v", section.History[0].Name, section.History[1].Name)
	}
	if len(section.NeedsUpgrade) != 1 || section.NeedsUpgrade[0].Name != "Zed Zane" {
		t.Errorf("NeedsUpgrade = %+v, want only Zed Zane", section.NeedsUpgrade)
	}
}

func TestBuildReturnsErrorFromStore(t *testing.T) {
	store := &erroringStore{}
	r := New(store)
	_, err := r.Build(context.Background(), []discipline.Tag{discipline.Road}, time.Now())
	if err == nil {
		t.Fatal("Build() error = nil, want non-nil")
	}
}

type erroringStore struct {
	storage.Store
}

func (erroringStore) RosterForDiscipline(context.Context, discipline.Tag, time.Time) ([]*types.Result, []*types.Points, error) {
	return nil, nil, context.DeadlineExceeded
}

func TestMarkdownRendersHeadingsAndTable(t *testing.T) {
	roster := &Roster{
		GeneratedAt: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		Disciplines: []DisciplineSection{
			{
				Discipline: discipline.Road,
				NeedsUpgrade: []personHistory{{Name: "Amy Adams"}},
				History: []personHistory{
					{Name: "Amy Adams", Entries: []historyEntry{{RaceName: "Spring Classic", Date: time.Date(2020, 4, 1, 0, 0, 0, 0, time.UTC), Value: 5, SumValue: 5}}},
				},
			},
		},
	}

	md := roster.Markdown()
	if !strings.Contains(md, "## Road") {
		t.Error("expected a Road heading in the rendered markdown")
	}
	if !strings.Contains(md, "Amy Adams") {
		t.Error("expected Amy Adams to appear in the rendered markdown")
	}
	if !strings.Contains(md, "Spring Classic") {
		t.Error("expected the race name to appear in the rendered markdown")
	}
}

func TestMarkdownNoUpgradesMessage(t *testing.T) {
	roster := &Roster{Disciplines: []DisciplineSection{{Discipline: discipline.Track}}}
	md := roster.Markdown()
	if !strings.Contains(md, "No riders currently need an upgrade.") {
		t.Error("expected the no-upgrades message when NeedsUpgrade is empty")
	}
}
