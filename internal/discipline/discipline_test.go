package discipline

import "testing"

func TestAllOrder(t *testing.T) {
	want := []Tag{Cyclocross, Road, MountainBike, Track}
	got := All()
	if len(got) != len(want) {
		t.Fatalf("All() len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("All()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestAllReturnsCopy(t *testing.T) {
	got := All()
	got[0] = "mutated"
	if order[0] == "mutated" {
		t.Error("All() leaked a reference to the internal order slice")
	}
}

func TestForEventDiscipline(t *testing.T) {
	tests := []struct {
		event string
		want  Tag
		ok    bool
	}{
		{"cyclocross", Cyclocross, true},
		{"criterium", Road, true},
		{"gravel", Road, true},
		{"downhill", MountainBike, true},
		{"track", Track, true},
		{"underwater_basket_weaving", "", false},
	}
	for _, tt := range tests {
		got, ok := ForEventDiscipline(tt.event)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ForEventDiscipline(%q) = (%q, %v), want (%q, %v)", tt.event, got, ok, tt.want, tt.ok)
		}
	}
}

func TestValid(t *testing.T) {
	for _, d := range All() {
		if !Valid(d) {
			t.Errorf("Valid(%q) = false, want true", d)
		}
	}
	if Valid("nonsense") {
		t.Error("Valid(nonsense) = true, want false")
	}
}

func TestEventDisciplines(t *testing.T) {
	if got := EventDisciplines(Road); len(got) == 0 {
		t.Error("EventDisciplines(Road) returned nothing")
	}
	if got := EventDisciplines("nonsense"); got != nil {
		t.Errorf("EventDisciplines(nonsense) = %v, want nil", got)
	}
}
