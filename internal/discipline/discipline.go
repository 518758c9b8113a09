// Package discipline holds the canonical upgrade-discipline map (spec §4.1):
// the four coarse groupings riders accumulate upgrade points under, and the
// finer-grained event disciplines that feed each one.
package discipline

// Tag identifies one of the four upgrade-disciplines.
type Tag string

const (
	Cyclocross   Tag = "cyclocross"
	Road         Tag = "road"
	MountainBike Tag = "mountain_bike"
	Track        Tag = "track"
)

// order is the iteration order used by reporting and the scheduler: it
// must be preserved, so this is a slice rather than a map key range.
var order = []Tag{Cyclocross, Road, MountainBike, Track}

// eventDisciplines maps each upgrade-discipline to the set of
// Event.Discipline tags that roll up into it.
var eventDisciplines = map[Tag][]string{
	Cyclocross:   {"cyclocross"},
	Road:         {"road", "circuit", "criterium", "gran_fondo", "gravel", "time_trial", "tour"},
	MountainBike: {"mountain_bike", "downhill", "super_d", "short_track"},
	Track:        {"track"},
}

// All returns the four upgrade-disciplines in canonical order.
func All() []Tag {
	out := make([]Tag, len(order))
	copy(out, order)
	return out
}

// EventDisciplines returns the event-discipline tags that roll up into t.
func EventDisciplines(t Tag) []string {
	return eventDisciplines[t]
}

// ForEventDiscipline returns the upgrade-discipline that the given
// Event.Discipline tag rolls up into, and whether one was found.
func ForEventDiscipline(eventDiscipline string) (Tag, bool) {
	for _, t := range order {
		for _, ed := range eventDisciplines[t] {
			if ed == eventDiscipline {
				return t, true
			}
		}
	}
	return "", false
}

// Valid reports whether t is one of the four known upgrade-disciplines.
func Valid(t Tag) bool {
	for _, known := range order {
		if known == t {
			return true
		}
	}
	return false
}
