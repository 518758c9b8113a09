// Package schedule implements the Points Schedule (spec §4.2): the static
// lookup from (event discipline, race date, field gender, starter count) to
// an ordered places-to-points vector.
package schedule

import (
	"strings"
	"time"
)

// Field distinguishes an open/men's field from a women's field. Women's
// races fall back to the open table when no women-specific entry exists.
type Field string

const (
	Open  Field = "open"
	Women Field = "women"
)

// entry is one row of a points table: the starter-count band this vector
// applies to, and the ordered point awards for places 1..len(Points).
type entry struct {
	MinStarters int
	MaxStarters int
	Points      []int
}

type table map[string]map[Field][]entry

// cutover2019 is the date on or after which the 2019 schedule applies;
// races before it use the 2018 schedule.
var cutover2019 = time.Date(2019, time.August, 31, 0, 0, 0, 0, time.UTC)

var schedule2018 = table{
	"cyclocross": {
		Open: {
			{MinStarters: 0, MaxStarters: 19, Points: []int{6, 5, 4, 3, 2, 1}},
			{MinStarters: 20, MaxStarters: 39, Points: []int{8, 7, 6, 5, 4, 3, 2, 1}},
			{MinStarters: 40, MaxStarters: 1 << 30, Points: []int{10, 9, 8, 7, 6, 5, 4, 3, 2, 1}},
		},
	},
	"circuit": {
		Open: {
			{MinStarters: 0, MaxStarters: 29, Points: []int{5, 4, 3, 2, 1}},
			{MinStarters: 30, MaxStarters: 1 << 30, Points: []int{8, 6, 5, 4, 3, 2, 1}},
		},
	},
	"criterium": {
		Open: {
			{MinStarters: 0, MaxStarters: 29, Points: []int{5, 4, 3, 2, 1}},
			{MinStarters: 30, MaxStarters: 1 << 30, Points: []int{8, 6, 5, 4, 3, 2, 1}},
		},
	},
	"road": {
		Open: {
			{MinStarters: 0, MaxStarters: 29, Points: []int{6, 5, 4, 3, 2, 1}},
			{MinStarters: 30, MaxStarters: 1 << 30, Points: []int{10, 8, 6, 5, 4, 3, 2, 1}},
		},
	},
	"tour": {
		Open: {
			{MinStarters: 0, MaxStarters: 1 << 30, Points: []int{15, 12, 10, 8, 6, 5, 4, 3, 2, 1}},
		},
	},
}

// schedule2019 keeps the 2018 open-field starter bands, raises the awards
// of most bands slightly (the largest cyclocross band and large road
// fields are unchanged), and adds women's-field entries for the
// disciplines where the federation published one.
var schedule2019 = table{
	"cyclocross": {
		Open: {
			{MinStarters: 0, MaxStarters: 19, Points: []int{7, 6, 5, 4, 3, 2, 1}},
			{MinStarters: 20, MaxStarters: 39, Points: []int{9, 8, 7, 6, 5, 4, 3, 2, 1}},
			{MinStarters: 40, MaxStarters: 1 << 30, Points: []int{10, 9, 8, 7, 6, 5, 4, 3, 2, 1}},
		},
		Women: {
			{MinStarters: 0, MaxStarters: 14, Points: []int{6, 5, 4, 3, 2, 1}},
			{MinStarters: 15, MaxStarters: 1 << 30, Points: []int{10, 9, 8, 7, 6, 5, 4, 3, 2, 1}},
		},
	},
	"circuit": {
		Open: {
			{MinStarters: 0, MaxStarters: 29, Points: []int{6, 5, 4, 3, 2, 1}},
			{MinStarters: 30, MaxStarters: 1 << 30, Points: []int{9, 7, 6, 5, 4, 3, 2, 1}},
		},
	},
	"criterium": {
		Open: {
			{MinStarters: 0, MaxStarters: 29, Points: []int{6, 5, 4, 3, 2, 1}},
			{MinStarters: 30, MaxStarters: 1 << 30, Points: []int{9, 7, 6, 5, 4, 3, 2, 1}},
		},
	},
	"road": {
		Open: {
			{MinStarters: 0, MaxStarters: 29, Points: []int{7, 6, 5, 4, 3, 2, 1}},
			{MinStarters: 30, MaxStarters: 1 << 30, Points: []int{10, 8, 6, 5, 4, 3, 2, 1}},
		},
		Women: {
			{MinStarters: 0, MaxStarters: 1 << 30, Points: []int{10, 8, 6, 5, 4, 3, 2, 1}},
		},
	},
	"tour": {
		Open: {
			{MinStarters: 0, MaxStarters: 1 << 30, Points: []int{20, 16, 13, 10, 8, 6, 5, 4, 3, 2, 1}},
		},
	},
}

// detectField reports the Field a race competes in, from its name: the
// race is women's when its name contains (case-insensitive) "women" or
// "junior" (§4.2 "A race is detected as women's when its name contains
// ... women or junior").
func detectField(raceName string) Field {
	lower := strings.ToLower(raceName)
	if strings.Contains(lower, "women") || strings.Contains(lower, "junior") {
		return Women
	}
	return Open
}

// Lookup resolves the points vector for a race. It returns an empty slice
// (no error) when the discipline is not scheduled at all, or when no
// starter-count band matches — both are "no points" outcomes per §4.2/§4.3.
func Lookup(eventDiscipline string, raceDate time.Time, raceName string, starters int) []int {
	t := schedule2018
	if !raceDate.Before(cutover2019) {
		t = schedule2019
	}

	disciplineTable, ok := t[eventDiscipline]
	if !ok {
		return nil
	}

	field := detectField(raceName)
	entries, ok := disciplineTable[field]
	if !ok || len(entries) == 0 {
		// Women's races fall back to the open table when no
		// women-specific entry exists.
		entries, ok = disciplineTable[Open]
		if !ok {
			return nil
		}
	}

	for _, e := range entries {
		if starters >= e.MinStarters && starters <= e.MaxStarters {
			out := make([]int, len(e.Points))
			copy(out, e.Points)
			return out
		}
	}
	return nil
}
