package category

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/brandond/obra-upgrades/internal/storage"
	"github.com/brandond/obra-upgrades/internal/types"
)

// Confirmer is the §4.5 confirmation capability the Pending-Upgrade
// Confirmer (component E, internal/pending) shares with the Category
// State Machine, so pending can run the same check against a category the
// rider hasn't actually raced into yet.
type Confirmer interface {
	ConfirmUpgrade(ctx context.Context, tx storage.Tx, res *types.Result, targetCategories types.CategorySet) (*int64, error)
}

var _ Confirmer = (*Machine)(nil)

// ConfirmUpgrade runs the §4.5 check for a hypothetical upgrade into
// targetCategories: it exists so §4.8's confirmer can ask "would the
// federation's own data corroborate this rider upgrading to category X",
// without a live UPGRADED/DOWNGRADED note already on the result.
func (m *Machine) ConfirmUpgrade(ctx context.Context, tx storage.Tx, res *types.Result, targetCategories types.CategorySet) (*int64, error) {
	_, confirmedID, err := m.confirm(ctx, tx, res, []string{"UPGRADED"}, targetCategories, raceEventDiscipline(res.Race))
	return confirmedID, err
}

// confirm implements §4.5: given a Result whose notes for this race may
// contain an UPGRADED or DOWNGRADED transition, fetch the external
// MemberSnapshot on/before the race date and, if it corroborates the
// transition direction, mark the Points row confirmed and annotate the
// note. Only the first matching note is confirmed.
func (m *Machine) confirm(ctx context.Context, tx storage.Tx, res *types.Result, notes []string, sumCategories types.CategorySet, eventDiscipline string) ([]string, *int64, error) {
	snapshot, err := m.memberSnapshot(ctx, tx, *res.PersonID, res.Race.Date)
	if err != nil {
		return notes, nil, fmt.Errorf("member snapshot lookup: %w", err)
	}
	if snapshot == nil {
		return notes, nil, nil
	}
	obraCat := snapshot.CategoryFor(eventDiscipline)
	if obraCat == nil {
		return notes, nil, nil
	}

	minCat := sumCategories.Min()
	for i, note := range notes {
		switch {
		case strings.Contains(note, "UPGRADED") && *obraCat <= minCat:
			notes[i] = note + fmt.Sprintf(" (CONFIRMED %s)", snapshot.Date.Format("2006-01-02"))
			id := snapshot.ID
			return notes, &id, nil
		case strings.Contains(note, "DOWNGRADED") && *obraCat >= minCat:
			notes[i] = note + fmt.Sprintf(" (CONFIRMED %s)", snapshot.Date.Format("2006-01-02"))
			id := snapshot.ID
			return notes, &id, nil
		}
	}
	return notes, nil, nil
}

// formatNotes joins distinct non-empty notes by "; " in reverse-sorted,
// title-cased order, per the final bullet of §4.4 step 7.
func formatNotes(notes []string) string {
	seen := make(map[string]struct{}, len(notes))
	var distinct []string
	for _, n := range notes {
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		distinct = append(distinct, n)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(distinct)))
	for i, n := range distinct {
		distinct[i] = titleCase(n)
	}
	return strings.Join(distinct, "; ")
}

// titleCase upper-cases the first letter of each space-separated word,
// lower-casing the rest. Notes are built from upper-case templates (e.g.
// "UPGRADED TO 3 WITH 30 POINTS"); this mirrors the source's notes
// formatting rather than prose conventions.
func titleCase(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		r := []rune(w)
		if len(r) > 0 {
			r[0] = []rune(strings.ToUpper(string(r[0])))[0]
		}
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}
