// Package report implements the Reporter (component G, spec §4.10): a
// human-readable upgrade roster, built once as Markdown and projected
// across three pluggable sinks (text, html, null).
package report

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/brandond/obra-upgrades/internal/discipline"
	"github.com/brandond/obra-upgrades/internal/storage"
	"github.com/brandond/obra-upgrades/internal/types"
)

// Reporter builds the upgrade roster for a set of disciplines.
type Reporter struct {
	store storage.Store
}

// New constructs a Reporter over store.
func New(store storage.Store) *Reporter {
	return &Reporter{store: store}
}

// personHistory is one rider's results within the reporting window for a
// single discipline.
type personHistory struct {
	PersonID    int64
	Name        string
	NeedsUpgrade bool
	Entries     []historyEntry
}

type historyEntry struct {
	RaceName string
	Date     time.Time
	Value    int
	SumValue int
	Notes    string
}

// Roster is the Reporter's intermediate representation: everything the
// Markdown projection needs, independent of output sink.
type Roster struct {
	GeneratedAt time.Time
	Disciplines []DisciplineSection
}

// DisciplineSection is one upgrade-discipline's slice of the roster.
type DisciplineSection struct {
	Discipline discipline.Tag
	NeedsUpgrade []personHistory
	History      []personHistory
}

// Build implements §4.10: for each discipline, riders whose latest Points
// has needs_upgrade = true, followed by the full per-rider points history
// within the last calendar year (since, supplied by the caller — spec's
// expanded CLI surface exposes this as `obrad report --since`).
func (r *Reporter) Build(ctx context.Context, disciplines []discipline.Tag, since time.Time) (*Roster, error) {
	roster := &Roster{GeneratedAt: time.Now()}
	for _, d := range disciplines {
		section, err := r.buildSection(ctx, d, since)
		if err != nil {
			return nil, fmt.Errorf("build roster section for %s: %w", d, err)
		}
		roster.Disciplines = append(roster.Disciplines, section)
	}
	return roster, nil
}

func (r *Reporter) buildSection(ctx context.Context, d discipline.Tag, since time.Time) (DisciplineSection, error) {
	results, points, err := r.store.RosterForDiscipline(ctx, d, since)
	if err != nil {
		return DisciplineSection{}, err
	}

	byPerson := make(map[int64]*personHistory)
	var order []int64
	for i, res := range results {
		if res.PersonID == nil || res.Person == nil {
			continue
		}
		h, ok := byPerson[*res.PersonID]
		if !ok {
			h = &personHistory{PersonID: *res.PersonID, Name: res.Person.FullName()}
			byPerson[*res.PersonID] = h
			order = append(order, *res.PersonID)
		}
		pts := points[i]
		entry := historyEntry{RaceName: raceName(res), Date: raceDate(res)}
		if pts != nil {
			entry.Value = pts.Value
			entry.SumValue = pts.SumValue
			entry.Notes = pts.Notes
			// Results arrive oldest first, so the latest Points row decides.
			h.NeedsUpgrade = pts.NeedsUpgrade
		}
		h.Entries = append(h.Entries, entry)
	}

	section := DisciplineSection{Discipline: d}
	for _, id := range order {
		h := *byPerson[id]
		section.History = append(section.History, h)
		if h.NeedsUpgrade {
			section.NeedsUpgrade = append(section.NeedsUpgrade, h)
		}
	}
	sort.Slice(section.NeedsUpgrade, func(i, j int) bool { return section.NeedsUpgrade[i].Name < section.NeedsUpgrade[j].Name })
	sort.Slice(section.History, func(i, j int) bool { return section.History[i].Name < section.History[j].Name })
	return section, nil
}

// disciplineHeading turns a discipline tag like "cyclocross" into a
// Markdown-heading label; avoids the deprecated strings.Title.
func disciplineHeading(d discipline.Tag) string {
	words := strings.Fields(strings.ReplaceAll(string(d), "_", " "))
	for i, w := range words {
		r := []rune(w)
		if len(r) > 0 {
			r[0] = []rune(strings.ToUpper(string(r[0])))[0]
		}
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}

func raceName(res *types.Result) string {
	if res.Race == nil {
		return "?"
	}
	return res.Race.Name
}

func raceDate(res *types.Result) time.Time {
	if res.Race == nil {
		return time.Time{}
	}
	return res.Race.Date
}

// Markdown renders the roster as plain Markdown: the single source of
// truth every sink projects from (spec's expanded "Reporter output sinks").
func (r *Roster) Markdown() string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Upgrade Roster\n\n_generated %s_\n\n", r.GeneratedAt.Format("2006-01-02"))

	for _, section := range r.Disciplines {
		fmt.Fprintf(&b, "## %s\n\n", disciplineHeading(section.Discipline))

		if len(section.NeedsUpgrade) == 0 {
			b.WriteString("No riders currently need an upgrade.\n\n")
		} else {
			b.WriteString("### Needs upgrade\n\n")
			for _, h := range section.NeedsUpgrade {
				fmt.Fprintf(&b, "- **%s**\n", h.Name)
			}
			b.WriteString("\n")
		}

		b.WriteString("### Points history (last year)\n\n")
		for _, h := range section.History {
			fmt.Fprintf(&b, "#### %s\n\n", h.Name)
			b.WriteString("| Race | Date | Points | Running total | Notes |\n")
			b.WriteString("|---|---|---|---|---|\n")
			for _, e := range h.Entries {
				fmt.Fprintf(&b, "| %s | %s | %d | %d | %s |\n",
					e.RaceName, e.Date.Format("2006-01-02"), e.Value, e.SumValue, e.Notes)
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}
