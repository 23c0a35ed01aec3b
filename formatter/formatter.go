// Package formatter normalizes the wording of the medication dataset:
// acronyms are expanded, terminology is standardized and comparison symbols
// are spelled out.
package formatter

import (
	"strings"
	"time"

	"github.com/dosesegura/dose-segura/entities"
	"github.com/dosesegura/dose-segura/logging"
)

// Issue is one entry whose formatted text differs from the current one
type Issue struct {
	MedicationID string
	Section      entities.Section
	Index        int
	Current      string
	Formatted    string
}

// Report lists what Check found or what Fix changed
type Report struct {
	Issues  []Issue
	Missing []MissingContent
}

// Formatter applies the rewrite tables
type Formatter struct {
	rewrites []rewrite
	missing  []MissingContent
}

// New returns a formatter with the built-in tables
func New() *Formatter {
	return &Formatter{
		rewrites: buildRewrites(),
		missing:  missingContent,
	}
}

// maxPasses bounds FormatText when a rewrite exposes a new match, as ">µg"
// does once ">" becomes "maior que" and "µg" no longer sits after a symbol
const maxPasses = 4

// FormatText applies every rewrite to s, in order, repeating until the text
// stops changing so the result is stable under a second call
func (f *Formatter) FormatText(s string) string {
	for pass := 0; pass < maxPasses; pass++ {
		next := f.formatOnce(s)
		if next == s {
			break
		}
		s = next
	}
	return s
}

func (f *Formatter) formatOnce(s string) string {
	for _, rw := range f.rewrites {
		s = rw(s)
	}
	return s
}

// FormatMedication returns a copy of m with every section entry formatted
func (f *Formatter) FormatMedication(m entities.Medication) entities.Medication {
	out := m.Clone()
	for _, section := range entities.Sections {
		field := out.Field(section)
		for i, entry := range *field {
			(*field)[i] = f.FormatText(entry)
		}
	}
	return out
}

// Check reports every entry that would change and every missing entry,
// without touching the dataset
func (f *Formatter) Check(ds *entities.Dataset) *Report {
	report := &Report{Issues: []Issue{}, Missing: []MissingContent{}}

	for _, id := range ds.Medications.Keys() {
		current, _ := ds.Medications.Get(id)
		report.Issues = append(report.Issues, f.diff(id, current)...)
	}

	for _, mc := range f.missing {
		m, ok := ds.Medications.Get(mc.MedicationID)
		if !ok {
			continue
		}
		if !hasEntry(*m.Field(mc.Section), mc.Text) {
			report.Missing = append(report.Missing, mc)
		}
	}

	return report
}

func (f *Formatter) diff(id string, current entities.Medication) []Issue {
	formatted := f.FormatMedication(current)
	var issues []Issue
	for _, section := range entities.Sections {
		before, after := *current.Field(section), *formatted.Field(section)
		for i := range before {
			if before[i] != after[i] {
				issues = append(issues, Issue{
					MedicationID: id,
					Section:      section,
					Index:        i,
					Current:      before[i],
					Formatted:    after[i],
				})
			}
		}
	}
	return issues
}

// Fix formats every medication in place, merges missing entries and sets
// lastUpdated to the date of now. The report lists what changed.
func (f *Formatter) Fix(ds *entities.Dataset, now time.Time) *Report {
	report := &Report{Issues: []Issue{}, Missing: []MissingContent{}}

	for _, id := range ds.Medications.Keys() {
		current, _ := ds.Medications.Get(id)
		report.Issues = append(report.Issues, f.diff(id, current)...)
		ds.Medications.Set(id, f.FormatMedication(current))
	}

	for _, mc := range f.missing {
		m, ok := ds.Medications.Get(mc.MedicationID)
		if !ok {
			continue
		}
		field := m.Field(mc.Section)
		if *field == nil {
			*field = []string{}
		}
		if hasEntry(*field, mc.Text) {
			continue
		}
		logging.Info("Adding missing content", "id", mc.MedicationID, "section", string(mc.Section), "text", truncate(mc.Text, 50))
		*field = append(*field, mc.Text)
		ds.Medications.Set(mc.MedicationID, m)
		report.Missing = append(report.Missing, mc)
	}

	ds.LastUpdated = now.UTC().Format(time.DateOnly)
	return report
}

// hasEntry reports whether an entry already contains the text of item up to
// its first colon, ignoring case
func hasEntry(entries []string, item string) bool {
	lead, _, _ := strings.Cut(strings.ToLower(item), ":")
	for _, e := range entries {
		if strings.Contains(strings.ToLower(e), lead) {
			return true
		}
	}
	return false
}

func truncate(s string, n int) string {
	if len([]rune(s)) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
