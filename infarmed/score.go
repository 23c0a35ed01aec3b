package infarmed

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dosesegura/dose-segura/textnorm"
)

const (
	scoreDCIExact      = 100
	scoreDCIContains   = 80
	scoreNameContains  = 40
	scoreInjectable    = 30
	scoreNotInjectable = -10
	scorePreferred     = 500
)

// Overrides are per-medication exceptions to the scoring. Keys are medication
// identifiers as produced by MedID.
type Overrides struct {
	// PreferredHolders boosts candidates whose holder is listed
	PreferredHolders map[string][]string `yaml:"preferredHolders"`
	// PreferredIndexes moves the candidate at that ranked position to the front
	PreferredIndexes map[string]int `yaml:"preferredIndexes"`
}

// DefaultOverrides returns the built-in exception tables
func DefaultOverrides() *Overrides {
	return &Overrides{
		PreferredHolders: map[string][]string{
			"voriconazol": {"Laboratórios Normon, S.A."},
		},
		PreferredIndexes: map[string]int{
			"tigeciclina": 2,
		},
	}
}

// LoadOverrides reads a YAML overrides file. An empty path returns the
// defaults; a file replaces them entirely.
func LoadOverrides(path string) (*Overrides, error) {
	if path == "" {
		return DefaultOverrides(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read overrides %s: %w", path, err)
	}

	var ov Overrides
	if err := yaml.Unmarshal(data, &ov); err != nil {
		return nil, fmt.Errorf("failed to decode overrides %s: %w", path, err)
	}
	if err := ov.validate(); err != nil {
		return nil, fmt.Errorf("invalid overrides %s: %w", path, err)
	}
	if ov.PreferredHolders == nil {
		ov.PreferredHolders = map[string][]string{}
	}
	if ov.PreferredIndexes == nil {
		ov.PreferredIndexes = map[string]int{}
	}
	return &ov, nil
}

func (o *Overrides) validate() error {
	var errs []error
	for id, idx := range o.PreferredIndexes {
		if idx < 0 {
			errs = append(errs, fmt.Errorf("preferred index for %s is negative: %d", id, idx))
		}
	}
	return errors.Join(errs...)
}

func (o *Overrides) holdersFor(medID string) []string {
	if o == nil {
		return nil
	}
	return o.PreferredHolders[medID]
}

func (o *Overrides) indexFor(medID string) (int, bool) {
	if o == nil {
		return 0, false
	}
	idx, ok := o.PreferredIndexes[medID]
	return idx, ok
}

// ScoredCandidate pairs a candidate with its ranking score
type ScoredCandidate struct {
	Candidate
	Score int `json:"score"`
}

// Score rates a candidate against an already normalized search term
func Score(c Candidate, normalizedSearch string, preferredHolders []string) int {
	score := 0

	dci := textnorm.Normalize(c.DCI)
	if dci == normalizedSearch {
		score += scoreDCIExact
	} else if strings.Contains(dci, normalizedSearch) {
		score += scoreDCIContains
	}

	if strings.Contains(textnorm.Normalize(c.Name), normalizedSearch) {
		score += scoreNameContains
	}

	if IsInjectable(c.Form) {
		score += scoreInjectable
	} else {
		score += scoreNotInjectable
	}

	if slices.Contains(preferredHolders, c.Holder) {
		score += scorePreferred
	}

	return score
}

// Rank scores every candidate against searchTerm, keeps the injectable ones
// and orders them by descending score, ties keeping portal order. A preferred
// index for medID then moves that candidate to the front. The result is empty
// when no candidate is injectable.
func Rank(candidates []Candidate, searchTerm, medID string, ov *Overrides) []ScoredCandidate {
	normalized := textnorm.Normalize(searchTerm)
	holders := ov.holdersFor(medID)

	ranked := make([]ScoredCandidate, 0, len(candidates))
	for _, c := range candidates {
		if !IsInjectable(c.Form) {
			continue
		}
		ranked = append(ranked, ScoredCandidate{Candidate: c, Score: Score(c, normalized, holders)})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})

	if idx, ok := ov.indexFor(medID); ok && idx >= 0 && idx < len(ranked) {
		preferred := ranked[idx]
		copy(ranked[1:idx+1], ranked[:idx])
		ranked[0] = preferred
	}

	return ranked
}
