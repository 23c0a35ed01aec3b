// Package infarmed searches the Infarmed medicines portal for a medication,
// picks the best injectable match and downloads its RCM and FI documents.
package infarmed

import (
	"strings"

	"github.com/dosesegura/dose-segura/textnorm"
)

// saltTokens are salt and ester suffixes dropped to build broader searches
var saltTokens = map[string]struct{}{
	"sodico":        {},
	"sodica":        {},
	"cloridrato":    {},
	"bitartrato":    {},
	"acetato":       {},
	"succinato":     {},
	"hemisuccinato": {},
	"hemi":          {},
	"lactobionato":  {},
	"mesilato":      {},
	"besilato":      {},
	"fosfato":       {},
	"brometo":       {},
	"sulfato":       {},
	"magnesico":     {},
	"potassico":     {},
	"disodico":      {},
	"decanoato":     {},
	"tartrato":      {},
}

// injectableTokens mark an injectable pharmaceutical form once normalized
var injectableTokens = []string{
	"injetavel",
	"injectavel",
	"injecao",
	"perfusao",
	"infusao",
	"intravenosa",
}

// MedID returns the directory identifier of a search term
func MedID(term string) string {
	return textnorm.Slugify(term)
}

func isSalt(token string) bool {
	_, ok := saltTokens[textnorm.Fold(token)]
	return ok
}

// BuildSearchTerms expands a medication name into the ordered list of portal
// queries to try: the name, its first token, its first two tokens, the
// reversed name and the same variants with salt suffixes removed. Duplicates
// keep their first position.
func BuildSearchTerms(name string) []string {
	base := strings.TrimSpace(strings.ReplaceAll(name, "-", " "))
	tokens := strings.Fields(base)
	// collapse inner runs of spaces the same way the tokens see them
	if len(tokens) > 0 {
		base = strings.Join(tokens, " ")
	}

	terms := []string{base}

	if len(tokens) > 1 {
		terms = append(terms, tokens[0])
	}
	if len(tokens) > 2 {
		terms = append(terms, strings.Join(tokens[:2], " "))
	}
	if len(tokens) > 1 {
		reversed := make([]string, len(tokens))
		for i, t := range tokens {
			reversed[len(tokens)-1-i] = t
		}
		terms = append(terms, strings.Join(reversed, " "))

		withoutSalts := make([]string, 0, len(tokens))
		for _, t := range tokens {
			if !isSalt(t) {
				withoutSalts = append(withoutSalts, t)
			}
		}
		if len(withoutSalts) > 0 && len(withoutSalts) != len(tokens) {
			terms = append(terms, strings.Join(withoutSalts, " "), withoutSalts[0])
			if len(withoutSalts) > 1 {
				terms = append(terms, strings.Join(withoutSalts[:2], " "))
			}
		}
	}

	return dedupe(terms)
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// IsInjectable reports whether a pharmaceutical form describes an injectable
func IsInjectable(form string) bool {
	if form == "" {
		return false
	}
	normalized := textnorm.Normalize(form)
	for _, token := range injectableTokens {
		if strings.Contains(normalized, token) {
			return true
		}
	}
	return false
}
