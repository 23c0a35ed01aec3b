// Package textnorm holds the accent-folding helpers shared by dataset search,
// the portal downloader and the section parser.
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// combining marks produced by NFD for Latin letters
var combiningMarks = runes.Predicate(func(r rune) bool {
	return r >= 0x0300 && r <= 0x036F
})

// StripDiacritics decomposes s and drops combining marks, so "ção" becomes "cao".
func StripDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(combiningMarks))
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// Fold lowercases s and strips diacritics. Whitespace is kept as is.
func Fold(s string) string {
	return StripDiacritics(strings.ToLower(s))
}

// Normalize folds s, collapses whitespace runs to one space and trims.
func Normalize(s string) string {
	return strings.Join(strings.Fields(Fold(s)), " ")
}

// Slugify folds s and replaces every run of characters outside [a-z0-9] with a
// single hyphen, trimming hyphens at both ends.
func Slugify(s string) string {
	var b strings.Builder
	pendingDash := false
	for _, r := range Fold(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingDash = false
			b.WriteRune(r)
			continue
		}
		pendingDash = true
	}
	return b.String()
}

// IsLetter reports whether r counts as a word letter for Portuguese text:
// ASCII letters and the accented range à-ú / À-Ú.
func IsLetter(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		return true
	case r >= 'à' && r <= 'ú', r >= 'À' && r <= 'Ú':
		return true
	}
	return false
}

// Tokens splits s on whitespace after folding.
func Tokens(s string) []string {
	return strings.FieldsFunc(Fold(s), unicode.IsSpace)
}
