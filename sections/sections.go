// Package sections splits extracted RCM and FI text into named sections using
// heading rules.
package sections

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode"

	"github.com/dosesegura/dose-segura/fsutil"
	"github.com/dosesegura/dose-segura/logging"
	"github.com/dosesegura/dose-segura/metrics"
	"github.com/dosesegura/dose-segura/textnorm"
)

// DocType classifies a text file by the folder it was downloaded into
type DocType string

const (
	TypeRCM     DocType = "rcm"
	TypeFI      DocType = "fi"
	TypeUnknown DocType = "unknown"
)

// Sections maps a section key to its text, lines joined with "\n"
type Sections map[string]string

// MarshalJSON writes keys in the order their rules are declared, so output is
// stable and readable.
func (s Sections) MarshalJSON() ([]byte, error) {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.SliceStable(keys, func(i, j int) bool {
		return keyRank(keys[i]) < keyRank(keys[j])
	})

	var b strings.Builder
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		if err := writeJSONString(&b, k); err != nil {
			return nil, err
		}
		b.WriteByte(':')
		if err := writeJSONString(&b, s[k]); err != nil {
			return nil, err
		}
	}
	b.WriteByte('}')
	return []byte(b.String()), nil
}

func writeJSONString(b *strings.Builder, v string) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return err
	}
	b.Write(bytes.TrimSuffix(buf.Bytes(), []byte("\n")))
	return nil
}

func keyRank(key string) int {
	for i, r := range RCMRules {
		if r.Key == key {
			return i
		}
	}
	for i, r := range FIRules {
		if r.Key == key {
			return len(RCMRules) + i
		}
	}
	return len(RCMRules) + len(FIRules)
}

// FileResult is the parse output of one text file
type FileResult struct {
	File     string   `json:"file"`
	Type     DocType  `json:"type"`
	Sections Sections `json:"sections"`
}

// Result is the parse output of one medication directory
type Result struct {
	MedID       string       `json:"medId"`
	GeneratedAt string       `json:"generatedAt"`
	Files       []FileResult `json:"files"`
}

// Options selects which text files are parsed
type Options struct {
	// InfarmedID keeps only files named "<id>-..."
	InfarmedID string
	// BestMatch reads the id from meta.json when InfarmedID is empty
	BestMatch bool
}

// DetectType classifies by path segment: a /rcm/ folder, a /fi/ folder or unknown
func DetectType(path string) DocType {
	lower := strings.ToLower(filepath.ToSlash(path))
	switch {
	case strings.Contains(lower, "/rcm/"):
		return TypeRCM
	case strings.Contains(lower, "/fi/"):
		return TypeFI
	}
	return TypeUnknown
}

type heading struct {
	key      string
	usedNext bool
}

// findHeading tests the line alone, then the line joined with the next one.
// Rules and their patterns are tried in order.
func findHeading(line, next string, rules []Rule) (heading, bool) {
	combined := line
	if next != "" {
		combined = strings.TrimSpace(line + " " + next)
	}

	for _, r := range rules {
		for _, p := range r.Patterns {
			if p.MatchString(line) {
				return heading{key: r.Key}, true
			}
			if p.MatchString(combined) {
				return heading{key: r.Key, usedNext: true}, true
			}
		}
	}
	return heading{}, false
}

// ParseSections splits lines into sections. Text before the first heading is
// dropped, heading lines are excluded and empty sections are omitted.
func ParseSections(lines []string, rules []Rule) Sections {
	collected := map[string][]string{}
	current := ""

	for i := 0; i < len(lines); i++ {
		line := strings.TrimRightFunc(lines[i], unicode.IsSpace)
		next := ""
		if i+1 < len(lines) {
			next = lines[i+1]
		}

		if h, ok := findHeading(textnorm.Normalize(line), textnorm.Normalize(next), rules); ok {
			current = h.key
			if _, seen := collected[current]; !seen {
				collected[current] = []string{}
			}
			if h.usedNext {
				i++
			}
			continue
		}

		if current != "" {
			collected[current] = append(collected[current], line)
		}
	}

	out := Sections{}
	for key, body := range collected {
		if trimmed := trimBlank(body); len(trimmed) > 0 {
			out[key] = strings.Join(trimmed, "\n")
		}
	}
	return out
}

func trimBlank(lines []string) []string {
	start, end := 0, len(lines)
	for start < end && strings.TrimSpace(lines[start]) == "" {
		start++
	}
	for end > start && strings.TrimSpace(lines[end-1]) == "" {
		end--
	}
	return lines[start:end]
}

// SplitLines splits on \n or \r\n
func SplitLines(raw string) []string {
	lines := strings.Split(raw, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}

// ParseFile reads and parses one text file. Unknown files get no sections.
func ParseFile(path string) (FileResult, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return FileResult{}, fmt.Errorf("failed to read %s: %w", path, err)
	}

	docType := DetectType(path)
	res := FileResult{File: path, Type: docType, Sections: Sections{}}
	if rules := RulesFor(docType); rules != nil {
		res.Sections = ParseSections(SplitLines(string(raw)), rules)
	}

	metrics.SectionsFiles.WithLabelValues(string(docType)).Inc()
	return res, nil
}

// bestMatchMeta is the part of meta.json needed to pick the best match
type bestMatchMeta struct {
	BestMatch *struct {
		InfarmedID string `json:"infarmedId"`
	} `json:"bestMatch"`
}

// ResolveInfarmedID returns the explicit id, else the best match recorded in
// medDir/meta.json when requested, else "".
func ResolveInfarmedID(medDir string, opts Options) (string, error) {
	if opts.InfarmedID != "" {
		return opts.InfarmedID, nil
	}
	if !opts.BestMatch {
		return "", nil
	}

	raw, err := os.ReadFile(filepath.Join(medDir, "meta.json"))
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read meta.json: %w", err)
	}

	var meta bestMatchMeta
	if err := json.Unmarshal(raw, &meta); err != nil {
		return "", fmt.Errorf("failed to decode meta.json: %w", err)
	}
	if meta.BestMatch == nil {
		return "", nil
	}
	return meta.BestMatch.InfarmedID, nil
}

// FilterByInfarmedID keeps files whose base name starts with "<id>-"
func FilterByInfarmedID(files []string, id string) []string {
	if id == "" {
		return files
	}
	token := string(filepath.Separator) + id + "-"
	out := []string{}
	for _, f := range files {
		if strings.Contains(f, token) {
			out = append(out, f)
		}
	}
	return out
}

// ParseDir parses the selected text files below medDir. No files yields a
// Result with an empty file list.
func ParseDir(medDir, medID string, opts Options) (*Result, error) {
	id, err := ResolveInfarmedID(medDir, opts)
	if err != nil {
		return nil, err
	}

	all, err := fsutil.CollectFiles(medDir, ".txt")
	if err != nil {
		return nil, err
	}
	files := FilterByInfarmedID(all, id)

	result := &Result{MedID: medID, Files: []FileResult{}}
	if len(files) == 0 {
		logging.Info("No .txt files found. Run extract first.", "dir", medDir)
		return result, nil
	}

	for _, f := range files {
		fr, err := ParseFile(f)
		if err != nil {
			return nil, err
		}
		result.Files = append(result.Files, fr)
	}
	return result, nil
}

// Write persists r as two-space indented JSON at path
func (r *Result) Write(path string) error {
	var b strings.Builder
	enc := json.NewEncoder(&b)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("failed to encode parse result: %w", err)
	}
	return fsutil.WriteFileAtomic(path, []byte(strings.TrimSuffix(b.String(), "\n")))
}
