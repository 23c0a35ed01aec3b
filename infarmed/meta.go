package infarmed

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"regexp"
)

// DocumentStatus is an HTTP status code or one of the labels "failed" and
// "missing". It encodes as a JSON number or string accordingly.
type DocumentStatus struct {
	Code  int
	Label string
}

var (
	StatusFailed  = DocumentStatus{Label: "failed"}
	StatusMissing = DocumentStatus{Label: "missing"}
)

// StatusCode wraps an HTTP status code
func StatusCode(code int) DocumentStatus {
	return DocumentStatus{Code: code}
}

// OK reports an HTTP 200
func (s DocumentStatus) OK() bool {
	return s.Label == "" && s.Code == http.StatusOK
}

func (s DocumentStatus) String() string {
	if s.Label != "" {
		return s.Label
	}
	return fmt.Sprintf("%d", s.Code)
}

func (s DocumentStatus) MarshalJSON() ([]byte, error) {
	if s.Label != "" {
		return json.Marshal(s.Label)
	}
	return json.Marshal(s.Code)
}

func (s *DocumentStatus) UnmarshalJSON(b []byte) error {
	var code int
	if err := json.Unmarshal(b, &code); err == nil {
		*s = DocumentStatus{Code: code}
		return nil
	}
	var label string
	if err := json.Unmarshal(b, &label); err != nil {
		return fmt.Errorf("document status must be a number or a string: %s", b)
	}
	*s = DocumentStatus{Label: label}
	return nil
}

// DocumentResult records one downloaded (or not) document
type DocumentResult struct {
	Status      DocumentStatus `json:"status"`
	ContentType string         `json:"contentType,omitempty"`
	URL         string         `json:"url,omitempty"`
	File        string         `json:"file,omitempty"`
	Size        *int64         `json:"size,omitempty"`
	Pages       *int           `json:"pages,omitempty"`
}

// Succeeded reports an HTTP 200 with a non-empty payload
func (d DocumentResult) Succeeded() bool {
	return d.Status.OK() && d.Size != nil && *d.Size > 0
}

// BestMatch is the selected candidate as written to meta.json
type BestMatch struct {
	InfarmedID string `json:"infarmedId"`
	Name       string `json:"name"`
	DCI        string `json:"dci"`
	Form       string `json:"form"`
	Dosage     string `json:"dosage"`
	Holder     string `json:"holder"`
	IsGeneric  bool   `json:"isGeneric"`
	Score      int    `json:"score"`
}

// Documents holds the RCM and FI results
type Documents struct {
	RCM DocumentResult `json:"rcm"`
	FI  DocumentResult `json:"fi"`
}

// Meta is the content of <infarmedDir>/<medId>/meta.json
type Meta struct {
	RunID       string    `json:"runId"`
	MedID       string    `json:"medId"`
	SearchTerm  string    `json:"searchTerm"`
	RetrievedAt string    `json:"retrievedAt"`
	BestMatch   BestMatch `json:"bestMatch"`
	Documents   Documents `json:"documents"`
}

var genericMarker = regexp.MustCompile(`\bMG\b`)

func newBestMatch(c ScoredCandidate) BestMatch {
	return BestMatch{
		InfarmedID: c.InfarmedID,
		Name:       c.Name,
		DCI:        c.DCI,
		Form:       c.Form,
		Dosage:     c.Dosage,
		Holder:     c.Holder,
		IsGeneric:  genericMarker.MatchString(c.Name),
		Score:      c.Score,
	}
}

// ReadMeta decodes a meta.json file
func ReadMeta(path string) (*Meta, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	var m Meta
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return &m, nil
}
