package infarmed

import (
	"bytes"
	"context"
	"errors"
	"strings"
)

// ErrNoResults is returned by a portal search whose results table never shows up
var ErrNoResults = errors.New("no results table")

// ErrBrowserUnavailable is returned when the browser engine cannot be started
var ErrBrowserUnavailable = errors.New("browser engine unavailable")

// RouteFilterLabels are the administration route filters tried, in order, when
// a search returns too many rows
var RouteFilterLabels = []string{
	"EC - Via intravenosa (perfusão)",
	"EC - Via intravenosa (bólus)",
	"Via intravenosa",
}

// FilterThreshold is the hit count from which route filters are applied
const FilterThreshold = 10

// Payload is a fetched document
type Payload struct {
	Status      int
	ContentType string
	Body        []byte
}

var pdfMagic = []byte("%PDF")

// HasPDFMagic reports whether the body starts with the PDF signature
func (p *Payload) HasPDFMagic() bool {
	return p != nil && bytes.HasPrefix(p.Body, pdfMagic)
}

// IsPDF accepts the PDF signature or a PDF content type
func (p *Payload) IsPDF() bool {
	if p == nil {
		return false
	}
	return p.HasPDFMagic() || strings.Contains(strings.ToLower(p.ContentType), "application/pdf")
}

// Portal is a live session on the advanced search page
type Portal interface {
	// Search submits term and returns the results table markup
	Search(ctx context.Context, term string) (string, error)
	// ApplyRouteFilter selects an administration route, searches again and
	// returns the results table markup
	ApplyRouteFilter(ctx context.Context, label string) (string, error)
	// FetchDocument submits the search form for docID directly
	FetchDocument(ctx context.Context, docID string) (*Payload, error)
	// ClickDocument clicks the document link once and waits for the file
	ClickDocument(ctx context.Context, docID string) (*Payload, error)
	// Close releases the session and its browser
	Close() error
}

// Opener starts a portal session
type Opener func(ctx context.Context) (Portal, error)
