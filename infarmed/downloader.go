package infarmed

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/juju/ratelimit"
	"github.com/oklog/ulid/v2"

	"github.com/dosesegura/dose-segura/fsutil"
	"github.com/dosesegura/dose-segura/logging"
	"github.com/dosesegura/dose-segura/metrics"
	"github.com/dosesegura/dose-segura/pdftext"
)

const (
	clickAttempts       = 2
	defaultRetryBackoff = 1500 * time.Millisecond
	searchPage          = "pesquisa-avancada.xhtml"
)

// Options configures a Downloader
type Options struct {
	// OutDir is the root under which one directory per medication is written
	OutDir string
	// PortalURL is the portal home, used to record document URLs
	PortalURL string
	// Overrides defaults to DefaultOverrides when nil
	Overrides *Overrides
	// RequestsPerSecond paces portal requests; zero disables pacing
	RequestsPerSecond float64
	// RetryBackoff is the pause between click attempts
	RetryBackoff time.Duration
}

// Downloader finds a medication on the portal and stores its documents
type Downloader struct {
	open         Opener
	outDir       string
	documentURL  string
	overrides    *Overrides
	pacer        *ratelimit.Bucket
	retryBackoff time.Duration
	entropy      *ulid.MonotonicEntropy
	now          func() time.Time
}

// NewDownloader creates a downloader that opens portal sessions with open
func NewDownloader(open Opener, opts Options) *Downloader {
	d := &Downloader{
		open:         open,
		outDir:       opts.OutDir,
		documentURL:  strings.TrimSuffix(opts.PortalURL, "/") + "/" + searchPage,
		overrides:    opts.Overrides,
		retryBackoff: opts.RetryBackoff,
		entropy:      ulid.Monotonic(rand.Reader, 0),
		now:          time.Now,
	}
	if d.overrides == nil {
		d.overrides = DefaultOverrides()
	}
	if d.retryBackoff <= 0 {
		d.retryBackoff = defaultRetryBackoff
	}
	if opts.RequestsPerSecond > 0 {
		d.pacer = ratelimit.NewBucketWithRate(opts.RequestsPerSecond, 1)
	}
	return d
}

// MedDir returns the output directory of a search term
func (d *Downloader) MedDir(term string) string {
	return filepath.Join(d.outDir, MedID(term))
}

// Download searches for term, selects the best injectable candidate and stores
// its documents and meta.json. It returns nil without error when nothing
// suitable was found. The portal session is closed on every path.
func (d *Downloader) Download(ctx context.Context, term string) (*Meta, error) {
	medID := MedID(term)
	if medID == "" {
		return nil, fmt.Errorf("invalid medication name %q", term)
	}

	portal, err := d.open(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := portal.Close(); cerr != nil {
			logging.Warn("Failed to close portal session", "error", cerr)
		}
	}()

	logging.Info("Searching portal", "term", term)

	candidates, usedTerm, err := d.search(ctx, portal, BuildSearchTerms(term))
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		logging.Info("No results found", "term", term)
		return nil, nil
	}

	logging.Info("Found medications with documents", "count", len(candidates), "search_term", usedTerm)
	metrics.InfarmedCandidates.Add(float64(len(candidates)))

	ranked := Rank(candidates, usedTerm, medID, d.overrides)
	if len(ranked) == 0 {
		logging.Info("No injectable or perfusion results found. Skipping download.", "term", term)
		return nil, nil
	}

	medDir := filepath.Join(d.outDir, medID)
	if err := fsutil.EnsureOutputDir(filepath.Join(medDir, "meta.json")); err != nil {
		return nil, err
	}

	var (
		chosen    *ScoredCandidate
		documents Documents
	)
	for i := range ranked {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		c := ranked[i]
		docs := Documents{
			RCM: d.fetchDocument(ctx, portal, medDir, c.InfarmedID, "rcm", c.RCMID),
			FI:  d.fetchDocument(ctx, portal, medDir, c.InfarmedID, "fi", c.FIID),
		}

		if docs.RCM.Succeeded() || docs.FI.Succeeded() {
			chosen, documents = &c, docs
			break
		}
		if chosen == nil {
			chosen, documents = &c, docs
		}
	}

	meta := &Meta{
		RunID:       ulid.MustNew(ulid.Timestamp(d.now()), d.entropy).String(),
		MedID:       medID,
		SearchTerm:  usedTerm,
		RetrievedAt: d.now().UTC().Format(time.RFC3339Nano),
		BestMatch:   newBestMatch(*chosen),
		Documents:   documents,
	}

	if err := writeMeta(filepath.Join(medDir, "meta.json"), meta); err != nil {
		return nil, err
	}

	logging.Info("Best match stored",
		"med_id", medID,
		"infarmed_id", meta.BestMatch.InfarmedID,
		"score", meta.BestMatch.Score,
		"rcm", meta.Documents.RCM.Status.String(),
		"fi", meta.Documents.FI.Status.String(),
	)

	return meta, nil
}

// search tries each term in order and returns the candidates of the first one
// that yields any. Route filters narrow large result sets.
func (d *Downloader) search(ctx context.Context, portal Portal, terms []string) ([]Candidate, string, error) {
	for _, term := range terms {
		d.pace()
		markup, err := portal.Search(ctx, term)
		if errors.Is(err, ErrNoResults) {
			metrics.InfarmedSearches.WithLabelValues("empty").Inc()
			logging.Debug("No results table", "term", term)
			continue
		}
		if err != nil {
			return nil, "", fmt.Errorf("search for %q failed: %w", term, err)
		}

		candidates, err := DecodeRows(strings.NewReader(markup))
		if err != nil {
			return nil, "", err
		}

		if len(candidates) >= FilterThreshold {
			filtered, err := d.filterByRoute(ctx, portal)
			if err != nil {
				return nil, "", err
			}
			if len(filtered) > 0 {
				candidates = filtered
			}
		}

		if len(candidates) > 0 {
			metrics.InfarmedSearches.WithLabelValues("hit").Inc()
			return candidates, term, nil
		}
		metrics.InfarmedSearches.WithLabelValues("empty").Inc()
	}
	return nil, "", nil
}

// filterByRoute returns the first non-empty filtered result set, or nothing
func (d *Downloader) filterByRoute(ctx context.Context, portal Portal) ([]Candidate, error) {
	for _, label := range RouteFilterLabels {
		d.pace()
		markup, err := portal.ApplyRouteFilter(ctx, label)
		if errors.Is(err, ErrNoResults) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("route filter %q failed: %w", label, err)
		}

		filtered, err := DecodeRows(strings.NewReader(markup))
		if err != nil {
			return nil, err
		}
		if len(filtered) > 0 {
			logging.Debug("Route filter applied", "label", label, "count", len(filtered))
			return filtered, nil
		}
	}
	return nil, nil
}

// fetchDocument downloads one document, trying a direct fetch first and then
// up to two clicks. Failures are recorded in the result, never returned.
func (d *Downloader) fetchDocument(ctx context.Context, portal Portal, medDir, infarmedID, docType, docID string) DocumentResult {
	if docID == "" {
		metrics.InfarmedDocuments.WithLabelValues(docType, "missing").Inc()
		return DocumentResult{Status: StatusMissing}
	}

	rel := fmt.Sprintf("%s/%s-%s.pdf", docType, infarmedID, docType)
	outPath := filepath.Join(medDir, filepath.FromSlash(rel))
	logging.Info("Downloading document", "doc_id", docID, "path", outPath)

	result := DocumentResult{URL: d.documentURL, File: rel}

	d.pace()
	payload, err := portal.FetchDocument(ctx, docID)
	if err != nil {
		logging.Warn("Direct download failed", "doc_id", docID, "error", err)
	} else if payload.Status == 200 && payload.IsPDF() {
		return d.save(result, payload, outPath, docType)
	}

	for attempt := 0; attempt < clickAttempts; attempt++ {
		d.pace()
		payload, err := portal.ClickDocument(ctx, docID)
		if err == nil && payload.IsPDF() {
			return d.save(result, payload, outPath, docType)
		}
		if err != nil {
			logging.Warn("Download attempt failed", "doc_id", docID, "attempt", attempt+1, "error", err)
		} else {
			logging.Warn("Download attempt returned a non-PDF response", "doc_id", docID, "attempt", attempt+1)
		}

		if attempt == 0 && !sleepCtx(ctx, d.retryBackoff) {
			break
		}
	}

	logging.Error("Failed to download document", "doc_id", docID)
	metrics.InfarmedDocuments.WithLabelValues(docType, "failed").Inc()
	result.Status = StatusFailed
	size := int64(0)
	result.Size = &size
	return result
}

func (d *Downloader) save(result DocumentResult, payload *Payload, outPath, docType string) DocumentResult {
	if err := fsutil.WriteFileAtomic(outPath, payload.Body); err != nil {
		logging.Error("Failed to save document", "path", outPath, "error", err)
		metrics.InfarmedDocuments.WithLabelValues(docType, "failed").Inc()
		size := int64(0)
		result.Status = StatusFailed
		result.Size = &size
		return result
	}

	size := int64(len(payload.Body))
	result.Status = StatusCode(payload.Status)
	result.ContentType = payload.ContentType
	result.Size = &size
	if pages, err := pdftext.PageCount(outPath); err == nil {
		result.Pages = &pages
	}

	logging.Info("Document saved", "path", outPath, "size", size)
	metrics.InfarmedDocuments.WithLabelValues(docType, result.Status.String()).Inc()
	return result
}

// sleepCtx waits for dur and reports false when ctx ends first
func sleepCtx(ctx context.Context, dur time.Duration) bool {
	t := time.NewTimer(dur)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func (d *Downloader) pace() {
	if d.pacer != nil {
		d.pacer.Wait(1)
	}
}

func writeMeta(path string, meta *Meta) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return fmt.Errorf("failed to encode meta.json: %w", err)
	}
	return fsutil.WriteFileAtomic(path, bytes.TrimSuffix(buf.Bytes(), []byte("\n")))
}
