// Package pipeline chains the ingestion steps for one medication:
// download, extract and parse.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/dosesegura/dose-segura/fsutil"
	"github.com/dosesegura/dose-segura/infarmed"
	"github.com/dosesegura/dose-segura/logging"
	"github.com/dosesegura/dose-segura/sections"
)

// ErrMedicationDirNotFound is returned when a medication has no download folder
var ErrMedicationDirNotFound = errors.New("med folder not found")

// Downloader fetches the documents of a medication
type Downloader interface {
	Download(ctx context.Context, term string) (*infarmed.Meta, error)
}

// Extractor converts the PDFs under a directory into text
type Extractor interface {
	// CheckConverter reports whether the converter can run at all
	CheckConverter(ctx context.Context) error
	ExtractDir(ctx context.Context, dir string) ([]string, error)
}

// ParseOptions controls the parse step
type ParseOptions struct {
	sections.Options
	// Out overrides the default <medDir>/parsed.json
	Out string
}

// Pipeline runs the ingestion steps against one output root
type Pipeline struct {
	infarmedDir string
	downloader  Downloader
	extractor   Extractor
	now         func() time.Time
}

// New creates a pipeline writing under infarmedDir
func New(infarmedDir string, downloader Downloader, extractor Extractor) *Pipeline {
	return &Pipeline{
		infarmedDir: infarmedDir,
		downloader:  downloader,
		extractor:   extractor,
		now:         time.Now,
	}
}

// MedDir resolves the folder of a medication: the name as given when such a
// folder exists, else its slug.
func (p *Pipeline) MedDir(name string) string {
	direct := filepath.Join(p.infarmedDir, name)
	if fsutil.DirExists(direct) {
		return direct
	}
	return filepath.Join(p.infarmedDir, infarmed.MedID(name))
}

func (p *Pipeline) existingMedDir(name string) (string, error) {
	dir := p.MedDir(name)
	if !fsutil.DirExists(dir) {
		return "", fmt.Errorf("%w: %s", ErrMedicationDirNotFound, dir)
	}
	return dir, nil
}

// Download searches the portal and stores the best match. A nil Meta means no
// suitable match.
func (p *Pipeline) Download(ctx context.Context, name string) (*infarmed.Meta, error) {
	if p.downloader == nil {
		return nil, errors.New("no downloader configured")
	}
	return p.downloader.Download(ctx, name)
}

// Extract converts every PDF of the medication folder into text. A missing
// converter is reported before a missing folder.
func (p *Pipeline) Extract(ctx context.Context, name string) ([]string, error) {
	if p.extractor == nil {
		return nil, errors.New("no extractor configured")
	}
	if err := p.extractor.CheckConverter(ctx); err != nil {
		return nil, err
	}
	dir, err := p.existingMedDir(name)
	if err != nil {
		return nil, err
	}
	return p.extractor.ExtractDir(ctx, dir)
}

// Parse splits the medication text files into sections and writes the result.
// It returns the output path, or "" when there was nothing to parse.
func (p *Pipeline) Parse(name string, opts ParseOptions) (string, error) {
	dir, err := p.existingMedDir(name)
	if err != nil {
		return "", err
	}

	result, err := sections.ParseDir(dir, filepath.Base(dir), opts.Options)
	if err != nil {
		return "", err
	}
	if len(result.Files) == 0 {
		return "", nil
	}
	result.GeneratedAt = p.now().UTC().Format(time.RFC3339Nano)

	out := filepath.Join(dir, "parsed.json")
	if opts.Out != "" {
		if out, err = filepath.Abs(opts.Out); err != nil {
			return "", fmt.Errorf("invalid output path %s: %w", opts.Out, err)
		}
	}

	if err := result.Write(out); err != nil {
		return "", err
	}
	logging.Info("Parsed output", "path", out, "files", len(result.Files))
	return out, nil
}

// All runs download, extract and parse in sequence
func (p *Pipeline) All(ctx context.Context, name string, opts ParseOptions) (string, error) {
	logging.Info("Step 1: Download", "name", name)
	if _, err := p.Download(ctx, name); err != nil {
		return "", err
	}

	logging.Info("Step 2: Extract", "name", name)
	if _, err := p.Extract(ctx, name); err != nil {
		return "", err
	}

	logging.Info("Step 3: Parse", "name", name)
	return p.Parse(name, opts)
}
