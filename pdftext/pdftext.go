// Package pdftext converts downloaded regulatory PDFs into sibling text files
// with Poppler's pdftotext.
package pdftext

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"regexp"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"golang.org/x/text/encoding/charmap"

	"github.com/dosesegura/dose-segura/fsutil"
	"github.com/dosesegura/dose-segura/logging"
	"github.com/dosesegura/dose-segura/metrics"
)

// DefaultBinary is looked up in PATH when no explicit converter is configured
const DefaultBinary = "pdftotext"

// ErrConverterMissing is returned when the converter cannot be executed
var ErrConverterMissing = errors.New("pdftotext not found. Install Poppler and ensure pdftotext is in PATH")

var pdfExt = regexp.MustCompile(`(?i)\.pdf$`)

// Extractor runs the external converter
type Extractor struct {
	bin string
}

// NewExtractor returns an extractor for bin, or DefaultBinary when bin is empty
func NewExtractor(bin string) *Extractor {
	if bin == "" {
		bin = DefaultBinary
	}
	return &Extractor{bin: bin}
}

// CheckConverter checks that the converter can be executed
func (e *Extractor) CheckConverter(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, e.bin, "-v")
	cmd.Stdout = io.Discard
	cmd.Stderr = io.Discard
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%w (%s: %v)", ErrConverterMissing, e.bin, err)
	}
	return nil
}

// TextPath returns the sibling .txt path of a PDF
func TextPath(pdfPath string) string {
	if pdfExt.MatchString(pdfPath) {
		return pdfExt.ReplaceAllString(pdfPath, ".txt")
	}
	return pdfPath + ".txt"
}

// ExtractFile converts pdfPath into txtPath, overwriting it. Output that is not
// valid UTF-8 is re-decoded from ISO-8859-1.
func (e *Extractor) ExtractFile(ctx context.Context, pdfPath, txtPath string) error {
	if err := fsutil.EnsureOutputDir(txtPath); err != nil {
		return err
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, e.bin, "-layout", "-enc", "UTF-8", pdfPath, txtPath)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		metrics.PdftextConversions.WithLabelValues("failed").Inc()
		return fmt.Errorf("failed to convert %s: %w: %s", pdfPath, err, bytes.TrimSpace(stderr.Bytes()))
	}

	reencoded, err := ensureUTF8(txtPath)
	if err != nil {
		metrics.PdftextConversions.WithLabelValues("failed").Inc()
		return err
	}
	if reencoded {
		logging.Warn("Converter output was not UTF-8, decoded as ISO-8859-1", "file", txtPath)
		metrics.PdftextConversions.WithLabelValues("reencoded").Inc()
		return nil
	}

	metrics.PdftextConversions.WithLabelValues("ok").Inc()
	return nil
}

// ensureUTF8 rewrites path from ISO-8859-1 when its content is not valid UTF-8
func ensureUTF8(path string) (bool, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if utf8.Valid(raw) {
		return false, nil
	}

	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(raw)
	if err != nil {
		return false, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	if err := fsutil.WriteFileAtomic(path, decoded); err != nil {
		return false, err
	}
	return true, nil
}

// ExtractDir checks the converter once and converts every PDF below dir. It
// returns the text files written. No PDFs is not an error.
func (e *Extractor) ExtractDir(ctx context.Context, dir string) ([]string, error) {
	if err := e.CheckConverter(ctx); err != nil {
		return nil, err
	}

	pdfs, err := fsutil.CollectFiles(dir, ".pdf")
	if err != nil {
		return nil, err
	}
	if len(pdfs) == 0 {
		logging.Info("No PDFs found", "dir", dir)
		return []string{}, nil
	}

	written := make([]string, 0, len(pdfs))
	for _, p := range pdfs {
		txt := TextPath(p)
		if err := e.ExtractFile(ctx, p, txt); err != nil {
			return written, err
		}
		written = append(written, txt)

		if pages, err := PageCount(p); err == nil {
			logging.Info("Extracted text", "file", txt, "pages", pages)
		} else {
			logging.Info("Extracted text", "file", txt)
			logging.Debug("Could not read page count", "file", p, "error", err)
		}
	}

	return written, nil
}

// PageCount opens a PDF and returns its number of pages
func PageCount(path string) (n int, err error) {
	// the reader panics on some malformed inputs
	defer func() {
		if r := recover(); r != nil {
			n, err = 0, fmt.Errorf("malformed pdf %s: %v", path, r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open pdf %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			logging.Warn("Failed to close pdf", "file", path, "error", cerr)
		}
	}()

	return r.NumPage(), nil
}
