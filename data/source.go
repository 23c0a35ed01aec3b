package data

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/dosesegura/dose-segura/entities"
	"github.com/dosesegura/dose-segura/fsutil"
	"github.com/dosesegura/dose-segura/interfaces"
)

// Compile-time check to ensure FileSource implements DatasetSource
var _ interfaces.DatasetSource = (*FileSource)(nil)

// FileSource reads the dataset from a JSON file and remembers the modification
// time and size of the last successful load.
type FileSource struct {
	path string

	mu      sync.Mutex
	modTime time.Time
	size    int64
	loaded  bool
}

// NewFileSource creates a source for the dataset at path
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// Path returns the dataset file path
func (s *FileSource) Path() string {
	return s.path
}

// Load reads and decodes the dataset file
func (s *FileSource) Load() (*entities.Dataset, error) {
	info, err := os.Stat(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat dataset %s: %w", s.path, err)
	}

	dataset, err := LoadDataset(s.path)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.modTime = info.ModTime()
	s.size = info.Size()
	s.loaded = true
	s.mu.Unlock()

	return dataset, nil
}

// Changed reports whether the file differs from the last successful Load
func (s *FileSource) Changed() (bool, error) {
	info, err := os.Stat(s.path)
	if err != nil {
		return false, fmt.Errorf("failed to stat dataset %s: %w", s.path, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return true, nil
	}
	return !info.ModTime().Equal(s.modTime) || info.Size() != s.size, nil
}

// LoadDataset reads and decodes the dataset file at path
func LoadDataset(path string) (*entities.Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset %s: %w", path, err)
	}
	defer f.Close()

	dataset, err := DecodeDataset(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode dataset %s: %w", path, err)
	}
	return dataset, nil
}

// DecodeDataset decodes a dataset document, keeping medication key order
func DecodeDataset(r io.Reader) (*entities.Dataset, error) {
	var dataset entities.Dataset
	if err := json.NewDecoder(r).Decode(&dataset); err != nil {
		return nil, err
	}
	return &dataset, nil
}

// WriteDataset writes dataset to path as JSON indented with two spaces,
// keeping medication key order. The file is replaced atomically.
func WriteDataset(path string, dataset *entities.Dataset) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(dataset); err != nil {
		return fmt.Errorf("failed to encode dataset: %w", err)
	}
	return fsutil.WriteFileAtomic(path, buf.Bytes())
}
