// Package data holds the current dataset snapshot behind an atomic pointer so
// reloads never block readers, plus the file-backed dataset source.
package data

import (
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/dosesegura/dose-segura/entities"
	"github.com/dosesegura/dose-segura/interfaces"
	"github.com/dosesegura/dose-segura/logging"
	"github.com/dosesegura/dose-segura/textnorm"
)

// ErrMedicationNotFound is returned when no record has the requested identifier
var ErrMedicationNotFound = errors.New("medication not found")

// Compile-time check to ensure DataContainer implements DataStore
var _ interfaces.DataStore = (*DataContainer)(nil)

// snapshot is immutable once stored
type snapshot struct {
	version     string
	lastUpdated string
	medications []entities.Medication
	byID        map[string]int
	folded      []foldedEntry
	report      *interfaces.DataQualityReport
	loadedAt    time.Time
}

// foldedEntry keeps the lowercased, accent-stripped name and aliases of one
// record so searches do not fold the dataset on every call.
type foldedEntry struct {
	name    string
	aliases []string
}

// DataContainer holds the dataset with atomic pointers for zero-downtime updates
type DataContainer struct {
	current         atomic.Pointer[snapshot]
	updating        atomic.Bool
	serverStartTime atomic.Value // time.Time
}

// NewDataContainer creates a new DataContainer with an empty dataset
func NewDataContainer() *DataContainer {
	dc := &DataContainer{}
	dc.current.Store(&snapshot{
		medications: make([]entities.Medication, 0),
		byID:        make(map[string]int),
		report:      &interfaces.DataQualityReport{},
	})
	dc.serverStartTime.Store(time.Time{})
	return dc
}

func (dc *DataContainer) load() *snapshot {
	return dc.current.Load()
}

// GetMedications returns every medication in authored order
func (dc *DataContainer) GetMedications() []entities.Medication {
	return dc.load().medications
}

// GetMedication returns the record with the given identifier
func (dc *DataContainer) GetMedication(id string) (entities.Medication, error) {
	s := dc.load()
	i, ok := s.byID[id]
	if !ok {
		return entities.Medication{}, ErrMedicationNotFound
	}
	return s.medications[i], nil
}

// SearchMedications returns the whole dataset for an empty or blank query.
// Otherwise it returns, in dataset order, the medications whose folded name or
// any folded alias contains the folded query.
func (dc *DataContainer) SearchMedications(query string) []entities.Medication {
	s := dc.load()
	if strings.TrimSpace(query) == "" {
		return s.medications
	}

	needle := textnorm.Fold(query)
	results := make([]entities.Medication, 0)
	for i, entry := range s.folded {
		if entry.matches(needle) {
			results = append(results, s.medications[i])
		}
	}
	return results
}

func (e foldedEntry) matches(needle string) bool {
	if strings.Contains(e.name, needle) {
		return true
	}
	for _, alias := range e.aliases {
		if strings.Contains(alias, needle) {
			return true
		}
	}
	return false
}

// GetVersion returns the dataset version string
func (dc *DataContainer) GetVersion() string {
	return dc.load().version
}

// GetDatasetLastUpdated returns the lastUpdated field authored in the dataset
func (dc *DataContainer) GetDatasetLastUpdated() string {
	return dc.load().lastUpdated
}

// GetLastUpdated returns when the current snapshot was swapped in
func (dc *DataContainer) GetLastUpdated() time.Time {
	return dc.load().loadedAt
}

// GetDataQualityReport returns the validator report of the current snapshot
func (dc *DataContainer) GetDataQualityReport() *interfaces.DataQualityReport {
	return dc.load().report
}

// IsUpdating returns true if a reload is in progress
func (dc *DataContainer) IsUpdating() bool {
	return dc.updating.Load()
}

// SetServerStartTime sets the server start time
func (dc *DataContainer) SetServerStartTime(startTime time.Time) {
	dc.serverStartTime.Store(startTime)
}

// GetServerStartTime returns the server start time
func (dc *DataContainer) GetServerStartTime() time.Time {
	if v := dc.serverStartTime.Load(); v != nil {
		if startTime, ok := v.(time.Time); ok {
			return startTime
		}
	}

	logging.Warn("Could not get the server start time value")
	return time.Time{}
}

// UpdateData builds a new snapshot from dataset and swaps it in atomically.
// The dataset is copied, so later changes by the caller are not visible.
func (dc *DataContainer) UpdateData(dataset *entities.Dataset, report *interfaces.DataQualityReport) {
	if report == nil {
		report = &interfaces.DataQualityReport{}
	}

	s := &snapshot{
		report:   report,
		loadedAt: time.Now(),
		byID:     make(map[string]int),
	}

	if dataset != nil {
		s.version = dataset.Version
		s.lastUpdated = dataset.LastUpdated
		for _, id := range dataset.Medications.Keys() {
			m, _ := dataset.Medications.Get(id)
			m = m.Clone()
			m.ID = id

			s.byID[id] = len(s.medications)
			s.medications = append(s.medications, m)
			s.folded = append(s.folded, foldMedication(m))
		}
	}
	if s.medications == nil {
		s.medications = make([]entities.Medication, 0)
	}

	dc.current.Store(s)
}

func foldMedication(m entities.Medication) foldedEntry {
	entry := foldedEntry{name: textnorm.Fold(m.Name)}
	for _, alias := range m.Aliases {
		entry.aliases = append(entry.aliases, textnorm.Fold(alias))
	}
	return entry
}

// BeginUpdate marks the start of a reload.
// Returns true if the reload can proceed, false if another one is running
func (dc *DataContainer) BeginUpdate() bool {
	return dc.updating.CompareAndSwap(false, true)
}

// EndUpdate marks the end of a reload
func (dc *DataContainer) EndUpdate() {
	dc.updating.Store(false)
}
