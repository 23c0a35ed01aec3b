// Package interfaces defines the core abstractions shared by the API server,
// the reload scheduler and the preference containers.
package interfaces

import (
	"context"
	"net/http"
	"time"

	"github.com/dosesegura/dose-segura/entities"
)

// DataQualityReport summarizes what the validator found in a dataset
type DataQualityReport struct {
	DuplicateIDs     []string // keys present more than once in the JSON object
	MismatchedIDs    []string // keys whose record carries a different id
	RejectedIDs      []string // records dropped for missing a name
	NullSections     int      // null section lists replaced with empty lists
	EmptyMedications []string // records with every section empty
}

// DataStore defines the contract for the in-memory dataset snapshot.
// Reads are lock-free; UpdateData swaps the whole snapshot at once.
type DataStore interface {
	// Data retrieval methods
	GetMedications() []entities.Medication
	GetMedication(id string) (entities.Medication, error)
	SearchMedications(query string) []entities.Medication
	GetVersion() string
	GetDatasetLastUpdated() string
	GetLastUpdated() time.Time
	GetDataQualityReport() *DataQualityReport
	IsUpdating() bool
	GetServerStartTime() time.Time

	// Data update methods
	UpdateData(dataset *entities.Dataset, report *DataQualityReport)
	BeginUpdate() bool
	EndUpdate()
}

// DatasetSource loads the bundled dataset document.
type DatasetSource interface {
	// Load reads and decodes the dataset
	Load() (*entities.Dataset, error)

	// Changed reports whether the underlying document differs from the last Load
	Changed() (bool, error)
}

// Scheduler defines the contract for periodic dataset reloads.
type Scheduler interface {
	// Lifecycle management
	Start() error
	Stop()
}

// HTTPHandler defines the contract for HTTP request handlers.
type HTTPHandler interface {
	SearchMedications(w http.ResponseWriter, r *http.Request)
	GetMedication(w http.ResponseWriter, r *http.Request)
	DatasetInfo(w http.ResponseWriter, r *http.Request)
	ListFavorites(w http.ResponseWriter, r *http.Request)
	ToggleFavorite(w http.ResponseWriter, r *http.Request)
	GetTheme(w http.ResponseWriter, r *http.Request)
	SetTheme(w http.ResponseWriter, r *http.Request)
	HealthCheck(w http.ResponseWriter, r *http.Request)
}

// HealthChecker defines the contract for health check functionality.
type HealthChecker interface {
	// HealthCheck returns status, response data and the HTTP status to use
	HealthCheck() (status string, data map[string]any, httpStatus int)
}

// DataValidator defines the contract for dataset and input validation.
type DataValidator interface {
	// ValidateMedication checks a single record stored under key
	ValidateMedication(key string, m *entities.Medication) error

	// SanitizeDataset drops invalid records, repairs null lists and reports findings
	SanitizeDataset(dataset *entities.Dataset) *DataQualityReport

	// ValidateInput validates free-text search queries
	ValidateInput(input string) error

	// ValidateMedicationID validates a medication identifier slug
	ValidateMedicationID(input string) error
}

// KeyValueStore is the device-local persistent store used for preferences.
type KeyValueStore interface {
	// Get returns the value for key and whether it was present
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Close() error
}

// FavoritesStore holds the ordered favorite identifiers.
type FavoritesStore interface {
	Load(ctx context.Context)
	Toggle(ctx context.Context, id string) []string
	IsFavorite(id string) bool
	List() []string
	IsLoading() bool
}

// ThemeStore holds the theme preference.
type ThemeStore interface {
	Load(ctx context.Context)
	Mode() entities.ThemeMode
	SetMode(ctx context.Context, mode entities.ThemeMode) error
	Resolve(system entities.ThemeMode) entities.ThemeMode
	IsLoaded() bool
}
