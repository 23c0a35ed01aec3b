// Package health reports whether the API has a usable dataset snapshot.
package health

import (
	"math"
	"net/http"
	"time"

	"github.com/dosesegura/dose-segura/interfaces"
)

// HealthCheckerImpl implements the interfaces.HealthChecker interface
type HealthCheckerImpl struct {
	dataStore interfaces.DataStore
	favorites interfaces.FavoritesStore
}

// NewHealthChecker creates a new health checker with injected dependencies.
// favorites may be nil.
func NewHealthChecker(dataStore interfaces.DataStore, favorites interfaces.FavoritesStore) interfaces.HealthChecker {
	return &HealthCheckerImpl{
		dataStore: dataStore,
		favorites: favorites,
	}
}

// HealthCheck returns the status, response data and HTTP status for /health.
// An empty snapshot is unhealthy; a snapshot that had to reject records, or
// preferences that are still loading, is degraded.
func (h *HealthCheckerImpl) HealthCheck() (status string, data map[string]any, httpStatus int) {
	medications := h.dataStore.GetMedications()
	loadedAt := h.dataStore.GetLastUpdated()
	isUpdating := h.dataStore.IsUpdating()
	report := h.dataStore.GetDataQualityReport()

	rejected := 0
	if report != nil {
		rejected = len(report.RejectedIDs)
	}
	favoritesLoading := h.favorites != nil && h.favorites.IsLoading()

	switch {
	case len(medications) == 0:
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable

	case rejected > 0 || favoritesLoading:
		// still serving, so it stays in rotation
		status = "degraded"
		httpStatus = http.StatusOK

	default:
		status = "healthy"
		httpStatus = http.StatusOK
	}

	snapshotAge := 0.0
	if !loadedAt.IsZero() {
		snapshotAge = math.Round(time.Since(loadedAt).Minutes()*10) / 10
	}

	data = map[string]any{
		"version":              h.dataStore.GetVersion(),
		"dataset_last_updated": h.dataStore.GetDatasetLastUpdated(),
		"loaded_at":            loadedAt.Format(time.RFC3339),
		"snapshot_age_minutes": snapshotAge,
		"medications":          len(medications),
		"rejected_records":     rejected,
		"is_updating":          isUpdating,
		"favorites_loading":    favoritesLoading,
	}

	return status, data, httpStatus
}
