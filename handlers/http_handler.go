// Package handlers provides the HTTP request handlers of the Dose Segura API.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"runtime"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dosesegura/dose-segura/data"
	"github.com/dosesegura/dose-segura/entities"
	"github.com/dosesegura/dose-segura/interfaces"
	"github.com/dosesegura/dose-segura/logging"
	"github.com/dosesegura/dose-segura/metrics"
	"github.com/dosesegura/dose-segura/preferences"
)

// Compile-time check to ensure HTTPHandlerImpl implements HTTPHandler
var _ interfaces.HTTPHandler = (*HTTPHandlerImpl)(nil)

// HTTPHandlerImpl implements the interfaces.HTTPHandler interface
type HTTPHandlerImpl struct {
	dataStore     interfaces.DataStore
	validator     interfaces.DataValidator
	favorites     interfaces.FavoritesStore
	theme         interfaces.ThemeStore
	healthChecker interfaces.HealthChecker
}

// NewHTTPHandler creates a new HTTP handler with injected dependencies
func NewHTTPHandler(
	dataStore interfaces.DataStore,
	validator interfaces.DataValidator,
	favorites interfaces.FavoritesStore,
	theme interfaces.ThemeStore,
	healthChecker interfaces.HealthChecker,
) *HTTPHandlerImpl {
	return &HTTPHandlerImpl{
		dataStore:     dataStore,
		validator:     validator,
		favorites:     favorites,
		theme:         theme,
		healthChecker: healthChecker,
	}
}

// SearchResponse is the body of GET /medications
type SearchResponse struct {
	Query       string                `json:"query"`
	Count       int                   `json:"count"`
	Medications []entities.Medication `json:"medications"`
}

// DatasetResponse is the body of GET /dataset
type DatasetResponse struct {
	Version     string    `json:"version"`
	LastUpdated string    `json:"lastUpdated"`
	Count       int       `json:"count"`
	LoadedAt    time.Time `json:"loadedAt"`
}

// FavoritesResponse is the body of the favorites endpoints
type FavoritesResponse struct {
	IDs         []string              `json:"ids"`
	Medications []entities.Medication `json:"medications"`
	Loading     bool                  `json:"loading"`
}

// ThemeResponse is the body of the theme endpoints
type ThemeResponse struct {
	Mode     entities.ThemeMode `json:"mode"`
	Resolved entities.ThemeMode `json:"resolved"`
	Loaded   bool               `json:"loaded"`
}

// HealthResponse defines the structure for consistent JSON ordering
type HealthResponse struct {
	Status        string         `json:"status"`
	UptimeSeconds float64        `json:"uptime_seconds"`
	Uptime        string         `json:"uptime"`
	Data          map[string]any `json:"data"`
	System        map[string]any `json:"system"`
}

// RespondWithJSON writes a JSON response
func RespondWithJSON(w http.ResponseWriter, code int, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		logging.Error("Failed to marshal JSON response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	if _, err := w.Write(body); err != nil {
		logging.Warn("Failed to write response", "error", err)
	}
}

// RespondWithError writes a JSON error response
func RespondWithError(w http.ResponseWriter, code int, message string) {
	RespondWithJSON(w, code, map[string]any{
		"error":   http.StatusText(code),
		"message": message,
		"code":    code,
	})
}

// SearchMedications serves GET /medications?q=. An absent or blank query
// returns the whole dataset.
func (h *HTTPHandlerImpl) SearchMedications(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")

	if strings.TrimSpace(query) != "" {
		if err := h.validator.ValidateInput(query); err != nil {
			RespondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	results := h.dataStore.SearchMedications(query)
	RespondWithJSON(w, http.StatusOK, SearchResponse{
		Query:       query,
		Count:       len(results),
		Medications: results,
	})
}

// GetMedication serves GET /medications/{id}
func (h *HTTPHandlerImpl) GetMedication(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.validator.ValidateMedicationID(id); err != nil {
		RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	med, err := h.dataStore.GetMedication(id)
	if errors.Is(err, data.ErrMedicationNotFound) {
		RespondWithError(w, http.StatusNotFound, fmt.Sprintf("medication %s not found", id))
		return
	}
	if err != nil {
		logging.Error("Failed to read medication", "id", id, "error", err)
		RespondWithError(w, http.StatusInternalServerError, "failed to read medication")
		return
	}

	RespondWithJSON(w, http.StatusOK, med)
}

// DatasetInfo serves GET /dataset
func (h *HTTPHandlerImpl) DatasetInfo(w http.ResponseWriter, r *http.Request) {
	RespondWithJSON(w, http.StatusOK, DatasetResponse{
		Version:     h.dataStore.GetVersion(),
		LastUpdated: h.dataStore.GetDatasetLastUpdated(),
		Count:       len(h.dataStore.GetMedications()),
		LoadedAt:    h.dataStore.GetLastUpdated(),
	})
}

// ListFavorites serves GET /favorites
func (h *HTTPHandlerImpl) ListFavorites(w http.ResponseWriter, r *http.Request) {
	RespondWithJSON(w, http.StatusOK, h.favoritesResponse(h.favorites.List()))
}

// ToggleFavorite serves POST /favorites/{id}/toggle. Unknown identifiers are
// rejected so the list only ever references dataset records.
func (h *HTTPHandlerImpl) ToggleFavorite(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.validator.ValidateMedicationID(id); err != nil {
		RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	if _, err := h.dataStore.GetMedication(id); errors.Is(err, data.ErrMedicationNotFound) && !h.favorites.IsFavorite(id) {
		RespondWithError(w, http.StatusNotFound, fmt.Sprintf("medication %s not found", id))
		return
	}

	ids := h.favorites.Toggle(r.Context(), id)
	metrics.FavoritesTotal.Set(float64(len(ids)))
	RespondWithJSON(w, http.StatusOK, h.favoritesResponse(ids))
}

// favoritesResponse resolves ids against the current snapshot, skipping ids
// that are no longer in the dataset
func (h *HTTPHandlerImpl) favoritesResponse(ids []string) FavoritesResponse {
	meds := make([]entities.Medication, 0, len(ids))
	for _, id := range ids {
		if m, err := h.dataStore.GetMedication(id); err == nil {
			meds = append(meds, m)
		}
	}
	return FavoritesResponse{
		IDs:         ids,
		Medications: meds,
		Loading:     h.favorites.IsLoading(),
	}
}

// GetTheme serves GET /settings/theme. The optional system parameter carries
// the device theme used to resolve the system mode.
func (h *HTTPHandlerImpl) GetTheme(w http.ResponseWriter, r *http.Request) {
	system := entities.ThemeMode(r.URL.Query().Get("system"))
	RespondWithJSON(w, http.StatusOK, ThemeResponse{
		Mode:     h.theme.Mode(),
		Resolved: h.theme.Resolve(system),
		Loaded:   h.theme.IsLoaded(),
	})
}

// SetTheme serves PUT /settings/theme with a {"mode": "..."} body
func (h *HTTPHandlerImpl) SetTheme(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Mode entities.ThemeMode `json:"mode"`
	}

	dec := json.NewDecoder(io.LimitReader(r.Body, 1024))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		RespondWithError(w, http.StatusBadRequest, "body must be {\"mode\": \"light\"|\"dark\"|\"system\"}")
		return
	}

	if err := h.theme.SetMode(r.Context(), body.Mode); err != nil {
		if errors.Is(err, preferences.ErrInvalidThemeMode) {
			RespondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
		RespondWithError(w, http.StatusInternalServerError, "failed to set theme")
		return
	}

	system := entities.ThemeMode(r.URL.Query().Get("system"))
	RespondWithJSON(w, http.StatusOK, ThemeResponse{
		Mode:     h.theme.Mode(),
		Resolved: h.theme.Resolve(system),
		Loaded:   h.theme.IsLoaded(),
	})
}

// HealthCheck serves GET /health
func (h *HTTPHandlerImpl) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status, healthData, httpStatus := h.healthChecker.HealthCheck()

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	uptime := time.Duration(0)
	if start := h.dataStore.GetServerStartTime(); !start.IsZero() {
		uptime = time.Since(start)
	}

	RespondWithJSON(w, httpStatus, HealthResponse{
		Status:        status,
		UptimeSeconds: uptime.Seconds(),
		Uptime:        formatUptimeHuman(uptime),
		Data:          healthData,
		System: map[string]any{
			"goroutines": runtime.NumGoroutine(),
			"memory": map[string]any{
				"alloc_mb": int(m.Alloc / 1024 / 1024),
				"sys_mb":   int(m.Sys / 1024 / 1024),
				"num_gc":   m.NumGC,
			},
		},
	})
}

// formatUptimeHuman formats duration into a human-readable string
func formatUptimeHuman(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	var parts []string

	if days > 0 {
		parts = append(parts, fmt.Sprintf("%dd", days))
	}
	if hours > 0 || days > 0 {
		parts = append(parts, fmt.Sprintf("%dh", hours))
	}
	if minutes > 0 || hours > 0 || days > 0 {
		parts = append(parts, fmt.Sprintf("%dm", minutes))
	}
	parts = append(parts, fmt.Sprintf("%ds", seconds))

	return strings.Join(parts, " ")
}
