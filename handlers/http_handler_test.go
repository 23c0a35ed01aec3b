package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dosesegura/dose-segura/data"
	"github.com/dosesegura/dose-segura/entities"
	"github.com/dosesegura/dose-segura/health"
	"github.com/dosesegura/dose-segura/logging"
	"github.com/dosesegura/dose-segura/preferences"
	"github.com/dosesegura/dose-segura/storage"
	"github.com/dosesegura/dose-segura/validation"
)

// ============================================================================
// FIXTURES
// ============================================================================

type testEnv struct {
	router    http.Handler
	store     *storage.MemoryStore
	favorites *preferences.Favorites
	theme     *preferences.Theme
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logging.InitLogger("")

	dataset := &entities.Dataset{Version: "2.0.0", LastUpdated: "2026-10-01"}
	for _, m := range []entities.Medication{
		{ID: "acetilcisteina", Name: "Acetilcisteína", Aliases: []string{"NAC"}},
		{ID: "amiodarona", Name: "Amiodarona", Aliases: []string{"Cordarone"}, HighRisk: true},
		{ID: "cloreto-potassio", Name: "Cloreto de Potássio", Aliases: []string{"KCl"}, HighRisk: true},
	} {
		dataset.Medications.Set(m.ID, m)
	}

	dc := data.NewDataContainer()
	dc.UpdateData(dataset, nil)
	dc.SetServerStartTime(time.Now().Add(-90 * time.Second))

	store := storage.NewMemoryStore()
	favorites := preferences.NewFavorites(store)
	favorites.Load(context.Background())
	theme := preferences.NewTheme(store)
	theme.Load(context.Background())

	h := NewHTTPHandler(dc, validation.NewDataValidator(), favorites, theme, health.NewHealthChecker(dc, favorites))

	r := chi.NewRouter()
	r.Get("/medications", h.SearchMedications)
	r.Get("/medications/{id}", h.GetMedication)
	r.Get("/dataset", h.DatasetInfo)
	r.Get("/favorites", h.ListFavorites)
	r.Post("/favorites/{id}/toggle", h.ToggleFavorite)
	r.Get("/settings/theme", h.GetTheme)
	r.Put("/settings/theme", h.SetTheme)
	r.Get("/health", h.HealthCheck)

	return &testEnv{router: r, store: store, favorites: favorites, theme: theme}
}

func (e *testEnv) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("failed to decode %q: %v", rr.Body.String(), err)
	}
	return v
}

// ============================================================================
// MEDICATIONS
// ============================================================================

func TestSearchMedications(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name      string
		target    string
		wantCode  int
		wantCount int
		wantFirst string
	}{
		{"no query returns all", "/medications", http.StatusOK, 3, "acetilcisteina"},
		{"blank query returns all", "/medications?q=%20%20", http.StatusOK, 3, "acetilcisteina"},
		{"alias", "/medications?q=nac", http.StatusOK, 1, "acetilcisteina"},
		{"accents ignored", "/medications?q=pot%C3%A1ssio", http.StatusOK, 1, "cloreto-potassio"},
		{"no match", "/medications?q=xyz-inexistente", http.StatusOK, 0, ""},
		{"single letter", "/medications?q=n", http.StatusOK, 2, "acetilcisteina"},
		{"punctuation is plain text", "/medications?q=Acetilciste%C3%ADna%3B", http.StatusOK, 0, ""},
		{"many words", "/medications?q=cloreto+de+pot%C3%A1ssio+s%C3%B3dio+0%2C9%25+em+glicose+a+5%25", http.StatusOK, 0, ""},
		{"angle brackets", "/medications?q=%3Cscript%3E", http.StatusOK, 0, ""},
		{"too long", "/medications?q=" + strings.Repeat("a", 101), http.StatusBadRequest, 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(t, http.MethodGet, tt.target, "")
			if rr.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d: %s", rr.Code, tt.wantCode, rr.Body.String())
			}
			if tt.wantCode != http.StatusOK {
				return
			}
			resp := decode[SearchResponse](t, rr)
			if resp.Count != tt.wantCount || len(resp.Medications) != tt.wantCount {
				t.Fatalf("count = %d, want %d", resp.Count, tt.wantCount)
			}
			if tt.wantFirst != "" && resp.Medications[0].ID != tt.wantFirst {
				t.Errorf("first = %q, want %q", resp.Medications[0].ID, tt.wantFirst)
			}
		})
	}
}

func TestGetMedication(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodGet, "/medications/amiodarona", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	med := decode[entities.Medication](t, rr)
	if med.Name != "Amiodarona" || !med.HighRisk {
		t.Errorf("unexpected medication %+v", med)
	}

	if rr := env.do(t, http.MethodGet, "/medications/xyz-inexistente", ""); rr.Code != http.StatusNotFound {
		t.Errorf("unknown id status = %d, want 404", rr.Code)
	}
	if rr := env.do(t, http.MethodGet, "/medications/Not_A_Slug", ""); rr.Code != http.StatusBadRequest {
		t.Errorf("invalid id status = %d, want 400", rr.Code)
	}
}

func TestDatasetInfo(t *testing.T) {
	env := newTestEnv(t)

	resp := decode[DatasetResponse](t, env.do(t, http.MethodGet, "/dataset", ""))
	if resp.Version != "2.0.0" || resp.LastUpdated != "2026-10-01" || resp.Count != 3 {
		t.Errorf("unexpected dataset info %+v", resp)
	}
	if resp.LoadedAt.IsZero() {
		t.Error("loadedAt should be set")
	}
}

// ============================================================================
// FAVORITES
// ============================================================================

func TestToggleFavoriteRoundTrip(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodPost, "/favorites/acetilcisteina/toggle", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body.String())
	}
	resp := decode[FavoritesResponse](t, rr)
	if len(resp.IDs) != 1 || resp.IDs[0] != "acetilcisteina" || len(resp.Medications) != 1 {
		t.Errorf("after first toggle: %+v", resp)
	}

	raw, _, _ := env.store.Get(context.Background(), entities.FavoritesKey)
	if raw != `["acetilcisteina"]` {
		t.Errorf("persisted = %s", raw)
	}

	resp = decode[FavoritesResponse](t, env.do(t, http.MethodPost, "/favorites/acetilcisteina/toggle", ""))
	if len(resp.IDs) != 0 {
		t.Errorf("after second toggle: %+v", resp)
	}

	listed := decode[FavoritesResponse](t, env.do(t, http.MethodGet, "/favorites", ""))
	if len(listed.IDs) != 0 || listed.Loading {
		t.Errorf("list after round trip: %+v", listed)
	}
}

func TestToggleFavoriteUnknownID(t *testing.T) {
	env := newTestEnv(t)

	if rr := env.do(t, http.MethodPost, "/favorites/xyz-inexistente/toggle", ""); rr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rr.Code)
	}
	if len(env.favorites.List()) != 0 {
		t.Error("unknown ids must not be added")
	}
}

func TestListFavoritesSkipsRemovedRecords(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.favorites.Toggle(ctx, "amiodarona")
	env.favorites.Toggle(ctx, "retirado-do-dataset")

	resp := decode[FavoritesResponse](t, env.do(t, http.MethodGet, "/favorites", ""))
	if len(resp.IDs) != 2 || len(resp.Medications) != 1 {
		t.Errorf("unexpected favorites %+v", resp)
	}

	// a stale favorite can still be removed
	if rr := env.do(t, http.MethodPost, "/favorites/retirado-do-dataset/toggle", ""); rr.Code != http.StatusOK {
		t.Errorf("removing a stale favorite: status = %d", rr.Code)
	}
}

// ============================================================================
// THEME
// ============================================================================

func TestTheme(t *testing.T) {
	env := newTestEnv(t)

	resp := decode[ThemeResponse](t, env.do(t, http.MethodGet, "/settings/theme", ""))
	if resp.Mode != entities.ThemeSystem || resp.Resolved != entities.ThemeLight {
		t.Errorf("default theme %+v", resp)
	}

	resp = decode[ThemeResponse](t, env.do(t, http.MethodGet, "/settings/theme?system=dark", ""))
	if resp.Resolved != entities.ThemeDark {
		t.Errorf("system theme should follow the device, got %+v", resp)
	}

	rr := env.do(t, http.MethodPut, "/settings/theme", `{"mode":"light"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body.String())
	}
	resp = decode[ThemeResponse](t, env.do(t, http.MethodGet, "/settings/theme?system=dark", ""))
	if resp.Mode != entities.ThemeLight || resp.Resolved != entities.ThemeLight {
		t.Errorf("explicit light should win over the device, got %+v", resp)
	}

	raw, _, _ := env.store.Get(context.Background(), entities.ThemeKey)
	if raw != "light" {
		t.Errorf("persisted = %q", raw)
	}
}

func TestSetThemeRejectsBadInput(t *testing.T) {
	env := newTestEnv(t)

	for _, body := range []string{`{"mode":"sepia"}`, `not json`, `{"mode":"dark","extra":1}`} {
		if rr := env.do(t, http.MethodPut, "/settings/theme", body); rr.Code != http.StatusBadRequest {
			t.Errorf("body %s: status = %d, want 400", body, rr.Code)
		}
	}
	if env.theme.Mode() != entities.ThemeSystem {
		t.Error("rejected requests must not change the theme")
	}
}

// ============================================================================
// HEALTH
// ============================================================================

func TestHealthCheck(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodGet, "/health", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body.String())
	}
	resp := decode[HealthResponse](t, rr)
	if resp.Status != "healthy" {
		t.Errorf("status = %q", resp.Status)
	}
	if resp.UptimeSeconds < 90 || !strings.HasPrefix(resp.Uptime, "1m") {
		t.Errorf("uptime = %v (%s)", resp.UptimeSeconds, resp.Uptime)
	}
	if resp.Data["medications"] != float64(3) {
		t.Errorf("medications = %v", resp.Data["medications"])
	}
}

func TestFormatUptimeHuman(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{5 * time.Second, "5s"},
		{61 * time.Second, "1m 1s"},
		{time.Hour, "1h 0m 0s"},
		{49 * time.Hour, "2d 1h 0m 0s"},
	}
	for _, tt := range tests {
		if got := formatUptimeHuman(tt.d); got != tt.want {
			t.Errorf("formatUptimeHuman(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}
