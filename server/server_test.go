package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dosesegura/dose-segura/config"
	"github.com/dosesegura/dose-segura/data"
	"github.com/dosesegura/dose-segura/entities"
	"github.com/dosesegura/dose-segura/handlers"
	"github.com/dosesegura/dose-segura/health"
	"github.com/dosesegura/dose-segura/logging"
	"github.com/dosesegura/dose-segura/preferences"
	"github.com/dosesegura/dose-segura/storage"
	"github.com/dosesegura/dose-segura/validation"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	logging.InitLogger("")

	dataset := &entities.Dataset{Version: "1.0.0", LastUpdated: "2026-10-01"}
	dataset.Medications.Set("acetilcisteina", entities.Medication{ID: "acetilcisteina", Name: "Acetilcisteína", Aliases: []string{"NAC"}})
	dataset.Medications.Set("heparina", entities.Medication{ID: "heparina", Name: "Heparina"})

	dc := data.NewDataContainer()
	dc.UpdateData(dataset, nil)
	dc.SetServerStartTime(time.Now())

	store := storage.NewMemoryStore()
	favorites := preferences.NewFavorites(store)
	favorites.Load(context.Background())
	theme := preferences.NewTheme(store)
	theme.Load(context.Background())

	h := handlers.NewHTTPHandler(dc, validation.NewDataValidator(), favorites, theme, health.NewHealthChecker(dc, favorites))

	cfg := &config.Config{
		Port:           "8030",
		Address:        "127.0.0.1",
		Env:            config.EnvTest,
		MaxRequestBody: 1024,
		MaxHeaderSize:  8192,
	}

	s := NewServer(cfg, h)
	t.Cleanup(s.rateLimiter.Stop)
	return s
}

func TestNewServer(t *testing.T) {
	s := newTestServer(t)

	if s.server.Addr != "127.0.0.1:8030" {
		t.Errorf("Addr = %q", s.server.Addr)
	}
	if s.server.ReadTimeout != 15*time.Second || s.server.WriteTimeout != 15*time.Second {
		t.Error("unexpected timeouts")
	}
	if s.server.MaxHeaderBytes != 8192 {
		t.Errorf("MaxHeaderBytes = %d", s.server.MaxHeaderBytes)
	}
}

func TestRoutes(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		method string
		target string
		body   string
		want   int
	}{
		{http.MethodGet, "/medications", "", http.StatusOK},
		{http.MethodGet, "/medications?q=nac", "", http.StatusOK},
		{http.MethodGet, "/medications/heparina", "", http.StatusOK},
		{http.MethodGet, "/medications/xyz-inexistente", "", http.StatusNotFound},
		{http.MethodGet, "/dataset", "", http.StatusOK},
		{http.MethodGet, "/favorites", "", http.StatusOK},
		{http.MethodPost, "/favorites/heparina/toggle", "", http.StatusOK},
		{http.MethodGet, "/settings/theme", "", http.StatusOK},
		{http.MethodPut, "/settings/theme", `{"mode":"dark"}`, http.StatusOK},
		{http.MethodGet, "/health", "", http.StatusOK},
		{http.MethodGet, "/metrics", "", http.StatusOK},
		{http.MethodDelete, "/medications", "", http.StatusMethodNotAllowed},
		{http.MethodGet, "/nope", "", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.target, func(t *testing.T) {
			var req *http.Request
			if tt.body != "" {
				req = httptest.NewRequest(tt.method, tt.target, strings.NewReader(tt.body))
			} else {
				req = httptest.NewRequest(tt.method, tt.target, nil)
			}
			rr := httptest.NewRecorder()
			s.Router().ServeHTTP(rr, req)

			if rr.Code != tt.want {
				t.Errorf("status = %d, want %d: %s", rr.Code, tt.want, rr.Body.String())
			}
		})
	}
}

func TestRateLimitHeaders(t *testing.T) {
	s := newTestServer(t)

	rr := httptest.NewRecorder()
	s.Router().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/dataset", nil))

	if rr.Header().Get("X-RateLimit-Limit") != "1000" {
		t.Errorf("X-RateLimit-Limit = %q", rr.Header().Get("X-RateLimit-Limit"))
	}

	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if body["version"] != "1.0.0" {
		t.Errorf("version = %v", body["version"])
	}
}

func TestShutdown(t *testing.T) {
	s := newTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown of a server that never started should succeed: %v", err)
	}
}
