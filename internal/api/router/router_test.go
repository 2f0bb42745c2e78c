package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/michaeltmk/portfolio/internal/ai"
	"github.com/michaeltmk/portfolio/internal/chat"
	"github.com/michaeltmk/portfolio/internal/github"
	"github.com/michaeltmk/portfolio/internal/portfolio"
	"github.com/michaeltmk/portfolio/pkg/logging"
)

func testHandler(t *testing.T) *chat.Handler {
	t.Helper()
	registry := ai.NewRegistry(ai.CatalogConfig{
		MistralAPIKey: "mk",
		Primary:       "mistral",
	})
	orchestrator := ai.NewOrchestrator(registry, logging.New("error"), nil)
	cfg := &portfolio.Config{Personal: portfolio.PersonalInfo{Name: "Michael Mak"}}
	return chat.NewHandler(orchestrator, cfg, nil, logging.New("error"))
}

func TestRouter_HealthRoute(t *testing.T) {
	h := New(&Config{
		Logger:      logging.New("error"),
		ChatHandler: testHandler(t),
	})

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "status")
}

func TestRouter_UnknownRoute(t *testing.T) {
	h := New(&Config{ChatHandler: testHandler(t)})

	req := httptest.NewRequest(http.MethodGet, "/api/nope", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_ChatRejectsGet(t *testing.T) {
	h := New(&Config{ChatHandler: testHandler(t)})

	req := httptest.NewRequest(http.MethodGet, "/api/chat", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRouter_MetricsRoute(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("# metrics"))
	})
	h := New(&Config{ChatHandler: testHandler(t), MetricsHandler: metrics})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "# metrics")
}

func TestRouter_CORSHeaders(t *testing.T) {
	h := New(&Config{
		ChatHandler:        testHandler(t),
		CORSAllowedOrigins: []string{"https://michaeltmk.com"},
	})

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("Origin", "https://michaeltmk.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "https://michaeltmk.com", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouter_StarsRoute(t *testing.T) {
	stars := github.NewStarsHandler("", "michaeltmk/portfolio", http.DefaultClient, logging.New("error"))
	h := New(&Config{ChatHandler: testHandler(t), StarsHandler: stars})

	// The route is registered; upstream failure maps to an error status,
	// not a 404.
	req := httptest.NewRequest(http.MethodGet, "/api/github-stars", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.NotEqual(t, http.StatusNotFound, rec.Code)
}
