package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/michaeltmk/portfolio/pkg/logging"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestCORS_AllowsListedOrigin(t *testing.T) {
	mw := CORS([]string{"https://michaeltmk.com"})
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("Origin", "https://michaeltmk.com")
	rec := httptest.NewRecorder()

	mw(okHandler()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://michaeltmk.com", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.NotEmpty(t, rec.Header().Get("Access-Control-Allow-Methods"))
}

func TestCORS_DeniesUnknownOrigin(t *testing.T) {
	mw := CORS([]string{"https://michaeltmk.com"})
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec := httptest.NewRecorder()

	mw(okHandler()).ServeHTTP(rec, req)

	// Request still served, just without CORS headers.
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORS_Wildcard(t *testing.T) {
	mw := CORS([]string{"*"})
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("Origin", "https://anywhere.example")
	rec := httptest.NewRecorder()

	mw(okHandler()).ServeHTTP(rec, req)

	assert.Equal(t, "https://anywhere.example", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORS_Preflight(t *testing.T) {
	mw := CORS([]string{"https://michaeltmk.com"})
	req := httptest.NewRequest(http.MethodOptions, "/api/chat", nil)
	req.Header.Set("Origin", "https://michaeltmk.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()

	called := false
	mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true })).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.False(t, called)
}

func TestRequestLogger_PassesThrough(t *testing.T) {
	mw := RequestLogger(logging.New("error"))
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()

	mw(okHandler()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestRequestLogger_PreservesFlusher(t *testing.T) {
	mw := RequestLogger(logging.New("error"))
	req := httptest.NewRequest(http.MethodPost, "/api/chat", nil)
	rec := httptest.NewRecorder()

	var flushable bool
	mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Streaming depends on the wrapped writer still flushing.
		_, flushable = w.(http.Flusher)
		w.Write([]byte("0:\"hi\"\n"))
	})).ServeHTTP(rec, req)

	assert.True(t, flushable)
}

func TestStreamLimiter_Acquire(t *testing.T) {
	l := NewStreamLimiter(2)

	assert.True(t, l.Acquire())
	assert.True(t, l.Acquire())
	assert.False(t, l.Acquire())
	assert.Equal(t, 2, l.InFlight())

	l.Release()
	assert.True(t, l.Acquire())
}

func TestLimitStreams_ShedsExcessLoad(t *testing.T) {
	mw := LimitStreams(1)
	inside := make(chan struct{})
	release := make(chan struct{})
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(inside)
		<-release
		w.WriteHeader(http.StatusOK)
	}))

	done := make(chan *httptest.ResponseRecorder)
	go func() {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/chat", nil))
		done <- rec
	}()
	<-inside

	// Second request while the first stream is still running.
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/chat", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	close(release)
	first := <-done
	require.Equal(t, http.StatusOK, first.Code)

	// Slot freed once the stream finished.
	rec = httptest.NewRecorder()
	mwHandlerOK := LimitStreams(1)(okHandler())
	mwHandlerOK.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/chat", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
