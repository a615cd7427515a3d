package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/marketsignal/internal/app"
	"github.com/ternarybob/marketsignal/internal/common"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	cfg := common.NewDefaultConfig()
	cfg.Storage.Type = "memory"

	application, err := app.New(cfg, arbor.NewLogger())
	require.NoError(t, err)
	t.Cleanup(func() { application.Close() })

	ts := httptest.NewServer(New(application).Handler())
	t.Cleanup(ts.Close)
	return ts
}

func TestRoutes(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		method string
		path   string
		status int
	}{
		{http.MethodGet, "/api/health", http.StatusOK},
		{http.MethodGet, "/api/version", http.StatusOK},
		{http.MethodGet, "/api/analysis", http.StatusOK},
		{http.MethodPut, "/api/analysis", http.StatusMethodNotAllowed},
		{http.MethodPost, "/api/analysis/reset", http.StatusOK},
		{http.MethodPost, "/api/analysis/save", http.StatusConflict},
		{http.MethodGet, "/api/analysis/report.pdf", http.StatusConflict},
		{http.MethodGet, "/api/history", http.StatusOK},
		{http.MethodGet, "/api/history/unknown", http.StatusNotFound},
		{http.MethodGet, "/api/nope", http.StatusNotFound},
		{http.MethodOptions, "/api/analysis", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			req, err := http.NewRequest(tt.method, ts.URL+tt.path, nil)
			require.NoError(t, err)
			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
		})
	}
}

func newBareServer(t *testing.T, origins ...string) *Server {
	t.Helper()
	cfg := common.NewDefaultConfig()
	cfg.Storage.Type = "memory"
	if len(origins) > 0 {
		cfg.Server.AllowedOrigins = origins
	}
	application, err := app.New(cfg, arbor.NewLogger())
	require.NoError(t, err)
	t.Cleanup(func() { application.Close() })
	return New(application)
}

func TestRecoveryMiddleware(t *testing.T) {
	s := newBareServer(t)
	h := s.withMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/anything", nil)
	req.Header.Set("X-Request-ID", "req-42")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "req-42", rec.Header().Get("X-Request-ID"))

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "error", body["status"])
	assert.Equal(t, "req-42", body["request_id"])
}

func TestRecoveryMiddleware_AfterPartialResponse(t *testing.T) {
	s := newBareServer(t)
	h := s.withMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte("partial"))
		panic("late")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/anything", nil))

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "partial", rec.Body.String())
}

func TestLoggingMiddleware_GeneratesRequestID(t *testing.T) {
	s := newBareServer(t)
	var seen string
	h := s.withMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = requestID(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/analysis", nil))

	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get("X-Request-ID"))
}

func TestCORS_ConfiguredOrigins(t *testing.T) {
	s := newBareServer(t, "http://localhost:5173")
	h := s.withConditionalMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodOptions, "/api/analysis", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Expose-Headers"), "Content-Disposition")

	req = httptest.NewRequest(http.MethodGet, "/api/analysis", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestAllowedOrigin(t *testing.T) {
	assert.Equal(t, "*", allowedOrigin([]string{"*"}, ""))
	assert.Equal(t, "http://a.test", allowedOrigin([]string{"http://A.test"}, "http://a.test"))
	assert.Equal(t, "", allowedOrigin([]string{"http://a.test"}, "http://b.test"))
	assert.Equal(t, "", allowedOrigin(nil, "http://a.test"))
}
