package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Harvey-AU/page-pulse/internal/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthCheck_Healthy(t *testing.T) {
	store := &mocks.MockVisitStore{}
	store.On("Ping").Return(nil)

	mux := setupTestMux(store)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var body HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body.Status)
	assert.Equal(t, "page-pulse", body.Service)
	assert.Equal(t, "connected", body.Database)
}

func TestHealthCheck_DatabaseDown(t *testing.T) {
	store := &mocks.MockVisitStore{}
	store.On("Ping").Return(errors.New("connection refused"))

	mux := setupTestMux(store)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	// The status code is the contract: health probes never parse the body
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHealthCheck_NilStore(t *testing.T) {
	mux := http.NewServeMux()
	NewHandler(nil).SetupRoutes(mux)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRequestIDMiddleware(t *testing.T) {
	var captured string
	handler := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = GetRequestID(r)
	}))

	t.Run("generates_id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/visits", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.NotEmpty(t, captured)
		assert.Equal(t, captured, rec.Header().Get("X-Request-ID"))
	})

	t.Run("preserves_upstream_id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/visits", nil)
		req.Header.Set("X-Request-ID", "upstream-id")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, "upstream-id", captured)
	})
}

func TestCORSMiddleware_Preflight(t *testing.T) {
	handler := CORSMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("preflight must not reach the next handler")
	}))

	req := httptest.NewRequest(http.MethodOptions, "/api/visits", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
