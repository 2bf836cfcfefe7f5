package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(baseURL string) *Config {
	return &Config{
		BaseURL:       baseURL,
		DataTimeout:   2 * time.Second,
		HealthTimeout: 500 * time.Millisecond,
		MaxAttempts:   3,
		BaseDelay:     20 * time.Millisecond,
	}
}

func successBody(t *testing.T, data any) []byte {
	t.Helper()
	body, _ := json.Marshal(map[string]any{
		"success": true,
		"message": "ok",
		"data":    data,
	})
	return body
}

func sampleVisit() map[string]any {
	return map[string]any{
		"id":               "f7f0af2e-52c7-4a6a-9f0e-1d2c3b4a5d6e",
		"url":              "https://x.test",
		"datetime_visited": "2026-08-20T10:30:00Z",
		"link_count":       10,
		"word_count":       500,
		"image_count":      5,
		"created_at":       "2026-08-20T10:30:01Z",
	}
}

func TestSaveVisit_Validation(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	c := New(testConfig(srv.URL))

	tests := []struct {
		name    string
		metrics *Metrics
	}{
		{
			name:    "empty_url",
			metrics: &Metrics{URL: "", LinkCount: 1, WordCount: 1, ImageCount: 1},
		},
		{
			name:    "negative_link_count",
			metrics: &Metrics{URL: "https://x.test", LinkCount: -1},
		},
		{
			name:    "negative_word_count",
			metrics: &Metrics{URL: "https://x.test", WordCount: -5},
		},
		{
			name:    "negative_image_count",
			metrics: &Metrics{URL: "https://x.test", ImageCount: -2},
		},
		{
			name:    "nil_metrics",
			metrics: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			visit, err := c.SaveVisit(context.Background(), tt.metrics)
			assert.Nil(t, visit)
			require.Error(t, err)

			var clientErr *Error
			require.ErrorAs(t, err, &clientErr)
			assert.Equal(t, KindValidation, clientErr.Kind)
			assert.False(t, clientErr.Retryable())
		})
	}

	// Validation failures must never reach the network
	assert.Equal(t, int32(0), calls.Load())
}

func TestGetHistory_LimitBounds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write(successBody(t, map[string]any{"visits": []any{}, "total": 0}))
	}))
	defer srv.Close()

	c := New(testConfig(srv.URL))

	tests := []struct {
		name      string
		limit     int
		expectErr bool
	}{
		{name: "limit_zero", limit: 0, expectErr: true},
		{name: "limit_too_large", limit: 1001, expectErr: true},
		{name: "limit_min", limit: 1, expectErr: false},
		{name: "limit_max", limit: 1000, expectErr: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := calls.Load()
			page, err := c.GetHistory(context.Background(), "https://x.test", tt.limit, 0)
			if tt.expectErr {
				var clientErr *Error
				require.ErrorAs(t, err, &clientErr)
				assert.Equal(t, KindValidation, clientErr.Kind)
				assert.Equal(t, before, calls.Load(), "validation failure must not hit the network")
			} else {
				require.NoError(t, err)
				assert.NotNil(t, page)
				assert.Equal(t, before+1, calls.Load())
			}
		})
	}
}

func TestSaveVisit_RetriesTransientFailures(t *testing.T) {
	var mu sync.Mutex
	var times []time.Time
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		times = append(times, time.Now())
		mu.Unlock()
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusInternalServerError)
			fmt.Fprint(w, `{"success":false,"message":"database unavailable"}`)
			return
		}
		w.WriteHeader(http.StatusCreated)
		w.Write(successBody(t, sampleVisit()))
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	c := New(cfg)

	visit, err := c.SaveVisit(context.Background(), &Metrics{URL: "https://x.test", LinkCount: 10, WordCount: 500, ImageCount: 5})
	require.NoError(t, err)
	require.NotNil(t, visit)
	assert.Equal(t, "https://x.test", visit.URL)

	require.Equal(t, int32(3), calls.Load())
	require.Len(t, times, 3)

	// Exponential backoff: second attempt >= base, third >= 2 * base
	assert.GreaterOrEqual(t, times[1].Sub(times[0]), cfg.BaseDelay)
	assert.GreaterOrEqual(t, times[2].Sub(times[1]), 2*cfg.BaseDelay)
}

func TestSaveVisit_ClientErrorIsTerminal(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
		fmt.Fprint(w, `{"detail":"word_count must be greater than or equal to 0"}`)
	}))
	defer srv.Close()

	c := New(testConfig(srv.URL))

	visit, err := c.SaveVisit(context.Background(), &Metrics{URL: "https://x.test", WordCount: 1})
	assert.Nil(t, visit)

	var clientErr *Error
	require.ErrorAs(t, err, &clientErr)
	assert.Equal(t, KindAPI, clientErr.Kind)
	assert.Equal(t, http.StatusUnprocessableEntity, clientErr.StatusCode)
	assert.Equal(t, "word_count must be greater than or equal to 0", clientErr.Message)
	assert.False(t, clientErr.Retryable())

	// Exactly one attempt, no retry budget spent on a 4xx
	assert.Equal(t, int32(1), calls.Load())
}

func TestSaveVisit_ExhaustsRetryBudget(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
		fmt.Fprint(w, `{"success":false,"message":"upstream down"}`)
	}))
	defer srv.Close()

	c := New(testConfig(srv.URL))

	_, err := c.SaveVisit(context.Background(), &Metrics{URL: "https://x.test"})
	var clientErr *Error
	require.ErrorAs(t, err, &clientErr)
	assert.Equal(t, KindAPI, clientErr.Kind)
	assert.Equal(t, http.StatusBadGateway, clientErr.StatusCode)
	assert.Equal(t, "upstream down", clientErr.Message)
	assert.Equal(t, int32(3), calls.Load())
}

func TestSaveVisit_TimeoutClassification(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.DataTimeout = 50 * time.Millisecond
	cfg.MaxAttempts = 1
	c := New(cfg)

	start := time.Now()
	_, err := c.SaveVisit(context.Background(), &Metrics{URL: "https://x.test"})
	elapsed := time.Since(start)

	var clientErr *Error
	require.ErrorAs(t, err, &clientErr)
	assert.Equal(t, KindTimeout, clientErr.Kind)
	assert.True(t, clientErr.Retryable())
	assert.Less(t, elapsed, time.Second, "call must resolve at the deadline, not hang")
}

func TestSaveVisit_NetworkErrorClassification(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // refuse connections

	cfg := testConfig(srv.URL)
	cfg.MaxAttempts = 1
	c := New(cfg)

	_, err := c.SaveVisit(context.Background(), &Metrics{URL: "https://x.test"})
	var clientErr *Error
	require.ErrorAs(t, err, &clientErr)
	assert.Equal(t, KindNetwork, clientErr.Kind)
	assert.True(t, clientErr.Retryable())
}

func TestGetLatest_NotFoundIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"success":false,"message":"No visits found for URL: https://never.test"}`)
	}))
	defer srv.Close()

	c := New(testConfig(srv.URL))

	visit, err := c.GetLatest(context.Background(), "https://never.test")
	assert.NoError(t, err)
	assert.Nil(t, visit)
}

func TestGetLatest_ReturnsVisit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(successBody(t, sampleVisit()))
	}))
	defer srv.Close()

	c := New(testConfig(srv.URL))

	visit, err := c.GetLatest(context.Background(), "https://x.test")
	require.NoError(t, err)
	require.NotNil(t, visit)
	assert.Equal(t, "https://x.test", visit.URL)
	assert.Equal(t, 10, visit.LinkCount)
	assert.Equal(t, 500, visit.WordCount)
	assert.Equal(t, 5, visit.ImageCount)
	assert.NotEmpty(t, visit.ID)
	assert.False(t, visit.CreatedAt.IsZero())
}

func TestGetHistory_EncodesURLPathSegment(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		w.Write(successBody(t, map[string]any{"visits": []any{}, "total": 0}))
	}))
	defer srv.Close()

	c := New(testConfig(srv.URL))

	pageURL := "https://x.test/path?q=1"
	_, err := c.GetHistory(context.Background(), pageURL, 10, 0)
	require.NoError(t, err)
	assert.Contains(t, gotPath, url.PathEscape(pageURL))
}

func TestGetHistory_EmptyPageKeepsTotal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(successBody(t, map[string]any{"visits": nil, "total": 42}))
	}))
	defer srv.Close()

	c := New(testConfig(srv.URL))

	page, err := c.GetHistory(context.Background(), "https://x.test", 10, 1000)
	require.NoError(t, err)
	assert.NotNil(t, page.Visits)
	assert.Empty(t, page.Visits)
	assert.Equal(t, 42, page.Total)
}

func TestCheckHealth(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		healthy bool
	}{
		{name: "healthy", status: http.StatusOK, healthy: true},
		{name: "unavailable", status: http.StatusServiceUnavailable, healthy: false},
		{name: "server_error", status: http.StatusInternalServerError, healthy: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			c := New(testConfig(srv.URL))
			assert.Equal(t, tt.healthy, c.CheckHealth(context.Background()))
			// The probe never retries
			assert.Equal(t, int32(1), calls.Load())
		})
	}
}

func TestCheckHealth_UnreachableStore(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	c := New(testConfig(srv.URL))
	assert.False(t, c.CheckHealth(context.Background()))
}
