package extractor

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Harvey-AU/page-pulse/internal/client"
	"github.com/Harvey-AU/page-pulse/internal/relay"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePage = `<!DOCTYPE html>
<html>
<head>
	<title>Sample</title>
	<style>body { color: red; }</style>
	<script>var hidden = "these words must not count";</script>
</head>
<body>
	<h1>Hello visitor</h1>
	<p>Three more words here</p>
	<a href="/one">first</a>
	<a href="/two">second</a>
	<a name="anchor-without-href">third</a>
	<img src="/a.png">
	<img src="/b.png">
	<img src="/c.png">
</body>
</html>`

func testConfig() *Config {
	cfg := DefaultConfig()
	cfg.Timeout = 5 * time.Second
	cfg.SettleDelay = 0
	return cfg
}

func TestExtract(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, samplePage)
	}))
	defer server.Close()

	ex := New(testConfig())
	metrics, err := ex.Extract(context.Background(), server.URL)
	require.NoError(t, err)

	assert.Equal(t, server.URL, metrics.URL)
	assert.Equal(t, 2, metrics.LinkCount, "only anchors with href count as links")
	assert.Equal(t, 3, metrics.ImageCount)
	// Sample + Hello visitor + Three more words here + first second third
	assert.Equal(t, 10, metrics.WordCount, "script and style text must not count as words")
	require.NotNil(t, metrics.VisitedAt)
	assert.WithinDuration(t, time.Now().UTC(), *metrics.VisitedAt, 5*time.Second)
}

func TestExtract_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	ex := New(testConfig())
	metrics, err := ex.Extract(context.Background(), server.URL)
	assert.Error(t, err)
	assert.Nil(t, metrics)
}

func TestExtract_CancelledContext(t *testing.T) {
	ex := New(testConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ex.Extract(ctx, "http://unused.test")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestProducer_GetCurrentMetricsIsFresh(t *testing.T) {
	var serves atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := serves.Add(1)
		w.Header().Set("Content-Type", "text/html")
		// Page content changes between requests
		fmt.Fprintf(w, `<html><body>%s</body></html>`, repeatLinks(int(n)))
	}))
	defer server.Close()

	router := relay.NewRouter()
	NewProducer(New(testConfig()), router, server.URL)

	first := dispatchCurrent(t, router)
	second := dispatchCurrent(t, router)

	assert.Equal(t, 1, first.LinkCount)
	assert.Equal(t, 2, second.LinkCount, "each request must recompute from a live fetch")
}

func TestProducer_ObserveDispatchesSave(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, samplePage)
	}))
	defer server.Close()

	saved := make(chan client.Metrics, 1)

	router := relay.NewRouter()
	router.Handle(relay.MsgSaveMetrics, func(ctx context.Context, data json.RawMessage) (any, error) {
		var m client.Metrics
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, err
		}
		saved <- m
		return nil, nil
	})

	producer := NewProducer(New(testConfig()), router, server.URL)
	require.NoError(t, producer.Observe(context.Background()))

	select {
	case m := <-saved:
		assert.Equal(t, server.URL, m.URL)
		assert.Equal(t, 2, m.LinkCount)
		assert.Equal(t, 3, m.ImageCount)
	case <-time.After(5 * time.Second):
		t.Fatal("no save-metrics message dispatched")
	}
}

func TestProducer_ObserveHonoursSettleCancellation(t *testing.T) {
	cfg := testConfig()
	cfg.SettleDelay = 10 * time.Second

	router := relay.NewRouter()
	producer := NewProducer(New(cfg), router, "http://unused.test")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := producer.Observe(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func dispatchCurrent(t *testing.T, router *relay.Router) *client.Metrics {
	t.Helper()

	resp := <-router.Dispatch(context.Background(), relay.Message{Type: relay.MsgGetCurrentMetrics})
	require.True(t, resp.Success, resp.Error)

	metrics, ok := resp.Data.(*client.Metrics)
	require.True(t, ok)
	return metrics
}

func repeatLinks(n int) string {
	links := ""
	for i := 0; i < n; i++ {
		links += fmt.Sprintf(`<a href="/l%d">link</a>`, i)
	}
	return links
}
