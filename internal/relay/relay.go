// Package relay routes typed messages between the page-bound
// extractor, the UI, and the visit store. It is a long-lived,
// stateless mediator: no cache, no write queue, no session beyond the
// call in flight.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"time"

	"github.com/Harvey-AU/page-pulse/internal/client"
	"github.com/Harvey-AU/page-pulse/internal/observability"
	"github.com/getsentry/sentry-go"
	"github.com/rs/zerolog/log"
)

// ErrBackendUnavailable is returned on the save path when the health
// probe reports the store down. The save is not attempted: retrying
// against a known-down dependency only burns the retry budget.
var ErrBackendUnavailable = errors.New("backend unavailable")

// VisitAPI is the slice of the API client the relay depends on.
type VisitAPI interface {
	SaveVisit(ctx context.Context, metrics *client.Metrics) (*client.Visit, error)
	GetHistory(ctx context.Context, pageURL string, limit, offset int) (*client.HistoryPage, error)
	GetLatest(ctx context.Context, pageURL string) (*client.Visit, error)
	CheckHealth(ctx context.Context) bool
}

// Notifier receives an alert when a save is dropped, either fail-fast
// or after exhausting its retry budget.
type Notifier interface {
	NotifySaveFailed(ctx context.Context, pageURL string, cause error)
}

// Relay wires the store-facing handlers into a router. Extractor
// handlers (get-current-metrics) are registered separately by the
// extractor itself, since its context may not exist for every page.
type Relay struct {
	router   *Router
	api      VisitAPI
	notifier Notifier
}

// Option configures optional relay collaborators.
type Option func(*Relay)

// WithNotifier attaches a save-failure notifier.
func WithNotifier(n Notifier) Option {
	return func(r *Relay) { r.notifier = n }
}

// New creates a relay around the given API client and registers the
// save-metrics and get-history handlers.
func New(api VisitAPI, opts ...Option) *Relay {
	r := &Relay{
		router: NewRouter(),
		api:    api,
	}
	for _, opt := range opts {
		opt(r)
	}

	r.router.Handle(MsgSaveMetrics, r.handleSaveMetrics)
	r.router.Handle(MsgGetHistory, r.handleGetHistory)

	return r
}

// Router exposes the dispatch table so producers (extractor) can
// register their own handlers and consumers (UI) can dispatch.
func (r *Relay) Router() *Router {
	return r.router
}

// Dispatch routes one message through the relay's router.
func (r *Relay) Dispatch(ctx context.Context, msg Message) <-chan Response {
	return r.router.Dispatch(ctx, msg)
}

// handleSaveMetrics gates persistence behind a health probe, then
// delegates to the API client and forwards its outcome verbatim.
func (r *Relay) handleSaveMetrics(ctx context.Context, data json.RawMessage) (any, error) {
	var metrics client.Metrics
	if err := json.Unmarshal(data, &metrics); err != nil {
		return nil, fmt.Errorf("malformed save-metrics payload: %w", err)
	}

	ctx, span := observability.StartSaveSpan(ctx, observability.SaveSpanInfo{
		PageURL:    metrics.URL,
		LinkCount:  metrics.LinkCount,
		WordCount:  metrics.WordCount,
		ImageCount: metrics.ImageCount,
	})
	defer span.End()

	started := time.Now()
	recordSave := func(status string) {
		observability.RecordSave(ctx, observability.SaveMetrics{
			PageURL:  metrics.URL,
			Status:   status,
			Duration: time.Since(started),
		})
	}

	if !r.api.CheckHealth(ctx) {
		log.Warn().Str("url", metrics.URL).Msg("Save dropped, store unhealthy")
		r.notifySaveFailed(ctx, metrics.URL, ErrBackendUnavailable)
		recordSave("dropped")
		return nil, ErrBackendUnavailable
	}

	visit, err := r.api.SaveVisit(ctx, &metrics)
	if err != nil {
		var clientErr *client.Error
		if errors.As(err, &clientErr) && clientErr.Kind != client.KindValidation {
			// A save that survived validation and still failed means
			// the visit is lost; make the drop visible.
			sentry.CaptureException(err)
			r.notifySaveFailed(ctx, metrics.URL, err)
		}
		log.Error().Err(err).Str("url", metrics.URL).Msg("Save failed")
		recordSave("failed")
		return nil, err
	}

	recordSave("saved")

	log.Debug().
		Str("url", visit.URL).
		Str("visit_id", visit.ID).
		Int("link_count", visit.LinkCount).
		Int("word_count", visit.WordCount).
		Int("image_count", visit.ImageCount).
		Msg("Visit saved")

	return visit, nil
}

// handleGetHistory delegates straight to the API client. Reads are
// idempotent and cheap to retry, so there is no health gate here.
func (r *Relay) handleGetHistory(ctx context.Context, data json.RawMessage) (any, error) {
	var req HistoryRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("malformed get-history payload: %w", err)
	}

	page, err := r.api.GetHistory(ctx, req.URL, req.Limit, req.Offset)
	if err != nil {
		log.Error().Err(err).Str("url", req.URL).Msg("History fetch failed")
		return nil, err
	}
	return page, nil
}

func (r *Relay) notifySaveFailed(ctx context.Context, pageURL string, cause error) {
	if r.notifier == nil {
		return
	}
	r.notifier.NotifySaveFailed(ctx, pageURL, cause)
}
