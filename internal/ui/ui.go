// Package ui adapts relay responses into display-ready values: a
// current snapshot of a page and its visit timeline. It never talks to
// the store or the extractor directly; everything flows through the
// message router.
package ui

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Harvey-AU/page-pulse/internal/client"
	"github.com/Harvey-AU/page-pulse/internal/relay"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// ErrNoMetrics is returned when neither a live extraction nor any
// stored history can produce a snapshot for the page.
var ErrNoMetrics = errors.New("no metrics available")

// Dispatcher is the slice of the relay the UI depends on.
type Dispatcher interface {
	Dispatch(ctx context.Context, msg relay.Message) <-chan relay.Response
}

// Snapshot is one display-ready observation of a page. FromHistory
// marks snapshots served from the store because a live extraction was
// not possible.
type Snapshot struct {
	URL         string    `json:"url"`
	LinkCount   int       `json:"link_count"`
	WordCount   int       `json:"word_count"`
	ImageCount  int       `json:"image_count"`
	CapturedAt  time.Time `json:"captured_at"`
	FromHistory bool      `json:"from_history"`
}

// View presents one page's metrics. A failed save is held as state
// until RetrySave is called or a later save succeeds; the view never
// retries on its own.
type View struct {
	dispatcher Dispatcher
	pageURL    string

	mu          sync.Mutex
	saveErr     error
	pendingSave *client.Metrics
}

// NewView creates a view bound to pageURL.
func NewView(dispatcher Dispatcher, pageURL string) *View {
	return &View{
		dispatcher: dispatcher,
		pageURL:    pageURL,
	}
}

// CurrentMetrics returns a live snapshot of the page. When the
// extractor is unreachable it falls back to the newest stored visit
// and marks the snapshot FromHistory.
func (v *View) CurrentMetrics(ctx context.Context) (*Snapshot, error) {
	resp := <-v.dispatcher.Dispatch(ctx, relay.Message{Type: relay.MsgGetCurrentMetrics})
	if resp.Success {
		var metrics client.Metrics
		if err := decodeResponse(resp.Data, &metrics); err != nil {
			return nil, err
		}

		capturedAt := time.Now().UTC()
		if metrics.VisitedAt != nil {
			capturedAt = *metrics.VisitedAt
		}
		return &Snapshot{
			URL:        metrics.URL,
			LinkCount:  metrics.LinkCount,
			WordCount:  metrics.WordCount,
			ImageCount: metrics.ImageCount,
			CapturedAt: capturedAt,
		}, nil
	}

	log.Warn().
		Str("url", v.pageURL).
		Str("error", resp.Error).
		Msg("Live extraction unavailable, falling back to history")

	page, err := v.history(ctx, 1, 0)
	if err != nil {
		return nil, err
	}
	if len(page.Visits) == 0 {
		return nil, ErrNoMetrics
	}

	visit := page.Visits[0]
	return &Snapshot{
		URL:         visit.URL,
		LinkCount:   visit.LinkCount,
		WordCount:   visit.WordCount,
		ImageCount:  visit.ImageCount,
		CapturedAt:  visit.VisitedAt,
		FromHistory: true,
	}, nil
}

// Timeline returns one page of the visit history, newest first.
func (v *View) Timeline(ctx context.Context, limit, offset int) (*client.HistoryPage, error) {
	return v.history(ctx, limit, offset)
}

// Refresh fetches the current snapshot and the first page of the
// timeline concurrently.
func (v *View) Refresh(ctx context.Context, timelineLimit int) (*Snapshot, *client.HistoryPage, error) {
	var (
		snapshot *Snapshot
		timeline *client.HistoryPage
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s, err := v.CurrentMetrics(ctx)
		if err != nil {
			return err
		}
		snapshot = s
		return nil
	})
	g.Go(func() error {
		p, err := v.Timeline(ctx, timelineLimit, 0)
		if err != nil {
			return err
		}
		timeline = p
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return snapshot, timeline, nil
}

// SaveMetrics pushes one observation through the save path. On
// failure the error and the unsaved metrics are retained so the
// caller can surface them and offer an explicit retry.
func (v *View) SaveMetrics(ctx context.Context, metrics *client.Metrics) error {
	payload, err := json.Marshal(metrics)
	if err != nil {
		return fmt.Errorf("failed to encode metrics: %w", err)
	}

	resp := <-v.dispatcher.Dispatch(ctx, relay.Message{
		Type: relay.MsgSaveMetrics,
		Data: payload,
	})

	v.mu.Lock()
	defer v.mu.Unlock()

	if !resp.Success {
		v.saveErr = errors.New(resp.Error)
		v.pendingSave = metrics
		return v.saveErr
	}

	v.saveErr = nil
	v.pendingSave = nil
	return nil
}

// SaveError returns the error from the last failed save, or nil. It
// stays set until RetrySave is called or a later save succeeds.
func (v *View) SaveError() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.saveErr
}

// RetrySave re-attempts the last failed save. It is a no-op when no
// save is pending.
func (v *View) RetrySave(ctx context.Context) error {
	v.mu.Lock()
	pending := v.pendingSave
	v.mu.Unlock()

	if pending == nil {
		return nil
	}
	return v.SaveMetrics(ctx, pending)
}

func (v *View) history(ctx context.Context, limit, offset int) (*client.HistoryPage, error) {
	payload, err := json.Marshal(relay.HistoryRequest{
		URL:    v.pageURL,
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode history request: %w", err)
	}

	resp := <-v.dispatcher.Dispatch(ctx, relay.Message{
		Type: relay.MsgGetHistory,
		Data: payload,
	})
	if !resp.Success {
		return nil, fmt.Errorf("history unavailable for %s: %s", v.pageURL, resp.Error)
	}

	var page client.HistoryPage
	if err := decodeResponse(resp.Data, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// decodeResponse converts a response payload into target. Handlers
// return typed values in-process, so a JSON round trip keeps this
// agnostic to the concrete type a handler chose.
func decodeResponse(data any, target any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode response payload: %w", err)
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("failed to decode response payload: %w", err)
	}
	return nil
}
