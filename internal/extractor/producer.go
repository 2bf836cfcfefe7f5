package extractor

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Harvey-AU/page-pulse/internal/relay"
	"github.com/rs/zerolog/log"
)

// Producer binds an extractor to one page. It pushes an observation
// through the relay after each page load and answers
// get-current-metrics requests with a fresh extraction.
type Producer struct {
	extractor *Extractor
	router    *relay.Router
	pageURL   string
}

// NewProducer creates a producer for pageURL and registers its
// get-current-metrics handler on the router. Each request recomputes
// the snapshot from a live fetch; stale numbers are worse than slow
// ones here.
func NewProducer(ex *Extractor, router *relay.Router, pageURL string) *Producer {
	p := &Producer{
		extractor: ex,
		router:    router,
		pageURL:   pageURL,
	}

	router.Handle(relay.MsgGetCurrentMetrics, p.handleGetCurrentMetrics)

	return p
}

// Observe runs one observation cycle: wait out the settle delay so
// late-loading content is counted, extract, then dispatch one
// save-metrics message. The dispatch is fire-and-forget; the outcome
// is logged but never blocks the caller.
func (p *Producer) Observe(ctx context.Context) error {
	if delay := p.extractor.config.SettleDelay; delay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	metrics, err := p.extractor.Extract(ctx, p.pageURL)
	if err != nil {
		return fmt.Errorf("failed to observe %s: %w", p.pageURL, err)
	}

	payload, err := json.Marshal(metrics)
	if err != nil {
		return fmt.Errorf("failed to encode metrics for %s: %w", p.pageURL, err)
	}

	ch := p.router.Dispatch(ctx, relay.Message{
		Type: relay.MsgSaveMetrics,
		Data: payload,
	})

	go func() {
		resp, ok := <-ch
		if !ok {
			return
		}
		if !resp.Success {
			log.Warn().
				Str("url", p.pageURL).
				Str("error", resp.Error).
				Msg("Observation not saved")
			return
		}
		log.Debug().Str("url", p.pageURL).Msg("Observation saved")
	}()

	return nil
}

// handleGetCurrentMetrics answers with a fresh snapshot of the bound
// page.
func (p *Producer) handleGetCurrentMetrics(ctx context.Context, _ json.RawMessage) (any, error) {
	return p.extractor.Extract(ctx, p.pageURL)
}
