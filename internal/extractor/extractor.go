// Package extractor fetches a page and reduces it to the three counts
// the visit store records: links, words, and images.
package extractor

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Harvey-AU/page-pulse/internal/client"
	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
	"github.com/rs/zerolog/log"
)

// Config holds extractor configuration
type Config struct {
	UserAgent   string        // User-Agent header sent with every fetch
	Timeout     time.Duration // Timeout for a single page fetch
	SettleDelay time.Duration // Wait after page load before extracting
}

// DefaultConfig returns sensible defaults for page extraction
func DefaultConfig() *Config {
	return &Config{
		UserAgent:   "Mozilla/5.0 (compatible; PagePulse/1.0; +https://pagepulse.harvey.com.au)",
		Timeout:     30 * time.Second,
		SettleDelay: time.Second,
	}
}

// Extractor fetches pages and counts their links, words and images.
type Extractor struct {
	config *Config
	colly  *colly.Collector
}

// New creates an Extractor. If config is nil, default configuration
// is used.
func New(config *Config) *Extractor {
	if config == nil {
		config = DefaultConfig()
	}

	c := colly.NewCollector(
		colly.UserAgent(config.UserAgent),
		colly.MaxDepth(1),
		colly.AllowURLRevisit(),
	)

	c.SetClient(&http.Client{
		Timeout: config.Timeout,
		Transport: &http.Transport{
			MaxIdleConnsPerHost: 5,
			IdleConnTimeout:     120 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
			ForceAttemptHTTP2:   true,
		},
	})

	// Browser-like headers to avoid blocking
	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
		r.Headers.Set("Accept-Language", "en-US,en;q=0.9")

		log.Debug().
			Str("url", r.URL.String()).
			Msg("Extractor fetching page")
	})

	return &Extractor{
		config: config,
		colly:  c,
	}
}

// Extract fetches pageURL and returns its metrics, timestamped at the
// moment of extraction. Every call fetches afresh; nothing is cached.
func (e *Extractor) Extract(ctx context.Context, pageURL string) (*client.Metrics, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		metrics  *client.Metrics
		fetchErr error
	)

	// Clone so per-page callbacks never accumulate on the shared collector
	c := e.colly.Clone()

	c.OnHTML("html", func(el *colly.HTMLElement) {
		links, words, images := countMetrics(el.DOM)

		now := time.Now().UTC()
		metrics = &client.Metrics{
			URL:        pageURL,
			LinkCount:  links,
			WordCount:  words,
			ImageCount: images,
			VisitedAt:  &now,
		}
	})

	c.OnError(func(r *colly.Response, err error) {
		fetchErr = fmt.Errorf("failed to fetch %s: %w", pageURL, err)
	})

	if err := c.Visit(pageURL); err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", pageURL, err)
	}
	c.Wait()

	if fetchErr != nil {
		return nil, fetchErr
	}
	if metrics == nil {
		return nil, fmt.Errorf("no HTML document at %s", pageURL)
	}

	log.Debug().
		Str("url", pageURL).
		Int("link_count", metrics.LinkCount).
		Int("word_count", metrics.WordCount).
		Int("image_count", metrics.ImageCount).
		Msg("Page metrics extracted")

	return metrics, nil
}

// countMetrics reduces a document to the three stored counts. Words
// are whitespace-separated runs of rendered text; script, style and
// noscript content is not rendered and never counts.
func countMetrics(doc *goquery.Selection) (links, words, images int) {
	links = doc.Find("a[href]").Length()
	images = doc.Find("img").Length()

	doc.Find("script, style, noscript").Remove()
	words = len(strings.Fields(doc.Text()))

	return links, words, images
}
