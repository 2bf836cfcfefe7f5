// Package client provides a resilient HTTP client for the page-pulse
// visit store. Every operation validates its input before touching
// the network, bounds each attempt with a deadline, and retries
// transient failures with exponential backoff. Calls never panic and
// never return anything other than a *client.Error on failure.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	// MinHistoryLimit and MaxHistoryLimit bound the page size the
	// client accepts for history queries.
	MinHistoryLimit = 1
	MaxHistoryLimit = 1000
)

// Config holds the client's connection and retry settings. It is
// built once at startup and passed in explicitly; the client reads no
// ambient state.
type Config struct {
	BaseURL       string        // Store base URL, without trailing slash
	DataTimeout   time.Duration // Per-attempt deadline for data operations
	HealthTimeout time.Duration // Deadline for the health probe
	MaxAttempts   int           // Attempt budget for retryable failures
	BaseDelay     time.Duration // Backoff base: delay = BaseDelay * 2^attempt
}

// DefaultConfig returns the standard client settings for the given
// store base URL.
func DefaultConfig(baseURL string) *Config {
	return &Config{
		BaseURL:       strings.TrimSuffix(baseURL, "/"),
		DataTimeout:   10 * time.Second,
		HealthTimeout: 3 * time.Second,
		MaxAttempts:   3,
		BaseDelay:     500 * time.Millisecond,
	}
}

// Client talks to the visit store.
type Client struct {
	config     *Config
	httpClient *http.Client
}

// New creates a client from the given configuration. Nil or partial
// configs are filled with defaults.
func New(config *Config) *Client {
	if config == nil {
		config = DefaultConfig("http://localhost:8080")
	}
	if config.DataTimeout <= 0 {
		config.DataTimeout = 10 * time.Second
	}
	if config.HealthTimeout <= 0 {
		config.HealthTimeout = 3 * time.Second
	}
	if config.MaxAttempts < 1 {
		config.MaxAttempts = 3
	}
	if config.BaseDelay <= 0 {
		config.BaseDelay = 500 * time.Millisecond
	}
	config.BaseURL = strings.TrimSuffix(config.BaseURL, "/")

	return &Client{
		config: config,
		// Per-attempt deadlines come from request contexts, so the
		// shared client carries no global timeout.
		httpClient: &http.Client{},
	}
}

// SaveVisit persists one page observation and returns the stored
// visit with its assigned id and created_at.
func (c *Client) SaveVisit(ctx context.Context, metrics *Metrics) (*Visit, error) {
	if metrics == nil || metrics.URL == "" {
		return nil, validationError("url must not be empty")
	}
	if metrics.LinkCount < 0 || metrics.WordCount < 0 || metrics.ImageCount < 0 {
		return nil, validationError("counts must not be negative")
	}

	body, err := json.Marshal(metrics)
	if err != nil {
		return nil, validationError("failed to encode metrics: %v", err)
	}

	data, apiErr := c.doWithRetry(ctx, http.MethodPost, c.config.BaseURL+"/api/visits", body)
	if apiErr != nil {
		return nil, apiErr
	}

	var visit Visit
	if err := json.Unmarshal(data, &visit); err != nil {
		return nil, &Error{Kind: KindAPI, Message: fmt.Sprintf("malformed visit in response: %v", err)}
	}
	return &visit, nil
}

// GetHistory returns one page of the visit history for a URL, most
// recent first.
func (c *Client) GetHistory(ctx context.Context, pageURL string, limit, offset int) (*HistoryPage, error) {
	if pageURL == "" {
		return nil, validationError("url must not be empty")
	}
	if limit < MinHistoryLimit || limit > MaxHistoryLimit {
		return nil, validationError("limit must be between %d and %d, got %d", MinHistoryLimit, MaxHistoryLimit, limit)
	}
	if offset < 0 {
		return nil, validationError("offset must not be negative")
	}

	endpoint := fmt.Sprintf("%s/api/visits/url/%s?limit=%d&offset=%d",
		c.config.BaseURL, url.PathEscape(pageURL), limit, offset)

	data, apiErr := c.doWithRetry(ctx, http.MethodGet, endpoint, nil)
	if apiErr != nil {
		return nil, apiErr
	}
	return decodeHistoryPage(data)
}

// GetLatest returns the most recent visit for a URL. A store 404
// means the URL has never been visited; it is reported as
// (nil, nil), not as an error.
func (c *Client) GetLatest(ctx context.Context, pageURL string) (*Visit, error) {
	if pageURL == "" {
		return nil, validationError("url must not be empty")
	}

	endpoint := fmt.Sprintf("%s/api/visits/url/%s/latest", c.config.BaseURL, url.PathEscape(pageURL))

	data, apiErr := c.doWithRetry(ctx, http.MethodGet, endpoint, nil)
	if apiErr != nil {
		if apiErr.Kind == KindAPI && apiErr.StatusCode == http.StatusNotFound {
			return nil, nil
		}
		return nil, apiErr
	}

	var visit Visit
	if err := json.Unmarshal(data, &visit); err != nil {
		return nil, &Error{Kind: KindAPI, Message: fmt.Sprintf("malformed visit in response: %v", err)}
	}
	return &visit, nil
}

// ListVisits returns one page of visits across all URLs, most recent
// first.
func (c *Client) ListVisits(ctx context.Context, limit, offset int) (*HistoryPage, error) {
	if limit < MinHistoryLimit || limit > MaxHistoryLimit {
		return nil, validationError("limit must be between %d and %d, got %d", MinHistoryLimit, MaxHistoryLimit, limit)
	}
	if offset < 0 {
		return nil, validationError("offset must not be negative")
	}

	endpoint := fmt.Sprintf("%s/api/visits?limit=%d&offset=%d", c.config.BaseURL, limit, offset)

	data, apiErr := c.doWithRetry(ctx, http.MethodGet, endpoint, nil)
	if apiErr != nil {
		return nil, apiErr
	}
	return decodeHistoryPage(data)
}

// CheckHealth probes the store's /health endpoint. It is a single
// short-deadline attempt: a failed probe is information in itself, so
// it never retries and never returns an error.
func (c *Client) CheckHealth(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, c.config.HealthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+"/health", nil)
	if err != nil {
		return false
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Debug().Err(err).Msg("Health probe failed")
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// doWithRetry executes a request with the configured attempt budget.
// Attempts are strictly sequential; the backoff sleep respects
// caller cancellation. Non-retryable failures surface immediately.
func (c *Client) doWithRetry(ctx context.Context, method, endpoint string, body []byte) (json.RawMessage, *Error) {
	var lastErr *Error
	delay := c.config.BaseDelay

	for attempt := 1; attempt <= c.config.MaxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return nil, &Error{Kind: KindTimeout, Message: fmt.Sprintf("cancelled while waiting to retry: %v", ctx.Err())}
			case <-time.After(delay):
			}
			delay *= 2
		}

		data, err := c.do(ctx, method, endpoint, body)
		if err == nil {
			if attempt > 1 {
				log.Info().
					Str("method", method).
					Str("endpoint", endpoint).
					Int("attempts", attempt).
					Msg("Request succeeded after retries")
			}
			return data, nil
		}

		lastErr = err
		if !err.Retryable() {
			return nil, err
		}

		log.Warn().
			Str("method", method).
			Str("endpoint", endpoint).
			Str("kind", string(err.Kind)).
			Int("attempt", attempt).
			Int("max_attempts", c.config.MaxAttempts).
			Dur("retry_in", delay).
			Msg("Request failed, retrying")
	}

	return nil, lastErr
}

// do performs a single attempt: one request, bounded by the data
// deadline, with the response envelope unwrapped.
func (c *Client) do(ctx context.Context, method, endpoint string, body []byte) (json.RawMessage, *Error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.DataTimeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, &Error{Kind: KindNetwork, Message: fmt.Sprintf("failed to create request: %v", err)}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classifyTransportError(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &Error{
			Kind:       KindAPI,
			StatusCode: resp.StatusCode,
			Message:    errorMessage(respBody, resp.Status),
		}
	}

	var envelope struct {
		Success bool            `json:"success"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return nil, &Error{Kind: KindAPI, StatusCode: resp.StatusCode, Message: fmt.Sprintf("malformed response body: %v", err)}
	}
	if !envelope.Success {
		return nil, &Error{Kind: KindAPI, StatusCode: resp.StatusCode, Message: envelope.Message}
	}

	return envelope.Data, nil
}

func decodeHistoryPage(data json.RawMessage) (*HistoryPage, error) {
	var page HistoryPage
	if err := json.Unmarshal(data, &page); err != nil {
		return nil, &Error{Kind: KindAPI, Message: fmt.Sprintf("malformed history in response: %v", err)}
	}
	if page.Visits == nil {
		page.Visits = []Visit{}
	}
	return &page, nil
}
