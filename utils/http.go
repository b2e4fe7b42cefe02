package utils

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"pricewatch/internal/types"

	"github.com/codeGROOVE-dev/retry"
)

// HTTPClient fetches static HTML with rate limiting and retries.
// It is the page loader used when the headless browser is disabled.
type HTTPClient struct {
	client  *http.Client
	config  *types.Config
	logger  types.Logger
	limiter *time.Ticker
}

var _ types.PageLoader = (*HTTPClient)(nil)

// NewHTTPClient creates a new HTTP client with the given configuration
func NewHTTPClient(config *types.Config, logger types.Logger) *HTTPClient {
	client := &http.Client{
		Timeout: config.Timeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	delay := config.RequestDelay
	if delay <= 0 {
		delay = time.Millisecond
	}

	return &HTTPClient{
		client:  client,
		config:  config,
		logger:  logger,
		limiter: time.NewTicker(delay),
	}
}

// Get performs a GET request with rate limiting and retries
func (h *HTTPClient) Get(ctx context.Context, url string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var body []byte
	attempt := 0

	err := retry.Do(
		func() error {
			attempt++

			// Wait for rate limiter
			select {
			case <-h.limiter.C:
			case <-ctx.Done():
				return retry.Unrecoverable(ctx.Err())
			}

			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
			if err != nil {
				return retry.Unrecoverable(fmt.Errorf("failed to create request: %w", err))
			}

			req.Header.Set("User-Agent", h.config.UserAgent)
			req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
			req.Header.Set("Upgrade-Insecure-Requests", "1")
			for k, v := range h.config.Headers {
				req.Header.Set(k, v)
			}

			h.logger.Debugf("Making request to %s (attempt %d/%d)", url, attempt, h.config.MaxRetries+1)

			resp, err := h.client.Do(req)
			if err != nil {
				h.logger.Warnf("Request failed (attempt %d): %v", attempt, err)
				return fmt.Errorf("request failed: %w", err)
			}
			defer func() {
				if closeErr := resp.Body.Close(); closeErr != nil {
					h.logger.Warnf("Failed to close response body: %v", closeErr)
				}
			}()

			if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone {
				return retry.Unrecoverable(fmt.Errorf("unexpected status code: %d", resp.StatusCode))
			}
			if resp.StatusCode != http.StatusOK {
				h.logger.Warnf("Unexpected status code %d (attempt %d)", resp.StatusCode, attempt)
				return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
			}

			data, err := io.ReadAll(resp.Body)
			if err != nil {
				h.logger.Warnf("Failed to read response body (attempt %d): %v", attempt, err)
				return fmt.Errorf("failed to read response body: %w", err)
			}

			body = data
			return nil
		},
		retry.Attempts(uint(h.config.MaxRetries+1)),
		retry.Delay(h.config.RequestDelay),
		retry.MaxDelay(30*time.Second),
		retry.Context(ctx),
	)
	if err != nil {
		return nil, fmt.Errorf("all retry attempts failed: %w", err)
	}

	h.logger.Debugf("Successfully retrieved %d bytes from %s", len(body), url)
	return body, nil
}

// Load fetches url and wraps it as a queryable page.
// Static HTML has nothing to wait for, so waitFor is ignored.
func (h *HTTPClient) Load(ctx context.Context, url string, waitFor []string) (types.Document, error) {
	body, err := h.Get(ctx, url)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("%w: %s", types.ErrNavigationTimeout, url)
		}
		return nil, err
	}
	return NewPage(url, string(body))
}

// Close cleans up resources
func (h *HTTPClient) Close() {
	if h.limiter != nil {
		h.limiter.Stop()
	}
}
