package extractor

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"pricewatch/adapters"
	"pricewatch/internal/price"
	"pricewatch/internal/types"
	"pricewatch/utils"

	"golang.org/x/sync/semaphore"
)

// Loader is a page loader that holds resources until closed
type Loader interface {
	types.PageLoader
	Close()
}

// NewLoader picks the headless browser or the static HTTP client
func NewLoader(config *types.Config, logger types.Logger) Loader {
	// Use headless browser for JavaScript-heavy shops
	if config.UseHeadlessBrowser {
		return utils.NewBrowserClient(config, logger)
	}
	return utils.NewHTTPClient(config, logger)
}

// Extractor is the engine entry point: one URL in, one ExtractionResult out.
// At most MaxConcurrentRequests pages load at once across all callers.
type Extractor struct {
	config   *types.Config
	logger   types.Logger
	loader   types.PageLoader
	registry *adapters.Registry
	pages    *semaphore.Weighted
}

// NewExtractor creates an extractor that loads pages through loader
func NewExtractor(config *types.Config, logger types.Logger, loader types.PageLoader) *Extractor {
	slots := config.MaxConcurrentRequests
	if slots < 1 {
		slots = 1
	}
	return &Extractor{
		config:   config,
		logger:   logger,
		loader:   loader,
		registry: adapters.NewRegistry(logger),
		pages:    semaphore.NewWeighted(int64(slots)),
	}
}

// Registry exposes the adapter registry, e.g. for registering extra shops
func (e *Extractor) Registry() *adapters.Registry {
	return e.registry
}

// Extract loads rawURL and runs the matching site extractor.
// It returns ErrInvalidURL, a load error (ErrNavigationTimeout among them) or
// ErrExtractionEmpty when neither a title nor a price could be found.
func (e *Extractor) Extract(ctx context.Context, rawURL, selectedVariant string) (*types.ExtractionResult, error) {
	startTime := time.Now()

	pageURL, err := ValidateURL(rawURL)
	if err != nil {
		return nil, err
	}

	site := e.registry.Select(pageURL)
	e.logger.Debugf("Extracting %s with %s adapter", pageURL, site.Name())

	doc, err := e.load(ctx, pageURL, site.WaitSelectors())
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", pageURL, err)
	}

	result := site.Extract(doc, selectedVariant)
	if result.Title == "" && result.Price == "" {
		return nil, fmt.Errorf("%w: %s", types.ErrExtractionEmpty, pageURL)
	}

	e.logger.Debugf("Extraction of %s completed in %v", pageURL, time.Since(startTime))
	return result, nil
}

// load holds a page slot while the loader works
func (e *Extractor) load(ctx context.Context, pageURL string, waitFor []string) (types.Document, error) {
	if err := e.pages.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("no free page slot: %w", err)
	}
	defer e.pages.Release(1)
	return e.loader.Load(ctx, pageURL, waitFor)
}

// Preview is an extraction result with the normalized price attached
type Preview struct {
	*types.ExtractionResult
	URL             string  `json:"url"`
	NormalizedPrice float64 `json:"normalized_price"`
}

// Preview runs Extract and normalizes the price for display
func (e *Extractor) Preview(ctx context.Context, rawURL, selectedVariant string) (*Preview, error) {
	result, err := e.Extract(ctx, rawURL, selectedVariant)
	if err != nil {
		return nil, err
	}
	return &Preview{
		ExtractionResult: result,
		URL:              rawURL,
		NormalizedPrice:  price.Normalize(result.Price),
	}, nil
}

// ValidateURL accepts absolute http(s) URLs with a host
func ValidateURL(rawURL string) (string, error) {
	trimmed := strings.TrimSpace(rawURL)
	u, err := url.Parse(trimmed)
	if err != nil {
		return "", fmt.Errorf("%w: %v", types.ErrInvalidURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("%w: %q", types.ErrInvalidURL, rawURL)
	}
	return trimmed, nil
}

// SaveJSON writes v as indented JSON to filename
func SaveJSON(filename string, v interface{}) error {
	jsonData, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results to JSON: %w", err)
	}

	if err := writeToFile(filename, jsonData); err != nil {
		return fmt.Errorf("failed to write results to file: %w", err)
	}
	return nil
}

// writeToFile writes data to a file
func writeToFile(filename string, data []byte) error {
	return os.WriteFile(filename, data, 0644)
}
