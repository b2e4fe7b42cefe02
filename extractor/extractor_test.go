package extractor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pricewatch/internal/types"
	"pricewatch/utils"
)

type fakeLoader struct {
	pages   map[string]string
	err     error
	calls   []string
	waitFor [][]string
}

func (f *fakeLoader) Load(ctx context.Context, url string, waitFor []string) (types.Document, error) {
	f.calls = append(f.calls, url)
	f.waitFor = append(f.waitFor, waitFor)
	if f.err != nil {
		return nil, f.err
	}
	html, ok := f.pages[url]
	if !ok {
		return nil, types.ErrNotFound
	}
	return utils.NewPage(url, html)
}

// blockingLoader holds every Load until release is closed
type blockingLoader struct {
	release chan struct{}
	active  atomic.Int32
	peak    atomic.Int32
	calls   atomic.Int32
}

func (b *blockingLoader) Load(ctx context.Context, url string, waitFor []string) (types.Document, error) {
	b.calls.Add(1)
	n := b.active.Add(1)
	defer b.active.Add(-1)
	for {
		p := b.peak.Load()
		if n <= p || b.peak.CompareAndSwap(p, n) {
			break
		}
	}
	select {
	case <-b.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return utils.NewPage(url, shopPage)
}

const shopPage = `<html><head>
<script type="application/ld+json">{"@type":"Product","name":"Wanderrucksack 30L",
 "offers":{"price":"79.90","availability":"https://schema.org/InStock"}}</script>
</head><body><h1>Wanderrucksack 30L</h1></body></html>`

func TestNewExtractor(t *testing.T) {
	config := types.DefaultConfig()
	logger := logrus.New()
	loader := &fakeLoader{}

	extractor := NewExtractor(config, logger, loader)

	assert.NotNil(t, extractor)
	assert.Equal(t, config, extractor.config)
	assert.Equal(t, logger, extractor.logger)
	assert.NotNil(t, extractor.registry)
	assert.Equal(t, extractor.registry, extractor.Registry())
}

func TestExtract_Success(t *testing.T) {
	url := "https://outdoor.example/p/rucksack"
	loader := &fakeLoader{pages: map[string]string{url: shopPage}}
	extractor := NewExtractor(types.DefaultConfig(), logrus.New(), loader)

	result, err := extractor.Extract(context.Background(), "  "+url+" ", "")

	require.NoError(t, err)
	assert.Equal(t, "universal", result.Adapter)
	assert.Equal(t, "Wanderrucksack 30L", result.Title)
	assert.Equal(t, "79.90", result.Price)
	assert.True(t, result.InStock)

	require.Len(t, loader.calls, 1)
	assert.Equal(t, url, loader.calls[0])
	assert.NotEmpty(t, loader.waitFor[0], "adapter wait selectors are passed to the loader")
}

func TestExtract_InvalidURL(t *testing.T) {
	loader := &fakeLoader{}
	extractor := NewExtractor(types.DefaultConfig(), logrus.New(), loader)

	for _, raw := range []string{"", "amazon.de/dp/B0", "ftp://shop.example/p", "https://", "http://%zz"} {
		_, err := extractor.Extract(context.Background(), raw, "")
		assert.ErrorIs(t, err, types.ErrInvalidURL, raw)
	}
	assert.Empty(t, loader.calls)
}

func TestExtract_NavigationTimeout(t *testing.T) {
	loader := &fakeLoader{err: types.ErrNavigationTimeout}
	extractor := NewExtractor(types.DefaultConfig(), logrus.New(), loader)

	result, err := extractor.Extract(context.Background(), "https://www.zalando.de/x.html", "")

	assert.Nil(t, result)
	assert.True(t, errors.Is(err, types.ErrNavigationTimeout))
}

func TestExtract_Empty(t *testing.T) {
	url := "https://blank.example/"
	loader := &fakeLoader{pages: map[string]string{url: `<html><body><p>Willkommen</p></body></html>`}}
	extractor := NewExtractor(types.DefaultConfig(), logrus.New(), loader)

	result, err := extractor.Extract(context.Background(), url, "")

	assert.Nil(t, result)
	assert.ErrorIs(t, err, types.ErrExtractionEmpty)
}

func TestPreview(t *testing.T) {
	url := "https://outdoor.example/p/rucksack"
	loader := &fakeLoader{pages: map[string]string{url: shopPage}}
	extractor := NewExtractor(types.DefaultConfig(), logrus.New(), loader)

	preview, err := extractor.Preview(context.Background(), url, "")

	require.NoError(t, err)
	assert.Equal(t, url, preview.URL)
	assert.InDelta(t, 79.90, preview.NormalizedPrice, 0.001)
	assert.Equal(t, "Wanderrucksack 30L", preview.Title)
}

func TestNewLoader(t *testing.T) {
	config := types.DefaultConfig()
	logger := logrus.New()

	config.UseHeadlessBrowser = false
	static := NewLoader(config, logger)
	_, ok := static.(*utils.HTTPClient)
	assert.True(t, ok)
	static.Close()

	config.UseHeadlessBrowser = true
	browser := NewLoader(config, logger)
	_, ok = browser.(*utils.BrowserClient)
	assert.True(t, ok)
	browser.Close()
}

func TestSaveJSON(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "result.json")

	err := SaveJSON(filename, map[string]string{"title": "Rucksack"})
	require.NoError(t, err)

	data, err := os.ReadFile(filename)
	require.NoError(t, err)
	assert.JSONEq(t, `{"title": "Rucksack"}`, string(data))
}

func TestExtract_LimitsConcurrentLoads(t *testing.T) {
	config := types.DefaultConfig()
	config.MaxConcurrentRequests = 2
	loader := &blockingLoader{release: make(chan struct{})}
	extractor := NewExtractor(config, logrus.New(), loader)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := extractor.Preview(context.Background(), "https://outdoor.example/p/rucksack", "")
			assert.NoError(t, err)
		}()
	}

	assert.Eventually(t, func() bool { return loader.active.Load() == 2 }, time.Second, 5*time.Millisecond)
	assert.Never(t, func() bool { return loader.calls.Load() > 2 }, 50*time.Millisecond, 5*time.Millisecond)

	close(loader.release)
	wg.Wait()

	assert.Equal(t, int32(5), loader.calls.Load())
	assert.Equal(t, int32(2), loader.peak.Load())
}

func TestExtract_GivesUpWaitingForSlot(t *testing.T) {
	config := types.DefaultConfig()
	config.MaxConcurrentRequests = 1
	loader := &blockingLoader{release: make(chan struct{})}
	defer close(loader.release)
	extractor := NewExtractor(config, logrus.New(), loader)

	go extractor.Extract(context.Background(), "https://outdoor.example/p/rucksack", "")
	require.Eventually(t, func() bool { return loader.active.Load() == 1 }, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := extractor.Extract(ctx, "https://outdoor.example/p/zelt", "")

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, int32(1), loader.calls.Load())
}
