package utils

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"

	"pricewatch/internal/types"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

// styleAnnotationScript records the computed style of short, digit-bearing
// elements as data-pw-* attributes so the HTML snapshot keeps rendering hints.
// It is a fixed routine; nothing is assembled at runtime.
const styleAnnotationScript = `(() => {
  let n = 0;
  for (const el of document.body.querySelectorAll('*')) {
    if (el.children.length > 3) continue;
    const text = (el.innerText || '').trim();
    if (!text || text.length > 40 || !/\d/.test(text)) continue;
    const cs = window.getComputedStyle(el);
    el.setAttribute('data-pw-fs', String(parseFloat(cs.fontSize) || 0));
    el.setAttribute('data-pw-fw', String(cs.fontWeight));
    let td = 'none';
    for (let cur = el, i = 0; cur && cur !== document.body && i < 4; cur = cur.parentElement, i++) {
      if ((window.getComputedStyle(cur).textDecorationLine || '').includes('line-through')) {
        td = 'line-through';
        break;
      }
    }
    el.setAttribute('data-pw-td', td);
    n++;
  }
  return n;
})()`

// BrowserClient provides headless browser page acquisition.
// One browser process is shared; every check gets its own tab.
type BrowserClient struct {
	config *types.Config
	logger types.Logger

	mu            sync.Mutex
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	active        int
}

var _ types.PageLoader = (*BrowserClient)(nil)

// NewBrowserClient creates a new browser client
func NewBrowserClient(config *types.Config, logger types.Logger) *BrowserClient {
	// Suppress chromedp debug logging
	log.SetOutput(io.Discard)

	return &BrowserClient{
		config: config,
		logger: logger,
	}
}

// Session is a browser tab scoped to a single check
type Session struct {
	client *BrowserClient
	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
}

// Acquire opens a new tab. The caller must Release it on every path.
func (b *BrowserClient) Acquire(ctx context.Context) (*Session, error) {
	browserCtx, err := b.browser()
	if err != nil {
		return nil, err
	}

	tabCtx, tabCancel := chromedp.NewContext(browserCtx)
	stop := context.AfterFunc(ctx, tabCancel)

	// create the target now so later timeouts never own the tab
	if err := chromedp.Run(tabCtx); err != nil {
		stop()
		tabCancel()
		return nil, fmt.Errorf("failed to open browser tab: %w", err)
	}

	return b.newSession(tabCtx, func() {
		stop()
		tabCancel()
	}), nil
}

// newSession counts the tab as active until Release
func (b *BrowserClient) newSession(ctx context.Context, cancel context.CancelFunc) *Session {
	b.mu.Lock()
	b.active++
	b.mu.Unlock()
	return &Session{client: b, ctx: ctx, cancel: cancel}
}

// Release closes the tab. Calling it more than once is safe.
func (s *Session) Release() {
	s.once.Do(func() {
		s.cancel()
		s.client.mu.Lock()
		s.client.active--
		s.client.mu.Unlock()
	})
}

// Snapshot navigates the tab to pageURL and returns the annotated HTML
func (s *Session) Snapshot(pageURL string, waitFor []string) (string, error) {
	cfg := s.client.config

	headers := make(network.Headers, len(cfg.Headers))
	for k, v := range cfg.Headers {
		headers[k] = v
	}

	blocked := cfg.BlockedURLs
	if blocked == nil {
		blocked = []string{}
	}

	navCtx, navCancel := context.WithTimeout(s.ctx, cfg.Timeout)
	defer navCancel()

	err := chromedp.Run(navCtx,
		network.Enable(),
		network.SetExtraHTTPHeaders(headers),
		network.SetBlockedURLS(blocked),
		chromedp.Navigate(pageURL),
	)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(navCtx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: %s", types.ErrNavigationTimeout, pageURL)
		}
		return "", fmt.Errorf("failed to navigate: %w", err)
	}

	if len(waitFor) > 0 {
		stageCtx, stageCancel := context.WithTimeout(s.ctx, cfg.StageTimeout)
		err := chromedp.Run(stageCtx, chromedp.WaitReady(strings.Join(waitFor, ", "), chromedp.ByQuery))
		stageCancel()
		if err != nil {
			s.client.logger.Debugf("Stage wait for %v on %s gave up: %v", waitFor, pageURL, err)
		}
	}

	snapCtx, snapCancel := context.WithTimeout(s.ctx, cfg.StageTimeout)
	defer snapCancel()

	var annotated int
	var html string
	err = chromedp.Run(snapCtx,
		chromedp.Evaluate(styleAnnotationScript, &annotated),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return "", fmt.Errorf("failed to get page content: %w", err)
	}

	s.client.logger.Debugf("Successfully retrieved page content from %s (%d bytes, %d styled nodes)", pageURL, len(html), annotated)
	return html, nil
}

// Load acquires a tab, snapshots the page and releases the tab
func (b *BrowserClient) Load(ctx context.Context, pageURL string, waitFor []string) (types.Document, error) {
	session, err := b.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer session.Release()

	html, err := session.Snapshot(pageURL, waitFor)
	if err != nil {
		return nil, err
	}

	return NewPage(pageURL, html)
}

// ActiveSessions returns the number of tabs currently held
func (b *BrowserClient) ActiveSessions() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.active
}

// Close shuts the browser down
func (b *BrowserClient) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.browserCancel != nil {
		b.browserCancel()
		b.browserCancel = nil
	}
	if b.allocCancel != nil {
		b.allocCancel()
		b.allocCancel = nil
	}
	b.browserCtx = nil
}

// browser lazily starts the shared browser process
func (b *BrowserClient) browser() (context.Context, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.browserCtx != nil {
		return b.browserCtx, nil
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.UserAgent(b.config.UserAgent),
		chromedp.Flag("blink-settings", "imagesEnabled=false"),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	b.allocCancel = allocCancel
	b.browserCtx = browserCtx
	b.browserCancel = browserCancel
	b.logger.Info("Headless browser started")
	return browserCtx, nil
}
