package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"github.com/creatorscout/creatorscout/internal/scout"
)

// Session is an exclusive handle to one headless browser tab. At most one
// logical caller holds a session at a time; all navigation within a held
// session is strictly sequential.
type Session struct {
	index       int
	inUse       bool
	lastUsedAt  time.Time
	affinityKey string

	ctx        context.Context
	cancel     context.CancelFunc
	navTimeout time.Duration

	// closeFn overrides teardown in tests.
	closeFn func() error
}

type chromedpLauncher struct {
	allocator  context.Context
	navTimeout time.Duration
}

func (l *chromedpLauncher) newSession(index int) (*Session, error) {
	taskCtx, cancel := chromedp.NewContext(l.allocator)
	// Force the browser process to start now so creation failures surface
	// to the Acquire caller instead of the first navigation.
	if err := chromedp.Run(taskCtx); err != nil {
		cancel()
		return nil, fmt.Errorf("start browser: %w", err)
	}
	return &Session{
		index:      index,
		lastUsedAt: time.Now(),
		ctx:        taskCtx,
		cancel:     cancel,
		navTimeout: l.navTimeout,
	}, nil
}

// Visit navigates to url and returns the rendered page text and markup.
// The timeout bounds the whole navigation; zero falls back to the pool's
// configured navigation budget.
func (s *Session) Visit(ctx context.Context, url string, timeout time.Duration) (scout.PageVisit, error) {
	if timeout <= 0 {
		timeout = s.navTimeout
	}
	runCtx, cancel := s.boundedCtx(ctx, timeout)
	defer cancel()

	var (
		text     string
		html     string
		finalURL string
	)
	actions := []chromedp.Action{
		network.Enable(),
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(500 * time.Millisecond),
		chromedp.Location(&finalURL),
		chromedp.Evaluate(`document.body ? document.body.innerText : ""`, &text),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	}
	if err := chromedp.Run(runCtx, actions...); err != nil {
		return scout.PageVisit{}, fmt.Errorf("visit %s: %w", url, err)
	}
	return scout.PageVisit{URL: finalURL, Text: text, HTML: html}, nil
}

// Evaluate runs a JavaScript expression in the current page and returns the
// JSON-encoded result. Promises are awaited, which lets callers issue
// in-page fetch calls against the platform's APIs.
func (s *Session) Evaluate(ctx context.Context, expr string, timeout time.Duration) (string, error) {
	if timeout <= 0 {
		timeout = s.navTimeout
	}
	runCtx, cancel := s.boundedCtx(ctx, timeout)
	defer cancel()

	var raw json.RawMessage
	action := chromedp.Evaluate(expr, &raw, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
		return p.WithAwaitPromise(true)
	})
	if err := chromedp.Run(runCtx, action); err != nil {
		return "", fmt.Errorf("evaluate: %w", err)
	}
	return string(raw), nil
}

// expandClickTimeout bounds the wait for an expand control; the control is
// absent whenever nothing on the page is collapsed.
const expandClickTimeout = 2 * time.Second

// expandSettle gives the page a beat to re-render after the control fires.
const expandSettle = 300 * time.Millisecond

// VisitExpanded navigates like Visit, then clicks the control matching
// selector and re-reads the page so collapsed content (a truncated
// description behind a "more" control) is included in the returned text.
// When the control is absent or the click fails, the unexpanded read is
// returned without error.
func (s *Session) VisitExpanded(ctx context.Context, url, selector string, timeout time.Duration) (scout.PageVisit, error) {
	visit, err := s.Visit(ctx, url, timeout)
	if err != nil {
		return scout.PageVisit{}, err
	}
	if selector == "" {
		return visit, nil
	}
	if err := s.Click(ctx, selector, expandClickTimeout); err != nil {
		return visit, nil
	}

	if timeout <= 0 {
		timeout = s.navTimeout
	}
	runCtx, cancel := s.boundedCtx(ctx, timeout)
	defer cancel()
	var (
		text     string
		html     string
		finalURL string
	)
	actions := []chromedp.Action{
		chromedp.Sleep(expandSettle),
		chromedp.Location(&finalURL),
		chromedp.Evaluate(`document.body ? document.body.innerText : ""`, &text),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	}
	if err := chromedp.Run(runCtx, actions...); err != nil {
		// The pre-expand read is still valid.
		return visit, nil
	}
	return scout.PageVisit{URL: finalURL, Text: text, HTML: html}, nil
}

// Click dispatches a click on the first node matching the selector, if one
// exists.
func (s *Session) Click(ctx context.Context, selector string, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = s.navTimeout
	}
	runCtx, cancel := s.boundedCtx(ctx, timeout)
	defer cancel()
	if err := chromedp.Run(runCtx, chromedp.Click(selector, chromedp.ByQuery, chromedp.NodeVisible)); err != nil {
		return fmt.Errorf("click %s: %w", selector, err)
	}
	return nil
}

// boundedCtx layers the caller context and the navigation budget onto the
// session's own browser context.
func (s *Session) boundedCtx(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	runCtx, cancelTimeout := context.WithTimeout(s.ctx, timeout)
	if ctx == nil {
		return runCtx, cancelTimeout
	}
	stop := context.AfterFunc(ctx, cancelTimeout)
	return runCtx, func() {
		stop()
		cancelTimeout()
	}
}

func (s *Session) close() error {
	if s.closeFn != nil {
		return s.closeFn()
	}
	if s.cancel != nil {
		s.cancel()
	}
	return nil
}
