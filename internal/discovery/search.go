package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/creatorscout/creatorscout/internal/browser"
	"github.com/creatorscout/creatorscout/internal/scout"
)

const (
	searchURLFormat = "https://www.youtube.com/results?search_query=%s&sp=EgIQAg%%253D%%253D"
	searchAPIPath   = "/youtubei/v1/search"
)

// BrowserSearchClient fetches search pages and continuation batches through
// the shared headless session pool. Continuations are issued as in-page
// fetch calls so they carry the page's own cookies and origin, which the
// platform's API requires.
type BrowserSearchClient struct {
	pool       *browser.Pool
	navTimeout time.Duration
	// affinityKey pins this client's fetches to one warm session so the
	// continuation fetches run in the page established by the search visit.
	affinityKey string
}

// NewBrowserSearchClient builds a client pinned to the given affinity key,
// normally the discovery session id.
func NewBrowserSearchClient(pool *browser.Pool, affinityKey string, navTimeout time.Duration) *BrowserSearchClient {
	return &BrowserSearchClient{
		pool:        pool,
		navTimeout:  navTimeout,
		affinityKey: affinityKey,
	}
}

// FetchSearchDocument renders the channel-scoped search results page and
// returns its markup.
func (c *BrowserSearchClient) FetchSearchDocument(ctx context.Context, keyword string) (string, error) {
	s, err := c.pool.Acquire(ctx, c.affinityKey)
	if err != nil {
		return "", err
	}
	defer c.pool.Release(s)

	target := fmt.Sprintf(searchURLFormat, url.QueryEscape(keyword))
	visit, err := s.Visit(ctx, target, c.navTimeout)
	if err != nil {
		return "", fmt.Errorf("search %q: %w", keyword, err)
	}
	return visit.HTML, nil
}

// FetchContinuation posts the continuation token from inside the search page
// and returns the raw JSON response body.
func (c *BrowserSearchClient) FetchContinuation(ctx context.Context, req scout.ContinuationRequest) (string, error) {
	s, err := c.pool.Acquire(ctx, c.affinityKey)
	if err != nil {
		return "", err
	}
	defer c.pool.Release(s)

	expr, err := continuationFetchExpr(req)
	if err != nil {
		return "", err
	}
	raw, err := s.Evaluate(ctx, expr, c.navTimeout)
	if err != nil {
		return "", fmt.Errorf("continuation fetch: %w", err)
	}
	var body string
	if err := json.Unmarshal([]byte(raw), &body); err != nil {
		return "", fmt.Errorf("continuation response decode: %w", err)
	}
	return body, nil
}

// continuationFetchExpr builds the in-page fetch expression. The request
// context was captured verbatim from the page config, so it is spliced in
// as raw JSON rather than re-encoded.
func continuationFetchExpr(req scout.ContinuationRequest) (string, error) {
	if req.APIKey == "" || req.RequestContext == "" || req.Token == "" {
		return "", fmt.Errorf("continuation request incomplete")
	}
	key, err := json.Marshal(req.APIKey)
	if err != nil {
		return "", err
	}
	token, err := json.Marshal(req.Token)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(`fetch(%q + "?key=" + encodeURIComponent(%s), {
  method: "POST",
  headers: {"Content-Type": "application/json"},
  body: JSON.stringify({context: %s, continuation: %s}),
}).then(r => r.text())`, searchAPIPath, key, req.RequestContext, token), nil
}
