package enrich

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/creatorscout/creatorscout/internal/extract"
)

// Path fragments that mark a page as worth opening for contact details.
var contactIntentKeywords = []string{"contact", "about", "team", "reach", "email"}

// ContactHarvester fetches a creator's website over plain HTTP and scans the
// root plus a few same-host contact pages for emails. No JS rendering is
// needed for these pages, so it stays off the browser pool.
type ContactHarvester struct {
	maxPages  int
	timeout   time.Duration
	userAgent string
	paceMin   time.Duration
	paceMax   time.Duration
	logger    *zap.Logger
}

// NewContactHarvester builds a ContactHarvester from the orchestrator config.
func NewContactHarvester(cfg Config, userAgent string, logger *zap.Logger) *ContactHarvester {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ContactHarvester{
		maxPages:  cfg.MaxContactPages,
		timeout:   cfg.NavTimeout,
		userAgent: userAgent,
		paceMin:   cfg.PaceMin,
		paceMax:   cfg.PaceMax,
		logger:    logger,
	}
}

// Harvest fetches rootURL and up to maxPages same-host contact-intent pages,
// returning the emails found in page order. A root fetch failure is an
// error; individual contact-page failures are logged and skipped.
func (h *ContactHarvester) Harvest(ctx context.Context, rootURL string) ([]string, error) {
	root, err := url.Parse(rootURL)
	if err != nil || root.Hostname() == "" {
		return nil, fmt.Errorf("website url %q: invalid", rootURL)
	}
	bare := strings.TrimPrefix(strings.ToLower(root.Hostname()), "www.")

	c := colly.NewCollector(
		// Both host forms plus the raw host:port so local test servers work.
		colly.AllowedDomains(bare, "www."+bare, strings.ToLower(root.Host)),
		colly.MaxDepth(1),
	)
	if h.userAgent != "" {
		c.UserAgent = h.userAgent
	}
	c.SetRequestTimeout(h.timeout)

	var (
		mu         sync.Mutex
		seen       = make(map[string]struct{})
		emails     []string
		candidates []string
	)
	c.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil {
			r.Abort()
		}
	})
	c.OnResponse(func(r *colly.Response) {
		found := extract.Emails(string(r.Body))
		mu.Lock()
		for _, email := range found {
			if _, dup := seen[email]; dup {
				continue
			}
			seen[email] = struct{}{}
			emails = append(emails, email)
		}
		mu.Unlock()
	})
	c.OnHTML("a[href]", func(e *colly.HTMLElement) {
		link := e.Request.AbsoluteURL(e.Attr("href"))
		if link == "" || !contactIntent(link) {
			return
		}
		mu.Lock()
		if len(candidates) < h.maxPages && !containsString(candidates, link) {
			candidates = append(candidates, link)
		}
		mu.Unlock()
	})

	if err := c.Visit(rootURL); err != nil {
		return nil, fmt.Errorf("website root %s: %w", rootURL, err)
	}

	mu.Lock()
	pages := append([]string(nil), candidates...)
	mu.Unlock()
	for _, page := range pages {
		if ctx.Err() != nil {
			break
		}
		pause(ctx, h.paceMin, h.paceMax)
		if err := c.Visit(page); err != nil {
			h.logger.Debug("contact page fetch failed", zap.String("url", page), zap.Error(err))
		}
	}
	return emails, nil
}

// contactIntent reports whether the URL path looks like a contact surface.
func contactIntent(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	path := strings.ToLower(u.Path)
	for _, kw := range contactIntentKeywords {
		if strings.Contains(path, kw) {
			return true
		}
	}
	return false
}

func containsString(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
