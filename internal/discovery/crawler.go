package discovery

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/creatorscout/creatorscout/internal/extract"
	"github.com/creatorscout/creatorscout/internal/metrics"
	"github.com/creatorscout/creatorscout/internal/scout"
)

// SearchClient issues the platform queries that feed discovery. The
// browser-backed implementation lives in this package; tests supply fakes.
type SearchClient interface {
	// FetchSearchDocument returns the rendered results document for a
	// channel-scoped keyword search.
	FetchSearchDocument(ctx context.Context, keyword string) (string, error)
	// FetchContinuation returns the raw JSON body for the next result page.
	FetchContinuation(ctx context.Context, req scout.ContinuationRequest) (string, error)
}

// Config bounds a discovery run.
type Config struct {
	// MaxContinuations is the hard ceiling on continuation fetches.
	MaxContinuations int
	// FilterMultiplier scales the collection target when inline filters
	// are active, compensating for post-filter rejection.
	FilterMultiplier int
	// BatchSize is the inline enrichment batch size.
	BatchSize int
	// FilterRetries is the per-channel enrichment retry budget when
	// filters are active. Unfiltered runs never enrich inline, so the
	// default applies only under filters.
	FilterRetries int
}

func (c Config) withDefaults() Config {
	if c.MaxContinuations <= 0 {
		c.MaxContinuations = 20
	}
	if c.FilterMultiplier <= 0 {
		c.FilterMultiplier = 5
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 10
	}
	if c.FilterRetries <= 0 {
		c.FilterRetries = 2
	}
	return c
}

// Crawler walks the discovery feed for one keyword, deduplicating results
// and optionally enriching and filtering them inline.
type Crawler struct {
	client   SearchClient
	enricher scout.Enricher
	store    scout.ChannelStore
	registry *Registry
	clock    scout.Clock
	cfg      Config
	logger   *zap.Logger
}

// NewCrawler constructs a Crawler.
func NewCrawler(
	client SearchClient,
	enricher scout.Enricher,
	store scout.ChannelStore,
	registry *Registry,
	clock scout.Clock,
	cfg Config,
	logger *zap.Logger,
) *Crawler {
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()
	return &Crawler{
		client:   client,
		enricher: enricher,
		store:    store,
		registry: registry,
		clock:    clock,
		cfg:      cfg.withDefaults(),
		logger:   logger,
	}
}

// run-scoped accumulation state for one discovery session.
type crawlRun struct {
	sessionID string
	req       scout.DiscoveryRequest
	filtered  bool
	target    int

	seenURLs  map[string]struct{}
	collected []scout.Channel
	pending   []scout.Channel
	accepted  []scout.Channel
	canceled  bool
}

// Run executes one discovery session to a terminal state. Continuation
// pages are fetched strictly in token order; a continuation failure ends
// pagination but keeps everything accumulated so far. A session superseded
// mid-run stops silently without touching shared state again.
func (c *Crawler) Run(ctx context.Context, sessionID string, req scout.DiscoveryRequest) ([]scout.Channel, error) {
	run := &crawlRun{
		sessionID: sessionID,
		req:       req,
		filtered:  req.Filters.Active(),
		target:    req.Limit,
		seenURLs:  make(map[string]struct{}),
	}
	if run.filtered && inflatesTarget(req.Filters) {
		run.target = req.Limit * c.cfg.FilterMultiplier
	}

	doc, err := c.client.FetchSearchDocument(ctx, req.Keyword)
	if err != nil {
		c.failSession(sessionID, fmt.Sprintf("search failed: %v", err))
		return nil, fmt.Errorf("fetch search document: %w", err)
	}
	payload, err := extract.ParseSearchDocument(doc)
	if err != nil {
		c.failSession(sessionID, fmt.Sprintf("search payload: %v", err))
		return nil, err
	}

	c.ingest(ctx, run, payload.Results)
	c.paginate(ctx, run, payload)
	c.drainPending(ctx, run)
	if run.canceled {
		return run.results(), nil
	}

	results := run.results()
	if len(results) > req.Limit {
		results = results[:req.Limit]
	}
	c.persistChannels(ctx, results)
	if c.registry.UpdateIfActive(sessionID, func(s *scout.CrawlSession) {
		s.Status = scout.SessionCompleted
		s.Progress = 100
		s.Channels = results
		now := c.clock.Now()
		s.FinishedAt = &now
	}) {
		metrics.ObserveDiscovery(string(scout.SessionCompleted))
	}
	return results, nil
}

// paginate walks the continuation token stream until the target is met,
// the stream ends, the attempt ceiling is hit, or the caller's post-filter
// limit short-circuits the run.
func (c *Crawler) paginate(ctx context.Context, run *crawlRun, payload scout.SearchPayload) {
	token := payload.Continuation
	for attempts := 0; attempts < c.cfg.MaxContinuations; attempts++ {
		if run.canceled || token == "" || run.done() || len(run.collected) >= run.target {
			return
		}
		if !c.setStatus(run, scout.SessionCollectingMore) {
			return
		}
		body, err := c.client.FetchContinuation(ctx, scout.ContinuationRequest{
			APIKey:         payload.APIKey,
			RequestContext: payload.RequestContext,
			Token:          token,
		})
		if err != nil {
			// Partial result, not a hard failure.
			c.logger.Warn("continuation fetch failed; keeping partial results",
				zap.String("session_id", run.sessionID), zap.Error(err))
			return
		}
		metrics.ObserveContinuationFetch()
		channels, next, err := extract.ParseContinuationResponse(body)
		if err != nil {
			c.logger.Warn("continuation parse failed; keeping partial results",
				zap.String("session_id", run.sessionID), zap.Error(err))
			return
		}
		c.ingest(ctx, run, channels)
		token = next
	}
}

// ingest deduplicates new arrivals by canonical URL and either emits them
// directly (no filters) or queues them for batch enrichment.
func (c *Crawler) ingest(ctx context.Context, run *crawlRun, channels []scout.Channel) {
	for _, ch := range channels {
		if run.done() {
			return
		}
		if ch.CanonicalURL == "" {
			continue
		}
		if _, dup := run.seenURLs[ch.CanonicalURL]; dup {
			continue
		}
		run.seenURLs[ch.CanonicalURL] = struct{}{}
		run.collected = append(run.collected, ch)

		if !run.filtered {
			run.accepted = append(run.accepted, ch)
			c.publishProgress(run)
			continue
		}
		run.pending = append(run.pending, ch)
		if len(run.pending) >= c.cfg.BatchSize {
			c.enrichBatch(ctx, run)
		}
	}
}

// drainPending flushes the remainder of the last filter batch.
func (c *Crawler) drainPending(ctx context.Context, run *crawlRun) {
	if run.filtered && len(run.pending) > 0 && !run.done() {
		c.enrichBatch(ctx, run)
	}
}

// enrichBatch enriches and filter-tests one batch, short-circuiting once
// the post-filter count reaches the caller's limit.
func (c *Crawler) enrichBatch(ctx context.Context, run *crawlRun) {
	batch := run.pending
	run.pending = nil
	if !c.setStatus(run, scout.SessionStreaming) {
		return
	}
	for _, ch := range batch {
		if run.canceled || run.done() {
			return
		}
		enriched, verdict := c.enrichAndEvaluate(ctx, run, ch)
		switch verdict {
		case VerdictPass:
			run.accepted = append(run.accepted, enriched)
			c.publishProgress(run)
		case VerdictUnknown:
			c.logger.Debug("audience count unknown; skipping for filters",
				zap.String("channel", ch.ID))
		case VerdictFail:
		}
	}
}

// enrichAndEvaluate runs inline enrichment with the filter retry budget.
// A channel whose enrichment never yields an audience count is skipped for
// filter purposes, neither a pass nor a fail.
func (c *Crawler) enrichAndEvaluate(ctx context.Context, run *crawlRun, ch scout.Channel) (scout.Channel, Verdict) {
	attempts := 1 + c.cfg.FilterRetries
	for attempt := 0; attempt < attempts; attempt++ {
		facts, err := c.enricher.Enrich(ctx, ch)
		if err != nil {
			c.logger.Debug("inline enrichment failed",
				zap.String("channel", ch.ID), zap.Int("attempt", attempt+1), zap.Error(err))
			continue
		}
		facts.ApplyTo(&ch)
		if ch.Subscribers != nil || !subscriberFilterSet(run.req.Filters) {
			break
		}
	}
	return ch, Evaluate(ch, run.req.Filters)
}

func subscriberFilterSet(f scout.DiscoveryFilters) bool {
	return f.MinSubscribers != nil || f.MaxSubscribers != nil
}

// inflatesTarget reports whether the collection target is scaled by
// FilterMultiplier. Only subscriber and country filters reject enough of
// the stream to need overfetching; category exclusions do not.
func inflatesTarget(f scout.DiscoveryFilters) bool {
	return subscriberFilterSet(f) || f.Country != ""
}

func (run *crawlRun) done() bool {
	return len(run.accepted) >= run.req.Limit
}

func (run *crawlRun) results() []scout.Channel {
	out := make([]scout.Channel, len(run.accepted))
	copy(out, run.accepted)
	return out
}

// setStatus transitions session status; a false return means the session
// was superseded and the run must stop before further shared-state writes.
func (c *Crawler) setStatus(run *crawlRun, status scout.SessionStatus) bool {
	ok := c.registry.UpdateIfActive(run.sessionID, func(s *scout.CrawlSession) {
		if !s.Status.Terminal() {
			s.Status = status
		}
	})
	if !ok {
		run.canceled = true
	}
	return ok
}

// publishProgress pushes the monotonically non-decreasing accumulated list
// and progress percentage into the session.
func (c *Crawler) publishProgress(run *crawlRun) {
	accepted := run.results()
	progress := 0
	if run.req.Limit > 0 {
		progress = len(accepted) * 95 / run.req.Limit
		if progress > 95 {
			progress = 95
		}
	}
	ok := c.registry.UpdateIfActive(run.sessionID, func(s *scout.CrawlSession) {
		if len(accepted) > len(s.Channels) {
			s.Channels = accepted
		}
		if progress > s.Progress {
			s.Progress = progress
		}
	})
	if !ok {
		run.canceled = true
	}
}

func (c *Crawler) failSession(sessionID, message string) {
	if c.registry.UpdateIfActive(sessionID, func(s *scout.CrawlSession) {
		s.Status = scout.SessionFailed
		s.Message = message
		now := c.clock.Now()
		s.FinishedAt = &now
	}) {
		metrics.ObserveDiscovery(string(scout.SessionFailed))
	}
}

func (c *Crawler) persistChannels(ctx context.Context, channels []scout.Channel) {
	if c.store == nil {
		return
	}
	for _, ch := range channels {
		if err := c.store.UpsertChannel(ctx, ch); err != nil {
			c.logger.Warn("channel upsert failed", zap.String("channel", ch.ID), zap.Error(err))
		}
	}
}
