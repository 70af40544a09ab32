package discovery

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/creatorscout/creatorscout/internal/scout"
)

func renderer(id, name, handle string) string {
	return fmt.Sprintf(
		`{"channelRenderer":{"channelId":%q,"title":{"simpleText":%q},"navigationEndpoint":{"browseEndpoint":{"canonicalBaseUrl":%q}}}}`,
		id, name, "/@"+handle)
}

func buildSearchDoc(token string, renderers ...string) string {
	cont := ""
	if token != "" {
		cont = fmt.Sprintf(
			`,{"continuationItemRenderer":{"continuationEndpoint":{"continuationCommand":{"token":%q}}}}`, token)
	}
	return fmt.Sprintf(`<html><script>
ytcfg.set({"INNERTUBE_API_KEY":"TESTKEY","INNERTUBE_CONTEXT":{"client":{"clientName":"WEB"}}});
</script><script>
var ytInitialData = {"contents":{"sectionListRenderer":{"contents":[{"itemSectionRenderer":{"contents":[%s]}}%s]}}};
</script></html>`, strings.Join(renderers, ","), cont)
}

func buildContinuationBody(token string, renderers ...string) string {
	cont := ""
	if token != "" {
		cont = fmt.Sprintf(
			`,{"continuationItemRenderer":{"continuationEndpoint":{"continuationCommand":{"token":%q}}}}`, token)
	}
	return fmt.Sprintf(
		`{"onResponseReceivedCommands":[{"appendContinuationItemsAction":{"continuationItems":[{"itemSectionRenderer":{"contents":[%s]}}%s]}}]}`,
		strings.Join(renderers, ","), cont)
}

type continuationPage struct {
	body string
	err  error
}

type fakeSearchClient struct {
	mu      sync.Mutex
	doc     string
	docErr  error
	pages   map[string]continuationPage
	fetched []string
}

func (f *fakeSearchClient) FetchSearchDocument(_ context.Context, _ string) (string, error) {
	return f.doc, f.docErr
}

func (f *fakeSearchClient) FetchContinuation(_ context.Context, req scout.ContinuationRequest) (string, error) {
	f.mu.Lock()
	f.fetched = append(f.fetched, req.Token)
	f.mu.Unlock()
	page, ok := f.pages[req.Token]
	if !ok {
		return "", fmt.Errorf("unexpected token %q", req.Token)
	}
	return page.body, page.err
}

type fakeEnricher struct {
	mu    sync.Mutex
	calls map[string]int
	fn    func(ch scout.Channel, attempt int) (scout.EnrichmentFacts, error)
}

func (f *fakeEnricher) Enrich(_ context.Context, ch scout.Channel) (scout.EnrichmentFacts, error) {
	f.mu.Lock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[ch.ID]++
	attempt := f.calls[ch.ID]
	f.mu.Unlock()
	return f.fn(ch, attempt)
}

type fakeChannelStore struct {
	mu      sync.Mutex
	upserts []scout.Channel
}

func (f *fakeChannelStore) UpsertChannel(_ context.Context, ch scout.Channel) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserts = append(f.upserts, ch)
	return nil
}

func (f *fakeChannelStore) UpdateChannel(context.Context, string, scout.ChannelUpdate) error {
	return nil
}

func (f *fakeChannelStore) GetChannel(context.Context, string) (scout.Channel, error) {
	return scout.Channel{}, scout.ErrNotFound
}

func newTestCrawler(client SearchClient, enricher scout.Enricher, store scout.ChannelStore, r *Registry, cfg Config) *Crawler {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	return NewCrawler(client, enricher, store, r, clock, cfg, nil)
}

func TestCrawlerRun_CompletesWithUniqueChannels(t *testing.T) {
	t.Parallel()

	client := &fakeSearchClient{
		doc: buildSearchDoc("",
			renderer("UC1", "Dana Cooks", "danacooks"),
			renderer("UC2", "Ben Bakes", "benbakes"),
			renderer("UC1", "Dana Cooks", "danacooks"),
			renderer("UC3", "Stir Fry Lab", "stirfrylab"),
			renderer("UC4", "Extra Channel", "extra"),
		),
	}
	store := &fakeChannelStore{}
	r := newTestRegistry()
	req := scout.DiscoveryRequest{Keyword: "cooking", Limit: 3}
	r.Create("s1", "client-a", req)

	crawler := newTestCrawler(client, nil, store, r, Config{})
	results, err := crawler.Run(context.Background(), "s1", req)
	require.NoError(t, err)
	require.Len(t, results, 3)

	seen := make(map[string]struct{})
	for _, ch := range results {
		_, dup := seen[ch.CanonicalURL]
		require.False(t, dup, "duplicate canonical URL %s", ch.CanonicalURL)
		seen[ch.CanonicalURL] = struct{}{}
	}

	session, err := r.Get("s1")
	require.NoError(t, err)
	require.Equal(t, scout.SessionCompleted, session.Status)
	require.Equal(t, 100, session.Progress)
	require.Len(t, session.Channels, 3)
	require.NotNil(t, session.FinishedAt)
	require.Len(t, store.upserts, 3)
}

func TestCrawlerRun_FollowsContinuations(t *testing.T) {
	t.Parallel()

	client := &fakeSearchClient{
		doc: buildSearchDoc("T1",
			renderer("UC1", "First", "first"),
			renderer("UC2", "Second", "second"),
		),
		pages: map[string]continuationPage{
			"T1": {body: buildContinuationBody("T2",
				renderer("UC3", "Third", "third"),
				renderer("UC2", "Second", "second"),
			)},
			"T2": {body: buildContinuationBody("",
				renderer("UC4", "Fourth", "fourth"),
				renderer("UC5", "Fifth", "fifth"),
			)},
		},
	}
	r := newTestRegistry()
	req := scout.DiscoveryRequest{Keyword: "cooking", Limit: 5}
	r.Create("s1", "client-a", req)

	crawler := newTestCrawler(client, nil, &fakeChannelStore{}, r, Config{})
	results, err := crawler.Run(context.Background(), "s1", req)
	require.NoError(t, err)
	require.Len(t, results, 5)
	require.Equal(t, []string{"T1", "T2"}, client.fetched)
}

func TestCrawlerRun_ContinuationFailureKeepsPartialResults(t *testing.T) {
	t.Parallel()

	client := &fakeSearchClient{
		doc: buildSearchDoc("T1",
			renderer("UC1", "First", "first"),
			renderer("UC2", "Second", "second"),
		),
		pages: map[string]continuationPage{
			"T1": {err: errors.New("bot check")},
		},
	}
	r := newTestRegistry()
	req := scout.DiscoveryRequest{Keyword: "cooking", Limit: 10}
	r.Create("s1", "client-a", req)

	crawler := newTestCrawler(client, nil, &fakeChannelStore{}, r, Config{})
	results, err := crawler.Run(context.Background(), "s1", req)
	require.NoError(t, err)
	require.Len(t, results, 2)

	session, err := r.Get("s1")
	require.NoError(t, err)
	require.Equal(t, scout.SessionCompleted, session.Status)
	require.Len(t, session.Channels, 2)
}

func TestCrawlerRun_InitialPayloadFailureIsFatal(t *testing.T) {
	t.Parallel()

	client := &fakeSearchClient{doc: "<html>bot check page</html>"}
	r := newTestRegistry()
	req := scout.DiscoveryRequest{Keyword: "cooking", Limit: 5}
	r.Create("s1", "client-a", req)

	crawler := newTestCrawler(client, nil, &fakeChannelStore{}, r, Config{})
	_, err := crawler.Run(context.Background(), "s1", req)
	require.ErrorIs(t, err, scout.ErrNoResults)

	session, err := r.Get("s1")
	require.NoError(t, err)
	require.Equal(t, scout.SessionFailed, session.Status)
	require.NotEmpty(t, session.Message)
}

func TestCrawlerRun_FiltersEnrichAndReject(t *testing.T) {
	t.Parallel()

	client := &fakeSearchClient{
		doc: buildSearchDoc("",
			renderer("UC1", "Small", "small"),
			renderer("UC2", "Medium", "medium"),
			renderer("UC3", "Large", "large"),
			renderer("UC4", "Opaque", "opaque"),
		),
	}
	subsByID := map[string]int64{"UC1": 500, "UC2": 50_000, "UC3": 5_000_000}
	enricher := &fakeEnricher{fn: func(ch scout.Channel, _ int) (scout.EnrichmentFacts, error) {
		subs, ok := subsByID[ch.ID]
		if !ok {
			// Enrichment yields no audience count for UC4.
			return scout.EnrichmentFacts{}, nil
		}
		return scout.EnrichmentFacts{Subscribers: &subs}, nil
	}}
	r := newTestRegistry()
	req := scout.DiscoveryRequest{
		Keyword: "cooking",
		Limit:   5,
		Filters: scout.DiscoveryFilters{MinSubscribers: i64(1000), MaxSubscribers: i64(100_000)},
	}
	r.Create("s1", "client-a", req)

	crawler := newTestCrawler(client, enricher, &fakeChannelStore{}, r, Config{FilterRetries: 2})
	results, err := crawler.Run(context.Background(), "s1", req)
	require.NoError(t, err)

	// Only the in-bounds channel passes; the unknown-count channel is
	// skipped rather than failed.
	require.Len(t, results, 1)
	require.Equal(t, "UC2", results[0].ID)
	require.NotNil(t, results[0].Subscribers)
	require.EqualValues(t, 50_000, *results[0].Subscribers)
}

func TestCrawlerRun_FilterRetriesTransientEnrichment(t *testing.T) {
	t.Parallel()

	client := &fakeSearchClient{
		doc: buildSearchDoc("", renderer("UC1", "Flaky", "flaky")),
	}
	subs := int64(5000)
	enricher := &fakeEnricher{fn: func(_ scout.Channel, attempt int) (scout.EnrichmentFacts, error) {
		if attempt == 1 {
			return scout.EnrichmentFacts{}, errors.New("navigation timeout")
		}
		return scout.EnrichmentFacts{Subscribers: &subs}, nil
	}}
	r := newTestRegistry()
	req := scout.DiscoveryRequest{
		Keyword: "cooking",
		Limit:   1,
		Filters: scout.DiscoveryFilters{MinSubscribers: i64(1000)},
	}
	r.Create("s1", "client-a", req)

	crawler := newTestCrawler(client, enricher, &fakeChannelStore{}, r, Config{FilterRetries: 2})
	results, err := crawler.Run(context.Background(), "s1", req)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, 2, enricher.calls["UC1"])
}

func TestCrawlerRun_ExclusionFiltersDoNotInflateTarget(t *testing.T) {
	t.Parallel()

	// A continuation token is available, but with only a category
	// exclusion active the target stays at the caller's limit, so the
	// initial page already satisfies the run.
	client := &fakeSearchClient{
		doc: buildSearchDoc("T1",
			renderer("UC1", "Dana Cooks", "danacooks"),
			renderer("UC2", "Ben Bakes", "benbakes"),
			renderer("UC3", "Stir Fry Lab", "stirfrylab"),
		),
	}
	enricher := &fakeEnricher{fn: func(scout.Channel, int) (scout.EnrichmentFacts, error) {
		return scout.EnrichmentFacts{}, nil
	}}
	r := newTestRegistry()
	req := scout.DiscoveryRequest{
		Keyword: "cooking",
		Limit:   2,
		Filters: scout.DiscoveryFilters{ExcludeMusic: true},
	}
	r.Create("s1", "client-a", req)

	crawler := newTestCrawler(client, enricher, &fakeChannelStore{}, r, Config{})
	results, err := crawler.Run(context.Background(), "s1", req)
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Empty(t, client.fetched)

	session, err := r.Get("s1")
	require.NoError(t, err)
	require.Equal(t, scout.SessionCompleted, session.Status)
}

func TestCrawlerRun_ZeroConfigRetriesTwiceUnderFilters(t *testing.T) {
	t.Parallel()

	client := &fakeSearchClient{
		doc: buildSearchDoc("", renderer("UC1", "Flaky", "flaky")),
	}
	subs := int64(5000)
	enricher := &fakeEnricher{fn: func(_ scout.Channel, attempt int) (scout.EnrichmentFacts, error) {
		if attempt < 3 {
			return scout.EnrichmentFacts{}, errors.New("navigation timeout")
		}
		return scout.EnrichmentFacts{Subscribers: &subs}, nil
	}}
	r := newTestRegistry()
	req := scout.DiscoveryRequest{
		Keyword: "cooking",
		Limit:   1,
		Filters: scout.DiscoveryFilters{MinSubscribers: i64(1000)},
	}
	r.Create("s1", "client-a", req)

	// A zero-value Config still grants the two default retries.
	crawler := newTestCrawler(client, enricher, &fakeChannelStore{}, r, Config{})
	results, err := crawler.Run(context.Background(), "s1", req)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, 3, enricher.calls["UC1"])
}

func TestCrawlerRun_StopsAfterSupersession(t *testing.T) {
	t.Parallel()

	r := newTestRegistry()
	req := scout.DiscoveryRequest{
		Keyword: "cooking",
		Limit:   2,
		Filters: scout.DiscoveryFilters{MinSubscribers: i64(1)},
	}
	r.Create("s1", "client-a", req)

	subs := int64(5000)
	enricher := &fakeEnricher{fn: func(ch scout.Channel, _ int) (scout.EnrichmentFacts, error) {
		if ch.ID == "UC1" {
			// A second request from the same client lands mid-run.
			r.Create("s2", "client-a", scout.DiscoveryRequest{Keyword: "baking", Limit: 2})
		}
		return scout.EnrichmentFacts{Subscribers: &subs}, nil
	}}
	client := &fakeSearchClient{
		doc: buildSearchDoc("",
			renderer("UC1", "First", "first"),
			renderer("UC2", "Second", "second"),
		),
	}

	crawler := newTestCrawler(client, enricher, &fakeChannelStore{}, r, Config{})
	_, err := crawler.Run(context.Background(), "s1", req)
	require.NoError(t, err)

	session, err := r.Get("s1")
	require.NoError(t, err)
	require.NotEqual(t, scout.SessionCompleted, session.Status)
	require.True(t, r.IsActive("s2"))
}
