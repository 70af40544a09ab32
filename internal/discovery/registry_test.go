package discovery

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/creatorscout/creatorscout/internal/scout"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func newTestRegistry() *Registry {
	return NewRegistry(&fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)})
}

func TestRegistry_GetReturnsSnapshot(t *testing.T) {
	t.Parallel()

	r := newTestRegistry()
	r.Create("s1", "client-a", scout.DiscoveryRequest{Keyword: "cooking", Limit: 5})

	got, err := r.Get("s1")
	require.NoError(t, err)
	require.Equal(t, scout.SessionCollecting, got.Status)
	require.Equal(t, "cooking", got.Keyword)

	// Mutating the snapshot must not leak into registry state.
	got.Status = scout.SessionFailed
	again, err := r.Get("s1")
	require.NoError(t, err)
	require.Equal(t, scout.SessionCollecting, again.Status)

	_, err = r.Get("missing")
	require.ErrorIs(t, err, scout.ErrNotFound)
}

func TestRegistry_GetIsIdempotent(t *testing.T) {
	t.Parallel()

	r := newTestRegistry()
	r.Create("s1", "client-a", scout.DiscoveryRequest{Keyword: "cooking", Limit: 5})
	require.True(t, r.UpdateIfActive("s1", func(s *scout.CrawlSession) {
		s.Status = scout.SessionCompleted
		s.Progress = 100
	}))

	for i := 0; i < 3; i++ {
		got, err := r.Get("s1")
		require.NoError(t, err)
		require.Equal(t, scout.SessionCompleted, got.Status)
		require.Equal(t, 100, got.Progress)
	}
}

func TestRegistry_NewSessionSupersedesSameClient(t *testing.T) {
	t.Parallel()

	r := newTestRegistry()
	r.Create("s1", "client-a", scout.DiscoveryRequest{Keyword: "cooking", Limit: 5})
	require.True(t, r.IsActive("s1"))

	r.Create("s2", "client-a", scout.DiscoveryRequest{Keyword: "baking", Limit: 5})
	require.False(t, r.IsActive("s1"))
	require.True(t, r.IsActive("s2"))

	// The superseded run's writes are discarded.
	require.False(t, r.UpdateIfActive("s1", func(s *scout.CrawlSession) {
		s.Status = scout.SessionCompleted
	}))
	got, err := r.Get("s1")
	require.NoError(t, err)
	require.Equal(t, scout.SessionCollecting, got.Status)

	require.True(t, r.UpdateIfActive("s2", func(s *scout.CrawlSession) {
		s.Progress = 40
	}))
}

func TestRegistry_DifferentClientsDoNotSupersede(t *testing.T) {
	t.Parallel()

	r := newTestRegistry()
	r.Create("s1", "client-a", scout.DiscoveryRequest{Keyword: "cooking", Limit: 5})
	r.Create("s2", "client-b", scout.DiscoveryRequest{Keyword: "baking", Limit: 5})

	require.True(t, r.IsActive("s1"))
	require.True(t, r.IsActive("s2"))
}

func TestRegistry_EmptyClientKeyScopesToSelf(t *testing.T) {
	t.Parallel()

	r := newTestRegistry()
	r.Create("s1", "", scout.DiscoveryRequest{Keyword: "cooking", Limit: 5})
	r.Create("s2", "", scout.DiscoveryRequest{Keyword: "baking", Limit: 5})

	require.True(t, r.IsActive("s1"))
	require.True(t, r.IsActive("s2"))
}

func TestRegistry_PrunesFinishedSessionsAfterRetention(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	r := NewRegistry(clock)
	r.Create("s1", "client-a", scout.DiscoveryRequest{Keyword: "cooking", Limit: 5})
	require.True(t, r.UpdateIfActive("s1", func(s *scout.CrawlSession) {
		s.Status = scout.SessionCompleted
		finished := clock.Now()
		s.FinishedAt = &finished
	}))

	// Within the retention window the finished session stays readable.
	clock.now = clock.now.Add(30 * time.Minute)
	r.Create("s2", "client-b", scout.DiscoveryRequest{Keyword: "baking", Limit: 5})
	_, err := r.Get("s1")
	require.NoError(t, err)

	clock.now = clock.now.Add(terminalRetention)
	r.Create("s3", "client-c", scout.DiscoveryRequest{Keyword: "frying", Limit: 5})
	_, err = r.Get("s1")
	require.ErrorIs(t, err, scout.ErrNotFound)
}

func TestRegistry_PrunesSupersededSessionsAfterRetention(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	r := NewRegistry(clock)
	r.Create("s1", "client-a", scout.DiscoveryRequest{Keyword: "cooking", Limit: 5})
	r.Create("s2", "client-a", scout.DiscoveryRequest{Keyword: "baking", Limit: 5})
	require.False(t, r.IsActive("s1"))

	// The superseded run never stamps FinishedAt; its start time governs.
	clock.now = clock.now.Add(terminalRetention + time.Minute)
	r.Create("s3", "client-b", scout.DiscoveryRequest{Keyword: "frying", Limit: 5})

	_, err := r.Get("s1")
	require.ErrorIs(t, err, scout.ErrNotFound)
	_, err = r.Get("s2")
	require.NoError(t, err)
	require.True(t, r.IsActive("s2"))
}
