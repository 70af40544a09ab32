package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/creatorscout/creatorscout/internal/scout"
)

func i64(v int64) *int64 { return &v }

func TestUpsertChannelPreservesEnrichment(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()

	require.NoError(t, s.UpsertChannel(ctx, scout.Channel{
		ID: "UC1", Name: "Dana Cooks", CanonicalURL: "https://www.youtube.com/@danacooks",
	}))
	status := scout.EnrichmentStatusEnriched
	require.NoError(t, s.UpdateChannel(ctx, "UC1", scout.ChannelUpdate{
		Emails:           []string{"dana@creatorkitchen.com"},
		EnrichmentStatus: &status,
	}))

	// A re-discovery upsert must not wipe enrichment fields.
	require.NoError(t, s.UpsertChannel(ctx, scout.Channel{
		ID: "UC1", Name: "Dana Cooks!", CanonicalURL: "https://www.youtube.com/@danacooks",
	}))

	ch, err := s.GetChannel(ctx, "UC1")
	require.NoError(t, err)
	require.Equal(t, "Dana Cooks!", ch.Name)
	require.Equal(t, []string{"dana@creatorkitchen.com"}, ch.Emails)
	require.Equal(t, scout.EnrichmentStatusEnriched, ch.EnrichmentStatus)
}

func TestGetChannelMissing(t *testing.T) {
	t.Parallel()

	s := New()
	_, err := s.GetChannel(context.Background(), "nope")
	require.ErrorIs(t, err, scout.ErrNotFound)
}

func TestEnqueueJobDeduplicates(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, s.EnqueueJob(ctx, scout.EnrichmentJob{ID: "j1", ChannelID: "UC1", CreatedAt: now}))
	require.NoError(t, s.EnqueueJob(ctx, scout.EnrichmentJob{ID: "j2", ChannelID: "UC1", CreatedAt: now}))

	counts, err := s.CountJobsByStatus(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, counts[scout.JobStatusPending])
}

func TestEnqueueJobAllowsRequeueAfterTerminal(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, s.EnqueueJob(ctx, scout.EnrichmentJob{ID: "j1", ChannelID: "UC1", CreatedAt: now}))
	job, err := s.ClaimJob(ctx)
	require.NoError(t, err)
	job.Status = scout.JobStatusFailed
	require.NoError(t, s.UpdateJob(ctx, job))

	require.NoError(t, s.EnqueueJob(ctx, scout.EnrichmentJob{ID: "j2", ChannelID: "UC1", CreatedAt: now}))
	counts, err := s.CountJobsByStatus(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, counts[scout.JobStatusPending])
	require.Equal(t, 1, counts[scout.JobStatusFailed])
}

func TestClaimJobOrdering(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.EnqueueJob(ctx, scout.EnrichmentJob{ID: "old-low", ChannelID: "UC1", Priority: 0, CreatedAt: base}))
	require.NoError(t, s.EnqueueJob(ctx, scout.EnrichmentJob{ID: "new-high", ChannelID: "UC2", Priority: 5, CreatedAt: base.Add(time.Minute)}))
	require.NoError(t, s.EnqueueJob(ctx, scout.EnrichmentJob{ID: "old-high", ChannelID: "UC3", Priority: 5, CreatedAt: base.Add(-time.Minute)}))

	first, err := s.ClaimJob(ctx)
	require.NoError(t, err)
	require.Equal(t, "old-high", first.ID)
	require.Equal(t, scout.JobStatusProcessing, first.Status)
	require.Equal(t, 1, first.Attempts)
	require.NotNil(t, first.StartedAt)

	second, err := s.ClaimJob(ctx)
	require.NoError(t, err)
	require.Equal(t, "new-high", second.ID)

	third, err := s.ClaimJob(ctx)
	require.NoError(t, err)
	require.Equal(t, "old-low", third.ID)

	_, err = s.ClaimJob(ctx)
	require.ErrorIs(t, err, scout.ErrNoJobs)
}
