package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/creatorscout/creatorscout/internal/scout"
)

func i64(v int64) *int64 { return &v }

func TestUpsertChannel(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewWithPool(mock)
	ch := scout.Channel{
		ID:           "UC1",
		Name:         "Dana Cooks",
		CanonicalURL: "https://www.youtube.com/@danacooks",
		Subscribers:  i64(1_200_000),
	}
	mock.ExpectExec("INSERT INTO channels").
		WithArgs(ch.ID, ch.Name, ch.CanonicalURL, "", "", ch.Subscribers, (*int64)(nil), (*int64)(nil)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.UpsertChannel(context.Background(), ch))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateChannelNotFound(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewWithPool(mock)
	mock.ExpectExec("UPDATE channels").
		WithArgs("ghost", (*int64)(nil), (*int64)(nil), (*int64)(nil),
			(*string)(nil), (*string)(nil), []string(nil),
			[]byte(nil), []byte(nil), (*string)(nil), (*time.Time)(nil)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err = store.UpdateChannel(context.Background(), "ghost", scout.ChannelUpdate{})
	require.ErrorIs(t, err, scout.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnqueueJobIsConditionalInsert(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewWithPool(mock)
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectExec("INSERT INTO enrichment_jobs").
		WithArgs("j1", "UC1", 2, created).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	// Zero rows inserted (duplicate) is still a success.
	require.NoError(t, store.EnqueueJob(context.Background(), scout.EnrichmentJob{
		ID: "j1", ChannelID: "UC1", Priority: 2, CreatedAt: created,
	}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimJob(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewWithPool(mock)
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	started := created.Add(time.Minute)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, channel_id, priority, attempts, error_text, created_at").
		WillReturnRows(pgxmock.NewRows(
			[]string{"id", "channel_id", "priority", "attempts", "error_text", "created_at"}).
			AddRow("j1", "UC1", 2, 0, "", created))
	mock.ExpectQuery("UPDATE enrichment_jobs").
		WithArgs("j1").
		WillReturnRows(pgxmock.NewRows([]string{"attempts", "started_at"}).AddRow(1, &started))
	mock.ExpectCommit()
	mock.ExpectRollback()

	job, err := store.ClaimJob(context.Background())
	require.NoError(t, err)
	require.Equal(t, "j1", job.ID)
	require.Equal(t, scout.JobStatusProcessing, job.Status)
	require.Equal(t, 1, job.Attempts)
	require.NotNil(t, job.StartedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimJobEmptyQueue(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewWithPool(mock)
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, channel_id, priority, attempts, error_text, created_at").
		WillReturnRows(pgxmock.NewRows(
			[]string{"id", "channel_id", "priority", "attempts", "error_text", "created_at"}))
	mock.ExpectRollback()

	_, err = store.ClaimJob(context.Background())
	require.ErrorIs(t, err, scout.ErrNoJobs)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateJob(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewWithPool(mock)
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	completed := started.Add(time.Minute)
	job := scout.EnrichmentJob{
		ID:          "j1",
		ChannelID:   "UC1",
		Status:      scout.JobStatusCompleted,
		Attempts:    1,
		StartedAt:   &started,
		CompletedAt: &completed,
	}
	mock.ExpectExec("UPDATE enrichment_jobs").
		WithArgs("j1", "completed", 1, "", &started, &completed).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, store.UpdateJob(context.Background(), job))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCountJobsByStatus(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewWithPool(mock)
	mock.ExpectQuery("SELECT status, COUNT").
		WillReturnRows(pgxmock.NewRows([]string{"status", "count"}).
			AddRow("pending", 3).
			AddRow("failed", 1))

	counts, err := store.CountJobsByStatus(context.Background())
	require.NoError(t, err)
	require.Equal(t, map[scout.JobStatus]int{
		scout.JobStatusPending: 3,
		scout.JobStatusFailed:  1,
	}, counts)
	require.NoError(t, mock.ExpectationsWereMet())
}
