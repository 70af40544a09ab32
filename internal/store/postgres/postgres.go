// Package postgres provides Postgres-backed persistence for channels and
// the enrichment job queue.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/creatorscout/creatorscout/internal/scout"
)

// pgxPool is the subset of pgxpool.Pool the store uses; pgxmock implements
// it in tests.
type pgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Close()
}

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

// Store implements scout.ChannelStore and scout.JobStore on Postgres.
type Store struct {
	pool pgxPool
}

// New creates a Store backed by a fresh pgx connection pool.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("store.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	return &Store{pool: pool}, nil
}

// NewWithPool wraps an existing pool; used by tests.
func NewWithPool(pool pgxPool) *Store {
	return &Store{pool: pool}
}

// Close closes the underlying connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// UpsertChannel inserts the channel or refreshes its identity fields,
// never clearing enrichment fields a later worker pass has written.
func (s *Store) UpsertChannel(ctx context.Context, ch scout.Channel) error {
	query := `
		INSERT INTO channels (id, name, canonical_url, description, thumbnail_url, subscribers, videos, views)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			canonical_url = EXCLUDED.canonical_url,
			description = COALESCE(NULLIF(EXCLUDED.description, ''), channels.description),
			thumbnail_url = COALESCE(NULLIF(EXCLUDED.thumbnail_url, ''), channels.thumbnail_url),
			subscribers = COALESCE(EXCLUDED.subscribers, channels.subscribers),
			videos = COALESCE(EXCLUDED.videos, channels.videos),
			views = COALESCE(EXCLUDED.views, channels.views);
	`
	_, err := s.pool.Exec(ctx, query,
		ch.ID, ch.Name, ch.CanonicalURL, ch.Description, ch.ThumbnailURL,
		ch.Subscribers, ch.Videos, ch.Views)
	if err != nil {
		return fmt.Errorf("upsert channel %s: %w", ch.ID, err)
	}
	return nil
}

// UpdateChannel applies a partial update; nil fields keep the stored value.
func (s *Store) UpdateChannel(ctx context.Context, id string, update scout.ChannelUpdate) error {
	emailSources, err := marshalMap(update.EmailSources)
	if err != nil {
		return fmt.Errorf("encode email sources: %w", err)
	}
	socialLinks, err := marshalMap(update.SocialLinks)
	if err != nil {
		return fmt.Errorf("encode social links: %w", err)
	}
	query := `
		UPDATE channels SET
			subscribers = COALESCE($2, subscribers),
			videos = COALESCE($3, videos),
			views = COALESCE($4, views),
			country = COALESCE($5, country),
			description = COALESCE($6, description),
			emails = COALESCE($7, emails),
			email_sources = COALESCE($8, email_sources),
			social_links = COALESCE($9, social_links),
			enrichment_status = COALESCE($10, enrichment_status),
			enriched_at = COALESCE($11, enriched_at)
		WHERE id = $1;
	`
	tag, err := s.pool.Exec(ctx, query,
		id, update.Subscribers, update.Videos, update.Views,
		update.Country, update.Description, update.Emails,
		emailSources, socialLinks, statusText(update.EnrichmentStatus), update.EnrichedAt)
	if err != nil {
		return fmt.Errorf("update channel %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return scout.ErrNotFound
	}
	return nil
}

// GetChannel loads one channel record.
func (s *Store) GetChannel(ctx context.Context, id string) (scout.Channel, error) {
	query := `
		SELECT id, name, canonical_url, description, thumbnail_url,
		       subscribers, videos, views, country,
		       emails, email_sources, social_links, enrichment_status, enriched_at
		FROM channels WHERE id = $1;
	`
	var (
		ch           scout.Channel
		emailSources []byte
		socialLinks  []byte
		status       string
	)
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&ch.ID, &ch.Name, &ch.CanonicalURL, &ch.Description, &ch.ThumbnailURL,
		&ch.Subscribers, &ch.Videos, &ch.Views, &ch.Country,
		&ch.Emails, &emailSources, &socialLinks, &status, &ch.EnrichedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return scout.Channel{}, scout.ErrNotFound
	}
	if err != nil {
		return scout.Channel{}, fmt.Errorf("get channel %s: %w", id, err)
	}
	ch.EnrichmentStatus = scout.EnrichmentStatus(status)
	if ch.EmailSources, err = unmarshalMap(emailSources); err != nil {
		return scout.Channel{}, fmt.Errorf("decode email sources for %s: %w", id, err)
	}
	if ch.SocialLinks, err = unmarshalMap(socialLinks); err != nil {
		return scout.Channel{}, fmt.Errorf("decode social links for %s: %w", id, err)
	}
	return ch, nil
}

// EnqueueJob inserts a pending job unless one is already queued or running
// for the channel.
func (s *Store) EnqueueJob(ctx context.Context, job scout.EnrichmentJob) error {
	query := `
		INSERT INTO enrichment_jobs (id, channel_id, status, priority, attempts, created_at)
		SELECT $1, $2, 'pending', $3, 0, $4
		WHERE NOT EXISTS (
			SELECT 1 FROM enrichment_jobs
			WHERE channel_id = $2 AND status IN ('pending', 'processing')
		);
	`
	_, err := s.pool.Exec(ctx, query, job.ID, job.ChannelID, job.Priority, job.CreatedAt)
	if err != nil {
		return fmt.Errorf("enqueue job for %s: %w", job.ChannelID, err)
	}
	return nil
}

// ClaimJob claims the highest-priority, oldest pending job in one
// transaction. SKIP LOCKED keeps concurrent workers off the same row.
func (s *Store) ClaimJob(ctx context.Context) (scout.EnrichmentJob, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return scout.EnrichmentJob{}, fmt.Errorf("begin claim: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	selectQuery := `
		SELECT id, channel_id, priority, attempts, error_text, created_at
		FROM enrichment_jobs
		WHERE status = 'pending'
		ORDER BY priority DESC, created_at ASC
		LIMIT 1
		FOR UPDATE SKIP LOCKED;
	`
	var job scout.EnrichmentJob
	err = tx.QueryRow(ctx, selectQuery).Scan(
		&job.ID, &job.ChannelID, &job.Priority, &job.Attempts, &job.ErrorText, &job.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return scout.EnrichmentJob{}, scout.ErrNoJobs
	}
	if err != nil {
		return scout.EnrichmentJob{}, fmt.Errorf("select pending job: %w", err)
	}

	updateQuery := `
		UPDATE enrichment_jobs
		SET status = 'processing', attempts = attempts + 1, started_at = now()
		WHERE id = $1
		RETURNING attempts, started_at;
	`
	if err := tx.QueryRow(ctx, updateQuery, job.ID).Scan(&job.Attempts, &job.StartedAt); err != nil {
		return scout.EnrichmentJob{}, fmt.Errorf("mark job %s processing: %w", job.ID, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return scout.EnrichmentJob{}, fmt.Errorf("commit claim: %w", err)
	}
	job.Status = scout.JobStatusProcessing
	return job, nil
}

// UpdateJob persists a job's current state.
func (s *Store) UpdateJob(ctx context.Context, job scout.EnrichmentJob) error {
	query := `
		UPDATE enrichment_jobs
		SET status = $2, attempts = $3, error_text = $4, started_at = $5, completed_at = $6
		WHERE id = $1;
	`
	tag, err := s.pool.Exec(ctx, query,
		job.ID, string(job.Status), job.Attempts, job.ErrorText, job.StartedAt, job.CompletedAt)
	if err != nil {
		return fmt.Errorf("update job %s: %w", job.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return scout.ErrNotFound
	}
	return nil
}

// CountJobsByStatus aggregates queue depth per status.
func (s *Store) CountJobsByStatus(ctx context.Context) (map[scout.JobStatus]int, error) {
	rows, err := s.pool.Query(ctx, `SELECT status, COUNT(*) FROM enrichment_jobs GROUP BY status;`)
	if err != nil {
		return nil, fmt.Errorf("count jobs: %w", err)
	}
	defer rows.Close()

	counts := make(map[scout.JobStatus]int)
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan job count: %w", err)
		}
		counts[scout.JobStatus(status)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate job counts: %w", err)
	}
	return counts, nil
}

func marshalMap(in map[string]string) ([]byte, error) {
	if in == nil {
		return nil, nil
	}
	return json.Marshal(in)
}

func unmarshalMap(in []byte) (map[string]string, error) {
	if len(in) == 0 {
		return nil, nil
	}
	var out map[string]string
	if err := json.Unmarshal(in, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func statusText(status *scout.EnrichmentStatus) *string {
	if status == nil {
		return nil
	}
	s := string(*status)
	return &s
}
