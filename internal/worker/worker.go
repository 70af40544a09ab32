// Package worker drains the enrichment job queue.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/creatorscout/creatorscout/internal/metrics"
	"github.com/creatorscout/creatorscout/internal/scout"
)

// Config bounds drain behavior.
type Config struct {
	// DrainBatch caps how many jobs one Drain call may process.
	DrainBatch int
	// InterJobPause separates successive jobs within one drain.
	InterJobPause time.Duration
	// PollInterval is the idle wait between drains in Run.
	PollInterval time.Duration
	// CompletionTopic names the event topic for finished enrichments.
	CompletionTopic string
}

func (c Config) withDefaults() Config {
	if c.DrainBatch <= 0 {
		c.DrainBatch = 5
	}
	if c.InterJobPause <= 0 {
		c.InterJobPause = time.Second
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 10 * time.Second
	}
	if c.CompletionTopic == "" {
		c.CompletionTopic = "enrichment-completed"
	}
	return c
}

// CompletionEvent is published after a channel finishes enrichment.
type CompletionEvent struct {
	JobID      string    `json:"job_id"`
	ChannelID  string    `json:"channel_id"`
	EmailCount int       `json:"email_count"`
	FinishedAt time.Time `json:"finished_at"`
}

// Worker claims and executes enrichment jobs sequentially.
type Worker struct {
	jobs      scout.JobStore
	channels  scout.ChannelStore
	enricher  scout.Enricher
	publisher scout.Publisher
	clock     scout.Clock
	cfg       Config
	logger    *zap.Logger
}

// New builds a Worker. publisher may be nil to skip completion events.
func New(
	jobs scout.JobStore,
	channels scout.ChannelStore,
	enricher scout.Enricher,
	publisher scout.Publisher,
	clock scout.Clock,
	cfg Config,
	logger *zap.Logger,
) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()
	return &Worker{
		jobs:      jobs,
		channels:  channels,
		enricher:  enricher,
		publisher: publisher,
		clock:     clock,
		cfg:       cfg.withDefaults(),
		logger:    logger,
	}
}

// Run drains the queue on a fixed cadence until the context ends.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()
	for {
		if _, err := w.Drain(ctx); err != nil {
			w.logger.Warn("queue drain failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Drain claims and runs up to DrainBatch jobs sequentially with a pause
// between jobs, returning how many were processed.
func (w *Worker) Drain(ctx context.Context) (int, error) {
	processed := 0
	for processed < w.cfg.DrainBatch {
		if ctx.Err() != nil {
			return processed, ctx.Err()
		}
		job, err := w.jobs.ClaimJob(ctx)
		if errors.Is(err, scout.ErrNoJobs) {
			return processed, nil
		}
		if err != nil {
			return processed, fmt.Errorf("claim job: %w", err)
		}
		if processed > 0 {
			w.pause(ctx)
		}
		w.process(ctx, job)
		processed++
	}
	return processed, nil
}

// process runs one claimed job to a pending, completed, or failed state.
func (w *Worker) process(ctx context.Context, job scout.EnrichmentJob) {
	ch, err := w.channels.GetChannel(ctx, job.ChannelID)
	if err != nil {
		w.settleFailure(ctx, job, fmt.Errorf("load channel: %w", err))
		return
	}
	facts, err := w.enricher.Enrich(ctx, ch)
	if err != nil {
		w.settleFailure(ctx, job, err)
		return
	}
	w.settleSuccess(ctx, job, facts)
}

func (w *Worker) settleSuccess(ctx context.Context, job scout.EnrichmentJob, facts scout.EnrichmentFacts) {
	now := w.clock.Now()
	status := scout.EnrichmentStatusEnriched
	update := scout.ChannelUpdate{
		Subscribers:      facts.Subscribers,
		Videos:           facts.Videos,
		Views:            facts.Views,
		SocialLinks:      facts.SocialLinks,
		EnrichmentStatus: &status,
		EnrichedAt:       &now,
	}
	if facts.Country != "" {
		update.Country = &facts.Country
	}
	if facts.Description != "" {
		update.Description = &facts.Description
	}
	emailCount := 0
	if facts.Emails != nil && facts.Emails.Len() > 0 {
		update.Emails = facts.Emails.Emails()
		update.EmailSources = facts.Emails.Sources()
		emailCount = facts.Emails.Len()
	}
	if err := w.channels.UpdateChannel(ctx, job.ChannelID, update); err != nil {
		w.settleFailure(ctx, job, fmt.Errorf("persist enrichment: %w", err))
		return
	}

	job.Status = scout.JobStatusCompleted
	job.ErrorText = ""
	job.CompletedAt = &now
	if err := w.jobs.UpdateJob(ctx, job); err != nil {
		w.logger.Error("job completion update failed", zap.String("job_id", job.ID), zap.Error(err))
		return
	}
	metrics.ObserveJob(string(scout.JobStatusCompleted))
	w.logger.Info("channel enriched",
		zap.String("job_id", job.ID),
		zap.String("channel_id", job.ChannelID),
		zap.Int("emails", emailCount))
	w.publishCompletion(ctx, job, emailCount, now)
}

// settleFailure either requeues the job for another attempt or marks it
// terminally failed along with the channel's enrichment status.
func (w *Worker) settleFailure(ctx context.Context, job scout.EnrichmentJob, cause error) {
	job.ErrorText = cause.Error()
	if job.Attempts <= scout.MaxJobAttempts {
		job.Status = scout.JobStatusPending
		if err := w.jobs.UpdateJob(ctx, job); err != nil {
			w.logger.Error("job requeue failed", zap.String("job_id", job.ID), zap.Error(err))
			return
		}
		metrics.ObserveJob("retried")
		w.logger.Warn("enrichment attempt failed; requeued",
			zap.String("job_id", job.ID),
			zap.Int("attempts", job.Attempts),
			zap.Error(cause))
		return
	}

	now := w.clock.Now()
	job.Status = scout.JobStatusFailed
	job.CompletedAt = &now
	if err := w.jobs.UpdateJob(ctx, job); err != nil {
		w.logger.Error("job failure update failed", zap.String("job_id", job.ID), zap.Error(err))
		return
	}
	status := scout.EnrichmentStatusFailed
	if err := w.channels.UpdateChannel(ctx, job.ChannelID, scout.ChannelUpdate{EnrichmentStatus: &status}); err != nil {
		w.logger.Error("channel failure update failed", zap.String("channel_id", job.ChannelID), zap.Error(err))
	}
	metrics.ObserveJob(string(scout.JobStatusFailed))
	w.logger.Error("enrichment exhausted retries",
		zap.String("job_id", job.ID),
		zap.String("channel_id", job.ChannelID),
		zap.Int("attempts", job.Attempts),
		zap.Error(cause))
}

func (w *Worker) publishCompletion(ctx context.Context, job scout.EnrichmentJob, emailCount int, at time.Time) {
	if w.publisher == nil {
		return
	}
	event := CompletionEvent{
		JobID:      job.ID,
		ChannelID:  job.ChannelID,
		EmailCount: emailCount,
		FinishedAt: at,
	}
	if _, err := w.publisher.Publish(ctx, w.cfg.CompletionTopic, event); err != nil {
		w.logger.Warn("completion event publish failed", zap.String("job_id", job.ID), zap.Error(err))
	}
}

func (w *Worker) pause(ctx context.Context) {
	timer := time.NewTimer(w.cfg.InterJobPause)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
