// Package memory provides in-memory store implementations for dev and tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/creatorscout/creatorscout/internal/scout"
)

// Store keeps channels and enrichment jobs in process memory. It implements
// both scout.ChannelStore and scout.JobStore with the same locking domain so
// claim-and-update sequences stay consistent.
type Store struct {
	mu       sync.Mutex
	channels map[string]scout.Channel
	jobs     map[string]scout.EnrichmentJob
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		channels: make(map[string]scout.Channel),
		jobs:     make(map[string]scout.EnrichmentJob),
	}
}

// UpsertChannel inserts or replaces identity fields for a channel while
// preserving enrichment fields already persisted.
func (s *Store) UpsertChannel(_ context.Context, ch scout.Channel) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.channels[ch.ID]
	if !ok {
		s.channels[ch.ID] = ch
		return nil
	}
	existing.Name = ch.Name
	existing.CanonicalURL = ch.CanonicalURL
	if ch.Description != "" {
		existing.Description = ch.Description
	}
	if ch.ThumbnailURL != "" {
		existing.ThumbnailURL = ch.ThumbnailURL
	}
	if ch.Subscribers != nil {
		existing.Subscribers = ch.Subscribers
	}
	if ch.Videos != nil {
		existing.Videos = ch.Videos
	}
	if ch.Views != nil {
		existing.Views = ch.Views
	}
	s.channels[ch.ID] = existing
	return nil
}

// UpdateChannel applies a partial update to an existing channel.
func (s *Store) UpdateChannel(_ context.Context, id string, update scout.ChannelUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.channels[id]
	if !ok {
		return scout.ErrNotFound
	}
	if update.Subscribers != nil {
		ch.Subscribers = update.Subscribers
	}
	if update.Videos != nil {
		ch.Videos = update.Videos
	}
	if update.Views != nil {
		ch.Views = update.Views
	}
	if update.Country != nil {
		ch.Country = *update.Country
	}
	if update.Description != nil {
		ch.Description = *update.Description
	}
	if update.Emails != nil {
		ch.Emails = append([]string(nil), update.Emails...)
	}
	if update.EmailSources != nil {
		ch.EmailSources = copyMap(update.EmailSources)
	}
	if update.SocialLinks != nil {
		ch.SocialLinks = copyMap(update.SocialLinks)
	}
	if update.EnrichmentStatus != nil {
		ch.EnrichmentStatus = *update.EnrichmentStatus
	}
	if update.EnrichedAt != nil {
		ch.EnrichedAt = update.EnrichedAt
	}
	s.channels[id] = ch
	return nil
}

// GetChannel returns a copy of the channel record.
func (s *Store) GetChannel(_ context.Context, id string) (scout.Channel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.channels[id]
	if !ok {
		return scout.Channel{}, scout.ErrNotFound
	}
	ch.Emails = append([]string(nil), ch.Emails...)
	ch.EmailSources = copyMap(ch.EmailSources)
	ch.SocialLinks = copyMap(ch.SocialLinks)
	return ch, nil
}

// EnqueueJob inserts a pending job. A job for a channel that is already
// pending or processing is silently dropped.
func (s *Store) EnqueueJob(_ context.Context, job scout.EnrichmentJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.jobs {
		if existing.ChannelID == job.ChannelID && !existing.Terminal() {
			return nil
		}
	}
	job.Status = scout.JobStatusPending
	s.jobs[job.ID] = job
	return nil
}

// ClaimJob atomically claims the highest-priority, oldest pending job.
func (s *Store) ClaimJob(_ context.Context) (scout.EnrichmentJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var pending []scout.EnrichmentJob
	for _, job := range s.jobs {
		if job.Status == scout.JobStatusPending {
			pending = append(pending, job)
		}
	}
	if len(pending) == 0 {
		return scout.EnrichmentJob{}, scout.ErrNoJobs
	}
	sort.Slice(pending, func(i, j int) bool {
		if pending[i].Priority != pending[j].Priority {
			return pending[i].Priority > pending[j].Priority
		}
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})
	job := pending[0]
	job.Status = scout.JobStatusProcessing
	job.Attempts++
	now := time.Now().UTC()
	job.StartedAt = &now
	s.jobs[job.ID] = job
	return job, nil
}

// UpdateJob replaces a job record.
func (s *Store) UpdateJob(_ context.Context, job scout.EnrichmentJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[job.ID]; !ok {
		return scout.ErrNotFound
	}
	s.jobs[job.ID] = job
	return nil
}

// CountJobsByStatus returns job counts keyed by status.
func (s *Store) CountJobsByStatus(_ context.Context) (map[scout.JobStatus]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[scout.JobStatus]int)
	for _, job := range s.jobs {
		counts[job.Status]++
	}
	return counts, nil
}

func copyMap(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
