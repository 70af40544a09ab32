package scout

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors shared across store and queue implementations.
var (
	// ErrNotFound is returned when a channel, job, or session does not exist.
	ErrNotFound = errors.New("not found")
	// ErrNoJobs is returned by ClaimJob when no pending job is available.
	ErrNoJobs = errors.New("no pending jobs")
	// ErrNoResults is returned when the initial search payload cannot be
	// extracted; this is fatal for the owning discovery session.
	ErrNoResults = errors.New("no search results")
)

// ChannelUpdate is a partial update applied to an existing channel record.
// Nil fields are left untouched.
type ChannelUpdate struct {
	Subscribers      *int64
	Videos           *int64
	Views            *int64
	Country          *string
	Description      *string
	Emails           []string
	EmailSources     map[string]string
	SocialLinks      map[string]string
	EnrichmentStatus *EnrichmentStatus
	EnrichedAt       *time.Time
}

// ChannelStore persists discovered channels and their enrichment fields.
type ChannelStore interface {
	UpsertChannel(ctx context.Context, ch Channel) error
	UpdateChannel(ctx context.Context, id string, update ChannelUpdate) error
	GetChannel(ctx context.Context, id string) (Channel, error)
}

// JobStore persists the enrichment job queue.
type JobStore interface {
	// EnqueueJob inserts a pending job. Inserting for a channel that is
	// already queued or processing is a no-op, not an error.
	EnqueueJob(ctx context.Context, job EnrichmentJob) error
	// ClaimJob atomically selects the highest-priority, oldest pending job,
	// marks it processing, stamps started_at, and increments attempts.
	// Returns ErrNoJobs when the queue is empty.
	ClaimJob(ctx context.Context) (EnrichmentJob, error)
	UpdateJob(ctx context.Context, job EnrichmentJob) error
	CountJobsByStatus(ctx context.Context) (map[JobStatus]int, error)
}

// Visitor navigates one surface and returns its rendered text and markup.
// Implementations may be a pooled browser session or a plain HTTP fetcher.
type Visitor interface {
	Visit(ctx context.Context, url string, timeout time.Duration) (PageVisit, error)
	// VisitExpanded navigates like Visit, then activates the control
	// matching selector before reading the page, so content collapsed
	// behind a "show more" fold is included in the returned text. A
	// missing control is not an error; the unexpanded read is returned.
	VisitExpanded(ctx context.Context, url, selector string, timeout time.Duration) (PageVisit, error)
}

// Enricher runs the multi-source enrichment pipeline for one channel.
type Enricher interface {
	Enrich(ctx context.Context, ch Channel) (EnrichmentFacts, error)
}

// Publisher pushes completion events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// BlobStore writes raw page snapshots and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error)
}

// Hasher computes digests for snapshot deduplication.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces session and job IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
