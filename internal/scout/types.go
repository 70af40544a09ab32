// Package scout defines core types shared across subsystems.
package scout

import (
	"time"
)

// EnrichmentStatus tracks how far a channel has moved through enrichment.
type EnrichmentStatus string

// Enrichment status values persisted on channel records.
const (
	EnrichmentStatusNone     EnrichmentStatus = ""
	EnrichmentStatusQueued   EnrichmentStatus = "queued"
	EnrichmentStatusEnriched EnrichmentStatus = "enriched"
	EnrichmentStatusFailed   EnrichmentStatus = "failed"
)

// Channel is a discovered publisher profile. Identity fields are immutable
// once created; enrichment fields are layered on later by the worker.
type Channel struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	CanonicalURL string `json:"canonical_url"`
	Description  string `json:"description,omitempty"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`

	Subscribers *int64 `json:"subscribers,omitempty"`
	Videos      *int64 `json:"videos,omitempty"`
	Views       *int64 `json:"views,omitempty"`
	Country     string `json:"country,omitempty"`

	Emails       []string          `json:"emails,omitempty"`
	EmailSources map[string]string `json:"email_sources,omitempty"`
	SocialLinks  map[string]string `json:"social_links,omitempty"`

	EnrichmentStatus EnrichmentStatus `json:"enrichment_status,omitempty"`
	EnrichedAt       *time.Time       `json:"enriched_at,omitempty"`
}

// EnrichmentFacts is the result of one orchestrator run for a channel.
type EnrichmentFacts struct {
	Subscribers *int64
	Videos      *int64
	Views       *int64
	Country     string
	Description string
	Emails      *SourceMap
	SocialLinks map[string]string
}

// ApplyTo layers the facts onto a channel record. Identity fields are left
// untouched; an empty description does not clear an existing one.
func (f EnrichmentFacts) ApplyTo(ch *Channel) {
	if f.Subscribers != nil {
		ch.Subscribers = f.Subscribers
	}
	if f.Videos != nil {
		ch.Videos = f.Videos
	}
	if f.Views != nil {
		ch.Views = f.Views
	}
	if f.Country != "" {
		ch.Country = f.Country
	}
	if f.Description != "" && ch.Description == "" {
		ch.Description = f.Description
	}
	if f.Emails != nil && f.Emails.Len() > 0 {
		ch.Emails = f.Emails.Emails()
		ch.EmailSources = f.Emails.Sources()
	}
	if len(f.SocialLinks) > 0 {
		if ch.SocialLinks == nil {
			ch.SocialLinks = make(map[string]string, len(f.SocialLinks))
		}
		for platform, url := range f.SocialLinks {
			if _, ok := ch.SocialLinks[platform]; !ok {
				ch.SocialLinks[platform] = url
			}
		}
	}
}

// JobStatus represents the lifecycle state of an enrichment job.
type JobStatus string

// Job status values persisted in the job store.
const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// MaxJobAttempts bounds retries; a job is redrawn while attempts <= this
// value and marked failed afterwards.
const MaxJobAttempts = 3

// EnrichmentJob is one unit of asynchronous enrichment work.
type EnrichmentJob struct {
	ID          string     `json:"id"`
	ChannelID   string     `json:"channel_id"`
	Status      JobStatus  `json:"status"`
	Priority    int        `json:"priority"`
	Attempts    int        `json:"attempts"`
	ErrorText   string     `json:"error_text,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Terminal reports whether the job can never transition again.
func (j EnrichmentJob) Terminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}

// SessionStatus is the externally observable state of a discovery run.
type SessionStatus string

// Discovery session states. Collecting and streaming states may alternate
// while filters drain batches; completed and failed are terminal.
const (
	SessionCollecting     SessionStatus = "collecting"
	SessionCollectingMore SessionStatus = "collecting_more"
	SessionStreaming      SessionStatus = "streaming"
	SessionCompleted      SessionStatus = "completed"
	SessionFailed         SessionStatus = "failed"
)

// Terminal reports whether the session status can never change again.
func (s SessionStatus) Terminal() bool {
	return s == SessionCompleted || s == SessionFailed
}

// DiscoveryFilters are the optional inline filters applied during discovery.
type DiscoveryFilters struct {
	MinSubscribers *int64 `json:"min_subscribers,omitempty"`
	MaxSubscribers *int64 `json:"max_subscribers,omitempty"`
	Country        string `json:"country,omitempty"`
	ExcludeMusic   bool   `json:"exclude_music,omitempty"`
	ExcludeBrands  bool   `json:"exclude_brands,omitempty"`
}

// Active reports whether any filter requiring inline enrichment is set.
func (f DiscoveryFilters) Active() bool {
	return f.MinSubscribers != nil || f.MaxSubscribers != nil || f.Country != "" ||
		f.ExcludeMusic || f.ExcludeBrands
}

// DiscoveryRequest captures the parameters of one discovery run.
type DiscoveryRequest struct {
	Keyword string           `json:"keyword"`
	Limit   int              `json:"limit"`
	Filters DiscoveryFilters `json:"filters"`
}

// CrawlSession is the server-side record of one discovery run. It is
// mutated only by the discovery crawler and read by the status endpoint.
type CrawlSession struct {
	ID           string           `json:"session_id"`
	Keyword      string           `json:"keyword"`
	Target       int              `json:"target"`
	Filters      DiscoveryFilters `json:"filters"`
	Status       SessionStatus    `json:"status"`
	Progress     int              `json:"progress"`
	Channels     []Channel        `json:"channels"`
	Continuation string           `json:"-"`
	Message      string           `json:"message,omitempty"`
	StartedAt    time.Time        `json:"started_at"`
	FinishedAt   *time.Time       `json:"finished_at,omitempty"`
}

// PageVisit is the rendered result of one browser navigation.
type PageVisit struct {
	URL  string
	Text string
	HTML string
}

// SearchPayload is the minimal wire contract extracted from the platform's
// raw results document. All marker-based extraction happens behind one
// adapter so upstream format drift is a one-place fix.
type SearchPayload struct {
	APIKey         string
	RequestContext string
	Results        []Channel
	Continuation   string
}

// ContinuationRequest carries everything needed to fetch the next result
// page from the discovery feed.
type ContinuationRequest struct {
	APIKey         string
	RequestContext string
	Token          string
}
