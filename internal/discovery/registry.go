package discovery

import (
	"sync"
	"time"

	"github.com/creatorscout/creatorscout/internal/scout"
)

// terminalRetention is how long finished or superseded sessions stay
// readable before being pruned. Clients polling a completed session have
// this long to collect the final snapshot.
const terminalRetention = time.Hour

// Registry is the in-memory home of CrawlSession state. Sessions are
// mutated only through UpdateIfActive, which re-validates that the session
// has not been superseded immediately before every mutation
// (check-and-discard), never just once at loop entry.
type Registry struct {
	mu          sync.RWMutex
	sessions    map[string]*scout.CrawlSession
	activeByKey map[string]string
	clock       scout.Clock
}

// NewRegistry creates an empty Registry.
func NewRegistry(clock scout.Clock) *Registry {
	return &Registry{
		sessions:    make(map[string]*scout.CrawlSession),
		activeByKey: make(map[string]string),
		clock:       clock,
	}
}

// Create registers a new collecting session and makes it the active
// session for clientKey, superseding any prior session under the same key.
// An empty clientKey scopes the session to itself (never superseded).
func (r *Registry) Create(id, clientKey string, req scout.DiscoveryRequest) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pruneLocked(r.clock.Now())
	r.sessions[id] = &scout.CrawlSession{
		ID:        id,
		Keyword:   req.Keyword,
		Target:    req.Limit,
		Filters:   req.Filters,
		Status:    scout.SessionCollecting,
		StartedAt: r.clock.Now(),
	}
	if clientKey != "" {
		r.activeByKey[clientKey] = id
	} else {
		r.activeByKey[id] = id
	}
}

// IsActive reports whether the session has not been superseded.
func (r *Registry) IsActive(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.isActiveLocked(id)
}

func (r *Registry) isActiveLocked(id string) bool {
	if _, ok := r.sessions[id]; !ok {
		return false
	}
	for _, active := range r.activeByKey {
		if active == id {
			return true
		}
	}
	return false
}

// pruneLocked drops sessions that reached a terminal state (or lost their
// active slot to supersession) more than terminalRetention ago, so the
// registry does not grow without bound over server uptime.
func (r *Registry) pruneLocked(now time.Time) {
	for id, s := range r.sessions {
		var since time.Time
		switch {
		case s.FinishedAt != nil:
			since = *s.FinishedAt
		case !r.isActiveLocked(id):
			since = s.StartedAt
		default:
			continue
		}
		if now.Sub(since) < terminalRetention {
			continue
		}
		delete(r.sessions, id)
		for key, active := range r.activeByKey {
			if active == id {
				delete(r.activeByKey, key)
			}
		}
	}
}

// UpdateIfActive applies fn to the session state only when the session is
// still the active one for its key. It reports whether the update was
// applied; false tells an in-flight crawl loop to stop.
func (r *Registry) UpdateIfActive(id string, fn func(*scout.CrawlSession)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.isActiveLocked(id) {
		return false
	}
	s := r.sessions[id]
	fn(s)
	return true
}

// Get returns a snapshot of the session state. The read is idempotent and
// side-effect free; callers may repeat it indefinitely.
func (r *Registry) Get(id string) (scout.CrawlSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return scout.CrawlSession{}, scout.ErrNotFound
	}
	snapshot := *s
	snapshot.Channels = append([]scout.Channel(nil), s.Channels...)
	return snapshot, nil
}
