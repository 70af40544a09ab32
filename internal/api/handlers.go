package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/creatorscout/creatorscout/internal/scout"
)

type discoveryRequest struct {
	Keyword string                 `json:"keyword"`
	Limit   int                    `json:"limit"`
	Filters scout.DiscoveryFilters `json:"filters"`
}

type enrichRequest struct {
	Priority int `json:"priority"`
}

// startDiscovery registers a new crawl session and kicks it off in the
// background. A second request from the same client key supersedes the
// client's previous session.
func (s *Server) startDiscovery(w http.ResponseWriter, r *http.Request) {
	var req discoveryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Keyword == "" {
		writeError(w, http.StatusBadRequest, "keyword is required")
		return
	}
	if req.Limit <= 0 {
		req.Limit = s.cfg.Discovery.DefaultLimit
	}
	if max := s.cfg.Discovery.MaxLimit; max > 0 && req.Limit > max {
		req.Limit = max
	}

	sessionID, err := s.idGen.NewID()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "generate session id")
		return
	}
	discReq := scout.DiscoveryRequest{
		Keyword: req.Keyword,
		Limit:   req.Limit,
		Filters: req.Filters,
	}
	s.registry.Create(sessionID, r.Header.Get("X-Client-Key"), discReq)

	// The crawl outlives this request; poll the status endpoint for
	// progress.
	go func() {
		if _, err := s.runner.Run(context.Background(), sessionID, discReq); err != nil {
			s.logger.Warn("discovery run ended with error",
				zap.String("session_id", sessionID), zap.Error(err))
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"session_id": sessionID})
}

// getDiscovery returns a snapshot of the session. The read is idempotent
// and side-effect free, so clients may poll it indefinitely and restart
// their poll loops without changing server state.
func (s *Server) getDiscovery(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "session_id")
	session, err := s.registry.Get(sessionID)
	if err != nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (s *Server) getChannel(w http.ResponseWriter, r *http.Request) {
	channelID := chi.URLParam(r, "channel_id")
	ch, err := s.channels.GetChannel(r.Context(), channelID)
	if err != nil {
		writeError(w, http.StatusNotFound, "channel not found")
		return
	}
	writeJSON(w, http.StatusOK, ch)
}

// enqueueEnrichment queues an asynchronous enrichment job for a known
// channel. Re-enqueueing a channel that is already queued is a no-op.
func (s *Server) enqueueEnrichment(w http.ResponseWriter, r *http.Request) {
	channelID := chi.URLParam(r, "channel_id")
	if _, err := s.channels.GetChannel(r.Context(), channelID); err != nil {
		writeError(w, http.StatusNotFound, "channel not found")
		return
	}
	var req enrichRequest
	if r.Body != nil {
		// An empty body means default priority.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	jobID, err := s.idGen.NewID()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "generate job id")
		return
	}
	job := scout.EnrichmentJob{
		ID:        jobID,
		ChannelID: channelID,
		Status:    scout.JobStatusPending,
		Priority:  req.Priority,
		CreatedAt: s.clock.Now(),
	}
	if err := s.jobs.EnqueueJob(r.Context(), job); err != nil {
		writeError(w, http.StatusInternalServerError, "enqueue job")
		return
	}
	status := scout.EnrichmentStatusQueued
	if err := s.channels.UpdateChannel(r.Context(), channelID, scout.ChannelUpdate{EnrichmentStatus: &status}); err != nil &&
		!errors.Is(err, scout.ErrNotFound) {
		s.logger.Warn("channel queue status update failed",
			zap.String("channel_id", channelID), zap.Error(err))
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"job_id": jobID})
}

func (s *Server) jobStats(w http.ResponseWriter, r *http.Request) {
	counts, err := s.jobs.CountJobsByStatus(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "count jobs")
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

func (s *Server) drainJobs(w http.ResponseWriter, r *http.Request) {
	processed, err := s.drainer.Drain(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"processed": processed})
}
