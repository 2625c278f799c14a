package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/mlawther/newsgrid/internal/logging"
	feedsync "github.com/mlawther/newsgrid/internal/sync"
)

// SyncRequest is the optional body for POST /api/sync.
type SyncRequest struct {
	Limit          *int  `json:"limit,omitempty"`
	SkipDuplicates *bool `json:"skipDuplicates,omitempty"`
	Async          bool  `json:"async,omitempty"`
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	opts := feedsync.DefaultOptions()
	var req SyncRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid_body", "request body must be valid JSON")
			return
		}
	}
	if req.Limit != nil {
		if *req.Limit <= 0 {
			s.writeError(w, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer")
			return
		}
		opts.Limit = *req.Limit
	}
	if req.SkipDuplicates != nil {
		opts.SkipDuplicates = *req.SkipDuplicates
	}

	if req.Async {
		if s.jobs == nil {
			s.writeError(w, http.StatusServiceUnavailable, "queue_unavailable", "background queue is not running")
			return
		}
		jobID := s.jobs.Submit("sync", opts)
		s.writeJSON(w, http.StatusAccepted, map[string]string{
			"jobId":  jobID,
			"status": "queued",
		})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
	defer cancel()

	outcome, err := s.syncSvc.Run(ctx, opts)
	if err != nil {
		if errors.Is(err, feedsync.ErrNoFeeds) {
			s.writeError(w, http.StatusConflict, "no_feeds", "no enabled feeds to sync")
			return
		}
		s.logger.Error("Sync failed", logging.WithField("error", err.Error()))
		s.writeError(w, http.StatusInternalServerError, "sync_failed", err.Error())
		return
	}

	// Listings are stale after a sync lands new articles.
	s.cache.Clear()

	s.writeJSON(w, http.StatusOK, outcome)
}
