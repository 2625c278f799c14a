package httpapi

import (
	"net/http"
	"strings"

	"github.com/mlawther/newsgrid/internal/queue"
)

func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	if s.jobs == nil {
		s.writeError(w, http.StatusServiceUnavailable, "queue_unavailable", "background queue is not running")
		return
	}

	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var jobs []queue.Job
	if status := r.URL.Query().Get("status"); status != "" {
		switch queue.Status(status) {
		case queue.StatusPending, queue.StatusProcessing, queue.StatusCompleted, queue.StatusFailed:
			jobs = s.jobs.JobsByStatus(queue.Status(status))
		default:
			s.writeError(w, http.StatusBadRequest, "invalid_status", "status must be pending, processing, completed or failed")
			return
		}
	} else {
		jobs = s.jobs.AllJobs()
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobs,
		"count": len(jobs),
	})
}

func (s *Server) handleJob(w http.ResponseWriter, r *http.Request) {
	if s.jobs == nil {
		s.writeError(w, http.StatusServiceUnavailable, "queue_unavailable", "background queue is not running")
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/jobs/")

	if rest == "completed" && r.Method == http.MethodDelete {
		cleared := s.jobs.ClearCompleted()
		s.writeJSON(w, http.StatusOK, map[string]int{"cleared": cleared})
		return
	}

	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	job, ok := s.jobs.GetJob(rest)
	if !ok {
		s.writeError(w, http.StatusNotFound, "not_found", "job not found")
		return
	}

	s.writeJSON(w, http.StatusOK, job)
}
