package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/mlawther/newsgrid/internal/cache"
	"github.com/mlawther/newsgrid/internal/feeds"
	"github.com/mlawther/newsgrid/internal/logging"
	"github.com/mlawther/newsgrid/internal/models"
	"github.com/mlawther/newsgrid/internal/queue"
	feedsync "github.com/mlawther/newsgrid/internal/sync"
)

// ArticleStore is the read side of article persistence needed by the API.
type ArticleStore interface {
	Query(ctx context.Context, params models.FilterParams) ([]models.Article, int, error)
	GetByID(ctx context.Context, id int64) (*models.Article, error)
	IncrementViewCount(ctx context.Context, id int64) error
}

// Syncer runs a feed synchronization pass.
type Syncer interface {
	Run(ctx context.Context, opts feedsync.Options) (*models.SyncOutcome, error)
}

type Server struct {
	store    ArticleStore
	registry *feeds.Registry
	syncSvc  Syncer
	jobs     *queue.Queue
	cache    cache.Cache
	logger   *logging.Logger
	server   *http.Server
}

func New(store ArticleStore, registry *feeds.Registry, syncSvc Syncer, jobs *queue.Queue, c cache.Cache, logger *logging.Logger) *Server {
	return &Server{
		store:    store,
		registry: registry,
		syncSvc:  syncSvc,
		jobs:     jobs,
		cache:    c,
		logger:   logger,
	}
}

func (s *Server) Start(addr string) error {
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	s.logger.Info("HTTP API server starting", logging.WithField("addr", addr))
	return s.server.ListenAndServe()
}

// Handler builds the route table. Exposed separately so tests can drive
// the mux without binding a listener.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/articles", s.corsMiddleware(s.handleGetArticles))
	mux.HandleFunc("/api/articles/", s.corsMiddleware(s.handleGetArticle))
	mux.HandleFunc("/api/feeds", s.corsMiddleware(s.handleGetFeeds))
	mux.HandleFunc("/api/sync", s.corsMiddleware(s.handleSync))
	mux.HandleFunc("/api/jobs", s.corsMiddleware(s.handleJobs))
	mux.HandleFunc("/api/jobs/", s.corsMiddleware(s.handleJob))

	mux.HandleFunc("/health", s.handleHealth)

	return mux
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next(w, r)
	}
}

func (s *Server) handleGetFeeds(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sources := s.registry.All()
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"feeds": sources,
		"count": len(sources),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (s *Server) writeError(w http.ResponseWriter, status int, code, message string) {
	s.writeJSON(w, status, map[string]string{
		"code":    code,
		"message": message,
	})
}
