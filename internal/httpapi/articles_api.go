package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/mlawther/newsgrid/internal/cache"
	"github.com/mlawther/newsgrid/internal/logging"
	"github.com/mlawther/newsgrid/internal/models"
)

const (
	defaultArticleLimit = 50
	maxArticleLimit     = 200
)

// ArticlesResponse is the payload for article listings.
type ArticlesResponse struct {
	Articles   []models.Article `json:"articles"`
	TotalCount int              `json:"totalCount"`
	HasMore    bool             `json:"hasMore"`
}

func (s *Server) handleGetArticles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	params := parseFilterParams(r)

	key := cache.ArticlesKey(params)
	if cached, ok := s.cache.Get(key); ok {
		s.writeJSON(w, http.StatusOK, cached)
		return
	}

	articles, total, err := s.store.Query(r.Context(), params)
	if err != nil {
		s.logger.Error("Failed to query articles", logging.WithField("error", err.Error()))
		s.writeError(w, http.StatusInternalServerError, "internal_error", "failed to query articles")
		return
	}

	response := ArticlesResponse{
		Articles:   articles,
		TotalCount: total,
		HasMore:    params.Offset+len(articles) < total,
	}
	s.cache.Set(key, response)

	s.writeJSON(w, http.StatusOK, response)
}

func (s *Server) handleGetArticle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	idPart := strings.TrimPrefix(r.URL.Path, "/api/articles/")
	id, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil || id <= 0 {
		s.writeError(w, http.StatusBadRequest, "invalid_id", "article id must be a positive integer")
		return
	}

	article, err := s.store.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, models.ErrArticleNotFound) {
			s.writeError(w, http.StatusNotFound, "not_found", "article not found")
			return
		}
		s.logger.Error("Failed to load article",
			logging.WithFields(map[string]interface{}{"id": id, "error": err.Error()}))
		s.writeError(w, http.StatusInternalServerError, "internal_error", "failed to load article")
		return
	}

	// View counting is best effort. A failed bump should not break the read.
	if err := s.store.IncrementViewCount(r.Context(), id); err != nil {
		s.logger.Warn("Failed to increment view count",
			logging.WithFields(map[string]interface{}{"id": id, "error": err.Error()}))
	} else {
		article.ViewCount++
	}

	s.writeJSON(w, http.StatusOK, article)
}

func parseFilterParams(r *http.Request) models.FilterParams {
	query := r.URL.Query()

	limit := defaultArticleLimit
	if l := query.Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if limit > maxArticleLimit {
		limit = maxArticleLimit
	}

	offset := 0
	if o := query.Get("offset"); o != "" {
		if parsed, err := strconv.Atoi(o); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	return models.FilterParams{
		Limit:    limit,
		Offset:   offset,
		Category: query.Get("category"),
		Source:   query.Get("source"),
		Sort:     query.Get("sort"),
	}
}
