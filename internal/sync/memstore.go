package sync

import (
	"context"
	"sort"
	"strings"
	stdsync "sync"
	"time"

	"github.com/mlawther/newsgrid/internal/models"
)

// MemoryStore is an in-memory ArticleStore. It backs the degraded mode when
// Postgres is unreachable and doubles as the store used in tests.
type MemoryStore struct {
	mu       stdsync.Mutex
	byURL    map[string]*models.Article
	articles []*models.Article
	nextID   int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byURL:  make(map[string]*models.Article),
		nextID: 1,
	}
}

func (m *MemoryStore) Exists(ctx context.Context, articleURL string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.byURL[articleURL]
	return ok, nil
}

func (m *MemoryStore) Insert(ctx context.Context, article *models.Article) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byURL[article.ArticleURL]; ok {
		return models.ErrDuplicateArticle
	}

	stored := *article
	stored.ID = m.nextID
	m.nextID++
	now := time.Now()
	stored.CreatedAt = now
	stored.UpdatedAt = now

	m.byURL[stored.ArticleURL] = &stored
	m.articles = append(m.articles, &stored)

	article.ID = stored.ID
	return nil
}

func (m *MemoryStore) Query(ctx context.Context, params models.FilterParams) ([]models.Article, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	filtered := make([]models.Article, 0, len(m.articles))
	for _, a := range m.articles {
		if params.Category != "" && !strings.EqualFold(a.Category, params.Category) {
			continue
		}
		if params.Source != "" && !strings.EqualFold(a.Source, params.Source) {
			continue
		}
		filtered = append(filtered, *a)
	}

	switch params.Sort {
	case "trending":
		sort.SliceStable(filtered, func(i, j int) bool {
			return filtered[i].TrendingScore > filtered[j].TrendingScore
		})
	default:
		sort.SliceStable(filtered, func(i, j int) bool {
			return filtered[i].PublishedAt.After(filtered[j].PublishedAt)
		})
	}

	total := len(filtered)

	if params.Offset > 0 {
		if params.Offset >= len(filtered) {
			filtered = filtered[:0]
		} else {
			filtered = filtered[params.Offset:]
		}
	}
	if params.Limit > 0 && len(filtered) > params.Limit {
		filtered = filtered[:params.Limit]
	}

	return filtered, total, nil
}

func (m *MemoryStore) GetByID(ctx context.Context, id int64) (*models.Article, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, a := range m.articles {
		if a.ID == id {
			copied := *a
			return &copied, nil
		}
	}
	return nil, models.ErrArticleNotFound
}

func (m *MemoryStore) IncrementViewCount(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, a := range m.articles {
		if a.ID == id {
			a.ViewCount++
			return nil
		}
	}
	return models.ErrArticleNotFound
}

func (m *MemoryStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.articles[:0]
	var removed int64
	for _, a := range m.articles {
		if a.PublishedAt.Before(cutoff) {
			delete(m.byURL, a.ArticleURL)
			removed++
			continue
		}
		kept = append(kept, a)
	}
	m.articles = kept

	return removed, nil
}
