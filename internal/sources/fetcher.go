package sources

import (
	"context"
	"time"

	"github.com/mlawther/newsgrid/internal/feeds"
	"github.com/mlawther/newsgrid/internal/models"
)

// Fetcher retrieves one feed and returns its normalized articles.
type Fetcher interface {
	Name() string
	Source() feeds.FeedSource
	Fetch(ctx context.Context) ([]models.Article, error)
}

// FetchResult carries one fetcher's outcome through the aggregator fan-out.
type FetchResult struct {
	Articles []models.Article
	Source   feeds.FeedSource
	Err      error
}

// FetcherConfig tunes fetch behavior shared by all fetchers.
type FetcherConfig struct {
	Timeout   time.Duration
	MaxItems  int
	UserAgent string
}

// DefaultConfig returns the fetcher settings used in production.
func DefaultConfig() FetcherConfig {
	return FetcherConfig{
		Timeout:   30 * time.Second,
		MaxItems:  50,
		UserAgent: "newsgrid/1.0",
	}
}
