package models

import (
	"errors"
	"time"
)

// ErrArticleNotFound is returned by stores when no article matches.
var ErrArticleNotFound = errors.New("article not found")

// ErrDuplicateArticle is returned by stores when an insert collides with an
// existing article on its URL. Callers treat this as "skip", not as a failure.
var ErrDuplicateArticle = errors.New("article already exists")

// Article is a normalized news article flowing from feed ingestion to storage.
// ArticleURL is the identity key: two articles with the same URL are the same
// story, no matter which feed delivered them.
type Article struct {
	ID            int64     `json:"id,omitempty"`
	Title         string    `json:"title"`
	Description   string    `json:"description,omitempty"`
	Content       string    `json:"content,omitempty"`
	Category      string    `json:"category"`
	Source        string    `json:"source"`
	Author        string    `json:"author,omitempty"`
	PublishedAt   time.Time `json:"publishedAt"`
	ImageURL      string    `json:"imageUrl,omitempty"`
	ArticleURL    string    `json:"articleUrl"`
	TrendingScore int       `json:"trendingScore"`
	ViewCount     int       `json:"viewCount"`
	CreatedAt     time.Time `json:"createdAt,omitempty"`
	UpdatedAt     time.Time `json:"updatedAt,omitempty"`
}

// FilterParams is the closed set of options recognized by article queries.
type FilterParams struct {
	Limit    int    `json:"limit"`
	Offset   int    `json:"offset"`
	Category string `json:"category"`
	Source   string `json:"source"`
	Sort     string `json:"sort"` // "newest" (default) or "trending"
}

// FeedError reports one feed that failed during a sync run.
type FeedError struct {
	Source string `json:"source"`
	Error  string `json:"error"`
}

// SyncError reports one article that could not be persisted.
type SyncError struct {
	Article string `json:"article"`
	Error   string `json:"error"`
}

// SyncOutcome is the aggregate result of one sync run. A run that completes
// always produces an outcome; callers inspect FeedErrors and SyncErrors to
// decide whether it was fully successful.
type SyncOutcome struct {
	SyncedCount     int         `json:"syncedCount"`
	SkippedCount    int         `json:"skippedCount"`
	TotalConsidered int         `json:"totalConsidered"`
	FeedsAttempted  int         `json:"feedsAttempted"`
	FeedErrors      []FeedError `json:"feedErrors"`
	SyncErrors      []SyncError `json:"syncErrors"`
}
