// Package sync runs one ingestion pass: fetch all enabled feeds, deduplicate,
// and persist the unique articles through an ArticleStore.
package sync

import (
	"context"
	"errors"
	"fmt"

	"github.com/mlawther/newsgrid/internal/aggregator"
	"github.com/mlawther/newsgrid/internal/feeds"
	"github.com/mlawther/newsgrid/internal/logging"
	"github.com/mlawther/newsgrid/internal/models"
)

// ErrNoFeeds is returned when a run is requested with no enabled feeds. This
// is the only error a run surfaces directly; everything after fan-out begins
// is reported inside the SyncOutcome instead.
var ErrNoFeeds = errors.New("no feeds are enabled")

// ArticleStore is the persistence contract the sync run writes through.
// Exists-then-insert is not atomic here; the store is expected to enforce a
// uniqueness constraint on the article URL and return
// models.ErrDuplicateArticle when it fires.
type ArticleStore interface {
	Exists(ctx context.Context, articleURL string) (bool, error)
	Insert(ctx context.Context, article *models.Article) error
}

// PersistenceError reports one article the store rejected.
type PersistenceError struct {
	Article string
	Err     error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist article %q: %v", e.Article, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Options controls one sync run.
type Options struct {
	// Limit caps how many articles one run persists, as limit x feeds
	// attempted. The cap applies to the deduplicated total, not per feed.
	Limit int
	// SkipDuplicates checks the store for each URL before inserting.
	SkipDuplicates bool
}

// DefaultOptions returns the settings used when a caller supplies none.
func DefaultOptions() Options {
	return Options{Limit: 10, SkipDuplicates: true}
}

type Service struct {
	registry *feeds.Registry
	agg      *aggregator.Aggregator
	store    ArticleStore
	logger   *logging.Logger
}

func New(registry *feeds.Registry, agg *aggregator.Aggregator, store ArticleStore, logger *logging.Logger) *Service {
	return &Service{
		registry: registry,
		agg:      agg,
		store:    store,
		logger:   logger,
	}
}

// Run executes one sync pass and always returns a structured outcome unless
// no feed is enabled at all. Per-feed and per-article failures are contained
// in the outcome; callers inspect FeedErrors and SyncErrors.
func (s *Service) Run(ctx context.Context, opts Options) (*models.SyncOutcome, error) {
	enabled := s.registry.Enabled()
	if len(enabled) == 0 {
		return nil, ErrNoFeeds
	}

	s.logger.Info("Starting feed sync", logging.WithField("feeds", len(enabled)))

	fetched := s.agg.FetchAll(ctx)
	unique := aggregator.Deduplicate(fetched.Articles)

	s.logger.Info("Fetched feed articles", logging.WithFields(map[string]interface{}{
		"fetched": len(fetched.Articles),
		"unique":  len(unique),
		"errors":  len(fetched.FeedErrors),
	}))

	toSync := unique
	if opts.Limit > 0 {
		if limit := opts.Limit * len(enabled); len(toSync) > limit {
			toSync = toSync[:limit]
		}
	}

	outcome := &models.SyncOutcome{
		TotalConsidered: len(toSync),
		FeedsAttempted:  len(enabled),
		FeedErrors:      fetched.FeedErrors,
		SyncErrors:      make([]models.SyncError, 0),
	}

	for i := range toSync {
		article := &toSync[i]

		if opts.SkipDuplicates {
			exists, err := s.store.Exists(ctx, article.ArticleURL)
			if err != nil {
				s.recordSyncError(outcome, article, err)
				continue
			}
			if exists {
				outcome.SkippedCount++
				continue
			}
		}

		if err := s.store.Insert(ctx, article); err != nil {
			// A unique-constraint hit means another run got there first.
			// That is a skip, not a failure.
			if errors.Is(err, models.ErrDuplicateArticle) {
				outcome.SkippedCount++
				continue
			}
			s.recordSyncError(outcome, article, err)
			continue
		}

		outcome.SyncedCount++
	}

	s.logger.Info("Feed sync complete", logging.WithFields(map[string]interface{}{
		"synced":  outcome.SyncedCount,
		"skipped": outcome.SkippedCount,
		"errors":  len(outcome.SyncErrors),
	}))

	return outcome, nil
}

func (s *Service) recordSyncError(outcome *models.SyncOutcome, article *models.Article, err error) {
	perr := &PersistenceError{Article: article.Title, Err: err}
	s.logger.Error("Failed to sync article", logging.WithFields(map[string]interface{}{
		"article": article.Title,
		"error":   err.Error(),
	}))
	outcome.SyncErrors = append(outcome.SyncErrors, models.SyncError{
		Article: perr.Article,
		Error:   err.Error(),
	})
}
