// Package aggregator fans fetches out across all feeds and merges the results.
package aggregator

import (
	"context"
	"sync"

	"github.com/mlawther/newsgrid/internal/logging"
	"github.com/mlawther/newsgrid/internal/models"
	"github.com/mlawther/newsgrid/internal/sources"
)

type Aggregator struct {
	fetchers []sources.Fetcher
	logger   *logging.Logger
}

func New(fetchers []sources.Fetcher, logger *logging.Logger) *Aggregator {
	return &Aggregator{
		fetchers: fetchers,
		logger:   logger,
	}
}

// FetchOutcome is the merged result of one fan-out: every successful feed's
// articles concatenated in no guaranteed order, plus one entry per failed feed.
type FetchOutcome struct {
	Articles   []models.Article
	FeedErrors []models.FeedError
}

// FeedCount returns how many fetchers the aggregator drives.
func (a *Aggregator) FeedCount() int {
	return len(a.fetchers)
}

// FetchAll invokes every fetcher concurrently and waits for all outcomes.
// One feed's failure never aborts the others; it is recorded in FeedErrors
// and the batch continues.
func (a *Aggregator) FetchAll(ctx context.Context) FetchOutcome {
	var wg sync.WaitGroup
	results := make(chan sources.FetchResult, len(a.fetchers))

	for _, fetcher := range a.fetchers {
		wg.Add(1)
		go func(f sources.Fetcher) {
			defer wg.Done()

			articles, err := f.Fetch(ctx)
			results <- sources.FetchResult{
				Articles: articles,
				Source:   f.Source(),
				Err:      err,
			}
		}(fetcher)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	outcome := FetchOutcome{
		Articles:   make([]models.Article, 0),
		FeedErrors: make([]models.FeedError, 0),
	}

	for result := range results {
		if result.Err != nil {
			a.logger.Warn("Failed to fetch from feed", logging.WithFields(map[string]interface{}{
				"source": result.Source.Source,
				"error":  result.Err.Error(),
			}))
			outcome.FeedErrors = append(outcome.FeedErrors, models.FeedError{
				Source: result.Source.Source,
				Error:  result.Err.Error(),
			})
			continue
		}

		a.logger.Info("Fetched articles from feed", logging.WithFields(map[string]interface{}{
			"source": result.Source.Source,
			"count":  len(result.Articles),
		}))
		outcome.Articles = append(outcome.Articles, result.Articles...)
	}

	return outcome
}

// Deduplicate removes repeat articles by URL, keeping the first occurrence.
// The same story syndicated by two feeds carries the same canonical link, so
// the URL is the identity key.
func Deduplicate(articles []models.Article) []models.Article {
	seen := make(map[string]bool, len(articles))
	unique := make([]models.Article, 0, len(articles))

	for _, a := range articles {
		if seen[a.ArticleURL] {
			continue
		}
		seen[a.ArticleURL] = true
		unique = append(unique, a)
	}

	return unique
}
