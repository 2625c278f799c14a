package sync

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/mlawther/newsgrid/internal/aggregator"
	"github.com/mlawther/newsgrid/internal/feeds"
	"github.com/mlawther/newsgrid/internal/models"
	"github.com/mlawther/newsgrid/internal/sources"
	"github.com/mlawther/newsgrid/internal/testutil"
)

type fakeFetcher struct {
	source   feeds.FeedSource
	articles []models.Article
	err      error
}

func (f *fakeFetcher) Name() string             { return f.source.Source }
func (f *fakeFetcher) Source() feeds.FeedSource { return f.source }
func (f *fakeFetcher) Fetch(ctx context.Context) ([]models.Article, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.articles, nil
}

// failingStore rejects every insert.
type failingStore struct{}

func (failingStore) Exists(ctx context.Context, url string) (bool, error) { return false, nil }
func (failingStore) Insert(ctx context.Context, a *models.Article) error {
	return errors.New("constraint violation")
}

func article(title, url string) models.Article {
	return models.Article{Title: title, ArticleURL: url, PublishedAt: time.Now()}
}

func newService(t *testing.T, store ArticleStore, fetchers ...sources.Fetcher) (*Service, *feeds.Registry) {
	t.Helper()

	srcs := make([]feeds.FeedSource, len(fetchers))
	for i, f := range fetchers {
		srcs[i] = f.Source()
	}
	registry := feeds.NewRegistry(srcs)
	agg := aggregator.New(fetchers, testutil.NullLogger())
	return New(registry, agg, store, testutil.NullLogger()), registry
}

func TestRun_EndToEnd(t *testing.T) {
	// Feed A has 3 items, one sharing a URL with feed B. Feed B's malformed
	// third item never reaches us because the fetcher drops entries missing
	// required fields, so B contributes 2.
	feedA := &fakeFetcher{
		source: feeds.FeedSource{Source: "A", Category: "Tech", Enabled: true},
		articles: []models.Article{
			article("a1", "https://news.example/1"),
			article("a2", "https://news.example/2"),
			article("shared", "https://news.example/shared"),
		},
	}
	feedB := &fakeFetcher{
		source: feeds.FeedSource{Source: "B", Category: "Tech", Enabled: true},
		articles: []models.Article{
			article("b1", "https://news.example/3"),
			article("shared again", "https://news.example/shared"),
		},
	}

	store := NewMemoryStore()
	svc, _ := newService(t, store, feedA, feedB)

	outcome, err := svc.Run(context.Background(), DefaultOptions())
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	if outcome.SyncedCount != 4 {
		t.Errorf("SyncedCount = %d, want 4", outcome.SyncedCount)
	}
	if outcome.SkippedCount != 0 {
		t.Errorf("SkippedCount = %d, want 0", outcome.SkippedCount)
	}
	if len(outcome.FeedErrors) != 0 {
		t.Errorf("FeedErrors = %v, want none", outcome.FeedErrors)
	}
	if outcome.FeedsAttempted != 2 {
		t.Errorf("FeedsAttempted = %d, want 2", outcome.FeedsAttempted)
	}

	stored, total, err := store.Query(context.Background(), models.FilterParams{})
	if err != nil {
		t.Fatalf("Query() error: %v", err)
	}
	if total != 4 {
		t.Errorf("stored %d articles, want 4 unique URLs", total)
	}
	urls := make(map[string]bool)
	for _, a := range stored {
		if urls[a.ArticleURL] {
			t.Errorf("duplicate URL stored: %s", a.ArticleURL)
		}
		urls[a.ArticleURL] = true
	}
}

func TestRun_SkipsExistingArticles(t *testing.T) {
	feed := &fakeFetcher{
		source: feeds.FeedSource{Source: "A", Category: "Tech", Enabled: true},
		articles: []models.Article{
			article("old", "https://news.example/old"),
			article("new", "https://news.example/new"),
		},
	}

	store := NewMemoryStore()
	existing := article("old", "https://news.example/old")
	if err := store.Insert(context.Background(), &existing); err != nil {
		t.Fatalf("seeding store: %v", err)
	}

	svc, _ := newService(t, store, feed)

	outcome, err := svc.Run(context.Background(), DefaultOptions())
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	if outcome.SyncedCount != 1 {
		t.Errorf("SyncedCount = %d, want 1", outcome.SyncedCount)
	}
	if outcome.SkippedCount != 1 {
		t.Errorf("SkippedCount = %d, want 1", outcome.SkippedCount)
	}
}

func TestRun_SkipDuplicatesDisabled_DuplicateIsSkipNotError(t *testing.T) {
	feed := &fakeFetcher{
		source:   feeds.FeedSource{Source: "A", Category: "Tech", Enabled: true},
		articles: []models.Article{article("old", "https://news.example/old")},
	}

	store := NewMemoryStore()
	existing := article("old", "https://news.example/old")
	if err := store.Insert(context.Background(), &existing); err != nil {
		t.Fatalf("seeding store: %v", err)
	}

	svc, _ := newService(t, store, feed)

	outcome, err := svc.Run(context.Background(), Options{Limit: 10, SkipDuplicates: false})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	// Without the existence check the insert hits the uniqueness constraint,
	// which counts as a skip rather than a sync error.
	if outcome.SkippedCount != 1 {
		t.Errorf("SkippedCount = %d, want 1", outcome.SkippedCount)
	}
	if len(outcome.SyncErrors) != 0 {
		t.Errorf("SyncErrors = %v, want none", outcome.SyncErrors)
	}
}

func TestRun_FeedFailureDoesNotAbort(t *testing.T) {
	good := &fakeFetcher{
		source:   feeds.FeedSource{Source: "Good", Category: "Tech", Enabled: true},
		articles: []models.Article{article("ok", "https://news.example/ok")},
	}
	bad := &fakeFetcher{
		source: feeds.FeedSource{Source: "Bad", Category: "Tech", Enabled: true},
		err:    errors.New("unreachable"),
	}

	svc, _ := newService(t, NewMemoryStore(), good, bad)

	outcome, err := svc.Run(context.Background(), DefaultOptions())
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	if outcome.SyncedCount != 1 {
		t.Errorf("SyncedCount = %d, want 1", outcome.SyncedCount)
	}
	if len(outcome.FeedErrors) != 1 {
		t.Fatalf("FeedErrors length = %d, want 1", len(outcome.FeedErrors))
	}
	if outcome.FeedErrors[0].Source != "Bad" {
		t.Errorf("FeedErrors[0].Source = %q, want %q", outcome.FeedErrors[0].Source, "Bad")
	}
}

func TestRun_PersistenceErrorsRecordedPerArticle(t *testing.T) {
	feed := &fakeFetcher{
		source: feeds.FeedSource{Source: "A", Category: "Tech", Enabled: true},
		articles: []models.Article{
			article("one", "https://news.example/1"),
			article("two", "https://news.example/2"),
		},
	}

	svc, _ := newService(t, failingStore{}, feed)

	outcome, err := svc.Run(context.Background(), DefaultOptions())
	if err != nil {
		t.Fatalf("Run() should not fail outright on per-article errors: %v", err)
	}

	if outcome.SyncedCount != 0 {
		t.Errorf("SyncedCount = %d, want 0", outcome.SyncedCount)
	}
	if len(outcome.SyncErrors) != 2 {
		t.Fatalf("SyncErrors length = %d, want 2", len(outcome.SyncErrors))
	}
	if outcome.SyncErrors[0].Article != "one" {
		t.Errorf("SyncErrors[0].Article = %q, want %q", outcome.SyncErrors[0].Article, "one")
	}
}

func TestRun_LimitCapsTotal(t *testing.T) {
	articles := make([]models.Article, 30)
	for i := range articles {
		articles[i] = article("article", fmt.Sprintf("https://news.example/%d", i))
	}
	feed := &fakeFetcher{
		source:   feeds.FeedSource{Source: "A", Category: "Tech", Enabled: true},
		articles: articles,
	}

	store := NewMemoryStore()
	svc, _ := newService(t, store, feed)

	outcome, err := svc.Run(context.Background(), Options{Limit: 10, SkipDuplicates: true})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	// One feed, limit 10: the total cap is limit x feeds = 10.
	if outcome.TotalConsidered != 10 {
		t.Errorf("TotalConsidered = %d, want 10", outcome.TotalConsidered)
	}
	if outcome.SyncedCount != 10 {
		t.Errorf("SyncedCount = %d, want 10", outcome.SyncedCount)
	}
}

func TestRun_NoEnabledFeeds(t *testing.T) {
	registry := feeds.NewRegistry(nil)
	agg := aggregator.New(nil, testutil.NullLogger())
	svc := New(registry, agg, NewMemoryStore(), testutil.NullLogger())

	_, err := svc.Run(context.Background(), DefaultOptions())
	if !errors.Is(err, ErrNoFeeds) {
		t.Errorf("Run() error = %v, want ErrNoFeeds", err)
	}
}
