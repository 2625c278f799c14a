package database_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mlawther/newsgrid/internal/database"
	"github.com/mlawther/newsgrid/internal/models"
	"github.com/mlawther/newsgrid/internal/testutil"
)

func testArticle(url string) models.Article {
	return models.Article{
		Title:         "Test Article",
		Description:   "A short description",
		Content:       "Longer cleaned content",
		Category:      "Tech",
		Source:        "TechCrunch",
		Author:        "Jane Roe",
		PublishedAt:   time.Now().Add(-2 * time.Hour).Truncate(time.Second),
		ImageURL:      "https://img.example/a.jpg",
		ArticleURL:    url,
		TrendingScore: 92,
	}
}

func TestArticleStore_InsertAndExists(t *testing.T) {
	db := testutil.NewTestDB(t)
	defer db.Close()
	ctx := context.Background()
	defer db.Cleanup(ctx)

	store := database.NewArticleStore(db.DB)

	exists, err := store.Exists(ctx, "https://news.example/insert-test")
	if err != nil {
		t.Fatalf("Exists() error: %v", err)
	}
	if exists {
		t.Error("Exists() = true before insert, want false")
	}

	a := testArticle("https://news.example/insert-test")
	if err := store.Insert(ctx, &a); err != nil {
		t.Fatalf("Insert() error: %v", err)
	}
	if a.ID == 0 {
		t.Error("Insert() should fill in the generated ID")
	}

	exists, err = store.Exists(ctx, "https://news.example/insert-test")
	if err != nil {
		t.Fatalf("Exists() error: %v", err)
	}
	if !exists {
		t.Error("Exists() = false after insert, want true")
	}
}

func TestArticleStore_Insert_DuplicateURL(t *testing.T) {
	db := testutil.NewTestDB(t)
	defer db.Close()
	ctx := context.Background()
	defer db.Cleanup(ctx)

	store := database.NewArticleStore(db.DB)

	a := testArticle("https://news.example/dup-test")
	if err := store.Insert(ctx, &a); err != nil {
		t.Fatalf("Insert() error: %v", err)
	}

	b := testArticle("https://news.example/dup-test")
	err := store.Insert(ctx, &b)
	if !errors.Is(err, models.ErrDuplicateArticle) {
		t.Errorf("Insert() duplicate error = %v, want ErrDuplicateArticle", err)
	}
}

func TestArticleStore_GetByID(t *testing.T) {
	db := testutil.NewTestDB(t)
	defer db.Close()
	ctx := context.Background()
	defer db.Cleanup(ctx)

	store := database.NewArticleStore(db.DB)

	a := testArticle("https://news.example/get-test")
	if err := store.Insert(ctx, &a); err != nil {
		t.Fatalf("Insert() error: %v", err)
	}

	got, err := store.GetByID(ctx, a.ID)
	if err != nil {
		t.Fatalf("GetByID() error: %v", err)
	}
	if got.Title != a.Title {
		t.Errorf("GetByID().Title = %q, want %q", got.Title, a.Title)
	}
	if got.ArticleURL != a.ArticleURL {
		t.Errorf("GetByID().ArticleURL = %q, want %q", got.ArticleURL, a.ArticleURL)
	}
	if got.Author != a.Author {
		t.Errorf("GetByID().Author = %q, want %q", got.Author, a.Author)
	}

	if _, err := store.GetByID(ctx, 999999999); !errors.Is(err, models.ErrArticleNotFound) {
		t.Errorf("GetByID(missing) error = %v, want ErrArticleNotFound", err)
	}
}

func TestArticleStore_NullableFieldsRoundTrip(t *testing.T) {
	db := testutil.NewTestDB(t)
	defer db.Close()
	ctx := context.Background()
	defer db.Cleanup(ctx)

	store := database.NewArticleStore(db.DB)

	a := testArticle("https://news.example/nulls-test")
	a.Description = ""
	a.Content = ""
	a.Author = ""
	a.ImageURL = ""
	if err := store.Insert(ctx, &a); err != nil {
		t.Fatalf("Insert() error: %v", err)
	}

	got, err := store.GetByID(ctx, a.ID)
	if err != nil {
		t.Fatalf("GetByID() error: %v", err)
	}
	if got.Description != "" || got.Content != "" || got.Author != "" || got.ImageURL != "" {
		t.Errorf("nullable fields should round-trip as empty strings, got %+v", got)
	}
}

func TestArticleStore_Query(t *testing.T) {
	db := testutil.NewTestDB(t)
	defer db.Close()
	ctx := context.Background()
	defer db.Cleanup(ctx)

	store := database.NewArticleStore(db.DB)

	base := time.Now().Truncate(time.Second)
	seed := []models.Article{
		{Title: "t1", Category: "Tech", Source: "TechCrunch", ArticleURL: "https://q.example/1", PublishedAt: base.Add(-1 * time.Hour), TrendingScore: 95},
		{Title: "t2", Category: "Tech", Source: "Wired", ArticleURL: "https://q.example/2", PublishedAt: base.Add(-2 * time.Hour), TrendingScore: 80},
		{Title: "t3", Category: "AI & ML", Source: "OpenAI", ArticleURL: "https://q.example/3", PublishedAt: base.Add(-3 * time.Hour), TrendingScore: 99},
	}
	for i := range seed {
		if err := store.Insert(ctx, &seed[i]); err != nil {
			t.Fatalf("seeding article %d: %v", i, err)
		}
	}

	t.Run("all newest first", func(t *testing.T) {
		got, total, err := store.Query(ctx, models.FilterParams{})
		if err != nil {
			t.Fatalf("Query() error: %v", err)
		}
		if total != 3 {
			t.Errorf("Query() total = %d, want 3", total)
		}
		if len(got) != 3 || got[0].Title != "t1" {
			t.Errorf("Query() should order newest first, got %v", titles(got))
		}
	})

	t.Run("category filter", func(t *testing.T) {
		got, total, err := store.Query(ctx, models.FilterParams{Category: "AI & ML"})
		if err != nil {
			t.Fatalf("Query() error: %v", err)
		}
		if total != 1 || len(got) != 1 || got[0].Title != "t3" {
			t.Errorf("Query(category) = %v (total %d), want just t3", titles(got), total)
		}
	})

	t.Run("source filter case-insensitive", func(t *testing.T) {
		got, _, err := store.Query(ctx, models.FilterParams{Source: "wired"})
		if err != nil {
			t.Fatalf("Query() error: %v", err)
		}
		if len(got) != 1 || got[0].Title != "t2" {
			t.Errorf("Query(source) = %v, want just t2", titles(got))
		}
	})

	t.Run("trending sort", func(t *testing.T) {
		got, _, err := store.Query(ctx, models.FilterParams{Sort: "trending"})
		if err != nil {
			t.Fatalf("Query() error: %v", err)
		}
		if len(got) != 3 || got[0].Title != "t3" {
			t.Errorf("Query(trending) should order by score, got %v", titles(got))
		}
	})

	t.Run("limit and offset", func(t *testing.T) {
		got, total, err := store.Query(ctx, models.FilterParams{Limit: 1, Offset: 1})
		if err != nil {
			t.Fatalf("Query() error: %v", err)
		}
		if total != 3 {
			t.Errorf("Query() total = %d, want 3 (count ignores pagination)", total)
		}
		if len(got) != 1 || got[0].Title != "t2" {
			t.Errorf("Query(limit 1 offset 1) = %v, want just t2", titles(got))
		}
	})
}

func TestArticleStore_IncrementViewCount(t *testing.T) {
	db := testutil.NewTestDB(t)
	defer db.Close()
	ctx := context.Background()
	defer db.Cleanup(ctx)

	store := database.NewArticleStore(db.DB)

	a := testArticle("https://news.example/views-test")
	if err := store.Insert(ctx, &a); err != nil {
		t.Fatalf("Insert() error: %v", err)
	}

	if err := store.IncrementViewCount(ctx, a.ID); err != nil {
		t.Fatalf("IncrementViewCount() error: %v", err)
	}
	if err := store.IncrementViewCount(ctx, a.ID); err != nil {
		t.Fatalf("IncrementViewCount() error: %v", err)
	}

	got, err := store.GetByID(ctx, a.ID)
	if err != nil {
		t.Fatalf("GetByID() error: %v", err)
	}
	if got.ViewCount != 2 {
		t.Errorf("ViewCount = %d, want 2", got.ViewCount)
	}

	if err := store.IncrementViewCount(ctx, 999999999); !errors.Is(err, models.ErrArticleNotFound) {
		t.Errorf("IncrementViewCount(missing) error = %v, want ErrArticleNotFound", err)
	}
}

func TestArticleStore_DeleteOlderThan(t *testing.T) {
	db := testutil.NewTestDB(t)
	defer db.Close()
	ctx := context.Background()
	defer db.Cleanup(ctx)

	store := database.NewArticleStore(db.DB)

	old := testArticle("https://news.example/old-test")
	old.PublishedAt = time.Now().Add(-48 * time.Hour)
	recent := testArticle("https://news.example/recent-test")
	recent.PublishedAt = time.Now().Add(-1 * time.Hour)

	for _, a := range []*models.Article{&old, &recent} {
		if err := store.Insert(ctx, a); err != nil {
			t.Fatalf("Insert() error: %v", err)
		}
	}

	removed, err := store.DeleteOlderThan(ctx, time.Now().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("DeleteOlderThan() error: %v", err)
	}
	if removed != 1 {
		t.Errorf("DeleteOlderThan() = %d, want 1", removed)
	}

	exists, err := store.Exists(ctx, recent.ArticleURL)
	if err != nil {
		t.Fatalf("Exists() error: %v", err)
	}
	if !exists {
		t.Error("recent article should survive the sweep")
	}
}

func titles(articles []models.Article) []string {
	out := make([]string, len(articles))
	for i, a := range articles {
		out[i] = a.Title
	}
	return out
}
