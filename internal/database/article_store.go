package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/mlawther/newsgrid/internal/models"
)

// pq error code for unique_violation
const uniqueViolation = "23505"

// ArticleStore persists normalized articles in Postgres.
type ArticleStore struct {
	db *DB
}

func NewArticleStore(db *DB) *ArticleStore {
	return &ArticleStore{db: db}
}

// Exists reports whether an article with this URL is already stored.
func (s *ArticleStore) Exists(ctx context.Context, articleURL string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM articles WHERE article_url = $1)`,
		articleURL,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check article exists: %w", err)
	}
	return exists, nil
}

// Insert stores one article and fills in its generated ID. A collision on the
// article_url unique index returns models.ErrDuplicateArticle.
func (s *ArticleStore) Insert(ctx context.Context, a *models.Article) error {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO articles (
			title, description, content, category, source,
			author, published_at, image_url, article_url,
			trending_score, view_count, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9,
			$10, $11, NOW(), NOW()
		)
		RETURNING id`,
		a.Title,
		nullString(a.Description),
		nullString(a.Content),
		a.Category,
		a.Source,
		nullString(a.Author),
		a.PublishedAt,
		nullString(a.ImageURL),
		a.ArticleURL,
		a.TrendingScore,
		a.ViewCount,
	).Scan(&a.ID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return models.ErrDuplicateArticle
		}
		return fmt.Errorf("insert article %q: %w", a.Title, err)
	}

	return nil
}

// Query returns articles matching the filters plus the total matching count
// before limit/offset.
func (s *ArticleStore) Query(ctx context.Context, params models.FilterParams) ([]models.Article, int, error) {
	whereParts := []string{"TRUE"}
	args := make([]interface{}, 0)
	argPos := 1

	if strings.TrimSpace(params.Category) != "" {
		whereParts = append(whereParts, fmt.Sprintf("LOWER(category) = LOWER($%d)", argPos))
		args = append(args, strings.TrimSpace(params.Category))
		argPos++
	}

	if strings.TrimSpace(params.Source) != "" {
		whereParts = append(whereParts, fmt.Sprintf("LOWER(source) = LOWER($%d)", argPos))
		args = append(args, strings.TrimSpace(params.Source))
		argPos++
	}

	whereSQL := strings.Join(whereParts, " AND ")

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM articles WHERE "+whereSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count articles: %w", err)
	}

	orderSQL := "ORDER BY published_at DESC"
	if strings.EqualFold(strings.TrimSpace(params.Sort), "trending") {
		orderSQL = "ORDER BY trending_score DESC, published_at DESC"
	}

	selectQuery := `
		SELECT
			id, title, description, content, category, source,
			author, published_at, image_url, article_url,
			trending_score, view_count, created_at, updated_at
		FROM articles
		WHERE ` + whereSQL + "\n\t\t" + orderSQL

	selectArgs := append([]interface{}{}, args...)
	if params.Limit > 0 {
		selectQuery += fmt.Sprintf("\n\t\tLIMIT $%d OFFSET $%d", argPos, argPos+1)
		selectArgs = append(selectArgs, params.Limit, params.Offset)
	}

	rows, err := s.db.QueryContext(ctx, selectQuery, selectArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("query articles: %w", err)
	}
	defer rows.Close()

	articles := make([]models.Article, 0)
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, 0, err
		}
		articles = append(articles, a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate articles: %w", err)
	}

	return articles, total, nil
}

// GetByID fetches one article, returning models.ErrArticleNotFound when absent.
func (s *ArticleStore) GetByID(ctx context.Context, id int64) (*models.Article, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT
			id, title, description, content, category, source,
			author, published_at, image_url, article_url,
			trending_score, view_count, created_at, updated_at
		FROM articles
		WHERE id = $1`,
		id,
	)

	a, err := scanArticle(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrArticleNotFound
		}
		return nil, err
	}
	return &a, nil
}

// IncrementViewCount bumps an article's view counter.
func (s *ArticleStore) IncrementViewCount(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE articles SET view_count = view_count + 1, updated_at = NOW() WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("increment view count: %w", err)
	}

	rows, _ := res.RowsAffected()
	if rows == 0 {
		return models.ErrArticleNotFound
	}
	return nil
}

// DeleteOlderThan removes articles published before the cutoff and returns
// how many were deleted.
func (s *ArticleStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM articles WHERE published_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete old articles: %w", err)
	}
	rows, _ := res.RowsAffected()
	return rows, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanArticle(row rowScanner) (models.Article, error) {
	var a models.Article
	var description, content, author, imageURL sql.NullString

	if err := row.Scan(
		&a.ID,
		&a.Title,
		&description,
		&content,
		&a.Category,
		&a.Source,
		&author,
		&a.PublishedAt,
		&imageURL,
		&a.ArticleURL,
		&a.TrendingScore,
		&a.ViewCount,
		&a.CreatedAt,
		&a.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return a, err
		}
		return a, fmt.Errorf("scan article: %w", err)
	}

	a.Description = description.String
	a.Content = content.String
	a.Author = author.String
	a.ImageURL = imageURL.String

	return a, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
