package sources

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/mlawther/newsgrid/internal/feeds"
	"github.com/mlawther/newsgrid/internal/models"
	"github.com/mlawther/newsgrid/internal/normalize"
	"github.com/mlawther/newsgrid/internal/ratelimit"
)

// RSSFetcher retrieves one RSS/Atom feed and maps its entries to articles.
type RSSFetcher struct {
	source  feeds.FeedSource
	parser  *gofeed.Parser
	limiter *ratelimit.Limiter
	config  FetcherConfig
	now     func() time.Time
}

func NewRSSFetcher(source feeds.FeedSource, limiter *ratelimit.Limiter, config FetcherConfig) *RSSFetcher {
	parser := gofeed.NewParser()
	parser.UserAgent = config.UserAgent

	return &RSSFetcher{
		source:  source,
		parser:  parser,
		limiter: limiter,
		config:  config,
		now:     time.Now,
	}
}

func (f *RSSFetcher) Name() string {
	return f.source.Source
}

func (f *RSSFetcher) Source() feeds.FeedSource {
	return f.source
}

// Fetch retrieves and parses the feed document. Entries missing a title or a
// link are skipped silently; a network or parse failure returns a
// *FeedFetchError and no partial results.
func (f *RSSFetcher) Fetch(ctx context.Context) ([]models.Article, error) {
	if f.limiter != nil {
		f.limiter.Wait(f.source.URL)
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, f.config.Timeout)
	defer cancel()

	feed, err := f.parser.ParseURLWithContext(f.source.URL, ctxWithTimeout)
	if err != nil {
		return nil, &FeedFetchError{
			Source:  f.source.Source,
			URL:     f.source.URL,
			Timeout: isTimeout(err),
			Err:     err,
		}
	}

	fetchedAt := f.now()
	articles := make([]models.Article, 0, len(feed.Items))
	for i, item := range feed.Items {
		if f.config.MaxItems > 0 && i >= f.config.MaxItems {
			break
		}
		if item.Title == "" || item.Link == "" {
			continue
		}

		articles = append(articles, f.normalizeItem(item, fetchedAt))
	}

	return articles, nil
}

func (f *RSSFetcher) normalizeItem(item *gofeed.Item, fetchedAt time.Time) models.Article {
	publishedAt := fetchedAt
	if item.PublishedParsed != nil {
		publishedAt = *item.PublishedParsed
	}

	author := ""
	if item.Author != nil {
		author = item.Author.Name
	}

	// gofeed maps content:encoded to Item.Content and <description> to
	// Item.Description for RSS documents.
	description := normalize.CleanHTML(normalize.FirstText(item.Description, item.Content))
	content := normalize.CleanHTML(normalize.FirstText(item.Content, item.Description))

	enclosure := ""
	if len(item.Enclosures) > 0 {
		enclosure = item.Enclosures[0].URL
	}

	imageURL := normalize.FirstImage(
		mediaExtensionURL(item, "content"),
		mediaExtensionURL(item, "thumbnail"),
		enclosure,
		item.Content,
	)

	return models.Article{
		Title:         strings.TrimSpace(item.Title),
		Description:   description,
		Content:       content,
		Category:      f.source.Category,
		Source:        f.source.Source,
		Author:        author,
		PublishedAt:   publishedAt,
		ImageURL:      imageURL,
		ArticleURL:    item.Link,
		TrendingScore: normalize.TrendingScore(publishedAt, fetchedAt),
	}
}

// mediaExtensionURL pulls the url attribute from a media:<name> extension
// element, e.g. media:content or media:thumbnail.
func mediaExtensionURL(item *gofeed.Item, name string) string {
	media, ok := item.Extensions["media"]
	if !ok {
		return ""
	}
	for _, ext := range media[name] {
		if url := ext.Attrs["url"]; url != "" {
			return url
		}
	}
	return ""
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// NewFetchers builds one RSSFetcher per enabled source in the registry.
func NewFetchers(registry *feeds.Registry, limiter *ratelimit.Limiter, config FetcherConfig) []Fetcher {
	enabled := registry.Enabled()
	fetchers := make([]Fetcher, 0, len(enabled))
	for _, src := range enabled {
		fetchers = append(fetchers, NewRSSFetcher(src, limiter, config))
	}
	return fetchers
}
