// Package feeds holds the registry of syndication sources to poll.
package feeds

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// FeedSource describes one syndication endpoint. Sources are defined at
// startup and never mutated afterwards.
type FeedSource struct {
	URL      string `json:"url"`
	Category string `json:"category"`
	Source   string `json:"source"`
	Enabled  bool   `json:"enabled"`
}

type fileConfig struct {
	Sources []FeedSource `json:"sources"`
}

// Registry is a read-only collection of feed sources.
type Registry struct {
	sources []FeedSource
}

// NewRegistry creates a registry from an explicit source list.
func NewRegistry(sources []FeedSource) *Registry {
	return &Registry{sources: sources}
}

// Default returns the built-in source set used when no config file is found.
func Default() *Registry {
	return NewRegistry([]FeedSource{
		// AI & Machine Learning
		{URL: "https://openai.com/blog/rss/", Category: "AI & ML", Source: "OpenAI", Enabled: true},
		{URL: "https://www.marktechpost.com/feed/", Category: "AI & ML", Source: "MarkTechPost", Enabled: true},
		{URL: "https://www.artificialintelligence-news.com/feed/", Category: "AI & ML", Source: "AI News", Enabled: true},
		// Tech news
		{URL: "https://techcrunch.com/feed/", Category: "Tech", Source: "TechCrunch", Enabled: true},
		{URL: "https://www.theverge.com/rss/index.xml", Category: "Tech", Source: "The Verge", Enabled: true},
		{URL: "https://www.wired.com/feed/rss", Category: "Tech", Source: "Wired", Enabled: true},
	})
}

// Load reads a registry from a JSON config file. Unknown keys are rejected so
// a typo in the config surfaces at startup instead of being silently ignored.
func Load(path string) (*Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read feeds config: %w", err)
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()

	var cfg fileConfig
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse feeds config %s: %w", path, err)
	}

	for i, src := range cfg.Sources {
		if src.URL == "" {
			return nil, fmt.Errorf("feeds config %s: source %d has no url", path, i)
		}
		if src.Source == "" {
			return nil, fmt.Errorf("feeds config %s: source %d has no name", path, i)
		}
	}

	return NewRegistry(cfg.Sources), nil
}

// FindConfig searches for feeds.json in common locations. Returns an empty
// string when none is found.
func FindConfig() string {
	locations := []string{
		"feeds.json",
		"../feeds.json",
		"/app/feeds.json",
		"config/feeds.json",
	}

	if envPath := os.Getenv("FEEDS_CONFIG_PATH"); envPath != "" {
		locations = append([]string{envPath}, locations...)
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			absPath, _ := filepath.Abs(loc)
			return absPath
		}
	}

	return ""
}

// All returns every registered source, enabled or not.
func (r *Registry) All() []FeedSource {
	out := make([]FeedSource, len(r.sources))
	copy(out, r.sources)
	return out
}

// Enabled returns the sources that participate in sync runs.
func (r *Registry) Enabled() []FeedSource {
	out := make([]FeedSource, 0, len(r.sources))
	for _, s := range r.sources {
		if s.Enabled {
			out = append(out, s)
		}
	}
	return out
}

// ByCategory returns the enabled sources in one category.
func (r *Registry) ByCategory(category string) []FeedSource {
	out := make([]FeedSource, 0)
	for _, s := range r.sources {
		if s.Enabled && s.Category == category {
			out = append(out, s)
		}
	}
	return out
}
