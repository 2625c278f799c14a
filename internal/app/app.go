package app

import (
	"context"
	"encoding/json"
	"time"

	"github.com/mlawther/newsgrid/internal/aggregator"
	"github.com/mlawther/newsgrid/internal/cache"
	"github.com/mlawther/newsgrid/internal/config"
	"github.com/mlawther/newsgrid/internal/database"
	"github.com/mlawther/newsgrid/internal/feeds"
	"github.com/mlawther/newsgrid/internal/httpapi"
	"github.com/mlawther/newsgrid/internal/logging"
	"github.com/mlawther/newsgrid/internal/models"
	"github.com/mlawther/newsgrid/internal/queue"
	"github.com/mlawther/newsgrid/internal/ratelimit"
	"github.com/mlawther/newsgrid/internal/sources"
	feedsync "github.com/mlawther/newsgrid/internal/sync"
)

// articleStore is the full persistence surface the app wires together.
// Both the PostgreSQL store and the in-memory fallback satisfy it.
type articleStore interface {
	Exists(ctx context.Context, articleURL string) (bool, error)
	Insert(ctx context.Context, article *models.Article) error
	Query(ctx context.Context, params models.FilterParams) ([]models.Article, int, error)
	GetByID(ctx context.Context, id int64) (*models.Article, error)
	IncrementViewCount(ctx context.Context, id int64) error
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// App holds all application dependencies
type App struct {
	Config     *config.Config
	Logger     *logging.Logger
	Cache      cache.Cache
	Registry   *feeds.Registry
	Aggregator *aggregator.Aggregator
	SyncSvc    *feedsync.Service
	Queue      *queue.Queue
	HTTPServer *httpapi.Server

	store articleStore
	db    *database.DB
}

// New creates and initializes a new App instance
func New(cfg *config.Config) (*App, error) {
	app := &App{Config: cfg}

	app.Logger = app.initLogger()
	app.Cache = app.initCache()
	app.Registry = app.initRegistry()

	limiter := ratelimit.New(cfg.Server.RateLimitDur)
	fetchers := sources.NewFetchers(app.Registry, limiter, sources.DefaultConfig())
	app.Aggregator = aggregator.New(fetchers, app.Logger)

	app.initStore()

	app.SyncSvc = feedsync.New(app.Registry, app.Aggregator, app.store, app.Logger)

	app.Queue = queue.New(cfg.Queue.Concurrency, app.Logger)
	app.Queue.RegisterHandler("sync", app.runSyncJob)

	app.HTTPServer = httpapi.New(app.store, app.Registry, app.SyncSvc, app.Queue, app.Cache, app.Logger)

	return app, nil
}

// Run starts the HTTP server and, when configured, the background sync loop.
func (a *App) Run(ctx context.Context) error {
	if a.Config.Sync.Interval > 0 {
		go a.runSyncLoop(ctx)
	}

	a.Logger.Info("Starting HTTP server", logging.WithField("addr", a.Config.Server.HTTPAddr))
	return a.HTTPServer.Start(a.Config.Server.HTTPAddr)
}

// Shutdown gracefully shuts down the application
func (a *App) Shutdown(ctx context.Context) error {
	if a.HTTPServer != nil {
		if err := a.HTTPServer.Shutdown(ctx); err != nil {
			a.Logger.Error("HTTP server shutdown error", logging.WithField("error", err.Error()))
		}
	}

	if a.Queue != nil {
		a.Queue.Stop()
	}

	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.Logger.Error("Database close error", logging.WithField("error", err.Error()))
		}
	}

	return nil
}

func (a *App) initLogger() *logging.Logger {
	level := logging.LevelInfo
	switch a.Config.Logging.Level {
	case "debug":
		level = logging.LevelDebug
	case "warn":
		level = logging.LevelWarn
	case "error":
		level = logging.LevelError
	}
	return logging.New(level)
}

func (a *App) initCache() cache.Cache {
	switch a.Config.Cache.Backend {
	case "redis":
		a.Logger.Info("Using Redis cache backend", logging.WithField("addr", a.Config.Cache.RedisAddr))
		redisCache, err := cache.NewRedis(cache.RedisConfig{
			Addr: a.Config.Cache.RedisAddr,
		}, a.Config.Cache.TTL)
		if err != nil {
			a.Logger.Error("Failed to connect to Redis, falling back to memory cache", logging.WithField("error", err.Error()))
			return cache.NewMemory(a.Config.Cache.TTL)
		}
		return redisCache
	default:
		a.Logger.Info("Using in-memory cache backend")
		return cache.NewMemory(a.Config.Cache.TTL)
	}
}

func (a *App) initRegistry() *feeds.Registry {
	path := a.Config.Sync.FeedsPath
	if path == "" {
		path = feeds.FindConfig()
	}
	if path == "" {
		a.Logger.Info("No feeds.json found, using default sources")
		return feeds.Default()
	}

	registry, err := feeds.Load(path)
	if err != nil {
		a.Logger.Warn("Failed to load feeds config, using defaults", logging.WithFields(map[string]interface{}{
			"path":  path,
			"error": err.Error(),
		}))
		return feeds.Default()
	}

	a.Logger.Info("Loaded feeds configuration", logging.WithFields(map[string]interface{}{
		"path":    path,
		"sources": len(registry.All()),
	}))
	return registry
}

func (a *App) initStore() {
	db, err := database.New(databaseConfig(a.Config.Database))
	if err != nil {
		a.Logger.Warn("Failed to connect to PostgreSQL, using in-memory article store", logging.WithField("error", err.Error()))
		a.store = feedsync.NewMemoryStore()
		return
	}

	if err := db.Migrate(context.Background()); err != nil {
		a.Logger.Warn("Failed to run migrations, using in-memory article store", logging.WithField("error", err.Error()))
		db.Close()
		a.store = feedsync.NewMemoryStore()
		return
	}

	a.Logger.Info("Connected to PostgreSQL")
	a.db = db
	a.store = database.NewArticleStore(db)
}

// databaseConfig overlays the flag-provided connection settings on the
// default pool sizing.
func databaseConfig(cfg config.DatabaseConfig) database.Config {
	dbConfig := database.DefaultConfig()
	dbConfig.Host = cfg.Host
	dbConfig.Port = cfg.Port
	dbConfig.User = cfg.User
	dbConfig.Password = cfg.Password
	dbConfig.Database = cfg.Database
	dbConfig.SSLMode = cfg.SSLMode
	return dbConfig
}

// syncOptionsFromPayload recovers sync options from a queue payload.
// In-process submissions carry feedsync.Options directly; a payload that
// crossed a JSON boundary arrives as a map.
func syncOptionsFromPayload(payload interface{}) (feedsync.Options, error) {
	switch p := payload.(type) {
	case feedsync.Options:
		return p, nil
	case map[string]interface{}:
		opts := feedsync.DefaultOptions()
		data, err := json.Marshal(p)
		if err != nil {
			return feedsync.DefaultOptions(), err
		}
		if err := json.Unmarshal(data, &opts); err != nil {
			return feedsync.DefaultOptions(), err
		}
		return opts, nil
	}
	return feedsync.DefaultOptions(), nil
}

// runSyncJob is the queue handler for "sync" jobs.
func (a *App) runSyncJob(ctx context.Context, payload interface{}) error {
	opts, err := syncOptionsFromPayload(payload)
	if err != nil {
		a.Logger.Warn("Malformed sync job payload, using default options",
			logging.WithField("error", err.Error()))
	}

	outcome, err := a.SyncSvc.Run(ctx, opts)
	if err != nil {
		return err
	}

	a.Cache.Clear()
	a.Logger.Info("Background sync finished", logging.WithFields(map[string]interface{}{
		"synced":  outcome.SyncedCount,
		"skipped": outcome.SkippedCount,
	}))
	return nil
}

func (a *App) runSyncLoop(ctx context.Context) {
	a.Logger.Info("Starting background sync loop", logging.WithField("interval", a.Config.Sync.Interval.String()))

	a.submitSync()

	ticker := time.NewTicker(a.Config.Sync.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.submitSync()
			a.sweepRetention(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (a *App) submitSync() {
	opts := feedsync.DefaultOptions()
	if a.Config.Sync.Limit > 0 {
		opts.Limit = a.Config.Sync.Limit
	}
	jobID := a.Queue.Submit("sync", opts, queue.SubmitOptions{MaxAttempts: a.Config.Queue.MaxAttempts})
	a.Logger.Debug("Submitted sync job", logging.WithField("jobId", jobID))
}

func (a *App) sweepRetention(ctx context.Context) {
	if a.Config.Sync.Retention <= 0 {
		return
	}

	cutoff := time.Now().Add(-a.Config.Sync.Retention)
	removed, err := a.store.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		a.Logger.Error("Retention sweep failed", logging.WithField("error", err.Error()))
		return
	}
	if removed > 0 {
		a.Cache.Clear()
		a.Logger.Info("Retention sweep removed old articles", logging.WithField("removed", removed))
	}
}
