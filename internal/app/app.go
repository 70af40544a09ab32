// Package app initializes and holds the long-lived services of the scout
// service, acting as a dependency injection container.
package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/creatorscout/creatorscout/internal/api"
	"github.com/creatorscout/creatorscout/internal/blob/gcs"
	bloblocal "github.com/creatorscout/creatorscout/internal/blob/local"
	blobmemory "github.com/creatorscout/creatorscout/internal/blob/memory"
	"github.com/creatorscout/creatorscout/internal/browser"
	"github.com/creatorscout/creatorscout/internal/clock/system"
	"github.com/creatorscout/creatorscout/internal/config"
	"github.com/creatorscout/creatorscout/internal/discovery"
	"github.com/creatorscout/creatorscout/internal/enrich"
	"github.com/creatorscout/creatorscout/internal/hash/sha256"
	uuidgen "github.com/creatorscout/creatorscout/internal/id/uuid"
	"github.com/creatorscout/creatorscout/internal/logging"
	pubmemory "github.com/creatorscout/creatorscout/internal/publisher/memory"
	"github.com/creatorscout/creatorscout/internal/publisher/pubsub"
	"github.com/creatorscout/creatorscout/internal/scout"
	"github.com/creatorscout/creatorscout/internal/snapshot"
	storememory "github.com/creatorscout/creatorscout/internal/store/memory"
	"github.com/creatorscout/creatorscout/internal/store/postgres"
	"github.com/creatorscout/creatorscout/internal/worker"
)

// combinedStore is satisfied by both persistence providers.
type combinedStore interface {
	scout.ChannelStore
	scout.JobStore
}

// App holds all shared, long-lived services. It is initialized once at
// startup and passed to the commands that need it.
type App struct {
	cfg    config.Config
	logger *zap.Logger

	pool     *browser.Pool
	registry *discovery.Registry
	crawler  *discovery.Crawler
	worker   *worker.Worker
	server   *api.Server
	idGen    scout.IDGenerator

	closers []func()
}

// New builds every service from the configuration, failing fast when a
// critical dependency cannot be initialized.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("initialize logger: %w", err)
	}

	a := &App{cfg: cfg, logger: logger}
	a.closers = append(a.closers, func() { _ = logger.Sync() })

	clock := system.New()
	a.idGen = uuidgen.NewUUIDGenerator()

	store, err := a.buildStore(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	publisher, err := a.buildPublisher(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	archiver, err := a.buildArchiver(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.pool = browser.NewPool(browser.Config{
		MaxSessions:    cfg.Browser.MaxSessions,
		AcquireTimeout: cfg.Browser.AcquireTimeout(),
		IdleTimeout:    cfg.Browser.IdleTimeout(),
		SweepInterval:  cfg.Browser.SweepInterval(),
		NavTimeout:     cfg.Browser.NavTimeout(),
		UserAgent:      cfg.Browser.UserAgent,
	}, logger)
	a.closers = append(a.closers, a.pool.CloseAll)

	enrichCfg := enrich.Config{
		MaxRecentItems:  cfg.Enrich.MaxRecentItems,
		MaxContactPages: cfg.Enrich.MaxContactPages,
		NavTimeout:      cfg.Enrich.NavTimeout(),
		PaceMin:         time.Duration(cfg.Enrich.PaceMinMs) * time.Millisecond,
		PaceMax:         time.Duration(cfg.Enrich.PaceMaxMs) * time.Millisecond,
	}
	harvester := enrich.NewContactHarvester(enrichCfg, cfg.Browser.UserAgent, logger)
	orchestrator := enrich.NewOrchestrator(
		browser.NewPooledVisitor(a.pool), harvester, archiver, enrichCfg, logger)

	a.registry = discovery.NewRegistry(clock)
	searchClient := discovery.NewBrowserSearchClient(a.pool, "discovery", cfg.Browser.NavTimeout())
	a.crawler = discovery.NewCrawler(searchClient, orchestrator, store, a.registry, clock, discovery.Config{
		MaxContinuations: cfg.Discovery.MaxContinuations,
		FilterMultiplier: cfg.Discovery.FilterMultiplier,
		BatchSize:        cfg.Discovery.BatchSize,
		FilterRetries:    cfg.Discovery.FilterRetries,
	}, logger)

	a.worker = worker.New(store, store, orchestrator, publisher, clock, worker.Config{
		DrainBatch:      cfg.Queue.DrainBatch,
		InterJobPause:   cfg.Queue.InterJobPause(),
		PollInterval:    cfg.Queue.PollInterval(),
		CompletionTopic: cfg.PubSub.TopicName,
	}, logger)

	a.server = api.NewServer(a.registry, a.crawler, store, store, a.worker,
		a.idGen, clock, cfg, logger)

	logger.Info("application services initialized",
		zap.String("store", cfg.Store.Provider),
		zap.Bool("pubsub", cfg.PubSub.Enabled),
		zap.Bool("snapshots", cfg.Snapshot.Enabled))
	return a, nil
}

func (a *App) buildStore(ctx context.Context) (combinedStore, error) {
	switch a.cfg.Store.Provider {
	case "", "memory":
		a.logger.Info("using in-memory store; data is lost on restart")
		return storememory.New(), nil
	case "postgres":
		a.logger.Info("connecting to PostgreSQL")
		store, err := postgres.New(ctx, postgres.Config{
			DSN:      a.cfg.Store.DSN,
			MaxConns: int32(a.cfg.Store.MaxOpenConns),
		})
		if err != nil {
			return nil, fmt.Errorf("initialize postgres store: %w", err)
		}
		a.closers = append(a.closers, store.Close)
		return store, nil
	default:
		return nil, fmt.Errorf("unknown store provider: %s", a.cfg.Store.Provider)
	}
}

func (a *App) buildPublisher(ctx context.Context) (scout.Publisher, error) {
	if !a.cfg.PubSub.Enabled {
		return pubmemory.New(), nil
	}
	a.logger.Info("connecting to Pub/Sub",
		zap.String("project", a.cfg.PubSub.ProjectID),
		zap.String("topic", a.cfg.PubSub.TopicName))
	pub, err := pubsub.New(ctx, a.cfg.PubSub.ProjectID, a.cfg.PubSub.TopicName)
	if err != nil {
		return nil, fmt.Errorf("initialize pubsub publisher: %w", err)
	}
	a.closers = append(a.closers, func() {
		if err := pub.Close(); err != nil {
			a.logger.Warn("pubsub publisher close failed", zap.Error(err))
		}
	})
	return pub, nil
}

// buildArchiver returns a nil Archiver when snapshots are disabled; the
// orchestrator treats nil as "do not archive".
func (a *App) buildArchiver(ctx context.Context) (enrich.Archiver, error) {
	if !a.cfg.Snapshot.Enabled {
		return nil, nil
	}
	var store scout.BlobStore
	switch a.cfg.Snapshot.Provider {
	case "", "memory":
		store = blobmemory.New()
	case "local":
		local, err := bloblocal.New(a.cfg.Snapshot.BaseDir)
		if err != nil {
			return nil, fmt.Errorf("initialize local snapshot store: %w", err)
		}
		store = local
	case "gcs":
		bucket, err := gcs.New(ctx, a.cfg.Snapshot.GCSBucket, a.logger)
		if err != nil {
			return nil, fmt.Errorf("initialize gcs snapshot store: %w", err)
		}
		a.closers = append(a.closers, func() {
			if err := bucket.Close(); err != nil {
				a.logger.Warn("gcs client close failed", zap.Error(err))
			}
		})
		store = bucket
	default:
		return nil, fmt.Errorf("unknown snapshot provider: %s", a.cfg.Snapshot.Provider)
	}
	return snapshot.New(store, sha256.New(), a.cfg.Snapshot.Prefix, a.logger), nil
}

// Config returns the loaded configuration.
func (a *App) Config() config.Config { return a.cfg }

// Logger returns the shared zap logger.
func (a *App) Logger() *zap.Logger { return a.logger }

// Server returns the HTTP API server.
func (a *App) Server() *api.Server { return a.server }

// Worker returns the enrichment queue worker.
func (a *App) Worker() *worker.Worker { return a.worker }

// Crawler returns the discovery crawler for one-shot runs.
func (a *App) Crawler() *discovery.Crawler { return a.crawler }

// Registry returns the discovery session registry.
func (a *App) Registry() *discovery.Registry { return a.registry }

// IDGenerator returns the session/job id generator.
func (a *App) IDGenerator() scout.IDGenerator { return a.idGen }

// Close shuts down all services in reverse initialization order. It is
// safe to call after a partial initialization failure.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
