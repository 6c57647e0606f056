package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/papermill-forge/papermill/internal/config"
	"github.com/papermill-forge/papermill/pkg/database"
	"github.com/papermill-forge/papermill/pkg/document"
	"github.com/papermill-forge/papermill/pkg/models"
	"github.com/papermill-forge/papermill/pkg/search"
	bleveadapter "github.com/papermill-forge/papermill/pkg/search/adapters/bleve"
	meilisearchadapter "github.com/papermill-forge/papermill/pkg/search/adapters/meilisearch"
	"github.com/papermill-forge/papermill/pkg/store"
	localstore "github.com/papermill-forge/papermill/pkg/store/local"
	s3store "github.com/papermill-forge/papermill/pkg/store/s3"
)

func main() {
	configPath := flag.String("config", "config.hcl", "Path to configuration file")
	flag.Parse()

	logger := hclog.New(&hclog.LoggerOptions{
		Name:  "papermill-indexer",
		Level: hclog.Info,
	})

	logger.Info("starting papermill-indexer", "config", *configPath)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Info("received signal, shutting down", "signal", sig)
		cancel()
	}()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("indexer failed", "error", err)
		cancel()
		os.Exit(1)
	}

	logger.Info("papermill-indexer stopped gracefully")
}

func run(ctx context.Context, cfg *config.Config, logger hclog.Logger) error {
	db, err := database.Connect(databaseConfig(cfg.Database), logger)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	contentStore, err := initializeStore(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize content store: %w", err)
	}

	searchProvider, err := initializeSearchProvider(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize search provider: %w", err)
	}
	defer searchProvider.Close()

	coordinatorCfg := document.Config{}
	if cfg.Coordinator != nil {
		coordinatorCfg.StartVersion = cfg.Coordinator.StartVersion
		coordinatorCfg.TicketTTLHours = cfg.Coordinator.TicketTTLHours
		coordinatorCfg.ServerURL = cfg.Coordinator.ServerURL
		coordinatorCfg.DefaultStoreTier = cfg.Coordinator.DefaultStoreTier
		coordinatorCfg.SkipIndexingOnError = cfg.Coordinator.SkipIndexingOnError
	}

	coordinator, err := document.NewCoordinator(
		document.WithDatabase(db),
		document.WithStore(contentStore),
		document.WithSearch(searchProvider),
		document.WithLogger(logger.Named("coordinator")),
		document.WithConfig(coordinatorCfg),
	)
	if err != nil {
		return fmt.Errorf("failed to create coordinator: %w", err)
	}
	defer coordinator.Close()

	batchSize := 100
	interval := 30 * time.Second
	if cfg.Indexer != nil {
		if cfg.Indexer.BatchSize > 0 {
			batchSize = cfg.Indexer.BatchSize
		}
		if cfg.Indexer.IntervalSeconds > 0 {
			interval = time.Duration(cfg.Indexer.IntervalSeconds) * time.Second
		}
	}

	systemUser := &models.User{
		Username: "_system",
		Groups:   models.GroupAdmin,
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		indexed, failed := indexPending(ctx, coordinator, systemUser, batchSize, logger)
		if indexed > 0 || failed > 0 {
			logger.Info("indexing pass complete", "indexed", indexed, "failed", failed)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// indexPending runs one indexing pass over the documents queued for indexing.
func indexPending(ctx context.Context, coordinator *document.Coordinator, user *models.User, batchSize int, logger hclog.Logger) (int, int) {
	docs, err := coordinator.DocumentsToIndex(ctx, batchSize)
	if err != nil {
		logger.Error("failed to list documents to index", "error", err)
		return 0, 0
	}

	indexed, failed := 0, 0
	for _, doc := range docs {
		if ctx.Err() != nil {
			return indexed, failed
		}
		tx := &document.Transaction{User: user}
		if _, err := coordinator.Index(ctx, doc.ID, "", tx); err != nil {
			logger.Warn("failed to index document", "doc", doc.ID, "file", doc.FileName, "error", err)
			failed++
			continue
		}
		indexed++
	}
	return indexed, failed
}

func databaseConfig(cfg *config.Database) database.Config {
	return database.Config{
		Driver:   cfg.Driver,
		Host:     cfg.Host,
		Port:     cfg.Port,
		User:     cfg.User,
		Password: cfg.Password,
		DBName:   cfg.DBName,
		SSLMode:  cfg.SSLMode,
		Path:     cfg.Path,
	}
}

// initializeStore creates the content store based on config.
func initializeStore(ctx context.Context, cfg *config.Config, logger hclog.Logger) (store.Store, error) {
	switch cfg.Store.Provider {
	case "local":
		tiers := make(map[int]string, len(cfg.Store.Tiers))
		for _, tier := range cfg.Store.Tiers {
			tiers[tier.ID] = tier.Path
		}
		adapter, err := localstore.NewAdapter(&localstore.Config{
			Tiers:       tiers,
			DefaultTier: cfg.Store.DefaultTier,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize local store: %w", err)
		}
		logger.Info("initialized content store", "provider", "local", "tiers", len(tiers))
		return adapter, nil

	case "s3":
		if cfg.Store.S3 == nil {
			return nil, fmt.Errorf("s3 configuration is missing")
		}
		adapter, err := s3store.NewAdapter(ctx, &s3store.Config{
			Endpoint:    cfg.Store.S3.Endpoint,
			Region:      cfg.Store.S3.Region,
			Bucket:      cfg.Store.S3.Bucket,
			Prefix:      cfg.Store.S3.Prefix,
			AccessKey:   cfg.Store.S3.AccessKey,
			SecretKey:   cfg.Store.S3.SecretKey,
			DefaultTier: cfg.Store.DefaultTier,
		}, logger.Named("s3"))
		if err != nil {
			return nil, fmt.Errorf("failed to initialize s3 store: %w", err)
		}
		logger.Info("initialized content store", "provider", "s3", "bucket", cfg.Store.S3.Bucket)
		return adapter, nil

	default:
		return nil, fmt.Errorf("unsupported store provider: %s (supported: local, s3)", cfg.Store.Provider)
	}
}

// initializeSearchProvider creates the search provider based on config.
func initializeSearchProvider(cfg *config.Config, logger hclog.Logger) (search.Provider, error) {
	switch cfg.Search.Provider {
	case "bleve":
		if cfg.Search.Bleve == nil {
			return nil, fmt.Errorf("bleve configuration is missing")
		}
		provider, err := bleveadapter.NewAdapter(&bleveadapter.Config{
			IndexPath: cfg.Search.Bleve.IndexPath,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize bleve adapter: %w", err)
		}
		logger.Info("initialized search provider", "provider", "bleve")
		return provider, nil

	case "meilisearch":
		if cfg.Search.Meilisearch == nil {
			return nil, fmt.Errorf("meilisearch configuration is missing")
		}
		provider, err := meilisearchadapter.NewAdapter(&meilisearchadapter.Config{
			Host:      cfg.Search.Meilisearch.Host,
			APIKey:    cfg.Search.Meilisearch.APIKey,
			IndexName: cfg.Search.Meilisearch.IndexName,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize meilisearch adapter: %w", err)
		}
		logger.Info("initialized search provider", "provider", "meilisearch")
		return provider, nil

	default:
		return nil, fmt.Errorf("unsupported search provider: %s (supported: bleve, meilisearch)", cfg.Search.Provider)
	}
}
