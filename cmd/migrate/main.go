package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/linearclockworks/shopify-serial--webhook/internal/config"
	"github.com/linearclockworks/shopify-serial--webhook/internal/dynamodb"
	"github.com/linearclockworks/shopify-serial--webhook/internal/logger"
	"github.com/linearclockworks/shopify-serial--webhook/internal/postgres"
	"github.com/linearclockworks/shopify-serial--webhook/internal/postgres/migrations"
	"github.com/linearclockworks/shopify-serial--webhook/internal/sentry"
	"github.com/linearclockworks/shopify-serial--webhook/internal/types"
)

func main() {
	// Parse command line flags
	dryRun := flag.Bool("dry-run", false, "List pending migrations without applying them")
	timeout := flag.Duration("timeout", 60*time.Second, "Overall migration timeout")
	flag.Parse()

	// Load configuration
	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	logger, err := logger.NewLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	switch cfg.Store.Backend {
	case types.StoreBackendPostgres:
		logger.Infow("Connecting to database", "host", cfg.Postgres.Host, "dbname", cfg.Postgres.DBName)
		db, err := postgres.NewDB(cfg, logger)
		if err != nil {
			logger.Fatalw("Failed to connect to postgres", "error", err)
		}
		defer db.Close()

		if *dryRun {
			pending, err := migrations.Pending(ctx, db)
			if err != nil {
				logger.Fatalw("Failed to list pending migrations", "error", err)
			}
			logger.Infow("Pending migrations", "count", len(pending), "names", pending)
			return
		}

		logger.Info("Running database migrations...")
		if err := migrations.Apply(ctx, db, logger); err != nil {
			logger.Fatalw("Failed to apply migrations", "error", err)
		}

	case types.StoreBackendDynamoDB:
		client, err := dynamodb.NewClient(cfg, logger)
		if err != nil {
			logger.Fatalw("Failed to create dynamodb client", "error", err)
		}
		if *dryRun {
			logger.Infow("Would ensure dynamodb tables",
				"counter_table", cfg.DynamoDB.CounterTable,
				"record_table", cfg.DynamoDB.RecordTable,
				"order_index", cfg.DynamoDB.OrderIndex,
			)
			return
		}

		store := dynamodb.NewSerialStore(client, cfg, logger, sentry.NewSentryService(cfg, logger))
		if err := store.EnsureTables(ctx); err != nil {
			logger.Fatalw("Failed to create dynamodb tables", "error", err)
		}

	default:
		logger.Fatalf("Unknown store backend: %s", cfg.Store.Backend)
	}

	logger.Info("Migrations completed successfully")
}
