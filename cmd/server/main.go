package main

import (
	"context"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"github.com/gin-gonic/gin"
	"github.com/linearclockworks/shopify-serial--webhook/internal/api"
	v1 "github.com/linearclockworks/shopify-serial--webhook/internal/api/v1"
	"github.com/linearclockworks/shopify-serial--webhook/internal/cache"
	"github.com/linearclockworks/shopify-serial--webhook/internal/config"
	"github.com/linearclockworks/shopify-serial--webhook/internal/domain/tracking"
	"github.com/linearclockworks/shopify-serial--webhook/internal/dynamodb"
	"github.com/linearclockworks/shopify-serial--webhook/internal/httpclient"
	"github.com/linearclockworks/shopify-serial--webhook/internal/logger"
	"github.com/linearclockworks/shopify-serial--webhook/internal/postgres"
	"github.com/linearclockworks/shopify-serial--webhook/internal/postgres/migrations"
	"github.com/linearclockworks/shopify-serial--webhook/internal/repository"
	"github.com/linearclockworks/shopify-serial--webhook/internal/sentry"
	"github.com/linearclockworks/shopify-serial--webhook/internal/service"
	"github.com/linearclockworks/shopify-serial--webhook/internal/shopify"
	"github.com/linearclockworks/shopify-serial--webhook/internal/svix"
	"github.com/linearclockworks/shopify-serial--webhook/internal/types"
	"github.com/linearclockworks/shopify-serial--webhook/internal/validator"
	"go.uber.org/fx"
)

func init() {
	// Set UTC timezone for the entire application
	time.Local = time.UTC
}

func main() {
	// Initialize Fx application
	var opts []fx.Option

	// Core dependencies
	opts = append(opts,
		fx.Provide(
			// Validator
			validator.NewValidator,

			// Config
			config.NewConfig,

			// Logger
			logger.NewLogger,

			// Monitoring
			sentry.NewSentryService,

			// Cache
			fx.Annotate(cache.NewInMemoryCache, fx.As(new(cache.Cache))),

			// Stores, only the configured backend connects
			postgres.NewDB,
			dynamodb.NewClient,

			// HTTP Client
			httpclient.NewDefaultClient,

			// External APIs
			shopify.NewClient,
			fx.Annotate(svix.NewClient, fx.As(new(tracking.Publisher))),

			// Repositories
			repository.NewSerialRepository,
		),
	)

	// Service layer
	opts = append(opts,
		fx.Provide(
			service.NewServiceParams,

			service.NewSerialService,
			service.NewTrackingService,
			service.NewOrderService,
		),
	)

	// API
	opts = append(opts,
		fx.Provide(
			provideHandlers,
			provideRouter,
		),
		fx.Invoke(
			sentry.RegisterHooks,
			prepareStores,
			startServer,
		),
	)

	app := fx.New(opts...)
	app.Run()
}

func provideHandlers(
	logger *logger.Logger,
	orderService service.OrderService,
) api.Handlers {
	return api.Handlers{
		Health:  v1.NewHealthHandler(logger),
		Webhook: v1.NewWebhookHandler(orderService, logger),
		Order:   v1.NewOrderHandler(orderService, logger),
	}
}

func provideRouter(handlers api.Handlers, cfg *config.Configuration, logger *logger.Logger) *gin.Engine {
	return api.NewRouter(handlers, cfg, logger)
}

// prepareStores applies pending migrations when postgres.auto_migrate is set and
// closes the database on shutdown
func prepareStores(lc fx.Lifecycle, cfg *config.Configuration, db *postgres.DB, log *logger.Logger) {
	if db == nil {
		return
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if !cfg.Postgres.AutoMigrate {
				return nil
			}
			return migrations.Apply(ctx, db, log)
		},
		OnStop: func(ctx context.Context) error {
			db.Close()
			return nil
		},
	})
}

func startServer(
	lc fx.Lifecycle,
	cfg *config.Configuration,
	r *gin.Engine,
	log *logger.Logger,
) {
	mode := cfg.Deployment.Mode
	if mode == "" {
		mode = types.ModeLocal
	}

	switch mode {
	case types.ModeLocal, types.ModeAPI:
		startAPIServer(lc, r, cfg, log)
	case types.ModeAWSLambdaAPI:
		startAWSLambdaAPI(lc, r)
	default:
		log.Fatalf("Unknown deployment mode: %s", mode)
	}
}

func startAPIServer(
	lc fx.Lifecycle,
	r *gin.Engine,
	cfg *config.Configuration,
	log *logger.Logger,
) {
	log.Info("Registering API server start hook")
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Infow("Starting API server...", "address", cfg.Server.Address)
			go func() {
				if err := r.Run(cfg.Server.Address); err != nil {
					log.Fatalf("Failed to start server: %v", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("Shutting down server...")
			return nil
		},
	})
}

// startAWSLambdaAPI hands the router to the Lambda runtime once every OnStart hook
// (migrations included) has completed
func startAWSLambdaAPI(lc fx.Lifecycle, r *gin.Engine) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ginLambda := ginadapter.New(r)
			go lambda.Start(ginLambda.ProxyWithContext)
			return nil
		},
	})
}
