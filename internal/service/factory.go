package service

import (
	"github.com/linearclockworks/shopify-serial--webhook/internal/cache"
	"github.com/linearclockworks/shopify-serial--webhook/internal/config"
	"github.com/linearclockworks/shopify-serial--webhook/internal/domain/serial"
	"github.com/linearclockworks/shopify-serial--webhook/internal/domain/tracking"
	"github.com/linearclockworks/shopify-serial--webhook/internal/idempotency"
	"github.com/linearclockworks/shopify-serial--webhook/internal/logger"
	"github.com/linearclockworks/shopify-serial--webhook/internal/sentry"
	"github.com/linearclockworks/shopify-serial--webhook/internal/shopify"
)

// ServiceParams holds common dependencies for services
type ServiceParams struct {
	Logger *logger.Logger
	Config *config.Configuration
	Sentry *sentry.Service
	Cache  cache.Cache

	// Repositories
	SerialRepo serial.Repository

	// Clients
	Shopify  shopify.Client
	Tracking tracking.Publisher

	Idempotency *idempotency.Generator
}

// Common service params
func NewServiceParams(
	logger *logger.Logger,
	config *config.Configuration,
	sentry *sentry.Service,
	cache cache.Cache,
	serialRepo serial.Repository,
	shopifyClient shopify.Client,
	trackingPublisher tracking.Publisher,
) ServiceParams {
	return ServiceParams{
		Logger:      logger,
		Config:      config,
		Sentry:      sentry,
		Cache:       cache,
		SerialRepo:  serialRepo,
		Shopify:     shopifyClient,
		Tracking:    trackingPublisher,
		Idempotency: idempotency.NewGenerator(),
	}
}
