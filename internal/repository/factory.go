package repository

import (
	"github.com/linearclockworks/shopify-serial--webhook/internal/config"
	"github.com/linearclockworks/shopify-serial--webhook/internal/domain/serial"
	"github.com/linearclockworks/shopify-serial--webhook/internal/dynamodb"
	ierr "github.com/linearclockworks/shopify-serial--webhook/internal/errors"
	"github.com/linearclockworks/shopify-serial--webhook/internal/logger"
	"github.com/linearclockworks/shopify-serial--webhook/internal/postgres"
	postgresRepo "github.com/linearclockworks/shopify-serial--webhook/internal/repository/postgres"
	"github.com/linearclockworks/shopify-serial--webhook/internal/sentry"
	"github.com/linearclockworks/shopify-serial--webhook/internal/types"
	"go.uber.org/fx"
)

type RepositoryParams struct {
	fx.In

	Config   *config.Configuration
	Logger   *logger.Logger
	Sentry   *sentry.Service
	DB       *postgres.DB     `optional:"true"`
	DynamoDB *dynamodb.Client `optional:"true"`
}

// NewSerialRepository returns the store selected by store.backend
func NewSerialRepository(p RepositoryParams) (serial.Repository, error) {
	switch p.Config.Store.Backend {
	case types.StoreBackendPostgres:
		if p.DB == nil {
			return nil, ierr.NewError("postgres store selected without a database").Mark(ierr.ErrSystem)
		}
		return postgresRepo.NewSerialRepository(p.DB, p.Logger, p.Sentry), nil
	case types.StoreBackendDynamoDB:
		if p.DynamoDB == nil {
			return nil, ierr.NewError("dynamodb store selected without a client").Mark(ierr.ErrSystem)
		}
		return dynamodb.NewSerialStore(p.DynamoDB, p.Config, p.Logger, p.Sentry), nil
	default:
		return nil, ierr.NewErrorf("unknown store backend %q", p.Config.Store.Backend).
			WithHint("store.backend must be postgres or dynamodb").
			Mark(ierr.ErrValidation)
	}
}
