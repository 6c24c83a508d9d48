package repository

import (
	"testing"

	"github.com/linearclockworks/shopify-serial--webhook/internal/config"
	"github.com/linearclockworks/shopify-serial--webhook/internal/dynamodb"
	ierr "github.com/linearclockworks/shopify-serial--webhook/internal/errors"
	"github.com/linearclockworks/shopify-serial--webhook/internal/logger"
	"github.com/linearclockworks/shopify-serial--webhook/internal/sentry"
	"github.com/linearclockworks/shopify-serial--webhook/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func params(backend types.StoreBackend) RepositoryParams {
	cfg := config.GetDefaultConfig()
	cfg.Store.Backend = backend
	log := logger.NewNopLogger()
	return RepositoryParams{Config: cfg, Logger: log, Sentry: sentry.NewSentryService(cfg, log)}
}

func TestNewSerialRepository(t *testing.T) {
	_, err := NewSerialRepository(params(types.StoreBackendPostgres))
	assert.True(t, ierr.Is(err, ierr.ErrSystem))

	p := params(types.StoreBackendDynamoDB)
	p.DynamoDB = dynamodb.NewFromAPI(nil)
	repo, err := NewSerialRepository(p)
	require.NoError(t, err)
	assert.IsType(t, &dynamodb.SerialStore{}, repo)

	_, err = NewSerialRepository(params("sqlite"))
	assert.True(t, ierr.IsValidation(err))
}
