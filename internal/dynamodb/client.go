package dynamodb

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/linearclockworks/shopify-serial--webhook/internal/config"
	ierr "github.com/linearclockworks/shopify-serial--webhook/internal/errors"
	"github.com/linearclockworks/shopify-serial--webhook/internal/logger"
	"github.com/linearclockworks/shopify-serial--webhook/internal/types"
)

// API is the subset of the DynamoDB client the serial store calls
type API interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
}

type Client struct {
	db API
}

// NewClient returns nil when the service runs on another store backend
func NewClient(cfg *config.Configuration, logger *logger.Logger) (*Client, error) {
	if cfg.Store.Backend != types.StoreBackendDynamoDB {
		return nil, nil
	}

	awsCfg, err := config.LoadAwsConfig(context.Background(), cfg.DynamoDB.Region)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Unable to load AWS SDK config").
			Mark(ierr.ErrSystem)
	}

	db := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.DynamoDB.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.DynamoDB.Endpoint)
		}
	})

	logger.Infow("dynamodb client ready",
		"region", cfg.DynamoDB.Region,
		"endpoint", cfg.DynamoDB.Endpoint,
		"counter_table", cfg.DynamoDB.CounterTable,
		"record_table", cfg.DynamoDB.RecordTable,
	)

	return &Client{db: db}, nil
}

// NewFromAPI wraps an existing client, e.g. a local fake in tests
func NewFromAPI(api API) *Client {
	return &Client{db: api}
}

func (c *Client) DB() API {
	return c.db
}
