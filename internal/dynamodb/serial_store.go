package dynamodb

import (
	"context"
	"sort"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/linearclockworks/shopify-serial--webhook/internal/config"
	"github.com/linearclockworks/shopify-serial--webhook/internal/domain/serial"
	ierr "github.com/linearclockworks/shopify-serial--webhook/internal/errors"
	"github.com/linearclockworks/shopify-serial--webhook/internal/logger"
	"github.com/linearclockworks/shopify-serial--webhook/internal/sentry"
)

const spanOp = "db.dynamodb"

// SerialStore keeps counters and records in two DynamoDB tables.
// Counters rely on UpdateItem's atomic add, records on a conditional transactional put
// that also claims the rendered number.
type SerialStore struct {
	client       *Client
	counterTable string
	recordTable  string
	orderIndex   string
	logger       *logger.Logger
	sentry       *sentry.Service
}

type counterItem struct {
	Name      string    `dynamodbav:"name"`
	Value     int64     `dynamodbav:"value"`
	UpdatedAt time.Time `dynamodbav:"updated_at"`
}

type recordItem struct {
	PK        string    `dynamodbav:"pk"`
	ID        string    `dynamodbav:"id"`
	Line      string    `dynamodbav:"line"`
	Reference string    `dynamodbav:"reference"`
	OrderID   string    `dynamodbav:"order_id,omitempty"`
	Value     int64     `dynamodbav:"value"`
	Number    string    `dynamodbav:"number"`
	CreatedAt time.Time `dynamodbav:"created_at"`
}

// numberItem claims a rendered number across every line. It has no order_id, so the
// order index never returns it.
type numberItem struct {
	PK        string    `dynamodbav:"pk"`
	Number    string    `dynamodbav:"number"`
	Line      string    `dynamodbav:"line"`
	Reference string    `dynamodbav:"reference"`
	CreatedAt time.Time `dynamodbav:"created_at"`
}

func (i *recordItem) toRecord() *serial.Record {
	return &serial.Record{
		ID:        i.ID,
		Line:      i.Line,
		Reference: i.Reference,
		OrderID:   i.OrderID,
		Value:     i.Value,
		Number:    i.Number,
		CreatedAt: i.CreatedAt,
	}
}

func NewSerialStore(client *Client, cfg *config.Configuration, logger *logger.Logger, sentry *sentry.Service) *SerialStore {
	return &SerialStore{
		client:       client,
		counterTable: cfg.DynamoDB.CounterTable,
		recordTable:  cfg.DynamoDB.RecordTable,
		orderIndex:   cfg.DynamoDB.OrderIndex,
		logger:       logger,
		sentry:       sentry,
	}
}

func (s *SerialStore) Get(ctx context.Context, line, reference string) (*serial.Record, error) {
	span, ctx := s.sentry.StartDBSpan(ctx, spanOp, "serial.get", map[string]interface{}{"line": line})
	defer sentry.FinishSpan(span)

	out, err := s.client.db.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.recordTable),
		Key: map[string]ddbtypes.AttributeValue{
			"pk": &ddbtypes.AttributeValueMemberS{Value: serial.Key(line, reference)},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, classify(err, "get serial record")
	}
	if len(out.Item) == 0 {
		return nil, ierr.NewError("serial record not found").
			WithHint("No serial was issued for this order reference").
			Mark(ierr.ErrNotFound)
	}

	var item recordItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to decode serial record").
			Mark(ierr.ErrDatabase)
	}
	return item.toRecord(), nil
}

func (s *SerialStore) NextValue(ctx context.Context, counter string, start int64) (int64, error) {
	span, ctx := s.sentry.StartDBSpan(ctx, spanOp, "serial.next_value", map[string]interface{}{"counter": counter})
	defer sentry.FinishSpan(span)

	out, err := s.client.db.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.counterTable),
		Key: map[string]ddbtypes.AttributeValue{
			"name": &ddbtypes.AttributeValueMemberS{Value: counter},
		},
		UpdateExpression: aws.String("SET #v = if_not_exists(#v, :base) + :one, #u = :now"),
		ExpressionAttributeNames: map[string]string{
			"#v": "value",
			"#u": "updated_at",
		},
		ExpressionAttributeValues: map[string]ddbtypes.AttributeValue{
			":base": &ddbtypes.AttributeValueMemberN{Value: strconv.FormatInt(start-1, 10)},
			":one":  &ddbtypes.AttributeValueMemberN{Value: "1"},
			":now":  &ddbtypes.AttributeValueMemberS{Value: time.Now().UTC().Format(time.RFC3339Nano)},
		},
		ReturnValues: ddbtypes.ReturnValueUpdatedNew,
	})
	if err != nil {
		return 0, classify(err, "reserve serial value")
	}

	var item counterItem
	if err := attributevalue.UnmarshalMap(out.Attributes, &item); err != nil {
		return 0, ierr.WithError(err).
			WithHint("Failed to decode serial counter").
			Mark(ierr.ErrDatabase)
	}
	return item.Value, nil
}

func (s *SerialStore) CreateIfAbsent(ctx context.Context, rec *serial.Record) error {
	span, ctx := s.sentry.StartDBSpan(ctx, spanOp, "serial.create", map[string]interface{}{"line": rec.Line})
	defer sentry.FinishSpan(span)

	item, err := attributevalue.MarshalMap(&recordItem{
		PK:        serial.Key(rec.Line, rec.Reference),
		ID:        rec.ID,
		Line:      rec.Line,
		Reference: rec.Reference,
		OrderID:   rec.OrderID,
		Value:     rec.Value,
		Number:    rec.Number,
		CreatedAt: rec.CreatedAt,
	})
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to encode serial record").
			Mark(ierr.ErrSystem)
	}

	guard, err := attributevalue.MarshalMap(&numberItem{
		PK:        serial.NumberKey(rec.Number),
		Number:    rec.Number,
		Line:      rec.Line,
		Reference: rec.Reference,
		CreatedAt: rec.CreatedAt,
	})
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to encode serial number claim").
			Mark(ierr.ErrSystem)
	}

	s.logger.Debugw("writing serial record to dynamodb",
		"line", rec.Line,
		"reference", rec.Reference,
		"number", rec.Number,
	)

	// The record and its number claim are written together; either condition failing
	// cancels both.
	_, err = s.client.db.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []ddbtypes.TransactWriteItem{
			{
				Put: &ddbtypes.Put{
					TableName:           aws.String(s.recordTable),
					Item:                item,
					ConditionExpression: aws.String("attribute_not_exists(pk)"),
				},
			},
			{
				Put: &ddbtypes.Put{
					TableName:           aws.String(s.recordTable),
					Item:                guard,
					ConditionExpression: aws.String("attribute_not_exists(pk)"),
				},
			},
		},
	})
	return classifyCreate(err)
}

func (s *SerialStore) ListByOrder(ctx context.Context, orderID string) ([]*serial.Record, error) {
	span, ctx := s.sentry.StartDBSpan(ctx, spanOp, "serial.list_by_order", map[string]interface{}{"order_id": orderID})
	defer sentry.FinishSpan(span)

	records := make([]*serial.Record, 0)
	var startKey map[string]ddbtypes.AttributeValue
	for {
		out, err := s.client.db.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(s.recordTable),
			IndexName:              aws.String(s.orderIndex),
			KeyConditionExpression: aws.String("order_id = :oid"),
			ExpressionAttributeValues: map[string]ddbtypes.AttributeValue{
				":oid": &ddbtypes.AttributeValueMemberS{Value: orderID},
			},
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, classify(err, "list serial records")
		}

		var items []recordItem
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &items); err != nil {
			return nil, ierr.WithError(err).
				WithHint("Failed to decode serial records").
				Mark(ierr.ErrDatabase)
		}
		for i := range items {
			records = append(records, items[i].toRecord())
		}

		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		startKey = out.LastEvaluatedKey
	}

	sort.SliceStable(records, func(i, j int) bool {
		if !records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].CreatedAt.Before(records[j].CreatedAt)
		}
		return records[i].Value < records[j].Value
	})
	return records, nil
}

// EnsureTables creates the counter and record tables when they do not exist yet
func (s *SerialStore) EnsureTables(ctx context.Context) error {
	inputs := []*dynamodb.CreateTableInput{
		{
			TableName:   aws.String(s.counterTable),
			BillingMode: ddbtypes.BillingModePayPerRequest,
			AttributeDefinitions: []ddbtypes.AttributeDefinition{
				{AttributeName: aws.String("name"), AttributeType: ddbtypes.ScalarAttributeTypeS},
			},
			KeySchema: []ddbtypes.KeySchemaElement{
				{AttributeName: aws.String("name"), KeyType: ddbtypes.KeyTypeHash},
			},
		},
		{
			TableName:   aws.String(s.recordTable),
			BillingMode: ddbtypes.BillingModePayPerRequest,
			AttributeDefinitions: []ddbtypes.AttributeDefinition{
				{AttributeName: aws.String("pk"), AttributeType: ddbtypes.ScalarAttributeTypeS},
				{AttributeName: aws.String("order_id"), AttributeType: ddbtypes.ScalarAttributeTypeS},
			},
			KeySchema: []ddbtypes.KeySchemaElement{
				{AttributeName: aws.String("pk"), KeyType: ddbtypes.KeyTypeHash},
			},
			GlobalSecondaryIndexes: []ddbtypes.GlobalSecondaryIndex{
				{
					IndexName: aws.String(s.orderIndex),
					KeySchema: []ddbtypes.KeySchemaElement{
						{AttributeName: aws.String("order_id"), KeyType: ddbtypes.KeyTypeHash},
					},
					Projection: &ddbtypes.Projection{ProjectionType: ddbtypes.ProjectionTypeAll},
				},
			},
		},
	}

	for _, input := range inputs {
		_, err := s.client.db.CreateTable(ctx, input)
		var inUse *ddbtypes.ResourceInUseException
		if ierr.As(err, &inUse) {
			s.logger.Infow("dynamodb table already exists", "table", aws.ToString(input.TableName))
			continue
		}
		if err != nil {
			return classify(err, "create table")
		}
		s.logger.Infow("created dynamodb table", "table", aws.ToString(input.TableName))
	}
	return nil
}
