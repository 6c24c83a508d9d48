package dynamodb

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"
	"github.com/linearclockworks/shopify-serial--webhook/internal/config"
	"github.com/linearclockworks/shopify-serial--webhook/internal/domain/serial"
	ierr "github.com/linearclockworks/shopify-serial--webhook/internal/errors"
	"github.com/linearclockworks/shopify-serial--webhook/internal/logger"
	"github.com/linearclockworks/shopify-serial--webhook/internal/sentry"
	"github.com/stretchr/testify/suite"
)

// fakeAPI emulates the conditional semantics the store depends on
type fakeAPI struct {
	mu       sync.Mutex
	counters map[string]int64
	records  map[string]map[string]ddbtypes.AttributeValue
	tables   map[string]bool
	failWith error
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		counters: make(map[string]int64),
		records:  make(map[string]map[string]ddbtypes.AttributeValue),
		tables:   make(map[string]bool),
	}
}

func stringAttr(av ddbtypes.AttributeValue) string {
	if s, ok := av.(*ddbtypes.AttributeValueMemberS); ok {
		return s.Value
	}
	return ""
}

func (f *fakeAPI) GetItem(ctx context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	return &dynamodb.GetItemOutput{Item: f.records[stringAttr(in.Key["pk"])]}, nil
}

func (f *fakeAPI) TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, _ ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}

	reasons := make([]ddbtypes.CancellationReason, len(in.TransactItems))
	canceled := false
	for i, ti := range in.TransactItems {
		reasons[i] = ddbtypes.CancellationReason{Code: aws.String("None")}
		pk := stringAttr(ti.Put.Item["pk"])
		if _, exists := f.records[pk]; exists && aws.ToString(ti.Put.ConditionExpression) == "attribute_not_exists(pk)" {
			reasons[i] = ddbtypes.CancellationReason{Code: aws.String("ConditionalCheckFailed")}
			canceled = true
		}
	}
	if canceled {
		return nil, &ddbtypes.TransactionCanceledException{
			Message:             aws.String("Transaction cancelled"),
			CancellationReasons: reasons,
		}
	}
	for _, ti := range in.TransactItems {
		f.records[stringAttr(ti.Put.Item["pk"])] = ti.Put.Item
	}
	return &dynamodb.TransactWriteItemsOutput{}, nil
}

func (f *fakeAPI) UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	name := stringAttr(in.Key["name"])
	current, ok := f.counters[name]
	if !ok {
		base, _ := strconv.ParseInt(in.ExpressionAttributeValues[":base"].(*ddbtypes.AttributeValueMemberN).Value, 10, 64)
		current = base
	}
	current++
	f.counters[name] = current
	return &dynamodb.UpdateItemOutput{
		Attributes: map[string]ddbtypes.AttributeValue{
			"value":      &ddbtypes.AttributeValueMemberN{Value: strconv.FormatInt(current, 10)},
			"updated_at": in.ExpressionAttributeValues[":now"],
		},
	}, nil
}

func (f *fakeAPI) Query(ctx context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	orderID := stringAttr(in.ExpressionAttributeValues[":oid"])
	out := &dynamodb.QueryOutput{}
	for _, item := range f.records {
		if stringAttr(item["order_id"]) == orderID {
			out.Items = append(out.Items, item)
		}
	}
	return out, nil
}

func (f *fakeAPI) CreateTable(ctx context.Context, in *dynamodb.CreateTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	name := aws.ToString(in.TableName)
	if f.tables[name] {
		return nil, &ddbtypes.ResourceInUseException{Message: aws.String("Table already exists")}
	}
	f.tables[name] = true
	return &dynamodb.CreateTableOutput{}, nil
}

type SerialStoreSuite struct {
	suite.Suite
	ctx   context.Context
	api   *fakeAPI
	store *SerialStore
}

func TestSerialStore(t *testing.T) {
	suite.Run(t, new(SerialStoreSuite))
}

func (s *SerialStoreSuite) SetupTest() {
	cfg := config.GetDefaultConfig()
	cfg.DynamoDB = config.DynamoDBConfig{
		CounterTable: "serial_counters",
		RecordTable:  "serial_records",
		OrderIndex:   "order_id-index",
	}
	log := logger.NewNopLogger()

	s.ctx = context.Background()
	s.api = newFakeAPI()
	s.store = NewSerialStore(NewFromAPI(s.api), cfg, log, sentry.NewSentryService(cfg, log))
}

func (s *SerialStoreSuite) record(ref string, value int64) *serial.Record {
	return &serial.Record{
		ID:        "sn_" + ref,
		Line:      "lck",
		Reference: ref,
		OrderID:   "42",
		Value:     value,
		Number:    "LCK-" + strconv.FormatInt(value, 10),
		CreatedAt: time.Date(2024, 3, 5, 10, 0, int(value), 0, time.UTC),
	}
}

func (s *SerialStoreSuite) TestNextValueStartsAtConfiguredStart() {
	v, err := s.store.NextValue(s.ctx, "global_serial_counter", 2800)
	s.Require().NoError(err)
	s.Equal(int64(2800), v)

	v, err = s.store.NextValue(s.ctx, "global_serial_counter", 2800)
	s.Require().NoError(err)
	s.Equal(int64(2801), v)
}

func (s *SerialStoreSuite) TestCreateIfAbsentRejectsDuplicate() {
	s.Require().NoError(s.store.CreateIfAbsent(s.ctx, s.record("r1", 1)))

	err := s.store.CreateIfAbsent(s.ctx, s.record("r1", 2))
	s.Require().Error(err)
	s.True(ierr.IsAlreadyExists(err))

	got, err := s.store.Get(s.ctx, "lck", "r1")
	s.Require().NoError(err)
	s.Equal(int64(1), got.Value)
	s.Equal("LCK-1", got.Number)
	s.True(got.CreatedAt.Equal(s.record("r1", 1).CreatedAt))
}

func (s *SerialStoreSuite) TestCreateIfAbsentRejectsNumberFromAnotherLine() {
	s.Require().NoError(s.store.CreateIfAbsent(s.ctx, s.record("r1", 1)))

	other := s.record("r2", 1)
	other.Line = "lck-legacy"
	err := s.store.CreateIfAbsent(s.ctx, other)
	s.Require().Error(err)
	s.True(ierr.IsStorageUnavailable(err))
	s.False(ierr.IsAlreadyExists(err))

	_, err = s.store.Get(s.ctx, "lck-legacy", "r2")
	s.True(ierr.IsNotFound(err))

	// the claim never shows up as an order record
	records, err := s.store.ListByOrder(s.ctx, "42")
	s.Require().NoError(err)
	s.Len(records, 1)
}

func (s *SerialStoreSuite) TestGetMissing() {
	_, err := s.store.Get(s.ctx, "lck", "missing")
	s.True(ierr.IsNotFound(err))
}

func (s *SerialStoreSuite) TestListByOrderSorted() {
	s.Require().NoError(s.store.CreateIfAbsent(s.ctx, s.record("r2", 2)))
	s.Require().NoError(s.store.CreateIfAbsent(s.ctx, s.record("r1", 1)))
	other := s.record("r3", 3)
	other.OrderID = "43"
	s.Require().NoError(s.store.CreateIfAbsent(s.ctx, other))

	records, err := s.store.ListByOrder(s.ctx, "42")
	s.Require().NoError(err)
	s.Require().Len(records, 2)
	s.Equal("r1", records[0].Reference)
	s.Equal("r2", records[1].Reference)
}

func (s *SerialStoreSuite) TestThrottlingIsUnavailable() {
	s.api.failWith = &smithy.GenericAPIError{Code: "ThrottlingException", Message: "slow down", Fault: smithy.FaultClient}

	_, err := s.store.NextValue(s.ctx, "global_serial_counter", 1)
	s.True(ierr.IsStorageUnavailable(err))
	s.True(ierr.IsRetryable(err))
}

func (s *SerialStoreSuite) TestEnsureTablesIsRepeatable() {
	s.Require().NoError(s.store.EnsureTables(s.ctx))
	s.Require().NoError(s.store.EnsureTables(s.ctx))
	s.True(s.api.tables["serial_counters"])
	s.True(s.api.tables["serial_records"])
}

func TestClassify(t *testing.T) {
	s := suite.Suite{}
	s.SetT(t)

	serverErr := &smithyhttp.ResponseError{
		Response: &smithyhttp.Response{Response: &http.Response{StatusCode: http.StatusServiceUnavailable}},
		Err:      errors.New("service unavailable"),
	}
	s.True(ierr.IsStorageUnavailable(classify(serverErr, "op")))
	s.True(ierr.IsStorageUnavailable(classify(context.DeadlineExceeded, "op")))
	s.True(ierr.IsAlreadyExists(classify(&ddbtypes.ConditionalCheckFailedException{}, "op")))

	cancel := func(codes ...string) error {
		reasons := make([]ddbtypes.CancellationReason, 0, len(codes))
		for _, c := range codes {
			reasons = append(reasons, ddbtypes.CancellationReason{Code: aws.String(c)})
		}
		return &ddbtypes.TransactionCanceledException{CancellationReasons: reasons}
	}
	s.True(ierr.IsAlreadyExists(classifyCreate(cancel("ConditionalCheckFailed", "None"))))
	s.True(ierr.IsAlreadyExists(classifyCreate(cancel("ConditionalCheckFailed", "ConditionalCheckFailed"))))
	s.True(ierr.IsStorageUnavailable(classifyCreate(cancel("None", "ConditionalCheckFailed"))))
	s.True(ierr.IsStorageUnavailable(classifyCreate(cancel("TransactionConflict", "None"))))
	s.Nil(classifyCreate(nil))

	missing := classify(&ddbtypes.ResourceNotFoundException{Message: aws.String("no table")}, "op")
	s.False(ierr.IsRetryable(missing))
	s.True(ierr.Is(missing, ierr.ErrDatabase))
	s.Nil(classify(nil, "op"))
}
