package service

import (
	"net/http"
	"testing"

	"github.com/linearclockworks/shopify-serial--webhook/internal/domain/order"
	"github.com/linearclockworks/shopify-serial--webhook/internal/domain/serial"
	ierr "github.com/linearclockworks/shopify-serial--webhook/internal/errors"
	"github.com/linearclockworks/shopify-serial--webhook/internal/idempotency"
	"github.com/linearclockworks/shopify-serial--webhook/internal/testutil"
	"github.com/stretchr/testify/suite"
)

type OrderServiceSuite struct {
	testutil.BaseServiceTestSuite
	stores  testutil.Stores
	service OrderService
}

func TestOrderService(t *testing.T) {
	suite.Run(t, new(OrderServiceSuite))
}

func (s *OrderServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.stores = s.GetStores()
	s.service = s.newService(s.stores.SerialRepo)
	s.stores.Shopify.AddOrder(sampleOrder())
}

func (s *OrderServiceSuite) newService(repo serial.Repository) OrderService {
	params := ServiceParams{
		Logger:      s.GetLogger(),
		Config:      s.GetConfig(),
		Sentry:      s.GetSentry(),
		Cache:       s.GetCache(),
		SerialRepo:  repo,
		Shopify:     s.stores.Shopify,
		Tracking:    s.stores.Tracking,
		Idempotency: idempotency.NewGenerator(),
	}
	return NewOrderService(params, NewSerialService(params), NewTrackingService(params))
}

// sampleOrder has two walnut clocks, one cleartime and a few items that get no serial
func sampleOrder() *order.Order {
	return &order.Order{
		ID:          5001,
		Name:        "#1001",
		OrderNumber: 1001,
		CreatedAt:   "2024-03-01T10:15:00-05:00",
		Customer:    &order.Customer{FirstName: "Ada", LastName: "Lovelace"},
		LineItems: []order.LineItem{
			{ID: 11, Title: "Linear Clock: Walnut", SKU: "LCK-WAL", Quantity: 2},
			{ID: 12, Title: "Cleartime: Frosted acrylic", SKU: "ct-frost", Quantity: 1},
			{ID: 13, Title: "--Custom engraving", SKU: "LCK-ENG", Quantity: 1},
			{ID: 14, Title: "Gift wrap", Quantity: 1},
			{ID: 15, Title: "Spare hands", SKU: "ACC-HANDS", Quantity: 3},
			{ID: 16, Title: "Linear Clock: Oak", SKU: "LCK-OAK", Quantity: 0},
		},
	}
}

func (s *OrderServiceSuite) TestProcessOrderIssuesOneSerialPerUnit() {
	resp, err := s.service.ProcessOrder(s.GetContext(), sampleOrder())
	s.Require().NoError(err)

	s.Equal("success", resp.Status)
	s.Equal("#1001", resp.Order)
	s.Equal([]string{"LCK-1", "LCK-2"}, resp.Serials["lck"])
	s.Equal([]string{"1"}, resp.Serials["cleartime"])
	s.Equal(3, resp.Total())

	gen := idempotency.NewGenerator()
	rec, err := s.stores.SerialRepo.Get(s.GetContext(), "lck", gen.UnitReference(5001, 11, 2))
	s.Require().NoError(err)
	s.Equal("LCK-2", rec.Number)
	s.Equal("5001", rec.OrderID)
}

func (s *OrderServiceSuite) TestProcessOrderWritesBack() {
	_, err := s.service.ProcessOrder(s.GetContext(), sampleOrder())
	s.Require().NoError(err)

	s.Equal("LCK-1, LCK-2", s.stores.Shopify.Metafield(5001, 11))
	s.Equal("1", s.stores.Shopify.Metafield(5001, 12))
	s.Empty(s.stores.Shopify.Metafield(5001, 13))
	s.Equal("Serial Numbers: LCK-1, LCK-2\nCleartime Serial Numbers: 1", s.stores.Shopify.Note(5001))
}

func (s *OrderServiceSuite) TestReplayReturnsSameSerials() {
	first, err := s.service.ProcessOrder(s.GetContext(), sampleOrder())
	s.Require().NoError(err)
	second, err := s.service.ProcessOrder(s.GetContext(), sampleOrder())
	s.Require().NoError(err)

	s.Equal(first.Serials, second.Serials)
	s.Len(s.stores.SerialRepo.Records("lck"), 2)
	s.Len(s.stores.SerialRepo.Records("cleartime"), 1)
	s.Equal(int64(2), s.stores.SerialRepo.Counter("global_serial_counter"))
	s.Len(s.stores.Tracking.Messages(), 3, "replayed serials reuse their idempotency keys")
	s.Equal(6, s.stores.Tracking.Attempts())
	s.Equal("Serial Numbers: LCK-1, LCK-2\nCleartime Serial Numbers: 1", s.stores.Shopify.Note(5001))
}

func (s *OrderServiceSuite) TestOrderWithoutSerializedItems() {
	o := &order.Order{
		ID:        5002,
		Name:      "#1002",
		LineItems: []order.LineItem{{ID: 21, Title: "Spare hands", SKU: "ACC-HANDS", Quantity: 1}},
	}
	resp, err := s.service.ProcessOrder(s.GetContext(), o)
	s.Require().NoError(err)

	s.Equal(map[string][]string{"lck": {}, "cleartime": {}}, resp.Serials)
	s.Equal(0, s.stores.Shopify.Writes())
	s.Empty(s.stores.Tracking.Messages())
}

func (s *OrderServiceSuite) TestMissingOrderID() {
	_, err := s.service.ProcessOrder(s.GetContext(), &order.Order{Name: "#1"})
	s.Require().Error(err)
	s.True(ierr.IsInvalidOrderReference(err))
	s.False(ierr.IsRetryable(err))
	s.Equal(http.StatusBadRequest, ierr.HTTPStatusFromErr(err))

	_, err = s.service.ProcessOrder(s.GetContext(), nil)
	s.True(ierr.IsInvalidOrderReference(err))
}

func (s *OrderServiceSuite) TestWriteBackRetriesTransientFailures() {
	s.stores.Shopify.WriteFailures = 2

	resp, err := s.service.ProcessOrder(s.GetContext(), sampleOrder())
	s.Require().NoError(err)
	s.Equal(3, resp.Total())
	s.Equal("LCK-1, LCK-2", s.stores.Shopify.Metafield(5001, 11))
	s.Greater(s.stores.Shopify.Writes(), 4)
}

func (s *OrderServiceSuite) TestWriteBackFailureDoesNotReissue() {
	s.stores.Shopify.WriteFailures = 1 << 20

	_, err := s.service.ProcessOrder(s.GetContext(), sampleOrder())
	s.Require().Error(err)
	s.True(ierr.IsUpstreamAPI(err))
	s.Equal(http.StatusBadGateway, ierr.HTTPStatusFromErr(err))
	s.Len(s.stores.SerialRepo.Records("lck"), 2)
	s.Len(s.stores.Tracking.Messages(), 3)

	// redelivery replays the issued serials and only retries the write-back
	s.stores.Shopify.WriteFailures = 0
	resp, err := s.service.ProcessOrder(s.GetContext(), sampleOrder())
	s.Require().NoError(err)
	s.Equal([]string{"LCK-1", "LCK-2"}, resp.Serials["lck"])
	s.Equal(int64(2), s.stores.SerialRepo.Counter("global_serial_counter"))
	s.Len(s.stores.Tracking.Messages(), 3)
	s.Equal("LCK-1, LCK-2", s.stores.Shopify.Metafield(5001, 11))
}

func (s *OrderServiceSuite) TestMissingShopifyOrderIsNotRetried() {
	o := sampleOrder()
	o.ID = 9999

	_, err := s.service.ProcessOrder(s.GetContext(), o)
	s.Require().Error(err)
	s.True(ierr.IsUpstreamAPI(err))
	// metafield write succeeds per item, the note append fails once and stops
	s.Equal(3, s.stores.Shopify.Writes())
}

func (s *OrderServiceSuite) TestStorageUnavailableStopsBeforeWriteBack() {
	flaky := testutil.NewFlakySerialStore(s.stores.SerialRepo)
	svc := s.newService(flaky)

	flaky.FailNext(testutil.OpNextValue, 1)
	_, err := svc.ProcessOrder(s.GetContext(), sampleOrder())
	s.Require().Error(err)
	s.True(ierr.IsStorageUnavailable(err))
	s.Equal(http.StatusServiceUnavailable, ierr.HTTPStatusFromErr(err))
	s.Equal(0, s.stores.Shopify.Writes())

	resp, err := svc.ProcessOrder(s.GetContext(), sampleOrder())
	s.Require().NoError(err)
	s.Equal(3, resp.Total())
}

func (s *OrderServiceSuite) TestTrackingRows() {
	_, err := s.service.ProcessOrder(s.GetContext(), sampleOrder())
	s.Require().NoError(err)

	rows := s.stores.Tracking.Rows()
	s.Require().Len(rows, 3)

	bySerial := make(map[string]int)
	for i, r := range rows {
		bySerial[r.Number] = i
	}
	s.Require().Contains(bySerial, "LCK-2")
	row := rows[bySerial["LCK-2"]]
	s.Equal("2", row.Serial)
	s.Equal("lck", row.Line)
	s.Equal("Linear Clock", row.ProductName)
	s.Equal("Walnut", row.Description)
	s.Equal("LCK-WAL", row.SKU)
	s.Equal("1001", row.OrderNumber)
	s.Equal("Ada Lovelace", row.CustomerName)
	s.Equal("2024-03-01 10:15:00", row.OrderDate)

	keys := make(map[string]struct{})
	for _, m := range s.stores.Tracking.Messages() {
		s.Equal("serial.issued", m.EventType)
		keys[m.IdempotencyKey] = struct{}{}
	}
	s.Len(keys, 3)
}

func (s *OrderServiceSuite) TestTrackingFailureDoesNotFailOrder() {
	s.stores.Tracking.Fail = true

	resp, err := s.service.ProcessOrder(s.GetContext(), sampleOrder())
	s.Require().NoError(err)
	s.Equal(3, resp.Total())
	s.Empty(s.stores.Tracking.Messages())

	// a later replay delivers the rows that were dropped
	s.stores.Tracking.Fail = false
	_, err = s.service.ProcessOrder(s.GetContext(), sampleOrder())
	s.Require().NoError(err)
	s.Len(s.stores.Tracking.Rows(), 3)
}

func (s *OrderServiceSuite) TestPartialIssueIsTrackedOnRedelivery() {
	flaky := testutil.NewFlakySerialStore(s.stores.SerialRepo)
	svc := s.newService(flaky)

	// LCK-1 is stored, the second unit fails
	flaky.FailOnCall(testutil.OpCreateIfAbsent, 2)
	_, err := svc.ProcessOrder(s.GetContext(), sampleOrder())
	s.Require().Error(err)
	s.True(ierr.IsStorageUnavailable(err))
	s.Len(s.stores.SerialRepo.Records("lck"), 1)
	s.Empty(s.stores.Tracking.Messages())

	resp, err := svc.ProcessOrder(s.GetContext(), sampleOrder())
	s.Require().NoError(err)
	s.Equal(3, resp.Total())

	tracked := make(map[string]bool)
	for _, r := range s.stores.Tracking.Rows() {
		tracked[r.Number] = true
	}
	s.Len(tracked, 3)
	for _, number := range append(resp.Serials["lck"], resp.Serials["cleartime"]...) {
		s.Truef(tracked[number], "serial %s was never tracked", number)
	}
	s.True(tracked["LCK-1"])
}

func (s *OrderServiceSuite) TestProcessOrderNumber() {
	resp, err := s.service.ProcessOrderNumber(s.GetContext(), " #1001 ")
	s.Require().NoError(err)
	s.Equal([]string{"LCK-1", "LCK-2"}, resp.Serials["lck"])

	_, err = s.service.ProcessOrderNumber(s.GetContext(), "  ")
	s.True(ierr.IsValidation(err))

	_, err = s.service.ProcessOrderNumber(s.GetContext(), "4040")
	s.True(ierr.IsNotFound(err))
}

func (s *OrderServiceSuite) TestGetOrderSerials() {
	_, err := s.service.ProcessOrder(s.GetContext(), sampleOrder())
	s.Require().NoError(err)

	resp, err := s.service.GetOrderSerials(s.GetContext(), "5001")
	s.Require().NoError(err)
	s.Equal("5001", resp.OrderID)
	s.Len(resp.Items, 3)

	empty, err := s.service.GetOrderSerials(s.GetContext(), "5002")
	s.Require().NoError(err)
	s.Empty(empty.Items)
}
