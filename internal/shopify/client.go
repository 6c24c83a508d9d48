package shopify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/linearclockworks/shopify-serial--webhook/internal/config"
	"github.com/linearclockworks/shopify-serial--webhook/internal/domain/order"
	ierr "github.com/linearclockworks/shopify-serial--webhook/internal/errors"
	"github.com/linearclockworks/shopify-serial--webhook/internal/httpclient"
	"github.com/linearclockworks/shopify-serial--webhook/internal/logger"
	"github.com/linearclockworks/shopify-serial--webhook/internal/sentry"
	"github.com/linearclockworks/shopify-serial--webhook/internal/types"
	"golang.org/x/time/rate"
)

// Client defines the Shopify Admin API operations used by order processing.
// Every write is idempotent so a replayed order converges to the same state.
type Client interface {
	GetOrder(ctx context.Context, orderID int64) (*order.Order, error)
	FindOrderByNumber(ctx context.Context, number string) (*order.Order, error)
	AppendOrderNote(ctx context.Context, orderID int64, line string) error
	SetLineItemSerials(ctx context.Context, orderID, lineItemID int64, value string) error
}

type client struct {
	baseURL     string
	accessToken string
	httpClient  httpclient.Client
	limiter     *rate.Limiter
	logger      *logger.Logger
	sentry      *sentry.Service
}

// NewClient creates the Admin API client for the configured shop
func NewClient(cfg *config.Configuration, httpClient httpclient.Client, logger *logger.Logger, sentry *sentry.Service) Client {
	limit := rate.Inf
	if cfg.Shopify.RateLimit > 0 {
		limit = rate.Limit(cfg.Shopify.RateLimit)
	}
	burst := cfg.Shopify.RateBurst
	if burst < 1 {
		burst = 1
	}

	return &client{
		baseURL:     cfg.Shopify.AdminBaseURL(),
		accessToken: cfg.Shopify.AccessToken,
		httpClient:  httpClient,
		limiter:     rate.NewLimiter(limit, burst),
		logger:      logger,
		sentry:      sentry,
	}
}

// MetafieldKey is the order metafield holding the serials of one line item
func MetafieldKey(lineItemID int64) string {
	return "serial_" + strconv.FormatInt(lineItemID, 10)
}

func (c *client) GetOrder(ctx context.Context, orderID int64) (*order.Order, error) {
	var env orderEnvelope
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("orders/%d.json", orderID), nil, &env); err != nil {
		return nil, err
	}
	return &env.Order, nil
}

// FindOrderByNumber resolves an order typed by a person, e.g. "1001" or "#1001".
// The name search is tried first, then the value is treated as an order id.
func (c *client) FindOrderByNumber(ctx context.Context, number string) (*order.Order, error) {
	number = strings.TrimPrefix(strings.TrimSpace(number), "#")
	if number == "" {
		return nil, ierr.NewError("order number is empty").
			WithHint("Please provide an order number").
			Mark(ierr.ErrValidation)
	}

	query := url.Values{}
	query.Set("name", "#"+number)
	query.Set("status", "any")

	var env ordersEnvelope
	if err := c.do(ctx, http.MethodGet, "orders.json?"+query.Encode(), nil, &env); err != nil {
		return nil, err
	}
	if len(env.Orders) > 0 {
		return &env.Orders[0], nil
	}

	id, err := strconv.ParseInt(number, 10, 64)
	if err != nil {
		return nil, ierr.NewErrorf("order %s not found", number).
			WithHintf("Order #%s was not found", number).
			Mark(ierr.ErrNotFound)
	}

	c.logger.Debugw("order name search returned nothing, trying order id", "order_number", number)
	o, err := c.GetOrder(ctx, id)
	if err != nil {
		if ierr.IsNotFound(err) {
			return nil, ierr.WithError(err).
				WithHintf("Order #%s was not found", number).
				Mark(ierr.ErrNotFound)
		}
		return nil, err
	}
	return o, nil
}

// AppendOrderNote adds line to the order note unless the note already contains it
func (c *client) AppendOrderNote(ctx context.Context, orderID int64, line string) error {
	current, err := c.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}

	note := current.Note
	if noteHasLine(note, line) {
		c.logger.Debugw("order note already carries serials", "order_id", orderID)
		return nil
	}
	if strings.TrimSpace(note) != "" {
		note = note + "\n" + line
	} else {
		note = line
	}

	var update noteUpdate
	update.Order.ID = orderID
	update.Order.Note = note
	return c.do(ctx, http.MethodPut, fmt.Sprintf("orders/%d.json", orderID), update, nil)
}

func noteHasLine(note, line string) bool {
	for _, l := range strings.Split(note, "\n") {
		if strings.TrimSpace(l) == line {
			return true
		}
	}
	return false
}

// SetLineItemSerials writes the line item's serials to an order metafield. A 422 means
// the metafield exists; its value is compared and corrected when it differs.
func (c *client) SetLineItemSerials(ctx context.Context, orderID, lineItemID int64, value string) error {
	key := MetafieldKey(lineItemID)
	body := metafieldEnvelope{Metafield: Metafield{
		Namespace: MetafieldNamespace,
		Key:       key,
		Type:      MetafieldType,
		Value:     value,
	}}

	err := c.do(ctx, http.MethodPost, fmt.Sprintf("orders/%d/metafields.json", orderID), body, nil)
	if err == nil || httpclient.StatusCode(err) != http.StatusUnprocessableEntity {
		return err
	}

	query := url.Values{}
	query.Set("namespace", MetafieldNamespace)
	query.Set("key", key)

	var existing metafieldsEnvelope
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("orders/%d/metafields.json?%s", orderID, query.Encode()), nil, &existing); err != nil {
		return err
	}
	for _, mf := range existing.Metafields {
		if mf.Namespace != MetafieldNamespace || mf.Key != key {
			continue
		}
		if mf.Value == value {
			return nil
		}
		c.logger.Warnw("line item metafield differs from issued serials, correcting",
			"order_id", orderID,
			"line_item_id", lineItemID,
			"existing", mf.Value,
			"serials", value,
		)
		update := metafieldEnvelope{Metafield: Metafield{ID: mf.ID, Namespace: MetafieldNamespace, Key: key, Type: MetafieldType, Value: value}}
		return c.do(ctx, http.MethodPut, fmt.Sprintf("metafields/%d.json", mf.ID), update, nil)
	}

	return ierr.NewErrorf("metafield %s rejected without an existing value", key).
		WithHint("Shopify rejected the line item serial metafield").
		WithReportableDetails(map[string]any{"order_id": orderID, "line_item_id": lineItemID}).
		Mark(ierr.ErrUpstreamAPI)
}

func (c *client) do(ctx context.Context, method, path string, body, out any) error {
	span, ctx := c.sentry.StartHTTPSpan(ctx, method, path)
	defer sentry.FinishSpan(span)

	if err := c.limiter.Wait(ctx); err != nil {
		return ierr.WithError(err).
			WithHint("Shopify request was cancelled while rate limited").
			Mark(ierr.ErrUpstreamAPI)
	}

	req := &httpclient.Request{
		Method: method,
		URL:    c.baseURL + "/" + path,
		Headers: map[string]string{
			types.HeaderShopifyAccessToken: c.accessToken,
			"Accept":                       "application/json",
		},
	}
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return ierr.WithError(err).WithHint("Failed to encode Shopify request").Mark(ierr.ErrSystem)
		}
		req.Body = payload
	}

	resp, err := c.httpClient.Send(ctx, req)
	if err != nil {
		return c.upstreamError(err, method, path)
	}

	if out == nil || len(resp.Body) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return ierr.WithError(err).
			WithHint("Failed to decode Shopify response").
			Mark(ierr.ErrUpstreamAPI)
	}
	return nil
}

func (c *client) upstreamError(err error, method, path string) error {
	status := httpclient.StatusCode(err)
	details := map[string]any{"method": method, "path": path, "status": status}

	if httpErr, ok := httpclient.IsHTTPError(err); ok {
		c.logger.Warnw("shopify api error",
			"method", method,
			"path", path,
			"status", status,
			"body", string(httpErr.Response),
		)
	} else {
		c.logger.Warnw("shopify request failed", "method", method, "path", path, "error", err)
	}

	if status == http.StatusNotFound {
		return ierr.WithError(err).
			WithHint("Shopify resource not found").
			WithReportableDetails(details).
			Mark(ierr.ErrNotFound)
	}
	return ierr.WithError(err).
		WithHintf("Shopify API returned status %d", status).
		WithReportableDetails(details).
		Mark(ierr.ErrUpstreamAPI)
}
