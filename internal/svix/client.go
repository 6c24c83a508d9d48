package svix

import (
	"context"
	"encoding/json"
	"net/url"
	"sync"

	"github.com/linearclockworks/shopify-serial--webhook/internal/config"
	ierr "github.com/linearclockworks/shopify-serial--webhook/internal/errors"
	"github.com/linearclockworks/shopify-serial--webhook/internal/logger"
	svix "github.com/svix/svix-webhooks/go"
	"github.com/svix/svix-webhooks/go/models"
)

// Client wraps the Svix SDK client used to fan tracking events out to subscribers
type Client struct {
	client  *svix.Svix
	appID   string
	enabled bool
	logger  *logger.Logger

	mu       sync.Mutex
	appReady bool
}

// NewClient creates a new Svix client. A disabled client accepts and drops every message.
func NewClient(cfg *config.Configuration, logger *logger.Logger) (*Client, error) {
	if !cfg.Tracking.Enabled {
		return &Client{enabled: false, logger: logger}, nil
	}

	opts := &svix.SvixOptions{}
	if cfg.Tracking.BaseURL != "" {
		serverURL, err := url.Parse(cfg.Tracking.BaseURL)
		if err != nil {
			return nil, ierr.WithError(err).
				WithHint("tracking.base_url is not a valid URL").
				Mark(ierr.ErrValidation)
		}
		opts.ServerUrl = serverURL
	}

	svixClient, err := svix.New(cfg.Tracking.AuthToken, opts)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to create svix client").
			Mark(ierr.ErrSystem)
	}

	return &Client{
		client:  svixClient,
		appID:   cfg.Tracking.AppID,
		enabled: true,
		logger:  logger,
	}, nil
}

func (c *Client) Enabled() bool {
	return c.enabled && c.client != nil
}

// ensureApplication gets or creates the tracking application once per process
func (c *Client) ensureApplication(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.appReady {
		return nil
	}

	if _, err := c.client.Application.Get(ctx, c.appID); err != nil {
		uid := c.appID
		if _, err := c.client.Application.Create(ctx, models.ApplicationIn{
			Name: c.appID,
			Uid:  &uid,
		}, &svix.ApplicationCreateOptions{}); err != nil {
			return ierr.WithError(err).
				WithHintf("Failed to create tracking application %s", c.appID).
				Mark(ierr.ErrUpstreamAPI)
		}
		c.logger.Infow("created svix application", "app_id", c.appID)
	}

	c.appReady = true
	return nil
}

// SendMessage sends an event to the tracking application. idempotencyKey lets Svix drop
// redelivered sends of the same event.
func (c *Client) SendMessage(ctx context.Context, eventType string, payload json.RawMessage, idempotencyKey string) error {
	if !c.Enabled() {
		return nil
	}

	var payloadMap map[string]interface{}
	if err := json.Unmarshal(payload, &payloadMap); err != nil {
		return ierr.WithError(err).
			WithHint("Tracking payload is not a JSON object").
			Mark(ierr.ErrValidation)
	}

	if err := c.ensureApplication(ctx); err != nil {
		return err
	}

	opts := &svix.MessageCreateOptions{}
	if idempotencyKey != "" {
		opts.IdempotencyKey = &idempotencyKey
	}

	if _, err := c.client.Message.Create(ctx, c.appID, models.MessageIn{
		EventType: eventType,
		Payload:   payloadMap,
	}, opts); err != nil {
		return ierr.WithError(err).
			WithHintf("Failed to send %s message", eventType).
			Mark(ierr.ErrUpstreamAPI)
	}
	return nil
}
