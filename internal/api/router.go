package api

import (
	"github.com/gin-gonic/gin"
	v1 "github.com/linearclockworks/shopify-serial--webhook/internal/api/v1"
	"github.com/linearclockworks/shopify-serial--webhook/internal/config"
	"github.com/linearclockworks/shopify-serial--webhook/internal/logger"
	"github.com/linearclockworks/shopify-serial--webhook/internal/rest/middleware"
)

type Handlers struct {
	Health  *v1.HealthHandler
	Webhook *v1.WebhookHandler
	Order   *v1.OrderHandler
}

func NewRouter(handlers Handlers, cfg *config.Configuration, logger *logger.Logger) *gin.Engine {
	router := gin.Default()
	router.Use(
		middleware.RequestIDMiddleware,
		middleware.CORSMiddleware,
		middleware.SentryMiddleware(cfg),
		middleware.ErrorHandler(logger),
	)

	router.GET("/health", handlers.Health.Health)

	apiGroup := router.Group("/api")
	{
		apiGroup.GET("/webhook", handlers.Webhook.Status)
		apiGroup.POST("/webhook", middleware.ShopifyWebhookMiddleware(cfg, logger), handlers.Webhook.HandleOrderWebhook)

		// Manual tools write to Shopify and expose issued serials, so they are opt-in
		if cfg.Admin.Enabled {
			admin := apiGroup.Group("", middleware.AdminKeyMiddleware(cfg, logger))
			admin.GET("/process-order", handlers.Order.ProcessOrderForm)
			admin.POST("/process-order", handlers.Order.ProcessOrder)
			admin.GET("/orders/:order_id/serials", handlers.Order.GetOrderSerials)
		}
	}

	return router
}
