package middleware

import (
	"crypto/sha256"
	"crypto/subtle"

	"github.com/gin-gonic/gin"
	"github.com/linearclockworks/shopify-serial--webhook/internal/config"
	ierr "github.com/linearclockworks/shopify-serial--webhook/internal/errors"
	"github.com/linearclockworks/shopify-serial--webhook/internal/logger"
	"github.com/linearclockworks/shopify-serial--webhook/internal/types"
)

// AdminKeyMiddleware authenticates the manual order tools with the shared admin key
func AdminKeyMiddleware(cfg *config.Configuration, log *logger.Logger) gin.HandlerFunc {
	header := cfg.Admin.KeyHeader()
	want := sha256.Sum256([]byte(cfg.Admin.APIKey))

	return func(c *gin.Context) {
		key := c.GetHeader(header)
		got := sha256.Sum256([]byte(key))
		if key == "" || cfg.Admin.APIKey == "" || subtle.ConstantTimeCompare(got[:], want[:]) != 1 {
			log.Debugw("rejected admin request",
				"path", c.Request.URL.Path,
				"has_key", key != "",
				"request_id", types.GetRequestID(c.Request.Context()),
			)
			c.Error(ierr.NewError("invalid admin api key").
				WithHint("Invalid API key").
				Mark(ierr.ErrUnauthorized))
			c.Abort()
			return
		}
		c.Next()
	}
}
