package cache

import (
	"context"
	"testing"

	"github.com/linearclockworks/shopify-serial--webhook/internal/config"
	"github.com/linearclockworks/shopify-serial--webhook/internal/logger"
	"github.com/stretchr/testify/assert"
)

func TestInMemoryCache(t *testing.T) {
	ctx := context.Background()
	cfg := config.GetDefaultConfig()
	c := NewInMemoryCache(cfg, logger.NewNopLogger())

	key := GenerateKey(PrefixSerialRecord, "lck", "order-1001")
	assert.Equal(t, "serial_record:v1:lck:order-1001", key)

	_, ok := c.Get(ctx, key)
	assert.False(t, ok)

	c.Set(ctx, key, "LCK-1", 0)
	v, ok := c.Get(ctx, key)
	assert.True(t, ok)
	assert.Equal(t, "LCK-1", v)

	c.Delete(ctx, key)
	_, ok = c.Get(ctx, key)
	assert.False(t, ok)

	c.Set(ctx, key, "LCK-1", 0)
	c.Flush(ctx)
	_, ok = c.Get(ctx, key)
	assert.False(t, ok)
}

func TestDisabledCache(t *testing.T) {
	ctx := context.Background()
	cfg := config.GetDefaultConfig()
	cfg.Cache.Enabled = false
	c := NewInMemoryCache(cfg, logger.NewNopLogger())

	c.Set(ctx, "k", "v", 0)
	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)
}
