package testutil

import (
	"context"

	"github.com/linearclockworks/shopify-serial--webhook/internal/types"
)

func SetupContext() context.Context {
	ctx := context.Background()
	ctx = context.WithValue(ctx, types.CtxRequestID, types.GenerateUUID())
	return ctx
}
