package testutil

import (
	"context"

	"github.com/flexprice/mealsub/internal/types"
)

// SetupContext returns a request-like context acting as DefaultUserID
func SetupContext() context.Context {
	return ContextForUser(types.DefaultUserID)
}

// ContextForUser returns a context whose caller is userID
func ContextForUser(userID string) context.Context {
	ctx := types.SetUserID(context.Background(), userID)
	return types.SetRequestID(ctx, types.GenerateUUIDWithPrefix("req"))
}
