package testutil

import (
	"context"
	"sync"

	"github.com/flexprice/mealsub/internal/logger"
	"github.com/flexprice/mealsub/internal/postgres"
	"github.com/flexprice/mealsub/internal/types"
)

var _ postgres.IClient = (*MockPostgresClient)(nil) // Ensure MockPostgresClient implements IClient

// Snapshotter is a store that can capture and restore its contents
type Snapshotter interface {
	Snapshot() func()
}

// MockPostgresClient gives in-memory stores transaction semantics.
// WithTx snapshots every registered store and restores them all when fn fails,
// so a failed unit of work leaves no partial writes behind. Transactions are
// serialized and nested calls join the outer transaction.
type MockPostgresClient struct {
	mu     sync.Mutex
	stores []Snapshotter
	logger *logger.Logger

	// FailNextCommit makes the next outermost transaction fail with this error after fn succeeds
	FailNextCommit error
}

type mockTxKey struct{}

// NewMockPostgresClient creates a new mock postgres client over the given stores
func NewMockPostgresClient(logger *logger.Logger, stores ...Snapshotter) *MockPostgresClient {
	return &MockPostgresClient{
		stores: stores,
		logger: logger,
	}
}

// WithTx executes the given function within a transaction
func (c *MockPostgresClient) WithTx(ctx context.Context, fn func(context.Context) error) error {
	// If we're already in a transaction, reuse it
	if ctx.Value(mockTxKey{}) != nil {
		return fn(ctx)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	restores := make([]func(), 0, len(c.stores))
	for _, s := range c.stores {
		restores = append(restores, s.Snapshot())
	}

	txCtx := context.WithValue(ctx, mockTxKey{}, types.GenerateUUID())
	err := fn(txCtx)
	if err == nil && c.FailNextCommit != nil {
		err = c.FailNextCommit
		c.FailNextCommit = nil
	}
	if err != nil {
		c.logger.Debugw("rolling back in-memory transaction", "error", err)
		for _, restore := range restores {
			restore()
		}
		return err
	}
	return nil
}
