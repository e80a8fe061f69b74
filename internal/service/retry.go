package service

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	ierr "github.com/flexprice/mealsub/internal/errors"
)

const (
	conflictRetries  = 3
	conflictInterval = 10 * time.Millisecond
)

// retryOnConflict reruns op while it fails with a version conflict.
// Any other error ends the loop and is returned as is.
func retryOnConflict(ctx context.Context, op func() error) error {
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(conflictInterval), conflictRetries),
		ctx,
	)
	return backoff.Retry(func() error {
		err := op()
		if err == nil || ierr.IsVersionConflict(err) {
			return err
		}
		return backoff.Permanent(err)
	}, policy)
}
