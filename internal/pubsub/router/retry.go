package router

import (
	"context"
	"errors"
	"net"

	ierr "github.com/flexprice/mealsub/internal/errors"
	"github.com/flexprice/mealsub/internal/logger"
)

// shouldRetry reports whether handing the same message to the handler again could succeed
func shouldRetry(logger *logger.Logger, err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		logger.Debugw("retrying due to network timeout", "error", netErr)
		return true
	}

	// Business logic errors (don't retry)
	if ierr.IsValidation(err) ||
		ierr.IsNotFound(err) ||
		ierr.IsStateConflict(err) ||
		ierr.IsAlreadyExists(err) {
		return false
	}

	// version conflicts, database and gateway errors are transient
	return true
}
