package stripe

import (
	"context"
	"errors"
	"testing"

	"github.com/flexprice/mealsub/internal/domain/payment"
	ierr "github.com/flexprice/mealsub/internal/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stripe/stripe-go/v82"
)

func TestToMinorUnits(t *testing.T) {
	assert.Equal(t, int64(137200), toMinorUnits(decimal.NewFromInt(1372)))
	assert.Equal(t, int64(6667), toMinorUnits(decimal.RequireFromString("66.665")))
	assert.Equal(t, int64(98), toMinorUnits(decimal.RequireFromString("0.98")))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantUnknown bool
	}{
		{"card declined", &stripe.Error{HTTPStatusCode: 402, Type: stripe.ErrorTypeCard, Code: stripe.ErrorCodeCardDeclined}, false},
		{"server error", &stripe.Error{HTTPStatusCode: 503, Type: stripe.ErrorTypeAPI}, true},
		{"timeout", context.DeadlineExceeded, true},
		{"other", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classify(tt.err, "hint")
			assert.True(t, ierr.IsPaymentGateway(err))
			assert.Equal(t, tt.wantUnknown, errors.Is(err, payment.ErrChargeOutcomeUnknown))
		})
	}
}
