package testutil

import (
	"context"

	"github.com/flexprice/mealsub/internal/domain/payment"
	"github.com/stretchr/testify/mock"
)

// MockCardGateway is a testify mock of payment.CardGateway
type MockCardGateway struct {
	mock.Mock
}

var _ payment.CardGateway = (*MockCardGateway)(nil)

func NewMockCardGateway() *MockCardGateway {
	return &MockCardGateway{}
}

func (m *MockCardGateway) CreateCustomer(ctx context.Context, input *payment.CreateCustomerInput) (*payment.GatewayCustomer, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.GatewayCustomer), args.Error(1)
}

func (m *MockCardGateway) CreateAndConfirmCharge(ctx context.Context, input *payment.ChargeInput) (*payment.ChargeResult, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.ChargeResult), args.Error(1)
}

func (m *MockCardGateway) Refund(ctx context.Context, input *payment.RefundInput) (*payment.RefundResult, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.RefundResult), args.Error(1)
}
