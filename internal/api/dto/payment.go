package dto

import (
	"github.com/flexprice/mealsub/internal/domain/payment"
)

type PaymentResponse struct {
	*payment.Payment
}

type ListPaymentsResponse struct {
	Items []*PaymentResponse `json:"items"`
}
