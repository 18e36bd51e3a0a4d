package domain

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PaymentOutcome string

const (
	PaymentSucceeded PaymentOutcome = "succeeded"
	PaymentRejected  PaymentOutcome = "declined"
)

type ChargeRequest struct {
	BookingID     uuid.UUID
	Amount        decimal.Decimal
	Currency      string
	PaymentMethod string
	CustomerEmail string
	Description   string
}

type ChargeResult struct {
	Outcome       PaymentOutcome
	Reference     string
	DeclineReason string
}

// PaymentProvider charges a payment method for a booking. A decline is a
// normal outcome, not an error; errors are reserved for infrastructure
// failures talking to the processor.
type PaymentProvider interface {
	Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error)
}
