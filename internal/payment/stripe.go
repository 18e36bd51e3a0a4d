package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/metinatakli/cinema-booking-engine/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/paymentintent"
)

// StripePaymentProvider charges bookings through synchronously confirmed
// PaymentIntents: the booking flow blocks on the charge and only ever sees
// a final outcome, never a webhook.
type StripePaymentProvider struct {
}

func NewStripePaymentProvider(apiKey string) *StripePaymentProvider {
	stripe.Key = apiKey

	return &StripePaymentProvider{}
}

func (s *StripePaymentProvider) Charge(ctx context.Context, req domain.ChargeRequest) (*domain.ChargeResult, error) {
	amountCents := req.Amount.Mul(decimal.NewFromInt(100)).IntPart()

	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(amountCents),
		Currency:      stripe.String(req.Currency),
		PaymentMethod: stripe.String(req.PaymentMethod),
		Confirm:       stripe.Bool(true),
		Description:   stripe.String(req.Description),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled:        stripe.Bool(true),
			AllowRedirects: stripe.String("never"),
		},
		Metadata: map[string]string{
			"booking_id": req.BookingID.String(),
		},
	}
	params.Context = ctx

	if req.CustomerEmail != "" {
		params.ReceiptEmail = stripe.String(req.CustomerEmail)
	}

	intent, err := paymentintent.New(params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.Type == stripe.ErrorTypeCard {
			return &domain.ChargeResult{
				Outcome:       domain.PaymentRejected,
				DeclineReason: string(stripeErr.DeclineCode),
			}, nil
		}

		return nil, fmt.Errorf("creating payment intent: %w", err)
	}

	if intent.Status != stripe.PaymentIntentStatusSucceeded {
		return &domain.ChargeResult{
			Outcome:       domain.PaymentRejected,
			Reference:     intent.ID,
			DeclineReason: string(intent.Status),
		}, nil
	}

	return &domain.ChargeResult{
		Outcome:   domain.PaymentSucceeded,
		Reference: intent.ID,
	}, nil
}
