package models

import (
	"encoding/json"
	"fmt"

	"github.com/stripe/stripe-go/v82"
)

// PaymentIntentSucceeded is the only provider event type that moves money.
const PaymentIntentSucceeded = string(stripe.EventTypePaymentIntentSucceeded)

// PaymentEvent is a payment provider notification reduced to the fields the
// ledger needs. Providers deliver these at least once and in any order.
type PaymentEvent struct {
	EventID       string `json:"eventId" validate:"required,max=255"`
	Type          string `json:"type" validate:"required"`
	Amount        int64  `json:"amount" validate:"gt=0"`
	Currency      string `json:"currency,omitempty" validate:"omitempty,len=3"`
	PayerIdentity string `json:"payerIdentity" validate:"required,email"`
}

// PaymentEventFromStripe maps a Stripe webhook event onto the ledger's event
// shape. Only payment intents carry an amount and a payer; for any other
// object the result holds just the id and type. The payer is taken from
// metadata.email when the checkout set one, falling back to the receipt email.
func PaymentEventFromStripe(event stripe.Event) (PaymentEvent, error) {
	out := PaymentEvent{
		EventID: event.ID,
		Type:    string(event.Type),
	}
	if event.Data == nil || event.Data.Object["object"] != "payment_intent" {
		return out, nil
	}

	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		return out, fmt.Errorf("decode payment intent: %w", err)
	}

	payer := intent.Metadata["email"]
	if payer == "" {
		payer = intent.ReceiptEmail
	}
	out.Amount = intent.Amount
	out.Currency = string(intent.Currency)
	out.PayerIdentity = payer
	return out, nil
}
