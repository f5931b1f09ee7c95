package services

import (
	"github.com/gabaylaguna/booking-backend/internal/models"
)

// SettlementOutcome is the normalized result carried by a settlement event
type SettlementOutcome string

const (
	OutcomePaid    SettlementOutcome = "paid"
	OutcomeFailed  SettlementOutcome = "failed"
	OutcomeExpired SettlementOutcome = "expired"
)

// SettlementEvent is the provider-agnostic form every inbound settlement
// signal is reduced to before it reaches the reconciler. Webhooks, capture
// responses and manual verification decisions all produce one of these.
type SettlementEvent struct {
	Provider       models.PaymentProvider
	ProviderRef    string
	Outcome        SettlementOutcome
	AmountObserved *float64
	Metadata       models.JSONB
	Source         models.PaymentEventSource
	RawBody        string
}

// InitiationResult is what a provider hands back when a payment attempt is
// opened on its side.
type InitiationResult struct {
	// TransactionID is the provider's reference for this attempt, stored as
	// the settlement idempotency key.
	TransactionID string
	// CheckoutURL is where the payer completes the payment. Empty for rails
	// with no redirect step (virtual accounts, manual transfers).
	CheckoutURL string
	// Extra carries provider fields the client needs (VA numbers, QR
	// strings, instructions).
	Extra models.JSONB
}

// ProviderAdapter is the shape every payment rail implements. Initiate and
// Refund call out to the provider and must never run inside a database
// transaction or lock.
type ProviderAdapter interface {
	Provider() models.PaymentProvider
	Initiate(booking *models.Booking, payment *models.Payment) (*InitiationResult, error)
	Refund(payment *models.Payment) (models.JSONB, error)
}
