package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// JSONB is a custom type for handling JSONB fields
type JSONB map[string]interface{}

// Value implements the driver.Valuer interface
func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	bytes, err := json.Marshal(j)
	if err != nil {
		return nil, err
	}
	return string(bytes), nil
}

// Scan implements the sql.Scanner interface
func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, j)
}

// MergeMissing copies keys from other that are not already present.
// Existing keys are never overwritten; settlement metadata is additive.
func (j JSONB) MergeMissing(other JSONB) JSONB {
	if j == nil {
		j = JSONB{}
	}
	for k, v := range other {
		if _, exists := j[k]; !exists {
			j[k] = v
		}
	}
	return j
}

// PaymentProvider identifies the payment rail a payment runs on
type PaymentProvider string

const (
	ProviderPayPal        PaymentProvider = "paypal"
	ProviderPayMongo      PaymentProvider = "paymongo"
	ProviderXenditInvoice PaymentProvider = "xendit"
	ProviderXenditVA      PaymentProvider = "xendit_va"
	ProviderGCash         PaymentProvider = "gcash"
)

// IsValid reports whether the provider is one of the supported rails
func (p PaymentProvider) IsValid() bool {
	switch p {
	case ProviderPayPal, ProviderPayMongo, ProviderXenditInvoice, ProviderXenditVA, ProviderGCash:
		return true
	}
	return false
}

// PaymentStatus represents the settlement status of a payment attempt
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusRefunded  PaymentStatus = "refunded"
	// PaymentStatusAbandoned marks attempts superseded by a newer attempt or
	// expired before settling. Abandoned rows are kept, never deleted.
	PaymentStatusAbandoned PaymentStatus = "abandoned"
)

// VerificationStatus applies only to manually verified (GCash) payments
type VerificationStatus string

const (
	VerificationPending  VerificationStatus = "pending"
	VerificationVerified VerificationStatus = "verified"
	VerificationRejected VerificationStatus = "rejected"
)

// Payment represents one settlement attempt for a booking. The
// (provider, transaction_id) pair is the idempotency key for inbound
// settlement events.
type Payment struct {
	ID                 string              `json:"id" db:"id"`
	BookingID          string              `json:"booking_id" db:"booking_id"`
	Provider           PaymentProvider     `json:"payment_method" db:"payment_method"`
	TransactionID      string              `json:"transaction_id" db:"transaction_id"`
	ReferenceNumber    *string             `json:"reference_number,omitempty" db:"reference_number"`
	GCashAccountNumber *string             `json:"gcash_account_number,omitempty" db:"gcash_account_number"`
	GCashQRCode        *string             `json:"gcash_qr_code,omitempty" db:"gcash_qr_code"`
	Amount             float64             `json:"amount" db:"amount"`
	Status             PaymentStatus       `json:"status" db:"status"`
	VerificationStatus *VerificationStatus `json:"verification_status,omitempty" db:"verification_status"`
	RejectionReason    *string             `json:"rejection_reason,omitempty" db:"rejection_reason"`
	VerifiedBy         *string             `json:"verified_by,omitempty" db:"verified_by"`
	VerifiedAt         *time.Time          `json:"verified_at,omitempty" db:"verified_at"`
	ProofPath          *string             `json:"payment_screenshot_path,omitempty" db:"payment_screenshot_path"`
	ProofSubmittedAt   *time.Time          `json:"proof_submitted_at,omitempty" db:"proof_submitted_at"`
	Details            JSONB               `json:"payment_details,omitempty" db:"payment_details"`
	PaidAt             *time.Time          `json:"paid_at,omitempty" db:"paid_at"`
	CreatedAt          time.Time           `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time           `json:"updated_at" db:"updated_at"`
}

// IsManual reports whether the payment settles through human review
func (p *Payment) IsManual() bool {
	return p.Provider == ProviderGCash
}

// CanBeRefunded checks if the payment is eligible for a refund
func (p *Payment) CanBeRefunded() bool {
	return p.Status == PaymentStatusCompleted
}

// AwaitingVerification reports whether a manual payment has uploaded proof
// waiting on an admin decision
func (p *Payment) AwaitingVerification() bool {
	return p.IsManual() &&
		p.Status == PaymentStatusPending &&
		p.ProofPath != nil &&
		p.VerificationStatus != nil && *p.VerificationStatus == VerificationPending
}
