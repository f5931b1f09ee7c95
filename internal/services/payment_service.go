package services

import (
	"context"
	"fmt"
	"time"

	"github.com/gabaylaguna/booking-backend/internal/config"
	"github.com/gabaylaguna/booking-backend/internal/models"
	"github.com/sirupsen/logrus"
)

// paymentLedgerStore is the slice of the payment repository this service uses
type paymentLedgerStore interface {
	Create(payment *models.Payment) error
	GetByID(paymentID string) (*models.Payment, error)
	GetByBookingID(bookingID string) ([]models.Payment, error)
	AttachInitiation(paymentID, transactionID string, referenceNumber, gcashAccountNumber, gcashQRCode *string, details models.JSONB) error
	AbandonIfPending(paymentID string) (bool, error)
	AbandonOtherPending(bookingID, exceptPaymentID string) error
}

// paymentBookingStore resolves bookings for payment initiation
type paymentBookingStore interface {
	GetByID(bookingID string) (*models.Booking, error)
}

// expiryScheduler queues the deadline after which an unpaid attempt lapses
type expiryScheduler interface {
	ScheduleExpiry(paymentID string, delay time.Duration) error
}

// PaymentService opens payment attempts on the configured rails and keeps
// the ledger consistent: one live pending attempt per booking, older
// attempts abandoned, provider calls always outside database transactions.
type PaymentService struct {
	payments paymentLedgerStore
	bookings paymentBookingStore
	adapters map[models.PaymentProvider]ProviderAdapter
	expiry   expiryScheduler
	audits   *AuditService
	payCfg   *config.PaymentsConfig
	logger   *logrus.Logger
}

// NewPaymentService creates a new PaymentService
func NewPaymentService(payments paymentLedgerStore, bookings paymentBookingStore, adapters []ProviderAdapter, expiry expiryScheduler, audits *AuditService, payCfg *config.PaymentsConfig, logger *logrus.Logger) *PaymentService {
	registry := make(map[models.PaymentProvider]ProviderAdapter, len(adapters))
	for _, adapter := range adapters {
		registry[adapter.Provider()] = adapter
	}
	return &PaymentService{
		payments: payments,
		bookings: bookings,
		adapters: registry,
		expiry:   expiry,
		audits:   audits,
		payCfg:   payCfg,
		logger:   logger,
	}
}

// InitiatePaymentInput carries a validated payment initiation request
type InitiatePaymentInput struct {
	BookingID string
	Provider  models.PaymentProvider
	// BankCode picks the virtual account bank; ignored by other rails
	BankCode string
	Meta     RequestMeta
}

// InitiatePaymentResult is what the client needs to complete the payment
type InitiatePaymentResult struct {
	Payment     *models.Payment `json:"payment"`
	CheckoutURL string          `json:"checkout_url,omitempty"`
	Extra       models.JSONB    `json:"details,omitempty"`
}

// Initiate opens a payment attempt for the booking total on the chosen rail.
// Any older pending attempt for the booking is abandoned; its row stays in
// the ledger.
func (s *PaymentService) Initiate(ctx context.Context, input InitiatePaymentInput) (*InitiatePaymentResult, error) {
	adapter, ok := s.adapters[input.Provider]
	if !ok {
		return nil, fmt.Errorf("unsupported payment provider %q", input.Provider)
	}

	booking, err := s.bookings.GetByID(input.BookingID)
	if err != nil {
		return nil, err
	}

	if booking.Status != models.BookingStatusPending {
		return nil, &models.InvalidTransitionError{
			BookingID: booking.ID,
			Reason:    fmt.Sprintf("booking is %s, payments can only be opened for pending bookings", booking.Status),
		}
	}
	if booking.IsPaid() {
		return nil, &models.InvalidTransitionError{
			BookingID: booking.ID,
			Reason:    "booking is already paid",
		}
	}

	payment := &models.Payment{
		BookingID: booking.ID,
		Provider:  input.Provider,
		Amount:    booking.TotalAmount,
		Status:    models.PaymentStatusPending,
		Details:   models.JSONB{},
	}
	if input.BankCode != "" {
		payment.Details["bank_code"] = input.BankCode
	}

	if err := s.payments.Create(payment); err != nil {
		return nil, err
	}

	// Provider call runs after the row exists and outside any transaction
	result, err := adapter.Initiate(booking, payment)
	if err != nil {
		// The attempt never opened on the provider side; close our row so
		// it does not linger as a live pending attempt.
		if _, abandonErr := s.payments.AbandonIfPending(payment.ID); abandonErr != nil {
			s.logger.WithError(abandonErr).WithField("payment_id", payment.ID).Error("Failed to abandon payment after initiation failure")
		}
		return nil, err
	}

	var reference, account, qr *string
	details := payment.Details.MergeMissing(result.Extra)
	if ref, ok := result.Extra["reference_number"].(string); ok {
		reference = &ref
	}
	if acc, ok := result.Extra["account_number"].(string); ok && input.Provider == models.ProviderGCash {
		account = &acc
	}
	if qrStr, ok := result.Extra["qr_string"].(string); ok {
		qr = &qrStr
	}

	if err := s.payments.AttachInitiation(payment.ID, result.TransactionID, reference, account, qr, details); err != nil {
		return nil, err
	}
	payment.TransactionID = result.TransactionID
	payment.ReferenceNumber = reference
	payment.GCashAccountNumber = account
	payment.GCashQRCode = qr
	payment.Details = details

	if err := s.payments.AbandonOtherPending(booking.ID, payment.ID); err != nil {
		s.logger.WithError(err).WithField("booking_id", booking.ID).Error("Failed to abandon superseded payment attempts")
	}

	s.audits.LogInitiated(ctx, payment, input.Meta)

	// Manual GCash attempts wait on human verification and never auto-expire
	if s.expiry != nil && input.Provider != models.ProviderGCash {
		if err := s.expiry.ScheduleExpiry(payment.ID, s.payCfg.PendingTTL); err != nil {
			s.logger.WithError(err).WithField("payment_id", payment.ID).Error("Failed to schedule payment expiry")
		}
	}

	s.logger.WithFields(logrus.Fields{
		"payment_id": payment.ID,
		"booking_id": booking.ID,
		"provider":   input.Provider,
		"amount":     payment.Amount,
	}).Info("Payment attempt opened")

	return &InitiatePaymentResult{
		Payment:     payment,
		CheckoutURL: result.CheckoutURL,
		Extra:       result.Extra,
	}, nil
}

// GetByID retrieves a payment
func (s *PaymentService) GetByID(paymentID string) (*models.Payment, error) {
	return s.payments.GetByID(paymentID)
}

// ListForBooking retrieves all payment attempts for a booking, newest first
func (s *PaymentService) ListForBooking(bookingID string) ([]models.Payment, error) {
	return s.payments.GetByBookingID(bookingID)
}

// Adapter exposes the adapter for a provider, for callers that need
// provider-specific operations like PayPal capture.
func (s *PaymentService) Adapter(provider models.PaymentProvider) (ProviderAdapter, bool) {
	adapter, ok := s.adapters[provider]
	return adapter, ok
}
