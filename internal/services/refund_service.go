package services

import (
	"context"
	"fmt"

	"github.com/gabaylaguna/booking-backend/internal/models"
	"github.com/sirupsen/logrus"
)

// refundPaymentStore is the slice of the payment repository refunds use
type refundPaymentStore interface {
	GetByID(paymentID string) (*models.Payment, error)
	MarkRefunded(paymentID string, details models.JSONB) (bool, error)
	ListRefundable() ([]models.Payment, error)
}

// refundBookingStore flips the booking payment status after a refund
type refundBookingStore interface {
	MarkRefunded(bookingID string) error
}

// RefundService reverses settled payments. The provider call happens first
// and outside any lock; the ledger only flips once the money actually moved
// back, so a provider failure leaves the payment completed and retryable.
type RefundService struct {
	payments refundPaymentStore
	bookings refundBookingStore
	adapters map[models.PaymentProvider]ProviderAdapter
	audits   *AuditService
	logger   *logrus.Logger
}

// NewRefundService creates a new RefundService
func NewRefundService(payments refundPaymentStore, bookings refundBookingStore, adapters []ProviderAdapter, audits *AuditService, logger *logrus.Logger) *RefundService {
	registry := make(map[models.PaymentProvider]ProviderAdapter, len(adapters))
	for _, adapter := range adapters {
		registry[adapter.Provider()] = adapter
	}
	return &RefundService{
		payments: payments,
		bookings: bookings,
		adapters: registry,
		audits:   audits,
		logger:   logger,
	}
}

// ListRefundable lists the completed payments eligible for refund
func (s *RefundService) ListRefundable() ([]models.Payment, error) {
	return s.payments.ListRefundable()
}

// Refund reverses one settled payment
func (s *RefundService) Refund(ctx context.Context, paymentID string, meta RequestMeta) (*models.Payment, error) {
	payment, err := s.payments.GetByID(paymentID)
	if err != nil {
		return nil, err
	}

	if !payment.CanBeRefunded() {
		return nil, &models.InvalidTransitionError{
			BookingID: payment.BookingID,
			Reason:    fmt.Sprintf("payment is %s, only completed payments can be refunded", payment.Status),
		}
	}

	adapter, ok := s.adapters[payment.Provider]
	if !ok {
		return nil, fmt.Errorf("no adapter for provider %q", payment.Provider)
	}

	refundDetails, err := adapter.Refund(payment)
	if err != nil {
		s.audits.LogRefund(ctx, payment, false, err.Error(), meta)
		return nil, err
	}

	details := payment.Details.MergeMissing(refundDetails)
	flipped, err := s.payments.MarkRefunded(paymentID, details)
	if err != nil {
		return nil, err
	}
	if !flipped {
		// A concurrent refund already flipped the ledger; the provider call
		// above was idempotent or already-refunded on their side.
		s.logger.WithField("payment_id", paymentID).Warn("Payment already refunded")
		return s.payments.GetByID(paymentID)
	}

	if err := s.bookings.MarkRefunded(payment.BookingID); err != nil {
		s.logger.WithError(err).WithField("booking_id", payment.BookingID).Error("Failed to mark booking refunded")
	}

	s.audits.LogRefund(ctx, payment, true, "", meta)

	s.logger.WithFields(logrus.Fields{
		"payment_id": paymentID,
		"booking_id": payment.BookingID,
		"provider":   payment.Provider,
		"amount":     payment.Amount,
	}).Info("Payment refunded")

	return s.payments.GetByID(paymentID)
}
