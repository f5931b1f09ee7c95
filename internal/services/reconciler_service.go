package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/gabaylaguna/booking-backend/internal/config"
	"github.com/gabaylaguna/booking-backend/internal/models"
	"github.com/sirupsen/logrus"
)

// settlementPaymentStore is the slice of the payment repository the
// reconciler writes through
type settlementPaymentStore interface {
	GetByProviderRef(provider models.PaymentProvider, ref string) (*models.Payment, error)
	CompleteIfPending(paymentID string, details models.JSONB) (bool, error)
	AbandonIfPending(paymentID string) (bool, error)
}

// settlementBookingStore is the slice of the booking repository the
// reconciler drives transitions through
type settlementBookingStore interface {
	GetByID(bookingID string) (*models.Booking, error)
	ConfirmPaid(bookingID string) (bool, error)
}

// ReconcilerService applies normalized settlement events to the ledger and
// drives the settlement-side booking transition. Every inbound settlement,
// whether webhook, capture response or manual verification, lands here.
type ReconcilerService struct {
	payments settlementPaymentStore
	bookings settlementBookingStore
	audits   *AuditService
	payCfg   *config.PaymentsConfig
	logger   *logrus.Logger
}

// NewReconcilerService creates a new ReconcilerService
func NewReconcilerService(payments settlementPaymentStore, bookings settlementBookingStore, audits *AuditService, payCfg *config.PaymentsConfig, logger *logrus.Logger) *ReconcilerService {
	return &ReconcilerService{
		payments: payments,
		bookings: bookings,
		audits:   audits,
		payCfg:   payCfg,
		logger:   logger,
	}
}

// Apply applies one settlement event. It is idempotent: replays and unknown
// references are absorbed without changing state, so callers can always ack
// the provider.
func (s *ReconcilerService) Apply(ctx context.Context, event *SettlementEvent) error {
	if event == nil {
		return fmt.Errorf("settlement event cannot be nil")
	}

	payment, err := s.payments.GetByProviderRef(event.Provider, event.ProviderRef)
	if errors.Is(err, models.ErrPaymentNotFound) {
		// Unknown reference: absorb, audit, and let the caller ack. A retry
		// storm from the provider must not build up.
		s.logger.WithFields(logrus.Fields{
			"provider":     event.Provider,
			"provider_ref": event.ProviderRef,
		}).Warn("Settlement references no known payment")
		s.audits.LogMismatch(ctx, nil, event, "settlement references no known payment")
		return nil
	}
	if err != nil {
		return err
	}

	switch event.Outcome {
	case OutcomePaid:
		return s.applyPaid(ctx, payment, event)
	case OutcomeFailed:
		// A failed outcome is informational; the attempt stays pending and
		// the payer may retry through the same reference.
		s.audits.LogFailed(ctx, payment, event)
		return nil
	case OutcomeExpired:
		return s.applyExpired(ctx, payment, event)
	default:
		return fmt.Errorf("unknown settlement outcome %q", event.Outcome)
	}
}

// applyPaid settles a payment and confirms its booking
func (s *ReconcilerService) applyPaid(ctx context.Context, payment *models.Payment, event *SettlementEvent) error {
	switch payment.Status {
	case models.PaymentStatusCompleted:
		// Duplicate delivery of a settlement already applied
		s.logger.WithFields(logrus.Fields{
			"payment_id":   payment.ID,
			"provider_ref": event.ProviderRef,
		}).Debug("Duplicate settlement ignored")
		s.audits.LogDuplicate(ctx, payment, event)
		return nil
	case models.PaymentStatusRefunded, models.PaymentStatusAbandoned:
		// A paid event for a closed attempt conflicts with ledger history
		s.audits.LogMismatch(ctx, payment, event,
			fmt.Sprintf("paid settlement for %s payment", payment.Status))
		return nil
	}

	// Amount drift does not block settlement; it is flagged for review
	amountsMatch := true
	if event.AmountObserved != nil {
		amountsMatch = absDiff(payment.Amount, *event.AmountObserved) < 0.01
	}

	details := payment.Details.MergeMissing(event.Metadata)
	settled, err := s.payments.CompleteIfPending(payment.ID, details)
	if err != nil {
		return err
	}
	if !settled {
		// Lost the race to a concurrent delivery of the same settlement
		s.audits.LogDuplicate(ctx, payment, event)
		return nil
	}

	s.audits.LogSettled(ctx, payment, event, s.payCfg.Currency)
	if !amountsMatch {
		s.audits.LogMismatch(ctx, payment, event, "settled amount differs from expected amount")
	}

	confirmed, err := s.bookings.ConfirmPaid(payment.BookingID)
	if err != nil {
		return err
	}
	if !confirmed {
		// The booking left pending before the money arrived, usually a
		// cancellation racing a late settlement. The payment stays
		// completed for the refund path; the booking is not resurrected.
		booking, lookupErr := s.bookings.GetByID(payment.BookingID)
		reason := "settlement for booking no longer pending"
		if lookupErr == nil {
			reason = fmt.Sprintf("settlement for %s booking", booking.Status)
		}
		s.logger.WithFields(logrus.Fields{
			"payment_id": payment.ID,
			"booking_id": payment.BookingID,
		}).Warn("Settled payment for a booking no longer pending")
		s.audits.LogMismatch(ctx, payment, event, reason)
		return nil
	}

	s.audits.LogBookingConfirmed(ctx, payment)

	s.logger.WithFields(logrus.Fields{
		"payment_id": payment.ID,
		"booking_id": payment.BookingID,
		"provider":   event.Provider,
	}).Info("Payment settled and booking confirmed")

	return nil
}

// applyExpired abandons a pending attempt that ran out of time
func (s *ReconcilerService) applyExpired(ctx context.Context, payment *models.Payment, event *SettlementEvent) error {
	abandoned, err := s.payments.AbandonIfPending(payment.ID)
	if err != nil {
		return err
	}
	if !abandoned {
		// Already settled or already closed; nothing to expire
		s.logger.WithField("payment_id", payment.ID).Debug("Expiry ignored for non-pending payment")
		return nil
	}

	s.audits.LogExpired(ctx, payment, event.Source)

	s.logger.WithFields(logrus.Fields{
		"payment_id": payment.ID,
		"provider":   payment.Provider,
	}).Info("Payment attempt expired")

	return nil
}

// absDiff returns the absolute difference between two amounts
func absDiff(a, b float64) float64 {
	if a > b {
		return a - b
	}
	return b - a
}
