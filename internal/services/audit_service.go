package services

import (
	"context"

	"github.com/gabaylaguna/booking-backend/internal/models"
	"github.com/gabaylaguna/booking-backend/internal/utils"
	"github.com/sirupsen/logrus"
)

// paymentAuditStore persists immutable payment audit rows
type paymentAuditStore interface {
	Log(ctx context.Context, audit *models.PaymentAudit) error
}

// AuditService records every settlement-relevant event on the payment audit
// trail. Audit writes must not block money movement: callers log failures
// and keep going.
type AuditService struct {
	audits paymentAuditStore
	logger *logrus.Logger
}

// NewAuditService creates a new audit service
func NewAuditService(audits paymentAuditStore, logger *logrus.Logger) *AuditService {
	return &AuditService{
		audits: audits,
		logger: logger,
	}
}

// RequestMeta carries the client context of an inbound request
type RequestMeta struct {
	IPAddress string
	UserAgent string
	ActorID   string
}

// LogInitiated records a new payment attempt being opened
func (s *AuditService) LogInitiated(ctx context.Context, payment *models.Payment, meta RequestMeta) {
	audit := models.NewPaymentAudit(models.PaymentEventInitiated, models.PaymentSourceUser).
		SetPayment(payment.ID).
		SetBooking(payment.BookingID).
		SetProviderRef(payment.Provider, payment.TransactionID).
		SetPaymentStatus(string(payment.Status)).
		SetMetadata(meta.IPAddress, meta.UserAgent, meta.ActorID)
	audit.SetRequestPayload(map[string]interface{}{
		"amount":      payment.Amount,
		"device_info": utils.ParseUserAgent(meta.UserAgent),
	})
	s.write(ctx, audit)
}

// LogWebhookReceived records the raw inbound webhook before any processing
func (s *AuditService) LogWebhookReceived(ctx context.Context, provider models.PaymentProvider, providerRef, rawBody string, meta RequestMeta) {
	audit := models.NewPaymentAudit(models.PaymentEventWebhookReceived, models.PaymentSourceProviderWebhook).
		SetProviderRef(provider, providerRef).
		SetRawBody(rawBody).
		SetMetadata(meta.IPAddress, meta.UserAgent, "")
	s.write(ctx, audit)
}

// LogSettled records a payment reaching completed along with the amount check
func (s *AuditService) LogSettled(ctx context.Context, payment *models.Payment, event *SettlementEvent, currency string) {
	audit := models.NewPaymentAudit(models.PaymentEventSuccess, event.Source).
		SetPayment(payment.ID).
		SetBooking(payment.BookingID).
		SetProviderRef(event.Provider, event.ProviderRef).
		SetPaymentStatus(string(models.PaymentStatusCompleted))
	if event.AmountObserved != nil {
		audit.SetAmounts(payment.Amount, *event.AmountObserved, currency)
	}
	s.write(ctx, audit)
}

// LogBookingConfirmed records the booking transition driven by settlement
func (s *AuditService) LogBookingConfirmed(ctx context.Context, payment *models.Payment) {
	audit := models.NewPaymentAudit(models.PaymentEventBookingConfirmed, models.PaymentSourceSystem).
		SetPayment(payment.ID).
		SetBooking(payment.BookingID).
		SetProviderRef(payment.Provider, payment.TransactionID)
	s.write(ctx, audit)
}

// LogDuplicate records a replayed settlement that changed nothing
func (s *AuditService) LogDuplicate(ctx context.Context, payment *models.Payment, event *SettlementEvent) {
	audit := models.NewPaymentAudit(models.PaymentEventWebhookReceived, event.Source).
		SetPayment(payment.ID).
		SetBooking(payment.BookingID).
		SetProviderRef(event.Provider, event.ProviderRef).
		SetPaymentStatus(string(payment.Status)).
		MarkAsDuplicate()
	s.write(ctx, audit)
}

// LogMismatch records a reconciliation mismatch that needs human review
func (s *AuditService) LogMismatch(ctx context.Context, payment *models.Payment, event *SettlementEvent, reason string) {
	audit := models.NewPaymentAudit(models.PaymentEventReconciliationMismatch, event.Source).
		SetProviderRef(event.Provider, event.ProviderRef).
		SetError(reason, nil).
		SetRawBody(event.RawBody)
	if payment != nil {
		audit.SetPayment(payment.ID).
			SetBooking(payment.BookingID).
			SetPaymentStatus(string(payment.Status))
		if event.AmountObserved != nil {
			audit.SetAmounts(payment.Amount, *event.AmountObserved, "")
		}
	}
	s.write(ctx, audit)
}

// LogFailed records a failed settlement outcome; the payment stays pending
func (s *AuditService) LogFailed(ctx context.Context, payment *models.Payment, event *SettlementEvent) {
	audit := models.NewPaymentAudit(models.PaymentEventFailed, event.Source).
		SetPayment(payment.ID).
		SetBooking(payment.BookingID).
		SetProviderRef(event.Provider, event.ProviderRef).
		SetPaymentStatus(string(payment.Status)).
		SetRawBody(event.RawBody)
	s.write(ctx, audit)
}

// LogExpired records a payment attempt expiring unpaid
func (s *AuditService) LogExpired(ctx context.Context, payment *models.Payment, source models.PaymentEventSource) {
	audit := models.NewPaymentAudit(models.PaymentEventExpired, source).
		SetPayment(payment.ID).
		SetBooking(payment.BookingID).
		SetProviderRef(payment.Provider, payment.TransactionID).
		SetPaymentStatus(string(models.PaymentStatusAbandoned))
	s.write(ctx, audit)
}

// LogProofSubmitted records a manual payment proof upload
func (s *AuditService) LogProofSubmitted(ctx context.Context, payment *models.Payment, meta RequestMeta) {
	audit := models.NewPaymentAudit(models.PaymentEventProofSubmitted, models.PaymentSourceUser).
		SetPayment(payment.ID).
		SetBooking(payment.BookingID).
		SetProviderRef(payment.Provider, payment.TransactionID).
		SetMetadata(meta.IPAddress, meta.UserAgent, meta.ActorID)
	audit.SetRequestPayload(map[string]interface{}{
		"device_info": utils.ParseUserAgent(meta.UserAgent),
	})
	s.write(ctx, audit)
}

// LogVerificationDecision records an admin verify/reject decision
func (s *AuditService) LogVerificationDecision(ctx context.Context, payment *models.Payment, approved bool, reason *string, meta RequestMeta) {
	eventType := models.PaymentEventManualVerified
	if !approved {
		eventType = models.PaymentEventManualRejected
	}
	audit := models.NewPaymentAudit(eventType, models.PaymentSourceAdmin).
		SetPayment(payment.ID).
		SetBooking(payment.BookingID).
		SetProviderRef(payment.Provider, payment.TransactionID).
		SetMetadata(meta.IPAddress, meta.UserAgent, meta.ActorID)
	if reason != nil {
		audit.SetError(*reason, nil)
	}
	s.write(ctx, audit)
}

// LogRefund records a refund attempt and its outcome
func (s *AuditService) LogRefund(ctx context.Context, payment *models.Payment, succeeded bool, errMsg string, meta RequestMeta) {
	eventType := models.PaymentEventRefundCompleted
	if !succeeded {
		eventType = models.PaymentEventRefundFailed
	}
	audit := models.NewPaymentAudit(eventType, models.PaymentSourceAdmin).
		SetPayment(payment.ID).
		SetBooking(payment.BookingID).
		SetProviderRef(payment.Provider, payment.TransactionID).
		SetPaymentStatus(string(payment.Status)).
		SetMetadata(meta.IPAddress, meta.UserAgent, meta.ActorID)
	if errMsg != "" {
		audit.SetError(errMsg, nil)
	}
	s.write(ctx, audit)
}

// write persists an audit row, logging but not propagating failures
func (s *AuditService) write(ctx context.Context, audit *models.PaymentAudit) {
	if err := s.audits.Log(ctx, audit); err != nil {
		s.logger.WithError(err).WithField("event_type", audit.EventType).Error("Failed to write payment audit")
	}
}
