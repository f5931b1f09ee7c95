package database

import (
	"context"
	"fmt"
	"time"

	"github.com/gabaylaguna/booking-backend/internal/models"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

// PaymentAuditRepository handles payment audit operations
type PaymentAuditRepository struct {
	db     *sqlx.DB
	logger *logrus.Logger
}

// NewPaymentAuditRepository creates a new payment audit repository
func NewPaymentAuditRepository(db *sqlx.DB, logger *logrus.Logger) *PaymentAuditRepository {
	return &PaymentAuditRepository{
		db:     db,
		logger: logger,
	}
}

// Log creates a new payment audit entry
// This should NEVER fail silently - payment events must be logged
func (r *PaymentAuditRepository) Log(ctx context.Context, audit *models.PaymentAudit) error {
	if audit == nil {
		return fmt.Errorf("audit entry cannot be nil")
	}

	// Ensure ID and timestamp are set
	if audit.ID == uuid.Nil {
		audit.ID = uuid.New()
	}
	if audit.CreatedAt.IsZero() {
		audit.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO payment_audits (
			id, payment_id, booking_id, provider, provider_ref,
			event_type, event_source,
			expected_amount, received_amount, currency, amounts_match,
			payment_status,
			request_payload, response_payload, raw_body,
			http_status_code, http_method, endpoint_url,
			error_message, error_code,
			processing_time_ms, is_duplicate,
			ip_address, user_agent, actor_id,
			created_at, processed_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7,
			$8, $9, $10, $11,
			$12,
			$13, $14, $15,
			$16, $17, $18,
			$19, $20,
			$21, $22,
			$23, $24, $25,
			$26, $27
		)`

	_, err := r.db.ExecContext(ctx, query,
		audit.ID, audit.PaymentID, audit.BookingID, audit.Provider, audit.ProviderRef,
		audit.EventType, audit.EventSource,
		audit.ExpectedAmount, audit.ReceivedAmount, audit.Currency, audit.AmountsMatch,
		audit.PaymentStatus,
		audit.RequestPayload, audit.ResponsePayload, audit.RawBody,
		audit.HTTPStatusCode, audit.HTTPMethod, audit.EndpointURL,
		audit.ErrorMessage, audit.ErrorCode,
		audit.ProcessingTimeMs, audit.IsDuplicate,
		audit.IPAddress, audit.UserAgent, audit.ActorID,
		audit.CreatedAt, audit.ProcessedAt,
	)

	if err != nil {
		r.logger.WithError(err).WithFields(logrus.Fields{
			"event_type":   audit.EventType,
			"provider_ref": audit.ProviderRef,
		}).Error("CRITICAL: Failed to log payment audit - THIS SHOULD NEVER HAPPEN")
		return fmt.Errorf("failed to log payment audit: %w", err)
	}

	r.logger.WithFields(logrus.Fields{
		"audit_id":     audit.ID,
		"event_type":   audit.EventType,
		"provider_ref": audit.ProviderRef,
	}).Debug("Payment audit logged")

	return nil
}

// CheckDuplicate checks if a settlement event has already been processed for
// a provider reference. Returns true if duplicate, false if new.
func (r *PaymentAuditRepository) CheckDuplicate(ctx context.Context, providerRef string, eventType models.PaymentEventType) (bool, error) {
	var count int
	query := `
		SELECT COUNT(*) FROM payment_audits
		WHERE provider_ref = $1
		AND event_type = $2
		AND is_duplicate = FALSE`

	err := r.db.GetContext(ctx, &count, query, providerRef, eventType)
	if err != nil {
		return false, fmt.Errorf("failed to check duplicate: %w", err)
	}

	return count > 0, nil
}

// GetByPaymentID retrieves the audit trail for a payment, oldest first
func (r *PaymentAuditRepository) GetByPaymentID(ctx context.Context, paymentID string) ([]models.PaymentAudit, error) {
	query := `
		SELECT * FROM payment_audits
		WHERE payment_id = $1
		ORDER BY created_at`

	audits := []models.PaymentAudit{}
	if err := r.db.SelectContext(ctx, &audits, query, paymentID); err != nil {
		return nil, fmt.Errorf("failed to load audit trail: %w", err)
	}

	return audits, nil
}

// GetByBookingID retrieves the audit trail for a booking, oldest first
func (r *PaymentAuditRepository) GetByBookingID(ctx context.Context, bookingID string) ([]models.PaymentAudit, error) {
	query := `
		SELECT * FROM payment_audits
		WHERE booking_id = $1
		ORDER BY created_at`

	audits := []models.PaymentAudit{}
	if err := r.db.SelectContext(ctx, &audits, query, bookingID); err != nil {
		return nil, fmt.Errorf("failed to load audit trail: %w", err)
	}

	return audits, nil
}
