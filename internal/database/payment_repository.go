package database

import (
	"database/sql"
	"errors"

	"github.com/gabaylaguna/booking-backend/internal/models"
	"github.com/google/uuid"
)

// PaymentRepository handles database operations for the payments ledger
type PaymentRepository struct {
	db DB
}

// NewPaymentRepository creates a new PaymentRepository
func NewPaymentRepository(db DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

const paymentColumns = `
	id, booking_id, payment_method, transaction_id, reference_number,
	gcash_account_number, gcash_qr_code, amount, status,
	verification_status, rejection_reason, verified_by, verified_at,
	payment_screenshot_path, proof_submitted_at, payment_details,
	paid_at, created_at, updated_at`

// Create creates a new payment attempt
func (r *PaymentRepository) Create(payment *models.Payment) error {
	query := `
		INSERT INTO payments (
			id, booking_id, payment_method, transaction_id, reference_number,
			gcash_account_number, gcash_qr_code, amount, status,
			verification_status, payment_details
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11
		)
		RETURNING created_at, updated_at
	`

	if payment.ID == "" {
		payment.ID = uuid.New().String()
	}

	return r.db.QueryRow(
		query,
		payment.ID, payment.BookingID, payment.Provider, payment.TransactionID,
		payment.ReferenceNumber, payment.GCashAccountNumber, payment.GCashQRCode,
		payment.Amount, payment.Status, payment.VerificationStatus, payment.Details,
	).Scan(&payment.CreatedAt, &payment.UpdatedAt)
}

// GetByID retrieves a payment by ID
func (r *PaymentRepository) GetByID(paymentID string) (*models.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`

	payment, err := r.scanPayment(r.db.QueryRow(query, paymentID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrPaymentNotFound
	}
	return payment, err
}

// GetByProviderRef resolves an inbound settlement reference to a payment.
// The (provider, transaction_id) pair is the settlement idempotency key.
func (r *PaymentRepository) GetByProviderRef(provider models.PaymentProvider, ref string) (*models.Payment, error) {
	query := `SELECT ` + paymentColumns + `
		FROM payments
		WHERE payment_method = $1 AND transaction_id = $2`

	payment, err := r.scanPayment(r.db.QueryRow(query, provider, ref))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrPaymentNotFound
	}
	return payment, err
}

// GetByBookingID retrieves all payment attempts for a booking
func (r *PaymentRepository) GetByBookingID(bookingID string) ([]models.Payment, error) {
	query := `SELECT ` + paymentColumns + `
		FROM payments
		WHERE booking_id = $1
		ORDER BY created_at DESC`

	rows, err := r.db.Query(query, bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return r.scanPayments(rows)
}

// AttachInitiation stores the provider's reference once the attempt is open
// on the provider side.
func (r *PaymentRepository) AttachInitiation(paymentID, transactionID string, referenceNumber, gcashAccountNumber, gcashQRCode *string, details models.JSONB) error {
	query := `
		UPDATE payments
		SET transaction_id = $2,
			reference_number = $3,
			gcash_account_number = $4,
			gcash_qr_code = $5,
			payment_details = $6,
			updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.db.Exec(query, paymentID, transactionID, referenceNumber, gcashAccountNumber, gcashQRCode, details)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rows == 0 {
		return models.ErrPaymentNotFound
	}

	return nil
}

// CompleteIfPending settles a payment. The pending guard makes the operation
// idempotent: replayed settlements find a completed row and change nothing.
func (r *PaymentRepository) CompleteIfPending(paymentID string, details models.JSONB) (bool, error) {
	query := `
		UPDATE payments
		SET status = 'completed',
			payment_details = $2,
			paid_at = NOW(),
			updated_at = NOW()
		WHERE id = $1
		  AND status = 'pending'
	`

	result, err := r.db.Exec(query, paymentID, details)
	if err != nil {
		return false, err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return rows > 0, nil
}

// MarkRefunded flips a completed payment to refunded
func (r *PaymentRepository) MarkRefunded(paymentID string, details models.JSONB) (bool, error) {
	query := `
		UPDATE payments
		SET status = 'refunded',
			payment_details = $2,
			updated_at = NOW()
		WHERE id = $1
		  AND status = 'completed'
	`

	result, err := r.db.Exec(query, paymentID, details)
	if err != nil {
		return false, err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return rows > 0, nil
}

// AbandonIfPending expires a pending payment attempt. Attempts that already
// have proof uploaded are left for the verification queue.
func (r *PaymentRepository) AbandonIfPending(paymentID string) (bool, error) {
	query := `
		UPDATE payments
		SET status = 'abandoned', updated_at = NOW()
		WHERE id = $1
		  AND status = 'pending'
		  AND payment_screenshot_path IS NULL
	`

	result, err := r.db.Exec(query, paymentID)
	if err != nil {
		return false, err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return rows > 0, nil
}

// AbandonOtherPending abandons the other pending attempts for a booking when
// a new attempt is started. Rows are kept for the audit trail.
func (r *PaymentRepository) AbandonOtherPending(bookingID, exceptPaymentID string) error {
	query := `
		UPDATE payments
		SET status = 'abandoned', updated_at = NOW()
		WHERE booking_id = $1
		  AND id != $2
		  AND status = 'pending'
	`

	_, err := r.db.Exec(query, bookingID, exceptPaymentID)
	return err
}

// AttachProof stores the uploaded proof path and queues the payment for
// manual verification.
func (r *PaymentRepository) AttachProof(paymentID, proofPath string) error {
	query := `
		UPDATE payments
		SET payment_screenshot_path = $2,
			proof_submitted_at = NOW(),
			verification_status = 'pending',
			updated_at = NOW()
		WHERE id = $1
		  AND status = 'pending'
	`

	result, err := r.db.Exec(query, paymentID, proofPath)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rows == 0 {
		return models.ErrPaymentNotFound
	}

	return nil
}

// SetVerificationDecision records the admin's verify/reject decision
func (r *PaymentRepository) SetVerificationDecision(paymentID string, status models.VerificationStatus, adminID string, reason *string) error {
	query := `
		UPDATE payments
		SET verification_status = $2,
			verified_by = $3,
			verified_at = NOW(),
			rejection_reason = $4,
			updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.db.Exec(query, paymentID, status, adminID, reason)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rows == 0 {
		return models.ErrPaymentNotFound
	}

	return nil
}

// ReferenceExists reports whether a generated reference number is taken
func (r *PaymentRepository) ReferenceExists(reference string) (bool, error) {
	var count int
	query := `SELECT COUNT(*) FROM payments WHERE reference_number = $1`

	if err := r.db.QueryRow(query, reference).Scan(&count); err != nil {
		return false, err
	}

	return count > 0, nil
}

// ListAwaitingVerification retrieves manual payments with proof uploaded and
// no decision yet, oldest first.
func (r *PaymentRepository) ListAwaitingVerification() ([]models.Payment, error) {
	query := `SELECT ` + paymentColumns + `
		FROM payments
		WHERE payment_method = 'gcash'
		  AND status = 'pending'
		  AND payment_screenshot_path IS NOT NULL
		  AND verification_status = 'pending'
		ORDER BY proof_submitted_at`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return r.scanPayments(rows)
}

// ListRefundable retrieves completed payments eligible for refund
func (r *PaymentRepository) ListRefundable() ([]models.Payment, error) {
	query := `SELECT ` + paymentColumns + `
		FROM payments
		WHERE status = 'completed'
		ORDER BY paid_at DESC`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return r.scanPayments(rows)
}

// scanPayment scans a single payment
func (r *PaymentRepository) scanPayment(row scanner) (*models.Payment, error) {
	payment := &models.Payment{}
	var referenceNumber sql.NullString
	var gcashAccountNumber sql.NullString
	var gcashQRCode sql.NullString
	var verificationStatus sql.NullString
	var rejectionReason sql.NullString
	var verifiedBy sql.NullString
	var verifiedAt sql.NullTime
	var proofPath sql.NullString
	var proofSubmittedAt sql.NullTime
	var paidAt sql.NullTime

	err := row.Scan(
		&payment.ID, &payment.BookingID, &payment.Provider, &payment.TransactionID,
		&referenceNumber, &gcashAccountNumber, &gcashQRCode, &payment.Amount,
		&payment.Status, &verificationStatus, &rejectionReason, &verifiedBy,
		&verifiedAt, &proofPath, &proofSubmittedAt, &payment.Details,
		&paidAt, &payment.CreatedAt, &payment.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	// Convert sql.Null* types
	if referenceNumber.Valid {
		payment.ReferenceNumber = &referenceNumber.String
	}
	if gcashAccountNumber.Valid {
		payment.GCashAccountNumber = &gcashAccountNumber.String
	}
	if gcashQRCode.Valid {
		payment.GCashQRCode = &gcashQRCode.String
	}
	if verificationStatus.Valid {
		vs := models.VerificationStatus(verificationStatus.String)
		payment.VerificationStatus = &vs
	}
	if rejectionReason.Valid {
		payment.RejectionReason = &rejectionReason.String
	}
	if verifiedBy.Valid {
		payment.VerifiedBy = &verifiedBy.String
	}
	if verifiedAt.Valid {
		payment.VerifiedAt = &verifiedAt.Time
	}
	if proofPath.Valid {
		payment.ProofPath = &proofPath.String
	}
	if proofSubmittedAt.Valid {
		payment.ProofSubmittedAt = &proofSubmittedAt.Time
	}
	if paidAt.Valid {
		payment.PaidAt = &paidAt.Time
	}

	return payment, nil
}

// scanPayments scans multiple payments from rows
func (r *PaymentRepository) scanPayments(rows *sql.Rows) ([]models.Payment, error) {
	payments := []models.Payment{}

	for rows.Next() {
		payment, err := r.scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, *payment)
	}

	return payments, rows.Err()
}
