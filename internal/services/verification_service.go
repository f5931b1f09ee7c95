package services

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/gabaylaguna/booking-backend/internal/config"
	"github.com/gabaylaguna/booking-backend/internal/models"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// verificationPaymentStore is the slice of the payment repository the
// manual verification queue uses
type verificationPaymentStore interface {
	GetByID(paymentID string) (*models.Payment, error)
	AttachProof(paymentID, proofPath string) error
	SetVerificationDecision(paymentID string, status models.VerificationStatus, adminID string, reason *string) error
	ListAwaitingVerification() ([]models.Payment, error)
}

// VerificationService runs the manual settlement queue for GCash payments:
// proof intake, the admin work list, and the verify/reject decision. An
// approval settles through the reconciler exactly like a gateway webhook.
type VerificationService struct {
	payments   verificationPaymentStore
	gcash      *GCashService
	reconciler *ReconcilerService
	audits     *AuditService
	cfg        *config.GCashConfig
	logger     *logrus.Logger
}

// NewVerificationService creates a new VerificationService
func NewVerificationService(payments verificationPaymentStore, gcash *GCashService, reconciler *ReconcilerService, audits *AuditService, cfg *config.GCashConfig, logger *logrus.Logger) *VerificationService {
	return &VerificationService{
		payments:   payments,
		gcash:      gcash,
		reconciler: reconciler,
		audits:     audits,
		cfg:        cfg,
		logger:     logger,
	}
}

// UploadProof validates and stores a payment proof file and queues the
// payment for admin review.
func (s *VerificationService) UploadProof(ctx context.Context, paymentID string, file io.Reader, contentType string, size int64, meta RequestMeta) (*models.Payment, error) {
	payment, err := s.payments.GetByID(paymentID)
	if err != nil {
		return nil, err
	}

	if !payment.IsManual() {
		return nil, &models.InvalidProofError{Reason: "proof uploads apply only to GCash payments"}
	}
	if payment.Status != models.PaymentStatusPending {
		return nil, &models.InvalidProofError{Reason: fmt.Sprintf("payment is %s, not pending", payment.Status)}
	}

	if err := s.gcash.ValidateProof(contentType, size); err != nil {
		return nil, err
	}

	proofPath, err := s.saveProof(file, contentType, size)
	if err != nil {
		return nil, err
	}

	if err := s.payments.AttachProof(paymentID, proofPath); err != nil {
		return nil, err
	}

	s.audits.LogProofSubmitted(ctx, payment, meta)

	s.logger.WithFields(logrus.Fields{
		"payment_id": paymentID,
		"proof_path": proofPath,
	}).Info("Payment proof submitted")

	return s.payments.GetByID(paymentID)
}

// Queue lists the payments awaiting an admin decision, oldest first
func (s *VerificationService) Queue() ([]models.Payment, error) {
	return s.payments.ListAwaitingVerification()
}

// Approve marks the proof verified and settles the payment through the
// reconciler, confirming the booking the same way a gateway webhook would.
func (s *VerificationService) Approve(ctx context.Context, paymentID, adminID string, meta RequestMeta) (*models.Payment, error) {
	payment, err := s.payments.GetByID(paymentID)
	if err != nil {
		return nil, err
	}

	if !payment.AwaitingVerification() {
		return nil, &models.InvalidProofError{Reason: "payment is not awaiting verification"}
	}

	// The decision is recorded only after settlement succeeds, so a failed
	// settlement leaves the payment awaiting verification for a retry.
	event := s.gcash.VerificationEvent(payment, adminID)
	event.Metadata["ip_address"] = meta.IPAddress
	if err := s.reconciler.Apply(ctx, event); err != nil {
		return nil, err
	}

	if err := s.payments.SetVerificationDecision(paymentID, models.VerificationVerified, adminID, nil); err != nil {
		return nil, err
	}

	s.audits.LogVerificationDecision(ctx, payment, true, nil, meta)

	return s.payments.GetByID(paymentID)
}

// Reject records a rejection with its reason. The payment stays pending so
// the tourist can upload a corrected proof.
func (s *VerificationService) Reject(ctx context.Context, paymentID, adminID, reason string, meta RequestMeta) (*models.Payment, error) {
	if reason == "" {
		return nil, &models.InvalidProofError{Reason: "a rejection reason is required"}
	}

	payment, err := s.payments.GetByID(paymentID)
	if err != nil {
		return nil, err
	}

	if !payment.AwaitingVerification() {
		return nil, &models.InvalidProofError{Reason: "payment is not awaiting verification"}
	}

	if err := s.payments.SetVerificationDecision(paymentID, models.VerificationRejected, adminID, &reason); err != nil {
		return nil, err
	}

	s.audits.LogVerificationDecision(ctx, payment, false, &reason, meta)

	s.logger.WithFields(logrus.Fields{
		"payment_id": paymentID,
		"reason":     reason,
	}).Info("Payment proof rejected")

	return s.payments.GetByID(paymentID)
}

// saveProof writes the uploaded file under the proof directory
func (s *VerificationService) saveProof(file io.Reader, contentType string, size int64) (string, error) {
	if err := os.MkdirAll(s.cfg.ProofDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to prepare proof directory: %w", err)
	}

	ext := ".bin"
	switch contentType {
	case "image/jpeg":
		ext = ".jpg"
	case "image/png":
		ext = ".png"
	case "application/pdf":
		ext = ".pdf"
	}

	proofPath := filepath.Join(s.cfg.ProofDir, uuid.New().String()+ext)
	out, err := os.Create(proofPath)
	if err != nil {
		return "", fmt.Errorf("failed to store proof: %w", err)
	}
	defer out.Close()

	// One byte past the declared size catches bodies larger than declared
	written, err := io.Copy(out, io.LimitReader(file, size+1))
	if err != nil {
		os.Remove(proofPath)
		return "", fmt.Errorf("failed to store proof: %w", err)
	}
	if written > size {
		os.Remove(proofPath)
		return "", &models.InvalidProofError{Reason: "file larger than declared size"}
	}

	return proofPath, nil
}
