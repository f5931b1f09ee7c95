package services

import (
	"crypto/rand"
	"fmt"
	"time"

	"github.com/gabaylaguna/booking-backend/internal/config"
	"github.com/gabaylaguna/booking-backend/internal/models"
	"github.com/sirupsen/logrus"
)

// referenceCharset is the alphabet for the random part of GCash references
const referenceCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// maxReferenceAttempts bounds the retry loop for reference generation
const maxReferenceAttempts = 10

// gcashAccountStore provides the active receiving account
type gcashAccountStore interface {
	GetActive() (*models.GCashAccount, error)
}

// referenceChecker reports whether a payment reference is already taken
type referenceChecker interface {
	ReferenceExists(reference string) (bool, error)
}

// GCashService handles the manual GCash payment rail. There is no provider
// API: the payer transfers to the active receiving account, uploads proof,
// and an admin decision settles the payment.
type GCashService struct {
	accounts gcashAccountStore
	payments referenceChecker
	cfg      *config.GCashConfig
	logger   *logrus.Logger
}

// NewGCashService creates a new manual GCash payment service
func NewGCashService(accounts gcashAccountStore, payments referenceChecker, cfg *config.GCashConfig, logger *logrus.Logger) *GCashService {
	return &GCashService{
		accounts: accounts,
		payments: payments,
		cfg:      cfg,
		logger:   logger,
	}
}

// Provider identifies the rail this adapter serves
func (s *GCashService) Provider() models.PaymentProvider {
	return models.ProviderGCash
}

// Initiate assigns a unique reference against the active receiving account
// and builds the transfer instructions. Nothing leaves the system.
func (s *GCashService) Initiate(booking *models.Booking, payment *models.Payment) (*InitiationResult, error) {
	account, err := s.accounts.GetActive()
	if err != nil {
		return nil, err
	}

	reference, err := s.generateReference()
	if err != nil {
		return nil, err
	}

	qr := s.buildQRString(account.AccountNumber, payment.Amount, reference)

	s.logger.WithFields(logrus.Fields{
		"booking_id": booking.ID,
		"reference":  reference,
		"account":    account.AccountNumber,
	}).Info("GCash payment reference issued")

	return &InitiationResult{
		TransactionID: reference,
		Extra: models.JSONB{
			"reference_number": reference,
			"account_name":     account.AccountName,
			"account_number":   account.AccountNumber,
			"qr_string":        qr,
			"instructions": fmt.Sprintf(
				"Send %.2f to GCash account %s (%s) and include reference %s in the notes, then upload your payment screenshot.",
				payment.Amount, account.AccountNumber, account.AccountName, reference),
		},
	}, nil
}

// Refund is a bank-side manual process for GCash; the ledger records it and
// staff transfer the money back outside the system.
func (s *GCashService) Refund(payment *models.Payment) (models.JSONB, error) {
	s.logger.WithFields(logrus.Fields{
		"payment_id": payment.ID,
		"amount":     payment.Amount,
	}).Info("GCash refund recorded for manual processing")

	return models.JSONB{
		"refund_method": "manual_transfer",
		"refund_note":   "transfer back to payer's GCash account",
	}, nil
}

// ValidateProof checks an uploaded proof file against the accepted types
// and the size limit.
func (s *GCashService) ValidateProof(contentType string, size int64) error {
	switch contentType {
	case "image/jpeg", "image/png", "application/pdf":
	default:
		return &models.InvalidProofError{Reason: fmt.Sprintf("unsupported file type %s, accepted: jpeg, png, pdf", contentType)}
	}

	if size <= 0 {
		return &models.InvalidProofError{Reason: "file is empty"}
	}
	if size > s.cfg.MaxProofSize {
		return &models.InvalidProofError{Reason: fmt.Sprintf("file exceeds %d bytes", s.cfg.MaxProofSize)}
	}

	return nil
}

// VerificationEvent builds the settlement event for an approved manual
// payment so it settles through the same path as gateway webhooks.
func (s *GCashService) VerificationEvent(payment *models.Payment, adminID string) *SettlementEvent {
	amount := payment.Amount
	return &SettlementEvent{
		Provider:       models.ProviderGCash,
		ProviderRef:    payment.TransactionID,
		Outcome:        OutcomePaid,
		AmountObserved: &amount,
		Metadata: models.JSONB{
			"verified_by": adminID,
		},
		Source: models.PaymentSourceAdmin,
	}
}

// generateReference builds a GCASH-YYYYMMDD-XXXXXXXX reference, retrying
// until it does not collide with an existing payment.
func (s *GCashService) generateReference() (string, error) {
	for attempt := 0; attempt < maxReferenceAttempts; attempt++ {
		suffix, err := randomString(8)
		if err != nil {
			return "", err
		}

		reference := fmt.Sprintf("GCASH-%s-%s", time.Now().Format("20060102"), suffix)

		exists, err := s.payments.ReferenceExists(reference)
		if err != nil {
			return "", err
		}
		if !exists {
			return reference, nil
		}
	}

	return "", fmt.Errorf("could not generate a unique payment reference")
}

// buildQRString encodes the transfer target as account|amount|reference
func (s *GCashService) buildQRString(accountNumber string, amount float64, reference string) string {
	return fmt.Sprintf("%s|%.2f|%s", accountNumber, amount, reference)
}

// randomString returns n random characters from the reference charset
func randomString(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i := range buf {
		buf[i] = referenceCharset[int(buf[i])%len(referenceCharset)]
	}
	return string(buf), nil
}
