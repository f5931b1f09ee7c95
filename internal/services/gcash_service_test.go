package services

import (
	"fmt"
	"regexp"
	"testing"

	"github.com/gabaylaguna/booking-backend/internal/config"
	"github.com/gabaylaguna/booking-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAccountStore struct {
	account *models.GCashAccount
	err     error
}

func (f *fakeAccountStore) GetActive() (*models.GCashAccount, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.account, nil
}

type fakeReferenceChecker struct {
	collisions int // first n lookups report the reference as taken
	calls      int
}

func (f *fakeReferenceChecker) ReferenceExists(reference string) (bool, error) {
	f.calls++
	return f.calls <= f.collisions, nil
}

func newGCashFixture(accounts *fakeAccountStore, refs *fakeReferenceChecker) *GCashService {
	return NewGCashService(accounts, refs, &config.GCashConfig{
		ProofDir:     "storage/payment_proofs",
		MaxProofSize: 5242880,
	}, newTestLogger())
}

var referencePattern = regexp.MustCompile(`^GCASH-\d{8}-[A-Z0-9]{8}$`)

func TestGCashInitiate(t *testing.T) {
	account := &models.GCashAccount{AccountName: "Gabay Laguna Tours", AccountNumber: "09171234567", IsActive: true}

	t.Run("Issues reference and transfer instructions", func(t *testing.T) {
		svc := newGCashFixture(&fakeAccountStore{account: account}, &fakeReferenceChecker{})

		booking := &models.Booking{ID: "b1"}
		payment := &models.Payment{ID: "p1", Amount: 1351.50}

		result, err := svc.Initiate(booking, payment)
		require.NoError(t, err)

		assert.Regexp(t, referencePattern, result.TransactionID)
		assert.Equal(t, result.TransactionID, result.Extra["reference_number"])
		assert.Equal(t, "Gabay Laguna Tours", result.Extra["account_name"])
		assert.Equal(t, "09171234567", result.Extra["account_number"])
		assert.Equal(t, fmt.Sprintf("09171234567|1351.50|%s", result.TransactionID), result.Extra["qr_string"])
		assert.Contains(t, result.Extra["instructions"], result.TransactionID)
		assert.Empty(t, result.CheckoutURL)
	})

	t.Run("Retries on reference collision", func(t *testing.T) {
		refs := &fakeReferenceChecker{collisions: 3}
		svc := newGCashFixture(&fakeAccountStore{account: account}, refs)

		result, err := svc.Initiate(&models.Booking{ID: "b1"}, &models.Payment{ID: "p1", Amount: 100})
		require.NoError(t, err)
		assert.Regexp(t, referencePattern, result.TransactionID)
		assert.Equal(t, 4, refs.calls)
	})

	t.Run("Gives up after too many collisions", func(t *testing.T) {
		refs := &fakeReferenceChecker{collisions: 100}
		svc := newGCashFixture(&fakeAccountStore{account: account}, refs)

		_, err := svc.Initiate(&models.Booking{ID: "b1"}, &models.Payment{ID: "p1", Amount: 100})
		assert.Error(t, err)
	})

	t.Run("No active receiving account", func(t *testing.T) {
		svc := newGCashFixture(&fakeAccountStore{err: models.ErrAccountNotFound}, &fakeReferenceChecker{})

		_, err := svc.Initiate(&models.Booking{ID: "b1"}, &models.Payment{ID: "p1", Amount: 100})
		assert.ErrorIs(t, err, models.ErrAccountNotFound)
	})
}

func TestGCashValidateProof(t *testing.T) {
	svc := newGCashFixture(&fakeAccountStore{}, &fakeReferenceChecker{})

	tests := []struct {
		name        string
		contentType string
		size        int64
		wantErr     bool
	}{
		{"JPEG accepted", "image/jpeg", 1024, false},
		{"PNG accepted", "image/png", 1024, false},
		{"PDF accepted", "application/pdf", 1024, false},
		{"At the size limit", "image/jpeg", 5242880, false},
		{"Over the size limit", "image/jpeg", 5242881, true},
		{"Empty file", "image/png", 0, true},
		{"GIF rejected", "image/gif", 1024, true},
		{"Arbitrary binary rejected", "application/octet-stream", 1024, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.ValidateProof(tt.contentType, tt.size)
			if tt.wantErr {
				var proofErr *models.InvalidProofError
				require.ErrorAs(t, err, &proofErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestGCashVerificationEvent(t *testing.T) {
	svc := newGCashFixture(&fakeAccountStore{}, &fakeReferenceChecker{})

	payment := &models.Payment{ID: "p1", TransactionID: "GCASH-20260828-ABCD1234", Amount: 999.99}
	event := svc.VerificationEvent(payment, "admin-1")

	assert.Equal(t, models.ProviderGCash, event.Provider)
	assert.Equal(t, "GCASH-20260828-ABCD1234", event.ProviderRef)
	assert.Equal(t, OutcomePaid, event.Outcome)
	require.NotNil(t, event.AmountObserved)
	assert.Equal(t, 999.99, *event.AmountObserved)
	assert.Equal(t, models.PaymentSourceAdmin, event.Source)
	assert.Equal(t, "admin-1", event.Metadata["verified_by"])
}

func TestGCashRefundIsManual(t *testing.T) {
	svc := newGCashFixture(&fakeAccountStore{}, &fakeReferenceChecker{})

	details, err := svc.Refund(&models.Payment{ID: "p1", Amount: 500})
	require.NoError(t, err)
	assert.Equal(t, "manual_transfer", details["refund_method"])
}
