package database

import (
	"database/sql/driver"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gabaylaguna/booking-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var paymentTestColumns = []string{
	"id", "booking_id", "payment_method", "transaction_id", "reference_number",
	"gcash_account_number", "gcash_qr_code", "amount", "status",
	"verification_status", "rejection_reason", "verified_by", "verified_at",
	"payment_screenshot_path", "proof_submitted_at", "payment_details",
	"paid_at", "created_at", "updated_at",
}

func paymentRow() []driver.Value {
	return []driver.Value{
		"p1", "b1", "paymongo", "pi_123", nil,
		nil, nil, 500.0, "pending",
		nil, nil, nil, nil,
		nil, nil, []byte(`{"bank_code":"BPI"}`),
		nil, time.Now(), time.Now(),
	}
}

func TestPaymentCreate(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPaymentRepository(db)

	payment := &models.Payment{
		BookingID: "b1",
		Provider:  models.ProviderPayMongo,
		Amount:    500,
		Status:    models.PaymentStatusPending,
		Details:   models.JSONB{},
	}

	mock.ExpectQuery("INSERT INTO payments").
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).
			AddRow(time.Now(), time.Now()))

	require.NoError(t, repo.Create(payment))
	assert.NotEmpty(t, payment.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByProviderRef(t *testing.T) {
	t.Run("Resolves the settlement key", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewPaymentRepository(db)

		mock.ExpectQuery("SELECT (.+) FROM payments").
			WithArgs(models.ProviderPayMongo, "pi_123").
			WillReturnRows(sqlmock.NewRows(paymentTestColumns).AddRow(paymentRow()...))

		payment, err := repo.GetByProviderRef(models.ProviderPayMongo, "pi_123")
		require.NoError(t, err)
		assert.Equal(t, "p1", payment.ID)
		assert.Equal(t, models.ProviderPayMongo, payment.Provider)
		assert.Equal(t, "BPI", payment.Details["bank_code"])
	})

	t.Run("Unknown reference", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewPaymentRepository(db)

		mock.ExpectQuery("SELECT (.+) FROM payments").
			WillReturnRows(sqlmock.NewRows(paymentTestColumns))

		_, err := repo.GetByProviderRef(models.ProviderPayMongo, "pi_unknown")
		assert.ErrorIs(t, err, models.ErrPaymentNotFound)
	})
}

func TestCompleteIfPending(t *testing.T) {
	t.Run("Pending payment settles", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewPaymentRepository(db)

		mock.ExpectExec("UPDATE payments").
			WillReturnResult(sqlmock.NewResult(0, 1))

		settled, err := repo.CompleteIfPending("p1", models.JSONB{"capture_id": "CAP-1"})
		require.NoError(t, err)
		assert.True(t, settled)
	})

	t.Run("Replay finds nothing to update", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewPaymentRepository(db)

		mock.ExpectExec("UPDATE payments").
			WillReturnResult(sqlmock.NewResult(0, 0))

		settled, err := repo.CompleteIfPending("p1", models.JSONB{})
		require.NoError(t, err)
		assert.False(t, settled)
	})
}

func TestMarkRefunded(t *testing.T) {
	t.Run("Completed payment refunds", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewPaymentRepository(db)

		mock.ExpectExec("UPDATE payments").
			WillReturnResult(sqlmock.NewResult(0, 1))

		flipped, err := repo.MarkRefunded("p1", models.JSONB{"refund_id": "ref_1"})
		require.NoError(t, err)
		assert.True(t, flipped)
	})

	t.Run("Concurrent refund already flipped the row", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewPaymentRepository(db)

		mock.ExpectExec("UPDATE payments").
			WillReturnResult(sqlmock.NewResult(0, 0))

		flipped, err := repo.MarkRefunded("p1", models.JSONB{})
		require.NoError(t, err)
		assert.False(t, flipped)
	})
}

func TestAbandonIfPending(t *testing.T) {
	t.Run("Pending attempt lapses", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewPaymentRepository(db)

		mock.ExpectExec("UPDATE payments").
			WithArgs("p1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		abandoned, err := repo.AbandonIfPending("p1")
		require.NoError(t, err)
		assert.True(t, abandoned)
	})

	t.Run("Attempt with proof is left for the queue", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewPaymentRepository(db)

		mock.ExpectExec("UPDATE payments").
			WithArgs("p1").
			WillReturnResult(sqlmock.NewResult(0, 0))

		abandoned, err := repo.AbandonIfPending("p1")
		require.NoError(t, err)
		assert.False(t, abandoned)
	})
}

func TestReferenceExists(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPaymentRepository(db)

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM payments").
		WithArgs("GCASH-20260828-ABCD1234").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM payments").
		WithArgs("GCASH-20260828-ZZZZ9999").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	taken, err := repo.ReferenceExists("GCASH-20260828-ABCD1234")
	require.NoError(t, err)
	assert.True(t, taken)

	free, err := repo.ReferenceExists("GCASH-20260828-ZZZZ9999")
	require.NoError(t, err)
	assert.False(t, free)
}

func TestAttachProof(t *testing.T) {
	t.Run("Queues the payment for review", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewPaymentRepository(db)

		mock.ExpectExec("UPDATE payments").
			WithArgs("p1", "storage/payment_proofs/abc.jpg").
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, repo.AttachProof("p1", "storage/payment_proofs/abc.jpg"))
	})

	t.Run("Settled payment takes no proof", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewPaymentRepository(db)

		mock.ExpectExec("UPDATE payments").
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.AttachProof("p1", "storage/payment_proofs/abc.jpg")
		assert.ErrorIs(t, err, models.ErrPaymentNotFound)
	})
}
