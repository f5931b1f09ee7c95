package services

import (
	"context"
	"testing"

	"github.com/gabaylaguna/booking-backend/internal/config"
	"github.com/gabaylaguna/booking-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingAuditStore struct {
	entries []*models.PaymentAudit
}

func (r *recordingAuditStore) Log(ctx context.Context, audit *models.PaymentAudit) error {
	r.entries = append(r.entries, audit)
	return nil
}

func (r *recordingAuditStore) eventTypes() []models.PaymentEventType {
	types := make([]models.PaymentEventType, 0, len(r.entries))
	for _, e := range r.entries {
		types = append(types, e.EventType)
	}
	return types
}

type fakeSettlementPayments struct {
	byRef map[string]*models.Payment
}

func (f *fakeSettlementPayments) GetByProviderRef(provider models.PaymentProvider, ref string) (*models.Payment, error) {
	payment, ok := f.byRef[ref]
	if !ok || payment.Provider != provider {
		return nil, models.ErrPaymentNotFound
	}
	return payment, nil
}

func (f *fakeSettlementPayments) CompleteIfPending(paymentID string, details models.JSONB) (bool, error) {
	for _, p := range f.byRef {
		if p.ID == paymentID {
			if p.Status != models.PaymentStatusPending {
				return false, nil
			}
			p.Status = models.PaymentStatusCompleted
			p.Details = details
			return true, nil
		}
	}
	return false, models.ErrPaymentNotFound
}

func (f *fakeSettlementPayments) AbandonIfPending(paymentID string) (bool, error) {
	for _, p := range f.byRef {
		if p.ID == paymentID {
			if p.Status != models.PaymentStatusPending {
				return false, nil
			}
			p.Status = models.PaymentStatusAbandoned
			return true, nil
		}
	}
	return false, models.ErrPaymentNotFound
}

type fakeSettlementBookings struct {
	bookings map[string]*models.Booking
}

func (f *fakeSettlementBookings) GetByID(bookingID string) (*models.Booking, error) {
	booking, ok := f.bookings[bookingID]
	if !ok {
		return nil, models.ErrBookingNotFound
	}
	return booking, nil
}

func (f *fakeSettlementBookings) ConfirmPaid(bookingID string) (bool, error) {
	booking, ok := f.bookings[bookingID]
	if !ok {
		return false, models.ErrBookingNotFound
	}
	if booking.Status != models.BookingStatusPending {
		return false, nil
	}
	booking.Status = models.BookingStatusConfirmed
	booking.PaymentStatus = models.BookingPaymentFullyPaid
	return true, nil
}

func newReconcilerFixture(payment *models.Payment, booking *models.Booking) (*ReconcilerService, *fakeSettlementPayments, *fakeSettlementBookings, *recordingAuditStore) {
	payments := &fakeSettlementPayments{byRef: map[string]*models.Payment{}}
	if payment != nil {
		payments.byRef[payment.TransactionID] = payment
	}
	bookings := &fakeSettlementBookings{bookings: map[string]*models.Booking{}}
	if booking != nil {
		bookings.bookings[booking.ID] = booking
	}
	audits := &recordingAuditStore{}
	svc := NewReconcilerService(payments, bookings, NewAuditService(audits, newTestLogger()),
		&config.PaymentsConfig{Currency: "PHP"}, newTestLogger())
	return svc, payments, bookings, audits
}

func amountPtr(v float64) *float64 { return &v }

func TestReconcilerApplyPaid(t *testing.T) {
	t.Run("Settles payment and confirms booking", func(t *testing.T) {
		payment := &models.Payment{ID: "p1", BookingID: "b1", Provider: models.ProviderPayMongo,
			TransactionID: "pi_123", Amount: 500, Status: models.PaymentStatusPending, Details: models.JSONB{}}
		booking := &models.Booking{ID: "b1", Status: models.BookingStatusPending, PaymentStatus: models.BookingPaymentPending}
		svc, _, bookings, audits := newReconcilerFixture(payment, booking)

		err := svc.Apply(context.Background(), &SettlementEvent{
			Provider:       models.ProviderPayMongo,
			ProviderRef:    "pi_123",
			Outcome:        OutcomePaid,
			AmountObserved: amountPtr(500),
			Metadata:       models.JSONB{"payment_id": "pay_abc"},
			Source:         models.PaymentSourceProviderWebhook,
		})
		require.NoError(t, err)

		assert.Equal(t, models.PaymentStatusCompleted, payment.Status)
		assert.Equal(t, "pay_abc", payment.Details["payment_id"])
		assert.Equal(t, models.BookingStatusConfirmed, bookings.bookings["b1"].Status)
		assert.Equal(t, models.BookingPaymentFullyPaid, bookings.bookings["b1"].PaymentStatus)
		assert.Contains(t, audits.eventTypes(), models.PaymentEventSuccess)
		assert.Contains(t, audits.eventTypes(), models.PaymentEventBookingConfirmed)
	})

	t.Run("Unknown reference is absorbed", func(t *testing.T) {
		svc, _, _, audits := newReconcilerFixture(nil, nil)

		err := svc.Apply(context.Background(), &SettlementEvent{
			Provider:    models.ProviderXenditInvoice,
			ProviderRef: "inv_unknown",
			Outcome:     OutcomePaid,
			Source:      models.PaymentSourceProviderWebhook,
		})
		require.NoError(t, err)
		assert.Equal(t, []models.PaymentEventType{models.PaymentEventReconciliationMismatch}, audits.eventTypes())
	})

	t.Run("Duplicate delivery is a no-op", func(t *testing.T) {
		payment := &models.Payment{ID: "p1", BookingID: "b1", Provider: models.ProviderPayPal,
			TransactionID: "ORDER-1", Amount: 500, Status: models.PaymentStatusCompleted}
		booking := &models.Booking{ID: "b1", Status: models.BookingStatusConfirmed}
		svc, _, bookings, audits := newReconcilerFixture(payment, booking)

		err := svc.Apply(context.Background(), &SettlementEvent{
			Provider:    models.ProviderPayPal,
			ProviderRef: "ORDER-1",
			Outcome:     OutcomePaid,
			Source:      models.PaymentSourceProviderAPI,
		})
		require.NoError(t, err)

		assert.Equal(t, models.BookingStatusConfirmed, bookings.bookings["b1"].Status)
		require.Len(t, audits.entries, 1)
		assert.True(t, audits.entries[0].IsDuplicate)
	})

	t.Run("Paid event for a refunded payment is a mismatch", func(t *testing.T) {
		payment := &models.Payment{ID: "p1", BookingID: "b1", Provider: models.ProviderPayMongo,
			TransactionID: "pi_123", Status: models.PaymentStatusRefunded}
		svc, _, _, audits := newReconcilerFixture(payment, nil)

		err := svc.Apply(context.Background(), &SettlementEvent{
			Provider:    models.ProviderPayMongo,
			ProviderRef: "pi_123",
			Outcome:     OutcomePaid,
			Source:      models.PaymentSourceProviderWebhook,
		})
		require.NoError(t, err)

		assert.Equal(t, models.PaymentStatusRefunded, payment.Status)
		assert.Equal(t, []models.PaymentEventType{models.PaymentEventReconciliationMismatch}, audits.eventTypes())
	})

	t.Run("Amount drift settles but is flagged", func(t *testing.T) {
		payment := &models.Payment{ID: "p1", BookingID: "b1", Provider: models.ProviderPayMongo,
			TransactionID: "pi_123", Amount: 500, Status: models.PaymentStatusPending, Details: models.JSONB{}}
		booking := &models.Booking{ID: "b1", Status: models.BookingStatusPending}
		svc, _, _, audits := newReconcilerFixture(payment, booking)

		err := svc.Apply(context.Background(), &SettlementEvent{
			Provider:       models.ProviderPayMongo,
			ProviderRef:    "pi_123",
			Outcome:        OutcomePaid,
			AmountObserved: amountPtr(450),
			Source:         models.PaymentSourceProviderWebhook,
		})
		require.NoError(t, err)

		assert.Equal(t, models.PaymentStatusCompleted, payment.Status)
		assert.Contains(t, audits.eventTypes(), models.PaymentEventSuccess)
		assert.Contains(t, audits.eventTypes(), models.PaymentEventReconciliationMismatch)
	})

	t.Run("Late settlement does not resurrect a cancelled booking", func(t *testing.T) {
		payment := &models.Payment{ID: "p1", BookingID: "b1", Provider: models.ProviderXenditVA,
			TransactionID: "va_123", Amount: 500, Status: models.PaymentStatusPending, Details: models.JSONB{}}
		booking := &models.Booking{ID: "b1", Status: models.BookingStatusCancelled}
		svc, _, bookings, audits := newReconcilerFixture(payment, booking)

		err := svc.Apply(context.Background(), &SettlementEvent{
			Provider:    models.ProviderXenditVA,
			ProviderRef: "va_123",
			Outcome:     OutcomePaid,
			Source:      models.PaymentSourceProviderWebhook,
		})
		require.NoError(t, err)

		// Money arrived, ledger shows it for the refund path
		assert.Equal(t, models.PaymentStatusCompleted, payment.Status)
		// But the booking stays cancelled
		assert.Equal(t, models.BookingStatusCancelled, bookings.bookings["b1"].Status)
		assert.Contains(t, audits.eventTypes(), models.PaymentEventReconciliationMismatch)
		assert.NotContains(t, audits.eventTypes(), models.PaymentEventBookingConfirmed)
	})
}

func TestReconcilerApplyFailed(t *testing.T) {
	payment := &models.Payment{ID: "p1", BookingID: "b1", Provider: models.ProviderPayMongo,
		TransactionID: "pi_123", Status: models.PaymentStatusPending}
	svc, _, _, audits := newReconcilerFixture(payment, nil)

	err := svc.Apply(context.Background(), &SettlementEvent{
		Provider:    models.ProviderPayMongo,
		ProviderRef: "pi_123",
		Outcome:     OutcomeFailed,
		Source:      models.PaymentSourceProviderWebhook,
	})
	require.NoError(t, err)

	// A failed outcome leaves the attempt open for retry
	assert.Equal(t, models.PaymentStatusPending, payment.Status)
	assert.Equal(t, []models.PaymentEventType{models.PaymentEventFailed}, audits.eventTypes())
}

func TestReconcilerApplyExpired(t *testing.T) {
	t.Run("Pending attempt is abandoned", func(t *testing.T) {
		payment := &models.Payment{ID: "p1", BookingID: "b1", Provider: models.ProviderXenditInvoice,
			TransactionID: "inv_123", Status: models.PaymentStatusPending}
		svc, _, _, audits := newReconcilerFixture(payment, nil)

		err := svc.Apply(context.Background(), &SettlementEvent{
			Provider:    models.ProviderXenditInvoice,
			ProviderRef: "inv_123",
			Outcome:     OutcomeExpired,
			Source:      models.PaymentSourceSystem,
		})
		require.NoError(t, err)

		assert.Equal(t, models.PaymentStatusAbandoned, payment.Status)
		assert.Equal(t, []models.PaymentEventType{models.PaymentEventExpired}, audits.eventTypes())
	})

	t.Run("Expiry after settlement is ignored", func(t *testing.T) {
		payment := &models.Payment{ID: "p1", BookingID: "b1", Provider: models.ProviderXenditInvoice,
			TransactionID: "inv_123", Status: models.PaymentStatusCompleted}
		svc, _, _, audits := newReconcilerFixture(payment, nil)

		err := svc.Apply(context.Background(), &SettlementEvent{
			Provider:    models.ProviderXenditInvoice,
			ProviderRef: "inv_123",
			Outcome:     OutcomeExpired,
			Source:      models.PaymentSourceSystem,
		})
		require.NoError(t, err)

		assert.Equal(t, models.PaymentStatusCompleted, payment.Status)
		assert.Empty(t, audits.entries)
	})
}

func TestReconcilerApplyNilEvent(t *testing.T) {
	svc, _, _, _ := newReconcilerFixture(nil, nil)
	assert.Error(t, svc.Apply(context.Background(), nil))
}
