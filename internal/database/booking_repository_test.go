package database

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gabaylaguna/booking-backend/internal/models"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockDB(t *testing.T) (DB, sqlmock.Sqlmock) {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })

	return &PostgresDB{DB: sqlx.NewDb(mockDB, "sqlmock")}, mock
}

func testBooking() *models.Booking {
	return &models.Booking{
		TouristID:            "tourist-1",
		TourGuideID:          "guide-1",
		PointOfInterestID:    "poi-1",
		TourDate:             time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC),
		StartTime:            "10:00",
		EndTime:              "13:00",
		DurationHours:        3,
		NumberOfPeople:       2,
		Status:               models.BookingStatusPending,
		PaymentStatus:        models.BookingPaymentPending,
		TotalAmount:          1351.50,
		InitialPaymentAmount: 405.45,
		FinalPaymentAmount:   946.05,
	}
}

func TestCreateIfSlotFree(t *testing.T) {
	t.Run("Free slot inserts inside the lock", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewBookingRepository(db)
		booking := testBooking()

		mock.ExpectBegin()
		mock.ExpectExec("pg_advisory_xact_lock").
			WithArgs("guide-1:2026-09-10").
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("SELECT COUNT\\(\\*\\)").
			WithArgs(booking.TourGuideID, booking.TourDate, booking.StartTime, booking.EndTime).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
		mock.ExpectQuery("INSERT INTO bookings").
			WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).
				AddRow(time.Now(), time.Now()))
		mock.ExpectCommit()

		err := repo.CreateIfSlotFree(booking)
		require.NoError(t, err)
		assert.NotEmpty(t, booking.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Overlap rolls back with a conflict", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewBookingRepository(db)
		booking := testBooking()

		mock.ExpectBegin()
		mock.ExpectExec("pg_advisory_xact_lock").
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("SELECT COUNT\\(\\*\\)").
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
		mock.ExpectRollback()

		err := repo.CreateIfSlotFree(booking)

		var conflict *models.SlotConflictError
		require.ErrorAs(t, err, &conflict)
		assert.Equal(t, "guide-1", conflict.TourGuideID)
		assert.Equal(t, "2026-09-10", conflict.TourDate)
		assert.Equal(t, "10:00", conflict.StartTime)
		assert.Equal(t, "13:00", conflict.EndTime)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestBookingGetByID(t *testing.T) {
	t.Run("Found", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewBookingRepository(db)

		columns := []string{
			"id", "tourist_id", "tour_guide_id", "point_of_interest_id",
			"tour_date", "start_time", "end_time", "duration_hours",
			"number_of_people", "special_requests", "status", "payment_status",
			"total_amount", "initial_payment_amount", "final_payment_amount",
			"paid_at", "cancelled_at", "cancellation_reason", "created_at", "updated_at",
		}
		mock.ExpectQuery("SELECT (.+) FROM bookings WHERE id").
			WithArgs("b1").
			WillReturnRows(sqlmock.NewRows(columns).AddRow(
				"b1", "tourist-1", "guide-1", "poi-1",
				time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC), "10:00", "13:00", 3,
				2, nil, "pending", "pending",
				1351.50, 405.45, 946.05,
				nil, nil, nil, time.Now(), time.Now(),
			))

		booking, err := repo.GetByID("b1")
		require.NoError(t, err)
		assert.Equal(t, "b1", booking.ID)
		assert.Equal(t, models.BookingStatusPending, booking.Status)
		assert.Nil(t, booking.SpecialRequests)
		assert.Equal(t, 1351.50, booking.TotalAmount)
	})

	t.Run("Not found", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewBookingRepository(db)

		mock.ExpectQuery("SELECT (.+) FROM bookings WHERE id").
			WithArgs("missing").
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		_, err := repo.GetByID("missing")
		assert.ErrorIs(t, err, models.ErrBookingNotFound)
	})
}

func TestConfirmPaid(t *testing.T) {
	t.Run("Pending booking confirms", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewBookingRepository(db)

		mock.ExpectExec("UPDATE bookings").
			WithArgs("b1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		confirmed, err := repo.ConfirmPaid("b1")
		require.NoError(t, err)
		assert.True(t, confirmed)
	})

	t.Run("Non-pending booking is untouched", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewBookingRepository(db)

		mock.ExpectExec("UPDATE bookings").
			WithArgs("b1").
			WillReturnResult(sqlmock.NewResult(0, 0))

		confirmed, err := repo.ConfirmPaid("b1")
		require.NoError(t, err)
		assert.False(t, confirmed)
	})
}

func TestBookingUpdateStatusFrom(t *testing.T) {
	t.Run("Moves the row it observed", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewBookingRepository(db)

		mock.ExpectExec("UPDATE bookings").
			WithArgs("b1", models.BookingStatusConfirmed, models.BookingStatusInProgress).
			WillReturnResult(sqlmock.NewResult(0, 1))

		moved, err := repo.UpdateStatusFrom("b1", models.BookingStatusConfirmed, models.BookingStatusInProgress)
		require.NoError(t, err)
		assert.True(t, moved)
	})

	t.Run("Raced row is untouched", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewBookingRepository(db)

		mock.ExpectExec("UPDATE bookings").
			WithArgs("b1", models.BookingStatusConfirmed, models.BookingStatusInProgress).
			WillReturnResult(sqlmock.NewResult(0, 0))

		moved, err := repo.UpdateStatusFrom("b1", models.BookingStatusConfirmed, models.BookingStatusInProgress)
		require.NoError(t, err)
		assert.False(t, moved)
	})
}

func TestBookingCancel(t *testing.T) {
	t.Run("Active booking cancels", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewBookingRepository(db)

		reason := "change of plans"
		mock.ExpectExec("UPDATE bookings").
			WithArgs("b1", reason).
			WillReturnResult(sqlmock.NewResult(0, 1))

		cancelled, err := repo.Cancel("b1", &reason)
		require.NoError(t, err)
		assert.True(t, cancelled)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Terminal booking is untouched", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewBookingRepository(db)

		mock.ExpectExec("UPDATE bookings").
			WillReturnResult(sqlmock.NewResult(0, 0))

		cancelled, err := repo.Cancel("b1", nil)
		require.NoError(t, err)
		assert.False(t, cancelled)
	})
}
