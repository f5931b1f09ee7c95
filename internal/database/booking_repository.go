package database

import (
	"database/sql"
	"errors"

	"github.com/gabaylaguna/booking-backend/internal/models"
	"github.com/google/uuid"
)

// activeStatuses are the booking statuses that hold a slot
const activeStatuses = `'pending', 'confirmed', 'in_progress'`

// BookingRepository handles database operations for the bookings table
type BookingRepository struct {
	db DB
}

// NewBookingRepository creates a new BookingRepository
func NewBookingRepository(db DB) *BookingRepository {
	return &BookingRepository{db: db}
}

// CreateIfSlotFree inserts the booking only if no active booking for the same
// guide and date overlaps its interval. The conflict check and insert run in
// one transaction under a per-guide-per-date advisory lock, so two concurrent
// requests for overlapping slots serialize and exactly one wins.
func (r *BookingRepository) CreateIfSlotFree(booking *models.Booking) error {
	if booking.ID == "" {
		booking.ID = uuid.New().String()
	}

	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	dateKey := booking.TourGuideID + ":" + booking.TourDate.Format("2006-01-02")
	if _, err := tx.Exec(`SELECT pg_advisory_xact_lock(hashtext($1))`, dateKey); err != nil {
		return err
	}

	var conflicts int
	overlapQuery := `
		SELECT COUNT(*)
		FROM bookings
		WHERE tour_guide_id = $1
		  AND tour_date = $2
		  AND status IN (` + activeStatuses + `)
		  AND start_time < $4
		  AND end_time > $3
	`
	err = tx.QueryRow(
		overlapQuery,
		booking.TourGuideID, booking.TourDate, booking.StartTime, booking.EndTime,
	).Scan(&conflicts)
	if err != nil {
		return err
	}

	if conflicts > 0 {
		return &models.SlotConflictError{
			TourGuideID: booking.TourGuideID,
			TourDate:    booking.TourDate.Format("2006-01-02"),
			StartTime:   booking.StartTime,
			EndTime:     booking.EndTime,
		}
	}

	insertQuery := `
		INSERT INTO bookings (
			id, tourist_id, tour_guide_id, point_of_interest_id,
			tour_date, start_time, end_time, duration_hours,
			number_of_people, special_requests, status, payment_status,
			total_amount, initial_payment_amount, final_payment_amount
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15
		)
		RETURNING created_at, updated_at
	`
	err = tx.QueryRow(
		insertQuery,
		booking.ID, booking.TouristID, booking.TourGuideID, booking.PointOfInterestID,
		booking.TourDate, booking.StartTime, booking.EndTime, booking.DurationHours,
		booking.NumberOfPeople, booking.SpecialRequests, booking.Status, booking.PaymentStatus,
		booking.TotalAmount, booking.InitialPaymentAmount, booking.FinalPaymentAmount,
	).Scan(&booking.CreatedAt, &booking.UpdatedAt)
	if err != nil {
		return err
	}

	return tx.Commit()
}

const bookingColumns = `
	id, tourist_id, tour_guide_id, point_of_interest_id,
	tour_date, start_time, end_time, duration_hours,
	number_of_people, special_requests, status, payment_status,
	total_amount, initial_payment_amount, final_payment_amount,
	paid_at, cancelled_at, cancellation_reason, created_at, updated_at`

// GetByID retrieves a booking by ID
func (r *BookingRepository) GetByID(bookingID string) (*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`

	booking, err := r.scanBooking(r.db.QueryRow(query, bookingID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrBookingNotFound
	}
	return booking, err
}

// GetByTouristID retrieves all bookings made by a tourist
func (r *BookingRepository) GetByTouristID(touristID string) ([]models.Booking, error) {
	query := `SELECT ` + bookingColumns + `
		FROM bookings
		WHERE tourist_id = $1
		ORDER BY created_at DESC`

	rows, err := r.db.Query(query, touristID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return r.scanBookings(rows)
}

// GetByGuideID retrieves all bookings assigned to a guide
func (r *BookingRepository) GetByGuideID(guideID string) ([]models.Booking, error) {
	query := `SELECT ` + bookingColumns + `
		FROM bookings
		WHERE tour_guide_id = $1
		ORDER BY tour_date DESC, start_time`

	rows, err := r.db.Query(query, guideID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return r.scanBookings(rows)
}

// GetActiveByGuideAndDate retrieves the slot-holding bookings for a guide on
// a given date, used to mark occupied slots.
func (r *BookingRepository) GetActiveByGuideAndDate(guideID string, date string) ([]models.Booking, error) {
	query := `SELECT ` + bookingColumns + `
		FROM bookings
		WHERE tour_guide_id = $1
		  AND tour_date = $2
		  AND status IN (` + activeStatuses + `)
		ORDER BY start_time`

	rows, err := r.db.Query(query, guideID, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return r.scanBookings(rows)
}

// UpdateStatusFrom moves the booking to a new status only while it still
// holds the status the caller observed. Returns false without error when
// another writer got there first, same as ConfirmPaid.
func (r *BookingRepository) UpdateStatusFrom(bookingID string, from, to models.BookingStatus) (bool, error) {
	query := `
		UPDATE bookings
		SET status = $3, updated_at = NOW()
		WHERE id = $1
		  AND status = $2
	`

	result, err := r.db.Exec(query, bookingID, from, to)
	if err != nil {
		return false, err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return rows > 0, nil
}

// ConfirmPaid confirms a pending booking after its payment settled. Returns
// false without error when the booking is no longer pending, leaving the
// caller to decide how to record the mismatch.
func (r *BookingRepository) ConfirmPaid(bookingID string) (bool, error) {
	query := `
		UPDATE bookings
		SET status = 'confirmed',
			payment_status = 'fully_paid',
			paid_at = NOW(),
			updated_at = NOW()
		WHERE id = $1
		  AND status = 'pending'
	`

	result, err := r.db.Exec(query, bookingID)
	if err != nil {
		return false, err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return rows > 0, nil
}

// MarkRefunded flips the booking payment status after a successful refund
func (r *BookingRepository) MarkRefunded(bookingID string) error {
	query := `
		UPDATE bookings
		SET payment_status = 'refunded', updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.db.Exec(query, bookingID)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rows == 0 {
		return models.ErrBookingNotFound
	}

	return nil
}

// Cancel cancels a booking while it still holds a slot. Returns false when
// the booking is already terminal, so a late cancel never overwrites a
// completed or already-cancelled row.
func (r *BookingRepository) Cancel(bookingID string, reason *string) (bool, error) {
	query := `
		UPDATE bookings
		SET status = 'cancelled',
			cancellation_reason = $2,
			cancelled_at = NOW(),
			updated_at = NOW()
		WHERE id = $1
		  AND status IN (` + activeStatuses + `)
	`

	result, err := r.db.Exec(query, bookingID, reason)
	if err != nil {
		return false, err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return rows > 0, nil
}

// scanBooking scans a single booking
func (r *BookingRepository) scanBooking(row scanner) (*models.Booking, error) {
	booking := &models.Booking{}
	var specialRequests sql.NullString
	var paidAt sql.NullTime
	var cancelledAt sql.NullTime
	var cancellationReason sql.NullString

	err := row.Scan(
		&booking.ID, &booking.TouristID, &booking.TourGuideID, &booking.PointOfInterestID,
		&booking.TourDate, &booking.StartTime, &booking.EndTime, &booking.DurationHours,
		&booking.NumberOfPeople, &specialRequests, &booking.Status, &booking.PaymentStatus,
		&booking.TotalAmount, &booking.InitialPaymentAmount, &booking.FinalPaymentAmount,
		&paidAt, &cancelledAt, &cancellationReason, &booking.CreatedAt, &booking.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	// Convert sql.Null* types
	if specialRequests.Valid {
		booking.SpecialRequests = &specialRequests.String
	}
	if paidAt.Valid {
		booking.PaidAt = &paidAt.Time
	}
	if cancelledAt.Valid {
		booking.CancelledAt = &cancelledAt.Time
	}
	if cancellationReason.Valid {
		booking.CancellationReason = &cancellationReason.String
	}

	return booking, nil
}

// scanBookings scans multiple bookings from rows
func (r *BookingRepository) scanBookings(rows *sql.Rows) ([]models.Booking, error) {
	bookings := []models.Booking{}

	for rows.Next() {
		booking, err := r.scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, *booking)
	}

	return bookings, rows.Err()
}
