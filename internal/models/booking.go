package models

import (
	"math"
	"time"
)

// BookingStatus represents the lifecycle status of a booking
type BookingStatus string

const (
	BookingStatusPending    BookingStatus = "pending"
	BookingStatusConfirmed  BookingStatus = "confirmed"
	BookingStatusInProgress BookingStatus = "in_progress"
	BookingStatusCompleted  BookingStatus = "completed"
	BookingStatusCancelled  BookingStatus = "cancelled"
)

// BookingPaymentStatus represents the payment status of a booking
type BookingPaymentStatus string

const (
	BookingPaymentPending       BookingPaymentStatus = "pending"
	BookingPaymentPartiallyPaid BookingPaymentStatus = "partially_paid"
	BookingPaymentFullyPaid     BookingPaymentStatus = "fully_paid"
	BookingPaymentRefunded      BookingPaymentStatus = "refunded"
)

// InitialPaymentRate is the share of the total collected as the initial
// payment; the remainder (including any rounding leftover) is the final share.
const InitialPaymentRate = 0.30

// Booking represents a tourist's reservation of a guide's time
type Booking struct {
	ID                   string               `json:"id" db:"id"`
	TouristID            string               `json:"tourist_id" db:"tourist_id"`
	TourGuideID          string               `json:"tour_guide_id" db:"tour_guide_id"`
	PointOfInterestID    string               `json:"point_of_interest_id" db:"point_of_interest_id"`
	TourDate             time.Time            `json:"tour_date" db:"tour_date"`
	StartTime            string               `json:"start_time" db:"start_time"`
	EndTime              string               `json:"end_time" db:"end_time"`
	DurationHours        int                  `json:"duration_hours" db:"duration_hours"`
	NumberOfPeople       int                  `json:"number_of_people" db:"number_of_people"`
	SpecialRequests      *string              `json:"special_requests,omitempty" db:"special_requests"`
	Status               BookingStatus        `json:"status" db:"status"`
	PaymentStatus        BookingPaymentStatus `json:"payment_status" db:"payment_status"`
	TotalAmount          float64              `json:"total_amount" db:"total_amount"`
	InitialPaymentAmount float64              `json:"initial_payment_amount" db:"initial_payment_amount"`
	FinalPaymentAmount   float64              `json:"final_payment_amount" db:"final_payment_amount"`
	PaidAt               *time.Time           `json:"paid_at,omitempty" db:"paid_at"`
	CancelledAt          *time.Time           `json:"cancelled_at,omitempty" db:"cancelled_at"`
	CancellationReason   *string              `json:"cancellation_reason,omitempty" db:"cancellation_reason"`
	CreatedAt            time.Time            `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time            `json:"updated_at" db:"updated_at"`
}

// bookingTransitions is the closed state graph. confirmed is deliberately
// absent from the pending row: only a settled payment confirms a booking.
var bookingTransitions = map[BookingStatus][]BookingStatus{
	BookingStatusPending:    {BookingStatusCancelled},
	BookingStatusConfirmed:  {BookingStatusInProgress, BookingStatusCancelled},
	BookingStatusInProgress: {BookingStatusCompleted, BookingStatusCancelled},
	BookingStatusCompleted:  {},
	BookingStatusCancelled:  {},
}

// CanTransitionTo reports whether moving to next is a legal guide/tourist
// initiated transition. Settlement-driven confirmation does not go through
// this graph; see ConfirmOnSettlement.
func (b *Booking) CanTransitionTo(next BookingStatus) bool {
	for _, allowed := range bookingTransitions[b.Status] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the booking reached a final state
func (b *Booking) IsTerminal() bool {
	return b.Status == BookingStatusCompleted || b.Status == BookingStatusCancelled
}

// CanBeCancelled checks if the booking can still be cancelled
func (b *Booking) CanBeCancelled() bool {
	return b.Status == BookingStatusPending ||
		b.Status == BookingStatusConfirmed ||
		b.Status == BookingStatusInProgress
}

// Round2 rounds an amount to two decimal places
func Round2(amount float64) float64 {
	return math.Round(amount*100) / 100
}

// ApplyPaymentSplit computes the 30/70 initial/final amounts from the total.
// The final share absorbs the rounding remainder so the two always sum back
// to the total.
func (b *Booking) ApplyPaymentSplit() {
	b.InitialPaymentAmount = Round2(b.TotalAmount * InitialPaymentRate)
	b.FinalPaymentAmount = Round2(b.TotalAmount - b.InitialPaymentAmount)
}

// Overlaps reports whether the booking occupies any part of the half-open
// interval [start, end) on the same date. Times are zero-padded "HH:MM"
// strings, so lexicographic comparison matches chronological order.
func (b *Booking) Overlaps(start, end string) bool {
	return start < b.EndTime && end > b.StartTime
}

// IsPaid checks if the booking is fully paid
func (b *Booking) IsPaid() bool {
	return b.PaymentStatus == BookingPaymentFullyPaid
}
