package services

import (
	"time"

	"github.com/gabaylaguna/booking-backend/internal/models"
	"github.com/sirupsen/logrus"
)

// bookingStore is the slice of the booking repository this service uses
type bookingStore interface {
	CreateIfSlotFree(booking *models.Booking) error
	GetByID(bookingID string) (*models.Booking, error)
	GetByTouristID(touristID string) ([]models.Booking, error)
	GetByGuideID(guideID string) ([]models.Booking, error)
	UpdateStatusFrom(bookingID string, from, to models.BookingStatus) (bool, error)
	Cancel(bookingID string, reason *string) (bool, error)
}

// guideStore resolves guide profiles for pricing
type guideStore interface {
	GetByID(guideID string) (*models.TourGuide, error)
}

// slotChecker pre-checks a slot against availability windows
type slotChecker interface {
	IsSlotFree(guideID string, date time.Time, startTime, endTime string) (bool, error)
}

// BookingService owns the booking lifecycle: creation against the guide's
// schedule, guide-driven progress, and cancellation. Confirmation is not
// here; only a settled payment confirms a booking.
type BookingService struct {
	bookings bookingStore
	guides   guideStore
	slots    slotChecker
	logger   *logrus.Logger
}

// NewBookingService creates a new BookingService
func NewBookingService(bookings bookingStore, guides guideStore, slots slotChecker, logger *logrus.Logger) *BookingService {
	return &BookingService{
		bookings: bookings,
		guides:   guides,
		slots:    slots,
		logger:   logger,
	}
}

// CreateBookingInput carries the validated booking request
type CreateBookingInput struct {
	TouristID         string
	TourGuideID       string
	PointOfInterestID string
	TourDate          time.Time
	StartTime         string
	DurationHours     int
	NumberOfPeople    int
	SpecialRequests   *string
}

// Create prices the tour, checks the slot against the guide's schedule and
// inserts the booking. The insert re-checks overlaps under a lock, so a
// concurrent request for the same slot loses with a SlotConflictError.
func (s *BookingService) Create(input CreateBookingInput) (*models.Booking, error) {
	guide, err := s.guides.GetByID(input.TourGuideID)
	if err != nil {
		return nil, err
	}

	start, err := parseMinutes(input.StartTime)
	if err != nil {
		return nil, err
	}
	endTime := formatMinutes(start + input.DurationHours*60)

	free, err := s.slots.IsSlotFree(input.TourGuideID, input.TourDate, input.StartTime, endTime)
	if err != nil {
		return nil, err
	}
	if !free {
		return nil, &models.SlotConflictError{
			TourGuideID: input.TourGuideID,
			TourDate:    input.TourDate.Format("2006-01-02"),
			StartTime:   input.StartTime,
			EndTime:     endTime,
		}
	}

	booking := &models.Booking{
		TouristID:         input.TouristID,
		TourGuideID:       input.TourGuideID,
		PointOfInterestID: input.PointOfInterestID,
		TourDate:          input.TourDate,
		StartTime:         input.StartTime,
		EndTime:           endTime,
		DurationHours:     input.DurationHours,
		NumberOfPeople:    input.NumberOfPeople,
		SpecialRequests:   input.SpecialRequests,
		Status:            models.BookingStatusPending,
		PaymentStatus:     models.BookingPaymentPending,
		TotalAmount:       models.Round2(guide.HourlyRate * float64(input.DurationHours)),
	}
	booking.ApplyPaymentSplit()

	if err := s.bookings.CreateIfSlotFree(booking); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id":   booking.ID,
		"guide_id":     booking.TourGuideID,
		"tour_date":    booking.TourDate.Format("2006-01-02"),
		"start_time":   booking.StartTime,
		"total_amount": booking.TotalAmount,
	}).Info("Booking created")

	return booking, nil
}

// GetByID retrieves a booking
func (s *BookingService) GetByID(bookingID string) (*models.Booking, error) {
	return s.bookings.GetByID(bookingID)
}

// ListForTourist retrieves a tourist's bookings
func (s *BookingService) ListForTourist(touristID string) ([]models.Booking, error) {
	return s.bookings.GetByTouristID(touristID)
}

// ListForGuide retrieves a guide's bookings
func (s *BookingService) ListForGuide(guideID string) ([]models.Booking, error) {
	return s.bookings.GetByGuideID(guideID)
}

// UpdateStatus applies a guide-driven lifecycle transition. Confirmation is
// rejected here: it only happens through settlement.
func (s *BookingService) UpdateStatus(bookingID string, next models.BookingStatus) (*models.Booking, error) {
	booking, err := s.bookings.GetByID(bookingID)
	if err != nil {
		return nil, err
	}

	if next == models.BookingStatusConfirmed {
		return nil, &models.InvalidTransitionError{
			BookingID: booking.ID,
			From:      booking.Status,
			To:        next,
			Reason:    "bookings are confirmed by payment settlement",
		}
	}

	if !booking.CanTransitionTo(next) {
		return nil, &models.InvalidTransitionError{
			BookingID: booking.ID,
			From:      booking.Status,
			To:        next,
		}
	}

	// The write re-checks the status it observed, so a transition that
	// committed in between loses here instead of being overwritten.
	var moved bool
	if next == models.BookingStatusCancelled {
		moved, err = s.bookings.Cancel(bookingID, nil)
	} else {
		moved, err = s.bookings.UpdateStatusFrom(bookingID, booking.Status, next)
	}
	if err != nil {
		return nil, err
	}
	if !moved {
		current, err := s.bookings.GetByID(bookingID)
		if err != nil {
			return nil, err
		}
		return nil, &models.InvalidTransitionError{
			BookingID: bookingID,
			From:      current.Status,
			To:        next,
		}
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id": bookingID,
		"from":       booking.Status,
		"to":         next,
	}).Info("Booking status updated")

	return s.bookings.GetByID(bookingID)
}

// Cancel cancels a booking with a reason
func (s *BookingService) Cancel(bookingID string, reason *string) (*models.Booking, error) {
	booking, err := s.bookings.GetByID(bookingID)
	if err != nil {
		return nil, err
	}

	if !booking.CanBeCancelled() {
		return nil, &models.InvalidTransitionError{
			BookingID: booking.ID,
			From:      booking.Status,
			To:        models.BookingStatusCancelled,
		}
	}

	cancelled, err := s.bookings.Cancel(bookingID, reason)
	if err != nil {
		return nil, err
	}
	if !cancelled {
		current, err := s.bookings.GetByID(bookingID)
		if err != nil {
			return nil, err
		}
		return nil, &models.InvalidTransitionError{
			BookingID: bookingID,
			From:      current.Status,
			To:        models.BookingStatusCancelled,
		}
	}

	s.logger.WithField("booking_id", bookingID).Info("Booking cancelled")

	return s.bookings.GetByID(bookingID)
}
