package services

import (
	"fmt"
	"time"

	"github.com/gabaylaguna/booking-backend/internal/models"
	"github.com/sirupsen/logrus"
)

// MaxTourHours caps how long a single tour can run
const MaxTourHours = 8

// availabilityStore provides a guide's open windows for a weekday
type availabilityStore interface {
	GetOpenWindows(guideID string, day models.DayOfWeek) ([]models.GuideAvailability, error)
}

// bookingSlotStore provides the slot-holding bookings for a guide and date
type bookingSlotStore interface {
	GetActiveByGuideAndDate(guideID string, date string) ([]models.Booking, error)
}

// SlotService resolves a guide's recurring availability and existing bookings
// into concrete bookable slots for a date.
type SlotService struct {
	availabilities availabilityStore
	bookings       bookingSlotStore
	logger         *logrus.Logger
}

// NewSlotService creates a new SlotService
func NewSlotService(availabilities availabilityStore, bookings bookingSlotStore, logger *logrus.Logger) *SlotService {
	return &SlotService{
		availabilities: availabilities,
		bookings:       bookings,
		logger:         logger,
	}
}

// GetAvailableSlots lists the hourly candidate slots of the given duration
// for a guide on a date. Candidates start on the hour inside an open window
// and must fit entirely within it. Slots overlapping an active booking are
// returned with Booked set so clients can grey them out.
func (s *SlotService) GetAvailableSlots(guideID string, date time.Time, durationHours int) ([]models.Slot, error) {
	if durationHours < 1 || durationHours > MaxTourHours {
		return nil, fmt.Errorf("duration must be between 1 and %d hours", MaxTourHours)
	}

	// Past dates have no bookable slots
	today := time.Now().Truncate(24 * time.Hour)
	if date.Before(today) {
		return []models.Slot{}, nil
	}

	windows, err := s.availabilities.GetOpenWindows(guideID, models.DayOfWeekFromDate(date))
	if err != nil {
		return nil, err
	}

	bookings, err := s.bookings.GetActiveByGuideAndDate(guideID, date.Format("2006-01-02"))
	if err != nil {
		return nil, err
	}

	slots := []models.Slot{}
	for _, window := range windows {
		windowStart, err := parseMinutes(window.StartTime)
		if err != nil {
			s.logger.WithField("availability_id", window.ID).WithError(err).Warn("Skipping malformed availability window")
			continue
		}
		windowEnd, err := parseMinutes(window.EndTime)
		if err != nil {
			s.logger.WithField("availability_id", window.ID).WithError(err).Warn("Skipping malformed availability window")
			continue
		}

		// First candidate starts at the first whole hour inside the window
		firstHour := windowStart
		if rem := firstHour % 60; rem != 0 {
			firstHour += 60 - rem
		}

		for start := firstHour; start+durationHours*60 <= windowEnd; start += 60 {
			end := start + durationHours*60
			startStr := formatMinutes(start)
			endStr := formatMinutes(end)

			booked := false
			for i := range bookings {
				if bookings[i].Overlaps(startStr, endStr) {
					booked = true
					break
				}
			}

			slots = append(slots, models.Slot{
				StartTime: startStr,
				EndTime:   endStr,
				Available: !booked,
				Booked:    booked,
				Duration:  durationHours,
			})
		}
	}

	return slots, nil
}

// IsSlotFree reports whether the interval is inside an open window and clear
// of active bookings. This is an advisory pre-check; the authoritative check
// runs inside the booking insert transaction.
func (s *SlotService) IsSlotFree(guideID string, date time.Time, startTime, endTime string) (bool, error) {
	start, err := parseMinutes(startTime)
	if err != nil {
		return false, err
	}
	end, err := parseMinutes(endTime)
	if err != nil {
		return false, err
	}
	if end <= start {
		return false, fmt.Errorf("end time must be after start time")
	}

	windows, err := s.availabilities.GetOpenWindows(guideID, models.DayOfWeekFromDate(date))
	if err != nil {
		return false, err
	}

	inWindow := false
	for _, window := range windows {
		windowStart, err := parseMinutes(window.StartTime)
		if err != nil {
			continue
		}
		windowEnd, err := parseMinutes(window.EndTime)
		if err != nil {
			continue
		}
		if start >= windowStart && end <= windowEnd {
			inWindow = true
			break
		}
	}
	if !inWindow {
		return false, nil
	}

	bookings, err := s.bookings.GetActiveByGuideAndDate(guideID, date.Format("2006-01-02"))
	if err != nil {
		return false, err
	}

	for i := range bookings {
		if bookings[i].Overlaps(startTime, endTime) {
			return false, nil
		}
	}

	return true, nil
}

// parseMinutes converts a zero-padded "HH:MM" string to minutes since midnight
func parseMinutes(value string) (int, error) {
	var hours, minutes int
	if _, err := fmt.Sscanf(value, "%d:%d", &hours, &minutes); err != nil {
		return 0, fmt.Errorf("invalid time %q: %w", value, err)
	}
	if hours < 0 || hours > 23 || minutes < 0 || minutes > 59 {
		return 0, fmt.Errorf("invalid time %q", value)
	}
	return hours*60 + minutes, nil
}

// formatMinutes converts minutes since midnight to a zero-padded "HH:MM"
func formatMinutes(total int) string {
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}
