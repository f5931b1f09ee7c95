package models

import (
	"strings"
	"time"
)

// DayOfWeek is a lowercase English weekday name, matching how guides
// configure their recurring schedule.
type DayOfWeek string

const (
	Monday    DayOfWeek = "monday"
	Tuesday   DayOfWeek = "tuesday"
	Wednesday DayOfWeek = "wednesday"
	Thursday  DayOfWeek = "thursday"
	Friday    DayOfWeek = "friday"
	Saturday  DayOfWeek = "saturday"
	Sunday    DayOfWeek = "sunday"
)

// DayOfWeekFromDate resolves the weekday name for a calendar date
func DayOfWeekFromDate(date time.Time) DayOfWeek {
	return DayOfWeek(strings.ToLower(date.Weekday().String()))
}

// IsValid reports whether the value is a recognized weekday name
func (d DayOfWeek) IsValid() bool {
	switch d {
	case Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday:
		return true
	}
	return false
}

// GuideAvailability is one recurring weekly open window for a guide
type GuideAvailability struct {
	ID          string    `json:"id" db:"id"`
	TourGuideID string    `json:"tour_guide_id" db:"tour_guide_id"`
	DayOfWeek   DayOfWeek `json:"day_of_week" db:"day_of_week"`
	StartTime   string    `json:"start_time" db:"start_time"`
	EndTime     string    `json:"end_time" db:"end_time"`
	IsAvailable bool      `json:"is_available" db:"is_available"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// TourGuide is the slice of the guide profile this service reads.
// Profile CRUD lives in another service; only the hourly rate and the
// owning user are needed to price and authorize bookings.
type TourGuide struct {
	ID         string  `json:"id" db:"id"`
	UserID     string  `json:"user_id" db:"user_id"`
	HourlyRate float64 `json:"hourly_rate" db:"hourly_rate"`
}

// Slot is a candidate [start, end) interval of guide time on a given date
type Slot struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Available bool   `json:"available"`
	Booked    bool   `json:"booked"`
	Duration  int    `json:"duration"`
}
