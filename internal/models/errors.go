package models

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by repositories and services
var (
	ErrGuideNotFound   = errors.New("tour guide not found")
	ErrBookingNotFound = errors.New("booking not found")
	ErrPaymentNotFound = errors.New("payment not found")
	ErrAccountNotFound = errors.New("gcash account not found")
)

// SlotConflictError is returned when a requested slot overlaps an active
// booking for the same guide and date.
type SlotConflictError struct {
	TourGuideID string
	TourDate    string
	StartTime   string
	EndTime     string
}

func (e *SlotConflictError) Error() string {
	return fmt.Sprintf("slot %s-%s on %s is no longer available for guide %s",
		e.StartTime, e.EndTime, e.TourDate, e.TourGuideID)
}

// InvalidTransitionError is returned when a booking status change is not
// permitted from the current state.
type InvalidTransitionError struct {
	BookingID string
	From      BookingStatus
	To        BookingStatus
	Reason    string
}

func (e *InvalidTransitionError) Error() string {
	if e.From == "" && e.To == "" {
		return fmt.Sprintf("booking %s: %s", e.BookingID, e.Reason)
	}
	if e.Reason != "" {
		return fmt.Sprintf("booking %s cannot move from %s to %s: %s", e.BookingID, e.From, e.To, e.Reason)
	}
	return fmt.Sprintf("booking %s cannot move from %s to %s", e.BookingID, e.From, e.To)
}

// InvalidProofError is returned when an uploaded payment proof fails the
// file type or size checks, or the payment is not in a proof-accepting state.
type InvalidProofError struct {
	Reason string
}

func (e *InvalidProofError) Error() string {
	return "invalid payment proof: " + e.Reason
}

// ProviderUnavailableError wraps a transport or non-2xx failure talking to a
// payment provider. Callers may retry; local state is unchanged.
type ProviderUnavailableError struct {
	Provider PaymentProvider
	Err      error
}

func (e *ProviderUnavailableError) Error() string {
	return fmt.Sprintf("provider %s unavailable: %v", e.Provider, e.Err)
}

func (e *ProviderUnavailableError) Unwrap() error {
	return e.Err
}
