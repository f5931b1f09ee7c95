package handlers

import (
	"testing"

	"github.com/gabaylaguna/booking-backend/pkg/validator"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateBookingRequestDuration(t *testing.T) {
	validate := validator.New()

	req := CreateBookingRequest{
		TourGuideID:       uuid.New().String(),
		PointOfInterestID: uuid.New().String(),
		TourDate:          "2026-09-10",
		StartTime:         "10:00",
		DurationHours:     8,
		NumberOfPeople:    2,
	}
	assert.NoError(t, validate.Struct(&req))

	req.DurationHours = 9
	err := validate.Struct(&req)
	require.Error(t, err)

	var fields validator.ValidationErrors
	require.ErrorAs(t, err, &fields)
	assert.Contains(t, fields, "duration_hours")
}
