package database

import (
	"database/sql"
	"errors"

	"github.com/gabaylaguna/booking-backend/internal/models"
)

// GuideRepository reads the tour guide profile slice owned by the profile
// service. This service never writes to tour_guides.
type GuideRepository struct {
	db DB
}

// NewGuideRepository creates a new GuideRepository
func NewGuideRepository(db DB) *GuideRepository {
	return &GuideRepository{db: db}
}

// GetByID retrieves a tour guide by ID
func (r *GuideRepository) GetByID(guideID string) (*models.TourGuide, error) {
	query := `
		SELECT id, user_id, hourly_rate
		FROM tour_guides
		WHERE id = $1
	`

	guide := &models.TourGuide{}
	err := r.db.QueryRow(query, guideID).Scan(&guide.ID, &guide.UserID, &guide.HourlyRate)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrGuideNotFound
	}
	if err != nil {
		return nil, err
	}

	return guide, nil
}

// GetByUserID retrieves the guide profile belonging to a user account
func (r *GuideRepository) GetByUserID(userID string) (*models.TourGuide, error) {
	query := `
		SELECT id, user_id, hourly_rate
		FROM tour_guides
		WHERE user_id = $1
	`

	guide := &models.TourGuide{}
	err := r.db.QueryRow(query, userID).Scan(&guide.ID, &guide.UserID, &guide.HourlyRate)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrGuideNotFound
	}
	if err != nil {
		return nil, err
	}

	return guide, nil
}
