package database

import (
	"database/sql"
	"fmt"

	"github.com/gabaylaguna/booking-backend/internal/models"
	"github.com/google/uuid"
)

// AvailabilityRepository handles database operations for guide_availabilities
type AvailabilityRepository struct {
	db DB
}

// NewAvailabilityRepository creates a new AvailabilityRepository
func NewAvailabilityRepository(db DB) *AvailabilityRepository {
	return &AvailabilityRepository{db: db}
}

// Create creates a new availability window
func (r *AvailabilityRepository) Create(av *models.GuideAvailability) error {
	query := `
		INSERT INTO guide_availabilities (
			id, tour_guide_id, day_of_week, start_time, end_time, is_available
		) VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`

	if av.ID == "" {
		av.ID = uuid.New().String()
	}

	return r.db.QueryRow(
		query,
		av.ID, av.TourGuideID, av.DayOfWeek, av.StartTime, av.EndTime, av.IsAvailable,
	).Scan(&av.CreatedAt, &av.UpdatedAt)
}

// GetByID retrieves an availability window by ID
func (r *AvailabilityRepository) GetByID(id string) (*models.GuideAvailability, error) {
	query := `
		SELECT id, tour_guide_id, day_of_week, start_time, end_time,
			   is_available, created_at, updated_at
		FROM guide_availabilities
		WHERE id = $1
	`

	av := &models.GuideAvailability{}
	err := r.db.QueryRow(query, id).Scan(
		&av.ID, &av.TourGuideID, &av.DayOfWeek, &av.StartTime, &av.EndTime,
		&av.IsAvailable, &av.CreatedAt, &av.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("availability not found")
	}
	if err != nil {
		return nil, err
	}

	return av, nil
}

// GetByGuideID retrieves all availability windows for a guide
func (r *AvailabilityRepository) GetByGuideID(guideID string) ([]models.GuideAvailability, error) {
	query := `
		SELECT id, tour_guide_id, day_of_week, start_time, end_time,
			   is_available, created_at, updated_at
		FROM guide_availabilities
		WHERE tour_guide_id = $1
		ORDER BY day_of_week, start_time
	`

	rows, err := r.db.Query(query, guideID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return r.scanAvailabilities(rows)
}

// GetOpenWindows retrieves the open windows for a guide on a given weekday
func (r *AvailabilityRepository) GetOpenWindows(guideID string, day models.DayOfWeek) ([]models.GuideAvailability, error) {
	query := `
		SELECT id, tour_guide_id, day_of_week, start_time, end_time,
			   is_available, created_at, updated_at
		FROM guide_availabilities
		WHERE tour_guide_id = $1
		  AND day_of_week = $2
		  AND is_available = TRUE
		ORDER BY start_time
	`

	rows, err := r.db.Query(query, guideID, day)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return r.scanAvailabilities(rows)
}

// Update updates an availability window
func (r *AvailabilityRepository) Update(av *models.GuideAvailability) error {
	query := `
		UPDATE guide_availabilities
		SET day_of_week = $2, start_time = $3, end_time = $4,
			is_available = $5, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`

	err := r.db.QueryRow(
		query,
		av.ID, av.DayOfWeek, av.StartTime, av.EndTime, av.IsAvailable,
	).Scan(&av.UpdatedAt)
	if err == sql.ErrNoRows {
		return fmt.Errorf("availability not found")
	}

	return err
}

// Delete removes an availability window
func (r *AvailabilityRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM guide_availabilities WHERE id = $1`, id)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rows == 0 {
		return fmt.Errorf("availability not found")
	}

	return nil
}

// scanAvailabilities scans multiple availability windows from rows
func (r *AvailabilityRepository) scanAvailabilities(rows *sql.Rows) ([]models.GuideAvailability, error) {
	availabilities := []models.GuideAvailability{}

	for rows.Next() {
		var av models.GuideAvailability
		err := rows.Scan(
			&av.ID, &av.TourGuideID, &av.DayOfWeek, &av.StartTime, &av.EndTime,
			&av.IsAvailable, &av.CreatedAt, &av.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		availabilities = append(availabilities, av)
	}

	return availabilities, rows.Err()
}
