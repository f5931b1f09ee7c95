package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gabaylaguna/booking-backend/internal/database"
	"github.com/gabaylaguna/booking-backend/internal/middleware"
	"github.com/gabaylaguna/booking-backend/internal/models"
	"github.com/gabaylaguna/booking-backend/internal/services"
	"github.com/gabaylaguna/booking-backend/pkg/validator"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// AvailabilityHandler handles guide schedule management and slot lookups
type AvailabilityHandler struct {
	availabilityRepo *database.AvailabilityRepository
	guideRepo        *database.GuideRepository
	slotService      *services.SlotService
	validate         *validator.RequestValidator
	logger           *logrus.Logger
}

// NewAvailabilityHandler creates a new AvailabilityHandler
func NewAvailabilityHandler(
	availabilityRepo *database.AvailabilityRepository,
	guideRepo *database.GuideRepository,
	slotService *services.SlotService,
	validate *validator.RequestValidator,
	logger *logrus.Logger,
) *AvailabilityHandler {
	return &AvailabilityHandler{
		availabilityRepo: availabilityRepo,
		guideRepo:        guideRepo,
		slotService:      slotService,
		validate:         validate,
		logger:           logger,
	}
}

// AvailabilityRequest is the create/update payload for one weekly window
type AvailabilityRequest struct {
	DayOfWeek   string `json:"day_of_week" validate:"required,oneof=monday tuesday wednesday thursday friday saturday sunday"`
	StartTime   string `json:"start_time" validate:"required,datetime=15:04"`
	EndTime     string `json:"end_time" validate:"required,datetime=15:04,gtfield=StartTime"`
	IsAvailable *bool  `json:"is_available" validate:"required"`
}

// GetSlots lists the bookable slots for a guide, date and duration
// GET /api/v1/guides/:guideId/slots?date=2026-09-01&duration=2
func (h *AvailabilityHandler) GetSlots(c *gin.Context) {
	guideID := c.Param("guideId")

	date, err := time.Parse("2006-01-02", c.Query("date"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_date", "message": "date must be YYYY-MM-DD"})
		return
	}

	duration := 1
	if raw := c.Query("duration"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > services.MaxTourHours {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_duration",
				"message": fmt.Sprintf("duration must be a whole number of hours between 1 and %d", services.MaxTourHours),
			})
			return
		}
		duration = parsed
	}

	if _, err := h.guideRepo.GetByID(guideID); err != nil {
		respondError(c, h.logger, err)
		return
	}

	slots, err := h.slotService.GetAvailableSlots(guideID, date, duration)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"date":     date.Format("2006-01-02"),
		"duration": duration,
		"slots":    slots,
	})
}

// ListForGuide lists a guide's weekly availability windows
// GET /api/v1/guides/:guideId/availability
func (h *AvailabilityHandler) ListForGuide(c *gin.Context) {
	guideID := c.Param("guideId")

	if _, err := h.guideRepo.GetByID(guideID); err != nil {
		respondError(c, h.logger, err)
		return
	}

	windows, err := h.availabilityRepo.GetByGuideID(guideID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"availability": windows})
}

// Create adds a weekly window to the authenticated guide's schedule
// POST /api/v1/availability
func (h *AvailabilityHandler) Create(c *gin.Context) {
	guide, ok := h.resolveGuide(c)
	if !ok {
		return
	}

	var req AvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		respondError(c, h.logger, err)
		return
	}

	window := &models.GuideAvailability{
		TourGuideID: guide.ID,
		DayOfWeek:   models.DayOfWeek(req.DayOfWeek),
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		IsAvailable: *req.IsAvailable,
	}

	if err := h.availabilityRepo.Create(window); err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"availability": window})
}

// Update modifies one of the authenticated guide's windows
// PUT /api/v1/availability/:id
func (h *AvailabilityHandler) Update(c *gin.Context) {
	guide, ok := h.resolveGuide(c)
	if !ok {
		return
	}

	window, err := h.availabilityRepo.GetByID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "availability not found"})
		return
	}
	if window.TourGuideID != guide.ID {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden", "message": "this availability belongs to another guide"})
		return
	}

	var req AvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		respondError(c, h.logger, err)
		return
	}

	window.DayOfWeek = models.DayOfWeek(req.DayOfWeek)
	window.StartTime = req.StartTime
	window.EndTime = req.EndTime
	window.IsAvailable = *req.IsAvailable

	if err := h.availabilityRepo.Update(window); err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"availability": window})
}

// Delete removes one of the authenticated guide's windows
// DELETE /api/v1/availability/:id
func (h *AvailabilityHandler) Delete(c *gin.Context) {
	guide, ok := h.resolveGuide(c)
	if !ok {
		return
	}

	window, err := h.availabilityRepo.GetByID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "availability not found"})
		return
	}
	if window.TourGuideID != guide.ID {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden", "message": "this availability belongs to another guide"})
		return
	}

	if err := h.availabilityRepo.Delete(window.ID); err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "availability removed"})
}

// resolveGuide maps the authenticated user to their guide profile
func (h *AvailabilityHandler) resolveGuide(c *gin.Context) (*models.TourGuide, bool) {
	userCtx, exists := middleware.GetUserContext(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return nil, false
	}

	guide, err := h.guideRepo.GetByUserID(userCtx.UserID.String())
	if err != nil {
		respondError(c, h.logger, err)
		return nil, false
	}

	return guide, true
}
