package handlers

import (
	"net/http"
	"time"

	"github.com/gabaylaguna/booking-backend/internal/database"
	"github.com/gabaylaguna/booking-backend/internal/middleware"
	"github.com/gabaylaguna/booking-backend/internal/models"
	"github.com/gabaylaguna/booking-backend/internal/services"
	"github.com/gabaylaguna/booking-backend/pkg/validator"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// BookingHandler handles booking lifecycle operations
type BookingHandler struct {
	bookingService *services.BookingService
	guideRepo      *database.GuideRepository
	validate       *validator.RequestValidator
	logger         *logrus.Logger
}

// NewBookingHandler creates a new BookingHandler
func NewBookingHandler(
	bookingService *services.BookingService,
	guideRepo *database.GuideRepository,
	validate *validator.RequestValidator,
	logger *logrus.Logger,
) *BookingHandler {
	return &BookingHandler{
		bookingService: bookingService,
		guideRepo:      guideRepo,
		validate:       validate,
		logger:         logger,
	}
}

// CreateBookingRequest is the booking creation payload
type CreateBookingRequest struct {
	TourGuideID       string  `json:"tour_guide_id" validate:"required,uuid4"`
	PointOfInterestID string  `json:"point_of_interest_id" validate:"required,uuid4"`
	TourDate          string  `json:"tour_date" validate:"required,datetime=2006-01-02"`
	StartTime         string  `json:"start_time" validate:"required,datetime=15:04"`
	DurationHours     int     `json:"duration_hours" validate:"required,gte=1,max=8"`
	NumberOfPeople    int     `json:"number_of_people" validate:"required,gte=1,max=50"`
	SpecialRequests   *string `json:"special_requests,omitempty" validate:"omitempty,max=1000"`
}

// UpdateStatusRequest is the guide-driven status change payload
type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=in_progress completed cancelled"`
}

// CancelRequest is the cancellation payload
type CancelRequest struct {
	Reason *string `json:"reason,omitempty" validate:"omitempty,max=1000"`
}

// Create books a slot with a guide
// POST /api/v1/bookings
func (h *BookingHandler) Create(c *gin.Context) {
	userCtx, exists := middleware.GetUserContext(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		respondError(c, h.logger, err)
		return
	}

	tourDate, err := time.Parse("2006-01-02", req.TourDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_date", "message": "tour_date must be YYYY-MM-DD"})
		return
	}
	if tourDate.Before(time.Now().Truncate(24 * time.Hour)) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "invalid_date", "message": "tour_date cannot be in the past"})
		return
	}

	booking, err := h.bookingService.Create(services.CreateBookingInput{
		TouristID:         userCtx.UserID.String(),
		TourGuideID:       req.TourGuideID,
		PointOfInterestID: req.PointOfInterestID,
		TourDate:          tourDate,
		StartTime:         req.StartTime,
		DurationHours:     req.DurationHours,
		NumberOfPeople:    req.NumberOfPeople,
		SpecialRequests:   req.SpecialRequests,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"booking": booking})
}

// Get retrieves one booking visible to the caller
// GET /api/v1/bookings/:id
func (h *BookingHandler) Get(c *gin.Context) {
	userCtx, exists := middleware.GetUserContext(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	booking, err := h.bookingService.GetByID(c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	if !h.canAccess(userCtx, booking) {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"booking": booking})
}

// ListMine lists the authenticated tourist's bookings
// GET /api/v1/bookings
func (h *BookingHandler) ListMine(c *gin.Context) {
	userCtx, exists := middleware.GetUserContext(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	bookings, err := h.bookingService.ListForTourist(userCtx.UserID.String())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"bookings": bookings})
}

// ListForGuide lists the authenticated guide's bookings
// GET /api/v1/guide/bookings
func (h *BookingHandler) ListForGuide(c *gin.Context) {
	userCtx, exists := middleware.GetUserContext(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	guide, err := h.guideRepo.GetByUserID(userCtx.UserID.String())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	bookings, err := h.bookingService.ListForGuide(guide.ID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"bookings": bookings})
}

// UpdateStatus applies a guide-driven lifecycle transition
// PATCH /api/v1/bookings/:id/status
func (h *BookingHandler) UpdateStatus(c *gin.Context) {
	userCtx, exists := middleware.GetUserContext(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		respondError(c, h.logger, err)
		return
	}

	booking, err := h.bookingService.GetByID(c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	guide, err := h.guideRepo.GetByUserID(userCtx.UserID.String())
	if err != nil || guide.ID != booking.TourGuideID {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden", "message": "only the assigned guide can update this booking"})
		return
	}

	updated, err := h.bookingService.UpdateStatus(booking.ID, models.BookingStatus(req.Status))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"booking": updated})
}

// Cancel cancels a booking
// POST /api/v1/bookings/:id/cancel
func (h *BookingHandler) Cancel(c *gin.Context) {
	userCtx, exists := middleware.GetUserContext(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req CancelRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		return
	}

	booking, err := h.bookingService.GetByID(c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	if !h.canAccess(userCtx, booking) {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}

	cancelled, err := h.bookingService.Cancel(booking.ID, req.Reason)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"booking": cancelled})
}

// canAccess reports whether the caller owns or serves the booking
func (h *BookingHandler) canAccess(userCtx middleware.UserContext, booking *models.Booking) bool {
	if userCtx.HasRole(middleware.RoleAdmin) {
		return true
	}
	if booking.TouristID == userCtx.UserID.String() {
		return true
	}
	if userCtx.HasRole(middleware.RoleGuide) {
		guide, err := h.guideRepo.GetByUserID(userCtx.UserID.String())
		if err == nil && guide.ID == booking.TourGuideID {
			return true
		}
	}
	return false
}
