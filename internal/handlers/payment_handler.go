package handlers

import (
	"net/http"

	"github.com/gabaylaguna/booking-backend/internal/middleware"
	"github.com/gabaylaguna/booking-backend/internal/models"
	"github.com/gabaylaguna/booking-backend/internal/services"
	"github.com/gabaylaguna/booking-backend/pkg/validator"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// PaymentHandler handles payment initiation, capture and proof upload
type PaymentHandler struct {
	paymentService      *services.PaymentService
	bookingService      *services.BookingService
	verificationService *services.VerificationService
	paypalService       *services.PayPalService
	reconciler          *services.ReconcilerService
	validate            *validator.RequestValidator
	logger              *logrus.Logger
}

// NewPaymentHandler creates a new PaymentHandler
func NewPaymentHandler(
	paymentService *services.PaymentService,
	bookingService *services.BookingService,
	verificationService *services.VerificationService,
	paypalService *services.PayPalService,
	reconciler *services.ReconcilerService,
	validate *validator.RequestValidator,
	logger *logrus.Logger,
) *PaymentHandler {
	return &PaymentHandler{
		paymentService:      paymentService,
		bookingService:      bookingService,
		verificationService: verificationService,
		paypalService:       paypalService,
		reconciler:          reconciler,
		validate:            validate,
		logger:              logger,
	}
}

// InitiatePaymentRequest selects the rail for a booking's payment
type InitiatePaymentRequest struct {
	Provider string `json:"provider" validate:"required,oneof=paypal paymongo xendit xendit_va gcash"`
	BankCode string `json:"bank_code,omitempty" validate:"omitempty,max=16"`
}

// Initiate opens a payment attempt for a booking
// POST /api/v1/bookings/:id/payments
func (h *PaymentHandler) Initiate(c *gin.Context) {
	userCtx, exists := middleware.GetUserContext(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req InitiatePaymentRequest
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
	if booking.TouristID != userCtx.UserID.String() && !userCtx.HasRole(middleware.RoleAdmin) {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden", "message": "only the booking owner can pay for it"})
		return
	}

	result, err := h.paymentService.Initiate(c.Request.Context(), services.InitiatePaymentInput{
		BookingID: booking.ID,
		Provider:  models.PaymentProvider(req.Provider),
		BankCode:  req.BankCode,
		Meta:      requestMeta(c),
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, result)
}

// Get retrieves one payment visible to the caller
// GET /api/v1/payments/:id
func (h *PaymentHandler) Get(c *gin.Context) {
	payment, ok := h.resolvePayment(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"payment": payment})
}

// Status reports where a payment stands, including the manual verification
// state for GCash attempts.
// GET /api/v1/payments/:id/status
func (h *PaymentHandler) Status(c *gin.Context) {
	payment, ok := h.resolvePayment(c)
	if !ok {
		return
	}

	body := gin.H{
		"payment_id": payment.ID,
		"booking_id": payment.BookingID,
		"provider":   payment.Provider,
		"status":     payment.Status,
		"amount":     payment.Amount,
		"paid_at":    payment.PaidAt,
	}
	if payment.IsManual() {
		body["verification_status"] = payment.VerificationStatus
		body["rejection_reason"] = payment.RejectionReason
		body["proof_submitted_at"] = payment.ProofSubmittedAt
	}

	c.JSON(http.StatusOK, body)
}

// ListForBooking lists all payment attempts of a booking, newest first
// GET /api/v1/bookings/:id/payments
func (h *PaymentHandler) ListForBooking(c *gin.Context) {
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
	if booking.TouristID != userCtx.UserID.String() && !userCtx.HasRole(middleware.RoleAdmin) {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}

	payments, err := h.paymentService.ListForBooking(booking.ID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"payments": payments})
}

// CapturePayPal captures an approved PayPal order and settles the result
// POST /api/v1/payments/paypal/:orderId/capture
func (h *PaymentHandler) CapturePayPal(c *gin.Context) {
	orderID := c.Param("orderId")
	if orderID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "order id is required"})
		return
	}

	event, err := h.paypalService.Capture(c.Request.Context(), orderID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	if err := h.reconciler.Apply(c.Request.Context(), event); err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"order_id": orderID,
		"outcome":  event.Outcome,
	})
}

// UploadProof accepts a GCash payment proof file
// POST /api/v1/payments/:id/proof
func (h *PaymentHandler) UploadProof(c *gin.Context) {
	payment, ok := h.resolvePayment(c)
	if !ok {
		return
	}

	file, header, err := c.Request.FormFile("proof")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "a proof file is required"})
		return
	}
	defer file.Close()

	updated, err := h.verificationService.UploadProof(
		c.Request.Context(),
		payment.ID,
		file,
		header.Header.Get("Content-Type"),
		header.Size,
		requestMeta(c),
	)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"payment": updated})
}

// resolvePayment loads the payment and enforces booking ownership
func (h *PaymentHandler) resolvePayment(c *gin.Context) (*models.Payment, bool) {
	userCtx, exists := middleware.GetUserContext(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return nil, false
	}

	payment, err := h.paymentService.GetByID(c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return nil, false
	}

	if userCtx.HasRole(middleware.RoleAdmin) {
		return payment, true
	}

	booking, err := h.bookingService.GetByID(payment.BookingID)
	if err != nil {
		respondError(c, h.logger, err)
		return nil, false
	}
	if booking.TouristID != userCtx.UserID.String() {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return nil, false
	}

	return payment, true
}
