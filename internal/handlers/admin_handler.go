package handlers

import (
	"net/http"

	"github.com/gabaylaguna/booking-backend/internal/database"
	"github.com/gabaylaguna/booking-backend/internal/middleware"
	"github.com/gabaylaguna/booking-backend/internal/models"
	"github.com/gabaylaguna/booking-backend/internal/services"
	"github.com/gabaylaguna/booking-backend/pkg/validator"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// AdminHandler handles the manual verification queue, refunds and the
// GCash receiving account roster.
type AdminHandler struct {
	verificationService *services.VerificationService
	refundService       *services.RefundService
	gcashAccountRepo    *database.GCashAccountRepository
	validate            *validator.RequestValidator
	logger              *logrus.Logger
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(
	verificationService *services.VerificationService,
	refundService *services.RefundService,
	gcashAccountRepo *database.GCashAccountRepository,
	validate *validator.RequestValidator,
	logger *logrus.Logger,
) *AdminHandler {
	return &AdminHandler{
		verificationService: verificationService,
		refundService:       refundService,
		gcashAccountRepo:    gcashAccountRepo,
		validate:            validate,
		logger:              logger,
	}
}

// RejectProofRequest carries the mandatory rejection reason
type RejectProofRequest struct {
	Reason string `json:"reason" validate:"required,min=3,max=1000"`
}

// GCashAccountRequest registers a receiving account
type GCashAccountRequest struct {
	AccountName   string `json:"account_name" validate:"required,min=2,max=100"`
	AccountNumber string `json:"account_number" validate:"required,min=10,max=13"`
}

// VerificationQueue lists the payments awaiting a decision
// GET /api/v1/admin/verifications
func (h *AdminHandler) VerificationQueue(c *gin.Context) {
	payments, err := h.verificationService.Queue()
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payments": payments})
}

// ApproveVerification verifies a proof and settles the payment
// POST /api/v1/admin/verifications/:paymentId/approve
func (h *AdminHandler) ApproveVerification(c *gin.Context) {
	userCtx := middleware.MustGetUserContext(c)

	payment, err := h.verificationService.Approve(c.Request.Context(), c.Param("paymentId"), userCtx.UserID.String(), requestMeta(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"payment": payment})
}

// RejectVerification rejects a proof; the payment stays pending
// POST /api/v1/admin/verifications/:paymentId/reject
func (h *AdminHandler) RejectVerification(c *gin.Context) {
	userCtx := middleware.MustGetUserContext(c)

	var req RejectProofRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		respondError(c, h.logger, err)
		return
	}

	payment, err := h.verificationService.Reject(c.Request.Context(), c.Param("paymentId"), userCtx.UserID.String(), req.Reason, requestMeta(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"payment": payment})
}

// ListRefundable lists completed payments eligible for refund
// GET /api/v1/admin/payments/refundable
func (h *AdminHandler) ListRefundable(c *gin.Context) {
	payments, err := h.refundService.ListRefundable()
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payments": payments})
}

// Refund refunds a completed payment and releases the booking's slot
// POST /api/v1/admin/payments/:paymentId/refund
func (h *AdminHandler) Refund(c *gin.Context) {
	payment, err := h.refundService.Refund(c.Request.Context(), c.Param("paymentId"), requestMeta(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"payment": payment})
}

// ListGCashAccounts lists all registered receiving accounts
// GET /api/v1/admin/gcash-accounts
func (h *AdminHandler) ListGCashAccounts(c *gin.Context) {
	accounts, err := h.gcashAccountRepo.List()
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"accounts": accounts})
}

// CreateGCashAccount registers a receiving account
// POST /api/v1/admin/gcash-accounts
func (h *AdminHandler) CreateGCashAccount(c *gin.Context) {
	var req GCashAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		respondError(c, h.logger, err)
		return
	}

	account := &models.GCashAccount{
		AccountName:   req.AccountName,
		AccountNumber: req.AccountNumber,
	}
	if err := h.gcashAccountRepo.Create(account); err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"account": account})
}

// ActivateGCashAccount makes one account the active receiver
// POST /api/v1/admin/gcash-accounts/:id/activate
func (h *AdminHandler) ActivateGCashAccount(c *gin.Context) {
	if err := h.gcashAccountRepo.Activate(c.Param("id")); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "account activated"})
}

// DeleteGCashAccount removes a receiving account
// DELETE /api/v1/admin/gcash-accounts/:id
func (h *AdminHandler) DeleteGCashAccount(c *gin.Context) {
	if err := h.gcashAccountRepo.Delete(c.Param("id")); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "account removed"})
}
