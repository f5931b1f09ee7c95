package handlers

import (
	"errors"
	"net/http"

	"github.com/gabaylaguna/booking-backend/internal/middleware"
	"github.com/gabaylaguna/booking-backend/internal/models"
	"github.com/gabaylaguna/booking-backend/internal/services"
	"github.com/gabaylaguna/booking-backend/internal/utils"
	"github.com/gabaylaguna/booking-backend/pkg/validator"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// respondError maps domain errors to HTTP responses. Anything unmapped is a
// 500 with a generic message; the cause goes to the log, not the client.
func respondError(c *gin.Context, logger *logrus.Logger, err error) {
	var slotErr *models.SlotConflictError
	var transitionErr *models.InvalidTransitionError
	var proofErr *models.InvalidProofError
	var providerErr *models.ProviderUnavailableError
	var validationErrs validator.ValidationErrors

	switch {
	case errors.As(err, &slotErr):
		c.JSON(http.StatusConflict, gin.H{
			"error":   "slot_conflict",
			"message": slotErr.Error(),
		})
	case errors.As(err, &transitionErr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":   "invalid_transition",
			"message": transitionErr.Error(),
		})
	case errors.As(err, &proofErr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":   "invalid_proof",
			"message": proofErr.Error(),
		})
	case errors.As(err, &validationErrs):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":  "validation_failed",
			"errors": validationErrs,
		})
	case errors.As(err, &providerErr):
		logger.WithError(err).Error("Payment provider unavailable")
		c.JSON(http.StatusBadGateway, gin.H{
			"error":   "provider_unavailable",
			"message": "The payment provider did not respond, please retry",
		})
	case errors.Is(err, models.ErrBookingNotFound),
		errors.Is(err, models.ErrPaymentNotFound),
		errors.Is(err, models.ErrGuideNotFound),
		errors.Is(err, models.ErrAccountNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "not_found",
			"message": err.Error(),
		})
	default:
		logger.WithError(err).Error("Request failed")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Something went wrong",
		})
	}
}

// requestMeta collects the client context attached to audit entries
func requestMeta(c *gin.Context) services.RequestMeta {
	meta := services.RequestMeta{
		IPAddress: utils.GetRealIP(c),
		UserAgent: c.Request.UserAgent(),
	}
	if userCtx, ok := middleware.GetUserContext(c); ok {
		meta.ActorID = userCtx.UserID.String()
	}
	return meta
}
