package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gabaylaguna/booking-backend/internal/models"
	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
)

// TaskTypePaymentExpire is the asynq task type for payment expiry
const TaskTypePaymentExpire = "payment:expire"

// paymentExpirePayload is the task payload
type paymentExpirePayload struct {
	PaymentID string `json:"payment_id"`
}

// expiryPaymentStore resolves payments for expiry tasks
type expiryPaymentStore interface {
	GetByID(paymentID string) (*models.Payment, error)
}

// ExpiryService schedules and handles the deadline after which an unpaid
// gateway attempt lapses. Manual GCash attempts are never scheduled; they
// wait on the verification queue instead.
type ExpiryService struct {
	client     *asynq.Client
	reconciler *ReconcilerService
	payments   expiryPaymentStore
	logger     *logrus.Logger
}

// NewExpiryService creates a new ExpiryService
func NewExpiryService(client *asynq.Client, reconciler *ReconcilerService, payments expiryPaymentStore, logger *logrus.Logger) *ExpiryService {
	return &ExpiryService{
		client:     client,
		reconciler: reconciler,
		payments:   payments,
		logger:     logger,
	}
}

// ScheduleExpiry enqueues the expiry task to fire after delay
func (s *ExpiryService) ScheduleExpiry(paymentID string, delay time.Duration) error {
	payload, err := json.Marshal(paymentExpirePayload{PaymentID: paymentID})
	if err != nil {
		return err
	}

	task := asynq.NewTask(TaskTypePaymentExpire, payload)
	info, err := s.client.Enqueue(task, asynq.ProcessIn(delay), asynq.MaxRetry(3))
	if err != nil {
		return fmt.Errorf("failed to enqueue expiry task: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"payment_id": paymentID,
		"task_id":    info.ID,
		"process_in": delay.String(),
	}).Debug("Payment expiry scheduled")

	return nil
}

// HandleExpireTask is the asynq handler. It feeds an expired outcome through
// the reconciler, which abandons the attempt only if it is still pending.
func (s *ExpiryService) HandleExpireTask(ctx context.Context, task *asynq.Task) error {
	var payload paymentExpirePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("invalid expiry payload: %w", err)
	}

	payment, err := s.payments.GetByID(payload.PaymentID)
	if err != nil {
		if err == models.ErrPaymentNotFound {
			s.logger.WithField("payment_id", payload.PaymentID).Warn("Expiry task for unknown payment")
			return nil
		}
		return err
	}

	event := &SettlementEvent{
		Provider:    payment.Provider,
		ProviderRef: payment.TransactionID,
		Outcome:     OutcomeExpired,
		Source:      models.PaymentSourceSystem,
	}

	return s.reconciler.Apply(ctx, event)
}
