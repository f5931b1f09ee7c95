package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/gabaylaguna/booking-backend/internal/config"
	"github.com/gabaylaguna/booking-backend/internal/models"
	"github.com/sirupsen/logrus"
)

// PayMongoService handles payments through the PayMongo Payment Intents API
type PayMongoService struct {
	cfg      *config.PayMongoConfig
	payments *config.PaymentsConfig
	logger   *logrus.Logger
	client   *http.Client
}

// NewPayMongoService creates a new PayMongo payment service
func NewPayMongoService(cfg *config.PayMongoConfig, payments *config.PaymentsConfig, logger *logrus.Logger) *PayMongoService {
	return &PayMongoService{
		cfg:      cfg,
		payments: payments,
		logger:   logger,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Provider identifies the rail this adapter serves
func (s *PayMongoService) Provider() models.PaymentProvider {
	return models.ProviderPayMongo
}

// Initiate opens a payment intent for the booking total. PayMongo amounts
// are integer centavos.
func (s *PayMongoService) Initiate(booking *models.Booking, payment *models.Payment) (*InitiationResult, error) {
	amountCentavos := int64(math.Round(payment.Amount * 100))

	intentReq := map[string]interface{}{
		"data": map[string]interface{}{
			"attributes": map[string]interface{}{
				"amount":                 amountCentavos,
				"currency":               s.payments.Currency,
				"payment_method_allowed": []string{"card", "gcash", "paymaya"},
				"description":            fmt.Sprintf("Tour booking %s", booking.ID),
				"metadata": map[string]interface{}{
					"booking_id": booking.ID,
				},
			},
		},
	}

	respBody, err := s.post(context.Background(), "/v1/payment_intents", intentReq)
	if err != nil {
		return nil, err
	}

	var intentResp struct {
		Data struct {
			ID         string `json:"id"`
			Attributes struct {
				ClientKey string `json:"client_key"`
				Status    string `json:"status"`
			} `json:"attributes"`
		} `json:"data"`
	}
	if err := json.Unmarshal(respBody, &intentResp); err != nil {
		return nil, fmt.Errorf("failed to parse payment intent response: %w", err)
	}
	if intentResp.Data.ID == "" {
		return nil, fmt.Errorf("payment intent response missing id: %s", string(respBody))
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id": booking.ID,
		"intent_id":  intentResp.Data.ID,
		"amount":     payment.Amount,
	}).Info("PayMongo payment intent created")

	return &InitiationResult{
		TransactionID: intentResp.Data.ID,
		Extra: models.JSONB{
			"client_key":    intentResp.Data.Attributes.ClientKey,
			"intent_status": intentResp.Data.Attributes.Status,
		},
	}, nil
}

// NormalizeWebhook reduces a PayMongo webhook to a settlement event. Events
// other than payment.paid and payment.failed return nil with no error.
func (s *PayMongoService) NormalizeWebhook(body []byte) (*SettlementEvent, error) {
	var payload struct {
		Data struct {
			Attributes struct {
				Type string `json:"type"`
				Data struct {
					ID         string `json:"id"`
					Attributes struct {
						Amount          int64  `json:"amount"`
						PaymentIntentID string `json:"payment_intent_id"`
						Status          string `json:"status"`
					} `json:"attributes"`
				} `json:"data"`
			} `json:"attributes"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("invalid webhook payload: %w", err)
	}

	eventType := payload.Data.Attributes.Type
	paymentData := payload.Data.Attributes.Data

	var outcome SettlementOutcome
	switch eventType {
	case "payment.paid":
		outcome = OutcomePaid
	case "payment.failed":
		outcome = OutcomeFailed
	default:
		s.logger.WithField("event_type", eventType).Debug("Ignoring PayMongo event")
		return nil, nil
	}

	if paymentData.Attributes.PaymentIntentID == "" {
		return nil, fmt.Errorf("webhook missing payment_intent_id")
	}

	amount := float64(paymentData.Attributes.Amount) / 100

	return &SettlementEvent{
		Provider:       models.ProviderPayMongo,
		ProviderRef:    paymentData.Attributes.PaymentIntentID,
		Outcome:        outcome,
		AmountObserved: &amount,
		Metadata: models.JSONB{
			"payment_id": paymentData.ID,
			"event_type": eventType,
		},
		Source:  models.PaymentSourceProviderWebhook,
		RawBody: string(body),
	}, nil
}

// Refund refunds the payment behind a settled intent
func (s *PayMongoService) Refund(payment *models.Payment) (models.JSONB, error) {
	paymentID, _ := payment.Details["payment_id"].(string)
	if paymentID == "" {
		return nil, fmt.Errorf("payment %s has no provider payment id to refund", payment.ID)
	}

	refundReq := map[string]interface{}{
		"data": map[string]interface{}{
			"attributes": map[string]interface{}{
				"amount": int64(math.Round(payment.Amount * 100)),
				"reason": "requested_by_customer",
			},
		},
	}

	respBody, err := s.post(context.Background(), "/v1/payments/"+paymentID+"/refunds", refundReq)
	if err != nil {
		return nil, err
	}

	var refundResp struct {
		Data struct {
			ID         string `json:"id"`
			Attributes struct {
				Status string `json:"status"`
			} `json:"attributes"`
		} `json:"data"`
	}
	if err := json.Unmarshal(respBody, &refundResp); err != nil {
		return nil, fmt.Errorf("failed to parse refund response: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"payment_id": payment.ID,
		"refund_id":  refundResp.Data.ID,
	}).Info("PayMongo refund completed")

	return models.JSONB{
		"refund_id":     refundResp.Data.ID,
		"refund_status": refundResp.Data.Attributes.Status,
	}, nil
}

// post sends an authenticated JSON request to a PayMongo endpoint
func (s *PayMongoService) post(ctx context.Context, path string, payload interface{}) ([]byte, error) {
	jsonBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.BaseURL+path, bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(s.cfg.SecretKey, "")
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &models.ProviderUnavailableError{Provider: models.ProviderPayMongo, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, &models.ProviderUnavailableError{
			Provider: models.ProviderPayMongo,
			Err:      fmt.Errorf("%s returned status %d: %s", path, resp.StatusCode, string(body)),
		}
	}

	return body, nil
}
