package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gabaylaguna/booking-backend/internal/config"
	"github.com/gabaylaguna/booking-backend/internal/models"
	"github.com/sirupsen/logrus"
)

const paypalTokenCacheKey = "paypal:access_token"

// PayPalService handles payments through the PayPal Orders API
type PayPalService struct {
	cfg      *config.PayPalConfig
	payments *config.PaymentsConfig
	tokens   TokenCache
	logger   *logrus.Logger
	client   *http.Client
}

// NewPayPalService creates a new PayPal payment service
func NewPayPalService(cfg *config.PayPalConfig, payments *config.PaymentsConfig, tokens TokenCache, logger *logrus.Logger) *PayPalService {
	return &PayPalService{
		cfg:      cfg,
		payments: payments,
		tokens:   tokens,
		logger:   logger,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Provider identifies the rail this adapter serves
func (s *PayPalService) Provider() models.PaymentProvider {
	return models.ProviderPayPal
}

// paypalOrderResponse is the subset of the order payload we read
type paypalOrderResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Links  []struct {
		Href string `json:"href"`
		Rel  string `json:"rel"`
	} `json:"links"`
	PurchaseUnits []struct {
		Payments struct {
			Captures []struct {
				ID     string `json:"id"`
				Status string `json:"status"`
				Amount struct {
					Value        string `json:"value"`
					CurrencyCode string `json:"currency_code"`
				} `json:"amount"`
			} `json:"captures"`
		} `json:"payments"`
	} `json:"purchase_units"`
}

// accessToken returns a valid OAuth token, hitting PayPal only on cache miss.
// The cache TTL sits under PayPal's 9000s token lifetime.
func (s *PayPalService) accessToken(ctx context.Context) (string, error) {
	cached, err := s.tokens.Get(ctx, paypalTokenCacheKey)
	if err != nil {
		s.logger.WithError(err).Warn("PayPal token cache read failed, fetching fresh token")
	}
	if cached != "" {
		return cached, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		s.cfg.BaseURL+"/v1/oauth2/token",
		strings.NewReader("grant_type=client_credentials"))
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(s.cfg.ClientID, s.cfg.Secret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", &models.ProviderUnavailableError{Provider: models.ProviderPayPal, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	if resp.StatusCode != http.StatusOK {
		return "", &models.ProviderUnavailableError{
			Provider: models.ProviderPayPal,
			Err:      fmt.Errorf("oauth returned status %d: %s", resp.StatusCode, string(body)),
		}
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return "", fmt.Errorf("failed to parse oauth response: %w", err)
	}
	if tokenResp.AccessToken == "" {
		return "", fmt.Errorf("oauth response missing access_token")
	}

	if err := s.tokens.Set(ctx, paypalTokenCacheKey, tokenResp.AccessToken, s.cfg.TokenCacheTTL); err != nil {
		s.logger.WithError(err).Warn("PayPal token cache write failed")
	}

	return tokenResp.AccessToken, nil
}

// Initiate creates a PayPal order for the booking total and returns the
// approval URL the payer is redirected to.
func (s *PayPalService) Initiate(booking *models.Booking, payment *models.Payment) (*InitiationResult, error) {
	ctx := context.Background()

	token, err := s.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	orderReq := map[string]interface{}{
		"intent": "CAPTURE",
		"purchase_units": []map[string]interface{}{
			{
				"amount": map[string]interface{}{
					"currency_code": s.payments.Currency,
					"value":         fmt.Sprintf("%.2f", payment.Amount),
				},
				"custom_id":   booking.ID,
				"description": fmt.Sprintf("Tour booking %s", booking.ID),
			},
		},
		"application_context": map[string]interface{}{
			"return_url": s.payments.FrontendURL + "/payment/success",
			"cancel_url": s.payments.FrontendURL + "/payment/cancel",
		},
	}

	order, raw, err := s.postJSON(ctx, token, "/v2/checkout/orders", orderReq)
	if err != nil {
		return nil, err
	}

	approvalURL := ""
	for _, link := range order.Links {
		if link.Rel == "approve" {
			approvalURL = link.Href
			break
		}
	}
	if order.ID == "" || approvalURL == "" {
		return nil, fmt.Errorf("paypal order response missing id or approval link: %s", raw)
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id": booking.ID,
		"order_id":   order.ID,
		"amount":     payment.Amount,
	}).Info("PayPal order created")

	return &InitiationResult{
		TransactionID: order.ID,
		CheckoutURL:   approvalURL,
		Extra: models.JSONB{
			"order_status": order.Status,
		},
	}, nil
}

// Capture captures an approved order and reduces the outcome to a settlement
// event for the reconciler.
func (s *PayPalService) Capture(ctx context.Context, orderID string) (*SettlementEvent, error) {
	token, err := s.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	order, raw, err := s.postJSON(ctx, token, "/v2/checkout/orders/"+orderID+"/capture", map[string]interface{}{})
	if err != nil {
		return nil, err
	}

	event := &SettlementEvent{
		Provider:    models.ProviderPayPal,
		ProviderRef: orderID,
		Outcome:     OutcomeFailed,
		Metadata:    models.JSONB{"capture_status": order.Status},
		Source:      models.PaymentSourceProviderAPI,
		RawBody:     raw,
	}

	if order.Status == "COMPLETED" {
		event.Outcome = OutcomePaid
		if len(order.PurchaseUnits) > 0 && len(order.PurchaseUnits[0].Payments.Captures) > 0 {
			capture := order.PurchaseUnits[0].Payments.Captures[0]
			event.Metadata["capture_id"] = capture.ID
			var amount float64
			if _, err := fmt.Sscanf(capture.Amount.Value, "%f", &amount); err == nil {
				event.AmountObserved = &amount
			}
		}
	}

	s.logger.WithFields(logrus.Fields{
		"order_id": orderID,
		"status":   order.Status,
	}).Info("PayPal capture processed")

	return event, nil
}

// Refund refunds the capture behind a completed payment
func (s *PayPalService) Refund(payment *models.Payment) (models.JSONB, error) {
	ctx := context.Background()

	captureID, _ := payment.Details["capture_id"].(string)
	if captureID == "" {
		return nil, fmt.Errorf("payment %s has no capture to refund", payment.ID)
	}

	token, err := s.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		s.cfg.BaseURL+"/v2/payments/captures/"+captureID+"/refund",
		bytes.NewBufferString("{}"))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &models.ProviderUnavailableError{Provider: models.ProviderPayPal, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, &models.ProviderUnavailableError{
			Provider: models.ProviderPayPal,
			Err:      fmt.Errorf("refund returned status %d: %s", resp.StatusCode, string(body)),
		}
	}

	var refundResp struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(body, &refundResp); err != nil {
		return nil, fmt.Errorf("failed to parse refund response: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"payment_id": payment.ID,
		"capture_id": captureID,
		"refund_id":  refundResp.ID,
	}).Info("PayPal refund completed")

	return models.JSONB{
		"refund_id":     refundResp.ID,
		"refund_status": refundResp.Status,
	}, nil
}

// postJSON posts a JSON body to a PayPal endpoint and parses the order shape
func (s *PayPalService) postJSON(ctx context.Context, token, path string, payload interface{}) (*paypalOrderResponse, string, error) {
	jsonBody, err := json.Marshal(payload)
	if err != nil {
		return nil, "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.BaseURL+path, bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, "", err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, "", &models.ProviderUnavailableError{Provider: models.ProviderPayPal, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, "", &models.ProviderUnavailableError{
			Provider: models.ProviderPayPal,
			Err:      fmt.Errorf("%s returned status %d: %s", path, resp.StatusCode, string(body)),
		}
	}

	var order paypalOrderResponse
	if err := json.Unmarshal(body, &order); err != nil {
		return nil, "", fmt.Errorf("failed to parse response: %w", err)
	}

	return &order, string(body), nil
}
