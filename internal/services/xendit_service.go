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

// xenditDefaultBankCode is used when the payer did not pick a bank
const xenditDefaultBankCode = "BPI"

// xenditInvoiceDuration is the invoice validity window in seconds
const xenditInvoiceDuration = 86400

// XenditService holds the shared Xendit API client. It backs two payment
// rails: hosted invoices and closed virtual accounts.
type XenditService struct {
	cfg      *config.XenditConfig
	payments *config.PaymentsConfig
	logger   *logrus.Logger
	client   *http.Client
}

// NewXenditService creates a new Xendit payment service
func NewXenditService(cfg *config.XenditConfig, payments *config.PaymentsConfig, logger *logrus.Logger) *XenditService {
	return &XenditService{
		cfg:      cfg,
		payments: payments,
		logger:   logger,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// InvoiceAdapter returns the hosted invoice rail
func (s *XenditService) InvoiceAdapter() ProviderAdapter {
	return &xenditInvoiceAdapter{svc: s}
}

// VirtualAccountAdapter returns the closed virtual account rail
func (s *XenditService) VirtualAccountAdapter() ProviderAdapter {
	return &xenditVAAdapter{svc: s}
}

// VerifyCallbackToken checks the x-callback-token header value against the
// configured secret.
func (s *XenditService) VerifyCallbackToken(token string) bool {
	return s.cfg.CallbackToken != "" && token == s.cfg.CallbackToken
}

// NormalizeWebhook reduces a Xendit callback to a settlement event. The
// event name picks the rail: invoice.* events belong to the invoice rail,
// virtual_account.* events to the VA rail. Unhandled events return nil.
func (s *XenditService) NormalizeWebhook(body []byte) (*SettlementEvent, error) {
	var payload struct {
		Event string `json:"event"`
		Data  struct {
			ID         string  `json:"id"`
			Status     string  `json:"status"`
			Amount     float64 `json:"amount"`
			PaidAmount float64 `json:"paid_amount"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("invalid webhook payload: %w", err)
	}

	if payload.Data.ID == "" {
		return nil, fmt.Errorf("webhook missing data.id")
	}

	provider := models.ProviderXenditInvoice
	if strings.HasPrefix(payload.Event, "virtual_account.") {
		provider = models.ProviderXenditVA
	}

	var outcome SettlementOutcome
	switch payload.Event {
	case "invoice.paid", "virtual_account.paid":
		outcome = OutcomePaid
	case "invoice.expired":
		outcome = OutcomeExpired
	case "invoice.payment_failed", "virtual_account.payment_failed":
		outcome = OutcomeFailed
	default:
		s.logger.WithField("event", payload.Event).Debug("Ignoring Xendit event")
		return nil, nil
	}

	amount := payload.Data.PaidAmount
	if amount == 0 {
		amount = payload.Data.Amount
	}

	event := &SettlementEvent{
		Provider:    provider,
		ProviderRef: payload.Data.ID,
		Outcome:     outcome,
		Metadata: models.JSONB{
			"event":           payload.Event,
			"provider_status": payload.Data.Status,
		},
		Source:  models.PaymentSourceProviderWebhook,
		RawBody: string(body),
	}
	if amount > 0 {
		event.AmountObserved = &amount
	}

	return event, nil
}

// Refund requests a refund for a settled Xendit payment
func (s *XenditService) Refund(payment *models.Payment) (models.JSONB, error) {
	refundReq := map[string]interface{}{
		"invoice_id": payment.TransactionID,
		"amount":     payment.Amount,
		"currency":   s.payments.Currency,
		"reason":     "REQUESTED_BY_CUSTOMER",
	}

	respBody, err := s.post(context.Background(), "/refunds", refundReq)
	if err != nil {
		return nil, err
	}

	var refundResp struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(respBody, &refundResp); err != nil {
		return nil, fmt.Errorf("failed to parse refund response: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"payment_id": payment.ID,
		"refund_id":  refundResp.ID,
	}).Info("Xendit refund completed")

	return models.JSONB{
		"refund_id":     refundResp.ID,
		"refund_status": refundResp.Status,
	}, nil
}

// post sends an authenticated JSON request to a Xendit endpoint
func (s *XenditService) post(ctx context.Context, path string, payload interface{}) ([]byte, error) {
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
		return nil, &models.ProviderUnavailableError{Provider: models.ProviderXenditInvoice, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, &models.ProviderUnavailableError{
			Provider: models.ProviderXenditInvoice,
			Err:      fmt.Errorf("%s returned status %d: %s", path, resp.StatusCode, string(body)),
		}
	}

	return body, nil
}

// xenditInvoiceAdapter is the hosted invoice rail
type xenditInvoiceAdapter struct {
	svc *XenditService
}

// Provider identifies the rail this adapter serves
func (a *xenditInvoiceAdapter) Provider() models.PaymentProvider {
	return models.ProviderXenditInvoice
}

// Initiate creates a hosted invoice the payer completes in the browser
func (a *xenditInvoiceAdapter) Initiate(booking *models.Booking, payment *models.Payment) (*InitiationResult, error) {
	invoiceReq := map[string]interface{}{
		"external_id":          payment.ID,
		"amount":               payment.Amount,
		"currency":             a.svc.payments.Currency,
		"description":          fmt.Sprintf("Tour booking %s", booking.ID),
		"invoice_duration":     xenditInvoiceDuration,
		"success_redirect_url": a.svc.payments.FrontendURL + "/payment/success",
		"failure_redirect_url": a.svc.payments.FrontendURL + "/payment/cancel",
	}

	respBody, err := a.svc.post(context.Background(), "/v2/invoices", invoiceReq)
	if err != nil {
		return nil, err
	}

	var invoiceResp struct {
		ID         string `json:"id"`
		InvoiceURL string `json:"invoice_url"`
		Status     string `json:"status"`
		ExpiryDate string `json:"expiry_date"`
	}
	if err := json.Unmarshal(respBody, &invoiceResp); err != nil {
		return nil, fmt.Errorf("failed to parse invoice response: %w", err)
	}
	if invoiceResp.ID == "" || invoiceResp.InvoiceURL == "" {
		return nil, fmt.Errorf("invoice response missing id or url: %s", string(respBody))
	}

	a.svc.logger.WithFields(logrus.Fields{
		"booking_id": booking.ID,
		"invoice_id": invoiceResp.ID,
		"amount":     payment.Amount,
	}).Info("Xendit invoice created")

	return &InitiationResult{
		TransactionID: invoiceResp.ID,
		CheckoutURL:   invoiceResp.InvoiceURL,
		Extra: models.JSONB{
			"invoice_status": invoiceResp.Status,
			"expiry_date":    invoiceResp.ExpiryDate,
		},
	}, nil
}

// Refund delegates to the shared refund endpoint
func (a *xenditInvoiceAdapter) Refund(payment *models.Payment) (models.JSONB, error) {
	return a.svc.Refund(payment)
}

// xenditVAAdapter is the closed virtual account rail
type xenditVAAdapter struct {
	svc *XenditService
}

// Provider identifies the rail this adapter serves
func (a *xenditVAAdapter) Provider() models.PaymentProvider {
	return models.ProviderXenditVA
}

// Initiate opens a single-use closed virtual account for the exact amount.
// There is no redirect; the payer transfers to the returned account number.
func (a *xenditVAAdapter) Initiate(booking *models.Booking, payment *models.Payment) (*InitiationResult, error) {
	bankCode, _ := payment.Details["bank_code"].(string)
	if bankCode == "" {
		bankCode = xenditDefaultBankCode
	}

	vaReq := map[string]interface{}{
		"external_id":     payment.ID,
		"bank_code":       bankCode,
		"name":            fmt.Sprintf("Tour booking %s", booking.ID),
		"expected_amount": payment.Amount,
		"is_closed":       true,
		"is_single_use":   true,
	}

	respBody, err := a.svc.post(context.Background(), "/virtual_accounts", vaReq)
	if err != nil {
		return nil, err
	}

	var vaResp struct {
		ID            string `json:"id"`
		AccountNumber string `json:"account_number"`
		BankCode      string `json:"bank_code"`
		Status        string `json:"status"`
	}
	if err := json.Unmarshal(respBody, &vaResp); err != nil {
		return nil, fmt.Errorf("failed to parse virtual account response: %w", err)
	}
	if vaResp.ID == "" || vaResp.AccountNumber == "" {
		return nil, fmt.Errorf("virtual account response missing id or account number: %s", string(respBody))
	}

	a.svc.logger.WithFields(logrus.Fields{
		"booking_id":     booking.ID,
		"va_id":          vaResp.ID,
		"bank_code":      vaResp.BankCode,
		"account_number": vaResp.AccountNumber,
	}).Info("Xendit virtual account created")

	return &InitiationResult{
		TransactionID: vaResp.ID,
		Extra: models.JSONB{
			"account_number": vaResp.AccountNumber,
			"bank_code":      vaResp.BankCode,
			"va_status":      vaResp.Status,
		},
	}, nil
}

// Refund delegates to the shared refund endpoint
func (a *xenditVAAdapter) Refund(payment *models.Payment) (models.JSONB, error) {
	return a.svc.Refund(payment)
}
