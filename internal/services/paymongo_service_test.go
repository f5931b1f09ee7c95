package services

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gabaylaguna/booking-backend/internal/config"
	"github.com/gabaylaguna/booking-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPayMongoService(baseURL string) *PayMongoService {
	return NewPayMongoService(
		&config.PayMongoConfig{BaseURL: baseURL, SecretKey: "sk_test_123"},
		&config.PaymentsConfig{Currency: "PHP"},
		newTestLogger(),
	)
}

func TestPayMongoNormalizeWebhook(t *testing.T) {
	svc := newPayMongoService("http://unused")

	t.Run("payment.paid", func(t *testing.T) {
		body := []byte(`{"data":{"attributes":{"type":"payment.paid","data":{"id":"pay_abc","attributes":{"amount":50000,"payment_intent_id":"pi_123","status":"paid"}}}}}`)

		event, err := svc.NormalizeWebhook(body)
		require.NoError(t, err)
		require.NotNil(t, event)

		assert.Equal(t, models.ProviderPayMongo, event.Provider)
		assert.Equal(t, "pi_123", event.ProviderRef)
		assert.Equal(t, OutcomePaid, event.Outcome)
		require.NotNil(t, event.AmountObserved)
		assert.Equal(t, 500.0, *event.AmountObserved)
		assert.Equal(t, "pay_abc", event.Metadata["payment_id"])
		assert.Equal(t, "payment.paid", event.Metadata["event_type"])
		assert.Equal(t, models.PaymentSourceProviderWebhook, event.Source)
		assert.Equal(t, string(body), event.RawBody)
	})

	t.Run("payment.failed", func(t *testing.T) {
		body := []byte(`{"data":{"attributes":{"type":"payment.failed","data":{"id":"pay_abc","attributes":{"amount":50000,"payment_intent_id":"pi_123","status":"failed"}}}}}`)

		event, err := svc.NormalizeWebhook(body)
		require.NoError(t, err)
		require.NotNil(t, event)
		assert.Equal(t, OutcomeFailed, event.Outcome)
	})

	t.Run("Unhandled event type is skipped", func(t *testing.T) {
		body := []byte(`{"data":{"attributes":{"type":"source.chargeable","data":{"id":"src_1"}}}}`)

		event, err := svc.NormalizeWebhook(body)
		require.NoError(t, err)
		assert.Nil(t, event)
	})

	t.Run("Malformed payload", func(t *testing.T) {
		_, err := svc.NormalizeWebhook([]byte(`not json`))
		assert.Error(t, err)
	})

	t.Run("Missing payment intent id", func(t *testing.T) {
		body := []byte(`{"data":{"attributes":{"type":"payment.paid","data":{"id":"pay_abc","attributes":{"amount":50000}}}}}`)

		_, err := svc.NormalizeWebhook(body)
		assert.Error(t, err)
	})
}

func TestPayMongoInitiate(t *testing.T) {
	t.Run("Creates a payment intent", func(t *testing.T) {
		var gotReq map[string]interface{}
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v1/payment_intents", r.URL.Path)
			user, _, ok := r.BasicAuth()
			assert.True(t, ok)
			assert.Equal(t, "sk_test_123", user)
			require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"data":{"id":"pi_123","attributes":{"client_key":"pi_123_client","status":"awaiting_payment_method"}}}`))
		}))
		defer server.Close()

		svc := newPayMongoService(server.URL)
		booking := &models.Booking{ID: "b1"}
		payment := &models.Payment{ID: "p1", Amount: 405.45}

		result, err := svc.Initiate(booking, payment)
		require.NoError(t, err)

		assert.Equal(t, "pi_123", result.TransactionID)
		assert.Equal(t, "pi_123_client", result.Extra["client_key"])

		attrs := gotReq["data"].(map[string]interface{})["attributes"].(map[string]interface{})
		// centavos, not pesos
		assert.Equal(t, float64(40545), attrs["amount"])
		assert.Equal(t, "PHP", attrs["currency"])
	})

	t.Run("Gateway error surfaces as provider unavailable", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer server.Close()

		svc := newPayMongoService(server.URL)
		_, err := svc.Initiate(&models.Booking{ID: "b1"}, &models.Payment{ID: "p1", Amount: 100})

		var unavailable *models.ProviderUnavailableError
		require.ErrorAs(t, err, &unavailable)
		assert.Equal(t, models.ProviderPayMongo, unavailable.Provider)
	})
}

func TestPayMongoRefund(t *testing.T) {
	t.Run("Refunds the settled payment", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v1/payments/pay_abc/refunds", r.URL.Path)
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"data":{"id":"ref_123","attributes":{"status":"succeeded"}}}`))
		}))
		defer server.Close()

		svc := newPayMongoService(server.URL)
		payment := &models.Payment{ID: "p1", Amount: 500, Details: models.JSONB{"payment_id": "pay_abc"}}

		details, err := svc.Refund(payment)
		require.NoError(t, err)
		assert.Equal(t, "ref_123", details["refund_id"])
		assert.Equal(t, "succeeded", details["refund_status"])
	})

	t.Run("No provider payment id on record", func(t *testing.T) {
		svc := newPayMongoService("http://unused")
		_, err := svc.Refund(&models.Payment{ID: "p1", Amount: 500, Details: models.JSONB{}})
		assert.Error(t, err)
	})
}
