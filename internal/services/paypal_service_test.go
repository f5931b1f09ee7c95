package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gabaylaguna/booking-backend/internal/config"
	"github.com/gabaylaguna/booking-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryTokenCache struct {
	mu     sync.Mutex
	values map[string]string
}

func newMemoryTokenCache() *memoryTokenCache {
	return &memoryTokenCache{values: map[string]string{}}
}

func (c *memoryTokenCache) Get(ctx context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.values[key], nil
}

func (c *memoryTokenCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] = value
	return nil
}

func newPayPalService(baseURL string, tokens TokenCache) *PayPalService {
	return NewPayPalService(
		&config.PayPalConfig{BaseURL: baseURL, ClientID: "client-id", Secret: "client-secret", TokenCacheTTL: 8 * time.Hour},
		&config.PaymentsConfig{Currency: "PHP", FrontendURL: "https://booking.example.com"},
		tokens,
		newTestLogger(),
	)
}

func TestPayPalInitiate(t *testing.T) {
	var tokenRequests int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/oauth2/token":
			tokenRequests++
			user, pass, ok := r.BasicAuth()
			assert.True(t, ok)
			assert.Equal(t, "client-id", user)
			assert.Equal(t, "client-secret", pass)
			w.Write([]byte(`{"access_token":"A21.token","expires_in":9000}`))
		case "/v2/checkout/orders":
			assert.Equal(t, "Bearer A21.token", r.Header.Get("Authorization"))
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"id":"ORDER-1","status":"CREATED","links":[{"href":"https://paypal.com/checkoutnow?token=ORDER-1","rel":"approve"}]}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	cache := newMemoryTokenCache()
	svc := newPayPalService(server.URL, cache)

	result, err := svc.Initiate(&models.Booking{ID: "b1"}, &models.Payment{ID: "p1", Amount: 405.45})
	require.NoError(t, err)

	assert.Equal(t, "ORDER-1", result.TransactionID)
	assert.Equal(t, "https://paypal.com/checkoutnow?token=ORDER-1", result.CheckoutURL)

	// Second call reuses the cached token
	_, err = svc.Initiate(&models.Booking{ID: "b2"}, &models.Payment{ID: "p2", Amount: 100})
	require.NoError(t, err)
	assert.Equal(t, 1, tokenRequests)
}

func TestPayPalCapture(t *testing.T) {
	t.Run("Completed capture settles as paid", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/v1/oauth2/token":
				w.Write([]byte(`{"access_token":"A21.token","expires_in":9000}`))
			case "/v2/checkout/orders/ORDER-1/capture":
				w.WriteHeader(http.StatusCreated)
				w.Write([]byte(`{"id":"ORDER-1","status":"COMPLETED","purchase_units":[{"payments":{"captures":[{"id":"CAP-1","status":"COMPLETED","amount":{"value":"405.45","currency_code":"PHP"}}]}}]}`))
			default:
				t.Errorf("unexpected path %s", r.URL.Path)
			}
		}))
		defer server.Close()

		svc := newPayPalService(server.URL, newMemoryTokenCache())

		event, err := svc.Capture(context.Background(), "ORDER-1")
		require.NoError(t, err)

		assert.Equal(t, models.ProviderPayPal, event.Provider)
		assert.Equal(t, "ORDER-1", event.ProviderRef)
		assert.Equal(t, OutcomePaid, event.Outcome)
		require.NotNil(t, event.AmountObserved)
		assert.Equal(t, 405.45, *event.AmountObserved)
		assert.Equal(t, "CAP-1", event.Metadata["capture_id"])
		assert.Equal(t, models.PaymentSourceProviderAPI, event.Source)
	})

	t.Run("Declined capture settles as failed", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/v1/oauth2/token":
				w.Write([]byte(`{"access_token":"A21.token","expires_in":9000}`))
			default:
				w.Write([]byte(`{"id":"ORDER-1","status":"DECLINED"}`))
			}
		}))
		defer server.Close()

		svc := newPayPalService(server.URL, newMemoryTokenCache())

		event, err := svc.Capture(context.Background(), "ORDER-1")
		require.NoError(t, err)
		assert.Equal(t, OutcomeFailed, event.Outcome)
		assert.Nil(t, event.AmountObserved)
	})

	t.Run("OAuth failure surfaces as provider unavailable", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer server.Close()

		svc := newPayPalService(server.URL, newMemoryTokenCache())

		_, err := svc.Capture(context.Background(), "ORDER-1")
		var unavailable *models.ProviderUnavailableError
		require.ErrorAs(t, err, &unavailable)
		assert.Equal(t, models.ProviderPayPal, unavailable.Provider)
	})
}

func TestPayPalRefund(t *testing.T) {
	t.Run("Refunds the recorded capture", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/v1/oauth2/token":
				w.Write([]byte(`{"access_token":"A21.token","expires_in":9000}`))
			case "/v2/payments/captures/CAP-1/refund":
				w.WriteHeader(http.StatusCreated)
				w.Write([]byte(`{"id":"REF-1","status":"COMPLETED"}`))
			default:
				t.Errorf("unexpected path %s", r.URL.Path)
			}
		}))
		defer server.Close()

		svc := newPayPalService(server.URL, newMemoryTokenCache())
		payment := &models.Payment{ID: "p1", Amount: 405.45, Details: models.JSONB{"capture_id": "CAP-1"}}

		details, err := svc.Refund(payment)
		require.NoError(t, err)
		assert.Equal(t, "REF-1", details["refund_id"])
		assert.Equal(t, "COMPLETED", details["refund_status"])
	})

	t.Run("No capture on record", func(t *testing.T) {
		svc := newPayPalService("http://unused", newMemoryTokenCache())

		_, err := svc.Refund(&models.Payment{ID: "p1", Details: models.JSONB{}})
		assert.Error(t, err)
	})
}
