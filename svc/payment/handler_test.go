package payment_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insightbot/subgate/pkg/ratelimit"
	"github.com/insightbot/subgate/svc/payment"
)

func newWebhookServer(t *testing.T, f *gatewayFixture) *httptest.Server {
	t.Helper()
	handler := payment.NewHandler(f.gateway, quietLogger())
	srv := httptest.NewServer(handler.Router())
	t.Cleanup(srv.Close)
	return srv
}

func postWebhook(t *testing.T, url string, body []byte, signature string) *http.Response {
	t.Helper()

	req, err := http.NewRequest(http.MethodPost, url+"/webhook/payment", bytes.NewReader(body))
	require.NoError(t, err)
	if signature != "" {
		req.Header.Set(payment.SignatureHeader, signature)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestHandler_Webhook(t *testing.T) {
	t.Parallel()

	const secret = "topsecret"
	f := newGatewayFixture(t, payment.GatewayConfig{IPNSecret: secret})
	srv := newWebhookServer(t, f)

	_, err := f.gateway.CreateInvoice(context.Background(), uuid.New(), -100111, 1, "btc")
	require.NoError(t, err)

	body := []byte(`{"invoice_id":"inv-123","payment_status":"finished","confirmations":6}`)

	t.Run("missing signature returns 400", func(t *testing.T) {
		resp := postWebhook(t, srv.URL, body, "")
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("bad signature returns 401", func(t *testing.T) {
		resp := postWebhook(t, srv.URL, body, "deadbeef")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("invalid JSON returns 400", func(t *testing.T) {
		junk := []byte(`{not json`)
		resp := postWebhook(t, srv.URL, junk, sign(secret, junk))
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("unknown invoice returns 400", func(t *testing.T) {
		unknown := []byte(`{"invoice_id":"nope","payment_status":"finished"}`)
		resp := postWebhook(t, srv.URL, unknown, sign(secret, unknown))
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("valid delivery returns 200 and activates", func(t *testing.T) {
		resp := postWebhook(t, srv.URL, body, sign(secret, body))
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Len(t, f.activator.calls, 1)
	})
}

func TestHandler_Health(t *testing.T) {
	t.Parallel()

	f := newGatewayFixture(t, payment.GatewayConfig{})
	handler := payment.NewHandler(f.gateway, quietLogger())

	srv := httptest.NewServer(handler.Router())
	defer srv.Close()

	client := http.Client{Timeout: time.Second}
	resp, err := client.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHandler_Throttle(t *testing.T) {
	t.Parallel()

	const secret = "topsecret"
	f := newGatewayFixture(t, payment.GatewayConfig{IPNSecret: secret})

	store := ratelimit.NewMemoryStore()
	t.Cleanup(store.Close)
	throttle, err := ratelimit.NewKeyed(store, ratelimit.Config{
		Capacity:       2,
		RefillRate:     1,
		RefillInterval: time.Minute,
	})
	require.NoError(t, err)

	handler := payment.NewHandler(f.gateway, quietLogger(), payment.WithThrottle(throttle))
	srv := httptest.NewServer(handler.Router())
	t.Cleanup(srv.Close)

	body := []byte(`{"invoice_id":"nope","payment_status":"finished"}`)
	sig := sign(secret, body)

	for n := 0; n < 2; n++ {
		resp := postWebhook(t, srv.URL, body, sig)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	}

	resp := postWebhook(t, srv.URL, body, sig)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))

	// Health probes bypass the webhook throttle.
	healthResp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer healthResp.Body.Close()
	assert.Equal(t, http.StatusOK, healthResp.StatusCode)
}
