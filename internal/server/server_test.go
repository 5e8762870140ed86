package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cyphera/grantpay/internal/config"
	"github.com/cyphera/grantpay/internal/events"
	"github.com/cyphera/grantpay/internal/middleware"
	"github.com/cyphera/grantpay/internal/mocks"
	"github.com/cyphera/grantpay/internal/notify"
	"github.com/cyphera/grantpay/internal/store"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testConfig() *config.Config {
	return &config.Config{
		Stage:               config.StageLocal,
		PublicBaseURL:       "https://pay.example",
		ClientWalletAddress: "https://wallet.example/grantpay",
		StoreDriver:         config.StoreMemory,
		SessionTTL:          15 * time.Minute,
		IncomingPaymentTTL:  10 * time.Minute,
		DownstreamTimeout:   5 * time.Second,
		WalletCacheTTL:      time.Minute,
		LedgerTimeZone:      time.UTC,
		CORSAllowedOrigins:  []string{"https://shop.example"},
		APIKey:              "terminal-key",
		RateLimitRPS:        100,
		RateLimitBurst:      100,
		QRSigningSecret:     "secret",
	}
}

func newTestServer(t *testing.T) http.Handler {
	t.Helper()
	gin.SetMode(gin.TestMode)

	srv, err := New(context.Background(), testConfig(), Dependencies{
		Store:     store.NewMemoryStore(),
		Wallets:   mocks.NewMockWalletClientForTest(t),
		Auth:      mocks.NewMockAuthClientForTest(t),
		Resources: mocks.NewMockResourceClientForTest(t),
		Publisher: events.NoopPublisher{},
		Notifier:  notify.NoopNotifier{},
	}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Close() })

	router := gin.New()
	srv.InitializeRoutes(router)
	return router
}

func do(r http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealthAndCorrelation(t *testing.T) {
	r := newTestServer(t)

	w := do(r, http.MethodGet, "/health", "", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(middleware.CorrelationIDHeader))
	assert.JSONEq(t, `{"status":"ok","stage":"local"}`, w.Body.String())
}

func TestCustomerRoundTrip(t *testing.T) {
	r := newTestServer(t)

	w := do(r, http.MethodPost, "/api/v1/customers",
		`{"id":"cust-1","name":"Alice","email":"alice@example.com","wallet_address":"https://wallet.example/alice"}`, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = do(r, http.MethodGet, "/api/v1/customers/cust-1", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "Alice", body["name"])

	w = do(r, http.MethodGet, "/api/v1/customers/cust-1/grants", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"object":"list","data":[]}`, w.Body.String())

	w = do(r, http.MethodGet, "/api/v1/customers/nobody", "", map[string]string{middleware.CorrelationIDHeader: "corr-9"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), `"correlation_id":"corr-9"`)
}

func TestTerminalRoutesRequireAPIKey(t *testing.T) {
	r := newTestServer(t)

	routes := []struct {
		path string
		body string
	}{
		{"/api/v1/admin/sweep", ""},
		{"/api/v1/grants/grant-1/payments", `{"amount":"1"}`},
		{"/api/v1/grants/grant-1/suspend", ""},
		{"/api/v1/qr/verify", `{}`},
	}
	for _, route := range routes {
		t.Run(route.path, func(t *testing.T) {
			w := do(r, http.MethodPost, route.path, route.body, nil)
			assert.Equal(t, http.StatusUnauthorized, w.Code)

			w = do(r, http.MethodPost, route.path, route.body, map[string]string{middleware.APIKeyHeader: "wrong"})
			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}

	w := do(r, http.MethodPost, "/api/v1/admin/sweep", "", map[string]string{middleware.APIKeyHeader: "terminal-key"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"expired":0}`, w.Body.String())
}

func TestCORSPreflight(t *testing.T) {
	r := newTestServer(t)

	w := do(r, http.MethodOptions, "/api/v1/sessions", "", map[string]string{
		"Origin":                        "https://shop.example",
		"Access-Control-Request-Method": http.MethodPost,
	})

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://shop.example", w.Header().Get("Access-Control-Allow-Origin"))
}
