package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cyphera/grantpay/internal/accounts"
	"github.com/cyphera/grantpay/internal/ledger"
	"github.com/cyphera/grantpay/internal/middleware"
	"github.com/cyphera/grantpay/internal/qrbundle"
	"github.com/cyphera/grantpay/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockInstantPayService is a mock implementation of InstantPayService
type MockInstantPayService struct {
	mock.Mock
}

func (m *MockInstantPayService) StartSession(ctx context.Context, req services.StartSessionRequest) (*services.StartSessionResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.StartSessionResult), args.Error(1)
}

func (m *MockInstantPayService) ApproveSession(ctx context.Context, sessionID, interactRef, hash string) (*services.ApproveSessionResult, error) {
	args := m.Called(ctx, sessionID, interactRef, hash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.ApproveSessionResult), args.Error(1)
}

// MockVendorGrantService is a mock implementation of VendorGrantService
type MockVendorGrantService struct {
	mock.Mock
}

func (m *MockVendorGrantService) RegisterCustomer(ctx context.Context, c accounts.Customer) (*accounts.Customer, error) {
	args := m.Called(ctx, c)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*accounts.Customer), args.Error(1)
}

func (m *MockVendorGrantService) RegisterVendor(ctx context.Context, v accounts.Vendor) (*accounts.Vendor, error) {
	args := m.Called(ctx, v)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*accounts.Vendor), args.Error(1)
}

func (m *MockVendorGrantService) GetCustomer(ctx context.Context, id string) (*accounts.Customer, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*accounts.Customer), args.Error(1)
}

func (m *MockVendorGrantService) GetVendor(ctx context.Context, id string) (*accounts.Vendor, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*accounts.Vendor), args.Error(1)
}

func (m *MockVendorGrantService) AuthorizeVendor(ctx context.Context, req services.AuthorizeVendorRequest) (*services.AuthorizeVendorResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.AuthorizeVendorResult), args.Error(1)
}

func (m *MockVendorGrantService) CompleteAuthorization(ctx context.Context, grantID, interactRef, hash string) (*ledger.CustomerGrant, error) {
	args := m.Called(ctx, grantID, interactRef, hash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.CustomerGrant), args.Error(1)
}

func (m *MockVendorGrantService) ProcessPayment(ctx context.Context, req services.ProcessPaymentRequest) (*services.ProcessPaymentResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.ProcessPaymentResult), args.Error(1)
}

func (m *MockVendorGrantService) SuspendGrant(ctx context.Context, grantID string) (*ledger.CustomerGrant, error) {
	args := m.Called(ctx, grantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.CustomerGrant), args.Error(1)
}

func (m *MockVendorGrantService) GetGrant(ctx context.Context, grantID string) (*ledger.CustomerGrant, error) {
	args := m.Called(ctx, grantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.CustomerGrant), args.Error(1)
}

func (m *MockVendorGrantService) ListCustomerGrants(ctx context.Context, customerID string) ([]*ledger.CustomerGrant, error) {
	args := m.Called(ctx, customerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*ledger.CustomerGrant), args.Error(1)
}

func (m *MockVendorGrantService) Sweep(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

// MockQRService is a mock implementation of QRService
type MockQRService struct {
	mock.Mock
}

func (m *MockQRService) IssueBundle(ctx context.Context, customerID string) (*services.IssuedBundle, error) {
	args := m.Called(ctx, customerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.IssuedBundle), args.Error(1)
}

func (m *MockQRService) VerifyBundle(raw []byte) (*qrbundle.Bundle, bool) {
	args := m.Called(raw)
	if args.Get(0) == nil {
		return nil, args.Bool(1)
	}
	return args.Get(0).(*qrbundle.Bundle), args.Bool(1)
}

func init() {
	gin.SetMode(gin.TestMode)
}

// newTestRouter returns an engine with the correlation middleware the server installs.
func newTestRouter() *gin.Engine {
	r := gin.New()
	r.Use(middleware.CorrelationIDMiddleware())
	return r
}

func perform(t *testing.T, r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(middleware.CorrelationIDHeader, "corr-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}
