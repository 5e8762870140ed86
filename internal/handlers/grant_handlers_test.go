package handlers

import (
	"net/http"
	"testing"
	"time"

	"github.com/cyphera/grantpay/internal/apperrors"
	"github.com/cyphera/grantpay/internal/grants"
	"github.com/cyphera/grantpay/internal/ledger"
	"github.com/cyphera/grantpay/internal/services"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func newGrantRouter(svc *MockVendorGrantService) http.Handler {
	h := NewGrantHandler(svc)
	r := newTestRouter()
	r.POST("/grants", h.AuthorizeVendor)
	r.GET("/grants/:grant_id", h.GetGrant)
	r.GET("/grants/:grant_id/callback", h.GrantCallback)
	r.POST("/grants/:grant_id/payments", h.ProcessPayment)
	r.POST("/grants/:grant_id/suspend", h.SuspendGrant)
	r.GET("/customers/:customer_id/grants", h.ListCustomerGrants)
	r.POST("/admin/sweep", h.Sweep)
	return r
}

func sampleGrant() *ledger.CustomerGrant {
	now := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)
	return &ledger.CustomerGrant{
		ID:            "grant-1",
		CustomerID:    "cust-1",
		VendorID:      "vendor-1",
		VendorName:    "Corner Shop",
		DailyLimit:    decimal.RequireFromString("100"),
		SpentToday:    decimal.RequireFromString("30"),
		LastResetDate: "2026-10-16",
		ExpiresAt:     now.AddDate(0, 0, 30),
		Status:        ledger.StatusActive,
		Grant: &grants.Grant{
			ID:          "grant-1",
			Status:      grants.StatusActive,
			AccessToken: "secret-token",
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestAuthorizeVendor(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		setupMock  func(m *MockVendorGrantService)
		wantStatus int
	}{
		{
			name: "authorization started",
			body: `{"customer_id":"cust-1","vendor_id":"vendor-1","daily_limit":"100","expiration_days":30}`,
			setupMock: func(m *MockVendorGrantService) {
				m.On("AuthorizeVendor", mock.Anything, mock.MatchedBy(func(req services.AuthorizeVendorRequest) bool {
					return req.CustomerID == "cust-1" && req.DailyLimit.Equal(decimal.NewFromInt(100)) && req.ExpirationDays == 30
				})).Return(&services.AuthorizeVendorResult{
					Grant:       sampleGrant(),
					RedirectURL: "https://auth.alice.example/interact/1",
				}, nil)
			},
			wantStatus: http.StatusCreated,
		},
		{
			name:       "zero expiration",
			body:       `{"customer_id":"cust-1","vendor_id":"vendor-1","daily_limit":"100","expiration_days":0}`,
			setupMock:  func(m *MockVendorGrantService) {},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "malformed limit",
			body:       `{"customer_id":"cust-1","vendor_id":"vendor-1","daily_limit":"lots","expiration_days":30}`,
			setupMock:  func(m *MockVendorGrantService) {},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "already pending",
			body: `{"customer_id":"cust-1","vendor_id":"vendor-1","daily_limit":"100","expiration_days":30}`,
			setupMock: func(m *MockVendorGrantService) {
				m.On("AuthorizeVendor", mock.Anything, mock.Anything).
					Return(nil, apperrors.Conflict("AuthorizeVendor", "authorization already exists"))
			},
			wantStatus: http.StatusConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockVendorGrantService)
			tt.setupMock(svc)

			w := perform(t, newGrantRouter(svc), http.MethodPost, "/grants", tt.body)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus == http.StatusCreated {
				resp := decode[AuthorizeVendorResponse](t, w)
				assert.Equal(t, "https://auth.alice.example/interact/1", resp.RedirectURL)
				assert.Equal(t, "100", resp.Grant.DailyLimit)
				assert.Equal(t, "70", resp.Grant.Remaining)
			}
			svc.AssertExpectations(t)
		})
	}
}

func TestGetGrant_OmitsTokens(t *testing.T) {
	svc := new(MockVendorGrantService)
	svc.On("GetGrant", mock.Anything, "grant-1").Return(sampleGrant(), nil)

	w := perform(t, newGrantRouter(svc), http.MethodGet, "/grants/grant-1", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "secret-token")
	resp := decode[GrantResponse](t, w)
	assert.Equal(t, "active", resp.Status)
	assert.Equal(t, "ACTIVE", resp.GrantStatus)
	assert.True(t, resp.InteractionComplete)
}

func TestGrantCallback(t *testing.T) {
	svc := new(MockVendorGrantService)
	svc.On("CompleteAuthorization", mock.Anything, "grant-1", "ref-1", "hash-1").Return(sampleGrant(), nil)

	w := perform(t, newGrantRouter(svc), http.MethodGet, "/grants/grant-1/callback?interact_ref=ref-1&hash=hash-1", "")

	assert.Equal(t, http.StatusOK, w.Code)
	svc.AssertExpectations(t)

	w = perform(t, newGrantRouter(svc), http.MethodGet, "/grants/grant-1/callback", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestProcessPayment(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		serviceErr error
		wantStatus int
		wantCode   apperrors.Kind
	}{
		{name: "paid", body: `{"amount":"30","description":"coffee"}`, wantStatus: http.StatusCreated},
		{name: "bad amount", body: `{"amount":"0"}`, wantStatus: http.StatusBadRequest, wantCode: apperrors.KindValidation},
		{
			name:       "over limit",
			body:       `{"amount":"71"}`,
			serviceErr: apperrors.LimitExceeded("RecordSpend", "daily limit exceeded", nil),
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   apperrors.KindLimitExceeded,
		},
		{
			name:       "suspended",
			body:       `{"amount":"5"}`,
			serviceErr: apperrors.GrantInactive("ProcessPayment", "grant is suspended"),
			wantStatus: http.StatusBadRequest,
			wantCode:   apperrors.KindGrantInactive,
		},
		{
			name:       "expired",
			body:       `{"amount":"5"}`,
			serviceErr: apperrors.GrantExpired("ProcessPayment", "grant has expired"),
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   apperrors.KindGrantExpired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockVendorGrantService)
			if tt.wantStatus == http.StatusCreated {
				svc.On("ProcessPayment", mock.Anything, mock.MatchedBy(func(req services.ProcessPaymentRequest) bool {
					return req.GrantID == "grant-1" && req.Amount.Equal(decimal.NewFromInt(30)) && req.Description == "coffee"
				})).Return(&services.ProcessPaymentResult{
					GrantID:           "grant-1",
					OutgoingPaymentID: "https://rs.alice.example/outgoing-payments/1",
					Amount:            decimal.NewFromInt(30),
					SpentToday:        decimal.NewFromInt(30),
					Remaining:         decimal.NewFromInt(70),
				}, nil)
			} else if tt.serviceErr != nil {
				svc.On("ProcessPayment", mock.Anything, mock.Anything).Return(nil, tt.serviceErr)
			}

			w := perform(t, newGrantRouter(svc), http.MethodPost, "/grants/grant-1/payments", tt.body)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantCode != "" {
				resp := decode[ErrorResponse](t, w)
				assert.Equal(t, string(tt.wantCode), resp.Code)
				assert.Equal(t, "corr-123", resp.CorrelationID)
			} else {
				resp := decode[PaymentResponse](t, w)
				assert.Equal(t, "70", resp.Remaining)
				assert.Equal(t, "https://rs.alice.example/outgoing-payments/1", resp.OutgoingPaymentID)
			}
			svc.AssertExpectations(t)
		})
	}
}

func TestSuspendGrant(t *testing.T) {
	suspended := sampleGrant()
	suspended.Status = ledger.StatusSuspended
	svc := new(MockVendorGrantService)
	svc.On("SuspendGrant", mock.Anything, "grant-1").Return(suspended, nil)
	svc.On("SuspendGrant", mock.Anything, "missing").Return(nil, apperrors.NotFound("SuspendGrant", "grant not found"))

	w := perform(t, newGrantRouter(svc), http.MethodPost, "/grants/grant-1/suspend", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "suspended", decode[GrantResponse](t, w).Status)

	w = perform(t, newGrantRouter(svc), http.MethodPost, "/grants/missing/suspend", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListCustomerGrants(t *testing.T) {
	svc := new(MockVendorGrantService)
	svc.On("ListCustomerGrants", mock.Anything, "cust-1").Return([]*ledger.CustomerGrant{sampleGrant()}, nil)

	w := perform(t, newGrantRouter(svc), http.MethodGet, "/customers/cust-1/grants", "")

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decode[struct {
		Object string          `json:"object"`
		Data   []GrantResponse `json:"data"`
	}](t, w)
	assert.Equal(t, "list", resp.Object)
	if assert.Len(t, resp.Data, 1) {
		assert.Equal(t, "grant-1", resp.Data[0].ID)
	}
}

func TestSweep(t *testing.T) {
	svc := new(MockVendorGrantService)
	svc.On("Sweep", mock.Anything).Return(3, nil)

	w := perform(t, newGrantRouter(svc), http.MethodPost, "/admin/sweep", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 3, decode[SweepResponse](t, w).Expired)
}
