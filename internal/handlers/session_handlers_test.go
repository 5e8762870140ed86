package handlers

import (
	"net/http"
	"testing"
	"time"

	"github.com/cyphera/grantpay/internal/apperrors"
	"github.com/cyphera/grantpay/internal/client/openpayments"
	"github.com/cyphera/grantpay/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func newSessionRouter(svc *MockInstantPayService) http.Handler {
	h := NewSessionHandler(svc)
	r := newTestRouter()
	r.POST("/sessions", h.StartSession)
	r.GET("/sessions/:session_id/callback", h.SessionCallback)
	r.POST("/sessions/:session_id/approve", h.ApproveSession)
	return r
}

func TestStartSession(t *testing.T) {
	expires := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		body       string
		setupMock  func(m *MockInstantPayService)
		wantStatus int
		wantCode   string
	}{
		{
			name: "session started",
			body: `{"session_id":"order-42","sender_wallet":"https://wallet.example/alice","receiver_wallet":"https://wallet.example/shop","amount":"50.00"}`,
			setupMock: func(m *MockInstantPayService) {
				m.On("StartSession", mock.Anything, mock.MatchedBy(func(req services.StartSessionRequest) bool {
					return req.SessionID == "order-42" && req.Amount.String() == "50"
				})).Return(&services.StartSessionResult{
					SessionID:   "order-42",
					RedirectURL: "https://auth.example/interact/1",
					Quote: &openpayments.Quote{
						ID:          "https://rs.example/quotes/1",
						DebitAmount: openpayments.Amount{Value: "5000", AssetCode: "ZAR", AssetScale: 2},
					},
					ExpiresAt: expires,
				}, nil)
			},
			wantStatus: http.StatusCreated,
		},
		{
			name:       "missing wallets",
			body:       `{"amount":"10"}`,
			setupMock:  func(m *MockInstantPayService) {},
			wantStatus: http.StatusBadRequest,
			wantCode:   string(apperrors.KindValidation),
		},
		{
			name:       "non-positive amount",
			body:       `{"sender_wallet":"a","receiver_wallet":"b","amount":"-3"}`,
			setupMock:  func(m *MockInstantPayService) {},
			wantStatus: http.StatusBadRequest,
			wantCode:   string(apperrors.KindValidation),
		},
		{
			name: "wallet unreachable",
			body: `{"sender_wallet":"https://wallet.example/alice","receiver_wallet":"https://wallet.example/shop","amount":"1"}`,
			setupMock: func(m *MockInstantPayService) {
				m.On("StartSession", mock.Anything, mock.Anything).
					Return(nil, apperrors.Downstream("StartSession", "wallet address unreachable", assert.AnError))
			},
			wantStatus: http.StatusBadGateway,
			wantCode:   string(apperrors.KindDownstream),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockInstantPayService)
			tt.setupMock(svc)

			w := perform(t, newSessionRouter(svc), http.MethodPost, "/sessions", tt.body)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantCode != "" {
				resp := decode[ErrorResponse](t, w)
				assert.Equal(t, tt.wantCode, resp.Code)
				assert.Equal(t, "corr-123", resp.CorrelationID)
			} else {
				resp := decode[SessionResponse](t, w)
				assert.Equal(t, "order-42", resp.SessionID)
				assert.Equal(t, "https://auth.example/interact/1", resp.RedirectURL)
				assert.Equal(t, "5000", resp.Quote.DebitAmount.Value)
				assert.True(t, resp.ExpiresAt.Equal(expires))
			}
			svc.AssertExpectations(t)
		})
	}
}

func TestSessionCallback(t *testing.T) {
	svc := new(MockInstantPayService)
	svc.On("ApproveSession", mock.Anything, "order-42", "ref-1", "hash-1").
		Return(&services.ApproveSessionResult{
			SessionID:       "order-42",
			OutgoingPayment: &openpayments.OutgoingPayment{ID: "https://rs.example/outgoing-payments/9"},
		}, nil)

	w := perform(t, newSessionRouter(svc), http.MethodGet, "/sessions/order-42/callback?interact_ref=ref-1&hash=hash-1", "")

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decode[SessionApprovalResponse](t, w)
	assert.Equal(t, "https://rs.example/outgoing-payments/9", resp.OutgoingPaymentID)
	assert.Equal(t, "completed", resp.Status)
	svc.AssertExpectations(t)
}

func TestSessionCallback_MissingParams(t *testing.T) {
	svc := new(MockInstantPayService)

	w := perform(t, newSessionRouter(svc), http.MethodGet, "/sessions/order-42/callback?interact_ref=ref-1", "")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	svc.AssertNotCalled(t, "ApproveSession", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestApproveSession_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   apperrors.Kind
	}{
		{"hash mismatch", apperrors.Authentication("ApproveSession", "interaction hash mismatch"), http.StatusUnauthorized, apperrors.KindAuthentication},
		{"unknown session", apperrors.SessionNotFound("ApproveSession", "session not found"), http.StatusNotFound, apperrors.KindSessionNotFound},
		{"expired session", apperrors.SessionExpired("ApproveSession", "session expired"), http.StatusGone, apperrors.KindSessionExpired},
		{"quote expired", apperrors.GrantExpired("ApproveSession", "quote expired"), http.StatusUnprocessableEntity, apperrors.KindGrantExpired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockInstantPayService)
			svc.On("ApproveSession", mock.Anything, "order-42", "ref-1", "hash-1").Return(nil, tt.err)

			w := perform(t, newSessionRouter(svc), http.MethodPost, "/sessions/order-42/approve",
				`{"interact_ref":"ref-1","hash":"hash-1"}`)

			assert.Equal(t, tt.wantStatus, w.Code)
			resp := decode[ErrorResponse](t, w)
			assert.Equal(t, string(tt.wantCode), resp.Code)
			assert.Equal(t, "corr-123", resp.CorrelationID)
		})
	}
}

func TestApproveSession_HidesInternalCause(t *testing.T) {
	svc := new(MockInstantPayService)
	svc.On("ApproveSession", mock.Anything, "order-42", "ref-1", "hash-1").
		Return(nil, assert.AnError)

	w := perform(t, newSessionRouter(svc), http.MethodPost, "/sessions/order-42/approve",
		`{"interact_ref":"ref-1","hash":"hash-1"}`)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	resp := decode[ErrorResponse](t, w)
	assert.Equal(t, "Internal server error", resp.Error)
	assert.NotContains(t, w.Body.String(), assert.AnError.Error())
}
