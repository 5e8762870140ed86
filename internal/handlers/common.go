package handlers

import (
	"context"
	"net/http"

	"github.com/cyphera/grantpay/internal/accounts"
	"github.com/cyphera/grantpay/internal/apperrors"
	"github.com/cyphera/grantpay/internal/ledger"
	"github.com/cyphera/grantpay/internal/logger"
	"github.com/cyphera/grantpay/internal/middleware"
	"github.com/cyphera/grantpay/internal/qrbundle"
	"github.com/cyphera/grantpay/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// InstantPayService is the payment session API the handlers depend on.
type InstantPayService interface {
	StartSession(ctx context.Context, req services.StartSessionRequest) (*services.StartSessionResult, error)
	ApproveSession(ctx context.Context, sessionID, interactRef, hash string) (*services.ApproveSessionResult, error)
}

// VendorGrantService is the vendor authorization API the handlers depend on.
type VendorGrantService interface {
	RegisterCustomer(ctx context.Context, c accounts.Customer) (*accounts.Customer, error)
	RegisterVendor(ctx context.Context, v accounts.Vendor) (*accounts.Vendor, error)
	GetCustomer(ctx context.Context, id string) (*accounts.Customer, error)
	GetVendor(ctx context.Context, id string) (*accounts.Vendor, error)
	AuthorizeVendor(ctx context.Context, req services.AuthorizeVendorRequest) (*services.AuthorizeVendorResult, error)
	CompleteAuthorization(ctx context.Context, grantID, interactRef, hash string) (*ledger.CustomerGrant, error)
	ProcessPayment(ctx context.Context, req services.ProcessPaymentRequest) (*services.ProcessPaymentResult, error)
	SuspendGrant(ctx context.Context, grantID string) (*ledger.CustomerGrant, error)
	GetGrant(ctx context.Context, grantID string) (*ledger.CustomerGrant, error)
	ListCustomerGrants(ctx context.Context, customerID string) ([]*ledger.CustomerGrant, error)
	Sweep(ctx context.Context) (int, error)
}

// QRService is the bundle API the handlers depend on.
type QRService interface {
	IssueBundle(ctx context.Context, customerID string) (*services.IssuedBundle, error)
	VerifyBundle(raw []byte) (*qrbundle.Bundle, bool)
}

// ErrorResponse represents a standard error response
type ErrorResponse struct {
	Error         string `json:"error"`
	Code          string `json:"code"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

// sendError logs and sends a JSON error response
func sendError(c *gin.Context, statusCode int, code apperrors.Kind, message string, err error) {
	log := logger.FromContext(c.Request.Context())
	fields := []zap.Field{
		zap.Error(err),
		zap.String("path", c.Request.URL.Path),
		zap.String("method", c.Request.Method),
		zap.Int("status", statusCode),
	}
	if statusCode >= http.StatusInternalServerError {
		log.Error(message, fields...)
	} else {
		log.Warn(message, fields...)
	}
	c.JSON(statusCode, ErrorResponse{
		Error:         message,
		Code:          string(code),
		CorrelationID: middleware.GetCorrelationID(c),
	})
}

// handleServiceError maps a service error to its status code. Only the caller-safe message is
// sent; causes are logged.
func handleServiceError(c *gin.Context, err error) {
	kind := apperrors.KindOf(err)
	sendError(c, apperrors.HTTPStatus(kind), kind, apperrors.MessageOf(err), err)
}

// sendValidationError sends a 400 for a malformed request.
func sendValidationError(c *gin.Context, message string, err error) {
	sendError(c, http.StatusBadRequest, apperrors.KindValidation, message, err)
}

// sendSuccess is a helper function that sends a success response
func sendSuccess(c *gin.Context, statusCode int, data interface{}) {
	c.JSON(statusCode, data)
}

// sendList is a helper function that sends a list response
func sendList(c *gin.Context, items interface{}) {
	c.JSON(http.StatusOK, gin.H{
		"object": "list",
		"data":   items,
	})
}

// parseAmount parses a positive decimal amount.
func parseAmount(raw string) (decimal.Decimal, bool) {
	amount, err := decimal.NewFromString(raw)
	if err != nil || !amount.IsPositive() {
		return decimal.Zero, false
	}
	return amount, true
}
