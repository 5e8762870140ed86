package handlers

import (
	"net/http"

	"github.com/cyphera/grantpay/internal/services"
	"github.com/gin-gonic/gin"
)

// GrantHandler handles standing vendor authorizations and the payments made under them
type GrantHandler struct {
	grants VendorGrantService
}

func NewGrantHandler(grants VendorGrantService) *GrantHandler {
	return &GrantHandler{grants: grants}
}

// AuthorizeVendorRequest represents the request body for authorizing a vendor
type AuthorizeVendorRequest struct {
	CustomerID     string `json:"customer_id" binding:"required"`
	VendorID       string `json:"vendor_id" binding:"required"`
	DailyLimit     string `json:"daily_limit" binding:"required"`
	ExpirationDays int    `json:"expiration_days" binding:"required,min=1,max=3650"`
}

// ProcessPaymentRequest represents the request body for charging a customer
type ProcessPaymentRequest struct {
	Amount      string `json:"amount" binding:"required"`
	Description string `json:"description"`
}

// AuthorizeVendor godoc
// @Summary Authorize a vendor
// @Description Records a daily-limited authorization and starts the customer's interactive approval
// @Tags grants
// @Accept json
// @Produce json
// @Param grant body AuthorizeVendorRequest true "Authorization to create"
// @Success 201 {object} AuthorizeVendorResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 502 {object} ErrorResponse
// @Router /grants [post]
func (h *GrantHandler) AuthorizeVendor(c *gin.Context) {
	var req AuthorizeVendorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendValidationError(c, "Invalid request body", err)
		return
	}
	limit, ok := parseAmount(req.DailyLimit)
	if !ok {
		sendValidationError(c, "daily_limit must be a positive decimal", nil)
		return
	}

	result, err := h.grants.AuthorizeVendor(c.Request.Context(), services.AuthorizeVendorRequest{
		CustomerID:     req.CustomerID,
		VendorID:       req.VendorID,
		DailyLimit:     limit,
		ExpirationDays: req.ExpirationDays,
	})
	if err != nil {
		handleServiceError(c, err)
		return
	}

	sendSuccess(c, http.StatusCreated, AuthorizeVendorResponse{
		Grant:       toGrantResponse(result.Grant),
		RedirectURL: result.RedirectURL,
	})
}

// GetGrant godoc
// @Summary Get a vendor authorization
// @Tags grants
// @Produce json
// @Param grant_id path string true "Grant ID"
// @Success 200 {object} GrantResponse
// @Failure 404 {object} ErrorResponse
// @Router /grants/{grant_id} [get]
func (h *GrantHandler) GetGrant(c *gin.Context) {
	cg, err := h.grants.GetGrant(c.Request.Context(), c.Param("grant_id"))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	sendSuccess(c, http.StatusOK, toGrantResponse(cg))
}

// GrantCallback godoc
// @Summary Vendor authorization interaction callback
// @Description Finish URI the customer's authorization server redirects to after approval
// @Tags grants
// @Produce json
// @Param grant_id path string true "Grant ID"
// @Param interact_ref query string true "Interaction reference"
// @Param hash query string true "Interaction hash"
// @Success 200 {object} GrantResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 502 {object} ErrorResponse
// @Router /grants/{grant_id}/callback [get]
func (h *GrantHandler) GrantCallback(c *gin.Context) {
	interactRef, hash := c.Query("interact_ref"), c.Query("hash")
	if interactRef == "" || hash == "" {
		sendValidationError(c, "interact_ref and hash are required", nil)
		return
	}

	cg, err := h.grants.CompleteAuthorization(c.Request.Context(), c.Param("grant_id"), interactRef, hash)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	sendSuccess(c, http.StatusOK, toGrantResponse(cg))
}

// ProcessPayment godoc
// @Summary Charge a customer under an authorization
// @Tags grants
// @Accept json
// @Produce json
// @Param grant_id path string true "Grant ID"
// @Param payment body ProcessPaymentRequest true "Payment to make"
// @Success 201 {object} PaymentResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Failure 502 {object} ErrorResponse
// @Security ApiKeyAuth
// @Router /grants/{grant_id}/payments [post]
func (h *GrantHandler) ProcessPayment(c *gin.Context) {
	var req ProcessPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendValidationError(c, "Invalid request body", err)
		return
	}
	amount, ok := parseAmount(req.Amount)
	if !ok {
		sendValidationError(c, "amount must be a positive decimal", nil)
		return
	}

	result, err := h.grants.ProcessPayment(c.Request.Context(), services.ProcessPaymentRequest{
		GrantID:     c.Param("grant_id"),
		Amount:      amount,
		Description: req.Description,
	})
	if err != nil {
		handleServiceError(c, err)
		return
	}

	sendSuccess(c, http.StatusCreated, PaymentResponse{
		Object:            "payment",
		GrantID:           result.GrantID,
		OutgoingPaymentID: result.OutgoingPaymentID,
		Amount:            result.Amount.String(),
		SpentToday:        result.SpentToday.String(),
		Remaining:         result.Remaining.String(),
	})
}

// SuspendGrant godoc
// @Summary Suspend a vendor authorization
// @Tags grants
// @Produce json
// @Param grant_id path string true "Grant ID"
// @Success 200 {object} GrantResponse
// @Failure 404 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /grants/{grant_id}/suspend [post]
func (h *GrantHandler) SuspendGrant(c *gin.Context) {
	cg, err := h.grants.SuspendGrant(c.Request.Context(), c.Param("grant_id"))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	sendSuccess(c, http.StatusOK, toGrantResponse(cg))
}

// ListCustomerGrants godoc
// @Summary List a customer's vendor authorizations
// @Tags grants
// @Produce json
// @Param customer_id path string true "Customer ID"
// @Success 200 {array} GrantResponse
// @Failure 404 {object} ErrorResponse
// @Router /customers/{customer_id}/grants [get]
func (h *GrantHandler) ListCustomerGrants(c *gin.Context) {
	list, err := h.grants.ListCustomerGrants(c.Request.Context(), c.Param("customer_id"))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	sendList(c, toGrantResponses(list))
}

// Sweep godoc
// @Summary Expire lapsed authorizations
// @Tags admin
// @Produce json
// @Success 200 {object} SweepResponse
// @Security ApiKeyAuth
// @Router /admin/sweep [post]
func (h *GrantHandler) Sweep(c *gin.Context) {
	n, err := h.grants.Sweep(c.Request.Context())
	if err != nil {
		handleServiceError(c, err)
		return
	}
	sendSuccess(c, http.StatusOK, SweepResponse{Expired: n})
}
