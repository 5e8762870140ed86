package handlers

import (
	"net/http"

	"github.com/cyphera/grantpay/internal/accounts"
	"github.com/gin-gonic/gin"
)

// AccountHandler handles the customer and vendor directory
type AccountHandler struct {
	grants VendorGrantService
}

func NewAccountHandler(grants VendorGrantService) *AccountHandler {
	return &AccountHandler{grants: grants}
}

// CreateCustomerRequest represents the request body for registering a customer
type CreateCustomerRequest struct {
	ID            string `json:"id"`
	Name          string `json:"name" binding:"required"`
	Email         string `json:"email"`
	WalletAddress string `json:"wallet_address" binding:"required"`
}

// CreateVendorRequest represents the request body for registering a vendor
type CreateVendorRequest struct {
	ID            string `json:"id"`
	Name          string `json:"name" binding:"required"`
	WalletAddress string `json:"wallet_address" binding:"required"`
}

// CreateCustomer godoc
// @Summary Register a customer
// @Tags customers
// @Accept json
// @Produce json
// @Param customer body CreateCustomerRequest true "Customer to register"
// @Success 201 {object} CustomerResponse
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /customers [post]
func (h *AccountHandler) CreateCustomer(c *gin.Context) {
	var req CreateCustomerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendValidationError(c, "Invalid request body", err)
		return
	}

	customer, err := h.grants.RegisterCustomer(c.Request.Context(), accounts.Customer{
		ID:            req.ID,
		Name:          req.Name,
		Email:         req.Email,
		WalletAddress: req.WalletAddress,
	})
	if err != nil {
		handleServiceError(c, err)
		return
	}
	sendSuccess(c, http.StatusCreated, toCustomerResponse(customer))
}

// GetCustomer godoc
// @Summary Get a customer
// @Tags customers
// @Produce json
// @Param customer_id path string true "Customer ID"
// @Success 200 {object} CustomerResponse
// @Failure 404 {object} ErrorResponse
// @Router /customers/{customer_id} [get]
func (h *AccountHandler) GetCustomer(c *gin.Context) {
	customer, err := h.grants.GetCustomer(c.Request.Context(), c.Param("customer_id"))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	sendSuccess(c, http.StatusOK, toCustomerResponse(customer))
}

// CreateVendor godoc
// @Summary Register a vendor
// @Tags vendors
// @Accept json
// @Produce json
// @Param vendor body CreateVendorRequest true "Vendor to register"
// @Success 201 {object} VendorResponse
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /vendors [post]
func (h *AccountHandler) CreateVendor(c *gin.Context) {
	var req CreateVendorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendValidationError(c, "Invalid request body", err)
		return
	}

	vendor, err := h.grants.RegisterVendor(c.Request.Context(), accounts.Vendor{
		ID:            req.ID,
		Name:          req.Name,
		WalletAddress: req.WalletAddress,
	})
	if err != nil {
		handleServiceError(c, err)
		return
	}
	sendSuccess(c, http.StatusCreated, toVendorResponse(vendor))
}

// GetVendor godoc
// @Summary Get a vendor
// @Tags vendors
// @Produce json
// @Param vendor_id path string true "Vendor ID"
// @Success 200 {object} VendorResponse
// @Failure 404 {object} ErrorResponse
// @Router /vendors/{vendor_id} [get]
func (h *AccountHandler) GetVendor(c *gin.Context) {
	vendor, err := h.grants.GetVendor(c.Request.Context(), c.Param("vendor_id"))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	sendSuccess(c, http.StatusOK, toVendorResponse(vendor))
}
