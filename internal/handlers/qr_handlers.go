package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// QRHandler issues and verifies signed grant bundles
type QRHandler struct {
	bundles QRService
}

func NewQRHandler(bundles QRService) *QRHandler {
	return &QRHandler{bundles: bundles}
}

// IssueBundle godoc
// @Summary Issue a customer's QR bundle
// @Description Signs the customer's live, approved authorizations and renders them as a PNG QR code
// @Tags qr
// @Produce json
// @Param customer_id path string true "Customer ID"
// @Success 200 {object} QRBundleResponse
// @Failure 404 {object} ErrorResponse
// @Router /customers/{customer_id}/qr [post]
func (h *QRHandler) IssueBundle(c *gin.Context) {
	issued, err := h.bundles.IssueBundle(c.Request.Context(), c.Param("customer_id"))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	sendSuccess(c, http.StatusOK, QRBundleResponse{Bundle: issued.Bundle, QRCode: issued.QRCode})
}

// VerifyBundle godoc
// @Summary Verify a scanned QR bundle
// @Description Checks the bundle's signature. Unparsable or tampered bundles are reported as invalid.
// @Tags qr
// @Accept json
// @Produce json
// @Param bundle body qrbundle.Bundle true "Scanned bundle"
// @Success 200 {object} VerifyBundleResponse
// @Failure 400 {object} ErrorResponse
// @Security ApiKeyAuth
// @Router /qr/verify [post]
func (h *QRHandler) VerifyBundle(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil || len(raw) == 0 {
		sendValidationError(c, "bundle body is required", err)
		return
	}

	bundle, ok := h.bundles.VerifyBundle(raw)
	sendSuccess(c, http.StatusOK, VerifyBundleResponse{Valid: ok, Bundle: bundle})
}
