package handlers

import (
	"net/http"

	"github.com/cyphera/grantpay/internal/services"
	"github.com/gin-gonic/gin"
)

// SessionHandler handles instant payment sessions
type SessionHandler struct {
	payments InstantPayService
}

func NewSessionHandler(payments InstantPayService) *SessionHandler {
	return &SessionHandler{payments: payments}
}

// StartSessionRequest represents the request body for starting a payment session
type StartSessionRequest struct {
	SessionID      string `json:"session_id"`
	SenderWallet   string `json:"sender_wallet" binding:"required"`
	ReceiverWallet string `json:"receiver_wallet" binding:"required"`
	Amount         string `json:"amount" binding:"required"`
	Description    string `json:"description"`
}

// ApproveSessionRequest carries the interaction result relayed by the client
type ApproveSessionRequest struct {
	InteractRef string `json:"interact_ref" binding:"required"`
	Hash        string `json:"hash" binding:"required"`
}

// StartSession godoc
// @Summary Start a payment session
// @Description Creates an incoming payment and quote, and requests an interactive outgoing payment grant from the sender's wallet
// @Tags sessions
// @Accept json
// @Produce json
// @Param session body StartSessionRequest true "Session to start"
// @Success 201 {object} SessionResponse
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 502 {object} ErrorResponse
// @Router /sessions [post]
func (h *SessionHandler) StartSession(c *gin.Context) {
	var req StartSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendValidationError(c, "Invalid request body", err)
		return
	}
	amount, ok := parseAmount(req.Amount)
	if !ok {
		sendValidationError(c, "amount must be a positive decimal", nil)
		return
	}

	result, err := h.payments.StartSession(c.Request.Context(), services.StartSessionRequest{
		SessionID:      req.SessionID,
		SenderWallet:   req.SenderWallet,
		ReceiverWallet: req.ReceiverWallet,
		Amount:         amount,
		Description:    req.Description,
	})
	if err != nil {
		handleServiceError(c, err)
		return
	}

	sendSuccess(c, http.StatusCreated, SessionResponse{
		Object:      "payment_session",
		SessionID:   result.SessionID,
		RedirectURL: result.RedirectURL,
		Quote:       toQuoteResponse(result.Quote),
		ExpiresAt:   result.ExpiresAt,
	})
}

// SessionCallback godoc
// @Summary Payment session interaction callback
// @Description Finish URI the sender's authorization server redirects to after approval
// @Tags sessions
// @Produce json
// @Param session_id path string true "Session ID"
// @Param interact_ref query string true "Interaction reference"
// @Param hash query string true "Interaction hash"
// @Success 200 {object} SessionApprovalResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 410 {object} ErrorResponse
// @Router /sessions/{session_id}/callback [get]
func (h *SessionHandler) SessionCallback(c *gin.Context) {
	h.approve(c, c.Query("interact_ref"), c.Query("hash"))
}

// ApproveSession godoc
// @Summary Approve a payment session
// @Description Completes a payment session with the interaction result relayed by the client
// @Tags sessions
// @Accept json
// @Produce json
// @Param session_id path string true "Session ID"
// @Param approval body ApproveSessionRequest true "Interaction result"
// @Success 200 {object} SessionApprovalResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 410 {object} ErrorResponse
// @Router /sessions/{session_id}/approve [post]
func (h *SessionHandler) ApproveSession(c *gin.Context) {
	var req ApproveSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendValidationError(c, "Invalid request body", err)
		return
	}
	h.approve(c, req.InteractRef, req.Hash)
}

func (h *SessionHandler) approve(c *gin.Context, interactRef, hash string) {
	if interactRef == "" || hash == "" {
		sendValidationError(c, "interact_ref and hash are required", nil)
		return
	}

	result, err := h.payments.ApproveSession(c.Request.Context(), c.Param("session_id"), interactRef, hash)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	sendSuccess(c, http.StatusOK, SessionApprovalResponse{
		Object:            "payment_session",
		SessionID:         result.SessionID,
		OutgoingPaymentID: result.OutgoingPayment.ID,
		Status:            "completed",
	})
}
