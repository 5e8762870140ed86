package handlers

import (
	"time"

	"github.com/cyphera/grantpay/internal/accounts"
	"github.com/cyphera/grantpay/internal/client/openpayments"
	"github.com/cyphera/grantpay/internal/ledger"
	"github.com/cyphera/grantpay/internal/qrbundle"
)

// AmountResponse is a scaled Open Payments amount
type AmountResponse struct {
	Value      string `json:"value"`
	AssetCode  string `json:"asset_code"`
	AssetScale int    `json:"asset_scale"`
}

type QuoteResponse struct {
	ID            string         `json:"id"`
	DebitAmount   AmountResponse `json:"debit_amount"`
	ReceiveAmount AmountResponse `json:"receive_amount"`
	ExpiresAt     *time.Time     `json:"expires_at,omitempty"`
}

// SessionResponse is returned when a payment session starts
type SessionResponse struct {
	Object      string        `json:"object"`
	SessionID   string        `json:"session_id"`
	RedirectURL string        `json:"redirect_url"`
	Quote       QuoteResponse `json:"quote"`
	ExpiresAt   time.Time     `json:"expires_at"`
}

// SessionApprovalResponse is returned once a session's payment has been created
type SessionApprovalResponse struct {
	Object            string `json:"object"`
	SessionID         string `json:"session_id"`
	OutgoingPaymentID string `json:"outgoing_payment_id"`
	Status            string `json:"status"`
}

type CustomerResponse struct {
	ID            string    `json:"id"`
	Object        string    `json:"object"`
	Name          string    `json:"name"`
	Email         string    `json:"email,omitempty"`
	WalletAddress string    `json:"wallet_address"`
	CreatedAt     time.Time `json:"created_at"`
}

type VendorResponse struct {
	ID            string    `json:"id"`
	Object        string    `json:"object"`
	Name          string    `json:"name"`
	WalletAddress string    `json:"wallet_address"`
	CreatedAt     time.Time `json:"created_at"`
}

// GrantResponse describes a vendor authorization. Access tokens are never included.
type GrantResponse struct {
	ID                  string    `json:"id"`
	Object              string    `json:"object"`
	CustomerID          string    `json:"customer_id"`
	VendorID            string    `json:"vendor_id"`
	VendorName          string    `json:"vendor_name"`
	DailyLimit          string    `json:"daily_limit"`
	SpentToday          string    `json:"spent_today"`
	Remaining           string    `json:"remaining"`
	LastResetDate       string    `json:"last_reset_date"`
	ExpiresAt           time.Time `json:"expires_at"`
	Status              string    `json:"status"`
	GrantStatus         string    `json:"grant_status,omitempty"`
	InteractionComplete bool      `json:"interaction_complete"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

type AuthorizeVendorResponse struct {
	Grant       GrantResponse `json:"grant"`
	RedirectURL string        `json:"redirect_url"`
}

type PaymentResponse struct {
	Object            string `json:"object"`
	GrantID           string `json:"grant_id"`
	OutgoingPaymentID string `json:"outgoing_payment_id"`
	Amount            string `json:"amount"`
	SpentToday        string `json:"spent_today"`
	Remaining         string `json:"remaining"`
}

type QRBundleResponse struct {
	Bundle *qrbundle.Bundle `json:"bundle"`
	QRCode string           `json:"qr_code"`
}

type VerifyBundleResponse struct {
	Valid  bool             `json:"valid"`
	Bundle *qrbundle.Bundle `json:"bundle,omitempty"`
}

type SweepResponse struct {
	Expired int `json:"expired"`
}

func toAmountResponse(a openpayments.Amount) AmountResponse {
	return AmountResponse{Value: a.Value, AssetCode: a.AssetCode, AssetScale: a.AssetScale}
}

func toQuoteResponse(q *openpayments.Quote) QuoteResponse {
	if q == nil {
		return QuoteResponse{}
	}
	return QuoteResponse{
		ID:            q.ID,
		DebitAmount:   toAmountResponse(q.DebitAmount),
		ReceiveAmount: toAmountResponse(q.ReceiveAmount),
		ExpiresAt:     q.ExpiresAt,
	}
}

func toCustomerResponse(c *accounts.Customer) CustomerResponse {
	return CustomerResponse{
		ID:            c.ID,
		Object:        "customer",
		Name:          c.Name,
		Email:         c.Email,
		WalletAddress: c.WalletAddress,
		CreatedAt:     c.CreatedAt,
	}
}

func toVendorResponse(v *accounts.Vendor) VendorResponse {
	return VendorResponse{
		ID:            v.ID,
		Object:        "vendor",
		Name:          v.Name,
		WalletAddress: v.WalletAddress,
		CreatedAt:     v.CreatedAt,
	}
}

func toGrantResponse(cg *ledger.CustomerGrant) GrantResponse {
	resp := GrantResponse{
		ID:                  cg.ID,
		Object:              "grant",
		CustomerID:          cg.CustomerID,
		VendorID:            cg.VendorID,
		VendorName:          cg.VendorName,
		DailyLimit:          cg.DailyLimit.String(),
		SpentToday:          cg.SpentToday.String(),
		Remaining:           cg.Remaining().String(),
		LastResetDate:       cg.LastResetDate,
		ExpiresAt:           cg.ExpiresAt,
		Status:              string(cg.Status),
		InteractionComplete: cg.InteractionComplete(),
		CreatedAt:           cg.CreatedAt,
		UpdatedAt:           cg.UpdatedAt,
	}
	if cg.Grant != nil {
		resp.GrantStatus = string(cg.Grant.Status)
	}
	return resp
}

func toGrantResponses(list []*ledger.CustomerGrant) []GrantResponse {
	out := make([]GrantResponse, 0, len(list))
	for _, cg := range list {
		out = append(out, toGrantResponse(cg))
	}
	return out
}
