// Package ledger tracks standing customer→vendor authorizations and their daily spending.
package ledger

import (
	"time"

	"github.com/cyphera/grantpay/internal/grants"
	"github.com/shopspring/decimal"
)

// Status is the ledger-level state of a CustomerGrant.
type Status string

const (
	StatusActive    Status = "active"
	StatusExpired   Status = "expired"
	StatusSuspended Status = "suspended"
)

// SpendEntry is one accepted spend. Reversed entries no longer count towards SpentToday.
type SpendEntry struct {
	ID         string          `json:"id"`
	Amount     decimal.Decimal `json:"amount"`
	Reversed   bool            `json:"reversed,omitempty"`
	RecordedAt time.Time       `json:"recordedAt"`
}

// CustomerGrant is a standing authorization for VendorID to charge CustomerID up to DailyLimit
// per day until ExpiresAt.
type CustomerGrant struct {
	ID            string          `json:"id"`
	CustomerID    string          `json:"customerId"`
	VendorID      string          `json:"vendorId"`
	VendorName    string          `json:"vendorName"`
	DailyLimit    decimal.Decimal `json:"dailyLimit"`
	SpentToday    decimal.Decimal `json:"spentToday"`
	LastResetDate string          `json:"lastResetDate"`
	ExpiresAt     time.Time       `json:"expiresAt"`
	Status        Status          `json:"status"`
	Grant         *grants.Grant   `json:"grant,omitempty"`
	Spends        []SpendEntry    `json:"spends,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// Remaining is what can still be spent today.
func (g *CustomerGrant) Remaining() decimal.Decimal {
	r := g.DailyLimit.Sub(g.SpentToday)
	if r.IsNegative() {
		return decimal.Zero
	}
	return r
}

// Expired reports whether the authorization has lapsed at now. It is still usable at the
// ExpiresAt instant itself.
func (g *CustomerGrant) Expired(now time.Time) bool {
	return now.After(g.ExpiresAt)
}

// Live reports whether the authorization is active and unexpired.
func (g *CustomerGrant) Live(now time.Time) bool {
	return g.Status == StatusActive && !g.Expired(now)
}

// InteractionComplete reports whether the customer has approved the underlying grant.
func (g *CustomerGrant) InteractionComplete() bool {
	return g.Grant != nil && g.Grant.Status == grants.StatusActive
}

// rollover resets the daily counter when today differs from LastResetDate.
func (g *CustomerGrant) rollover(today string) {
	if g.LastResetDate == today {
		return
	}
	g.SpentToday = decimal.Zero
	g.Spends = nil
	g.LastResetDate = today
}

// SpendResult reports an accepted spend.
type SpendResult struct {
	EntryID    string          `json:"entryId"`
	SpentToday decimal.Decimal `json:"spentToday"`
	Remaining  decimal.Decimal `json:"remaining"`
}
