// Package qrbundle produces signed, scannable summaries of a customer's active vendor
// authorizations.
package qrbundle

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/cyphera/grantpay/internal/apperrors"
	"github.com/cyphera/grantpay/internal/ledger"
)

// GrantSummary describes one authorization in a bundle. Every field is a string so the
// canonical form does not depend on number formatting.
type GrantSummary struct {
	GrantID    string `json:"grantId"`
	VendorID   string `json:"vendorId"`
	VendorName string `json:"vendorName"`
	DailyLimit string `json:"dailyLimit"`
	ExpiresAt  string `json:"expiresAt"`
}

// Bundle is the signed payload encoded into a customer's QR code.
type Bundle struct {
	CustomerID  string         `json:"customerId"`
	Grants      []GrantSummary `json:"grants"`
	GeneratedAt string         `json:"generatedAt"`
	Signature   string         `json:"signature"`
}

// canonicalBundle is Bundle without its signature, in signing field order.
type canonicalBundle struct {
	CustomerID  string         `json:"customerId"`
	Grants      []GrantSummary `json:"grants"`
	GeneratedAt string         `json:"generatedAt"`
}

// Canonical returns the bytes a bundle's signature covers.
func Canonical(b *Bundle) ([]byte, error) {
	return json.Marshal(canonicalBundle{
		CustomerID:  b.CustomerID,
		Grants:      b.Grants,
		GeneratedAt: b.GeneratedAt,
	})
}

// GrantSource lists a customer's authorizations.
type GrantSource interface {
	ListByCustomer(ctx context.Context, customerID string) ([]*ledger.CustomerGrant, error)
}

// Bundler builds and verifies bundles with a shared HMAC secret.
type Bundler struct {
	source GrantSource
	secret []byte
	now    func() time.Time
}

// NewBundler creates a Bundler. secret must be non-empty.
func NewBundler(source GrantSource, secret []byte) *Bundler {
	return &Bundler{source: source, secret: secret, now: time.Now}
}

// BuildBundle signs a summary of every live, approved authorization the customer holds.
func (b *Bundler) BuildBundle(ctx context.Context, customerID string) (*Bundle, error) {
	const op = "qrbundle.BuildBundle"

	if strings.TrimSpace(customerID) == "" {
		return nil, apperrors.Validation(op, "customer id is required")
	}
	if len(b.secret) == 0 {
		return nil, apperrors.Internal(op, "bundle signing secret is not configured", nil)
	}

	list, err := b.source.ListByCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}

	now := b.now().UTC()
	summaries := make([]GrantSummary, 0, len(list))
	for _, cg := range list {
		if !cg.Live(now) || !cg.InteractionComplete() {
			continue
		}
		summaries = append(summaries, GrantSummary{
			GrantID:    cg.ID,
			VendorID:   cg.VendorID,
			VendorName: cg.VendorName,
			DailyLimit: cg.DailyLimit.String(),
			ExpiresAt:  cg.ExpiresAt.UTC().Format(time.RFC3339),
		})
	}
	sort.SliceStable(summaries, func(i, j int) bool { return summaries[i].GrantID < summaries[j].GrantID })

	bundle := &Bundle{
		CustomerID:  customerID,
		Grants:      summaries,
		GeneratedAt: now.Format(time.RFC3339),
	}
	sig, err := b.sign(bundle)
	if err != nil {
		return nil, apperrors.Internal(op, "failed to sign bundle", err)
	}
	bundle.Signature = sig
	return bundle, nil
}

func (b *Bundler) sign(bundle *Bundle) (string, error) {
	canonical, err := Canonical(bundle)
	if err != nil {
		return "", err
	}
	mac := hmac.New(sha256.New, b.secret)
	mac.Write(canonical)
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// VerifyBundle recomputes the signature over every field but Signature and compares in
// constant time.
func (b *Bundler) VerifyBundle(bundle *Bundle) bool {
	if bundle == nil || bundle.Signature == "" || len(b.secret) == 0 {
		return false
	}
	expected, err := b.sign(bundle)
	if err != nil {
		return false
	}
	return hmac.Equal([]byte(expected), []byte(bundle.Signature))
}

// VerifyJSON parses a serialized bundle and verifies it. Unparsable input, or fields the bundle
// does not define, fail verification.
func (b *Bundler) VerifyJSON(raw []byte) bool {
	_, ok := b.ParseAndVerify(raw)
	return ok
}

// ParseAndVerify is VerifyJSON that also returns the parsed bundle.
func (b *Bundler) ParseAndVerify(raw []byte) (*Bundle, bool) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	var bundle Bundle
	if err := dec.Decode(&bundle); err != nil {
		return nil, false
	}
	if dec.More() {
		return nil, false
	}
	return &bundle, b.VerifyBundle(&bundle)
}
