// Package wallet resolves wallet addresses to their asset and server metadata.
package wallet

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cyphera/grantpay/internal/apperrors"
	"github.com/cyphera/grantpay/internal/client/openpayments"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type cachedWallet struct {
	wallet    openpayments.WalletAddress
	fetchedAt time.Time
}

// Directory looks up wallet address documents, optionally caching them for a fixed TTL.
type Directory struct {
	client openpayments.WalletClient
	ttl    time.Duration
	now    func() time.Time
	logger *zap.Logger

	mu    sync.RWMutex
	cache map[string]cachedWallet
}

// NewDirectory creates a Directory. A zero ttl disables caching.
func NewDirectory(client openpayments.WalletClient, ttl time.Duration, logger *zap.Logger) *Directory {
	return &Directory{
		client: client,
		ttl:    ttl,
		now:    time.Now,
		logger: logger,
		cache:  make(map[string]cachedWallet),
	}
}

// Get resolves walletURL, which may be given as an https URL or a $host/path payment pointer.
func (d *Directory) Get(ctx context.Context, walletURL string) (*openpayments.WalletAddress, error) {
	const op = "wallet.Get"

	normalized, err := NormalizeURL(walletURL)
	if err != nil {
		return nil, apperrors.Validation(op, err.Error())
	}

	if cached, ok := d.cached(normalized); ok {
		return cached, nil
	}

	wallet, err := d.client.GetWalletAddress(ctx, normalized)
	if err != nil {
		d.logger.Warn("wallet address lookup failed",
			zap.String("wallet_address", normalized),
			zap.Error(err))
		return nil, apperrors.Downstream(op, "wallet address lookup failed", err)
	}
	if wallet.AuthServer == "" || wallet.ResourceServer == "" || wallet.AssetCode == "" {
		return nil, apperrors.Downstream(op, "wallet address document is incomplete", nil)
	}
	if wallet.ID == "" {
		wallet.ID = normalized
	}

	if d.ttl > 0 {
		d.mu.Lock()
		d.cache[normalized] = cachedWallet{wallet: *wallet, fetchedAt: d.now()}
		d.mu.Unlock()
	}
	return wallet, nil
}

func (d *Directory) cached(key string) (*openpayments.WalletAddress, bool) {
	if d.ttl <= 0 {
		return nil, false
	}
	d.mu.RLock()
	entry, ok := d.cache[key]
	d.mu.RUnlock()
	if !ok || d.now().Sub(entry.fetchedAt) >= d.ttl {
		return nil, false
	}
	wallet := entry.wallet
	return &wallet, true
}

// NormalizeURL converts a payment pointer ($wallet.example/alice) into its https form and
// validates that the result is an absolute URL.
func NormalizeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", errors.New("wallet address is required")
	}
	if strings.HasPrefix(raw, "$") {
		raw = "https://" + strings.TrimPrefix(raw, "$")
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "", errors.New("wallet address is not a valid URL")
	}
	if parsed.Scheme != "https" && parsed.Scheme != "http" {
		return "", errors.New("wallet address must be an http(s) URL or payment pointer")
	}
	if parsed.Host == "" {
		return "", errors.New("wallet address has no host")
	}
	return strings.TrimSuffix(parsed.String(), "/"), nil
}
