// Package services orchestrates wallets, grants, payments and the ledger into the operations the
// HTTP API exposes.
package services

import (
	"context"
	"time"

	"github.com/cyphera/grantpay/internal/client/openpayments"
	"github.com/cyphera/grantpay/internal/events"
	"go.uber.org/zap"
)

// WalletResolver resolves wallet addresses.
type WalletResolver interface {
	Get(ctx context.Context, walletURL string) (*openpayments.WalletAddress, error)
}

// withTimeout bounds one external interaction. A zero timeout leaves ctx unchanged.
func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

// publish sends an event and only logs failures; settlement has already happened.
func publish(ctx context.Context, publisher events.Publisher, logger *zap.Logger, event events.Event) {
	if publisher == nil {
		return
	}
	if err := publisher.Publish(ctx, event); err != nil {
		logger.Warn("failed to publish event",
			zap.String("event_type", event.Type),
			zap.Error(err))
	}
}
