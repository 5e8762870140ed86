package services

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cyphera/grantpay/internal/accounts"
	"github.com/cyphera/grantpay/internal/apperrors"
	"github.com/cyphera/grantpay/internal/client/openpayments"
	"github.com/cyphera/grantpay/internal/grants"
	"github.com/cyphera/grantpay/internal/ledger"
	"github.com/cyphera/grantpay/internal/mocks"
	"github.com/cyphera/grantpay/internal/payments"
	"github.com/cyphera/grantpay/internal/store"
	"github.com/cyphera/grantpay/internal/wallet"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"
)

const baseURL = "https://pay.example"

var testWallets = map[string]*openpayments.WalletAddress{
	"https://wallet.example/alice": {
		ID: "https://wallet.example/alice", AssetCode: "ZAR", AssetScale: 2,
		AuthServer: "https://auth.alice.example", ResourceServer: "https://rs.alice.example",
	},
	"https://wallet.example/shop": {
		ID: "https://wallet.example/shop", AssetCode: "ZAR", AssetScale: 2,
		AuthServer: "https://auth.shop.example", ResourceServer: "https://rs.shop.example",
	},
	"https://wallet.example/usd-shop": {
		ID: "https://wallet.example/usd-shop", AssetCode: "USD", AssetScale: 2,
		AuthServer: "https://auth.usd.example", ResourceServer: "https://rs.usd.example",
	},
}

type harness struct {
	store      *store.MemoryStore
	walletAPI  *mocks.MockWalletClient
	auth       *mocks.MockAuthClient
	resources  *mocks.MockResourceClient
	publisher  *mocks.MockPublisher
	notifier   *mocks.MockNotifier
	accounts   *accounts.Directory
	wallets    *wallet.Directory
	ledger     *ledger.Ledger
	negotiator *grants.Negotiator
	pipeline   *payments.Pipeline

	tokens atomic.Int64
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger := zap.NewNop()

	h := &harness{
		store:     store.NewMemoryStore(),
		walletAPI: mocks.NewMockWalletClientForTest(t),
		auth:      mocks.NewMockAuthClientForTest(t),
		resources: mocks.NewMockResourceClientForTest(t),
		publisher: mocks.NewMockPublisherForTest(t),
		notifier:  mocks.NewMockNotifierForTest(t),
	}
	h.accounts = accounts.NewDirectory(h.store)
	h.wallets = wallet.NewDirectory(h.walletAPI, time.Minute, logger)
	h.ledger = ledger.New(h.store, time.UTC, logger)
	h.negotiator = grants.NewNegotiator(h.auth, "https://wallet.example/grantpay", logger)
	h.pipeline = payments.NewPipeline(h.negotiator, h.resources, 10*time.Minute, logger)

	h.walletAPI.EXPECT().
		GetWalletAddress(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, url string) (*openpayments.WalletAddress, error) {
			w, ok := testWallets[url]
			if !ok {
				return nil, errors.New("wallet not found")
			}
			copied := *w
			return &copied, nil
		}).
		AnyTimes()
	return h
}

func (h *harness) vendorService() *VendorGrantService {
	return NewVendorGrantService(h.accounts, h.wallets, h.ledger, h.negotiator, h.pipeline,
		h.notifier, h.publisher, VendorGrantConfig{PublicBaseURL: baseURL, Timeout: 5 * time.Second}, zap.NewNop())
}

func (h *harness) nextToken(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, h.tokens.Add(1))
}

// expectNonInteractiveGrants answers every grant request without an interact block with a fresh
// access token.
func (h *harness) expectNonInteractiveGrants(times int) {
	h.auth.EXPECT().
		RequestGrant(gomock.Any(), gomock.Any(), gomock.Cond(func(req openpayments.GrantRequest) bool {
			return req.Interact == nil
		})).
		DoAndReturn(func(_ context.Context, _ string, req openpayments.GrantRequest) (*openpayments.GrantResponse, error) {
			return &openpayments.GrantResponse{
				AccessToken: &openpayments.AccessToken{
					Value:  h.nextToken(req.AccessToken.Access[0].Type),
					Manage: "https://auth.example/token/" + req.AccessToken.Access[0].Type,
				},
			}, nil
		}).
		Times(times)
}

// expectInteractiveGrant answers the next interactive grant request with a redirect and returns
// the request it was sent.
func (h *harness) expectInteractiveGrant(authServer string) *openpayments.GrantRequest {
	captured := new(openpayments.GrantRequest)
	h.auth.EXPECT().
		RequestGrant(gomock.Any(), authServer, gomock.Cond(func(req openpayments.GrantRequest) bool {
			return req.Interact != nil
		})).
		DoAndReturn(func(_ context.Context, _ string, req openpayments.GrantRequest) (*openpayments.GrantResponse, error) {
			*captured = req
			return &openpayments.GrantResponse{
				Interact: &openpayments.InteractResponse{Redirect: authServer + "/interact/1", Finish: "as-nonce"},
				Continue: &openpayments.ContinueResponse{
					AccessToken: openpayments.ContinueToken{Value: "cont-token"},
					URI:         authServer + "/continue/1",
				},
			}, nil
		})
	return captured
}

func (h *harness) expectTransferResources(quoteExpiry time.Time) {
	h.resources.EXPECT().
		CreateIncomingPayment(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, rs, _ string, req openpayments.IncomingPaymentRequest) (*openpayments.IncomingPayment, error) {
			return &openpayments.IncomingPayment{
				ID:             rs + "/incoming-payments/1",
				WalletAddress:  req.WalletAddress,
				IncomingAmount: req.IncomingAmount,
			}, nil
		})
	h.resources.EXPECT().
		CreateQuote(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, rs, _ string, req openpayments.QuoteRequest) (*openpayments.Quote, error) {
			return &openpayments.Quote{
				ID:            rs + "/quotes/1",
				WalletAddress: req.WalletAddress,
				Receiver:      req.Receiver,
				DebitAmount:   openpayments.Amount{Value: "5000", AssetCode: "ZAR", AssetScale: 2},
				ReceiveAmount: openpayments.Amount{Value: "5000", AssetCode: "ZAR", AssetScale: 2},
				ExpiresAt:     &quoteExpiry,
			}, nil
		})
}

func farFuture() time.Time {
	return time.Now().Add(time.Hour)
}

func requireKind(t *testing.T, err error, kind apperrors.Kind) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, kind, apperrors.KindOf(err), "unexpected error: %v", err)
}
