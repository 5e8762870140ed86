package services

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cyphera/grantpay/internal/accounts"
	"github.com/cyphera/grantpay/internal/apperrors"
	"github.com/cyphera/grantpay/internal/client/openpayments"
	"github.com/cyphera/grantpay/internal/events"
	"github.com/cyphera/grantpay/internal/grants"
	"github.com/cyphera/grantpay/internal/interaction"
	"github.com/cyphera/grantpay/internal/ledger"
	"github.com/cyphera/grantpay/internal/notify"
	"github.com/cyphera/grantpay/internal/payments"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func registerPair(t *testing.T, svc *VendorGrantService, vendorWallet string) (*accounts.Customer, *accounts.Vendor) {
	t.Helper()
	ctx := context.Background()
	customer, err := svc.RegisterCustomer(ctx, accounts.Customer{
		ID:            "cust-1",
		Name:          "Alice",
		Email:         "alice@example.com",
		WalletAddress: "https://wallet.example/alice",
	})
	require.NoError(t, err)
	vendor, err := svc.RegisterVendor(ctx, accounts.Vendor{
		ID:            "vendor-1",
		Name:          "Corner Shop",
		WalletAddress: vendorWallet,
	})
	require.NoError(t, err)
	return customer, vendor
}

// approvedGrant authorizes vendor-1 for cust-1 with a 100 ZAR daily limit and completes the
// customer's interaction. The access token issued is "tok-0".
func approvedGrant(t *testing.T, h *harness, svc *VendorGrantService) *ledger.CustomerGrant {
	t.Helper()
	ctx := context.Background()

	grantReq := h.expectInteractiveGrant("https://auth.alice.example")
	authorized, err := svc.AuthorizeVendor(ctx, AuthorizeVendorRequest{
		CustomerID:     "cust-1",
		VendorID:       "vendor-1",
		DailyLimit:     decimal.NewFromInt(100),
		ExpirationDays: 30,
	})
	require.NoError(t, err)

	hash := interaction.ComputeHash(grantReq.Interact.Finish.Nonce, "as-nonce", "ref-1", "https://auth.alice.example")
	h.auth.EXPECT().
		ContinueGrant(gomock.Any(), "https://auth.alice.example/continue/1", "cont-token", "ref-1").
		Return(&openpayments.GrantResponse{
			AccessToken: &openpayments.AccessToken{Value: "tok-0", Manage: "https://auth.alice.example/token/1"},
		}, nil)
	h.notifier.EXPECT().AuthorizationCompleted(gomock.Any(), gomock.Any()).Return(nil)

	cg, err := svc.CompleteAuthorization(ctx, authorized.Grant.ID, "ref-1", hash)
	require.NoError(t, err)
	require.True(t, cg.InteractionComplete())
	return cg
}

// expectRotation answers the next token rotation with newToken.
func (h *harness) expectRotation(oldToken, newToken string) {
	h.auth.EXPECT().
		RotateToken(gomock.Any(), "https://auth.alice.example/token/1", oldToken).
		Return(&openpayments.AccessToken{Value: newToken, Manage: "https://auth.alice.example/token/1"}, nil)
}

func TestVendorGrants_AuthorizeVendor(t *testing.T) {
	h := newHarness(t)
	svc := h.vendorService()
	registerPair(t, svc, "https://wallet.example/shop")

	grantReq := h.expectInteractiveGrant("https://auth.alice.example")
	result, err := svc.AuthorizeVendor(context.Background(), AuthorizeVendorRequest{
		CustomerID:     "cust-1",
		VendorID:       "vendor-1",
		DailyLimit:     decimal.NewFromInt(100),
		ExpirationDays: 30,
	})
	require.NoError(t, err)

	assert.Equal(t, "https://auth.alice.example/interact/1", result.RedirectURL)
	assert.Equal(t, "Corner Shop", result.Grant.VendorName)
	assert.Equal(t, ledger.StatusActive, result.Grant.Status)
	require.NotNil(t, result.Grant.Grant)
	assert.Equal(t, grants.StatusPendingInteraction, result.Grant.Grant.Status)
	assert.False(t, result.Grant.InteractionComplete())

	assert.Equal(t, baseURL+"/api/v1/grants/"+result.Grant.ID+"/callback", grantReq.Interact.Finish.URI)
	limits := grantReq.AccessToken.Access[0].Limits
	require.NotNil(t, limits)
	assert.Equal(t, "10000", limits.DebitAmount.Value)
	assert.Equal(t, "ZAR", limits.DebitAmount.AssetCode)
	assert.True(t, strings.HasPrefix(limits.Interval, "R/"))
	assert.True(t, strings.HasSuffix(limits.Interval, "/P1D"))

	// The pair already has a live authorization awaiting approval.
	_, err = svc.AuthorizeVendor(context.Background(), AuthorizeVendorRequest{
		CustomerID:     "cust-1",
		VendorID:       "vendor-1",
		DailyLimit:     decimal.NewFromInt(100),
		ExpirationDays: 30,
	})
	requireKind(t, err, apperrors.KindConflict)
}

func TestVendorGrants_AuthorizeVendorRetriesUnsentRequest(t *testing.T) {
	h := newHarness(t)
	svc := h.vendorService()
	registerPair(t, svc, "https://wallet.example/shop")
	ctx := context.Background()
	req := AuthorizeVendorRequest{
		CustomerID:     "cust-1",
		VendorID:       "vendor-1",
		DailyLimit:     decimal.NewFromInt(100),
		ExpirationDays: 30,
	}

	h.auth.EXPECT().
		RequestGrant(gomock.Any(), "https://auth.alice.example", gomock.Any()).
		Return(nil, errors.New("connection refused"))
	_, err := svc.AuthorizeVendor(ctx, req)
	requireKind(t, err, apperrors.KindDownstream)

	first, err := h.ledger.FindByPair(ctx, "cust-1", "vendor-1")
	require.NoError(t, err)
	require.NotNil(t, first.Grant)
	assert.Equal(t, grants.StatusRequested, first.Grant.Status)

	h.expectInteractiveGrant("https://auth.alice.example")
	result, err := svc.AuthorizeVendor(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, first.ID, result.Grant.ID)
	assert.Equal(t, first.Grant.ID, result.Grant.Grant.ID)
}

func TestVendorGrants_AuthorizeVendorConcurrentRequests(t *testing.T) {
	h := newHarness(t)
	svc := h.vendorService()
	registerPair(t, svc, "https://wallet.example/shop")
	req := AuthorizeVendorRequest{
		CustomerID:     "cust-1",
		VendorID:       "vendor-1",
		DailyLimit:     decimal.NewFromInt(100),
		ExpirationDays: 30,
	}

	entered := make(chan struct{})
	release := make(chan struct{})
	var sent openpayments.GrantRequest
	h.auth.EXPECT().
		RequestGrant(gomock.Any(), "https://auth.alice.example", gomock.Any()).
		DoAndReturn(func(_ context.Context, authServer string, grantReq openpayments.GrantRequest) (*openpayments.GrantResponse, error) {
			sent = grantReq
			close(entered)
			<-release
			return &openpayments.GrantResponse{
				Interact: &openpayments.InteractResponse{Redirect: authServer + "/interact/1", Finish: "as-nonce"},
				Continue: &openpayments.ContinueResponse{
					AccessToken: openpayments.ContinueToken{Value: "cont-token"},
					URI:         authServer + "/continue/1",
				},
			}, nil
		}).
		Times(1)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	results := make([]*AuthorizeVendorResult, 2)
	run := func(i int) {
		defer wg.Done()
		results[i], errs[i] = svc.AuthorizeVendor(context.Background(), req)
	}

	wg.Add(1)
	go run(0)
	<-entered

	// The second caller reaches the authorization while the first request is still in flight.
	wg.Add(1)
	go run(1)
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	require.NoError(t, errs[0])
	requireKind(t, errs[1], apperrors.KindConflict)

	stored, err := h.ledger.Get(context.Background(), results[0].Grant.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.Grant)
	assert.Equal(t, grants.StatusPendingInteraction, stored.Grant.Status)
	require.NotNil(t, sent.Interact)
	assert.Equal(t, sent.Interact.Finish.Nonce, stored.Grant.ClientNonce, "stored nonce is the one the auth server saw")
}

func TestVendorGrants_AuthorizeVendorRejectsSubUnitLimit(t *testing.T) {
	h := newHarness(t)
	svc := h.vendorService()
	registerPair(t, svc, "https://wallet.example/shop")

	_, err := svc.AuthorizeVendor(context.Background(), AuthorizeVendorRequest{
		CustomerID:     "cust-1",
		VendorID:       "vendor-1",
		DailyLimit:     decimal.RequireFromString("10.005"),
		ExpirationDays: 30,
	})
	requireKind(t, err, apperrors.KindValidation)

	_, err = h.ledger.FindByPair(context.Background(), "cust-1", "vendor-1")
	requireKind(t, err, apperrors.KindNotFound)
}

func TestVendorGrants_AuthorizeVendorUnknownAccounts(t *testing.T) {
	h := newHarness(t)
	svc := h.vendorService()
	registerPair(t, svc, "https://wallet.example/shop")

	_, err := svc.AuthorizeVendor(context.Background(), AuthorizeVendorRequest{
		CustomerID: "nobody", VendorID: "vendor-1", DailyLimit: decimal.NewFromInt(1), ExpirationDays: 1,
	})
	requireKind(t, err, apperrors.KindNotFound)

	_, err = svc.AuthorizeVendor(context.Background(), AuthorizeVendorRequest{
		CustomerID: "cust-1", VendorID: "nobody", DailyLimit: decimal.NewFromInt(1), ExpirationDays: 1,
	})
	requireKind(t, err, apperrors.KindNotFound)
}

func TestVendorGrants_CompleteAuthorization(t *testing.T) {
	h := newHarness(t)
	svc := h.vendorService()
	registerPair(t, svc, "https://wallet.example/shop")
	ctx := context.Background()

	grantReq := h.expectInteractiveGrant("https://auth.alice.example")
	authorized, err := svc.AuthorizeVendor(ctx, AuthorizeVendorRequest{
		CustomerID: "cust-1", VendorID: "vendor-1", DailyLimit: decimal.NewFromInt(100), ExpirationDays: 30,
	})
	require.NoError(t, err)

	// A tampered hash never reaches the authorization server.
	_, err = svc.CompleteAuthorization(ctx, authorized.Grant.ID, "ref-1", "tampered")
	requireKind(t, err, apperrors.KindAuthentication)

	hash := interaction.ComputeHash(grantReq.Interact.Finish.Nonce, "as-nonce", "ref-1", "https://auth.alice.example")
	h.auth.EXPECT().
		ContinueGrant(gomock.Any(), gomock.Any(), gomock.Any(), "ref-1").
		Return(&openpayments.GrantResponse{
			AccessToken: &openpayments.AccessToken{Value: "tok-0", Manage: "https://auth.alice.example/token/1"},
		}, nil)
	h.notifier.EXPECT().
		AuthorizationCompleted(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, n notify.AuthorizationNotice) error {
			assert.Equal(t, "alice@example.com", n.CustomerEmail)
			assert.Equal(t, "Corner Shop", n.VendorName)
			assert.Equal(t, "100", n.DailyLimit)
			assert.Equal(t, "ZAR", n.AssetCode)
			assert.Equal(t, authorized.Grant.ID, n.GrantID)
			return errors.New("mail is down")
		})

	cg, err := svc.CompleteAuthorization(ctx, authorized.Grant.ID, "ref-1", hash)
	require.NoError(t, err, "notification failures do not fail the authorization")
	assert.Equal(t, grants.StatusActive, cg.Grant.Status)
	assert.Equal(t, "tok-0", cg.Grant.AccessToken)

	// Already approved.
	_, err = svc.CompleteAuthorization(ctx, authorized.Grant.ID, "ref-1", hash)
	requireKind(t, err, apperrors.KindProtocol)
}

func TestVendorGrants_ProcessPayment(t *testing.T) {
	h := newHarness(t)
	svc := h.vendorService()
	registerPair(t, svc, "https://wallet.example/shop")
	cg := approvedGrant(t, h, svc)
	ctx := context.Background()

	h.expectRotation("tok-0", "tok-1")
	h.expectNonInteractiveGrants(2)
	h.expectTransferResources(farFuture())
	h.resources.EXPECT().
		CreateOutgoingPayment(gomock.Any(), "https://rs.alice.example", "tok-1", gomock.Any()).
		DoAndReturn(func(_ context.Context, _, _ string, req openpayments.OutgoingPaymentRequest) (*openpayments.OutgoingPayment, error) {
			assert.Equal(t, cg.ID, req.Metadata["grantId"])
			assert.Equal(t, "Groceries", req.Metadata["description"])
			return &openpayments.OutgoingPayment{ID: "https://rs.alice.example/outgoing-payments/1"}, nil
		})
	h.publisher.EXPECT().
		Publish(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, e events.Event) error {
			assert.Equal(t, events.TypePaymentSettled, e.Type)
			assert.Equal(t, cg.ID, e.GrantID)
			assert.Equal(t, "30", e.Amount)
			return nil
		})

	result, err := svc.ProcessPayment(ctx, ProcessPaymentRequest{
		GrantID:     cg.ID,
		Amount:      decimal.NewFromInt(30),
		Description: "Groceries",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://rs.alice.example/outgoing-payments/1", result.OutgoingPaymentID)
	assert.True(t, decimal.NewFromInt(30).Equal(result.SpentToday))
	assert.True(t, decimal.NewFromInt(70).Equal(result.Remaining))

	stored, err := svc.GetGrant(ctx, cg.ID)
	require.NoError(t, err)
	assert.Equal(t, "tok-1", stored.Grant.AccessToken, "rotated token is persisted")

	// Over the remaining daily limit: rejected before any downstream call.
	_, err = svc.ProcessPayment(ctx, ProcessPaymentRequest{GrantID: cg.ID, Amount: decimal.NewFromInt(71)})
	requireKind(t, err, apperrors.KindLimitExceeded)
}

func TestVendorGrants_ProcessPaymentReversesFailedTransfer(t *testing.T) {
	h := newHarness(t)
	svc := h.vendorService()
	registerPair(t, svc, "https://wallet.example/shop")
	cg := approvedGrant(t, h, svc)
	ctx := context.Background()

	h.expectRotation("tok-0", "tok-1")
	h.expectNonInteractiveGrants(2)
	h.expectTransferResources(farFuture())
	h.resources.EXPECT().
		CreateOutgoingPayment(gomock.Any(), gomock.Any(), "tok-1", gomock.Any()).
		Return(nil, errors.New("connection reset"))
	h.publisher.EXPECT().
		Publish(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, e events.Event) error {
			assert.Equal(t, events.TypePaymentFailed, e.Type)
			assert.Equal(t, payments.StepOutgoingPayment, e.FailedStep)
			assert.Equal(t, string(apperrors.KindDownstream), e.Reason)
			return nil
		})

	_, err := svc.ProcessPayment(ctx, ProcessPaymentRequest{GrantID: cg.ID, Amount: decimal.NewFromInt(40)})
	requireKind(t, err, apperrors.KindDownstream)
	var transferErr *payments.TransferError
	require.True(t, errors.As(err, &transferErr))
	assert.Equal(t, payments.StepOutgoingPayment, transferErr.Step)

	stored, err := svc.GetGrant(ctx, cg.ID)
	require.NoError(t, err)
	assert.True(t, stored.SpentToday.IsZero(), "failed transfer must not count towards the daily limit")
	assert.True(t, decimal.NewFromInt(100).Equal(stored.Remaining()))
}

func TestVendorGrants_ProcessPaymentRotationFailure(t *testing.T) {
	h := newHarness(t)
	svc := h.vendorService()
	registerPair(t, svc, "https://wallet.example/shop")
	cg := approvedGrant(t, h, svc)
	ctx := context.Background()

	h.auth.EXPECT().
		RotateToken(gomock.Any(), gomock.Any(), "tok-0").
		Return(nil, errors.New("token revoked"))
	h.publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(nil)

	_, err := svc.ProcessPayment(ctx, ProcessPaymentRequest{GrantID: cg.ID, Amount: decimal.NewFromInt(10)})
	requireKind(t, err, apperrors.KindDownstream)

	stored, err := svc.GetGrant(ctx, cg.ID)
	require.NoError(t, err)
	assert.True(t, stored.SpentToday.IsZero())
}

func TestVendorGrants_ProcessPaymentPreconditions(t *testing.T) {
	h := newHarness(t)
	svc := h.vendorService()
	registerPair(t, svc, "https://wallet.example/shop")
	ctx := context.Background()

	_, err := svc.ProcessPayment(ctx, ProcessPaymentRequest{GrantID: "missing", Amount: decimal.NewFromInt(1)})
	requireKind(t, err, apperrors.KindNotFound)

	_, err = svc.ProcessPayment(ctx, ProcessPaymentRequest{GrantID: "missing", Amount: decimal.Zero})
	requireKind(t, err, apperrors.KindValidation)

	h.expectInteractiveGrant("https://auth.alice.example")
	authorized, err := svc.AuthorizeVendor(ctx, AuthorizeVendorRequest{
		CustomerID: "cust-1", VendorID: "vendor-1", DailyLimit: decimal.NewFromInt(100), ExpirationDays: 30,
	})
	require.NoError(t, err)

	// Not yet approved by the customer.
	_, err = svc.ProcessPayment(ctx, ProcessPaymentRequest{GrantID: authorized.Grant.ID, Amount: decimal.NewFromInt(1)})
	requireKind(t, err, apperrors.KindGrantInactive)
}

func TestVendorGrants_ProcessPaymentCrossCurrency(t *testing.T) {
	h := newHarness(t)
	svc := h.vendorService()
	registerPair(t, svc, "https://wallet.example/usd-shop")
	cg := approvedGrant(t, h, svc)

	_, err := svc.ProcessPayment(context.Background(), ProcessPaymentRequest{GrantID: cg.ID, Amount: decimal.NewFromInt(1)})
	requireKind(t, err, apperrors.KindValidation)
}

func TestVendorGrants_ProcessPaymentRejectsSubUnitAmount(t *testing.T) {
	h := newHarness(t)
	svc := h.vendorService()
	registerPair(t, svc, "https://wallet.example/shop")
	cg := approvedGrant(t, h, svc)
	ctx := context.Background()

	for _, amount := range []string{"0.005", "10.001", "1.999999"} {
		_, err := svc.ProcessPayment(ctx, ProcessPaymentRequest{GrantID: cg.ID, Amount: decimal.RequireFromString(amount)})
		requireKind(t, err, apperrors.KindValidation)
	}

	stored, err := svc.GetGrant(ctx, cg.ID)
	require.NoError(t, err)
	assert.True(t, stored.SpentToday.IsZero())
	assert.Equal(t, "tok-0", stored.Grant.AccessToken, "no token rotation happened")
}

func TestVendorGrants_SuspendGrant(t *testing.T) {
	h := newHarness(t)
	svc := h.vendorService()
	registerPair(t, svc, "https://wallet.example/shop")
	cg := approvedGrant(t, h, svc)
	ctx := context.Background()

	h.auth.EXPECT().
		RevokeToken(gomock.Any(), "https://auth.alice.example/token/1", "tok-0").
		Return(nil)

	suspended, err := svc.SuspendGrant(ctx, cg.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusSuspended, suspended.Status)
	assert.Equal(t, grants.StatusRevoked, suspended.Grant.Status)
	assert.Empty(t, suspended.Grant.AccessToken)

	_, err = svc.ProcessPayment(ctx, ProcessPaymentRequest{GrantID: cg.ID, Amount: decimal.NewFromInt(1)})
	requireKind(t, err, apperrors.KindGrantInactive)
}

func TestVendorGrants_SuspendGrantRevocationFailure(t *testing.T) {
	h := newHarness(t)
	svc := h.vendorService()
	registerPair(t, svc, "https://wallet.example/shop")
	cg := approvedGrant(t, h, svc)

	h.auth.EXPECT().
		RevokeToken(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(errors.New("unavailable"))

	suspended, err := svc.SuspendGrant(context.Background(), cg.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusSuspended, suspended.Status)
	assert.Equal(t, grants.StatusActive, suspended.Grant.Status)
}

func TestVendorGrants_ListAndSweep(t *testing.T) {
	h := newHarness(t)
	svc := h.vendorService()
	registerPair(t, svc, "https://wallet.example/shop")
	cg := approvedGrant(t, h, svc)
	ctx := context.Background()

	list, err := svc.ListCustomerGrants(ctx, "cust-1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, cg.ID, list[0].ID)

	_, err = svc.ListCustomerGrants(ctx, "nobody")
	requireKind(t, err, apperrors.KindNotFound)

	n, err := svc.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
