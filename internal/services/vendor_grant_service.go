package services

import (
	"context"
	"errors"
	"time"

	"github.com/cyphera/grantpay/internal/accounts"
	"github.com/cyphera/grantpay/internal/apperrors"
	"github.com/cyphera/grantpay/internal/client/openpayments"
	"github.com/cyphera/grantpay/internal/events"
	"github.com/cyphera/grantpay/internal/grants"
	"github.com/cyphera/grantpay/internal/ledger"
	"github.com/cyphera/grantpay/internal/notify"
	"github.com/cyphera/grantpay/internal/payments"
	"github.com/cyphera/grantpay/internal/store"
	"github.com/cyphera/grantpay/internal/wallet"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// VendorGrantService manages standing customer→vendor authorizations and the payments made
// under them.
type VendorGrantService struct {
	accounts      *accounts.Directory
	wallets       WalletResolver
	ledger        *ledger.Ledger
	negotiator    *grants.Negotiator
	pipeline      *payments.Pipeline
	notifier      notify.Notifier
	publisher     events.Publisher
	locks         *store.KeyedMutex
	publicBaseURL string
	timeout       time.Duration
	logger        *zap.Logger
	now           func() time.Time
}

type VendorGrantConfig struct {
	PublicBaseURL string
	Timeout       time.Duration
}

func NewVendorGrantService(
	directory *accounts.Directory,
	wallets WalletResolver,
	l *ledger.Ledger,
	negotiator *grants.Negotiator,
	pipeline *payments.Pipeline,
	notifier notify.Notifier,
	publisher events.Publisher,
	cfg VendorGrantConfig,
	logger *zap.Logger,
) *VendorGrantService {
	if notifier == nil {
		notifier = notify.NoopNotifier{}
	}
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	return &VendorGrantService{
		accounts:      directory,
		wallets:       wallets,
		ledger:        l,
		negotiator:    negotiator,
		pipeline:      pipeline,
		notifier:      notifier,
		publisher:     publisher,
		locks:         store.NewKeyedMutex(),
		publicBaseURL: cfg.PublicBaseURL,
		timeout:       cfg.Timeout,
		logger:        logger,
		now:           time.Now,
	}
}

func (s *VendorGrantService) RegisterCustomer(ctx context.Context, c accounts.Customer) (*accounts.Customer, error) {
	return s.accounts.RegisterCustomer(ctx, c)
}

func (s *VendorGrantService) RegisterVendor(ctx context.Context, v accounts.Vendor) (*accounts.Vendor, error) {
	return s.accounts.RegisterVendor(ctx, v)
}

func (s *VendorGrantService) GetCustomer(ctx context.Context, id string) (*accounts.Customer, error) {
	return s.accounts.GetCustomer(ctx, id)
}

func (s *VendorGrantService) GetVendor(ctx context.Context, id string) (*accounts.Vendor, error) {
	return s.accounts.GetVendor(ctx, id)
}

type AuthorizeVendorRequest struct {
	CustomerID     string
	VendorID       string
	DailyLimit     decimal.Decimal
	ExpirationDays int
}

type AuthorizeVendorResult struct {
	Grant       *ledger.CustomerGrant
	RedirectURL string
}

// AuthorizeVendor records a new authorization and starts the customer's interactive approval.
// An authorization whose grant request never reached the authorization server is requested
// again instead of being reported as a conflict.
func (s *VendorGrantService) AuthorizeVendor(ctx context.Context, req AuthorizeVendorRequest) (*AuthorizeVendorResult, error) {
	const op = "services.AuthorizeVendor"

	customer, err := s.accounts.GetCustomer(ctx, req.CustomerID)
	if err != nil {
		return nil, err
	}
	vendor, err := s.accounts.GetVendor(ctx, req.VendorID)
	if err != nil {
		return nil, err
	}

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	customerWallet, err := s.wallets.Get(ctx, customer.WalletAddress)
	if err != nil {
		return nil, err
	}
	if err := wallet.CheckPrecision(op, customerWallet, req.DailyLimit); err != nil {
		return nil, err
	}

	cg, err := s.pendingAuthorization(ctx, customer.ID, vendor.ID)
	if err != nil {
		return nil, err
	}
	if cg == nil {
		cg, err = s.ledger.Authorize(ctx, customer.ID, vendor.ID, vendor.Name, req.DailyLimit, req.ExpirationDays)
		if err != nil {
			return nil, err
		}
	}

	unlock, err := s.locks.Lock(ctx, cg.ID)
	if err != nil {
		return nil, apperrors.Internal(op, "failed to lock authorization", err)
	}
	defer unlock()

	// Another request may have driven this authorization while we waited for the lock.
	cg, err = s.ledger.Get(ctx, cg.ID)
	if err != nil {
		return nil, err
	}
	if cg.Grant != nil && cg.Grant.Status != grants.StatusRequested {
		return nil, apperrors.Conflict(op, "customer "+customer.ID+" already has an authorization in progress for vendor "+vendor.ID)
	}

	grant := cg.Grant
	if grant == nil {
		debit := wallet.AmountFor(customerWallet, cg.DailyLimit)
		grant, err = s.negotiator.NewGrant(customerWallet, grants.AccessSpec{
			Type:       openpayments.AccessTypeOutgoingPayment,
			Actions:    []string{"create", "read", "list"},
			Identifier: customerWallet.ID,
			Limits: &openpayments.AccessLimits{
				DebitAmount: debit,
				Interval:    "R/" + cg.CreatedAt.UTC().Format(time.RFC3339) + "/P1D",
			},
		})
		if err != nil {
			return nil, err
		}
	}

	outcome, requestErr := s.negotiator.Request(ctx, grant, &grants.InteractOptions{
		FinishURI: s.publicBaseURL + "/api/v1/grants/" + cg.ID + "/callback",
	})

	// Stored even when the request failed so a retry can pick the grant up again.
	cg, err = s.ledger.UpdateGrant(context.WithoutCancel(ctx), cg.ID, func(stored *ledger.CustomerGrant) error {
		stored.Grant = grant
		return nil
	})
	if err != nil {
		return nil, err
	}
	if requestErr != nil {
		return nil, requestErr
	}

	pending, ok := outcome.(grants.PendingInteraction)
	if !ok {
		return nil, apperrors.Protocol(op, "outgoing payment grant was issued without interaction")
	}

	s.logger.Info("vendor authorization awaiting customer approval",
		zap.String("grant_id", cg.ID),
		zap.String("customer_id", cg.CustomerID),
		zap.String("vendor_id", cg.VendorID))
	return &AuthorizeVendorResult{Grant: cg, RedirectURL: pending.RedirectURL}, nil
}

// pendingAuthorization returns the pair's live authorization when its grant request has not
// been sent yet, or nil when a new authorization should be created.
func (s *VendorGrantService) pendingAuthorization(ctx context.Context, customerID, vendorID string) (*ledger.CustomerGrant, error) {
	existing, err := s.ledger.FindByPair(ctx, customerID, vendorID)
	if err != nil {
		if apperrors.KindOf(err) == apperrors.KindNotFound {
			return nil, nil
		}
		return nil, err
	}
	if !existing.Live(s.now()) {
		return nil, nil
	}
	if existing.Grant == nil || existing.Grant.Status == grants.StatusRequested {
		return existing, nil
	}
	return nil, nil
}

// CompleteAuthorization finalizes the customer's approval of grantID after the authorization
// server redirects back with interactRef and hash.
func (s *VendorGrantService) CompleteAuthorization(ctx context.Context, grantID, interactRef, hash string) (*ledger.CustomerGrant, error) {
	const op = "services.CompleteAuthorization"

	if interactRef == "" || hash == "" {
		return nil, apperrors.Validation(op, "interact_ref and hash are required")
	}

	unlock, err := s.locks.Lock(ctx, grantID)
	if err != nil {
		return nil, apperrors.Internal(op, "failed to lock authorization", err)
	}
	defer unlock()

	cg, err := s.ledger.Get(ctx, grantID)
	if err != nil {
		return nil, err
	}
	if err := s.checkUsable(op, cg); err != nil {
		return nil, err
	}
	if cg.Grant == nil || cg.Grant.Status != grants.StatusPendingInteraction {
		return nil, apperrors.Protocol(op, "authorization "+grantID+" is not awaiting customer approval")
	}

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	grant := *cg.Grant
	if err := s.negotiator.ContinueGrant(ctx, &grant, interactRef, hash); err != nil {
		return nil, err
	}

	cg, err = s.ledger.UpdateGrant(ctx, grantID, func(stored *ledger.CustomerGrant) error {
		stored.Grant = &grant
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifyAuthorized(ctx, cg, &grant)
	s.logger.Info("vendor authorization approved",
		zap.String("grant_id", cg.ID),
		zap.String("customer_id", cg.CustomerID),
		zap.String("vendor_id", cg.VendorID))
	return cg, nil
}

func (s *VendorGrantService) notifyAuthorized(ctx context.Context, cg *ledger.CustomerGrant, grant *grants.Grant) {
	customer, err := s.accounts.GetCustomer(ctx, cg.CustomerID)
	if err != nil {
		s.logger.Warn("skipping authorization notice", zap.String("grant_id", cg.ID), zap.Error(err))
		return
	}
	notice := notify.AuthorizationNotice{
		CustomerName:  customer.Name,
		CustomerEmail: customer.Email,
		VendorName:    cg.VendorName,
		DailyLimit:    cg.DailyLimit.String(),
		ExpiresAt:     cg.ExpiresAt.Format("2006-01-02"),
		GrantID:       cg.ID,
	}
	if grant.Access.Limits != nil && grant.Access.Limits.DebitAmount != nil {
		notice.AssetCode = grant.Access.Limits.DebitAmount.AssetCode
	}
	if err := s.notifier.AuthorizationCompleted(ctx, notice); err != nil {
		s.logger.Warn("failed to send authorization notice", zap.String("grant_id", cg.ID), zap.Error(err))
	}
}

type ProcessPaymentRequest struct {
	GrantID     string
	Amount      decimal.Decimal
	Description string
}

type ProcessPaymentResult struct {
	GrantID           string
	OutgoingPaymentID string
	Amount            decimal.Decimal
	SpentToday        decimal.Decimal
	Remaining         decimal.Decimal
}

// ProcessPayment charges the customer under an approved authorization. The spend is reserved in
// the ledger first and reversed when the transfer fails.
func (s *VendorGrantService) ProcessPayment(ctx context.Context, req ProcessPaymentRequest) (*ProcessPaymentResult, error) {
	const op = "services.ProcessPayment"

	if !req.Amount.IsPositive() {
		return nil, apperrors.Validation(op, "amount must be greater than zero")
	}

	unlock, err := s.locks.Lock(ctx, req.GrantID)
	if err != nil {
		return nil, apperrors.Internal(op, "failed to lock authorization", err)
	}
	defer unlock()

	cg, err := s.ledger.Get(ctx, req.GrantID)
	if err != nil {
		return nil, err
	}
	if err := s.checkUsable(op, cg); err != nil {
		return nil, err
	}
	if !cg.InteractionComplete() {
		return nil, apperrors.GrantInactive(op, "customer has not approved authorization "+cg.ID)
	}

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	customerWallet, vendorWallet, err := s.pairWallets(ctx, cg)
	if err != nil {
		return nil, err
	}
	if customerWallet.AssetCode != vendorWallet.AssetCode {
		return nil, apperrors.Validation(op, "customer pays in "+customerWallet.AssetCode+" but vendor receives "+vendorWallet.AssetCode)
	}
	for _, w := range []*openpayments.WalletAddress{customerWallet, vendorWallet} {
		if err := wallet.CheckPrecision(op, w, req.Amount); err != nil {
			return nil, err
		}
	}

	spend, err := s.ledger.RecordSpend(ctx, cg.ID, req.Amount)
	if err != nil {
		return nil, err
	}

	failed := func(step string, cause error) (*ProcessPaymentResult, error) {
		if reverseErr := s.ledger.ReverseSpend(context.WithoutCancel(ctx), cg.ID, spend.EntryID); reverseErr != nil {
			s.logger.Error("failed to reverse spend",
				zap.String("grant_id", cg.ID),
				zap.String("entry_id", spend.EntryID),
				zap.Error(reverseErr))
		}
		publish(ctx, s.publisher, s.logger, events.Event{
			Type:       events.TypePaymentFailed,
			GrantID:    cg.ID,
			CustomerID: cg.CustomerID,
			VendorID:   cg.VendorID,
			Amount:     req.Amount.String(),
			AssetCode:  vendorWallet.AssetCode,
			FailedStep: step,
			Reason:     string(apperrors.KindOf(cause)),
			OccurredAt: s.now().UTC(),
		})
		return nil, cause
	}

	grant := *cg.Grant
	if err := s.negotiator.RotateToken(ctx, &grant); err != nil {
		return failed("token_rotation", err)
	}
	// The previous token is no longer valid, so the rotated one is stored before it is used.
	if _, err := s.ledger.UpdateGrant(ctx, cg.ID, func(stored *ledger.CustomerGrant) error {
		stored.Grant = &grant
		return nil
	}); err != nil {
		return failed("token_rotation", err)
	}

	result, err := s.pipeline.ExecuteTransfer(ctx, payments.TransferRequest{
		Sender:      customerWallet,
		Receiver:    vendorWallet,
		Amount:      req.Amount,
		Description: req.Description,
		SenderToken: grant.AccessToken,
		Metadata: map[string]string{
			"grantId":    cg.ID,
			"customerId": cg.CustomerID,
			"vendorId":   cg.VendorID,
		},
	})
	if err != nil {
		step := "transfer"
		var transferErr *payments.TransferError
		if errors.As(err, &transferErr) {
			step = transferErr.Step
		}
		return failed(step, err)
	}

	publish(ctx, s.publisher, s.logger, events.Event{
		Type:              events.TypePaymentSettled,
		GrantID:           cg.ID,
		CustomerID:        cg.CustomerID,
		VendorID:          cg.VendorID,
		Amount:            req.Amount.String(),
		AssetCode:         vendorWallet.AssetCode,
		OutgoingPaymentID: result.OutgoingPayment.ID,
		OccurredAt:        s.now().UTC(),
	})
	s.logger.Info("vendor payment processed",
		zap.String("grant_id", cg.ID),
		zap.String("amount", req.Amount.String()),
		zap.String("outgoing_payment_id", result.OutgoingPayment.ID))
	return &ProcessPaymentResult{
		GrantID:           cg.ID,
		OutgoingPaymentID: result.OutgoingPayment.ID,
		Amount:            req.Amount,
		SpentToday:        spend.SpentToday,
		Remaining:         spend.Remaining,
	}, nil
}

func (s *VendorGrantService) pairWallets(ctx context.Context, cg *ledger.CustomerGrant) (*openpayments.WalletAddress, *openpayments.WalletAddress, error) {
	customer, err := s.accounts.GetCustomer(ctx, cg.CustomerID)
	if err != nil {
		return nil, nil, err
	}
	vendor, err := s.accounts.GetVendor(ctx, cg.VendorID)
	if err != nil {
		return nil, nil, err
	}
	customerWallet, err := s.wallets.Get(ctx, customer.WalletAddress)
	if err != nil {
		return nil, nil, err
	}
	vendorWallet, err := s.wallets.Get(ctx, vendor.WalletAddress)
	if err != nil {
		return nil, nil, err
	}
	return customerWallet, vendorWallet, nil
}

func (s *VendorGrantService) checkUsable(op string, cg *ledger.CustomerGrant) error {
	switch {
	case cg.Status == ledger.StatusExpired || cg.Expired(s.now()):
		return apperrors.GrantExpired(op, "authorization "+cg.ID+" has expired")
	case cg.Status == ledger.StatusSuspended:
		return apperrors.GrantInactive(op, "authorization "+cg.ID+" is suspended")
	}
	return nil
}

// SuspendGrant stops further payments under grantID and revokes its token at the authorization
// server. A failed revocation is logged; the ledger suspension stands either way.
func (s *VendorGrantService) SuspendGrant(ctx context.Context, grantID string) (*ledger.CustomerGrant, error) {
	const op = "services.SuspendGrant"

	unlock, err := s.locks.Lock(ctx, grantID)
	if err != nil {
		return nil, apperrors.Internal(op, "failed to lock authorization", err)
	}
	defer unlock()

	cg, err := s.ledger.Suspend(ctx, grantID)
	if err != nil {
		return nil, err
	}
	if cg.Grant == nil || !grants.CanTransition(cg.Grant.Status, grants.StatusRevoked) {
		return cg, nil
	}

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	grant := *cg.Grant
	if err := s.negotiator.RevokeGrant(ctx, &grant); err != nil {
		s.logger.Warn("failed to revoke suspended grant", zap.String("grant_id", grantID), zap.Error(err))
		return cg, nil
	}
	return s.ledger.UpdateGrant(ctx, grantID, func(stored *ledger.CustomerGrant) error {
		stored.Grant = &grant
		return nil
	})
}

func (s *VendorGrantService) GetGrant(ctx context.Context, grantID string) (*ledger.CustomerGrant, error) {
	return s.ledger.Get(ctx, grantID)
}

func (s *VendorGrantService) ListCustomerGrants(ctx context.Context, customerID string) ([]*ledger.CustomerGrant, error) {
	if _, err := s.accounts.GetCustomer(ctx, customerID); err != nil {
		return nil, err
	}
	return s.ledger.ListByCustomer(ctx, customerID)
}

// Sweep expires every authorization past its expiry and returns how many changed.
func (s *VendorGrantService) Sweep(ctx context.Context) (int, error) {
	return s.ledger.ExpireSweep(ctx, s.now())
}
