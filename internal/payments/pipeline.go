// Package payments creates the incoming payment, quote and outgoing payment that make up one
// Open Payments transfer.
package payments

import (
	"context"
	"time"

	"github.com/cyphera/grantpay/internal/apperrors"
	"github.com/cyphera/grantpay/internal/client/openpayments"
	"github.com/cyphera/grantpay/internal/grants"
	"github.com/cyphera/grantpay/internal/wallet"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Transfer steps, in execution order.
const (
	StepIncomingPayment = "incoming_payment"
	StepQuote           = "quote"
	StepOutgoingPayment = "outgoing_payment"
)

// GrantRequester obtains non-interactive grants for resource server calls.
type GrantRequester interface {
	RequestGrant(ctx context.Context, wallet *openpayments.WalletAddress, spec grants.AccessSpec, interact *grants.InteractOptions) (*grants.Grant, error)
}

// TransferRequest moves Amount (in the receiver's asset) from Sender to Receiver. SenderToken is
// the already-rotated outgoing-payment token for Sender.
type TransferRequest struct {
	Sender      *openpayments.WalletAddress
	Receiver    *openpayments.WalletAddress
	Amount      decimal.Decimal
	Description string
	SenderToken string
	Metadata    map[string]string
}

// TransferResult holds the resources created by a successful transfer.
type TransferResult struct {
	IncomingPayment *openpayments.IncomingPayment
	Quote           *openpayments.Quote
	OutgoingPayment *openpayments.OutgoingPayment
}

// TransferError records which step of a transfer failed. The wrapped error keeps its kind.
type TransferError struct {
	Step string
	Err  error
}

func (e *TransferError) Error() string {
	return "transfer failed at " + e.Step + ": " + e.Err.Error()
}

func (e *TransferError) Unwrap() error {
	return e.Err
}

// Pipeline runs transfers against Open Payments resource servers. Nothing is retried here.
type Pipeline struct {
	grants      GrantRequester
	resources   openpayments.ResourceClient
	incomingTTL time.Duration
	logger      *zap.Logger
	now         func() time.Time
}

// NewPipeline creates a Pipeline. incomingTTL bounds how long created incoming payments accept
// funds.
func NewPipeline(grants GrantRequester, resources openpayments.ResourceClient, incomingTTL time.Duration, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		grants:      grants,
		resources:   resources,
		incomingTTL: incomingTTL,
		logger:      logger,
		now:         time.Now,
	}
}

// IncomingPaymentExpiry is the expiry the pipeline would give an incoming payment created now.
func (p *Pipeline) IncomingPaymentExpiry() time.Time {
	return p.now().UTC().Add(p.incomingTTL)
}

// CreateIncomingPayment creates an incoming payment of amount on receiver's wallet.
func (p *Pipeline) CreateIncomingPayment(ctx context.Context, receiver *openpayments.WalletAddress, amount decimal.Decimal, description string, expiresAt time.Time) (*openpayments.IncomingPayment, error) {
	const op = "payments.CreateIncomingPayment"

	if !amount.IsPositive() {
		return nil, apperrors.Validation(op, "amount must be positive")
	}

	grant, err := p.grants.RequestGrant(ctx, receiver, grants.AccessSpec{
		Type:    openpayments.AccessTypeIncomingPayment,
		Actions: []string{"create", "read", "complete"},
	}, nil)
	if err != nil {
		return nil, err
	}

	req := openpayments.IncomingPaymentRequest{
		WalletAddress:  receiver.ID,
		IncomingAmount: wallet.AmountFor(receiver, amount),
	}
	if !expiresAt.IsZero() {
		exp := expiresAt.UTC()
		req.ExpiresAt = &exp
	}
	if description != "" {
		req.Metadata = map[string]string{"description": description}
	}

	payment, err := p.resources.CreateIncomingPayment(ctx, receiver.ResourceServer, grant.AccessToken, req)
	if err != nil {
		return nil, classify(op, err)
	}
	p.logger.Info("incoming payment created",
		zap.String("incoming_payment_id", payment.ID),
		zap.String("receiver", receiver.ID))
	return payment, nil
}

// CreateQuote quotes paying incomingPaymentID from sender's wallet.
func (p *Pipeline) CreateQuote(ctx context.Context, sender *openpayments.WalletAddress, incomingPaymentID string) (*openpayments.Quote, error) {
	const op = "payments.CreateQuote"

	if incomingPaymentID == "" {
		return nil, apperrors.Validation(op, "incoming payment id is required")
	}

	grant, err := p.grants.RequestGrant(ctx, sender, grants.AccessSpec{
		Type:    openpayments.AccessTypeQuote,
		Actions: []string{"create", "read"},
	}, nil)
	if err != nil {
		return nil, err
	}

	quote, err := p.resources.CreateQuote(ctx, sender.ResourceServer, grant.AccessToken, openpayments.QuoteRequest{
		WalletAddress: sender.ID,
		Receiver:      incomingPaymentID,
		Method:        "ilp",
	})
	if err != nil {
		return nil, classify(op, err)
	}
	p.logger.Info("quote created",
		zap.String("quote_id", quote.ID),
		zap.String("debit_amount", quote.DebitAmount.Value),
		zap.String("asset_code", quote.DebitAmount.AssetCode))
	return quote, nil
}

// CreateOutgoingPayment pays quote from sender's wallet using token. An expired quote is rejected
// before any call is made.
func (p *Pipeline) CreateOutgoingPayment(ctx context.Context, sender *openpayments.WalletAddress, quote *openpayments.Quote, token string, metadata map[string]string) (*openpayments.OutgoingPayment, error) {
	const op = "payments.CreateOutgoingPayment"

	if quote == nil || quote.ID == "" {
		return nil, apperrors.Validation(op, "quote is required")
	}
	if quote.ExpiresAt != nil && !p.now().Before(*quote.ExpiresAt) {
		return nil, apperrors.Validation(op, "quote "+quote.ID+" has expired, restart the transfer")
	}
	if token == "" {
		return nil, apperrors.Validation(op, "outgoing payment token is required")
	}

	payment, err := p.resources.CreateOutgoingPayment(ctx, sender.ResourceServer, token, openpayments.OutgoingPaymentRequest{
		WalletAddress: sender.ID,
		QuoteID:       quote.ID,
		Metadata:      metadata,
	})
	if err != nil {
		return nil, classify(op, err)
	}
	p.logger.Info("outgoing payment created",
		zap.String("outgoing_payment_id", payment.ID),
		zap.String("quote_id", quote.ID))
	return payment, nil
}

// ExecuteTransfer runs incoming payment, quote and outgoing payment in that order. A failure is
// returned as a *TransferError naming the step.
func (p *Pipeline) ExecuteTransfer(ctx context.Context, req TransferRequest) (*TransferResult, error) {
	if req.Sender == nil || req.Receiver == nil {
		return nil, apperrors.Validation("payments.ExecuteTransfer", "sender and receiver wallets are required")
	}

	metadata := req.Metadata
	if req.Description != "" {
		metadata = mergeMetadata(metadata, map[string]string{"description": req.Description})
	}

	incoming, err := p.CreateIncomingPayment(ctx, req.Receiver, req.Amount, req.Description, p.IncomingPaymentExpiry())
	if err != nil {
		return nil, p.stepFailed(StepIncomingPayment, err)
	}
	quote, err := p.CreateQuote(ctx, req.Sender, incoming.ID)
	if err != nil {
		return nil, p.stepFailed(StepQuote, err)
	}
	outgoing, err := p.CreateOutgoingPayment(ctx, req.Sender, quote, req.SenderToken, metadata)
	if err != nil {
		return nil, p.stepFailed(StepOutgoingPayment, err)
	}

	return &TransferResult{IncomingPayment: incoming, Quote: quote, OutgoingPayment: outgoing}, nil
}

func (p *Pipeline) stepFailed(step string, err error) error {
	p.logger.Warn("transfer step failed", zap.String("step", step), zap.Error(err))
	return &TransferError{Step: step, Err: err}
}

// classify maps resource server failures to error kinds. Grant-limit rejections become
// LimitExceeded; everything else is a downstream failure.
func classify(op string, err error) error {
	if openpayments.IsInsufficientGrant(err) {
		return apperrors.LimitExceeded(op, "grant limit exceeded at the resource server", err)
	}
	return apperrors.Downstream(op, "resource server request failed", err)
}

func mergeMetadata(base, extra map[string]string) map[string]string {
	out := make(map[string]string, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}
