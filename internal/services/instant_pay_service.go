package services

import (
	"context"
	"time"

	"github.com/cyphera/grantpay/internal/apperrors"
	"github.com/cyphera/grantpay/internal/client/openpayments"
	"github.com/cyphera/grantpay/internal/events"
	"github.com/cyphera/grantpay/internal/grants"
	"github.com/cyphera/grantpay/internal/payments"
	"github.com/cyphera/grantpay/internal/session"
	"github.com/cyphera/grantpay/internal/wallet"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// InstantPayService runs one-off payments that the sender approves interactively.
type InstantPayService struct {
	wallets       WalletResolver
	negotiator    *grants.Negotiator
	pipeline      *payments.Pipeline
	sessions      *session.Cache
	publisher     events.Publisher
	publicBaseURL string
	sessionTTL    time.Duration
	timeout       time.Duration
	logger        *zap.Logger
}

type InstantPayConfig struct {
	PublicBaseURL string
	SessionTTL    time.Duration
	Timeout       time.Duration
}

func NewInstantPayService(
	wallets WalletResolver,
	negotiator *grants.Negotiator,
	pipeline *payments.Pipeline,
	sessions *session.Cache,
	publisher events.Publisher,
	cfg InstantPayConfig,
	logger *zap.Logger,
) *InstantPayService {
	return &InstantPayService{
		wallets:       wallets,
		negotiator:    negotiator,
		pipeline:      pipeline,
		sessions:      sessions,
		publisher:     publisher,
		publicBaseURL: cfg.PublicBaseURL,
		sessionTTL:    cfg.SessionTTL,
		timeout:       cfg.Timeout,
		logger:        logger,
	}
}

type StartSessionRequest struct {
	SessionID      string
	SenderWallet   string
	ReceiverWallet string
	Amount         decimal.Decimal
	Description    string
}

type StartSessionResult struct {
	SessionID   string
	RedirectURL string
	Quote       *openpayments.Quote
	ExpiresAt   time.Time
}

// StartSession prepares a payment and returns where the sender must approve it.
func (s *InstantPayService) StartSession(ctx context.Context, req StartSessionRequest) (*StartSessionResult, error) {
	const op = "services.StartSession"

	if req.SessionID == "" {
		req.SessionID = session.NewID()
	}
	if err := session.ValidateID(req.SessionID); err != nil {
		return nil, err
	}
	if !req.Amount.IsPositive() {
		return nil, apperrors.Validation(op, "amount must be greater than zero")
	}

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	sender, err := s.wallets.Get(ctx, req.SenderWallet)
	if err != nil {
		return nil, err
	}
	receiver, err := s.wallets.Get(ctx, req.ReceiverWallet)
	if err != nil {
		return nil, err
	}
	if err := wallet.CheckPrecision(op, receiver, req.Amount); err != nil {
		return nil, err
	}

	incoming, err := s.pipeline.CreateIncomingPayment(ctx, receiver, req.Amount, req.Description, s.pipeline.IncomingPaymentExpiry())
	if err != nil {
		return nil, err
	}
	quote, err := s.pipeline.CreateQuote(ctx, sender, incoming.ID)
	if err != nil {
		return nil, err
	}

	debit := quote.DebitAmount
	receive := quote.ReceiveAmount
	grant, err := s.negotiator.NewGrant(sender, grants.AccessSpec{
		Type:       openpayments.AccessTypeOutgoingPayment,
		Actions:    []string{"create", "read"},
		Identifier: sender.ID,
		Limits:     &openpayments.AccessLimits{DebitAmount: &debit, ReceiveAmount: &receive},
	})
	if err != nil {
		return nil, err
	}
	outcome, err := s.negotiator.Request(ctx, grant, &grants.InteractOptions{
		FinishURI: s.publicBaseURL + "/api/v1/sessions/" + req.SessionID + "/callback",
	})
	if err != nil {
		return nil, err
	}

	var redirectURL string
	switch o := outcome.(type) {
	case grants.PendingInteraction:
		redirectURL = o.RedirectURL
	case grants.Active:
		return nil, apperrors.Protocol(op, "outgoing payment grant was issued without interaction")
	default:
		return nil, apperrors.Protocol(op, "unrecognized grant outcome")
	}

	sess := &session.PaymentSession{
		ID:              req.SessionID,
		SenderWallet:    sender.ID,
		ReceiverWallet:  receiver.ID,
		Sender:          sender,
		Receiver:        receiver,
		Amount:          req.Amount,
		Description:     req.Description,
		IncomingPayment: incoming,
		Quote:           quote,
		Grant:           grant,
	}
	if err := s.sessions.Put(ctx, sess, s.sessionTTL); err != nil {
		return nil, err
	}

	s.logger.Info("payment session started",
		zap.String("session_id", sess.ID),
		zap.String("quote_id", quote.ID))
	return &StartSessionResult{
		SessionID:   sess.ID,
		RedirectURL: redirectURL,
		Quote:       quote,
		ExpiresAt:   sess.ExpiresAt,
	}, nil
}

type ApproveSessionResult struct {
	SessionID       string
	OutgoingPayment *openpayments.OutgoingPayment
}

// ApproveSession finishes a session after the sender's interaction. The session is consumed; it
// is put back only when the interaction hash does not match, so a genuine callback can still
// arrive.
func (s *InstantPayService) ApproveSession(ctx context.Context, sessionID, interactRef, hash string) (*ApproveSessionResult, error) {
	if interactRef == "" || hash == "" {
		return nil, apperrors.Validation("services.ApproveSession", "interact_ref and hash are required")
	}

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	sess, err := s.sessions.Take(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if err := s.negotiator.ContinueGrant(ctx, sess.Grant, interactRef, hash); err != nil {
		if apperrors.KindOf(err) == apperrors.KindAuthentication {
			if restoreErr := s.sessions.Restore(ctx, sess); restoreErr != nil {
				s.logger.Warn("failed to restore session after hash mismatch",
					zap.String("session_id", sessionID),
					zap.Error(restoreErr))
			}
		}
		return nil, err
	}

	metadata := map[string]string{"sessionId": sess.ID}
	if sess.Description != "" {
		metadata["description"] = sess.Description
	}
	outgoing, err := s.pipeline.CreateOutgoingPayment(ctx, sess.Sender, sess.Quote, sess.Grant.AccessToken, metadata)
	if err != nil {
		publish(ctx, s.publisher, s.logger, events.Event{
			Type:       events.TypePaymentFailed,
			SessionID:  sess.ID,
			Amount:     sess.Amount.String(),
			AssetCode:  sess.Receiver.AssetCode,
			FailedStep: payments.StepOutgoingPayment,
			Reason:     string(apperrors.KindOf(err)),
			OccurredAt: time.Now().UTC(),
		})
		return nil, err
	}

	publish(ctx, s.publisher, s.logger, events.Event{
		Type:              events.TypePaymentSettled,
		SessionID:         sess.ID,
		Amount:            sess.Amount.String(),
		AssetCode:         sess.Receiver.AssetCode,
		OutgoingPaymentID: outgoing.ID,
		OccurredAt:        time.Now().UTC(),
	})
	s.logger.Info("payment session approved",
		zap.String("session_id", sess.ID),
		zap.String("outgoing_payment_id", outgoing.ID))
	return &ApproveSessionResult{SessionID: sess.ID, OutgoingPayment: outgoing}, nil
}
