package grants

import (
	"context"
	"strings"
	"time"

	"github.com/cyphera/grantpay/internal/apperrors"
	"github.com/cyphera/grantpay/internal/client/openpayments"
	"github.com/cyphera/grantpay/internal/interaction"
	"github.com/cyphera/grantpay/internal/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// InteractOptions requests an interactive grant that finishes by redirecting to FinishURI.
type InteractOptions struct {
	FinishURI string
}

// Negotiator drives grants through request, continuation, rotation and revocation. It holds no
// per-grant state; everything lives on the Grant passed in.
type Negotiator struct {
	auth         openpayments.AuthClient
	clientWallet string
	logger       *zap.Logger
	now          func() time.Time
}

// NewNegotiator creates a Negotiator identifying itself as clientWallet.
func NewNegotiator(auth openpayments.AuthClient, clientWallet string, logger *zap.Logger) *Negotiator {
	return &Negotiator{
		auth:         auth,
		clientWallet: clientWallet,
		logger:       logger,
		now:          time.Now,
	}
}

// NewGrant builds a REQUESTED grant against wallet's authorization server. Nothing is sent. The
// server URL is recorded without a trailing slash, the form the interaction hash is computed over.
func (n *Negotiator) NewGrant(wallet *openpayments.WalletAddress, spec AccessSpec) (*Grant, error) {
	if wallet == nil || strings.TrimRight(wallet.AuthServer, "/") == "" {
		return nil, apperrors.Validation("grants.NewGrant", "wallet has no authorization server")
	}
	if err := spec.validate(); err != nil {
		return nil, err
	}
	now := n.now().UTC()
	return &Grant{
		ID:               uuid.NewString(),
		RequestingWallet: wallet.ID,
		AuthServer:       strings.TrimRight(wallet.AuthServer, "/"),
		ResourceServer:   wallet.ResourceServer,
		Access:           spec,
		Status:           StatusRequested,
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

// RequestGrant builds and requests a grant in one step.
func (n *Negotiator) RequestGrant(ctx context.Context, wallet *openpayments.WalletAddress, spec AccessSpec, interact *InteractOptions) (*Grant, error) {
	g, err := n.NewGrant(wallet, spec)
	if err != nil {
		return nil, err
	}
	if _, err := n.Request(ctx, g, interact); err != nil {
		return nil, err
	}
	return g, nil
}

// Request sends the grant request for g, which must be REQUESTED, and applies the outcome. When
// the authorization server cannot be reached g stays REQUESTED and may be requested again.
func (n *Negotiator) Request(ctx context.Context, g *Grant, interact *InteractOptions) (Outcome, error) {
	const op = "grants.Request"

	if g.Status != StatusRequested {
		return nil, apperrors.Protocol(op, "grant "+g.ID+" is "+string(g.Status)+", not REQUESTED")
	}

	req := openpayments.GrantRequest{
		AccessToken: openpayments.AccessTokenRequest{Access: []openpayments.AccessItem{g.Access.item()}},
		Client:      n.clientWallet,
	}
	g.Interactive = interact != nil
	if interact != nil {
		if interact.FinishURI == "" {
			return nil, apperrors.Validation(op, "interactive grants need a finish URI")
		}
		g.ClientNonce = uuid.NewString()
		g.FinishURI = interact.FinishURI
		req.Interact = &openpayments.InteractRequest{
			Start: []string{"redirect"},
			Finish: &openpayments.InteractFinish{
				Method: "redirect",
				URI:    interact.FinishURI,
				Nonce:  g.ClientNonce,
			},
		}
	}

	resp, err := n.auth.RequestGrant(ctx, g.AuthServer, req)
	if err != nil {
		n.logger.Error("grant request failed",
			zap.String("grant_id", g.ID),
			zap.String("auth_server", g.AuthServer),
			zap.Error(err))
		return nil, apperrors.Downstream(op, "authorization server rejected or did not answer the grant request", err)
	}

	outcome, err := outcomeFrom(op, resp)
	if err != nil {
		return nil, err
	}

	now := n.now().UTC()
	switch o := outcome.(type) {
	case PendingInteraction:
		if !g.Interactive {
			return nil, apperrors.Protocol(op, "non-interactive grant request answered with an interaction")
		}
		g.RedirectURL = o.RedirectURL
		g.InteractNonce = o.InteractNonce
		g.ContinueURI = o.Continuation.URI
		g.ContinueToken = o.Continuation.AccessToken
		g.ContinueWait = o.Continuation.Wait
		if err := g.Transition(StatusPendingInteraction, now); err != nil {
			return nil, err
		}
	case Active:
		if g.Interactive {
			return nil, apperrors.Protocol(op, "interactive grant request answered with an access token")
		}
		n.applyToken(g, o, now)
		if resp.Continue != nil {
			g.ContinueURI = resp.Continue.URI
			g.ContinueToken = resp.Continue.AccessToken.Value
		}
		if err := g.Transition(StatusActive, now); err != nil {
			return nil, err
		}
	default:
		return nil, apperrors.Protocol(op, "unrecognized grant outcome")
	}

	n.logger.Info("grant requested",
		zap.String("grant_id", g.ID),
		zap.String("status", string(g.Status)),
		zap.String("access_type", g.Access.Type))
	return outcome, nil
}

// ContinueGrant finalizes a pending grant after the user's interaction. The interaction hash is
// verified before the authorization server is contacted; on mismatch g is left untouched.
func (n *Negotiator) ContinueGrant(ctx context.Context, g *Grant, interactRef, hash string) error {
	const op = "grants.ContinueGrant"

	if g.Status != StatusPendingInteraction {
		return apperrors.Protocol(op, "grant "+g.ID+" is "+string(g.Status)+", not PENDING_INTERACTION")
	}
	if err := interaction.Check(hash, g.ClientNonce, g.InteractNonce, interactRef, g.AuthServer); err != nil {
		n.logger.Warn("interaction hash mismatch, possible tampering or replay",
			zap.String("grant_id", g.ID),
			zap.String("auth_server", g.AuthServer))
		return err
	}

	resp, err := n.auth.ContinueGrant(ctx, g.ContinueURI, g.ContinueToken, interactRef)
	if err != nil {
		n.logger.Error("grant continuation failed", zap.String("grant_id", g.ID), zap.Error(err))
		return apperrors.Downstream(op, "authorization server rejected the grant continuation", err)
	}

	outcome, err := outcomeFrom(op, resp)
	if err != nil {
		return err
	}

	now := n.now().UTC()
	switch o := outcome.(type) {
	case Active:
		n.applyToken(g, o, now)
		if resp.Continue != nil {
			g.ContinueURI = resp.Continue.URI
			g.ContinueToken = resp.Continue.AccessToken.Value
		}
		if err := g.Transition(StatusActive, now); err != nil {
			return err
		}
	case PendingInteraction:
		return apperrors.Protocol(op, "grant continuation is still pending interaction")
	default:
		return apperrors.Protocol(op, "unrecognized grant outcome")
	}

	n.logger.Info("grant finalized", zap.String("grant_id", g.ID))
	return nil
}

// RotateToken exchanges g's access token for a fresh one and stores it on g.
func (n *Negotiator) RotateToken(ctx context.Context, g *Grant) error {
	const op = "grants.RotateToken"

	if g.Status != StatusActive {
		return apperrors.Protocol(op, "grant "+g.ID+" is "+string(g.Status)+", not ACTIVE")
	}
	if g.ManageURL == "" || g.AccessToken == "" {
		return apperrors.Protocol(op, "grant "+g.ID+" has no manageable access token")
	}

	token, err := n.auth.RotateToken(ctx, g.ManageURL, g.AccessToken)
	if err != nil {
		n.logger.Error("token rotation failed",
			zap.String("grant_id", g.ID),
			logger.Token("access_token", g.AccessToken),
			zap.Error(err))
		return apperrors.Downstream(op, "authorization server rejected the token rotation", err)
	}

	now := n.now().UTC()
	n.applyToken(g, Active{AccessToken: token.Value, ManageURL: token.Manage, ExpiresIn: token.ExpiresIn}, now)
	g.UpdatedAt = now
	n.logger.Debug("access token rotated",
		zap.String("grant_id", g.ID),
		logger.Token("access_token", g.AccessToken))
	return nil
}

// RevokeGrant revokes g's access token at the authorization server (when it has one) and marks
// g REVOKED.
func (n *Negotiator) RevokeGrant(ctx context.Context, g *Grant) error {
	const op = "grants.RevokeGrant"

	if !CanTransition(g.Status, StatusRevoked) {
		return apperrors.Protocol(op, "grant "+g.ID+" is "+string(g.Status)+" and cannot be revoked")
	}
	if g.Status == StatusActive && g.ManageURL != "" && g.AccessToken != "" {
		if err := n.auth.RevokeToken(ctx, g.ManageURL, g.AccessToken); err != nil {
			n.logger.Error("token revocation failed", zap.String("grant_id", g.ID), zap.Error(err))
			return apperrors.Downstream(op, "authorization server rejected the revocation", err)
		}
	}
	g.AccessToken = ""
	return g.Transition(StatusRevoked, n.now().UTC())
}

func (n *Negotiator) applyToken(g *Grant, a Active, now time.Time) {
	g.AccessToken = a.AccessToken
	if a.ManageURL != "" {
		g.ManageURL = a.ManageURL
	}
	g.TokenExpiresAt = nil
	if a.ExpiresIn > 0 {
		expires := now.Add(time.Duration(a.ExpiresIn) * time.Second)
		g.TokenExpiresAt = &expires
	}
}
