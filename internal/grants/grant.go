// Package grants negotiates GNAP grants with Open Payments authorization servers and tracks each
// grant through its lifecycle.
package grants

import (
	"fmt"
	"time"

	"github.com/cyphera/grantpay/internal/apperrors"
	"github.com/cyphera/grantpay/internal/client/openpayments"
)

// Status is the lifecycle state of a Grant.
type Status string

const (
	StatusRequested          Status = "REQUESTED"
	StatusPendingInteraction Status = "PENDING_INTERACTION"
	StatusActive             Status = "ACTIVE"
	StatusExpired            Status = "EXPIRED"
	StatusRevoked            Status = "REVOKED"
)

var transitions = map[Status][]Status{
	StatusRequested:          {StatusPendingInteraction, StatusActive},
	StatusPendingInteraction: {StatusActive, StatusExpired, StatusRevoked},
	StatusActive:             {StatusExpired, StatusRevoked},
}

// CanTransition reports whether a grant may move from one status to another.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transitions are possible.
func (s Status) Terminal() bool {
	return s == StatusExpired || s == StatusRevoked
}

// AccessSpec describes the rights requested in a grant.
type AccessSpec struct {
	Type       string                    `json:"type"`
	Actions    []string                  `json:"actions"`
	Identifier string                    `json:"identifier,omitempty"`
	Limits     *openpayments.AccessLimits `json:"limits,omitempty"`
}

func (a AccessSpec) validate() error {
	switch a.Type {
	case openpayments.AccessTypeIncomingPayment, openpayments.AccessTypeOutgoingPayment, openpayments.AccessTypeQuote:
	default:
		return apperrors.Validation("grants.AccessSpec", fmt.Sprintf("unsupported access type %q", a.Type))
	}
	if len(a.Actions) == 0 {
		return apperrors.Validation("grants.AccessSpec", "at least one action is required")
	}
	return nil
}

func (a AccessSpec) item() openpayments.AccessItem {
	return openpayments.AccessItem{
		Type:       a.Type,
		Actions:    a.Actions,
		Identifier: a.Identifier,
		Limits:     a.Limits,
	}
}

// Grant is one negotiated grant. Its access token belongs to this grant alone.
type Grant struct {
	ID               string     `json:"id"`
	RequestingWallet string     `json:"requestingWallet"`
	AuthServer       string     `json:"authServer"`
	ResourceServer   string     `json:"resourceServer"`
	Access           AccessSpec `json:"access"`
	Interactive      bool       `json:"interactive"`

	ClientNonce   string `json:"clientNonce,omitempty"`
	InteractNonce string `json:"interactNonce,omitempty"`
	FinishURI     string `json:"finishUri,omitempty"`
	RedirectURL   string `json:"redirectUrl,omitempty"`
	ContinueURI   string `json:"continueUri,omitempty"`
	ContinueToken string `json:"continueToken,omitempty"`
	ContinueWait  int    `json:"continueWait,omitempty"`

	AccessToken    string     `json:"accessToken,omitempty"`
	ManageURL      string     `json:"manageUrl,omitempty"`
	TokenExpiresAt *time.Time `json:"tokenExpiresAt,omitempty"`

	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Transition moves the grant to status to, rejecting illegal moves with a protocol error.
func (g *Grant) Transition(to Status, now time.Time) error {
	if !CanTransition(g.Status, to) {
		return apperrors.Protocol("grants.Transition",
			fmt.Sprintf("grant %s cannot move from %s to %s", g.ID, g.Status, to))
	}
	g.Status = to
	g.UpdatedAt = now
	return nil
}

// Outcome is the result of a grant request or continuation. It is exactly one of
// PendingInteraction or Active; callers type-switch over it.
type Outcome interface {
	outcome()
}

// Continuation identifies where and how to continue a pending grant.
type Continuation struct {
	URI         string
	AccessToken string
	Wait        int
}

// PendingInteraction means the user must approve the grant at RedirectURL.
type PendingInteraction struct {
	RedirectURL   string
	InteractNonce string
	Continuation  Continuation
}

// Active means the grant is finalized and carries an access token.
type Active struct {
	AccessToken string
	ManageURL   string
	ExpiresIn   int
}

func (PendingInteraction) outcome() {}
func (Active) outcome()             {}

// outcomeFrom classifies an authorization server response. A response that is both, or
// neither, is a protocol error.
func outcomeFrom(op string, resp *openpayments.GrantResponse) (Outcome, error) {
	if resp == nil {
		return nil, apperrors.Protocol(op, "empty grant response")
	}
	hasInteract := resp.Interact != nil && resp.Interact.Redirect != ""
	hasToken := resp.AccessToken != nil && resp.AccessToken.Value != ""

	switch {
	case hasInteract && hasToken:
		return nil, apperrors.Protocol(op, "grant response carries both an interaction and an access token")
	case hasInteract:
		if resp.Continue == nil || resp.Continue.URI == "" || resp.Continue.AccessToken.Value == "" {
			return nil, apperrors.Protocol(op, "pending grant response has no continuation")
		}
		return PendingInteraction{
			RedirectURL:   resp.Interact.Redirect,
			InteractNonce: resp.Interact.Finish,
			Continuation: Continuation{
				URI:         resp.Continue.URI,
				AccessToken: resp.Continue.AccessToken.Value,
				Wait:        resp.Continue.Wait,
			},
		}, nil
	case hasToken:
		return Active{
			AccessToken: resp.AccessToken.Value,
			ManageURL:   resp.AccessToken.Manage,
			ExpiresIn:   resp.AccessToken.ExpiresIn,
		}, nil
	default:
		return nil, apperrors.Protocol(op, "grant response carries neither an interaction nor an access token")
	}
}
