// Package session caches in-flight payment sessions between their start and the user's approval.
package session

import (
	"context"
	"encoding/json"
	"regexp"
	"time"

	"github.com/cyphera/grantpay/internal/apperrors"
	"github.com/cyphera/grantpay/internal/client/openpayments"
	"github.com/cyphera/grantpay/internal/grants"
	"github.com/cyphera/grantpay/internal/store"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

const keyPrefix = "session:"

// Entries are kept this long past their expiry so an expired session can be told apart from an
// unknown one.
const expiredGrace = 10 * time.Minute

var idPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// PaymentSession is an instant payment waiting for the sender's approval.
type PaymentSession struct {
	ID              string                        `json:"id"`
	SenderWallet    string                        `json:"senderWallet"`
	ReceiverWallet  string                        `json:"receiverWallet"`
	Sender          *openpayments.WalletAddress   `json:"sender"`
	Receiver        *openpayments.WalletAddress   `json:"receiver"`
	Amount          decimal.Decimal               `json:"amount"`
	Description     string                        `json:"description,omitempty"`
	IncomingPayment *openpayments.IncomingPayment `json:"incomingPayment"`
	Quote           *openpayments.Quote           `json:"quote"`
	Grant           *grants.Grant                 `json:"grant"`
	ExpiresAt       time.Time                     `json:"expiresAt"`
	CreatedAt       time.Time                     `json:"createdAt"`
}

// ValidateID checks a client-chosen session id.
func ValidateID(id string) error {
	if !idPattern.MatchString(id) {
		return apperrors.Validation("session.ValidateID", "session id must be 1-128 characters of letters, digits, '-' or '_'")
	}
	return nil
}

// NewID returns a fresh session id.
func NewID() string {
	return uuid.NewString()
}

// Cache stores sessions in a store.Store. Each session can be taken once.
type Cache struct {
	store store.Store
	now   func() time.Time
}

// NewCache creates a Cache.
func NewCache(s store.Store) *Cache {
	return &Cache{store: s, now: time.Now}
}

// Put stores s until ttl elapses. An existing session with the same id is a conflict.
func (c *Cache) Put(ctx context.Context, s *PaymentSession, ttl time.Duration) error {
	const op = "session.Put"

	if err := ValidateID(s.ID); err != nil {
		return err
	}
	if ttl <= 0 {
		return apperrors.Validation(op, "session ttl must be positive")
	}

	now := c.now().UTC()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.ExpiresAt = now.Add(ttl)

	raw, err := json.Marshal(s)
	if err != nil {
		return apperrors.Internal(op, "failed to encode session", err)
	}
	return c.create(ctx, op, s.ID, raw, ttl+expiredGrace)
}

// Take atomically removes and returns the session. Concurrent callers for the same id get it at
// most once.
func (c *Cache) Take(ctx context.Context, id string) (*PaymentSession, error) {
	const op = "session.Take"

	if err := ValidateID(id); err != nil {
		return nil, err
	}
	raw, err := c.store.Take(ctx, keyPrefix+id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperrors.SessionNotFound(op, "session "+id+" not found")
	}
	if err != nil {
		return nil, apperrors.Internal(op, "failed to read session", err)
	}

	var s PaymentSession
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, apperrors.Internal(op, "corrupt session record", err)
	}
	if !c.now().Before(s.ExpiresAt) {
		return nil, apperrors.SessionExpired(op, "session "+id+" has expired")
	}
	return &s, nil
}

// Restore puts back a taken session, e.g. after a failed interaction check, so the sender may
// retry. Expired sessions are not restored, and an id that is in use again is a conflict.
func (c *Cache) Restore(ctx context.Context, s *PaymentSession) error {
	const op = "session.Restore"

	remaining := s.ExpiresAt.Sub(c.now())
	if remaining <= 0 {
		return apperrors.SessionExpired(op, "session "+s.ID+" has expired")
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return apperrors.Internal(op, "failed to encode session", err)
	}
	return c.create(ctx, op, s.ID, raw, remaining+expiredGrace)
}

// create writes the session only if its id is free, so a session taken by another caller is
// never resurrected over a newer entry.
func (c *Cache) create(ctx context.Context, op, id string, raw []byte, ttl time.Duration) error {
	err := c.store.Create(ctx, keyPrefix+id, raw, ttl)
	if errors.Is(err, store.ErrExists) {
		return apperrors.Conflict(op, "session "+id+" already exists")
	}
	if err != nil {
		return apperrors.Internal(op, "failed to store session", err)
	}
	return nil
}
