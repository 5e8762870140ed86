package ledger

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/cyphera/grantpay/internal/apperrors"
	"github.com/cyphera/grantpay/internal/grants"
	"github.com/cyphera/grantpay/internal/store"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	grantPrefix    = "ledger:grant:"
	pairPrefix     = "ledger:pair:"
	customerPrefix = "ledger:customer:"
)

func grantKey(id string) string { return grantPrefix + id }

func pairKey(customerID, vendorID string) string { return pairPrefix + customerID + ":" + vendorID }

func customerKey(customerID, grantID string) string {
	return customerPrefix + customerID + ":" + grantID
}

// Ledger stores CustomerGrants in a store.Store. Every mutation of a grant goes through a single
// atomic Update of its key.
type Ledger struct {
	store  store.Store
	loc    *time.Location
	logger *zap.Logger
	now    func() time.Time
}

// New creates a Ledger whose days roll over at midnight in loc (UTC when nil).
func New(s store.Store, loc *time.Location, logger *zap.Logger) *Ledger {
	if loc == nil {
		loc = time.UTC
	}
	return &Ledger{store: s, loc: loc, logger: logger, now: time.Now}
}

func (l *Ledger) today(now time.Time) string {
	return now.In(l.loc).Format("2006-01-02")
}

// Authorize creates a standing authorization for the pair. A live authorization for the same
// pair is a conflict.
func (l *Ledger) Authorize(ctx context.Context, customerID, vendorID, vendorName string, dailyLimit decimal.Decimal, expirationDays int) (*CustomerGrant, error) {
	const op = "ledger.Authorize"

	switch {
	case strings.TrimSpace(customerID) == "" || strings.TrimSpace(vendorID) == "":
		return nil, apperrors.Validation(op, "customer and vendor ids are required")
	case !dailyLimit.IsPositive():
		return nil, apperrors.Validation(op, "daily limit must be greater than zero")
	case expirationDays < 1:
		return nil, apperrors.Validation(op, "expiration must be at least one day")
	}

	now := l.now().UTC()
	previousID := ""
	if existing, err := l.FindByPair(ctx, customerID, vendorID); err == nil {
		if existing.Live(now) {
			return nil, apperrors.Conflict(op, "customer already has a live authorization for this vendor")
		}
		previousID = existing.ID
	} else if apperrors.KindOf(err) != apperrors.KindNotFound {
		return nil, err
	}

	cg := &CustomerGrant{
		ID:            uuid.NewString(),
		CustomerID:    customerID,
		VendorID:      vendorID,
		VendorName:    vendorName,
		DailyLimit:    dailyLimit,
		SpentToday:    decimal.Zero,
		LastResetDate: l.today(now),
		ExpiresAt:     now.AddDate(0, 0, expirationDays),
		Status:        StatusActive,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := l.put(ctx, cg); err != nil {
		return nil, apperrors.Internal(op, "failed to store authorization", err)
	}

	// Claim the pair only if nobody else did since we looked.
	_, err := l.store.Update(ctx, pairKey(customerID, vendorID), func(current []byte, exists bool) ([]byte, error) {
		if exists && string(current) != previousID {
			return nil, apperrors.Conflict(op, "customer already has a live authorization for this vendor")
		}
		if !exists && previousID != "" {
			return nil, apperrors.Conflict(op, "authorization for this vendor changed concurrently")
		}
		return []byte(cg.ID), nil
	})
	if err != nil {
		_ = l.store.Delete(ctx, grantKey(cg.ID))
		if apperrors.KindOf(err) == apperrors.KindConflict {
			return nil, err
		}
		return nil, apperrors.Internal(op, "failed to claim authorization", err)
	}

	if err := l.store.Set(ctx, customerKey(customerID, cg.ID), []byte(cg.ID), 0); err != nil {
		l.unclaim(ctx, cg, previousID)
		return nil, apperrors.Internal(op, "failed to index authorization", err)
	}

	l.logger.Info("authorization created",
		zap.String("grant_id", cg.ID),
		zap.String("customer_id", customerID),
		zap.String("vendor_id", vendorID),
		zap.String("daily_limit", dailyLimit.String()),
		zap.Time("expires_at", cg.ExpiresAt))
	return cg, nil
}

// unclaim undoes a half-finished Authorize: the pair points back at previousID and the new record
// is removed.
func (l *Ledger) unclaim(ctx context.Context, cg *CustomerGrant, previousID string) {
	pair := pairKey(cg.CustomerID, cg.VendorID)
	var err error
	if previousID != "" {
		_, err = l.store.Update(ctx, pair, func(current []byte, exists bool) ([]byte, error) {
			if !exists || string(current) != cg.ID {
				return nil, errUnchanged
			}
			return []byte(previousID), nil
		})
		if errors.Is(err, errUnchanged) {
			err = nil
		}
	} else if current, getErr := l.store.Get(ctx, pair); getErr == nil && string(current) == cg.ID {
		err = l.store.Delete(ctx, pair)
	}
	if err != nil {
		l.logger.Error("failed to release authorization pair", zap.String("grant_id", cg.ID), zap.Error(err))
	}
	if err := l.store.Delete(ctx, grantKey(cg.ID)); err != nil {
		l.logger.Error("failed to remove authorization", zap.String("grant_id", cg.ID), zap.Error(err))
	}
}

// RecordSpend atomically checks and increments the grant's daily spend. A rejected spend leaves
// the grant untouched.
func (l *Ledger) RecordSpend(ctx context.Context, grantID string, amount decimal.Decimal) (*SpendResult, error) {
	const op = "ledger.RecordSpend"

	if !amount.IsPositive() {
		return nil, apperrors.Validation(op, "amount must be greater than zero")
	}

	var result SpendResult
	err := l.mutate(ctx, op, grantID, func(cg *CustomerGrant, now time.Time) error {
		cg.rollover(l.today(now))

		switch {
		case cg.Status == StatusExpired || cg.Expired(now):
			return apperrors.GrantExpired(op, "authorization expired at "+cg.ExpiresAt.UTC().Format(time.RFC3339))
		case cg.Status == StatusSuspended:
			return apperrors.GrantInactive(op, "authorization is suspended")
		}

		if cg.SpentToday.Add(amount).GreaterThan(cg.DailyLimit) {
			return apperrors.LimitExceeded(op,
				"daily limit exceeded: remaining "+cg.Remaining().String()+" of "+cg.DailyLimit.String(), nil)
		}

		entry := SpendEntry{ID: uuid.NewString(), Amount: amount, RecordedAt: now}
		cg.Spends = append(cg.Spends, entry)
		cg.SpentToday = cg.SpentToday.Add(amount)

		result = SpendResult{EntryID: entry.ID, SpentToday: cg.SpentToday, Remaining: cg.Remaining()}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// ReverseSpend undoes a spend recorded today. Reversing the same entry twice, or an entry from a
// previous day, is a no-op.
func (l *Ledger) ReverseSpend(ctx context.Context, grantID, entryID string) error {
	const op = "ledger.ReverseSpend"

	return l.mutate(ctx, op, grantID, func(cg *CustomerGrant, now time.Time) error {
		cg.rollover(l.today(now))
		for i := range cg.Spends {
			entry := &cg.Spends[i]
			if entry.ID != entryID || entry.Reversed {
				continue
			}
			entry.Reversed = true
			cg.SpentToday = decimal.Max(decimal.Zero, cg.SpentToday.Sub(entry.Amount))
			l.logger.Info("spend reversed",
				zap.String("grant_id", grantID),
				zap.String("entry_id", entryID),
				zap.String("amount", entry.Amount.String()))
			return nil
		}
		return nil
	})
}

// Suspend stops further spending on the grant.
func (l *Ledger) Suspend(ctx context.Context, grantID string) (*CustomerGrant, error) {
	const op = "ledger.Suspend"
	return l.UpdateGrant(ctx, grantID, func(cg *CustomerGrant) error {
		switch cg.Status {
		case StatusSuspended:
			return nil
		case StatusExpired:
			return apperrors.GrantExpired(op, "authorization has already expired")
		}
		cg.Status = StatusSuspended
		return nil
	})
}

// UpdateGrant applies fn to the stored grant atomically and returns the result.
func (l *Ledger) UpdateGrant(ctx context.Context, grantID string, fn func(cg *CustomerGrant) error) (*CustomerGrant, error) {
	var updated *CustomerGrant
	err := l.mutate(ctx, "ledger.UpdateGrant", grantID, func(cg *CustomerGrant, _ time.Time) error {
		if err := fn(cg); err != nil {
			return err
		}
		updated = cg
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Get returns the grant, expiring it first when its time has passed.
func (l *Ledger) Get(ctx context.Context, grantID string) (*CustomerGrant, error) {
	cg, err := l.load(ctx, grantID)
	if err != nil {
		return nil, err
	}
	return l.expireIfDue(ctx, cg)
}

// FindByPair returns the most recent authorization for the pair.
func (l *Ledger) FindByPair(ctx context.Context, customerID, vendorID string) (*CustomerGrant, error) {
	raw, err := l.store.Get(ctx, pairKey(customerID, vendorID))
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperrors.NotFound("ledger.FindByPair", "no authorization for this customer and vendor")
	}
	if err != nil {
		return nil, apperrors.Internal("ledger.FindByPair", "failed to read authorization index", err)
	}
	return l.Get(ctx, string(raw))
}

// ListByCustomer returns the customer's grants, oldest first.
func (l *Ledger) ListByCustomer(ctx context.Context, customerID string) ([]*CustomerGrant, error) {
	const op = "ledger.ListByCustomer"

	index, err := l.store.Scan(ctx, customerPrefix+customerID+":")
	if err != nil {
		return nil, apperrors.Internal(op, "failed to scan authorizations", err)
	}

	out := make([]*CustomerGrant, 0, len(index))
	for _, id := range index {
		cg, err := l.Get(ctx, string(id))
		if apperrors.KindOf(err) == apperrors.KindNotFound {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, cg)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// ExpireSweep marks every active grant whose expiry is before now as expired and returns
// how many were changed.
func (l *Ledger) ExpireSweep(ctx context.Context, now time.Time) (int, error) {
	const op = "ledger.ExpireSweep"

	entries, err := l.store.Scan(ctx, grantPrefix)
	if err != nil {
		return 0, apperrors.Internal(op, "failed to scan authorizations", err)
	}

	count := 0
	for key := range entries {
		id := strings.TrimPrefix(key, grantPrefix)
		changed, err := l.expire(ctx, id, now)
		if err != nil {
			return count, err
		}
		if changed {
			count++
		}
	}
	if count > 0 {
		l.logger.Info("expired authorizations", zap.Int("count", count))
	}
	return count, nil
}

func (l *Ledger) expireIfDue(ctx context.Context, cg *CustomerGrant) (*CustomerGrant, error) {
	now := l.now().UTC()
	if cg.Status != StatusActive || !cg.Expired(now) {
		return cg, nil
	}
	if _, err := l.expire(ctx, cg.ID, now); err != nil {
		return nil, err
	}
	return l.load(ctx, cg.ID)
}

func (l *Ledger) expire(ctx context.Context, grantID string, now time.Time) (bool, error) {
	changed := false
	err := l.mutate(ctx, "ledger.expire", grantID, func(cg *CustomerGrant, _ time.Time) error {
		if cg.Status != StatusActive || !cg.Expired(now) {
			return errUnchanged
		}
		cg.Status = StatusExpired
		if cg.Grant != nil && grants.CanTransition(cg.Grant.Status, grants.StatusExpired) {
			_ = cg.Grant.Transition(grants.StatusExpired, now)
		}
		changed = true
		return nil
	})
	if errors.Is(err, errUnchanged) || apperrors.KindOf(err) == apperrors.KindNotFound {
		return false, nil
	}
	return changed, err
}

// errUnchanged aborts a mutation without reporting a failure.
var errUnchanged = errors.New("unchanged")

// mutate runs fn against the decoded grant inside one store Update. Errors returned by fn abort
// the write and are returned as-is.
func (l *Ledger) mutate(ctx context.Context, op, grantID string, fn func(cg *CustomerGrant, now time.Time) error) error {
	var fnErr error
	_, err := l.store.Update(ctx, grantKey(grantID), func(current []byte, exists bool) ([]byte, error) {
		if !exists {
			fnErr = apperrors.NotFound(op, "authorization "+grantID+" not found")
			return nil, fnErr
		}
		var cg CustomerGrant
		if err := json.Unmarshal(current, &cg); err != nil {
			fnErr = apperrors.Internal(op, "corrupt authorization record", err)
			return nil, fnErr
		}
		now := l.now().UTC()
		if err := fn(&cg, now); err != nil {
			fnErr = err
			return nil, err
		}
		cg.UpdatedAt = now
		return json.Marshal(&cg)
	})
	if fnErr != nil {
		return fnErr
	}
	if err != nil {
		return apperrors.Internal(op, "failed to update authorization", err)
	}
	return nil
}

func (l *Ledger) load(ctx context.Context, grantID string) (*CustomerGrant, error) {
	const op = "ledger.Get"

	raw, err := l.store.Get(ctx, grantKey(grantID))
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperrors.NotFound(op, "authorization "+grantID+" not found")
	}
	if err != nil {
		return nil, apperrors.Internal(op, "failed to read authorization", err)
	}
	var cg CustomerGrant
	if err := json.Unmarshal(raw, &cg); err != nil {
		return nil, apperrors.Internal(op, "corrupt authorization record", err)
	}
	return &cg, nil
}

func (l *Ledger) put(ctx context.Context, cg *CustomerGrant) error {
	raw, err := json.Marshal(cg)
	if err != nil {
		return err
	}
	return l.store.Set(ctx, grantKey(cg.ID), raw, 0)
}
