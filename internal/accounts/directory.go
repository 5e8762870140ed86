// Package accounts keeps the registry of customers and vendors and the wallets they pay from and
// into.
package accounts

import (
	"context"
	"encoding/json"
	"net/mail"
	"strings"
	"time"

	"github.com/cyphera/grantpay/internal/apperrors"
	"github.com/cyphera/grantpay/internal/session"
	"github.com/cyphera/grantpay/internal/store"
	"github.com/cyphera/grantpay/internal/wallet"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const (
	customerPrefix = "account:customer:"
	vendorPrefix   = "account:vendor:"
)

// Customer pays vendors from WalletAddress.
type Customer struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Email         string    `json:"email,omitempty"`
	WalletAddress string    `json:"walletAddress"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Vendor receives payments into WalletAddress.
type Vendor struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	WalletAddress string    `json:"walletAddress"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Directory stores customers and vendors.
type Directory struct {
	store store.Store
	now   func() time.Time
}

func NewDirectory(s store.Store) *Directory {
	return &Directory{store: s, now: time.Now}
}

// RegisterCustomer validates and stores c, assigning an id when none is given.
func (d *Directory) RegisterCustomer(ctx context.Context, c Customer) (*Customer, error) {
	const op = "accounts.RegisterCustomer"

	if strings.TrimSpace(c.Name) == "" {
		return nil, apperrors.Validation(op, "name is required")
	}
	if c.Email != "" {
		if _, err := mail.ParseAddress(c.Email); err != nil {
			return nil, apperrors.Validation(op, "email is invalid")
		}
	}
	normalized, err := wallet.NormalizeURL(c.WalletAddress)
	if err != nil {
		return nil, apperrors.Validation(op, err.Error())
	}
	c.WalletAddress = normalized
	if c.ID == "" {
		c.ID = uuid.NewString()
	} else if err := session.ValidateID(c.ID); err != nil {
		return nil, apperrors.Validation(op, "id must be 1-128 characters of letters, digits, '-' or '_'")
	}
	c.CreatedAt = d.now().UTC()

	if err := d.create(ctx, op, customerPrefix+c.ID, c); err != nil {
		return nil, err
	}
	return &c, nil
}

// RegisterVendor validates and stores v, assigning an id when none is given.
func (d *Directory) RegisterVendor(ctx context.Context, v Vendor) (*Vendor, error) {
	const op = "accounts.RegisterVendor"

	if strings.TrimSpace(v.Name) == "" {
		return nil, apperrors.Validation(op, "name is required")
	}
	normalized, err := wallet.NormalizeURL(v.WalletAddress)
	if err != nil {
		return nil, apperrors.Validation(op, err.Error())
	}
	v.WalletAddress = normalized
	if v.ID == "" {
		v.ID = uuid.NewString()
	} else if err := session.ValidateID(v.ID); err != nil {
		return nil, apperrors.Validation(op, "id must be 1-128 characters of letters, digits, '-' or '_'")
	}
	v.CreatedAt = d.now().UTC()

	if err := d.create(ctx, op, vendorPrefix+v.ID, v); err != nil {
		return nil, err
	}
	return &v, nil
}

func (d *Directory) GetCustomer(ctx context.Context, id string) (*Customer, error) {
	var c Customer
	if err := d.get(ctx, "accounts.GetCustomer", customerPrefix+id, "customer "+id, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (d *Directory) GetVendor(ctx context.Context, id string) (*Vendor, error) {
	var v Vendor
	if err := d.get(ctx, "accounts.GetVendor", vendorPrefix+id, "vendor "+id, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func (d *Directory) create(ctx context.Context, op, key string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return apperrors.Internal(op, "failed to encode account", err)
	}
	_, err = d.store.Update(ctx, key, func(_ []byte, exists bool) ([]byte, error) {
		if exists {
			return nil, apperrors.Conflict(op, "an account with this id already exists")
		}
		return raw, nil
	})
	if err != nil && apperrors.KindOf(err) != apperrors.KindConflict {
		return apperrors.Internal(op, "failed to store account", err)
	}
	return err
}

func (d *Directory) get(ctx context.Context, op, key, what string, target interface{}) error {
	raw, err := d.store.Get(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return apperrors.NotFound(op, what+" not found")
	}
	if err != nil {
		return apperrors.Internal(op, "failed to read account", err)
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return apperrors.Internal(op, "corrupt account record", err)
	}
	return nil
}
