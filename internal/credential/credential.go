// Package credential validates presented API keys against the stored
// credential records and exposes the usage decrement as its own operation.
package credential

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ExpiryLayout is the exact timestamp format stored in expired_date. Records
// are written by the provisioning side in this layout; anything else is a
// corrupt record, not an expired one.
const ExpiryLayout = "2006-01-02 15:04:05"

// AccessCredential is one issued API key as persisted in the credential
// store. ExpiredDate stays a string here; the gate parses it so a malformed
// value surfaces as ErrBadRecord instead of being swallowed at decode time.
type AccessCredential struct {
	APIKey      string `bson:"api_key" json:"api_key"`
	ExpiredDate string `bson:"expired_date" json:"expired_date"`
	Usage       int    `bson:"usage" json:"usage"`
	Owner       string `bson:"owner,omitempty" json:"owner,omitempty"`
}

var (
	ErrMissingToken  = errors.New("api key is required")
	ErrNotFound      = errors.New("api key not found")
	ErrExpired       = errors.New("api key expired")
	ErrQuotaExceeded = errors.New("api key usage limit exceeded")
	ErrBadRecord     = errors.New("malformed credential record")
)

// Store is the narrow contract against the external credential store.
// FindCredential returns (nil, nil) when no record matches the token.
type Store interface {
	FindCredential(ctx context.Context, token string) (*AccessCredential, error)

	// ConsumeUsage decrements the remaining usage of the credential by one,
	// failing with ErrQuotaExceeded if none remains. Validation never calls
	// this; consuming quota is an explicit, separate step.
	ConsumeUsage(ctx context.Context, token string) error
}

// Gate validates presented tokens. Checks run presence, existence, expiry,
// quota, in that order, each aborting on failure.
type Gate struct {
	store Store
	now   func() time.Time
}

func NewGate(store Store) *Gate {
	return &Gate{store: store, now: time.Now}
}

// Validate resolves token to a usable credential or a classified error.
// A credential is usable iff it exists, now is strictly before its expiry,
// and it has usage remaining.
func (g *Gate) Validate(ctx context.Context, token string) (*AccessCredential, error) {
	if token == "" {
		return nil, ErrMissingToken
	}

	cred, err := g.store.FindCredential(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("credential lookup: %w", err)
	}
	if cred == nil {
		return nil, ErrNotFound
	}

	expiry, err := time.ParseInLocation(ExpiryLayout, cred.ExpiredDate, time.Local)
	if err != nil {
		return nil, fmt.Errorf("%w: bad expired_date %q: %v", ErrBadRecord, cred.ExpiredDate, err)
	}
	if !g.now().Before(expiry) {
		return nil, ErrExpired
	}

	if cred.Usage <= 0 {
		return nil, ErrQuotaExceeded
	}

	return cred, nil
}
