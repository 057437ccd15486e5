package credential

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	creds map[string]*AccessCredential
	err   error
}

func (f *fakeStore) FindCredential(_ context.Context, token string) (*AccessCredential, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.creds[token], nil
}

func (f *fakeStore) ConsumeUsage(context.Context, string) error { return nil }

func newTestGate(creds map[string]*AccessCredential, now time.Time) *Gate {
	gate := NewGate(&fakeStore{creds: creds})
	gate.now = func() time.Time { return now }
	return gate
}

var testNow = time.Date(2025, time.March, 10, 12, 0, 0, 0, time.Local)

func TestValidateMissingToken(t *testing.T) {
	gate := newTestGate(nil, testNow)

	_, err := gate.Validate(context.Background(), "")
	assert.ErrorIs(t, err, ErrMissingToken)
}

func TestValidateNotFound(t *testing.T) {
	gate := newTestGate(map[string]*AccessCredential{}, testNow)

	_, err := gate.Validate(context.Background(), "no-such-key")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestValidateExpired(t *testing.T) {
	// Plenty of usage left; expiry alone must reject it.
	gate := newTestGate(map[string]*AccessCredential{
		"k": {APIKey: "k", ExpiredDate: "2025-03-09 12:00:00", Usage: 50},
	}, testNow)

	_, err := gate.Validate(context.Background(), "k")
	assert.ErrorIs(t, err, ErrExpired)
}

func TestValidateExpiryBoundaryIsExclusive(t *testing.T) {
	// now == expiry counts as expired; validity requires now strictly before.
	gate := newTestGate(map[string]*AccessCredential{
		"k": {APIKey: "k", ExpiredDate: testNow.Format(ExpiryLayout), Usage: 1},
	}, testNow)

	_, err := gate.Validate(context.Background(), "k")
	assert.ErrorIs(t, err, ErrExpired)
}

func TestValidateQuotaExceeded(t *testing.T) {
	gate := newTestGate(map[string]*AccessCredential{
		"k": {APIKey: "k", ExpiredDate: "2026-01-01 00:00:00", Usage: 0},
	}, testNow)

	_, err := gate.Validate(context.Background(), "k")
	assert.ErrorIs(t, err, ErrQuotaExceeded)
}

func TestValidateExpiryCheckedBeforeQuota(t *testing.T) {
	// Both checks would fail; expiry runs first.
	gate := newTestGate(map[string]*AccessCredential{
		"k": {APIKey: "k", ExpiredDate: "2024-01-01 00:00:00", Usage: -3},
	}, testNow)

	_, err := gate.Validate(context.Background(), "k")
	assert.ErrorIs(t, err, ErrExpired)
}

func TestValidateBadExpiryDate(t *testing.T) {
	gate := newTestGate(map[string]*AccessCredential{
		"k": {APIKey: "k", ExpiredDate: "03/10/2026", Usage: 5},
	}, testNow)

	_, err := gate.Validate(context.Background(), "k")
	assert.ErrorIs(t, err, ErrBadRecord)
	assert.NotErrorIs(t, err, ErrExpired)
}

func TestValidateOK(t *testing.T) {
	gate := newTestGate(map[string]*AccessCredential{
		"k": {APIKey: "k", ExpiredDate: "2026-01-01 00:00:00", Usage: 3, Owner: "clinic-7"},
	}, testNow)

	cred, err := gate.Validate(context.Background(), "k")
	require.NoError(t, err)
	require.NotNil(t, cred)
	assert.Equal(t, "k", cred.APIKey)
	assert.Equal(t, 3, cred.Usage)
	assert.Equal(t, "clinic-7", cred.Owner)
}

func TestValidateStoreFailureIsNotClassified(t *testing.T) {
	storeErr := errors.New("connection reset")
	gate := NewGate(&fakeStore{err: storeErr})

	_, err := gate.Validate(context.Background(), "k")
	require.Error(t, err)
	assert.ErrorIs(t, err, storeErr)
	assert.NotErrorIs(t, err, ErrNotFound)
}
