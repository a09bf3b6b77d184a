package service

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/layer-3/tollgate/adapters/store"
	"github.com/layer-3/tollgate/adapters/tokenizer"
	"github.com/layer-3/tollgate/core"
)

func newTestAuthService(t *testing.T, ledger *fakeLedger) (*AuthService, *fakePublisher) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	pub := &fakePublisher{}
	svc := NewAuthService(
		store.NewMemoryStore(),
		ledger,
		tokenizer.NewJWTTokenizer(key),
		pub,
		zap.NewNop(),
	)
	return svc, pub
}

func signInMessage(nonce string) string {
	return fmt.Sprintf(`example.com wants you to sign in with your Ethereum account:
%s

Sign in to the weather gateway.

URI: https://example.com
Version: 1
Chain ID: 84532
Nonce: %s
Issued At: 2025-01-01T00:00:00Z`, testUserAddress, nonce)
}

func TestLoginHappyPath(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestAuthService(t, newFakeLedger())

	nonce, err := svc.IssueNonce(ctx)
	require.NoError(t, err)
	require.Len(t, nonce, 64)

	token, session, err := svc.Login(ctx, signInMessage(nonce), "0xsignature")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	assert.Equal(t, testUserAddress, session.Address)
	assert.WithinDuration(t, time.Now().Add(core.DefaultSessionTTL), session.ExpiresAt, time.Minute)

	got, err := svc.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, testUserAddress, got.Address)
}

func TestLoginNonceSingleUse(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestAuthService(t, newFakeLedger())

	nonce, err := svc.IssueNonce(ctx)
	require.NoError(t, err)

	_, _, err = svc.Login(ctx, signInMessage(nonce), "0xsignature")
	require.NoError(t, err)

	_, _, err = svc.Login(ctx, signInMessage(nonce), "0xsignature")
	assert.ErrorIs(t, err, core.ErrNonceInvalid)
}

func TestLoginUnknownNonce(t *testing.T) {
	svc, _ := newTestAuthService(t, newFakeLedger())

	_, _, err := svc.Login(context.Background(), signInMessage("never-issued"), "0xsignature")
	assert.ErrorIs(t, err, core.ErrNonceInvalid)
}

func TestLoginMissingNonce(t *testing.T) {
	svc, _ := newTestAuthService(t, newFakeLedger())

	message := fmt.Sprintf("example.com wants you to sign in with your Ethereum account:\n%s\n\nURI: https://example.com", testUserAddress)

	_, _, err := svc.Login(context.Background(), message, "0xsignature")
	assert.ErrorIs(t, err, core.ErrNonceMissing)
}

func TestLoginInvalidSignatureConsumesNonce(t *testing.T) {
	ctx := context.Background()
	ledger := newFakeLedger()
	ledger.verifyValid = false
	svc, _ := newTestAuthService(t, ledger)

	nonce, err := svc.IssueNonce(ctx)
	require.NoError(t, err)

	_, _, err = svc.Login(ctx, signInMessage(nonce), "0xbad")
	assert.ErrorIs(t, err, core.ErrInvalidSignature)

	// The failed attempt burned the nonce; a corrected retry must
	// fetch a fresh one.
	ledger.verifyValid = true
	_, _, err = svc.Login(ctx, signInMessage(nonce), "0xgood")
	assert.ErrorIs(t, err, core.ErrNonceInvalid)
}

func TestLoginExpiredNonce(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestAuthService(t, newFakeLedger())
	svc.nonceTTL = time.Nanosecond

	nonce, err := svc.IssueNonce(ctx)
	require.NoError(t, err)

	time.Sleep(time.Millisecond)

	_, _, err = svc.Login(ctx, signInMessage(nonce), "0xsignature")
	assert.ErrorIs(t, err, core.ErrNonceInvalid)
}

func TestLogoutPublishesEvent(t *testing.T) {
	svc, pub := newTestAuthService(t, newFakeLedger())

	svc.Logout(context.Background(), testUserAddress)

	require.Len(t, pub.logouts, 1)
	assert.Equal(t, testUserAddress, pub.logouts[0])
}
