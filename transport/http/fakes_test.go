package http

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/layer-3/tollgate/adapters/store"
	"github.com/layer-3/tollgate/adapters/tokenizer"
	"github.com/layer-3/tollgate/core"
	"github.com/layer-3/tollgate/ports"
	"github.com/layer-3/tollgate/service"
)

const (
	testUserAddress = "0x70997970C51812dc3A010C7d01b50e0d17dc79C8"
	testMerchant    = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
	testTxID        = "0x746a8f9a1b9e5c2e6f9f0f3c1d2e3f4a5b6c7d8e9f0a1b2c3d4e5f60718293a4"
)

const testTypedData = `{
	"types": {
		"EIP712Domain": [
			{"name": "name", "type": "string"},
			{"name": "version", "type": "string"},
			{"name": "chainId", "type": "uint256"},
			{"name": "verifyingContract", "type": "address"}
		],
		"Execute": [
			{"name": "to", "type": "address"},
			{"name": "value", "type": "uint256"}
		]
	},
	"primaryType": "Execute",
	"domain": {
		"name": "Exp",
		"version": "1",
		"chainId": "84532",
		"verifyingContract": "0x29f45fc3ed1d0ffafb5e2af9cc6c3ab1555cd5a2"
	},
	"message": {
		"to": "0x70997970C51812dc3A010C7d01b50e0d17dc79C8",
		"value": "1000"
	}
}`

var testAsset = core.Asset{
	Address:  "0x29f45fc3ed1d0ffafb5e2af9cc6c3ab1555cd5a2",
	Decimals: 18,
	Name:     "Exp",
	Version:  "1",
}

// fakeLedger mimics the account-abstraction boundary for router tests
type fakeLedger struct {
	verifyValid bool
	status      core.SettlementStatus
	execErr     error
	grants      []core.Grant

	execCalls int
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{verifyValid: true, status: core.SettlementConfirmed}
}

func (f *fakeLedger) PrimaryKey(ctx context.Context, address string) (core.AccountKey, error) {
	return core.AccountKey{PublicKey: "0x04deadbeef", Type: "webauthn-p256"}, nil
}

func (f *fakeLedger) PrepareTransfer(ctx context.Context, params ports.PrepareTransferParams) (core.PreparedCalls, error) {
	raw, _ := json.Marshal(map[string]json.RawMessage{
		"typedData": json.RawMessage(testTypedData),
		"context":   json.RawMessage(`{"quote": "opaque"}`),
	})
	return core.PreparedCalls{TypedData: json.RawMessage(testTypedData), Raw: raw}, nil
}

func (f *fakeLedger) VerifySignature(ctx context.Context, address, digest, signature string) (bool, error) {
	return f.verifyValid, nil
}

func (f *fakeLedger) Submit(ctx context.Context, raw []byte, signature string) (string, error) {
	return "bundle-1", nil
}

func (f *fakeLedger) AwaitStatus(ctx context.Context, id string, deadline time.Duration) (core.SettlementStatus, string, error) {
	switch f.status {
	case core.SettlementConfirmed:
		return core.SettlementConfirmed, testTxID, nil
	case core.SettlementTimedOut:
		return core.SettlementTimedOut, "", core.ErrSettlementTimeout
	default:
		return core.SettlementFailed, "", core.ErrSettlementFailed
	}
}

func (f *fakeLedger) ExecuteTransfer(ctx context.Context, params ports.ExecuteTransferParams) (string, error) {
	f.execCalls++
	if f.execErr != nil {
		return "", f.execErr
	}
	return "bundle-2", nil
}

func (f *fakeLedger) GrantsFor(ctx context.Context, address string) ([]core.Grant, error) {
	return f.grants, nil
}

func (f *fakeLedger) Revoke(ctx context.Context, address, grantID string) error {
	return nil
}

type noopPublisher struct{}

func (noopPublisher) PublishLogout(ctx context.Context, address string) error { return nil }
func (noopPublisher) PublishSettlement(ctx context.Context, event core.SettlementEvent) error {
	return nil
}

// testServer wires a full router over in-memory adapters and the fake
// ledger, mirroring the production composition in cmd/tollgate.
type testServer struct {
	router    *gin.Engine
	ledger    *fakeLedger
	auth      *service.AuthService
	tokenizer ports.SessionTokenizer
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	ledger := newFakeLedger()
	tok := tokenizer.NewJWTTokenizer(key)
	logger := zap.NewNop()
	merchant := service.MerchantConfig{Account: testMerchant, SigningKey: testMerchant}

	auth := service.NewAuthService(store.NewMemoryStore(), ledger, tok, noopPublisher{}, logger)
	payments := service.NewPaymentService(store.NewMemoryStore(), ledger, noopPublisher{}, testAsset, "base-sepolia", merchant, logger)
	delegated := service.NewDelegatedService(ledger, noopPublisher{}, testAsset, "base-sepolia", merchant, "5", logger)

	router := SetupRouter(auth, payments, delegated, RouterConfig{
		SelfPrice:      "0.001",
		DelegatedPrice: "0.5",
	})

	return &testServer{router: router, ledger: ledger, auth: auth, tokenizer: tok}
}

// sessionCookieValue mints a valid session token for the test user
func (s *testServer) sessionCookieValue(t *testing.T) string {
	t.Helper()

	now := time.Now()
	token, err := s.tokenizer.Issue(&core.Session{
		Address:   testUserAddress,
		IssuedAt:  now,
		ExpiresAt: now.Add(time.Hour),
	})
	require.NoError(t, err)
	return token
}

var errNoGrant = errors.New("no permission grant for grantee")

func mockGrant() core.Grant {
	return core.Grant{
		ID:      "grant-1",
		Grantee: testMerchant,
		Limit:   "5000000000000000000",
		Period:  "week",
		Token:   testAsset.Address,
		Expiry:  time.Now().Add(7 * 24 * time.Hour).Unix(),
	}
}
