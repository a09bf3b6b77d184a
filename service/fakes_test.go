package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/layer-3/tollgate/core"
	"github.com/layer-3/tollgate/ports"
)

// testTypedData is a minimal but hashable typed-signing payload, the
// shape a ledger returns from a prepared call bundle.
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

const (
	testUserAddress = "0x70997970C51812dc3A010C7d01b50e0d17dc79C8"
	testMerchant    = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
)

var testAsset = core.Asset{
	Address:  "0x29f45fc3ed1d0ffafb5e2af9cc6c3ab1555cd5a2",
	Decimals: 18,
	Name:     "Exp",
	Version:  "1",
}

// fakeLedger is a configurable in-memory Ledger for tests. It records
// call counts so tests can assert which boundary calls were attempted.
type fakeLedger struct {
	verifyValid bool
	status      core.SettlementStatus
	statusTx    string
	execErr     error
	grants      []core.Grant

	verifyCalls int
	submitCalls int
	execCalls   int
	revoked     []string
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		verifyValid: true,
		status:      core.SettlementConfirmed,
		statusTx:    "0x746a8f9a1b9e5c2e6f9f0f3c1d2e3f4a5b6c7d8e9f0a1b2c3d4e5f60718293a4",
	}
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
	f.verifyCalls++
	return f.verifyValid, nil
}

func (f *fakeLedger) Submit(ctx context.Context, raw []byte, signature string) (string, error) {
	f.submitCalls++
	return "bundle-1", nil
}

func (f *fakeLedger) AwaitStatus(ctx context.Context, id string, deadline time.Duration) (core.SettlementStatus, string, error) {
	switch f.status {
	case core.SettlementConfirmed:
		return core.SettlementConfirmed, f.statusTx, nil
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
	f.revoked = append(f.revoked, grantID)
	return nil
}

// fakePublisher records published events
type fakePublisher struct {
	mu          sync.Mutex
	logouts     []string
	settlements []core.SettlementEvent
}

func (f *fakePublisher) PublishLogout(ctx context.Context, address string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logouts = append(f.logouts, address)
	return nil
}

func (f *fakePublisher) PublishSettlement(ctx context.Context, event core.SettlementEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.settlements = append(f.settlements, event)
	return nil
}

func (f *fakePublisher) settled() []core.SettlementEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]core.SettlementEvent(nil), f.settlements...)
}
