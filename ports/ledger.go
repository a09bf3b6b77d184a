package ports

import (
	"context"
	"math/big"
	"time"

	"github.com/layer-3/tollgate/core"
)

// PrepareTransferParams describes a transfer the ledger should prepare
// as a signable call bundle under the payer's own key.
type PrepareTransferParams struct {
	From   string
	To     string
	Amount *big.Int
	Key    core.AccountKey
}

// ExecuteTransferParams describes an ERC-20 transfer the ledger should
// execute on behalf of the account owner, under a grantee signing key.
type ExecuteTransferParams struct {
	AsOwner string
	To      string
	Amount  *big.Int
	Token   string
}

// Ledger is the account-abstraction client boundary: it reads on-chain
// account key material, prepares and executes call bundles, and waits
// for settlement status. Implementations do the actual chain I/O; the
// core treats everything behind this interface as an external
// collaborator.
type Ledger interface {
	// PrimaryKey reads the account's primary on-chain signing key.
	PrimaryKey(ctx context.Context, address string) (core.AccountKey, error)

	// PrepareTransfer asks the ledger to prepare a call bundle
	// transferring Amount from the payer to the merchant under the
	// payer's key. The returned bundle carries the typed-signing
	// payload the payer must sign.
	PrepareTransfer(ctx context.Context, params PrepareTransferParams) (core.PreparedCalls, error)

	// VerifySignature checks a signature against a digest for the
	// claimed account address.
	VerifySignature(ctx context.Context, address, digest, signature string) (bool, error)

	// Submit sends a prepared call bundle plus its signature for
	// execution and returns the bundle id.
	Submit(ctx context.Context, raw []byte, signature string) (string, error)

	// AwaitStatus polls the settlement status of a bundle until it is
	// terminal or the deadline elapses. The returned status is one of
	// the three terminal outcomes; TxID is set when available.
	AwaitStatus(ctx context.Context, id string, deadline time.Duration) (core.SettlementStatus, string, error)

	// ExecuteTransfer prepares, signs and submits a transfer using the
	// merchant-held signing key, relying on an on-chain permission
	// grant from the account owner.
	ExecuteTransfer(ctx context.Context, params ExecuteTransferParams) (string, error)

	// GrantsFor enumerates the account's live permission grants.
	GrantsFor(ctx context.Context, address string) ([]core.Grant, error)

	// Revoke revokes a permission grant by id.
	Revoke(ctx context.Context, address, grantID string) error
}
