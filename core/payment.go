package core

import (
	"encoding/json"
	"time"
)

// SchemeExact is the only payment scheme the gateway speaks.
const SchemeExact = "exact"

// X402Version is the protocol version advertised in 402 responses.
const X402Version = 1

// Asset describes the ERC-20 token payments are denominated in,
// together with its EIP-712 signing domain.
type Asset struct {
	Address  string
	Decimals int32
	Name     string
	Version  string
}

// SigningDomain identifies the asset's EIP-712 domain in the
// requirements "extra" field.
type SigningDomain struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// PaymentRequirements is the canonical "payment required" description
// serialized verbatim to the client on a 402 response. Immutable once
// constructed.
type PaymentRequirements struct {
	Scheme            string        `json:"scheme"`
	Network           string        `json:"network"`
	MaxAmountRequired string        `json:"maxAmountRequired"`
	Resource          string        `json:"resource"`
	Description       string        `json:"description"`
	MimeType          string        `json:"mimeType"`
	PayTo             string        `json:"payTo"`
	MaxTimeoutSeconds int           `json:"maxTimeoutSeconds"`
	Asset             string        `json:"asset"`
	Extra             SigningDomain `json:"extra"`
}

// PreparedCalls is a ledger-prepared call bundle awaiting the payer's
// signature. TypedData is the structured-signing payload the user must
// sign; Raw is the full prepared bundle passed back to the ledger on
// submission.
type PreparedCalls struct {
	TypedData json.RawMessage `json:"typedData"`
	Raw       json.RawMessage `json:"raw"`
}

// PreparedIntent is the server-held record of a self-payment challenge.
// Keyed by user address, at most one live record per address; consumed
// on redemption or expired by TTL, whichever happens first.
type PreparedIntent struct {
	TypedData json.RawMessage `json:"typedData"`
	Digest    string          `json:"digest"`
	Raw       json.RawMessage `json:"raw"`
	Amount    string          `json:"amount"`
}

// PaymentChallenge is everything the self-payment flow returns with a
// 402: the requirements, the serialized prepared bundle the client
// must sign, and the digest of its typed data.
type PaymentChallenge struct {
	Requirements PaymentRequirements
	PrepareCalls json.RawMessage
	Digest       string
}

// SettlementStatus is the terminal outcome of a settlement wait.
type SettlementStatus int

const (
	// SettlementConfirmed means the call bundle executed successfully.
	SettlementConfirmed SettlementStatus = iota

	// SettlementFailed means the ledger reported a terminal non-success.
	SettlementFailed

	// SettlementTimedOut means the wait exceeded its deadline.
	SettlementTimedOut
)

// Grant is a read-only projection of an on-chain permission grant. The
// server never stores grants; it only enumerates and revokes them
// through the ledger client.
type Grant struct {
	ID       string `json:"id"`
	Grantee  string `json:"grantee"`
	Selector string `json:"selector"`
	Limit    string `json:"limit"`
	Period   string `json:"period"`
	Token    string `json:"token"`
	Expiry   int64  `json:"expiry"`
}

// AccountKey is the on-chain signing key material of an account, as
// returned by the ledger's primary key read.
type AccountKey struct {
	PublicKey string `json:"publicKey"`
	Type      string `json:"type"`
}

// SettlementEvent is published after a confirmed settlement.
type SettlementEvent struct {
	Address string    `json:"address"`
	TxID    string    `json:"tx_id"`
	Amount  string    `json:"amount"`
	Asset   string    `json:"asset"`
	Flow    string    `json:"flow"`
	Settled time.Time `json:"settled"`
}
