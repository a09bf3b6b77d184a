package ledger

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	gethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"

	"github.com/layer-3/tollgate/core"
	"github.com/layer-3/tollgate/internal/eth"
	"github.com/layer-3/tollgate/ports"
)

// erc1271Magic is the isValidSignature success return value.
var erc1271Magic = [4]byte{0x16, 0x26, 0xba, 0x7e}

// defaultPollInterval is how often AwaitStatus re-reads the bundle
// status while waiting for a terminal outcome.
const defaultPollInterval = 2 * time.Second

// Config holds the parameters of the ledger RPC client
type Config struct {
	// RPCURL is the wallet JSON-RPC endpoint
	RPCURL string

	// ChainID of the settlement chain
	ChainID *big.Int

	// MerchantKey signs delegated executions and identifies the
	// merchant's grantee key on-chain
	MerchantKey *ecdsa.PrivateKey

	// FeeToken pays execution fees on prepared bundles
	FeeToken string

	// PollInterval overrides the status poll cadence (tests)
	PollInterval time.Duration
}

// RPCClient implements the Ledger interface over a wallet JSON-RPC
// endpoint exposing the account-abstraction method family
// (wallet_prepareCalls, wallet_sendPreparedCalls, wallet_getCallsStatus,
// wallet_getPermissions) plus plain eth_call reads.
type RPCClient struct {
	rpc          *rpc.Client
	chainID      *big.Int
	merchantKey  *ecdsa.PrivateKey
	merchantAddr common.Address
	feeToken     common.Address
	pollInterval time.Duration
	logger       *zap.Logger
}

// NewRPCClient dials the wallet RPC endpoint and returns a ledger client
func NewRPCClient(ctx context.Context, cfg Config, logger *zap.Logger) (*RPCClient, error) {
	client, err := rpc.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial ledger rpc: %w", err)
	}

	interval := cfg.PollInterval
	if interval == 0 {
		interval = defaultPollInterval
	}

	return &RPCClient{
		rpc:          client,
		chainID:      cfg.ChainID,
		merchantKey:  cfg.MerchantKey,
		merchantAddr: gethcrypto.PubkeyToAddress(cfg.MerchantKey.PublicKey),
		feeToken:     common.HexToAddress(cfg.FeeToken),
		pollInterval: interval,
		logger:       logger,
	}, nil
}

// Close releases the underlying RPC connection
func (c *RPCClient) Close() {
	c.rpc.Close()
}

// MerchantAddress returns the address of the merchant signing key
func (c *RPCClient) MerchantAddress() string {
	return c.merchantAddr.Hex()
}

type callMsg struct {
	To   string `json:"to"`
	Data string `json:"data"`
}

// PrimaryKey reads the account's key at index zero via eth_call
func (c *RPCClient) PrimaryKey(ctx context.Context, address string) (core.AccountKey, error) {
	data, err := accountABI.Pack("keyAt", big.NewInt(0))
	if err != nil {
		return core.AccountKey{}, fmt.Errorf("pack keyAt: %w", err)
	}

	var result hexutil.Bytes
	err = c.rpc.CallContext(ctx, &result, "eth_call", callMsg{
		To:   address,
		Data: hexutil.Encode(data),
	}, "latest")
	if err != nil {
		return core.AccountKey{}, fmt.Errorf("read primary key for %s: %w", address, err)
	}

	key, err := unpackKey(result)
	if err != nil {
		return core.AccountKey{}, fmt.Errorf("decode primary key for %s: %w", address, err)
	}

	return key, nil
}

type prepareKey struct {
	PublicKey string `json:"publicKey"`
	Type      string `json:"type"`
}

type prepareCall struct {
	To    string `json:"to"`
	Value string `json:"value"`
	Data  string `json:"data"`
}

type prepareCallsRequest struct {
	From         string         `json:"from"`
	ChainID      *hexutil.Big   `json:"chainId"`
	Calls        []prepareCall  `json:"calls"`
	Key          prepareKey     `json:"key"`
	Capabilities map[string]any `json:"capabilities,omitempty"`
}

// PrepareTransfer asks the wallet RPC to prepare a native transfer
// bundle under the payer's key. The response carries the typed-signing
// payload and is returned raw for later submission.
func (c *RPCClient) PrepareTransfer(ctx context.Context, params ports.PrepareTransferParams) (core.PreparedCalls, error) {
	req := prepareCallsRequest{
		From:    params.From,
		ChainID: (*hexutil.Big)(c.chainID),
		Calls: []prepareCall{{
			To:    params.To,
			Value: hexutil.EncodeBig(params.Amount),
			Data:  "0x",
		}},
		Key: prepareKey{
			PublicKey: params.Key.PublicKey,
			Type:      params.Key.Type,
		},
		Capabilities: map[string]any{
			"feeToken": c.feeToken.Hex(),
		},
	}

	var raw json.RawMessage
	if err := c.rpc.CallContext(ctx, &raw, "wallet_prepareCalls", req); err != nil {
		return core.PreparedCalls{}, fmt.Errorf("prepare calls: %w", err)
	}

	var envelope struct {
		TypedData json.RawMessage `json:"typedData"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return core.PreparedCalls{}, fmt.Errorf("decode prepare calls response: %w", err)
	}
	if len(envelope.TypedData) == 0 {
		return core.PreparedCalls{}, fmt.Errorf("prepare calls response carries no typed data")
	}

	return core.PreparedCalls{TypedData: envelope.TypedData, Raw: raw}, nil
}

// VerifySignature checks a signature against a digest through the
// account's ERC-1271 isValidSignature entrypoint.
func (c *RPCClient) VerifySignature(ctx context.Context, address, digest, signature string) (bool, error) {
	sig, err := hexutil.Decode(signature)
	if err != nil {
		return false, nil
	}

	data, err := accountABI.Pack("isValidSignature", common.HexToHash(digest), sig)
	if err != nil {
		return false, fmt.Errorf("pack isValidSignature: %w", err)
	}

	var result hexutil.Bytes
	err = c.rpc.CallContext(ctx, &result, "eth_call", callMsg{
		To:   address,
		Data: hexutil.Encode(data),
	}, "latest")
	if err != nil {
		// A revert means the account rejected the signature.
		c.logger.Debug("isValidSignature call failed", zap.String("address", address), zap.Error(err))
		return false, nil
	}

	return len(result) >= 4 && [4]byte(result[:4]) == erc1271Magic, nil
}

// Submit sends a prepared call bundle plus its signature for execution
func (c *RPCClient) Submit(ctx context.Context, raw []byte, signature string) (string, error) {
	var bundle map[string]json.RawMessage
	if err := json.Unmarshal(raw, &bundle); err != nil {
		return "", fmt.Errorf("decode prepared bundle: %w", err)
	}

	sig, err := json.Marshal(signature)
	if err != nil {
		return "", fmt.Errorf("encode signature: %w", err)
	}
	bundle["signature"] = sig

	var resp struct {
		ID string `json:"id"`
	}
	if err := c.rpc.CallContext(ctx, &resp, "wallet_sendPreparedCalls", bundle); err != nil {
		return "", fmt.Errorf("send prepared calls: %w", err)
	}

	return resp.ID, nil
}

type callsStatus struct {
	StatusCode int `json:"statusCode"`
	Receipts   []struct {
		TransactionHash common.Hash `json:"transactionHash"`
	} `json:"receipts"`
}

// AwaitStatus polls the bundle status until it is terminal or the
// deadline elapses. Timeout and explicit failure are distinct outcomes
// and neither falls through to success.
func (c *RPCClient) AwaitStatus(ctx context.Context, id string, deadline time.Duration) (core.SettlementStatus, string, error) {
	ctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		var status callsStatus
		if err := c.rpc.CallContext(ctx, &status, "wallet_getCallsStatus", id); err != nil {
			if ctx.Err() != nil {
				return core.SettlementTimedOut, "", core.ErrSettlementTimeout
			}
			return core.SettlementFailed, "", fmt.Errorf("get calls status: %w", err)
		}

		switch {
		case status.StatusCode == 200:
			txID := ""
			if len(status.Receipts) > 0 {
				txID = status.Receipts[0].TransactionHash.Hex()
			}
			return core.SettlementConfirmed, txID, nil
		case status.StatusCode >= 400:
			return core.SettlementFailed, "", core.ErrSettlementFailed
		}

		select {
		case <-ctx.Done():
			return core.SettlementTimedOut, "", core.ErrSettlementTimeout
		case <-ticker.C:
		}
	}
}

// ExecuteTransfer prepares, signs and submits an ERC-20 transfer from
// the account owner to the merchant, under the merchant's grantee key.
// It fails when no matching permission grant is live on-chain.
func (c *RPCClient) ExecuteTransfer(ctx context.Context, params ports.ExecuteTransferParams) (string, error) {
	data, err := erc20ABI.Pack("transfer", common.HexToAddress(params.To), params.Amount)
	if err != nil {
		return "", fmt.Errorf("pack transfer: %w", err)
	}

	req := prepareCallsRequest{
		From:    params.AsOwner,
		ChainID: (*hexutil.Big)(c.chainID),
		Calls: []prepareCall{{
			To:    params.Token,
			Value: "0x0",
			Data:  hexutil.Encode(data),
		}},
		Key: prepareKey{
			PublicKey: c.merchantAddr.Hex(),
			Type:      "secp256k1",
		},
		Capabilities: map[string]any{
			"feeToken": c.feeToken.Hex(),
		},
	}

	var raw json.RawMessage
	if err := c.rpc.CallContext(ctx, &raw, "wallet_prepareCalls", req); err != nil {
		return "", fmt.Errorf("prepare delegated calls: %w", err)
	}

	digest, err := bundleDigest(raw)
	if err != nil {
		return "", err
	}

	sig, err := gethcrypto.Sign(digest, c.merchantKey)
	if err != nil {
		return "", fmt.Errorf("sign delegated bundle: %w", err)
	}
	// Ledger-side recovery expects v in {27, 28}.
	sig[64] += 27

	return c.Submit(ctx, raw, hexutil.Encode(sig))
}

// bundleDigest extracts the signing digest of a prepared bundle,
// recomputing it from the typed data when the response omits it.
func bundleDigest(raw json.RawMessage) ([]byte, error) {
	var envelope struct {
		Digest    string          `json:"digest"`
		TypedData json.RawMessage `json:"typedData"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("decode prepared bundle: %w", err)
	}

	if envelope.Digest != "" {
		return hexutil.Decode(envelope.Digest)
	}

	hashed, err := eth.HashTypedData(envelope.TypedData)
	if err != nil {
		return nil, err
	}
	return hexutil.Decode(hashed)
}

type permission struct {
	ID  string `json:"id"`
	Key struct {
		PublicKey string `json:"publicKey"`
	} `json:"key"`
	Expiry      int64 `json:"expiry"`
	Permissions struct {
		Calls []struct {
			Signature string `json:"signature"`
		} `json:"calls"`
		Spend []struct {
			Limit  string `json:"limit"`
			Period string `json:"period"`
			Token  string `json:"token"`
		} `json:"spend"`
	} `json:"permissions"`
}

// GrantsFor enumerates the account's live permission grants
func (c *RPCClient) GrantsFor(ctx context.Context, address string) ([]core.Grant, error) {
	var perms []permission
	if err := c.rpc.CallContext(ctx, &perms, "wallet_getPermissions", map[string]string{"address": address}); err != nil {
		return nil, fmt.Errorf("get permissions for %s: %w", address, err)
	}

	grants := make([]core.Grant, 0, len(perms))
	for _, p := range perms {
		grant := core.Grant{
			ID:      p.ID,
			Grantee: p.Key.PublicKey,
			Expiry:  p.Expiry,
		}
		if len(p.Permissions.Calls) > 0 {
			grant.Selector = p.Permissions.Calls[0].Signature
		}
		if len(p.Permissions.Spend) > 0 {
			grant.Limit = p.Permissions.Spend[0].Limit
			grant.Period = p.Permissions.Spend[0].Period
			grant.Token = p.Permissions.Spend[0].Token
		}
		grants = append(grants, grant)
	}

	return grants, nil
}

// Revoke revokes a permission grant by id
func (c *RPCClient) Revoke(ctx context.Context, address, grantID string) error {
	var result json.RawMessage
	err := c.rpc.CallContext(ctx, &result, "wallet_revokePermissions", map[string]string{
		"address": address,
		"id":      grantID,
	})
	if err != nil {
		return fmt.Errorf("revoke permission %s for %s: %w", grantID, address, err)
	}
	return nil
}
