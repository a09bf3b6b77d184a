package eth

import (
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// PersonalDigest computes the EIP-191 personal-message digest of a
// plain-text message, as a 0x-prefixed hex string.
func PersonalDigest(message string) string {
	return hexutil.Encode(accounts.TextHash([]byte(message)))
}

// HashTypedData computes the EIP-712 digest of a JSON-encoded typed
// signing payload, as a 0x-prefixed hex string.
func HashTypedData(raw json.RawMessage) (string, error) {
	var typedData apitypes.TypedData
	if err := json.Unmarshal(raw, &typedData); err != nil {
		return "", fmt.Errorf("decode typed data: %w", err)
	}

	digest, _, err := apitypes.TypedDataAndHash(typedData)
	if err != nil {
		return "", fmt.Errorf("hash typed data: %w", err)
	}

	return hexutil.Encode(digest), nil
}
