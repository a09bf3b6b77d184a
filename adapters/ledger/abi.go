package ledger

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/layer-3/tollgate/core"
)

const accountABIJSON = `[
	{
		"name": "keyAt",
		"type": "function",
		"stateMutability": "view",
		"inputs": [{"name": "i", "type": "uint256"}],
		"outputs": [{
			"name": "key",
			"type": "tuple",
			"components": [
				{"name": "expiry", "type": "uint40"},
				{"name": "keyType", "type": "uint8"},
				{"name": "isSuperAdmin", "type": "bool"},
				{"name": "publicKey", "type": "bytes"}
			]
		}]
	},
	{
		"name": "isValidSignature",
		"type": "function",
		"stateMutability": "view",
		"inputs": [
			{"name": "digest", "type": "bytes32"},
			{"name": "signature", "type": "bytes"}
		],
		"outputs": [{"name": "magicValue", "type": "bytes4"}]
	}
]`

const erc20ABIJSON = `[
	{
		"name": "transfer",
		"type": "function",
		"stateMutability": "nonpayable",
		"inputs": [
			{"name": "to", "type": "address"},
			{"name": "amount", "type": "uint256"}
		],
		"outputs": [{"name": "", "type": "bool"}]
	}
]`

var (
	accountABI = mustParseABI(accountABIJSON)
	erc20ABI   = mustParseABI(erc20ABIJSON)
)

func mustParseABI(definition string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(definition))
	if err != nil {
		panic(err)
	}
	return parsed
}

// onchainKey mirrors the account contract's key tuple
type onchainKey struct {
	Expiry       *big.Int
	KeyType      uint8
	IsSuperAdmin bool
	PublicKey    []byte
}

// Key type discriminants of the account contract.
const (
	keyTypeP256 = iota
	keyTypeWebAuthnP256
	keyTypeSecp256k1
)

func unpackKey(data []byte) (core.AccountKey, error) {
	out, err := accountABI.Unpack("keyAt", data)
	if err != nil {
		return core.AccountKey{}, err
	}
	if len(out) != 1 {
		return core.AccountKey{}, fmt.Errorf("unexpected keyAt output arity %d", len(out))
	}

	key := *abi.ConvertType(out[0], new(onchainKey)).(*onchainKey)

	var keyType string
	switch key.KeyType {
	case keyTypeP256:
		keyType = "p256"
	case keyTypeWebAuthnP256:
		keyType = "webauthn-p256"
	case keyTypeSecp256k1:
		keyType = "secp256k1"
	default:
		return core.AccountKey{}, fmt.Errorf("unknown key type %d", key.KeyType)
	}

	return core.AccountKey{
		PublicKey: hexutil.Encode(key.PublicKey),
		Type:      keyType,
	}, nil
}
