package eth

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// SiweMessage holds the fields of an EIP-4361 sign-in message the
// login handshake cares about.
type SiweMessage struct {
	Domain  string
	Address string
	Nonce   string
	ChainID string
}

// ParseSiweMessage extracts {domain, address, nonce, chain id} from a
// plain-text EIP-4361 message. It is deliberately lenient about the
// optional sections; only the address line is mandatory.
func ParseSiweMessage(message string) (*SiweMessage, error) {
	lines := strings.Split(strings.ReplaceAll(message, "\r\n", "\n"), "\n")
	if len(lines) < 2 {
		return nil, fmt.Errorf("message too short")
	}

	parsed := &SiweMessage{}

	header := lines[0]
	if idx := strings.Index(header, " wants you to sign in"); idx > 0 {
		parsed.Domain = header[:idx]
	}

	address := strings.TrimSpace(lines[1])
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("invalid account address %q", address)
	}
	parsed.Address = common.HexToAddress(address).Hex()

	for _, line := range lines[2:] {
		switch {
		case strings.HasPrefix(line, "Nonce: "):
			parsed.Nonce = strings.TrimSpace(strings.TrimPrefix(line, "Nonce: "))
		case strings.HasPrefix(line, "Chain ID: "):
			parsed.ChainID = strings.TrimSpace(strings.TrimPrefix(line, "Chain ID: "))
		}
	}

	return parsed, nil
}
