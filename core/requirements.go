package core

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// DefaultMaxTimeoutSeconds bounds how long a client may take to settle
// against a single requirements description.
const DefaultMaxTimeoutSeconds = 60

// BuildRequirements converts a human-denominated amount into the
// asset's atomic unit and assembles the canonical payment requirements
// for a 402 response. Deterministic, no side effects, no I/O.
func BuildRequirements(amount string, asset Asset, network, resource, description, payTo string) (PaymentRequirements, error) {
	atomic, err := AtomicAmount(amount, asset.Decimals)
	if err != nil {
		return PaymentRequirements{}, err
	}

	return PaymentRequirements{
		Scheme:            SchemeExact,
		Network:           network,
		MaxAmountRequired: atomic,
		Resource:          resource,
		Description:       description,
		MimeType:          "",
		PayTo:             payTo,
		MaxTimeoutSeconds: DefaultMaxTimeoutSeconds,
		Asset:             asset.Address,
		Extra: SigningDomain{
			Name:    asset.Name,
			Version: asset.Version,
		},
	}, nil
}

// AtomicAmount expresses a human-denominated decimal amount in the
// asset's smallest unit, as a decimal string.
func AtomicAmount(amount string, decimals int32) (string, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return "", fmt.Errorf("parse amount %q: %w", amount, ErrPriceConversion)
	}

	if d.IsNegative() {
		return "", fmt.Errorf("amount %q is negative: %w", amount, ErrPriceConversion)
	}

	atomic := d.Shift(decimals)
	if !atomic.IsInteger() {
		return "", fmt.Errorf("amount %q has more than %d decimal places: %w", amount, decimals, ErrPriceConversion)
	}

	return atomic.String(), nil
}
