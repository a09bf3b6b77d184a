package core

import "errors"

var (
	// ErrNonceMissing is returned when a login message carries no nonce
	ErrNonceMissing = errors.New("nonce is required")

	// ErrNonceInvalid is returned when a nonce is unknown, expired or
	// already consumed. The store cannot distinguish these cases and
	// callers must not attempt to.
	ErrNonceInvalid = errors.New("invalid or expired nonce")

	// ErrInvalidSignature is returned when signature verification fails
	ErrInvalidSignature = errors.New("invalid signature")

	// ErrUnauthenticated is returned when a session token is absent,
	// malformed or expired
	ErrUnauthenticated = errors.New("authentication required")

	// ErrMissingUserAddress is returned when a payment redemption
	// carries no user address header
	ErrMissingUserAddress = errors.New("user address is required")

	// ErrNoPendingIntent is returned when no prepared intent exists for
	// an address (expired, consumed or never issued)
	ErrNoPendingIntent = errors.New("no pending payment intent")

	// ErrSettlementFailed is returned when a settlement reached a
	// terminal non-success status
	ErrSettlementFailed = errors.New("settlement failed")

	// ErrSettlementTimeout is returned when a settlement wait exceeded
	// its deadline
	ErrSettlementTimeout = errors.New("settlement timed out")

	// ErrPriceConversion is returned when an amount cannot be expressed
	// as a non-negative integer in the asset's atomic unit
	ErrPriceConversion = errors.New("cannot convert price to atomic amount")

	// ErrStoreOperationFailed is returned when a key-value store
	// operation fails for operational reasons
	ErrStoreOperationFailed = errors.New("store operation failed")
)
