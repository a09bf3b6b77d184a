package service

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"go.uber.org/zap"

	"github.com/layer-3/tollgate/core"
	"github.com/layer-3/tollgate/ports"
)

// Outcome is the explicit two-outcome result of a delegated collection
// attempt: either the transfer settled, or the caller must be
// challenged to grant a spending permission. Failure handling is a
// data-flow branch, not exception-driven control flow.
type Outcome struct {
	Settled bool
	TxID    string
	Reason  error
}

// DelegatedService orchestrates the delegated-payment flow: the user
// has granted the merchant's key a scoped spending permission, and the
// server executes the transfer itself.
type DelegatedService struct {
	ledger   ports.Ledger
	eventPub ports.EventPublisher
	logger   *zap.Logger

	asset    core.Asset
	network  string
	merchant MerchantConfig

	// spendLimit is the aggregate grant amount advertised on a 402.
	// It is amortized across future requests within the grant window
	// and is intentionally distinct from the per-request price.
	spendLimit string

	settleWait time.Duration
}

// NewDelegatedService creates a new delegated-payment service
func NewDelegatedService(
	ledger ports.Ledger,
	eventPub ports.EventPublisher,
	asset core.Asset,
	network string,
	merchant MerchantConfig,
	spendLimit string,
	logger *zap.Logger,
) *DelegatedService {
	return &DelegatedService{
		ledger:     ledger,
		eventPub:   eventPub,
		logger:     logger,
		asset:      asset,
		network:    network,
		merchant:   merchant,
		spendLimit: spendLimit,
		settleWait: SettlementWait,
	}
}

// Collect optimistically executes a transfer of amount from the
// authenticated user to the merchant under the merchant's grantee key.
// Any failure (no grant yet, insufficient allowance, execution error,
// timeout) yields a challenge-required outcome.
func (s *DelegatedService) Collect(ctx context.Context, userAddress, amount string) Outcome {
	atomicStr, err := core.AtomicAmount(amount, s.asset.Decimals)
	if err != nil {
		return Outcome{Reason: err}
	}

	atomic, ok := new(big.Int).SetString(atomicStr, 10)
	if !ok {
		return Outcome{Reason: fmt.Errorf("%w: %q", core.ErrPriceConversion, atomicStr)}
	}

	id, err := s.ledger.ExecuteTransfer(ctx, ports.ExecuteTransferParams{
		AsOwner: userAddress,
		To:      s.merchant.Account,
		Amount:  atomic,
		Token:   s.asset.Address,
	})
	if err != nil {
		s.logger.Info("delegated execution rejected, challenging",
			zap.String("address", userAddress),
			zap.Error(err),
		)
		return Outcome{Reason: err}
	}

	status, txID, err := s.ledger.AwaitStatus(ctx, id, s.settleWait)
	if status != core.SettlementConfirmed {
		if err == nil {
			err = core.ErrSettlementFailed
		}
		return Outcome{Reason: err}
	}

	event := core.SettlementEvent{
		Address: userAddress,
		TxID:    txID,
		Amount:  atomicStr,
		Asset:   s.asset.Address,
		Flow:    "delegated",
		Settled: time.Now(),
	}
	if err := s.eventPub.PublishSettlement(ctx, event); err != nil {
		s.logger.Warn("failed to publish settlement event", zap.Error(err))
	}

	s.logger.Info("delegated payment settled",
		zap.String("address", userAddress),
		zap.String("tx_id", txID),
	)

	return Outcome{Settled: true, TxID: txID}
}

// Challenge builds the 402 requirements for the delegated flow. The
// advertised amount is the aggregate spend limit the client should
// grant, never the per-request price.
func (s *DelegatedService) Challenge(resource, description string) (core.PaymentRequirements, error) {
	return core.BuildRequirements(s.spendLimit, s.asset, s.network, resource, description, s.merchant.SigningKey)
}

// Grants enumerates the user's live permission grants
func (s *DelegatedService) Grants(ctx context.Context, address string) ([]core.Grant, error) {
	return s.ledger.GrantsFor(ctx, address)
}

// RevokeGrant revokes a permission grant by id
func (s *DelegatedService) RevokeGrant(ctx context.Context, address, grantID string) error {
	return s.ledger.Revoke(ctx, address, grantID)
}
