package service

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/layer-3/tollgate/core"
	"github.com/layer-3/tollgate/internal/eth"
	"github.com/layer-3/tollgate/ports"
)

const (
	// IntentTTL bounds the window during which an unconsumed
	// self-payment challenge can be redeemed.
	IntentTTL = 600 * time.Second

	// SettlementWait is the hard ceiling on a settlement-status wait.
	SettlementWait = 20 * time.Second
)

// MerchantConfig identifies the payment recipient: the merchant's
// account (transfer destination) and its signing key address (the
// requirements recipient and delegated grantee).
type MerchantConfig struct {
	Account    string
	SigningKey string
}

// PaymentService orchestrates the self-payment flow: the user signs a
// server-prepared payment intent that the server later executes.
type PaymentService struct {
	intents  ports.Store
	ledger   ports.Ledger
	eventPub ports.EventPublisher
	logger   *zap.Logger

	asset    core.Asset
	network  string
	merchant MerchantConfig

	intentTTL  time.Duration
	settleWait time.Duration
}

// NewPaymentService creates a new self-payment service
func NewPaymentService(
	intents ports.Store,
	ledger ports.Ledger,
	eventPub ports.EventPublisher,
	asset core.Asset,
	network string,
	merchant MerchantConfig,
	logger *zap.Logger,
) *PaymentService {
	return &PaymentService{
		intents:    intents,
		ledger:     ledger,
		eventPub:   eventPub,
		logger:     logger,
		asset:      asset,
		network:    network,
		merchant:   merchant,
		intentTTL:  IntentTTL,
		settleWait: SettlementWait,
	}
}

// Challenge prepares a payment intent for the user and returns the 402
// challenge material. The intent is prepared server-side so the signed
// payload matches exactly what the ledger will later execute; a new
// challenge overwrites any prior record for the same address.
func (s *PaymentService) Challenge(ctx context.Context, userAddress, resource, amount, description string) (*core.PaymentChallenge, error) {
	requirements, err := core.BuildRequirements(amount, s.asset, s.network, resource, description, s.merchant.SigningKey)
	if err != nil {
		return nil, err
	}

	atomic, ok := new(big.Int).SetString(requirements.MaxAmountRequired, 10)
	if !ok {
		return nil, fmt.Errorf("%w: %q", core.ErrPriceConversion, requirements.MaxAmountRequired)
	}

	key, err := s.ledger.PrimaryKey(ctx, userAddress)
	if err != nil {
		return nil, fmt.Errorf("read primary key: %w", err)
	}

	prepared, err := s.ledger.PrepareTransfer(ctx, ports.PrepareTransferParams{
		From:   userAddress,
		To:     s.merchant.Account,
		Amount: atomic,
		Key:    key,
	})
	if err != nil {
		return nil, fmt.Errorf("prepare transfer: %w", err)
	}

	digest, err := eth.HashTypedData(prepared.TypedData)
	if err != nil {
		return nil, err
	}

	record, err := json.Marshal(core.PreparedIntent{
		TypedData: prepared.TypedData,
		Digest:    digest,
		Raw:       prepared.Raw,
		Amount:    requirements.MaxAmountRequired,
	})
	if err != nil {
		return nil, fmt.Errorf("encode intent record: %w", err)
	}

	if err := s.intents.Put(ctx, intentKey(userAddress), string(record), s.intentTTL); err != nil {
		return nil, fmt.Errorf("store intent record: %w", err)
	}

	s.logger.Info("payment challenge issued",
		zap.String("address", userAddress),
		zap.String("amount", requirements.MaxAmountRequired),
		zap.String("digest", digest),
	)

	return &core.PaymentChallenge{
		Requirements: requirements,
		PrepareCalls: prepared.Raw,
		Digest:       digest,
	}, nil
}

// Redeem verifies the user's signature over the cached intent and
// executes the settlement. The record is consumed only after the
// settlement confirms; a concurrent second redemption observes
// ErrNoPendingIntent and fails closed.
func (s *PaymentService) Redeem(ctx context.Context, userAddress, signature string) (string, error) {
	raw, err := s.intents.Get(ctx, intentKey(userAddress))
	if err != nil {
		return "", core.ErrNoPendingIntent
	}

	var intent core.PreparedIntent
	if err := json.Unmarshal([]byte(raw), &intent); err != nil {
		return "", fmt.Errorf("decode intent record: %w", err)
	}

	// Recompute rather than trust the stored digest.
	digest, err := eth.HashTypedData(intent.TypedData)
	if err != nil {
		return "", err
	}

	valid, err := s.ledger.VerifySignature(ctx, userAddress, digest, signature)
	if err != nil {
		return "", fmt.Errorf("signature verification failed: %w", err)
	}
	if !valid {
		return "", core.ErrInvalidSignature
	}

	id, err := s.ledger.Submit(ctx, intent.Raw, signature)
	if err != nil {
		return "", fmt.Errorf("submit prepared calls: %w", err)
	}

	status, txID, err := s.ledger.AwaitStatus(ctx, id, s.settleWait)
	if status != core.SettlementConfirmed {
		if err == nil {
			err = core.ErrSettlementFailed
		}
		return "", err
	}

	if err := s.intents.Delete(ctx, intentKey(userAddress)); err != nil {
		s.logger.Warn("failed to delete consumed intent", zap.Error(err))
	}

	event := core.SettlementEvent{
		Address: userAddress,
		TxID:    txID,
		Amount:  intent.Amount,
		Asset:   s.asset.Address,
		Flow:    "self",
		Settled: time.Now(),
	}
	if err := s.eventPub.PublishSettlement(ctx, event); err != nil {
		s.logger.Warn("failed to publish settlement event", zap.Error(err))
	}

	s.logger.Info("self payment settled",
		zap.String("address", userAddress),
		zap.String("tx_id", txID),
	)

	return txID, nil
}

func intentKey(address string) string {
	return strings.ToLower(address)
}
