package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/layer-3/tollgate/core"
	"github.com/layer-3/tollgate/internal/eth"
	"github.com/layer-3/tollgate/ports"
)

// NonceTTL bounds how long an issued login nonce stays redeemable.
const NonceTTL = 600 * time.Second

// AuthService handles the session-login handshake
type AuthService struct {
	nonces    ports.Store
	ledger    ports.Ledger
	tokenizer ports.SessionTokenizer
	eventPub  ports.EventPublisher
	logger    *zap.Logger

	nonceTTL   time.Duration
	sessionTTL time.Duration
}

// NewAuthService creates a new authentication service
func NewAuthService(
	nonces ports.Store,
	ledger ports.Ledger,
	tokenizer ports.SessionTokenizer,
	eventPub ports.EventPublisher,
	logger *zap.Logger,
) *AuthService {
	return &AuthService{
		nonces:     nonces,
		ledger:     ledger,
		tokenizer:  tokenizer,
		eventPub:   eventPub,
		logger:     logger,
		nonceTTL:   NonceTTL,
		sessionTTL: core.DefaultSessionTTL,
	}
}

// IssueNonce generates a fresh random nonce and stores it with a TTL.
// The nonce is single use: a later login consumes it exactly once.
func (s *AuthService) IssueNonce(ctx context.Context) (string, error) {
	nonceBytes := make([]byte, 32)
	if _, err := rand.Read(nonceBytes); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	nonce := hex.EncodeToString(nonceBytes)
	if err := s.nonces.Put(ctx, nonce, "valid", s.nonceTTL); err != nil {
		return "", fmt.Errorf("failed to store nonce: %w", err)
	}

	return nonce, nil
}

// Login authenticates a wallet address from a signed sign-in message
// and issues a session token. The nonce is deleted once looked up,
// even when verification later fails, so a partially-failed attempt
// cannot be replayed.
func (s *AuthService) Login(ctx context.Context, message, signature string) (string, *core.Session, error) {
	parsed, err := eth.ParseSiweMessage(message)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", core.ErrNonceMissing, err)
	}

	if parsed.Nonce == "" {
		return "", nil, core.ErrNonceMissing
	}

	// Not-found covers never-issued, expired and already-consumed
	// alike; the store cannot distinguish them.
	if _, err := s.nonces.Get(ctx, parsed.Nonce); err != nil {
		return "", nil, core.ErrNonceInvalid
	}

	if err := s.nonces.Delete(ctx, parsed.Nonce); err != nil {
		s.logger.Warn("failed to delete consumed nonce", zap.Error(err))
	}

	digest := eth.PersonalDigest(message)

	valid, err := s.ledger.VerifySignature(ctx, parsed.Address, digest, signature)
	if err != nil {
		return "", nil, fmt.Errorf("signature verification failed: %w", err)
	}
	if !valid {
		return "", nil, core.ErrInvalidSignature
	}

	now := time.Now()
	session := &core.Session{
		Address:   parsed.Address,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.sessionTTL),
	}

	token, err := s.tokenizer.Issue(session)
	if err != nil {
		return "", nil, fmt.Errorf("failed to issue session token: %w", err)
	}

	s.logger.Info("session issued",
		zap.String("address", session.Address),
		zap.Time("expires_at", session.ExpiresAt),
	)

	return token, session, nil
}

// Verify validates a session token and returns the session it carries
func (s *AuthService) Verify(token string) (*core.Session, error) {
	return s.tokenizer.Verify(token)
}

// Logout publishes a logout notification. The session token itself is
// client-held; there is no server-side state to mutate.
func (s *AuthService) Logout(ctx context.Context, address string) {
	if err := s.eventPub.PublishLogout(ctx, address); err != nil {
		// The cookie is already cleared; the event is advisory.
		s.logger.Warn("failed to publish logout event", zap.Error(err))
	}
}
