package main

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"log"
	"math/big"
	"os"
	"strconv"
	"strings"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	gethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/layer-3/tollgate/adapters/events"
	"github.com/layer-3/tollgate/adapters/ledger"
	"github.com/layer-3/tollgate/adapters/store"
	"github.com/layer-3/tollgate/adapters/tokenizer"
	"github.com/layer-3/tollgate/core"
	"github.com/layer-3/tollgate/service"
	"github.com/layer-3/tollgate/transport/http"
)

func main() {
	// Load .env when present; real deployments set the environment.
	_ = godotenv.Load()

	logger, err := buildLogger()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()

	// Session tokens are signed with an ephemeral P-256 key; in a real
	// deployment you would load this from somewhere secure. Sessions do
	// not survive a restart.
	sessionKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		logger.Fatal("failed to generate session signing key", zap.Error(err))
	}

	merchantKey, err := gethcrypto.HexToECDSA(strings.TrimPrefix(mustEnv(logger, "MERCHANT_PRIVATE_KEY"), "0x"))
	if err != nil {
		logger.Fatal("failed to parse merchant private key", zap.Error(err))
	}

	redisURL := envOr("REDIS_URL", "redis://localhost:6379/0")
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		logger.Fatal("failed to parse Redis URL", zap.Error(err))
	}
	redisClient := redis.NewClient(opts)

	publisher, err := redisstream.NewPublisher(
		redisstream.PublisherConfig{Client: redisClient},
		watermill.NewStdLogger(false, false),
	)
	if err != nil {
		logger.Fatal("failed to create Redis publisher", zap.Error(err))
	}

	chainID, err := strconv.ParseInt(envOr("CHAIN_ID", "84532"), 10, 64)
	if err != nil {
		logger.Fatal("failed to parse CHAIN_ID", zap.Error(err))
	}

	ledgerClient, err := ledger.NewRPCClient(ctx, ledger.Config{
		RPCURL:      envOr("LEDGER_RPC_URL", "https://base-sepolia.rpc.ithaca.xyz"),
		ChainID:     big.NewInt(chainID),
		MerchantKey: merchantKey,
		FeeToken:    envOr("FEE_TOKEN", defaultAssetAddress),
	}, logger)
	if err != nil {
		logger.Fatal("failed to create ledger client", zap.Error(err))
	}
	defer ledgerClient.Close()

	asset := core.Asset{
		Address:  envOr("ASSET_ADDRESS", defaultAssetAddress),
		Decimals: 18,
		Name:     envOr("ASSET_NAME", "Exp"),
		Version:  envOr("ASSET_VERSION", "1"),
	}
	network := envOr("NETWORK", "base-sepolia")
	merchant := service.MerchantConfig{
		Account:    mustEnv(logger, "MERCHANT_ADDRESS"),
		SigningKey: ledgerClient.MerchantAddress(),
	}

	nonceStore := store.NewRedisStore(redisClient, "nonce")
	intentStore := store.NewRedisStore(redisClient, "intent")
	sessionTokenizer := tokenizer.NewJWTTokenizer(sessionKey)
	eventPub := events.NewWatermillPublisher(publisher)

	authService := service.NewAuthService(nonceStore, ledgerClient, sessionTokenizer, eventPub, logger)
	paymentService := service.NewPaymentService(intentStore, ledgerClient, eventPub, asset, network, merchant, logger)
	delegatedService := service.NewDelegatedService(ledgerClient, eventPub, asset, network, merchant,
		envOr("SERVER_SPEND_LIMIT", "5"), logger)

	router := http.SetupRouter(authService, paymentService, delegatedService, http.RouterConfig{
		SelfPrice:      envOr("SELF_PRICE", "0.001"),
		DelegatedPrice: envOr("DELEGATED_PRICE", "0.5"),
		CORSOrigins:    splitNonEmpty(envOr("CORS_ORIGINS", "https://localhost:5173")),
	})

	addr := envOr("LISTEN_ADDR", ":9000")
	logger.Info("starting server", zap.String("addr", addr), zap.String("network", network))

	if err := router.Run(addr); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

const defaultAssetAddress = "0x29f45fc3ed1d0ffafb5e2af9cc6c3ab1555cd5a2"

func buildLogger() (*zap.Logger, error) {
	if os.Getenv("STAGE") == "prod" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func mustEnv(logger *zap.Logger, key string) string {
	v := os.Getenv(key)
	if v == "" {
		logger.Fatal("missing required environment variable", zap.String("key", key))
	}
	return v
}

func splitNonEmpty(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
