package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gin-gonic/gin"

	"github.com/layer-3/tollgate/core"
	"github.com/layer-3/tollgate/service"
)

const (
	// SessionCookie is the HTTP-only cookie carrying the session token
	SessionCookie = "auth"

	// PaymentHeader carries the payer's signature over the prepared
	// intent digest
	PaymentHeader = "X-PAYMENT"

	// UserAddressHeader identifies the paying account
	UserAddressHeader = "X-USER-ADDRESS"

	// SettlementHeader reports the settlement transaction hash on the
	// resource response
	SettlementHeader = "X-Payment-Tx"

	contextUserAddress = "user_address"
)

// paymentRequiredResponse is the 402 challenge body. PrepareCalls and
// Digest are only present in the self-payment flow.
type paymentRequiredResponse struct {
	X402Version  int                      `json:"x402Version"`
	Error        string                   `json:"error"`
	Accepts      core.PaymentRequirements `json:"accepts"`
	PrepareCalls json.RawMessage          `json:"prepareCalls,omitempty"`
	Digest       string                   `json:"digest,omitempty"`
}

// SessionMiddleware validates the session cookie and stores the
// authenticated address in the request context.
func SessionMiddleware(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(SessionCookie)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": core.ErrUnauthenticated.Error()})
			return
		}

		session, err := authService.Verify(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": core.ErrUnauthenticated.Error()})
			return
		}

		c.Set(contextUserAddress, session.Address)

		c.Next()
	}
}

// SelfPaymentMiddleware implements the self-payment flow: a request
// without a well-formed payment signature receives a 402 challenge
// carrying a server-prepared intent; a request presenting a signature
// redeems the cached intent and, on confirmed settlement, falls
// through to the protected handler.
func SelfPaymentMiddleware(payments *service.PaymentService, amount, description string) gin.HandlerFunc {
	return func(c *gin.Context) {
		signature := c.GetHeader(PaymentHeader)
		userAddress := c.GetHeader(UserAddressHeader)

		if signature == "" || !isHex(signature) {
			if userAddress == "" {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": core.ErrMissingUserAddress.Error()})
				return
			}

			challenge, err := payments.Challenge(c.Request.Context(), userAddress, resourceURL(c), amount, description)
			if err != nil {
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to prepare payment challenge"})
				return
			}

			c.AbortWithStatusJSON(http.StatusPaymentRequired, paymentRequiredResponse{
				X402Version:  core.X402Version,
				Error:        PaymentHeader + " header is required",
				Accepts:      challenge.Requirements,
				PrepareCalls: challenge.PrepareCalls,
				Digest:       challenge.Digest,
			})
			return
		}

		if userAddress == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": core.ErrMissingUserAddress.Error()})
			return
		}

		txID, err := payments.Redeem(c.Request.Context(), userAddress, signature)
		if err != nil {
			switch {
			case errors.Is(err, core.ErrNoPendingIntent):
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "server unaware of payment, please try again"})
			case errors.Is(err, core.ErrInvalidSignature):
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": core.ErrInvalidSignature.Error()})
			case errors.Is(err, core.ErrSettlementTimeout):
				c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": core.ErrSettlementTimeout.Error()})
			case errors.Is(err, core.ErrSettlementFailed):
				c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": core.ErrSettlementFailed.Error()})
			default:
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "payment processing failed"})
			}
			return
		}

		c.Header(SettlementHeader, txID)

		c.Next()
	}
}

// DelegatedPaymentMiddleware implements the delegated flow. A valid
// session is required before anything else: a permission grant, once
// on-chain, is usable by anyone who can reach the endpoint, so the
// endpoint itself must authenticate the caller as the grant's owner.
func DelegatedPaymentMiddleware(authService *service.AuthService, delegated *service.DelegatedService, amount, description string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(SessionCookie)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": core.ErrUnauthenticated.Error()})
			return
		}

		session, err := authService.Verify(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": core.ErrUnauthenticated.Error()})
			return
		}

		c.Set(contextUserAddress, session.Address)

		outcome := delegated.Collect(c.Request.Context(), session.Address, amount)
		if outcome.Settled {
			c.Header(SettlementHeader, outcome.TxID)
			c.Next()
			return
		}

		requirements, err := delegated.Challenge(resourceURL(c), description)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to build payment requirements"})
			return
		}

		c.AbortWithStatusJSON(http.StatusPaymentRequired, paymentRequiredResponse{
			X402Version: core.X402Version,
			Error:       "payment permission grant is required",
			Accepts:     requirements,
		})
	}
}

// resourceURL reconstructs the canonical URL of the protected resource
func resourceURL(c *gin.Context) string {
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + c.Request.Host + c.Request.URL.Path
}

func isHex(s string) bool {
	_, err := hexutil.Decode(s)
	return err == nil
}
