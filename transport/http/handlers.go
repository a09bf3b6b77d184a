package http

import (
	"errors"
	"math/rand"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/layer-3/tollgate/core"
	"github.com/layer-3/tollgate/service"
)

// sessionCookieMaxAge matches the session token expiry.
const sessionCookieMaxAge = int(core.DefaultSessionTTL / time.Second)

// Handlers contains the HTTP handlers for the gateway endpoints
type Handlers struct {
	authService *service.AuthService
	delegated   *service.DelegatedService
}

// NewHandlers creates new gateway handlers
func NewHandlers(authService *service.AuthService, delegated *service.DelegatedService) *Handlers {
	return &Handlers{
		authService: authService,
		delegated:   delegated,
	}
}

// Nonce issues a fresh single-use login nonce
func (h *Handlers) Nonce(c *gin.Context) {
	nonce, err := h.authService.IssueNonce(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue nonce"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"nonce": nonce})
}

// LoginRequest represents a login request
type LoginRequest struct {
	Message   string `json:"message" binding:"required"`
	Signature string `json:"signature" binding:"required"`
}

// Login verifies a signed sign-in message and sets the session cookie
func (h *Handlers) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	token, _, err := h.authService.Login(c.Request.Context(), req.Message, req.Signature)
	if err != nil {
		switch {
		case errors.Is(err, core.ErrNonceMissing):
			c.JSON(http.StatusBadRequest, gin.H{"error": core.ErrNonceMissing.Error()})
		case errors.Is(err, core.ErrNonceInvalid):
			c.JSON(http.StatusUnauthorized, gin.H{"error": core.ErrNonceInvalid.Error()})
		case errors.Is(err, core.ErrInvalidSignature):
			c.JSON(http.StatusUnauthorized, gin.H{"error": core.ErrInvalidSignature.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "authentication failed"})
		}
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookie, token, sessionCookieMaxAge, "/", "", true, true)

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Logout clears the client-held session cookie. Expiry is the only
// server-side termination path, so there is no state to mutate.
func (h *Handlers) Logout(c *gin.Context) {
	if token, err := c.Cookie(SessionCookie); err == nil {
		if session, err := h.authService.Verify(token); err == nil {
			h.authService.Logout(c.Request.Context(), session.Address)
		}
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookie, "", -1, "/", "", true, true)

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Me returns the authenticated session
func (h *Handlers) Me(c *gin.Context) {
	address := c.GetString(contextUserAddress)
	if address == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": core.ErrUnauthenticated.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"session": gin.H{"address": address}})
}

// Permissions enumerates the caller's live on-chain permission grants
func (h *Handlers) Permissions(c *gin.Context) {
	address := c.GetString(contextUserAddress)

	grants, err := h.delegated.Grants(c.Request.Context(), address)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list permissions"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"grants": grants})
}

// RevokePermission revokes one of the caller's permission grants
func (h *Handlers) RevokePermission(c *gin.Context) {
	address := c.GetString(contextUserAddress)
	grantID := c.Param("id")

	if err := h.delegated.RevokeGrant(c.Request.Context(), address, grantID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to revoke permission"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

var weatherConditions = []string{
	"sunny", "cloudy", "rainy", "snowy", "foggy", "windy", "stormy", "partly cloudy",
}

// Resource returns the protected payload: a stand-in data generator
// with no access control of its own, reachable only through a payment
// middleware's success path.
func Resource(price string) gin.HandlerFunc {
	priceValue, _ := decimal.NewFromString(price)

	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"weather":     weatherConditions[rand.Intn(len(weatherConditions))],
			"temperature": rand.Intn(80) + 20,
			"futureDate":  time.Now().AddDate(1, 0, 0).Format("Monday, January 2, 2006"),
			"price":       priceValue.InexactFloat64(),
		})
	}
}
