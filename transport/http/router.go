package http

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/layer-3/tollgate/service"
)

// RouterConfig holds the per-route prices and CORS policy
type RouterConfig struct {
	// SelfPrice is the per-request price of the self-paid resource
	SelfPrice string

	// DelegatedPrice is the per-request price of the delegated resource
	DelegatedPrice string

	// CORSOrigins is the allowed origin list. Credentialed requests
	// require explicit origins.
	CORSOrigins []string
}

// SetupRouter sets up the Gin router
func SetupRouter(
	authService *service.AuthService,
	payments *service.PaymentService,
	delegated *service.DelegatedService,
	cfg RouterConfig,
) *gin.Engine {
	router := gin.Default()

	if len(cfg.CORSOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORSOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Content-Type", "Authorization", "Cookie", PaymentHeader, UserAddressHeader},
			AllowCredentials: true,
		}))
	}

	handlers := NewHandlers(authService, delegated)

	// Login handshake
	router.GET("/login/nonce", handlers.Nonce)
	router.POST("/login", handlers.Login)
	router.POST("/logout", handlers.Logout)

	// Session-protected routes
	session := router.Group("/session")
	session.Use(SessionMiddleware(authService))
	{
		session.GET("/me", handlers.Me)
		session.GET("/permissions", handlers.Permissions)
		session.DELETE("/permissions/:id", handlers.RevokePermission)
	}

	// Paywalled resources
	router.GET("/resource/self",
		SelfPaymentMiddleware(payments, cfg.SelfPrice, "Access to weather data (async)"),
		Resource(cfg.SelfPrice),
	)
	router.GET("/resource/delegated",
		DelegatedPaymentMiddleware(authService, delegated, cfg.DelegatedPrice, "Access to weather data (async)"),
		Resource(cfg.DelegatedPrice),
	)

	return router
}
