package app

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"

	"coach/internal/handler"
	"coach/internal/middleware"
)

// RouterDeps contains all dependencies needed for the router.
type RouterDeps struct {
	CheckoutHandler      *handler.CheckoutHandler
	BookingHandler       *handler.BookingHandler
	PaymentResultHandler *handler.PaymentResultHandler
	RedisClient          *redis.Client
	NewRelicApp          *newrelic.Application
}

// NewRouter creates a new Gin router with all routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()

	// Global middleware.
	router.Use(gin.Recovery())
	router.Use(gin.Logger())

	corsCfg := cors.DefaultConfig()
	corsCfg.AllowAllOrigins = true
	corsCfg.AllowHeaders = append(corsCfg.AllowHeaders, "X-Checkout-Session", "Idempotency-Key")
	router.Use(cors.New(corsCfg))

	// Add New Relic middleware if enabled.
	if deps.NewRelicApp != nil {
		router.Use(nrgin.Middleware(deps.NewRelicApp))
	}

	router.Use(middleware.IdempotencyMiddleware(deps.RedisClient))

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// The gateway redirects the passenger's browser here; it lives outside
	// /v1 because the return URL is registered with the gateway.
	router.GET("/payment-result", deps.PaymentResultHandler.HandleReturn)

	// API v1 routes.
	v1 := router.Group("/v1")
	{
		// Checkout saga routes, keyed by the X-Checkout-Session header.
		checkout := v1.Group("/checkout")
		{
			checkout.PUT("/draft", deps.CheckoutHandler.SaveDraft)
			checkout.GET("/draft", deps.CheckoutHandler.GetDraft)
			checkout.DELETE("/draft", deps.CheckoutHandler.Abandon)
			checkout.POST("/booking", deps.CheckoutHandler.AdvanceToBooking)
			checkout.POST("/payment", deps.CheckoutHandler.AdvanceToPayment)
			checkout.POST("/retreat", deps.CheckoutHandler.Retreat)
			checkout.POST("/finalize", deps.CheckoutHandler.Finalize)
		}

		// Booking routes.
		bookings := v1.Group("/bookings")
		{
			bookings.GET("/:id", deps.BookingHandler.GetBooking)
			bookings.GET("/:id/invoice", deps.BookingHandler.GetInvoice)
			bookings.POST("/payments", deps.CheckoutHandler.PayCash)
		}

		// Method-specific payment routes.
		payments := v1.Group("/payments")
		{
			payments.POST("/create-banking-qr", deps.CheckoutHandler.CreateBankingQR)
			payments.POST("/vnpay", deps.CheckoutHandler.CreateCardRedirect)
		}
	}

	return router
}
