package routes

import (
	authapi "fulfillment-app/internal/api/auth"
	downloadapi "fulfillment-app/internal/api/download"
	ordersapi "fulfillment-app/internal/api/orders"
	paymentapi "fulfillment-app/internal/api/payment"
	"fulfillment-app/internal/app/http/middleware"

	"github.com/gin-gonic/gin"
)

type Handlers struct {
	Orders   *ordersapi.Handler
	Payment  *paymentapi.Handler
	Download *downloadapi.Handler
}

func RegisterRoutes(r *gin.Engine, h Handlers) {
	// Server-to-server and redemption endpoints stay outside the
	// JSON-sanitizing group: notify is form-encoded, download has no body.
	r.POST("/payment/notify", h.Payment.Notify)
	r.GET("/download", h.Download.Download)
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	public := r.Group("/")
	public.Use(middleware.SanitizeAndCleanInputMiddleware())

	public.POST("/register", authapi.Register)
	public.POST("/login", authapi.Login)
	public.GET("/auth/google", authapi.GoogleStart)
	public.GET("/auth/google/callback", authapi.GoogleCallback)

	// Buyer endpoints: authenticated users and anonymous sessions both work.
	buyer := r.Group("/")
	buyer.Use(middleware.SessionMiddleware(), middleware.OptionalAuthMiddleware())

	buyer.POST("/orders", middleware.SanitizeAndCleanInputMiddleware(), h.Orders.CreateOrder)
	buyer.GET("/orders/:number", h.Orders.GetOrder)
	buyer.GET("/orders/:number/downloads", h.Orders.ListDownloads)

	buyer.POST("/payment/initiate", h.Payment.Initiate)
	buyer.GET("/payment/return", h.Payment.Return)
	buyer.GET("/payment/cancel", h.Payment.Cancel)
}
