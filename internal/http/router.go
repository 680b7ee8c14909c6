package api

import (
	"log"
	stdhttp "net/http"

	intconfig "marketplace/internal/config"
	h "marketplace/internal/http/handlers"
	"marketplace/internal/http/middleware"

	"github.com/gin-gonic/gin"
)

func NewRouter(env intconfig.Env) *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestID(), middleware.Logger(), gin.Recovery(), middleware.CORS(env.CORSOrigins))

	if err := r.SetTrustedProxies(nil); err != nil {
		log.Printf("warning: failed to set trusted proxies: %v", err)
	}

	r.OPTIONS("/*path", func(c *gin.Context) { c.AbortWithStatus(stdhttp.StatusNoContent) })

	r.NoRoute(func(c *gin.Context) {
		c.JSON(stdhttp.StatusNotFound, gin.H{
			"error":  "route tidak ditemukan",
			"path":   c.Request.URL.Path,
			"method": c.Request.Method,
		})
	})

	api := r.Group("/api")
	{
		api.GET("/health", h.Health)
		api.GET("/db-check", h.DBCheck)

		// Auth
		auth := api.Group("/auth")
		auth.POST("/login", h.Login)

		// Payment provider callback. Authenticated by signature/bearer inside
		// the handler, not by JWT.
		payments := api.Group("/payments")
		payments.GET("/callback", h.PaymentCallbackHealth)
		payments.POST("/callback", h.PaymentCallback)

		// Admin surface
		admin := api.Group("/admin")
		admin.Use(middleware.RequireAdmin(env.JWTSecret))
		{
			distributions := admin.Group("/distributions")
			distributions.GET("/undistributed", h.GetUndistributed)
			distributions.GET("/stats", h.DistributionStats)
			distributions.GET("/report", h.GetDistributionReportPDF)
			distributions.POST("/run", h.DistributeAll)
			distributions.POST("/bookings/:id", h.DistributeBooking)

			admin.POST("/webhooks/reprocess", h.ReprocessWebhooks)
			admin.POST("/transactions/:id/recheck", h.RecheckTransaction)
			admin.POST("/bookings/:id/cancel", h.CancelBooking)
			admin.POST("/expiry/run", h.RunExpiry)
		}
	}

	return r
}
