package router

import (
	"net/http"
	"os"
	"strings"

	"bridge-backend/internal/config"
	"bridge-backend/internal/handlers"
	"bridge-backend/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// corsMiddleware CORS middleware.
// Priority: environment variable > YAML config > default (*)
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")

		var allowedOrigins []string
		allowCredentials := true

		if envOrigins := os.Getenv("CORS_ALLOWED_ORIGINS"); envOrigins != "" {
			for _, o := range strings.Split(envOrigins, ",") {
				if trimmed := strings.TrimSpace(o); trimmed != "" {
					allowedOrigins = append(allowedOrigins, trimmed)
				}
			}
		} else if config.AppConfig != nil && len(config.AppConfig.CORS.AllowedOrigins) > 0 {
			allowedOrigins = config.AppConfig.CORS.AllowedOrigins
			allowCredentials = config.AppConfig.CORS.AllowCredentials
		} else {
			allowedOrigins = []string{"*"}
		}

		if len(allowedOrigins) == 1 && allowedOrigins[0] == "*" {
			c.Header("Access-Control-Allow-Origin", "*")
		} else if origin != "" {
			for _, allowedOrigin := range allowedOrigins {
				if strings.TrimSpace(allowedOrigin) == origin {
					c.Header("Access-Control-Allow-Origin", origin)
					if allowCredentials {
						c.Header("Access-Control-Allow-Credentials", "true")
					}
					break
				}
			}
			if c.Writer.Header().Get("Access-Control-Allow-Origin") == "" {
				logrus.WithFields(logrus.Fields{
					"request_origin": origin,
					"path":           c.Request.URL.Path,
					"remote_addr":    c.ClientIP(),
				}).Warn("🚫 CORS: Request blocked - origin not in whitelist")
			}
		}

		if c.Request.Method == http.MethodOptions {
			c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, Authorization, Cache-Control, Accept")
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// Handlers groups everything the router mounts
type Handlers struct {
	Transfer      *handlers.TransferHandler
	Faucet        *handlers.FaucetHandler
	Websocket     *handlers.WebsocketHandler
	AdminAuth     *handlers.AdminAuthHandler
	AdminRecovery *handlers.AdminRecoveryHandler
}

// SetupRouter builds the gin engine with all routes and middleware
func SetupRouter(h *Handlers, logger *logrus.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(corsMiddleware())

	var allowedIPs []string
	if config.AppConfig != nil {
		allowedIPs = config.AppConfig.Admin.AllowedIPs
	}
	localhostOnly := middleware.NewLocalhostOnly(logger, allowedIPs)
	adminAuth := middleware.NewAdminAuthMiddleware(logger)

	// Probes and metrics.
	r.GET("/ping", handlers.PingHandler)
	r.GET("/health", handlers.HealthHandler)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Status push stream.
	r.GET("/ws", h.Websocket.Subscribe)

	// Public bridge API.
	bridge := r.Group("/api/bridge")
	{
		bridge.POST("/transfers", h.Transfer.CreateTransfer)
		bridge.GET("/transfers", h.Transfer.ListTransfers)
		bridge.GET("/transfers/:id", h.Transfer.GetTransfer)
		bridge.POST("/transfers/:id/deposit", h.Transfer.AttachDeposit)
		bridge.POST("/transfers/:id/deposit/server", h.Transfer.SubmitServerDeposit)
		bridge.POST("/faucet", h.Faucet.Supply)
	}

	// Operator recovery API: IP-restricted, TOTP login, JWT-guarded routes.
	admin := r.Group("/api/admin", localhostOnly.Restrict())
	{
		admin.POST("/login", h.AdminAuth.AdminLoginHandler)

		guarded := admin.Group("", adminAuth.RequireAdmin())
		{
			guarded.GET("/stranded", h.AdminRecovery.ListStranded)
			guarded.POST("/stranded/:id/retry", h.AdminRecovery.RetryStranded)
			guarded.POST("/stranded/:id/abandon", h.AdminRecovery.AbandonStranded)
		}
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error":   "Route not found",
			"path":    c.Request.URL.Path,
		})
	})

	return r
}
