package handlers

import (
	"net/http"
	"time"

	"bridge-backend/internal/db"

	"github.com/gin-gonic/gin"
)

// PingHandler liveness probe
func PingHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "pong"})
}

// HealthHandler readiness probe including database connectivity
func HealthHandler(c *gin.Context) {
	status := "ok"
	dbStatus := "ok"

	if db.DB != nil {
		sqlDB, err := db.DB.DB()
		if err != nil {
			dbStatus = "unavailable"
			status = "degraded"
		} else if err := sqlDB.Ping(); err != nil {
			dbStatus = "unreachable"
			status = "degraded"
		}
	} else {
		dbStatus = "not initialized"
		status = "degraded"
	}

	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}

	c.JSON(code, gin.H{
		"status":    status,
		"database":  dbStatus,
		"timestamp": time.Now().Format(time.RFC3339),
	})
}
