package routes

import (
	"net/http"
	"time"

	"github.com/Valeamar/tidal2025/handlers"

	"github.com/gin-gonic/gin"
)

const Version = "1.0.0"

// SetupAnalysisRoutes registers the price analysis API.
func SetupAnalysisRoutes(rg *gin.RouterGroup, h *handlers.AnalysisHandler) {
	rg.POST("/analyze", h.AnalyzeProducts)
	rg.GET("/analyses/:id", h.GetAnalysis)
}

// SetupHealthRoutes registers the liveness probe.
func SetupHealthRoutes(r gin.IRoutes, mode string) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"version": Version,
			"mode":    mode,
			"time":    time.Now().Format(time.RFC3339),
		})
	})
}
