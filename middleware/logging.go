package middleware

import (
	"time"

	"github.com/Valeamar/tidal2025/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	RequestIDKey    = "request_id"
	RequestIDHeader = "X-Request-ID"
)

// RequestID reuses a valid incoming X-Request-ID or generates a new one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.New().String()
		}
		c.Set(RequestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := utils.Log.WithFields(logrus.Fields{
			"request_id": c.GetString(RequestIDKey),
			"status":     c.Writer.Status(),
			"duration":   time.Since(start).Round(time.Millisecond),
			"client":     c.ClientIP(),
		})
		switch status := c.Writer.Status(); {
		case status >= 500:
			entry.Errorf("❌ %s %s", c.Request.Method, c.Request.URL.Path)
		case status >= 400:
			entry.Warnf("⚠️  %s %s", c.Request.Method, c.Request.URL.Path)
		default:
			entry.Infof("✅ %s %s", c.Request.Method, c.Request.URL.Path)
		}
	}
}
