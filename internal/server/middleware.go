package server

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/resumehub/billing/internal/observability/metrics"
	"github.com/resumehub/billing/internal/ratelimit"
	"go.uber.org/zap"
)

// requestLogger logs each request with latency and emits the duration
// histogram.
func requestLogger(log *zap.Logger) gin.HandlerFunc {
	log = log.Named("http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		metrics.HTTPRequestDuration.
			WithLabelValues(route, c.Request.Method, strconv.Itoa(status)).
			Observe(latency.Seconds())
		log.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Duration("latency", latency),
		)
	}
}

// bearerAuth guards the Token API with a shared secret. With no secret
// configured the API is open (local development).
func bearerAuth(secret string) gin.HandlerFunc {
	expected := "Bearer " + secret
	return func(c *gin.Context) {
		if secret == "" {
			c.Next()
			return
		}
		if c.GetHeader("Authorization") != expected {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse{
				Error:   "unauthorized",
				Message: "missing or invalid bearer token",
			})
			return
		}
		c.Next()
	}
}

// rateLimit throttles per user id path parameter, falling back to the
// client address.
func rateLimit(limiter ratelimit.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.Param("id")
		if key == "" {
			key = c.ClientIP()
		}
		allowed, err := limiter.Allow(c.Request.Context(), key)
		if err != nil || allowed {
			c.Next()
			return
		}
		c.Header("Retry-After", fmt.Sprintf("%d", 1))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, errorResponse{
			Error:   "rate_limited",
			Message: "too many requests",
		})
	}
}
