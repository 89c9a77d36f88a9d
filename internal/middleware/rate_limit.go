package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"souq_back_end/internal/cache"
)

const (
	LoginMaxAttempts = 5
	LoginCooldown    = 15 * time.Minute

	CartMaxRequests     = 60
	CheckoutMaxRequests = 5

	// MaxLoginBody caps the login payload read before the handler runs.
	MaxLoginBody = 16 << 10
)

func tooMany(c *gin.Context, msg string, retry time.Duration) {
	c.Header("Retry-After", fmt.Sprintf("%d", int(retry.Seconds())))
	c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
		"error":       msg,
		"retry_after": int(retry.Seconds()),
	})
}

// LoginRateLimit counts failed logins per account name read from the JSON
// body field. Too many failures lock the account out for the cooldown; a
// successful login clears the counter.
func LoginRateLimit(limiter *cache.Limiter, field string, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, MaxLoginBody))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"error": "request body too large"})
				return
			}
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		var input map[string]interface{}
		_ = json.Unmarshal(body, &input)
		subject, _ := input[field].(string)
		subject = strings.ToLower(strings.TrimSpace(subject))
		if subject == "" {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		decision, err := limiter.Check(ctx, subject)
		if err != nil {
			logger.Warn("login rate limit check failed", zap.Error(err))
			c.Next()
			return
		}
		if !decision.Allowed {
			tooMany(c, fmt.Sprintf("too many failed attempts, try again in %d minutes", int(decision.RetryAfter.Minutes())+1), decision.RetryAfter)
			return
		}

		c.Next()

		switch c.Writer.Status() {
		case http.StatusUnauthorized:
			if n, err := limiter.Hit(ctx, subject); err == nil && LoginMaxAttempts-n > 0 {
				c.Header("X-RateLimit-Remaining", fmt.Sprintf("%d", LoginMaxAttempts-n))
			}
		case http.StatusOK:
			_ = limiter.Reset(ctx, subject)
		}
	}
}

// RequestRateLimit counts every request per subject in a fixed window.
func RequestRateLimit(limiter *cache.Limiter, subject func(*gin.Context) string, msg string, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := subject(c)
		if key == "" {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		decision, err := limiter.Check(ctx, key)
		if err != nil {
			logger.Warn("rate limit check failed", zap.Error(err))
			c.Next()
			return
		}
		if !decision.Allowed {
			tooMany(c, msg, decision.RetryAfter)
			return
		}

		if _, err := limiter.Hit(ctx, key); err != nil {
			logger.Warn("rate limit hit failed", zap.Error(err))
		}
		c.Header("X-RateLimit-Remaining", fmt.Sprintf("%d", decision.Remaining-1))
		c.Next()
	}
}

// ByCartID keys limits on the cart cookie.
func ByCartID(c *gin.Context) string { return CartID(c) }

// ByClientIP keys limits on the caller address.
func ByClientIP(c *gin.Context) string { return c.ClientIP() }
