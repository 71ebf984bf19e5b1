package middleware

import (
	"net/http"
	"time"

	"anonlink/config"
	"anonlink/logger"
	"anonlink/repositories"
	"anonlink/utils"

	"github.com/gin-gonic/gin"
)

// PublicRateLimit throttles unauthenticated token endpoints per client IP.
// Download tokens are unguessable only as long as lookups cannot be issued
// at bulk speed. Fails open if the limiter backend is unavailable.
func PublicRateLimit(limiter repositories.RateLimitRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		cfg := config.AppConfig.RateLimit
		if !cfg.Enabled {
			c.Next()
			return
		}

		window := time.Duration(cfg.WindowSeconds) * time.Second
		allowed, err := limiter.Allow(c.Request.Context(), "public:"+c.ClientIP(), cfg.PublicPerWin, window)
		if err != nil {
			logger.Debugf("rate limiter unavailable: %v", err)
			c.Next()
			return
		}
		if !allowed {
			utils.Error(c, http.StatusTooManyRequests, "too many requests, slow down")
			c.Abort()
			return
		}

		c.Next()
	}
}
