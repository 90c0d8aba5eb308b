package middleware

import (
	"net/http"
	"strings"
	"time"

	"PostOpTriage/pkg/cache"
	"PostOpTriage/pkg/metrics"

	"github.com/gin-gonic/gin"
)

type IdempotencyConfig struct {
	HeaderName string        // Idempotency-Key 的请求头名
	TTL        time.Duration // 决定一段时间内重复请求的拒绝窗口
	Store      cache.Cache   // go-cache or redis
	CacheType  string        // metrics label
	Metrics    *metrics.Metrics
}

// IdempotencyMiddleware rejects a repeated Idempotency-Key on the same route
// within TTL. Requests without the header pass through untouched; keys are
// only ever supplied by the caller. A key whose first request failed with a
// 5xx is released so the caller can retry.
func IdempotencyMiddleware(cfg IdempotencyConfig) gin.HandlerFunc {
	if cfg.HeaderName == "" {
		cfg.HeaderName = "Idempotency-Key"
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 10 * time.Minute
	}
	if cfg.Store == nil {
		cfg.Store = cache.NewGoCache(cache.LocalConfig{DefaultExpiration: cfg.TTL, CleanupInterval: time.Minute})
	}
	if cfg.CacheType == "" {
		cfg.CacheType = "local"
	}
	return func(c *gin.Context) {
		key := strings.TrimSpace(c.GetHeader(cfg.HeaderName))
		if key == "" {
			c.Next()
			return
		}
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		storeKey := "idem:" + route + ":" + key

		fresh, err := cfg.Store.SetNX(c.Request.Context(), storeKey, time.Now().Unix(), cfg.TTL)
		if err != nil {
			// fail open
			c.Next()
			return
		}
		if !fresh {
			cfg.Metrics.RecordCacheHit(cfg.CacheType, "idempotency")
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{"ok": false, "error": "duplicate request"})
			return
		}
		cfg.Metrics.RecordCacheMiss(cfg.CacheType, "idempotency")

		c.Next()

		if c.Writer.Status() >= http.StatusInternalServerError {
			_ = cfg.Store.Delete(c.Request.Context(), storeKey)
		}
	}
}
