package handlers

import (
	"context"
	"net/http"
	"time"

	"PostOpTriage/pkg/middleware"
	"PostOpTriage/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// UpdateRateLimiterConfig 更新限流配置
func (h *Handlers) UpdateRateLimiterConfig(c *gin.Context) {
	var cfg middleware.RateLimiterConfig
	if err := c.ShouldBindJSON(&cfg); err != nil || cfg.Rate == "" {
		response.Fail(c, "invalid request", nil)
		return
	}

	h.limiter.UpdateConfig(cfg)
	h.logger.Info("rate limiter config updated", zap.String("rate", cfg.Rate))
	response.Success(c, "rate limiter config updated", nil)
}

// HealthCheck 健康检查接口
func (h *Handlers) HealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := h.repo.Ping(ctx); err != nil {
		h.logger.Warn("health check failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": "database ping failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}
