package middleware

import (
	"net/http"
	"strings"

	"github.com/centrender/cheapfinder-api/internal/pkg/metrics"
	"github.com/centrender/cheapfinder-api/internal/pkg/ratelimit"

	"github.com/gin-gonic/gin"
)

// rateLimitMessage 429 响应的固定文案。
const rateLimitMessage = "Rate limit exceeded. Try again in a minute."

// RateLimit 按客户端身份做固定窗口限流。
//
// 身份优先取 X-Forwarded-For 的第一个地址，其次是传输层对端地址，
// 都拿不到时落入共享的 "unknown" 桶。
func RateLimit(limiter *ratelimit.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.Admit(clientIdentity(c)) {
			metrics.RateLimitRejectedTotal.Inc()
			c.JSON(http.StatusTooManyRequests, gin.H{"error": rateLimitMessage})
			c.Abort()
			return
		}
		c.Next()
	}
}

func clientIdentity(c *gin.Context) string {
	if fwd := c.GetHeader("X-Forwarded-For"); fwd != "" {
		if first := strings.TrimSpace(strings.Split(fwd, ",")[0]); first != "" {
			return first
		}
	}
	if ip := c.ClientIP(); ip != "" {
		return ip
	}
	return "unknown"
}
