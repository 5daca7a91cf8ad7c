package middleware

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
)

// RequestLogger 记录每个 HTTP 请求的访问日志。
//
// identity 字段与限流使用同一套客户端标识，便于在日志里
// 直接对账某个客户端的 429。route 是注册的路由模板
// (如 "/oauth/:source/start")，path 是实际请求路径。
func RequestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		if logger == nil {
			return
		}

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		logger.Info("http request",
			slog.String("method", c.Request.Method),
			slog.String("route", route),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", c.Writer.Status()),
			slog.String("identity", clientIdentity(c)),
			slog.Int("bytes_out", c.Writer.Size()),
			slog.Duration("latency", time.Since(start)),
		)
	}
}
