package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/centrender/cheapfinder-api/internal/oauth"

	"github.com/gin-gonic/gin"
)

// handleOAuthStart 发起某个来源的 OAuth 授权。
//
// GET /oauth/:source/start
//
// 这是操作者的引导流程：浏览器会被重定向到上游授权页。
func (s *Server) handleOAuthStart(c *gin.Context) {
	sourceKey := c.Param("source")

	authURL, err := s.flow.StartAuthorization(sourceKey)
	if err != nil {
		if errors.Is(err, oauth.ErrClientNotConfigured) || errors.Is(err, oauth.ErrUnknownProvider) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		s.logger.Error("oauth start failed",
			slog.String("source", sourceKey),
			slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "authorization start failed"})
		return
	}

	c.Redirect(http.StatusFound, authURL)
}

// handleOAuthCallback 处理上游回调并完成授权码交换。
//
// GET /oauth/:source/callback?code=...&state=...
//
// 成功时输出 token 文本，由操作者写入配置后重启服务。
// 这里的错误信息可以详细一些：它面向操作者，不在热路径上。
func (s *Server) handleOAuthCallback(c *gin.Context) {
	sourceKey := c.Param("source")
	code := c.Query("code")
	state := c.Query("state")

	token, err := s.flow.CompleteAuthorization(c.Request.Context(), sourceKey, code, state)
	if err != nil {
		if errors.Is(err, oauth.ErrInvalidState) || errors.Is(err, oauth.ErrUnknownProvider) {
			c.String(http.StatusBadRequest, "authorization failed: %v\n", err)
			return
		}
		s.logger.Error("oauth exchange failed",
			slog.String("source", sourceKey),
			slog.String("error", err.Error()))
		c.String(http.StatusInternalServerError, "token exchange failed: %v\n", err)
		return
	}

	body := fmt.Sprintf(`Authorization complete for source %q.

access_token:  %s
refresh_token: %s
expires_in:    %d seconds

Store these in the service configuration (e.g. %s_ACCESS_TOKEN) and restart.
Tokens are NOT injected into the running process.
`, sourceKey, token.AccessToken, token.RefreshToken, token.ExpiresIn, envPrefix(sourceKey))

	c.String(http.StatusOK, body)
}

func envPrefix(sourceKey string) string {
	switch sourceKey {
	case "etsy":
		return "ETSY"
	case "aggregator":
		return "AGGREGATOR"
	default:
		return "SOURCE"
	}
}
