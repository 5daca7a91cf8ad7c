package oauth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

var (
	// ErrClientNotConfigured 该来源没有配置 client id，无法发起授权。
	ErrClientNotConfigured = errors.New("oauth client id not configured")

	// ErrInvalidState 回调携带的 state 未知、已过期或已被使用。
	ErrInvalidState = errors.New("invalid or expired oauth state")

	// ErrUnknownProvider 未注册的来源名。
	ErrUnknownProvider = errors.New("unknown oauth provider")
)

const (
	stateBytes      = 16
	exchangeTimeout = 15 * time.Second
)

// Provider 描述一个上游市场的 OAuth 端点与凭证配置。
type Provider struct {
	Name        string // 来源键 (如 "etsy")
	AuthURL     string // 授权页地址
	TokenURL    string // 换取 token 的端点
	Scope       string // 请求的权限范围（空格分隔）
	ClientID    string // 应用 client id（为空表示未配置）
	RedirectURI string // 回调地址
}

// Token 一次授权码交换的结果。
//
// 这是一次性的运维引导流程：返回的 token 由操作者写入配置，
// 不会自动注入到运行中的进程。
type Token struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	TokenType    string `json:"token_type"`
}

// Authorizer 实现授权码 + PKCE 流程。
//
// StartAuthorization 生成随机 state 与 code verifier，只把 verifier 的
// S256 challenge 放进授权 URL；CompleteAuthorization 用 state 取回
// verifier 完成交换。verifier 本身绝不出现在授权请求里。
type Authorizer struct {
	providers map[string]Provider
	states    *StateStore
	logger    *slog.Logger
}

// NewAuthorizer 创建 Authorizer。
func NewAuthorizer(providers map[string]Provider, states *StateStore, logger *slog.Logger) *Authorizer {
	if states == nil {
		states = NewStateStore(DefaultStateTTL)
	}
	return &Authorizer{
		providers: providers,
		states:    states,
		logger:    logger,
	}
}

// oauthConfig 把来源配置映射为 oauth2.Config。
//
// 这里是公共客户端（无 client secret），token 端点要求 client_id
// 走表单参数而不是 Basic Auth。
func oauthConfig(p Provider) *oauth2.Config {
	return &oauth2.Config{
		ClientID:    p.ClientID,
		RedirectURL: p.RedirectURI,
		Scopes:      strings.Fields(p.Scope),
		Endpoint: oauth2.Endpoint{
			AuthURL:   p.AuthURL,
			TokenURL:  p.TokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

// StartAuthorization 为指定来源构造授权跳转 URL。
//
// 返回值:
//
//	string: 携带 PKCE challenge 的上游授权 URL
//	error: 来源未注册或 client id 未配置
func (a *Authorizer) StartAuthorization(source string) (string, error) {
	p, ok := a.providers[source]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownProvider, source)
	}
	if strings.TrimSpace(p.ClientID) == "" {
		return "", fmt.Errorf("%w: %s", ErrClientNotConfigured, source)
	}

	state, err := randomToken(stateBytes)
	if err != nil {
		return "", fmt.Errorf("generate state: %w", err)
	}
	verifier := oauth2.GenerateVerifier()
	a.states.Put(state, verifier)

	return oauthConfig(p).AuthCodeURL(state, oauth2.S256ChallengeOption(verifier)), nil
}

// CompleteAuthorization 用授权码与 state 完成 token 交换。
//
// state 单次有效：无论交换成功与否，取出即作废。
func (a *Authorizer) CompleteAuthorization(ctx context.Context, source, code, state string) (*Token, error) {
	p, ok := a.providers[source]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, source)
	}

	verifier, ok := a.states.Take(state)
	if !ok || strings.TrimSpace(code) == "" {
		return nil, ErrInvalidState
	}

	ctx, cancel := context.WithTimeout(ctx, exchangeTimeout)
	defer cancel()

	tok, err := oauthConfig(p).Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			return nil, fmt.Errorf("token exchange failed: status=%d body=%s",
				retrieveErr.Response.StatusCode, strings.TrimSpace(string(retrieveErr.Body)))
		}
		return nil, fmt.Errorf("token exchange: %w", err)
	}

	token := &Token{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresIn:    int(tok.ExpiresIn),
		TokenType:    tok.TokenType,
	}

	if a.logger != nil {
		a.logger.Info("oauth token exchanged",
			slog.String("source", source),
			slog.Int("expires_in", token.ExpiresIn))
	}
	return token, nil
}

// ChallengeS256 计算 code verifier 的 S256 challenge。
func ChallengeS256(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// randomToken 生成 n 字节加密随机数的 URL-safe 无填充编码。
func randomToken(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
