package api

import (
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/centrender/cheapfinder-api/internal/oauth"
)

func TestOAuthStart_RedirectsToProvider(t *testing.T) {
	flow := &mockFlow{startURL: "https://www.example.com/oauth/connect?client_id=abc"}
	s := newTestServer(t, &mockSearcher{}, flow, 100)

	w := doGet(s, "/oauth/etsy/start", nil)
	if w.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != flow.startURL {
		t.Fatalf("Location = %q", loc)
	}
}

func TestOAuthStart_UnconfiguredClientIs400(t *testing.T) {
	flow := &mockFlow{startErr: fmt.Errorf("etsy: %w", oauth.ErrClientNotConfigured)}
	s := newTestServer(t, &mockSearcher{}, flow, 100)

	w := doGet(s, "/oauth/etsy/start", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestOAuthStart_UnknownProviderIs400(t *testing.T) {
	flow := &mockFlow{startErr: fmt.Errorf("nope: %w", oauth.ErrUnknownProvider)}
	s := newTestServer(t, &mockSearcher{}, flow, 100)

	w := doGet(s, "/oauth/nope/start", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestOAuthCallback_Success(t *testing.T) {
	flow := &mockFlow{token: &oauth.Token{
		AccessToken:  "at-123",
		RefreshToken: "rt-456",
		ExpiresIn:    3600,
		TokenType:    "Bearer",
	}}
	s := newTestServer(t, &mockSearcher{}, flow, 100)

	w := doGet(s, "/oauth/etsy/callback?code=c1&state=s1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	body := w.Body.String()
	for _, want := range []string{"at-123", "rt-456", "3600", "ETSY_ACCESS_TOKEN"} {
		if !strings.Contains(body, want) {
			t.Fatalf("callback body missing %q:\n%s", want, body)
		}
	}
}

func TestOAuthCallback_InvalidStateIs400(t *testing.T) {
	flow := &mockFlow{exchErr: fmt.Errorf("etsy: %w", oauth.ErrInvalidState)}
	s := newTestServer(t, &mockSearcher{}, flow, 100)

	w := doGet(s, "/oauth/etsy/callback?code=c1&state=bogus", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestOAuthCallback_ExchangeFailureIs500(t *testing.T) {
	flow := &mockFlow{exchErr: fmt.Errorf("token exchange failed: status=400 body=invalid_grant")}
	s := newTestServer(t, &mockSearcher{}, flow, 100)

	w := doGet(s, "/oauth/etsy/callback?code=c1&state=s1", nil)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	// 回调面向操作者，错误细节保留在响应里
	if !strings.Contains(w.Body.String(), "invalid_grant") {
		t.Fatalf("operator detail missing from body: %s", w.Body.String())
	}
}
