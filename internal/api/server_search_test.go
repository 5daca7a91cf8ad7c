package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/centrender/cheapfinder-api/internal/config"
	"github.com/centrender/cheapfinder-api/internal/engine"
	"github.com/centrender/cheapfinder-api/internal/model"
	"github.com/centrender/cheapfinder-api/internal/oauth"
	"github.com/centrender/cheapfinder-api/internal/pkg/analytics"
	"github.com/centrender/cheapfinder-api/internal/pkg/cache"
	"github.com/centrender/cheapfinder-api/internal/pkg/queue"
	"github.com/centrender/cheapfinder-api/internal/pkg/ratelimit"

	"github.com/gin-gonic/gin"
)

type mockSearcher struct {
	items   []model.Listing
	results []engine.SourceResult
	err     error
	lastReq engine.Request
	calls   int
}

func (m *mockSearcher) Search(ctx context.Context, req engine.Request) ([]model.Listing, []engine.SourceResult, error) {
	m.calls++
	m.lastReq = req
	return m.items, m.results, m.err
}

type mockFlow struct {
	startURL string
	startErr error
	token    *oauth.Token
	exchErr  error
}

func (m *mockFlow) StartAuthorization(source string) (string, error) {
	return m.startURL, m.startErr
}

func (m *mockFlow) CompleteAuthorization(ctx context.Context, source, code, state string) (*oauth.Token, error) {
	return m.token, m.exchErr
}

func newTestServer(t *testing.T, searcher Searcher, flow OAuthFlow, capacity int) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := &Server{
		cfg: &config.Config{App: config.AppConfig{
			Env:        "test",
			DefaultZip: "10001",
		}},
		logger:   logger,
		router:   gin.New(),
		engine:   searcher,
		flow:     flow,
		limiter:  ratelimit.NewLimiter(time.Minute, capacity),
		cache:    cache.New(nil, 0),
		recorder: analytics.Nop{},
		jobs:     queue.NewQueue(logger, 1, 4),
	}
	s.registerRoutes()
	return s
}

func doGet(s *Server, target string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func TestSearch_MissingQueryIs400(t *testing.T) {
	searcher := &mockSearcher{}
	s := newTestServer(t, searcher, &mockFlow{}, 100)

	w := doGet(s, "/search", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if searcher.calls != 0 {
		t.Fatalf("engine must not be invoked on validation failure")
	}

	// 纯空白的 q 同样拒绝
	w = doGet(s, "/search?q=%20%20", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("blank q status = %d, want 400", w.Code)
	}
}

func TestSearch_InvalidParamsAre400(t *testing.T) {
	s := newTestServer(t, &mockSearcher{}, &mockFlow{}, 100)

	for _, target := range []string{
		"/search?q=mug&limit=0",
		"/search?q=mug&limit=101",
		"/search?q=mug&limit=abc",
		"/search?q=mug&minRating=-1",
		"/search?q=mug&minReviews=-5",
		"/search?q=mug&maxPrice=-2",
	} {
		if w := doGet(s, target, nil); w.Code != http.StatusBadRequest {
			t.Fatalf("%s: status = %d, want 400", target, w.Code)
		}
	}
}

func TestSearch_DefaultsApplied(t *testing.T) {
	searcher := &mockSearcher{}
	s := newTestServer(t, searcher, &mockFlow{}, 100)

	w := doGet(s, "/search?q=mug", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if searcher.lastReq.Limit != 10 {
		t.Fatalf("default limit = %d, want 10", searcher.lastReq.Limit)
	}
	if searcher.lastReq.Zip != "10001" {
		t.Fatalf("default zip = %q", searcher.lastReq.Zip)
	}
}

func TestSearch_ReturnsEngineItemsVerbatim(t *testing.T) {
	// 引擎是唯一做截断的地方：端点不得二次应用 limit
	items := []model.Listing{
		{Title: "a"}, {Title: "b"}, {Title: "c"}, {Title: "d"}, {Title: "e"},
	}
	searcher := &mockSearcher{items: items}
	s := newTestServer(t, searcher, &mockFlow{}, 100)

	w := doGet(s, "/search?q=mug&limit=2", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var resp searchResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Items) != 5 {
		t.Fatalf("endpoint re-applied limit: got %d items", len(resp.Items))
	}
}

func TestSearch_EmptyResultIsJSONArray(t *testing.T) {
	s := newTestServer(t, &mockSearcher{items: nil}, &mockFlow{}, 100)

	w := doGet(s, "/search?q=mug", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(w.Body.Bytes(), &raw); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if string(raw["items"]) != "[]" {
		t.Fatalf("items = %s, want []", raw["items"])
	}
}

func TestSearch_EngineErrorIsGeneric500(t *testing.T) {
	searcher := &mockSearcher{err: errors.New("adapter pool exploded: secret detail")}
	s := newTestServer(t, searcher, &mockFlow{}, 100)

	w := doGet(s, "/search?q=mug", nil)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	if body := w.Body.String(); strings.Contains(body, "exploded") || strings.Contains(body, "secret") {
		t.Fatalf("internal detail leaked to client: %s", body)
	}
}

func TestSearch_SourcesParsedFromCSV(t *testing.T) {
	searcher := &mockSearcher{}
	s := newTestServer(t, searcher, &mockFlow{}, 100)

	w := doGet(s, "/search?q=mug&sources=etsy,%20curated,", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	got := searcher.lastReq.Sources
	if len(got) != 2 || got[0] != "etsy" || got[1] != "curated" {
		t.Fatalf("sources = %v", got)
	}
}

func TestSearch_RateLimited429(t *testing.T) {
	s := newTestServer(t, &mockSearcher{}, &mockFlow{}, 2)

	headers := map[string]string{"X-Forwarded-For": "203.0.113.9"}
	for i := 0; i < 2; i++ {
		if w := doGet(s, "/search?q=mug", headers); w.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i+1, w.Code)
		}
	}

	w := doGet(s, "/search?q=mug", headers)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode 429 body: %v", err)
	}
	if body["error"] != "Rate limit exceeded. Try again in a minute." {
		t.Fatalf("429 message = %q", body["error"])
	}

	// 其他客户端不受影响
	if w := doGet(s, "/search?q=mug", map[string]string{"X-Forwarded-For": "198.51.100.7"}); w.Code != http.StatusOK {
		t.Fatalf("other identity: status = %d, want 200", w.Code)
	}
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, &mockSearcher{}, &mockFlow{}, 100)

	w := doGet(s, "/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if body["ok"] != true || body["env"] != "test" {
		t.Fatalf("health body = %v", body)
	}
}
