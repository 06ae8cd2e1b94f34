package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/akave-ai/quoteedge/internal/config"
	"github.com/akave-ai/quoteedge/internal/model"
	"github.com/akave-ai/quoteedge/internal/quote"
	"github.com/akave-ai/quoteedge/internal/upstream"
	"github.com/akave-ai/quoteedge/internal/visit"
)

const testKey = "secret"

type chanStore struct {
	got  chan model.Visit
	fail bool
}

func newChanStore() *chanStore { return &chanStore{got: make(chan model.Visit, 16)} }

func (s *chanStore) Insert(_ context.Context, v model.Visit) error {
	s.got <- v
	if s.fail {
		return errors.New("visits table unavailable")
	}
	return nil
}

func (s *chanStore) next(t *testing.T) model.Visit {
	t.Helper()
	select {
	case v := <-s.got:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for visit")
		return model.Visit{}
	}
}

type harness struct {
	srv   *Server
	hits  *atomic.Int32
	store *chanStore
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Auth.APIKey = testKey
	cfg.Visits.IPHashSecret = "test-secret"
	return cfg
}

func newHarness(t *testing.T, cfg *config.Config, upstreamHandler http.HandlerFunc) *harness {
	t.Helper()
	hits := &atomic.Int32{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		upstreamHandler(w, r)
	}))
	t.Cleanup(ts.Close)

	store := newChanStore()
	queue := visit.NewQueue(store, visit.NewIPHasher(cfg.Visits.IPHashSecret), visit.QueueConfig{Workers: 1, Size: 16}, zerolog.Nop(), nil)
	quotes := quote.NewService(upstream.New(), ts.URL+"/quotes/random", cfg.Upstream.Timeout, cfg.Upstream.Source)

	srv, err := New(cfg, Deps{Logger: zerolog.Nop(), Quotes: quotes, Visits: queue})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})
	return &harness{srv: srv, hits: hits, store: store}
}

func (h *harness) do(method, target string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	rec := httptest.NewRecorder()
	h.srv.Echo.ServeHTTP(rec, req)
	return rec
}

func withKey(key string) http.Header {
	return http.Header{"X-Api-Key": {key}}
}

func dummyQuote(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"id":7,"quote":"Simplicity is prerequisite for reliability.","author":"Edsger W. Dijkstra","extra":true}`))
}

func decodeMap(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &m); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return m
}

func TestQuote_MissingKey(t *testing.T) {
	h := newHarness(t, testConfig(), dummyQuote)

	rec := h.do(http.MethodGet, "/api/quote", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if body := decodeMap(t, rec); body["error"] != "Missing API key" {
		t.Fatalf("unexpected body %v", body)
	}
	if h.hits.Load() != 0 {
		t.Fatal("upstream must not be called without a key")
	}
	if v := h.store.next(t); v.Status != http.StatusUnauthorized {
		t.Fatalf("expected visit with 401, got %d", v.Status)
	}
}

func TestQuote_WrongKey(t *testing.T) {
	h := newHarness(t, testConfig(), dummyQuote)

	rec := h.do(http.MethodGet, "/api/quote", withKey("nope"))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	if body := decodeMap(t, rec); body["error"] != "Invalid API key" {
		t.Fatalf("unexpected body %v", body)
	}
	if h.hits.Load() != 0 {
		t.Fatal("upstream must not be called with a wrong key")
	}
}

func TestQuote_Success(t *testing.T) {
	h := newHarness(t, testConfig(), dummyQuote)

	rec := h.do(http.MethodGet, "/api/quote?maxLength=120", withKey(testKey))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeMap(t, rec)
	if len(body) != 4 {
		t.Fatalf("expected exactly id, quote, author, source; got %v", body)
	}
	if body["id"] != float64(7) || body["author"] != "Edsger W. Dijkstra" || body["source"] != "dummyjson" {
		t.Fatalf("unexpected body %v", body)
	}
	if body["quote"] != "Simplicity is prerequisite for reliability." {
		t.Fatalf("unexpected quote %v", body["quote"])
	}
	if n := h.hits.Load(); n != 1 {
		t.Fatalf("expected exactly one upstream call, got %d", n)
	}
}

func TestQuote_InvalidMaxLength(t *testing.T) {
	h := newHarness(t, testConfig(), dummyQuote)

	for _, raw := range []string{"5", "301", "abc"} {
		rec := h.do(http.MethodGet, "/api/quote?maxLength="+raw, withKey(testKey))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("maxLength=%s: expected 400, got %d", raw, rec.Code)
		}
		body := decodeMap(t, rec)
		if body["error"] != "Validation failed" {
			t.Fatalf("unexpected body %v", body)
		}
		issues, ok := body["issues"].([]any)
		if !ok || len(issues) != 1 {
			t.Fatalf("expected one issue, got %v", body["issues"])
		}
	}
	if h.hits.Load() != 0 {
		t.Fatal("upstream must not be called for invalid input")
	}
}

func TestQuote_KeyCheckedBeforeValidation(t *testing.T) {
	h := newHarness(t, testConfig(), dummyQuote)

	rec := h.do(http.MethodGet, "/api/quote?maxLength=1", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestQuote_UpstreamTimeout(t *testing.T) {
	cfg := testConfig()
	cfg.Upstream.Timeout = 30 * time.Millisecond
	h := newHarness(t, cfg, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	})

	rec := h.do(http.MethodGet, "/api/quote", withKey(testKey))
	if rec.Code != http.StatusGatewayTimeout {
		t.Fatalf("expected 504, got %d", rec.Code)
	}
	body := decodeMap(t, rec)
	if body["error"] != "Upstream API timed out" {
		t.Fatalf("unexpected body %v", body)
	}
	if _, ok := body["detail"]; !ok {
		t.Fatal("expected detail outside production")
	}
	if v := h.store.next(t); v.Status != http.StatusGatewayTimeout {
		t.Fatalf("expected visit with 504, got %d", v.Status)
	}
}

func TestQuote_UpstreamNonSuccess(t *testing.T) {
	h := newHarness(t, testConfig(), func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	rec := h.do(http.MethodGet, "/api/quote", withKey(testKey))
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}
	body := decodeMap(t, rec)
	if body["error"] != "Upstream API failed" {
		t.Fatalf("unexpected body %v", body)
	}
	if detail, _ := body["detail"].(string); !strings.Contains(detail, "500") {
		t.Fatalf("expected status in detail, got %q", detail)
	}
	if n := h.hits.Load(); n != 1 {
		t.Fatalf("expected exactly one upstream call, got %d", n)
	}
}

func TestQuote_ProductionOmitsDetail(t *testing.T) {
	cfg := testConfig()
	cfg.Primary.Env = config.EnvProduction
	h := newHarness(t, cfg, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	rec := h.do(http.MethodGet, "/api/quote", withKey(testKey))
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}
	body := decodeMap(t, rec)
	if _, ok := body["detail"]; ok {
		t.Fatalf("detail must be absent in production, got %v", body)
	}
	if csp := rec.Header().Get("Content-Security-Policy"); strings.Contains(csp, "script-src 'self' 'unsafe-inline'") {
		t.Fatalf("production CSP must not allow inline scripts: %q", csp)
	}
}

func TestQuote_APIKeyOptional(t *testing.T) {
	cfg := testConfig()
	cfg.Features.RequireAPIKey = false
	h := newHarness(t, cfg, dummyQuote)

	rec := h.do(http.MethodGet, "/api/quote", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 without gate, got %d", rec.Code)
	}
}

func TestVisits_FailingSinkDoesNotAffectResponse(t *testing.T) {
	h := newHarness(t, testConfig(), dummyQuote)
	h.store.fail = true

	rec := h.do(http.MethodGet, "/api/quote", withKey(testKey))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if v := h.store.next(t); v.Path != "/api/quote" || v.Status != http.StatusOK {
		t.Fatalf("unexpected visit %+v", v)
	}
}

func TestVisits_CookieAndRepeatVisitor(t *testing.T) {
	h := newHarness(t, testConfig(), dummyQuote)

	first := h.do(http.MethodGet, "/api/quote", withKey(testKey))
	cookies := first.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != "visitor_id" || !cookies[0].HttpOnly {
		t.Fatalf("expected one http-only visitor cookie, got %v", cookies)
	}
	id := cookies[0].Value
	if v := h.store.next(t); v.VisitorID != id {
		t.Fatalf("expected visitor %q, got %q", id, v.VisitorID)
	}

	header := withKey(testKey)
	header.Set("Cookie", "visitor_id="+id)
	header.Set("Referer", "https://example.com/")
	second := h.do(http.MethodGet, "/api/quote", header)
	if len(second.Result().Cookies()) != 0 {
		t.Fatal("repeat visitor must not get a new cookie")
	}
	v := h.store.next(t)
	if v.VisitorID != id {
		t.Fatalf("expected same visitor %q, got %q", id, v.VisitorID)
	}
	if v.Referrer == nil || *v.Referrer != "https://example.com/" {
		t.Fatalf("unexpected referrer %v", v.Referrer)
	}
	if v.IPHash == nil || *v.IPHash == "192.0.2.1" {
		t.Fatalf("expected hashed ip, got %v", v.IPHash)
	}
}

func TestVisits_UnknownRouteRecorded(t *testing.T) {
	h := newHarness(t, testConfig(), dummyQuote)

	rec := h.do(http.MethodGet, "/nope", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if body := decodeMap(t, rec); body["error"] != "Not Found" {
		t.Fatalf("unexpected body %v", body)
	}
	if v := h.store.next(t); v.Status != http.StatusNotFound || v.Path != "/nope" {
		t.Fatalf("unexpected visit %+v", v)
	}
}

func TestOperationalRoutes(t *testing.T) {
	h := newHarness(t, testConfig(), dummyQuote)

	rec := h.do(http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	data, _ := decodeMap(t, rec)["data"].(map[string]any)
	if data["status"] != "ok" {
		t.Fatalf("unexpected health body %s", rec.Body.String())
	}

	h.do(http.MethodGet, "/api/quote", withKey(testKey))
	rec = h.do(http.MethodGet, "/metrics", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "quoteedge_http_requests_total") {
		t.Fatalf("expected request metrics, got %d", rec.Code)
	}

	if v := h.store.next(t); v.Path != "/api/quote" {
		t.Fatalf("operational routes must not be recorded, got %s", v.Path)
	}
	select {
	case v := <-h.store.got:
		t.Fatalf("unexpected visit %+v", v)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSecurityHeaders(t *testing.T) {
	h := newHarness(t, testConfig(), dummyQuote)

	rec := h.do(http.MethodGet, "/api/quote", withKey(testKey))
	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Fatalf("expected nosniff, got %q", got)
	}
	if got := rec.Header().Get("X-Frame-Options"); got != "SAMEORIGIN" {
		t.Fatalf("expected SAMEORIGIN, got %q", got)
	}
	if csp := rec.Header().Get("Content-Security-Policy"); !strings.Contains(csp, "default-src 'self'") {
		t.Fatalf("unexpected CSP %q", csp)
	}
}

func TestCORSPreflight(t *testing.T) {
	h := newHarness(t, testConfig(), dummyQuote)

	header := http.Header{
		"Origin":                         {"https://app.example"},
		"Access-Control-Request-Method":  {"GET"},
		"Access-Control-Request-Headers": {"x-api-key"},
	}
	rec := h.do(http.MethodOptions, "/api/quote", header)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("unexpected allow origin %q", got)
	}
	if h.hits.Load() != 0 {
		t.Fatal("preflight must not reach upstream")
	}
}

func TestView(t *testing.T) {
	cfg := testConfig()
	cfg.Features.RenderView = true
	h := newHarness(t, cfg, dummyQuote)

	rec := h.do(http.MethodGet, "/", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Fatalf("expected html, got %q", ct)
	}
	if !strings.Contains(rec.Body.String(), "/api/quote") {
		t.Fatal("view must reference the quote endpoint")
	}

	cfg = testConfig()
	h = newHarness(t, cfg, dummyQuote)
	if rec := h.do(http.MethodGet, "/", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("view disabled: expected 404, got %d", rec.Code)
	}
}

func TestQuote_ClientDisconnectDoesNotCancelUpstream(t *testing.T) {
	h := newHarness(t, testConfig(), func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(150 * time.Millisecond)
		dummyQuote(w, r)
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/api/quote", nil).WithContext(ctx)
	req.Header.Set("X-Api-Key", testKey)
	time.AfterFunc(20*time.Millisecond, cancel)

	rec := httptest.NewRecorder()
	h.srv.Echo.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected the upstream call to complete with 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if n := h.hits.Load(); n != 1 {
		t.Fatalf("expected exactly one upstream call, got %d", n)
	}
	if v := h.store.next(t); v.Status != http.StatusOK {
		t.Fatalf("expected visit with 200, got %d", v.Status)
	}
}

func TestQuote_Head(t *testing.T) {
	h := newHarness(t, testConfig(), dummyQuote)

	if rec := h.do(http.MethodHead, "/api/quote", withKey(testKey)); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for HEAD, got %d", rec.Code)
	}
	rec := h.do(http.MethodHead, "/api/quote", nil)
	if rec.Code != http.StatusUnauthorized || rec.Body.Len() != 0 {
		t.Fatalf("expected bodiless 401, got %d %q", rec.Code, rec.Body.String())
	}
}

func TestRequestLog_ReportsTranslatedStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(ts.Close)

	cfg := testConfig()
	var buf bytes.Buffer
	quotes := quote.NewService(upstream.New(), ts.URL, cfg.Upstream.Timeout, cfg.Upstream.Source)
	srv, err := New(cfg, Deps{Logger: zerolog.New(&buf), Quotes: quotes})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/quote", nil)
	req.Header.Set("X-Api-Key", testKey)
	rec := httptest.NewRecorder()
	srv.Echo.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}

	for _, line := range bytes.Split(buf.Bytes(), []byte("\n")) {
		var entry struct {
			Message string `json:"message"`
			Status  int    `json:"status"`
		}
		if json.Unmarshal(line, &entry) != nil || entry.Message != "request" {
			continue
		}
		if entry.Status != http.StatusBadGateway {
			t.Fatalf("request log reported %d, want 502", entry.Status)
		}
		return
	}
	t.Fatalf("no request log line in %s", buf.String())
}
