package console

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/batsignal/internal/advisory"
	"github.com/hitoshi/batsignal/internal/alert"
	"github.com/hitoshi/batsignal/internal/guard"
	"github.com/hitoshi/batsignal/internal/metrics"
	"github.com/hitoshi/batsignal/internal/middleware"
	"github.com/hitoshi/batsignal/internal/security"
)

func newTestRouter(t *testing.T, store *guardStore) http.Handler {
	t.Helper()

	g := guard.New(store, testLogger())
	renderer := testRenderer(t)

	api := &mockPanicAPI{}
	submit := alert.NewSubmitWorkflow(api, testLogger())
	history := alert.NewHistoryWorkflow(api, testLogger())
	advisories := advisory.NewService("", security.NewSSRFGuard(), testLogger(), time.Second)

	limiter := middleware.NewLoginRateLimiter(middleware.DefaultLoginRateLimiterConfig())
	t.Cleanup(limiter.Stop)

	reg := prometheus.NewRegistry()
	metrics.NewCollector(reg)

	return NewRouter(&RouterDeps{
		Logger:       testLogger(),
		Guard:        g,
		LoginLimiter: limiter,
		Gatherer:     reg,
		Login:        NewLoginHandler(&mockLoginClient{}, &mockSessionWriter{}, g, renderer, testLogger()),
		Dashboard:    NewDashboardHandler(submit, history, advisories, security.NewTextSanitizer(), renderer, testLogger()),
	})
}

func authedStore() *guardStore {
	return &guardStore{token: "token", expiresAt: time.Now().Add(time.Hour).UnixMilli()}
}

// --- テスト ---

func TestRouter_HealthIsPublic(t *testing.T) {
	router := newTestRouter(t, &guardStore{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
	if w.Body.String() != "ok" {
		t.Errorf("body = %q, want ok", w.Body.String())
	}
}

func TestRouter_MetricsIsPublic(t *testing.T) {
	router := newTestRouter(t, &guardStore{})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

// TestRouter_DashboardRequiresSession は未認証のダッシュボードアクセスが
// ログイン画面へ転送されることを検証する。
func TestRouter_DashboardRequiresSession(t *testing.T) {
	router := newTestRouter(t, &guardStore{})

	protected := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/"},
		{http.MethodPost, "/panic/send"},
		{http.MethodPost, "/panic/1/cancel"},
		{http.MethodPost, "/history/toggle/1"},
	}

	for _, tt := range protected {
		req := httptest.NewRequest(tt.method, tt.path, nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusSeeOther {
			t.Errorf("%s %s: status = %d, want 303", tt.method, tt.path, w.Code)
		}
		if loc := w.Header().Get("Location"); loc != "/login" {
			t.Errorf("%s %s: Location = %q, want /login", tt.method, tt.path, loc)
		}
	}
}

func TestRouter_DashboardAccessibleWhenAuthenticated(t *testing.T) {
	router := newTestRouter(t, authedStore())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

// TestRouter_ExpiredSessionRedirects は期限切れセッションがダッシュボードに
// 到達できず、セッションが消去されることを検証する。
func TestRouter_ExpiredSessionRedirects(t *testing.T) {
	store := &guardStore{token: "token", expiresAt: time.Now().Add(-time.Minute).UnixMilli()}
	router := newTestRouter(t, store)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusSeeOther {
		t.Errorf("status = %d, want 303", w.Code)
	}
	if store.token != "" {
		t.Error("expired session not cleared")
	}
}

func TestRouter_LoginIsPublic(t *testing.T) {
	router := newTestRouter(t, &guardStore{})

	req := httptest.NewRequest(http.MethodGet, "/login", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

// TestRouter_SecurityHeaders は全レスポンスにセキュリティヘッダーが
// 付与されることを検証する。
func TestRouter_SecurityHeaders(t *testing.T) {
	router := newTestRouter(t, &guardStore{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if got := w.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q, want nosniff", got)
	}
	if got := w.Header().Get("Content-Security-Policy"); got == "" {
		t.Error("Content-Security-Policy header missing")
	}
}
