package advisory

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// --- モック定義 ---

// permissiveGuard は検証を素通しするテスト用のファクトリ。
// httptestのループバックアドレスは本物のSSRFガードにブロックされるため、
// フィード取得のテストではこちらを使う。
type permissiveGuard struct {
	validateErr error
}

func (g *permissiveGuard) NewSafeClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

func (g *permissiveGuard) ValidateURL(_ string) error {
	return g.validateErr
}

var _ SafeClientFactory = (*permissiveGuard)(nil)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func rssFeed(items ...string) string {
	return `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>安全注意報</title>` + strings.Join(items, "") + `</channel></rss>`
}

func rssItem(title, link, pubDate string) string {
	return fmt.Sprintf(`<item><title>%s</title><link>%s</link><description>%sの詳細</description><pubDate>%s</pubDate></item>`,
		title, link, title, pubDate)
}

// --- テスト ---

func TestEnabled(t *testing.T) {
	svc := NewService("", &permissiveGuard{}, testLogger(), time.Second)
	if svc.Enabled() {
		t.Error("Enabled = true for empty feed URL, want false")
	}

	svc = NewService("https://alerts.example/feed.xml", &permissiveGuard{}, testLogger(), time.Second)
	if !svc.Enabled() {
		t.Error("Enabled = false for configured feed URL, want true")
	}
}

func TestFetch_Disabled_ReturnsNil(t *testing.T) {
	svc := NewService("", &permissiveGuard{}, testLogger(), time.Second)

	bulletins, err := svc.Fetch(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if bulletins != nil {
		t.Errorf("bulletins = %v, want nil", bulletins)
	}
}

func TestFetch_ParsesAndSortsDescending(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = io.WriteString(w, rssFeed(
			rssItem("古い注意報", "https://alerts.example/1", "Tue, 25 Aug 2026 10:00:00 GMT"),
			rssItem("新しい注意報", "https://alerts.example/2", "Thu, 27 Aug 2026 10:00:00 GMT"),
			rssItem("中間の注意報", "https://alerts.example/3", "Wed, 26 Aug 2026 10:00:00 GMT"),
		))
	}))
	defer server.Close()

	svc := NewService(server.URL, &permissiveGuard{}, testLogger(), 5*time.Second)

	bulletins, err := svc.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(bulletins) != 3 {
		t.Fatalf("len = %d, want 3", len(bulletins))
	}

	wantOrder := []string{"新しい注意報", "中間の注意報", "古い注意報"}
	for i, want := range wantOrder {
		if bulletins[i].Title != want {
			t.Errorf("bulletins[%d].Title = %q, want %q", i, bulletins[i].Title, want)
		}
	}
	if bulletins[0].Link != "https://alerts.example/2" {
		t.Errorf("Link = %q, want %q", bulletins[0].Link, "https://alerts.example/2")
	}
}

// TestFetch_CapsAtMaxBulletins は件数が上限で打ち切られることを検証する。
func TestFetch_CapsAtMaxBulletins(t *testing.T) {
	weekdays := []string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun", "Mon"}
	var items []string
	for i := 0; i < 8; i++ {
		items = append(items, rssItem(
			fmt.Sprintf("注意報%d", i),
			fmt.Sprintf("https://alerts.example/%d", i),
			fmt.Sprintf("%s, %02d Aug 2026 10:00:00 GMT", weekdays[i], 10+i),
		))
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, rssFeed(items...))
	}))
	defer server.Close()

	svc := NewService(server.URL, &permissiveGuard{}, testLogger(), 5*time.Second)

	bulletins, err := svc.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(bulletins) != MaxBulletins {
		t.Errorf("len = %d, want %d", len(bulletins), MaxBulletins)
	}
	// 最も新しいものが先頭
	if bulletins[0].Title != "注意報7" {
		t.Errorf("bulletins[0].Title = %q, want 注意報7", bulletins[0].Title)
	}
}

func TestFetch_ValidationFailure_ReturnsError(t *testing.T) {
	guard := &permissiveGuard{validateErr: errors.New("blocked host")}
	svc := NewService("http://169.254.169.254/feed", guard, testLogger(), time.Second)

	if _, err := svc.Fetch(context.Background()); err == nil {
		t.Error("expected error for blocked URL, got nil")
	}
}

func TestFetch_NonOKStatus_ReturnsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	svc := NewService(server.URL, &permissiveGuard{}, testLogger(), time.Second)

	if _, err := svc.Fetch(context.Background()); err == nil {
		t.Error("expected error for 503 response, got nil")
	}
}

func TestFetch_InvalidFeed_ReturnsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "this is not a feed")
	}))
	defer server.Close()

	svc := NewService(server.URL, &permissiveGuard{}, testLogger(), time.Second)

	if _, err := svc.Fetch(context.Background()); err == nil {
		t.Error("expected error for invalid feed, got nil")
	}
}
