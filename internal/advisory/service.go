// Package advisory は公的機関等が配信する安全注意報フィードの
// 取得機能を提供する。フィードURLは運用者が設定する任意機能で、
// 未設定の場合このパッケージは何もしない。
// 取得は画面表示またはコマンド実行の都度行い、バックグラウンドの
// ポーリングは行わない。取得失敗はアラートワークフローに影響しない。
package advisory

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/mmcdole/gofeed"
)

// MaxBulletins は表示する注意報の最大件数。
const MaxBulletins = 5

// SafeClientFactory は注意報フィード取得に使うSSRF防止機能のインターフェース。
// security.SSRFGuardServiceの部分集合として定義する。
type SafeClientFactory interface {
	NewSafeClient(timeout time.Duration) *http.Client
	ValidateURL(rawURL string) error
}

// Bulletin は注意報の1件を表す。
type Bulletin struct {
	Title       string
	Link        string
	Summary     string
	PublishedAt time.Time
}

// Service は注意報フィードの取得を行う。
type Service struct {
	feedURL string
	guard   SafeClientFactory
	logger  *slog.Logger
	timeout time.Duration
}

// NewService はServiceを生成する。feedURLが空の場合は無効状態となる。
func NewService(feedURL string, guard SafeClientFactory, logger *slog.Logger, timeout time.Duration) *Service {
	return &Service{
		feedURL: feedURL,
		guard:   guard,
		logger:  logger,
		timeout: timeout,
	}
}

// Enabled は注意報フィードが設定されているかを返す。
func (s *Service) Enabled() bool {
	return s.feedURL != ""
}

// Fetch は注意報フィードを取得し、公開時刻の新しい順に最大5件を返す。
// フィードURLは取得前にSSRF検証を行い、取得にはsafeurlの
// 安全なクライアントを使用する。
func (s *Service) Fetch(ctx context.Context) ([]Bulletin, error) {
	if !s.Enabled() {
		return nil, nil
	}

	if err := s.guard.ValidateURL(s.feedURL); err != nil {
		s.logger.Error("注意報フィードURLの検証に失敗しました",
			slog.String("feed_url", s.feedURL),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("注意報フィードURLの検証に失敗しました: %w", err)
	}

	client := s.guard.NewSafeClient(s.timeout)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("リクエスト作成に失敗しました: %w", err)
	}
	req.Header.Set("User-Agent", "BatSignal/1.0 Panic Console")
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml, */*")

	resp, err := client.Do(req)
	if err != nil {
		s.logger.Error("注意報フィードの取得に失敗しました",
			slog.String("feed_url", s.feedURL),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("注意報フィードの取得に失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("注意報フィードがステータス %d を返しました", resp.StatusCode)
	}

	feed, err := gofeed.NewParser().Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("注意報フィードの解析に失敗しました: %w", err)
	}

	bulletins := make([]Bulletin, 0, len(feed.Items))
	for _, item := range feed.Items {
		b := Bulletin{
			Title:   item.Title,
			Link:    item.Link,
			Summary: item.Description,
		}
		if item.PublishedParsed != nil {
			b.PublishedAt = *item.PublishedParsed
		}
		bulletins = append(bulletins, b)
	}

	sort.SliceStable(bulletins, func(i, j int) bool {
		return bulletins[i].PublishedAt.After(bulletins[j].PublishedAt)
	})

	if len(bulletins) > MaxBulletins {
		bulletins = bulletins[:MaxBulletins]
	}
	return bulletins, nil
}
