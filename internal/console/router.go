package console

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/batsignal/internal/guard"
	"github.com/hitoshi/batsignal/internal/metrics"
	"github.com/hitoshi/batsignal/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger       *slog.Logger
	Guard        *guard.Guard
	LoginLimiter *middleware.LoginRateLimiter
	Gatherer     prometheus.Gatherer

	Login     *LoginHandler
	Dashboard *DashboardHandler
}

// NewRouter はコンソールの全ルーティングとミドルウェアチェーンを構成した
// chi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	LoggingMiddleware → RecoveryMiddleware → SecurityHeadersMiddleware
//
// 保護ルートにはさらにゲートのミドルウェアが入り、未認証・期限切れは
// ログイン画面へリダイレクトされる。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	r.Use(middleware.NewRecoveryMiddleware(deps.Logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())

	// --- 認証不要のルート ---

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", metrics.Handler(deps.Gatherer))

	r.Get("/login", deps.Login.Show)
	r.With(deps.LoginLimiter.Middleware()).Post("/login", deps.Login.Submit)
	r.Post("/logout", deps.Login.Logout)

	// --- 認証が必要なルート ---

	r.Group(func(r chi.Router) {
		r.Use(deps.Guard.Middleware("/login"))

		r.Get("/", deps.Dashboard.Show)
		r.Post("/panic/send", deps.Dashboard.Send)
		r.Post("/panic/{id}/cancel", deps.Dashboard.Cancel)
		r.Post("/history/toggle/{id}", deps.Dashboard.Toggle)
	})

	return r
}
