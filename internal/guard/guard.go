// Package guard は保護された画面・コマンドの入口で評価する認可ゲートを提供する。
// 有効性の純粋な判定と、無効検出時のセッション消去という副作用を分離し、
// 副作用は無効状態への遷移ごとに1回だけ実行する。
package guard

import (
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// State はゲート評価の結果を表す。
type State int

const (
	// Unauthenticated は未認証（トークン無しまたは期限切れ）。
	Unauthenticated State = iota
	// Authenticated は認証済み。
	Authenticated
)

// String はStateの表示名を返す。
func (s State) String() string {
	if s == Authenticated {
		return "authenticated"
	}
	return "unauthenticated"
}

// SessionStore はゲートが必要とするセッション操作のインターフェース。
// session.Storeの部分集合として定義する。
type SessionStore interface {
	Snapshot() (token string, expiresAt int64)
	Clear() error
}

// Valid はセッションの有効性を判定する純粋関数。
// トークンが存在し、かつ有効期限（エポックミリ秒）を現在時刻が
// 超えていないときに限り有効。期限が未記録（0）のトークンは
// 期限切れとして扱う。
// ログイン画面の逆方向リダイレクトもこの同一の述語を使うこと。
func Valid(token string, expiresAt int64, now time.Time) bool {
	if token == "" {
		return false
	}
	return now.UnixMilli() <= expiresAt
}

// Guard はセッションの有効性を評価し、無効検出時にセッションを消去する。
// 消去は無効状態への遷移ごとに1回だけ行い、評価のたびに
// ストレージへ書き込むことを避ける。
type Guard struct {
	store  SessionStore
	logger *slog.Logger

	mu                sync.Mutex
	clearedSinceValid bool
}

// New はGuardを生成する。
func New(store SessionStore, logger *slog.Logger) *Guard {
	return &Guard{
		store:  store,
		logger: logger,
	}
}

// Check は現在のセッション状態を評価する。
// 無効な場合は（未実行であれば）セッションを消去したうえでUnauthenticatedを返す。
// 期限切れトークンを残したままにするとログイン画面側の判定と食い違い
// リダイレクトループの原因になるため、検出時点で消去する。
func (g *Guard) Check(now time.Time) State {
	g.mu.Lock()
	defer g.mu.Unlock()

	token, expiresAt := g.store.Snapshot()

	if Valid(token, expiresAt, now) {
		g.clearedSinceValid = false
		return Authenticated
	}

	if !g.clearedSinceValid {
		if err := g.store.Clear(); err != nil {
			g.logger.Error("セッションの消去に失敗しました",
				slog.String("error", err.Error()),
			)
		} else if token != "" {
			g.logger.Info("期限切れセッションを消去しました")
		}
		g.clearedSinceValid = true
	}

	return Unauthenticated
}

// Middleware は保護ルート用のHTTPミドルウェアを返す。
// 未認証または期限切れのリクエストはログイン画面へリダイレクトし、
// 子ハンドラーを実行しない。
func (g *Guard) Middleware(loginPath string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if g.Check(time.Now()) != Authenticated {
				http.Redirect(w, r, loginPath, http.StatusSeeOther)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
