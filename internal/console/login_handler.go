package console

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/batsignal/internal/errmsg"
	"github.com/hitoshi/batsignal/internal/guard"
	"github.com/hitoshi/batsignal/internal/model"
)

// LoginClient はログインハンドラーが必要とするAPI操作のインターフェース。
// apiclient.Clientの部分集合として定義する。
type LoginClient interface {
	Login(ctx context.Context, email, password string) (token string, expiresIn int, err error)
}

// SessionWriter はログイン・ログアウトに必要なセッション操作のインターフェース。
// session.Storeの部分集合として定義する。
type SessionWriter interface {
	Save(token string, lifetimeSeconds int) error
	Clear() error
}

// LoginHandler はログイン・ログアウトのHTTPハンドラー。
type LoginHandler struct {
	client   LoginClient
	sessions SessionWriter
	guard    *guard.Guard
	renderer *Renderer
	logger   *slog.Logger
}

// NewLoginHandler はLoginHandlerを生成する。
func NewLoginHandler(client LoginClient, sessions SessionWriter, g *guard.Guard, renderer *Renderer, logger *slog.Logger) *LoginHandler {
	return &LoginHandler{
		client:   client,
		sessions: sessions,
		guard:    g,
		renderer: renderer,
		logger:   logger,
	}
}

// loginView はログイン画面のテンプレートデータ。
type loginView struct {
	Email string
	Error string
}

// Show はログイン画面を表示する。
// GET /login
// 認証済みで有効期限内の場合はダッシュボードへリダイレクトする
// （保護ルートのゲートと同一の述語による逆方向の判定）。
func (h *LoginHandler) Show(w http.ResponseWriter, r *http.Request) {
	if h.guard.Check(time.Now()) == guard.Authenticated {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	h.renderer.Render(w, "login.html", loginView{})
}

// Submit はログインを処理する。
// POST /login
// クライアント側チェック（未入力・メールアドレス形式）に失敗した場合は
// ネットワークを呼ばずにメッセージを表示する。
func (h *LoginHandler) Submit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderer.Render(w, "login.html", loginView{Error: errmsg.MsgGeneric})
		return
	}

	email := r.FormValue("email")
	password := r.FormValue("password")

	if err := model.ValidateCredentials(email, password); err != nil {
		var vErr *model.ValidationError
		msg := errmsg.MsgGeneric
		if errors.As(err, &vErr) {
			msg = vErr.Message
		}
		h.renderer.Render(w, "login.html", loginView{Email: email, Error: msg})
		return
	}

	token, expiresIn, err := h.client.Login(r.Context(), email, password)
	if err != nil {
		h.renderer.Render(w, "login.html", loginView{Email: email, Error: errmsg.Message(err)})
		return
	}

	if err := h.sessions.Save(token, expiresIn); err != nil {
		h.logger.Error("セッションの保存に失敗しました",
			slog.String("error", err.Error()),
		)
		h.renderer.Render(w, "login.html", loginView{Email: email, Error: errmsg.MsgGeneric})
		return
	}

	h.logger.Info("ログインしました", slog.Int("expires_in", expiresIn))
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// Logout はセッションを破棄してログイン画面へ戻す。
// POST /logout
func (h *LoginHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Clear(); err != nil {
		h.logger.Error("セッションの消去に失敗しました",
			slog.String("error", err.Error()),
		)
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}
