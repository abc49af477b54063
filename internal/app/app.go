// Package app はアプリケーションの起動とワイヤリングを提供する。
package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/batsignal/internal/advisory"
	"github.com/hitoshi/batsignal/internal/alert"
	"github.com/hitoshi/batsignal/internal/apiclient"
	"github.com/hitoshi/batsignal/internal/config"
	"github.com/hitoshi/batsignal/internal/console"
	"github.com/hitoshi/batsignal/internal/errmsg"
	"github.com/hitoshi/batsignal/internal/guard"
	"github.com/hitoshi/batsignal/internal/logger"
	"github.com/hitoshi/batsignal/internal/metrics"
	"github.com/hitoshi/batsignal/internal/middleware"
	"github.com/hitoshi/batsignal/internal/model"
	"github.com/hitoshi/batsignal/internal/security"
	"github.com/hitoshi/batsignal/internal/session"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで実行する。
// argsにはos.Args[1:]を渡す。ログは標準エラーへ、コマンドの実行結果は
// outへ書き込む。
func Run(out io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(nil)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("api_base_url", cfg.APIBaseURL),
	)

	rest := args
	if len(rest) > 0 {
		rest = rest[1:]
	}

	switch cmd {
	case CommandLogin:
		return runLogin(cfg, out, rest)
	case CommandLogout:
		return runLogout(cfg, out)
	case CommandSend:
		return runSend(cfg, out, rest)
	case CommandHistory:
		return runHistory(cfg, out)
	case CommandCancel:
		return runCancel(cfg, out, rest)
	case CommandAdvisories:
		return runAdvisories(cfg, out)
	default:
		return runServe(cfg)
	}
}

// newSessionStore は状態ファイルからセッションを復元する。
func newSessionStore(cfg *config.Config) (*session.Store, error) {
	store, err := session.New(cfg.StateFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open session store: %w", err)
	}
	return store, nil
}

// newAPIClient はセッションをトークン供給元とするAPIクライアントを生成する。
func newAPIClient(cfg *config.Config, store *session.Store) *apiclient.Client {
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	return apiclient.NewClient(cfg.APIBaseURL, httpClient, store, slog.Default())
}

// requireSession は保護コマンドの入口でセッションの有効性を評価する。
// 無効な場合は（ゲートの副作用として）期限切れセッションを消去したうえで
// エラーを返す。
func requireSession(store *session.Store) error {
	g := guard.New(store, slog.Default())
	if g.Check(time.Now()) != guard.Authenticated {
		return errors.New("ログインが必要です。先に login コマンドを実行してください")
	}
	return nil
}

// runServe はWebコンソールモードで起動する。
// 全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. セッションと認可ゲート
	store, err := newSessionStore(cfg)
	if err != nil {
		return err
	}
	g := guard.New(store, slog.Default())

	// 2. メトリクス
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 3. APIクライアント
	client := newAPIClient(cfg, store)
	client.SetRecorder(collector)

	// 4. ワークフローの初期化
	submit := alert.NewSubmitWorkflow(client, slog.Default())
	submit.SetRecorder(collector)

	history := alert.NewHistoryWorkflow(client, slog.Default())
	history.SetRecorder(collector)

	// 作成成功後は履歴の全件取得をやり直してサーバーの正とする
	submit.SetOnCreated(func() {
		history.Refresh(context.Background())
	})

	// 5. セキュリティサービスと注意報フィード
	ssrfGuard := security.NewSSRFGuard()
	sanitizer := security.NewTextSanitizer()
	advisories := advisory.NewService(cfg.AdvisoryFeedURL, ssrfGuard, slog.Default(), cfg.HTTPTimeout)

	// 6. ハンドラーの構築
	renderer, err := console.NewRenderer(slog.Default())
	if err != nil {
		return fmt.Errorf("failed to initialize renderer: %w", err)
	}

	loginHandler := console.NewLoginHandler(client, store, g, renderer, slog.Default())
	dashboardHandler := console.NewDashboardHandler(submit, history, advisories, sanitizer, renderer, slog.Default())

	// 7. ルーターの構築
	limiter := middleware.NewLoginRateLimiter(
		middleware.NewLoginRateLimiterConfig(cfg.LoginRatePerMin),
	)
	defer limiter.Stop()

	router := console.NewRouter(&console.RouterDeps{
		Logger:       slog.Default(),
		Guard:        g,
		LoginLimiter: limiter,
		Gatherer:     registry,
		Login:        loginHandler,
		Dashboard:    dashboardHandler,
	})

	// 8. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("console server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down console server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("console server stopped gracefully")
	return nil
}

// runLogin は認証を行い、セッションを状態ファイルへ保存する。
func runLogin(cfg *config.Config, out io.Writer, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	fs.SetOutput(out)
	email := fs.String("email", "", "メールアドレス")
	password := fs.String("password", "", "パスワード")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if err := model.ValidateCredentials(*email, *password); err != nil {
		var vErr *model.ValidationError
		if errors.As(err, &vErr) {
			return errors.New(vErr.Message)
		}
		return err
	}

	store, err := newSessionStore(cfg)
	if err != nil {
		return err
	}
	client := newAPIClient(cfg, store)

	token, expiresIn, err := client.Login(context.Background(), *email, *password)
	if err != nil {
		return errors.New(errmsg.Message(err))
	}

	if err := store.Save(token, expiresIn); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	fmt.Fprintf(out, "ログインしました（有効期間 %d 秒）\n", expiresIn)
	return nil
}

// runLogout はセッションを破棄する。未ログインでも安全に実行できる。
func runLogout(cfg *config.Config, out io.Writer) error {
	store, err := newSessionStore(cfg)
	if err != nil {
		return err
	}
	if err := store.Clear(); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	fmt.Fprintln(out, "ログアウトしました")
	return nil
}

// runSend はパニックアラートを送信する。
// 検証ルールと送信の流れはWebコンソールの送信ワークフローと共通。
func runSend(cfg *config.Config, out io.Writer, args []string) error {
	fs := flag.NewFlagSet("send", flag.ContinueOnError)
	fs.SetOutput(out)
	lat := fs.String("lat", "", "緯度")
	lng := fs.String("lng", "", "経度")
	panicType := fs.String("type", model.DefaultPanicType(), "アラート種別")
	details := fs.String("details", "", "詳細（任意、最大200文字）")
	if err := fs.Parse(args); err != nil {
		return err
	}

	store, err := newSessionStore(cfg)
	if err != nil {
		return err
	}
	if err := requireSession(store); err != nil {
		return err
	}
	client := newAPIClient(cfg, store)

	submit := alert.NewSubmitWorkflow(client, slog.Default())
	submit.SetDraft(alert.Draft{
		Latitude:  *lat,
		Longitude: *lng,
		PanicType: *panicType,
		Details:   *details,
	})

	created, err := submit.Submit(context.Background())
	if err != nil {
		if msg := submit.ErrorMessage(); msg != "" {
			return errors.New(msg)
		}
		return err
	}

	fmt.Fprintf(out, "アラートを送信しました（ID: %d, 種別: %s）\n", created.ID, created.PanicType)
	return nil
}

// runHistory はアラート履歴を表示する。
// 表示は作成時刻の降順で最大10件。
func runHistory(cfg *config.Config, out io.Writer) error {
	store, err := newSessionStore(cfg)
	if err != nil {
		return err
	}
	if err := requireSession(store); err != nil {
		return err
	}
	client := newAPIClient(cfg, store)

	alerts, err := client.History(context.Background())
	if err != nil {
		return errors.New(errmsg.Message(err))
	}

	visible := alert.SortAndCap(alerts, alert.MaxVisible)
	if len(visible) == 0 {
		fmt.Fprintln(out, "パニック履歴はありません")
		return nil
	}

	for _, a := range visible {
		createdAt := "不明"
		if !a.CreatedAt.IsZero() {
			createdAt = a.CreatedAt.Local().Format("2006/01/02 15:04")
		}
		fmt.Fprintf(out, "[%d] %s  %s  %s  (%s, %s)\n",
			a.ID, a.Status.Name, a.PanicType, createdAt, a.Latitude, a.Longitude)
		if a.Details != "" {
			fmt.Fprintf(out, "    %s\n", a.Details)
		}
	}
	return nil
}

// runCancel は指定IDのアラートをキャンセルする。
func runCancel(cfg *config.Config, out io.Writer, args []string) error {
	fs := flag.NewFlagSet("cancel", flag.ContinueOnError)
	fs.SetOutput(out)
	id := fs.Int("id", 0, "キャンセルするアラートのID")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id <= 0 {
		return errors.New("キャンセルするアラートのIDを -id で指定してください")
	}

	store, err := newSessionStore(cfg)
	if err != nil {
		return err
	}
	if err := requireSession(store); err != nil {
		return err
	}
	client := newAPIClient(cfg, store)

	cancelled, err := client.CancelPanic(context.Background(), *id)
	if err != nil {
		return errors.New(errmsg.Message(err))
	}

	fmt.Fprintf(out, "アラートをキャンセルしました（ID: %d, 状態: %s）\n",
		cancelled.ID, cancelled.Status.Name)
	return nil
}

// runAdvisories は安全注意報フィードを取得して表示する。
func runAdvisories(cfg *config.Config, out io.Writer) error {
	svc := advisory.NewService(cfg.AdvisoryFeedURL, security.NewSSRFGuard(), slog.Default(), cfg.HTTPTimeout)
	if !svc.Enabled() {
		fmt.Fprintln(out, "注意報フィードが設定されていません（ADVISORY_FEED_URL）")
		return nil
	}

	bulletins, err := svc.Fetch(context.Background())
	if err != nil {
		return err
	}
	if len(bulletins) == 0 {
		fmt.Fprintln(out, "現在、注意報はありません")
		return nil
	}

	for _, b := range bulletins {
		published := ""
		if !b.PublishedAt.IsZero() {
			published = b.PublishedAt.Local().Format("2006/01/02 15:04")
		}
		fmt.Fprintf(out, "%s  %s\n    %s\n", published, b.Title, b.Link)
	}
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}
