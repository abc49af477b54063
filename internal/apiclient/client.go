// Package apiclient はBat SignalバックエンドAPIのクライアントを提供する。
// ベースURL・JSONヘッダー・ベアラートークンの付与をここで一元化し、
// 上位のワークフローは型付きの操作だけを扱う。
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/batsignal/internal/model"
)

const userAgent = "BatSignal/1.0 Panic Console"

// expires_inが省略された場合のトークン有効期間（秒）。
const defaultExpiresIn = 3600

// TokenSource は送信リクエストに付与するベアラートークンの供給元。
// 空文字列を返した場合はAuthorizationヘッダーを付与しない。
type TokenSource interface {
	Token() string
}

// StatusRecorder は上流APIの応答を計測するためのインターフェース。
// metrics.Collectorの部分集合。nilの場合は計測しない。
type StatusRecorder interface {
	RecordUpstreamStatus(statusCode int)
	RecordUpstreamLatency(duration time.Duration)
}

// StatusError はHTTPレベルで失敗した操作を表す。
// トランスポート障害（DNS・タイムアウト等）はこの型にならず、
// 元のエラーがそのまま返る。
type StatusError struct {
	StatusCode int
	Message    string // サーバーが返したメッセージ。無い場合は空。
}

// Error はerrorインターフェースを実装する。
func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("APIがステータス %d を返しました: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("APIがステータス %d を返しました", e.StatusCode)
}

// Client はBat Signal APIのクライアント。
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
	logger     *slog.Logger
	recorder   StatusRecorder
}

// NewClient はClientの新しいインスタンスを生成する。
// タイムアウトはhttpClient側で設定する。自動リトライは行わない
// （失敗はすべてインラインに表示し、ユーザーの再操作でリトライする）。
func NewClient(baseURL string, httpClient *http.Client, tokens TokenSource, logger *slog.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		tokens:     tokens,
		logger:     logger,
	}
}

// SetRecorder は上流API計測用のレコーダーを設定する。
func (c *Client) SetRecorder(r StatusRecorder) {
	c.recorder = r
}

// CreatePanicRequest はアラート作成リクエストのボディ。
// 座標はバリデーション済みの数値で送信する。
type CreatePanicRequest struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	PanicType string  `json:"panic_type"`
	Details   string  `json:"details"`
}

// loginRequest はログインリクエストのボディ。
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// loginResponse はログインレスポンスのボディ。
type loginResponse struct {
	Data struct {
		APIAccessToken string `json:"api_access_token"`
		ExpiresIn      int    `json:"expires_in"`
	} `json:"data"`
}

// cancelRequest はキャンセルリクエストのボディ。
type cancelRequest struct {
	PanicID int `json:"panic_id"`
}

// wireAlert はサーバーが返すアラートの表現。
type wireAlert struct {
	ID     int `json:"id"`
	Status struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	} `json:"status"`
	PanicType string `json:"panic_type"`
	Latitude  string `json:"latitude"`
	Longitude string `json:"longitude"`
	Details   string `json:"details"`
	CreatedAt string `json:"created_at"`
}

// alertEnvelope は単一アラートを包むレスポンス。
type alertEnvelope struct {
	Data wireAlert `json:"data"`
}

// historyEnvelope は履歴レスポンス。
type historyEnvelope struct {
	Data struct {
		Panics []wireAlert `json:"panics"`
	} `json:"data"`
}

// errorEnvelope は失敗レスポンスのボディ。
type errorEnvelope struct {
	Message string `json:"message"`
}

// Login は認証を行い、トークンと残り有効期間（秒）を返す。
// expires_inが省略された場合は3600秒として扱う。
func (c *Client) Login(ctx context.Context, email, password string) (token string, expiresIn int, err error) {
	var out loginResponse
	if err := c.do(ctx, http.MethodPost, "/login", loginRequest{Email: email, Password: password}, &out); err != nil {
		return "", 0, err
	}

	expiresIn = out.Data.ExpiresIn
	if expiresIn == 0 {
		expiresIn = defaultExpiresIn
	}
	return out.Data.APIAccessToken, expiresIn, nil
}

// SendPanic は新しいパニックアラートを作成する。
func (c *Client) SendPanic(ctx context.Context, req CreatePanicRequest) (*model.Alert, error) {
	var out alertEnvelope
	if err := c.do(ctx, http.MethodPost, "/panic/send", req, &out); err != nil {
		return nil, err
	}
	alert := toAlert(out.Data)
	return &alert, nil
}

// CancelPanic は指定IDのアラートをキャンセルする。
func (c *Client) CancelPanic(ctx context.Context, panicID int) (*model.Alert, error) {
	var out alertEnvelope
	if err := c.do(ctx, http.MethodPost, "/panic/cancel/", cancelRequest{PanicID: panicID}, &out); err != nil {
		return nil, err
	}
	alert := toAlert(out.Data)
	return &alert, nil
}

// History は現在のユーザーのアラート履歴を取得する。
// 並び替えと件数制限は呼び出し側（履歴ワークフロー）の責務。
func (c *Client) History(ctx context.Context) ([]model.Alert, error) {
	var out historyEnvelope
	if err := c.do(ctx, http.MethodGet, "/panic/history", nil, &out); err != nil {
		return nil, err
	}

	alerts := make([]model.Alert, 0, len(out.Data.Panics))
	for _, w := range out.Data.Panics {
		alerts = append(alerts, toAlert(w))
	}
	return alerts, nil
}

// do はリクエストの構築・実行・レスポンス解釈を行う共通処理。
// ステータス400以上は*StatusErrorとして返す。
func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("リクエストボディのエンコードに失敗しました: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("X-Request-ID", uuid.New().String())

	// トークンがある場合のみベアラー認証を付与する
	if token := c.tokens.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if c.recorder != nil {
		c.recorder.RecordUpstreamLatency(time.Since(start))
	}
	if err != nil {
		c.logger.Error("APIリクエストに失敗しました",
			slog.String("method", method),
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("APIリクエストに失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if c.recorder != nil {
		c.recorder.RecordUpstreamStatus(resp.StatusCode)
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}

	if resp.StatusCode >= 400 {
		var envelope errorEnvelope
		// メッセージが取り出せないボディはフォールバック文言に任せる
		_ = json.Unmarshal(respBody, &envelope)

		c.logger.Warn("APIがエラーステータスを返しました",
			slog.String("method", method),
			slog.String("path", path),
			slog.Int("http_status", resp.StatusCode),
		)
		return &StatusError{StatusCode: resp.StatusCode, Message: envelope.Message}
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
		}
	}

	return nil
}

// toAlert はワイヤ表現をドメインモデルに変換する。
// 作成時刻はRFC 3339または"2006-01-02 15:04:05"として解釈し、
// どちらでもない場合はゼロ値（並び順の最後尾）とする。
func toAlert(w wireAlert) model.Alert {
	return model.Alert{
		ID: w.ID,
		Status: model.AlertStatus{
			Code: w.Status.ID,
			Name: w.Status.Name,
		},
		PanicType: w.PanicType,
		Latitude:  w.Latitude,
		Longitude: w.Longitude,
		Details:   w.Details,
		CreatedAt: parseCreatedAt(w.CreatedAt),
	}
}

// createdAtLayouts はサーバーの作成時刻表現として許容するレイアウト。
var createdAtLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
}

func parseCreatedAt(raw string) time.Time {
	for _, layout := range createdAtLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t
		}
	}
	return time.Time{}
}
