// Package errmsg はネットワーク操作の失敗をユーザー向けメッセージへ翻訳する。
// クライアント側バリデーションはネットワーク前に弾かれるため、
// ここに到達するのはトランスポート障害とHTTPエラーのみ。
package errmsg

import (
	"errors"
	"net/http"

	"github.com/hitoshi/batsignal/internal/apiclient"
)

// フォールバックメッセージ。サーバーがメッセージを返した場合はそちらを優先する。
const (
	// MsgNetwork はHTTPレスポンスに到達しなかった失敗（DNS・タイムアウト・接続断）。
	MsgNetwork = "ネットワークエラーです。接続を確認してください。"
	// MsgValidation は400 Bad Request。
	MsgValidation = "入力内容の検証に失敗しました。内容を確認してください。"
	// MsgUnauthorized は401 Unauthorized。
	MsgUnauthorized = "認証されていません。ログインし直してください。"
	// MsgForbidden は403 Forbidden。
	MsgForbidden = "この操作を行う権限がありません。"
	// MsgNotFound は404 Not Found。
	MsgNotFound = "対象が見つかりませんでした。"
	// MsgRateLimited は429 Too Many Requests。
	MsgRateLimited = "リクエストが多すぎます。しばらく待ってから再度お試しください。"
	// MsgGeneric は5xxを含むその他の失敗。
	MsgGeneric = "問題が発生しました。もう一度お試しください。"
)

// Message は失敗した操作のエラーをユーザー向けメッセージへ翻訳する。
// 純粋関数であり、必ず文字列を返す（panicしない）。
// HTTPエラーでサーバーがメッセージを返していればそれを使い、
// 無ければステータスコード別のフォールバックを返す。
func Message(err error) string {
	var statusErr *apiclient.StatusError
	if !errors.As(err, &statusErr) {
		// HTTPレスポンスに到達しなかった失敗（nilを含む）は接続系として扱う
		if err == nil {
			return MsgGeneric
		}
		return MsgNetwork
	}

	if statusErr.Message != "" {
		return statusErr.Message
	}

	switch statusErr.StatusCode {
	case http.StatusBadRequest:
		return MsgValidation
	case http.StatusUnauthorized:
		return MsgUnauthorized
	case http.StatusForbidden:
		return MsgForbidden
	case http.StatusNotFound:
		return MsgNotFound
	case http.StatusTooManyRequests:
		return MsgRateLimited
	default:
		return MsgGeneric
	}
}
