package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizerService はサーバー由来文字列のサニタイズ機能の
// インターフェースを定義する。アラート詳細、APIエラーメッセージ、
// 注意報のタイトルや概要など、サーバーから受け取った文字列を
// コンソールに表示する前にプレーンテキストへ落とす。
type TextSanitizerService interface {
	// Sanitize は入力からすべてのHTMLタグを除去したプレーンテキストを返す。
	// HTMLエスケープはテンプレート側で行うため、実体参照は展開して返す。
	// 空文字列の入力には空文字列を返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(raw string) string
}

// textSanitizer はTextSanitizerServiceの実装。
// bluemondayのStrictPolicyを保持し、スレッドセーフにサニタイズ処理を行う。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerServiceの新しいインスタンスを生成する。
// StrictPolicyは許可タグを一切持たないため、すべてのタグと
// on*イベント属性が除去される。
func NewTextSanitizer() *textSanitizer {
	return &textSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize はサーバー由来の文字列をプレーンテキストへ落とす。
func (s *textSanitizer) Sanitize(raw string) string {
	if raw == "" {
		return ""
	}

	stripped := s.policy.Sanitize(raw)
	// StrictPolicyは残ったテキストを実体参照としてエスケープするため、
	// 表示用のプレーンテキストに戻す（再エスケープはテンプレートの責務）
	return strings.TrimSpace(html.UnescapeString(stripped))
}
