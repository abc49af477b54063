// Package model はドメインモデルを定義する。
package model

import (
	"fmt"
	"regexp"
	"unicode/utf8"
)

// MaxDetailsLength はアラート詳細の最大文字数。
const MaxDetailsLength = 200

// ValidationError はクライアント側バリデーションの失敗を表す。
// ネットワーク送信前に検出されるため、エラー翻訳を経由せず
// メッセージをそのままUIに表示する。
type ValidationError struct {
	Code    string // エラーコード
	Field   string // 対象フィールド
	Message string // ユーザー向けメッセージ
}

// Error はerrorインターフェースを実装する。
func (e *ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みバリデーションエラーコード
const (
	ErrCodeCoordinatesRequired = "COORDINATES_REQUIRED"
	ErrCodeLatitudeRange       = "LATITUDE_RANGE"
	ErrCodeLongitudeRange      = "LONGITUDE_RANGE"
	ErrCodeDetailsTooLong      = "DETAILS_TOO_LONG"
	ErrCodeCredentialsRequired = "CREDENTIALS_REQUIRED"
	ErrCodeInvalidEmail        = "INVALID_EMAIL"
	ErrCodeSubmissionInFlight  = "SUBMISSION_IN_FLIGHT"
	ErrCodeCancelInFlight      = "CANCEL_IN_FLIGHT"
)

// NewCoordinatesRequiredError は座標未入力エラーを生成する。
func NewCoordinatesRequiredError() *ValidationError {
	return &ValidationError{
		Code:    ErrCodeCoordinatesRequired,
		Field:   "latitude",
		Message: "位置座標を入力してください。",
	}
}

// NewLatitudeRangeError は緯度の範囲エラーを生成する。
func NewLatitudeRangeError() *ValidationError {
	return &ValidationError{
		Code:    ErrCodeLatitudeRange,
		Field:   "latitude",
		Message: "緯度は-90から90の範囲の数値で入力してください。",
	}
}

// NewLongitudeRangeError は経度の範囲エラーを生成する。
func NewLongitudeRangeError() *ValidationError {
	return &ValidationError{
		Code:    ErrCodeLongitudeRange,
		Field:   "longitude",
		Message: "経度は-180から180の範囲の数値で入力してください。",
	}
}

// NewDetailsTooLongError は詳細の文字数超過エラーを生成する。
func NewDetailsTooLongError() *ValidationError {
	return &ValidationError{
		Code:    ErrCodeDetailsTooLong,
		Field:   "details",
		Message: fmt.Sprintf("詳細は%d文字以内で入力してください。", MaxDetailsLength),
	}
}

// NewCredentialsRequiredError はメールアドレス・パスワード未入力エラーを生成する。
func NewCredentialsRequiredError() *ValidationError {
	return &ValidationError{
		Code:    ErrCodeCredentialsRequired,
		Field:   "email",
		Message: "メールアドレスとパスワードを入力してください。",
	}
}

// NewInvalidEmailError はメールアドレス形式エラーを生成する。
func NewInvalidEmailError() *ValidationError {
	return &ValidationError{
		Code:    ErrCodeInvalidEmail,
		Field:   "email",
		Message: "メールアドレスの形式が正しくありません。",
	}
}

// NewSubmissionInFlightError は送信多重実行エラーを生成する。
func NewSubmissionInFlightError() *ValidationError {
	return &ValidationError{
		Code:    ErrCodeSubmissionInFlight,
		Message: "アラートを送信中です。完了までお待ちください。",
	}
}

// NewCancelInFlightError はキャンセル多重実行エラーを生成する。
func NewCancelInFlightError(alertID int) *ValidationError {
	return &ValidationError{
		Code:    ErrCodeCancelInFlight,
		Message: fmt.Sprintf("アラート %d をキャンセル中です。完了までお待ちください。", alertID),
	}
}

// emailPattern はメールアドレスの形式チェック。
// @が1つ、@の前後に1文字以上、ドメイン部にドットを含み、空白を含まないこと。
var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ValidateCredentials はログインフォームのクライアント側チェックを行う。
// 未入力チェック、メールアドレス形式チェックの順に評価し、
// 最初に失敗したルールのエラーを返す。
func ValidateCredentials(email, password string) error {
	if email == "" || password == "" {
		return NewCredentialsRequiredError()
	}
	if !emailPattern.MatchString(email) {
		return NewInvalidEmailError()
	}
	return nil
}

// DetailsLength は詳細フィールドの文字数（rune数）を返す。
func DetailsLength(details string) int {
	return utf8.RuneCountInString(details)
}
