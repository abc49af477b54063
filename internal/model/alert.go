// Package model はドメインモデルを定義する。
package model

import "time"

// アラート状態の数値コード。コードと表示名はサーバーが割り当てる。
const (
	// StatusCodeInProgress は対応中のアラート。
	StatusCodeInProgress = 1
	// StatusCodeCancelled はキャンセル済みのアラート。
	StatusCodeCancelled = 2
	// StatusCodeResolved は解決済みのアラート。現在のバックエンドでは未使用だが将来の拡張用。
	StatusCodeResolved = 3
)

// AlertStatus はアラートの状態を表す。
// 未知のコードはUnknown扱いとなる。
type AlertStatus struct {
	Code int
	Name string
}

// Cancellable はこの状態のアラートがキャンセル可能かを返す。
// キャンセルできるのは対応中（In Progress）のアラートのみ。
func (s AlertStatus) Cancellable() bool {
	return s.Code == StatusCodeInProgress
}

// Known はサーバーが返した状態コードが既知のものかを返す。
func (s AlertStatus) Known() bool {
	switch s.Code {
	case StatusCodeInProgress, StatusCodeCancelled, StatusCodeResolved:
		return true
	default:
		return false
	}
}

// Alert はユーザーが送信したパニックアラートを表す。
// IDと状態、作成時刻はサーバーが割り当てる。緯度経度はサーバーの
// レスポンスでは文字列として返されるため、そのまま保持する。
type Alert struct {
	ID        int
	Status    AlertStatus
	PanicType string
	Latitude  string
	Longitude string
	Details   string
	CreatedAt time.Time
}

// PanicType はアラート種別の候補を表す。
// サーバーは種別の値を強制しないため、候補はあくまでクライアント側の提案。
type PanicType struct {
	Value string
	Label string
}

// PanicTypes はクライアントが提案するアラート種別の一覧。
// 先頭がドラフトのデフォルト値となる。
var PanicTypes = []PanicType{
	{Value: "robbery", Label: "銀行強盗"},
	{Value: "assault", Label: "暴行"},
	{Value: "murder", Label: "殺人"},
	{Value: "mugging", Label: "路上強盗"},
	{Value: "arson", Label: "放火"},
	{Value: "explosion", Label: "爆発"},
	{Value: "burglary", Label: "侵入窃盗"},
	{Value: "other", Label: "その他"},
}

// DefaultPanicType はドラフトの初期値として使う種別を返す。
func DefaultPanicType() string {
	return PanicTypes[0].Value
}
