// Package alert はパニックアラートの送信ワークフローと履歴ワークフローを提供する。
// コンソールとCLIの両方がこのパッケージの状態機械を共有する。
package alert

import (
	"math"
	"strconv"

	"github.com/hitoshi/batsignal/internal/model"
)

// Draft は送信前のアラート入力値を表す。
// 永続化されない一時状態で、送信成功時にデフォルトへリセットされ、
// 失敗時は再入力不要となるよう保持される。
type Draft struct {
	Latitude  string
	Longitude string
	PanicType string
	Details   string
}

// NewDraft はデフォルト値のドラフトを返す。
// 座標と詳細は空、種別は候補リストの先頭。
func NewDraft() Draft {
	return Draft{
		PanicType: model.DefaultPanicType(),
	}
}

// SetDetails は詳細を設定する。入力側の切り詰めとして
// 最大文字数を超えた分は捨てる。
func (d *Draft) SetDetails(details string) {
	runes := []rune(details)
	if len(runes) > model.MaxDetailsLength {
		runes = runes[:model.MaxDetailsLength]
	}
	d.Details = string(runes)
}

// Validate はドラフトをルール順に検証し、最初に失敗したルールの
// エラーを返す。検証はネットワークを呼ばず、ドラフトを変更しない。
// 成功時はパース済みの座標を返す。
//
// ルールの評価順:
//  1. 緯度・経度がともに非空
//  2. 緯度が数値として[-90, 90]の範囲
//  3. 経度が数値として[-180, 180]の範囲
//  4. 詳細が200文字以内
func (d Draft) Validate() (latitude, longitude float64, err error) {
	if d.Latitude == "" || d.Longitude == "" {
		return 0, 0, model.NewCoordinatesRequiredError()
	}

	latitude, parseErr := strconv.ParseFloat(d.Latitude, 64)
	if parseErr != nil || math.IsNaN(latitude) || latitude < -90 || latitude > 90 {
		return 0, 0, model.NewLatitudeRangeError()
	}

	longitude, parseErr = strconv.ParseFloat(d.Longitude, 64)
	if parseErr != nil || math.IsNaN(longitude) || longitude < -180 || longitude > 180 {
		return 0, 0, model.NewLongitudeRangeError()
	}

	if model.DetailsLength(d.Details) > model.MaxDetailsLength {
		return 0, 0, model.NewDetailsTooLongError()
	}

	return latitude, longitude, nil
}
