package alert

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/hitoshi/batsignal/internal/errmsg"
	"github.com/hitoshi/batsignal/internal/model"
)

// MaxVisible は履歴に表示する最大件数。
const MaxVisible = 10

// SkeletonRows はLoading中に表示するプレースホルダー行数。
// 表示される一覧と同じ形（最大件数ぶん）のプレースホルダーを出す。
const SkeletonRows = MaxVisible

// Phase は履歴ワークフローの表示状態を表す。
// LoadingはError・Empty・Populatedのいずれかに必ず解決する。
// 手動リフレッシュ時のみLoadingへ戻る。
type Phase int

const (
	// PhaseLoading は初回取得が解決するまでの状態。
	PhaseLoading Phase = iota
	// PhaseError は取得失敗。翻訳済みメッセージを保持し、一覧は空として扱う。
	PhaseError
	// PhaseEmpty はアラート0件。エラーではない正常な終端状態。
	PhaseEmpty
	// PhasePopulated は1件以上の表示状態。
	PhasePopulated
)

// String はPhaseの表示名を返す。
func (p Phase) String() string {
	switch p {
	case PhaseLoading:
		return "loading"
	case PhaseError:
		return "error"
	case PhaseEmpty:
		return "empty"
	case PhasePopulated:
		return "populated"
	default:
		return "unknown"
	}
}

// HistoryClient は履歴ワークフローが必要とするAPI操作のインターフェース。
// apiclient.Clientの部分集合として定義する。
type HistoryClient interface {
	History(ctx context.Context) ([]model.Alert, error)
	CancelPanic(ctx context.Context, panicID int) (*model.Alert, error)
}

// CancelState はアラートIDごとのキャンセル操作の状態。
// UI一時状態であり、サーバーが管理するアラート状態とは独立した側表。
type CancelState struct {
	Pending bool
	Error   string
}

// HistoryWorkflow はアラート履歴ワークフローの状態機械。
// 取得・並び替え・件数制限・行展開・アラートIDごとのキャンセル状態を管理する。
type HistoryWorkflow struct {
	client   HistoryClient
	logger   *slog.Logger
	recorder EventRecorder

	mu         sync.Mutex
	phase      Phase
	alerts     []model.Alert
	errMsg     string
	expandedID int // 0は未展開
	cancels    map[int]*CancelState
}

// NewHistoryWorkflow はHistoryWorkflowを生成する。初期状態はLoading。
func NewHistoryWorkflow(client HistoryClient, logger *slog.Logger) *HistoryWorkflow {
	return &HistoryWorkflow{
		client:  client,
		logger:  logger,
		phase:   PhaseLoading,
		cancels: make(map[int]*CancelState),
	}
}

// SetRecorder は計測用レコーダーを設定する。
func (w *HistoryWorkflow) SetRecorder(r EventRecorder) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.recorder = r
}

// SortAndCap はアラートを作成時刻の降順に安定ソートし、max件に制限する。
// 作成時刻が同一の場合はサーバーが返した元の順序を保つ。
// 入力スライスは変更しない。
func SortAndCap(alerts []model.Alert, max int) []model.Alert {
	sorted := make([]model.Alert, len(alerts))
	copy(sorted, alerts)

	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
	})

	if len(sorted) > max {
		sorted = sorted[:max]
	}
	return sorted
}

// Refresh は履歴の全件取得の契約を実行する。
// Loadingへ遷移したうえで取得し、結果に応じてError・Empty・Populatedの
// いずれかへ解決する。取得失敗時は一覧を空として扱う。
// アラートIDごとのキャンセル状態には触れない（他アラートの
// キャンセル途中経過をリフレッシュが消さないこと）。
func (w *HistoryWorkflow) Refresh(ctx context.Context) {
	w.mu.Lock()
	w.phase = PhaseLoading
	w.mu.Unlock()

	alerts, err := w.client.History(ctx)

	w.mu.Lock()
	defer w.mu.Unlock()

	if err != nil {
		w.phase = PhaseError
		w.errMsg = errmsg.Message(err)
		w.alerts = nil
		w.logger.Error("履歴の取得に失敗しました",
			slog.String("error", err.Error()),
		)
		return
	}

	w.alerts = SortAndCap(alerts, MaxVisible)
	w.errMsg = ""
	if len(w.alerts) == 0 {
		w.phase = PhaseEmpty
	} else {
		w.phase = PhasePopulated
	}
}

// Cancel は指定IDのアラートをキャンセルする。
// IDごとの送信中フラグとエラーは他のアラートと独立して管理する。
// 成功時はローカルで状態を書き換えず、成功レスポンスの後に
// 全件取得をやり直してサーバーの正とする。
// 失敗時はIDごとのエラーメッセージを記録し、表示中の状態は変更しない。
func (w *HistoryWorkflow) Cancel(ctx context.Context, alertID int) error {
	w.mu.Lock()
	if st, ok := w.cancels[alertID]; ok && st.Pending {
		w.mu.Unlock()
		return model.NewCancelInFlightError(alertID)
	}
	w.cancels[alertID] = &CancelState{Pending: true}
	recorder := w.recorder
	w.mu.Unlock()

	_, err := w.client.CancelPanic(ctx, alertID)

	w.mu.Lock()
	st := w.cancels[alertID]
	st.Pending = false
	if err != nil {
		st.Error = errmsg.Message(err)
		w.mu.Unlock()

		if recorder != nil {
			recorder.RecordCancelFailure()
		}
		w.logger.Error("アラートのキャンセルに失敗しました",
			slog.Int("alert_id", alertID),
			slog.String("error", err.Error()),
		)
		return err
	}
	st.Error = ""
	w.mu.Unlock()

	if recorder != nil {
		recorder.RecordCancelSuccess()
	}
	w.logger.Info("アラートをキャンセルしました", slog.Int("alert_id", alertID))

	// 再取得はキャンセル成功レスポンスの後に逐次実行する
	w.Refresh(ctx)
	return nil
}

// Toggle は行の展開状態を切り替える。展開できるのは同時に1件のみで、
// 展開中の行を再度指定すると閉じ、別の行を指定すると前の行が閉じる。
func (w *HistoryWorkflow) Toggle(alertID int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.expandedID == alertID {
		w.expandedID = 0
		return
	}
	w.expandedID = alertID
}

// ExpandedID は展開中のアラートIDを返す。0は未展開。
func (w *HistoryWorkflow) ExpandedID() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.expandedID
}

// Phase は現在の表示状態を返す。
func (w *HistoryWorkflow) Phase() Phase {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.phase
}

// Alerts は表示対象のアラート一覧のコピーを返す。
func (w *HistoryWorkflow) Alerts() []model.Alert {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]model.Alert, len(w.alerts))
	copy(out, w.alerts)
	return out
}

// ErrorMessage は取得失敗時の翻訳済みメッセージを返す。空なら失敗なし。
func (w *HistoryWorkflow) ErrorMessage() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.errMsg
}

// CancelStateFor は指定IDのキャンセル状態のコピーを返す。
// 一度もキャンセルしていないIDはゼロ値を返す。
func (w *HistoryWorkflow) CancelStateFor(alertID int) CancelState {
	w.mu.Lock()
	defer w.mu.Unlock()
	if st, ok := w.cancels[alertID]; ok {
		return *st
	}
	return CancelState{}
}
