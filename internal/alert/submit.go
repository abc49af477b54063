package alert

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/hitoshi/batsignal/internal/apiclient"
	"github.com/hitoshi/batsignal/internal/errmsg"
	"github.com/hitoshi/batsignal/internal/model"
)

// PanicSender はアラート作成に必要なAPI操作のインターフェース。
// apiclient.Clientの部分集合として定義する。
type PanicSender interface {
	SendPanic(ctx context.Context, req apiclient.CreatePanicRequest) (*model.Alert, error)
}

// EventRecorder は送信・キャンセルの結果を計測するためのインターフェース。
// metrics.Collectorの部分集合。nilの場合は計測しない。
type EventRecorder interface {
	RecordAlertSent()
	RecordSendFailure()
	RecordCancelSuccess()
	RecordCancelFailure()
}

// SubmitWorkflow はアラート送信ワークフローの状態機械。
// ドラフト、送信中フラグ、直近のエラーメッセージを保持する。
// 送信中フラグが立っている間の再送信はネットワークを呼ばずに拒否する。
type SubmitWorkflow struct {
	sender   PanicSender
	logger   *slog.Logger
	recorder EventRecorder

	mu      sync.Mutex
	draft   Draft
	pending bool
	errMsg  string

	// onCreated は作成成功時に呼ばれる（履歴の再取得トリガー）。
	onCreated func()
}

// NewSubmitWorkflow はSubmitWorkflowを生成する。
func NewSubmitWorkflow(sender PanicSender, logger *slog.Logger) *SubmitWorkflow {
	return &SubmitWorkflow{
		sender: sender,
		logger: logger,
		draft:  NewDraft(),
	}
}

// SetOnCreated は作成成功時のコールバックを設定する。
func (w *SubmitWorkflow) SetOnCreated(fn func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onCreated = fn
}

// SetRecorder は計測用レコーダーを設定する。
func (w *SubmitWorkflow) SetRecorder(r EventRecorder) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.recorder = r
}

// Draft は現在のドラフトのコピーを返す。
func (w *SubmitWorkflow) Draft() Draft {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.draft
}

// SetDraft は入力中のドラフトを差し替える。詳細は最大文字数で切り詰める。
func (w *SubmitWorkflow) SetDraft(d Draft) {
	w.mu.Lock()
	defer w.mu.Unlock()
	d.SetDetails(d.Details)
	w.draft = d
}

// Pending は送信中かを返す。
func (w *SubmitWorkflow) Pending() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pending
}

// ErrorMessage は直近の失敗のユーザー向けメッセージを返す。空なら失敗なし。
func (w *SubmitWorkflow) ErrorMessage() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.errMsg
}

// Submit は現在のドラフトを検証し、アラートを作成する。
//
// 検証失敗時: ルール別のメッセージを記録し、ネットワークを呼ばず、
// ドラフトも変更しない。
// 作成成功時: ドラフトをデフォルトへリセットし、onCreatedを呼ぶ。
// 作成失敗時: 翻訳済みメッセージを記録し、再入力不要となるよう
// ドラフトを保持する。送信中フラグは成否に関わらず解除する。
func (w *SubmitWorkflow) Submit(ctx context.Context) (*model.Alert, error) {
	w.mu.Lock()

	if w.pending {
		w.mu.Unlock()
		return nil, model.NewSubmissionInFlightError()
	}

	draft := w.draft
	latitude, longitude, err := draft.Validate()
	if err != nil {
		var vErr *model.ValidationError
		if errors.As(err, &vErr) {
			w.errMsg = vErr.Message
		} else {
			w.errMsg = err.Error()
		}
		w.mu.Unlock()
		return nil, err
	}

	w.pending = true
	w.errMsg = ""
	onCreated := w.onCreated
	recorder := w.recorder
	w.mu.Unlock()

	created, sendErr := w.sender.SendPanic(ctx, apiclient.CreatePanicRequest{
		Latitude:  latitude,
		Longitude: longitude,
		PanicType: draft.PanicType,
		Details:   draft.Details,
	})

	w.mu.Lock()
	w.pending = false
	if sendErr != nil {
		w.errMsg = errmsg.Message(sendErr)
		w.mu.Unlock()

		if recorder != nil {
			recorder.RecordSendFailure()
		}
		w.logger.Error("アラートの送信に失敗しました",
			slog.String("error", sendErr.Error()),
		)
		return nil, sendErr
	}

	w.draft = NewDraft()
	w.errMsg = ""
	w.mu.Unlock()

	if recorder != nil {
		recorder.RecordAlertSent()
	}
	w.logger.Info("アラートを送信しました",
		slog.Int("alert_id", created.ID),
		slog.String("panic_type", created.PanicType),
	)

	if onCreated != nil {
		onCreated()
	}

	return created, nil
}
