package console

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/batsignal/internal/advisory"
	"github.com/hitoshi/batsignal/internal/alert"
	"github.com/hitoshi/batsignal/internal/model"
	"github.com/hitoshi/batsignal/internal/security"
)

// DashboardHandler はダッシュボードのHTTPハンドラー。
// 送信フォーム・履歴一覧・注意報パネルを1画面にまとめる。
type DashboardHandler struct {
	submit     *alert.SubmitWorkflow
	history    *alert.HistoryWorkflow
	advisories *advisory.Service
	sanitizer  security.TextSanitizerService
	renderer   *Renderer
	logger     *slog.Logger

	// now はテストで時刻を固定するために差し替え可能。
	now func() time.Time
}

// NewDashboardHandler はDashboardHandlerを生成する。
func NewDashboardHandler(
	submit *alert.SubmitWorkflow,
	history *alert.HistoryWorkflow,
	advisories *advisory.Service,
	sanitizer security.TextSanitizerService,
	renderer *Renderer,
	logger *slog.Logger,
) *DashboardHandler {
	return &DashboardHandler{
		submit:     submit,
		history:    history,
		advisories: advisories,
		sanitizer:  sanitizer,
		renderer:   renderer,
		logger:     logger,
		now:        time.Now,
	}
}

// historyRow は履歴1行のテンプレートデータ。
type historyRow struct {
	ID             int
	StatusName     string
	StatusCode     int
	PanicType      string
	Latitude       string
	Longitude      string
	Details        string
	CreatedAtLabel string
	Expanded       bool
	Cancellable    bool
	CancelPending  bool
	CancelError    string
}

// advisoryRow は注意報1件のテンプレートデータ。
type advisoryRow struct {
	Title          string
	Link           string
	Summary        string
	PublishedLabel string
}

// dashboardView はダッシュボードのテンプレートデータ。
type dashboardView struct {
	Types         []model.PanicType
	Draft         alert.Draft
	DetailsLength int
	MaxDetails    int
	SubmitPending bool
	SubmitError   string

	Phase        string
	HistoryError string
	SkeletonRows []struct{}
	Rows         []historyRow

	AdvisoryEnabled bool
	AdvisoryError   string
	Advisories      []advisoryRow
}

// Show はダッシュボードを表示する。
// GET /
// 履歴の全件取得契約を実行してから終端状態を描画する。
func (h *DashboardHandler) Show(w http.ResponseWriter, r *http.Request) {
	h.history.Refresh(r.Context())

	view := h.buildView(r)
	h.renderer.Render(w, "dashboard.html", view)
}

// Send はアラート送信を処理する。
// POST /panic/send
// 結果（エラーメッセージ・ドラフト保持・リセット）はワークフロー側の
// 状態に残り、リダイレクト後の再描画で反映される。
func (h *DashboardHandler) Send(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	h.submit.SetDraft(alert.Draft{
		Latitude:  r.FormValue("latitude"),
		Longitude: r.FormValue("longitude"),
		PanicType: r.FormValue("panic_type"),
		Details:   r.FormValue("details"),
	})

	// 失敗はワークフローがメッセージとして保持するため、ここでは分岐しない
	_, _ = h.submit.Submit(r.Context())

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// Cancel はアラートのキャンセルを処理する。
// POST /panic/{id}/cancel
// 行の展開切り替えとは別エンドポイントであり、互いに干渉しない。
func (h *DashboardHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	// 失敗はIDごとの状態として保持される
	_ = h.history.Cancel(r.Context(), id)

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// Toggle は履歴行の展開状態を切り替える。
// POST /history/toggle/{id}
func (h *DashboardHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err == nil {
		h.history.Toggle(id)
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// buildView はワークフローの現在状態からテンプレートデータを構築する。
func (h *DashboardHandler) buildView(r *http.Request) dashboardView {
	draft := h.submit.Draft()
	now := h.now()

	view := dashboardView{
		Types:         model.PanicTypes,
		Draft:         draft,
		DetailsLength: model.DetailsLength(draft.Details),
		MaxDetails:    model.MaxDetailsLength,
		SubmitPending: h.submit.Pending(),
		SubmitError:   h.submit.ErrorMessage(),
		Phase:         h.history.Phase().String(),
		HistoryError:  h.history.ErrorMessage(),
		SkeletonRows:  make([]struct{}, alert.SkeletonRows),
	}

	expandedID := h.history.ExpandedID()
	for _, a := range h.history.Alerts() {
		st := h.history.CancelStateFor(a.ID)
		view.Rows = append(view.Rows, historyRow{
			ID:             a.ID,
			StatusName:     h.sanitizer.Sanitize(a.Status.Name),
			StatusCode:     a.Status.Code,
			PanicType:      h.sanitizer.Sanitize(a.PanicType),
			Latitude:       a.Latitude,
			Longitude:      a.Longitude,
			Details:        h.sanitizer.Sanitize(a.Details),
			CreatedAtLabel: formatCreatedAt(a.CreatedAt, now),
			Expanded:       a.ID == expandedID,
			Cancellable:    a.Status.Cancellable(),
			CancelPending:  st.Pending,
			CancelError:    st.Error,
		})
	}

	if h.advisories.Enabled() {
		view.AdvisoryEnabled = true
		bulletins, err := h.advisories.Fetch(r.Context())
		if err != nil {
			// 注意報の失敗はインライン表示にとどめ、アラート側には影響させない
			view.AdvisoryError = "安全注意報の取得に失敗しました。"
		}
		for _, b := range bulletins {
			view.Advisories = append(view.Advisories, advisoryRow{
				Title:          h.sanitizer.Sanitize(b.Title),
				Link:           b.Link,
				Summary:        h.sanitizer.Sanitize(b.Summary),
				PublishedLabel: formatCreatedAt(b.PublishedAt, now),
			})
		}
	}

	return view
}

// formatCreatedAt は作成時刻を表示用ラベルに整形する。
// 当日は「今日」、前日は「昨日」、それ以外は日付を表示する。
// ゼロ値（パース不能）は「不明」とする。
func formatCreatedAt(t time.Time, now time.Time) string {
	if t.IsZero() {
		return "不明"
	}

	local := t.Local()
	day := local.Format("2006-01-02")
	today := now.Local().Format("2006-01-02")
	yesterday := now.Local().AddDate(0, 0, -1).Format("2006-01-02")

	switch day {
	case today:
		return "今日 " + local.Format("15:04")
	case yesterday:
		return "昨日 " + local.Format("15:04")
	default:
		return local.Format("2006/01/02 15:04")
	}
}
