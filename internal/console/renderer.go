// Package console はローカルWebコンソールのHTTPハンドラーを提供する。
// 画面はサーバーサイドレンダリングで、状態はすべてワークフロー側が持つ。
package console

import (
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
)

//go:embed templates/*.html
var templateFS embed.FS

// Renderer は埋め込みテンプレートのレンダリングを行う。
type Renderer struct {
	templates *template.Template
	logger    *slog.Logger
}

// NewRenderer は埋め込みテンプレートをパースしたRendererを生成する。
func NewRenderer(logger *slog.Logger) (*Renderer, error) {
	t, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	return &Renderer{
		templates: t,
		logger:    logger,
	}, nil
}

// Render は指定テンプレートをレンダリングする。
// レンダリング失敗時は500を返す。
func (r *Renderer) Render(w http.ResponseWriter, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := r.templates.ExecuteTemplate(w, name, data); err != nil {
		r.logger.Error("テンプレートのレンダリングに失敗しました",
			slog.String("template", name),
			slog.String("error", err.Error()),
		)
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}
