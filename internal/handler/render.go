package handler

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"net/http"

	"github.com/hitoshi/placeshare/internal/middleware"
	"github.com/hitoshi/placeshare/internal/model"
)

// ビュー名
const (
	ViewHome         = "home"
	ViewPlaceList    = "places/list"
	ViewPlaceCreate  = "places/create"
	ViewPlaceDetail  = "places/detail"
	ViewPlaceEdit    = "places/edit"
	ViewMyPlaces     = "places/mine"
	ViewSignup       = "auth/signup"
	ViewLogin        = "auth/login"
	ViewProfile      = "users/profile"
	ViewProfileEdit  = "users/edit"
	ViewError        = "error"
	notFoundMessage  = "Error fetching data"
	internalErrorMsg = "Something went wrong. Please try again later."
)

var allViews = []string{
	ViewHome, ViewPlaceList, ViewPlaceCreate, ViewPlaceDetail, ViewPlaceEdit, ViewMyPlaces,
	ViewSignup, ViewLogin, ViewProfile, ViewProfileEdit, ViewError,
}

//go:embed templates
var templatesFS embed.FS

// Page はビューに渡すペイロード。
// CurrentUserとCSRFTokenはレンダリング時にリクエストコンテキストから埋められる。
type Page struct {
	CurrentUser  *model.UserSnapshot
	CSRFToken    string
	ErrorMessage string
	Data         any
}

// Renderer はビュー名とペイロードからHTMLを書き出すインターフェース。
type Renderer interface {
	Render(w io.Writer, view string, page *Page) error
}

// TemplateRenderer は埋め込みテンプレートを使うRenderer。
type TemplateRenderer struct {
	views map[string]*template.Template
}

// NewTemplateRenderer は全ビューのテンプレートを解析する。
// 各ビューはlayout.htmlと組み合わせて個別のテンプレートセットになる。
func NewTemplateRenderer() (*TemplateRenderer, error) {
	base, err := template.New("layout.html").Funcs(templateFuncs).ParseFS(templatesFS, "templates/layout.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse layout: %w", err)
	}

	views := make(map[string]*template.Template, len(allViews))
	for _, name := range allViews {
		t, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("failed to clone layout: %w", err)
		}
		if _, err := t.ParseFS(templatesFS, "templates/"+name+".html"); err != nil {
			return nil, fmt.Errorf("failed to parse view %s: %w", name, err)
		}
		views[name] = t
	}
	return &TemplateRenderer{views: views}, nil
}

// Render はビューを実行する。
func (tr *TemplateRenderer) Render(w io.Writer, view string, page *Page) error {
	t, ok := tr.views[view]
	if !ok {
		return fmt.Errorf("unknown view: %s", view)
	}
	return t.ExecuteTemplate(w, "layout.html", page)
}

var templateFuncs = template.FuncMap{
	"likedBy": func(p *model.Place, u *model.UserSnapshot) bool {
		return p != nil && u != nil && p.LikedByUser(u.ID)
	},
	"owns": func(p *model.Place, u *model.UserSnapshot) bool {
		return p != nil && u != nil && p.AuthorID == u.ID
	},
	"csrfField": func() string { return middleware.CSRFFieldName },
}

// views はハンドラー共通のレンダリングとエラー応答を担う。
type views struct {
	renderer Renderer
}

// render はバッファに書き出してから送信する。テンプレートの実行エラー時は500を返す。
func (v views) render(w http.ResponseWriter, r *http.Request, status int, view string, page *Page) {
	if page == nil {
		page = &Page{}
	}
	if s := middleware.SessionFromContext(r.Context()); s != nil {
		user := s.User
		page.CurrentUser = &user
	}
	page.CSRFToken = middleware.CSRFTokenFromContext(r.Context())

	var buf bytes.Buffer
	if err := v.renderer.Render(&buf, view, page); err != nil {
		slog.Error("failed to render view", slog.String("view", view), slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// renderForm はフォームを再表示すべきエラーであればErrorMessage付きで描画してtrueを返す。
// 入力不備・認証情報不正は400、重複は409。
func (v views) renderForm(w http.ResponseWriter, r *http.Request, view string, data any, err error) bool {
	status, appErr, ok := formErrorStatus(err)
	if !ok {
		return false
	}
	v.render(w, r, status, view, &Page{ErrorMessage: appErr.Message, Data: data})
	return true
}

// fail はフォームに戻せないエラーを応答する。NotFoundは404、それ以外は500。
func (v views) fail(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *model.AppError
	if errors.As(err, &appErr) && appErr.Kind == model.KindNotFound {
		v.render(w, r, http.StatusNotFound, ViewError, &Page{ErrorMessage: notFoundMessage})
		return
	}

	slog.Error("request failed",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)
	v.render(w, r, http.StatusInternalServerError, ViewError, &Page{ErrorMessage: internalErrorMsg})
}

func formErrorStatus(err error) (int, *model.AppError, bool) {
	var appErr *model.AppError
	if !errors.As(err, &appErr) {
		return 0, nil, false
	}
	switch appErr.Kind {
	case model.KindValidation, model.KindUnauthorized:
		return http.StatusBadRequest, appErr, true
	case model.KindDuplicateKey:
		return http.StatusConflict, appErr, true
	default:
		return 0, nil, false
	}
}
