package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/placeshare/internal/auth"
	"github.com/hitoshi/placeshare/internal/metrics"
	"github.com/hitoshi/placeshare/internal/middleware"
	"github.com/hitoshi/placeshare/internal/model"
)

// profilePath はログイン・プロフィール編集後のリダイレクト先。
const profilePath = "/user-profile"

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	Signup(ctx context.Context, in auth.SignupInput) (*model.UserSnapshot, error)
	Login(ctx context.Context, handle, password string) (*model.Session, error)
	Logout(ctx context.Context, sessionID string) error
}

// SignupData はサインアップフォームの再表示用データ。
type SignupData struct {
	Handle  string
	Email   string
	Country string
}

// LoginData はログインフォームの再表示用データ。
type LoginData struct {
	Handle string
}

// AuthHandler はサインアップ・ログイン・ログアウトのHTTPハンドラー。
type AuthHandler struct {
	views
	uploads
	service AuthServiceInterface
	cookie  middleware.CookieConfig
	metrics metrics.Recorder
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, renderer Renderer, store MediaStore, cookie middleware.CookieConfig, recorder metrics.Recorder) *AuthHandler {
	return &AuthHandler{
		views:   views{renderer: renderer},
		uploads: uploads{store: store},
		service: service,
		cookie:  cookie,
		metrics: recorder,
	}
}

// SignupForm はサインアップフォームを表示する。
// GET /signup
func (h *AuthHandler) SignupForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, ViewSignup, &Page{Data: SignupData{}})
}

// Signup はユーザーを登録し、作成したユーザーのプロフィールを表示する。
// 登録後の自動ログインは行わない。
// POST /signup
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	if err := parseForm(r); err != nil {
		h.signupFailed(w, r, SignupData{}, err)
		return
	}

	data := SignupData{
		Handle:  r.FormValue("username"),
		Email:   r.FormValue("email"),
		Country: r.FormValue("country"),
	}

	avatarRef, err := h.fromForm(r, "profile-img")
	if err != nil {
		h.signupFailed(w, r, data, err)
		return
	}

	user, err := h.service.Signup(r.Context(), auth.SignupInput{
		Handle:    data.Handle,
		Email:     data.Email,
		Password:  r.FormValue("password"),
		Country:   data.Country,
		AvatarRef: avatarRef,
	})
	if err != nil {
		h.signupFailed(w, r, data, err)
		return
	}

	h.metrics.RecordSignup(true)
	h.render(w, r, http.StatusOK, ViewProfile, &Page{Data: ProfileData{User: user}})
}

func (h *AuthHandler) signupFailed(w http.ResponseWriter, r *http.Request, data SignupData, err error) {
	h.metrics.RecordSignup(false)
	if h.renderForm(w, r, ViewSignup, data, err) {
		return
	}
	h.fail(w, r, err)
}

// LoginForm はログインフォームを表示する。
// GET /login
func (h *AuthHandler) LoginForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, ViewLogin, &Page{Data: LoginData{}})
}

// Login は認証情報を照合し、セッションCookieを発行してプロフィールへリダイレクトする。
// POST /login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if err := parseForm(r); err != nil {
		h.fail(w, r, err)
		return
	}

	data := LoginData{Handle: r.FormValue("username")}
	session, err := h.service.Login(r.Context(), data.Handle, r.FormValue("password"))
	if err != nil {
		h.metrics.RecordLogin(false)
		if h.renderForm(w, r, ViewLogin, data, err) {
			return
		}
		h.fail(w, r, err)
		return
	}

	h.metrics.RecordLogin(true)
	middleware.SetSessionCookie(w, session.ID, h.cookie)
	http.Redirect(w, r, profilePath, http.StatusSeeOther)
}

// Logout はセッションを破棄してCookieを削除し、ホームへリダイレクトする。
// ストアの失敗は500として扱い、Cookieは残す。
// POST /logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	session := middleware.SessionFromContext(r.Context())
	if session == nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	if err := h.service.Logout(r.Context(), session.ID); err != nil {
		h.fail(w, r, err)
		return
	}

	middleware.ClearSessionCookie(w, h.cookie)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
