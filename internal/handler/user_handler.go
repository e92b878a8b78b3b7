package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/placeshare/internal/middleware"
	"github.com/hitoshi/placeshare/internal/model"
	"github.com/hitoshi/placeshare/internal/user"
)

// UserServiceInterface はプロフィールハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	Get(ctx context.Context, id model.UserID) (*model.UserSnapshot, error)
	UpdateProfile(ctx context.Context, id model.UserID, in user.ProfileInput) (*model.UserSnapshot, error)
}

// ProfileData はプロフィールページのビュー用データ。未ログインの場合Userはnil。
type ProfileData struct {
	User *model.UserSnapshot
}

// ProfileFormData はプロフィール編集フォームのビュー用データ。
type ProfileFormData struct {
	Handle    string
	Email     string
	Country   string
	AvatarRef string
}

// UserHandler はプロフィールの表示・編集のHTTPハンドラー。
type UserHandler struct {
	views
	uploads
	service UserServiceInterface
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserServiceInterface, renderer Renderer, store MediaStore) *UserHandler {
	return &UserHandler{
		views:   views{renderer: renderer},
		uploads: uploads{store: store},
		service: service,
	}
}

// Profile はセッションのユーザー情報を表示する。
// GET /user-profile
func (h *UserHandler) Profile(w http.ResponseWriter, r *http.Request) {
	var data ProfileData
	if s := middleware.SessionFromContext(r.Context()); s != nil {
		snapshot := s.User
		data.User = &snapshot
	}
	h.render(w, r, http.StatusOK, ViewProfile, &Page{Data: data})
}

// EditForm は現在のプロフィールを編集フォームに表示する。
// GET /user-profile/edit
func (h *UserHandler) EditForm(w http.ResponseWriter, r *http.Request) {
	current, err := h.service.Get(r.Context(), currentUserID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.render(w, r, http.StatusOK, ViewProfileEdit, &Page{Data: profileFormOf(current)})
}

// Update はプロフィールを更新してプロフィールページへリダイレクトする。
// 新しい画像がなければ保存済みのアバターを維持する。
// POST /user-profile/edit
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	var data ProfileFormData
	if err := parseForm(r); err != nil {
		h.formFailed(w, r, data, err)
		return
	}
	data = ProfileFormData{
		Handle:    r.FormValue("username"),
		Email:     r.FormValue("email"),
		Country:   r.FormValue("country"),
		AvatarRef: r.FormValue("previousImg"),
	}

	avatarRef, err := h.fromForm(r, "img")
	if err != nil {
		h.formFailed(w, r, data, err)
		return
	}

	_, err = h.service.UpdateProfile(r.Context(), currentUserID(r), user.ProfileInput{
		Handle:    data.Handle,
		Email:     data.Email,
		Password:  r.FormValue("password"),
		Country:   data.Country,
		AvatarRef: avatarRef,
	})
	if err != nil {
		h.formFailed(w, r, data, err)
		return
	}

	http.Redirect(w, r, profilePath, http.StatusSeeOther)
}

func (h *UserHandler) formFailed(w http.ResponseWriter, r *http.Request, data ProfileFormData, err error) {
	if h.renderForm(w, r, ViewProfileEdit, data, err) {
		return
	}
	h.fail(w, r, err)
}

func profileFormOf(u *model.UserSnapshot) ProfileFormData {
	return ProfileFormData{
		Handle:    u.Handle,
		Email:     u.Email,
		Country:   u.Country,
		AvatarRef: u.AvatarRef,
	}
}
