package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/hitoshi/placeshare/internal/auth"
	"github.com/hitoshi/placeshare/internal/metrics"
	"github.com/hitoshi/placeshare/internal/middleware"
	"github.com/hitoshi/placeshare/internal/model"
)

func newTestAuthHandler(svc *mockAuthService, renderer *fakeRenderer, store *mockMediaStore, rec metrics.Recorder) *AuthHandler {
	if store == nil {
		store = &mockMediaStore{}
	}
	if rec == nil {
		rec = metrics.Nop{}
	}
	return NewAuthHandler(svc, renderer, store, middleware.CookieConfig{MaxAge: time.Hour}, rec)
}

func TestAuthHandler_Signup_RendersProfileWithoutLogin(t *testing.T) {
	var got auth.SignupInput
	svc := &mockAuthService{
		signupFn: func(ctx context.Context, in auth.SignupInput) (*model.UserSnapshot, error) {
			got = in
			return &model.UserSnapshot{ID: testUserID, Handle: in.Handle, Email: in.Email, Country: in.Country, AvatarRef: in.AvatarRef}, nil
		},
	}
	renderer := &fakeRenderer{}
	rec := &recordingMetrics{}
	h := newTestAuthHandler(svc, renderer, nil, rec)

	req := newMultipartRequest("/signup", map[string]string{
		"username": "frodo",
		"email":    "frodo@shire.me",
		"password": "Ring1234",
		"country":  "Shire",
	}, "profile-img", pngBytes)
	w := httptest.NewRecorder()

	h.Signup(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if renderer.view != ViewProfile {
		t.Errorf("view = %q, want %q", renderer.view, ViewProfile)
	}
	data, ok := renderer.page.Data.(ProfileData)
	if !ok || data.User == nil || data.User.Handle != "frodo" {
		t.Errorf("profile data = %+v", renderer.page.Data)
	}
	if got.Password != "Ring1234" || got.AvatarRef != "/media/saved.png" {
		t.Errorf("signup input = %+v", got)
	}
	for _, c := range w.Result().Cookies() {
		if c.Name == middleware.SessionCookieName {
			t.Error("signup must not set a session cookie")
		}
	}
	if len(rec.signups) != 1 || !rec.signups[0] {
		t.Errorf("signup metrics = %v, want [true]", rec.signups)
	}
}

func TestAuthHandler_Signup_WithoutAvatar(t *testing.T) {
	var got auth.SignupInput
	svc := &mockAuthService{
		signupFn: func(ctx context.Context, in auth.SignupInput) (*model.UserSnapshot, error) {
			got = in
			return &model.UserSnapshot{ID: testUserID, Handle: in.Handle}, nil
		},
	}
	store := &mockMediaStore{saveFn: func(context.Context, io.Reader) (string, error) {
		t.Error("store must not be called without a file")
		return "", nil
	}}
	h := newTestAuthHandler(svc, &fakeRenderer{}, store, nil)

	req := newMultipartRequest("/signup", map[string]string{
		"username": "sam", "email": "sam@shire.me", "password": "Garden12", "country": "Shire",
	}, "", nil)
	w := httptest.NewRecorder()

	h.Signup(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if got.AvatarRef != "" {
		t.Errorf("AvatarRef = %q, want empty", got.AvatarRef)
	}
}

func TestAuthHandler_Signup_ErrorsRerenderForm(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantMsg    string
	}{
		{"duplicate", model.ErrDuplicateKey, http.StatusConflict, model.ErrDuplicateKey.Message},
		{"weak password", model.ErrWeakPassword, http.StatusBadRequest, model.ErrWeakPassword.Message},
		{"password over 72 bytes", model.ErrPasswordTooLong, http.StatusBadRequest, model.ErrPasswordTooLong.Message},
		{"missing fields", model.NewMissingFieldsError("email"), http.StatusBadRequest, "All fields are mandatory. Missing: [email]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockAuthService{
				signupFn: func(context.Context, auth.SignupInput) (*model.UserSnapshot, error) {
					return nil, tt.err
				},
			}
			renderer := &fakeRenderer{}
			rec := &recordingMetrics{}
			h := newTestAuthHandler(svc, renderer, nil, rec)

			req := newFormRequest("/signup", url.Values{"username": {"frodo"}, "email": {"frodo@shire.me"}, "country": {"Shire"}})
			w := httptest.NewRecorder()

			h.Signup(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if renderer.view != ViewSignup {
				t.Errorf("view = %q, want %q", renderer.view, ViewSignup)
			}
			if renderer.page.ErrorMessage != tt.wantMsg {
				t.Errorf("ErrorMessage = %q, want %q", renderer.page.ErrorMessage, tt.wantMsg)
			}
			data := renderer.page.Data.(SignupData)
			if data.Handle != "frodo" || data.Email != "frodo@shire.me" {
				t.Errorf("form data not preserved: %+v", data)
			}
			if len(rec.signups) != 1 || rec.signups[0] {
				t.Errorf("signup metrics = %v, want [false]", rec.signups)
			}
		})
	}
}

func TestAuthHandler_Signup_InvalidImage(t *testing.T) {
	svc := &mockAuthService{
		signupFn: func(context.Context, auth.SignupInput) (*model.UserSnapshot, error) {
			t.Error("signup must not be called when the image is rejected")
			return nil, nil
		},
	}
	store := &mockMediaStore{saveFn: func(context.Context, io.Reader) (string, error) {
		return "", model.ErrInvalidMedia
	}}
	renderer := &fakeRenderer{}
	h := newTestAuthHandler(svc, renderer, store, nil)

	req := newMultipartRequest("/signup", map[string]string{"username": "frodo"}, "profile-img", []byte("not an image"))
	w := httptest.NewRecorder()

	h.Signup(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	if renderer.page.ErrorMessage != model.ErrInvalidMedia.Message {
		t.Errorf("ErrorMessage = %q", renderer.page.ErrorMessage)
	}
}

func TestAuthHandler_Signup_StorageFault_Returns500(t *testing.T) {
	svc := &mockAuthService{
		signupFn: func(context.Context, auth.SignupInput) (*model.UserSnapshot, error) {
			return nil, errors.New("connection refused")
		},
	}
	renderer := &fakeRenderer{}
	h := newTestAuthHandler(svc, renderer, nil, nil)

	w := httptest.NewRecorder()
	h.Signup(w, newFormRequest("/signup", url.Values{"username": {"frodo"}}))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
	if renderer.view != ViewError {
		t.Errorf("view = %q, want %q", renderer.view, ViewError)
	}
}

func TestAuthHandler_Login_SetsCookieAndRedirects(t *testing.T) {
	svc := &mockAuthService{
		loginFn: func(ctx context.Context, handle, password string) (*model.Session, error) {
			if handle != "frodo" || password != "Ring1234" {
				return nil, model.ErrInvalidCredentials
			}
			return testSession(testUserID), nil
		},
	}
	rec := &recordingMetrics{}
	h := newTestAuthHandler(svc, &fakeRenderer{}, nil, rec)

	w := httptest.NewRecorder()
	h.Login(w, newFormRequest("/login", url.Values{"username": {"frodo"}, "password": {"Ring1234"}}))

	if w.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusSeeOther)
	}
	if loc := w.Header().Get("Location"); loc != "/user-profile" {
		t.Errorf("Location = %q, want /user-profile", loc)
	}

	var found *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == middleware.SessionCookieName {
			found = c
		}
	}
	if found == nil {
		t.Fatal("session cookie was not set")
	}
	if found.Value != testSession(testUserID).ID {
		t.Errorf("cookie value = %q", found.Value)
	}
	if !found.HttpOnly {
		t.Error("session cookie must be HttpOnly")
	}
	if len(rec.logins) != 1 || !rec.logins[0] {
		t.Errorf("login metrics = %v, want [true]", rec.logins)
	}
}

func TestAuthHandler_Login_Failures(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantMsg string
	}{
		{"invalid credentials", model.ErrInvalidCredentials, "Incorrect user and/or password."},
		{"missing credentials", model.ErrMissingCredentials, "Please enter both username and password to login."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockAuthService{
				loginFn: func(context.Context, string, string) (*model.Session, error) {
					return nil, tt.err
				},
			}
			renderer := &fakeRenderer{}
			rec := &recordingMetrics{}
			h := newTestAuthHandler(svc, renderer, nil, rec)

			w := httptest.NewRecorder()
			h.Login(w, newFormRequest("/login", url.Values{"username": {"frodo"}}))

			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
			}
			if renderer.view != ViewLogin || renderer.page.ErrorMessage != tt.wantMsg {
				t.Errorf("view = %q, ErrorMessage = %q", renderer.view, renderer.page.ErrorMessage)
			}
			if data := renderer.page.Data.(LoginData); data.Handle != "frodo" {
				t.Errorf("handle not preserved: %+v", data)
			}
			if len(w.Result().Cookies()) != 0 {
				t.Error("failed login must not set cookies")
			}
			if len(rec.logins) != 1 || rec.logins[0] {
				t.Errorf("login metrics = %v, want [false]", rec.logins)
			}
		})
	}
}

func TestAuthHandler_Logout_DestroysSessionAndClearsCookie(t *testing.T) {
	var deleted string
	svc := &mockAuthService{
		logoutFn: func(ctx context.Context, sessionID string) error {
			deleted = sessionID
			return nil
		},
	}
	h := newTestAuthHandler(svc, &fakeRenderer{}, nil, nil)

	session := testSession(testUserID)
	req := withSession(httptest.NewRequest(http.MethodPost, "/logout", nil), session)
	w := httptest.NewRecorder()

	h.Logout(w, req)

	if w.Code != http.StatusSeeOther || w.Header().Get("Location") != "/" {
		t.Errorf("status = %d, Location = %q", w.Code, w.Header().Get("Location"))
	}
	if deleted != session.ID {
		t.Errorf("deleted session = %q, want %q", deleted, session.ID)
	}

	cleared := false
	for _, c := range w.Result().Cookies() {
		if c.Name == middleware.SessionCookieName && c.MaxAge < 0 {
			cleared = true
		}
	}
	if !cleared {
		t.Error("session cookie was not cleared")
	}
}

func TestAuthHandler_Logout_StoreFailure_Returns500(t *testing.T) {
	svc := &mockAuthService{
		logoutFn: func(context.Context, string) error {
			return errors.New("db down")
		},
	}
	h := newTestAuthHandler(svc, &fakeRenderer{}, nil, nil)

	req := withSession(httptest.NewRequest(http.MethodPost, "/logout", nil), testSession(testUserID))
	w := httptest.NewRecorder()

	h.Logout(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
	for _, c := range w.Result().Cookies() {
		if c.Name == middleware.SessionCookieName {
			t.Error("cookie must be kept when the session could not be destroyed")
		}
	}
}
