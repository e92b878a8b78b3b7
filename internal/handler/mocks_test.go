package handler

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/placeshare/internal/auth"
	"github.com/hitoshi/placeshare/internal/like"
	"github.com/hitoshi/placeshare/internal/metrics"
	"github.com/hitoshi/placeshare/internal/middleware"
	"github.com/hitoshi/placeshare/internal/model"
	"github.com/hitoshi/placeshare/internal/quote"
	"github.com/hitoshi/placeshare/internal/user"
)

// --- モック定義 ---

type mockAuthService struct {
	signupFn func(ctx context.Context, in auth.SignupInput) (*model.UserSnapshot, error)
	loginFn  func(ctx context.Context, handle, password string) (*model.Session, error)
	logoutFn func(ctx context.Context, sessionID string) error
}

func (m *mockAuthService) Signup(ctx context.Context, in auth.SignupInput) (*model.UserSnapshot, error) {
	if m.signupFn != nil {
		return m.signupFn(ctx, in)
	}
	return nil, nil
}

func (m *mockAuthService) Login(ctx context.Context, handle, password string) (*model.Session, error) {
	if m.loginFn != nil {
		return m.loginFn(ctx, handle, password)
	}
	return nil, model.ErrInvalidCredentials
}

func (m *mockAuthService) Logout(ctx context.Context, sessionID string) error {
	if m.logoutFn != nil {
		return m.logoutFn(ctx, sessionID)
	}
	return nil
}

type mockUserService struct {
	getFn           func(ctx context.Context, id model.UserID) (*model.UserSnapshot, error)
	updateProfileFn func(ctx context.Context, id model.UserID, in user.ProfileInput) (*model.UserSnapshot, error)
}

func (m *mockUserService) Get(ctx context.Context, id model.UserID) (*model.UserSnapshot, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return nil, model.ErrNotFound
}

func (m *mockUserService) UpdateProfile(ctx context.Context, id model.UserID, in user.ProfileInput) (*model.UserSnapshot, error) {
	if m.updateProfileFn != nil {
		return m.updateProfileFn(ctx, id, in)
	}
	return nil, nil
}

type mockPlaceService struct {
	createFn       func(ctx context.Context, author model.UserID, fields model.PlaceFields, mediaRef string) (*model.Place, error)
	getFn          func(ctx context.Context, id model.PlaceID) (*model.Place, error)
	listFn         func(ctx context.Context) ([]*model.Place, error)
	recentFn       func(ctx context.Context, limit int) ([]*model.Place, error)
	listByAuthorFn func(ctx context.Context, author model.UserID) ([]*model.Place, error)
	searchFn       func(ctx context.Context, query string) ([]*model.Place, error)
	updateFn       func(ctx context.Context, id model.PlaceID, fields model.PlaceFields, mediaRef *string) (*model.Place, error)
	deleteFn       func(ctx context.Context, id model.PlaceID) error
}

func (m *mockPlaceService) Create(ctx context.Context, author model.UserID, fields model.PlaceFields, mediaRef string) (*model.Place, error) {
	if m.createFn != nil {
		return m.createFn(ctx, author, fields, mediaRef)
	}
	return nil, nil
}

func (m *mockPlaceService) Get(ctx context.Context, id model.PlaceID) (*model.Place, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return nil, model.ErrNotFound
}

func (m *mockPlaceService) List(ctx context.Context) ([]*model.Place, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return []*model.Place{}, nil
}

func (m *mockPlaceService) Recent(ctx context.Context, limit int) ([]*model.Place, error) {
	if m.recentFn != nil {
		return m.recentFn(ctx, limit)
	}
	return []*model.Place{}, nil
}

func (m *mockPlaceService) ListByAuthor(ctx context.Context, author model.UserID) ([]*model.Place, error) {
	if m.listByAuthorFn != nil {
		return m.listByAuthorFn(ctx, author)
	}
	return []*model.Place{}, nil
}

func (m *mockPlaceService) Search(ctx context.Context, query string) ([]*model.Place, error) {
	if m.searchFn != nil {
		return m.searchFn(ctx, query)
	}
	return []*model.Place{}, nil
}

func (m *mockPlaceService) Update(ctx context.Context, id model.PlaceID, fields model.PlaceFields, mediaRef *string) (*model.Place, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, id, fields, mediaRef)
	}
	return nil, nil
}

func (m *mockPlaceService) Delete(ctx context.Context, id model.PlaceID) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

type mockLikeService struct {
	toggleFn func(ctx context.Context, placeID model.PlaceID, userID model.UserID) (like.Result, error)
}

func (m *mockLikeService) Toggle(ctx context.Context, placeID model.PlaceID, userID model.UserID) (like.Result, error) {
	if m.toggleFn != nil {
		return m.toggleFn(ctx, placeID, userID)
	}
	return like.Result{PlaceID: placeID, Liked: true}, nil
}

type mockMediaStore struct {
	saveFn func(ctx context.Context, r io.Reader) (string, error)
}

func (m *mockMediaStore) Save(ctx context.Context, r io.Reader) (string, error) {
	if m.saveFn != nil {
		return m.saveFn(ctx, r)
	}
	return "/media/saved.png", nil
}

type mockImporter struct {
	importFn func(ctx context.Context, rawURL string) (string, error)
}

func (m *mockImporter) Import(ctx context.Context, rawURL string) (string, error) {
	if m.importFn != nil {
		return m.importFn(ctx, rawURL)
	}
	return "/media/imported.png", nil
}

type fixedQuote quote.Quote

func (q fixedQuote) Random() quote.Quote { return quote.Quote(q) }

// fakeRenderer は描画されたビュー名とペイロードを記録する。
type fakeRenderer struct {
	mu    sync.Mutex
	view  string
	page  *Page
	calls int
	err   error
}

func (f *fakeRenderer) Render(w io.Writer, view string, page *Page) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.view = view
	f.page = page
	if f.err != nil {
		return f.err
	}
	_, err := fmt.Fprintf(w, "<p>%s</p>", view)
	return err
}

// recordingMetrics はログイン・サインアップの結果を記録する。
type recordingMetrics struct {
	metrics.Nop
	mu      sync.Mutex
	logins  []bool
	signups []bool
}

func (r *recordingMetrics) RecordLogin(success bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logins = append(r.logins, success)
}

func (r *recordingMetrics) RecordSignup(success bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.signups = append(r.signups, success)
}

// compile-time interface checks
var (
	_ AuthServiceInterface  = (*mockAuthService)(nil)
	_ UserServiceInterface  = (*mockUserService)(nil)
	_ PlaceServiceInterface = (*mockPlaceService)(nil)
	_ RecentLister          = (*mockPlaceService)(nil)
	_ LikeServiceInterface  = (*mockLikeService)(nil)
	_ MediaStore            = (*mockMediaStore)(nil)
	_ MediaImporter         = (*mockImporter)(nil)
	_ Renderer              = (*fakeRenderer)(nil)
	_ metrics.Recorder      = (*recordingMetrics)(nil)
)

// --- テストヘルパー ---

const (
	testUserID  model.UserID  = "11111111-1111-1111-1111-111111111111"
	otherUserID model.UserID  = "22222222-2222-2222-2222-222222222222"
	testPlaceID model.PlaceID = "33333333-3333-3333-3333-333333333333"
)

func testSession(id model.UserID) *model.Session {
	return &model.Session{
		ID:     "session-" + string(id),
		UserID: id,
		User: model.UserSnapshot{
			ID:      id,
			Handle:  "user-" + string(id)[:4],
			Email:   string(id)[:4] + "@example.com",
			Country: "Japan",
		},
		ExpiresAt: time.Now().Add(time.Hour),
	}
}

func testPlace(author model.UserID) *model.Place {
	return &model.Place{
		ID:          testPlaceID,
		Name:        "Bag End",
		Location:    "Hobbiton",
		Description: "A hobbit hole",
		MediaRef:    "/media/bag-end.png",
		SourceURL:   "https://example.com/lotr",
		Title:       "The Lord of the Rings",
		AuthorID:    author,
		Author:      &model.UserSnapshot{ID: author, Handle: "frodo"},
		CreatedAt:   time.Now(),
	}
}

// withSession はリクエストコンテキストにセッションを注入する。
func withSession(req *http.Request, s *model.Session) *http.Request {
	return req.WithContext(middleware.ContextWithSession(req.Context(), s))
}

// withChiParams はルーター経由せずにハンドラーを呼ぶためURLパラメータを注入する。
func withChiParams(req *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

// newFormRequest はapplication/x-www-form-urlencodedのPOSTリクエストを作る。
func newFormRequest(target string, values url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

// newMultipartRequest はフィールドと任意のファイルを含むmultipartのPOSTリクエストを作る。
func newMultipartRequest(target string, fields map[string]string, fileField string, file []byte) *http.Request {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		_ = mw.WriteField(k, v)
	}
	if fileField != "" {
		fw, _ := mw.CreateFormFile(fileField, "upload.png")
		_, _ = fw.Write(file)
	}
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

// pngBytes は最小のPNG画像。
var pngBytes = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a,
	0x00, 0x00, 0x00, 0x0d, 0x49, 0x48, 0x44, 0x52,
	0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4,
	0x89, 0x00, 0x00, 0x00, 0x0a, 0x49, 0x44, 0x41,
	0x54, 0x78, 0x9c, 0x63, 0x00, 0x01, 0x00, 0x00,
	0x05, 0x00, 0x01, 0x0d, 0x0a, 0x2d, 0xb4, 0x00,
	0x00, 0x00, 0x00, 0x49, 0x45, 0x4e, 0x44, 0xae,
	0x42, 0x60, 0x82,
}
