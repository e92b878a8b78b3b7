package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/placeshare/internal/authz"
	"github.com/hitoshi/placeshare/internal/like"
	"github.com/hitoshi/placeshare/internal/model"
)

// PlaceServiceInterface は場所ハンドラーが必要とするサービスインターフェース。
type PlaceServiceInterface interface {
	Create(ctx context.Context, author model.UserID, fields model.PlaceFields, mediaRef string) (*model.Place, error)
	Get(ctx context.Context, id model.PlaceID) (*model.Place, error)
	List(ctx context.Context) ([]*model.Place, error)
	ListByAuthor(ctx context.Context, author model.UserID) ([]*model.Place, error)
	Search(ctx context.Context, query string) ([]*model.Place, error)
	Update(ctx context.Context, id model.PlaceID, fields model.PlaceFields, mediaRef *string) (*model.Place, error)
	Delete(ctx context.Context, id model.PlaceID) error
}

// LikeServiceInterface はいいねのトグルを提供するサービスインターフェース。
type LikeServiceInterface interface {
	Toggle(ctx context.Context, placeID model.PlaceID, userID model.UserID) (like.Result, error)
}

// PlaceListData は一覧・検索結果のビュー用データ。
type PlaceListData struct {
	Places []*model.Place
	Query  string
}

// PlaceFormData は作成・編集フォームのビュー用データ。作成時のPlaceはnil。
type PlaceFormData struct {
	Place  *model.Place
	Fields model.PlaceFields
}

// PlaceDetailData は詳細ページのビュー用データ。
type PlaceDetailData struct {
	Place *model.Place
}

// MyPlacesData は自分の場所一覧のビュー用データ。
type MyPlacesData struct {
	OwnerID model.UserID
	Places  []*model.Place
}

// PlaceHandler は場所のCRUD・検索・いいねのHTTPハンドラー。
type PlaceHandler struct {
	views
	uploads
	places PlaceServiceInterface
	likes  LikeServiceInterface
}

// NewPlaceHandler はPlaceHandlerを生成する。
func NewPlaceHandler(places PlaceServiceInterface, likes LikeServiceInterface, renderer Renderer, store MediaStore, importer MediaImporter) *PlaceHandler {
	return &PlaceHandler{
		views:   views{renderer: renderer},
		uploads: uploads{store: store, importer: importer},
		places:  places,
		likes:   likes,
	}
}

// List は全ての場所を新しい順に表示する。
// GET /places
func (h *PlaceHandler) List(w http.ResponseWriter, r *http.Request) {
	places, err := h.places.List(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.render(w, r, http.StatusOK, ViewPlaceList, &Page{Data: PlaceListData{Places: places}})
}

// Search は名前の部分一致で検索し、一覧ビューで表示する。
// POST /search
func (h *PlaceHandler) Search(w http.ResponseWriter, r *http.Request) {
	if err := parseForm(r); err != nil {
		h.fail(w, r, err)
		return
	}

	query := r.FormValue("searchInput")
	places, err := h.places.Search(r.Context(), query)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.render(w, r, http.StatusOK, ViewPlaceList, &Page{Data: PlaceListData{Places: places, Query: query}})
}

// CreateForm は作成フォームを表示する。
// GET /places/create
func (h *PlaceHandler) CreateForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, ViewPlaceCreate, &Page{Data: PlaceFormData{}})
}

// Create は場所を作成して詳細ページへリダイレクトする。
// POST /places/create
func (h *PlaceHandler) Create(w http.ResponseWriter, r *http.Request) {
	var data PlaceFormData
	if err := parseForm(r); err != nil {
		h.formFailed(w, r, ViewPlaceCreate, data, err)
		return
	}
	data.Fields = placeFieldsFromForm(r)

	mediaRef, err := h.fromForm(r, "img")
	if err != nil {
		h.formFailed(w, r, ViewPlaceCreate, data, err)
		return
	}

	place, err := h.places.Create(r.Context(), currentUserID(r), data.Fields, mediaRef)
	if err != nil {
		h.formFailed(w, r, ViewPlaceCreate, data, err)
		return
	}

	http.Redirect(w, r, "/places/"+string(place.ID), http.StatusSeeOther)
}

// Detail は場所の詳細を表示する。
// GET /places/{id}
func (h *PlaceHandler) Detail(w http.ResponseWriter, r *http.Request) {
	place, err := h.places.Get(r.Context(), placeIDParam(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.render(w, r, http.StatusOK, ViewPlaceDetail, &Page{Data: PlaceDetailData{Place: place}})
}

// EditForm は作者本人に編集フォームを表示する。
// GET /places/{id}/edit
func (h *PlaceHandler) EditForm(w http.ResponseWriter, r *http.Request) {
	place, ok := h.ownedPlace(w, r)
	if !ok {
		return
	}
	h.render(w, r, http.StatusOK, ViewPlaceEdit, &Page{Data: PlaceFormData{Place: place, Fields: fieldsOf(place)}})
}

// Update は作者本人による編集を反映して詳細ページへリダイレクトする。
// 新しい画像がなければ保存済みの画像を維持する。previousImgの値は参照しない。
// POST /places/{id}/edit
func (h *PlaceHandler) Update(w http.ResponseWriter, r *http.Request) {
	place, ok := h.ownedPlace(w, r)
	if !ok {
		return
	}

	data := PlaceFormData{Place: place, Fields: fieldsOf(place)}
	if err := parseForm(r); err != nil {
		h.formFailed(w, r, ViewPlaceEdit, data, err)
		return
	}
	data.Fields = placeFieldsFromForm(r)

	mediaRef, err := h.fromForm(r, "img")
	if err != nil {
		h.formFailed(w, r, ViewPlaceEdit, data, err)
		return
	}

	var newMedia *string
	if mediaRef != "" {
		newMedia = &mediaRef
	}
	if _, err := h.places.Update(r.Context(), place.ID, data.Fields, newMedia); err != nil {
		h.formFailed(w, r, ViewPlaceEdit, data, err)
		return
	}

	http.Redirect(w, r, "/places/"+string(place.ID), http.StatusSeeOther)
}

// Delete は作者本人による削除を行い、自分の場所一覧へリダイレクトする。
// POST /places/{id}/delete
func (h *PlaceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	place, ok := h.ownedPlace(w, r)
	if !ok {
		return
	}

	if err := h.places.Delete(r.Context(), place.ID); err != nil {
		h.fail(w, r, err)
		return
	}
	http.Redirect(w, r, "/places/my-places/"+string(place.AuthorID), http.StatusSeeOther)
}

// MyPlaces はURLのユーザーIDとセッションのユーザーが一致する場合に、そのユーザーの場所を表示する。
// GET /places/my-places/{userId}
func (h *PlaceHandler) MyPlaces(w http.ResponseWriter, r *http.Request) {
	owner := model.UserID(chi.URLParam(r, "userId"))
	if !allow(w, r, authz.RequireOwner(owner)) {
		return
	}

	places, err := h.places.ListByAuthor(r.Context(), owner)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.render(w, r, http.StatusOK, ViewMyPlaces, &Page{Data: MyPlacesData{OwnerID: owner, Places: places}})
}

// ToggleLike はログイン中のユーザーのいいねを反転し、詳細ページへリダイレクトする。
// POST /places/{id}/like
func (h *PlaceHandler) ToggleLike(w http.ResponseWriter, r *http.Request) {
	result, err := h.likes.Toggle(r.Context(), placeIDParam(r), currentUserID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	http.Redirect(w, r, "/places/"+string(result.PlaceID), http.StatusSeeOther)
}

// ownedPlace はURLの場所を取得し、作者本人であることを確認する。
// 存在しなければ404、作者でなければログイン画面へリダイレクトする。
func (h *PlaceHandler) ownedPlace(w http.ResponseWriter, r *http.Request) (*model.Place, bool) {
	if !allow(w, r, authz.RequireAuthenticated) {
		return nil, false
	}

	place, err := h.places.Get(r.Context(), placeIDParam(r))
	if err != nil {
		h.fail(w, r, err)
		return nil, false
	}
	if !allow(w, r, authz.RequireOwner(place.AuthorID)) {
		return nil, false
	}
	return place, true
}

func (h *PlaceHandler) formFailed(w http.ResponseWriter, r *http.Request, view string, data PlaceFormData, err error) {
	if h.renderForm(w, r, view, data, err) {
		return
	}
	h.fail(w, r, err)
}

func placeIDParam(r *http.Request) model.PlaceID {
	return model.PlaceID(chi.URLParam(r, "id"))
}

func placeFieldsFromForm(r *http.Request) model.PlaceFields {
	return model.PlaceFields{
		Name:        r.FormValue("name"),
		Location:    r.FormValue("location"),
		Description: r.FormValue("description"),
		SourceURL:   r.FormValue("source"),
		Title:       r.FormValue("title"),
	}
}

func fieldsOf(p *model.Place) model.PlaceFields {
	return model.PlaceFields{
		Name:        p.Name,
		Location:    p.Location,
		Description: p.Description,
		SourceURL:   p.SourceURL,
		Title:       p.Title,
	}
}
