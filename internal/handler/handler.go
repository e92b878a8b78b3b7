// Package handler はHTMLフォームを扱うHTTPハンドラーとルーティングを提供する。
package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/placeshare/internal/authz"
	"github.com/hitoshi/placeshare/internal/middleware"
	"github.com/hitoshi/placeshare/internal/model"
)

// maxFormMemory はmultipartフォームをメモリに保持する上限。
const maxFormMemory = 8 << 20

// MediaStore はアップロード画像を保存するインターフェース。
type MediaStore interface {
	Save(ctx context.Context, r io.Reader) (string, error)
}

// MediaImporter は外部URLの画像を取り込むインターフェース。
type MediaImporter interface {
	Import(ctx context.Context, rawURL string) (string, error)
}

// uploads はフォームから画像参照を得る。
type uploads struct {
	store    MediaStore
	importer MediaImporter
}

// fromForm はfileFieldのファイル、次にimgUrlの順で画像を取り込み参照を返す。
// どちらも指定がなければ空文字を返す。importerがnilの場合はURL指定を無視する。
func (u uploads) fromForm(r *http.Request, fileField string) (string, error) {
	file, _, err := r.FormFile(fileField)
	switch {
	case err == nil:
		defer file.Close()
		return u.store.Save(r.Context(), file)
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
	default:
		return "", formReadError(err)
	}

	if u.importer == nil {
		return "", nil
	}
	if raw := strings.TrimSpace(r.FormValue("imgUrl")); raw != "" {
		return u.importer.Import(r.Context(), raw)
	}
	return "", nil
}

// parseForm はmultipartと通常のフォームの両方を解析する。
// CSRFミドルウェアで解析済みの場合は何もしない。
func parseForm(r *http.Request) error {
	err := r.ParseMultipartForm(maxFormMemory)
	if errors.Is(err, http.ErrNotMultipart) {
		err = r.ParseForm()
	}
	if err != nil {
		return formReadError(err)
	}
	return nil
}

// formReadError はボディサイズ超過をmodel.ErrMediaTooLargeに変換する。
func formReadError(err error) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return model.ErrMediaTooLarge
	}
	return fmt.Errorf("failed to parse form: %w", err)
}

// allow はセッションに対してガードを評価する。拒否時は303でリダイレクトしてfalseを返す。
func allow(w http.ResponseWriter, r *http.Request, guards ...authz.Guard) bool {
	err := authz.Check(middleware.SessionFromContext(r.Context()), guards...)
	if err == nil {
		return true
	}

	if d, ok := authz.IsDenial(err); ok {
		slog.Debug("request denied",
			slog.String("path", r.URL.Path),
			slog.String("reason", d.Reason),
		)
		http.Redirect(w, r, d.RedirectTo, http.StatusSeeOther)
		return false
	}

	slog.Error("guard failed", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
	return false
}

// requireGuards はリソースに依存しないガードをルート単位で適用するミドルウェアを返す。
func requireGuards(guards ...authz.Guard) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !allow(w, r, guards...) {
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// currentUserID はログイン中のユーザーIDを返す。ガード通過後にのみ呼び出す。
func currentUserID(r *http.Request) model.UserID {
	if s := middleware.SessionFromContext(r.Context()); s != nil {
		return s.UserID
	}
	return ""
}
