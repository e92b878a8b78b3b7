package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/placeshare/internal/model"
	"github.com/hitoshi/placeshare/internal/quote"
)

// homeRecentLimit はホームに表示する最近の場所の件数。
const homeRecentLimit = 6

// QuotePicker は引用句を選ぶインターフェース。
type QuotePicker interface {
	Random() quote.Quote
}

// RecentLister は新しい順に場所を返すインターフェース。
type RecentLister interface {
	Recent(ctx context.Context, limit int) ([]*model.Place, error)
}

// FeedWriter はRSSフィードを書き出すインターフェース。
type FeedWriter interface {
	Write(ctx context.Context, w io.Writer) error
}

// MediaFiles は画像参照をファイルパスに解決するインターフェース。
type MediaFiles interface {
	Path(ref string) (string, bool)
}

// HealthChecker は依存先への到達性を確認する関数。
type HealthChecker func(ctx context.Context) error

// HomeData はホームページのビュー用データ。
type HomeData struct {
	Quote  quote.Quote
	Places []*model.Place
}

// PageHandler はホーム・RSS・画像配信・ヘルスチェックのHTTPハンドラー。
type PageHandler struct {
	views
	quotes QuotePicker
	recent RecentLister
	feed   FeedWriter
	media  MediaFiles
	health HealthChecker
}

// NewPageHandler はPageHandlerを生成する。
func NewPageHandler(renderer Renderer, quotes QuotePicker, recent RecentLister, feed FeedWriter, media MediaFiles, health HealthChecker) *PageHandler {
	return &PageHandler{
		views:  views{renderer: renderer},
		quotes: quotes,
		recent: recent,
		feed:   feed,
		media:  media,
		health: health,
	}
}

// Home は引用句と最近共有された場所を表示する。
// GET /
func (h *PageHandler) Home(w http.ResponseWriter, r *http.Request) {
	places, err := h.recent.Recent(r.Context(), homeRecentLimit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.render(w, r, http.StatusOK, ViewHome, &Page{Data: HomeData{Quote: h.quotes.Random(), Places: places}})
}

// Feed は最新の場所をRSS 2.0で返す。
// GET /places/feed.xml
func (h *PageHandler) Feed(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := h.feed.Write(r.Context(), &buf); err != nil {
		h.fail(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/rss+xml; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

// Media は保存済みの画像を配信する。ファイル名はUUIDのため内容は不変として扱う。
// GET /media/*
func (h *PageHandler) Media(w http.ResponseWriter, r *http.Request) {
	path, ok := h.media.Path(r.URL.Path)
	if !ok || strings.HasSuffix(r.URL.Path, "/") {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	http.ServeFile(w, r, path)
}

// Health はデータベースへの到達性を返す。到達できない場合は503。
// GET /health
func (h *PageHandler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if err := h.health(r.Context()); err != nil {
		slog.Warn("health check failed", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]string{"status": "unavailable"})
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
