package blob

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/net/html"

	"github.com/hitoshi/placeshare/internal/model"
	"github.com/hitoshi/placeshare/internal/security"
)

// maxPageSize はHTMLページから画像URLを探す際に読み込む上限。
const maxPageSize = 1 << 20

// sniffSize は内容判定のために先読みするバイト数。
const sniffSize = 3072

// RemoteImporter は外部URLの画像を取得してStoreに保存する。
// 接続はSSRF対策済みのクライアントで行う。
// URLがHTMLページを指す場合は、ページが宣言する代表画像（og:image等）を1回だけ辿る。
type RemoteImporter struct {
	store  Store
	guard  security.SSRFGuard
	client *http.Client
}

// NewRemoteImporter はRemoteImporterを生成する。
func NewRemoteImporter(store Store, guard security.SSRFGuard, timeout time.Duration) *RemoteImporter {
	return &RemoteImporter{
		store:  store,
		guard:  guard,
		client: guard.NewSafeClient(timeout),
	}
}

// Import はURLの画像を取得して保存し、参照を返す。
// URLが安全でない場合はmodel.ErrInvalidSourceURL、取得に失敗した場合はmodel.ErrInvalidMediaを返す。
func (i *RemoteImporter) Import(ctx context.Context, rawURL string) (string, error) {
	return i.importURL(ctx, rawURL, true)
}

func (i *RemoteImporter) importURL(ctx context.Context, rawURL string, followPage bool) (string, error) {
	if err := i.guard.ValidateURL(rawURL); err != nil {
		slog.Warn("画像取り込み: URLを拒否しました", "url", rawURL, "error", err)
		return "", model.ErrInvalidSourceURL
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", model.ErrInvalidSourceURL
	}
	req.Header.Set("User-Agent", "Placeshare/1.0 image importer")
	req.Header.Set("Accept", "image/*, text/html;q=0.8")

	resp, err := i.client.Do(req)
	if err != nil {
		slog.Warn("画像取り込み: HTTPリクエスト失敗", "url", rawURL, "error", err)
		return "", model.ErrInvalidMedia
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		slog.Warn("画像取り込み: HTTPステータス異常", "url", rawURL, "status", resp.StatusCode)
		return "", model.ErrInvalidMedia
	}

	body := bufio.NewReaderSize(resp.Body, sniffSize)
	head, _ := body.Peek(sniffSize)

	if followPage && isHTML(resp.Header.Get("Content-Type"), head) {
		page, err := io.ReadAll(io.LimitReader(body, maxPageSize))
		if err != nil {
			return "", model.ErrInvalidMedia
		}
		imageURL := FindPageImage(page, rawURL)
		if imageURL == "" {
			slog.Warn("画像取り込み: ページに画像が見つかりません", "url", rawURL)
			return "", model.ErrInvalidMedia
		}
		return i.importURL(ctx, imageURL, false)
	}

	ref, err := i.store.Save(ctx, body)
	if err != nil {
		return "", fmt.Errorf("failed to save remote image: %w", err)
	}
	return ref, nil
}

// isHTML はレスポンスがHTMLかどうかを内容から判定する。
// 画像として宣言されたレスポンスはページとして扱わない。
func isHTML(contentType string, head []byte) bool {
	if strings.HasPrefix(strings.ToLower(contentType), "image/") {
		return false
	}
	return mimetype.Detect(head).Is("text/html")
}

// FindPageImage はHTMLの<head>からページの代表画像URLを探し、絶対URLで返す。
// og:image、twitter:image、<link rel="image_src">の順に優先する。見つからない場合は空文字を返す。
func FindPageImage(page []byte, pageURL string) string {
	base, err := url.Parse(pageURL)
	if err != nil {
		return ""
	}

	found := map[string]string{}
	tokenizer := html.NewTokenizer(strings.NewReader(string(page)))

loop:
	for {
		tt := tokenizer.Next()
		switch tt {
		case html.ErrorToken:
			break loop

		case html.StartTagToken, html.SelfClosingTagToken:
			tn, hasAttr := tokenizer.TagName()
			tagName := string(tn)
			if tagName == "body" {
				break loop
			}
			if !hasAttr || (tagName != "meta" && tagName != "link") {
				continue
			}

			attrs := map[string]string{}
			for {
				key, val, more := tokenizer.TagAttr()
				attrs[strings.ToLower(string(key))] = string(val)
				if !more {
					break
				}
			}

			switch tagName {
			case "meta":
				name := strings.ToLower(attrs["property"])
				if name == "" {
					name = strings.ToLower(attrs["name"])
				}
				if (name == "og:image" || name == "twitter:image") && found[name] == "" {
					found[name] = attrs["content"]
				}
			case "link":
				if strings.ToLower(attrs["rel"]) == "image_src" && found["image_src"] == "" {
					found["image_src"] = attrs["href"]
				}
			}

		case html.EndTagToken:
			tn, _ := tokenizer.TagName()
			if string(tn) == "head" {
				break loop
			}
		}
	}

	for _, key := range []string{"og:image", "twitter:image", "image_src"} {
		raw := strings.TrimSpace(found[key])
		if raw == "" {
			continue
		}
		ref, err := url.Parse(raw)
		if err != nil {
			continue
		}
		return base.ResolveReference(ref).String()
	}
	return ""
}
