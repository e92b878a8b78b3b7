// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hitoshi/placeshare/internal/model"
)

// SessionCookieName はセッションIDを保持するCookieの名前。
const SessionCookieName = "session_id"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var (
	sessionContextKey = contextKey("session")
	csrfContextKey    = contextKey("csrf_token")
)

// SessionResolver はセッションIDから有効なセッションを解決するインターフェース。
// auth.Serviceが満たす。期限切れ・未登録の場合はnilを返す。
type SessionResolver interface {
	CurrentSession(ctx context.Context, sessionID string) (*model.Session, error)
}

// CookieConfig はセッションCookieの属性。
// Secretが設定されている場合、Cookie値はセッションIDとHMAC-SHA256署名の組になる。
type CookieConfig struct {
	Secure bool
	Domain string
	MaxAge time.Duration
	Secret []byte
}

// NewSessionLoader はHTTP Only Cookieからセッションを読み取り、リクエストコンテキストに格納するミドルウェアを返す。
// セッションがない場合は未認証として次のハンドラーへ進む。認可の判定はハンドラー側のガードで行う。
// 無効なセッションIDを持つCookieは削除する。
func NewSessionLoader(resolver SessionResolver, cookie CookieConfig) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c, err := r.Cookie(SessionCookieName)
			if err != nil || c.Value == "" {
				next.ServeHTTP(w, r)
				return
			}

			sessionID, ok := verifySessionValue(c.Value, cookie.Secret)
			if !ok {
				slog.Warn("session cookie signature mismatch", slog.String("path", r.URL.Path))
				ClearSessionCookie(w, cookie)
				next.ServeHTTP(w, r)
				return
			}

			session, err := resolver.CurrentSession(r.Context(), sessionID)
			if err != nil {
				slog.Error("failed to load session",
					slog.String("error", err.Error()),
				)
				WriteInternalServerError(w)
				return
			}
			if session == nil {
				ClearSessionCookie(w, cookie)
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithSession(r.Context(), session)))
		})
	}
}

// SetSessionCookie はセッションIDをHTTP Only Cookieとして設定する。
func SetSessionCookie(w http.ResponseWriter, sessionID string, cfg CookieConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    signSessionValue(sessionID, cfg.Secret),
		Path:     "/",
		Domain:   cfg.Domain,
		MaxAge:   int(cfg.MaxAge.Seconds()),
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func signSessionValue(sessionID string, secret []byte) string {
	if len(secret) == 0 {
		return sessionID
	}
	return sessionID + "." + sessionSignature(sessionID, secret)
}

func verifySessionValue(value string, secret []byte) (string, bool) {
	if len(secret) == 0 {
		return value, value != ""
	}
	id, sig, found := strings.Cut(value, ".")
	if !found || id == "" {
		return "", false
	}
	if !hmac.Equal([]byte(sig), []byte(sessionSignature(id, secret))) {
		return "", false
	}
	return id, true
}

func sessionSignature(sessionID string, secret []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(sessionID))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// ClearSessionCookie はセッションCookieを削除する。
func ClearSessionCookie(w http.ResponseWriter, cfg CookieConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   cfg.Domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// SessionFromContext はリクエストコンテキストからセッションを取得する。未認証の場合はnilを返す。
func SessionFromContext(ctx context.Context) *model.Session {
	s, _ := ctx.Value(sessionContextKey).(*model.Session)
	return s
}

// ContextWithSession はコンテキストにセッションを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithSession(ctx context.Context, s *model.Session) context.Context {
	return context.WithValue(ctx, sessionContextKey, s)
}

// UserIDFromContext はリクエストコンテキストから認証済みユーザーのIDを取得する。
func UserIDFromContext(ctx context.Context) (string, error) {
	s := SessionFromContext(ctx)
	if s == nil || s.UserID == "" {
		return "", fmt.Errorf("user ID not found in context")
	}
	return string(s.UserID), nil
}
