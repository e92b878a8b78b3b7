package middleware

import (
	"fmt"
	"html"
	"net/http"
)

// WriteErrorPage は最小限のHTMLエラーページを書き込む。
// テンプレートを持たないミドルウェア層の応答（CSRF拒否、レート制限、panic等）で使用する。
func WriteErrorPage(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(statusCode)
	fmt.Fprintf(w,
		"<!DOCTYPE html>\n<html><head><title>%d %s</title></head><body><h1>%s</h1><p>%s</p></body></html>\n",
		statusCode, http.StatusText(statusCode), http.StatusText(statusCode), html.EscapeString(message),
	)
}

// WriteInternalServerError は内部サーバーエラーのページを書き込む。
// 詳細はログのみに記録し、ユーザーには一般的なメッセージを返す。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorPage(w, http.StatusInternalServerError, "Something went wrong. Please try again later.")
}
