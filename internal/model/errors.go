// Package model はドメインモデルを定義する。
package model

import "fmt"

// ErrorKind はエラーの分類を表す。
// ハンドラーはKindを見てフォーム再表示・404・500のいずれで応答するかを決める。
type ErrorKind string

const (
	// KindValidation は入力値の不備（必須項目の欠落、弱いパスワード、画像なし等）。
	KindValidation ErrorKind = "validation"
	// KindDuplicateKey はハンドル名またはメールアドレスの重複。
	KindDuplicateKey ErrorKind = "duplicate"
	// KindNotFound は指定IDのユーザーまたは場所が存在しないことを示す。
	KindNotFound ErrorKind = "not_found"
	// KindUnauthorized は認証情報が正しくないことを示す。
	KindUnauthorized ErrorKind = "auth"
)

// AppError はユーザーに表示可能なエラーを表す。
// Messageはそのままフォームに表示されるため、内部情報を含めてはならない。
type AppError struct {
	Kind    ErrorKind // エラー分類
	Code    string    // エラーコード
	Message string    // ユーザー向けメッセージ
}

// Error はerrorインターフェースを実装する。
func (e *AppError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Is はerrors.Isでのコード比較を可能にする。
// 同じCodeを持つAppError同士を同一のエラーとみなす。
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// 定義済みエラーコード
const (
	ErrCodeDuplicateKey       = "DUPLICATE_KEY"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeMissingCredentials = "MISSING_CREDENTIALS"
	ErrCodeWeakPassword       = "WEAK_PASSWORD"
	ErrCodePasswordTooLong    = "PASSWORD_TOO_LONG"
	ErrCodeMissingMedia       = "MISSING_MEDIA"
	ErrCodeMissingFields      = "MISSING_FIELDS"
	ErrCodeInvalidSourceURL   = "INVALID_SOURCE_URL"
	ErrCodeInvalidMedia       = "INVALID_MEDIA"
	ErrCodeMediaTooLarge      = "MEDIA_TOO_LARGE"
)

var (
	// ErrDuplicateKey はハンドル名・メールアドレスの一意制約違反。
	// どちらの項目が衝突したかは明かさない。
	ErrDuplicateKey = &AppError{
		Kind:    KindDuplicateKey,
		Code:    ErrCodeDuplicateKey,
		Message: "Username and email need to be unique. Provide a valid username or email.",
	}

	// ErrNotFound は対象データが存在しない場合のエラー。
	ErrNotFound = &AppError{
		Kind:    KindNotFound,
		Code:    ErrCodeNotFound,
		Message: "Error fetching data",
	}

	// ErrInvalidCredentials はログイン失敗時の汎用エラー。
	// 未登録のハンドル名とパスワード誤りを区別しない。
	ErrInvalidCredentials = &AppError{
		Kind:    KindUnauthorized,
		Code:    ErrCodeInvalidCredentials,
		Message: "Incorrect user and/or password.",
	}

	// ErrMissingCredentials はログインフォームが空の場合のエラー。
	ErrMissingCredentials = &AppError{
		Kind:    KindValidation,
		Code:    ErrCodeMissingCredentials,
		Message: "Please enter both username and password to login.",
	}

	// ErrWeakPassword はパスワードポリシー違反。
	ErrWeakPassword = &AppError{
		Kind:    KindValidation,
		Code:    ErrCodeWeakPassword,
		Message: "Password needs to have at least 6 chars and must contain at least one number, one lowercase and one uppercase letter.",
	}
	// ErrPasswordTooLong はbcryptが扱える72バイトを超えるパスワード。
	ErrPasswordTooLong = &AppError{
		Kind:    KindValidation,
		Code:    ErrCodePasswordTooLong,
		Message: "Password must be at most 72 bytes long.",
	}

	// ErrMissingMedia は画像が指定されていない場合のエラー。
	ErrMissingMedia = &AppError{
		Kind:    KindValidation,
		Code:    ErrCodeMissingMedia,
		Message: "All fields are mandatory. Please provide an image.",
	}

	// ErrInvalidSourceURL は出典URLが不正な場合のエラー。
	ErrInvalidSourceURL = &AppError{
		Kind:    KindValidation,
		Code:    ErrCodeInvalidSourceURL,
		Message: "The source must be a public http(s) URL.",
	}

	// ErrInvalidMedia はアップロードされたファイルが画像として扱えない場合のエラー。
	ErrInvalidMedia = &AppError{
		Kind:    KindValidation,
		Code:    ErrCodeInvalidMedia,
		Message: "The uploaded file is not a supported image.",
	}

	// ErrMediaTooLarge はアップロードされた画像がサイズ上限を超えた場合のエラー。
	ErrMediaTooLarge = &AppError{
		Kind:    KindValidation,
		Code:    ErrCodeMediaTooLarge,
		Message: "The image is too large.",
	}
)

// NewMissingFieldsError は必須項目が欠けている場合のエラーを生成する。
func NewMissingFieldsError(fields ...string) *AppError {
	return &AppError{
		Kind:    KindValidation,
		Code:    ErrCodeMissingFields,
		Message: fmt.Sprintf("All fields are mandatory. Missing: %v", fields),
	}
}
