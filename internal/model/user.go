// Package model はドメインモデルを定義する。
package model

import (
	"strings"
	"time"
)

// UserID はユーザーを指す型付き参照。
type UserID string

// PlaceID は場所を指す型付き参照。
type PlaceID string

// User はサービスに登録されたユーザーを表す。
// PasswordHashはbcryptダイジェストであり、平文のパスワードは保持しない。
type User struct {
	ID           UserID
	Handle       string
	Email        string
	PasswordHash string
	Country      string
	AvatarRef    string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UserSnapshot はセッションやビューに渡すパスワードを含まないユーザー情報。
// パスワード関連のフィールドを構造として持たない。
type UserSnapshot struct {
	ID        UserID    `json:"id"`
	Handle    string    `json:"handle"`
	Email     string    `json:"email"`
	Country   string    `json:"country"`
	AvatarRef string    `json:"avatar_ref"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Snapshot はパスワードダイジェストを除いたユーザー情報を返す。
func (u *User) Snapshot() UserSnapshot {
	return UserSnapshot{
		ID:        u.ID,
		Handle:    u.Handle,
		Email:     u.Email,
		Country:   u.Country,
		AvatarRef: u.AvatarRef,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

// NormalizeEmail はメールアドレスを保存用に正規化する（前後の空白除去と小文字化）。
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// UserPatch はユーザー情報の部分更新を表す。
// nilのフィールドは変更しない。Passwordはリポジトリ層ではハッシュ済みの値を指す。
type UserPatch struct {
	Handle    *string
	Email     *string
	Password  *string
	Country   *string
	AvatarRef *string
}

// IsEmpty は変更対象のフィールドが1つもない場合にtrueを返す。
func (p UserPatch) IsEmpty() bool {
	return p.Handle == nil && p.Email == nil && p.Password == nil && p.Country == nil && p.AvatarRef == nil
}

// Session はユーザーのログインセッションを表す。
// Userはログイン時点のスナップショットで、パスワードダイジェストを含まない。
type Session struct {
	ID        string
	UserID    UserID
	User      UserSnapshot
	ExpiresAt time.Time
	CreatedAt time.Time
}
