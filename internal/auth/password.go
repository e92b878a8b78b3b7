package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/placeshare/internal/model"
)

// DefaultBcryptCost はパスワードハッシュのコスト係数。
const DefaultBcryptCost = 10

// minPasswordLength はパスワードの最小文字数。
const minPasswordLength = 6

// maxPasswordBytes はbcryptが入力として受け付ける最大バイト数。
const maxPasswordBytes = 72

// PasswordHasher はパスワードの一方向ハッシュと照合を行うインターフェース。
type PasswordHasher interface {
	// Hash は平文パスワードからソルト付きダイジェストを生成する。
	Hash(plaintext string) (string, error)
	// Verify は平文パスワードがダイジェストと一致するかを返す。
	Verify(plaintext, digest string) bool
}

// BcryptHasher はbcryptによるPasswordHasherの実装。
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher はBcryptHasherを生成する。costが範囲外の場合はDefaultBcryptCostを使用する。
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultBcryptCost
	}
	return &BcryptHasher{cost: cost}
}

// Hash は呼び出しごとに異なるソルトでダイジェストを生成する。
func (h *BcryptHasher) Hash(plaintext string) (string, error) {
	digest, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(digest), nil
}

// Verify はダイジェストが不正な形式の場合もfalseを返す。
func (h *BcryptHasher) Verify(plaintext, digest string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(plaintext)) == nil
}

// ValidatePassword はパスワードポリシーを検証する。
// 6文字以上72バイト以下で、数字と英小文字と英大文字をそれぞれ1文字以上含む必要がある。
func ValidatePassword(password string) error {
	if len(password) > maxPasswordBytes {
		return model.ErrPasswordTooLong
	}
	if len([]rune(password)) < minPasswordLength {
		return model.ErrWeakPassword
	}

	var hasDigit, hasLower, hasUpper bool
	for _, r := range password {
		switch {
		case r >= '0' && r <= '9':
			hasDigit = true
		case r >= 'a' && r <= 'z':
			hasLower = true
		case r >= 'A' && r <= 'Z':
			hasUpper = true
		}
	}
	if !hasDigit || !hasLower || !hasUpper {
		return model.ErrWeakPassword
	}
	return nil
}

// compile-time interface check
var _ PasswordHasher = (*BcryptHasher)(nil)
