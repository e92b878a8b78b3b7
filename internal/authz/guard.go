// Package authz はセッションと対象リソースの所有者から操作の可否を判定するガードを提供する。
// ガードは副作用を持たない純粋な述語で、拒否時のリダイレクト先を*Denialとして返す。
package authz

import (
	"errors"
	"fmt"

	"github.com/hitoshi/placeshare/internal/model"
)

// リダイレクト先
const (
	LoginPath = "/login"
	HomePath  = "/"
)

// Denial はガードによる拒否を表す。
type Denial struct {
	RedirectTo string
	Reason     string
}

// Error はerrorインターフェースを実装する。
func (d *Denial) Error() string {
	return fmt.Sprintf("access denied (%s): redirect to %s", d.Reason, d.RedirectTo)
}

// Guard はセッション（未ログインの場合はnil）を検査し、拒否する場合は*Denialを返す。
type Guard func(s *model.Session) error

// RequireAuthenticated はログイン済みであることを要求する。
func RequireAuthenticated(s *model.Session) error {
	if s == nil {
		return &Denial{RedirectTo: LoginPath, Reason: "authentication required"}
	}
	return nil
}

// RequireAnonymous は未ログインであることを要求する。
func RequireAnonymous(s *model.Session) error {
	if s != nil {
		return &Denial{RedirectTo: HomePath, Reason: "already authenticated"}
	}
	return nil
}

// RequireOwner はセッションのユーザーがownerと一致することを要求する。
// 拒否時は403ではなくログイン画面へリダイレクトする。
func RequireOwner(owner model.UserID) Guard {
	return func(s *model.Session) error {
		if s == nil || s.UserID != owner {
			return &Denial{RedirectTo: LoginPath, Reason: "not the owner"}
		}
		return nil
	}
}

// Check はガードを順に評価し、最初の拒否で打ち切る。
func Check(s *model.Session, guards ...Guard) error {
	for _, g := range guards {
		if err := g(s); err != nil {
			return err
		}
	}
	return nil
}

// IsDenial はエラーチェーンに*Denialが含まれていれば取り出す。
func IsDenial(err error) (*Denial, bool) {
	var d *Denial
	if errors.As(err, &d) {
		return d, true
	}
	return nil, false
}
