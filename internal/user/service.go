// Package user はプロフィール編集のドメインロジックを提供する。
package user

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hitoshi/placeshare/internal/auth"
	"github.com/hitoshi/placeshare/internal/model"
	"github.com/hitoshi/placeshare/internal/repository"
)

// SnapshotRefresher はセッションに保存されたユーザー情報を書き換えるインターフェース。
type SnapshotRefresher interface {
	RefreshSnapshot(ctx context.Context, snapshot model.UserSnapshot) error
}

// ProfileInput はプロフィール編集フォームの入力値。
type ProfileInput struct {
	Handle    string
	Email     string
	Password  string // 空の場合は変更しない
	Country   string
	AvatarRef string // 新しくアップロードされた画像の参照。空の場合は現在の画像を維持する
}

// Service はプロフィールの取得と編集を提供する。
type Service struct {
	userRepo  repository.UserRepository
	hasher    auth.PasswordHasher
	refresher SnapshotRefresher
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(userRepo repository.UserRepository, hasher auth.PasswordHasher, refresher SnapshotRefresher) *Service {
	return &Service{
		userRepo:  userRepo,
		hasher:    hasher,
		refresher: refresher,
	}
}

// Get は編集フォーム用にユーザーの最新情報を返す。
func (s *Service) Get(ctx context.Context, id model.UserID) (*model.UserSnapshot, error) {
	u, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if u == nil {
		return nil, model.ErrNotFound
	}
	snapshot := u.Snapshot()
	return &snapshot, nil
}

// UpdateProfile は変更のあった項目だけを更新し、更新後のスナップショットを返す。
// パスワードは入力があり、かつ現在のものと異なる場合にのみ再ハッシュする。
// 更新後はそのユーザーの全セッションのスナップショットを書き換える。書き換えの失敗はログに残すだけで、エラーにはしない。
func (s *Service) UpdateProfile(ctx context.Context, id model.UserID, in ProfileInput) (*model.UserSnapshot, error) {
	in.Handle = strings.TrimSpace(in.Handle)
	in.Email = model.NormalizeEmail(in.Email)
	in.Country = strings.TrimSpace(in.Country)

	var missing []string
	if in.Handle == "" {
		missing = append(missing, "username")
	}
	if in.Email == "" {
		missing = append(missing, "email")
	}
	if in.Country == "" {
		missing = append(missing, "country")
	}
	if len(missing) > 0 {
		return nil, model.NewMissingFieldsError(missing...)
	}

	if in.Password != "" {
		if err := auth.ValidatePassword(in.Password); err != nil {
			return nil, err
		}
	}

	current, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if current == nil {
		return nil, model.ErrNotFound
	}

	patch, err := s.buildPatch(current, in)
	if err != nil {
		return nil, err
	}

	if patch.IsEmpty() {
		snapshot := current.Snapshot()
		return &snapshot, nil
	}

	updated, err := s.userRepo.Update(ctx, id, patch)
	if err != nil {
		return nil, err
	}

	// ユーザー行の更新は確定済み。セッション側の書き換えに失敗しても次回ログインで最新化される。
	snapshot := updated.Snapshot()
	if err := s.refresher.RefreshSnapshot(ctx, snapshot); err != nil {
		slog.Warn("failed to refresh session snapshots",
			slog.String("user_id", string(id)),
			slog.String("error", err.Error()),
		)
	}

	slog.Info("profile updated",
		slog.String("user_id", string(id)),
		slog.Bool("password_changed", patch.Password != nil),
	)
	return &snapshot, nil
}

// buildPatch は現在値と入力を比較し、差分のみを含むUserPatchを作る。
func (s *Service) buildPatch(current *model.User, in ProfileInput) (model.UserPatch, error) {
	var patch model.UserPatch
	if in.Handle != current.Handle {
		patch.Handle = &in.Handle
	}
	if in.Email != current.Email {
		patch.Email = &in.Email
	}
	if in.Country != current.Country {
		patch.Country = &in.Country
	}
	if in.AvatarRef != "" && in.AvatarRef != current.AvatarRef {
		patch.AvatarRef = &in.AvatarRef
	}
	if in.Password != "" && !s.hasher.Verify(in.Password, current.PasswordHash) {
		digest, err := s.hasher.Hash(in.Password)
		if err != nil {
			return model.UserPatch{}, err
		}
		patch.Password = &digest
	}
	return patch, nil
}
