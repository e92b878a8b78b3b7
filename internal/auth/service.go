// Package auth はパスワード認証とセッション管理を提供する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/placeshare/internal/model"
	"github.com/hitoshi/placeshare/internal/repository"
)

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge int // セッション有効期間（秒）
}

// SignupInput はサインアップフォームの入力値。
type SignupInput struct {
	Handle    string
	Email     string
	Password  string
	Country   string
	AvatarRef string // アップロード済みプロフィール画像の参照
}

// Service はサインアップ、ログイン、セッションの発行と破棄を提供する。
type Service struct {
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
	hasher      PasswordHasher
	config      ServiceConfig
	now         func() time.Time
}

// NewService はServiceを生成する。
func NewService(
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	hasher PasswordHasher,
	config ServiceConfig,
) *Service {
	return &Service{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		hasher:      hasher,
		config:      config,
		now:         time.Now,
	}
}

// Signup は新しいユーザーを登録し、パスワードを含まないスナップショットを返す。
// 画像の欠落と必須項目の欠落、パスワードポリシー違反はハッシュ計算や永続化の前に検出する。
func (s *Service) Signup(ctx context.Context, in SignupInput) (*model.UserSnapshot, error) {
	in.Handle = strings.TrimSpace(in.Handle)
	in.Email = model.NormalizeEmail(in.Email)
	in.Country = strings.TrimSpace(in.Country)

	if in.AvatarRef == "" {
		return nil, model.ErrMissingMedia
	}

	var missing []string
	if in.Handle == "" {
		missing = append(missing, "username")
	}
	if in.Email == "" {
		missing = append(missing, "email")
	}
	if in.Password == "" {
		missing = append(missing, "password")
	}
	if in.Country == "" {
		missing = append(missing, "country")
	}
	if len(missing) > 0 {
		return nil, model.NewMissingFieldsError(missing...)
	}

	if err := ValidatePassword(in.Password); err != nil {
		return nil, err
	}

	digest, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	user := &model.User{
		ID:           model.UserID(uuid.New().String()),
		Handle:       in.Handle,
		Email:        in.Email,
		PasswordHash: digest,
		Country:      in.Country,
		AvatarRef:    in.AvatarRef,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}

	slog.Info("new user created",
		slog.String("user_id", string(user.ID)),
		slog.String("handle", user.Handle),
	)

	snapshot := user.Snapshot()
	return &snapshot, nil
}

// Login はハンドル名とパスワードを照合し、セッションを発行する。
// 未登録のハンドル名とパスワード誤りはどちらもmodel.ErrInvalidCredentialsを返す。
func (s *Service) Login(ctx context.Context, handle, password string) (*model.Session, error) {
	handle = strings.TrimSpace(handle)
	if handle == "" || password == "" {
		return nil, model.ErrMissingCredentials
	}

	user, err := s.userRepo.FindByHandle(ctx, handle)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		slog.Info("login rejected", slog.String("reason", "unknown_handle"))
		return nil, model.ErrInvalidCredentials
	}
	if !s.hasher.Verify(password, user.PasswordHash) {
		slog.Info("login rejected",
			slog.String("reason", "password_mismatch"),
			slog.String("user_id", string(user.ID)),
		)
		return nil, model.ErrInvalidCredentials
	}

	session, err := s.createSession(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	slog.Info("user logged in", slog.String("user_id", string(user.ID)))
	return session, nil
}

// CurrentSession はセッションIDから有効なセッションを取得する。
// IDが空、未発行、期限切れの場合はnilを返す。
func (s *Service) CurrentSession(ctx context.Context, sessionID string) (*model.Session, error) {
	if sessionID == "" {
		return nil, nil
	}

	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	return session, nil
}

// Logout はセッションを破棄する。ストアの失敗はそのまま返す。
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session ID is required")
	}

	if err := s.sessionRepo.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	slog.Info("user logged out")
	return nil
}

// RefreshSnapshot はユーザーの全セッションに保存されたスナップショットを書き換える。
func (s *Service) RefreshSnapshot(ctx context.Context, snapshot model.UserSnapshot) error {
	if err := s.sessionRepo.UpdateSnapshotByUserID(ctx, snapshot.ID, snapshot); err != nil {
		return fmt.Errorf("failed to refresh session snapshot: %w", err)
	}
	return nil
}

// createSession はセッションを作成し永続化する。
func (s *Service) createSession(ctx context.Context, user *model.User) (*model.Session, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	now := s.now().UTC()
	session := &model.Session{
		ID:        sessionID,
		UserID:    user.ID,
		User:      user.Snapshot(),
		ExpiresAt: now.Add(time.Duration(s.config.SessionMaxAge) * time.Second),
		CreatedAt: now,
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return session, nil
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
