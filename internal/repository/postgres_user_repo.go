package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/placeshare/internal/model"
)

const userColumns = `id, handle, email, password_hash, country, avatar_ref, created_at, updated_at`

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

// Create はユーザーを作成する。
// users.handle / users.email のUNIQUE制約違反はmodel.ErrDuplicateKeyに変換する。
func (r *PostgresUserRepo) Create(ctx context.Context, user *model.User) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, handle, email, password_hash, country, avatar_ref, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		string(user.ID), user.Handle, user.Email, user.PasswordHash,
		user.Country, user.AvatarRef, user.CreatedAt, user.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return model.ErrDuplicateKey
	}
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// FindByHandle はハンドル名でユーザーを検索する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByHandle(ctx context.Context, handle string) (*model.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE handle = $1`,
		handle,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by handle: %w", err)
	}
	return user, nil
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id model.UserID) (*model.User, error) {
	if !isValidID(string(id)) {
		return nil, nil
	}

	user, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`,
		string(id),
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}
	return user, nil
}

// Update はnilでないフィールドのみをCOALESCEで更新する。
func (r *PostgresUserRepo) Update(ctx context.Context, id model.UserID, patch model.UserPatch) (*model.User, error) {
	if !isValidID(string(id)) {
		return nil, model.ErrNotFound
	}

	user, err := scanUser(r.db.QueryRowContext(ctx,
		`UPDATE users SET
		     handle        = COALESCE($2, handle),
		     email         = COALESCE($3, email),
		     password_hash = COALESCE($4, password_hash),
		     country       = COALESCE($5, country),
		     avatar_ref    = COALESCE($6, avatar_ref),
		     updated_at    = $7
		 WHERE id = $1
		 RETURNING `+userColumns,
		string(id), patch.Handle, patch.Email, patch.Password,
		patch.Country, patch.AvatarRef, time.Now().UTC(),
	))
	if err == sql.ErrNoRows {
		return nil, model.ErrNotFound
	}
	if isUniqueViolation(err) {
		return nil, model.ErrDuplicateKey
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	return user, nil
}

func scanUser(row scanner) (*model.User, error) {
	user := &model.User{}
	var id string
	err := row.Scan(
		&id, &user.Handle, &user.Email, &user.PasswordHash,
		&user.Country, &user.AvatarRef, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	user.ID = model.UserID(id)
	return user, nil
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
