// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/placeshare/internal/model"
)

// UserRepository はユーザー（認証情報）の永続化インターフェース。
// 削除操作は提供しない。
type UserRepository interface {
	// Create はユーザーを作成する。
	// ハンドル名またはメールアドレスが既に存在する場合はmodel.ErrDuplicateKeyを返す。
	Create(ctx context.Context, user *model.User) error

	// FindByHandle はハンドル名（大文字小文字を区別する完全一致）でユーザーを検索する。
	// 見つからない場合はnilを返す。
	FindByHandle(ctx context.Context, handle string) (*model.User, error)

	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id model.UserID) (*model.User, error)

	// Update はnilでないフィールドのみを更新し、更新後のユーザーを返す。
	// 一意制約違反はmodel.ErrDuplicateKey、対象なしはmodel.ErrNotFoundを返す。
	Update(ctx context.Context, id model.UserID, patch model.UserPatch) (*model.User, error)
}

// PlaceRepository は場所データの永続化インターフェース。
// 所有者チェックは行わない。認可は呼び出し側（authz）の責務とする。
type PlaceRepository interface {
	// Create は場所を作成する。作者が存在しない場合はmodel.ErrNotFoundを返す。
	Create(ctx context.Context, place *model.Place) error

	// FindAll は全ての場所を作者情報付きで作成日時の降順に返す。
	FindAll(ctx context.Context) ([]*model.Place, error)

	// FindRecent は作成日時の新しい順に最大limit件を返す。
	FindRecent(ctx context.Context, limit int) ([]*model.Place, error)

	// FindByID は指定IDの場所を作者情報付きで返す。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id model.PlaceID) (*model.Place, error)

	// FindByAuthor は指定ユーザーが作成した場所を作成日時の降順に返す。
	FindByAuthor(ctx context.Context, authorID model.UserID) ([]*model.Place, error)

	// SearchByName は名前に部分文字列を含む場所を大文字小文字を区別せずに返す。
	SearchByName(ctx context.Context, substring string) ([]*model.Place, error)

	// Update はメタデータを更新する。patch.MediaRefがnilの場合は画像参照を維持する。
	// 対象なしはmodel.ErrNotFoundを返す。
	Update(ctx context.Context, id model.PlaceID, patch model.PlacePatch) (*model.Place, error)

	// Delete は場所を物理削除する。対象なしはmodel.ErrNotFoundを返す。
	Delete(ctx context.Context, id model.PlaceID) error

	// ToggleLike はいいね集合に対するユーザーの所属を1文で反転し、反転後にいいね済みかどうかを返す。
	// 対象なしはmodel.ErrNotFoundを返す。
	ToggleLike(ctx context.Context, placeID model.PlaceID, userID model.UserID) (bool, error)
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// UpdateSnapshotByUserID は指定ユーザーの全セッションのスナップショットを書き換える。
	UpdateSnapshotByUserID(ctx context.Context, userID model.UserID, snapshot model.UserSnapshot) error
}
