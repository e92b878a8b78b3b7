package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/hitoshi/placeshare/internal/model"
)

// placeSelect は場所と作者を結合して取得するSELECT句。
// 作者のpassword_hashは取得しない。
const placeSelect = `SELECT p.id, p.name, p.location, p.description, p.media_ref, p.source_url, p.title,
	        p.liked_by, p.author_id, p.created_at, p.updated_at,
	        u.id, u.handle, u.email, u.country, u.avatar_ref, u.created_at, u.updated_at
	 FROM places p
	 JOIN users u ON u.id = p.author_id`

// placeOrder は一覧系クエリの並び順（新しい順、同時刻はIDで安定化）。
const placeOrder = ` ORDER BY p.created_at DESC, p.id`

// PostgresPlaceRepo はPostgreSQLを使用した場所リポジトリ。
type PostgresPlaceRepo struct {
	db *sql.DB
}

// NewPostgresPlaceRepo はPostgresPlaceRepoを生成する。
func NewPostgresPlaceRepo(db *sql.DB) *PostgresPlaceRepo {
	return &PostgresPlaceRepo{db: db}
}

// Create は場所を作成する。liked_byは空集合で始まる。
func (r *PostgresPlaceRepo) Create(ctx context.Context, place *model.Place) error {
	if !isValidID(string(place.AuthorID)) {
		return model.ErrNotFound
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO places (id, name, location, description, media_ref, source_url, title, author_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		string(place.ID), place.Name, place.Location, place.Description, place.MediaRef,
		place.SourceURL, place.Title, string(place.AuthorID), place.CreatedAt, place.UpdatedAt,
	)
	if isForeignKeyViolation(err) {
		return model.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to insert place: %w", err)
	}
	return nil
}

// FindAll は全ての場所を新しい順に返す。
func (r *PostgresPlaceRepo) FindAll(ctx context.Context) ([]*model.Place, error) {
	return r.query(ctx, placeSelect+placeOrder)
}

// FindRecent は新しい順に最大limit件を返す。
func (r *PostgresPlaceRepo) FindRecent(ctx context.Context, limit int) ([]*model.Place, error) {
	return r.query(ctx, placeSelect+placeOrder+` LIMIT $1`, limit)
}

// FindByID は指定IDの場所を返す。見つからない場合はnilを返す。
func (r *PostgresPlaceRepo) FindByID(ctx context.Context, id model.PlaceID) (*model.Place, error) {
	if !isValidID(string(id)) {
		return nil, nil
	}

	place, err := scanPlace(r.db.QueryRowContext(ctx, placeSelect+` WHERE p.id = $1`, string(id)))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find place: %w", err)
	}
	return place, nil
}

// FindByAuthor は指定ユーザーの場所を新しい順に返す。
func (r *PostgresPlaceRepo) FindByAuthor(ctx context.Context, authorID model.UserID) ([]*model.Place, error) {
	if !isValidID(string(authorID)) {
		return []*model.Place{}, nil
	}
	return r.query(ctx, placeSelect+` WHERE p.author_id = $1`+placeOrder, string(authorID))
}

// SearchByName は名前の部分一致（ILIKE）で検索する。
// LIKEのメタ文字はエスケープし、入力を文字列リテラルとして扱う。
func (r *PostgresPlaceRepo) SearchByName(ctx context.Context, substring string) ([]*model.Place, error) {
	pattern := "%" + escapeLike(substring) + "%"
	return r.query(ctx, placeSelect+` WHERE p.name ILIKE $1`+placeOrder, pattern)
}

// Update はメタデータを更新し、作者情報付きで更新後の場所を返す。
func (r *PostgresPlaceRepo) Update(ctx context.Context, id model.PlaceID, patch model.PlacePatch) (*model.Place, error) {
	if !isValidID(string(id)) {
		return nil, model.ErrNotFound
	}

	f := patch.Fields
	place, err := scanPlace(r.db.QueryRowContext(ctx,
		`WITH p AS (
		     UPDATE places SET
		         name        = $2,
		         location    = $3,
		         description = $4,
		         source_url  = $5,
		         title       = $6,
		         media_ref   = COALESCE($7, media_ref),
		         updated_at  = $8
		     WHERE id = $1
		     RETURNING *
		 )
		 SELECT p.id, p.name, p.location, p.description, p.media_ref, p.source_url, p.title,
		        p.liked_by, p.author_id, p.created_at, p.updated_at,
		        u.id, u.handle, u.email, u.country, u.avatar_ref, u.created_at, u.updated_at
		 FROM p JOIN users u ON u.id = p.author_id`,
		string(id), f.Name, f.Location, f.Description, f.SourceURL, f.Title,
		patch.MediaRef, time.Now().UTC(),
	))
	if err == sql.ErrNoRows {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update place: %w", err)
	}
	return place, nil
}

// Delete は場所を物理削除する。
func (r *PostgresPlaceRepo) Delete(ctx context.Context, id model.PlaceID) error {
	if !isValidID(string(id)) {
		return model.ErrNotFound
	}

	result, err := r.db.ExecContext(ctx, `DELETE FROM places WHERE id = $1`, string(id))
	if err != nil {
		return fmt.Errorf("failed to delete place: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return model.ErrNotFound
	}
	return nil
}

// ToggleLike はliked_by配列に対するユーザーの追加・削除を1つのUPDATE文で行う。
// 同じ行へのUPDATEは行ロックで直列化され、待たされた側は最新の行に対してCASEを再評価するため、
// 並行トグルでも更新が失われない。
func (r *PostgresPlaceRepo) ToggleLike(ctx context.Context, placeID model.PlaceID, userID model.UserID) (bool, error) {
	if !isValidID(string(placeID)) || !isValidID(string(userID)) {
		return false, model.ErrNotFound
	}

	var liked bool
	err := r.db.QueryRowContext(ctx,
		`UPDATE places SET
		     liked_by = CASE
		         WHEN $2::uuid = ANY(liked_by) THEN array_remove(liked_by, $2::uuid)
		         ELSE array_append(liked_by, $2::uuid)
		     END
		 WHERE id = $1
		 RETURNING $2::uuid = ANY(liked_by)`,
		string(placeID), string(userID),
	).Scan(&liked)
	if err == sql.ErrNoRows {
		return false, model.ErrNotFound
	}
	if err != nil {
		return false, fmt.Errorf("failed to toggle like: %w", err)
	}
	return liked, nil
}

func (r *PostgresPlaceRepo) query(ctx context.Context, query string, args ...any) ([]*model.Place, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query places: %w", err)
	}
	defer rows.Close()

	places := []*model.Place{}
	for rows.Next() {
		place, err := scanPlace(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan place: %w", err)
		}
		places = append(places, place)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate places: %w", err)
	}
	return places, nil
}

func scanPlace(row scanner) (*model.Place, error) {
	place := &model.Place{}
	author := &model.UserSnapshot{}
	var id, authorID, authorRowID string
	var likedBy []string

	err := row.Scan(
		&id, &place.Name, &place.Location, &place.Description, &place.MediaRef,
		&place.SourceURL, &place.Title, pq.Array(&likedBy), &authorID,
		&place.CreatedAt, &place.UpdatedAt,
		&authorRowID, &author.Handle, &author.Email, &author.Country,
		&author.AvatarRef, &author.CreatedAt, &author.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	place.ID = model.PlaceID(id)
	place.AuthorID = model.UserID(authorID)
	author.ID = model.UserID(authorRowID)
	place.Author = author

	place.LikedBy = make([]model.UserID, len(likedBy))
	for i, liker := range likedBy {
		place.LikedBy[i] = model.UserID(liker)
	}
	return place, nil
}

// escapeLike はLIKEパターンのメタ文字（\ % _）をエスケープする。
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// compile-time interface check
var _ PlaceRepository = (*PostgresPlaceRepo)(nil)
