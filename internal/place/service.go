// Package place は場所の作成・閲覧・検索・編集・削除のドメインロジックを提供する。
// 所有者の確認は行わない。呼び出し側がauthzのガードで判定する。
package place

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/placeshare/internal/metrics"
	"github.com/hitoshi/placeshare/internal/model"
	"github.com/hitoshi/placeshare/internal/repository"
	"github.com/hitoshi/placeshare/internal/security"
)

// URLValidator は出典URLの静的検証インターフェース。
type URLValidator interface {
	ValidateURL(rawURL string) error
}

// Service は場所に関するユースケースを提供する。
type Service struct {
	repo      repository.PlaceRepository
	sanitizer security.TextSanitizer
	urls      URLValidator
	metrics   metrics.Recorder
	now       func() time.Time
}

// NewService はServiceを生成する。
func NewService(
	repo repository.PlaceRepository,
	sanitizer security.TextSanitizer,
	urls URLValidator,
	recorder metrics.Recorder,
) *Service {
	return &Service{
		repo:      repo,
		sanitizer: sanitizer,
		urls:      urls,
		metrics:   recorder,
		now:       time.Now,
	}
}

// Create は場所を作成する。mediaRefが空の場合は永続化前にmodel.ErrMissingMediaを返す。
func (s *Service) Create(ctx context.Context, author model.UserID, fields model.PlaceFields, mediaRef string) (*model.Place, error) {
	if mediaRef == "" {
		return nil, model.ErrMissingMedia
	}

	fields, err := s.clean(fields)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	p := &model.Place{
		ID:          model.PlaceID(uuid.New().String()),
		Name:        fields.Name,
		Location:    fields.Location,
		Description: fields.Description,
		MediaRef:    mediaRef,
		SourceURL:   fields.SourceURL,
		Title:       fields.Title,
		LikedBy:     []model.UserID{},
		AuthorID:    author,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}

	s.metrics.RecordPlaceCreated()
	slog.Info("place created",
		slog.String("place_id", string(p.ID)),
		slog.String("user_id", string(author)),
	)
	return p, nil
}

// Get は場所を作者情報付きで返す。存在しない場合はmodel.ErrNotFoundを返す。
func (s *Service) Get(ctx context.Context, id model.PlaceID) (*model.Place, error) {
	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get place: %w", err)
	}
	if p == nil {
		return nil, model.ErrNotFound
	}
	return p, nil
}

// List は全ての場所を新しい順に返す。
func (s *Service) List(ctx context.Context) ([]*model.Place, error) {
	places, err := s.repo.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list places: %w", err)
	}
	return places, nil
}

// Recent は新しい順に最大limit件を返す。
func (s *Service) Recent(ctx context.Context, limit int) ([]*model.Place, error) {
	places, err := s.repo.FindRecent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent places: %w", err)
	}
	return places, nil
}

// ListByAuthor は指定ユーザーの場所を新しい順に返す。
func (s *Service) ListByAuthor(ctx context.Context, author model.UserID) ([]*model.Place, error) {
	places, err := s.repo.FindByAuthor(ctx, author)
	if err != nil {
		return nil, fmt.Errorf("failed to list places by author: %w", err)
	}
	return places, nil
}

// Search は名前に部分文字列を含む場所を返す。空白のみのクエリは全件を返す。
func (s *Service) Search(ctx context.Context, query string) ([]*model.Place, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return s.List(ctx)
	}

	places, err := s.repo.SearchByName(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to search places: %w", err)
	}
	return places, nil
}

// Update はメタデータを更新する。mediaRefがnilまたは空の場合は保存済みの画像を維持する。
func (s *Service) Update(ctx context.Context, id model.PlaceID, fields model.PlaceFields, mediaRef *string) (*model.Place, error) {
	fields, err := s.clean(fields)
	if err != nil {
		return nil, err
	}

	patch := model.PlacePatch{Fields: fields}
	if mediaRef != nil && *mediaRef != "" {
		patch.MediaRef = mediaRef
	}

	p, err := s.repo.Update(ctx, id, patch)
	if err != nil {
		return nil, err
	}

	slog.Info("place updated",
		slog.String("place_id", string(id)),
		slog.Bool("media_replaced", patch.MediaRef != nil),
	)
	return p, nil
}

// Delete は場所を削除する。
func (s *Service) Delete(ctx context.Context, id model.PlaceID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	slog.Info("place deleted", slog.String("place_id", string(id)))
	return nil
}

// clean は入力を無害化し、必須項目と出典URLを検証する。
func (s *Service) clean(fields model.PlaceFields) (model.PlaceFields, error) {
	fields = fields.Trimmed()
	fields.Name = s.sanitizer.Sanitize(fields.Name)
	fields.Location = s.sanitizer.Sanitize(fields.Location)
	fields.Description = s.sanitizer.Sanitize(fields.Description)
	fields.Title = s.sanitizer.Sanitize(fields.Title)

	if fields.Name == "" {
		return fields, model.NewMissingFieldsError("name")
	}

	if fields.SourceURL != "" {
		if err := s.urls.ValidateURL(fields.SourceURL); err != nil {
			return fields, model.ErrInvalidSourceURL
		}
	}
	return fields, nil
}
