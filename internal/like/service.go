// Package like は場所へのいいねのトグルを提供する。
package like

import (
	"context"
	"log/slog"

	"github.com/hitoshi/placeshare/internal/metrics"
	"github.com/hitoshi/placeshare/internal/model"
)

// Toggler はいいね集合の所属を原子的に反転するインターフェース。
// repository.PlaceRepositoryが満たす。
type Toggler interface {
	ToggleLike(ctx context.Context, placeID model.PlaceID, userID model.UserID) (bool, error)
}

// Result はトグル後の状態。
type Result struct {
	PlaceID model.PlaceID
	Liked   bool // トグル後にユーザーがいいね済みかどうか
}

// Service はいいねのトグルを提供する。
type Service struct {
	toggler Toggler
	metrics metrics.Recorder
}

// NewService はServiceを生成する。
func NewService(toggler Toggler, recorder metrics.Recorder) *Service {
	return &Service{toggler: toggler, metrics: recorder}
}

// Toggle はユーザーのいいねを反転する。場所が存在しない場合はmodel.ErrNotFoundを返す。
// 作者自身のいいねも許可する。
func (s *Service) Toggle(ctx context.Context, placeID model.PlaceID, userID model.UserID) (Result, error) {
	liked, err := s.toggler.ToggleLike(ctx, placeID, userID)
	if err != nil {
		return Result{}, err
	}

	s.metrics.RecordLikeToggle(liked)
	slog.Debug("like toggled",
		slog.String("place_id", string(placeID)),
		slog.String("user_id", string(userID)),
		slog.Bool("liked", liked),
	)
	return Result{PlaceID: placeID, Liked: liked}, nil
}
