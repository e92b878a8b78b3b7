package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/hitoshi/placeshare/internal/authz"
	"github.com/hitoshi/placeshare/internal/metrics"
	"github.com/hitoshi/placeshare/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger          *slog.Logger
	SessionResolver middleware.SessionResolver
	Cookie          middleware.CookieConfig
	CSRF            middleware.CSRFConfig
	RateLimiter     *middleware.RateLimiter
	MaxBodyBytes    int64
	Metrics         metrics.Recorder
	MetricsHandler  http.Handler

	// 表示
	Renderer Renderer
	Quotes   QuotePicker

	// 画像
	MediaStore    MediaStore
	MediaImporter MediaImporter
	MediaFiles    MediaFiles

	// サービス
	AuthService  AuthServiceInterface
	UserService  UserServiceInterface
	PlaceService interface {
		PlaceServiceInterface
		RecentLister
	}
	LikeService LikeServiceInterface
	Feed        FeedWriter
	Health      HealthChecker
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → RealIP → Recovery → SecurityHeaders → BodyLimit → SessionLoader
//	→ Logging → Metrics → RateLimit(General) → CSRF
//
// /health と /metrics はセッションとCSRFの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.NewRecoveryMiddleware())

	pageHandler := NewPageHandler(deps.Renderer, deps.Quotes, deps.PlaceService, deps.Feed, deps.MediaFiles, deps.Health)
	authHandler := NewAuthHandler(deps.AuthService, deps.Renderer, deps.MediaStore, deps.Cookie, deps.Metrics)
	userHandler := NewUserHandler(deps.UserService, deps.Renderer, deps.MediaStore)
	placeHandler := NewPlaceHandler(deps.PlaceService, deps.LikeService, deps.Renderer, deps.MediaStore, deps.MediaImporter)

	// --- 運用エンドポイント ---
	r.Get("/health", pageHandler.Health)
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	// --- アプリケーション ---
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSecurityHeadersMiddleware())
		r.Use(middleware.NewBodyLimitMiddleware(deps.MaxBodyBytes))
		r.Use(middleware.NewSessionLoader(deps.SessionResolver, deps.Cookie))
		r.Use(middleware.NewLoggingMiddleware(logger))
		r.Use(middleware.NewMetricsMiddleware(deps.Metrics))
		r.Use(deps.RateLimiter.GeneralMiddleware())
		r.Use(middleware.NewCSRFMiddleware(deps.CSRF))

		anonymous := requireGuards(authz.RequireAnonymous)
		authenticated := requireGuards(authz.RequireAuthenticated)
		loginLimit := deps.RateLimiter.LoginMiddleware()

		r.Get("/", pageHandler.Home)
		r.Get("/media/*", pageHandler.Media)

		// 認証
		r.With(anonymous).Get("/signup", authHandler.SignupForm)
		r.With(loginLimit).Post("/signup", authHandler.Signup)
		r.With(anonymous).Get("/login", authHandler.LoginForm)
		r.With(loginLimit).Post("/login", authHandler.Login)
		r.With(authenticated).Post("/logout", authHandler.Logout)

		// プロフィール
		r.Get("/user-profile", userHandler.Profile)
		r.Route("/user-profile/edit", func(r chi.Router) {
			r.Use(authenticated)
			r.Get("/", userHandler.EditForm)
			r.Post("/", userHandler.Update)
		})

		// 場所
		r.Post("/search", placeHandler.Search)
		r.Route("/places", func(r chi.Router) {
			r.Get("/", placeHandler.List)
			r.Get("/feed.xml", pageHandler.Feed)
			r.With(authenticated).Get("/create", placeHandler.CreateForm)
			r.With(authenticated).Post("/create", placeHandler.Create)
			r.Get("/my-places/{userId}", placeHandler.MyPlaces)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", placeHandler.Detail)
				r.Get("/edit", placeHandler.EditForm)
				r.Post("/edit", placeHandler.Update)
				r.Post("/delete", placeHandler.Delete)
				r.With(authenticated).Post("/like", placeHandler.ToggleLike)
			})
		})
	})

	return r
}
