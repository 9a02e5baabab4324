package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/hitoshi/blogclient/internal/middleware"
	"github.com/hitoshi/blogclient/internal/security"
)

// HealthChecker は依存先の疎通確認に必要なインターフェース。*sql.DBが満たす。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger *slog.Logger

	// ミドルウェア依存
	Session           middleware.SessionChecker
	CORSAllowedOrigin string
	CSRF              middleware.CSRFConfig
	RateLimiter       *middleware.RateLimiter

	// ストア
	AuthStore    AuthStoreInterface
	ArticleStore ArticleStoreInterface

	// 表示
	Sanitizer security.ContentSanitizerService
	PageSize  int

	// 運用
	Metrics       http.Handler  // nilの場合は/metricsを公開しない
	HealthChecker HealthChecker // nilの場合はプロセスの生存のみを返す
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → Recovery → Logging → SecurityHeaders → CORS → CSRF → RateLimit(General, Mutation) → AuthRequired(非公開ルートのみ)
//
// /health と /metrics はCSRFとレート制限の外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(middleware.NewRecoveryMiddleware(deps.Logger))
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	r.Get("/health", healthHandler(deps.HealthChecker, deps.Logger))
	if deps.Metrics != nil {
		r.Handle("/metrics", deps.Metrics)
	}

	sessionHandler := NewSessionHandler(deps.AuthStore, deps.Logger)
	articleHandler := NewArticleHandler(deps.ArticleStore, deps.Sanitizer, deps.PageSize, deps.Logger)
	authRequired := middleware.NewAuthRequiredMiddleware(deps.Session)

	r.Group(func(r chi.Router) {
		r.Use(middleware.NewCSRFMiddleware(deps.CSRF, deps.Logger))
		r.Use(deps.RateLimiter.GeneralMiddleware())
		r.Use(deps.RateLimiter.MutationMiddleware())

		r.Get("/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRF, deps.Logger).ServeHTTP)

		r.Route("/api/session", func(r chi.Router) {
			r.Get("/", sessionHandler.Get)
			r.Post("/login", sessionHandler.Login)
			r.Post("/register", sessionHandler.Register)
			r.Post("/refresh", sessionHandler.Refresh)
			r.Post("/logout", sessionHandler.Logout)
			r.With(authRequired).Put("/profile", sessionHandler.UpdateProfile)
		})

		r.Route("/api/articles", func(r chi.Router) {
			r.Get("/", articleHandler.ListArticles)
			r.With(authRequired).Post("/", articleHandler.CreateArticle)

			// 静的セグメントは{slug}より優先される
			r.Delete("/current", articleHandler.LeaveArticle)

			r.Route("/{slug}", func(r chi.Router) {
				r.Get("/", articleHandler.GetArticle)

				r.Group(func(r chi.Router) {
					r.Use(authRequired)
					r.Put("/", articleHandler.UpdateArticle)
					r.Delete("/", articleHandler.DeleteArticle)
					r.Post("/favorite", articleHandler.Favorite)
					r.Delete("/favorite", articleHandler.Unfavorite)
				})
			})
		})
	})

	return r
}

// healthHandler はヘルスチェックのハンドラーを返す。
// GET /health
func healthHandler(checker HealthChecker, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if checker != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := checker.PingContext(ctx); err != nil {
				logger.Error("health check failed", slog.String("error", err.Error()))
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
