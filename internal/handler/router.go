package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/unsaid/internal/clock"
	"github.com/hitoshi/unsaid/internal/middleware"
)

// HealthChecker は永続化バックエンドの疎通を確認する。
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	StatusObserver    middleware.StatusObserver
	UserFinder        middleware.UserFinder
	RateLimiter       *middleware.RateLimiter
	CORSAllowedOrigin string
	CSRF              middleware.CSRFConfig

	// 運用
	Health  HealthChecker
	Metrics http.Handler

	// ドメイン
	AuthService     AuthServiceInterface
	SessionService  SessionServiceInterface
	ChatService     ChatServiceInterface
	SettingsService SettingsServiceInterface
	QuestionService QuestionServiceInterface
	MemoryService   MemoryServiceInterface
	DataService     DataServiceInterface
	Clock           clock.Clock
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → SecurityHeaders → CORS → CSRF → [User → RateLimit(General)]
//
// メッセージ送信にはさらにRateLimit(Message)を重ねる。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clk := deps.Clock
	if clk == nil {
		clk = clock.RealClock{}
	}

	r := chi.NewRouter()
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(logger, deps.StatusObserver))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewCSRFMiddleware(deps.CSRF))

	authHandler := NewAuthHandler(deps.AuthService)
	sessionHandler := NewSessionHandler(deps.SessionService)
	chatHandler := NewChatHandler(deps.ChatService)
	settingsHandler := NewSettingsHandler(deps.SettingsService)
	memoryHandler := NewMemoryHandler(deps.QuestionService, deps.MemoryService)
	dataHandler := NewDataHandler(deps.DataService, clk)

	// --- 認証不要のルート ---

	r.Get("/health", healthHandler(deps.Health))
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}
	r.Method(http.MethodGet, "/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRF))

	r.Route("/auth", func(r chi.Router) {
		r.Post("/google", authHandler.GoogleLogin)
		r.Post("/logout", authHandler.Logout)
		r.Get("/me", authHandler.Me)
	})

	r.Route("/api/settings", func(r chi.Router) {
		r.Get("/", settingsHandler.GetSettings)
		r.Patch("/", settingsHandler.UpdateSettings)
	})

	// --- ユーザーが必要なルート ---
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewUserMiddleware(deps.UserFinder))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Put("/api/users/me/tier", authHandler.UpdateTier)

		r.Route("/api/sessions", func(r chi.Router) {
			r.Get("/", sessionHandler.ListSessions)
			r.Post("/", sessionHandler.CreateSession)
			r.Get("/current", sessionHandler.CurrentSession)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", sessionHandler.GetSession)
				r.Patch("/", sessionHandler.RenameSession)
				r.Delete("/", sessionHandler.DeleteSession)
				r.Post("/select", sessionHandler.SelectSession)
			})
		})

		r.With(deps.RateLimiter.MessageMiddleware()).Post("/api/messages", chatHandler.SendMessage)
		r.With(deps.RateLimiter.MessageMiddleware()).Post("/api/closure/messages", chatHandler.SendClosureMessage)
		r.Get("/api/usage", chatHandler.Usage)

		r.Route("/api/memory-questions", func(r chi.Router) {
			r.Get("/", memoryHandler.ListQuestions)
			r.Put("/{id}/answer", memoryHandler.AnswerQuestion)
		})

		r.Route("/api/memories", func(r chi.Router) {
			r.Get("/", memoryHandler.ListMemories)
			r.Post("/", memoryHandler.UploadMemory)
		})

		r.Get("/api/data/export", dataHandler.Export)
		r.Delete("/api/data", dataHandler.ClearData)
	})

	return r
}

// healthHandler はGET /healthのハンドラーを返す。
// バックエンドに到達できない場合は503を返す。
func healthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if checker != nil {
			if err := checker.Ping(r.Context()); err != nil {
				slog.Error("health check failed", slog.String("error", err.Error()))
				w.WriteHeader(http.StatusServiceUnavailable)
				w.Write([]byte(`{"status":"unavailable"}`))
				return
			}
		}
		w.Write([]byte(`{"status":"ok"}`))
	}
}
