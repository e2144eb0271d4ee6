// Package app はアプリケーション全体の依存関係を組み立て、
// サーバー・マイグレーション・ヘルスチェックの各モードを起動する。
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/unsaid/internal/auth"
	"github.com/hitoshi/unsaid/internal/chat"
	"github.com/hitoshi/unsaid/internal/clock"
	"github.com/hitoshi/unsaid/internal/config"
	"github.com/hitoshi/unsaid/internal/database"
	"github.com/hitoshi/unsaid/internal/handler"
	"github.com/hitoshi/unsaid/internal/logger"
	"github.com/hitoshi/unsaid/internal/memory"
	"github.com/hitoshi/unsaid/internal/metrics"
	"github.com/hitoshi/unsaid/internal/middleware"
	"github.com/hitoshi/unsaid/internal/reply"
	"github.com/hitoshi/unsaid/internal/repository"
	"github.com/hitoshi/unsaid/internal/security"
	"github.com/hitoshi/unsaid/internal/session"
	"github.com/hitoshi/unsaid/internal/settings"
	"github.com/hitoshi/unsaid/internal/usage"
	"github.com/hitoshi/unsaid/internal/userdata"
)

// identityTimeout はGoogleへの問い合わせのタイムアウト。
const identityTimeout = 10 * time.Second

// Init はアプリケーションの初期化を行う。
// .envと環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 設定読み込み前にログを使えるようにする
	logger.SetupDefault(w, slog.LevelInfo)

	if err := config.LoadDotEnv(".env"); err != nil {
		return nil, err
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.SetupDefault(w, logger.ParseLevel(cfg.LogLevel))
	return cfg, nil
}

// Workspace は1つのデータストアに対して組み立てた全コンポーネントを保持する。
// HTTPサーバーとCLIの両方が同じWorkspaceを使う。
type Workspace struct {
	Config   *config.Config
	Clock    clock.Clock
	Repo     repository.KVRepository
	Registry *prometheus.Registry
	Metrics  *metrics.Collector

	Auth      *auth.Service
	Sessions  *session.Store
	Tracker   *usage.Tracker
	Policy    usage.Policy
	Settings  *settings.Store
	Questions *memory.QuestionStore
	Memories  *memory.MemoryStore
	Chat      *chat.Service
	Data      *userdata.Service

	db *sql.DB
}

// Open は設定に従って永続化バックエンドを開き、全コンポーネントを組み立てる。
// 呼び出し側はCloseすること。
func Open(cfg *config.Config) (*Workspace, error) {
	repo, db, err := openBackend(cfg)
	if err != nil {
		return nil, err
	}

	ws, err := assemble(cfg, repo, clock.RealClock{}, clock.UUIDGenerator{})
	if err != nil {
		if db != nil {
			db.Close()
		}
		return nil, err
	}
	ws.db = db
	return ws, nil
}

// assemble はリポジトリの上にストアとサービスを組み立てる。
func assemble(cfg *config.Config, repo repository.KVRepository, clk clock.Clock, ids clock.IDGenerator) (*Workspace, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(registry)

	guard := security.NewOutboundGuard()
	sanitizer := security.NewTextSanitizer()

	provider, err := newIdentityProvider(cfg, guard)
	if err != nil {
		return nil, err
	}
	responder, err := newResponder(cfg)
	if err != nil {
		return nil, err
	}

	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}

	sessions := session.NewStore(repo, clk, ids)
	tracker := usage.NewTracker(repo, clk, loc)
	memories := memory.NewMemoryStore(repo, clk, ids, sanitizer)
	policy := usage.NewPolicy(usage.Limits{
		Therapy: cfg.FreeLimitTherapy,
		Unsaid:  cfg.FreeLimitUnsaid,
		Closure: cfg.FreeLimitClosure,
	})

	// ログアウト時は会話・利用状況・思い出を消去する
	authService := auth.NewService(repo, provider, guard, sessions, tracker, memories)

	chatService := chat.NewService(
		authService, sessions, tracker, policy, responder, sanitizer, collector, clk,
		chat.Config{ReplyTimeout: cfg.ReplyTimeout},
	)

	return &Workspace{
		Config:    cfg,
		Clock:     clk,
		Repo:      repo,
		Registry:  registry,
		Metrics:   collector,
		Auth:      authService,
		Sessions:  sessions,
		Tracker:   tracker,
		Policy:    policy,
		Settings:  settings.NewStore(repo),
		Questions: memory.NewQuestionStore(repo, clk, sanitizer),
		Memories:  memories,
		Chat:      chatService,
		Data:      userdata.NewService(authService, sessions, memories, tracker, clk),
	}, nil
}

// Close はバックエンドの接続を閉じる。
func (ws *Workspace) Close() error {
	if ws.db == nil {
		return nil
	}
	return ws.db.Close()
}

// Ping はバックエンドの疎通を確認する。インメモリの場合は常に成功する。
func (ws *Workspace) Ping(ctx context.Context) error {
	if ws.db == nil {
		return nil
	}
	return ws.db.PingContext(ctx)
}

// Router はWorkspaceの全サービスをHTTPルーターに接続する。
func (ws *Workspace) Router(rl *middleware.RateLimiter) http.Handler {
	cfg := ws.Config
	return handler.NewRouter(&handler.RouterDeps{
		Logger:            slog.Default(),
		StatusObserver:    ws.Metrics,
		UserFinder:        ws.Auth,
		RateLimiter:       rl,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		CSRF: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},
		Health:          ws,
		Metrics:         metrics.Handler(ws.Registry),
		AuthService:     ws.Auth,
		SessionService:  ws.Sessions,
		ChatService:     ws.Chat,
		SettingsService: ws.Settings,
		QuestionService: ws.Questions,
		MemoryService:   ws.Memories,
		DataService:     ws.Data,
		Clock:           ws.Clock,
	})
}

// openBackend は設定されたバックエンドのKVリポジトリを開く。
// SQLiteは開くたびにマイグレーションを適用する。PostgreSQLはmigrateコマンドで適用する。
func openBackend(cfg *config.Config) (repository.KVRepository, *sql.DB, error) {
	switch cfg.StorageBackend {
	case config.BackendMemory:
		slog.Warn("using in-memory storage; data is lost on exit")
		return repository.NewMemoryKVRepo(), nil, nil

	case config.BackendPostgres:
		db, err := database.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		if err := db.Ping(); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		slog.Info("database connection established",
			slog.String("backend", cfg.StorageBackend),
			slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
		)
		return repository.NewPostgresKVRepo(db), db, nil

	case config.BackendSQLite:
		db, err := database.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		if err := database.RunSQLiteMigrations(db); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("migration failed: %w", err)
		}
		slog.Info("database connection established",
			slog.String("backend", cfg.StorageBackend),
			slog.String("path", cfg.SQLitePath),
		)
		return repository.NewSQLiteKVRepo(db), db, nil

	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}

// newIdentityProvider は設定された認証プロバイダーを返す。
// GoogleへのアクセスはSSRF対策済みのクライアントで行う。
func newIdentityProvider(cfg *config.Config, guard security.OutboundGuard) (auth.IdentityProvider, error) {
	switch cfg.AuthProvider {
	case config.AuthProviderMock:
		return auth.NewMockProvider(), nil
	case config.AuthProviderGoogle:
		return auth.NewGoogleProvider(auth.GoogleConfig{
			ClientID:    cfg.GoogleClientID,
			UserInfoURL: cfg.GoogleUserInfoURL,
		}, guard.NewSafeClient(identityTimeout)), nil
	default:
		return nil, fmt.Errorf("unknown auth provider %q", cfg.AuthProvider)
	}
}

// newResponder は設定された応答生成方式を返す。
func newResponder(cfg *config.Config) (reply.Responder, error) {
	switch cfg.Responder {
	case config.ResponderTemplate:
		catalog, err := reply.LoadCatalogFile(cfg.ReplyCatalogPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load reply catalog: %w", err)
		}
		var opts []reply.TemplateOption
		if !cfg.ReplySimulateLatency {
			opts = append(opts, reply.WithoutLatency())
		}
		return reply.NewTemplateResponder(catalog, opts...), nil
	case config.ResponderOpenAI:
		return reply.NewOpenAIResponder(reply.OpenAIConfig{
			APIKey:  cfg.OpenAIAPIKey,
			BaseURL: cfg.OpenAIBaseURL,
			Model:   cfg.OpenAIModel,
			Timeout: cfg.ReplyTimeout,
		})
	default:
		return nil, fmt.Errorf("unknown responder %q", cfg.Responder)
	}
}

// RunServe はAPIサーバーモードで起動する。
// ctxがキャンセルされるとグレースフルシャットダウンを行う。
func RunServe(ctx context.Context, cfg *config.Config) error {
	ws, err := Open(cfg)
	if err != nil {
		return err
	}
	defer ws.Close()

	rl := middleware.NewRateLimiter(middleware.PerMinuteConfig(cfg.RateLimitGeneral, cfg.RateLimitMessages))
	defer rl.Stop()

	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           ws.Router(rl),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		// 応答生成の上限時間より長くする
		WriteTimeout: cfg.ReplyTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
			slog.String("base_url", cfg.BaseURL),
			slog.String("storage", cfg.StorageBackend),
			slog.String("auth_provider", cfg.AuthProvider),
			slog.String("responder", cfg.Responder),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server listen error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down API server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// RunMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func RunMigrate(cfg *config.Config) error {
	switch cfg.StorageBackend {
	case config.BackendPostgres:
		slog.Info("running database migrations",
			slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
		)
		if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	case config.BackendSQLite:
		slog.Info("running database migrations", slog.String("path", cfg.SQLitePath))
		db, err := database.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := database.RunSQLiteMigrations(db); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	default:
		slog.Info("nothing to migrate", slog.String("backend", cfg.StorageBackend))
		return nil
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// RunHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func RunHealthcheck(port string) error {
	return checkHealth(fmt.Sprintf("http://localhost:%s/health", port))
}

func checkHealth(url string) error {
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}
	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	if u.User != nil {
		return fmt.Sprintf("%s://***@%s%s", u.Scheme, u.Host, u.Path)
	}
	return fmt.Sprintf("%s://%s%s", u.Scheme, u.Host, u.Path)
}
