package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// 永続化バックエンド
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// 認証プロバイダー
const (
	AuthProviderMock   = "mock"
	AuthProviderGoogle = "google"
)

// 応答生成方式
const (
	ResponderTemplate = "template"
	ResponderOpenAI   = "openai"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Storage
	StorageBackend string
	SQLitePath     string
	DatabaseURL    string

	// Server
	ServerPort string
	BaseURL    string

	// Cookie
	CookieSecure bool
	CookieDomain string

	// CORS
	CORSAllowedOrigin string

	// Auth
	AuthProvider      string
	GoogleClientID    string
	GoogleUserInfoURL string

	// Reply
	Responder            string
	OpenAIAPIKey         string
	OpenAIBaseURL        string
	OpenAIModel          string
	ReplyCatalogPath     string
	ReplySimulateLatency bool
	ReplyTimeout         time.Duration

	// Rate Limit
	RateLimitGeneral  int
	RateLimitMessages int

	// Usage
	FreeLimitTherapy int
	FreeLimitUnsaid  int
	FreeLimitClosure int
	Location         *time.Location

	// Logging
	LogLevel string
}

// LoadDotEnv はpathの.envファイルを環境変数に読み込む。
// 既に設定されている環境変数は上書きしない。ファイルが無い場合は何もしない。
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// Load は環境変数からConfigを読み込む。
// 選択したバックエンドや方式に必要な環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.StorageBackend = strings.ToLower(getEnvString("STORAGE_BACKEND", BackendSQLite))
	cfg.SQLitePath = getEnvString("SQLITE_PATH", "unsaid.db")
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")

	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.BaseURL = getEnvString("BASE_URL", "http://localhost:8080")
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	cfg.AuthProvider = strings.ToLower(getEnvString("AUTH_PROVIDER", AuthProviderMock))
	cfg.GoogleClientID = os.Getenv("GOOGLE_CLIENT_ID")
	cfg.GoogleUserInfoURL = os.Getenv("GOOGLE_USERINFO_URL")

	cfg.Responder = strings.ToLower(getEnvString("RESPONDER", ResponderTemplate))
	cfg.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	cfg.OpenAIBaseURL = os.Getenv("OPENAI_BASE_URL")
	cfg.OpenAIModel = os.Getenv("OPENAI_MODEL")
	cfg.ReplyCatalogPath = os.Getenv("REPLY_CATALOG_PATH")
	cfg.ReplySimulateLatency = getEnvBool("REPLY_SIMULATE_LATENCY", true)
	cfg.ReplyTimeout = getEnvDuration("REPLY_TIMEOUT", 30*time.Second)

	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitMessages = getEnvInt("RATE_LIMIT_MESSAGES", 20)

	cfg.FreeLimitTherapy = getEnvInt("FREE_LIMIT_THERAPY", 3)
	cfg.FreeLimitUnsaid = getEnvInt("FREE_LIMIT_UNSAID", 1)
	cfg.FreeLimitClosure = getEnvInt("FREE_LIMIT_CLOSURE", 1)

	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")

	var problems []string

	switch cfg.StorageBackend {
	case BackendSQLite, BackendMemory:
	case BackendPostgres:
		if cfg.DatabaseURL == "" {
			problems = append(problems, "DATABASE_URL is required when STORAGE_BACKEND=postgres")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown STORAGE_BACKEND %q", cfg.StorageBackend))
	}

	switch cfg.AuthProvider {
	case AuthProviderMock, AuthProviderGoogle:
	default:
		problems = append(problems, fmt.Sprintf("unknown AUTH_PROVIDER %q", cfg.AuthProvider))
	}

	switch cfg.Responder {
	case ResponderTemplate:
	case ResponderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			problems = append(problems, "OPENAI_API_KEY is required when RESPONDER=openai")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown RESPONDER %q", cfg.Responder))
	}

	// 負の値はusage.Unlimitedと区別できないため受け付けない
	for name, v := range map[string]int{
		"FREE_LIMIT_THERAPY": cfg.FreeLimitTherapy,
		"FREE_LIMIT_UNSAID":  cfg.FreeLimitUnsaid,
		"FREE_LIMIT_CLOSURE": cfg.FreeLimitClosure,
	} {
		if v < 0 {
			problems = append(problems, fmt.Sprintf("%s must not be negative, got %d", name, v))
		}
	}

	loc, err := loadLocation(os.Getenv("TIMEZONE"))
	if err != nil {
		problems = append(problems, err.Error())
	}
	cfg.Location = loc

	if len(problems) > 0 {
		return nil, fmt.Errorf("invalid configuration: %v", problems)
	}
	return cfg, nil
}

// loadLocation はTIMEZONEの値を解釈する。空の場合はtime.Localを返す。
func loadLocation(name string) (*time.Location, error) {
	if name == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %v", name, err)
	}
	return loc, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
