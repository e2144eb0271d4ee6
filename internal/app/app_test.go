package app

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/unsaid/internal/chat"
	"github.com/hitoshi/unsaid/internal/config"
	"github.com/hitoshi/unsaid/internal/middleware"
	"github.com/hitoshi/unsaid/internal/model"
	"github.com/hitoshi/unsaid/internal/reply"
	"github.com/hitoshi/unsaid/internal/repository"
	"github.com/hitoshi/unsaid/internal/testutil"
)

func testConfig() *config.Config {
	return &config.Config{
		StorageBackend:    config.BackendMemory,
		ServerPort:        "0",
		CORSAllowedOrigin: "http://localhost:3000",
		AuthProvider:      config.AuthProviderMock,
		Responder:         config.ResponderTemplate,
		ReplyTimeout:      time.Second,
		RateLimitGeneral:  120,
		RateLimitMessages: 20,
		FreeLimitTherapy:  3,
		FreeLimitUnsaid:   1,
		FreeLimitClosure:  1,
		Location:          time.UTC,
	}
}

func TestMaskDatabaseURL(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"認証情報あり", "postgres://user:secret@db:5432/unsaid?sslmode=disable", "postgres://***@db:5432/unsaid"},
		{"認証情報なし", "postgres://db:5432/unsaid", "postgres://db:5432/unsaid"},
		{"解釈できない", "not a url", "***"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := maskDatabaseURL(tt.in)
			if got != tt.want {
				t.Errorf("maskDatabaseURL(%q) = %q, want %q", tt.in, got, tt.want)
			}
			if strings.Contains(got, "secret") {
				t.Errorf("masked URL leaks password: %q", got)
			}
		})
	}
}

func TestNewResponder(t *testing.T) {
	t.Run("template", func(t *testing.T) {
		r, err := newResponder(testConfig())
		if err != nil {
			t.Fatalf("newResponder() error = %v", err)
		}
		if _, ok := r.(*reply.TemplateResponder); !ok {
			t.Errorf("responder = %T, want *reply.TemplateResponder", r)
		}
	})

	t.Run("openai", func(t *testing.T) {
		cfg := testConfig()
		cfg.Responder = config.ResponderOpenAI
		cfg.OpenAIAPIKey = "sk-test"
		r, err := newResponder(cfg)
		if err != nil {
			t.Fatalf("newResponder() error = %v", err)
		}
		if _, ok := r.(*reply.OpenAIResponder); !ok {
			t.Errorf("responder = %T, want *reply.OpenAIResponder", r)
		}
	})

	t.Run("存在しないカタログ", func(t *testing.T) {
		cfg := testConfig()
		cfg.ReplyCatalogPath = filepath.Join(t.TempDir(), "missing.toml")
		if _, err := newResponder(cfg); err == nil {
			t.Error("expected error for missing catalog file")
		}
	})
}

func TestAssemble_WiresChatFlow(t *testing.T) {
	cfg := testConfig()
	cfg.ReplySimulateLatency = false

	ws, err := assemble(cfg, repository.NewMemoryKVRepo(), testutil.FixedClock(), testutil.NewStubIDGenerator())
	if err != nil {
		t.Fatalf("assemble() error = %v", err)
	}
	ctx := context.Background()

	if _, err := ws.Auth.Login(ctx, "token"); err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	res, err := ws.Chat.Send(ctx, chat.SendRequest{Content: "hello", Mode: model.ModeTherapy})
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if res.Reply == nil {
		t.Error("expected a reply")
	}

	// 送信がメトリクスに記録される
	families, err := ws.Registry.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	found := false
	for _, f := range families {
		if f.GetName() == "unsaid_messages_sent_total" {
			found = true
		}
	}
	if !found {
		t.Error("unsaid_messages_sent_total should be registered and observed")
	}

	// ログアウトで会話が消える
	if err := ws.Auth.Logout(ctx); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}
	sessions, err := ws.Sessions.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(sessions) != 0 {
		t.Errorf("sessions after logout = %d, want 0", len(sessions))
	}
}

func TestWorkspace_RouterServesHealthAndMetrics(t *testing.T) {
	ws, err := Open(testConfig())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer ws.Close()

	rl := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())
	defer rl.Stop()
	srv := httptest.NewServer(ws.Router(rl))
	defer srv.Close()

	if err := checkHealth(srv.URL + "/health"); err != nil {
		t.Errorf("checkHealth() error = %v", err)
	}

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("metrics status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
}

func TestOpen_SQLiteAppliesMigrations(t *testing.T) {
	cfg := testConfig()
	cfg.StorageBackend = config.BackendSQLite
	cfg.SQLitePath = filepath.Join(t.TempDir(), "unsaid.db")

	ws, err := Open(cfg)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	ctx := context.Background()
	if _, err := ws.Settings.Update(ctx, model.SettingsPatch{}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if err := ws.Ping(ctx); err != nil {
		t.Errorf("Ping() error = %v", err)
	}
	ws.Close()

	if _, err := os.Stat(cfg.SQLitePath); err != nil {
		t.Errorf("sqlite file should exist: %v", err)
	}

	// 再オープンしてもマイグレーションは冪等
	ws, err = Open(cfg)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	ws.Close()
}

func TestRunMigrate_MemoryIsNoop(t *testing.T) {
	if err := RunMigrate(testConfig()); err != nil {
		t.Errorf("RunMigrate() error = %v", err)
	}
}

func TestRunServe_StopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- RunServe(ctx, testConfig()) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("RunServe() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("RunServe did not stop")
	}
}

func TestRunHealthcheck_NoServer(t *testing.T) {
	if err := RunHealthcheck("1"); err == nil {
		t.Error("expected error when nothing listens")
	}
}

func TestInit_InvalidConfig(t *testing.T) {
	t.Setenv("STORAGE_BACKEND", "redis")
	var buf bytes.Buffer
	if _, err := Init(&buf); err == nil {
		t.Error("expected error for invalid config")
	}
}
