// Package userdata は利用者データの書き出しと一括消去を提供する。
package userdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"filippo.io/age"

	"github.com/hitoshi/unsaid/internal/clock"
	"github.com/hitoshi/unsaid/internal/memory"
	"github.com/hitoshi/unsaid/internal/model"
	"github.com/hitoshi/unsaid/internal/session"
	"github.com/hitoshi/unsaid/internal/usage"
)

// ErrInvalidRecipient はageの受信者公開鍵を解釈できないことを表す。
var ErrInvalidRecipient = errors.New("invalid age recipient")

// UserSource はサインイン中のユーザーを返す。未ログインならnil, nilを返す。
type UserSource interface {
	CurrentUser(ctx context.Context) (*model.User, error)
}

// Payload は書き出すデータの形式。
type Payload struct {
	User       *model.User     `json:"user"`
	Sessions   []model.Session `json:"sessions"`
	ExportDate time.Time       `json:"exportDate"`
}

// Service はデータの書き出しと消去を扱うサービス層。
type Service struct {
	users    UserSource
	sessions *session.Store
	memories *memory.MemoryStore
	tracker  *usage.Tracker
	clock    clock.Clock
}

// NewService はServiceを生成する。
func NewService(
	users UserSource,
	sessions *session.Store,
	memories *memory.MemoryStore,
	tracker *usage.Tracker,
	clk clock.Clock,
) *Service {
	return &Service{
		users:    users,
		sessions: sessions,
		memories: memories,
		tracker:  tracker,
		clock:    clk,
	}
}

// Export はユーザーと全セッションを書き出し用にまとめる。
func (s *Service) Export(ctx context.Context) (*Payload, error) {
	user, err := s.users.CurrentUser(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	sessions, err := s.sessions.List(ctx)
	if err != nil {
		return nil, err
	}
	return &Payload{
		User:       user,
		Sessions:   sessions,
		ExportDate: s.clock.Now(),
	}, nil
}

// WriteJSON は書き出しデータを整形済みJSONとしてwに書き込む。
func (s *Service) WriteJSON(ctx context.Context, w io.Writer) error {
	payload, err := s.Export(ctx)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(payload); err != nil {
		return fmt.Errorf("failed to encode export: %w", err)
	}
	return nil
}

// WriteEncrypted は書き出しデータをageでX25519受信者向けに暗号化してwに書き込む。
// recipientは "age1..." 形式の公開鍵。
func (s *Service) WriteEncrypted(ctx context.Context, w io.Writer, recipient string) error {
	r, err := age.ParseX25519Recipient(strings.TrimSpace(recipient))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRecipient, err)
	}

	encWriter, err := age.Encrypt(w, r)
	if err != nil {
		return fmt.Errorf("creating encrypted writer: %w", err)
	}
	if err := s.WriteJSON(ctx, encWriter); err != nil {
		return err
	}
	if err := encWriter.Close(); err != nil {
		return fmt.Errorf("finalizing encryption: %w", err)
	}
	return nil
}

// Clear はセッション・選択中セッション・思い出を削除し、利用回数をリセットする。
// ユーザー・設定・思い出の質問は残る。
func (s *Service) Clear(ctx context.Context) error {
	if err := s.sessions.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear sessions: %w", err)
	}
	if err := s.memories.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear memories: %w", err)
	}
	if err := s.tracker.Reset(ctx); err != nil {
		return fmt.Errorf("failed to reset usage: %w", err)
	}
	slog.Info("user data cleared")
	return nil
}
