// Package session は会話セッションの一覧と選択中セッションを管理する。
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/hitoshi/unsaid/internal/clock"
	"github.com/hitoshi/unsaid/internal/model"
	"github.com/hitoshi/unsaid/internal/repository"
)

// Store はセッションの唯一の書き込み主体。
// 一覧は新しい順（先頭が最新）で unsaid-sessions に保存し、
// 選択中セッションは unsaid-current-session にスナップショットとして保存する。
type Store struct {
	mu    sync.Mutex
	repo  repository.KVRepository
	clock clock.Clock
	ids   clock.IDGenerator
}

// NewStore はStoreの新しいインスタンスを生成する。
func NewStore(repo repository.KVRepository, clk clock.Clock, ids clock.IDGenerator) *Store {
	return &Store{repo: repo, clock: clk, ids: ids}
}

// List はセッション一覧を新しい順で返す。
func (s *Store) List(ctx context.Context) ([]model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessions, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.Session, len(sessions))
	for i := range sessions {
		out[i] = *sessions[i].Clone()
	}
	return out, nil
}

// Get は指定IDのセッションを返す。
func (s *Store) Get(ctx context.Context, id string) (*model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessions, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	i := indexOf(sessions, id)
	if i < 0 {
		return nil, model.NewSessionNotFoundError(id)
	}
	return sessions[i].Clone(), nil
}

// Current は選択中のセッションを返す。選択されていない場合はnil, nilを返す。
func (s *Store) Current(ctx context.Context) (*model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.loadCurrent(ctx)
	if err != nil || current == nil {
		return nil, err
	}

	sessions, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	// 一覧側が正。スナップショットは一覧に無い場合のみ使う
	if i := indexOf(sessions, current.ID); i >= 0 {
		return sessions[i].Clone(), nil
	}
	return current, nil
}

// Create は空のセッションを作成して一覧の先頭に追加し、選択中にする。
// titleが空の場合は "<Mode> Session" を使う。
func (s *Store) Create(ctx context.Context, mode model.Mode, title string) (*model.Session, error) {
	if !mode.Valid() {
		return nil, model.NewInvalidModeError(string(mode))
	}
	title = strings.TrimSpace(title)
	if title == "" {
		title = mode.DefaultSessionTitle()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sessions, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	sess := model.Session{
		ID:        s.ids.New(),
		Title:     title,
		Mode:      mode,
		Messages:  []model.Message{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	sessions = append([]model.Session{sess}, sessions...)

	if err := s.save(ctx, sessions); err != nil {
		return nil, err
	}
	if err := s.saveCurrent(ctx, &sess); err != nil {
		return nil, err
	}

	slog.Debug("セッションを作成しました",
		slog.String("session_id", sess.ID),
		slog.String("mode", string(mode)),
	)
	return sess.Clone(), nil
}

// Select は指定IDのセッションを選択中にする。
func (s *Store) Select(ctx context.Context, id string) (*model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessions, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	i := indexOf(sessions, id)
	if i < 0 {
		return nil, model.NewSessionNotFoundError(id)
	}
	if err := s.saveCurrent(ctx, &sessions[i]); err != nil {
		return nil, err
	}
	return sessions[i].Clone(), nil
}

// AppendMessage はセッション末尾にメッセージを追加する。
// sessionIDが空の場合は選択中セッションに追加し、選択中セッションが無ければ
// NO_ACTIVE_SESSION エラーを返す。
func (s *Store) AppendMessage(ctx context.Context, sessionID, content string, sender model.Sender) (*model.Message, error) {
	if !sender.Valid() {
		return nil, model.NewInvalidSenderError(string(sender))
	}
	if strings.TrimSpace(content) == "" {
		return nil, model.NewEmptyMessageError()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.loadCurrent(ctx)
	if err != nil {
		return nil, err
	}
	if sessionID == "" {
		if current == nil {
			return nil, model.NewNoActiveSessionError()
		}
		sessionID = current.ID
	}

	sessions, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	i := indexOf(sessions, sessionID)
	if i < 0 {
		return nil, model.NewSessionNotFoundError(sessionID)
	}

	now := s.clock.Now()
	msg := model.Message{
		ID:        s.ids.New(),
		Content:   content,
		Sender:    sender,
		Timestamp: now,
	}
	sessions[i].Messages = append(sessions[i].Messages, msg)
	sessions[i].UpdatedAt = now

	if err := s.save(ctx, sessions); err != nil {
		return nil, err
	}
	if current != nil && current.ID == sessionID {
		if err := s.saveCurrent(ctx, &sessions[i]); err != nil {
			return nil, err
		}
	}
	return &msg, nil
}

// Delete は指定IDのセッションを削除する。選択中であれば選択も解除する。
// 存在しないIDの削除は何もしない。
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessions, err := s.load(ctx)
	if err != nil {
		return err
	}
	if i := indexOf(sessions, id); i >= 0 {
		sessions = append(sessions[:i], sessions[i+1:]...)
		if err := s.save(ctx, sessions); err != nil {
			return err
		}
	}

	current, err := s.loadCurrent(ctx)
	if err != nil {
		return err
	}
	if current != nil && current.ID == id {
		if err := repository.DeleteKeys(ctx, s.repo, repository.KeyCurrentSession); err != nil {
			return err
		}
	}
	return nil
}

// Rename はセッションのタイトルを変更する。
// 前後の空白を除いたタイトルが空の場合は INVALID_TITLE を返し、元のタイトルを保つ。
func (s *Store) Rename(ctx context.Context, id, title string) (*model.Session, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, model.NewInvalidTitleError()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sessions, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	i := indexOf(sessions, id)
	if i < 0 {
		return nil, model.NewSessionNotFoundError(id)
	}
	sessions[i].Title = title
	sessions[i].UpdatedAt = s.clock.Now()

	if err := s.save(ctx, sessions); err != nil {
		return nil, err
	}

	current, err := s.loadCurrent(ctx)
	if err != nil {
		return nil, err
	}
	if current != nil && current.ID == id {
		if err := s.saveCurrent(ctx, &sessions[i]); err != nil {
			return nil, err
		}
	}
	return sessions[i].Clone(), nil
}

// Clear は全セッションと選択中セッションを削除する。
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return repository.DeleteKeys(ctx, s.repo, repository.KeySessions, repository.KeyCurrentSession)
}

// load は一覧を読み込む。壊れた値は空の一覧として扱う。
func (s *Store) load(ctx context.Context) ([]model.Session, error) {
	var sessions []model.Session
	if _, err := repository.GetJSON(ctx, s.repo, repository.KeySessions, &sessions); err != nil {
		if errors.Is(err, repository.ErrCorrupted) {
			slog.Warn("セッション一覧が破損しているため空として扱います", slog.String("error", err.Error()))
			return []model.Session{}, nil
		}
		return nil, fmt.Errorf("セッション一覧の読み込みに失敗しました: %w", err)
	}
	for i := range sessions {
		if sessions[i].Messages == nil {
			sessions[i].Messages = []model.Message{}
		}
	}
	return sessions, nil
}

func (s *Store) save(ctx context.Context, sessions []model.Session) error {
	if sessions == nil {
		sessions = []model.Session{}
	}
	if err := repository.SetJSON(ctx, s.repo, repository.KeySessions, sessions); err != nil {
		slog.Error("セッション一覧の保存に失敗しました", slog.String("error", err.Error()))
		return fmt.Errorf("セッション一覧の保存に失敗しました: %w", err)
	}
	return nil
}

func (s *Store) loadCurrent(ctx context.Context) (*model.Session, error) {
	var current model.Session
	found, err := repository.GetJSON(ctx, s.repo, repository.KeyCurrentSession, &current)
	if err != nil {
		if errors.Is(err, repository.ErrCorrupted) {
			slog.Warn("選択中セッションが破損しているため未選択として扱います", slog.String("error", err.Error()))
			return nil, nil
		}
		return nil, fmt.Errorf("選択中セッションの読み込みに失敗しました: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &current, nil
}

func (s *Store) saveCurrent(ctx context.Context, sess *model.Session) error {
	if err := repository.SetJSON(ctx, s.repo, repository.KeyCurrentSession, sess); err != nil {
		slog.Error("選択中セッションの保存に失敗しました", slog.String("error", err.Error()))
		return fmt.Errorf("選択中セッションの保存に失敗しました: %w", err)
	}
	return nil
}

func indexOf(sessions []model.Session, id string) int {
	for i := range sessions {
		if sessions[i].ID == id {
			return i
		}
	}
	return -1
}
