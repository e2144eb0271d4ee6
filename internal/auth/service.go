// Package auth はサインイン中ユーザーとプランを管理する。
//
// ユーザーは unsaid-user に1件だけ保存される。ログアウトはサインアウトに加えて
// 会話・思い出・利用状況を消去する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/hitoshi/unsaid/internal/model"
	"github.com/hitoshi/unsaid/internal/repository"
	"github.com/hitoshi/unsaid/internal/security"
)

// State は認証状態を表す。
type State int

const (
	// StateUnknown は保存値を読み込めていない状態。
	StateUnknown State = iota
	// StateAnonymous はユーザーが保存されていない状態。
	StateAnonymous
	// StateAuthenticated はユーザーが保存されている状態。
	StateAuthenticated
)

// String は状態名を返す。
func (s State) String() string {
	switch s {
	case StateAnonymous:
		return "anonymous"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// DataClearer はログアウト時に消去される利用者データの持ち主。
type DataClearer interface {
	Clear(ctx context.Context) error
}

// Service は unsaid-user の唯一の書き込み主体。
type Service struct {
	mu       sync.Mutex
	repo     repository.KVRepository
	provider IdentityProvider
	guard    security.OutboundGuard
	clearers []DataClearer
}

// NewService はServiceを生成する。
// clearersはログアウト時に順に消去される。
func NewService(
	repo repository.KVRepository,
	provider IdentityProvider,
	guard security.OutboundGuard,
	clearers ...DataClearer,
) *Service {
	return &Service{
		repo:     repo,
		provider: provider,
		guard:    guard,
		clearers: clearers,
	}
}

// Login はトークンをIdPで解決し、freeプランのユーザーとして保存する。
// IdPがトークンを拒否した場合は保存済みユーザーを消去し、UNAUTHORIZEDを返す。
func (s *Service) Login(ctx context.Context, token string) (*model.User, error) {
	profile, err := s.provider.Authenticate(ctx, token)
	if err != nil {
		if errors.Is(err, ErrInvalidToken) {
			if clearErr := s.clearUser(ctx); clearErr != nil {
				slog.Error("保存済みユーザーの消去に失敗しました", slog.String("error", clearErr.Error()))
			}
			return nil, model.NewUnauthorizedError()
		}
		return nil, fmt.Errorf("failed to authenticate: %w", err)
	}

	user := &model.User{
		ID:     profile.Subject,
		Email:  strings.TrimSpace(profile.Email),
		Name:   strings.TrimSpace(profile.Name),
		Avatar: profile.Picture,
		Tier:   model.TierFree,
	}
	if err := s.guard.ValidateAvatarURL(user.Avatar); err != nil {
		slog.Warn("アバターURLを破棄しました",
			slog.String("user_id", user.ID),
			slog.String("reason", err.Error()),
		)
		user.Avatar = ""
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.save(ctx, user); err != nil {
		return nil, err
	}

	slog.Info("user logged in", slog.String("user_id", user.ID))
	return user, nil
}

// Logout はユーザーを消去し、続けて登録されたデータを消去する。
// 設定と思い出の質問は残る。
func (s *Service) Logout(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := repository.DeleteKeys(ctx, s.repo, repository.KeyUser); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	for _, c := range s.clearers {
		if err := c.Clear(ctx); err != nil {
			return fmt.Errorf("failed to clear user data: %w", err)
		}
	}

	slog.Info("user logged out")
	return nil
}

// CurrentUser は保存済みのユーザーを返す。未ログインの場合はnil, nilを返す。
// 保存値が壊れている場合はそれを削除し、未ログインとして扱う。
func (s *Service) CurrentUser(ctx context.Context) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.load(ctx)
}

// State は現在の認証状態を返す。
func (s *Service) State(ctx context.Context) (State, error) {
	user, err := s.CurrentUser(ctx)
	if err != nil {
		return StateUnknown, err
	}
	if user == nil {
		return StateAnonymous, nil
	}
	return StateAuthenticated, nil
}

// UpdateTier はユーザーのプランを変更する。未ログインの場合は何もせずnil, nilを返す。
func (s *Service) UpdateTier(ctx context.Context, tier model.Tier) (*model.User, error) {
	if !tier.Valid() {
		return nil, model.NewInvalidTierError(string(tier))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	user, err := s.load(ctx)
	if err != nil || user == nil {
		return nil, err
	}
	user.Tier = tier
	if err := s.save(ctx, user); err != nil {
		return nil, err
	}

	slog.Info("tier updated", slog.String("user_id", user.ID), slog.String("tier", string(tier)))
	return user, nil
}

func (s *Service) clearUser(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return repository.DeleteKeys(ctx, s.repo, repository.KeyUser)
}

func (s *Service) load(ctx context.Context) (*model.User, error) {
	var user model.User
	found, err := repository.GetJSON(ctx, s.repo, repository.KeyUser, &user)
	if err != nil {
		if errors.Is(err, repository.ErrCorrupted) {
			slog.Warn("保存済みユーザーが破損しているため削除します", slog.String("error", err.Error()))
			if delErr := repository.DeleteKeys(ctx, s.repo, repository.KeyUser); delErr != nil {
				return nil, delErr
			}
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if !found {
		return nil, nil
	}
	// 旧データなどでプランが欠けている場合はguestとして扱う
	if !user.Tier.Valid() {
		user.Tier = model.TierGuest
	}
	return &user, nil
}

func (s *Service) save(ctx context.Context, user *model.User) error {
	if err := repository.SetJSON(ctx, s.repo, repository.KeyUser, user); err != nil {
		slog.Error("ユーザーの保存に失敗しました", slog.String("error", err.Error()))
		return fmt.Errorf("failed to save user: %w", err)
	}
	return nil
}
