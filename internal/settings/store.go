// Package settings はアプリ設定（テーマ・音声・読み上げ・効果音）を管理する。
package settings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/hitoshi/unsaid/internal/model"
	"github.com/hitoshi/unsaid/internal/repository"
)

// Store は unsaid-settings の唯一の書き込み主体。
type Store struct {
	mu   sync.Mutex
	repo repository.KVRepository
}

// NewStore はStoreの新しいインスタンスを生成する。
func NewStore(repo repository.KVRepository) *Store {
	return &Store{repo: repo}
}

// Get は現在の設定を返す。未保存の場合は既定値を返す。
func (s *Store) Get(ctx context.Context) (model.AppSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.load(ctx)
}

// Update はpatchの非nilフィールドのみを反映して保存し、反映後の設定を返す。
func (s *Store) Update(ctx context.Context, patch model.SettingsPatch) (model.AppSettings, error) {
	if patch.Theme != nil {
		switch *patch.Theme {
		case model.ThemeLight, model.ThemeDark:
		default:
			return model.AppSettings{}, model.NewInvalidSettingsError(fmt.Sprintf("theme=%q", *patch.Theme))
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.load(ctx)
	if err != nil {
		return model.AppSettings{}, err
	}

	if patch.Theme != nil {
		current.Theme = *patch.Theme
	}
	if patch.VoiceEnabled != nil {
		current.VoiceEnabled = *patch.VoiceEnabled
	}
	if patch.TTSEnabled != nil {
		current.TTSEnabled = *patch.TTSEnabled
	}
	if patch.SoundsEnabled != nil {
		current.SoundsEnabled = *patch.SoundsEnabled
	}

	if err := repository.SetJSON(ctx, s.repo, repository.KeySettings, current); err != nil {
		slog.Error("設定の保存に失敗しました", slog.String("error", err.Error()))
		return model.AppSettings{}, fmt.Errorf("設定の保存に失敗しました: %w", err)
	}
	return current, nil
}

// load は保存済みの設定を既定値の上に読み込む。保存値に無い項目は既定値になる。
func (s *Store) load(ctx context.Context) (model.AppSettings, error) {
	settings := model.DefaultSettings()
	if _, err := repository.GetJSON(ctx, s.repo, repository.KeySettings, &settings); err != nil {
		if errors.Is(err, repository.ErrCorrupted) {
			slog.Warn("設定が破損しているため既定値を使います", slog.String("error", err.Error()))
			return model.DefaultSettings(), nil
		}
		return model.AppSettings{}, fmt.Errorf("設定の読み込みに失敗しました: %w", err)
	}
	return settings, nil
}
