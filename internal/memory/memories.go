package memory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/hitoshi/unsaid/internal/clock"
	"github.com/hitoshi/unsaid/internal/model"
	"github.com/hitoshi/unsaid/internal/repository"
)

// maxTags は1件の思い出に付けられるタグ数の上限。
const maxTags = 20

// MemoryStore は unsaid-memories の唯一の書き込み主体。
// 思い出は登録順に保存される。
type MemoryStore struct {
	mu        sync.Mutex
	repo      repository.KVRepository
	clock     clock.Clock
	ids       clock.IDGenerator
	sanitizer Sanitizer
}

// NewMemoryStore はMemoryStoreを生成する。
func NewMemoryStore(repo repository.KVRepository, clk clock.Clock, ids clock.IDGenerator, sanitizer Sanitizer) *MemoryStore {
	return &MemoryStore{repo: repo, clock: clk, ids: ids, sanitizer: sanitizer}
}

// List は思い出を登録順に返す。
func (s *MemoryStore) List(ctx context.Context) ([]model.Memory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.load(ctx)
}

// Upload は思い出を末尾に追加する。タイトルと本文は必須。
// タグは空白を除去し、空と重複を取り除く。
func (s *MemoryStore) Upload(ctx context.Context, title, content string, tags []string) (*model.Memory, error) {
	title = s.sanitizer.Clean(title)
	content = s.sanitizer.Clean(content)
	if title == "" {
		return nil, model.NewInvalidMemoryError("title is empty")
	}
	if content == "" {
		return nil, model.NewInvalidMemoryError("content is empty")
	}
	cleanTags := s.normalizeTags(tags)
	if len(cleanTags) > maxTags {
		return nil, model.NewInvalidMemoryError(fmt.Sprintf("too many tags (max %d)", maxTags))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	memories, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	m := model.Memory{
		ID:        s.ids.New(),
		Title:     title,
		Content:   content,
		CreatedAt: s.clock.Now(),
		Tags:      cleanTags,
	}
	memories = append(memories, m)

	if err := repository.SetJSON(ctx, s.repo, repository.KeyMemories, memories); err != nil {
		slog.Error("思い出の保存に失敗しました", slog.String("error", err.Error()))
		return nil, fmt.Errorf("思い出の保存に失敗しました: %w", err)
	}
	return &m, nil
}

// Clear は全ての思い出を削除する。
func (s *MemoryStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return repository.DeleteKeys(ctx, s.repo, repository.KeyMemories)
}

func (s *MemoryStore) normalizeTags(tags []string) []string {
	out := []string{}
	seen := make(map[string]bool, len(tags))
	for _, tag := range tags {
		tag = s.sanitizer.Clean(tag)
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
	}
	return out
}

func (s *MemoryStore) load(ctx context.Context) ([]model.Memory, error) {
	memories := []model.Memory{}
	if _, err := repository.GetJSON(ctx, s.repo, repository.KeyMemories, &memories); err != nil {
		if errors.Is(err, repository.ErrCorrupted) {
			slog.Warn("思い出が破損しているため空として扱います", slog.String("error", err.Error()))
			return []model.Memory{}, nil
		}
		return nil, fmt.Errorf("思い出の読み込みに失敗しました: %w", err)
	}
	return memories, nil
}
