// Package memory は思い出の質問への回答と、アップロードされた思い出を管理する。
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

// seedQuestions は初回に投入される8つの質問。
var seedQuestions = []string{
	"What is your favorite memory with this person?",
	"What would you want to tell them if they were here right now?",
	"What did they teach you about life?",
	"What do you miss most about them?",
	"How did they make you feel loved?",
	"What was their laugh like?",
	"What advice would they give you today?",
	"What are you grateful for about your time together?",
}

// SeedQuestions は初期状態の質問一覧を返す。IDは "1" から順に振られる。
func SeedQuestions() []model.MemoryQuestion {
	out := make([]model.MemoryQuestion, len(seedQuestions))
	for i, q := range seedQuestions {
		out[i] = model.MemoryQuestion{ID: fmt.Sprintf("%d", i+1), Question: q}
	}
	return out
}

// Progress は回答の進捗を表す。
type Progress struct {
	Answered int `json:"answered"`
	Total    int `json:"total"`
}

// QuestionStore は unsaid-memory-questions の唯一の書き込み主体。
// 質問は未保存なら初回読み込み時に投入される。回答はシステムから消去されない。
type QuestionStore struct {
	mu        sync.Mutex
	repo      repository.KVRepository
	clock     clock.Clock
	sanitizer Sanitizer
}

// Sanitizer はユーザー入力からマークアップを取り除く。
type Sanitizer interface {
	Clean(text string) string
}

// NewQuestionStore はQuestionStoreを生成する。
func NewQuestionStore(repo repository.KVRepository, clk clock.Clock, sanitizer Sanitizer) *QuestionStore {
	return &QuestionStore{repo: repo, clock: clk, sanitizer: sanitizer}
}

// List は質問一覧を返す。
func (s *QuestionStore) List(ctx context.Context) ([]model.MemoryQuestion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.load(ctx)
}

// Answer は質問に回答する。回答は前後の空白を除いて保存し、空の場合は EMPTY_ANSWER を返す。
func (s *QuestionStore) Answer(ctx context.Context, id, answer string) (*model.MemoryQuestion, error) {
	answer = s.sanitizer.Clean(answer)
	if answer == "" {
		return nil, model.NewEmptyAnswerError()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	questions, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	i := indexOfQuestion(questions, id)
	if i < 0 {
		return nil, model.NewQuestionNotFoundError(id)
	}

	now := s.clock.Now()
	questions[i].Answer = answer
	questions[i].AnsweredAt = &now

	if err := s.save(ctx, questions); err != nil {
		return nil, err
	}
	q := questions[i]
	return &q, nil
}

// Progress は回答済みの件数と全件数を返す。
func (s *QuestionStore) Progress(ctx context.Context) (Progress, error) {
	questions, err := s.List(ctx)
	if err != nil {
		return Progress{}, err
	}
	p := Progress{Total: len(questions)}
	for _, q := range questions {
		if q.Answered() {
			p.Answered++
		}
	}
	return p, nil
}

// NextUnanswered はafterIDの次にある未回答の質問を返す。
// 末尾まで無ければ先頭から探し、全て回答済みならnilを返す。afterIDが空なら先頭から探す。
func (s *QuestionStore) NextUnanswered(ctx context.Context, afterID string) (*model.MemoryQuestion, error) {
	questions, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	start := indexOfQuestion(questions, afterID) + 1
	for k := 0; k < len(questions); k++ {
		q := questions[(start+k)%len(questions)]
		if !q.Answered() {
			return &q, nil
		}
	}
	return nil, nil
}

func (s *QuestionStore) load(ctx context.Context) ([]model.MemoryQuestion, error) {
	var questions []model.MemoryQuestion
	found, err := repository.GetJSON(ctx, s.repo, repository.KeyMemoryQuestions, &questions)
	if err != nil && !errors.Is(err, repository.ErrCorrupted) {
		return nil, fmt.Errorf("思い出の質問の読み込みに失敗しました: %w", err)
	}
	if err != nil {
		slog.Warn("思い出の質問が破損しているため初期状態に戻します", slog.String("error", err.Error()))
	}
	if found && err == nil && len(questions) > 0 {
		return questions, nil
	}

	questions = SeedQuestions()
	if err := s.save(ctx, questions); err != nil {
		return nil, err
	}
	return questions, nil
}

func (s *QuestionStore) save(ctx context.Context, questions []model.MemoryQuestion) error {
	if err := repository.SetJSON(ctx, s.repo, repository.KeyMemoryQuestions, questions); err != nil {
		slog.Error("思い出の質問の保存に失敗しました", slog.String("error", err.Error()))
		return fmt.Errorf("思い出の質問の保存に失敗しました: %w", err)
	}
	return nil
}

func indexOfQuestion(questions []model.MemoryQuestion, id string) int {
	for i := range questions {
		if questions[i].ID == id {
			return i
		}
	}
	return -1
}
