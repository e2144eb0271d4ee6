package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hitoshi/unsaid/internal/model"
	"github.com/hitoshi/unsaid/internal/repository"
	"github.com/hitoshi/unsaid/internal/security"
	"github.com/hitoshi/unsaid/internal/testutil"
)

func newTestQuestionStore() (*QuestionStore, *repository.MemoryKVRepo, *testutil.StubClock) {
	repo := repository.NewMemoryKVRepo()
	clk := testutil.FixedClock()
	return NewQuestionStore(repo, clk, security.NewTextSanitizer()), repo, clk
}

func TestList_SeedsEightQuestions(t *testing.T) {
	ctx := context.Background()
	store, repo, _ := newTestQuestionStore()

	questions, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(questions) != 8 {
		t.Fatalf("List() = %d questions, want 8", len(questions))
	}
	if questions[0].ID != "1" || questions[0].Question != "What is your favorite memory with this person?" {
		t.Errorf("first question = %+v", questions[0])
	}
	if questions[7].ID != "8" || questions[7].Question != "What are you grateful for about your time together?" {
		t.Errorf("last question = %+v", questions[7])
	}
	if _, found, _ := repo.Get(ctx, repository.KeyMemoryQuestions); !found {
		t.Error("expected seeded questions to be persisted")
	}
}

func TestAnswer(t *testing.T) {
	ctx := context.Background()
	store, _, clk := newTestQuestionStore()

	q, err := store.Answer(ctx, "6", "  Loud, and it filled the room.  ")
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if q.Answer != "Loud, and it filled the room." {
		t.Errorf("Answer = %q", q.Answer)
	}
	if q.AnsweredAt == nil || !q.AnsweredAt.Equal(clk.Now()) {
		t.Errorf("AnsweredAt = %v, want %v", q.AnsweredAt, clk.Now())
	}

	// 再読み込みしても回答が残る
	reloaded := NewQuestionStore(store.repo, clk, security.NewTextSanitizer())
	questions, _ := reloaded.List(ctx)
	if questions[5].Answer != "Loud, and it filled the room." {
		t.Errorf("reloaded answer = %q", questions[5].Answer)
	}
}

func TestAnswer_Errors(t *testing.T) {
	ctx := context.Background()
	store, _, _ := newTestQuestionStore()

	_, err := store.Answer(ctx, "1", "   ")
	if !errors.Is(err, &model.APIError{Code: model.ErrCodeEmptyAnswer}) {
		t.Errorf("Answer() empty error = %v, want EMPTY_ANSWER", err)
	}

	_, err = store.Answer(ctx, "99", "text")
	if !errors.Is(err, &model.APIError{Code: model.ErrCodeQuestionNotFound}) {
		t.Errorf("Answer() missing error = %v, want QUESTION_NOT_FOUND", err)
	}
}

func TestProgressAndNextUnanswered(t *testing.T) {
	ctx := context.Background()
	store, _, clk := newTestQuestionStore()

	p, _ := store.Progress(ctx)
	if p != (Progress{Answered: 0, Total: 8}) {
		t.Errorf("Progress() = %+v", p)
	}

	next, _ := store.NextUnanswered(ctx, "")
	if next == nil || next.ID != "1" {
		t.Fatalf("NextUnanswered(\"\") = %+v, want question 1", next)
	}

	for _, id := range []string{"1", "2", "3", "4", "5", "6", "7"} {
		clk.Advance(time.Minute)
		if _, err := store.Answer(ctx, id, "answer "+id); err != nil {
			t.Fatalf("Answer(%s) error = %v", id, err)
		}
	}

	p, _ = store.Progress(ctx)
	if p.Answered != 7 {
		t.Errorf("Answered = %d, want 7", p.Answered)
	}

	// 後ろに未回答が無い場合は先頭から一周して探す
	next, _ = store.NextUnanswered(ctx, "8")
	if next == nil || next.ID != "8" {
		t.Errorf("NextUnanswered(8) = %+v, want question 8", next)
	}
	next, _ = store.NextUnanswered(ctx, "2")
	if next == nil || next.ID != "8" {
		t.Errorf("NextUnanswered(2) = %+v, want question 8", next)
	}

	_, _ = store.Answer(ctx, "8", "done")
	next, _ = store.NextUnanswered(ctx, "")
	if next != nil {
		t.Errorf("NextUnanswered() = %+v, want nil when all answered", next)
	}
}

func TestList_CorruptedReseeds(t *testing.T) {
	ctx := context.Background()
	store, repo, _ := newTestQuestionStore()
	_ = repo.Set(ctx, repository.KeyMemoryQuestions, []byte("[{"))

	questions, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(questions) != 8 {
		t.Errorf("List() = %d questions, want 8", len(questions))
	}
}
