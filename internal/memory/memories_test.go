package memory

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/hitoshi/unsaid/internal/model"
	"github.com/hitoshi/unsaid/internal/repository"
	"github.com/hitoshi/unsaid/internal/security"
	"github.com/hitoshi/unsaid/internal/testutil"
)

func newTestMemoryStore() (*MemoryStore, *repository.MemoryKVRepo, *testutil.StubClock) {
	repo := repository.NewMemoryKVRepo()
	clk := testutil.FixedClock()
	return NewMemoryStore(repo, clk, testutil.NewStubIDGenerator(), security.NewTextSanitizer()), repo, clk
}

func TestUpload_AppendsInOrder(t *testing.T) {
	ctx := context.Background()
	store, _, clk := newTestMemoryStore()

	first, err := store.Upload(ctx, "Beach trip", "We built a sandcastle.", []string{"summer", " family ", "", "summer"})
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	clk.Advance(time.Hour)
	second, _ := store.Upload(ctx, "Kitchen", "<b>Her</b> pancakes.", nil)

	if !reflect.DeepEqual(first.Tags, []string{"summer", "family"}) {
		t.Errorf("Tags = %q", first.Tags)
	}
	if second.Content != "Her pancakes." {
		t.Errorf("Content = %q, want markup removed", second.Content)
	}
	if second.Tags == nil {
		t.Error("Tags should be an empty slice, not nil")
	}

	list, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list) != 2 || list[0].ID != first.ID || list[1].ID != second.ID {
		t.Errorf("List() = %+v, want [first second]", list)
	}
	if !list[1].CreatedAt.Equal(clk.Now()) {
		t.Errorf("CreatedAt = %v, want %v", list[1].CreatedAt, clk.Now())
	}
}

func TestUpload_Validation(t *testing.T) {
	ctx := context.Background()
	store, repo, _ := newTestMemoryStore()

	tooMany := make([]string, maxTags+1)
	for i := range tooMany {
		tooMany[i] = string(rune('a' + i))
	}

	tests := []struct {
		name    string
		title   string
		content string
		tags    []string
	}{
		{"タイトルが空", " ", "content", nil},
		{"本文が空", "title", "", nil},
		{"タグが多すぎる", "title", "content", tooMany},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := store.Upload(ctx, tt.title, tt.content, tt.tags)
			if !errors.Is(err, &model.APIError{Code: model.ErrCodeInvalidMemory}) {
				t.Errorf("Upload() error = %v, want INVALID_MEMORY", err)
			}
		})
	}
	if repo.Len() != 0 {
		t.Error("rejected uploads must not persist anything")
	}
}

func TestMemoryStore_Clear(t *testing.T) {
	ctx := context.Background()
	store, _, _ := newTestMemoryStore()

	_, _ = store.Upload(ctx, "t", "c", nil)
	if err := store.Clear(ctx); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	list, _ := store.List(ctx)
	if len(list) != 0 {
		t.Errorf("List() = %d, want 0", len(list))
	}
}
