package settings

import (
	"context"
	"errors"
	"testing"

	"github.com/hitoshi/unsaid/internal/model"
	"github.com/hitoshi/unsaid/internal/repository"
)

func ptr[T any](v T) *T { return &v }

func TestGet_Defaults(t *testing.T) {
	store := NewStore(repository.NewMemoryKVRepo())

	got, err := store.Get(context.Background())
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != model.DefaultSettings() {
		t.Errorf("Get() = %+v, want defaults %+v", got, model.DefaultSettings())
	}
}

func TestUpdate_ShallowMerge(t *testing.T) {
	ctx := context.Background()
	store := NewStore(repository.NewMemoryKVRepo())

	got, err := store.Update(ctx, model.SettingsPatch{Theme: ptr(model.ThemeDark)})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	want := model.AppSettings{Theme: model.ThemeDark, VoiceEnabled: true, TTSEnabled: true, SoundsEnabled: true}
	if got != want {
		t.Errorf("Update() = %+v, want %+v", got, want)
	}

	got, _ = store.Update(ctx, model.SettingsPatch{SoundsEnabled: ptr(false), TTSEnabled: ptr(false)})
	want.SoundsEnabled = false
	want.TTSEnabled = false
	if got != want {
		t.Errorf("Update() = %+v, want %+v", got, want)
	}
}

func TestUpdate_PersistsBeforeReturn(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryKVRepo()

	updated, _ := NewStore(repo).Update(ctx, model.SettingsPatch{VoiceEnabled: ptr(false)})

	reloaded, err := NewStore(repo).Get(ctx)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if reloaded != updated {
		t.Errorf("reloaded = %+v, want %+v", reloaded, updated)
	}
}

func TestUpdate_InvalidTheme(t *testing.T) {
	ctx := context.Background()
	store := NewStore(repository.NewMemoryKVRepo())

	_, err := store.Update(ctx, model.SettingsPatch{Theme: ptr(model.Theme("sepia"))})
	if !errors.Is(err, &model.APIError{Code: model.ErrCodeInvalidSettings}) {
		t.Errorf("Update() error = %v, want INVALID_SETTINGS", err)
	}

	got, _ := store.Get(ctx)
	if got.Theme != model.ThemeLight {
		t.Errorf("Theme = %s, want unchanged light", got.Theme)
	}
}

func TestGet_PartialStoredValueKeepsDefaults(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryKVRepo()
	_ = repo.Set(ctx, repository.KeySettings, []byte(`{"theme":"dark"}`))

	got, _ := NewStore(repo).Get(ctx)
	want := model.AppSettings{Theme: model.ThemeDark, VoiceEnabled: true, TTSEnabled: true, SoundsEnabled: true}
	if got != want {
		t.Errorf("Get() = %+v, want %+v", got, want)
	}
}

func TestGet_CorruptedFallsBackToDefaults(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryKVRepo()
	_ = repo.Set(ctx, repository.KeySettings, []byte(`{"theme":`))

	got, err := NewStore(repo).Get(ctx)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != model.DefaultSettings() {
		t.Errorf("Get() = %+v, want defaults", got)
	}
}
