package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/unsaid/internal/model"
	"github.com/hitoshi/unsaid/internal/repository"
)

// --- モック定義 ---

type mockAuthService struct {
	loginFn       func(ctx context.Context, token string) (*model.User, error)
	logoutFn      func(ctx context.Context) error
	currentUserFn func(ctx context.Context) (*model.User, error)
	updateTierFn  func(ctx context.Context, tier model.Tier) (*model.User, error)
}

func (m *mockAuthService) Login(ctx context.Context, token string) (*model.User, error) {
	if m.loginFn != nil {
		return m.loginFn(ctx, token)
	}
	return nil, nil
}

func (m *mockAuthService) Logout(ctx context.Context) error {
	if m.logoutFn != nil {
		return m.logoutFn(ctx)
	}
	return nil
}

func (m *mockAuthService) CurrentUser(ctx context.Context) (*model.User, error) {
	if m.currentUserFn != nil {
		return m.currentUserFn(ctx)
	}
	return nil, nil
}

func (m *mockAuthService) UpdateTier(ctx context.Context, tier model.Tier) (*model.User, error) {
	if m.updateTierFn != nil {
		return m.updateTierFn(ctx, tier)
	}
	return nil, nil
}

type mockSessionService struct {
	SessionServiceInterface
	getFn    func(ctx context.Context, id string) (*model.Session, error)
	deleteFn func(ctx context.Context, id string) error
	renameFn func(ctx context.Context, id, title string) (*model.Session, error)
}

func (m *mockSessionService) Get(ctx context.Context, id string) (*model.Session, error) {
	return m.getFn(ctx, id)
}

func (m *mockSessionService) Delete(ctx context.Context, id string) error {
	return m.deleteFn(ctx, id)
}

func (m *mockSessionService) Rename(ctx context.Context, id, title string) (*model.Session, error) {
	return m.renameFn(ctx, id, title)
}

// --- ヘルパー ---

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder, data any) envelope {
	t.Helper()
	var raw struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Message string          `json:"message"`
	}
	if err := json.NewDecoder(w.Body).Decode(&raw); err != nil {
		t.Fatalf("failed to decode envelope: %v", err)
	}
	if data != nil && len(raw.Data) > 0 {
		if err := json.Unmarshal(raw.Data, data); err != nil {
			t.Fatalf("failed to decode data: %v", err)
		}
	}
	return envelope{Success: raw.Success, Message: raw.Message}
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error body: %v", err)
	}
	return body
}

// --- エラー変換 ---

func TestMapAPIErrorToHTTPStatus(t *testing.T) {
	tests := []struct {
		err  *model.APIError
		want int
	}{
		{model.NewUnauthorizedError(), http.StatusUnauthorized},
		{model.NewSessionNotFoundError("x"), http.StatusNotFound},
		{model.NewQuestionNotFoundError("x"), http.StatusNotFound},
		{model.NewNoActiveSessionError(), http.StatusConflict},
		{model.NewQuotaExceededError(model.ModeUnsaid, 1), http.StatusTooManyRequests},
		{model.NewInvalidModeError("x"), http.StatusBadRequest},
		{model.NewInvalidTierError("x"), http.StatusBadRequest},
		{model.NewInvalidTitleError(), http.StatusBadRequest},
		{model.NewInvalidSettingsError("x"), http.StatusBadRequest},
		{model.NewEmptyMessageError(), http.StatusBadRequest},
		{model.NewEmptyAnswerError(), http.StatusBadRequest},
		{model.NewInvalidMemoryError("x"), http.StatusBadRequest},
		{model.NewReplyFailedError(), http.StatusBadGateway},
		{model.NewPersistenceFailureError(), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Code, func(t *testing.T) {
			if got := mapAPIErrorToHTTPStatus(tt.err); got != tt.want {
				t.Errorf("status = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestHandleServiceError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"ラップされたAPIError", fmt.Errorf("wrapped: %w", model.NewSessionNotFoundError("s1")), http.StatusNotFound, model.ErrCodeSessionNotFound},
		{"永続化エラー", fmt.Errorf("write failed: %w", repository.ErrPersistence), http.StatusInternalServerError, model.ErrCodePersistenceFailure},
		{"その他のエラー", errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			handleServiceError(w, tt.err)
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			body := decodeError(t, w)
			if body["code"] != tt.wantCode {
				t.Errorf("code = %v, want %s", body["code"], tt.wantCode)
			}
			if body["success"] != false {
				t.Errorf("success = %v, want false", body["success"])
			}
		})
	}
}

// --- 認証ハンドラー ---

func TestAuthHandler_GoogleLogin(t *testing.T) {
	var gotToken string
	h := NewAuthHandler(&mockAuthService{
		loginFn: func(ctx context.Context, token string) (*model.User, error) {
			gotToken = token
			return &model.User{ID: "1", Name: "John Doe", Tier: model.TierFree}, nil
		},
	})

	req := httptest.NewRequest(http.MethodPost, "/auth/google", strings.NewReader(`{"token":"google-token"}`))
	w := httptest.NewRecorder()
	h.GoogleLogin(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if gotToken != "google-token" {
		t.Errorf("token = %q, want google-token", gotToken)
	}
	var user model.User
	env := decodeEnvelope(t, w, &user)
	if !env.Success {
		t.Error("success should be true")
	}
	if user.Name != "John Doe" || user.Tier != model.TierFree {
		t.Errorf("user = %+v", user)
	}
}

func TestAuthHandler_GoogleLogin_InvalidJSON(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{
		loginFn: func(ctx context.Context, token string) (*model.User, error) {
			t.Fatal("service should not be called")
			return nil, nil
		},
	})

	req := httptest.NewRequest(http.MethodPost, "/auth/google", strings.NewReader(`{"token":`))
	w := httptest.NewRecorder()
	h.GoogleLogin(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestAuthHandler_GoogleLogin_Rejected(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{
		loginFn: func(ctx context.Context, token string) (*model.User, error) {
			return nil, model.NewUnauthorizedError()
		},
	})

	req := httptest.NewRequest(http.MethodPost, "/auth/google", strings.NewReader(`{"token":"bad"}`))
	w := httptest.NewRecorder()
	h.GoogleLogin(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestAuthHandler_Me_NoUser_Returns401(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{})

	w := httptest.NewRecorder()
	h.Me(w, httptest.NewRequest(http.MethodGet, "/auth/me", nil))

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
	if body := decodeError(t, w); body["action"] == "" {
		t.Error("401 should carry an action")
	}
}

func TestAuthHandler_UpdateTier(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{
		updateTierFn: func(ctx context.Context, tier model.Tier) (*model.User, error) {
			if !tier.Valid() {
				return nil, model.NewInvalidTierError(string(tier))
			}
			return &model.User{ID: "1", Tier: tier}, nil
		},
	})

	t.Run("premiumへ変更", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.UpdateTier(w, httptest.NewRequest(http.MethodPut, "/api/users/me/tier", strings.NewReader(`{"tier":"premium"}`)))
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
		}
		var user model.User
		decodeEnvelope(t, w, &user)
		if user.Tier != model.TierPremium {
			t.Errorf("tier = %q, want premium", user.Tier)
		}
	})

	t.Run("不正なプラン", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.UpdateTier(w, httptest.NewRequest(http.MethodPut, "/api/users/me/tier", strings.NewReader(`{"tier":"gold"}`)))
		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
		}
	})
}

// --- セッションハンドラー ---

func newSessionRouter(svc SessionServiceInterface) http.Handler {
	h := NewSessionHandler(svc)
	r := chi.NewRouter()
	r.Get("/api/sessions/{id}", h.GetSession)
	r.Patch("/api/sessions/{id}", h.RenameSession)
	r.Delete("/api/sessions/{id}", h.DeleteSession)
	return r
}

func TestSessionHandler_GetSession_NotFound(t *testing.T) {
	svc := &mockSessionService{
		getFn: func(ctx context.Context, id string) (*model.Session, error) {
			return nil, model.NewSessionNotFoundError(id)
		},
	}

	w := httptest.NewRecorder()
	newSessionRouter(svc).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/sessions/missing", nil))

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestSessionHandler_RenameSession_PassesIDAndTitle(t *testing.T) {
	var gotID, gotTitle string
	svc := &mockSessionService{
		renameFn: func(ctx context.Context, id, title string) (*model.Session, error) {
			gotID, gotTitle = id, title
			return &model.Session{ID: id, Title: title, Mode: model.ModeTherapy}, nil
		},
	}

	req := httptest.NewRequest(http.MethodPatch, "/api/sessions/s-1", strings.NewReader(`{"title":"Monday"}`))
	w := httptest.NewRecorder()
	newSessionRouter(svc).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if gotID != "s-1" || gotTitle != "Monday" {
		t.Errorf("Rename(%q, %q), want (s-1, Monday)", gotID, gotTitle)
	}
}

func TestSessionHandler_DeleteSession_Returns204(t *testing.T) {
	deleted := ""
	svc := &mockSessionService{
		deleteFn: func(ctx context.Context, id string) error {
			deleted = id
			return nil
		},
	}

	w := httptest.NewRecorder()
	newSessionRouter(svc).ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/sessions/s-9", nil))

	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNoContent)
	}
	if deleted != "s-9" {
		t.Errorf("deleted = %q, want s-9", deleted)
	}
}
