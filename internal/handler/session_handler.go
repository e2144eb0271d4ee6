package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/unsaid/internal/model"
)

// SessionServiceInterface はセッションハンドラーが必要とするサービスインターフェース。
// session.Storeが満たす。
type SessionServiceInterface interface {
	List(ctx context.Context) ([]model.Session, error)
	Get(ctx context.Context, id string) (*model.Session, error)
	Current(ctx context.Context) (*model.Session, error)
	Create(ctx context.Context, mode model.Mode, title string) (*model.Session, error)
	Select(ctx context.Context, id string) (*model.Session, error)
	Delete(ctx context.Context, id string) error
	Rename(ctx context.Context, id, title string) (*model.Session, error)
}

// SessionHandler は会話セッションのHTTPハンドラー。
type SessionHandler struct {
	service SessionServiceInterface
}

// NewSessionHandler はSessionHandlerを生成する。
func NewSessionHandler(service SessionServiceInterface) *SessionHandler {
	return &SessionHandler{service: service}
}

type createSessionRequest struct {
	Mode  string `json:"mode"`
	Title string `json:"title"`
}

type renameSessionRequest struct {
	Title string `json:"title"`
}

// ListSessions は新しい順のセッション一覧を返す。
// GET /api/sessions
func (h *SessionHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.service.List(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if sessions == nil {
		sessions = []model.Session{}
	}
	writeSuccess(w, http.StatusOK, sessions, "")
}

// CreateSession はセッションを作成して選択中にする。
// POST /api/sessions
func (h *SessionHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	session, err := h.service.Create(r.Context(), model.Mode(req.Mode), req.Title)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusCreated, session, "")
}

// CurrentSession は選択中のセッションを返す。選択中が無ければdataはnull。
// GET /api/sessions/current
func (h *SessionHandler) CurrentSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.service.Current(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, session, "")
}

// GetSession はセッションを1件返す。
// GET /api/sessions/{id}
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, session, "")
}

// SelectSession はセッションを選択中にする。
// POST /api/sessions/{id}/select
func (h *SessionHandler) SelectSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.service.Select(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, session, "")
}

// RenameSession はセッションのタイトルを変更する。
// PATCH /api/sessions/{id}
func (h *SessionHandler) RenameSession(w http.ResponseWriter, r *http.Request) {
	var req renameSessionRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	session, err := h.service.Rename(r.Context(), chi.URLParam(r, "id"), req.Title)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, session, "")
}

// DeleteSession はセッションを削除する。存在しないIDでも成功する。
// DELETE /api/sessions/{id}
func (h *SessionHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
