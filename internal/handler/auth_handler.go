// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/unsaid/internal/model"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	Login(ctx context.Context, token string) (*model.User, error)
	Logout(ctx context.Context) error
	CurrentUser(ctx context.Context) (*model.User, error)
	UpdateTier(ctx context.Context, tier model.Tier) (*model.User, error)
}

// AuthHandler は認証関連のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface) *AuthHandler {
	return &AuthHandler{service: service}
}

type loginRequest struct {
	Token string `json:"token"`
}

type updateTierRequest struct {
	Tier string `json:"tier"`
}

// GoogleLogin はGoogleのトークンでサインインする。
// POST /auth/google
func (h *AuthHandler) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.service.Login(r.Context(), req.Token)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, user, "")
}

// Logout はサインアウトし、会話と利用状況を消去する。
// POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Logout(r.Context()); err != nil {
		handleServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, nil, "ログアウトしました。")
}

// Me はサインイン中のユーザーを返す。未ログインなら401。
// GET /auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.CurrentUser(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if user == nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}
	writeSuccess(w, http.StatusOK, user, "")
}

// UpdateTier はプランを変更する。
// PUT /api/users/me/tier
func (h *AuthHandler) UpdateTier(w http.ResponseWriter, r *http.Request) {
	var req updateTierRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.service.UpdateTier(r.Context(), model.Tier(req.Tier))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if user == nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}
	writeSuccess(w, http.StatusOK, user, "")
}
