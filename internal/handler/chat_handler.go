package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/unsaid/internal/chat"
	"github.com/hitoshi/unsaid/internal/model"
	"github.com/hitoshi/unsaid/internal/usage"
)

// ChatServiceInterface はチャットハンドラーが必要とするサービスインターフェース。
type ChatServiceInterface interface {
	Send(ctx context.Context, req chat.SendRequest) (*chat.SendResult, error)
	SendClosure(ctx context.Context, content, personName, sessionID string) (*chat.SendResult, error)
	Usage(ctx context.Context) (*usage.Summary, error)
}

// ChatHandler はメッセージ送信と利用状況のHTTPハンドラー。
type ChatHandler struct {
	service ChatServiceInterface
}

// NewChatHandler はChatHandlerを生成する。
func NewChatHandler(service ChatServiceInterface) *ChatHandler {
	return &ChatHandler{service: service}
}

type sendMessageRequest struct {
	Content   string `json:"content"`
	Mode      string `json:"mode"`
	SessionID string `json:"sessionId"`
}

type sendClosureRequest struct {
	Content    string `json:"content"`
	PersonName string `json:"personName"`
	SessionID  string `json:"sessionId"`
}

// SendMessage はメッセージを送信し、応答を追加したセッションを返す。
// POST /api/messages
func (h *ChatHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.service.Send(r.Context(), chat.SendRequest{
		Content:   req.Content,
		Mode:      model.Mode(req.Mode),
		SessionID: req.SessionID,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, result, "")
}

// SendClosureMessage はclosureモードでメッセージを送信する。
// POST /api/closure/messages
func (h *ChatHandler) SendClosureMessage(w http.ResponseWriter, r *http.Request) {
	var req sendClosureRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.service.SendClosure(r.Context(), req.Content, req.PersonName, req.SessionID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, result, "")
}

// Usage は本日の利用状況を返す。
// GET /api/usage
func (h *ChatHandler) Usage(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.Usage(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, summary, "")
}
