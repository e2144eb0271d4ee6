package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/hitoshi/unsaid/internal/middleware"
	"github.com/hitoshi/unsaid/internal/model"
	"github.com/hitoshi/unsaid/internal/repository"
)

// maxRequestBodyBytes はJSONリクエストボディの上限。
const maxRequestBodyBytes = 1 << 20

// envelope はモックバックエンドと同じ成功レスポンスの封筒。
type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data"`
	Message string `json:"message,omitempty"`
}

// writeSuccess は封筒に包んだ成功レスポンスを書き込む。
func writeSuccess(w http.ResponseWriter, statusCode int, data any, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(envelope{Success: true, Data: data, Message: message}); err != nil {
		slog.Warn("failed to write response", slog.String("error", err.Error()))
	}
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	middleware.WriteErrorResponse(w, statusCode, apiErr)
}

func newInvalidRequestError() *model.APIError {
	return &model.APIError{
		Code:     "INVALID_REQUEST",
		Message:  "リクエストボディの解析に失敗しました。",
		Category: "validation",
		Action:   "正しいJSON形式でリクエストしてください。",
	}
}

// decodeJSON はリクエストボディをvに読み込む。失敗時は400を書き込みfalseを返す。
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	body := http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	if err := json.NewDecoder(body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		writeAPIErrorResponse(w, http.StatusBadRequest, newInvalidRequestError())
		return false
	}
	return true
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		statusCode := mapAPIErrorToHTTPStatus(apiErr)
		if statusCode >= 500 {
			slog.Error("service error", slog.String("error", err.Error()))
		}
		writeAPIErrorResponse(w, statusCode, apiErr)
		return
	}

	if errors.Is(err, repository.ErrPersistence) {
		slog.Error("persistence failure", slog.String("error", err.Error()))
		writeAPIErrorResponse(w, http.StatusInternalServerError, model.NewPersistenceFailureError())
		return
	}

	if errors.Is(err, context.Canceled) {
		slog.Info("request cancelled", slog.String("error", err.Error()))
		writeAPIErrorResponse(w, http.StatusServiceUnavailable, &model.APIError{
			Code:     "REQUEST_CANCELLED",
			Message:  "リクエストが中断されました。",
			Category: "system",
			Action:   "再度お試しください。",
		})
		return
	}

	slog.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case model.ErrCodeSessionNotFound, model.ErrCodeQuestionNotFound:
		return http.StatusNotFound
	case model.ErrCodeNoActiveSession:
		return http.StatusConflict
	case model.ErrCodeQuotaExceeded:
		return http.StatusTooManyRequests
	case model.ErrCodeInvalidMode, model.ErrCodeInvalidTier, model.ErrCodeInvalidSender,
		model.ErrCodeInvalidTitle, model.ErrCodeInvalidSettings, model.ErrCodeEmptyMessage,
		model.ErrCodeEmptyAnswer, model.ErrCodeInvalidMemory, "INVALID_REQUEST", "INVALID_RECIPIENT":
		return http.StatusBadRequest
	case model.ErrCodeReplyFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func newInvalidRecipientError() *model.APIError {
	return &model.APIError{
		Code:     "INVALID_RECIPIENT",
		Message:  "暗号化の受信者公開鍵を解釈できません。",
		Category: "validation",
		Action:   "age1で始まる公開鍵を指定してください。",
	}
}
