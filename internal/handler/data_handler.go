package handler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/hitoshi/unsaid/internal/clock"
	"github.com/hitoshi/unsaid/internal/userdata"
)

// DataServiceInterface はデータ書き出しと消去のサービスインターフェース。
type DataServiceInterface interface {
	WriteJSON(ctx context.Context, w io.Writer) error
	WriteEncrypted(ctx context.Context, w io.Writer, recipient string) error
	Clear(ctx context.Context) error
}

// DataHandler は利用者データのHTTPハンドラー。
type DataHandler struct {
	service DataServiceInterface
	clock   clock.Clock
}

// NewDataHandler はDataHandlerを生成する。
func NewDataHandler(service DataServiceInterface, clk clock.Clock) *DataHandler {
	return &DataHandler{service: service, clock: clk}
}

// Export はユーザーと全セッションをJSONファイルとして返す。
// クエリrecipientにageの公開鍵を指定すると暗号化したファイルを返す。
// GET /api/data/export
func (h *DataHandler) Export(w http.ResponseWriter, r *http.Request) {
	recipient := r.URL.Query().Get("recipient")
	date := h.clock.Now().Format(clock.DateLayout)

	var buf bytes.Buffer
	var err error
	filename := fmt.Sprintf("unsaid-export-%s.json", date)
	contentType := "application/json"
	if recipient != "" {
		err = h.service.WriteEncrypted(r.Context(), &buf, recipient)
		filename += ".age"
		contentType = "application/octet-stream"
	} else {
		err = h.service.WriteJSON(r.Context(), &buf)
	}
	if err != nil {
		if errors.Is(err, userdata.ErrInvalidRecipient) {
			writeAPIErrorResponse(w, http.StatusBadRequest, newInvalidRecipientError())
			return
		}
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		slog.Warn("failed to write export", slog.String("error", err.Error()))
	}
}

// ClearData は会話・思い出を削除し、利用回数をリセットする。
// DELETE /api/data
func (h *DataHandler) ClearData(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Clear(r.Context()); err != nil {
		handleServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, nil, "データを消去しました。")
}
