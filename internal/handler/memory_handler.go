package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/unsaid/internal/memory"
	"github.com/hitoshi/unsaid/internal/model"
)

// QuestionServiceInterface は思い出の質問のサービスインターフェース。
type QuestionServiceInterface interface {
	List(ctx context.Context) ([]model.MemoryQuestion, error)
	Answer(ctx context.Context, id, answer string) (*model.MemoryQuestion, error)
	Progress(ctx context.Context) (memory.Progress, error)
	NextUnanswered(ctx context.Context, afterID string) (*model.MemoryQuestion, error)
}

// MemoryServiceInterface は思い出のサービスインターフェース。
type MemoryServiceInterface interface {
	List(ctx context.Context) ([]model.Memory, error)
	Upload(ctx context.Context, title, content string, tags []string) (*model.Memory, error)
}

// MemoryHandler は思い出と思い出の質問のHTTPハンドラー。
type MemoryHandler struct {
	questions QuestionServiceInterface
	memories  MemoryServiceInterface
}

// NewMemoryHandler はMemoryHandlerを生成する。
func NewMemoryHandler(questions QuestionServiceInterface, memories MemoryServiceInterface) *MemoryHandler {
	return &MemoryHandler{questions: questions, memories: memories}
}

type questionsResponse struct {
	Questions []model.MemoryQuestion `json:"questions"`
	Progress  memory.Progress        `json:"progress"`
}

// answerResponse は回答した質問と、続けて表示する未回答の質問を返す。
// 全て回答済みならNextはnull。
type answerResponse struct {
	Question *model.MemoryQuestion `json:"question"`
	Next     *model.MemoryQuestion `json:"next"`
	Progress memory.Progress       `json:"progress"`
}

type answerRequest struct {
	Answer string `json:"answer"`
}

type uploadMemoryRequest struct {
	Title   string   `json:"title"`
	Content string   `json:"content"`
	Tags    []string `json:"tags"`
}

// ListQuestions は質問一覧と回答の進み具合を返す。
// GET /api/memory-questions
func (h *MemoryHandler) ListQuestions(w http.ResponseWriter, r *http.Request) {
	questions, err := h.questions.List(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	progress, err := h.questions.Progress(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, questionsResponse{Questions: questions, Progress: progress}, "")
}

// AnswerQuestion は質問に回答する。
// PUT /api/memory-questions/{id}/answer
func (h *MemoryHandler) AnswerQuestion(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	question, err := h.questions.Answer(r.Context(), chi.URLParam(r, "id"), req.Answer)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	next, err := h.questions.NextUnanswered(r.Context(), question.ID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	progress, err := h.questions.Progress(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, answerResponse{Question: question, Next: next, Progress: progress}, "")
}

// ListMemories は登録済みの思い出を返す。
// GET /api/memories
func (h *MemoryHandler) ListMemories(w http.ResponseWriter, r *http.Request) {
	memories, err := h.memories.List(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if memories == nil {
		memories = []model.Memory{}
	}
	writeSuccess(w, http.StatusOK, memories, "")
}

// UploadMemory は思い出を登録する。
// POST /api/memories
func (h *MemoryHandler) UploadMemory(w http.ResponseWriter, r *http.Request) {
	var req uploadMemoryRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	m, err := h.memories.Upload(r.Context(), req.Title, req.Content, req.Tags)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusCreated, m, "思い出を保存しました。")
}
