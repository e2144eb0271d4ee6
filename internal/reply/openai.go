package reply

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/hitoshi/unsaid/internal/model"
)

// maxHistoryMessages はモデルに渡す直近メッセージ数の上限。
const maxHistoryMessages = 20

// OpenAIConfig はOpenAI互換APIの接続設定。
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// OpenAIResponder はOpenAI互換のChat Completions APIで応答を生成する。
type OpenAIResponder struct {
	client *openai.Client
	model  string
}

// NewOpenAIResponder はOpenAIResponderを生成する。
func NewOpenAIResponder(cfg OpenAIConfig) (*OpenAIResponder, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("OPENAI_API_KEY is required for the openai responder")
	}
	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	httpClient := &http.Client{}
	if cfg.Timeout > 0 {
		httpClient.Timeout = cfg.Timeout
	}
	config.HTTPClient = httpClient

	modelName := cfg.Model
	if modelName == "" {
		modelName = openai.GPT4oMini
	}
	return &OpenAIResponder{
		client: openai.NewClientWithConfig(config),
		model:  modelName,
	}, nil
}

// Generate はモード別のシステムプロンプトと会話履歴を送って応答を得る。
func (r *OpenAIResponder) Generate(ctx context.Context, req Request) (string, error) {
	resp, err := r.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    r.model,
		Messages: buildMessages(req),
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", errors.New("chat completion returned empty content")
	}
	return text, nil
}

func buildMessages(req Request) []openai.ChatCompletionMessage {
	msgs := []openai.ChatCompletionMessage{{
		Role:    openai.ChatMessageRoleSystem,
		Content: systemPrompt(req.Mode, req.PersonName),
	}}

	history := req.History
	if len(history) > maxHistoryMessages {
		history = history[len(history)-maxHistoryMessages:]
	}
	for _, m := range history {
		role := openai.ChatMessageRoleUser
		if m.Sender == model.SenderAI {
			role = openai.ChatMessageRoleAssistant
		}
		msgs = append(msgs, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}

	return append(msgs, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Input,
	})
}

func systemPrompt(mode model.Mode, personName string) string {
	const base = "You are Unsaid, a warm and non-judgmental emotional support companion. " +
		"Reply in two to four sentences, validate the user's feelings, and end with one gentle open question. " +
		"You are not a therapist and never give medical advice."

	switch mode {
	case model.ModeUnsaid:
		return base + " The user is putting into words things they never said to someone. Help them acknowledge those feelings."
	case model.ModeClosure:
		target := "someone they have lost"
		if name := strings.TrimSpace(personName); name != "" {
			target = name
		}
		return base + " The user is speaking to or about " + target + " to find closure. Respond with compassion about that bond."
	default:
		return base + " The user wants to talk through what is on their mind."
	}
}

// compile-time interface check
var _ Responder = (*OpenAIResponder)(nil)
