package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/hitoshi/unsaid/internal/chat"
	"github.com/hitoshi/unsaid/internal/model"
	"github.com/hitoshi/unsaid/internal/usage"
)

type mockChatClient struct {
	sendFn  func(ctx context.Context, req chat.SendRequest) (*chat.SendResult, error)
	usageFn func(ctx context.Context) (*usage.Summary, error)
}

func (m *mockChatClient) Send(ctx context.Context, req chat.SendRequest) (*chat.SendResult, error) {
	return m.sendFn(ctx, req)
}

func (m *mockChatClient) Usage(ctx context.Context) (*usage.Summary, error) {
	return m.usageFn(ctx)
}

func TestRunChat_SendsLinesAndPrintsReplies(t *testing.T) {
	var requests []chat.SendRequest
	client := &mockChatClient{
		sendFn: func(ctx context.Context, req chat.SendRequest) (*chat.SendResult, error) {
			requests = append(requests, req)
			return &chat.SendResult{
				Session: &model.Session{ID: "s1", Mode: req.Mode},
				Reply:   &model.Message{Content: "reply to " + req.Content, Sender: model.SenderAI},
			}, nil
		},
	}

	in := newBasicLineInput(strings.NewReader("hello\n\n  again  \n/quit\nignored\n"), nil)
	var out bytes.Buffer
	err := runChat(context.Background(), client, in, &out, chatOptions{Mode: model.ModeClosure, PersonName: "Mom"})
	if err != nil {
		t.Fatalf("runChat() error = %v", err)
	}

	if len(requests) != 2 {
		t.Fatalf("requests = %d, want 2", len(requests))
	}
	if requests[0].SessionID != "" {
		t.Errorf("first SessionID = %q, want empty", requests[0].SessionID)
	}
	if requests[1].SessionID != "s1" {
		t.Errorf("second SessionID = %q, want %q", requests[1].SessionID, "s1")
	}
	if requests[1].Content != "again" {
		t.Errorf("Content = %q, want trimmed %q", requests[1].Content, "again")
	}
	for _, r := range requests {
		if r.Mode != model.ModeClosure || r.PersonName != "Mom" {
			t.Errorf("request = %+v, want closure mode addressed to Mom", r)
		}
	}
	if !strings.Contains(out.String(), "reply to hello") {
		t.Errorf("output should contain reply, got %q", out.String())
	}
}

func TestRunChat_ErrorsAreShownAndLoopContinues(t *testing.T) {
	calls := 0
	client := &mockChatClient{
		sendFn: func(ctx context.Context, req chat.SendRequest) (*chat.SendResult, error) {
			calls++
			return nil, model.NewQuotaExceededError(model.ModeUnsaid, 1)
		},
	}

	in := newBasicLineInput(strings.NewReader("one\ntwo"), nil)
	var out bytes.Buffer
	if err := runChat(context.Background(), client, in, &out, chatOptions{Mode: model.ModeUnsaid}); err != nil {
		t.Fatalf("runChat() error = %v", err)
	}

	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
	if !strings.Contains(out.String(), "プレミアムプラン") {
		t.Errorf("output should contain the action text, got %q", out.String())
	}
}

func TestRunChat_UsageCommand(t *testing.T) {
	client := &mockChatClient{
		sendFn: func(ctx context.Context, req chat.SendRequest) (*chat.SendResult, error) {
			t.Fatal("Send should not be called")
			return nil, nil
		},
		usageFn: func(ctx context.Context) (*usage.Summary, error) {
			return &usage.Summary{
				Tier: model.TierFree,
				Modes: []usage.ModeSummary{
					{Mode: model.ModeTherapy, Count: 2, Limit: 3},
					{Mode: model.ModeUnsaid, Count: 0, Limit: 1},
				},
				Total: 2,
			}, nil
		},
	}

	in := newBasicLineInput(strings.NewReader("/usage\n"), nil)
	var out bytes.Buffer
	if err := runChat(context.Background(), client, in, &out, chatOptions{Mode: model.ModeTherapy}); err != nil {
		t.Fatalf("runChat() error = %v", err)
	}

	for _, want := range []string{"Tier: free", "therapy  2/3", "Total: 2"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output should contain %q, got %q", want, out.String())
		}
	}
}

func TestRunChat_DroppedReply(t *testing.T) {
	client := &mockChatClient{
		sendFn: func(ctx context.Context, req chat.SendRequest) (*chat.SendResult, error) {
			return &chat.SendResult{Session: &model.Session{ID: "s1"}, ReplyDropped: true}, nil
		},
	}

	in := newBasicLineInput(strings.NewReader("hi\n"), nil)
	var out bytes.Buffer
	if err := runChat(context.Background(), client, in, &out, chatOptions{Mode: model.ModeTherapy}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "(reply discarded)") {
		t.Errorf("output = %q", out.String())
	}
}

func TestDescribeError(t *testing.T) {
	t.Run("APIError", func(t *testing.T) {
		err := describeError(model.NewUnauthorizedError())
		if err.Error() != "認証が必要です。 ログインしてください。" {
			t.Errorf("describeError() = %q", err.Error())
		}
	})

	t.Run("その他のエラー", func(t *testing.T) {
		orig := errors.New("boom")
		if got := describeError(orig); got != orig {
			t.Errorf("describeError() = %v, want original error", got)
		}
	})
}

func TestBasicLineInput_PrintsPrompt(t *testing.T) {
	var out bytes.Buffer
	in := newBasicLineInput(strings.NewReader("line\r\n"), &out)
	got, err := in.ReadLine("> ")
	if err != nil {
		t.Fatal(err)
	}
	if got != "line" {
		t.Errorf("ReadLine() = %q, want %q", got, "line")
	}
	if out.String() != "> " {
		t.Errorf("prompt = %q", out.String())
	}
}
