// Package chat はメッセージ送信の一連の流れ（利用上限の確認、ユーザー発言の追加、
// 利用回数の加算、応答生成、応答の追加）をまとめる。
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/unsaid/internal/clock"
	"github.com/hitoshi/unsaid/internal/metrics"
	"github.com/hitoshi/unsaid/internal/model"
	"github.com/hitoshi/unsaid/internal/reply"
	"github.com/hitoshi/unsaid/internal/security"
	"github.com/hitoshi/unsaid/internal/session"
	"github.com/hitoshi/unsaid/internal/usage"
)

// UserSource はサインイン中のユーザーを返す。未ログインならnil, nilを返す。
type UserSource interface {
	CurrentUser(ctx context.Context) (*model.User, error)
}

// SendRequest はメッセージ送信の入力。
type SendRequest struct {
	Content string
	// Mode は送信先のモード。SessionIDが指定されている場合は省略できる。
	Mode model.Mode
	// SessionID が空の場合は選択中セッションに送る。選択中セッションが無いか
	// モードが異なる場合は新しいセッションを作成する。
	SessionID string
	// PersonName はclosureモードで語りかける相手の名前。
	PersonName string
}

// SendResult はメッセージ送信の結果。
// ReplyDropped は後続の送信やセッション削除により応答を破棄したことを表す。
type SendResult struct {
	Session      *model.Session   `json:"session"`
	UserMessage  model.Message    `json:"userMessage"`
	Reply        *model.Message   `json:"reply,omitempty"`
	ReplyDropped bool             `json:"replyDropped"`
	Usage        model.UsageStats `json:"usage"`
}

// Config はServiceの設定。
type Config struct {
	// ReplyTimeout は応答生成の上限時間。0以下なら制限しない。
	ReplyTimeout time.Duration
}

// Service はメッセージ送信を扱うサービス層。
//
// 利用上限の確認からユーザー発言の追加・利用回数の加算までは排他的に行い、
// 応答生成はロックの外で行う。セッションごとに送信のたびに増える世代番号を持ち、
// 応答完了時に世代が最新でなければその応答は追加しない。
type Service struct {
	mu          sync.Mutex
	generations map[string]uint64

	users     UserSource
	sessions  *session.Store
	tracker   *usage.Tracker
	policy    usage.Policy
	responder reply.Responder
	sanitizer security.TextSanitizer
	metrics   metrics.MetricsCollector
	clock     clock.Clock
	config    Config
}

// NewService はServiceを生成する。
func NewService(
	users UserSource,
	sessions *session.Store,
	tracker *usage.Tracker,
	policy usage.Policy,
	responder reply.Responder,
	sanitizer security.TextSanitizer,
	collector metrics.MetricsCollector,
	clk clock.Clock,
	config Config,
) *Service {
	if collector == nil {
		collector = metrics.NopCollector{}
	}
	return &Service{
		generations: make(map[string]uint64),
		users:       users,
		sessions:    sessions,
		tracker:     tracker,
		policy:      policy,
		responder:   responder,
		sanitizer:   sanitizer,
		metrics:     collector,
		clock:       clk,
		config:      config,
	}
}

// accepted はロック内で受け付けた送信の状態。
type accepted struct {
	session    *model.Session
	history    []model.Message
	userMsg    *model.Message
	stats      model.UsageStats
	generation uint64
}

// Send はメッセージを送信し、応答を追加したセッションを返す。
// 利用上限に達している場合は QUOTA_EXCEEDED を返し、何も追加しない。
func (s *Service) Send(ctx context.Context, req SendRequest) (*SendResult, error) {
	user, err := s.users.CurrentUser(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if user == nil {
		return nil, model.NewUnauthorizedError()
	}

	content := s.sanitizer.Clean(req.Content)
	if content == "" {
		return nil, model.NewEmptyMessageError()
	}
	if req.Mode != "" && !req.Mode.Valid() {
		return nil, model.NewInvalidModeError(string(req.Mode))
	}

	acc, err := s.accept(ctx, user, req.Mode, req.SessionID, content)
	if err != nil {
		return nil, err
	}
	mode := acc.session.Mode
	s.metrics.RecordMessageSent(string(mode))

	text, err := s.generate(ctx, reply.Request{
		Mode:       mode,
		Input:      content,
		PersonName: s.sanitizer.Clean(req.PersonName),
		History:    acc.history,
	})
	if err != nil {
		s.metrics.RecordReplyFailure(string(mode))
		slog.Error("応答の生成に失敗しました",
			slog.String("session_id", acc.session.ID),
			slog.String("mode", string(mode)),
			slog.String("error", err.Error()),
		)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, model.NewReplyFailedError()
	}

	result := &SendResult{UserMessage: *acc.userMsg, Usage: acc.stats}

	aiMsg, err := s.complete(ctx, acc.session.ID, acc.generation, text)
	if err != nil {
		return nil, err
	}
	if aiMsg == nil {
		result.ReplyDropped = true
		s.metrics.RecordReplyDropped(string(mode))
		slog.Info("古い応答を破棄しました",
			slog.String("session_id", acc.session.ID),
			slog.String("mode", string(mode)),
		)
	}
	result.Reply = aiMsg

	latest, err := s.sessions.Get(ctx, acc.session.ID)
	if err != nil && !errors.Is(err, &model.APIError{Code: model.ErrCodeSessionNotFound}) {
		return nil, err
	}
	if latest == nil {
		latest = acc.session
	}
	result.Session = latest
	return result, nil
}

// SendClosure はclosureモードでメッセージを送信する。
// personNameが空でなければ名前入りの応答になる。
func (s *Service) SendClosure(ctx context.Context, content, personName, sessionID string) (*SendResult, error) {
	return s.Send(ctx, SendRequest{
		Content:    content,
		Mode:       model.ModeClosure,
		SessionID:  sessionID,
		PersonName: personName,
	})
}

// Usage はユーザーのプランに応じた本日の利用状況のまとめを返す。
func (s *Service) Usage(ctx context.Context) (*usage.Summary, error) {
	user, err := s.users.CurrentUser(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if user == nil {
		return nil, model.NewUnauthorizedError()
	}
	stats, err := s.tracker.Stats(ctx)
	if err != nil {
		return nil, err
	}
	summary := s.policy.Summarize(user.Tier, stats)
	return &summary, nil
}

// accept は送信先セッションを決め、上限を確認してユーザー発言と利用回数を記録する。
func (s *Service) accept(ctx context.Context, user *model.User, mode model.Mode, sessionID, content string) (*accepted, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.resolveSession(ctx, mode, sessionID)
	if err != nil {
		return nil, err
	}

	count, err := s.tracker.GetCount(ctx, sess.Mode)
	if err != nil {
		return nil, err
	}
	if !s.policy.Allowed(user.Tier, sess.Mode, count) {
		s.metrics.RecordQuotaRejected(string(sess.Mode))
		return nil, model.NewQuotaExceededError(sess.Mode, s.policy.Limit(user.Tier, sess.Mode))
	}

	userMsg, err := s.sessions.AppendMessage(ctx, sess.ID, content, model.SenderUser)
	if err != nil {
		return nil, err
	}
	stats, err := s.tracker.Increment(ctx, sess.Mode)
	if err != nil {
		return nil, err
	}

	s.generations[sess.ID]++
	return &accepted{
		session:    sess,
		history:    sess.Messages,
		userMsg:    userMsg,
		stats:      stats,
		generation: s.generations[sess.ID],
	}, nil
}

// resolveSession は送信先のセッションを返す。必要であれば作成し、選択中にする。
func (s *Service) resolveSession(ctx context.Context, mode model.Mode, sessionID string) (*model.Session, error) {
	if sessionID != "" {
		// モードが合わない送信で選択中セッションを切り替えない
		sess, err := s.sessions.Get(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		if mode != "" && mode != sess.Mode {
			return nil, model.NewInvalidModeError(string(mode))
		}
		return s.sessions.Select(ctx, sessionID)
	}

	current, err := s.sessions.Current(ctx)
	if err != nil {
		return nil, err
	}
	if current != nil && (mode == "" || mode == current.Mode) {
		return current, nil
	}
	if mode == "" {
		return nil, model.NewNoActiveSessionError()
	}
	return s.sessions.Create(ctx, mode, "")
}

// generate は応答を生成し、レイテンシを記録する。
func (s *Service) generate(ctx context.Context, req reply.Request) (string, error) {
	if s.config.ReplyTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.ReplyTimeout)
		defer cancel()
	}

	start := s.clock.Now()
	text, err := s.responder.Generate(ctx, req)
	s.metrics.RecordReplyLatency(string(req.Mode), s.clock.Now().Sub(start))
	return text, err
}

// complete は世代が最新の場合に限り応答を追加する。追加しなかった場合はnilを返す。
func (s *Service) complete(ctx context.Context, sessionID string, generation uint64, text string) (*model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.generations[sessionID] != generation {
		return nil, nil
	}
	msg, err := s.sessions.AppendMessage(ctx, sessionID, text, model.SenderAI)
	if err != nil {
		if errors.Is(err, &model.APIError{Code: model.ErrCodeSessionNotFound}) {
			delete(s.generations, sessionID)
			return nil, nil
		}
		return nil, err
	}
	return msg, nil
}
