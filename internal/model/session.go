// Package model はドメインモデルを定義する。
package model

import (
	"strings"
	"time"
)

// Mode は会話モードを表す。セッション作成後は変更されない。
type Mode string

const (
	// ModeTherapy はセラピー対話モード。
	ModeTherapy Mode = "therapy"
	// ModeUnsaid は言えなかった想いを振り返るモード。
	ModeUnsaid Mode = "unsaid"
	// ModeClosure は大切な人との別れに区切りをつけるモード。
	ModeClosure Mode = "closure"
)

// Modes は全モードを定義順に返す。
func Modes() []Mode {
	return []Mode{ModeTherapy, ModeUnsaid, ModeClosure}
}

// Valid はモードが既知の値かどうかを判定する。
func (m Mode) Valid() bool {
	switch m {
	case ModeTherapy, ModeUnsaid, ModeClosure:
		return true
	default:
		return false
	}
}

// DefaultSessionTitle はモードから既定のセッションタイトルを生成する。
// 例: "therapy" → "Therapy Session"
func (m Mode) DefaultSessionTitle() string {
	s := string(m)
	if s == "" {
		return "Session"
	}
	return strings.ToUpper(s[:1]) + s[1:] + " Session"
}

// Sender はメッセージの送信者を表す。
type Sender string

const (
	SenderUser Sender = "user"
	SenderAI   Sender = "ai"
)

// Valid は送信者が既知の値かどうかを判定する。
func (s Sender) Valid() bool {
	return s == SenderUser || s == SenderAI
}

// Message はセッション内の1発言を表す。追加後は変更されない。
type Message struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Sender    Sender    `json:"sender"`
	Timestamp time.Time `json:"timestamp"`
}

// Session は1つのモードで進行する会話を表す。
// Messagesは追加順（時系列順）に並ぶ。
type Session struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Mode      Mode      `json:"mode"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Clone はメッセージ列を含めたディープコピーを返す。
// ストア外に渡した値が内部状態を書き換えないようにするために使う。
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.Messages = make([]Message, len(s.Messages))
	copy(c.Messages, s.Messages)
	return &c
}
