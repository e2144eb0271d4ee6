// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, chat, usage, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Is はエラーコードが一致する場合にtrueを返す。
// errors.Is(err, &APIError{Code: ...}) でコード単位の判定ができる。
func (e *APIError) Is(target error) bool {
	t, ok := target.(*APIError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// 定義済みエラーコード
const (
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeSessionNotFound    = "SESSION_NOT_FOUND"
	ErrCodeNoActiveSession    = "NO_ACTIVE_SESSION"
	ErrCodeQuestionNotFound   = "QUESTION_NOT_FOUND"
	ErrCodeQuotaExceeded      = "QUOTA_EXCEEDED"
	ErrCodePersistenceFailure = "PERSISTENCE_FAILURE"
	ErrCodeInvalidMode        = "INVALID_MODE"
	ErrCodeInvalidTier        = "INVALID_TIER"
	ErrCodeInvalidSender      = "INVALID_SENDER"
	ErrCodeInvalidTitle       = "INVALID_TITLE"
	ErrCodeInvalidSettings    = "INVALID_SETTINGS"
	ErrCodeEmptyMessage       = "EMPTY_MESSAGE"
	ErrCodeEmptyAnswer        = "EMPTY_ANSWER"
	ErrCodeInvalidMemory      = "INVALID_MEMORY"
	ErrCodeReplyFailed        = "REPLY_FAILED"
)

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewSessionNotFoundError はセッション未検出エラーを生成する。
func NewSessionNotFoundError(sessionID string) *APIError {
	return &APIError{
		Code:     ErrCodeSessionNotFound,
		Message:  fmt.Sprintf("指定されたセッションが見つかりません: %s", sessionID),
		Category: "chat",
		Action:   "セッション一覧から選び直してください。",
	}
}

// NewNoActiveSessionError は選択中のセッションが無い場合のエラーを生成する。
func NewNoActiveSessionError() *APIError {
	return &APIError{
		Code:     ErrCodeNoActiveSession,
		Message:  "選択中のセッションがありません。",
		Category: "chat",
		Action:   "モードを選んで新しいセッションを開始してください。",
	}
}

// NewQuestionNotFoundError は質問未検出エラーを生成する。
func NewQuestionNotFoundError(questionID string) *APIError {
	return &APIError{
		Code:     ErrCodeQuestionNotFound,
		Message:  fmt.Sprintf("指定された質問が見つかりません: %s", questionID),
		Category: "validation",
		Action:   "質問IDを確認してください。",
	}
}

// NewQuotaExceededError は1日の利用上限到達エラーを生成する。
func NewQuotaExceededError(mode Mode, limit int) *APIError {
	return &APIError{
		Code:     ErrCodeQuotaExceeded,
		Message:  fmt.Sprintf("%sモードの本日の利用上限（%d回）に達しました。", mode, limit),
		Category: "usage",
		Action:   "明日まで待つか、プレミアムプランにアップグレードしてください。",
	}
}

// NewPersistenceFailureError はデータ保存失敗エラーを生成する。
func NewPersistenceFailureError() *APIError {
	return &APIError{
		Code:     ErrCodePersistenceFailure,
		Message:  "データの保存に失敗しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewInvalidModeError は無効なモードのエラーを生成する。
func NewInvalidModeError(mode string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidMode,
		Message:  fmt.Sprintf("無効なモードです: %s", mode),
		Category: "validation",
		Action:   "モードには therapy、unsaid、closure のいずれかを指定してください。",
	}
}

// NewInvalidTierError は無効なプランのエラーを生成する。
func NewInvalidTierError(tier string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidTier,
		Message:  fmt.Sprintf("無効なプランです: %s", tier),
		Category: "validation",
		Action:   "プランには guest、free、premium のいずれかを指定してください。",
	}
}

// NewInvalidSenderError は無効な送信者のエラーを生成する。
func NewInvalidSenderError(sender string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidSender,
		Message:  fmt.Sprintf("無効な送信者です: %s", sender),
		Category: "validation",
		Action:   "送信者には user または ai を指定してください。",
	}
}

// NewInvalidTitleError は空のタイトルを指定した場合のエラーを生成する。
func NewInvalidTitleError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidTitle,
		Message:  "タイトルが空です。",
		Category: "validation",
		Action:   "1文字以上のタイトルを入力してください。",
	}
}

// NewInvalidSettingsError は無効な設定値のエラーを生成する。
func NewInvalidSettingsError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidSettings,
		Message:  fmt.Sprintf("無効な設定値です: %s", reason),
		Category: "validation",
		Action:   "テーマには light または dark を指定してください。",
	}
}

// NewEmptyMessageError は空メッセージのエラーを生成する。
func NewEmptyMessageError() *APIError {
	return &APIError{
		Code:     ErrCodeEmptyMessage,
		Message:  "メッセージが空です。",
		Category: "validation",
		Action:   "メッセージを入力してください。",
	}
}

// NewEmptyAnswerError は空回答のエラーを生成する。
func NewEmptyAnswerError() *APIError {
	return &APIError{
		Code:     ErrCodeEmptyAnswer,
		Message:  "回答が空です。",
		Category: "validation",
		Action:   "回答を入力してください。",
	}
}

// NewInvalidMemoryError は思い出の登録内容が不正な場合のエラーを生成する。
func NewInvalidMemoryError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidMemory,
		Message:  fmt.Sprintf("思い出の登録内容が不正です: %s", reason),
		Category: "validation",
		Action:   "タイトルと本文を入力してください。",
	}
}

// NewReplyFailedError は応答生成に失敗した場合のエラーを生成する。
func NewReplyFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeReplyFailed,
		Message:  "応答の生成に失敗しました。",
		Category: "chat",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
