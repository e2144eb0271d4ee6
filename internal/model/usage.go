// Package model はドメインモデルを定義する。
package model

// UsageStats はモードごとの当日利用回数を表す。
// LastResetはカウンタを最後にリセットした暦日（"2006-01-02"形式）。
type UsageStats struct {
	Therapy   int    `json:"therapy"`
	Unsaid    int    `json:"unsaid"`
	Closure   int    `json:"closure"`
	LastReset string `json:"lastReset"`
}

// Count は指定モードの回数を返す。
func (u UsageStats) Count(mode Mode) int {
	switch mode {
	case ModeTherapy:
		return u.Therapy
	case ModeUnsaid:
		return u.Unsaid
	case ModeClosure:
		return u.Closure
	default:
		return 0
	}
}

// WithCount は指定モードの回数を置き換えたコピーを返す。
func (u UsageStats) WithCount(mode Mode, n int) UsageStats {
	switch mode {
	case ModeTherapy:
		u.Therapy = n
	case ModeUnsaid:
		u.Unsaid = n
	case ModeClosure:
		u.Closure = n
	}
	return u
}

// Total は全モードの合計回数を返す。
func (u UsageStats) Total() int {
	return u.Therapy + u.Unsaid + u.Closure
}
