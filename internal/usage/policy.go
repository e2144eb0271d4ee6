package usage

import "github.com/hitoshi/unsaid/internal/model"

// Unlimited は上限なしを表すLimitの戻り値。
const Unlimited = -1

// Limits はモードごとの1日あたりの上限回数。
type Limits struct {
	Therapy int
	Unsaid  int
	Closure int
}

// DefaultFreeLimits は無料プランの上限を返す。
func DefaultFreeLimits() Limits {
	return Limits{Therapy: 3, Unsaid: 1, Closure: 1}
}

// Policy はプランに応じた利用可否を判定する。
// premiumは無制限、freeとguestはFreeの上限に従う。
type Policy struct {
	Free Limits
}

// NewPolicy はPolicyを生成する。
func NewPolicy(free Limits) Policy {
	return Policy{Free: free}
}

// Limit はtierとmodeに対する上限回数を返す。無制限の場合はUnlimitedを返す。
func (p Policy) Limit(tier model.Tier, mode model.Mode) int {
	if tier == model.TierPremium {
		return Unlimited
	}
	switch mode {
	case model.ModeTherapy:
		return p.Free.Therapy
	case model.ModeUnsaid:
		return p.Free.Unsaid
	case model.ModeClosure:
		return p.Free.Closure
	default:
		return 0
	}
}

// Allowed は本日の回数countで、もう1回送信できるかどうかを返す。
func (p Policy) Allowed(tier model.Tier, mode model.Mode, count int) bool {
	limit := p.Limit(tier, mode)
	return limit == Unlimited || count < limit
}

// ModeSummary はプロフィール画面向けのモード別利用状況。
type ModeSummary struct {
	Mode      model.Mode `json:"mode"`
	Count     int        `json:"count"`
	Limit     int        `json:"limit"`
	Unlimited bool       `json:"unlimited"`
}

// Summary は利用状況のまとめ。
type Summary struct {
	Tier      model.Tier    `json:"tier"`
	Modes     []ModeSummary `json:"modes"`
	Total     int           `json:"total"`
	LastReset string        `json:"lastReset"`
}

// Summarize はstatsをtierの上限と合わせてまとめる。
func (p Policy) Summarize(tier model.Tier, stats model.UsageStats) Summary {
	s := Summary{Tier: tier, Total: stats.Total(), LastReset: stats.LastReset}
	for _, mode := range model.Modes() {
		limit := p.Limit(tier, mode)
		s.Modes = append(s.Modes, ModeSummary{
			Mode:      mode,
			Count:     stats.Count(mode),
			Limit:     limit,
			Unlimited: limit == Unlimited,
		})
	}
	return s
}
