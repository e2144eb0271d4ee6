package usage

import (
	"testing"

	"github.com/hitoshi/unsaid/internal/model"
)

func TestPolicy_Allowed(t *testing.T) {
	p := NewPolicy(DefaultFreeLimits())

	tests := []struct {
		tier  model.Tier
		mode  model.Mode
		count int
		want  bool
	}{
		{model.TierFree, model.ModeTherapy, 2, true},
		{model.TierFree, model.ModeTherapy, 3, false},
		{model.TierFree, model.ModeUnsaid, 0, true},
		{model.TierFree, model.ModeUnsaid, 1, false},
		{model.TierFree, model.ModeClosure, 1, false},
		{model.TierGuest, model.ModeTherapy, 3, false},
		{model.TierGuest, model.ModeClosure, 0, true},
		{model.TierPremium, model.ModeTherapy, 1000, true},
		{model.TierPremium, model.ModeClosure, 50, true},
	}
	for _, tt := range tests {
		if got := p.Allowed(tt.tier, tt.mode, tt.count); got != tt.want {
			t.Errorf("Allowed(%s, %s, %d) = %v, want %v", tt.tier, tt.mode, tt.count, got, tt.want)
		}
	}
}

func TestPolicy_Summarize(t *testing.T) {
	p := NewPolicy(DefaultFreeLimits())
	stats := model.UsageStats{Therapy: 2, Closure: 1, LastReset: "2026-10-15"}

	free := p.Summarize(model.TierFree, stats)
	if free.Total != 3 {
		t.Errorf("Total = %d, want 3", free.Total)
	}
	if len(free.Modes) != 3 || free.Modes[0].Mode != model.ModeTherapy || free.Modes[0].Limit != 3 {
		t.Errorf("Modes = %+v", free.Modes)
	}

	premium := p.Summarize(model.TierPremium, stats)
	for _, m := range premium.Modes {
		if !m.Unlimited || m.Limit != Unlimited {
			t.Errorf("premium %s = %+v, want unlimited", m.Mode, m)
		}
	}
}
