// Package usage はモードごとの1日あたり利用回数と利用上限を管理する。
package usage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/unsaid/internal/clock"
	"github.com/hitoshi/unsaid/internal/model"
	"github.com/hitoshi/unsaid/internal/repository"
)

// Reconcile はstatsの暦日がtodayと異なる場合に全カウンタを0にし、
// LastResetをtodayにした値を返す。同じ日であればそのまま返す。
func Reconcile(stats model.UsageStats, today string) model.UsageStats {
	if stats.LastReset == today {
		return stats
	}
	return model.UsageStats{LastReset: today}
}

// Tracker は unsaid-usage の唯一の書き込み主体。
// 日付のリセットは読み込み・更新時に遅延評価する。
type Tracker struct {
	mu    sync.Mutex
	repo  repository.KVRepository
	clock clock.Clock
	loc   *time.Location
}

// NewTracker はTrackerの新しいインスタンスを生成する。
// locは暦日の判定に使うタイムゾーン。nilの場合はtime.Localを使う。
func NewTracker(repo repository.KVRepository, clk clock.Clock, loc *time.Location) *Tracker {
	return &Tracker{repo: repo, clock: clk, loc: loc}
}

// Stats は本日分に補正した利用状況を返す。保存値は変更しない。
func (t *Tracker) Stats(ctx context.Context) (model.UsageStats, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	stats, err := t.load(ctx)
	if err != nil {
		return model.UsageStats{}, err
	}
	return Reconcile(stats, t.today()), nil
}

// GetCount は本日のmodeの利用回数を返す。保存値は変更しない。
func (t *Tracker) GetCount(ctx context.Context, mode model.Mode) (int, error) {
	stats, err := t.Stats(ctx)
	if err != nil {
		return 0, err
	}
	return stats.Count(mode), nil
}

// Increment は日付を補正した上でmodeの回数を1増やして保存する。
func (t *Tracker) Increment(ctx context.Context, mode model.Mode) (model.UsageStats, error) {
	if !mode.Valid() {
		return model.UsageStats{}, model.NewInvalidModeError(string(mode))
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	stats, err := t.load(ctx)
	if err != nil {
		return model.UsageStats{}, err
	}
	stats = Reconcile(stats, t.today())
	stats = stats.WithCount(mode, stats.Count(mode)+1)

	if err := t.save(ctx, stats); err != nil {
		return model.UsageStats{}, err
	}
	return stats, nil
}

// Reset は全カウンタを0にし、LastResetを本日にして保存する。
func (t *Tracker) Reset(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.save(ctx, model.UsageStats{LastReset: t.today()})
}

// Clear は利用状況を削除する。次回の読み込みでは本日分の0件として扱われる。
func (t *Tracker) Clear(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	return repository.DeleteKeys(ctx, t.repo, repository.KeyUsage)
}

func (t *Tracker) today() string {
	return clock.Today(t.clock.Now(), t.loc)
}

func (t *Tracker) load(ctx context.Context) (model.UsageStats, error) {
	var stats model.UsageStats
	if _, err := repository.GetJSON(ctx, t.repo, repository.KeyUsage, &stats); err != nil {
		if errors.Is(err, repository.ErrCorrupted) {
			slog.Warn("利用状況が破損しているため0件として扱います", slog.String("error", err.Error()))
			return model.UsageStats{}, nil
		}
		return model.UsageStats{}, fmt.Errorf("利用状況の読み込みに失敗しました: %w", err)
	}
	return stats, nil
}

func (t *Tracker) save(ctx context.Context, stats model.UsageStats) error {
	if err := repository.SetJSON(ctx, t.repo, repository.KeyUsage, stats); err != nil {
		slog.Error("利用状況の保存に失敗しました", slog.String("error", err.Error()))
		return fmt.Errorf("利用状況の保存に失敗しました: %w", err)
	}
	return nil
}
