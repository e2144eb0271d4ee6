package reply

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/hitoshi/unsaid/internal/model"
)

// TemplateResponder はモードごとの定型文から一様ランダムに1つ選んで返す。
// 入力本文は応答内容に影響しない。
type TemplateResponder struct {
	catalog         Catalog
	simulateLatency bool
	intN            func(n int) int
}

// TemplateOption はTemplateResponderの設定を変更する。
type TemplateOption func(*TemplateResponder)

// WithoutLatency は擬似遅延を無効にする。
func WithoutLatency() TemplateOption {
	return func(r *TemplateResponder) { r.simulateLatency = false }
}

// WithIntN は乱数関数を差し替える。fは[0, n)の整数を返すこと。
func WithIntN(f func(n int) int) TemplateOption {
	return func(r *TemplateResponder) { r.intN = f }
}

// NewTemplateResponder はTemplateResponderを生成する。
func NewTemplateResponder(catalog Catalog, opts ...TemplateOption) *TemplateResponder {
	r := &TemplateResponder{
		catalog:         catalog,
		simulateLatency: true,
		intN:            rand.IntN,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Generate はモードの擬似遅延の後に定型文を返す。
// closureモードで相手の名前がある場合は名前入りのテンプレートを使う。
func (r *TemplateResponder) Generate(ctx context.Context, req Request) (string, error) {
	candidates := r.catalog.Replies[req.Mode]
	name := strings.TrimSpace(req.PersonName)
	usePerson := req.Mode == model.ModeClosure && name != "" && len(r.catalog.PersonTemplates) > 0
	if usePerson {
		candidates = r.catalog.PersonTemplates
	}
	if len(candidates) == 0 {
		return "", fmt.Errorf("no reply templates for mode %q", req.Mode)
	}

	if r.simulateLatency {
		if err := sleep(ctx, r.catalog.Latency[req.Mode]); err != nil {
			return "", err
		}
	} else if err := ctx.Err(); err != nil {
		return "", err
	}

	text := candidates[r.intN(len(candidates))]
	if usePerson {
		text = strings.ReplaceAll(text, PersonNamePlaceholder, name)
	}
	return text, nil
}

// sleep はdだけ待つ。ctxが先に終了した場合はctx.Err()を返す。
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// compile-time interface check
var _ Responder = (*TemplateResponder)(nil)
