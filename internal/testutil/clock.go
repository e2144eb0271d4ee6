// Package testutil はテスト用のスタブを提供する。
package testutil

import (
	"fmt"
	"sync"
	"time"
)

// StubClock は固定時刻を返す。並行利用に安全。
type StubClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewStubClock は指定時刻のStubClockを生成する。
func NewStubClock(t time.Time) *StubClock {
	return &StubClock{now: t}
}

// FixedClock は2026-10-15 10:30:00 UTCのStubClockを返す。
func FixedClock() *StubClock {
	return NewStubClock(time.Date(2026, 10, 15, 10, 30, 0, 0, time.UTC))
}

// Now は現在のスタブ時刻を返す。
func (c *StubClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance はスタブ時刻をdだけ進める。
func (c *StubClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// StubIDGenerator は "id-1", "id-2" ... の連番IDを返す。
type StubIDGenerator struct {
	mu      sync.Mutex
	counter int
}

// NewStubIDGenerator はStubIDGeneratorを生成する。
func NewStubIDGenerator() *StubIDGenerator {
	return &StubIDGenerator{}
}

// New は次の連番IDを返す。
func (g *StubIDGenerator) New() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.counter++
	return fmt.Sprintf("id-%d", g.counter)
}
