// Package clock は時刻取得とID生成を抽象化し、テストで決定的に扱えるようにする。
package clock

import (
	"time"

	"github.com/google/uuid"
)

// Clock は現在時刻を返す。
type Clock interface {
	Now() time.Time
}

// RealClock は実際の現在時刻を返す。
type RealClock struct{}

// Now は現在時刻を返す。
func (RealClock) Now() time.Time { return time.Now() }

// IDGenerator は一意なIDを生成する。
type IDGenerator interface {
	New() string
}

// UUIDGenerator はランダムなUUIDを生成する。
type UUIDGenerator struct{}

// New は新しいUUID文字列を返す。
func (UUIDGenerator) New() string { return uuid.New().String() }

// DateLayout は暦日の保存形式。
const DateLayout = "2006-01-02"

// Today はlocにおけるnowの暦日を返す。locがnilの場合はtime.Localを使う。
func Today(now time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return now.In(loc).Format(DateLayout)
}
