// Package clock は現在時刻の取得を抽象化する。
// セッション有効期限やロックアウト判定のテストで時刻を決定的に進めるため、
// time.Now()の直接呼び出しを禁止し、このインターフェース経由で時刻を取得する。
package clock

import (
	"sync"
	"time"
)

// Clock は現在時刻を返すインターフェース。
type Clock interface {
	// Now は現在時刻を返す。
	Now() time.Time
}

// Real は実時刻を返すClock実装。本番で使用する。
type Real struct{}

// Now は time.Now() を返す。
func (Real) Now() time.Time {
	return time.Now()
}

// Fake はテスト用の固定時刻Clock実装。
// Advanceで時刻を任意に進めることができる。
type Fake struct {
	mu  sync.Mutex
	now time.Time
}

// NewFake は指定時刻で初期化したFakeを生成する。
func NewFake(now time.Time) *Fake {
	return &Fake{now: now}
}

// Now は設定された現在時刻を返す。
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Advance は現在時刻をdだけ進める。
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

// Set は現在時刻をtに設定する。
func (f *Fake) Set(t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = t
}

var _ Clock = Real{}
var _ Clock = (*Fake)(nil)
