// Package notify は期限超過貸出と開催間近の計画のリマインド通知を提供する。
// ワーカープロセスが複数起動していても、通知の日次実行はちょうど1つの
// プロセスだけが担当する（claimガードによる排他）。
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/ZackRenwick/Scout-Inventory-sub000/internal/clock"
	"github.com/ZackRenwick/Scout-Inventory-sub000/internal/kvstore"
)

var claimKey = kvstore.Key{"notifications", "last_run"}

// ClaimGuard は通知の日次実行権をcompare-and-setで1プロセスに割り当てる。
// キーには最後に実行したUTC日付（YYYY-MM-DD）を保存し、同日の値が既に
// あれば実行済みと判断する。分散ロックではなく「同じ日に2回走らない」
// ことだけを保証する。
type ClaimGuard struct {
	store kvstore.Store
	clock clock.Clock
}

// NewClaimGuard はClaimGuardを生成する。clkがnilの場合は実時刻を使用する。
func NewClaimGuard(store kvstore.Store, clk clock.Clock) *ClaimGuard {
	if clk == nil {
		clk = clock.Real{}
	}
	return &ClaimGuard{store: store, clock: clk}
}

// TryClaim は今日（UTC）の実行権の取得を試みる。取得できた場合のみtrueを
// 返す。他プロセスが既に今日の実行権を取得済みの場合、またはCAS競合で
// 負けた場合はfalseを返す。
func (g *ClaimGuard) TryClaim(ctx context.Context) (bool, error) {
	today := g.clock.Now().UTC().Format("2006-01-02")

	raw, err := g.store.Get(ctx, claimKey)
	if err != nil {
		return false, fmt.Errorf("failed to read claim key: %w", err)
	}
	if string(raw) == today {
		return false, nil
	}

	// 読み取った値をそのまま期待値にしてCASする。読み取りとCASの間に
	// 他プロセスが先に取得した場合はここで負ける。
	ok, err := g.store.CompareAndSet(ctx, claimKey, raw, []byte(today), nil)
	if err != nil {
		return false, fmt.Errorf("failed to claim notification run: %w", err)
	}
	return ok, nil
}

// LastRun は最後に通知を実行したUTC日付を返す。未実行の場合はゼロ値。
func (g *ClaimGuard) LastRun(ctx context.Context) (time.Time, error) {
	raw, err := g.store.Get(ctx, claimKey)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to read claim key: %w", err)
	}
	if raw == nil {
		return time.Time{}, nil
	}
	t, err := time.Parse("2006-01-02", string(raw))
	if err != nil {
		return time.Time{}, fmt.Errorf("corrupt claim value %q: %w", raw, err)
	}
	return t, nil
}
