// Package ratelimit はログイン試行の失敗回数制限を提供する。
// 識別子（ユーザー名）単位で失敗を数え、閾値超過で時限ロックアウトする。
// IPではなく識別子を単位にするのは、NAT共有ユーザーを巻き添えにせず
// 単一アカウントへのリスト型攻撃を止めるため。
// 並行するログイン試行は日常的に起こるため、カウンタの読み書きは
// read-then-writeではなくストアのcompare-and-setで行う。
package ratelimit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ZackRenwick/Scout-Inventory-sub000/internal/clock"
	"github.com/ZackRenwick/Scout-Inventory-sub000/internal/kvstore"
)

// keyPrefix はレート制限エントリのキー名前空間。
const keyPrefix = "ratelimit"

// casRetries はCAS競合時の再試行上限。
const casRetries = 5

// entry はストアに格納する失敗カウンタ。
type entry struct {
	Attempts    int        `json:"attempts"`
	LockedUntil *time.Time `json:"locked_until,omitempty"`
}

// Status はCheckの結果を表す。
type Status struct {
	// Blocked はロックアウト中であることを示す。
	Blocked bool
	// Remaining はロックアウトまでの残り試行回数。
	Remaining int
	// RetryAfter はロックアウト解除までの残り時間（Blockedの場合のみ）。
	RetryAfter time.Duration
}

// Limiter は識別子単位のログイン失敗カウンタ。
type Limiter struct {
	store       kvstore.Store
	clock       clock.Clock
	maxAttempts int
	window      time.Duration
}

// NewLimiter はLimiterを生成する。clkがnilの場合は実時刻を使用する。
// maxAttempts回の失敗でwindowの間ロックアウトする。
func NewLimiter(store kvstore.Store, clk clock.Clock, maxAttempts int, window time.Duration) *Limiter {
	if clk == nil {
		clk = clock.Real{}
	}
	return &Limiter{
		store:       store,
		clock:       clk,
		maxAttempts: maxAttempts,
		window:      window,
	}
}

// Check は識別子の現在の制限状態を返す。
func (l *Limiter) Check(ctx context.Context, identifier string) (Status, error) {
	raw, err := l.store.Get(ctx, l.key(identifier))
	if err != nil {
		return Status{}, fmt.Errorf("failed to get rate limit entry: %w", err)
	}
	if raw == nil {
		return Status{Remaining: l.maxAttempts}, nil
	}

	var e entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return Status{}, fmt.Errorf("failed to decode rate limit entry: %w", err)
	}

	now := l.clock.Now()
	if e.LockedUntil != nil && now.Before(*e.LockedUntil) {
		return Status{Blocked: true, RetryAfter: e.LockedUntil.Sub(now)}, nil
	}

	remaining := l.maxAttempts - e.Attempts
	if remaining < 0 {
		remaining = 0
	}
	return Status{Remaining: remaining}, nil
}

// RecordFailure は失敗を1回記録する。
// 期限切れのロックアウトが残っている場合はカウンタを0に戻してから加算し、
// 閾値到達時にLockedUntilを設定する。エントリ全体にTTL=windowを付与するため、
// 放置されたカウンタはロックアウトごと自動失効する。
// 書き込みはCASで行い、並行する失敗記録と競合した場合は読み直して再試行する。
func (l *Limiter) RecordFailure(ctx context.Context, identifier string) error {
	key := l.key(identifier)

	for i := 0; i < casRetries; i++ {
		raw, err := l.store.Get(ctx, key)
		if err != nil {
			return fmt.Errorf("failed to get rate limit entry: %w", err)
		}

		var e entry
		if raw != nil {
			if err := json.Unmarshal(raw, &e); err != nil {
				// 壊れたエントリは新規カウンタとして数え直す
				e = entry{}
				raw = nil
			}
		}

		now := l.clock.Now()
		if e.LockedUntil != nil && !now.Before(*e.LockedUntil) {
			// 過去のロックアウトが残っている場合はまずリセット
			e = entry{}
		}

		e.Attempts++
		if e.Attempts >= l.maxAttempts {
			lockedUntil := now.Add(l.window)
			e.LockedUntil = &lockedUntil
		}

		newRaw, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("failed to encode rate limit entry: %w", err)
		}

		ok, err := l.store.CompareAndSet(ctx, key, raw, newRaw, &kvstore.SetOptions{TTL: l.window})
		if err != nil {
			return fmt.Errorf("failed to write rate limit entry: %w", err)
		}
		if ok {
			return nil
		}
		// CAS競合: 他のリクエストが先に書いたので読み直す
	}
	return fmt.Errorf("failed to record login failure for %q after %d cas retries", identifier, casRetries)
}

// Reset はカウンタを削除する。ログイン成功時に呼び出す。
func (l *Limiter) Reset(ctx context.Context, identifier string) error {
	if err := l.store.Delete(ctx, l.key(identifier)); err != nil {
		return fmt.Errorf("failed to reset rate limit entry: %w", err)
	}
	return nil
}

func (l *Limiter) key(identifier string) kvstore.Key {
	return kvstore.Key{keyPrefix, identifier}
}
