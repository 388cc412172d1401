// Package session はローリング方式のセッション管理を提供する。
// セッション本体（["sessions", id]）とユーザー別の二次インデックス
// （["user_sessions", userID, id]）を同一TTLで維持し、
// パスワード変更時の全セッション一括無効化を全件走査なしで行えるようにする。
package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ZackRenwick/Scout-Inventory-sub000/internal/clock"
	"github.com/ZackRenwick/Scout-Inventory-sub000/internal/kvstore"
	"github.com/ZackRenwick/Scout-Inventory-sub000/internal/model"
)

const (
	// keyPrefixSessions はセッション本体のキー名前空間。
	keyPrefixSessions = "sessions"
	// keyPrefixUserSessions はユーザー→セッションの二次インデックスの名前空間。
	keyPrefixUserSessions = "user_sessions"
)

// Manager はセッションのライフサイクルを管理する。
// 状態遷移は Active →（更新）→ Active →（期限切れ | 明示削除）→ 消滅 のみ。
type Manager struct {
	store  kvstore.Store
	clock  clock.Clock
	maxAge time.Duration
	logger *slog.Logger
}

// NewManager はManagerを生成する。
// clkがnilの場合は実時刻、loggerがnilの場合はslog.Defaultを使用する。
func NewManager(store kvstore.Store, clk clock.Clock, maxAge time.Duration, logger *slog.Logger) *Manager {
	if clk == nil {
		clk = clock.Real{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		store:  store,
		clock:  clk,
		maxAge: maxAge,
		logger: logger,
	}
}

// MaxAge はセッションの有効期間を返す。Cookie属性のMax-Age設定に使用する。
func (m *Manager) MaxAge() time.Duration {
	return m.maxAge
}

// Create はユーザーの新規セッションを発行する。
// セッションIDとCSRFトークンはそれぞれ暗号的に安全な乱数から生成し、
// 本体と二次インデックスを同一TTLで書き込む。
func (m *Manager) Create(ctx context.Context, user *model.User) (*model.Session, error) {
	id, err := generateToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}
	csrfToken, err := generateToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate CSRF token: %w", err)
	}

	now := m.clock.Now()
	sess := &model.Session{
		ID:        id,
		UserID:    user.ID,
		Username:  user.Username,
		Role:      user.Role,
		CSRFToken: csrfToken,
		ExpiresAt: now.Add(m.maxAge),
		CreatedAt: now,
	}

	if err := m.write(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Get はセッションを取得する。存在しない場合は (nil, nil)。
// ストア側のTTL掃引が遅延していても、expiresAtを過ぎたセッションは
// その場で削除してnilを返す（アプリ層での二重防御）。
func (m *Manager) Get(ctx context.Context, id string) (*model.Session, error) {
	if id == "" {
		return nil, nil
	}

	raw, err := m.store.Get(ctx, kvstore.Key{keyPrefixSessions, id})
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if raw == nil {
		return nil, nil
	}

	var sess model.Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}

	if !m.clock.Now().Before(sess.ExpiresAt) {
		if err := m.Delete(ctx, id); err != nil {
			m.logger.Warn("期限切れセッションの削除に失敗しました",
				slog.String("session_id", id),
				slog.String("error", err.Error()),
			)
		}
		return nil, nil
	}

	return &sess, nil
}

// Extend はセッションの有効期限を now + maxAge に延長する（ローリング更新）。
// 本体と二次インデックスの両方を書き直し、両者のTTLを揃える。
// セッションが既に存在しない場合は (nil, nil) を返す。
// 呼び出し側はnilを「ログアウト済み」として扱うこと。
func (m *Manager) Extend(ctx context.Context, id string) (*model.Session, error) {
	sess, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, nil
	}

	sess.ExpiresAt = m.clock.Now().Add(m.maxAge)
	if err := m.write(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Delete はセッション本体と二次インデックスエントリを削除する。
// インデックスエントリの削除にはuserIdが必要なため、本体が既に消えている
// 場合でも可能な範囲で後始末する。
func (m *Manager) Delete(ctx context.Context, id string) error {
	raw, err := m.store.Get(ctx, kvstore.Key{keyPrefixSessions, id})
	if err != nil {
		return fmt.Errorf("failed to get session for delete: %w", err)
	}

	if err := m.store.Delete(ctx, kvstore.Key{keyPrefixSessions, id}); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	if raw != nil {
		var sess model.Session
		if err := json.Unmarshal(raw, &sess); err == nil {
			if err := m.store.Delete(ctx, kvstore.Key{keyPrefixUserSessions, sess.UserID, id}); err != nil {
				// インデックスエントリの取り残しはベストエフォートで許容する
				m.logger.Warn("セッションインデックスの削除に失敗しました",
					slog.String("session_id", id),
					slog.String("error", err.Error()),
				)
			}
		}
	}
	return nil
}

// DeleteAllForUser はユーザーの全セッションを削除する。
// パスワード変更後に全端末で再ログインを強制するための操作。
// 二次インデックスをプレフィックス列挙し、各セッションを並行に削除する。
// ベストエフォートのセキュリティ操作であり、一部の削除失敗はログに残すだけで
// 全体を中断しない。
func (m *Manager) DeleteAllForUser(ctx context.Context, userID string) error {
	entries, err := m.store.List(ctx, kvstore.Key{keyPrefixUserSessions, userID})
	if err != nil {
		return fmt.Errorf("failed to list user sessions: %w", err)
	}

	var wg sync.WaitGroup
	for _, entry := range entries {
		sessionID := entry.Key[len(entry.Key)-1]
		wg.Add(1)
		go func(sid string, indexKey kvstore.Key) {
			defer wg.Done()
			if err := m.store.Delete(ctx, kvstore.Key{keyPrefixSessions, sid}); err != nil {
				m.logger.Warn("セッションの一括削除で1件失敗しました",
					slog.String("user_id", userID),
					slog.String("session_id", sid),
					slog.String("error", err.Error()),
				)
			}
			if err := m.store.Delete(ctx, indexKey); err != nil {
				m.logger.Warn("セッションインデックスの一括削除で1件失敗しました",
					slog.String("user_id", userID),
					slog.String("session_id", sid),
					slog.String("error", err.Error()),
				)
			}
		}(sessionID, entry.Key)
	}
	wg.Wait()

	m.logger.Info("ユーザーの全セッションを削除しました",
		slog.String("user_id", userID),
		slog.Int("session_count", len(entries)),
	)
	return nil
}

// write はセッション本体と二次インデックスを残り有効期間のTTL付きで書き込む。
func (m *Manager) write(ctx context.Context, sess *model.Session) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	ttl := sess.ExpiresAt.Sub(m.clock.Now())
	opts := &kvstore.SetOptions{TTL: ttl}

	if err := m.store.Set(ctx, kvstore.Key{keyPrefixSessions, sess.ID}, raw, opts); err != nil {
		return fmt.Errorf("failed to write session: %w", err)
	}
	if err := m.store.Set(ctx, kvstore.Key{keyPrefixUserSessions, sess.UserID, sess.ID}, []byte("1"), opts); err != nil {
		return fmt.Errorf("failed to write session index: %w", err)
	}
	return nil
}

// generateToken は暗号的に安全な32バイトの乱数トークンを生成する。
func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
