package session

import (
	"context"
	"testing"
	"time"

	"github.com/ZackRenwick/Scout-Inventory-sub000/internal/clock"
	"github.com/ZackRenwick/Scout-Inventory-sub000/internal/kvstore"
	"github.com/ZackRenwick/Scout-Inventory-sub000/internal/model"
)

func testUser() *model.User {
	return &model.User{
		ID:       "user-1",
		Username: "alice",
		Role:     model.RoleManager,
	}
}

func newTestManager(t *testing.T) (*Manager, *kvstore.MemoryStore, *clock.Fake) {
	t.Helper()
	clk := clock.NewFake(time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC))
	store := kvstore.NewMemoryStore(clk)
	return NewManager(store, clk, time.Hour, nil), store, clk
}

// TestManager_CreateAndGet はセッション発行と取得を検証する。
func TestManager_CreateAndGet(t *testing.T) {
	mgr, _, clk := newTestManager(t)
	ctx := context.Background()

	sess, err := mgr.Create(ctx, testUser())
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if len(sess.ID) != 64 {
		t.Errorf("session ID length = %d, want 64 hex chars", len(sess.ID))
	}
	if len(sess.CSRFToken) != 64 {
		t.Errorf("CSRF token length = %d, want 64 hex chars", len(sess.CSRFToken))
	}
	if sess.ID == sess.CSRFToken {
		t.Error("session ID and CSRF token must be independent random values")
	}
	if want := clk.Now().Add(time.Hour); !sess.ExpiresAt.Equal(want) {
		t.Errorf("ExpiresAt = %v, want %v", sess.ExpiresAt, want)
	}

	got, err := mgr.Get(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if got == nil {
		t.Fatal("Get should find the created session")
	}
	if got.UserID != "user-1" || got.Username != "alice" || got.Role != model.RoleManager {
		t.Errorf("session snapshot = %+v, want user-1/alice/manager", got)
	}
	if got.CSRFToken != sess.CSRFToken {
		t.Error("CSRF token must not change between reads")
	}
}

// TestManager_GetExpired は期限切れセッションがnilを返し、
// レコードも即座に消えることを検証する（TTL掃引の遅延に依存しない）。
func TestManager_GetExpired(t *testing.T) {
	mgr, store, clk := newTestManager(t)
	ctx := context.Background()

	sess, _ := mgr.Create(ctx, testUser())

	clk.Advance(time.Hour + time.Second)

	got, err := mgr.Get(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if got != nil {
		t.Fatal("expired session should return nil")
	}

	// 本体も二次インデックスも消えている
	entries, _ := store.List(ctx, kvstore.Key{"sessions"})
	if len(entries) != 0 {
		t.Errorf("expired session record still present: %d entries", len(entries))
	}
	entries, _ = store.List(ctx, kvstore.Key{"user_sessions", "user-1"})
	if len(entries) != 0 {
		t.Errorf("expired session index still present: %d entries", len(entries))
	}
}

// TestManager_ExtendRolling は期限内の繰り返しExtendが常に成功し、
// 期限が先送りされることを検証する。
func TestManager_ExtendRolling(t *testing.T) {
	mgr, _, clk := newTestManager(t)
	ctx := context.Background()

	sess, _ := mgr.Create(ctx, testUser())
	csrf := sess.CSRFToken

	// 50分ごとにExtendし続ければ期限切れにならない
	for i := 0; i < 5; i++ {
		clk.Advance(50 * time.Minute)
		got, err := mgr.Extend(ctx, sess.ID)
		if err != nil {
			t.Fatalf("Extend returned error: %v", err)
		}
		if got == nil {
			t.Fatalf("Extend before expiry should never return nil (iteration %d)", i)
		}
		if want := clk.Now().Add(time.Hour); !got.ExpiresAt.Equal(want) {
			t.Errorf("ExpiresAt after extend = %v, want %v", got.ExpiresAt, want)
		}
		if got.CSRFToken != csrf {
			t.Error("CSRF token must survive extension unchanged")
		}
	}
}

// TestManager_ExtendMissing は存在しないセッションのExtendがnilを返すことを検証する。
func TestManager_ExtendMissing(t *testing.T) {
	mgr, _, _ := newTestManager(t)

	got, err := mgr.Extend(context.Background(), "no-such-session")
	if err != nil {
		t.Fatalf("Extend returned error: %v", err)
	}
	if got != nil {
		t.Error("Extend on missing session should return nil (treat as logged out)")
	}
}

// TestManager_Delete はセッション削除でインデックスも消えることを検証する。
func TestManager_Delete(t *testing.T) {
	mgr, store, _ := newTestManager(t)
	ctx := context.Background()

	sess, _ := mgr.Create(ctx, testUser())

	if err := mgr.Delete(ctx, sess.ID); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}

	got, _ := mgr.Get(ctx, sess.ID)
	if got != nil {
		t.Error("deleted session should not be found")
	}
	entries, _ := store.List(ctx, kvstore.Key{"user_sessions", "user-1"})
	if len(entries) != 0 {
		t.Errorf("index entry leaked after delete: %d entries", len(entries))
	}
}

// TestManager_DeleteAllForUser はユーザーの全セッション削除を検証する。
// 他ユーザーのセッションには影響しないこと。
func TestManager_DeleteAllForUser(t *testing.T) {
	mgr, _, _ := newTestManager(t)
	ctx := context.Background()

	alice := testUser()
	bob := &model.User{ID: "user-2", Username: "bob", Role: model.RoleViewer}

	s1, _ := mgr.Create(ctx, alice)
	s2, _ := mgr.Create(ctx, alice)
	s3, _ := mgr.Create(ctx, bob)

	if err := mgr.DeleteAllForUser(ctx, alice.ID); err != nil {
		t.Fatalf("DeleteAllForUser returned error: %v", err)
	}

	if got, _ := mgr.Get(ctx, s1.ID); got != nil {
		t.Error("alice session 1 should be deleted")
	}
	if got, _ := mgr.Get(ctx, s2.ID); got != nil {
		t.Error("alice session 2 should be deleted")
	}
	if got, _ := mgr.Get(ctx, s3.ID); got == nil {
		t.Error("bob session should survive")
	}
}

// TestManager_DeleteAllForUser_DanglingIndex は参照先セッションが既に消えている
// インデックスエントリがあっても処理が中断しないことを検証する。
func TestManager_DeleteAllForUser_DanglingIndex(t *testing.T) {
	mgr, store, _ := newTestManager(t)
	ctx := context.Background()

	// 本体のないインデックスエントリを直接仕込む
	store.Set(ctx, kvstore.Key{"user_sessions", "user-1", "ghost-session"}, []byte("1"), nil)
	sess, _ := mgr.Create(ctx, testUser())

	if err := mgr.DeleteAllForUser(ctx, "user-1"); err != nil {
		t.Fatalf("DeleteAllForUser returned error: %v", err)
	}

	if got, _ := mgr.Get(ctx, sess.ID); got != nil {
		t.Error("real session should be deleted despite dangling index entry")
	}
	entries, _ := store.List(ctx, kvstore.Key{"user_sessions", "user-1"})
	if len(entries) != 0 {
		t.Errorf("dangling index entries should be garbage-collected, %d left", len(entries))
	}
}
