package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ZackRenwick/Scout-Inventory-sub000/internal/clock"
	"github.com/ZackRenwick/Scout-Inventory-sub000/internal/kvstore"
	"github.com/ZackRenwick/Scout-Inventory-sub000/internal/model"
	"github.com/ZackRenwick/Scout-Inventory-sub000/internal/session"
)

func newSessionEnv(t *testing.T) (*session.Manager, *clock.Fake, *model.Session) {
	t.Helper()
	clk := clock.NewFake(time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))
	store := kvstore.NewMemoryStore(clk)
	mgr := session.NewManager(store, clk, time.Hour, nil)
	sess, err := mgr.Create(context.Background(), &model.User{
		ID:       "user-1",
		Username: "taro",
		Role:     model.RoleManager,
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	return mgr, clk, sess
}

func okHandler(t *testing.T, captured **model.Session) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := SessionFromContext(r.Context())
		if err != nil {
			t.Errorf("SessionFromContext() error = %v", err)
		}
		if captured != nil {
			*captured = sess
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestSessionMiddleware_ValidCookie(t *testing.T) {
	mgr, _, sess := newSessionEnv(t)
	var captured *model.Session
	handler := NewSessionMiddleware(mgr, CookieConfig{})(okHandler(t, &captured))

	req := httptest.NewRequest(http.MethodGet, "/api/items", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: sess.ID})
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if captured == nil || captured.UserID != "user-1" {
		t.Errorf("captured session = %+v, want UserID user-1", captured)
	}

	// ローリング方式: 通過のたびにCookieが再発行される
	found := false
	for _, c := range rec.Result().Cookies() {
		if c.Name == SessionCookieName && c.Value == sess.ID {
			found = true
			if !c.HttpOnly {
				t.Error("reissued session cookie is not HttpOnly")
			}
		}
	}
	if !found {
		t.Error("session cookie was not reissued")
	}
}

func TestSessionMiddleware_MissingCookie(t *testing.T) {
	mgr, _, _ := newSessionEnv(t)
	handler := NewSessionMiddleware(mgr, CookieConfig{})(okHandler(t, nil))

	req := httptest.NewRequest(http.MethodGet, "/api/items", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestSessionMiddleware_ExpiredSession(t *testing.T) {
	mgr, clk, sess := newSessionEnv(t)
	handler := NewSessionMiddleware(mgr, CookieConfig{})(okHandler(t, nil))

	clk.Advance(2 * time.Hour)

	req := httptest.NewRequest(http.MethodGet, "/api/items", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: sess.ID})
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestSessionMiddleware_RollingExtensionKeepsSessionAlive(t *testing.T) {
	mgr, clk, sess := newSessionEnv(t)
	handler := NewSessionMiddleware(mgr, CookieConfig{})(okHandler(t, nil))

	// 満了期間1時間に対し、50分間隔のアクセスを繰り返しても失効しない
	for i := 0; i < 4; i++ {
		clk.Advance(50 * time.Minute)
		req := httptest.NewRequest(http.MethodGet, "/api/items", nil)
		req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: sess.ID})
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("access %d: status = %d, want %d", i+1, rec.Code, http.StatusOK)
		}
	}
}
