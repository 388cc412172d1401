package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/ZackRenwick/Scout-Inventory-sub000/internal/model"
)

func rateLimitedRequest(userID string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/items", nil)
	return req.WithContext(ContextWithSession(req.Context(), &model.Session{
		ID:     "sess-" + userID,
		UserID: userID,
		Role:   model.RoleViewer,
	}))
}

func TestRateLimiter_GeneralMiddleware(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		GeneralRate:     rate.Limit(1),
		GeneralBurst:    3,
		StockTakeRate:   rate.Limit(1),
		StockTakeBurst:  1,
		CleanupInterval: time.Minute,
	})
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// バースト上限までは通過
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, rateLimitedRequest("user-1"))
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want %d", i+1, rec.Code, http.StatusOK)
		}
	}

	// 上限超過で429 + Retry-After
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, rateLimitedRequest("user-1"))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusTooManyRequests)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("Retry-After header is missing")
	}

	// 別ユーザーは巻き添えにならない
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, rateLimitedRequest("user-2"))
	if rec.Code != http.StatusOK {
		t.Errorf("other user: status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestRateLimiter_StockTakeIndependentOfGeneral(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		GeneralRate:     rate.Limit(100),
		GeneralBurst:    100,
		StockTakeRate:   rate.Limit(0.01),
		StockTakeBurst:  1,
		CleanupInterval: time.Minute,
	})
	defer rl.Stop()

	general := rl.GeneralMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	stockTake := rl.StockTakeMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	stockTake.ServeHTTP(rec, rateLimitedRequest("user-1"))
	if rec.Code != http.StatusOK {
		t.Fatalf("first stocktake: status = %d, want %d", rec.Code, http.StatusOK)
	}

	rec = httptest.NewRecorder()
	stockTake.ServeHTTP(rec, rateLimitedRequest("user-1"))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second stocktake: status = %d, want %d", rec.Code, http.StatusTooManyRequests)
	}

	// 棚卸しの制限はAPI全般には波及しない
	rec = httptest.NewRecorder()
	general.ServeHTTP(rec, rateLimitedRequest("user-1"))
	if rec.Code != http.StatusOK {
		t.Errorf("general after stocktake limit: status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestRateLimiter_UnauthenticatedRejected(t *testing.T) {
	rl := NewRateLimiter(DefaultRateLimiterConfig())
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/items", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}
