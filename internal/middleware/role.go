package middleware

import (
	"log/slog"
	"net/http"

	"github.com/ZackRenwick/Scout-Inventory-sub000/internal/model"
)

// NewRequireRoleMiddleware は指定ロール以上の権限を要求するミドルウェアを返す。
// ロールはセッションに保存されたスナップショットから判定する
// （viewer < manager < admin）。権限不足は403で拒否する。
// セッションミドルウェアの内側に配置すること。
func NewRequireRoleMiddleware(minimum model.Role) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, err := SessionFromContext(r.Context())
			if err != nil {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			if !sess.Role.AtLeast(minimum) {
				slog.Warn("権限不足のリクエストを拒否しました",
					slog.String("user_id", sess.UserID),
					slog.String("role", string(sess.Role)),
					slog.String("required", string(minimum)),
					slog.String("path", r.URL.Path),
				)
				WriteErrorResponse(w, http.StatusForbidden, model.NewForbiddenError())
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
