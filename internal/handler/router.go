package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ZackRenwick/Scout-Inventory-sub000/internal/middleware"
	"github.com/ZackRenwick/Scout-Inventory-sub000/internal/model"
)

// HealthChecker はDB疎通確認のためのインターフェース。*sql.DBが満たす。
type HealthChecker interface {
	Ping() error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Sessions          middleware.SessionExtender
	CookieConfig      middleware.CookieConfig
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger

	// 運用エンドポイント
	HealthChecker  HealthChecker
	MetricsHandler http.Handler
	StatusRecorder middleware.HTTPStatusRecorder

	// サービス
	AuthService AuthServiceInterface
	ItemService ItemServiceInterface
	PlanService PlanServiceInterface
	LoanService LoanServiceInterface
	UserService UserServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを
// 構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	SecurityHeaders → Logging → Recovery → CORS
//	→ (保護ルートのみ) Session → CSRF → RateLimit(General) → (必要に応じて) Role
//
// ログインだけはセッションなしで到達できる必要があるため保護グループの
// 外に置く。閲覧はviewer以上、在庫・計画・貸出の変更はmanager以上、
// ユーザー管理はadmin専用。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewMetricsMiddleware(deps.StatusRecorder))
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	authHandler := NewAuthHandler(deps.AuthService, deps.CookieConfig)
	itemHandler := NewItemHandler(deps.ItemService)
	planHandler := NewPlanHandler(deps.PlanService)
	loanHandler := NewLoanHandler(deps.LoanService)
	userHandler := NewUserHandler(deps.UserService)

	// --- 認証不要のルート ---
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		if deps.HealthChecker != nil {
			if err := deps.HealthChecker.Ping(); err != nil {
				logger.Error("ヘルスチェック失敗", slog.String("error", err.Error()))
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	r.Post("/auth/login", authHandler.Login)

	// --- 認証が必要なルート ---
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.Sessions, deps.CookieConfig))
		r.Use(middleware.NewCSRFMiddleware())
		r.Use(deps.RateLimiter.GeneralMiddleware())

		requireManager := middleware.NewRequireRoleMiddleware(model.RoleManager)
		requireAdmin := middleware.NewRequireRoleMiddleware(model.RoleAdmin)

		// セッション管理
		r.Route("/api/auth", func(r chi.Router) {
			r.Post("/logout", authHandler.Logout)
			r.Get("/me", authHandler.Me)
			r.Post("/password", authHandler.ChangePassword)
			r.Method(http.MethodGet, "/csrf-token", middleware.NewCSRFTokenHandler())
		})

		// 装備品在庫
		r.Route("/api/items", func(r chi.Router) {
			r.Get("/", itemHandler.ListItems)
			r.With(requireManager).Post("/", itemHandler.CreateItem)

			// 棚卸しは専用レート制限を重ねる
			r.With(requireManager, deps.RateLimiter.StockTakeMiddleware()).
				Post("/stocktake", itemHandler.StockTake)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", itemHandler.GetItem)
				r.With(requireManager).Put("/", itemHandler.UpdateItem)
				r.With(requireManager).Delete("/", itemHandler.DeleteItem)
			})
		})

		// キャンプ計画
		r.Route("/api/plans", func(r chi.Router) {
			r.Get("/", planHandler.ListPlans)
			r.With(requireManager).Post("/", planHandler.CreatePlan)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", planHandler.GetPlan)
				r.With(requireManager).Put("/", planHandler.UpdatePlan)
				r.With(requireManager).Delete("/", planHandler.DeletePlan)
			})
		})

		// 貸出
		r.Route("/api/loans", func(r chi.Router) {
			r.Get("/", loanHandler.ListLoans)
			r.With(requireManager).Post("/", loanHandler.CreateLoan)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", loanHandler.GetLoan)
				r.With(requireManager).Post("/return", loanHandler.ReturnLoan)
				r.With(requireManager).Delete("/", loanHandler.CancelLoan)
			})
		})

		// ユーザー管理（admin専用）
		r.Route("/api/users", func(r chi.Router) {
			r.Use(requireAdmin)
			r.Get("/", userHandler.ListUsers)
			r.Post("/", userHandler.CreateUser)
			r.Delete("/{id}", userHandler.DeleteUser)
		})
	})

	return r
}
