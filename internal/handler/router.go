// Package handler は管理APIのHTTPハンドラーとルーティングを提供する。
package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/hitoshi/stockwatch/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger *slog.Logger

	// 管理者認証
	AdminUsername string
	AdminPassword string

	// 在庫テストのレート制限。nilの場合は制限しない
	StockTestLimiter *middleware.RateLimiter

	Products      ProductServiceInterface
	Monitors      MonitorServiceInterface
	Notifications NotificationLister
	Prober        StockProber

	DB             Pinger
	MetricsHandler http.Handler
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → Logging → Recovery → AdminAuth → (stock-testのみ) RateLimit
//
// /health と /metrics は認証の外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	r.Use(middleware.NewRecoveryMiddleware(deps.Logger))

	productHandler := NewProductHandler(deps.Products, deps.Prober, deps.Logger)
	monitorHandler := NewMonitorHandler(deps.Monitors, deps.Logger)
	notificationHandler := NewNotificationHandler(deps.Notifications, deps.Logger)

	// --- 認証不要のルート ---
	r.Get("/health", NewHealthHandler(deps.DB, deps.Logger))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	// --- 管理者認証が必要なルート ---
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewAdminAuthMiddleware(deps.AdminUsername, deps.AdminPassword, deps.Logger))

		r.Route("/api/products", func(r chi.Router) {
			r.Get("/", productHandler.ListProducts)
			r.Post("/", productHandler.CreateProduct)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", productHandler.GetProduct)
				r.Put("/", productHandler.UpdateProduct)
				r.Get("/subscribers", monitorHandler.ListSubscribers)
				r.Get("/states", productHandler.ListStates)

				// 上流へリクエストを発生させるため管理者ごとに制限する
				if deps.StockTestLimiter != nil {
					r.With(deps.StockTestLimiter.Middleware()).Get("/stock-test", productHandler.StockTest)
				} else {
					r.Get("/stock-test", productHandler.StockTest)
				}
			})
		})

		r.Route("/api/monitors", func(r chi.Router) {
			r.Get("/", monitorHandler.ListMonitors)
			r.Post("/", monitorHandler.CreateMonitor)
			r.Delete("/{id}", monitorHandler.CancelMonitor)
		})

		r.Get("/api/notifications", notificationHandler.ListNotifications)
	})

	return r
}
