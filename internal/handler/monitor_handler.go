package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/stockwatch/internal/middleware"
	"github.com/hitoshi/stockwatch/internal/model"
	"github.com/hitoshi/stockwatch/internal/subscription"
)

// MonitorServiceInterface は監視ハンドラーが必要とするサービスインターフェース。
type MonitorServiceInterface interface {
	Subscribe(ctx context.Context, in subscription.SubscribeInput) (*model.Monitor, error)
	Cancel(ctx context.Context, monitorID string) error
	ListActive(ctx context.Context) ([]*model.ActiveMonitor, error)
	ListByProduct(ctx context.Context, productID string) ([]*model.Monitor, error)
	ListSubscribers(ctx context.Context, productID string) ([]int64, error)
}

// MonitorHandler は監視管理のHTTPハンドラー。
type MonitorHandler struct {
	service MonitorServiceInterface
	logger  *slog.Logger
}

// NewMonitorHandler はMonitorHandlerを生成する。
func NewMonitorHandler(service MonitorServiceInterface, logger *slog.Logger) *MonitorHandler {
	return &MonitorHandler{service: service, logger: logger}
}

type createMonitorRequest struct {
	UserID    int64  `json:"user_id"`
	Username  string `json:"username"`
	ProductID string `json:"product_id"`
	Days      int    `json:"days"`
}

type monitorResponse struct {
	ID          string    `json:"id"`
	UserID      int64     `json:"user_id"`
	ProductID   string    `json:"product_id"`
	ProductName string    `json:"product_name,omitempty"`
	Active      bool      `json:"active"`
	ExpiresAt   time.Time `json:"expires_at"`
	CreatedAt   time.Time `json:"created_at,omitzero"`
}

type subscribersResponse struct {
	ProductID string  `json:"product_id"`
	UserIDs   []int64 `json:"user_ids"`
}

// ListMonitors は監視一覧を返す。
// product_idクエリがあればその商品の全監視、なければ有効な監視を返す。
// GET /api/monitors
func (h *MonitorHandler) ListMonitors(w http.ResponseWriter, r *http.Request) {
	if productID := r.URL.Query().Get("product_id"); productID != "" {
		monitors, err := h.service.ListByProduct(r.Context(), productID)
		if err != nil {
			handleServiceError(w, h.logger, err)
			return
		}
		resp := make([]monitorResponse, len(monitors))
		for i, m := range monitors {
			resp[i] = toMonitorResponse(m)
		}
		middleware.WriteJSON(w, http.StatusOK, resp)
		return
	}

	active, err := h.service.ListActive(r.Context())
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	resp := make([]monitorResponse, len(active))
	for i, am := range active {
		resp[i] = monitorResponse{
			ID:          am.MonitorID,
			UserID:      am.UserID,
			ProductID:   am.Product.ID,
			ProductName: am.Product.Name,
			Active:      true,
			ExpiresAt:   am.ExpiresAt,
		}
	}
	middleware.WriteJSON(w, http.StatusOK, resp)
}

// CreateMonitor はユーザーの商品監視を開始する。
// POST /api/monitors
func (h *MonitorHandler) CreateMonitor(w http.ResponseWriter, r *http.Request) {
	var req createMonitorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return
	}

	m, err := h.service.Subscribe(r.Context(), subscription.SubscribeInput{
		UserID:    req.UserID,
		Username:  req.Username,
		ProductID: req.ProductID,
		Days:      req.Days,
	})
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	h.logger.Info("監視を登録しました",
		slog.String("monitor_id", m.ID),
		slog.String("product_id", m.ProductID),
		slog.Int64("user_id", m.UserID),
		slog.String("admin", adminName(r)),
	)
	middleware.WriteJSON(w, http.StatusCreated, toMonitorResponse(m))
}

// CancelMonitor は監視を無効化する。
// DELETE /api/monitors/{id}
func (h *MonitorHandler) CancelMonitor(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.service.Cancel(r.Context(), id); err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	h.logger.Info("監視を無効化しました",
		slog.String("monitor_id", id),
		slog.String("admin", adminName(r)),
	)
	w.WriteHeader(http.StatusNoContent)
}

// ListSubscribers は商品を監視中のユーザーIDを返す。
// GET /api/products/{id}/subscribers
func (h *MonitorHandler) ListSubscribers(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "id")
	ids, err := h.service.ListSubscribers(r.Context(), productID)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	if ids == nil {
		ids = []int64{}
	}
	middleware.WriteJSON(w, http.StatusOK, subscribersResponse{ProductID: productID, UserIDs: ids})
}

func toMonitorResponse(m *model.Monitor) monitorResponse {
	return monitorResponse{
		ID:        m.ID,
		UserID:    m.UserID,
		ProductID: m.ProductID,
		Active:    m.Active,
		ExpiresAt: m.ExpiresAt,
		CreatedAt: m.CreatedAt,
	}
}
