package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/hitoshi/stockwatch/internal/middleware"
	"github.com/hitoshi/stockwatch/internal/model"
)

const (
	defaultNotificationLimit = 50
	maxNotificationLimit     = 500
)

// NotificationLister は通知ログの取得インターフェース。
type NotificationLister interface {
	ListRecent(ctx context.Context, limit int) ([]*model.NotificationLog, error)
}

// NotificationHandler は通知ログ参照のHTTPハンドラー。
type NotificationHandler struct {
	logs   NotificationLister
	logger *slog.Logger
}

// NewNotificationHandler はNotificationHandlerを生成する。
func NewNotificationHandler(logs NotificationLister, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{logs: logs, logger: logger}
}

type notificationLogResponse struct {
	ID        string       `json:"id"`
	ProductID string       `json:"product_id"`
	Region    model.Region `json:"region"`
	Total     int          `json:"total"`
	Sent      int          `json:"sent"`
	CreatedAt time.Time    `json:"created_at"`
}

// ListNotifications は新しい順に通知ログを返す。
// GET /api/notifications?limit=N
func (h *NotificationHandler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	limit := defaultNotificationLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxNotificationLimit {
			middleware.WriteErrorResponse(w, http.StatusBadRequest, &model.APIError{
				Code:     model.ErrCodeInvalidRequest,
				Message:  "limitが不正です。",
				Category: "validation",
				Action:   "limitには1から500の整数を指定してください。",
			})
			return
		}
		limit = n
	}

	logs, err := h.logs.ListRecent(r.Context(), limit)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	resp := make([]notificationLogResponse, len(logs))
	for i, l := range logs {
		resp[i] = notificationLogResponse{
			ID:        l.ID,
			ProductID: l.ProductID,
			Region:    l.Region,
			Total:     l.Total,
			Sent:      l.Sent,
			CreatedAt: l.CreatedAt,
		}
	}
	middleware.WriteJSON(w, http.StatusOK, resp)
}
