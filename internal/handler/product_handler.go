package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/stockwatch/internal/catalog"
	"github.com/hitoshi/stockwatch/internal/middleware"
	"github.com/hitoshi/stockwatch/internal/model"
	"github.com/hitoshi/stockwatch/internal/stock"
	"github.com/shopspring/decimal"
)

// ProductServiceInterface は商品ハンドラーが必要とするサービスインターフェース。
type ProductServiceInterface interface {
	CreateProduct(ctx context.Context, in catalog.ProductInput) (*model.Product, error)
	UpdateProduct(ctx context.Context, id string, in catalog.ProductInput) (*model.Product, error)
	GetProduct(ctx context.Context, id string) (*model.Product, error)
	ListProducts(ctx context.Context) ([]*model.Product, error)
	ListStates(ctx context.Context, id string) ([]*model.StockState, error)
}

// StockProber は監視ループを介さずに商品の在庫を確認する。
type StockProber interface {
	Probe(ctx context.Context, product *model.Product) []stock.ProbeResult
}

// ProductHandler は商品管理のHTTPハンドラー。
type ProductHandler struct {
	service ProductServiceInterface
	prober  StockProber
	logger  *slog.Logger
	now     func() time.Time
}

// NewProductHandler はProductHandlerを生成する。
func NewProductHandler(service ProductServiceInterface, prober StockProber, logger *slog.Logger) *ProductHandler {
	return &ProductHandler{
		service: service,
		prober:  prober,
		logger:  logger,
		now:     time.Now,
	}
}

// productRequest は商品の作成・更新リクエストのボディ。
// priceは数値と文字列のどちらでも受け付ける。
type productRequest struct {
	Name       string          `json:"name"`
	GlobalLink string          `json:"global_link"`
	AULink     string          `json:"au_link"`
	Price      decimal.Decimal `json:"price"`
}

type productResponse struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	GlobalLink string          `json:"global_link,omitempty"`
	AULink     string          `json:"au_link,omitempty"`
	Price      decimal.Decimal `json:"price"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

type stockStateResponse struct {
	Region        model.Region `json:"region"`
	InStock       bool         `json:"in_stock"`
	LastCheckedAt time.Time    `json:"last_checked_at"`
}

// stockTestResponse は手動在庫チェックの結果。
type stockTestResponse struct {
	ProductID string              `json:"product_id"`
	Name      string              `json:"name"`
	CheckedAt time.Time           `json:"checked_at"`
	Results   []stock.ProbeResult `json:"results"`
}

// ListProducts は商品一覧を返す。
// GET /api/products
func (h *ProductHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.service.ListProducts(r.Context())
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	resp := make([]productResponse, len(products))
	for i, p := range products {
		resp[i] = toProductResponse(p)
	}
	middleware.WriteJSON(w, http.StatusOK, resp)
}

// CreateProduct は商品を登録する。
// POST /api/products
func (h *ProductHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return
	}

	p, err := h.service.CreateProduct(r.Context(), req.toInput())
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	h.logger.Info("商品を登録しました",
		slog.String("product_id", p.ID),
		slog.String("admin", adminName(r)),
	)
	middleware.WriteJSON(w, http.StatusCreated, toProductResponse(p))
}

// GetProduct は商品詳細を返す。
// GET /api/products/{id}
func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.GetProduct(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, toProductResponse(p))
}

// UpdateProduct は商品情報を更新する。
// PUT /api/products/{id}
func (h *ProductHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return
	}

	p, err := h.service.UpdateProduct(r.Context(), chi.URLParam(r, "id"), req.toInput())
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	h.logger.Info("商品を更新しました",
		slog.String("product_id", p.ID),
		slog.String("admin", adminName(r)),
	)
	middleware.WriteJSON(w, http.StatusOK, toProductResponse(p))
}

// ListStates は商品のリージョンごとの在庫状態を返す。
// GET /api/products/{id}/states
func (h *ProductHandler) ListStates(w http.ResponseWriter, r *http.Request) {
	states, err := h.service.ListStates(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	resp := make([]stockStateResponse, len(states))
	for i, s := range states {
		resp[i] = stockStateResponse{
			Region:        s.Region,
			InStock:       s.InStock,
			LastCheckedAt: s.LastCheckedAt,
		}
	}
	middleware.WriteJSON(w, http.StatusOK, resp)
}

// StockTest は商品の全リージョンを即時に確認する。
// 監視ループの在庫状態は変更しない。
// GET /api/products/{id}/stock-test
func (h *ProductHandler) StockTest(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.GetProduct(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	results := h.prober.Probe(r.Context(), p)
	middleware.WriteJSON(w, http.StatusOK, stockTestResponse{
		ProductID: p.ID,
		Name:      p.Name,
		CheckedAt: h.now(),
		Results:   results,
	})
}

func (req productRequest) toInput() catalog.ProductInput {
	return catalog.ProductInput{
		Name:       req.Name,
		GlobalLink: req.GlobalLink,
		AULink:     req.AULink,
		Price:      req.Price,
	}
}

func toProductResponse(p *model.Product) productResponse {
	return productResponse{
		ID:         p.ID,
		Name:       p.Name,
		GlobalLink: p.GlobalLink,
		AULink:     p.AULink,
		Price:      p.Price,
		CreatedAt:  p.CreatedAt,
		UpdatedAt:  p.UpdatedAt,
	}
}

func adminName(r *http.Request) string {
	admin, _ := middleware.AdminFromContext(r.Context())
	return admin
}
