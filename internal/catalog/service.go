// Package catalog は監視対象商品の管理ロジックを提供する。
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/hitoshi/stockwatch/internal/model"
	"github.com/hitoshi/stockwatch/internal/repository"
	"github.com/hitoshi/stockwatch/internal/stock"
	"github.com/shopspring/decimal"
)

const maxNameLength = 255

// URLValidator はストアフロントURLの検証インターフェース。
type URLValidator interface {
	ValidateURL(rawURL string) error
}

// ProductInput は商品の作成・更新の入力値。
type ProductInput struct {
	Name       string
	GlobalLink string
	AULink     string
	Price      decimal.Decimal
}

// Service は商品管理のサービス層。
type Service struct {
	products repository.ProductRepository
	states   repository.StockStateRepository
	guard    URLValidator
}

// NewService はServiceを生成する。
func NewService(products repository.ProductRepository, states repository.StockStateRepository, guard URLValidator) *Service {
	return &Service{products: products, states: states, guard: guard}
}

// CreateProduct は入力値を検証して商品を登録する。
func (s *Service) CreateProduct(ctx context.Context, in ProductInput) (*model.Product, error) {
	p, err := s.normalize(in)
	if err != nil {
		return nil, err
	}
	if err := s.products.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("商品の登録に失敗しました: %w", err)
	}
	return p, nil
}

// UpdateProduct は商品情報を更新する。
func (s *Service) UpdateProduct(ctx context.Context, id string, in ProductInput) (*model.Product, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, model.NewProductNotFoundError(id)
	}
	p, err := s.normalize(in)
	if err != nil {
		return nil, err
	}
	p.ID = id

	if err := s.products.Update(ctx, p); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, model.NewProductNotFoundError(id)
		}
		return nil, fmt.Errorf("商品の更新に失敗しました: %w", err)
	}
	return p, nil
}

// GetProduct は商品を取得する。存在しない場合はPRODUCT_NOT_FOUNDを返す。
func (s *Service) GetProduct(ctx context.Context, id string) (*model.Product, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, model.NewProductNotFoundError(id)
	}
	p, err := s.products.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("商品の取得に失敗しました: %w", err)
	}
	if p == nil {
		return nil, model.NewProductNotFoundError(id)
	}
	return p, nil
}

// ListProducts は商品一覧を返す。
func (s *Service) ListProducts(ctx context.Context) ([]*model.Product, error) {
	products, err := s.products.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("商品一覧の取得に失敗しました: %w", err)
	}
	return products, nil
}

// ListStates は商品のリージョンごとの在庫状態を返す。
func (s *Service) ListStates(ctx context.Context, id string) ([]*model.StockState, error) {
	if _, err := s.GetProduct(ctx, id); err != nil {
		return nil, err
	}
	states, err := s.states.ListByProduct(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("在庫状態の取得に失敗しました: %w", err)
	}
	return states, nil
}

func (s *Service) normalize(in ProductInput) (*model.Product, error) {
	p := &model.Product{
		Name:       strings.TrimSpace(in.Name),
		GlobalLink: strings.TrimSpace(in.GlobalLink),
		AULink:     strings.TrimSpace(in.AULink),
		Price:      in.Price,
	}

	if p.Name == "" {
		return nil, model.NewInvalidProductError("商品名が空です")
	}
	if len([]rune(p.Name)) > maxNameLength {
		return nil, model.NewInvalidProductError(fmt.Sprintf("商品名は%d文字以内で指定してください", maxNameLength))
	}
	if p.GlobalLink == "" && p.AULink == "" {
		return nil, model.NewInvalidProductError("リンクが指定されていません")
	}
	if p.Price.IsNegative() {
		return nil, model.NewInvalidProductError("価格は0以上で指定してください")
	}

	if p.GlobalLink != "" {
		if _, err := stock.ExtractProductID(p.GlobalLink); err != nil {
			return nil, model.NewInvalidProductError("Globalリンクから商品IDを取得できません")
		}
	}
	if p.AULink != "" && s.guard != nil {
		if err := s.guard.ValidateURL(p.AULink); err != nil {
			return nil, model.NewInvalidProductError("AUリンクが不正です")
		}
	}

	p.Price = p.Price.Round(2)
	return p, nil
}
