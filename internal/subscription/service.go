// Package subscription はユーザーの商品監視（有効期限付きサブスクリプション）を管理する。
package subscription

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/stockwatch/internal/model"
	"github.com/hitoshi/stockwatch/internal/repository"
)

// MaxDays は1回の申し込みで指定できる監視日数の上限。
const MaxDays = 365

// SubscribeInput は監視申し込みの入力値。
type SubscribeInput struct {
	UserID    int64
	Username  string
	ProductID string
	Days      int
}

// Service は監視管理のサービス層。
type Service struct {
	monitors repository.MonitorRepository
	products repository.ProductRepository
	now      func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(monitors repository.MonitorRepository, products repository.ProductRepository) *Service {
	return &Service{
		monitors: monitors,
		products: products,
		now:      time.Now,
	}
}

// Subscribe は商品の監視を開始する。有効期限は現在時刻からDays日後。
func (s *Service) Subscribe(ctx context.Context, in SubscribeInput) (*model.Monitor, error) {
	if in.UserID == 0 {
		return nil, model.NewInvalidMonitorError("user_idが指定されていません")
	}
	if in.Days < 1 || in.Days > MaxDays {
		return nil, model.NewInvalidMonitorError(fmt.Sprintf("daysは1から%dの範囲で指定してください", MaxDays))
	}
	if _, err := uuid.Parse(in.ProductID); err != nil {
		return nil, model.NewProductNotFoundError(in.ProductID)
	}

	product, err := s.products.FindByID(ctx, in.ProductID)
	if err != nil {
		return nil, fmt.Errorf("商品の取得に失敗しました: %w", err)
	}
	if product == nil {
		return nil, model.NewProductNotFoundError(in.ProductID)
	}

	now := s.now()
	m := &model.Monitor{
		ProductID: product.ID,
		Active:    true,
		ExpiresAt: now.AddDate(0, 0, in.Days),
		CreatedAt: now,
	}
	user := &model.User{UserID: in.UserID, Username: in.Username}

	if err := s.monitors.Create(ctx, user, m); err != nil {
		return nil, fmt.Errorf("監視の登録に失敗しました: %w", err)
	}
	return m, nil
}

// Cancel は監視を無効化する。
func (s *Service) Cancel(ctx context.Context, monitorID string) error {
	if _, err := uuid.Parse(monitorID); err != nil {
		return model.NewMonitorNotFoundError(monitorID)
	}
	if err := s.monitors.Cancel(ctx, monitorID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.NewMonitorNotFoundError(monitorID)
		}
		return fmt.Errorf("監視の無効化に失敗しました: %w", err)
	}
	return nil
}

// ListActive は現在有効な監視を返す。
func (s *Service) ListActive(ctx context.Context) ([]*model.ActiveMonitor, error) {
	monitors, err := s.monitors.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("監視一覧の取得に失敗しました: %w", err)
	}
	return monitors, nil
}

// ListByProduct は商品に紐づく監視を無効なものも含めて返す。
func (s *Service) ListByProduct(ctx context.Context, productID string) ([]*model.Monitor, error) {
	if err := s.requireProduct(ctx, productID); err != nil {
		return nil, err
	}
	monitors, err := s.monitors.ListByProduct(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("監視一覧の取得に失敗しました: %w", err)
	}
	return monitors, nil
}

// ListSubscribers は商品を監視中のユーザーIDを返す。
func (s *Service) ListSubscribers(ctx context.Context, productID string) ([]int64, error) {
	if err := s.requireProduct(ctx, productID); err != nil {
		return nil, err
	}
	ids, err := s.monitors.ListSubscribers(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("監視ユーザーの取得に失敗しました: %w", err)
	}
	return ids, nil
}

func (s *Service) requireProduct(ctx context.Context, productID string) error {
	if _, err := uuid.Parse(productID); err != nil {
		return model.NewProductNotFoundError(productID)
	}
	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		return fmt.Errorf("商品の取得に失敗しました: %w", err)
	}
	if product == nil {
		return model.NewProductNotFoundError(productID)
	}
	return nil
}
