package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/stockwatch/internal/model"
)

// PostgresStockStateRepo はPostgreSQLを使用した在庫状態リポジトリ。
// 状態は(商品, リージョン)ごとに1行で、プロセス再起動後も前回の観測を引き継ぐ。
type PostgresStockStateRepo struct {
	db *sql.DB
}

// NewPostgresStockStateRepo はPostgresStockStateRepoを生成する。
func NewPostgresStockStateRepo(db *sql.DB) *PostgresStockStateRepo {
	return &PostgresStockStateRepo{db: db}
}

// Get は(商品, リージョン)の状態を返す。記録がない場合はnilを返す。
func (r *PostgresStockStateRepo) Get(ctx context.Context, productID string, region model.Region) (*model.StockState, error) {
	s := &model.StockState{}
	var reg string
	err := r.db.QueryRowContext(ctx,
		`SELECT product_id, region, in_stock, last_checked_at
		 FROM stock_states WHERE product_id = $1 AND region = $2`,
		productID, string(region),
	).Scan(&s.ProductID, &reg, &s.InStock, &s.LastCheckedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("在庫状態の取得に失敗しました: %w", err)
	}
	s.Region = model.Region(reg)
	return s, nil
}

// Put は状態をUPSERTする。
func (r *PostgresStockStateRepo) Put(ctx context.Context, s *model.StockState) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO stock_states (product_id, region, in_stock, last_checked_at, updated_at)
		 VALUES ($1, $2, $3, $4, now())
		 ON CONFLICT (product_id, region) DO UPDATE
		 SET in_stock = EXCLUDED.in_stock,
		     last_checked_at = EXCLUDED.last_checked_at,
		     updated_at = now()`,
		s.ProductID, string(s.Region), s.InStock, s.LastCheckedAt,
	)
	if err != nil {
		return fmt.Errorf("在庫状態の保存に失敗しました: %w", err)
	}
	return nil
}

// ListByProduct は商品の全リージョンの状態を返す。
func (r *PostgresStockStateRepo) ListByProduct(ctx context.Context, productID string) ([]*model.StockState, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT product_id, region, in_stock, last_checked_at
		 FROM stock_states WHERE product_id = $1 ORDER BY region`,
		productID,
	)
	if err != nil {
		return nil, fmt.Errorf("在庫状態一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var states []*model.StockState
	for rows.Next() {
		s := &model.StockState{}
		var reg string
		if err := rows.Scan(&s.ProductID, &reg, &s.InStock, &s.LastCheckedAt); err != nil {
			return nil, fmt.Errorf("在庫状態行の読み取りに失敗しました: %w", err)
		}
		s.Region = model.Region(reg)
		states = append(states, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("在庫状態一覧の走査に失敗しました: %w", err)
	}
	return states, nil
}
