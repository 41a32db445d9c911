// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"database/sql"

	"github.com/hitoshi/stockwatch/internal/model"
)

// ProductRepository は商品データの永続化インターフェース。
type ProductRepository interface {
	// FindByID は指定IDの商品を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Product, error)

	// List は商品一覧を名前順で返す。
	List(ctx context.Context) ([]*model.Product, error)

	// Create は商品を作成する。IDが空の場合は採番する。
	Create(ctx context.Context, product *model.Product) error

	// Update は商品情報を更新する。対象がない場合はErrNotFoundを返す。
	Update(ctx context.Context, product *model.Product) error
}

// MonitorRepository は監視（ユーザーと商品の組）の永続化インターフェース。
type MonitorRepository interface {
	// ListActive は有効かつ期限内の監視を商品情報と結合して返す。
	ListActive(ctx context.Context) ([]*model.ActiveMonitor, error)

	// ListSubscribers は指定商品を監視中のユーザーIDを重複なしで返す。
	ListSubscribers(ctx context.Context, productID string) ([]int64, error)

	// ListByProduct は指定商品の監視を有効・無効を問わず新しい順に返す。
	ListByProduct(ctx context.Context, productID string) ([]*model.Monitor, error)

	// Create は監視を作成する。ユーザーが未登録の場合は同一トランザクションで登録する。
	Create(ctx context.Context, user *model.User, monitor *model.Monitor) error

	// Cancel は監視を無効化する。対象がない場合はErrNotFoundを返す。
	Cancel(ctx context.Context, id string) error
}

// StockStateRepository は在庫状態の永続化インターフェース。
// stock.StateStoreを満たす。
type StockStateRepository interface {
	// Get は(商品, リージョン)の状態を返す。記録がない場合はnilを返す。
	Get(ctx context.Context, productID string, region model.Region) (*model.StockState, error)

	// Put は状態をUPSERTする。
	Put(ctx context.Context, state *model.StockState) error

	// ListByProduct は商品の全リージョンの状態を返す。
	ListByProduct(ctx context.Context, productID string) ([]*model.StockState, error)
}

// NotificationLogRepository は通知結果の永続化インターフェース。
type NotificationLogRepository interface {
	// Create は通知結果を記録する。IDが空の場合は採番する。
	Create(ctx context.Context, entry *model.NotificationLog) error

	// ListRecent は新しい順に最大limit件を返す。
	ListRecent(ctx context.Context, limit int) ([]*model.NotificationLog, error)
}

// TxBeginner はトランザクション開始用のインターフェース。
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}
