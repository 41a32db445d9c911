package model

import "time"

// StockState は(商品, リージョン)ごとに最後に観測した在庫状態。
// 監視ループのトラッカーだけが更新する。
type StockState struct {
	ProductID     string
	Region        Region
	InStock       bool
	LastCheckedAt time.Time
}

// VariantStock はSKU・バリアント単位の在庫情報。
// Quantityは取得元が数量を返さない場合nil。
type VariantStock struct {
	Name      string `json:"name"`
	Quantity  *int   `json:"quantity,omitempty"`
	Available bool   `json:"available"`
}

// FetchResult は1回の在庫確認の結果。永続化せず即座にトラッカーへ渡す。
type FetchResult struct {
	Region    Region
	Reference string
	InStock   bool
	Title     string
	Details   []VariantStock
	CheckedAt time.Time
}
