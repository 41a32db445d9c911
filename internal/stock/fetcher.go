// Package stock は在庫確認の中核を提供する。
// 取得元ごとのFetcher、署名付きAPIのリクエスト署名、
// 入荷遷移を判定するトラッカーを含む。
package stock

import (
	"context"

	"github.com/hitoshi/stockwatch/internal/model"
)

// Fetcher は1つの取得元から商品の在庫状態を確認する。
// 失敗は常に*FetchErrorとして返し、panicを境界の外に出さない。
type Fetcher interface {
	Check(ctx context.Context, reference string) (*model.FetchResult, error)
}

// FetcherFunc は関数をFetcherとして扱うアダプタ。
type FetcherFunc func(ctx context.Context, reference string) (*model.FetchResult, error)

// Check はFetcherインターフェースを実装する。
func (f FetcherFunc) Check(ctx context.Context, reference string) (*model.FetchResult, error) {
	return f(ctx, reference)
}

const (
	// defaultMaxBodySize はレスポンスボディの読み込み上限（2MB）。
	defaultMaxBodySize = 2 << 20
)
