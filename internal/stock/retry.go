package stock

import (
	"context"
	"log/slog"
	"time"

	"github.com/eapache/go-resiliency/retrier"

	"github.com/hitoshi/stockwatch/internal/model"
)

const (
	// DefaultRetryAttempts はNetworkError時の最大試行回数（初回を含む）。
	DefaultRetryAttempts = 3
	// DefaultRetryDelay はリトライ間の固定待機時間。
	DefaultRetryDelay = 2 * time.Second
)

// networkOnlyClassifier はNetworkErrorだけをリトライ対象にする。
type networkOnlyClassifier struct{}

// Classify はretrier.Classifierを実装する。
func (networkOnlyClassifier) Classify(err error) retrier.Action {
	if err == nil {
		return retrier.Succeed
	}
	if KindOf(err) == KindNetwork {
		return retrier.Retry
	}
	return retrier.Fail
}

// RetryFetcher は任意のFetcherに一律のリトライポリシーを適用する。
type RetryFetcher struct {
	inner    Fetcher
	retrier  *retrier.Retrier
	attempts int
	logger   *slog.Logger
}

// NewRetryFetcher はRetryFetcherを生成する。
// attemptsは初回を含む試行回数で、1未満の場合は1とする。
func NewRetryFetcher(inner Fetcher, attempts int, delay time.Duration, logger *slog.Logger) *RetryFetcher {
	if attempts < 1 {
		attempts = 1
	}
	return &RetryFetcher{
		inner:    inner,
		retrier:  retrier.New(retrier.ConstantBackoff(attempts-1, delay), networkOnlyClassifier{}),
		attempts: attempts,
		logger:   logger,
	}
}

// Check はFetcherインターフェースを実装する。
func (f *RetryFetcher) Check(ctx context.Context, reference string) (*model.FetchResult, error) {
	var (
		result  *model.FetchResult
		attempt int
	)

	err := f.retrier.RunCtx(ctx, func(ctx context.Context) error {
		attempt++
		r, err := f.inner.Check(ctx, reference)
		if err != nil {
			if KindOf(err) == KindNetwork && attempt < f.attempts {
				f.logger.Warn("在庫確認の通信に失敗したためリトライします",
					slog.String("reference", reference),
					slog.Int("attempt", attempt),
					slog.Int("max_attempts", f.attempts),
					slog.String("error", err.Error()),
				)
			}
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		// 待機中のコンテキストキャンセルはFetchErrorではないため通信失敗として返す
		if KindOf(err) == "" {
			return nil, networkError(err)
		}
		return nil, err
	}

	return result, nil
}
