package stock

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/stockwatch/internal/model"
)

// StateStore は(商品, リージョン)ごとの最終在庫状態の保存先。
type StateStore interface {
	// Get は保存済みの状態を返す。未保存の場合はnilを返す。
	Get(ctx context.Context, productID string, region model.Region) (*model.StockState, error)
	// Put は状態を上書き保存する。
	Put(ctx context.Context, state *model.StockState) error
}

// Tracker は在庫の入荷遷移（在庫なし/不明 → 在庫あり）を検出する。
// 同じキーへの読み取りと更新はキー単位で直列化し、別キーは並行に処理する。
type Tracker struct {
	store  StateStore
	logger *slog.Logger
	now    func() time.Time

	mu    sync.Mutex
	locks map[stateKey]*sync.Mutex
}

type stateKey struct {
	productID string
	region    model.Region
}

// NewTracker はTrackerを生成する。
func NewTracker(store StateStore, logger *slog.Logger) *Tracker {
	return &Tracker{
		store:  store,
		logger: logger,
		now:    time.Now,
		locks:  make(map[stateKey]*sync.Mutex),
	}
}

// ShouldNotify は観測値で状態を更新し、通知すべき遷移ならtrueを返す。
// 前回状態が無い場合は在庫なしとみなす。
// 状態の読み取りまたは保存に失敗した場合は通知せずエラーを返す。
func (t *Tracker) ShouldNotify(ctx context.Context, productID string, region model.Region, observed bool) (bool, error) {
	lock := t.lockFor(stateKey{productID: productID, region: region})
	lock.Lock()
	defer lock.Unlock()

	prev, err := t.store.Get(ctx, productID, region)
	if err != nil {
		return false, fmt.Errorf("在庫状態の取得に失敗: %w", err)
	}
	prevInStock := prev != nil && prev.InStock

	if err := t.store.Put(ctx, &model.StockState{
		ProductID:     productID,
		Region:        region,
		InStock:       observed,
		LastCheckedAt: t.now(),
	}); err != nil {
		return false, fmt.Errorf("在庫状態の保存に失敗: %w", err)
	}

	notify := !prevInStock && observed
	if prevInStock != observed {
		t.logger.Info("在庫状態が変化しました",
			slog.String("product_id", productID),
			slog.String("region", string(region)),
			slog.Bool("previous", prevInStock),
			slog.Bool("current", observed),
		)
	}
	return notify, nil
}

func (t *Tracker) lockFor(key stateKey) *sync.Mutex {
	t.mu.Lock()
	defer t.mu.Unlock()
	l, ok := t.locks[key]
	if !ok {
		l = &sync.Mutex{}
		t.locks[key] = l
	}
	return l
}

// MemoryStateStore はプロセス内メモリに状態を保持するStateStore。
type MemoryStateStore struct {
	mu     sync.RWMutex
	states map[stateKey]model.StockState
}

// NewMemoryStateStore はMemoryStateStoreを生成する。
func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{states: make(map[stateKey]model.StockState)}
}

// Get はStateStoreを実装する。
func (s *MemoryStateStore) Get(_ context.Context, productID string, region model.Region) (*model.StockState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.states[stateKey{productID: productID, region: region}]
	if !ok {
		return nil, nil
	}
	return &st, nil
}

// Put はStateStoreを実装する。
func (s *MemoryStateStore) Put(_ context.Context, state *model.StockState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[stateKey{productID: state.ProductID, region: state.Region}] = *state
	return nil
}
