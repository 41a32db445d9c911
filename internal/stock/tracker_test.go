package stock

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/hitoshi/stockwatch/internal/model"
)

func TestTracker_ShouldNotify_EdgeTriggered(t *testing.T) {
	tests := []struct {
		name     string
		observed []bool
	}{
		{"初回在庫あり", []bool{true}},
		{"在庫ありが続く", []bool{true, true, true}},
		{"補充を繰り返す", []bool{false, true, true, false, true, false, false, true}},
		{"在庫なしのみ", []bool{false, false}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			tracker := NewTracker(NewMemoryStateStore(), newTestLogger(&buf))

			for i, obs := range tt.observed {
				want := obs && (i == 0 || !tt.observed[i-1])
				got, err := tracker.ShouldNotify(context.Background(), "p1", model.RegionGlobal, obs)
				if err != nil {
					t.Fatalf("ShouldNotify がエラーを返した: %v", err)
				}
				if got != want {
					t.Errorf("index %d: ShouldNotify(%v) = %v, want %v", i, obs, got, want)
				}
			}
		})
	}
}

func TestTracker_RegionsAreIndependent(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewTracker(NewMemoryStateStore(), newTestLogger(&buf))
	ctx := context.Background()

	if got, _ := tracker.ShouldNotify(ctx, "p1", model.RegionGlobal, true); !got {
		t.Error("Globalの初回入荷は通知すべき")
	}
	if got, _ := tracker.ShouldNotify(ctx, "p1", model.RegionAU, true); !got {
		t.Error("AUはGlobalと独立して通知すべき")
	}
	if got, _ := tracker.ShouldNotify(ctx, "p2", model.RegionGlobal, true); !got {
		t.Error("別商品は独立して通知すべき")
	}
}

func TestTracker_UpdatesLastChecked(t *testing.T) {
	var buf bytes.Buffer
	store := NewMemoryStateStore()
	tracker := NewTracker(store, newTestLogger(&buf))

	if _, err := tracker.ShouldNotify(context.Background(), "p1", model.RegionAU, false); err != nil {
		t.Fatalf("ShouldNotify がエラーを返した: %v", err)
	}

	st, _ := store.Get(context.Background(), "p1", model.RegionAU)
	if st == nil {
		t.Fatal("在庫なしの観測も保存されるべき")
	}
	if st.InStock || st.LastCheckedAt.IsZero() {
		t.Errorf("保存された状態が不正: %+v", st)
	}
}

// failingStore はエラーを返すStateStore。
type failingStore struct {
	getErr error
	putErr error
}

func (f *failingStore) Get(context.Context, string, model.Region) (*model.StockState, error) {
	return nil, f.getErr
}

func (f *failingStore) Put(context.Context, *model.StockState) error {
	return f.putErr
}

func TestTracker_StoreErrorsSuppressNotification(t *testing.T) {
	var buf bytes.Buffer

	for _, store := range []*failingStore{
		{getErr: errors.New("db down")},
		{putErr: errors.New("db down")},
	} {
		tracker := NewTracker(store, newTestLogger(&buf))
		got, err := tracker.ShouldNotify(context.Background(), "p1", model.RegionGlobal, true)
		if err == nil {
			t.Error("保存先のエラーは返されるべき")
		}
		if got {
			t.Error("保存先のエラー時は通知してはならない")
		}
	}
}

func TestTracker_ConcurrentKeys(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewTracker(NewMemoryStateStore(), newTestLogger(&buf))

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		notified = make(map[string]int)
	)
	for i := 0; i < 50; i++ {
		key := fmt.Sprintf("p%d", i%5)
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := tracker.ShouldNotify(context.Background(), key, model.RegionGlobal, true)
			if err != nil {
				t.Errorf("ShouldNotify がエラーを返した: %v", err)
				return
			}
			if ok {
				mu.Lock()
				notified[key]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	for key, n := range notified {
		if n != 1 {
			t.Errorf("%s の通知回数 = %d, want 1", key, n)
		}
	}
	if len(notified) != 5 {
		t.Errorf("通知されたキー数 = %d, want 5", len(notified))
	}
}
