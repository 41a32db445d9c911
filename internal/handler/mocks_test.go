package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/stockwatch/internal/catalog"
	"github.com/hitoshi/stockwatch/internal/model"
	"github.com/hitoshi/stockwatch/internal/stock"
	"github.com/hitoshi/stockwatch/internal/subscription"
)

// --- モック定義 ---

type mockProductService struct {
	createProductFn func(ctx context.Context, in catalog.ProductInput) (*model.Product, error)
	updateProductFn func(ctx context.Context, id string, in catalog.ProductInput) (*model.Product, error)
	getProductFn    func(ctx context.Context, id string) (*model.Product, error)
	listProductsFn  func(ctx context.Context) ([]*model.Product, error)
	listStatesFn    func(ctx context.Context, id string) ([]*model.StockState, error)
}

func (m *mockProductService) CreateProduct(ctx context.Context, in catalog.ProductInput) (*model.Product, error) {
	if m.createProductFn != nil {
		return m.createProductFn(ctx, in)
	}
	return &model.Product{}, nil
}
func (m *mockProductService) UpdateProduct(ctx context.Context, id string, in catalog.ProductInput) (*model.Product, error) {
	if m.updateProductFn != nil {
		return m.updateProductFn(ctx, id, in)
	}
	return &model.Product{ID: id}, nil
}
func (m *mockProductService) GetProduct(ctx context.Context, id string) (*model.Product, error) {
	if m.getProductFn != nil {
		return m.getProductFn(ctx, id)
	}
	return nil, model.NewProductNotFoundError(id)
}
func (m *mockProductService) ListProducts(ctx context.Context) ([]*model.Product, error) {
	if m.listProductsFn != nil {
		return m.listProductsFn(ctx)
	}
	return nil, nil
}
func (m *mockProductService) ListStates(ctx context.Context, id string) ([]*model.StockState, error) {
	if m.listStatesFn != nil {
		return m.listStatesFn(ctx, id)
	}
	return nil, nil
}

type mockMonitorService struct {
	subscribeFn       func(ctx context.Context, in subscription.SubscribeInput) (*model.Monitor, error)
	cancelFn          func(ctx context.Context, monitorID string) error
	listActiveFn      func(ctx context.Context) ([]*model.ActiveMonitor, error)
	listByProductFn   func(ctx context.Context, productID string) ([]*model.Monitor, error)
	listSubscribersFn func(ctx context.Context, productID string) ([]int64, error)
}

func (m *mockMonitorService) Subscribe(ctx context.Context, in subscription.SubscribeInput) (*model.Monitor, error) {
	if m.subscribeFn != nil {
		return m.subscribeFn(ctx, in)
	}
	return &model.Monitor{}, nil
}
func (m *mockMonitorService) Cancel(ctx context.Context, monitorID string) error {
	if m.cancelFn != nil {
		return m.cancelFn(ctx, monitorID)
	}
	return nil
}
func (m *mockMonitorService) ListActive(ctx context.Context) ([]*model.ActiveMonitor, error) {
	if m.listActiveFn != nil {
		return m.listActiveFn(ctx)
	}
	return nil, nil
}
func (m *mockMonitorService) ListByProduct(ctx context.Context, productID string) ([]*model.Monitor, error) {
	if m.listByProductFn != nil {
		return m.listByProductFn(ctx, productID)
	}
	return nil, nil
}
func (m *mockMonitorService) ListSubscribers(ctx context.Context, productID string) ([]int64, error) {
	if m.listSubscribersFn != nil {
		return m.listSubscribersFn(ctx, productID)
	}
	return nil, nil
}

type mockNotificationLister struct {
	listRecentFn func(ctx context.Context, limit int) ([]*model.NotificationLog, error)
}

func (m *mockNotificationLister) ListRecent(ctx context.Context, limit int) ([]*model.NotificationLog, error) {
	if m.listRecentFn != nil {
		return m.listRecentFn(ctx, limit)
	}
	return nil, nil
}

type mockProber struct {
	calls   int
	probeFn func(ctx context.Context, product *model.Product) []stock.ProbeResult
}

func (m *mockProber) Probe(ctx context.Context, product *model.Product) []stock.ProbeResult {
	m.calls++
	if m.probeFn != nil {
		return m.probeFn(ctx, product)
	}
	return nil
}

type mockPinger struct {
	err error
}

func (m *mockPinger) PingContext(ctx context.Context) error {
	return m.err
}

// --- テストヘルパー ---

const (
	testAdmin    = "admin"
	testPassword = "secret"
)

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// newTestDeps は全依存をモックで埋めたRouterDepsを返す。
func newTestDeps() *RouterDeps {
	return &RouterDeps{
		Logger:        discardLogger(),
		AdminUsername: testAdmin,
		AdminPassword: testPassword,
		Products:      &mockProductService{},
		Monitors:      &mockMonitorService{},
		Notifications: &mockNotificationLister{},
		Prober:        &mockProber{},
		DB:            &mockPinger{},
	}
}

// doRequest は管理者認証付きでリクエストを送る。
func doRequest(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			reader = bytes.NewBufferString(b)
		default:
			data, err := json.Marshal(b)
			if err != nil {
				t.Fatalf("リクエストボディのエンコードに失敗しました: %v", err)
			}
			reader = bytes.NewReader(data)
		}
	}
	req := httptest.NewRequest(method, path, reader)
	req.SetBasicAuth(testAdmin, testPassword)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

// parseAPIErrorResponse はレスポンスボディからAPIErrorレスポンスをパースするヘルパー。
func parseAPIErrorResponse(t *testing.T, w *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var result map[string]string
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return result
}
