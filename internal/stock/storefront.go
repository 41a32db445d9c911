package stock

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hitoshi/stockwatch/internal/model"
)

// storefrontSuffix はShopifyストアフロントの商品JSONエンドポイントの接尾辞。
const storefrontSuffix = ".js"

// SSRFValidator はSSRF検証のインターフェース。
type SSRFValidator interface {
	ValidateURL(rawURL string) error
	NewSafeClient(timeout time.Duration, maxResponseSize int64) *http.Client
}

// StorefrontFetcher はShopifyストアフロントの商品JSONで在庫を確認する。
type StorefrontFetcher struct {
	client      *http.Client
	ssrfGuard   SSRFValidator
	region      model.Region
	logger      *slog.Logger
	timeout     time.Duration
	maxBodySize int64
	now         func() time.Time
}

// NewStorefrontFetcher はStorefrontFetcherを生成する。
func NewStorefrontFetcher(ssrfGuard SSRFValidator, logger *slog.Logger, timeout time.Duration, maxBodySize int64) *StorefrontFetcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if maxBodySize <= 0 {
		maxBodySize = defaultMaxBodySize
	}
	return &StorefrontFetcher{
		client:      ssrfGuard.NewSafeClient(timeout, maxBodySize),
		ssrfGuard:   ssrfGuard,
		region:      model.RegionAU,
		logger:      logger,
		timeout:     timeout,
		maxBodySize: maxBodySize,
		now:         time.Now,
	}
}

// StorefrontEndpoint は商品ページURLからクエリとフラグメントを除き、".js"を付けたURLを返す。
func StorefrontEndpoint(productURL string) string {
	endpoint, _, _ := strings.Cut(strings.TrimSpace(productURL), "?")
	endpoint, _, _ = strings.Cut(endpoint, "#")
	return endpoint + storefrontSuffix
}

// storefrontProduct は<product_url>.js のレスポンス。
type storefrontProduct struct {
	Title    string              `json:"title"`
	Variants []storefrontVariant `json:"variants"`
}

type storefrontVariant struct {
	Title             string `json:"title"`
	Available         bool   `json:"available"`
	InventoryQuantity *int   `json:"inventory_quantity"`
}

// Check は商品JSONを取得し、availableなバリアントが1つでもあれば在庫ありとする。
// 数量が無い、または0でもavailableなら在庫ありとして扱う。
func (f *StorefrontFetcher) Check(ctx context.Context, reference string) (*model.FetchResult, error) {
	if strings.TrimSpace(reference) == "" {
		return nil, notFoundError("empty storefront url")
	}

	endpoint := StorefrontEndpoint(reference)
	if err := f.ssrfGuard.ValidateURL(endpoint); err != nil {
		f.logger.Error("SSRF検証に失敗しました",
			slog.String("url", reference),
			slog.String("error", err.Error()),
		)
		return nil, &FetchError{Kind: KindNotFound, Message: "storefront url rejected", Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, notFoundError("invalid storefront url %q: %v", endpoint, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", signedAPIUserAgent)

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		f.logger.Warn("ストアフロントへのリクエストに失敗しました",
			slog.String("url", endpoint),
			slog.String("error", err.Error()),
		)
		return nil, networkError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		f.logger.Warn("ストアフロントがエラーステータスを返しました",
			slog.String("url", endpoint),
			slog.Int("http_status", resp.StatusCode),
		)
		return nil, upstreamStatusError(resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize+1))
	if err != nil {
		return nil, networkError(err)
	}
	if int64(len(body)) > f.maxBodySize {
		return nil, parseError(fmt.Sprintf("response exceeds %d bytes", f.maxBodySize), nil)
	}

	var product storefrontProduct
	if err := json.Unmarshal(body, &product); err != nil {
		return nil, parseError("invalid storefront product json", err)
	}

	f.logger.Debug("ストアフロントのレスポンスを受信しました",
		slog.String("url", endpoint),
		slog.Int("variant_count", len(product.Variants)),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	result := &model.FetchResult{
		Region:    f.region,
		Reference: reference,
		Title:     product.Title,
		CheckedAt: f.now(),
	}
	for _, v := range product.Variants {
		result.Details = append(result.Details, model.VariantStock{
			Name:      variantName(v.Title),
			Quantity:  v.InventoryQuantity,
			Available: v.Available,
		})
		if v.Available {
			result.InStock = true
		}
	}

	return result, nil
}

// variantName はShopifyの既定バリアント名を表示用に置き換える。
func variantName(title string) string {
	if title == "" || title == "Default Title" {
		return "One Size"
	}
	return title
}
