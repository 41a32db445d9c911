package stock

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	fhttp "github.com/bogdanfinn/fhttp"

	"github.com/hitoshi/stockwatch/internal/model"
)

const (
	// DefaultSignedAPIBaseURL は署名付きAPIのデフォルトホスト。
	DefaultSignedAPIBaseURL = "https://prod-global-api.popmart.com"
	// productDetailsPath は商品詳細エンドポイント。
	productDetailsPath = "/shop/v1/shop/productDetails"

	signedAPIOrigin    = "https://www.popmart.com"
	signedAPIUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/134.0.0.0 Safari/537.36"
)

// headerOrder はブラウザと同じ順序でヘッダを送るための並び。
var headerOrder = []string{
	"accept",
	"accept-language",
	"clientkey",
	"country",
	"language",
	"origin",
	"referer",
	"did",
	"user-agent",
	"x-client-country",
	"x-client-namespace",
	"x-device-os-type",
	"x-project-id",
	"x-sign",
	"tz",
}

// Doer はfhttpのリクエストを実行する。tls_client.HttpClientが満たす。
type Doer interface {
	Do(req *fhttp.Request) (*fhttp.Response, error)
}

// SignedAPIConfig は署名付きAPIフェッチャーの設定。
type SignedAPIConfig struct {
	BaseURL     string
	Country     string // "AU" または "GLOBAL"
	Language    string
	ClientKey   string
	DeviceID    string
	Timeout     time.Duration
	MaxBodySize int64
}

// SignedAPIFetcher は署名付きの商品詳細APIで在庫を確認する。
type SignedAPIFetcher struct {
	client Doer
	signer *Signer
	cfg    SignedAPIConfig
	region model.Region
	logger *slog.Logger
	now    func() time.Time
}

// NewSignedAPIFetcher はSignedAPIFetcherを生成する。
func NewSignedAPIFetcher(client Doer, signer *Signer, cfg SignedAPIConfig, logger *slog.Logger) *SignedAPIFetcher {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultSignedAPIBaseURL
	}
	if cfg.Country == "" {
		cfg.Country = "AU"
	}
	if cfg.Language == "" {
		cfg.Language = "en"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxBodySize <= 0 {
		cfg.MaxBodySize = defaultMaxBodySize
	}
	return &SignedAPIFetcher{
		client: client,
		signer: signer,
		cfg:    cfg,
		region: model.RegionGlobal,
		logger: logger,
		now:    time.Now,
	}
}

// productDetailsResponse は商品詳細APIのレスポンス。
// codeは数値と文字列の両方が観測されている。
type productDetailsResponse struct {
	Code    json.RawMessage     `json:"code"`
	Message string              `json:"message"`
	Msg     string              `json:"msg"`
	Data    *productDetailsData `json:"data"`
}

type productDetailsData struct {
	Title string   `json:"title"`
	SKUs  []apiSKU `json:"skus"`
	Goods []apiSKU `json:"goods"`
}

// apiSKU は在庫数が stock.onlineStock にある形と、直下の onlineStock にある形の両方を受け付ける。
type apiSKU struct {
	Title       string    `json:"title"`
	Stock       *apiStock `json:"stock"`
	OnlineStock *flexInt  `json:"onlineStock"`
}

type apiStock struct {
	OnlineStock *flexInt `json:"onlineStock"`
}

func (s apiSKU) onlineStock() int {
	if s.Stock != nil && s.Stock.OnlineStock != nil {
		return int(*s.Stock.OnlineStock)
	}
	if s.OnlineStock != nil {
		return int(*s.OnlineStock)
	}
	return 0
}

// flexInt は数値・数値文字列・nullを受け付ける整数。解釈できない値は0とする。
type flexInt int

// UnmarshalJSON はjson.Unmarshalerを実装する。
func (n *flexInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		*n = 0
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		*n = 0
		return nil
	}
	*n = flexInt(f)
	return nil
}

// Check は商品参照からIDを取り出し、商品詳細APIで在庫を確認する。
// いずれかのSKUのオンライン在庫が1以上なら在庫ありとする。
func (f *SignedAPIFetcher) Check(ctx context.Context, reference string) (*model.FetchResult, error) {
	spuID, err := ExtractProductID(reference)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	defer cancel()

	timestamp := strconv.FormatInt(f.now().Unix(), 10)
	query := f.signer.SignedQuery(map[string]any{"spuId": spuID}, timestamp, fhttp.MethodGet)
	reqURL := strings.TrimRight(f.cfg.BaseURL, "/") + productDetailsPath + "?" + query.Encode()

	req, err := fhttp.NewRequestWithContext(ctx, fhttp.MethodGet, reqURL, nil)
	if err != nil {
		return nil, notFoundError("invalid request url %q: %v", reqURL, err)
	}
	req.Header = f.buildHeaders(timestamp)

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		f.logger.Warn("署名付きAPIへのリクエストに失敗しました",
			slog.String("spu_id", spuID),
			slog.String("error", err.Error()),
		)
		return nil, networkError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.cfg.MaxBodySize+1))
	if err != nil {
		return nil, networkError(err)
	}
	if int64(len(body)) > f.cfg.MaxBodySize {
		return nil, parseError(fmt.Sprintf("response exceeds %d bytes", f.cfg.MaxBodySize), nil)
	}

	f.logger.Debug("署名付きAPIのレスポンスを受信しました",
		slog.String("spu_id", spuID),
		slog.Int("http_status", resp.StatusCode),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	if resp.StatusCode != fhttp.StatusOK {
		fe := upstreamStatusError(resp.StatusCode)
		var payload productDetailsResponse
		if json.Unmarshal(body, &payload) == nil {
			fe.Code = normalizeCode(payload.Code)
			if msg := payload.message(); msg != "" {
				fe.Message = msg
			}
		}
		return nil, fe
	}

	var payload productDetailsResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, parseError("invalid product details json", err)
	}

	code := normalizeCode(payload.Code)
	if !isSuccessCode(code) {
		return nil, &FetchError{
			Kind:    KindUpstream,
			Message: payload.message(),
			Code:    code,
		}
	}
	if payload.Data == nil {
		return nil, &FetchError{Kind: KindUpstream, Message: "product details has no data", Code: code}
	}

	skus := payload.Data.SKUs
	if len(skus) == 0 {
		skus = payload.Data.Goods
	}

	result := &model.FetchResult{
		Region:    f.region,
		Reference: reference,
		Title:     payload.Data.Title,
		CheckedAt: f.now(),
	}
	for _, sku := range skus {
		qty := sku.onlineStock()
		result.Details = append(result.Details, model.VariantStock{
			Name:      sku.Title,
			Quantity:  &qty,
			Available: qty > 0,
		})
		if qty > 0 {
			result.InStock = true
		}
	}

	return result, nil
}

// buildHeaders はブラウザ相当のヘッダと署名ヘッダを組み立てる。
func (f *SignedAPIFetcher) buildHeaders(timestamp string) fhttp.Header {
	country := f.cfg.Country
	h := fhttp.Header{}
	h.Set("accept", "application/json, text/plain, */*")
	h.Set("accept-language", fmt.Sprintf("en-%s,en-US;q=0.9,en;q=0.8", country))
	h.Set("clientkey", f.cfg.ClientKey)
	h.Set("country", country)
	h.Set("language", f.cfg.Language)
	h.Set("origin", signedAPIOrigin)
	h.Set("referer", signedAPIOrigin+"/")
	h.Set("did", f.cfg.DeviceID)
	h.Set("user-agent", signedAPIUserAgent)
	h.Set("x-client-country", country)
	h.Set("x-client-namespace", "eurasian")
	h.Set("x-device-os-type", "web")
	h.Set("x-project-id", "eude")
	h.Set("x-sign", f.signer.XSign(timestamp))
	h.Set("tz", "Australia/Sydney")
	h[fhttp.HeaderOrderKey] = headerOrder
	return h
}

func (r productDetailsResponse) message() string {
	if r.Message != "" {
		return r.Message
	}
	return r.Msg
}

func normalizeCode(raw json.RawMessage) string {
	return strings.Trim(strings.TrimSpace(string(raw)), `"`)
}

// isSuccessCode はAPIレベルのcodeが成功を示すかを返す。codeが無い場合も成功とみなす。
func isSuccessCode(code string) bool {
	switch strings.ToUpper(code) {
	case "", "NULL", "0", "200", "OK", "SUCCESS":
		return true
	default:
		return false
	}
}
