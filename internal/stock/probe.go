package stock

import (
	"context"
	"log/slog"
	"time"

	"github.com/hitoshi/stockwatch/internal/model"
)

// ProbeStatus は管理者向け手動チェックの結果区分。
type ProbeStatus string

const (
	ProbeInStock    ProbeStatus = "in_stock"
	ProbeOutOfStock ProbeStatus = "out_of_stock"
	ProbeError      ProbeStatus = "error"
	ProbeNoLink     ProbeStatus = "no_link"
)

// ProbeResult はリージョンごとの手動チェック結果。
type ProbeResult struct {
	Region    model.Region         `json:"region"`
	Link      string               `json:"link"`
	Status    ProbeStatus          `json:"status"`
	Title     string               `json:"title,omitempty"`
	Kind      FailureKind          `json:"kind,omitempty"`
	Error     string               `json:"error,omitempty"`
	Details   []model.VariantStock `json:"details,omitempty"`
	CheckedAt time.Time            `json:"checked_at"`
}

// Prober は管理者の手動チェック用にFetcherを直接呼び出す。
// トラッカーを経由しないため、監視ループの在庫状態を変更しない。
type Prober struct {
	fetchers map[model.Region]Fetcher
	logger   *slog.Logger
	now      func() time.Time
}

// NewProber はProberを生成する。
func NewProber(fetchers map[model.Region]Fetcher, logger *slog.Logger) *Prober {
	return &Prober{fetchers: fetchers, logger: logger, now: time.Now}
}

// Probe は商品の全リージョンを順に確認し、結果を返す。
func (p *Prober) Probe(ctx context.Context, product *model.Product) []ProbeResult {
	regions := []model.Region{model.RegionGlobal, model.RegionAU}
	results := make([]ProbeResult, 0, len(regions))

	for _, region := range regions {
		link := product.Link(region)
		res := ProbeResult{Region: region, Link: link, CheckedAt: p.now()}

		fetcher, ok := p.fetchers[region]
		if link == "" || !ok {
			res.Status = ProbeNoLink
			results = append(results, res)
			continue
		}

		fr, err := fetcher.Check(ctx, link)
		if err != nil {
			res.Status = ProbeError
			res.Kind = KindOf(err)
			res.Error = err.Error()
			p.logger.Warn("手動在庫チェックに失敗しました",
				slog.String("product_id", product.ID),
				slog.String("region", string(region)),
				slog.String("error", err.Error()),
			)
			results = append(results, res)
			continue
		}

		res.Title = fr.Title
		res.Details = fr.Details
		if fr.InStock {
			res.Status = ProbeInStock
		} else {
			res.Status = ProbeOutOfStock
		}
		results = append(results, res)
	}

	return results
}
