// Package model はドメインモデルを定義する。
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Region は在庫の取得元（ストア）を識別するタグ。
// 同一商品でもリージョンごとに在庫状態を独立して管理する。
type Region string

const (
	// RegionGlobal は署名付きAPI経由で確認するグローバルストア。
	RegionGlobal Region = "global"
	// RegionAU はShopifyストアフロント経由で確認するAUストア。
	RegionAU Region = "au"
)

// DisplayName は通知メッセージに表示するストア名を返す。
func (r Region) DisplayName() string {
	switch r {
	case RegionGlobal:
		return "Global"
	case RegionAU:
		return "AU"
	default:
		return string(r)
	}
}

// Valid は既知のリージョンかを返す。
func (r Region) Valid() bool {
	return r == RegionGlobal || r == RegionAU
}

// Product は監視対象の商品を表す。
// 管理APIから作成・編集され、監視コアからは読み取り専用として扱う。
type Product struct {
	ID         string
	Name       string
	GlobalLink string          // 署名付きAPIの商品ID、または商品ページURL
	AULink     string          // ストアフロントの商品ページURL
	Price      decimal.Decimal // 監視サブスクリプションの価格
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// SourceRef は1つの取得元に対する商品参照。
type SourceRef struct {
	Region    Region
	Reference string
}

// SourceRefs は空でない参照だけをリージョン順に返す。
func (p *Product) SourceRefs() []SourceRef {
	var refs []SourceRef
	if p.GlobalLink != "" {
		refs = append(refs, SourceRef{Region: RegionGlobal, Reference: p.GlobalLink})
	}
	if p.AULink != "" {
		refs = append(refs, SourceRef{Region: RegionAU, Reference: p.AULink})
	}
	return refs
}

// Link は指定リージョンの参照を返す。
func (p *Product) Link(region Region) string {
	switch region {
	case RegionGlobal:
		return p.GlobalLink
	case RegionAU:
		return p.AULink
	default:
		return ""
	}
}
