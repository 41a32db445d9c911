package stock

import (
	"strings"
)

// ExtractProductID は商品参照から署名付きAPIの数値商品IDを取り出す。
//
// 受け付ける形式:
//   - 数値ID そのもの（例: "938"）
//   - クエリ形式（例: "https://www.popmart.com/au/pop-now/set?spuId=938"）
//   - パス形式（例: "https://www.popmart.com/au/products/938/labubu"）
//
// いずれにも当てはまらない場合はNotFoundのFetchErrorを返す。
func ExtractProductID(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", notFoundError("empty product reference")
	}

	if isDigits(ref) {
		return ref, nil
	}

	if _, after, ok := strings.Cut(ref, "spuId="); ok {
		id, _, _ := strings.Cut(after, "&")
		id, _, _ = strings.Cut(id, "#")
		if isDigits(id) {
			return id, nil
		}
		return "", notFoundError("spuId is not numeric in %q", ref)
	}

	if _, after, ok := strings.Cut(ref, "/products/"); ok {
		id, _, _ := strings.Cut(after, "/")
		id, _, _ = strings.Cut(id, "?")
		if isDigits(id) {
			return id, nil
		}
		return "", notFoundError("product path segment is not numeric in %q", ref)
	}

	return "", notFoundError("could not extract product id from %q", ref)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
