package stock

import (
	"testing"
)

func TestExtractProductID(t *testing.T) {
	tests := []struct {
		name    string
		ref     string
		want    string
		wantErr bool
	}{
		{name: "数値ID", ref: "938", want: "938"},
		{name: "前後の空白", ref: "  938 ", want: "938"},
		{name: "クエリ形式", ref: "https://www.popmart.com/goods/detail?spuId=938", want: "938"},
		{name: "クエリ形式（後続パラメータあり）", ref: "https://www.popmart.com/goods/detail?spuId=938&lang=en", want: "938"},
		{name: "パス形式", ref: "https://www.popmart.com/au/products/643/THE-MONSTERS-Big-into-Energy", want: "643"},
		{name: "パス形式（末尾なし）", ref: "https://www.popmart.com/au/products/643", want: "643"},
		{name: "パス形式（クエリ付き）", ref: "https://www.popmart.com/au/products/643?ref=home", want: "643"},
		{name: "空文字", ref: "", wantErr: true},
		{name: "非数値のspuId", ref: "https://www.popmart.com/goods/detail?spuId=abc", wantErr: true},
		{name: "非数値のパス", ref: "https://www.popmart.com/au/products/labubu/643", wantErr: true},
		{name: "未知の形式", ref: "https://www.popmart.com/au/collection/1", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractProductID(tt.ref)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ExtractProductID(%q) はエラーを返すべき, got %q", tt.ref, got)
				}
				if KindOf(err) != KindNotFound {
					t.Errorf("エラー種別 = %q, want %q", KindOf(err), KindNotFound)
				}
				return
			}
			if err != nil {
				t.Fatalf("ExtractProductID(%q) がエラーを返した: %v", tt.ref, err)
			}
			if got != tt.want {
				t.Errorf("ExtractProductID(%q) = %q, want %q", tt.ref, got, tt.want)
			}
		})
	}
}
