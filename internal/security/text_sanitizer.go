package security

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizer はTelegramのHTMLメッセージに埋め込む文字列を無害化する。
// タグをすべて除去し、残ったテキストをHTMLエスケープする。
type TextSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerを生成する。
func NewTextSanitizer() *TextSanitizer {
	return &TextSanitizer{policy: bluemonday.StrictPolicy()}
}

// Sanitize は商品名などの外部由来テキストからタグを除去して返す。
// 連続する空白は1つにまとめる。
func (s *TextSanitizer) Sanitize(text string) string {
	return strings.Join(strings.Fields(s.policy.Sanitize(text)), " ")
}
