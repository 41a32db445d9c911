package security

import (
	"strings"
	"testing"
)

func TestTextSanitizer_Sanitize(t *testing.T) {
	s := NewTextSanitizer()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"プレーンテキスト", "LABUBU Big Into Energy", "LABUBU Big Into Energy"},
		{"空文字", "", ""},
		{"空白の正規化", "  LABUBU \n  Series  ", "LABUBU Series"},
		{"太字タグの除去", "<b>LABUBU</b>", "LABUBU"},
		{"スクリプトの除去", "LABUBU<script>alert(1)</script>", "LABUBU"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.Sanitize(tt.in); got != tt.want {
				t.Errorf("Sanitize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestTextSanitizer_EscapesMarkup(t *testing.T) {
	s := NewTextSanitizer()

	got := s.Sanitize("Tom & Jerry <3")
	if strings.Contains(got, "<") || strings.Contains(got, " & ") {
		t.Errorf("HTML特殊文字はエスケープされるべき: %q", got)
	}
}
