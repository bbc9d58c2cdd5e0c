package security

import (
	"strings"
	"testing"
)

// TestSanitizeHTML_RemovesScriptTags はscriptタグが除去されることを検証する。
func TestSanitizeHTML_RemovesScriptTags(t *testing.T) {
	s := NewContentSanitizer()

	input := `<p>健康情報</p><script>alert('xss')</script>`
	got := s.SanitizeHTML(input)

	if strings.Contains(got, "<script") {
		t.Errorf("expected script tag to be removed, got %q", got)
	}
	if !strings.Contains(got, "<p>健康情報</p>") {
		t.Errorf("expected allowed tag to survive, got %q", got)
	}
}

// TestSanitizeHTML_RemovesEventAttributes はon*イベント属性が除去されることを検証する。
func TestSanitizeHTML_RemovesEventAttributes(t *testing.T) {
	s := NewContentSanitizer()

	got := s.SanitizeHTML(`<p onclick="alert(1)">text</p>`)
	if strings.Contains(got, "onclick") {
		t.Errorf("expected onclick to be removed, got %q", got)
	}
}

// TestSanitizeHTML_LinksGetSafeAttributes はリンクにtarget/relが
// 付与されることを検証する。
func TestSanitizeHTML_LinksGetSafeAttributes(t *testing.T) {
	s := NewContentSanitizer()

	got := s.SanitizeHTML(`<a href="https://example.com">link</a>`)
	if !strings.Contains(got, `target="_blank"`) {
		t.Errorf("expected target=_blank, got %q", got)
	}
	if !strings.Contains(got, "noopener") {
		t.Errorf("expected rel noopener, got %q", got)
	}
}

// TestSanitizeHTML_ImageSchemes はimgのsrcがhttpsのみ許可されることを検証する。
func TestSanitizeHTML_ImageSchemes(t *testing.T) {
	s := NewContentSanitizer()

	tests := []struct {
		name  string
		input string
		want  bool // imgタグが残るか
	}{
		{"https許可", `<img src="https://example.com/a.png" alt="図">`, true},
		{"javascript拒否", `<img src="javascript:alert(1)">`, false},
		{"data拒否", `<img src="data:image/png;base64,xxxx">`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.SanitizeHTML(tt.input)
			hasSrc := strings.Contains(got, "src=")
			if hasSrc != tt.want {
				t.Errorf("input %q: got %q", tt.input, got)
			}
		})
	}
}

// TestSanitizeHTML_Idempotent は同一入力に同一出力を返すことを検証する。
func TestSanitizeHTML_Idempotent(t *testing.T) {
	s := NewContentSanitizer()

	input := `<p>text</p><script>bad()</script><a href="https://example.com">link</a>`
	first := s.SanitizeHTML(input)
	second := s.SanitizeHTML(first)
	if first != second {
		t.Errorf("expected idempotent output: first %q, second %q", first, second)
	}
}

// TestSanitizeText_StripsAllTags は自由記述テキストから
// すべてのタグが除去されることを検証する。
func TestSanitizeText_StripsAllTags(t *testing.T) {
	s := NewContentSanitizer()

	got := s.SanitizeText(`待ち時間が<b>長すぎ</b>ます<script>alert(1)</script>`)
	if strings.Contains(got, "<") {
		t.Errorf("expected all tags to be stripped, got %q", got)
	}
	if !strings.Contains(got, "長すぎ") {
		t.Errorf("expected text content to survive, got %q", got)
	}
}
