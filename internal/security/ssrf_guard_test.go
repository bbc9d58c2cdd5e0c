package security

import (
	"testing"
	"time"
)

// TestValidateURL_AllowsPublicHTTPS は公開ホストのhttps URLが許可されることを検証する。
func TestValidateURL_AllowsPublicHTTPS(t *testing.T) {
	g := NewSSRFGuard()

	valid := []string{
		"https://www.who.int/rss-feeds/news-english.xml",
		"http://example.com/feed",
		"https://8.8.8.8/feed.xml",
	}
	for _, u := range valid {
		if err := g.ValidateURL(u); err != nil {
			t.Errorf("expected %q to be allowed, got %v", u, err)
		}
	}
}

// TestValidateURL_BlocksDangerousURLs は危険なURLが拒否されることを検証する。
func TestValidateURL_BlocksDangerousURLs(t *testing.T) {
	g := NewSSRFGuard()

	tests := []struct {
		name string
		url  string
	}{
		{"空URL", ""},
		{"ftpスキーム", "ftp://example.com/feed"},
		{"fileスキーム", "file:///etc/passwd"},
		{"javascriptスキーム", "javascript:alert(1)"},
		{"localhost", "http://localhost/feed"},
		{"ループバックIP", "http://127.0.0.1/feed"},
		{"プライベートIP 10系", "http://10.0.0.5/feed"},
		{"プライベートIP 172系", "http://172.16.0.1/feed"},
		{"プライベートIP 192系", "http://192.168.1.1/feed"},
		{"メタデータIP", "http://169.254.169.254/latest/meta-data/"},
		{"IPv6ループバック", "http://[::1]/feed"},
		{"ホスト無し", "https:///path"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := g.ValidateURL(tt.url); err == nil {
				t.Errorf("expected %q to be blocked", tt.url)
			}
		})
	}
}

// TestNewSafeClient_ReturnsClient はSSRF防止付きクライアントが生成されることを検証する。
func TestNewSafeClient_ReturnsClient(t *testing.T) {
	g := NewSSRFGuard()

	client := g.NewSafeClient(10 * time.Second)
	if client == nil {
		t.Fatal("expected non-nil client")
	}
}
