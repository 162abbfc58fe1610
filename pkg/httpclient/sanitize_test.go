package httpclient

import (
	"net/url"
	"strings"
	"testing"
)

func TestSanitizeURL(t *testing.T) {
	tests := []struct {
		name     string
		rawURL   string
		contains string
		redacted []string
	}{
		{
			name:     "api key redacted",
			rawURL:   "https://api.smith.langchain.com/runs/query?api_key=sk-secret&limit=100",
			contains: "limit=100",
			redacted: []string{"sk-secret"},
		},
		{
			name:     "token redacted case-insensitively",
			rawURL:   "https://gms.example.com/entities?TOKEN=abc123",
			redacted: []string{"abc123"},
		},
		{
			name:     "clean URL unchanged",
			rawURL:   "https://gms.example.com/health",
			contains: "/health",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := url.Parse(tt.rawURL)
			if err != nil {
				t.Fatalf("parse: %v", err)
			}

			got := sanitizeURL(u)

			if tt.contains != "" && !strings.Contains(got, tt.contains) {
				t.Errorf("sanitized URL %q missing %q", got, tt.contains)
			}
			for _, secret := range tt.redacted {
				if strings.Contains(got, secret) {
					t.Errorf("sanitized URL %q leaks %q", got, secret)
				}
			}
		})
	}
}

func TestSanitizeURL_Nil(t *testing.T) {
	if got := sanitizeURL(nil); got != "" {
		t.Errorf("expected empty string for nil URL, got %q", got)
	}
}
