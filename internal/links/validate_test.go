package links

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateCode(t *testing.T) {
	tests := []struct {
		code    string
		wantErr bool
	}{
		{"abc123", false},
		{"ABCdef12", false},
		{"0000000", false},
		{"", true},
		{"ab", true},
		{"abcde", true},
		{"abcdefghi", true},
		{"abc-12", true},
		{"abc 123", true},
		{"ábc123", true},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := ValidateCode(tt.code)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateCode(%q) error = %v, wantErr %v", tt.code, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidCode) {
				t.Errorf("error %v does not wrap ErrInvalidCode", err)
			}
		})
	}
}

func TestValidateTargetURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"https", "https://example.com/path?q=1", false},
		{"http with port", "http://localhost:3000", false},
		{"other scheme with host", "ftp://files.example.com/a.txt", false},
		{"empty", "", true},
		{"whitespace", "   ", true},
		{"no scheme", "not-a-url", true},
		{"relative path", "/just/a/path", true},
		{"scheme without host", "mailto:someone@example.com", true},
		{"too long", "https://example.com/" + strings.Repeat("a", MaxURLLength), true},
		{"unparseable", "http://[::1", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTargetURL(tt.url)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateTargetURL(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidURL) {
				t.Errorf("error %v does not wrap ErrInvalidURL", err)
			}
		})
	}
}
