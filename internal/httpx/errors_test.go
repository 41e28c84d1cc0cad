package httpx

import (
	"net/http"
	"testing"

	"github.com/sundayezeilo/shortlinks/internal/errx"
)

func TestErrorKindMapping(t *testing.T) {
	tests := []struct {
		name       string
		kind       errx.Kind
		wantStatus int
		wantCode   string
	}{
		{"not found", errx.NotFound, http.StatusNotFound, "not_found"},
		{"conflict", errx.Conflict, http.StatusConflict, "conflict"},
		{"invalid", errx.Invalid, http.StatusBadRequest, "invalid_input"},
		{"storage", errx.Storage, http.StatusInternalServerError, "storage_error"},
		{"timeout", errx.Timeout, http.StatusGatewayTimeout, "timeout"},
		{"internal", errx.Internal, http.StatusInternalServerError, "internal_error"},
		{"unknown", errx.Unknown, http.StatusInternalServerError, "internal_error"},
		{"invalid kind value", errx.Kind(99), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ErrorKindToStatus(tt.kind); got != tt.wantStatus {
				t.Errorf("ErrorKindToStatus(%v) = %d, want %d", tt.kind, got, tt.wantStatus)
			}
			if got := ErrorKindToCode(tt.kind); got != tt.wantCode {
				t.Errorf("ErrorKindToCode(%v) = %q, want %q", tt.kind, got, tt.wantCode)
			}
		})
	}
}

func TestClientErrorsAreFourHundreds(t *testing.T) {
	for _, kind := range []errx.Kind{errx.NotFound, errx.Conflict, errx.Invalid} {
		if status := ErrorKindToStatus(kind); status < 400 || status >= 500 {
			t.Errorf("ErrorKindToStatus(%v) = %d, want a 4xx status", kind, status)
		}
	}
	for _, kind := range []errx.Kind{errx.Storage, errx.Timeout} {
		if status := ErrorKindToStatus(kind); status < 500 {
			t.Errorf("ErrorKindToStatus(%v) = %d, want a 5xx status", kind, status)
		}
	}
}
