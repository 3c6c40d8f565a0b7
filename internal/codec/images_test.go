package codec

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/tjfontaine/rx-inference-gateway/internal/domain"
)

func TestInferMediaType(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"scan.png", "image/png"},
		{"SCAN.PNG", "image/png"},
		{"photo.jpg", "image/jpeg"},
		{"photo.jpeg", "image/jpeg"},
		{"anim.gif", "image/gif"},
		{"pic.webp", "image/webp"},
		{"rx.pdf", "application/pdf"},
		{"archive.tar.gz", ""},
		{"noextension", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := InferMediaType(tt.name); got != tt.want {
				t.Errorf("InferMediaType(%q) = %q, want %q", tt.name, got, tt.want)
			}
		})
	}
}

func TestNormalizeMediaType(t *testing.T) {
	tests := map[string]string{
		"image/jpg":                  "image/jpeg",
		"IMAGE/PNG":                  "image/png",
		"application/pdf; charset=x": "application/pdf",
		" image/webp ":               "image/webp",
	}
	for in, want := range tests {
		if got := NormalizeMediaType(in); got != want {
			t.Errorf("NormalizeMediaType(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestIsSupportedMediaType(t *testing.T) {
	supported := []string{"image/png", "image/jpeg", "image/jpg", "image/gif", "image/webp", "application/pdf"}
	for _, mt := range supported {
		if !IsSupportedMediaType(mt) {
			t.Errorf("%s should be supported", mt)
		}
	}

	unsupported := []string{"", "text/plain", "image/tiff", "application/octet-stream"}
	for _, mt := range unsupported {
		if IsSupportedMediaType(mt) {
			t.Errorf("%s should not be supported", mt)
		}
	}
}

func TestWriteError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"quota", domain.ErrQuotaExceeded("API quota exceeded. Please try again later."), http.StatusTooManyRequests, "quota_exceeded"},
		{"empty input", domain.ErrEmptyInput("Message is required"), http.StatusBadRequest, "empty_input"},
		{"unavailable", domain.ErrUpstreamUnavailable("AI service temporarily unavailable."), http.StatusServiceUnavailable, "upstream_unavailable"},
		{"plain error", errors.New("kaboom"), http.StatusInternalServerError, "internal"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			WriteError(rec, tt.err)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q", ct)
			}

			var body map[string]string
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("invalid JSON body: %v", err)
			}
			if body["code"] != tt.wantCode {
				t.Errorf("code = %q, want %q", body["code"], tt.wantCode)
			}
			if body["error"] == "" {
				t.Error("expected error message")
			}
		})
	}
}

func TestWriteError_DoesNotLeakCause(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, errors.New("secret upstream detail"))

	var body map[string]string
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body["error"] == "secret upstream detail" {
		t.Error("unclassified error text should not reach the caller")
	}
}
