// Package codec provides utilities for converting between wire formats and
// canonical domain types.
package codec

import (
	"encoding/base64"
	"path/filepath"
	"strings"

	"github.com/tjfontaine/rx-inference-gateway/internal/domain"
)

// extensionMediaTypes maps lower-cased file extensions to media types.
var extensionMediaTypes = map[string]string{
	"png":  domain.MediaTypePNG,
	"jpg":  domain.MediaTypeJPEG,
	"jpeg": domain.MediaTypeJPEG,
	"gif":  domain.MediaTypeGIF,
	"webp": domain.MediaTypeWebP,
	"pdf":  domain.MediaTypePDF,
}

// InferMediaType attempts to infer the media type from a filename extension.
// Returns "" when the extension is absent or unknown.
func InferMediaType(name string) string {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
	return extensionMediaTypes[ext]
}

// IsSupportedMediaType checks if the media type is accepted for analysis.
func IsSupportedMediaType(mediaType string) bool {
	switch NormalizeMediaType(mediaType) {
	case domain.MediaTypePNG, domain.MediaTypeJPEG, domain.MediaTypeGIF,
		domain.MediaTypeWebP, domain.MediaTypePDF:
		return true
	default:
		return false
	}
}

// NormalizeMediaType normalizes the media type to a standard format.
func NormalizeMediaType(mediaType string) string {
	mainType := strings.Split(mediaType, ";")[0]
	mainType = strings.TrimSpace(strings.ToLower(mainType))

	// Normalize image/jpg to image/jpeg
	if mainType == "image/jpg" {
		return domain.MediaTypeJPEG
	}
	return mainType
}

// Base64Len returns the length of the standard base64 encoding of n bytes.
func Base64Len(n int) int {
	return base64.StdEncoding.EncodedLen(n)
}
