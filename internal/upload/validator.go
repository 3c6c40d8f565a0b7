// Package upload validates untrusted document uploads before they reach the
// prompt assembler.
package upload

import (
	"fmt"
	"io"
	"mime/multipart"

	"github.com/tjfontaine/rx-inference-gateway/internal/codec"
	"github.com/tjfontaine/rx-inference-gateway/internal/domain"
)

// DefaultMaxSize is the hard upload ceiling (25 MiB).
const DefaultMaxSize int64 = 25 * 1024 * 1024

// minImageBase64Len is the shortest base64 encoding accepted for an image.
// It is a coarse plausibility check, not a format check.
const minImageBase64Len = 100

// Validator checks uploads against the media type allow-list and size ceiling.
type Validator struct {
	maxSize int64
}

// Option configures the validator.
type Option func(*Validator)

// WithMaxSize sets the maximum allowed upload size in bytes.
func WithMaxSize(maxSize int64) Option {
	return func(v *Validator) {
		if maxSize > 0 {
			v.maxSize = maxSize
		}
	}
}

// New creates a new validator.
func New(opts ...Option) *Validator {
	v := &Validator{
		maxSize: DefaultMaxSize,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// MaxSize returns the configured ceiling in bytes.
func (v *Validator) MaxSize() int64 {
	return v.maxSize
}

// ResolveMediaType derives the media type from the filename extension,
// falling back to the declared content type. The result is normalized but not
// checked against the allow-list.
func ResolveMediaType(name, contentType string) string {
	if mt := codec.InferMediaType(name); mt != "" {
		return mt
	}
	return codec.NormalizeMediaType(contentType)
}

// CheckSize rejects sizes above the ceiling.
func (v *Validator) CheckSize(size int64) error {
	if size > v.maxSize {
		return domain.ErrPayloadTooLarge(fmt.Sprintf("File size exceeds %dMB limit", v.maxSize/(1024*1024)))
	}
	return nil
}

// Validate checks an in-memory upload and returns the resulting document.
func (v *Validator) Validate(name, contentType string, data []byte) (*domain.Document, error) {
	if err := v.CheckSize(int64(len(data))); err != nil {
		return nil, err
	}

	mediaType := ResolveMediaType(name, contentType)
	if !codec.IsSupportedMediaType(mediaType) {
		return nil, domain.ErrUnsupportedMediaType("Unsupported file type. Please use PNG, JPEG, GIF, WebP, or PDF.")
	}

	doc := &domain.Document{
		Name:      name,
		Size:      int64(len(data)),
		MediaType: mediaType,
		Data:      data,
	}

	if len(data) == 0 {
		return nil, domain.ErrInvalidPayload("Failed to process file data")
	}

	if doc.IsImage() && codec.Base64Len(len(data)) < minImageBase64Len {
		return nil, domain.ErrInvalidPayload("Invalid image format. Please ensure the image is not corrupted and is in a supported format.")
	}

	return doc, nil
}

// ReadFile validates a multipart file. The declared size is checked before any
// bytes are read, and at most MaxSize()+1 bytes are ever read.
func (v *Validator) ReadFile(fh *multipart.FileHeader) (*domain.Document, error) {
	if err := v.CheckSize(fh.Size); err != nil {
		return nil, err
	}

	f, err := fh.Open()
	if err != nil {
		return nil, domain.ErrInvalidRequest("Failed to process file data").WithCause(err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, v.maxSize+1))
	if err != nil {
		return nil, domain.ErrInvalidRequest("Failed to process file data").WithCause(err)
	}

	return v.Validate(fh.Filename, fh.Header.Get("Content-Type"), data)
}
