package storage

import (
	"fmt"
	"strings"

	"claims_portal_backend/platform/apperr"
)

// AllowedContentTypes lists what may be attached to a claim: photos of the
// damage, scans and office documents.
var AllowedContentTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
	"image/heic": true,

	"application/pdf":                                                         true,
	"application/msword":                                                      true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
	"application/vnd.ms-excel":                                                true,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":       true,
	"text/plain":                                                              true,
}

// ValidateContentType checks if the content type is allowed.
func (s *MinIOService) ValidateContentType(contentType string) error {
	// Normalize content type (remove parameters like charset)
	normalized := strings.Split(contentType, ";")[0]
	normalized = strings.TrimSpace(strings.ToLower(normalized))

	if !AllowedContentTypes[normalized] {
		return apperr.Validation(fmt.Sprintf("content type %q is not allowed", contentType))
	}
	return nil
}

// ValidateFileSize checks if the file size is within limits.
func (s *MinIOService) ValidateFileSize(sizeBytes int64) error {
	if sizeBytes <= 0 {
		return apperr.Validation("file size must be greater than 0")
	}
	if sizeBytes > s.maxFileSize {
		return apperr.Validation(fmt.Sprintf("file size %d bytes exceeds maximum allowed size of %d bytes", sizeBytes, s.maxFileSize))
	}
	return nil
}
