// Package storage wraps S3-compatible object storage for claim documents.
// Clients upload directly to presigned URLs; the API only records metadata.
package storage

import (
	"context"
	"time"

	"claims_portal_backend/platform/config"
)

// PresignedURL contains the URL and metadata for a presigned upload/download operation.
type PresignedURL struct {
	URL       string    `json:"url"`
	FileKey   string    `json:"fileKey"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// StorageService defines the object storage operations used by the API.
type StorageService interface {
	// GenerateUploadURL creates a presigned URL for uploading a file under
	// folder (e.g. "claims/{claimNumber}"). It validates type and size first.
	GenerateUploadURL(ctx context.Context, bucket, folder, fileName, contentType string, sizeBytes int64) (*PresignedURL, error)

	// GenerateDownloadURL creates a presigned URL for downloading a file.
	GenerateDownloadURL(ctx context.Context, bucket, fileKey string) (*PresignedURL, error)

	// EnsureBucketExists creates the bucket if it doesn't exist.
	EnsureBucketExists(ctx context.Context, bucket string) error
}

// Config is the storage slice of the application config.
type Config = config.MinIOConfig
