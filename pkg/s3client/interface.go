package s3client

import (
	"context"
	"io"
)

// S3Interface is the blob store the upload orchestrator writes images to.
// Keys are opaque; the configured prefix is applied by the implementation.
type S3Interface interface {
	UploadFile(ctx context.Context, reader io.Reader, objectKey string, size int64, metadata map[string]string, contentType string) error
	ObjectExists(ctx context.Context, objectKey string) (bool, error)
	// GetObject returns ErrObjectNotFound for a missing key.
	GetObject(ctx context.Context, objectKey string) (io.ReadCloser, error)
	DeleteObject(ctx context.Context, objectKey string) error
	GetBucketName() string
	GetEndpoint() string
	GetPrefix() string
}
