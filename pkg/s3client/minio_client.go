package s3client

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/bstardust/photo-ingest/internal/logger"
)

// minioAPI is the part of *minio.Client the blob store uses.
type minioAPI interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
	GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (*minio.Object, error)
	RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error
}

// MinioClient is a blob store on the MinIO SDK
type MinioClient struct {
	bucketInfo
	client minioAPI
}

// NewMinIO connects to an S3-compatible endpoint and checks the bucket exists.
func NewMinIO(ctx context.Context, cfg Config) (S3Interface, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	endpoint := strings.TrimPrefix(cfg.Endpoint, "https://")
	endpoint = strings.TrimPrefix(endpoint, "http://")

	client, err := minio.New(endpoint, &minio.Options{
		Creds:        credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:       cfg.UseSSL,
		Region:       cfg.Region,
		BucketLookup: minio.BucketLookupAuto,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check if bucket exists: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("bucket %s: %w", cfg.Bucket, ErrBucketNotFound)
	}

	logger.Info("Connected to S3 endpoint %s, bucket %s using MinIO SDK", endpoint, cfg.Bucket)
	return newMinioClient(client, cfg), nil
}

func newMinioClient(api minioAPI, cfg Config) *MinioClient {
	return &MinioClient{bucketInfo: bucketInfo{config: cfg}, client: api}
}

// UploadFile stores reader under objectKey with the given user metadata.
func (c *MinioClient) UploadFile(ctx context.Context, reader io.Reader, objectKey string, size int64, metadata map[string]string, contentType string) error {
	key := c.objectKey(objectKey)

	info, err := c.client.PutObject(ctx, c.config.Bucket, key, reader, size, minio.PutObjectOptions{
		ContentType:  contentTypeOrDefault(contentType),
		UserMetadata: metadata,
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}

	logger.Debug("Uploaded %s (%d bytes, etag: %s)", key, info.Size, info.ETag)
	return nil
}

// ObjectExists reports whether objectKey is stored.
func (c *MinioClient) ObjectExists(ctx context.Context, objectKey string) (bool, error) {
	_, err := c.client.StatObject(ctx, c.config.Bucket, c.objectKey(objectKey), minio.StatObjectOptions{})
	if err != nil {
		if IsNotFoundError(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check if object exists: %w", err)
	}
	return true, nil
}

// GetObject opens the stored bytes of objectKey.
func (c *MinioClient) GetObject(ctx context.Context, objectKey string) (io.ReadCloser, error) {
	key := c.objectKey(objectKey)

	obj, err := c.client.GetObject(ctx, c.config.Bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, wrapNotFound(key, err)
	}
	// GetObject is lazy; Stat surfaces a missing key before streaming starts.
	if _, err := obj.Stat(); err != nil {
		_ = obj.Close()
		return nil, wrapNotFound(key, err)
	}
	return obj, nil
}

// DeleteObject removes objectKey. Removing a missing key is not an error.
func (c *MinioClient) DeleteObject(ctx context.Context, objectKey string) error {
	key := c.objectKey(objectKey)

	if err := c.client.RemoveObject(ctx, c.config.Bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}

	logger.Debug("Deleted object %s", key)
	return nil
}
