package s3client

import (
	"context"
	"fmt"
	"path"
	"strings"
)

// Backends selectable through Config.Backend.
const (
	BackendMinIO = "minio"
	BackendAWS   = "aws"
)

// Config represents the configuration for an S3 client
type Config struct {
	Backend   string
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Prefix    string
}

// Validate checks the settings every backend needs.
func (c Config) Validate() error {
	if c.Endpoint == "" {
		return fmt.Errorf("S3 endpoint is required")
	}
	if c.Bucket == "" {
		return fmt.Errorf("S3 bucket name is required")
	}
	if err := ValidateBucketName(c.Bucket); err != nil {
		return err
	}
	if c.AccessKey == "" || c.SecretKey == "" {
		return fmt.Errorf("S3 access key and secret key are required")
	}
	return nil
}

// Constructors used by New, replaceable in tests.
var (
	NewMinIOFunc = NewMinIO
	NewAWSFunc   = NewAWS
)

// New creates the blob store for cfg.Backend. An empty backend means MinIO.
func New(ctx context.Context, cfg Config) (S3Interface, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", BackendMinIO:
		return NewMinIOFunc(ctx, cfg)
	case BackendAWS:
		return NewAWSFunc(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown S3 backend %q", cfg.Backend)
	}
}

// bucketInfo holds what both backends report about their target.
type bucketInfo struct {
	config Config
}

// objectKey joins the configured prefix and key with a single slash.
func (b bucketInfo) objectKey(key string) string {
	key = strings.TrimPrefix(key, "/")
	prefix := strings.Trim(b.config.Prefix, "/")
	if prefix == "" {
		return key
	}
	return path.Join(prefix, key)
}

// GetBucketName returns the bucket name
func (b bucketInfo) GetBucketName() string {
	return b.config.Bucket
}

// GetEndpoint returns the endpoint
func (b bucketInfo) GetEndpoint() string {
	return b.config.Endpoint
}

// GetPrefix returns the prefix
func (b bucketInfo) GetPrefix() string {
	return b.config.Prefix
}

func contentTypeOrDefault(contentType string) string {
	if contentType == "" {
		return "application/octet-stream"
	}
	return contentType
}

// ValidateBucketName checks name against the S3 naming rules: 3 to 63
// lowercase letters, digits, dots and hyphens, starting and ending with a
// letter or digit.
func ValidateBucketName(name string) error {
	if len(name) < 3 || len(name) > 63 {
		return fmt.Errorf("bucket name %q must be between 3 and 63 characters", name)
	}
	for i, r := range name {
		alnum := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
		if alnum {
			continue
		}
		if (r != '-' && r != '.') || i == 0 || i == len(name)-1 {
			return fmt.Errorf("bucket name %q must be DNS compliant", name)
		}
	}
	return nil
}
