package s3client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"

	"github.com/bstardust/photo-ingest/internal/logger"
)

const (
	// Uploads below this size go through a single PutObject.
	multipartThreshold = 10 * 1024 * 1024
	multipartPartSize  = 10 * 1024 * 1024
)

// AWSClient is a blob store on the AWS SDK. Some S3-compatible services
// (Backblaze B2, R2) reject the streaming checksums minio-go sends.
type AWSClient struct {
	bucketInfo
	client   s3iface.S3API
	uploader *s3manager.Uploader
}

// NewAWS connects to an S3 endpoint and checks the bucket exists.
func NewAWS(ctx context.Context, cfg Config) (S3Interface, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	endpoint := cfg.Endpoint
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		if cfg.UseSSL {
			endpoint = "https://" + endpoint
		} else {
			endpoint = "http://" + endpoint
		}
	}

	sess, err := session.NewSession(&aws.Config{
		Credentials:      credentials.NewStaticCredentials(cfg.AccessKey, cfg.SecretKey, ""),
		Endpoint:         aws.String(endpoint),
		Region:           aws.String(cfg.Region),
		S3ForcePathStyle: aws.Bool(true),
		DisableSSL:       aws.Bool(!cfg.UseSSL),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	client := s3.New(sess)
	if _, err := client.HeadBucketWithContext(ctx, &s3.HeadBucketInput{Bucket: aws.String(cfg.Bucket)}); err != nil {
		if IsNotFoundError(err) {
			return nil, fmt.Errorf("bucket %s: %w", cfg.Bucket, ErrBucketNotFound)
		}
		return nil, fmt.Errorf("failed to check if bucket exists: %w", err)
	}

	logger.Info("Connected to S3 endpoint %s, bucket %s using AWS SDK", endpoint, cfg.Bucket)
	return newAWSClient(client, cfg), nil
}

func newAWSClient(api s3iface.S3API, cfg Config) *AWSClient {
	return &AWSClient{
		bucketInfo: bucketInfo{config: cfg},
		client:     api,
		uploader: s3manager.NewUploaderWithClient(api, func(u *s3manager.Uploader) {
			u.PartSize = multipartPartSize
			u.Concurrency = 4
			u.LeavePartsOnError = false
		}),
	}
}

// UploadFile stores reader under objectKey with the given user metadata.
func (c *AWSClient) UploadFile(ctx context.Context, reader io.Reader, objectKey string, size int64, metadata map[string]string, contentType string) error {
	key := c.objectKey(objectKey)
	contentType = contentTypeOrDefault(contentType)

	awsMetadata := make(map[string]*string, len(metadata))
	for k, v := range metadata {
		awsMetadata[k] = aws.String(v)
	}

	if size < multipartThreshold {
		body, ok := reader.(io.ReadSeeker)
		if !ok {
			buf := &bytes.Buffer{}
			if _, err := io.Copy(buf, reader); err != nil {
				return fmt.Errorf("failed to buffer %s: %w", key, err)
			}
			body = bytes.NewReader(buf.Bytes())
		}

		_, err := c.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(c.config.Bucket),
			Key:         aws.String(key),
			Body:        body,
			ContentType: aws.String(contentType),
			Metadata:    awsMetadata,
		})
		if err != nil {
			return fmt.Errorf("failed to upload %s: %w", key, err)
		}
	} else {
		_, err := c.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
			Bucket:      aws.String(c.config.Bucket),
			Key:         aws.String(key),
			Body:        reader,
			ContentType: aws.String(contentType),
			Metadata:    awsMetadata,
		})
		if err != nil {
			return fmt.Errorf("failed to upload %s: %w", key, err)
		}
	}

	logger.Debug("Uploaded %s (%d bytes)", key, size)
	return nil
}

// ObjectExists reports whether objectKey is stored.
func (c *AWSClient) ObjectExists(ctx context.Context, objectKey string) (bool, error) {
	_, err := c.client.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(c.config.Bucket),
		Key:    aws.String(c.objectKey(objectKey)),
	})
	if err != nil {
		if IsNotFoundError(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check if object exists: %w", err)
	}
	return true, nil
}

// GetObject opens the stored bytes of objectKey.
func (c *AWSClient) GetObject(ctx context.Context, objectKey string) (io.ReadCloser, error) {
	key := c.objectKey(objectKey)

	out, err := c.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.config.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, wrapNotFound(key, err)
	}
	return out.Body, nil
}

// DeleteObject removes objectKey.
func (c *AWSClient) DeleteObject(ctx context.Context, objectKey string) error {
	key := c.objectKey(objectKey)

	_, err := c.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.config.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}

	logger.Debug("Deleted object %s", key)
	return nil
}
