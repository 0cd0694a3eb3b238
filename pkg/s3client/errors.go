package s3client

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/minio/minio-go/v7"
)

// Common errors
var (
	ErrBucketNotFound = errors.New("bucket not found")
	ErrObjectNotFound = errors.New("object not found")
)

// IsNotFoundError reports whether err means a missing bucket or key on
// either backend.
func IsNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrBucketNotFound) || errors.Is(err, ErrObjectNotFound) {
		return true
	}

	var minioErr minio.ErrorResponse
	if errors.As(err, &minioErr) {
		switch minioErr.Code {
		case "NoSuchBucket", "NoSuchKey", "NotFound":
			return true
		}
		return minioErr.StatusCode == http.StatusNotFound
	}

	var reqErr awserr.RequestFailure
	if errors.As(err, &reqErr) && reqErr.StatusCode() == http.StatusNotFound {
		return true
	}
	var awsErr awserr.Error
	if errors.As(err, &awsErr) {
		switch awsErr.Code() {
		case s3.ErrCodeNoSuchBucket, s3.ErrCodeNoSuchKey, "NotFound":
			return true
		}
	}
	return false
}

// IsAuthError reports whether err is a credential or permission failure.
func IsAuthError(err error) bool {
	if err == nil {
		return false
	}

	code := errorCode(err)
	switch code {
	case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch", "AuthorizationHeaderMalformed":
		return true
	}

	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "access denied") || strings.Contains(errStr, "invalid credential")
}

// ErrorCode returns the S3 error code carried by err, or "".
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	return errorCode(err)
}

func errorCode(err error) string {
	var minioErr minio.ErrorResponse
	if errors.As(err, &minioErr) {
		return minioErr.Code
	}
	var awsErr awserr.Error
	if errors.As(err, &awsErr) {
		return awsErr.Code()
	}
	return ""
}

// FormatError formats an error for display
func FormatError(err error) string {
	if err == nil {
		return ""
	}

	var minioErr minio.ErrorResponse
	if errors.As(err, &minioErr) {
		return fmt.Sprintf("S3 error: %s (code: %s)", minioErr.Message, minioErr.Code)
	}
	var awsErr awserr.Error
	if errors.As(err, &awsErr) {
		return fmt.Sprintf("S3 error: %s (code: %s)", awsErr.Message(), awsErr.Code())
	}
	return err.Error()
}

func wrapNotFound(key string, err error) error {
	if IsNotFoundError(err) {
		return fmt.Errorf("%s: %w", key, ErrObjectNotFound)
	}
	return fmt.Errorf("failed to get %s: %w", key, err)
}
