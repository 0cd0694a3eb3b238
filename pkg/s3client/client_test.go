package s3client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockMinioAPI is a mock of the MinIO calls the blob store makes
type MockMinioAPI struct {
	mock.Mock
}

func (m *MockMinioAPI) PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	args := m.Called(ctx, bucketName, objectName, reader, objectSize, opts)
	return args.Get(0).(minio.UploadInfo), args.Error(1)
}

func (m *MockMinioAPI) StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error) {
	args := m.Called(ctx, bucketName, objectName, opts)
	return args.Get(0).(minio.ObjectInfo), args.Error(1)
}

func (m *MockMinioAPI) GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (*minio.Object, error) {
	args := m.Called(ctx, bucketName, objectName, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*minio.Object), args.Error(1)
}

func (m *MockMinioAPI) RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error {
	args := m.Called(ctx, bucketName, objectName, opts)
	return args.Error(0)
}

// MockS3API overrides the S3 calls the AWS blob store makes
type MockS3API struct {
	s3iface.S3API
	mock.Mock
}

func (m *MockS3API) PutObjectWithContext(ctx aws.Context, in *s3.PutObjectInput, _ ...request.Option) (*s3.PutObjectOutput, error) {
	args := m.Called(ctx, in)
	return &s3.PutObjectOutput{}, args.Error(0)
}

func (m *MockS3API) HeadObjectWithContext(ctx aws.Context, in *s3.HeadObjectInput, _ ...request.Option) (*s3.HeadObjectOutput, error) {
	args := m.Called(ctx, in)
	return &s3.HeadObjectOutput{}, args.Error(0)
}

func (m *MockS3API) GetObjectWithContext(ctx aws.Context, in *s3.GetObjectInput, _ ...request.Option) (*s3.GetObjectOutput, error) {
	args := m.Called(ctx, in)
	if err := args.Error(1); err != nil {
		return nil, err
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(args.Get(0).([]byte)))}, nil
}

func (m *MockS3API) DeleteObjectWithContext(ctx aws.Context, in *s3.DeleteObjectInput, _ ...request.Option) (*s3.DeleteObjectOutput, error) {
	args := m.Called(ctx, in)
	return &s3.DeleteObjectOutput{}, args.Error(0)
}

func TestNew(t *testing.T) {
	origNewMinIO := NewMinIOFunc
	origNewAWS := NewAWSFunc
	defer func() {
		NewMinIOFunc = origNewMinIO
		NewAWSFunc = origNewAWS
	}()

	var used string
	NewMinIOFunc = func(ctx context.Context, cfg Config) (S3Interface, error) {
		used = BackendMinIO
		return &MinioClient{}, nil
	}
	NewAWSFunc = func(ctx context.Context, cfg Config) (S3Interface, error) {
		used = BackendAWS
		return &AWSClient{}, nil
	}

	tests := []struct {
		backend string
		want    string
		wantErr bool
	}{
		{"", BackendMinIO, false},
		{"minio", BackendMinIO, false},
		{"AWS", BackendAWS, false},
		{"gcs", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.backend, func(t *testing.T) {
			used = ""
			client, err := New(context.Background(), Config{Backend: tt.backend})
			if tt.wantErr {
				assert.Error(t, err)
				assert.Empty(t, used)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, client)
			assert.Equal(t, tt.want, used)
		})
	}
}

func TestConfigValidate(t *testing.T) {
	valid := Config{Endpoint: "s3.local", Bucket: "images", AccessKey: "a", SecretKey: "s"}
	assert.NoError(t, valid.Validate())

	missingBucket := valid
	missingBucket.Bucket = ""
	assert.Error(t, missingBucket.Validate())

	missingSecret := valid
	missingSecret.SecretKey = ""
	assert.Error(t, missingSecret.Validate())
}

func TestValidateBucketName(t *testing.T) {
	tests := []struct {
		name  string
		valid bool
	}{
		{"images", true},
		{"photo-ingest.eu", true},
		{"ab", false},
		{strings.Repeat("a", 64), false},
		{"Photos", false},
		{"my bucket", false},
		{"-images", false},
		{"images.", false},
		{"under_score", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateBucketName(tt.name)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestObjectKey(t *testing.T) {
	tests := []struct {
		prefix string
		key    string
		want   string
	}{
		{"", "abc", "abc"},
		{"", "/abc", "abc"},
		{"photos", "abc", "photos/abc"},
		{"photos/", "/abc", "photos/abc"},
		{"/a/b/", "c", "a/b/c"},
	}

	for _, tt := range tests {
		b := bucketInfo{config: Config{Prefix: tt.prefix}}
		assert.Equal(t, tt.want, b.objectKey(tt.key), "%q + %q", tt.prefix, tt.key)
	}
}

func TestMinioClientUpload(t *testing.T) {
	ctx := context.Background()
	api := &MockMinioAPI{}
	client := newMinioClient(api, Config{Bucket: "images", Prefix: "raw"})
	body := bytes.NewReader([]byte("jpeg"))
	meta := map[string]string{"file_name": "a.jpg"}

	api.On("PutObject", ctx, "images", "raw/key-1", body, int64(4), minio.PutObjectOptions{
		ContentType:  "image/jpeg",
		UserMetadata: meta,
	}).Return(minio.UploadInfo{Size: 4}, nil)

	require.NoError(t, client.UploadFile(ctx, body, "key-1", 4, meta, "image/jpeg"))
	api.AssertExpectations(t)
}

func TestMinioClientObjectExists(t *testing.T) {
	ctx := context.Background()
	api := &MockMinioAPI{}
	client := newMinioClient(api, Config{Bucket: "images"})

	api.On("StatObject", ctx, "images", "present", minio.StatObjectOptions{}).Return(minio.ObjectInfo{Key: "present"}, nil)
	api.On("StatObject", ctx, "images", "missing", minio.StatObjectOptions{}).
		Return(minio.ObjectInfo{}, minio.ErrorResponse{Code: "NoSuchKey", StatusCode: http.StatusNotFound})
	api.On("StatObject", ctx, "images", "broken", minio.StatObjectOptions{}).
		Return(minio.ObjectInfo{}, minio.ErrorResponse{Code: "InternalError", StatusCode: http.StatusInternalServerError})

	ok, err := client.ObjectExists(ctx, "present")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = client.ObjectExists(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = client.ObjectExists(ctx, "broken")
	assert.Error(t, err)
}

func TestMinioClientDelete(t *testing.T) {
	ctx := context.Background()
	api := &MockMinioAPI{}
	client := newMinioClient(api, Config{Bucket: "images"})

	api.On("RemoveObject", ctx, "images", "a", minio.RemoveObjectOptions{}).Return(nil)
	api.On("RemoveObject", ctx, "images", "b", minio.RemoveObjectOptions{}).Return(errors.New("SlowDown"))

	assert.NoError(t, client.DeleteObject(ctx, "a"))
	assert.Error(t, client.DeleteObject(ctx, "b"))
}

func TestAWSClient(t *testing.T) {
	ctx := context.Background()
	api := &MockS3API{}
	client := newAWSClient(api, Config{Bucket: "images", Prefix: "p"})

	api.On("PutObjectWithContext", ctx, mock.MatchedBy(func(in *s3.PutObjectInput) bool {
		return aws.StringValue(in.Key) == "p/k" &&
			aws.StringValue(in.ContentType) == "application/octet-stream" &&
			aws.StringValue(in.Metadata["file_size"]) == "3"
	})).Return(nil)
	api.On("HeadObjectWithContext", ctx, mock.Anything).
		Return(awserr.NewRequestFailure(awserr.New("NotFound", "Not Found", nil), http.StatusNotFound, "req"))
	api.On("GetObjectWithContext", ctx, mock.MatchedBy(func(in *s3.GetObjectInput) bool {
		return aws.StringValue(in.Key) == "p/k"
	})).Return([]byte("abc"), nil)
	api.On("GetObjectWithContext", ctx, mock.MatchedBy(func(in *s3.GetObjectInput) bool {
		return aws.StringValue(in.Key) == "p/gone"
	})).Return(nil, awserr.New(s3.ErrCodeNoSuchKey, "The specified key does not exist.", nil))
	api.On("DeleteObjectWithContext", ctx, mock.Anything).Return(nil)

	require.NoError(t, client.UploadFile(ctx, bytes.NewReader([]byte("abc")), "k", 3, map[string]string{"file_size": "3"}, ""))

	ok, err := client.ObjectExists(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	rc, err := client.GetObject(ctx, "k")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "abc", string(data))

	_, err = client.GetObject(ctx, "gone")
	assert.ErrorIs(t, err, ErrObjectNotFound)

	assert.NoError(t, client.DeleteObject(ctx, "k"))
	assert.Equal(t, "images", client.GetBucketName())
	assert.Equal(t, "p", client.GetPrefix())
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		notFound bool
		auth     bool
		code     string
	}{
		{"nil", nil, false, false, ""},
		{"sentinel", fmt.Errorf("k: %w", ErrObjectNotFound), true, false, ""},
		{"minio no such key", minio.ErrorResponse{Code: "NoSuchKey"}, true, false, "NoSuchKey"},
		{"minio access denied", minio.ErrorResponse{Code: "AccessDenied"}, false, true, "AccessDenied"},
		{"aws no such bucket", awserr.New(s3.ErrCodeNoSuchBucket, "gone", nil), true, false, s3.ErrCodeNoSuchBucket},
		{"aws signature", awserr.New("SignatureDoesNotMatch", "bad", nil), false, true, "SignatureDoesNotMatch"},
		{"plain", errors.New("boom"), false, false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.notFound, IsNotFoundError(tt.err))
			assert.Equal(t, tt.auth, IsAuthError(tt.err))
			assert.Equal(t, tt.code, ErrorCode(tt.err))
		})
	}
}

func TestFormatError(t *testing.T) {
	assert.Equal(t, "", FormatError(nil))
	assert.Equal(t, "S3 error: Access Denied (code: AccessDenied)",
		FormatError(minio.ErrorResponse{Code: "AccessDenied", Message: "Access Denied"}))
	assert.Equal(t, "boom", FormatError(errors.New("boom")))
}

func TestContentTypes(t *testing.T) {
	assert.Equal(t, "image/jpeg", DetectContentType("IMG_0001.JPG"))
	assert.Equal(t, "image/avif", DetectContentType("a.avif"))
	assert.Equal(t, "application/octet-stream", DetectContentType("noext"))
	assert.True(t, IsImageFile("x.heic"))
	assert.False(t, IsImageFile("x.mp4"))

	assert.Equal(t, "jpeg", ImageFormat("image/jpeg"))
	assert.Equal(t, "png", ImageFormat("image/png; charset=binary"))
	assert.Equal(t, "", ImageFormat("application/pdf"))
	assert.Equal(t, "", ImageFormat(""))
}
