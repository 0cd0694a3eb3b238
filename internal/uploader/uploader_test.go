package uploader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/bstardust/photo-ingest/pkg/s3client"
)

// Mock S3 Client
type MockS3Client struct {
	mock.Mock
}

func (m *MockS3Client) UploadFile(ctx context.Context, reader io.Reader, objectKey string, size int64, metadata map[string]string, contentType string) error {
	args := m.Called(ctx, reader, objectKey, size, metadata, contentType)
	return args.Error(0)
}

func (m *MockS3Client) ObjectExists(ctx context.Context, objectKey string) (bool, error) {
	args := m.Called(ctx, objectKey)
	return args.Bool(0), args.Error(1)
}

func (m *MockS3Client) GetObject(ctx context.Context, objectKey string) (io.ReadCloser, error) {
	args := m.Called(ctx, objectKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(io.ReadCloser), args.Error(1)
}

func (m *MockS3Client) DeleteObject(ctx context.Context, objectKey string) error {
	args := m.Called(ctx, objectKey)
	return args.Error(0)
}

func (m *MockS3Client) GetBucketName() string {
	return "test-bucket"
}

func (m *MockS3Client) GetEndpoint() string {
	return "test-endpoint"
}

func (m *MockS3Client) GetPrefix() string {
	return ""
}

func fastRetry() RetryConfig {
	cfg := DefaultRetryConfig()
	cfg.InitialBackoff = time.Millisecond
	cfg.MaxBackoff = 5 * time.Millisecond
	return cfg
}

// SOI, a 6-byte APP1 segment, then SOS.
var jpegWithExif = []byte{0xFF, 0xD8, 0xFF, 0xE1, 0x00, 0x04, 0xAA, 0xBB, 0xFF, 0xDA, 0x00, 0x02}

func strPtr(s string) *string { return &s }

func TestUploadStripsExifAndSetsMetadata(t *testing.T) {
	ctx := context.Background()
	store := new(MockS3Client)
	var stored []byte

	store.On("UploadFile", ctx, mock.Anything, "fixed-key", int64(6), map[string]string{
		MetaFileName: "a.jpg",
		MetaFileType: "image/jpeg",
		MetaFileSize: "12",
		"width":      "640",
		"location":   "",
	}, "image/jpeg").Run(func(args mock.Arguments) {
		stored, _ = io.ReadAll(args.Get(1).(io.Reader))
	}).Return(nil)

	u := New(store, WithRetry(fastRetry()), WithKeyGenerator(func() string { return "fixed-key" }))
	res, err := u.Upload(ctx, FileInfo{Name: "a.jpg", ContentType: "image/jpeg", Size: 12}, jpegWithExif, Options{
		Metadata: map[string]*string{"width": strPtr("640"), "height": nil, "location": strPtr("")},
	})

	require.NoError(t, err)
	assert.Equal(t, "fixed-key", res.StorageKey)
	assert.True(t, res.Stripped)
	assert.Equal(t, int64(6), res.Size)
	assert.Equal(t, []byte{0xFF, 0xD8, 0xFF, 0xDA, 0x00, 0x02}, stored)
	store.AssertExpectations(t)
}

func TestUploadKeepsBytes(t *testing.T) {
	tests := []struct {
		name        string
		data        []byte
		contentType string
		opts        Options
	}{
		{"exif kept on request", jpegWithExif, "image/jpeg", Options{StorageKey: "k", KeepExif: true}},
		{"jpeg without exif untouched", []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x04, 0x00, 0x00}, "image/jpeg", Options{StorageKey: "k"}},
		{"non-jpeg untouched", []byte{0x89, 'P', 0xFF, 0xE1, 0x00, 0x04, 0x00, 0x00}, "image/png", Options{StorageKey: "k"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			store := new(MockS3Client)
			var stored []byte
			store.On("UploadFile", ctx, mock.Anything, "k", int64(len(tt.data)), mock.Anything, tt.contentType).
				Run(func(args mock.Arguments) {
					stored, _ = io.ReadAll(args.Get(1).(io.Reader))
				}).Return(nil)

			res, err := New(store).Upload(ctx, FileInfo{Name: "f", ContentType: tt.contentType, Size: int64(len(tt.data))}, tt.data, tt.opts)

			require.NoError(t, err)
			assert.False(t, res.Stripped)
			assert.Equal(t, tt.data, stored)
		})
	}
}

func TestUploadGeneratesUUIDKeys(t *testing.T) {
	ctx := context.Background()
	store := new(MockS3Client)
	store.On("UploadFile", ctx, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	u := New(store)

	first, err := u.Upload(ctx, FileInfo{Name: "a"}, []byte("x"), Options{})
	require.NoError(t, err)
	second, err := u.Upload(ctx, FileInfo{Name: "a"}, []byte("x"), Options{})
	require.NoError(t, err)

	assert.Len(t, first.StorageKey, 36)
	assert.NotEqual(t, first.StorageKey, second.StorageKey)
}

func TestUploadRetriesTransientErrors(t *testing.T) {
	ctx := context.Background()
	store := new(MockS3Client)
	store.On("UploadFile", ctx, mock.Anything, "k", mock.Anything, mock.Anything, mock.Anything).
		Return(minio.ErrorResponse{Code: "SlowDown", StatusCode: http.StatusServiceUnavailable}).Once()
	store.On("UploadFile", ctx, mock.Anything, "k", mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()

	_, err := New(store, WithRetry(fastRetry())).Upload(ctx, FileInfo{Name: "a"}, jpegWithExif, Options{StorageKey: "k"})

	require.NoError(t, err)
	store.AssertNumberOfCalls(t, "UploadFile", 2)
}

func TestUploadDoesNotRetryAuthErrors(t *testing.T) {
	ctx := context.Background()
	store := new(MockS3Client)
	store.On("UploadFile", ctx, mock.Anything, "k", mock.Anything, mock.Anything, mock.Anything).
		Return(minio.ErrorResponse{Code: "AccessDenied", StatusCode: http.StatusForbidden})

	_, err := New(store, WithRetry(fastRetry())).Upload(ctx, FileInfo{Name: "a"}, []byte("x"), Options{StorageKey: "k"})

	require.Error(t, err)
	assert.True(t, s3client.IsAuthError(err))
	store.AssertNumberOfCalls(t, "UploadFile", 1)
}

func TestBucketNotConfigured(t *testing.T) {
	ctx := context.Background()
	u := New(nil)

	assert.False(t, u.Configured())

	_, err := u.Upload(ctx, FileInfo{Name: "a"}, []byte("x"), Options{})
	assert.ErrorIs(t, err, ErrBucketNotConfigured)

	_, err = u.Delete(ctx, []string{"a"})
	assert.ErrorIs(t, err, ErrBucketNotConfigured)

	_, err = u.Open(ctx, "a")
	assert.ErrorIs(t, err, ErrBucketNotConfigured)
}

func TestDeleteReportsPartialFailure(t *testing.T) {
	ctx := context.Background()
	store := new(MockS3Client)
	store.On("DeleteObject", ctx, "a").Return(nil)
	store.On("DeleteObject", ctx, "b").Return(minio.ErrorResponse{Code: "AccessDenied"})
	store.On("DeleteObject", ctx, "c").Return(nil)

	u := New(store, WithRetry(fastRetry()), WithConcurrency(2))
	report, err := u.Delete(ctx, []string{"a", "b", "", "c", "a"})

	require.Error(t, err)
	assert.ElementsMatch(t, []string{"a", "c"}, report.Deleted)
	assert.Equal(t, []string{"b"}, report.FailedKeys())
	assert.Len(t, multierr.Errors(err), 1)
	assert.Contains(t, err.Error(), "b:")
	store.AssertNumberOfCalls(t, "DeleteObject", 3)
}

func TestDeleteAllSucceed(t *testing.T) {
	ctx := context.Background()
	store := new(MockS3Client)
	store.On("DeleteObject", ctx, mock.Anything).Return(nil)

	keys := make([]string, 20)
	for i := range keys {
		keys[i] = fmt.Sprintf("key-%d", i)
	}
	report, err := New(store).Delete(ctx, keys)

	require.NoError(t, err)
	assert.ElementsMatch(t, keys, report.Deleted)
	assert.Empty(t, report.Failed)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	store := new(MockS3Client)
	store.On("GetObject", ctx, "k").Return(io.NopCloser(bytes.NewReader([]byte("img"))), nil)
	store.On("GetObject", ctx, "gone").Return(nil, fmt.Errorf("gone: %w", s3client.ErrObjectNotFound))
	u := New(store)

	obj, err := u.Open(ctx, "k")
	require.NoError(t, err)
	data, _ := io.ReadAll(obj)
	assert.Equal(t, "img", string(data))
	assert.NoError(t, obj.Close())

	_, err = u.Open(ctx, "gone")
	assert.ErrorIs(t, err, s3client.ErrObjectNotFound)
}

func TestIsRetryable(t *testing.T) {
	rc := DefaultRetryConfig()
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"canceled", fmt.Errorf("put: %w", context.Canceled), false},
		{"not found", minio.ErrorResponse{Code: "NoSuchKey"}, false},
		{"slow down code", minio.ErrorResponse{Code: "SlowDown"}, true},
		{"unknown code", minio.ErrorResponse{Code: "InvalidArgument"}, false},
		{"timeout text", errors.New("dial tcp: i/o timeout"), true},
		{"reset text", errors.New("read: connection reset by peer"), true},
		{"plain", errors.New("bad request"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, rc.IsRetryable(tt.err))
		})
	}
}

func TestRetryWithBackoffGivesUp(t *testing.T) {
	calls := 0
	cfg := fastRetry()
	cfg.MaxRetries = 2

	err := RetryWithBackoff(context.Background(), "op", func() error {
		calls++
		return errors.New("i/o timeout")
	}, cfg)

	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.Contains(t, err.Error(), "op failed after 3 attempts")
}

func TestRetryWithBackoffCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := RetryWithBackoff(ctx, "op", func() error { return nil }, fastRetry())

	assert.ErrorIs(t, err, context.Canceled)
}

func TestBackoffDuration(t *testing.T) {
	cfg := RetryConfig{InitialBackoff: 100 * time.Millisecond, MaxBackoff: time.Second, BackoffFactor: 2}

	for attempt := 0; attempt < 3; attempt++ {
		base := float64(100*time.Millisecond) * float64(int(1)<<attempt)
		d := getBackoffDuration(attempt, cfg)
		assert.GreaterOrEqual(t, float64(d), base*0.8-1)
		assert.LessOrEqual(t, float64(d), base*1.2+1)
	}
	assert.Equal(t, time.Second, getBackoffDuration(10, cfg))
}
