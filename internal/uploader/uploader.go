// Package uploader stores sanitized images in the blob store.
package uploader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/multierr"

	"github.com/bstardust/photo-ingest/internal/exif"
	"github.com/bstardust/photo-ingest/internal/logger"
	"github.com/bstardust/photo-ingest/internal/worker"
	"github.com/bstardust/photo-ingest/pkg/s3client"
)

// ErrBucketNotConfigured is returned by every operation when no blob store
// is set up.
var ErrBucketNotConfigured = errors.New("uploader: storage bucket is not configured")

// Custom metadata keys set on every object.
const (
	MetaFileName = "file_name"
	MetaFileType = "file_type"
	MetaFileSize = "file_size"
)

const defaultConcurrency = 4

// FileInfo describes the uploaded file as the client sent it.
type FileInfo struct {
	Name        string
	ContentType string
	Size        int64
}

// Options tune a single upload.
type Options struct {
	// StorageKey overrides the generated UUID key.
	StorageKey string
	// KeepExif stores the bytes as received.
	KeepExif bool
	// Metadata is added to the object's custom metadata; nil values are
	// skipped.
	Metadata map[string]*string
}

// Result is the outcome of a successful upload.
type Result struct {
	StorageKey string
	// Size of the stored bytes, after stripping.
	Size     int64
	Stripped bool
}

// DeleteReport lists what a batch delete did per key.
type DeleteReport struct {
	Deleted []string         `json:"deleted"`
	Failed  map[string]error `json:"-"`
}

// FailedKeys returns the keys that could not be deleted.
func (r DeleteReport) FailedKeys() []string {
	return lo.Keys(r.Failed)
}

// Object is an open stored image.
type Object struct {
	Key string
	io.ReadCloser
}

// Uploader writes images to the blob store
type Uploader struct {
	store       s3client.S3Interface
	retry       RetryConfig
	concurrency int
	newKey      func() string
}

// Option configures an Uploader.
type Option func(*Uploader)

// WithRetry sets the retry policy for blob store calls.
func WithRetry(cfg RetryConfig) Option {
	return func(u *Uploader) { u.retry = cfg }
}

// WithConcurrency bounds the deletes a batch runs at once.
func WithConcurrency(n int) Option {
	return func(u *Uploader) {
		if n > 0 {
			u.concurrency = n
		}
	}
}

// WithKeyGenerator replaces the UUID key generator.
func WithKeyGenerator(fn func() string) Option {
	return func(u *Uploader) {
		if fn != nil {
			u.newKey = fn
		}
	}
}

// New creates an Uploader. store may be nil, in which case every call
// fails with ErrBucketNotConfigured.
func New(store s3client.S3Interface, opts ...Option) *Uploader {
	u := &Uploader{
		store:       store,
		retry:       DefaultRetryConfig(),
		concurrency: defaultConcurrency,
		newKey:      uuid.NewString,
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Configured reports whether a blob store is set up.
func (u *Uploader) Configured() bool {
	return u != nil && u.store != nil
}

// Upload strips the EXIF segment from a JPEG unless opts.KeepExif is set and
// stores the result with the file's custom metadata.
func (u *Uploader) Upload(ctx context.Context, file FileInfo, data []byte, opts Options) (*Result, error) {
	if !u.Configured() {
		return nil, ErrBucketNotConfigured
	}

	key := opts.StorageKey
	if key == "" {
		key = u.newKey()
	}

	body := data
	stripped := false
	if !opts.KeepExif && exif.IsJPEG(data) && exif.HasMetadataSegment(data) {
		body = exif.StripMetadataSegment(data)
		stripped = true
	}

	meta := ObjectMetadata(file, opts.Metadata)

	err := RetryWithBackoff(ctx, "upload "+key, func() error {
		return u.store.UploadFile(ctx, bytes.NewReader(body), key, int64(len(body)), meta, file.ContentType)
	}, u.retry)
	if err != nil {
		return nil, err
	}

	logger.Debug("Stored %s as %s (%d bytes, exif stripped: %t)", file.Name, key, len(body), stripped)
	return &Result{StorageKey: key, Size: int64(len(body)), Stripped: stripped}, nil
}

// ObjectMetadata builds the custom metadata of an upload.
func ObjectMetadata(file FileInfo, extra map[string]*string) map[string]string {
	meta := map[string]string{
		MetaFileName: file.Name,
		MetaFileType: file.ContentType,
		MetaFileSize: strconv.FormatInt(file.Size, 10),
	}
	for k, v := range extra {
		if v == nil {
			continue
		}
		meta[k] = *v
	}
	return meta
}

// Delete removes every key concurrently. A failing key does not stop the
// others; the report says which keys went and the error combines every
// failure.
func (u *Uploader) Delete(ctx context.Context, keys []string) (DeleteReport, error) {
	report := DeleteReport{Failed: map[string]error{}}
	if !u.Configured() {
		return report, ErrBucketNotConfigured
	}

	keys = lo.Uniq(lo.Filter(keys, func(k string, _ int) bool { return k != "" }))

	var (
		mu   sync.Mutex
		errs error
	)
	pool := worker.NewPool(u.concurrency)
	for _, key := range keys {
		key := key
		scheduled := pool.Go(ctx, func() {
			err := RetryWithBackoff(ctx, "delete "+key, func() error {
				return u.store.DeleteObject(ctx, key)
			}, u.retry)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Failed[key] = err
				errs = multierr.Append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			report.Deleted = append(report.Deleted, key)
		})
		if !scheduled {
			mu.Lock()
			report.Failed[key] = ctx.Err()
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", key, ctx.Err()))
			mu.Unlock()
		}
	}
	pool.Wait()

	if errs != nil {
		logger.Warn("Deleted %d of %d objects: %v", len(report.Deleted), len(keys), errs)
	}
	return report, errs
}

// Open returns a reader over the stored bytes of key.
func (u *Uploader) Open(ctx context.Context, key string) (*Object, error) {
	if !u.Configured() {
		return nil, ErrBucketNotConfigured
	}
	rc, err := u.store.GetObject(ctx, key)
	if err != nil {
		return nil, err
	}
	return &Object{Key: key, ReadCloser: rc}, nil
}
