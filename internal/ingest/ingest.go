// Package ingest runs the image pipeline: metadata extraction, location
// resolution, blob upload and record persistence.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/multierr"

	"github.com/bstardust/photo-ingest/internal/geocode"
	"github.com/bstardust/photo-ingest/internal/logger"
	"github.com/bstardust/photo-ingest/internal/metadata"
	"github.com/bstardust/photo-ingest/internal/records"
	"github.com/bstardust/photo-ingest/internal/uploader"
	"github.com/bstardust/photo-ingest/pkg/s3client"
)

// NoGPSData is the location of an image that carries no EXIF block at all.
const NoGPSData = "No GPS data"

// Object metadata keys added by the pipeline.
const (
	MetaWidth    = "width"
	MetaHeight   = "height"
	MetaLocation = "location"
)

// ErrMissingFile is returned for an input without a file.
var ErrMissingFile = errors.New("ingest: missing file")

// Resolver resolves a location payload.
type Resolver interface {
	Resolve(ctx context.Context, payload geocode.Payload) (geocode.Location, error)
}

// Storage is the blob side of the pipeline.
type Storage interface {
	Upload(ctx context.Context, file uploader.FileInfo, data []byte, opts uploader.Options) (*uploader.Result, error)
	Delete(ctx context.Context, keys []string) (uploader.DeleteReport, error)
}

// Input is one image to ingest. Width and Height are client hints kept as
// given.
type Input struct {
	FileName    string
	ContentType string
	Data        []byte
	Width       string
	Height      string
}

// Options configure a Pipeline.
type Options struct {
	// KeepExif stores images without stripping their EXIF segment.
	KeepExif bool
	// PreserveMetadata copies the capture time and camera into the object
	// metadata.
	PreserveMetadata bool
	Folder           string
}

// Pipeline ingests images
type Pipeline struct {
	extractor *metadata.Extractor
	resolver  Resolver
	storage   Storage
	records   records.Store
	opts      Options
	now       func() time.Time
}

// New creates a pipeline.
func New(extractor *metadata.Extractor, resolver Resolver, storage Storage, store records.Store, opts Options) *Pipeline {
	if extractor == nil {
		extractor = metadata.NewExtractor(time.UTC)
	}
	if opts.Folder == "" {
		opts.Folder = records.DefaultFolder
	}
	return &Pipeline{
		extractor: extractor,
		resolver:  resolver,
		storage:   storage,
		records:   store,
		opts:      opts,
		now:       time.Now,
	}
}

// Ingest stores one image and returns its record. Location problems never
// fail an ingest; a record that cannot be saved removes the uploaded blob
// again.
func (p *Pipeline) Ingest(ctx context.Context, in Input) (*records.Record, error) {
	if in.FileName == "" || len(in.Data) == 0 {
		return nil, ErrMissingFile
	}

	md := p.extractor.Extract(in.ContentType, in.Data)
	location := p.locate(ctx, md)

	extra := map[string]*string{
		MetaWidth:    optional(in.Width),
		MetaHeight:   optional(in.Height),
		MetaLocation: ptr(""),
	}
	if location != nil {
		extra[MetaLocation] = location
	}
	if p.opts.PreserveMetadata {
		for k, v := range md.ToMap() {
			extra[k] = ptr(v)
		}
	}

	file := uploader.FileInfo{Name: in.FileName, ContentType: in.ContentType, Size: int64(len(in.Data))}
	res, err := p.storage.Upload(ctx, file, in.Data, uploader.Options{KeepExif: p.opts.KeepExif, Metadata: extra})
	if err != nil {
		return nil, err
	}

	rec := &records.Record{
		Folder:      p.opts.Folder,
		FileName:    in.FileName,
		StorageKey:  res.StorageKey,
		Location:    location,
		TakenAt:     md.TakenAt,
		Exif:        md.Exif,
		Date:        p.now().UTC().Format(records.DateLayout),
		Width:       atoi(in.Width),
		Height:      atoi(in.Height),
		Size:        file.Size,
		Format:      s3client.ImageFormat(in.ContentType),
		GPSLocation: md.GPSPoint,
	}

	saved, err := p.records.Insert(ctx, rec)
	if err != nil {
		if _, delErr := p.storage.Delete(ctx, []string{res.StorageKey}); delErr != nil {
			logger.Error("Failed to remove orphaned object %s: %v", res.StorageKey, delErr)
		}
		return nil, fmt.Errorf("ingest: save record: %w", err)
	}

	logger.Info("Ingested %s as %s", in.FileName, saved.StorageKey)
	return saved, nil
}

// locate returns the display location: NoGPSData without EXIF, the
// resolver's value otherwise, nil when resolution failed.
func (p *Pipeline) locate(ctx context.Context, md *metadata.Metadata) *string {
	if md.Exif == nil {
		return ptr(NoGPSData)
	}

	loc, err := p.resolver.Resolve(ctx, geocode.Payload{Exif: metadata.WithCoordinates(md.Exif, md.GPSPoint)})
	if err != nil {
		logger.Error("Failed to resolve location: %v", err)
		return nil
	}
	return loc.Value()
}

// DeleteResult reports a batch delete.
type DeleteResult struct {
	Deleted        []string `json:"deleted"`
	Failed         []string `json:"failed"`
	RecordsRemoved int64    `json:"records_removed"`
}

// Delete removes the blobs of keys and then the records of the blobs that
// are gone. Records of blobs that could not be removed are kept.
func (p *Pipeline) Delete(ctx context.Context, keys []string) (DeleteResult, error) {
	report, blobErr := p.storage.Delete(ctx, keys)
	result := DeleteResult{Deleted: report.Deleted, Failed: report.FailedKeys()}
	if errors.Is(blobErr, uploader.ErrBucketNotConfigured) {
		return result, blobErr
	}

	if len(report.Deleted) > 0 {
		n, err := p.records.DeleteByStorageKeys(ctx, report.Deleted)
		if err != nil {
			return result, multierr.Append(blobErr, err)
		}
		result.RecordsRemoved = n
	}
	return result, blobErr
}

func ptr(s string) *string { return &s }

func optional(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}

func atoi(s string) *int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return nil
	}
	return &n
}
