package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bstardust/photo-ingest/internal/ingest"
	"github.com/bstardust/photo-ingest/internal/logger"
	"github.com/bstardust/photo-ingest/internal/uploader"
)

// UploadBlob handles POST /api/r2: store the file without a record.
func (s *Server) UploadBlob(c *gin.Context) {
	up, ok := readUpload(c)
	if !ok {
		return
	}

	res, err := s.blobs.Upload(c.Request.Context(),
		uploader.FileInfo{Name: up.name, ContentType: up.contentType, Size: int64(len(up.data))},
		up.data,
		uploader.Options{
			KeepExif: s.opts.KeepExif,
			Metadata: map[string]*string{
				ingest.MetaWidth:  optionalField(up.width),
				ingest.MetaHeight: optionalField(up.height),
			},
		})
	if errors.Is(err, uploader.ErrBucketNotConfigured) {
		abort(c, http.StatusInternalServerError, msgBucketNotReady)
		return
	}
	if err != nil {
		logger.Error("Failed to store %s: %v", up.name, err)
		abort(c, http.StatusBadGateway, msgStorageFailed)
		return
	}

	c.JSON(http.StatusOK, gin.H{"storage_key": res.StorageKey})
}

// DeleteBlobs handles DELETE /api/r2
func (s *Server) DeleteBlobs(c *gin.Context) {
	keys := readKeys(c)
	if len(keys) == 0 {
		abort(c, http.StatusBadRequest, msgMissingKeys)
		return
	}

	report, err := s.blobs.Delete(c.Request.Context(), keys)
	if errors.Is(err, uploader.ErrBucketNotConfigured) {
		abort(c, http.StatusInternalServerError, msgBucketNotReady)
		return
	}

	body := gin.H{
		"message": fmt.Sprintf("Successfully deleted %d files", len(report.Deleted)),
		"deleted": len(report.Deleted),
	}
	if failed := report.FailedKeys(); len(failed) > 0 {
		logger.Error("Failed to delete %d of %d files: %v", len(failed), len(keys), err)
		body["failed"] = failed
		c.JSON(partialStatus(len(report.Deleted)), body)
		return
	}
	c.JSON(http.StatusOK, body)
}

func optionalField(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
