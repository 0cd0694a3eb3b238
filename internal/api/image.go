package api

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bstardust/photo-ingest/internal/ingest"
	"github.com/bstardust/photo-ingest/internal/logger"
	"github.com/bstardust/photo-ingest/internal/uploader"
	"github.com/bstardust/photo-ingest/pkg/s3client"
)

const (
	msgMissingFile      = "Bad request: Missing `file`"
	msgMissingKeys      = "Bad request: Missing `keys`"
	msgBucketNotReady   = "Storage bucket is not configured"
	msgTooLarge         = "File exceeds the maximum upload size"
	msgSaveFailed       = "Error saving data"
	msgDeleteFailed     = "Error deleting data"
	msgStorageFailed    = "Error storing file"
	msgObjectNotFound   = "Object not found"
	msgObjectReadFailed = "Error reading file"
)

type keysRequest struct {
	Keys []string `json:"keys"`
}

// upload is a multipart file with its client hints.
type upload struct {
	name        string
	contentType string
	data        []byte
	width       string
	height      string
}

// readUpload reads the `file`, `width` and `height` form fields. It writes
// the error response itself and returns false when the request is unusable.
func readUpload(c *gin.Context) (*upload, bool) {
	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			abort(c, http.StatusRequestEntityTooLarge, msgTooLarge)
			return nil, false
		}
		abort(c, http.StatusBadRequest, msgMissingFile)
		return nil, false
	}

	f, err := fh.Open()
	if err != nil {
		abort(c, http.StatusBadRequest, msgMissingFile)
		return nil, false
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(f)
	if err != nil {
		abort(c, http.StatusBadRequest, msgMissingFile)
		return nil, false
	}

	contentType := fh.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = s3client.DetectContentType(fh.Filename)
	}

	return &upload{
		name:        fh.Filename,
		contentType: contentType,
		data:        data,
		width:       c.PostForm("width"),
		height:      c.PostForm("height"),
	}, true
}

// readKeys decodes {keys: [...]}. A body that is not JSON counts as no keys.
func readKeys(c *gin.Context) []string {
	var req keysRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return nil
	}
	return req.Keys
}

// CreateImage handles POST /api/image
func (s *Server) CreateImage(c *gin.Context) {
	up, ok := readUpload(c)
	if !ok {
		return
	}

	rec, err := s.pipeline.Ingest(c.Request.Context(), ingest.Input{
		FileName:    up.name,
		ContentType: up.contentType,
		Data:        up.data,
		Width:       up.width,
		Height:      up.height,
	})
	switch {
	case err == nil:
		c.JSON(http.StatusOK, rec)
	case errors.Is(err, ingest.ErrMissingFile):
		abort(c, http.StatusBadRequest, msgMissingFile)
	case errors.Is(err, uploader.ErrBucketNotConfigured):
		abort(c, http.StatusInternalServerError, msgBucketNotReady)
	default:
		logger.Error("Failed to ingest %s: %v", up.name, err)
		abort(c, http.StatusBadGateway, msgSaveFailed)
	}
}

// DeleteImages handles DELETE /api/image
func (s *Server) DeleteImages(c *gin.Context) {
	keys := readKeys(c)
	if len(keys) == 0 {
		abort(c, http.StatusBadRequest, msgMissingKeys)
		return
	}

	res, err := s.pipeline.Delete(c.Request.Context(), keys)
	if errors.Is(err, uploader.ErrBucketNotConfigured) {
		abort(c, http.StatusInternalServerError, msgBucketNotReady)
		return
	}
	if len(res.Failed) > 0 {
		logger.Error("Failed to delete %d of %d images: %v", len(res.Failed), len(keys), err)
		c.JSON(partialStatus(len(res.Deleted)), gin.H{
			"message": fmt.Sprintf("Deleted %d images, %d failed", len(res.Deleted), len(res.Failed)),
			"deleted": res.Deleted,
			"failed":  res.Failed,
		})
		return
	}
	if err != nil {
		logger.Error("Failed to delete image records: %v", err)
		abort(c, http.StatusBadGateway, msgDeleteFailed)
		return
	}

	c.String(http.StatusOK, "Successfully deleted %d images", len(res.Deleted))
}

// GetImage handles GET /api/image/:key and streams the stored bytes.
func (s *Server) GetImage(c *gin.Context) {
	key := c.Param("key")

	obj, err := s.blobs.Open(c.Request.Context(), key)
	switch {
	case err == nil:
	case errors.Is(err, uploader.ErrBucketNotConfigured):
		abort(c, http.StatusInternalServerError, msgBucketNotReady)
		return
	case errors.Is(err, s3client.ErrObjectNotFound):
		abort(c, http.StatusNotFound, msgObjectNotFound)
		return
	default:
		logger.Error("Failed to open %s: %v", key, err)
		abort(c, http.StatusBadGateway, msgObjectReadFailed)
		return
	}
	defer func() { _ = obj.Close() }()

	br := bufio.NewReader(obj)
	head, _ := br.Peek(512)
	c.DataFromReader(http.StatusOK, -1, http.DetectContentType(head), br, nil)
}

// partialStatus is 502 when nothing was deleted and 207 otherwise.
func partialStatus(deleted int) int {
	if deleted == 0 {
		return http.StatusBadGateway
	}
	return http.StatusMultiStatus
}
