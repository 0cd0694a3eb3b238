// Package api exposes the ingest pipeline, the blob store, the location
// resolver and the configuration store over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bstardust/photo-ingest/internal/geocode"
	"github.com/bstardust/photo-ingest/internal/ingest"
	"github.com/bstardust/photo-ingest/internal/kv"
	"github.com/bstardust/photo-ingest/internal/logger"
	"github.com/bstardust/photo-ingest/internal/records"
	"github.com/bstardust/photo-ingest/internal/uploader"
)

// DefaultMaxUploadSize bounds a request body when Options leaves it unset.
const DefaultMaxUploadSize int64 = 200 << 20

// Pipeline ingests and deletes images with their records.
type Pipeline interface {
	Ingest(ctx context.Context, in ingest.Input) (*records.Record, error)
	Delete(ctx context.Context, keys []string) (ingest.DeleteResult, error)
}

// BlobStore is the raw object side used by the /api/r2 endpoints.
type BlobStore interface {
	Upload(ctx context.Context, file uploader.FileInfo, data []byte, opts uploader.Options) (*uploader.Result, error)
	Delete(ctx context.Context, keys []string) (uploader.DeleteReport, error)
	Open(ctx context.Context, key string) (*uploader.Object, error)
}

// Locator resolves a location payload.
type Locator interface {
	Resolve(ctx context.Context, payload geocode.Payload) (geocode.Location, error)
}

// Options tune the handlers.
type Options struct {
	MaxUploadSize int64
	KeepExif      bool
}

// Server holds the handler dependencies
type Server struct {
	pipeline Pipeline
	blobs    BlobStore
	locator  Locator
	config   kv.Store
	opts     Options
}

// NewServer creates a server. config may be any kv.Store; updates through
// /api/kv need it to also implement kv.Writer.
func NewServer(pipeline Pipeline, blobs BlobStore, locator Locator, config kv.Store, opts Options) *Server {
	if opts.MaxUploadSize <= 0 {
		opts.MaxUploadSize = DefaultMaxUploadSize
	}
	return &Server{pipeline: pipeline, blobs: blobs, locator: locator, config: config, opts: opts}
}

// Router builds the gin engine with every route registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger())
	r.MaxMultipartMemory = 32 << 20

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	api.Use(s.limitBody)

	api.POST("/image", s.CreateImage)
	api.DELETE("/image", s.DeleteImages)
	api.GET("/image/:key", s.GetImage)

	api.POST("/r2", s.UploadBlob)
	api.DELETE("/r2", s.DeleteBlobs)

	api.POST("/get-location", s.GetLocation)

	api.POST("/kv", s.GetConfig)
	api.PUT("/kv", s.PutConfig)
	api.DELETE("/kv", s.DeleteConfig)

	return r
}

func (s *Server) limitBody(c *gin.Context) {
	if c.Request.ContentLength > s.opts.MaxUploadSize {
		abort(c, http.StatusRequestEntityTooLarge, msgTooLarge)
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.opts.MaxUploadSize)
	c.Next()
}

// RequestLogger logs one line per request through the process logger.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		event := logger.L().Info()
		if status >= http.StatusInternalServerError {
			event = logger.L().Error()
		} else if status >= http.StatusBadRequest {
			event = logger.L().Warn()
		}
		event.
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Str("client_ip", c.ClientIP()).
			Dur("duration", time.Since(start)).
			Msg("request")
	}
}

func abort(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"error": message})
}
