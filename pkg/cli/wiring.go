package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/multierr"

	"github.com/bstardust/photo-ingest/internal/config"
	"github.com/bstardust/photo-ingest/internal/geocode"
	"github.com/bstardust/photo-ingest/internal/ingest"
	"github.com/bstardust/photo-ingest/internal/kv"
	"github.com/bstardust/photo-ingest/internal/logger"
	"github.com/bstardust/photo-ingest/internal/metadata"
	"github.com/bstardust/photo-ingest/internal/records"
	"github.com/bstardust/photo-ingest/internal/uploader"
	"github.com/bstardust/photo-ingest/pkg/s3client"
)

const redisKeyPrefix = "photo-ingest:"

// app is the wired set of services a command runs against.
type app struct {
	cfg      *config.Config
	config   kv.Store
	resolver *geocode.Resolver
	uploader *uploader.Uploader
	records  records.Store
	pipeline *ingest.Pipeline
	closers  []func(context.Context) error
}

// newLocator wires only the location side: config store and resolver.
func newLocator(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg}
	store, err := a.openConfigStore(ctx)
	if err != nil {
		return nil, err
	}
	a.config = store
	a.resolver = newResolver(cfg.Geocoding, store)
	return a, nil
}

// newApp wires every service.
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a, err := newLocator(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if a.uploader, err = openUploader(ctx, cfg); err != nil {
		_ = a.Close(ctx)
		return nil, err
	}
	if a.records, err = openRecords(ctx, cfg.Records); err != nil {
		_ = a.Close(ctx)
		return nil, err
	}
	a.closers = append(a.closers, a.records.Close)

	a.pipeline = ingest.New(metadata.NewExtractor(time.UTC), a.resolver, a.uploader, a.records, ingest.Options{
		KeepExif:         !cfg.Upload.StripExif,
		PreserveMetadata: cfg.Upload.PreserveMetadata,
	})
	return a, nil
}

// Close releases every connection the app opened.
func (a *app) Close(ctx context.Context) error {
	var errs error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = multierr.Append(errs, a.closers[i](ctx))
	}
	a.closers = nil
	return errs
}

// openConfigStore builds the key-value store holding provider tokens,
// wrapped in the configured cache.
func (a *app) openConfigStore(ctx context.Context) (kv.Store, error) {
	geo := a.cfg.Geocoding

	var store kv.Store
	switch strings.ToLower(geo.ConfigSource) {
	case config.SourcePostgres:
		pool, err := pgxpool.New(ctx, geo.ConfigDSN)
		if err != nil {
			return nil, fmt.Errorf("kv: connect: %w", err)
		}
		if _, err := pool.Exec(ctx, kv.Schema); err != nil {
			pool.Close()
			return nil, fmt.Errorf("kv: create schema: %w", err)
		}
		a.closers = append(a.closers, func(context.Context) error { pool.Close(); return nil })
		store = kv.NewPostgresStore(pool)
	default:
		store = kv.NewMemoryStore(map[string]string{
			kv.KeyMapbox: geo.MapboxToken,
			kv.KeyAmap:   geo.AmapToken,
		})
	}

	switch strings.ToLower(geo.ConfigCache) {
	case config.CacheMemory:
		return kv.NewCachedStore(store, kv.NewMemoCache(), geo.ConfigCacheTTL), nil
	case config.CacheRedis:
		pool := kv.NewRedisPool(kv.RedisConfig{
			Network:  a.cfg.Redis.Network,
			Addr:     a.cfg.Redis.Addr,
			Password: a.cfg.Redis.Password,
			DB:       a.cfg.Redis.DB,
		})
		a.closers = append(a.closers, func(context.Context) error { return pool.Close() })
		return kv.NewCachedStore(store, kv.NewRedisCache(pool, redisKeyPrefix), geo.ConfigCacheTTL), nil
	}
	return store, nil
}

func newResolver(cfg config.GeocodingConfig, store kv.Store) *geocode.Resolver {
	mapbox := geocode.NewMapboxClient(
		geocode.WithBaseURL(cfg.MapboxBaseURL),
		geocode.WithTimeout(cfg.Timeout),
		geocode.WithRateLimit(cfg.MapboxRateLimit, 1),
	)
	amap := geocode.NewAmapClient(
		geocode.WithBaseURL(cfg.AmapBaseURL),
		geocode.WithTimeout(cfg.Timeout),
		geocode.WithRateLimit(cfg.AmapRateLimit, 1),
	)
	return geocode.NewResolver(store, mapbox, amap)
}

// openUploader connects to the bucket. Without a bucket the uploader is
// left unconfigured and storage operations fail with
// uploader.ErrBucketNotConfigured.
func openUploader(ctx context.Context, cfg *config.Config) (*uploader.Uploader, error) {
	retry := uploader.DefaultRetryConfig()
	retry.MaxRetries = cfg.Upload.MaxRetries
	retry.InitialBackoff = cfg.Upload.InitialBackoff
	retry.MaxBackoff = cfg.Upload.MaxBackoff

	opts := []uploader.Option{
		uploader.WithRetry(retry),
		uploader.WithConcurrency(cfg.Upload.Concurrency),
	}
	if cfg.S3.Bucket == "" {
		logger.Warn("No storage bucket configured, uploads are disabled")
		return uploader.New(nil, opts...), nil
	}

	client, err := s3client.New(ctx, s3client.Config{
		Backend:   cfg.S3.Backend,
		Endpoint:  cfg.S3.Endpoint,
		Region:    cfg.S3.Region,
		Bucket:    cfg.S3.Bucket,
		AccessKey: cfg.S3.AccessKey,
		SecretKey: cfg.S3.SecretKey,
		UseSSL:    cfg.S3.UseSSL,
		Prefix:    cfg.S3.Prefix,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize S3 client: %w", err)
	}
	return uploader.New(client, opts...), nil
}

func openRecords(ctx context.Context, cfg config.RecordsConfig) (records.Store, error) {
	switch strings.ToLower(cfg.Driver) {
	case config.DriverPostgres:
		return records.OpenPostgres(ctx, cfg.PostgresDSN)
	case config.DriverMongo:
		return records.ConnectMongo(ctx, cfg.MongoURI, cfg.MongoDatabase, cfg.MongoCollection)
	default:
		logger.Warn("Using the in-memory record store, records are lost on exit")
		return records.NewMemoryStore(), nil
	}
}
