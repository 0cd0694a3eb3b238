package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/multierr"
)

// EnvPrefix is prepended to every environment variable, so s3.bucket is read
// from PHOTO_INGEST_S3_BUCKET.
const EnvPrefix = "PHOTO_INGEST"

// Config represents the application configuration
type Config struct {
	Log       LogConfig       `mapstructure:"log"`
	Server    ServerConfig    `mapstructure:"server"`
	S3        S3Config        `mapstructure:"s3"`
	Upload    UploadConfig    `mapstructure:"upload"`
	Geocoding GeocodingConfig `mapstructure:"geocoding"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Records   RecordsConfig   `mapstructure:"records"`
}

// LogConfig controls the process logger
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ServerConfig controls the HTTP API
type ServerConfig struct {
	Addr          string `mapstructure:"addr"`
	MaxUploadSize int64  `mapstructure:"max_upload_size"`
}

// S3Config represents S3 connection configuration
type S3Config struct {
	Backend   string `mapstructure:"backend"`
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	Bucket    string `mapstructure:"bucket"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Prefix    string `mapstructure:"prefix"`
}

// UploadConfig represents upload configuration
type UploadConfig struct {
	StripExif        bool          `mapstructure:"strip_exif"`
	PreserveMetadata bool          `mapstructure:"preserve_metadata"`
	Concurrency      int           `mapstructure:"concurrency"`
	MaxRetries       int           `mapstructure:"max_retries"`
	InitialBackoff   time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff       time.Duration `mapstructure:"max_backoff"`
	// Journal is the file recording what a bulk ingest already stored.
	Journal string `mapstructure:"journal"`
}

// GeocodingConfig holds the provider endpoints and where their tokens live.
// MapboxToken and AmapToken are only read with the static config source.
type GeocodingConfig struct {
	MapboxToken     string        `mapstructure:"mapbox_token"`
	AmapToken       string        `mapstructure:"amap_token"`
	MapboxBaseURL   string        `mapstructure:"mapbox_base_url"`
	AmapBaseURL     string        `mapstructure:"amap_base_url"`
	Timeout         time.Duration `mapstructure:"timeout"`
	ConfigSource    string        `mapstructure:"config_source"`
	MapboxRateLimit float64       `mapstructure:"mapbox_rate_limit"`
	AmapRateLimit   float64       `mapstructure:"amap_rate_limit"`
	ConfigCache     string        `mapstructure:"config_cache"`
	ConfigCacheTTL  time.Duration `mapstructure:"config_cache_ttl"`
	ConfigDSN       string        `mapstructure:"config_dsn"`
}

// RedisConfig locates the shared config cache
type RedisConfig struct {
	Network  string `mapstructure:"network"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// RecordsConfig selects the image record store
type RecordsConfig struct {
	Driver          string `mapstructure:"driver"`
	PostgresDSN     string `mapstructure:"postgres_dsn"`
	MongoURI        string `mapstructure:"mongo_uri"`
	MongoDatabase   string `mapstructure:"mongo_database"`
	MongoCollection string `mapstructure:"mongo_collection"`
}

// Config sources and record drivers.
const (
	SourceStatic   = "static"
	SourcePostgres = "postgres"

	CacheNone   = "none"
	CacheMemory = "memory"
	CacheRedis  = "redis"

	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
)

var defaults = map[string]any{
	"log.level":  "info",
	"log.format": "console",

	"server.addr":            ":8080",
	"server.max_upload_size": int64(200 << 20),

	"s3.backend":    "minio",
	"s3.endpoint":   "",
	"s3.region":     "us-east-1",
	"s3.bucket":     "",
	"s3.access_key": "",
	"s3.secret_key": "",
	"s3.use_ssl":    true,
	"s3.prefix":     "",

	"upload.strip_exif":        true,
	"upload.preserve_metadata": false,
	"upload.concurrency":       4,
	"upload.max_retries":       3,
	"upload.initial_backoff":   500 * time.Millisecond,
	"upload.max_backoff":       10 * time.Second,
	"upload.journal":           "",

	"geocoding.mapbox_token":      "",
	"geocoding.amap_token":        "",
	"geocoding.mapbox_base_url":   "https://api.mapbox.com/search/geocode/v6/reverse",
	"geocoding.amap_base_url":     "https://restapi.amap.com/v3/geocode/regeo",
	"geocoding.timeout":           8 * time.Second,
	"geocoding.config_source":     SourceStatic,
	"geocoding.mapbox_rate_limit": 0.0,
	"geocoding.amap_rate_limit":   0.0,
	"geocoding.config_cache":      CacheNone,
	"geocoding.config_cache_ttl":  30 * time.Second,
	"geocoding.config_dsn":        "",

	"redis.network":  "tcp",
	"redis.addr":     "127.0.0.1:6379",
	"redis.password": "",
	"redis.db":       0,

	"records.driver":           DriverMemory,
	"records.postgres_dsn":     "",
	"records.mongo_uri":        "",
	"records.mongo_database":   "photo_ingest",
	"records.mongo_collection": "image",
}

// New creates a new configuration with default values
func New() *Config {
	cfg, err := Load(NewViper(), "")
	if err != nil {
		panic(err)
	}
	return cfg
}

// NewViper returns a viper instance with defaults and environment binding.
// Every key has a default so AutomaticEnv sees it during Unmarshal.
func NewViper() *viper.Viper {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads file (when not empty) into v and decodes the result.
func Load(v *viper.Viper, file string) (*Config, error) {
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", file, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the enumerated settings.
func (c *Config) Validate() error {
	var errs []error
	if !oneOf(c.Geocoding.ConfigSource, SourceStatic, SourcePostgres) {
		errs = append(errs, fmt.Errorf("config: unknown geocoding.config_source %q", c.Geocoding.ConfigSource))
	}
	if !oneOf(c.Geocoding.ConfigCache, CacheNone, CacheMemory, CacheRedis) {
		errs = append(errs, fmt.Errorf("config: unknown geocoding.config_cache %q", c.Geocoding.ConfigCache))
	}
	if !oneOf(c.Records.Driver, DriverMemory, DriverPostgres, DriverMongo) {
		errs = append(errs, fmt.Errorf("config: unknown records.driver %q", c.Records.Driver))
	}
	if c.Upload.Concurrency < 1 {
		errs = append(errs, errors.New("config: upload.concurrency must be at least 1"))
	}
	return multierr.Combine(errs...)
}

func oneOf(value string, allowed ...string) bool {
	for _, a := range allowed {
		if strings.EqualFold(value, a) {
			return true
		}
	}
	return false
}
