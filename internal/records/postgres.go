package records

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bstardust/photo-ingest/internal/geo"
)

// Schema creates the image table. gps_location is a PostGIS geography
// written from WKT "POINT(lon lat)".
const Schema = `
CREATE EXTENSION IF NOT EXISTS postgis;

CREATE TABLE IF NOT EXISTS image (
	id BIGSERIAL PRIMARY KEY,
	folder TEXT NOT NULL DEFAULT 'default',
	file_name TEXT NOT NULL,
	storage_key TEXT NOT NULL UNIQUE,
	location TEXT,
	taken_at TIMESTAMPTZ,
	exif JSONB,
	date TEXT NOT NULL,
	width INTEGER,
	height INTEGER,
	size BIGINT NOT NULL,
	format TEXT NOT NULL DEFAULT '',
	gps_location GEOGRAPHY(POINT, 4326),
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS image_gps_location_idx ON image USING GIST (gps_location);
`

const selectColumns = `
	id, folder, file_name, storage_key, location, taken_at, exif, date,
	width, height, size, format,
	ST_X(gps_location::geometry), ST_Y(gps_location::geometry),
	created_at`

// PostgresStore keeps records in a PostGIS-enabled PostgreSQL database
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore creates a store on db.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// OpenPostgres connects to dsn and creates the schema when missing.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("records: connect: %w", err)
	}
	if _, err := pool.Exec(ctx, Schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("records: create schema: %w", err)
	}
	return NewPostgresStore(pool), nil
}

// Insert writes rec and returns the stored row.
func (s *PostgresStore) Insert(ctx context.Context, rec *Record) (*Record, error) {
	sql := `
		INSERT INTO image (folder, file_name, storage_key, location, taken_at, exif,
			date, width, height, size, format, gps_location)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, ST_GeogFromText($12))
		RETURNING` + selectColumns

	var exifArg any
	if rec.Exif != nil {
		exifArg = rec.Exif
	}

	row := s.db.QueryRow(ctx, sql,
		rec.Folder, rec.FileName, rec.StorageKey, rec.Location, rec.TakenAt, exifArg,
		rec.Date, rec.Width, rec.Height, rec.Size, rec.Format, rec.WKT(),
	)
	out, err := scanRecord(row)
	if err != nil {
		return nil, fmt.Errorf("records: insert %s: %w", rec.StorageKey, err)
	}
	return out, nil
}

// GetByStorageKey returns the record stored under key.
func (s *PostgresStore) GetByStorageKey(ctx context.Context, key string) (*Record, error) {
	row := s.db.QueryRow(ctx, `SELECT`+selectColumns+` FROM image WHERE storage_key = $1`, key)
	out, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("records: get %s: %w", key, err)
	}
	return out, nil
}

// DeleteByStorageKeys removes the records of keys.
func (s *PostgresStore) DeleteByStorageKeys(ctx context.Context, keys []string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	tag, err := s.db.Exec(ctx, `DELETE FROM image WHERE storage_key = ANY($1)`, keys)
	if err != nil {
		return 0, fmt.Errorf("records: delete: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Close releases the pool.
func (s *PostgresStore) Close(context.Context) error {
	s.db.Close()
	return nil
}

func scanRecord(row pgx.Row) (*Record, error) {
	var (
		rec      Record
		id       int64
		lon, lat *float64
		takenAt  *time.Time
	)
	err := row.Scan(
		&id, &rec.Folder, &rec.FileName, &rec.StorageKey, &rec.Location, &takenAt, &rec.Exif, &rec.Date,
		&rec.Width, &rec.Height, &rec.Size, &rec.Format,
		&lon, &lat,
		&rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	rec.ID = strconv.FormatInt(id, 10)
	rec.TakenAt = takenAt
	if lon != nil && lat != nil {
		rec.GPSLocation = geo.Coordinates{Latitude: *lat, Longitude: *lon}.Point()
	}
	return &rec, nil
}
