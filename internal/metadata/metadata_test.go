package metadata

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bstardust/photo-ingest/internal/exif"
	"github.com/bstardust/photo-ingest/internal/geo"
)

func TestExtractGPSPoint(t *testing.T) {
	e := NewExtractor(nil)

	tests := []struct {
		name   string
		fields exif.Map
		want   []float64 // [lon, lat]
	}{
		{
			name: "rational triples with refs",
			fields: exif.Map{
				"GPSLatitude":     []any{geo.Rational{Num: 33, Den: 1}, geo.Rational{Num: 51, Den: 1}, geo.Rational{Num: 2124, Den: 100}},
				"GPSLatitudeRef":  "S",
				"GPSLongitude":    []any{geo.Rational{Num: 151, Den: 1}, geo.Rational{Num: 12, Den: 1}, geo.Rational{Num: 3348, Den: 100}},
				"GPSLongitudeRef": "E",
			},
			want: []float64{151 + 12.0/60 + 33.48/3600, -(33 + 51.0/60 + 21.24/3600)},
		},
		{
			name:   "decimal aliases",
			fields: exif.Map{"latitude": 39.9042, "lng": 116.4074},
			want:   []float64{116.4074, 39.9042},
		},
		{
			name:   "camel case aliases win over later ones",
			fields: exif.Map{"gpsLatitude": "10/4", "lat": 99, "lon": "-3.5"},
			want:   []float64{-3.5, 2.5},
		},
		{
			name:   "nil alias is skipped",
			fields: exif.Map{"GPSLatitude": nil, "Latitude": 1.5, "Longitude": 2.5},
			want:   []float64{2.5, 1.5},
		},
		{
			name:   "combined position with embedded hemispheres",
			fields: exif.Map{"GPSPosition": `33 deg 51' 21.24" S, 151 deg 12' 33.48" E`},
			want:   []float64{151 + 12.0/60 + 33.48/3600, -(33 + 51.0/60 + 21.24/3600)},
		},
		{
			name:   "combined position uses separate refs",
			fields: exif.Map{"GPSPosition": "40.5; 73.25", "GPSLatitudeRef": "N", "GPSLongitudeRef": "W"},
			want:   []float64{-73.25, 40.5},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			point := e.ExtractGPSPoint(tt.fields)
			require.NotNil(t, point)
			assert.Equal(t, geo.PointType, point.Type)
			require.Len(t, point.Coordinates, 2)
			assert.InDelta(t, tt.want[0], point.Coordinates[0], 1e-9)
			assert.InDelta(t, tt.want[1], point.Coordinates[1], 1e-9)
		})
	}
}

func TestExtractGPSPointNoPartialPoints(t *testing.T) {
	e := NewExtractor(nil)

	cases := []exif.Map{
		nil,
		{},
		{"GPSLatitude": 12.5},
		{"GPSLongitude": 12.5},
		{"GPSLatitude": 12.5, "GPSLongitude": "garbage"},
		{"GPSLatitude": "x", "GPSLongitude": 1.0},
		{"GPSLatitude": 12.5, "GPSPosition": "12.5"},
		{"GPSPosition": "12.5, "},
		{"GPSPosition": 42},
	}

	for _, fields := range cases {
		assert.Nil(t, e.ExtractGPSPoint(fields), "%v", fields)
	}
}

func TestExtractTakenAt(t *testing.T) {
	tz := time.FixedZone("UTC+8", 8*3600)
	e := NewExtractor(tz)

	got := e.ExtractTakenAt(exif.Map{"DateTimeOriginal": "2024:05:01 08:30:00"})
	require.NotNil(t, got)
	assert.True(t, got.Equal(time.Date(2024, 5, 1, 0, 30, 0, 0, time.UTC)))

	got = e.ExtractTakenAt(exif.Map{"DateTime": "2023-01-02T03:04:05Z", "CreateDate": "2022:01:01 00:00:00"})
	require.NotNil(t, got)
	assert.Equal(t, 2022, got.Year())

	fixed := time.Date(2020, 2, 29, 12, 0, 0, 0, time.UTC)
	got = e.ExtractTakenAt(exif.Map{"dateTimeOriginal": fixed})
	require.NotNil(t, got)
	assert.True(t, got.Equal(fixed))

	assert.Nil(t, e.ExtractTakenAt(exif.Map{"DateTimeOriginal": "yesterday"}))
	assert.Nil(t, e.ExtractTakenAt(nil))
}

func TestFromExif(t *testing.T) {
	e := NewExtractor(time.UTC)
	md := e.FromExif(exif.Map{
		"Make":             "FUJIFILM",
		"Model":            "X100V",
		"DateTimeOriginal": "2024:05:01 08:30:00",
		"latitude":         1.0,
		"longitude":        2.0,
	})

	require.NotNil(t, md.Camera)
	assert.Equal(t, "FUJIFILM", md.Camera.Make)
	require.NotNil(t, md.GPSPoint)
	assert.Equal(t, []float64{2, 1}, md.GPSPoint.Coordinates)
	assert.Equal(t, map[string]string{
		"taken-at":     "2024-05-01T08:30:00Z",
		"camera-make":  "FUJIFILM",
		"camera-model": "X100V",
	}, md.ToMap())
}

func TestExtractUnsupportedOrBroken(t *testing.T) {
	e := NewExtractor(nil)

	md := e.Extract("image/gif", []byte("GIF89a"))
	require.NotNil(t, md)
	assert.Nil(t, md.Exif)

	md = e.Extract("image/jpeg", []byte{0xFF, 0xD8, 0xFF, 0xD9})
	require.NotNil(t, md)
	assert.Nil(t, md.Exif)
	assert.Nil(t, md.GPSPoint)
	assert.Empty(t, md.ToMap())
}

func TestWithCoordinates(t *testing.T) {
	fields := exif.Map{"GPSLatitude": "raw"}
	point := geo.Coordinates{Latitude: -1, Longitude: 2}.Point()

	out := WithCoordinates(fields, point)

	assert.Equal(t, -1.0, out["latitude"])
	assert.Equal(t, 2.0, out["longitude"])
	assert.Equal(t, "raw", out["GPSLatitude"])
	assert.NotContains(t, fields, "latitude")

	assert.Equal(t, fields, WithCoordinates(fields, nil))
}
