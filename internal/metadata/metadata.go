package metadata

import (
	"strings"
	"time"

	"github.com/bstardust/photo-ingest/internal/exif"
	"github.com/bstardust/photo-ingest/internal/geo"
	"github.com/bstardust/photo-ingest/internal/logger"
)

// Alias lists, most specific spelling first.
var (
	latitudeKeys     = []string{"GPSLatitude", "gpsLatitude", "Latitude", "latitude", "lat"}
	longitudeKeys    = []string{"GPSLongitude", "gpsLongitude", "Longitude", "longitude", "lng", "lon"}
	latitudeRefKeys  = []string{"GPSLatitudeRef", "gpsLatitudeRef", "LatitudeRef", "latitudeRef"}
	longitudeRefKeys = []string{"GPSLongitudeRef", "gpsLongitudeRef", "LongitudeRef", "longitudeRef"}
	positionKeys     = []string{"GPSPosition"}
	takenAtKeys      = []string{"DateTimeOriginal", "dateTimeOriginal", "CreateDate", "DateTimeDigitized", "DateTime"}
)

var exifTimeLayouts = []string{
	"2006:01:02 15:04:05",
	"2006:01:02 15:04:05Z07:00",
	time.RFC3339,
	"2006-01-02 15:04:05",
}

// Metadata is what the pipeline keeps from an image's EXIF block
type Metadata struct {
	Exif     exif.Map
	TakenAt  *time.Time
	GPSPoint *geo.GeoPoint
	Camera   *CameraData
}

// CameraData represents camera information
type CameraData struct {
	Make  string `json:"make,omitempty"`
	Model string `json:"model,omitempty"`
}

// Extractor extracts metadata from uploaded image bytes
type Extractor struct {
	timezone *time.Location
}

// NewExtractor creates a new metadata extractor. Naive EXIF timestamps are
// interpreted in timezone.
func NewExtractor(timezone *time.Location) *Extractor {
	if timezone == nil {
		timezone = time.UTC
	}
	return &Extractor{
		timezone: timezone,
	}
}

// Extract parses the EXIF block of data when contentType can carry one.
// Undecodable EXIF is logged and treated as absent; the returned Metadata is
// never nil.
func (e *Extractor) Extract(contentType string, data []byte) *Metadata {
	md := &Metadata{}
	if !exif.Supports(contentType) {
		return md
	}

	fields, err := exif.Parse(data)
	if err != nil {
		logger.Debug("No usable EXIF metadata (%s): %v", contentType, err)
		return md
	}
	return e.FromExif(fields)
}

// FromExif builds Metadata from an already parsed map.
func (e *Extractor) FromExif(fields exif.Map) *Metadata {
	md := &Metadata{Exif: fields}
	if len(fields) == 0 {
		return md
	}

	md.TakenAt = e.ExtractTakenAt(fields)
	md.GPSPoint = e.ExtractGPSPoint(fields)

	cameraMake, _ := Lookup(fields, "Make").(string)
	cameraModel, _ := Lookup(fields, "Model").(string)
	if cameraMake != "" || cameraModel != "" {
		md.Camera = &CameraData{Make: cameraMake, Model: cameraModel}
	}
	return md
}

// ExtractGPSPoint returns the GeoJSON point described by fields, or nil when
// either axis cannot be resolved.
func (e *Extractor) ExtractGPSPoint(fields exif.Map) *geo.GeoPoint {
	if len(fields) == 0 {
		return nil
	}

	latRef := Lookup(fields, latitudeRefKeys...)
	lonRef := Lookup(fields, longitudeRefKeys...)
	lat, latOK := geo.ParseCoordinate(Lookup(fields, latitudeKeys...), latRef)
	lon, lonOK := geo.ParseCoordinate(Lookup(fields, longitudeKeys...), lonRef)

	if !latOK || !lonOK {
		if position, ok := Lookup(fields, positionKeys...).(string); ok {
			lat, latOK, lon, lonOK = parsePosition(position, latRef, lonRef)
		}
	}

	if !latOK || !lonOK {
		return nil
	}
	return geo.Coordinates{Latitude: lat, Longitude: lon}.Point()
}

// parsePosition reads a combined "lat, lon" field. Without explicit refs each
// half supplies its own hemisphere letter, if it has one.
func parsePosition(position string, latRef, lonRef any) (lat float64, latOK bool, lon float64, lonOK bool) {
	parts := strings.FieldsFunc(position, func(r rune) bool { return r == ',' || r == ';' })
	if len(parts) < 2 {
		return 0, false, 0, false
	}
	latPart := strings.TrimSpace(parts[0])
	lonPart := strings.TrimSpace(parts[1])
	if latPart == "" || lonPart == "" {
		return 0, false, 0, false
	}

	lat, latOK = geo.ParseCoordinate(latPart, latRef)
	lon, lonOK = geo.ParseCoordinate(lonPart, lonRef)
	return lat, latOK, lon, lonOK
}

// ExtractTakenAt returns the original capture time, if any.
func (e *Extractor) ExtractTakenAt(fields exif.Map) *time.Time {
	switch v := Lookup(fields, takenAtKeys...).(type) {
	case time.Time:
		return &v
	case *time.Time:
		return v
	case string:
		s := strings.TrimSpace(v)
		for _, layout := range exifTimeLayouts {
			if t, err := time.ParseInLocation(layout, s, e.timezone); err == nil {
				return &t
			}
		}
		logger.Debug("Unrecognized EXIF timestamp %q", s)
	}
	return nil
}

// Lookup returns the first present, non-nil value among keys.
func Lookup(fields exif.Map, keys ...string) any {
	for _, key := range keys {
		if v, ok := fields[key]; ok && v != nil {
			return v
		}
	}
	return nil
}

// WithCoordinates returns a copy of fields carrying the point's decimal
// latitude and longitude under the plain keys the resolver reads.
func WithCoordinates(fields exif.Map, point *geo.GeoPoint) exif.Map {
	out := make(exif.Map, len(fields)+2)
	for k, v := range fields {
		out[k] = v
	}
	if point != nil {
		c := point.LatLng()
		out["latitude"] = c.Latitude
		out["longitude"] = c.Longitude
	}
	return out
}

// ToMap converts metadata to a map for S3 object metadata
func (m *Metadata) ToMap() map[string]string {
	result := make(map[string]string)

	if m.TakenAt != nil {
		result["taken-at"] = m.TakenAt.Format(time.RFC3339)
	}
	if m.Camera != nil {
		if m.Camera.Make != "" {
			result["camera-make"] = m.Camera.Make
		}
		if m.Camera.Model != "" {
			result["camera-model"] = m.Camera.Model
		}
	}

	return result
}
