// internal/exif/exif.go
package exif

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/tiff"

	"github.com/bstardust/photo-ingest/internal/geo"
)

// Map is a flat view of decoded EXIF tags keyed by tag name, e.g.
// "GPSLatitude" or "DateTimeOriginal". Values are float64, string,
// geo.Rational or []any of those.
type Map map[string]any

// supportedTypes lists the MIME types worth handing to the decoder.
var supportedTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/avif": true,
}

// Supports reports whether contentType may carry EXIF data we can decode.
func Supports(contentType string) bool {
	mediaType, _, _ := strings.Cut(contentType, ";")
	return supportedTypes[strings.ToLower(strings.TrimSpace(mediaType))]
}

// Parse decodes the EXIF block of data into a Map. data may be a JPEG, a
// bare TIFF, a PNG with an eXIf chunk or an AVIF/HEIF file with an Exif item.
func Parse(data []byte) (Map, error) {
	payload, err := exifPayload(data)
	if err != nil {
		return nil, err
	}

	x, err := exif.Decode(bytes.NewReader(payload))
	if err != nil && (x == nil || exif.IsCriticalError(err)) {
		return nil, fmt.Errorf("decode exif: %w", err)
	}

	w := walker{fields: Map{}}
	if err := x.Walk(w); err != nil {
		return nil, fmt.Errorf("walk exif: %w", err)
	}
	if len(w.fields) == 0 {
		return nil, nil
	}
	return w.fields, nil
}

type walker struct {
	fields Map
}

func (w walker) Walk(name exif.FieldName, tag *tiff.Tag) error {
	if v, ok := tagValue(tag); ok {
		w.fields[string(name)] = v
	}
	return nil
}

func tagValue(tag *tiff.Tag) (any, bool) {
	if tag == nil || tag.Count == 0 {
		return nil, false
	}

	switch tag.Format() {
	case tiff.StringVal:
		s, err := tag.StringVal()
		if err != nil {
			return nil, false
		}
		return strings.TrimSpace(strings.TrimRight(s, "\x00")), true
	case tiff.RatVal:
		return collect(tag, func(i int) (any, error) {
			num, den, err := tag.Rat2(i)
			return geo.Rational{Num: num, Den: den}, err
		})
	case tiff.IntVal:
		return collect(tag, func(i int) (any, error) {
			v, err := tag.Int64(i)
			return float64(v), err
		})
	case tiff.FloatVal:
		return collect(tag, func(i int) (any, error) {
			return tag.Float(i)
		})
	}
	return nil, false
}

// collect returns a scalar for single-valued tags and []any otherwise.
func collect(tag *tiff.Tag, at func(int) (any, error)) (any, bool) {
	n := int(tag.Count)
	if n == 1 {
		v, err := at(0)
		return v, err == nil
	}

	values := make([]any, 0, n)
	for i := 0; i < n; i++ {
		v, err := at(i)
		if err != nil {
			return nil, false
		}
		values = append(values, v)
	}
	return values, true
}
