package geocode

import (
	"bytes"
	"encoding/json"

	"github.com/bstardust/photo-ingest/internal/geo"
)

// Payload is the input of a location request. Coordinates come from Exif
// when it is set, otherwise from the payload's own fields.
type Payload struct {
	Exif      map[string]any `json:"exif,omitempty"`
	Latitude  any            `json:"latitude,omitempty"`
	Longitude any            `json:"longitude,omitempty"`
	Lat       any            `json:"lat,omitempty"`
	Lng       any            `json:"lng,omitempty"`
}

// UnmarshalJSON decodes a payload. An exif value that is not an object
// carries no coordinates but still shadows the payload's own fields; a null
// exif is the same as none.
func (p *Payload) UnmarshalJSON(data []byte) error {
	type plain Payload
	var raw struct {
		plain
		Exif json.RawMessage `json:"exif"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*p = Payload(raw.plain)
	p.Exif = nil
	exif := bytes.TrimSpace(raw.Exif)
	if len(exif) == 0 || bytes.Equal(exif, []byte("null")) {
		return nil
	}
	var fields map[string]any
	if exif[0] != '{' || json.Unmarshal(exif, &fields) != nil {
		fields = map[string]any{}
	}
	p.Exif = fields
	return nil
}

// PayloadFromCoordinates builds a payload holding c.
func PayloadFromCoordinates(c geo.Coordinates) Payload {
	return Payload{Latitude: c.Latitude, Longitude: c.Longitude}
}

// Coordinates extracts a finite latitude/longitude pair.
func (p Payload) Coordinates() (geo.Coordinates, bool) {
	var lat, lng any
	if p.Exif != nil {
		lat = firstNonNil(p.Exif["latitude"], p.Exif["lat"])
		lng = firstNonNil(p.Exif["longitude"], p.Exif["lng"])
	} else {
		lat = firstNonNil(p.Latitude, p.Lat)
		lng = firstNonNil(p.Longitude, p.Lng)
	}

	latitude, ok := geo.ToNumber(lat)
	if !ok {
		return geo.Coordinates{}, false
	}
	longitude, ok := geo.ToNumber(lng)
	if !ok {
		return geo.Coordinates{}, false
	}
	return geo.Coordinates{Latitude: latitude, Longitude: longitude}, true
}

func firstNonNil(values ...any) any {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}
