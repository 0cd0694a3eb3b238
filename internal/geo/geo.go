// Package geo holds the coordinate types shared by the extractor, the
// geocoding resolver and the record stores.
package geo

import (
	"fmt"
	"math"
	"strconv"
)

// PointType is the GeoJSON geometry type of a GeoPoint.
const PointType = "Point"

// Coordinates is a latitude-first pair of decimal degrees.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Valid reports whether both values are finite and inside the WGS84 ranges.
func (c Coordinates) Valid() bool {
	return isFinite(c.Latitude) && isFinite(c.Longitude) &&
		c.Latitude >= -90 && c.Latitude <= 90 &&
		c.Longitude >= -180 && c.Longitude <= 180
}

// Point converts c into a GeoJSON point.
func (c Coordinates) Point() *GeoPoint {
	return &GeoPoint{
		Type:        PointType,
		Coordinates: []float64{c.Longitude, c.Latitude},
	}
}

// GeoPoint is a GeoJSON Point.
type GeoPoint struct {
	Type        string    `json:"type" bson:"type"`
	Coordinates []float64 `json:"coordinates" bson:"coordinates"` // [Lon, Lat]
}

// Longitude returns the first coordinate.
func (p *GeoPoint) Longitude() float64 {
	if p == nil || len(p.Coordinates) < 2 {
		return math.NaN()
	}
	return p.Coordinates[0]
}

// Latitude returns the second coordinate.
func (p *GeoPoint) Latitude() float64 {
	if p == nil || len(p.Coordinates) < 2 {
		return math.NaN()
	}
	return p.Coordinates[1]
}

// LatLng converts the point back to latitude-first coordinates.
func (p *GeoPoint) LatLng() Coordinates {
	return Coordinates{Latitude: p.Latitude(), Longitude: p.Longitude()}
}

// WKT renders the point as well-known text, "POINT(lon lat)".
func (p *GeoPoint) WKT() string {
	return fmt.Sprintf("POINT(%s %s)", FormatFloat(p.Longitude()), FormatFloat(p.Latitude()))
}

// Rational is an EXIF RATIONAL or SRATIONAL value.
type Rational struct {
	Num int64 `json:"numerator"`
	Den int64 `json:"denominator"`
}

// Float returns Num/Den, or false when the denominator is zero.
func (r Rational) Float() (float64, bool) {
	if r.Den == 0 {
		return 0, false
	}
	return float64(r.Num) / float64(r.Den), true
}

func (r Rational) String() string {
	return strconv.FormatInt(r.Num, 10) + "/" + strconv.FormatInt(r.Den, 10)
}

// FormatFloat renders f with the shortest representation that round-trips.
func FormatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
