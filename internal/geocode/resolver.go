package geocode

import (
	"context"
	"fmt"

	"github.com/bstardust/photo-ingest/internal/geo"
	"github.com/bstardust/photo-ingest/internal/kv"
	"github.com/bstardust/photo-ingest/internal/logger"
)

// Sentinel location strings. They describe a known absence and are distinct
// from an unresolved (null) location.
const (
	NoGPSInformation     = "No GPS information"
	NoMapboxTokenMessage = "No mapbox api provided"
)

// Outcome classifies how a resolution ended.
type Outcome int

const (
	// Resolved carries a provider address.
	Resolved Outcome = iota
	// NoGPS means the payload had no usable coordinates.
	NoGPS
	// NoMapboxToken means geocoding is not configured.
	NoMapboxToken
	// Unresolved means a provider was tried and gave nothing.
	Unresolved
)

func (o Outcome) String() string {
	switch o {
	case Resolved:
		return "resolved"
	case NoGPS:
		return "no_gps"
	case NoMapboxToken:
		return "no_mapbox_token"
	case Unresolved:
		return "unresolved"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// Provider names reported in Location.Provider.
const (
	ProviderAmap   = "amap"
	ProviderMapbox = "mapbox"
)

// Location is the result of one resolution.
type Location struct {
	Outcome  Outcome
	Address  string
	Provider string
	Country  string
}

// Value is the display value: the address, a sentinel string, or nil when
// unresolved.
func (l Location) Value() *string {
	var s string
	switch l.Outcome {
	case Resolved:
		s = l.Address
	case NoGPS:
		s = NoGPSInformation
	case NoMapboxToken:
		s = NoMapboxTokenMessage
	default:
		return nil
	}
	return &s
}

// CountryLookup resolves a country code for a point.
type CountryLookup interface {
	CountryCode(ctx context.Context, token string, c geo.Coordinates) (string, error)
}

// MapboxGeocoder is the localized Mapbox lookup.
type MapboxGeocoder interface {
	CountryLookup
	ReverseGeocode(ctx context.Context, token string, c geo.Coordinates, language, worldview string) (string, error)
}

// AmapGeocoder is the AMap lookup.
type AmapGeocoder interface {
	ReverseGeocode(ctx context.Context, key string, c geo.Coordinates) (string, error)
}

// Resolver turns coordinates into a place name through Mapbox and, inside
// the AMap jurisdictions, AMap.
type Resolver struct {
	config kv.Store
	mapbox MapboxGeocoder
	amap   AmapGeocoder
}

// NewResolver creates a resolver. Provider tokens are read from config on
// every call.
func NewResolver(config kv.Store, mapbox MapboxGeocoder, amap AmapGeocoder) *Resolver {
	return &Resolver{config: config, mapbox: mapbox, amap: amap}
}

type state int

const (
	stateStart state = iota
	stateCountryLookup
	stateAmapAttempt
	stateMapboxFallback
	stateDone
)

// resolution is the per-call state of the machine.
type resolution struct {
	coords      geo.Coordinates
	hasCoords   bool
	mapboxToken string
	amapToken   string
	country     string
	result      Location
}

// Resolve runs one resolution for payload. Provider failures never surface
// as errors; only a failing configuration store does.
func (r *Resolver) Resolve(ctx context.Context, payload Payload) (Location, error) {
	c, ok := payload.Coordinates()
	return r.ResolveCoordinates(ctx, c, ok)
}

// ResolveCoordinates is Resolve for an already extracted point; ok=false
// means there are no coordinates.
func (r *Resolver) ResolveCoordinates(ctx context.Context, c geo.Coordinates, ok bool) (Location, error) {
	res := &resolution{coords: c, hasCoords: ok}

	st := stateStart
	for st != stateDone {
		var err error
		switch st {
		case stateStart:
			st, err = r.start(ctx, res)
		case stateCountryLookup:
			st = r.lookupCountry(ctx, res)
		case stateAmapAttempt:
			st = r.tryAmap(ctx, res)
		case stateMapboxFallback:
			st = r.mapboxFallback(ctx, res)
		}
		if err != nil {
			return Location{}, err
		}
	}
	return res.result, nil
}

func (r *Resolver) start(ctx context.Context, res *resolution) (state, error) {
	if !res.hasCoords {
		res.result = Location{Outcome: NoGPS}
		return stateDone, nil
	}

	cfg, err := r.config.Get(ctx, []string{kv.KeyMapbox, kv.KeyAmap})
	if err != nil {
		return stateDone, fmt.Errorf("geocode: load location config: %w", err)
	}
	res.mapboxToken = cfg[kv.KeyMapbox]
	res.amapToken = cfg[kv.KeyAmap]

	if res.mapboxToken == "" {
		res.result = Location{Outcome: NoMapboxToken}
		return stateDone, nil
	}
	return stateCountryLookup, nil
}

func (r *Resolver) lookupCountry(ctx context.Context, res *resolution) state {
	code, err := r.mapbox.CountryCode(ctx, res.mapboxToken, res.coords)
	if err != nil {
		logger.L().Error().Err(err).
			Float64("latitude", res.coords.Latitude).
			Float64("longitude", res.coords.Longitude).
			Msg("Mapbox country lookup failed")
		res.result = Location{Outcome: Unresolved}
		return stateDone
	}
	res.country = code

	if res.amapToken != "" && r.amap != nil && PrefersAmap(code) {
		return stateAmapAttempt
	}
	return stateMapboxFallback
}

func (r *Resolver) tryAmap(ctx context.Context, res *resolution) state {
	address, err := r.amap.ReverseGeocode(ctx, res.amapToken, res.coords)
	if err != nil {
		logger.L().Warn().Err(err).
			Str("country", res.country).
			Float64("latitude", res.coords.Latitude).
			Float64("longitude", res.coords.Longitude).
			Msg("AMap reverse geocode failed, falling back to Mapbox")
		return stateMapboxFallback
	}

	res.result = Location{Outcome: Resolved, Address: address, Provider: ProviderAmap, Country: res.country}
	return stateDone
}

func (r *Resolver) mapboxFallback(ctx context.Context, res *resolution) state {
	language := LanguageFor(res.country)
	worldview := WorldviewFor(res.country)

	address, err := r.mapbox.ReverseGeocode(ctx, res.mapboxToken, res.coords, language, worldview)
	if err != nil {
		logger.L().Error().Err(err).
			Str("country", res.country).
			Str("language", language).
			Str("worldview", worldview).
			Float64("latitude", res.coords.Latitude).
			Float64("longitude", res.coords.Longitude).
			Msg("Unable to resolve location via Mapbox")
		res.result = Location{Outcome: Unresolved, Country: res.country}
		return stateDone
	}

	res.result = Location{Outcome: Resolved, Address: address, Provider: ProviderMapbox, Country: res.country}
	return stateDone
}
