package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/bstardust/photo-ingest/internal/geo"
)

// DefaultMapboxURL is the Mapbox Geocoding v6 reverse endpoint.
const DefaultMapboxURL = "https://api.mapbox.com/search/geocode/v6/reverse"

// ErrNoResult is returned when a provider answered without a usable value.
var ErrNoResult = errors.New("no result")

type mapboxResponse struct {
	Features []mapboxFeature `json:"features"`
}

type mapboxFeature struct {
	Properties struct {
		FullAddress string `json:"full_address"`
		Context     struct {
			Country struct {
				CountryCode string `json:"country_code"`
			} `json:"country"`
		} `json:"context"`
	} `json:"properties"`
	PlaceName string `json:"place_name"`
}

// MapboxClient talks to the Mapbox reverse geocoding API
type MapboxClient struct {
	opts options
}

// NewMapboxClient creates a Mapbox client
func NewMapboxClient(opts ...Option) *MapboxClient {
	return &MapboxClient{opts: newOptions(DefaultMapboxURL, opts)}
}

// CountryCode returns the upper-case ISO country code at c.
func (m *MapboxClient) CountryCode(ctx context.Context, token string, c geo.Coordinates) (string, error) {
	q := m.query(token, c)
	q.Set("types", "country")

	resp, err := m.fetch(ctx, q)
	if err != nil {
		return "", err
	}
	if len(resp.Features) == 0 {
		return "", fmt.Errorf("mapbox: country lookup: %w", ErrNoResult)
	}

	code := resp.Features[0].Properties.Context.Country.CountryCode
	if code == "" {
		return "", fmt.Errorf("mapbox: country lookup: %w", ErrNoResult)
	}
	return strings.ToUpper(code), nil
}

// ReverseGeocode returns the full address at c rendered for language and
// worldview.
func (m *MapboxClient) ReverseGeocode(ctx context.Context, token string, c geo.Coordinates, language, worldview string) (string, error) {
	q := m.query(token, c)
	q.Set("language", language)
	q.Set("worldview", worldview)
	q.Set("limit", "1")

	resp, err := m.fetch(ctx, q)
	if err != nil {
		return "", err
	}
	if len(resp.Features) == 0 {
		return "", fmt.Errorf("mapbox: reverse geocode: %w", ErrNoResult)
	}

	f := resp.Features[0]
	address := f.Properties.FullAddress
	if address == "" {
		address = f.PlaceName
	}
	if address == "" {
		return "", fmt.Errorf("mapbox: reverse geocode: %w", ErrNoResult)
	}
	return address, nil
}

func (m *MapboxClient) query(token string, c geo.Coordinates) url.Values {
	q := url.Values{}
	q.Set("longitude", geo.FormatFloat(c.Longitude))
	q.Set("latitude", geo.FormatFloat(c.Latitude))
	q.Set("access_token", token)
	return q
}

func (m *MapboxClient) fetch(ctx context.Context, q url.Values) (*mapboxResponse, error) {
	resp, err := m.opts.get(ctx, "mapbox", m.opts.baseURL+"?"+q.Encode())
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	var out mapboxResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("mapbox: decode response: %w", err)
	}
	return &out, nil
}
