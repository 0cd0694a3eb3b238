package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/bstardust/photo-ingest/internal/geo"
)

// DefaultAmapURL is the AMap reverse geocoding (regeo) endpoint.
const DefaultAmapURL = "https://restapi.amap.com/v3/geocode/regeo"

const amapRadius = "2000"

type amapResponse struct {
	Status    string `json:"status"`
	Info      string `json:"info"`
	Regeocode struct {
		// A string, or [] when nothing is near the point.
		FormattedAddress json.RawMessage `json:"formatted_address"`
	} `json:"regeocode"`
}

// AmapClient talks to the AMap web service API
type AmapClient struct {
	opts options
}

// NewAmapClient creates an AMap client
func NewAmapClient(opts ...Option) *AmapClient {
	return &AmapClient{opts: newOptions(DefaultAmapURL, opts)}
}

// ReverseGeocode returns the formatted address at c.
func (a *AmapClient) ReverseGeocode(ctx context.Context, key string, c geo.Coordinates) (string, error) {
	q := url.Values{}
	q.Set("key", key)
	q.Set("location", fmt.Sprintf("%.6f,%.6f", c.Longitude, c.Latitude))
	q.Set("radius", amapRadius)

	resp, err := a.opts.get(ctx, "amap", a.opts.baseURL+"?"+q.Encode())
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	var out amapResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("amap: decode response: %w", err)
	}
	if out.Status != "1" {
		return "", fmt.Errorf("amap: status %q: %s", out.Status, out.Info)
	}

	var address string
	if err := json.Unmarshal(out.Regeocode.FormattedAddress, &address); err != nil || address == "" {
		return "", fmt.Errorf("amap: reverse geocode: %w", ErrNoResult)
	}
	return address, nil
}
