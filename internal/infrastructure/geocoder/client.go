// Package geocoder calls a Google-Geocoding-shaped HTTP API.
package geocoder

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/ThierryFotabong/feeya/internal/domain/address"
)

type Client struct {
	baseURL    string
	apiKey     string
	region     string
	httpClient *http.Client
}

func NewClient(baseURL, apiKey, region string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		region:     region,
		httpClient: &http.Client{Timeout: timeout},
	}
}

var _ address.Geocoder = (*Client)(nil)

type response struct {
	Status  string `json:"status"`
	Results []struct {
		FormattedAddress string `json:"formatted_address"`
		PartialMatch     bool   `json:"partial_match"`
		Geometry         struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
	} `json:"results"`
	ErrorMessage string `json:"error_message"`
}

// Geocode returns Valid=false without error when the text cannot be placed precisely.
func (c *Client) Geocode(ctx context.Context, freeText string) (address.GeocodeResult, error) {
	q := url.Values{}
	q.Set("address", freeText)
	if c.apiKey != "" {
		q.Set("key", c.apiKey)
	}
	if c.region != "" {
		q.Set("region", c.region)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/maps/api/geocode/json?"+q.Encode(), nil)
	if err != nil {
		return address.GeocodeResult{}, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return address.GeocodeResult{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return address.GeocodeResult{}, fmt.Errorf("geocoder returned status %d", resp.StatusCode)
	}
	var body response
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return address.GeocodeResult{}, fmt.Errorf("decode geocoder response: %w", err)
	}

	switch body.Status {
	case "OK":
	case "ZERO_RESULTS":
		return address.GeocodeResult{}, nil
	default:
		return address.GeocodeResult{}, fmt.Errorf("geocoder status %s: %s", body.Status, body.ErrorMessage)
	}
	if len(body.Results) == 0 || body.Results[0].PartialMatch {
		return address.GeocodeResult{}, nil
	}
	r := body.Results[0]
	return address.GeocodeResult{
		Valid:            true,
		FormattedAddress: r.FormattedAddress,
		Lat:              r.Geometry.Location.Lat,
		Lng:              r.Geometry.Location.Lng,
	}, nil
}
