package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const defaultBaseURL = "https://api.opencagedata.com/geocode/v1/json"

// Client geocodes addresses against the OpenCage API.
type Client struct {
	httpClient *http.Client
	apiKey     string

	// Overridable URL for testing.
	baseURL string
}

// NewClient creates an OpenCage geocoding client.
func NewClient(apiKey string) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("OPENCAGE_API_KEY is required")
	}
	return &Client{
		httpClient: &http.Client{},
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
	}, nil
}

// openCageResponse is the subset of the provider response we read.
type openCageResponse struct {
	Results []openCageResult `json:"results"`
}

type openCageResult struct {
	Geometry struct {
		Lat *float64 `json:"lat"`
		Lng *float64 `json:"lng"`
	} `json:"geometry"`
}

// Geocode resolves an address to a point. A provider response with no
// results, or a result missing either coordinate, yields ErrInvalidAddress.
func (c *Client) Geocode(ctx context.Context, address string) (*Result, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, fmt.Errorf("geocoding: %w", ErrInvalidAddress)
	}

	params := url.Values{}
	params.Set("q", address)
	params.Set("key", c.apiKey)
	params.Set("limit", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("building geocode request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling geocoder: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading geocoder response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("geocoder returned status %d: %s", resp.StatusCode, string(body))
	}

	var parsed openCageResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("parsing geocoder response: %w", err)
	}

	if len(parsed.Results) == 0 {
		return nil, fmt.Errorf("geocoding %q: %w", address, ErrInvalidAddress)
	}

	first := parsed.Results[0]
	if first.Geometry.Lat == nil || first.Geometry.Lng == nil {
		return nil, fmt.Errorf("geocoding %q: %w", address, ErrInvalidAddress)
	}

	raw, err := json.Marshal(parsed.Results)
	if err != nil {
		return nil, fmt.Errorf("encoding raw geocoder payload: %w", err)
	}

	return &Result{
		Lon: *first.Geometry.Lng,
		Lat: *first.Geometry.Lat,
		Raw: raw,
	}, nil
}
