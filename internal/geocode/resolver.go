package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/viper"

	"github.com/photoatlas/backend/internal/models"
)

// Resolver translates a coordinate pair into administrative place
// names. Resolution is best-effort: implementations never fail the
// caller, they return an empty Place instead.
type Resolver interface {
	Resolve(ctx context.Context, lat, lng float64) models.Place
}

// Client calls the Google reverse-geocoding API.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *slog.Logger
}

// NewClient creates a geocoding client from geocode.api_url (defaults
// to the real endpoint) and geocode.api_key.
func NewClient(logger *slog.Logger) *Client {
	baseURL := viper.GetString("geocode.api_url")
	if baseURL == "" {
		baseURL = "https://maps.googleapis.com/maps/api/geocode/json"
	}

	return &Client{
		baseURL: baseURL,
		apiKey:  viper.GetString("geocode.api_key"),
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

// addressComponent is one entry of the geocoder's address_components.
type addressComponent struct {
	LongName string   `json:"long_name"`
	Types    []string `json:"types"`
}

// geocodeResponse is the subset of the geocoding payload we consume.
type geocodeResponse struct {
	Status  string `json:"status"`
	Results []struct {
		AddressComponents []addressComponent `json:"address_components"`
	} `json:"results"`
}

// componentValue returns the long name of the first component tagged
// with typ, or empty.
func componentValue(components []addressComponent, typ string) string {
	for _, c := range components {
		for _, t := range c.Types {
			if t == typ {
				return c.LongName
			}
		}
	}
	return ""
}

// firstNonEmpty walks an ordered candidate chain of component types and
// returns the first level that resolved.
func firstNonEmpty(components []addressComponent, types ...string) string {
	for _, typ := range types {
		if v := componentValue(components, typ); v != "" {
			return v
		}
	}
	return ""
}

// Resolve implements Resolver. Any failure — transport error, non-OK
// status, malformed or empty payload — degrades to the all-empty Place
// so a broken geocoder never blocks a sync.
func (c *Client) Resolve(ctx context.Context, lat, lng float64) models.Place {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL, nil)
	if err != nil {
		c.logger.Warn("geocode request build failed", "error", err)
		return models.Place{}
	}

	q := req.URL.Query()
	q.Set("latlng", fmt.Sprintf("%v,%v", lat, lng))
	q.Set("key", c.apiKey)
	req.URL.RawQuery = q.Encode()

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Warn("geocode call failed", "error", err)
		return models.Place{}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("geocode returned non-OK status", "status", resp.StatusCode)
		return models.Place{}
	}

	var payload geocodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		c.logger.Warn("geocode payload decode failed", "error", err)
		return models.Place{}
	}

	if payload.Status != "OK" || len(payload.Results) == 0 {
		return models.Place{}
	}

	components := payload.Results[0].AddressComponents
	return models.Place{
		District: firstNonEmpty(components, "administrative_area_level_2", "administrative_area_level_1"),
		Tehsil:   firstNonEmpty(components, "administrative_area_level_3", "sublocality_level_1"),
		Village:  firstNonEmpty(components, "locality", "sublocality", "neighborhood"),
		Country:  componentValue(components, "country"),
	}
}
