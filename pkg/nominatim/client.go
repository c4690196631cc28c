// Package nominatim is a client for the OpenStreetMap Nominatim search API.
package nominatim

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"campuspulse/internal/cache"
	"campuspulse/internal/domain"
)

const service = "geocode"

// Cache stores geocode answers; Nominatim's usage policy asks clients to
// cache repeated queries.
type Cache interface {
	GetJSON(ctx context.Context, key string, dest interface{}) (bool, error)
	SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	limiter    *rate.Limiter
	cache      Cache
	cacheTTL   time.Duration
	logger     *slog.Logger

	// OnCacheLookup, when set, is called after every cache read.
	OnCacheLookup func(hit bool)
}

// New creates a client sending at most one request per interval.
func New(baseURL, contact string, timeout, interval time.Duration, logger *slog.Logger) *Client {
	return &Client{
		baseURL:   baseURL,
		userAgent: fmt.Sprintf("CampusPulse/1.0 (%s)", contact),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		limiter: rate.NewLimiter(rate.Every(interval), 1),
		logger:  logger.With("component", "nominatim"),
	}
}

// WithCache enables caching of answers for ttl.
func (c *Client) WithCache(store Cache, ttl time.Duration) *Client {
	c.cache = store
	c.cacheTTL = ttl
	return c
}

type cachedGeocode struct {
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
}

// Geocode returns the single best match for query. An empty answer is
// reported as domain.ErrNotFound.
func (c *Client) Geocode(ctx context.Context, query string) (domain.Geocode, error) {
	key := cache.KeyGeocode(query)
	if c.cache != nil {
		var cached cachedGeocode
		found, err := c.cache.GetJSON(ctx, key, &cached)
		if err != nil {
			c.logger.Debug("geocode cache read failed", "error", err)
		}
		if c.OnCacheLookup != nil {
			c.OnCacheLookup(found)
		}
		if found {
			return domain.Geocode{Name: cached.Name, Coords: domain.Coord{Lat: cached.Lat, Lon: cached.Lon}}, nil
		}
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return domain.Geocode{}, &domain.UpstreamError{Service: service, Err: err}
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("limit", "1")
	params.Set("addressdetails", "0")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s?%s", c.baseURL, params.Encode()), nil)
	if err != nil {
		return domain.Geocode{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept-Language", "en")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.Geocode{}, &domain.UpstreamError{Service: service, Err: fmt.Errorf("executing request: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.Geocode{}, &domain.UpstreamError{Service: service, StatusCode: resp.StatusCode}
	}

	// lat/lon arrive as strings; StopCandidate's adapters parse them.
	var results []domain.StopCandidate
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return domain.Geocode{}, &domain.UpstreamError{Service: service, Err: fmt.Errorf("decoding response: %w", err)}
	}
	if len(results) == 0 || results[0].Direct == nil {
		return domain.Geocode{}, fmt.Errorf("%w: address %q", domain.ErrNotFound, query)
	}

	best := results[0]
	geocode := domain.Geocode{Name: best.Name, Coords: *best.Direct}

	if c.cache != nil {
		entry := cachedGeocode{Name: geocode.Name, Lat: geocode.Coords.Lat, Lon: geocode.Coords.Lon}
		if err := c.cache.SetJSON(ctx, key, entry, c.cacheTTL); err != nil {
			c.logger.Debug("geocode cache write failed", "error", err)
		}
	}
	return geocode, nil
}
