// Package bvgapi is a client for the transport.rest (HAFAS) REST API.
package bvgapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"campuspulse/internal/domain"
)

const service = "bvg"

type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
}

func New(baseURL, userAgent string, timeout time.Duration) *Client {
	return &Client{
		baseURL:   baseURL,
		userAgent: userAgent,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// Locations runs a free-text stop search.
func (c *Client) Locations(ctx context.Context, query string, results int) ([]domain.StopCandidate, error) {
	params := url.Values{}
	params.Set("query", query)
	params.Set("results", strconv.Itoa(results))

	var candidates []domain.StopCandidate
	if err := c.get(ctx, "/locations", params, &candidates); err != nil {
		return nil, err
	}
	return candidates, nil
}

// Nearby lists stops and stations around a coordinate. Addresses and points
// of interest are excluded.
func (c *Client) Nearby(ctx context.Context, lat, lon float64, results int) ([]domain.StopCandidate, error) {
	params := url.Values{}
	params.Set("latitude", strconv.FormatFloat(lat, 'f', -1, 64))
	params.Set("longitude", strconv.FormatFloat(lon, 'f', -1, 64))
	params.Set("results", strconv.Itoa(results))
	params.Set("stops", "true")
	params.Set("poi", "false")
	params.Set("addresses", "false")

	var candidates []domain.StopCandidate
	if err := c.get(ctx, "/locations/nearby", params, &candidates); err != nil {
		return nil, err
	}
	return candidates, nil
}

type journeysResponse struct {
	Journeys []domain.Itinerary `json:"journeys"`
}

// Journeys queries the journey planner. params is built by the planner.
func (c *Client) Journeys(ctx context.Context, params url.Values) ([]domain.Itinerary, error) {
	var resp journeysResponse
	if err := c.get(ctx, "/journeys", params, &resp); err != nil {
		return nil, err
	}
	return resp.Journeys, nil
}

// Departures returns the upstream departures board of a stop unchanged.
func (c *Client) Departures(ctx context.Context, stopID string, duration int) (json.RawMessage, error) {
	params := url.Values{}
	if duration > 0 {
		params.Set("duration", strconv.Itoa(duration))
	}

	var raw json.RawMessage
	if err := c.get(ctx, "/stops/"+url.PathEscape(stopID)+"/departures", params, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, dest interface{}) error {
	reqURL := c.baseURL + path
	if len(params) > 0 {
		reqURL = fmt.Sprintf("%s?%s", reqURL, params.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &domain.UpstreamError{Service: service, Err: fmt.Errorf("executing request: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &domain.UpstreamError{Service: service, StatusCode: resp.StatusCode}
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return &domain.UpstreamError{Service: service, Err: fmt.Errorf("decoding response: %w", err)}
	}
	return nil
}
