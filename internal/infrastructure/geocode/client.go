package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/leafwatch/plant-admin/internal/infrastructure/resilience"
)

// NotFoundFallback is returned when the provider has no name for the
// coordinates. It is a fixed user-facing string, not an error.
const NotFoundFallback = "Location not found"

// Observer reports lookup outcomes ("resolved", "not_found", "error") and
// whether the answer came from cache. Wired to prometheus in bootstrap.
type Observer func(outcome string, fromCache bool)

// Client resolves coordinates to place names against an OpenCage-style
// forward/reverse geocoding API. Lookups are rate limited, retried, and
// cached: history reloads hit the same coordinates over and over.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	exec       *resilience.Executor
	cache      *gocache.Cache
	observe    Observer
}

func New(baseURL, apiKey string, exec *resilience.Executor, cacheTTL time.Duration) *Client {
	if cacheTTL <= 0 {
		cacheTTL = 24 * time.Hour
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		exec:       exec,
		cache:      gocache.New(cacheTTL, cacheTTL/2),
		observe:    func(string, bool) {},
	}
}

func (c *Client) SetObserver(fn Observer) {
	if fn != nil {
		c.observe = fn
	}
}

type geocodeResponse struct {
	Results []struct {
		Formatted string `json:"formatted"`
	} `json:"results"`
	Status struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"status"`
}

// ReverseGeocode returns the place name for the coordinates, or
// NotFoundFallback when the provider has no result. Transport and provider
// errors surface to the caller, which keeps the original location text.
func (c *Client) ReverseGeocode(ctx context.Context, lat, lon float64) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("geocode: API key not configured")
	}

	key := fmt.Sprintf("%.5f,%.5f", lat, lon)
	if cached, ok := c.cache.Get(key); ok {
		c.observe("resolved", true)
		return cached.(string), nil
	}

	var name string
	err := c.exec.Execute(ctx, "reverse_geocode", func(ctx context.Context) error {
		resolved, err := c.lookup(ctx, lat, lon)
		if err != nil {
			return err
		}
		name = resolved
		return nil
	}, classifyGeocodeError)
	if err != nil {
		c.observe("error", false)
		return "", err
	}

	c.cache.SetDefault(key, name)
	if name == NotFoundFallback {
		c.observe("not_found", false)
	} else {
		c.observe("resolved", false)
	}
	return name, nil
}

func (c *Client) lookup(ctx context.Context, lat, lon float64) (string, error) {
	query := url.Values{}
	query.Set("q", fmt.Sprintf("%f+%f", lat, lon))
	query.Set("key", c.apiKey)
	query.Set("limit", "1")
	query.Set("no_annotations", "1")

	endpoint := c.baseURL + "/geocode/v1/json?" + query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("build geocode request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("geocode request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read geocode response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", &HTTPStatusError{
			Operation:  "reverse_geocode",
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       string(body),
		}
	}

	var parsed geocodeResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("parse geocode response: %w", err)
	}
	if len(parsed.Results) == 0 || strings.TrimSpace(parsed.Results[0].Formatted) == "" {
		return NotFoundFallback, nil
	}
	return parsed.Results[0].Formatted, nil
}
