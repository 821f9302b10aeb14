package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/urbanroute/urbanroute/internal/resilience"
)

const (
	// DefaultBaseURL is where a locally supervised engine listens.
	DefaultBaseURL = "http://127.0.0.1:8989"

	// DefaultRouteTimeout bounds street-profile queries.
	DefaultRouteTimeout = 10 * time.Second

	// DefaultTransitRouteTimeout bounds pt queries, which search a
	// schedule graph and run longer.
	DefaultTransitRouteTimeout = 30 * time.Second

	// maxErrorBodyBytes caps how much of an error response is kept.
	maxErrorBodyBytes = 2048
)

// HTTPDoer is an interface for executing HTTP requests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig holds configuration for the routing engine client.
type ClientConfig struct {
	// BaseURL is the engine's HTTP address (optional).
	BaseURL string

	// HTTPClient is the HTTP client to use (optional). If nil, a
	// circuit-breaker client with defaults is used.
	HTTPClient HTTPDoer

	// RouteTimeout bounds foot and car queries (optional).
	RouteTimeout time.Duration

	// TransitRouteTimeout bounds pt queries (optional).
	TransitRouteTimeout time.Duration

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client queries the routing engine over HTTP. Calls are synchronous with a
// bounded per-profile timeout; there is no caller-side retry, and a tripped
// breaker surfaces as a query error immediately.
type Client struct {
	baseURL        string
	httpClient     HTTPDoer
	routeTimeout   time.Duration
	transitTimeout time.Duration
	logger         zerolog.Logger
}

// NewClient creates a routing engine client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	routeTimeout := cfg.RouteTimeout
	if routeTimeout == 0 {
		routeTimeout = DefaultRouteTimeout
	}
	transitTimeout := cfg.TransitRouteTimeout
	if transitTimeout == 0 {
		transitTimeout = DefaultTransitRouteTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		clientCfg := resilience.DefaultClientConfig("routing-engine")
		clientCfg.Timeout = transitTimeout
		httpClient = resilience.NewClient(clientCfg)
	}

	return &Client{
		baseURL:        baseURL,
		httpClient:     httpClient,
		routeTimeout:   routeTimeout,
		transitTimeout: transitTimeout,
		logger:         cfg.Logger,
	}
}

// Execute runs one route query. Non-2xx responses and transport failures
// return a *QueryError; an engine answer with zero paths is returned as-is
// with a nil error.
func (c *Client) Execute(ctx context.Context, query RouteQuery) (*RouteResponse, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	timeout := c.routeTimeout
	if query.Profile == ProfileTransit {
		timeout = c.transitTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	reqURL := c.baseURL + "/route?" + query.Encode().Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	c.logger.Debug().
		Str("profile", string(query.Profile)).
		Int("points", len(query.Points)).
		Msg("querying routing engine")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &QueryError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return nil, &QueryError{Status: resp.StatusCode, Body: string(body)}
	}

	var result RouteResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding engine response: %w", err)
	}

	c.logger.Debug().
		Int("path_count", len(result.Paths)).
		Msg("routing engine answered")

	return &result, nil
}

// Health probes the engine's health endpoint once. A 2xx answer means the
// engine is serving.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("creating health request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("engine health probe: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body) //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("engine health probe: status %d", resp.StatusCode)
	}
	return nil
}
