// Package resilience wraps outbound HTTP calls to the routing engine in a
// circuit breaker so that a downed engine fails fast instead of tying up
// request handlers. Failed calls are never retried here: degradation is
// handled explicitly by the caller, not masked by silent retries.
package resilience

import (
	"errors"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"
)

// ErrCircuitOpen is returned when the circuit breaker rejects a call.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// ClientConfig holds configuration for the breaker-protected HTTP client.
type ClientConfig struct {
	// Name identifies the breaker for logging.
	Name string

	// Timeout is the per-request timeout. Default: 10 seconds.
	Timeout time.Duration

	// OpenTimeout is how long the breaker stays open before allowing a
	// probe request. Default: 30 seconds.
	OpenTimeout time.Duration

	// ReadyToTrip overrides the default trip condition
	// (5+ requests with a failure rate of at least 50%).
	ReadyToTrip func(counts gobreaker.Counts) bool
}

// Client is an HTTP client guarded by a circuit breaker. Transport errors
// and 5xx responses count as failures; 4xx responses do not, since they
// indicate a problem with the request rather than with the engine.
type Client struct {
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[*http.Response]
}

// DefaultClientConfig returns a ClientConfig with default settings.
func DefaultClientConfig(name string) ClientConfig {
	return ClientConfig{Name: name}
}

// NewClient creates a breaker-protected HTTP client.
func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.OpenTimeout == 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	readyToTrip := cfg.ReadyToTrip
	if readyToTrip == nil {
		readyToTrip = func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 5 && failureRatio >= 0.5
		}
	}

	breaker := gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: readyToTrip,
	})

	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		breaker:    breaker,
	}
}

// Do executes the request through the circuit breaker.
// Returns ErrCircuitOpen without touching the network when the breaker is open.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	resp, err := c.breaker.Execute(func() (*http.Response, error) { //nolint:bodyclose // caller closes
		r, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		if r.StatusCode >= 500 {
			// Counts as a breaker failure but the response is still
			// meaningful to the caller.
			return r, &ServerError{StatusCode: r.StatusCode}
		}
		return r, nil
	})

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, ErrCircuitOpen
		}
		var serverErr *ServerError
		if errors.As(err, &serverErr) && resp != nil {
			return resp, nil
		}
		return nil, err
	}

	return resp, nil
}

// State returns the current breaker state.
func (c *Client) State() gobreaker.State {
	return c.breaker.State()
}

// ServerError represents an HTTP 5xx response from the engine.
type ServerError struct {
	StatusCode int
}

func (e *ServerError) Error() string {
	return "server error: " + http.StatusText(e.StatusCode)
}
