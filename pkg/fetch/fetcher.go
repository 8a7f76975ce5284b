// Package fetch provides the network-fetch capability used by the gateway.
// A fetch either produces a response (of any status) or fails with a
// *FetchError. Failures are reported once; nothing is retried.
package fetch

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for network fetches.
var (
	fetchRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_fetch_requests_total",
		Help: "Total network fetches by status",
	}, []string{"status"})

	fetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gateway_fetch_duration_seconds",
		Help:    "Network fetch duration in seconds by method",
		Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10},
	}, []string{"method"})

	fetchErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_fetch_errors_total",
		Help: "Total failed network fetches by class",
	}, []string{"class"})
)

// Fetcher performs a network request.
type Fetcher interface {
	Do(req *http.Request) (*http.Response, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(req *http.Request) (*http.Response, error)

// Do calls f(req).
func (f FetcherFunc) Do(req *http.Request) (*http.Response, error) {
	return f(req)
}

// Config holds the fetcher configuration.
type Config struct {
	// UserAgent is set on requests that carry none
	UserAgent string

	// Timeout bounds a whole fetch. Zero keeps the transport default (no limit).
	Timeout time.Duration

	// Transport overrides http.DefaultTransport
	Transport http.RoundTripper
}

// DefaultConfig returns the default configuration.
func DefaultConfig(userAgent string) Config {
	return Config{
		UserAgent: userAgent,
	}
}

// HTTPFetcher fetches over an http.Client.
type HTTPFetcher struct {
	httpClient *http.Client
	config     Config
	logger     zerolog.Logger
}

// New creates a new HTTP fetcher.
func New(cfg Config) (*HTTPFetcher, error) {
	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}
	if cfg.Timeout < 0 {
		return nil, fmt.Errorf("timeout must be >= 0 (got %s)", cfg.Timeout)
	}

	return &HTTPFetcher{
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: cfg.Transport,
		},
		config: cfg,
		logger: log.With().Str("component", "fetch").Logger(),
	}, nil
}

// Do performs the request once.
func (f *HTTPFetcher) Do(req *http.Request) (*http.Response, error) {
	if req == nil {
		return nil, ErrNilRequest
	}

	// Inbound server requests cannot be sent as client requests as is
	if req.RequestURI != "" {
		req = req.Clone(req.Context())
		req.RequestURI = ""
	}
	if req.Header.Get("User-Agent") == "" {
		if req.Header == nil {
			req.Header = http.Header{}
		}
		req.Header.Set("User-Agent", f.config.UserAgent)
	}

	startTime := time.Now()
	defer func() {
		fetchDuration.WithLabelValues(req.Method).Observe(time.Since(startTime).Seconds())
	}()

	url := req.URL.String()
	f.logger.Debug().
		Str("url", url).
		Str("method", req.Method).
		Msg("Fetching from network")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		class := classifyError(err)
		fetchErrorsTotal.WithLabelValues(string(class)).Inc()
		fetchRequestsTotal.WithLabelValues("error").Inc()
		f.logger.Warn().
			Err(err).
			Str("url", url).
			Str("error_class", string(class)).
			Msg("Network fetch failed")
		return nil, &FetchError{URL: url, ErrorClass: class, Err: err}
	}

	fetchRequestsTotal.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()
	if resp.StatusCode >= 400 {
		f.logger.Debug().
			Str("url", url).
			Int("status", resp.StatusCode).
			Msg("Network fetch returned error status")
	}

	return resp, nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (f *HTTPFetcher) SetHTTPClient(client *http.Client) {
	f.httpClient = client
}
