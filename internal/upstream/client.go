// Package upstream is the HTTP transport shared by the metadata providers.
// It rate limits and circuit-breaks requests per provider and records
// request metrics.
package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"
)

var (
	requests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "albumlog_upstream_requests_total",
		Help: "Requests to metadata providers by provider and status code.",
	}, []string{"provider", "code"})

	latency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "albumlog_upstream_request_duration_seconds",
		Help:    "Latency of requests to metadata providers.",
		Buckets: prometheus.DefBuckets,
	}, []string{"provider"})
)

// StatusError is returned for a response with a non-2xx status code.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned %d", e.URL, e.Code)
}

// callerError wraps a failure caused by the caller's own context ending.
// The circuit breaker ignores it.
type callerError struct {
	err error
}

func (e *callerError) Error() string { return e.err.Error() }

func (e *callerError) Unwrap() error { return e.err }

func isCallerError(err error) bool {
	var ce *callerError
	return errors.As(err, &ce)
}

// Config configures a Client.
type Config struct {
	// Name labels the metrics and the circuit breaker.
	Name      string
	UserAgent string
	Timeout   time.Duration

	// Rate and Burst bound the request rate. A zero Rate disables limiting.
	Rate  rate.Limit
	Burst int

	// FailureThreshold is the number of consecutive transport failures
	// that open the circuit. Defaults to 5.
	FailureThreshold uint32
	// OpenTimeout is how long the circuit stays open. Defaults to 30s.
	OpenTimeout time.Duration
}

type Client struct {
	name      string
	userAgent string
	http      *http.Client
	limiter   *rate.Limiter
	breaker   *gobreaker.CircuitBreaker[*http.Response]
}

func NewClient(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.OpenTimeout == 0 {
		cfg.OpenTimeout = 30 * time.Second
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.Rate > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(cfg.Rate, burst)
	}

	threshold := cfg.FailureThreshold
	breaker := gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:    cfg.Name,
		Timeout: cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsExcluded: isCallerError,
	})

	return &Client{
		name:      cfg.Name,
		userAgent: cfg.UserAgent,
		http:      &http.Client{Timeout: cfg.Timeout},
		limiter:   limiter,
		breaker:   breaker,
	}
}

// GetJSON fetches url and decodes the JSON body into v. A non-2xx response
// yields a *StatusError; anything else is a transport or decode failure.
func (c *Client) GetJSON(ctx context.Context, url string, header http.Header, v any) error {
	resp, err := c.get(ctx, url, header)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return &StatusError{Code: resp.StatusCode, URL: url}
	}

	err = json.NewDecoder(resp.Body).Decode(v)
	if err != nil {
		return fmt.Errorf("decoding %s: %w", url, err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, url string, header http.Header) (*http.Response, error) {
	err := c.limiter.Wait(ctx)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	start := time.Now()
	resp, err := c.breaker.Execute(func() (*http.Response, error) {
		resp, err := c.http.Do(req)
		if err != nil && ctx.Err() != nil {
			return nil, &callerError{err: err}
		}
		return resp, err
	})
	latency.WithLabelValues(c.name).Observe(time.Since(start).Seconds())
	if err != nil {
		requests.WithLabelValues(c.name, "error").Inc()
		return nil, err
	}

	requests.WithLabelValues(c.name, strconv.Itoa(resp.StatusCode)).Inc()
	return resp, nil
}
