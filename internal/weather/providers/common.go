package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/weather-forecast/internal/weather"
)

// BackoffConfig controls exponential backoff behaviour.
type BackoffConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// HTTPClientConfig bundles HTTP client and resilience settings.
type HTTPClientConfig struct {
	Client  *http.Client
	Backoff BackoffConfig
}

// DefaultBackoff is used by all Open-Meteo adapters.
var DefaultBackoff = BackoffConfig{
	MaxRetries:      3,
	InitialInterval: 500 * time.Millisecond,
	MaxInterval:     5 * time.Second,
}

var (
	errRateLimited   = errors.New("rate limited")
	errServerError   = errors.New("server error")
	errNoHTTPClient  = errors.New("http client not configured")
	errInvalidConfig = errors.New("invalid backoff configuration")
)

// maxErrorBody caps how much of an error response we read for its reason.
const maxErrorBody = 64 << 10

func newCircuitBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Printf("INFO: circuit breaker %s: %s -> %s", name, from, to)
		},
	})
}

// upstreamError carries a retryable status out of the breaker.
type upstreamError struct {
	status int
	reason string
	kind   error
}

func (e *upstreamError) Error() string { return fmt.Sprintf("%v: %d", e.kind, e.status) }
func (e *upstreamError) Unwrap() error { return e.kind }

// doRequestWithResilience executes the HTTP request with retries, exponential backoff,
// and a circuit breaker. Only transport errors, 429 and 5xx are retried and counted
// against the breaker; other non-2xx responses become a *weather.ProviderError.
func doRequestWithResilience(
	ctx context.Context,
	provider string,
	cfg HTTPClientConfig,
	cb *gobreaker.CircuitBreaker,
	buildRequest func() (*http.Request, error),
) (*http.Response, error) {
	if cfg.Client == nil {
		return nil, &weather.ProviderError{Provider: provider, Err: errNoHTTPClient}
	}
	if cfg.Backoff.MaxRetries < 0 || cfg.Backoff.InitialInterval <= 0 {
		return nil, &weather.ProviderError{Provider: provider, Err: errInvalidConfig}
	}

	var attempt int

	for {
		if ctx.Err() != nil {
			return nil, &weather.ProviderError{Provider: provider, Err: ctx.Err()}
		}

		req, err := buildRequest()
		if err != nil {
			return nil, &weather.ProviderError{Provider: provider, Err: err}
		}

		// Ensure the request obeys context cancellation.
		req = req.WithContext(ctx)

		result, err := cb.Execute(func() (interface{}, error) {
			resp, execErr := cfg.Client.Do(req)
			if execErr != nil {
				return nil, execErr
			}

			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
				kind := errServerError
				if resp.StatusCode == http.StatusTooManyRequests {
					kind = errRateLimited
				}
				reason := readReason(resp)
				return nil, &upstreamError{status: resp.StatusCode, reason: reason, kind: kind}
			}

			// Client errors are the caller's fault, not the upstream's health.
			return resp, nil
		})

		if err == nil {
			resp, ok := result.(*http.Response)
			if !ok {
				return nil, &weather.ProviderError{Provider: provider, Err: fmt.Errorf("unexpected result type from circuit breaker")}
			}
			if resp.StatusCode < 200 || resp.StatusCode >= 300 {
				reason := readReason(resp)
				return nil, &weather.ProviderError{
					Provider:   provider,
					StatusCode: resp.StatusCode,
					Reason:     reason,
					Err:        fmt.Errorf("unexpected status code %d", resp.StatusCode),
				}
			}
			return resp, nil
		}

		// If circuit is open, propagate immediately.
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, &weather.ProviderError{Provider: provider, Err: fmt.Errorf("%w: %v", weather.ErrCircuitOpen, err)}
		}

		if attempt >= cfg.Backoff.MaxRetries {
			return nil, toProviderError(provider, err)
		}

		// Backoff with exponential delay.
		delay := cfg.Backoff.InitialInterval * time.Duration(math.Pow(2, float64(attempt)))
		if delay > cfg.Backoff.MaxInterval && cfg.Backoff.MaxInterval > 0 {
			delay = cfg.Backoff.MaxInterval
		}
		log.Printf("INFO: %s attempt %d failed: %v; retrying in %s", provider, attempt+1, err, delay)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, &weather.ProviderError{Provider: provider, Err: ctx.Err()}
		case <-timer.C:
			// continue to next attempt
		}

		attempt++
	}
}

func toProviderError(provider string, err error) *weather.ProviderError {
	var ue *upstreamError
	if errors.As(err, &ue) {
		return &weather.ProviderError{Provider: provider, StatusCode: ue.status, Reason: ue.reason, Err: ue}
	}
	return &weather.ProviderError{Provider: provider, Err: err}
}

// readReason drains an error response and extracts Open-Meteo's "reason" field,
// falling back to the status text.
func readReason(resp *http.Response) string {
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err == nil {
		var payload struct {
			Reason string `json:"reason"`
		}
		if json.Unmarshal(body, &payload) == nil && payload.Reason != "" {
			return payload.Reason
		}
	}
	return http.StatusText(resp.StatusCode)
}
