package providers

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelvins/geocoder"
	"github.com/sony/gobreaker"

	"github.com/i474232898/weather-forecast/internal/common"
	"github.com/i474232898/weather-forecast/internal/weather"
)

// googleMaxInFlight caps concurrent geocoder calls. The library's HTTP client has
// no timeout, so a call abandoned on ctx expiry keeps its slot until it returns.
const googleMaxInFlight = 8

var errUnexpectedResponse = errors.New("unexpected geocoding response")

// GoogleGeocoder implements weather.LocationResolver through the Google
// Geocoding API. The geocoder package keeps its API key in a package variable,
// so only one key can be active per process.
type GoogleGeocoder struct {
	name     string
	timeout  time.Duration
	geocode  func(geocoder.Address) (geocoder.Location, error)
	circuit  *gobreaker.CircuitBreaker
	inflight chan struct{}
}

// NewGoogleGeocoder configures the geocoder package with apiKey. timeout bounds
// each lookup; zero leaves it to the caller's context.
func NewGoogleGeocoder(apiKey string, timeout time.Duration) (*GoogleGeocoder, error) {
	if apiKey == "" {
		return nil, errors.New("google geocoder api key is not configured")
	}
	geocoder.ApiKey = apiKey
	return newGoogleGeocoder(geocoder.Geocoding, timeout), nil
}

func newGoogleGeocoder(geocode func(geocoder.Address) (geocoder.Location, error), timeout time.Duration) *GoogleGeocoder {
	return &GoogleGeocoder{
		name:     "google-geocoding",
		timeout:  timeout,
		geocode:  geocode,
		circuit:  newCircuitBreaker("google-geocoding"),
		inflight: make(chan struct{}, googleMaxInFlight),
	}
}

func (p *GoogleGeocoder) Name() string {
	return p.name
}

type googleLookup struct {
	loc      geocoder.Location
	notFound bool
}

// Resolve geocodes name as a country.
func (p *GoogleGeocoder) Resolve(ctx context.Context, name string) (weather.Coordinates, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	// The library only swaps spaces for '+', so reserved characters must be escaped here.
	address := geocoder.Address{Country: url.QueryEscape(strings.TrimSpace(name))}

	result, err := p.circuit.Execute(func() (interface{}, error) {
		return p.lookup(ctx, address)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return weather.Coordinates{}, &weather.ProviderError{Provider: p.name, Err: fmt.Errorf("%w: %v", weather.ErrCircuitOpen, err)}
		}
		var perr *weather.ProviderError
		if errors.As(err, &perr) {
			return weather.Coordinates{}, perr
		}
		return weather.Coordinates{}, &weather.ProviderError{Provider: p.name, Err: err}
	}

	found, ok := result.(googleLookup)
	if !ok {
		return weather.Coordinates{}, &weather.ProviderError{Provider: p.name, Err: fmt.Errorf("unexpected result type from circuit breaker")}
	}
	if found.notFound {
		return weather.Coordinates{}, fmt.Errorf("%w: %q", weather.ErrLocationNotFound, name)
	}
	return weather.Coordinates{Latitude: found.loc.Latitude, Longitude: found.loc.Longitude}, nil
}

// lookup runs the blocking library call in its own goroutine so ctx can bound
// the wait. A miss is a successful lookup and does not count against the breaker.
func (p *GoogleGeocoder) lookup(ctx context.Context, address geocoder.Address) (googleLookup, error) {
	select {
	case p.inflight <- struct{}{}:
	case <-ctx.Done():
		return googleLookup{}, &weather.ProviderError{Provider: p.name, Err: ctx.Err()}
	}

	type result struct {
		loc geocoder.Location
		err error
	}
	done := make(chan result, 1)
	go func() {
		defer func() { <-p.inflight }()
		// Geocoding indexes results[0] for statuses it does not recognise
		// (e.g. OVER_DAILY_LIMIT with an empty result list).
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("%w: %v", errUnexpectedResponse, r)}
			}
		}()
		loc, err := p.geocode(address)
		done <- result{loc: loc, err: err}
	}()

	select {
	case <-ctx.Done():
		return googleLookup{}, &weather.ProviderError{Provider: p.name, Err: ctx.Err()}
	case r := <-done:
		if r.err == nil {
			return googleLookup{loc: r.loc}, nil
		}
		if isGoogleNoResults(r.err) {
			return googleLookup{notFound: true}, nil
		}
		reason := r.err.Error()
		if reason == "" {
			reason = "request rejected"
		}
		return googleLookup{}, &weather.ProviderError{Provider: p.name, Reason: reason, Err: r.err}
	}
}

// isGoogleNoResults matches the library's ZERO_RESULTS error, "No results found.".
func isGoogleNoResults(err error) bool {
	return common.HasAny(strings.ToLower(err.Error()), "no results found", "zero_results")
}
