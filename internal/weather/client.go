// Package weather fetches monthly historical weather from the Open-Meteo
// archive API.
package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/AyaRayanx/Electricity-Bill-Calculating-System/internal/apperr"
	"github.com/AyaRayanx/Electricity-Bill-Calculating-System/internal/config"
	"github.com/AyaRayanx/Electricity-Bill-Calculating-System/internal/metrics"
)

// Coordinates locate a city for the archive API.
type Coordinates struct {
	Latitude  float64
	Longitude float64
}

// Sample is the weather of one month at one location: the daily mean
// temperature and precipitation sum of the first day of the window.
type Sample struct {
	TemperatureC    float64 `json:"temperature_c"`
	PrecipitationMM float64 `json:"precipitation_mm"`
}

// Lookuper resolves a named location's weather for a month. Failures are
// returned as *LookupError.
type Lookuper interface {
	Lookup(ctx context.Context, location string, year int, month time.Month) (Sample, error)
}

// Client talks to the Open-Meteo archive API.
type Client struct {
	baseURL       string
	http          *http.Client
	locations     map[string]Coordinates
	maxRetries    int
	retryInterval time.Duration
	log           *zap.Logger
}

type Option func(*Client)

// WithHTTPClient replaces the default client built from the configured timeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithRetryInterval sets the initial backoff between retries.
func WithRetryInterval(d time.Duration) Option {
	return func(c *Client) { c.retryInterval = d }
}

// NewHTTPClient creates an HTTP client with the given timeout.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: &http.Transport{Proxy: http.ProxyFromEnvironment},
	}
}

func NewClient(cfg config.WeatherConfig, log *zap.Logger, opts ...Option) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	locs := make(map[string]Coordinates, len(cfg.Locations))
	for _, l := range cfg.Locations {
		locs[l.Name] = Coordinates{Latitude: l.Latitude, Longitude: l.Longitude}
	}
	c := &Client{
		baseURL:       cfg.BaseURL,
		http:          NewHTTPClient(cfg.Timeout),
		locations:     locs,
		maxRetries:    cfg.MaxRetries,
		retryInterval: 500 * time.Millisecond,
		log:           log.Named("weather"),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Coordinates returns the coordinates of a known location.
func (c *Client) Coordinates(location string) (Coordinates, bool) {
	coords, ok := c.locations[location]
	return coords, ok
}

// Lookup resolves location to coordinates and fetches its weather. An
// unknown location is a LookupMiss; no request is made.
func (c *Client) Lookup(ctx context.Context, location string, year int, month time.Month) (Sample, error) {
	coords, ok := c.locations[location]
	if !ok {
		metrics.WeatherLookupsTotal.WithLabelValues(LookupMiss.String()).Inc()
		c.log.Warn("no coordinates found for location", zap.String("location", location))
		return Sample{}, &LookupError{Kind: LookupMiss, Location: location, Year: year, Month: int(month)}
	}
	s, err := c.Historical(ctx, coords, year, month)
	var lerr *LookupError
	if errors.As(err, &lerr) {
		lerr.Location = location
	}
	return s, err
}

type archiveResponse struct {
	Daily *struct {
		Time             []string   `json:"time"`
		TemperatureMean  []*float64 `json:"temperature_2m_mean"`
		PrecipitationSum []*float64 `json:"precipitation_sum"`
	} `json:"daily"`
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("weather API error (status %d): %s", e.code, e.body)
}

// Historical fetches the daily series for YYYY-MM-01..YYYY-MM-28 and returns
// the first day's mean temperature and precipitation sum. Transport errors,
// 5xx and 429 responses are retried with exponential backoff.
func (c *Client) Historical(ctx context.Context, coords Coordinates, year int, month time.Month) (Sample, error) {
	if month < time.January || month > time.December || year <= 0 {
		return Sample{}, fmt.Errorf("weather period %d-%d: %w", year, month, apperr.ErrInvalidArgument)
	}
	started := time.Now()
	s, err := c.historical(ctx, coords, year, month)
	metrics.WeatherLookupDurationSeconds.Observe(time.Since(started).Seconds())

	outcome := "ok"
	var lerr *LookupError
	if errors.As(err, &lerr) {
		outcome = lerr.Kind.String()
		c.log.Warn("weather API error",
			zap.Float64("latitude", coords.Latitude),
			zap.Float64("longitude", coords.Longitude),
			zap.Int("year", year),
			zap.Int("month", int(month)),
			zap.Stringer("kind", lerr.Kind),
			zap.Error(lerr.Err),
		)
	}
	metrics.WeatherLookupsTotal.WithLabelValues(outcome).Inc()
	return s, err
}

func (c *Client) historical(ctx context.Context, coords Coordinates, year int, month time.Month) (Sample, error) {
	fail := func(kind Kind, status int, err error) (Sample, error) {
		return Sample{}, &LookupError{Kind: kind, Year: year, Month: int(month), StatusCode: status, Err: err}
	}

	q := url.Values{}
	q.Set("latitude", fmt.Sprintf("%g", coords.Latitude))
	q.Set("longitude", fmt.Sprintf("%g", coords.Longitude))
	q.Set("start_date", fmt.Sprintf("%04d-%02d-01", year, int(month)))
	q.Set("end_date", fmt.Sprintf("%04d-%02d-28", year, int(month)))
	q.Set("daily", "temperature_2m_mean,precipitation_sum")
	q.Set("timezone", "auto")
	endpoint := c.baseURL + "?" + q.Encode()

	var body []byte
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("failed to get weather: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			serr := &statusError{code: resp.StatusCode, body: string(snippet)}
			if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
				return serr
			}
			return backoff.Permanent(serr)
		}

		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read response: %w", err)
		}
		body = b
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.retryInterval
	bo.MaxElapsedTime = 0
	retries := c.maxRetries
	if retries < 0 {
		retries = 0
	}
	if err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(bo, uint64(retries)), ctx)); err != nil {
		var serr *statusError
		if errors.As(err, &serr) {
			return fail(Status, serr.code, err)
		}
		return fail(Transport, 0, err)
	}

	var payload archiveResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return fail(Malformed, 0, fmt.Errorf("failed to unmarshal response: %w", err))
	}
	if payload.Daily == nil {
		return fail(MissingField, 0, errors.New("response has no daily block"))
	}
	temp, ok := first(payload.Daily.TemperatureMean)
	if !ok {
		return fail(MissingField, 0, errors.New("daily.temperature_2m_mean[0] is missing"))
	}
	precip, ok := first(payload.Daily.PrecipitationSum)
	if !ok {
		return fail(MissingField, 0, errors.New("daily.precipitation_sum[0] is missing"))
	}
	return Sample{TemperatureC: temp, PrecipitationMM: precip}, nil
}

func first(values []*float64) (float64, bool) {
	if len(values) == 0 || values[0] == nil {
		return 0, false
	}
	return *values[0], true
}
