package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kjstillabower/nimbus/internal/models"
	"github.com/kjstillabower/nimbus/internal/observability"
)

// DefaultBaseURL is the WeatherAPI.com v1 root.
const DefaultBaseURL = "https://api.weatherapi.com/v1"

type WeatherClient interface {
	GetCurrent(ctx context.Context, location string) (models.CurrentResponse, error)
	GetForecast(ctx context.Context, location string, days int) (models.ForecastResponse, error)
	ValidateAPIKey(ctx context.Context) error
}

var (
	ErrInvalidAPIKey    = errors.New("invalid API key")
	ErrLocationNotFound = errors.New("location not found")
	ErrUpstreamFailure  = errors.New("upstream failure")
	ErrRateLimited      = errors.New("rate limited")
)

// Endpoint names an upstream resource. Used in error messages and metric labels.
type Endpoint string

const (
	EndpointCurrent  Endpoint = "current"
	EndpointForecast Endpoint = "forecast"
)

func (e Endpoint) path() string {
	return string(e) + ".json"
}

func (e Endpoint) label() string {
	if e == EndpointForecast {
		return "Forecast"
	}
	return "Weather"
}

// StatusError is a non-2xx upstream response. Its message is shown to users verbatim.
type StatusError struct {
	Endpoint   Endpoint
	StatusCode int
	StatusText string
}

func (e *StatusError) Error() string {
	if e.StatusText == "" {
		return fmt.Sprintf("%s API error: %d", e.Endpoint.label(), e.StatusCode)
	}
	return fmt.Sprintf("%s API error: %d %s", e.Endpoint.label(), e.StatusCode, e.StatusText)
}

// Unwrap maps the status code onto the package sentinels so callers can use errors.Is.
func (e *StatusError) Unwrap() error {
	switch {
	case e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden:
		return ErrInvalidAPIKey
	case e.StatusCode == http.StatusBadRequest || e.StatusCode == http.StatusNotFound:
		return ErrLocationNotFound
	case e.StatusCode == http.StatusTooManyRequests:
		return ErrRateLimited
	}
	return ErrUpstreamFailure
}

// WeatherAPIClient talks to WeatherAPI.com. Requests are issued once; there is no retry.
type WeatherAPIClient struct {
	apiKey  string
	baseURL string
	timeout time.Duration
	client  *http.Client
}

func NewWeatherAPIClient(apiKey, baseURL string, timeout time.Duration) (*WeatherAPIClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: API key is required", ErrInvalidAPIKey)
	}
	if len(apiKey) < 10 {
		return nil, fmt.Errorf("%w: API key appears invalid (too short)", ErrInvalidAPIKey)
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	return &WeatherAPIClient{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		client: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// GetCurrent fetches current conditions for a free-text query. Air quality is excluded.
func (c *WeatherAPIClient) GetCurrent(ctx context.Context, location string) (models.CurrentResponse, error) {
	params := url.Values{}
	params.Set("q", location)
	params.Set("aqi", "no")

	var resp models.CurrentResponse
	if err := c.call(ctx, EndpointCurrent, params, &resp); err != nil {
		return models.CurrentResponse{}, err
	}
	return resp, nil
}

// GetForecast fetches a days-long forecast with air quality and alerts excluded.
// The upstream plan may return fewer days than requested; that is not an error.
func (c *WeatherAPIClient) GetForecast(ctx context.Context, location string, days int) (models.ForecastResponse, error) {
	params := url.Values{}
	params.Set("q", location)
	params.Set("days", strconv.Itoa(days))
	params.Set("aqi", "no")
	params.Set("alerts", "no")

	var resp models.ForecastResponse
	if err := c.call(ctx, EndpointForecast, params, &resp); err != nil {
		return models.ForecastResponse{}, err
	}
	return resp, nil
}

func (c *WeatherAPIClient) call(ctx context.Context, endpoint Endpoint, params url.Values, out interface{}) error {
	start := time.Now()
	ep := string(endpoint)

	req, err := c.buildRequest(ctx, endpoint, params)
	if err != nil {
		observability.WeatherAPICallsTotal.WithLabelValues(ep, "error").Inc()
		return fmt.Errorf("build request: %w", err)
	}

	if corrID := observability.CorrelationID(ctx); corrID != "" {
		req.Header.Set("X-Correlation-ID", corrID)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		observability.WeatherAPICallsTotal.WithLabelValues(ep, "error").Inc()
		observability.WeatherAPIDuration.WithLabelValues(ep, "error").Observe(time.Since(start).Seconds())
		return transportError(err)
	}
	defer resp.Body.Close()

	status := statusLabel(resp.StatusCode)
	observability.WeatherAPICallsTotal.WithLabelValues(ep, status).Inc()
	observability.WeatherAPIDuration.WithLabelValues(ep, status).Observe(time.Since(start).Seconds())

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return &StatusError{Endpoint: endpoint, StatusCode: resp.StatusCode, StatusText: reasonPhrase(resp)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s response body: %w", endpoint, err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parse %s response: %w", endpoint, err)
	}
	return nil
}

// reasonPhrase returns the upstream reason phrase, falling back to the standard text for the code.
func reasonPhrase(resp *http.Response) string {
	if r := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode))); r != "" {
		return r
	}
	return http.StatusText(resp.StatusCode)
}

// transportError strips the request URL from client errors; the URL carries the API key.
func transportError(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		err = urlErr.Err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("request timeout: %w", err)
	}
	return fmt.Errorf("network error: %w", err)
}

func (c *WeatherAPIClient) buildRequest(ctx context.Context, endpoint Endpoint, params url.Values) (*http.Request, error) {
	u, err := url.Parse(c.baseURL + "/" + endpoint.path())
	if err != nil {
		return nil, fmt.Errorf("invalid API URL: %w", err)
	}

	params.Set("key", c.apiKey)
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	return req, nil
}

func statusLabel(statusCode int) string {
	if statusCode >= 200 && statusCode < 300 {
		return "success"
	}
	if statusCode == 429 {
		return "rate_limited"
	}
	if statusCode >= 400 && statusCode < 500 {
		return "client_error"
	}
	if statusCode >= 500 {
		return "server_error"
	}
	return "error"
}

// ValidateAPIKey probes current conditions for a fixed city. Used by the health handler.
func (c *WeatherAPIClient) ValidateAPIKey(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	params := url.Values{}
	params.Set("q", "London")
	req, err := c.buildRequest(ctx, EndpointCurrent, params)
	if err != nil {
		return fmt.Errorf("build validation request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("validation request failed: %w", transportError(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return fmt.Errorf("%w: API key is invalid or disabled", ErrInvalidAPIKey)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("validation failed: HTTP %d", resp.StatusCode)
	}

	return nil
}
