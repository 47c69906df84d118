// Package pricing implements the HTTP client for the car price prediction
// service. Every method performs exactly one round trip, is context-aware,
// respects the shared rate limiter, and translates a non-success response
// into one of the error types in errors.go. There are no retries and no
// caching: the caller decides whether to re-invoke.
package pricing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"

	"github.com/derickschaefer/carprice/internal/model"
)

const (
	defaultBaseURL = "http://localhost:8000"
	userAgent      = "carprice/1.0"
)

// Client is the prediction service HTTP client.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	debug      bool
}

// NewClient creates a Client for baseURL. A zero timeout disables the client
// timeout; a non-positive ratePerSec disables rate limiting.
func NewClient(baseURL string, timeout time.Duration, ratePerSec float64, debug bool) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	limit := rate.Inf
	burst := 1
	if ratePerSec > 0 {
		limit = rate.Limit(ratePerSec)
		if b := int(ratePerSec); b > 1 {
			burst = b
		}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		limiter: rate.NewLimiter(limit, burst),
		debug:   debug,
	}
}

// BaseURL returns the service root the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ─── Operations ───────────────────────────────────────────────────────────────

// CheckHealth fetches the service liveness payload.
func (c *Client) CheckHealth(ctx context.Context) (*model.Health, error) {
	var h model.Health
	status, body, err := c.do(ctx, http.MethodGet, "/health", nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	if !success(status) {
		return nil, fmt.Errorf("%w: HTTP %d", ErrServiceUnavailable, status)
	}
	// A 2xx with an unexpected body still proves liveness.
	_ = json.Unmarshal(body, &h)
	return &h, nil
}

// GetOptions fetches the full option catalog.
func (c *Client) GetOptions(ctx context.Context) (*model.OptionCatalog, error) {
	var catalog model.OptionCatalog
	if err := c.load(ctx, ResourceOptions, "/api/v1/options", &catalog); err != nil {
		return nil, err
	}
	return &catalog, nil
}

// GetModelsByBrand returns the models offered for brand.
func (c *Client) GetModelsByBrand(ctx context.Context, brand string) ([]string, error) {
	var raw struct {
		Models []string `json:"modeller"`
	}
	if err := c.load(ctx, ResourceModels, "/api/v1/models/"+url.PathEscape(brand), &raw); err != nil {
		return nil, err
	}
	if raw.Models == nil {
		return []string{}, nil
	}
	return raw.Models, nil
}

// GetSeriesByModel returns the series offered for model.
func (c *Client) GetSeriesByModel(ctx context.Context, modelName string) ([]string, error) {
	var raw struct {
		Series []string `json:"seriler"`
	}
	if err := c.load(ctx, ResourceSeries, "/api/v1/series/"+url.PathEscape(modelName), &raw); err != nil {
		return nil, err
	}
	if raw.Series == nil {
		return []string{}, nil
	}
	return raw.Series, nil
}

// PredictPrice posts submission and returns the predicted price.
// On a non-success status the server's "detail" message becomes the error
// message; an unparseable body falls back to a generic PredictionError.
func (c *Client) PredictPrice(ctx context.Context, submission model.VehicleSubmission) (*model.PredictionResult, error) {
	payload, err := json.Marshal(submission)
	if err != nil {
		return nil, fmt.Errorf("encoding submission: %w", err)
	}

	status, body, err := c.do(ctx, http.MethodPost, "/api/v1/predict", payload)
	if err != nil {
		return nil, &PredictionError{Err: err}
	}
	if !success(status) {
		var apiErr struct {
			Detail string `json:"detail"`
		}
		_ = json.Unmarshal(body, &apiErr)
		return nil, &PredictionError{Status: status, Message: strings.TrimSpace(apiErr.Detail)}
	}

	var result model.PredictionResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, &PredictionError{Status: status, Err: fmt.Errorf("decoding response: %w", err)}
	}
	return &result, nil
}

// ─── Low-level HTTP ───────────────────────────────────────────────────────────

// load performs a GET for a reference-data resource and decodes the JSON
// body into out. Every failure is reported as a *LoadError for resource.
func (c *Client) load(ctx context.Context, resource, path string, out interface{}) error {
	status, body, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return &LoadError{Resource: resource, Err: err}
	}
	if !success(status) {
		return &LoadError{Resource: resource, Status: status}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &LoadError{Resource: resource, Status: status, Err: fmt.Errorf("decoding response: %w", err)}
	}
	return nil
}

// do sends one request and returns the status and full body. Transport
// failures, limiter cancellation and body read errors are returned as err;
// HTTP status handling is left to the caller.
func (c *Client) do(ctx context.Context, method, path string, payload []byte) (int, []byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, nil, err
	}

	reqURL := c.baseURL + path
	if c.debug {
		slog.Debug("pricing request", "method", method, "url", reqURL)
	}

	var rd io.Reader
	if payload != nil {
		rd = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, reqURL, rd)
	if err != nil {
		return 0, nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("http: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("reading body: %w", err)
	}

	if c.debug {
		slog.Debug("pricing response",
			"status", resp.StatusCode,
			"bytes", len(body),
			"duration", time.Since(start),
		)
	}
	return resp.StatusCode, body, nil
}

func success(status int) bool {
	return status >= 200 && status < 300
}
