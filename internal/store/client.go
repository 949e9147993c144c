// Package store talks to the destination document-store controller (dbctrl),
// which owns the mirrored posts and categories and exposes a small control
// API over HTTP.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/failsafe-go/failsafe-go"

	"github.com/vuldin/socrev-cms/pkg/clients"
	"github.com/vuldin/socrev-cms/pkg/models"
)

// APIError reports a non-2xx response from dbctrl.
type APIError struct {
	StatusCode int
}

func (e *APIError) Error() string {
	return fmt.Sprintf("dbctrl returned status: %d", e.StatusCode)
}

// Client is a dbctrl control API client.
type Client struct {
	baseURL      string
	client       *http.Client
	httpExecutor failsafe.Executor[*http.Response]
	shouldRetry  func(resp *http.Response, err error) bool
}

// Option configures the client.
type Option func(*Client)

// NewClient creates a dbctrl client with retry and circuit-breaker defaults.
func NewClient(baseURL string, opts ...Option) *Client {
	defaultConfig := clients.DefaultHTTPExecutorConfig()
	defaultConfig.CircuitBreaker = clients.NewCircuitBreaker(clients.CircuitBreakerConfig{Name: "dbctrl"})
	c := &Client{
		baseURL:      baseURL,
		client:       &http.Client{Timeout: 30 * time.Second},
		httpExecutor: clients.NewHTTPExecutor(defaultConfig),
		shouldRetry:  defaultConfig.ShouldRetry,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.client = httpClient
		}
	}
}

// WithHTTPExecutorConfig overrides the retry/circuit-breaker configuration.
func WithHTTPExecutorConfig(cfg clients.HTTPExecutorConfig) Option {
	return func(c *Client) {
		c.httpExecutor = clients.NewHTTPExecutor(cfg)
		c.shouldRetry = cfg.ShouldRetry
	}
}

func (c *Client) doRequest(ctx context.Context, build func(ctx context.Context) (*http.Request, error)) (*http.Response, error) {
	if c.httpExecutor == nil {
		req, err := build(ctx)
		if err != nil {
			return nil, err
		}
		return c.client.Do(req)
	}

	return clients.ExecuteHTTP(ctx, c.httpExecutor, func() (*http.Response, error) {
		req, err := build(ctx)
		if err != nil {
			return nil, err
		}
		resp, err := c.client.Do(req)
		if c.shouldRetry != nil && c.shouldRetry(resp, err) {
			if resp != nil && resp.Body != nil {
				_ = resp.Body.Close()
			}
		}
		return resp, err
	})
}

// GetLatest returns the destination's newest post modification time and its
// category snapshot. An absent modified timestamp means the store is empty.
func (c *Client) GetLatest(ctx context.Context) (*models.Latest, error) {
	resp, err := c.doRequest(ctx, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/latest", nil)
	})
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return nil, &APIError{StatusCode: resp.StatusCode}
	}

	var latest models.Latest
	if err := json.NewDecoder(resp.Body).Decode(&latest); err != nil {
		return nil, fmt.Errorf("failed to parse latest response: %w", err)
	}
	return &latest, nil
}

// update is the envelope for dbctrl write operations.
type update struct {
	Type    string      `json:"type"`
	Element interface{} `json:"element"`
}

func (c *Client) post(ctx context.Context, path string, payload update) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s update: %w", payload.Type, err)
	}

	resp, err := c.doRequest(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 {
		return &APIError{StatusCode: resp.StatusCode}
	}
	return nil
}

// ReplaceCategories replaces the destination's full category set.
func (c *Client) ReplaceCategories(ctx context.Context, cats []models.Category) error {
	return c.post(ctx, "/updates", update{Type: "cats", Element: cats})
}

// UpsertPost creates or updates one post, keyed by its CMS id.
func (c *Client) UpsertPost(ctx context.Context, post *models.TransformedPost) error {
	return c.post(ctx, "/update", update{Type: "posts", Element: post})
}
