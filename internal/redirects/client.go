// Package redirects queries the redirect lookup service, which maps legacy
// article ids and CMS post ids to slugs and original authorship.
package redirects

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/failsafe-go/failsafe-go"

	"github.com/vuldin/socrev-cms/pkg/clients"
	"github.com/vuldin/socrev-cms/pkg/models"
)

// Client is a redirect lookup client.
type Client struct {
	baseURL      string
	client       *http.Client
	httpExecutor failsafe.Executor[*http.Response]
}

// NewClient creates a redirect lookup client with retry and circuit-breaker
// defaults.
func NewClient(baseURL string) *Client {
	cfg := clients.DefaultHTTPExecutorConfig()
	cfg.CircuitBreaker = clients.NewCircuitBreaker(clients.CircuitBreakerConfig{Name: "redirects"})
	return &Client{
		baseURL:      baseURL,
		client:       &http.Client{Timeout: 10 * time.Second},
		httpExecutor: clients.NewHTTPExecutor(cfg),
	}
}

type lookupRequest struct {
	Old int `json:"old,omitempty"`
	New int `json:"new,omitempty"`
}

// ByOldID looks up a redirect record by legacy-site article id.
func (c *Client) ByOldID(ctx context.Context, id int) (*models.RedirectRecord, error) {
	return c.lookup(ctx, lookupRequest{Old: id})
}

// ByNewID looks up a redirect record by CMS post id.
func (c *Client) ByNewID(ctx context.Context, id int) (*models.RedirectRecord, error) {
	return c.lookup(ctx, lookupRequest{New: id})
}

// lookup performs the id query. A null response body means the id is
// unknown; that is reported as (nil, nil) so callers can fall back locally.
func (c *Client) lookup(ctx context.Context, reqBody lookupRequest) (*models.RedirectRecord, error) {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal lookup request: %w", err)
	}

	resp, err := clients.ExecuteHTTP(ctx, c.httpExecutor, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/fromid", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return c.client.Do(req)
	})
	if err != nil {
		return nil, fmt.Errorf("redirect lookup failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("redirect lookup returned status %d", resp.StatusCode)
	}

	var record *models.RedirectRecord
	if err := json.NewDecoder(resp.Body).Decode(&record); err != nil {
		return nil, fmt.Errorf("failed to parse redirect response: %w", err)
	}
	return record, nil
}
