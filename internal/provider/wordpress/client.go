package wordpress

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
)

const (
	restBase       = "/wp-json/wp/v2"
	defaultTimeout = 30 * time.Second
)

// ErrPageOutOfRange is returned when a requested page lies beyond the last
// page of the collection.
var ErrPageOutOfRange = errors.New("wordpress: page out of range")

// ErrNotFound is returned when a post, tag, or media item does not exist.
var ErrNotFound = errors.New("wordpress: not found")

// Client is a WordPress REST API client.
type Client struct {
	baseURL    string
	username   string
	password   string
	httpClient *http.Client
}

// NewClient creates a new WordPress API client for a site root URL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}
}

// SetTimeout sets the HTTP client timeout.
func (c *Client) SetTimeout(timeout time.Duration) {
	c.httpClient.Timeout = timeout
}

// get performs an authenticated GET and decodes the JSON response into out.
// It returns the total page count reported by the X-WP-TotalPages header.
func (c *Client) get(ctx context.Context, path string, query url.Values, out interface{}) (int, error) {
	u := c.baseURL + restBase + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		var apiErr apiError
		if jsonErr := json.Unmarshal(body, &apiErr); jsonErr == nil {
			switch apiErr.Code {
			case "rest_post_invalid_page_number", "rest_invalid_page_number":
				return 0, ErrPageOutOfRange
			case "rest_post_invalid_id", "rest_term_invalid", "rest_post_invalid":
				return 0, ErrNotFound
			}
			if apiErr.Code != "" {
				return 0, fmt.Errorf("wordpress API error: %s (code: %s)", apiErr.Message, apiErr.Code)
			}
		}
		if resp.StatusCode == http.StatusNotFound {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("wordpress returned status %d", resp.StatusCode)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return 0, fmt.Errorf("failed to parse response: %w (body: %s)", err, string(body))
	}

	totalPages, _ := strconv.Atoi(resp.Header.Get("X-WP-TotalPages"))
	return totalPages, nil
}

// ListPostsOptions controls post listing.
type ListPostsOptions struct {
	Statuses []string // e.g. draft, future, publish
	OrderBy  string   // "modified" or "id"
	Order    string   // "asc" or "desc"
	Page     int
	PerPage  int
}

// ListPosts lists posts. A request past the last page returns
// ErrPageOutOfRange.
func (c *Client) ListPosts(ctx context.Context, opts ListPostsOptions) ([]Post, error) {
	query := url.Values{}
	if len(opts.Statuses) > 0 {
		query.Set("status", strings.Join(opts.Statuses, ","))
	}
	if opts.OrderBy != "" {
		query.Set("orderby", opts.OrderBy)
	}
	if opts.Order != "" {
		query.Set("order", opts.Order)
	}
	if opts.Page > 0 {
		query.Set("page", strconv.Itoa(opts.Page))
	}
	if opts.PerPage > 0 {
		query.Set("per_page", strconv.Itoa(opts.PerPage))
	}

	var posts []Post
	if _, err := c.get(ctx, "/posts", query, &posts); err != nil {
		return nil, err
	}
	return posts, nil
}

// GetPost retrieves a single post by id.
func (c *Client) GetPost(ctx context.Context, id int) (*Post, error) {
	var post Post
	query := url.Values{}
	// Any status: unpublished posts are still link targets
	query.Set("context", "edit")
	if _, err := c.get(ctx, fmt.Sprintf("/posts/%d", id), query, &post); err != nil {
		return nil, err
	}
	return &post, nil
}

// ListCategories lists all categories in one request. The category tree is
// small enough that a single large page covers it.
func (c *Client) ListCategories(ctx context.Context) ([]Category, error) {
	query := url.Values{}
	query.Set("per_page", "100")

	var cats []Category
	if _, err := c.get(ctx, "/categories", query, &cats); err != nil {
		return nil, err
	}
	return cats, nil
}

// ListAllTags walks the tag collection page by page and returns every tag.
func (c *Client) ListAllTags(ctx context.Context) ([]Tag, error) {
	var all []Tag
	page := 1
	for {
		query := url.Values{}
		query.Set("page", strconv.Itoa(page))
		query.Set("per_page", "100")

		var tags []Tag
		totalPages, err := c.get(ctx, "/tags", query, &tags)
		if err != nil {
			if errors.Is(err, ErrPageOutOfRange) {
				break
			}
			return nil, err
		}
		all = append(all, tags...)

		if totalPages <= page {
			break
		}
		page++
	}
	return all, nil
}

// GetTag retrieves a single tag by id.
func (c *Client) GetTag(ctx context.Context, id int) (*Tag, error) {
	var tag Tag
	if _, err := c.get(ctx, fmt.Sprintf("/tags/%d", id), nil, &tag); err != nil {
		return nil, err
	}
	return &tag, nil
}

// GetMedia retrieves a single media item by id.
func (c *Client) GetMedia(ctx context.Context, id int) (*Media, error) {
	var media Media
	if _, err := c.get(ctx, fmt.Sprintf("/media/%d", id), nil, &media); err != nil {
		return nil, err
	}
	return &media, nil
}
