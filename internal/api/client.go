// Package api is the remote access layer: typed, tenant-scoped calls against the
// visitor-pass REST backend. Every call issues exactly one request; nothing is
// retried, cached or deduplicated, and errors are returned to the caller as-is.
package api

import (
	"bytes"
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

	"github.com/visitorpass/desk/internal/models"
)

var (
	// ErrTenantRequired is returned before any request when the tenant id is not positive.
	ErrTenantRequired = errors.New("tenant id required")
	// ErrInvalidPage is returned before any request for a negative page index or a non-positive size.
	ErrInvalidPage = errors.New("invalid page request")
	// ErrPageOverflow is returned when the backend answers with more items than a page holds.
	ErrPageOverflow = errors.New("backend page overflow")
)

// Client talks to the backend on behalf of one signed-in user.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Token      string

	Passes   *PassService
	Users    *UserService
	Security *SecurityService
}

// NewClient creates a client for baseURL (e.g. http://localhost:8080/api) with a 10s timeout.
func NewClient(baseURL, token string) *Client {
	return NewClientWithHTTP(baseURL, token, &http.Client{Timeout: 10 * time.Second})
}

// NewClientWithHTTP creates a client that sends requests through hc.
func NewClientWithHTTP(baseURL, token string, hc *http.Client) *Client {
	c := &Client{
		BaseURL:    strings.TrimSuffix(baseURL, "/"),
		HTTPClient: hc,
		Token:      token,
	}
	c.Passes = &PassService{c: c}
	c.Users = &UserService{c: c}
	c.Security = &SecurityService{c: c}
	return c
}

func tenantPath(tenantID int64, suffix string) (string, error) {
	if tenantID <= 0 {
		return "", ErrTenantRequired
	}
	return "/tenants/" + strconv.FormatInt(tenantID, 10) + suffix, nil
}

func pageQuery(page, size int) (url.Values, error) {
	if page < 0 || size < 1 {
		return nil, fmt.Errorf("%w: page=%d size=%d", ErrInvalidPage, page, size)
	}
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("size", strconv.Itoa(size))
	return q, nil
}

func checkPage[T any](p models.Page[T], size int) error {
	if !p.Valid() || len(p.Content) > size {
		return fmt.Errorf("%w: %d items for size=%d", ErrPageOverflow, len(p.Content), size)
	}
	return nil
}

// do sends one request and decodes a 2xx JSON body into out (when out is non-nil).
func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	u := c.BaseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return parseError(resp.StatusCode, raw)
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
