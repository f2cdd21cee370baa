// Package apiclient implements the client for the downstream links API,
// used to ask whether a steam id is already recorded before accepting it
// into the local queue.
package apiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultTimeout = 10 * time.Second

// Client talks to the links API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// New creates a links API client.
func New(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the HTTP request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// Exists reports whether steamID is already present downstream. The
// response counts only when the status is 200 and the body carries
// success=true; anything else is an error and the caller decides.
func (c *Client) Exists(ctx context.Context, steamID string) (bool, error) {
	url := fmt.Sprintf("%s/api/steam-ids/%s/exists", c.baseURL, steamID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("links API returned %s", resp.Status)
	}

	var result struct {
		Success bool   `json:"success"`
		Exists  bool   `json:"exists"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return false, fmt.Errorf("decoding response: %w", err)
	}
	if !result.Success {
		if result.Error != "" {
			return false, fmt.Errorf("links API error: %s", result.Error)
		}
		return false, fmt.Errorf("links API reported failure")
	}
	return result.Exists, nil
}
