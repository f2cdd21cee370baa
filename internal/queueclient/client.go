// Package queueclient speaks the claim/complete/release protocol of the
// shared queue service. Every method degrades to a safe default on failure
// and logs instead of propagating: the worker keeps draining its local
// queue when the service is unreachable.
package queueclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"
)

// DefaultQueueName is the queue this worker drains unless overridden.
const DefaultQueueName = "validator"

const defaultTimeout = 30 * time.Second

// QueueItem is one claimed work item. Data is whatever the enqueuer
// attached and is carried opaquely.
type QueueItem struct {
	ID       string          `json:"id"`
	Username string          `json:"username"`
	Data     json.RawMessage `json:"data,omitempty"`
}

// Client talks to the queue service for one named queue on behalf of one
// worker instance.
type Client struct {
	baseURL    string
	apiKey     string
	instanceID string
	queueName  string
	httpClient *http.Client
	logger     *log.Logger
}

// New creates a queue client. instanceID attributes claims to this worker
// so they can be released as a group after a crash.
func New(baseURL, apiKey, instanceID string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		instanceID: instanceID,
		queueName:  DefaultQueueName,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		logger: log.New(os.Stderr, "", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Option configures a Client.
type Option func(*Client)

// WithQueueName overrides the queue name.
func WithQueueName(name string) Option {
	return func(c *Client) {
		if name != "" {
			c.queueName = name
		}
	}
}

// WithTimeout sets the HTTP request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithLogger sets the logger for warnings.
func WithLogger(logger *log.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
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

// InstanceID returns the worker identity claims are attributed to.
func (c *Client) InstanceID() string {
	return c.instanceID
}

// QueueName returns the queue this client operates on.
func (c *Client) QueueName() string {
	return c.queueName
}

// ClaimItems asks the queue service for up to count items. Returns the
// claimed items, or an empty slice on any failure.
func (c *Client) ClaimItems(ctx context.Context, count int) []QueueItem {
	body := map[string]any{
		"instance_id": c.instanceID,
		"count":       count,
	}
	var result struct {
		Items []QueueItem `json:"items"`
	}
	if err := c.call(ctx, http.MethodPost, c.endpoint("claim"), body, &result); err != nil {
		c.logger.Printf("Warning: claiming items: %v", err)
		return nil
	}
	return result.Items
}

// CompleteItems acknowledges the given ids as fully processed. It
// satisfies the check store's QueueCompleter.
func (c *Client) CompleteItems(ctx context.Context, ids []string) bool {
	body := map[string]any{
		"instance_id": c.instanceID,
		"items":       ids,
	}
	if err := c.call(ctx, http.MethodPost, c.endpoint("complete"), body, nil); err != nil {
		c.logger.Printf("Warning: completing %d items: %v", len(ids), err)
		return false
	}
	return true
}

// ReleaseItems returns the given ids to the queue without marking success,
// so another instance can claim them.
func (c *Client) ReleaseItems(ctx context.Context, ids []string) bool {
	body := map[string]any{
		"instance_id": c.instanceID,
		"items":       ids,
	}
	if err := c.call(ctx, http.MethodPost, c.endpoint("release"), body, nil); err != nil {
		c.logger.Printf("Warning: releasing %d items: %v", len(ids), err)
		return false
	}
	return true
}

// ReleaseInstance returns every item still claimed by this instance,
// reclaiming work orphaned by a prior crash. Returns the released count,
// or 0 on failure.
func (c *Client) ReleaseInstance(ctx context.Context) int {
	body := map[string]any{
		"instance_id": c.instanceID,
	}
	var result struct {
		ReleasedCount int `json:"released_count"`
	}
	if err := c.call(ctx, http.MethodPost, c.endpoint("release-instance"), body, &result); err != nil {
		c.logger.Printf("Warning: releasing instance claims: %v", err)
		return 0
	}
	return result.ReleasedCount
}

// Stats fetches the queue service's view of this queue. Returns nil on
// failure.
func (c *Client) Stats(ctx context.Context) map[string]any {
	var result struct {
		Stats map[string]any `json:"stats"`
	}
	if err := c.call(ctx, http.MethodGet, c.endpoint("stats"), nil, &result); err != nil {
		c.logger.Printf("Warning: fetching queue stats: %v", err)
		return nil
	}
	return result.Stats
}

func (c *Client) endpoint(action string) string {
	return fmt.Sprintf("/queue/%s/%s", c.queueName, action)
}

// call performs one request against the queue service. A response counts
// as success only when the status is 200 and the body carries
// success=true; anything else is an error.
func (c *Client) call(ctx context.Context, method, path string, body, result any) error {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("queue service returned %s", resp.Status)
	}

	var ok struct {
		Success bool `json:"success"`
	}
	if err := json.Unmarshal(data, &ok); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	if !ok.Success {
		return fmt.Errorf("queue service reported failure")
	}
	if result != nil {
		if err := json.Unmarshal(data, result); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}
