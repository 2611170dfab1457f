package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultRequestTimeout bounds capability and poll requests. Submissions are
// not bounded by the client.
const DefaultRequestTimeout = 30 * time.Second

// maxErrorBody caps how much of a failed response is kept in a RequestError.
const maxErrorBody = 4 << 10

// Client is an HTTP client for one OffloadMQ backend. It holds a single
// connection pool and is safe for concurrent use.
type Client struct {
	baseURL        string
	token          string
	http           *http.Client
	requestTimeout time.Duration
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.http = hc
	}
}

// WithRequestTimeout overrides DefaultRequestTimeout. Zero disables it.
func WithRequestTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.requestTimeout = d
	}
}

// NewClient creates a client for the backend at baseURL authenticating with
// token.
func NewClient(baseURL, token string, opts ...ClientOption) *Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConnsPerHost = 32

	c := &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		token:          token,
		http:           &http.Client{Transport: transport},
		requestTimeout: DefaultRequestTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Capabilities lists the capabilities currently online. The backend may
// answer with a list of names or an object keyed by name; object keys are
// returned in the order the backend sent them.
func (c *Client) Capabilities(ctx context.Context) ([]string, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	body, err := c.post(ctx, "capabilities", "/api/capabilities/online", map[string]string{"apiKey": c.token})
	if err != nil {
		return nil, err
	}
	caps, err := decodeCapabilities(body)
	if err != nil {
		return nil, &RequestError{Op: "capabilities", Err: err}
	}
	return caps, nil
}

func decodeCapabilities(body []byte) ([]string, error) {
	var list []any
	if err := json.Unmarshal(body, &list); err == nil {
		caps := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				caps = append(caps, s)
			}
		}
		return caps, nil
	}

	// Object keys are read in document order; the first policy depends on it.
	dec := json.NewDecoder(bytes.NewReader(body))
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("decode capabilities: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("decode capabilities: unexpected %v", tok)
	}
	var caps []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("decode capabilities: %w", err)
		}
		key, _ := tok.(string)
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, fmt.Errorf("decode capabilities: %w", err)
		}
		caps = append(caps, key)
	}
	return caps, nil
}

// SubmitTask enqueues req and returns its handle.
func (c *Client) SubmitTask(ctx context.Context, req TaskRequest) (*TaskHandle, error) {
	req.APIKey = c.token
	body, err := c.post(ctx, "submit", "/api/task/submit", req)
	if err != nil {
		return nil, err
	}

	var resp struct {
		ID TaskHandle `json:"id"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &RequestError{Op: "submit", Err: fmt.Errorf("decode response: %w", err)}
	}
	if resp.ID.ID == "" {
		return nil, &RequestError{Op: "submit", Err: fmt.Errorf("response has no task id: %s", truncate(body))}
	}
	if resp.ID.Capability == "" {
		resp.ID.Capability = req.Capability
	}
	submissionsTotal.WithLabelValues(req.Capability).Inc()
	return &resp.ID, nil
}

// PollTask fetches the current state of a task.
func (c *Client) PollTask(ctx context.Context, capability, taskID string) (*TaskResult, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	path := "/api/task/poll/" + url.PathEscape(capability) + "/" + url.PathEscape(taskID)
	body, err := c.post(ctx, "poll", path, map[string]string{"apiKey": c.token})
	if err != nil {
		return nil, err
	}

	res, err := decodeTaskResult(body)
	if err != nil {
		return nil, &RequestError{Op: "poll", Err: fmt.Errorf("decode response: %w", err)}
	}
	return res, nil
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.requestTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.requestTimeout)
}

// post sends payload as JSON and returns the body of a 2xx response.
func (c *Client) post(ctx context.Context, op, path string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%s: encode request: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, &RequestError{Op: op, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &RequestError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &RequestError{Op: op, Err: fmt.Errorf("read response: %w", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &RequestError{Op: op, StatusCode: resp.StatusCode, Body: truncate(body)}
	}
	return body, nil
}

func truncate(body []byte) string {
	if len(body) > maxErrorBody {
		return string(body[:maxErrorBody]) + "..."
	}
	return string(body)
}
