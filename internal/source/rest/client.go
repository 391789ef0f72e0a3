// Package rest is a thin JSON-over-HTTP client shared by the vendor
// adapters. It keeps status-code classification in one place so adapters
// can react to typed errors instead of matching on message text.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// requestTimeout bounds every outbound vendor call.
const requestTimeout = 30 * time.Second

// StatusError reports a non-2xx response with its status code preserved,
// so callers can classify (401 auth, 404/410 stale cursor) without
// inspecting the body text.
type StatusError struct {
	StatusCode int
	Method     string
	URL        string
	Body       string
}

func (e *StatusError) Error() string {
	body := e.Body
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	return fmt.Sprintf(
		"unexpected status %d on %s %s: %s",
		e.StatusCode, e.Method, e.URL, body,
	)
}

// HasStatus reports whether err carries the given HTTP status code.
func HasStatus(err error, code int) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.StatusCode == code
}

// Client is a minimal JSON HTTP client bound to one API base URL.
type Client struct {
	baseURL    string
	header     http.Header
	httpClient *http.Client
}

// NewClient creates a client for the given API root. Headers set via
// SetHeader are attached to every request.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		header:  make(http.Header),
		httpClient: &http.Client{
			Timeout: requestTimeout,
		},
	}
}

// SetHeader sets a header sent with every request (e.g. Authorization).
func (c *Client) SetHeader(key, value string) {
	c.header.Set(key, value)
}

// Get performs a GET against baseURL+path with optional query parameters
// and unmarshals the JSON response into result.
func (c *Client) Get(
	ctx context.Context,
	path string,
	query url.Values,
	result any,
) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return c.do(ctx, http.MethodGet, u, nil, result)
}

// GetURL performs a GET against an absolute URL, used for continuation
// links (e.g. Graph delta links) that embed their own parameters.
func (c *Client) GetURL(ctx context.Context, absURL string, result any) error {
	return c.do(ctx, http.MethodGet, absURL, nil, result)
}

// Post performs a POST with a JSON body and unmarshals the response.
func (c *Client) Post(
	ctx context.Context,
	path string,
	body any,
	result any,
) error {
	return c.do(ctx, http.MethodPost, c.baseURL+path, body, result)
}

// do builds the request, attaches the shared headers, and decodes the
// JSON response. Non-2xx responses come back as a StatusError.
func (c *Client) do(
	ctx context.Context,
	method string,
	absURL string,
	body any,
	result any,
) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, absURL, bodyReader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	for key, values := range c.header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing %s %s: %w", method, absURL, err)
	}

	respBody, readErr := io.ReadAll(resp.Body)
	resp.Body.Close()
	if readErr != nil {
		return fmt.Errorf("reading response body: %w", readErr)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{
			StatusCode: resp.StatusCode,
			Method:     method,
			URL:        absURL,
			Body:       string(respBody),
		}
	}

	if result == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf(
			"unmarshaling response from %s %s: %w", method, absURL, err,
		)
	}

	return nil
}
