package orthanc

// Package orthanc is a thin client for the REST interface of the Orthanc
// server under test. It only consumes the published API; nothing of the
// server is reimplemented here.

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// ConnectivityError means the harness lost contact with a required server.
// It is fatal: the server under test is assumed required, not optional.
type ConnectivityError struct {
	URL string
	Err error
}

func (e *ConnectivityError) Error() string {
	return fmt.Sprintf("lost contact with orthanc at %s: %v", e.URL, e.Err)
}

func (e *ConnectivityError) Unwrap() error { return e.Err }

// HTTPError is a non-2xx response from the server. Scenarios treat these as
// assertion material (some scenarios expect them), not as fatal errors.
type HTTPError struct {
	StatusCode int
	Method     string
	Path       string
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s %s returned %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

// Client talks to one Orthanc instance.
type Client struct {
	baseURL string
	http    *http.Client
	logger  zerolog.Logger
}

// New creates a client for the given base URL (e.g. "http://localhost:8052").
func New(baseURL string, logger zerolog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{},
		logger:  logger,
	}
}

// URL returns the base URL of the instance this client talks to.
func (c *Client) URL() string { return c.baseURL }

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	c.logger.Debug().Str("method", method).Str("path", path).Msg("HTTP request")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &ConnectivityError{URL: c.baseURL + path, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ConnectivityError{URL: c.baseURL + path, Err: err}
	}

	if resp.StatusCode >= 400 {
		return nil, &HTTPError{
			StatusCode: resp.StatusCode,
			Method:     method,
			Path:       path,
			Body:       string(data),
		}
	}
	return data, nil
}

// GetJSON issues a GET and decodes the JSON response into out.
func (c *Client) GetJSON(ctx context.Context, path string, out any) error {
	data, err := c.do(ctx, http.MethodGet, path, nil, "")
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response of GET %s: %w", path, err)
	}
	return nil
}

// PostJSON issues a POST with a JSON body and decodes the JSON response into
// out when out is non-nil.
func (c *Client) PostJSON(ctx context.Context, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode body of POST %s: %w", path, err)
		}
		reader = bytes.NewReader(encoded)
	}
	data, err := c.do(ctx, http.MethodPost, path, reader, "application/json")
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response of POST %s: %w", path, err)
	}
	return nil
}

// PostBytes issues a POST with a raw body (e.g. a DICOM file).
func (c *Client) PostBytes(ctx context.Context, path string, body []byte, contentType string) ([]byte, error) {
	return c.do(ctx, http.MethodPost, path, bytes.NewReader(body), contentType)
}

// Delete issues a DELETE.
func (c *Client) Delete(ctx context.Context, path string) error {
	_, err := c.do(ctx, http.MethodDelete, path, nil, "")
	return err
}

// IsAlive returns true when GET /system answers successfully.
func (c *Client) IsAlive(ctx context.Context) bool {
	return c.GetJSON(ctx, "/system", nil) == nil
}

// WaitStarted polls /system until the server answers or the timeout
// elapses. The poll interval is deliberately short: instances usually come
// up within a second or two.
func (c *Client) WaitStarted(ctx context.Context, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		if c.IsAlive(ctx) {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("orthanc at %s did not answer within %s", c.baseURL, timeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(500 * time.Millisecond):
		}
	}
}

// System returns the content of GET /system.
func (c *Client) System(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	if err := c.GetJSON(ctx, "/system", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Statistics returns the content of GET /statistics.
func (c *Client) Statistics(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	if err := c.GetJSON(ctx, "/statistics", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// IsConnectivityError reports whether err (or anything it wraps) is a lost
// connection to the server.
func IsConnectivityError(err error) bool {
	var ce *ConnectivityError
	return errors.As(err, &ce)
}
