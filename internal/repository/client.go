package repository

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

// TransportError reports an unreachable service or a non-2xx response.
type TransportError struct {
	Op     string
	Status int
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: unexpected status %d", e.Op, e.Status)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ProtocolError reports a response body that could not be decoded.
type ProtocolError struct {
	Op  string
	Err error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s: malformed response: %v", e.Op, e.Err)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// Client is the shared HTTP plumbing for the remote task manager API.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient builds a client for the given base address. The timeout
// bounds every call and surfaces as a TransportError.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// getJSON issues a GET and decodes the body into out.
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	op := "GET " + path
	resp, err := c.do(ctx, http.MethodGet, path, query, nil)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &TransportError{Op: op, Status: resp.StatusCode}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &ProtocolError{Op: op, Err: err}
	}
	return nil
}

// send issues a request with an optional JSON body and checks only the
// status; response bodies of mutations are drained and ignored.
func (c *Client) send(ctx context.Context, method, path string, query url.Values, body any) error {
	op := method + " " + path

	var payload []byte
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return &ProtocolError{Op: op, Err: err}
		}
		payload = data
	}

	resp, err := c.do(ctx, method, path, query, payload)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &TransportError{Op: op, Status: resp.StatusCode}
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body []byte) (*http.Response, error) {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.http.Do(req)
}
