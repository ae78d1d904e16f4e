package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const maxResponseBody = 4 << 20

// Client calls a generation endpoint over HTTP.
type Client struct {
	url  string
	http *http.Client
}

// NewClient returns a client for the endpoint at url. A zero timeout leaves
// the request bounded only by the caller's context.
func NewClient(url string, timeout time.Duration) *Client {
	return &Client{
		url:  url,
		http: &http.Client{Timeout: timeout},
	}
}

// Generate posts the prompt and returns the generated text. Transport
// failures, non-2xx statuses and unparseable bodies are all errors.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(Request{Prompt: prompt})
	if err != nil {
		return "", fmt.Errorf("marshal generation request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build generation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("call generation service: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBody))
	if err != nil {
		return "", fmt.Errorf("read generation response: %w", err)
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		var failure Response
		if json.Unmarshal(raw, &failure) == nil && failure.Error != "" {
			return "", fmt.Errorf("%w: %d: %s", ErrStatus, res.StatusCode, failure.Error)
		}
		return "", fmt.Errorf("%w: %d", ErrStatus, res.StatusCode)
	}

	var out Response
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if out.Response == "" {
		return "", fmt.Errorf("%w: missing response field", ErrMalformedResponse)
	}
	return out.Response, nil
}
