// Package model is the boundary to the external inference backends. Scanners
// never run models in-process: they send text to a classification or NER
// service described by a Runtime and get labelled scores back.
package model

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrBackend is wrapped by every failure reported by an inference backend.
var ErrBackend = errors.New("inference backend error")

// Runtime describes where and how models run. It is passed explicitly to
// every model-backed scanner factory.
type Runtime struct {
	Device  string        // e.g. "cpu", "cuda:0"; forwarded to the backend
	BaseURL string        // e.g. "http://inference:8000"
	Timeout time.Duration // per-request timeout, default 10s
}

// Client posts JSON to an inference backend.
type Client struct {
	rt   Runtime
	http *http.Client
}

// NewClient creates a Client for the given runtime.
func NewClient(rt Runtime) *Client {
	if rt.Timeout <= 0 {
		rt.Timeout = 10 * time.Second
	}
	rt.BaseURL = strings.TrimRight(rt.BaseURL, "/")
	return &Client{
		rt:   rt,
		http: &http.Client{Timeout: rt.Timeout},
	}
}

// Device returns the configured device descriptor.
func (c *Client) Device() string {
	return c.rt.Device
}

// Post sends in as JSON to path and decodes the response into out.
func (c *Client) Post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.rt.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrBackend, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s returned status %d", ErrBackend, path, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: reading %s response: %w", ErrBackend, path, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: decoding %s response: %w", ErrBackend, path, err)
	}
	return nil
}
