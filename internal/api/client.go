// Package api is the HTTP client for the storefront backend. It owns
// bearer-token injection, request IDs, error classification and the
// 401-strips-the-token rule; nothing above it builds raw requests.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/drojas/tienda/internal/metrics"
	"github.com/drojas/tienda/internal/requestid"
)

// TokenSource supplies the persisted bearer token. Satisfied by
// storage.Store.
type TokenSource interface {
	Token() string
	ClearToken() error
}

type Client struct {
	http   *http.Client
	base   string
	tokens TokenSource
	logger *slog.Logger

	// onUnauthorized fires after a 401 cleared the stored token, so the
	// auth store can drop Identity in the same breath.
	onUnauthorized func()
}

func NewClient(baseURL string, timeout time.Duration, tokens TokenSource, logger *slog.Logger) *Client {
	return &Client{
		http:   &http.Client{Timeout: timeout},
		base:   strings.TrimRight(baseURL, "/"),
		tokens: tokens,
		logger: logger.With("component", "api_client"),
	}
}

// OnUnauthorized registers the callback invoked when the backend rejects
// the session token. At most one handler; last registration wins.
func (c *Client) OnUnauthorized(fn func()) {
	c.onUnauthorized = fn
}

// do sends one API request and decodes the JSON response into out (when
// out is non-nil). The endpoint label is only used for logs and metrics.
func (c *Client) do(ctx context.Context, endpoint, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.send(req, endpoint, out)
}

// send finishes headers, executes the request and classifies the
// response. Used directly by endpoints that need a non-JSON body
// (multipart product upload).
func (c *Client) send(req *http.Request, endpoint string, out any) error {
	ctx, id := requestid.Ensure(req.Context())
	req = req.WithContext(ctx)
	req.Header.Set("X-Request-ID", id)
	req.Header.Set("Accept", "application/json")

	hadToken := false
	if token := c.tokens.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
		hadToken = true
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.observe(endpoint, "error", start)
		c.logger.ErrorContext(ctx, "api request failed", "endpoint", endpoint, "error", err)
		return fmt.Errorf("%s: %w", endpoint, err)
	}
	defer func() { _ = resp.Body.Close() }()

	c.observe(endpoint, strconv.Itoa(resp.StatusCode), start)

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s: read response: %w", endpoint, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if resp.StatusCode == http.StatusUnauthorized && hadToken {
			// Session no longer valid: drop the token locally so token
			// presence and Identity presence stay consistent.
			if err := c.tokens.ClearToken(); err != nil {
				c.logger.ErrorContext(ctx, "clear token after 401", "error", err)
			}
			if c.onUnauthorized != nil {
				c.onUnauthorized()
			}
		}
		c.logger.DebugContext(ctx, "api request rejected",
			"endpoint", endpoint, "status", resp.StatusCode)
		return classify(resp.StatusCode, hadToken, raw)
	}

	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("%s: decode response: %w", endpoint, err)
		}
	}
	return nil
}

func (c *Client) observe(endpoint, status string, start time.Time) {
	d := time.Since(start).Seconds()
	metrics.APIRequestDuration.WithLabelValues(endpoint, status).Observe(d)
	metrics.APIRequestsTotal.WithLabelValues(endpoint, status).Inc()
}
