// Copyright 2026 The Lattice Authors
// SPDX-License-Identifier: Apache-2.0

// Package taskapi is an HTTP client for the Lattice task endpoints:
// point reads of task status, revocation, and opening the task update
// event stream.
package taskapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lattice-ml/lattice/lib/netutil"
)

// Default endpoint paths.
const (
	DefaultStreamPath = "/api/v1/tasks/stream-updates"
	tasksPath         = "/api/v1/tasks/"
)

// RequestIDHeader carries a per-request id for correlating client and
// server logs.
const RequestIDHeader = "X-Request-ID"

// ClientConfig holds configuration for creating a Client.
type ClientConfig struct {
	// BaseURL is the API server root (e.g., "https://lattice.example.com").
	BaseURL string

	// Token is sent as a bearer token when non-empty.
	Token string

	// Cookies are attached to every request, for deployments that
	// authenticate with a session cookie.
	Cookies []*http.Cookie

	// HTTPClient is used for all requests. If nil, a client without an
	// overall timeout is created (stream requests are long-lived, so
	// bounded requests get their deadline from RequestTimeout instead).
	HTTPClient *http.Client

	// RequestTimeout bounds status and revoke calls. Zero means 30s.
	RequestTimeout time.Duration

	// UserAgent is sent on every request when non-empty.
	UserAgent string

	// Logger is used for structured logging. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// Client talks to the task endpoints. Safe for concurrent use.
type Client struct {
	baseURL        string
	token          string
	cookies        []*http.Cookie
	httpClient     *http.Client
	requestTimeout time.Duration
	userAgent      string
	logger         *slog.Logger
}

// NewClient validates config and returns a Client.
func NewClient(config ClientConfig) (*Client, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("taskapi: BaseURL is required")
	}
	parsed, err := url.Parse(config.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("taskapi: invalid BaseURL %q: %w", config.BaseURL, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("taskapi: BaseURL %q must use http or https", config.BaseURL)
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	requestTimeout := config.RequestTimeout
	if requestTimeout == 0 {
		requestTimeout = 30 * time.Second
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL:        strings.TrimRight(config.BaseURL, "/"),
		token:          config.Token,
		cookies:        config.Cookies,
		httpClient:     httpClient,
		requestTimeout: requestTimeout,
		userAgent:      config.UserAgent,
		logger:         logger,
	}, nil
}

// BaseURL returns the server root the client was configured with.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// CloseIdleConnections drops pooled connections, so that the next
// request after a network disruption dials fresh.
func (c *Client) CloseIdleConnections() {
	c.httpClient.CloseIdleConnections()
}

// newRequest builds a request with credentials and a request id.
func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body io.Reader) (*http.Request, error) {
	requestURL := c.baseURL + path
	if len(query) > 0 {
		requestURL += "?" + query.Encode()
	}
	request, err := http.NewRequestWithContext(ctx, method, requestURL, body)
	if err != nil {
		return nil, fmt.Errorf("taskapi: failed to create request: %w", err)
	}
	if c.token != "" {
		request.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.userAgent != "" {
		request.Header.Set("User-Agent", c.userAgent)
	}
	for _, cookie := range c.cookies {
		request.AddCookie(cookie)
	}
	request.Header.Set(RequestIDHeader, uuid.NewString())
	return request, nil
}

// doJSON performs a bounded JSON request and decodes a 2xx response
// into response. Non-2xx responses return an *APIError.
func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, requestBody, response any) error {
	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	var bodyReader io.Reader
	if requestBody != nil {
		encoded, err := json.Marshal(requestBody)
		if err != nil {
			return fmt.Errorf("taskapi: failed to encode request body: %w", err)
		}
		bodyReader = bytes.NewReader(encoded)
	}

	request, err := c.newRequest(ctx, method, path, query, bodyReader)
	if err != nil {
		return err
	}
	request.Header.Set("Accept", "application/json")
	if requestBody != nil {
		request.Header.Set("Content-Type", "application/json")
	}

	httpResponse, err := c.httpClient.Do(request)
	if err != nil {
		return fmt.Errorf("taskapi: request to %s %s failed: %w", method, path, err)
	}
	defer httpResponse.Body.Close()

	if httpResponse.StatusCode < 200 || httpResponse.StatusCode >= 300 {
		apiErr := newAPIError(httpResponse.StatusCode, method, path, netutil.ErrorBody(httpResponse.Body))
		c.logger.Debug("task api error",
			"method", method,
			"path", path,
			"status", httpResponse.StatusCode,
			"request_id", request.Header.Get(RequestIDHeader),
		)
		return apiErr
	}

	if response == nil {
		return nil
	}
	if err := netutil.DecodeResponse(httpResponse.Body, response); err != nil {
		return fmt.Errorf("taskapi: %s %s: %w", method, path, err)
	}
	return nil
}

// taskPath returns the path for a task, escaping the id.
func taskPath(taskID string, suffix ...string) string {
	return tasksPath + url.PathEscape(taskID) + strings.Join(suffix, "")
}
