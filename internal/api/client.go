// Copyright (c) 2025 pedrocodesforcoffee
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/pedrocodesforcoffee/builder-go/internal/offline"
)

// Configuration constants for the Builder API.
const (
	// DefaultBaseURL is the production API endpoint.
	DefaultBaseURL = "https://api.builder.example.com/v1"

	// DefaultTimeout is the default timeout for API requests.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxRetries is the default number of retry attempts for
	// transient errors.
	DefaultMaxRetries = 3

	// DefaultRateLimit is the default client-side request rate per second.
	DefaultRateLimit = 10

	// retryBaseDelay is the base delay for exponential backoff.
	retryBaseDelay = 500 * time.Millisecond

	// retryMaxDelay is the maximum delay for exponential backoff.
	retryMaxDelay = 10 * time.Second

	// MaxResponseSize is the maximum allowed response body size.
	// SECURITY: Response size limit prevents memory exhaustion.
	MaxResponseSize = 10 * 1024 * 1024 // 10MB limit
)

// sharedHTTPClient is used by every Client instance.
// PERFORMANCE: Connection pooling reduces TCP handshake overhead.
// SECURITY: TLS verification required for production.
var sharedHTTPClient = &http.Client{
	Transport: &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
	},
	Timeout: DefaultTimeout,
}

// =============================================================================
// TOKEN SOURCE
// =============================================================================

// TokenSource supplies bearer tokens and reacts to 401s. Implemented by the
// session manager; nil for unauthenticated requests.
type TokenSource interface {
	// Token returns a bearer token, refreshing first when expiry is near.
	Token(ctx context.Context) (string, error)

	// HandleUnauthorized is invoked after the server rejects a token with
	// a 401. A true return means the token pair was refreshed and the
	// request should be retried exactly once.
	HandleUnauthorized(ctx context.Context) (retry bool, err error)
}

// =============================================================================
// CLIENT
// =============================================================================

// Client is the shared HTTP transport for all Builder API services.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
	limiter    *rate.Limiter
	maxRetries int
	userAgent  string
}

// NewClient creates a Builder API client against baseURL. Pass an empty
// string for the production endpoint. The client is not authenticated until
// a TokenSource is attached with WithTokenSource.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: sharedHTTPClient,
		limiter:    rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		maxRetries: DefaultMaxRetries,
		userAgent:  "builder-go/1.0",
	}
}

// WithTokenSource attaches the session manager supplying bearer tokens.
func (c *Client) WithTokenSource(ts TokenSource) *Client {
	c.tokens = ts
	return c
}

// WithTimeout sets the per-request timeout.
func (c *Client) WithTimeout(timeout time.Duration) *Client {
	if timeout <= 0 {
		return c
	}
	// Shared transport, per-client timeout.
	c.httpClient = &http.Client{
		Transport: sharedHTTPClient.Transport,
		Timeout:   timeout,
	}
	return c
}

// WithMaxRetries sets the retry budget for transient failures.
func (c *Client) WithMaxRetries(maxRetries int) *Client {
	if maxRetries > 0 {
		c.maxRetries = maxRetries
	}
	return c
}

// WithRateLimit sets the client-side request rate per second.
func (c *Client) WithRateLimit(perSecond float64) *Client {
	if perSecond > 0 {
		burst := int(perSecond)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
	return c
}

// WithHTTPClient overrides the HTTP client, primarily for tests.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

// BaseURL returns the configured API endpoint.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// =============================================================================
// SECURE REQUEST/RESPONSE LOGGING
// =============================================================================

// logRequest logs an API request without exposing sensitive data.
// Headers may contain auth and bodies may contain credentials, so neither
// is logged.
func (c *Client) logRequest(req *http.Request) {
	log.Printf("API Request: %s %s", req.Method, req.URL.Path)
}

// logResponse logs status code and duration only, never the body.
func (c *Client) logResponse(resp *http.Response, duration time.Duration) {
	log.Printf("API Response: %d %s (%v)", resp.StatusCode, resp.Status, duration)
}

// =============================================================================
// REQUEST EXECUTION
// =============================================================================

// isAuthPath reports whether path is an auth endpoint. Auth endpoints carry
// credentials in the body and never a bearer token.
func isAuthPath(path string) bool {
	return strings.HasPrefix(path, "/auth/")
}

// do executes one JSON request against the API and decodes the response
// into out (when non-nil). It layers, outside-in: field-mode gating, rate
// limiting, retry with backoff for transient failures, and the single
// post-refresh retry after a 401.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	requestURL := c.baseURL + path
	if err := offline.ValidateRequestURL(requestURL); err != nil {
		return err
	}

	var bodyBytes []byte
	if in != nil {
		var err error
		bodyBytes, err = json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
	}

	requestID := uuid.NewString()

	var lastErr error
	retriedAfterRefresh := false

	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := calculateBackoff(attempt)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		err := c.doOnce(ctx, method, requestURL, path, requestID, bodyBytes, out)
		if err == nil {
			return nil
		}

		// A 401 on a non-auth path means the access token was rejected.
		// Let the session manager refresh, then retry exactly once.
		if errors.Is(err, ErrUnauthorized) && !isAuthPath(path) && c.tokens != nil && !retriedAfterRefresh {
			retriedAfterRefresh = true
			retry, refreshErr := c.tokens.HandleUnauthorized(ctx)
			if refreshErr != nil {
				return fmt.Errorf("token refresh after 401 failed: %w", refreshErr)
			}
			if retry {
				if retryErr := c.doOnce(ctx, method, requestURL, path, requestID, bodyBytes, out); retryErr == nil {
					return nil
				} else if !IsRetryable(retryErr) {
					return retryErr
				} else {
					lastErr = retryErr
					continue
				}
			}
			return err
		}

		if !IsRetryable(err) {
			return err
		}
		lastErr = err
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

// doOnce performs a single HTTP exchange.
// SECURITY: Clears the Authorization header after the request so it cannot
// leak through request dumps.
func (c *Client) doOnce(ctx context.Context, method, requestURL, path, requestID string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, requestURL, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("X-Request-ID", requestID)

	if c.tokens != nil && !isAuthPath(path) {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	c.logRequest(req)
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	req.Header.Del("Authorization")
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	c.logResponse(resp, time.Since(start))

	respBody, err := readResponse(resp)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.handleErrorResponse(resp.StatusCode, respBody)
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// readResponse reads the response body with a size limit.
// SECURITY: Response size limit prevents memory exhaustion.
func readResponse(resp *http.Response) ([]byte, error) {
	limitedReader := io.LimitReader(resp.Body, MaxResponseSize)
	body, err := io.ReadAll(limitedReader)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if int64(len(body)) == MaxResponseSize {
		return nil, fmt.Errorf("response exceeded maximum size of %d bytes", MaxResponseSize)
	}
	return body, nil
}

// handleErrorResponse converts HTTP error responses to the package errors.
func (c *Client) handleErrorResponse(statusCode int, body []byte) error {
	apiErr := &APIError{Status: statusCode}

	var wire errorBody
	if err := json.Unmarshal(body, &wire); err == nil && wire.Error.Message != "" {
		apiErr.Code = wire.Error.Code
		apiErr.Message = wire.Error.Message
	} else if len(body) > 0 {
		apiErr.Message = string(body)
	}

	return mapStatusError(statusCode, apiErr)
}

// calculateBackoff returns the delay before the next retry attempt.
func calculateBackoff(attempt int) time.Duration {
	// Exponential backoff: 500ms, 1000ms, 2000ms, ...
	delay := retryBaseDelay * time.Duration(1<<uint(attempt-1))
	if delay > retryMaxDelay {
		delay = retryMaxDelay
	}
	return delay
}

// get issues a GET request.
func (c *Client) get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

// post issues a POST request with a JSON body.
func (c *Client) post(ctx context.Context, path string, in, out any) error {
	return c.do(ctx, http.MethodPost, path, in, out)
}

// put issues a PUT request with a JSON body.
func (c *Client) put(ctx context.Context, path string, in, out any) error {
	return c.do(ctx, http.MethodPut, path, in, out)
}

// delete issues a DELETE request.
func (c *Client) delete(ctx context.Context, path string) error {
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}
