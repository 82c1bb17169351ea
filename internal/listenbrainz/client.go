// Listenimport - ListenBrainz Listen History Importer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/listenimport

// Package listenbrainz is a minimal client for the ListenBrainz HTTP API:
// token validation and listen submission, plus the rate limit snapshot the
// server returns with every response.
package listenbrainz

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"
)

// DefaultURL is the public ListenBrainz API root.
const DefaultURL = "https://api.listenbrainz.org"

// maxErrorBodySize limits how much of an error response body is read.
const maxErrorBodySize = 64 * 1024

// Rate limit response headers.
const (
	headerRateLimitLimit     = "X-RateLimit-Limit"
	headerRateLimitRemaining = "X-RateLimit-Remaining"
	headerRateLimitResetIn   = "X-RateLimit-Reset-In"
	headerRateLimitReset     = "X-RateLimit-Reset"
)

// Config configures a Client.
type Config struct {
	// URL is the API root. Default: DefaultURL
	URL string

	// Timeout bounds each HTTP request. Default: 60s
	Timeout time.Duration

	// RequestsPerSecond paces outgoing requests; 0 disables pacing.
	RequestsPerSecond float64

	// UserAgent is sent with every request.
	UserAgent string
}

// Client talks to the ListenBrainz API.
// Safe for concurrent use.
type Client struct {
	baseURL   string
	userAgent string
	client    *http.Client
	limiter   *rate.Limiter
}

// NewClient creates a ListenBrainz client.
func NewClient(cfg Config) *Client {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}

	c := &Client{
		baseURL:   strings.TrimRight(cfg.URL, "/"),
		userAgent: cfg.UserAgent,
		client:    &http.Client{Timeout: cfg.Timeout},
	}
	if cfg.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return c
}

// BaseURL returns the API root the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ValidateToken checks a user token with GET /1/validate-token.
// An invalid token is not an error; inspect TokenValidation.Valid.
func (c *Client) ValidateToken(ctx context.Context, token string) (*TokenValidation, error) {
	resp, err := c.do(ctx, http.MethodGet, "/1/validate-token", token, nil)
	if err != nil {
		return nil, fmt.Errorf("validate token: %w", err)
	}
	defer resp.Body.Close()

	// The API answers an unknown token with 200 and valid=false, but older
	// deployments use 401.
	if resp.StatusCode == http.StatusUnauthorized {
		return &TokenValidation{Code: resp.StatusCode, Message: "Token invalid.", Valid: false}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("validate token: %w", errorFromResponse(resp))
	}

	var result TokenValidation
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode validate-token response: %w", err)
	}
	return &result, nil
}

// SubmitListens posts a batch of listens with POST /1/submit-listens.
// Non-200 responses are returned as *APIError.
func (c *Client) SubmitListens(ctx context.Context, token string, req SubmitListens) (*SubmitResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode submit-listens request: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, "/1/submit-listens", token, body)
	if err != nil {
		return nil, fmt.Errorf("submit listens: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errorFromResponse(resp)
	}

	result := &SubmitResponse{}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return nil, fmt.Errorf("decode submit-listens response: %w", err)
	}
	result.RateLimit = ParseRateLimit(resp.Header)
	return result, nil
}

// do builds and executes an authenticated request.
func (c *Client) do(ctx context.Context, method, path, token string, body []byte) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	var reader io.Reader = http.NoBody
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	return resp, nil
}

// ParseRateLimit extracts the rate limit snapshot from response headers.
// It returns nil unless both the remaining count and the reset delay parse.
func ParseRateLimit(h http.Header) *RateLimit {
	remaining, err := strconv.Atoi(strings.TrimSpace(h.Get(headerRateLimitRemaining)))
	if err != nil {
		return nil
	}
	resetIn, err := strconv.Atoi(strings.TrimSpace(h.Get(headerRateLimitResetIn)))
	if err != nil {
		return nil
	}

	limit := &RateLimit{Remaining: remaining, ResetIn: resetIn}
	if v, err := strconv.Atoi(strings.TrimSpace(h.Get(headerRateLimitLimit))); err == nil {
		limit.Limit = v
	}
	if v, err := strconv.ParseInt(strings.TrimSpace(h.Get(headerRateLimitReset)), 10, 64); err == nil {
		limit.Reset = v
	}
	return limit
}

// errorFromResponse builds an *APIError from a non-200 response.
func errorFromResponse(resp *http.Response) *APIError {
	body := readBodyForError(resp.Body)

	var payload struct {
		Code  int    `json:"code"`
		Error string `json:"error"`
	}
	message := strings.TrimSpace(string(body))
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error != "" {
		message = payload.Error
	}

	return newAPIError(resp.StatusCode, message, ParseRateLimit(resp.Header))
}

// readBodyForError reads at most maxErrorBodySize bytes of r.
func readBodyForError(r io.Reader) []byte {
	body, err := io.ReadAll(io.LimitReader(r, maxErrorBodySize))
	if err != nil {
		return []byte("(failed to read response body)")
	}
	if len(body) == maxErrorBodySize {
		return append(body, []byte("\n... (truncated)")...)
	}
	return body
}
