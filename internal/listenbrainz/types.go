// Listenimport - ListenBrainz Listen History Importer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/listenimport

package listenbrainz

import (
	"errors"
	"fmt"
	"time"
)

// ListenType is the listen_type field of a submit-listens request.
type ListenType string

const (
	ListenTypeSingle     ListenType = "single"
	ListenTypePlayingNow ListenType = "playing_now"
	ListenTypeImport     ListenType = "import"
)

// SubmitListens is the body of POST /1/submit-listens.
type SubmitListens struct {
	ListenType ListenType `json:"listen_type"`
	Payload    []Payload  `json:"payload"`
}

// Payload is a single listen in a submit-listens request.
type Payload struct {
	ListenedAt    int64         `json:"listened_at,omitempty"`
	TrackMetadata TrackMetadata `json:"track_metadata"`
}

// TrackMetadata describes the listened track.
type TrackMetadata struct {
	ArtistName     string         `json:"artist_name"`
	TrackName      string         `json:"track_name"`
	ReleaseName    string         `json:"release_name,omitempty"`
	AdditionalInfo map[string]any `json:"additional_info,omitempty"`
}

// SubmitResponse is returned for an accepted submit-listens request.
type SubmitResponse struct {
	Status string `json:"status"`

	// RateLimit is nil when the server sent no rate limit headers.
	RateLimit *RateLimit `json:"-"`
}

// TokenValidation is the body of GET /1/validate-token.
type TokenValidation struct {
	Code     int    `json:"code"`
	Message  string `json:"message"`
	Valid    bool   `json:"valid"`
	UserName string `json:"user_name,omitempty"`
}

// RateLimit is the server-reported quota snapshot from the X-RateLimit-* headers.
type RateLimit struct {
	// Limit is the number of requests allowed per window.
	Limit int

	// Remaining is the number of requests left in the current window.
	Remaining int

	// ResetIn is the number of seconds until the window resets.
	ResetIn int

	// Reset is the unix time the window resets, zero when not reported.
	Reset int64
}

// Exhausted reports whether no requests remain in the current window.
func (r RateLimit) Exhausted() bool {
	return r.Remaining <= 0
}

// ResetDuration returns ResetIn as a duration.
func (r RateLimit) ResetDuration() time.Duration {
	if r.ResetIn <= 0 {
		return 0
	}
	return time.Duration(r.ResetIn) * time.Second
}

// Sentinel errors wrapped by APIError.
var (
	ErrUnauthorized = errors.New("listenbrainz: unauthorized")
	ErrRateLimited  = errors.New("listenbrainz: rate limited")
	ErrBadRequest   = errors.New("listenbrainz: bad request")
	ErrServer       = errors.New("listenbrainz: server error")
)

// APIError is returned for any non-200 response.
type APIError struct {
	StatusCode int
	Message    string
	RateLimit  *RateLimit
	kind       error
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("listenbrainz: HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("listenbrainz: HTTP %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.kind
}

// Temporary reports whether retrying the same request later may succeed.
func (e *APIError) Temporary() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}

func newAPIError(status int, message string, limit *RateLimit) *APIError {
	var kind error
	switch {
	case status == 401 || status == 403:
		kind = ErrUnauthorized
	case status == 429:
		kind = ErrRateLimited
	case status >= 500:
		kind = ErrServer
	case status >= 400:
		kind = ErrBadRequest
	}
	return &APIError{StatusCode: status, Message: message, RateLimit: limit, kind: kind}
}
