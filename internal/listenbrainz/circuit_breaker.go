// Listenimport - ListenBrainz Listen History Importer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/listenimport

package listenbrainz

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/tomtom215/listenimport/internal/logging"
	"github.com/tomtom215/listenimport/internal/metrics"
)

// BreakerConfig configures the circuit breaker around a Client.
type BreakerConfig struct {
	// ConsecutiveFailures opens the circuit after this many failed calls in a row.
	ConsecutiveFailures uint32

	// OpenTimeout is how long the circuit stays open before a trial request.
	OpenTimeout time.Duration
}

// DefaultBreakerConfig returns the default breaker settings.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		ConsecutiveFailures: 5,
		OpenTimeout:         time.Minute,
	}
}

// minOpenWait bounds how soon a rejected caller is told to try again.
const minOpenWait = 100 * time.Millisecond

// CircuitOpenError is returned while the breaker rejects calls. RetryIn is
// the time left until the breaker lets a trial request through.
type CircuitOpenError struct {
	RetryIn time.Duration
	err     error
}

func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("circuit breaker: %v (retry in %s)", e.err, e.RetryIn)
}

// Unwrap returns gobreaker.ErrOpenState or gobreaker.ErrTooManyRequests.
func (e *CircuitOpenError) Unwrap() error { return e.err }

// BreakerClient wraps Client with the circuit breaker pattern so that a run
// against an unavailable server stops sending requests while it recovers.
// Rejected calls return a *CircuitOpenError telling the caller how long to
// wait before resending.
type BreakerClient struct {
	client      *Client
	cb          *gobreaker.CircuitBreaker[any]
	name        string
	openTimeout time.Duration
	openedAt    atomic.Int64
}

// NewBreakerClient wraps client with a circuit breaker.
func NewBreakerClient(client *Client, cfg BreakerConfig) *BreakerClient {
	if cfg.ConsecutiveFailures == 0 {
		cfg.ConsecutiveFailures = DefaultBreakerConfig().ConsecutiveFailures
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = DefaultBreakerConfig().OpenTimeout
	}

	cbName := "listenbrainz-api"
	b := &BreakerClient{client: client, name: cbName, openTimeout: cfg.OpenTimeout}
	metrics.CircuitBreakerState.WithLabelValues(cbName).Set(0)
	metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(cbName).Set(0)

	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        cbName,
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,

		ReadyToTrip: func(counts gobreaker.Counts) bool {
			shouldTrip := counts.ConsecutiveFailures >= cfg.ConsecutiveFailures
			if shouldTrip {
				logging.Warn().Uint32("consecutive_failures", counts.ConsecutiveFailures).Msg("[CIRCUIT BREAKER] Opening circuit")
			}
			return shouldTrip
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr := stateToString(from)
			toStr := stateToString(to)

			logging.Info().Str("from", fromStr).Str("to", toStr).Msg("[CIRCUIT BREAKER] State transition")

			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, fromStr, toStr).Inc()
			if to == gobreaker.StateOpen {
				b.openedAt.Store(time.Now().UnixNano())
			}
			if to == gobreaker.StateClosed {
				metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(name).Set(0)
			}
		},

		IsSuccessful: isBreakerSuccess,
	})

	b.cb = cb
	return b
}

// isBreakerSuccess decides which errors count against the circuit. Rejections
// caused by the request itself (bad payload, bad token) say nothing about
// server health.
func isBreakerSuccess(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return !apiErr.Temporary()
	}
	return false
}

// execute wraps an API call with circuit breaker protection.
func (b *BreakerClient) execute(fn func() (any, error)) (any, error) {
	result, err := b.cb.Execute(fn)

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.CircuitBreakerRequests.WithLabelValues(b.name, "rejected").Inc()
			logging.Warn().Err(err).Msg("[CIRCUIT BREAKER] Request rejected")
			return nil, &CircuitOpenError{RetryIn: b.retryIn(), err: err}
		}
		metrics.CircuitBreakerRequests.WithLabelValues(b.name, "failure").Inc()
		counts := b.cb.Counts()
		metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(b.name).Set(float64(counts.ConsecutiveFailures))
		return nil, err
	}

	metrics.CircuitBreakerRequests.WithLabelValues(b.name, "success").Inc()
	metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(b.name).Set(0)
	return result, nil
}

// retryIn returns the time left in the open state.
func (b *BreakerClient) retryIn() time.Duration {
	left := b.openTimeout - time.Since(time.Unix(0, b.openedAt.Load()))
	if left < minOpenWait {
		return minOpenWait
	}
	return left
}

// castResult type-asserts a circuit breaker result.
func castResult[T any](result any, err error) (*T, error) {
	if err != nil {
		return nil, err
	}
	typed, ok := result.(*T)
	if !ok {
		return nil, fmt.Errorf("circuit breaker: unexpected result type %T", result)
	}
	return typed, nil
}

// State returns the current breaker state.
func (b *BreakerClient) State() gobreaker.State {
	return b.cb.State()
}

// ValidateToken validates a token with circuit breaker protection.
func (b *BreakerClient) ValidateToken(ctx context.Context, token string) (*TokenValidation, error) {
	return castResult[TokenValidation](b.execute(func() (any, error) {
		return b.client.ValidateToken(ctx, token)
	}))
}

// SubmitListens submits a batch with circuit breaker protection.
func (b *BreakerClient) SubmitListens(ctx context.Context, token string, req SubmitListens) (*SubmitResponse, error) {
	return castResult[SubmitResponse](b.execute(func() (any, error) {
		return b.client.SubmitListens(ctx, token, req)
	}))
}

// stateToFloat converts circuit breaker state to a numeric metric value.
func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

// stateToString converts circuit breaker state to a log label.
func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}
