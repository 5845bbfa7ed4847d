// Package retry provides exponential backoff with jitter for outbound API
// calls. Only errors classified as transient are retried; context
// cancellation stops the loop immediately.
package retry

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"net"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Policy controls the retry loop.
type Policy struct {
	// Attempts is the total number of tries including the first. Zero or
	// negative falls back to 3.
	Attempts int

	// BaseDelay seeds the exponential backoff. Default 500ms.
	BaseDelay time.Duration

	// MaxDelay caps a single backoff sleep. Default 15s.
	MaxDelay time.Duration

	// Jitter is the fraction of the computed delay randomized in both
	// directions. Default 0.25.
	Jitter float64

	// Transient overrides the default transient-error check when set.
	Transient func(err error) bool
}

// DefaultPolicy is tuned for rate-limited HTTP APIs.
func DefaultPolicy() Policy {
	return Policy{
		Attempts:  3,
		BaseDelay: 500 * time.Millisecond,
		MaxDelay:  15 * time.Second,
		Jitter:    0.25,
	}
}

func (p Policy) withDefaults() Policy {
	if p.Attempts <= 0 {
		p.Attempts = 3
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = 500 * time.Millisecond
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = 15 * time.Second
	}
	if p.Jitter < 0 {
		p.Jitter = 0
	}
	if p.Transient == nil {
		p.Transient = IsTransient
	}
	return p
}

// Do runs fn until it succeeds, fails permanently, or the attempts are
// exhausted. The last error is returned verbatim so callers can still unwrap
// it.
func Do[T any](ctx context.Context, p Policy, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	p = p.withDefaults()

	var zero T
	var lastErr error
	for attempt := 0; attempt < p.Attempts; attempt++ {
		val, err := fn(ctx)
		if err == nil {
			return val, nil
		}
		lastErr = err

		if ctx.Err() != nil || !p.Transient(err) || attempt == p.Attempts-1 {
			return zero, lastErr
		}

		delay := p.backoff(attempt)
		zap.L().Warn("retrying after transient error",
			zap.String("operation", op),
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(err),
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, lastErr
		case <-timer.C:
		}
	}
	return zero, lastErr
}

func (p Policy) backoff(attempt int) time.Duration {
	delay := float64(p.BaseDelay) * math.Pow(2, float64(attempt))
	if delay > float64(p.MaxDelay) {
		delay = float64(p.MaxDelay)
	}
	if p.Jitter > 0 {
		delay += (rand.Float64()*2 - 1) * delay * p.Jitter
	}
	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}

// IsTransient reports whether an error looks safe to retry: network
// timeouts, dropped connections, and the throttling/overload responses
// rate-limited APIs return.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, pattern := range []string{
		"connection reset by peer",
		"broken pipe",
		"no such host",
		"tls handshake timeout",
		"i/o timeout",
		"rate limit",
		"overloaded",
		"429",
		"502",
		"503",
		"529",
	} {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}
