package retry

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Policy describes exponential backoff for transient failures. The same
// policy value is shared by the AI client and the comment publisher so
// both surfaces retry identically.
type Policy struct {
	MaxAttempts int           // total attempts including the first (default 4)
	BaseDelay   time.Duration // delay before the second attempt
	MaxDelay    time.Duration // cap on computed delay
	Multiplier  float64       // backoff growth factor
	Jitter      bool          // add ±10% random jitter
}

// DefaultPolicy is tuned for GitLab API calls.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 4,
		BaseDelay:   1 * time.Second,
		MaxDelay:    30 * time.Second,
		Multiplier:  2.0,
		Jitter:      true,
	}
}

// ModelPolicy allows longer waits for slow model backends.
func ModelPolicy() Policy {
	return Policy{
		MaxAttempts: 4,
		BaseDelay:   2 * time.Second,
		MaxDelay:    60 * time.Second,
		Multiplier:  2.5,
		Jitter:      true,
	}
}

// Do runs op until it succeeds, returns a non-retryable error, the
// attempt budget is spent, or ctx is done. The last error is returned.
func (p Policy) Do(ctx context.Context, logger zerolog.Logger, name string, op func() error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = op(); err == nil {
			if attempt > 1 {
				logger.Debug().Str("op", name).Int("attempt", attempt).Msg("succeeded after retry")
			}
			return nil
		}

		if !Retryable(err) || attempt == attempts {
			return err
		}

		delay := p.delay(attempt - 1)
		logger.Warn().Str("op", name).Int("attempt", attempt).Dur("backoff", delay).Err(err).Msg("transient failure, retrying")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return err
}

// delay computes the backoff before attempt n+2 (n is zero-based).
func (p Policy) delay(n int) time.Duration {
	d := float64(p.BaseDelay) * math.Pow(p.Multiplier, float64(n))
	if d > float64(p.MaxDelay) {
		d = float64(p.MaxDelay)
	}
	if p.Jitter {
		spread := d * 0.1
		d += (rand.Float64() - 0.5) * 2 * spread
		if d < 0 {
			d = float64(p.BaseDelay)
		}
	}
	return time.Duration(d)
}

// transientMarkers are substrings that identify errors worth retrying.
// HTTP status codes appear here because both the GitLab client and the
// model backends surface them in error text.
var transientMarkers = []string{
	"connection refused",
	"connection reset",
	"timeout",
	"timed out",
	"temporary failure",
	"service unavailable",
	"too many requests",
	"rate limit",
	"429",
	"500",
	"502",
	"503",
	"504",
	"no such host",
	"network unreachable",
	"broken pipe",
	"eof",
}

// Retryable reports whether err looks transient. Nil errors and context
// cancellation are never retryable.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range transientMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
