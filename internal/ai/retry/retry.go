package retry

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/spigell/segcompare/internal/utils"
	"go.uber.org/zap"
)

const (
	DefaultBaseDelay = 2 * time.Second
	DefaultMaxDelay  = 30 * time.Second
)

// Sleep waits between attempts. Tests replace it.
var Sleep = utils.WaitFor

var retryAfterPattern = regexp.MustCompile(`(?i)retry (?:after|in) (\d+(?:\.\d+)?)\s*(ms|s|sec|secs|second|seconds|m|min|minutes?)\b`)

// Classifier decides whether err is transient. A positive hint overrides the exponential delay.
type Classifier func(err error) (hint time.Duration, retryable bool)

// Policy bounds the number of attempts and the delay between them.
type Policy struct {
	// Attempts is the total number of calls, including the first one.
	Attempts int
	// AttemptTimeout bounds a single call. An attempt that runs out of time is
	// retried while ctx is still live. Zero leaves attempts bounded by ctx only.
	AttemptTimeout time.Duration
	BaseDelay      time.Duration
	MaxDelay       time.Duration
	Logger         *zap.Logger
}

// Do calls fn until it succeeds, returns a non-transient error or the attempts run out.
// A hint longer than MaxDelay stops retrying, since waiting that long would stall the run.
func Do(ctx context.Context, p Policy, classify Classifier, fn func(ctx context.Context) (string, error)) (string, error) {
	p = p.withDefaults()

	for attempt := 1; ; attempt++ {
		out, timedOut, err := p.attempt(ctx, fn)
		if err == nil {
			return out, nil
		}

		if ctx.Err() != nil {
			return "", err
		}

		hint, retryable := classify(err)
		if timedOut {
			hint, retryable = 0, true
		}
		if !retryable {
			return "", err
		}

		if attempt >= p.Attempts {
			return "", fmt.Errorf("giving up after %d attempts: %w", attempt, err)
		}

		if hint > p.MaxDelay {
			return "", fmt.Errorf("retry delay %s exceeds limit %s: %w", hint, p.MaxDelay, err)
		}

		delay := hint
		if delay <= 0 {
			delay = Backoff(attempt, p.BaseDelay, p.MaxDelay)
		}

		p.Logger.Warn("transient error, retrying",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", p.Attempts),
			zap.Duration("delay", delay),
			zap.Error(err),
		)

		if err := Sleep(ctx, delay); err != nil {
			return "", err
		}
	}
}

// attempt runs fn once under the per-attempt deadline and reports whether that deadline fired.
func (p Policy) attempt(ctx context.Context, fn func(ctx context.Context) (string, error)) (string, bool, error) {
	if p.AttemptTimeout <= 0 {
		out, err := fn(ctx)
		return out, false, err
	}

	attemptCtx, cancel := context.WithTimeout(ctx, p.AttemptTimeout)
	defer cancel()

	out, err := fn(attemptCtx)
	if err == nil {
		return out, false, nil
	}

	timedOut := errors.Is(attemptCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil
	if timedOut {
		err = fmt.Errorf("attempt timed out after %s: %w", p.AttemptTimeout, err)
	}
	return "", timedOut, err
}

func (p Policy) withDefaults() Policy {
	if p.Attempts < 1 {
		p.Attempts = 1
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = DefaultBaseDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = DefaultMaxDelay
	}
	if p.Logger == nil {
		p.Logger = zap.NewNop()
	}
	return p
}

// Backoff doubles base for every failed attempt, capped at limit.
func Backoff(attempt int, base, limit time.Duration) time.Duration {
	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= limit {
			return limit
		}
	}
	if delay > limit {
		return limit
	}
	return delay
}

// HintFromMessage extracts delays such as "retry after 60 seconds" from provider error messages.
func HintFromMessage(message string) time.Duration {
	match := retryAfterPattern.FindStringSubmatch(message)
	if match == nil {
		return 0
	}

	value, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return 0
	}

	unit := time.Second
	switch strings.ToLower(match[2]) {
	case "ms":
		unit = time.Millisecond
	case "m", "min", "minute", "minutes":
		unit = time.Minute
	}

	return time.Duration(value * float64(unit))
}
