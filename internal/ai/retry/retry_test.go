package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errTransient = errors.New("transient")

func classifyTransient(err error) (time.Duration, bool) {
	return 0, errors.Is(err, errTransient)
}

func stubSleep(t *testing.T) *[]time.Duration {
	t.Helper()

	var delays []time.Duration
	original := Sleep
	Sleep = func(_ context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}
	t.Cleanup(func() { Sleep = original })

	return &delays
}

func TestDoRetriesTransientErrors(t *testing.T) {
	delays := stubSleep(t)

	calls := 0
	out, err := Do(context.Background(), Policy{Attempts: 3}, classifyTransient, func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", errTransient
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "ok" {
		t.Fatalf("unexpected output %q", out)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}

	expected := []time.Duration{2 * time.Second, 4 * time.Second}
	if len(*delays) != len(expected) || (*delays)[0] != expected[0] || (*delays)[1] != expected[1] {
		t.Fatalf("unexpected delays %v", *delays)
	}
}

func TestDoStopsAfterAttempts(t *testing.T) {
	stubSleep(t)

	calls := 0
	_, err := Do(context.Background(), Policy{Attempts: 2}, classifyTransient, func(context.Context) (string, error) {
		calls++
		return "", errTransient
	})
	if !errors.Is(err, errTransient) {
		t.Fatalf("expected wrapped transient error, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
}

func TestDoDoesNotRetryPermanentErrors(t *testing.T) {
	delays := stubSleep(t)

	permanent := errors.New("bad request")
	calls := 0
	_, err := Do(context.Background(), Policy{Attempts: 5}, classifyTransient, func(context.Context) (string, error) {
		calls++
		return "", permanent
	})
	if !errors.Is(err, permanent) {
		t.Fatalf("unexpected error %v", err)
	}
	if calls != 1 || len(*delays) != 0 {
		t.Fatalf("expected a single call without waiting, got %d calls and %v", calls, *delays)
	}
}

func TestDoRespectsLongHints(t *testing.T) {
	delays := stubSleep(t)

	calls := 0
	_, err := Do(context.Background(), Policy{Attempts: 3}, func(error) (time.Duration, bool) {
		return time.Minute, true
	}, func(context.Context) (string, error) {
		calls++
		return "", errTransient
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 || len(*delays) != 0 {
		t.Fatalf("expected no retry for a long hint, got %d calls", calls)
	}
}

func TestDoUsesShortHints(t *testing.T) {
	delays := stubSleep(t)

	calls := 0
	_, err := Do(context.Background(), Policy{Attempts: 2}, func(error) (time.Duration, bool) {
		return 5 * time.Second, true
	}, func(context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", errTransient
		}
		return "done", nil
	})
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if len(*delays) != 1 || (*delays)[0] != 5*time.Second {
		t.Fatalf("expected hinted delay, got %v", *delays)
	}
}

func TestDoStopsWhenContextIsDone(t *testing.T) {
	stubSleep(t)

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, err := Do(ctx, Policy{Attempts: 5}, classifyTransient, func(context.Context) (string, error) {
		calls++
		cancel()
		return "", errTransient
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Fatalf("expected a single call, got %d", calls)
	}
}

func TestBackoff(t *testing.T) {
	t.Parallel()

	tests := []struct {
		attempt int
		expect  time.Duration
	}{
		{attempt: 1, expect: 2 * time.Second},
		{attempt: 2, expect: 4 * time.Second},
		{attempt: 4, expect: 16 * time.Second},
		{attempt: 5, expect: 30 * time.Second},
		{attempt: 20, expect: 30 * time.Second},
	}

	for _, tt := range tests {
		if got := Backoff(tt.attempt, DefaultBaseDelay, DefaultMaxDelay); got != tt.expect {
			t.Fatalf("Backoff(%d) = %s, want %s", tt.attempt, got, tt.expect)
		}
	}
}

func TestHintFromMessage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		message string
		expect  time.Duration
	}{
		{message: "quota exhausted, retry after 60 seconds", expect: time.Minute},
		{message: "Please retry in 1.5s.", expect: 1500 * time.Millisecond},
		{message: "Rate limit reached. Please retry after 20ms", expect: 20 * time.Millisecond},
		{message: "retry in 2 minutes", expect: 2 * time.Minute},
		{message: "internal error", expect: 0},
	}

	for _, tt := range tests {
		if got := HintFromMessage(tt.message); got != tt.expect {
			t.Fatalf("HintFromMessage(%q) = %s, want %s", tt.message, got, tt.expect)
		}
	}
}

func TestDoRetriesAttemptThatTimesOut(t *testing.T) {
	delays := stubSleep(t)

	permanent := func(error) (time.Duration, bool) { return 0, false }

	calls := 0
	out, err := Do(context.Background(), Policy{Attempts: 3, AttemptTimeout: 10 * time.Millisecond}, permanent, func(ctx context.Context) (string, error) {
		calls++
		if calls == 1 {
			<-ctx.Done()
			return "", ctx.Err()
		}
		if _, ok := ctx.Deadline(); !ok {
			t.Error("expected every attempt to carry a deadline")
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "ok" || calls != 2 {
		t.Fatalf("expected success on the second attempt, got %q after %d calls", out, calls)
	}
	if len(*delays) != 1 || (*delays)[0] != 2*time.Second {
		t.Fatalf("unexpected delays %v", *delays)
	}
}

func TestDoGivesUpWhenEveryAttemptTimesOut(t *testing.T) {
	stubSleep(t)

	calls := 0
	_, err := Do(context.Background(), Policy{Attempts: 2, AttemptTimeout: 5 * time.Millisecond}, classifyTransient, func(ctx context.Context) (string, error) {
		calls++
		<-ctx.Done()
		return "", ctx.Err()
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
}

func TestDoDoesNotRetryWhenCallerDeadlinePasses(t *testing.T) {
	stubSleep(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	calls := 0
	_, err := Do(ctx, Policy{Attempts: 3, AttemptTimeout: time.Hour}, classifyTransient, func(ctx context.Context) (string, error) {
		calls++
		<-ctx.Done()
		return "", ctx.Err()
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected a single call, got %d", calls)
	}
}
