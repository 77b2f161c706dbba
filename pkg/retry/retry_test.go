package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"tcgsync/pkg/config"
	errs "tcgsync/pkg/errors"
)

func fastConfig(attempts int) *Config {
	cfg := DefaultConfig()
	cfg.MaxAttempts = attempts
	cfg.Backoff = &ConstantBackoff{Delay: time.Millisecond}
	return cfg
}

func TestExponentialBackoff(t *testing.T) {
	eb := &ExponentialBackoff{
		BaseDelay:  100 * time.Millisecond,
		MaxDelay:   1 * time.Second,
		Multiplier: 2.0,
	}

	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, 0},
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{4, 800 * time.Millisecond},
		{5, 1 * time.Second},
		{10, 1 * time.Second},
	}

	for _, tt := range tests {
		if got := eb.NextDelay(tt.attempt); got != tt.expected {
			t.Errorf("attempt %d: expected %v, got %v", tt.attempt, tt.expected, got)
		}
	}
}

func TestExponentialBackoffWithJitter(t *testing.T) {
	eb := &ExponentialBackoff{
		BaseDelay:    100 * time.Millisecond,
		MaxDelay:     1 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.1,
	}

	for i := 0; i < 20; i++ {
		delay := eb.NextDelay(2)
		if delay < 180*time.Millisecond || delay > 220*time.Millisecond {
			t.Errorf("delay %v outside jitter range", delay)
		}
	}
}

func TestDoSucceedsAfterTransientFailures(t *testing.T) {
	attempts := 0
	var retried []int

	cfg := fastConfig(3)
	cfg.OnRetry = func(attempt int, err error, delay time.Duration) {
		retried = append(retried, attempt)
	}

	err := Do(context.Background(), func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return errs.New(errs.ErrorTypeNetwork, "connection reset")
		}
		return nil
	}, cfg)

	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
	if len(retried) != 2 {
		t.Errorf("expected 2 retry callbacks, got %v", retried)
	}
}

func TestDoMaxAttemptsKeepsErrorType(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return &errs.Error{Type: errs.ErrorTypeServerError, Code: 503, Message: "unavailable"}
	}, fastConfig(2))

	if err == nil {
		t.Fatal("expected error")
	}
	if attempts != 2 {
		t.Errorf("expected 2 attempts, got %d", attempts)
	}
	if errs.TypeOf(err) != errs.ErrorTypeServerError {
		t.Errorf("expected server error type to survive wrapping, got %q", errs.TypeOf(err))
	}
}

func TestDoStopsOnNonRetryableError(t *testing.T) {
	cases := []error{
		errs.NewAuthError("session expired", 401),
		errs.NewNotFoundError("ABC"),
		errs.NewParseError("missing orderNumber", nil),
	}

	for _, want := range cases {
		attempts := 0
		err := Do(context.Background(), func(ctx context.Context) error {
			attempts++
			return want
		}, fastConfig(5))

		if !errors.Is(err, want) {
			t.Errorf("expected %v, got %v", want, err)
		}
		if attempts != 1 {
			t.Errorf("%v: expected 1 attempt, got %d", want, attempts)
		}
	}
}

func TestDoHonoursContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := DefaultConfig()
	cfg.MaxAttempts = 10
	cfg.Backoff = &ConstantBackoff{Delay: time.Second}

	attempts := 0
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	err := Do(ctx, func(ctx context.Context) error {
		attempts++
		return errs.New(errs.ErrorTypeNetwork, "timeout")
	}, cfg)

	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("expected 1 attempt before cancellation, got %d", attempts)
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Error("cancellation did not interrupt the backoff wait")
	}
}

func TestErrorTypeBackoff(t *testing.T) {
	etb := NewErrorTypeBackoff(&ExponentialBackoff{
		BaseDelay:  100 * time.Millisecond,
		MaxDelay:   time.Second,
		Multiplier: 2,
	})

	network := etb.For(errs.New(errs.ErrorTypeNetwork, "x")).NextDelay(1)
	rateLimit := etb.For(errs.New(errs.ErrorTypeRateLimit, "x")).NextDelay(1)
	server := etb.For(errs.New(errs.ErrorTypeServerError, "x")).NextDelay(1)

	if network != 100*time.Millisecond {
		t.Errorf("network delay = %v", network)
	}
	if rateLimit != time.Second {
		t.Errorf("rate limit delay = %v, want 1s", rateLimit)
	}
	if server != 300*time.Millisecond {
		t.Errorf("server delay = %v, want 300ms", server)
	}
	if etb.For(errors.New("plain")) != etb.Default {
		t.Error("untyped errors should use the default strategy")
	}
}

func TestFromConfig(t *testing.T) {
	rc := config.DefaultConfig().Retry
	cfg := FromConfig(rc, nil)

	if cfg.MaxAttempts != rc.MaxAttempts {
		t.Errorf("MaxAttempts = %d, want %d", cfg.MaxAttempts, rc.MaxAttempts)
	}
	if _, ok := cfg.Backoff.(*ErrorTypeBackoff); !ok {
		t.Errorf("expected error-type backoff, got %T", cfg.Backoff)
	}
	if cfg.Logger == nil {
		t.Error("expected a default logger")
	}
}

func TestDoWithResult(t *testing.T) {
	attempts := 0
	got, err := DoWithResult(context.Background(), func(ctx context.Context) (string, error) {
		attempts++
		if attempts == 1 {
			return "", errs.New(errs.ErrorTypeRateLimit, "slow down")
		}
		return "page-html", nil
	}, fastConfig(3))

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "page-html" {
		t.Errorf("expected page-html, got %q", got)
	}
}

func TestDefaultRetryIf(t *testing.T) {
	timeout := errs.Wrap(errs.ErrorTypeNetwork, "request failed",
		fmt.Errorf("Get \"http://x\": %w (Client.Timeout exceeded)", context.DeadlineExceeded))

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"client timeout", timeout, true},
		{"bare deadline", context.DeadlineExceeded, false},
		{"cancelled", fmt.Errorf("fetch: %w", context.Canceled), false},
		{"too many requests", &errs.Error{Type: errs.ErrorTypeRateLimit, Code: 429}, true},
		{"bad gateway", &errs.Error{Type: errs.ErrorTypeServerError, Code: 502}, true},
		{"unexpected status", &errs.Error{Type: errs.ErrorTypeUnknown, Code: 418}, false},
		{"rejected", errs.NewAuthError("session rejected", 401), false},
		{"login redirect", errs.NewAuthError("redirected", 0), false},
		{"not found", errs.NewNotFoundError("X"), false},
		{"parse", errs.NewParseError("bad", errors.New("eof")), false},
		{"untyped", errors.New("connection reset"), true},
	}
	for _, tt := range tests {
		if got := DefaultRetryIf(tt.err); got != tt.want {
			t.Errorf("%s: DefaultRetryIf = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestDoRetriesClientTimeout(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func(ctx context.Context) error {
		calls++
		return errs.Wrap(errs.ErrorTypeNetwork, "request failed", context.DeadlineExceeded)
	}, fastConfig(3))

	if calls != 3 {
		t.Errorf("Expected 3 attempts for a timed out request, got %d", calls)
	}
	if errs.TypeOf(err) != errs.ErrorTypeNetwork {
		t.Errorf("Expected network error after retries, got %v", err)
	}
}
