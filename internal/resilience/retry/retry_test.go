package retry

import (
	"context"
	"errors"
	"net"
	"strings"
	"syscall"
	"testing"
	"time"
)

func fastConfig() Config {
	return Config{
		MaxAttempts:    3,
		InitialDelay:   time.Millisecond,
		MaxDelay:       5 * time.Millisecond,
		Multiplier:     2.0,
		JitterFraction: 0,
	}
}

func TestWithBackoff_SucceedsAfterRetry(t *testing.T) {
	calls := 0
	err := WithBackoff(context.Background(), fastConfig(), func() error {
		calls++
		if calls < 3 {
			return syscall.ECONNREFUSED
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WithBackoff: %v", err)
	}
	if calls != 3 {
		t.Fatalf("calls=%d, want 3", calls)
	}
}

func TestWithBackoff_ExhaustsAttempts(t *testing.T) {
	calls := 0
	err := WithBackoff(context.Background(), fastConfig(), func() error {
		calls++
		return syscall.ECONNRESET
	})
	if err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
	if calls != 3 {
		t.Fatalf("calls=%d, want 3", calls)
	}
	if !errors.Is(err, syscall.ECONNRESET) {
		t.Fatalf("err=%v, want wrapped last error", err)
	}
	if !strings.Contains(err.Error(), "max retry attempts") {
		t.Fatalf("err=%v", err)
	}
}

func TestWithBackoff_NonRetryableAbortsImmediately(t *testing.T) {
	sentinel := errors.New("bad request")
	calls := 0
	err := WithBackoff(context.Background(), fastConfig(), func() error {
		calls++
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("err=%v, want sentinel", err)
	}
	if calls != 1 {
		t.Fatalf("calls=%d, want 1", calls)
	}
}

func TestWithBackoff_ContextCancelStopsWaiting(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := fastConfig()
	cfg.InitialDelay = time.Hour

	calls := 0
	err := WithBackoff(ctx, cfg, func() error {
		calls++
		return syscall.ECONNREFUSED
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Fatalf("calls=%d, want 1", calls)
	}
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

var _ net.Error = timeoutErr{}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "context canceled", err: context.Canceled, want: false},
		{name: "deadline exceeded", err: context.DeadlineExceeded, want: false},
		{name: "connection refused", err: syscall.ECONNREFUSED, want: true},
		{name: "network timeout", err: timeoutErr{}, want: true},
		{name: "http 500", err: &HTTPError{StatusCode: 500, Message: "boom"}, want: true},
		{name: "http 429", err: &HTTPError{StatusCode: 429, Message: "slow down"}, want: true},
		{name: "http 408", err: &HTTPError{StatusCode: 408, Message: "timeout"}, want: true},
		{name: "http 400", err: &HTTPError{StatusCode: 400, Message: "bad"}, want: false},
		{name: "http 404", err: &HTTPError{StatusCode: 404, Message: "missing"}, want: false},
		{name: "plain error", err: errors.New("boom"), want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Fatalf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestHTTPError_Error(t *testing.T) {
	err := &HTTPError{StatusCode: 503, Message: "unavailable"}
	if got := err.Error(); got != "HTTP 503: unavailable" {
		t.Fatalf("Error() = %q", got)
	}
}
