package resilience

import (
	"errors"
	"fmt"
	"syscall"
	"testing"
	"time"
)

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"transient error", NewTransientError(errors.New("503"), 503), true},
		{"wrapped transient", fmt.Errorf("fetch page: %w", NewTransientError(errors.New("502"), 502)), true},
		{"rate limit", NewRateLimitError(errors.New("429"), 5*time.Second), true},
		{"auth expiry", &AuthExpiredError{Err: errors.New("401")}, false},
		{"plain error", errors.New("bad request"), false},
		{"connection reset", syscall.ECONNRESET, true},
		{"connection refused", syscall.ECONNREFUSED, true},
		{"reset by message", errors.New("read tcp: connection reset by peer"), true},
		{"io timeout message", errors.New("dial tcp: i/o timeout"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.want {
				t.Errorf("IsTransient(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestIsAuthExpired(t *testing.T) {
	ae := &AuthExpiredError{Err: errors.New("401")}
	if !IsAuthExpired(ae) {
		t.Error("expected auth expiry to be detected")
	}
	if !IsAuthExpired(fmt.Errorf("list folders: %w", ae)) {
		t.Error("expected auth expiry to be detected through wrapping")
	}
	if IsAuthExpired(NewTransientError(errors.New("503"), 503)) {
		t.Error("a transient error is not an auth expiry")
	}
	if IsAuthExpired(nil) {
		t.Error("nil is not an auth expiry")
	}
}

func TestRetryAfterOf(t *testing.T) {
	if got := RetryAfterOf(NewRateLimitError(errors.New("429"), 17*time.Second)); got != 17*time.Second {
		t.Errorf("expected 17s, got %v", got)
	}
	wrapped := fmt.Errorf("fetch page: %w", NewRateLimitError(errors.New("429"), 3*time.Second))
	if got := RetryAfterOf(wrapped); got != 3*time.Second {
		t.Errorf("expected 3s through wrapping, got %v", got)
	}
	if got := RetryAfterOf(NewTransientError(errors.New("503"), 503)); got != 0 {
		t.Errorf("expected zero for a plain transient error, got %v", got)
	}
	if got := RetryAfterOf(errors.New("whatever")); got != 0 {
		t.Errorf("expected zero for a plain error, got %v", got)
	}
}

func TestTransientError_Unwrap(t *testing.T) {
	inner := errors.New("root cause")
	te := NewTransientError(inner, 500)
	if !errors.Is(te, inner) {
		t.Error("expected errors.Is to reach the wrapped error")
	}
	if te.Error() != "root cause" {
		t.Errorf("expected message passthrough, got %q", te.Error())
	}
}

func TestIsTransientHTTPStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		if !IsTransientHTTPStatus(code) {
			t.Errorf("expected %d to be transient", code)
		}
	}
	for _, code := range []int{200, 301, 400, 401, 403, 404, 422} {
		if IsTransientHTTPStatus(code) {
			t.Errorf("expected %d not to be transient", code)
		}
	}
}
