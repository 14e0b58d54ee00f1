package resilience

import (
	"errors"
	"fmt"
	"net"
	"syscall"
	"testing"

	"github.com/rotisserie/eris"
)

func TestIsRateLimit_Wrapped(t *testing.T) {
	err := eris.Wrap(NewRateLimitError("www.googleapis.com", 429), "search: google")
	if !IsRateLimit(err) {
		t.Error("expected wrapped RateLimitError to be detected")
	}
	if !IsRetryable(err) {
		t.Error("rate limit should be retryable")
	}
}

func TestIsNetwork_Wrapped(t *testing.T) {
	err := fmt.Errorf("fetch: %w", &NetworkError{URL: "https://a.de", Err: syscall.ECONNREFUSED})
	if !IsNetwork(err) {
		t.Error("expected wrapped NetworkError to be detected")
	}
	if !IsTransient(err) {
		t.Error("ECONNREFUSED should be transient")
	}
}

func TestIsRetryable_Terminal(t *testing.T) {
	if IsRetryable(&HTTPStatusError{URL: "https://a.de", StatusCode: 404}) {
		t.Error("404 should not be retryable")
	}
	if IsRetryable(&PenalizedError{Host: "a.de"}) {
		t.Error("penalized host should not be retried")
	}
	if IsRetryable(nil) {
		t.Error("nil is not retryable")
	}
}

func TestIsTransient_Patterns(t *testing.T) {
	cases := map[string]bool{
		"read tcp: connection reset by peer":  true,
		"dial tcp: i/o timeout":               true,
		"tls handshake timeout":               true,
		"invalid input: missing field":        false,
		"x509: certificate signed by unknown": false,
	}
	for msg, want := range cases {
		if got := IsTransient(errors.New(msg)); got != want {
			t.Errorf("%q: expected %v, got %v", msg, want, got)
		}
	}
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

var _ net.Error = timeoutErr{}

func TestIsTransient_NetTimeout(t *testing.T) {
	if !IsTransient(fmt.Errorf("get: %w", timeoutErr{})) {
		t.Error("net timeout should be transient")
	}
}

func TestIsRateLimitStatus(t *testing.T) {
	for _, code := range []int{429, 503, 504} {
		if !IsRateLimitStatus(code) {
			t.Errorf("%d should be a rate limit status", code)
		}
	}
	for _, code := range []int{200, 400, 403, 404, 500, 502} {
		if IsRateLimitStatus(code) {
			t.Errorf("%d should not be a rate limit status", code)
		}
	}
}

func TestConfigurationError(t *testing.T) {
	err := eris.Wrap(&ConfigurationError{Problems: []string{"a", "b"}}, "config")
	if !IsConfiguration(err) {
		t.Error("expected configuration error")
	}
	var ce *ConfigurationError
	if !errors.As(err, &ce) || len(ce.Problems) != 2 {
		t.Errorf("unexpected problems: %v", ce)
	}
}
