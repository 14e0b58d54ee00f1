package resilience

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"syscall"
)

// NetworkError wraps a connection-level failure (timeout, refused, reset).
// It is retried with backoff and then recorded as a dropped URL.
type NetworkError struct {
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error for %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// RateLimitError is returned for 429/503/504 responses. It penalizes the host
// and triggers fallback; it never aborts a run.
type RateLimitError struct {
	Host       string
	StatusCode int
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited by %s (status %d)", e.Host, e.StatusCode)
}

// HTTPStatusError is a terminal non-2xx response for a single URL.
type HTTPStatusError struct {
	URL        string
	StatusCode int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.StatusCode, e.URL)
}

// PenalizedError is returned without any network call when the target host
// is under penalty.
type PenalizedError struct {
	Host string
}

func (e *PenalizedError) Error() string {
	return fmt.Sprintf("host %s is penalized", e.Host)
}

// ValidationError carries the reason code of a rejected candidate.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Reason
}

// ConfigurationError is fatal and aborts a run before network activity.
type ConfigurationError struct {
	Problems []string
}

func (e *ConfigurationError) Error() string {
	return "invalid configuration: " + strings.Join(e.Problems, "; ")
}

// NewRateLimitError builds a RateLimitError for host.
func NewRateLimitError(host string, statusCode int) *RateLimitError {
	return &RateLimitError{Host: HostKey(host), StatusCode: statusCode}
}

// IsRateLimit reports whether err is (or wraps) a RateLimitError.
func IsRateLimit(err error) bool {
	var rl *RateLimitError
	return errors.As(err, &rl)
}

// IsNetwork reports whether err is (or wraps) a NetworkError.
func IsNetwork(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}

// IsPenalized reports whether err is (or wraps) a PenalizedError.
func IsPenalized(err error) bool {
	var pe *PenalizedError
	return errors.As(err, &pe)
}

// IsConfiguration reports whether err is (or wraps) a ConfigurationError.
func IsConfiguration(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

// IsRetryable reports whether err should be retried by the fetch layer:
// rate limits and transient network failures are, everything else is not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if IsRateLimit(err) || IsNetwork(err) {
		return true
	}
	return IsTransient(err)
}

// IsTransient returns true if err matches common transient network error
// patterns (timeouts, connection resets, DNS failures).
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	msg := strings.ToLower(err.Error())
	transientPatterns := []string{
		"connection reset by peer",
		"connection refused",
		"broken pipe",
		"temporary failure in name resolution",
		"tls handshake timeout",
		"i/o timeout",
		"server closed idle connection",
		"context deadline exceeded",
		"client.timeout exceeded",
	}
	for _, p := range transientPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}

	return false
}

// IsRateLimitStatus returns true for the statuses treated as rate limits.
func IsRateLimitStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusTooManyRequests,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}
