package cooldown

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"regexp"
	"strings"
	"syscall"
)

// HTTPError reports a non-success HTTP status from an upstream request.
// Executors return it so the classifier can recognize rate limiting.
type HTTPError struct {
	StatusCode int
	URL        string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.StatusCode, e.URL)
}

// Classify maps a request error to a cooldown reason, or "" when the error
// is not cooldown-worthy and the caller must decide. Typed errors are
// checked first (they cover the errors Go's transport actually produces),
// then the substring table, first match wins.
func Classify(err error) Reason {
	if err == nil {
		return ""
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusTooManyRequests {
		return ReasonRateLimited
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return ReasonDNSFailure
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ReasonTimeout
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ReasonTimeout
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) {
		return ReasonConnectionError
	}

	msg := err.Error()
	switch {
	case containsAny(msg, "ENOTFOUND", "EHOSTUNREACH"):
		return ReasonDNSFailure
	case containsAny(msg, "timeout", "ETIMEDOUT"):
		return ReasonTimeout
	case containsAny(msg, "socket disconnected", "socket hang up", "ECONNRESET",
		"ECONNREFUSED", "certificate", "SSL", "TLS"):
		return ReasonConnectionError
	}
	return ""
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

const maxErrorMessageLen = 200

var keyParamPattern = regexp.MustCompile(`(?i)(key|api[_-]?key|token)=[^&\s"']+`)

// sanitizeMessage trims an error message for the cooldown record and masks
// credential query parameters, which otherwise leak into the state file via
// transport error text.
func sanitizeMessage(msg string) string {
	msg = keyParamPattern.ReplaceAllString(msg, "$1=REDACTED")
	if len(msg) > maxErrorMessageLen {
		msg = msg[:maxErrorMessageLen] + "..."
	}
	return msg
}
