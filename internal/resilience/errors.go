package resilience

import (
	"errors"
	"net"
	"strings"
	"syscall"
)

// IsTransient reports whether err (or any error in its chain) is a network
// failure worth retrying: timeouts, resets, refused or dropped connections.
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
	for _, p := range []string{
		"connection reset by peer",
		"broken pipe",
		"tls handshake timeout",
		"i/o timeout",
		"server closed idle connection",
		"unexpected eof",
		"client.timeout exceeded",
	} {
		if strings.Contains(msg, p) {
			return true
		}
	}

	return false
}

// IsRetryableStatus reports whether an HTTP status from an LLM vendor should
// be retried: rate limiting and upstream gateway failures only.
func IsRetryableStatus(statusCode int) bool {
	switch statusCode {
	case 429, // Too Many Requests
		502, // Bad Gateway
		503, // Service Unavailable
		504: // Gateway Timeout
		return true
	default:
		return false
	}
}
