package infraprobe

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"strings"
	"syscall"
)

var (
	// ErrTimeout indicates that a probe exceeded its deadline.
	ErrTimeout = errors.New("probe timeout")
	// ErrConnectionRefused indicates that the service refused the connection.
	ErrConnectionRefused = errors.New("connection refused")
	// ErrUnhealthy indicates that the service reported an unhealthy state.
	ErrUnhealthy = errors.New("service unhealthy")
)

// classification is the category/detail pair derived from a probe error.
type classification struct {
	Category StatusCategory
	Detail   string
}

// classifyError determines the classification of a probe outcome:
// 1. ClassifiedError interface
// 2. Sentinel errors
// 3. Platform error detection
// 4. Fallback → error/error
func classifyError(err error) classification {
	if err == nil {
		return classification{Category: StatusOK, Detail: string(StatusOK)}
	}

	var ce ClassifiedError
	if errors.As(err, &ce) {
		return classification{Category: ce.StatusCategory(), Detail: ce.StatusDetail()}
	}

	if errors.Is(err, ErrTimeout) {
		return classification{Category: StatusTimeout, Detail: "timeout"}
	}
	if errors.Is(err, ErrConnectionRefused) {
		return classification{Category: StatusConnectionError, Detail: "connection_refused"}
	}
	if errors.Is(err, ErrUnhealthy) {
		return classification{Category: StatusUnhealthy, Detail: "unhealthy"}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return classification{Category: StatusTimeout, Detail: "timeout"}
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return classification{Category: StatusDNSError, Detail: "dns_error"}
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if isSyscallConnectionRefused(opErr.Err) {
			return classification{Category: StatusConnectionError, Detail: "connection_refused"}
		}
		if opErr.Timeout() {
			return classification{Category: StatusTimeout, Detail: "timeout"}
		}
		if opErr.Op == "dial" {
			return classification{Category: StatusConnectionError, Detail: "dial_error"}
		}
	}

	var certErr *tls.CertificateVerificationError
	if errors.As(err, &certErr) {
		return classification{Category: StatusTLSError, Detail: "tls_error"}
	}
	if isTLSError(err) {
		return classification{Category: StatusTLSError, Detail: "tls_error"}
	}

	// Drivers that flatten the error chain still mention the refusal.
	if strings.Contains(err.Error(), "connection refused") {
		return classification{Category: StatusConnectionError, Detail: "connection_refused"}
	}

	return classification{Category: StatusError, Detail: "error"}
}

// isSyscallConnectionRefused checks if the error is ECONNREFUSED.
func isSyscallConnectionRefused(err error) bool {
	var sysErr *syscall.Errno
	if errors.As(err, &sysErr) {
		return *sysErr == syscall.ECONNREFUSED
	}
	return errors.Is(err, syscall.ECONNREFUSED)
}

// isTLSError checks if the error message indicates a TLS error.
func isTLSError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "tls:") ||
		strings.Contains(msg, "x509:") ||
		strings.Contains(msg, "certificate")
}

// IsConnectionFailure reports whether the category means the service was
// never reached.
func IsConnectionFailure(c StatusCategory) bool {
	switch c {
	case StatusConnectionError, StatusTimeout, StatusDNSError, StatusTLSError:
		return true
	}
	return false
}
