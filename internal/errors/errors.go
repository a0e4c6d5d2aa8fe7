// Package errors provides error types and handling for the docs playground.
package errors

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
)

// Kind categorizes errors for display and metrics.
type Kind int

const (
	// Unknown is an uncategorized error.
	Unknown Kind = iota
	// Network represents transport failures (DNS, connection refused, reset).
	Network
	// Timeout represents a request that ran past its deadline.
	Timeout
	// Cancelled represents context cancellation.
	Cancelled
	// Parse represents undecodable input (config, registry, JSON).
	Parse
	// Config represents an invalid configuration or registry definition.
	Config
	// NotFound represents an unknown endpoint, environment or language.
	NotFound
	// Unresolved represents a request whose path still has placeholders.
	Unresolved
	// RateLimited represents a request refused by the local rate limiter.
	RateLimited
)

// String returns the string representation of Kind.
func (k Kind) String() string {
	switch k {
	case Network:
		return "network"
	case Timeout:
		return "timeout"
	case Cancelled:
		return "cancelled"
	case Parse:
		return "parse"
	case Config:
		return "config"
	case NotFound:
		return "not_found"
	case Unresolved:
		return "unresolved"
	case RateLimited:
		return "rate_limited"
	default:
		return "unknown"
	}
}

// Sentinel errors, matched by kind with errors.Is.
var (
	ErrUnresolved      = &PlaygroundError{Kind: Unresolved, Message: "path placeholders unresolved"}
	ErrUnknownEndpoint = &PlaygroundError{Kind: NotFound, Message: "unknown endpoint"}
)

// PlaygroundError is a categorized error raised while building or sending a request.
type PlaygroundError struct {
	Kind       Kind
	Endpoint   string
	URL        string
	Operation  string
	Message    string
	Cause      error
	StatusCode int
}

// Error implements the error interface.
func (e *PlaygroundError) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	b.WriteString(" error")
	if e.Operation != "" {
		b.WriteString(" during ")
		b.WriteString(e.Operation)
	}
	if e.Endpoint != "" {
		fmt.Fprintf(&b, " [%s]", e.Endpoint)
	}
	if e.URL != "" {
		b.WriteString(" on ")
		b.WriteString(e.URL)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, " (caused by: %v)", e.Cause)
	}
	return b.String()
}

// Unwrap returns the underlying error.
func (e *PlaygroundError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a PlaygroundError of the same kind.
func (e *PlaygroundError) Is(target error) bool {
	t, ok := target.(*PlaygroundError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// WithEndpoint tags the error with an endpoint key and returns it.
func (e *PlaygroundError) WithEndpoint(key string) *PlaygroundError {
	e.Endpoint = key
	return e
}

// New creates a PlaygroundError.
func New(kind Kind, url, operation, message string, cause error) *PlaygroundError {
	return &PlaygroundError{
		Kind:      kind,
		URL:       url,
		Operation: operation,
		Message:   message,
		Cause:     cause,
	}
}

// NewNetworkError creates a network error.
func NewNetworkError(url, operation string, cause error) *PlaygroundError {
	return New(Network, url, operation, "network failure", cause)
}

// NewTimeoutError creates a timeout error.
func NewTimeoutError(url, operation string, cause error) *PlaygroundError {
	return New(Timeout, url, operation, "request timed out", cause)
}

// NewCancelledError creates a cancelled error.
func NewCancelledError(url, operation string) *PlaygroundError {
	return New(Cancelled, url, operation, "operation cancelled", context.Canceled)
}

// NewParseError creates a parse error.
func NewParseError(source, operation string, cause error) *PlaygroundError {
	return New(Parse, source, operation, "parsing failed", cause)
}

// NewConfigError creates a configuration error.
func NewConfigError(source, message string) *PlaygroundError {
	return New(Config, source, "validate", message, nil)
}

// NewNotFoundError creates a lookup error for an unknown name.
func NewNotFoundError(what, name string) *PlaygroundError {
	return New(NotFound, "", "lookup", fmt.Sprintf("unknown %s %q", what, name), nil)
}

// NewUnresolvedError creates an error listing placeholders left in a path.
func NewUnresolvedError(endpoint, url string, missing []string) *PlaygroundError {
	err := New(Unresolved, url, "resolve", "missing "+strings.Join(missing, ", "), nil)
	err.Endpoint = endpoint
	return err
}

// NewRateLimitedError creates a rate limiter refusal.
func NewRateLimitedError(url string, cause error) *PlaygroundError {
	return New(RateLimited, url, "rate_limit", "request refused by rate limiter", cause)
}

// Categorize determines the error kind of a transport error.
func Categorize(err error, url string) *PlaygroundError {
	if err == nil {
		return nil
	}

	var pe *PlaygroundError
	if errors.As(err, &pe) {
		return pe
	}

	if errors.Is(err, context.Canceled) {
		return NewCancelledError(url, "request")
	}

	if isTimeout(err) {
		return NewTimeoutError(url, "request", err)
	}

	if isNetworkError(err) {
		return NewNetworkError(url, "request", err)
	}

	return New(Unknown, url, "request", err.Error(), err)
}

// isTimeout checks if an error is a timeout.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	errStr := err.Error()
	return strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "deadline exceeded")
}

// isNetworkError checks if an error is network-related.
func isNetworkError(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}

	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EHOSTUNREACH) ||
		errors.Is(err, syscall.ENETUNREACH) {
		return true
	}

	errStr := err.Error()
	return strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "no such host") ||
		strings.Contains(errStr, "dial tcp")
}

// KindOf extracts the kind from an error.
func KindOf(err error) Kind {
	var pe *PlaygroundError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return Unknown
}

// IsUnresolved reports whether err is an unresolved-placeholder error.
func IsUnresolved(err error) bool {
	return errors.Is(err, ErrUnresolved)
}

// IsNotFound reports whether err is an unknown-name lookup error.
func IsNotFound(err error) bool {
	return KindOf(err) == NotFound
}
