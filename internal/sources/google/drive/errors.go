package drive

import (
	"errors"
	"fmt"
	"net"
)

// FailureKind classifies a failed Drive API request.
type FailureKind int

const (
	FailureOther FailureKind = iota
	FailureConnectTimeout
	FailureReadTimeout
	FailureHTTPStatus
)

func (k FailureKind) String() string {
	switch k {
	case FailureConnectTimeout:
		return "connection timeout"
	case FailureReadTimeout:
		return "read timeout"
	case FailureHTTPStatus:
		return "http status error"
	default:
		return "other"
	}
}

// Transient reports whether a request failing this way may be retried.
func (k FailureKind) Transient() bool {
	return k == FailureConnectTimeout || k == FailureReadTimeout
}

// RequestError is returned by Client.Fetch. For FailureHTTPStatus, Err is a *googleapi.Error.
type RequestError struct {
	Kind     FailureKind
	URL      string
	Attempts int
	Err      error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("drive request %s failed (%s, %d attempt(s)): %v", e.URL, e.Kind, e.Attempts, e.Err)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is a retryable network timeout.
func IsTransient(err error) bool {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr.Kind.Transient()
	}

	return classifyNetworkError(err).Transient()
}

// RecordError is returned when a single file record cannot be turned into an entity.
// It ends the enumeration.
type RecordError struct {
	Scope string
	ID    string
	Name  string
	Err   error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("failed to process file %q (%s) in %s: %v", e.Name, e.ID, e.Scope, e.Err)
}

func (e *RecordError) Unwrap() error {
	return e.Err
}

// classifyNetworkError separates dial timeouts from timeouts while awaiting or reading a response.
func classifyNetworkError(err error) FailureKind {
	var netErr net.Error
	if !errors.As(err, &netErr) || !netErr.Timeout() {
		return FailureOther
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return FailureConnectTimeout
	}

	return FailureReadTimeout
}
