package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

var (
	// ErrTransient marks failures worth retrying: timeouts, rate limits,
	// temporary unavailability.
	ErrTransient = errors.New("transient provider error")
	// ErrPermanent marks failures that will not succeed on retry: malformed
	// requests, authentication failures, rejected content.
	ErrPermanent = errors.New("permanent provider error")
)

// StatusError carries a non-2xx upstream response.
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	body := e.Body
	if len(body) > 200 {
		body = body[:200]
	}
	return fmt.Sprintf("%s error: status %d, body: %s", e.Provider, e.StatusCode, body)
}

// Unwrap maps the status code onto ErrTransient or ErrPermanent.
func (e *StatusError) Unwrap() error {
	if transientStatus(e.StatusCode) {
		return ErrTransient
	}
	return ErrPermanent
}

func transientStatus(code int) bool {
	switch code {
	case http.StatusRequestTimeout, http.StatusTooEarly, http.StatusTooManyRequests:
		return true
	}
	return code >= 500
}

// Transient wraps err so that IsTransient reports true.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrTransient, err)
}

// Permanent wraps err so that IsPermanent reports true.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrPermanent, err)
}

// IsTransient reports whether err should be retried. Explicit classification
// wins; otherwise per-call deadlines and network errors count as transient.
// Cancellation by the caller is never transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrPermanent) {
		return false
	}
	if errors.Is(err, ErrTransient) {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var nerr net.Error
	return errors.As(err, &nerr)
}

// IsPermanent reports whether err must not be retried.
func IsPermanent(err error) bool {
	return err != nil && !IsTransient(err)
}
