package gelf

import (
	"errors"
	"fmt"
)

// ErrConnectTimeout tags connection attempts that were aborted because the
// dial deadline expired, so callers can tell a slow endpoint apart from a
// refusing one with errors.Is.
var ErrConnectTimeout = errors.New("connect timeout")

// ErrCertValidation tags TLS connection attempts that failed peer identity
// validation. These are never retried with relaxed verification; set
// InsecureSkipVerify explicitly if that is really what you want.
var ErrCertValidation = errors.New("TLS peer validation failed")

// ErrTransportClosed is reported through the error handler when a record is
// submitted after Shutdown has released the transport.
var ErrTransportClosed = errors.New("transport closed")

// OversizedMessageError is returned synchronously from the datagram send
// path when a rendered message exceeds the per-datagram ceiling. The message
// is neither sent nor queued; it is never silently truncated.
type OversizedMessageError struct {
	Size  int
	Limit int
}

func (e *OversizedMessageError) Error() string {
	return fmt.Sprintf(
		"message of %d bytes exceeds the %d byte datagram limit; use the tcp or tls transport for large messages",
		e.Size, e.Limit)
}

// QueueOverflowError reports records dropped due to queue overflow. It is
// not fatal: delivery continues, and the notification is rate limited under
// sustained overflow. Dropped carries the running dropped-message count at
// the time the notification fired.
type QueueOverflowError struct {
	Dropped uint64
	Policy  OverflowPolicy
}

func (e *QueueOverflowError) Error() string {
	return fmt.Sprintf("message queue overflow (%s): %d messages dropped so far", e.Policy, e.Dropped)
}
