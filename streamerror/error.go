/*
 * Copyright (c) 2020 Miguel Ángel Ortuño.
 * See the LICENSE file for more information.
 */

package streamerror

import (
	"errors"
	"fmt"
)

// ErrSessionTimeout is returned when a session could not be established
// within the configured time window.
var ErrSessionTimeout = errors.New("stream: session establishment timed out")

// ErrCertificateExpired is returned when the peer certificate TTL has been
// exhausted and no subscriber is present to handle the expiration event.
var ErrCertificateExpired = errors.New("stream: peer certificate expired")

// FramingError represents a malformed XML condition. Framing errors are
// stream fatal and always tear the connection down.
type FramingError struct {
	Err error
}

func (e *FramingError) Error() string {
	return fmt.Sprintf("stream: malformed XML: %v", e.Err)
}

// Unwrap returns the underlying parser error.
func (e *FramingError) Unwrap() error { return e.Err }

// TransportError represents a connect, read or write failure on the
// underlying transport.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("stream: transport %s error: %v", e.Op, e.Err)
}

// Unwrap returns the underlying transport error.
func (e *TransportError) Unwrap() error { return e.Err }

// SecureChannelError represents a transient TLS write failure. The outbound
// pump retries these up to a configured bound before escalating.
type SecureChannelError struct {
	Err error
}

func (e *SecureChannelError) Error() string {
	return fmt.Sprintf("stream: secure channel error: %v", e.Err)
}

// Unwrap returns the underlying TLS error.
func (e *SecureChannelError) Unwrap() error { return e.Err }

// HandlerError represents a failure raised while executing a stanza handler
// or an event subscriber. Handler errors never abort dispatching to sibling
// handlers.
type HandlerError struct {
	Handler string
	Err     error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("stream: handler '%s' error: %v", e.Handler, e.Err)
}

// Unwrap returns the captured handler error.
func (e *HandlerError) Unwrap() error { return e.Err }
