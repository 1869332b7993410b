// Copyright 2026 The Lattice Authors
// SPDX-License-Identifier: Apache-2.0

package tasksync

import (
	"context"
	"errors"

	"github.com/lattice-ml/lattice/lib/sse"
)

// EventStreamOpen is a synthetic event type a [Stream] returns from
// Next after it has re-established a dropped connection on its own.
// No server event uses this name.
const EventStreamOpen = "lattice.stream_open"

// Transport opens push connections.
type Transport interface {
	// Connect performs the stream handshake. A nil error means the
	// stream is open. Returned errors are treated as terminal.
	Connect(ctx context.Context) (Stream, error)
}

// Stream is one open push connection.
type Stream interface {
	// Next blocks until the next event arrives. An error for which
	// [IsTransient] is true means the connection dropped and the stream
	// is retrying on its own: the caller keeps calling Next, and the
	// stream reports recovery with an [EventStreamOpen] event. Any other
	// error is terminal and the stream must not be used again.
	Next(ctx context.Context) (sse.Event, error)

	// Close releases the connection. It unblocks a pending Next and is
	// safe to call more than once.
	Close() error
}

// TransportError wraps a stream failure with its classification.
type TransportError struct {
	// Transient is true when the stream is retrying the connection
	// itself.
	Transient bool
	Err       error
}

func (e *TransportError) Error() string {
	if e.Transient {
		return "tasksync: stream interrupted: " + e.Err.Error()
	}
	return "tasksync: stream failed: " + e.Err.Error()
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsTransient reports whether err is a [TransportError] marked
// transient.
func IsTransient(err error) bool {
	var transportErr *TransportError
	return errors.As(err, &transportErr) && transportErr.Transient
}

// ErrRetriesExhausted is wrapped by a terminal stream error after the
// stream gave up re-establishing a dropped connection.
var ErrRetriesExhausted = errors.New("tasksync: stream retries exhausted")
