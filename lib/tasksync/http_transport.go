// Copyright 2026 The Lattice Authors
// SPDX-License-Identifier: Apache-2.0

package tasksync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/lattice-ml/lattice/lib/clock"
	"github.com/lattice-ml/lattice/lib/netutil"
	"github.com/lattice-ml/lattice/lib/sse"
	"github.com/lattice-ml/lattice/lib/taskapi"
)

// Stream retry defaults.
const (
	DefaultRetryDelay          = 3 * time.Second
	DefaultMaxTransientRetries = 5
)

// HTTPTransportConfig configures an HTTPTransport.
type HTTPTransportConfig struct {
	// Client performs the stream requests. Required.
	Client *taskapi.Client

	// Path is the stream endpoint. Empty means taskapi.DefaultStreamPath.
	Path string

	// RetryDelay is the wait before re-opening a dropped connection,
	// until the server overrides it with a "retry:" field. Zero means
	// DefaultRetryDelay.
	RetryDelay time.Duration

	// MaxTransientRetries is the number of consecutive drops a stream
	// absorbs before failing terminally. A received event resets the
	// count. Zero means DefaultMaxTransientRetries; negative disables
	// internal retries.
	MaxTransientRetries int

	// Clock times retry waits. Nil means the real clock.
	Clock clock.Clock

	// Logger is used for structured logging. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// HTTPTransport opens push connections as text/event-stream requests.
type HTTPTransport struct {
	client     *taskapi.Client
	path       string
	retryDelay time.Duration
	maxRetries int
	clock      clock.Clock
	logger     *slog.Logger
}

// NewHTTPTransport validates config and returns an HTTPTransport.
func NewHTTPTransport(config HTTPTransportConfig) (*HTTPTransport, error) {
	if config.Client == nil {
		return nil, errors.New("tasksync: HTTPTransportConfig.Client is required")
	}
	transport := &HTTPTransport{
		client:     config.Client,
		path:       config.Path,
		retryDelay: config.RetryDelay,
		maxRetries: config.MaxTransientRetries,
		clock:      config.Clock,
		logger:     config.Logger,
	}
	if transport.path == "" {
		transport.path = taskapi.DefaultStreamPath
	}
	if transport.retryDelay <= 0 {
		transport.retryDelay = DefaultRetryDelay
	}
	switch {
	case transport.maxRetries == 0:
		transport.maxRetries = DefaultMaxTransientRetries
	case transport.maxRetries < 0:
		transport.maxRetries = 0
	}
	if transport.clock == nil {
		transport.clock = clock.Real()
	}
	if transport.logger == nil {
		transport.logger = slog.Default()
	}
	return transport, nil
}

// Connect opens the stream. Every handshake failure is terminal,
// including network errors: the caller owns reconnect scheduling for a
// connection that never opened.
func (t *HTTPTransport) Connect(ctx context.Context) (Stream, error) {
	body, err := t.client.OpenStream(ctx, taskapi.StreamRequest{Path: t.path})
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	return &httpStream{
		transport:  t,
		body:       body,
		scanner:    sse.NewScanner(body),
		retryDelay: t.retryDelay,
	}, nil
}

// httpStream reads one logical push connection, re-opening the HTTP
// request after a drop with the Last-Event-ID of the last event seen.
type httpStream struct {
	transport *HTTPTransport

	// Next is called from a single goroutine; mutex guards body and
	// closed against a concurrent Close.
	mutex  sync.Mutex
	body   io.ReadCloser
	closed bool

	scanner     *sse.Scanner
	lastEventID string
	retryDelay  time.Duration
	drops       int
}

func (s *httpStream) Next(ctx context.Context) (sse.Event, error) {
	s.mutex.Lock()
	closed, dropped := s.closed, s.body == nil
	s.mutex.Unlock()
	if closed {
		return sse.Event{}, &TransportError{Err: errStreamClosed}
	}
	if dropped {
		return s.reopen(ctx)
	}

	if s.scanner.Next() {
		event := s.scanner.Event()
		s.lastEventID = s.scanner.LastEventID()
		if retry := s.scanner.Retry(); retry > 0 {
			s.retryDelay = retry
		}
		s.drops = 0
		return event, nil
	}

	readErr := s.scanner.Err()
	s.dropBody()
	if ctx.Err() != nil {
		return sse.Event{}, &TransportError{Err: ctx.Err()}
	}
	if s.isClosed() {
		return sse.Event{}, &TransportError{Err: errStreamClosed}
	}
	if readErr != nil && !netutil.IsDroppedConnection(readErr) {
		return sse.Event{}, &TransportError{Err: fmt.Errorf("reading event stream: %w", readErr)}
	}
	if readErr == nil {
		readErr = io.EOF
	}
	s.drops++
	s.transport.logger.Debug("task stream dropped",
		"error", readErr,
		"drops", s.drops,
		"last_event_id", s.lastEventID,
	)
	return sse.Event{}, &TransportError{Transient: true, Err: readErr}
}

// reopen waits the retry delay and re-issues the stream request. A
// network failure counts as another drop; an HTTP rejection is
// terminal.
func (s *httpStream) reopen(ctx context.Context) (sse.Event, error) {
	if s.drops > s.transport.maxRetries {
		return sse.Event{}, &TransportError{Err: fmt.Errorf("%w after %d drops", ErrRetriesExhausted, s.drops)}
	}

	select {
	case <-s.transport.clock.After(s.retryDelay):
	case <-ctx.Done():
		return sse.Event{}, &TransportError{Err: ctx.Err()}
	}

	body, err := s.transport.client.OpenStream(ctx, taskapi.StreamRequest{
		Path:        s.transport.path,
		LastEventID: s.lastEventID,
	})
	if err != nil {
		if ctx.Err() != nil {
			return sse.Event{}, &TransportError{Err: ctx.Err()}
		}
		var apiErr *taskapi.APIError
		if errors.As(err, &apiErr) || errors.Is(err, taskapi.ErrNotEventStream) {
			return sse.Event{}, &TransportError{Err: err}
		}
		s.drops++
		return sse.Event{}, &TransportError{Transient: true, Err: err}
	}

	s.mutex.Lock()
	if s.closed {
		s.mutex.Unlock()
		body.Close()
		return sse.Event{}, &TransportError{Err: errStreamClosed}
	}
	s.body = body
	s.mutex.Unlock()

	s.scanner = sse.NewScanner(body)
	s.transport.logger.Debug("task stream reopened", "last_event_id", s.lastEventID)
	return sse.Event{Type: EventStreamOpen}, nil
}

func (s *httpStream) dropBody() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.body != nil {
		s.body.Close()
		s.body = nil
	}
}

func (s *httpStream) isClosed() bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.closed
}

func (s *httpStream) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.body == nil {
		return nil
	}
	err := s.body.Close()
	s.body = nil
	return err
}

var errStreamClosed = errors.New("stream closed")
