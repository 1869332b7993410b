// Copyright 2026 The Lattice Authors
// SPDX-License-Identifier: Apache-2.0

package tasksync

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/lattice-ml/lattice/lib/clock"
	"github.com/lattice-ml/lattice/lib/sse"
	"github.com/lattice-ml/lattice/lib/taskstore"
	"github.com/lattice-ml/lattice/lib/testutil"
)

const waitTimeout = 5 * time.Second

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// fakeTransport hands out a fakeStream per Connect call and reports
// every attempt on attempts, including failed ones.
type fakeTransport struct {
	mutex      sync.Mutex
	connectErr error
	attempts   chan *fakeStream
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{attempts: make(chan *fakeStream, 16)}
}

func (transport *fakeTransport) failConnects(err error) {
	transport.mutex.Lock()
	defer transport.mutex.Unlock()
	transport.connectErr = err
}

func (transport *fakeTransport) Connect(ctx context.Context) (Stream, error) {
	transport.mutex.Lock()
	err := transport.connectErr
	transport.mutex.Unlock()

	stream := newFakeStream()
	transport.attempts <- stream
	if err != nil {
		return nil, err
	}
	return stream, nil
}

type frame struct {
	event sse.Event
	err   error
}

type fakeStream struct {
	frames    chan frame
	closed    chan struct{}
	closeOnce sync.Once
}

func newFakeStream() *fakeStream {
	return &fakeStream{frames: make(chan frame, 16), closed: make(chan struct{})}
}

func (stream *fakeStream) Next(ctx context.Context) (sse.Event, error) {
	select {
	case next := <-stream.frames:
		return next.event, next.err
	case <-stream.closed:
		return sse.Event{}, &TransportError{Err: errStreamClosed}
	case <-ctx.Done():
		return sse.Event{}, ctx.Err()
	}
}

func (stream *fakeStream) Close() error {
	stream.closeOnce.Do(func() { close(stream.closed) })
	return nil
}

func (stream *fakeStream) send(eventType, data string) {
	stream.frames <- frame{event: sse.Event{Type: eventType, Data: data}}
}

func (stream *fakeStream) fail(err error) {
	stream.frames <- frame{err: err}
}

func (stream *fakeStream) isClosed() bool {
	select {
	case <-stream.closed:
		return true
	default:
		return false
	}
}

type managerHarness struct {
	manager   *Manager
	store     *taskstore.Store
	transport *fakeTransport
	clock     *clock.FakeClock
}

func newManagerHarness(t *testing.T) *managerHarness {
	t.Helper()
	harness := &managerHarness{
		store:     taskstore.New(),
		transport: newFakeTransport(),
		clock:     clock.Fake(epoch),
	}
	manager, err := NewManager(ManagerConfig{
		Store:     harness.store,
		Transport: harness.transport,
		Clock:     harness.clock,
		Logger:    discardLogger(),
	})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	harness.manager = manager
	t.Cleanup(manager.Disconnect)
	return harness
}

// open connects and waits for the stream to be attached.
func (harness *managerHarness) open(t *testing.T) *fakeStream {
	t.Helper()
	harness.manager.Connect()
	stream := testutil.RequireReceive(t, harness.transport.attempts, waitTimeout, "waiting for connect")
	harness.waitState(t, Open)
	return stream
}

func (harness *managerHarness) waitState(t *testing.T, want ConnectionState) {
	t.Helper()
	testutil.Eventually(t, waitTimeout, func() bool {
		return harness.manager.State() == want
	}, "waiting for state %s", want)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var errServerGone = errors.New("server gone")
