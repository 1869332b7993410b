// Copyright 2026 The Lattice Authors
// SPDX-License-Identifier: Apache-2.0

package tasksync

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/lattice-ml/lattice/lib/clock"
	"github.com/lattice-ml/lattice/lib/schema/task"
	"github.com/lattice-ml/lattice/lib/sse"
	"github.com/lattice-ml/lattice/lib/taskstore"
)

// DefaultReconnectDelay is the wait between a terminal stream failure
// and the next connection attempt.
const DefaultReconnectDelay = 5 * time.Second

// healthBuffer is the channel capacity given to each health subscriber.
const healthBuffer = 16

// ConnectionState is the lifecycle state of the push connection.
type ConnectionState int

const (
	// Disconnected: no connection and no attempt in progress. A
	// reconnect may be scheduled.
	Disconnected ConnectionState = iota

	// Connecting: a handshake is in progress, or an open stream is
	// re-establishing a dropped connection on its own.
	Connecting

	// Open: events are flowing.
	Open
)

func (s ConnectionState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Open:
		return "open"
	default:
		return "unknown"
	}
}

// ManagerConfig configures a Manager.
type ManagerConfig struct {
	// Store receives every task update. Required.
	Store *taskstore.Store

	// Transport opens push connections. Required.
	Transport Transport

	// Clock schedules reconnects and stamps heartbeats. Nil means the
	// real clock.
	Clock clock.Clock

	// ReconnectDelay is the wait after a terminal failure. Zero means
	// DefaultReconnectDelay.
	ReconnectDelay time.Duration

	// Logger is used for structured logging. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// Manager owns the single push connection and merges its task updates
// into the store.
//
// Every connection attempt gets a generation number. The reader
// goroutine and any scheduled reconnect carry the generation they were
// started for and do nothing once it is stale, so Disconnect (which
// bumps the generation) wins against a reconnect timer that has
// already fired.
type Manager struct {
	store          *taskstore.Store
	transport      Transport
	clock          clock.Clock
	reconnectDelay time.Duration
	logger         *slog.Logger

	mutex          sync.Mutex
	state          ConnectionState
	healthy        bool
	generation     uint64
	cancel         context.CancelFunc
	stream         Stream
	reconnectTimer *clock.Timer
	openedAt       time.Time
	lastHeartbeat  time.Time
	healthChannels []chan bool
}

// NewManager validates config and returns a disconnected Manager.
func NewManager(config ManagerConfig) (*Manager, error) {
	if config.Store == nil {
		return nil, errors.New("tasksync: ManagerConfig.Store is required")
	}
	if config.Transport == nil {
		return nil, errors.New("tasksync: ManagerConfig.Transport is required")
	}
	manager := &Manager{
		store:          config.Store,
		transport:      config.Transport,
		clock:          config.Clock,
		reconnectDelay: config.ReconnectDelay,
		logger:         config.Logger,
	}
	if manager.clock == nil {
		manager.clock = clock.Real()
	}
	if manager.reconnectDelay <= 0 {
		manager.reconnectDelay = DefaultReconnectDelay
	}
	if manager.logger == nil {
		manager.logger = slog.Default()
	}
	return manager, nil
}

// Connect starts a connection attempt in the background. It does
// nothing while a connection is open or being established. A pending
// reconnect is cancelled in favor of this attempt.
func (m *Manager) Connect() {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.connectLocked()
}

func (m *Manager) connectLocked() {
	if m.state == Connecting || m.state == Open {
		return
	}
	m.stopReconnectLocked()
	m.closeStreamLocked()

	m.generation++
	generation := m.generation
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.state = Connecting

	m.logger.Debug("task stream connecting", "generation", generation)
	go m.run(ctx, generation)
}

// Disconnect closes the connection and cancels any pending reconnect.
// Safe to call in any state. Store contents are kept.
func (m *Manager) Disconnect() {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.generation++
	m.stopReconnectLocked()
	m.closeStreamLocked()
	previous := m.state
	m.state = Disconnected
	m.setHealthLocked(false)
	if previous != Disconnected {
		m.logger.Info("task stream disconnected")
	}
}

// State returns the connection state.
func (m *Manager) State() ConnectionState {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.state
}

// Healthy reports whether the push connection has opened and not
// failed terminally since.
func (m *Manager) Healthy() bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.healthy
}

// SubscribeHealth returns a channel that receives the new health value
// on every change. A subscriber that falls behind misses changes;
// call [Manager.Healthy] for the current value.
func (m *Manager) SubscribeHealth() <-chan bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	channel := make(chan bool, healthBuffer)
	m.healthChannels = append(m.healthChannels, channel)
	return channel
}

// UnsubscribeHealth removes and closes a channel returned by
// SubscribeHealth.
func (m *Manager) UnsubscribeHealth(channel <-chan bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	for index, candidate := range m.healthChannels {
		if candidate == channel {
			m.healthChannels = append(m.healthChannels[:index], m.healthChannels[index+1:]...)
			close(candidate)
			return
		}
	}
}

// LastHeartbeat returns the local time the most recent heartbeat was
// received, and false if none has been received.
func (m *Manager) LastHeartbeat() (time.Time, bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.lastHeartbeat, !m.lastHeartbeat.IsZero()
}

// HeartbeatStale reports whether the connection is open but nothing
// has proven it alive for longer than threshold: no heartbeat since
// the later of the open time and the last heartbeat.
func (m *Manager) HeartbeatStale(threshold time.Duration) bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.state != Open {
		return false
	}
	since := m.openedAt
	if m.lastHeartbeat.After(since) {
		since = m.lastHeartbeat
	}
	return m.clock.Now().Sub(since) > threshold
}

// run is the reader goroutine for one generation.
func (m *Manager) run(ctx context.Context, generation uint64) {
	stream, err := m.transport.Connect(ctx)
	if err != nil {
		m.fail(generation, err)
		return
	}
	if !m.attach(generation, stream) {
		stream.Close()
		return
	}

	for {
		event, err := stream.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if IsTransient(err) {
				if !m.interrupted(generation) {
					return
				}
				continue
			}
			m.fail(generation, err)
			return
		}
		if !m.handle(generation, event) {
			return
		}
	}
}

// attach records an open stream. It returns false if the generation
// went stale during the handshake.
func (m *Manager) attach(generation uint64, stream Stream) bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if generation != m.generation {
		return false
	}
	m.stream = stream
	m.markOpenLocked()
	return true
}

func (m *Manager) markOpenLocked() {
	m.state = Open
	m.openedAt = m.clock.Now()
	m.setHealthLocked(true)
	m.logger.Info("task stream open", "generation", m.generation)
}

// interrupted moves an open stream to Connecting while it retries on
// its own. Health is left as is: a transient drop is not reported to
// consumers.
func (m *Manager) interrupted(generation uint64) bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if generation != m.generation {
		return false
	}
	m.state = Connecting
	return true
}

// fail handles a terminal error: drop the connection, report unhealthy
// and schedule one reconnect.
func (m *Manager) fail(generation uint64, err error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if generation != m.generation {
		return
	}

	m.closeStreamLocked()
	m.state = Disconnected
	m.setHealthLocked(false)
	m.logger.Warn("task stream failed, reconnect scheduled",
		"error", err,
		"reconnect_in", m.reconnectDelay,
	)

	m.stopReconnectLocked()
	m.reconnectTimer = m.clock.AfterFunc(m.reconnectDelay, func() {
		m.reconnect(generation)
	})
}

func (m *Manager) reconnect(generation uint64) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if generation != m.generation {
		return
	}
	m.reconnectTimer = nil
	m.connectLocked()
}

// handle applies one stream event. It returns false if the generation
// went stale.
func (m *Manager) handle(generation uint64, event sse.Event) bool {
	var update task.StatusRecord
	var heartbeat task.Heartbeat
	switch event.Type {
	case task.EventTaskUpdate:
		decoded, skipped, err := task.DecodeUpdate([]byte(event.Data))
		switch {
		case err != nil:
			m.logger.Warn("dropping malformed task update", "error", err, "event_id", event.ID)
		case decoded.TaskID == "":
			m.logger.Warn("dropping task update without task_id", "event_id", event.ID)
		default:
			update = decoded
			if len(skipped) > 0 {
				m.logger.Warn("task update fields ignored",
					"task_id", update.TaskID, "fields", skipped, "event_id", event.ID)
			}
		}
	case task.EventHeartbeat:
		// Only receipt time drives staleness; the payload is informational.
		if err := json.Unmarshal([]byte(event.Data), &heartbeat); err != nil {
			m.logger.Debug("heartbeat payload not understood", "error", err)
			heartbeat = task.Heartbeat{}
		}
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()
	if generation != m.generation {
		return false
	}

	switch event.Type {
	case EventStreamOpen:
		m.markOpenLocked()
	case task.EventTaskUpdate:
		if update.TaskID == "" {
			return true
		}
		if m.state != Open {
			m.markOpenLocked()
		}
		if _, err := m.store.Merge(update); err != nil {
			m.logger.Warn("task update rejected by store", "task_id", update.TaskID, "error", err)
		}
	case task.EventHeartbeat:
		m.lastHeartbeat = m.clock.Now()
		if heartbeat.Timestamp != nil {
			m.logger.Debug("heartbeat",
				"server_time", heartbeat.Timestamp.Time,
				"clock_skew", m.lastHeartbeat.Sub(heartbeat.Timestamp.Time))
		}
	default:
		m.logger.Debug("ignoring unknown stream event", "type", event.Type)
	}
	return true
}

func (m *Manager) setHealthLocked(healthy bool) {
	if m.healthy == healthy {
		return
	}
	m.healthy = healthy
	for _, channel := range m.healthChannels {
		select {
		case channel <- healthy:
		default:
		}
	}
}

func (m *Manager) stopReconnectLocked() {
	if m.reconnectTimer != nil {
		m.reconnectTimer.Stop()
		m.reconnectTimer = nil
	}
}

func (m *Manager) closeStreamLocked() {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	if m.stream != nil {
		m.stream.Close()
		m.stream = nil
	}
}
