// Copyright 2026 The Lattice Authors
// SPDX-License-Identifier: Apache-2.0

package tasksync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lattice-ml/lattice/lib/clock"
	"github.com/lattice-ml/lattice/lib/schema/task"
	"github.com/lattice-ml/lattice/lib/taskapi"
	"github.com/lattice-ml/lattice/lib/taskstore"
)

// ClientConfig configures a Client.
type ClientConfig struct {
	// API performs REST calls and, unless Transport is set, opens the
	// push stream. Required.
	API *taskapi.Client

	// Store is the cache to keep in sync. Nil creates an empty one.
	Store *taskstore.Store

	// Transport overrides the push transport built from API.
	Transport Transport

	// StreamPath, RetryDelay and MaxTransientRetries configure the
	// default HTTPTransport.
	StreamPath          string
	RetryDelay          time.Duration
	MaxTransientRetries int

	// ReconnectDelay is passed to the Manager.
	ReconnectDelay time.Duration

	// ReconcileConcurrency is passed to the Reconciler.
	ReconcileConcurrency int

	// Clock is shared by every component. Nil means the real clock.
	Clock clock.Clock

	// Logger is used for structured logging. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// Client is the process-wide task status surface for view code: the
// store's queries plus the push connection, reconciliation and
// revocation. Create one per process and share it.
type Client struct {
	store      *taskstore.Store
	manager    *Manager
	reconciler *Reconciler
	revoker    *Revoker
	clock      clock.Clock
	logger     *slog.Logger
}

// NewClient wires a Client from config. The push connection is not
// opened until Connect.
func NewClient(config ClientConfig) (*Client, error) {
	if config.API == nil {
		return nil, errors.New("tasksync: ClientConfig.API is required")
	}
	store := config.Store
	if store == nil {
		store = taskstore.New()
	}
	clk := config.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	transport := config.Transport
	if transport == nil {
		httpTransport, err := NewHTTPTransport(HTTPTransportConfig{
			Client:              config.API,
			Path:                config.StreamPath,
			RetryDelay:          config.RetryDelay,
			MaxTransientRetries: config.MaxTransientRetries,
			Clock:               clk,
			Logger:              logger,
		})
		if err != nil {
			return nil, err
		}
		transport = httpTransport
	}

	manager, err := NewManager(ManagerConfig{
		Store:          store,
		Transport:      transport,
		Clock:          clk,
		ReconnectDelay: config.ReconnectDelay,
		Logger:         logger,
	})
	if err != nil {
		return nil, err
	}
	reconciler, err := NewReconciler(ReconcilerConfig{
		API:         config.API,
		Store:       store,
		Clock:       clk,
		Concurrency: config.ReconcileConcurrency,
		Logger:      logger,
	})
	if err != nil {
		return nil, err
	}
	revoker, err := NewRevoker(config.API)
	if err != nil {
		return nil, err
	}

	return &Client{
		store:      store,
		manager:    manager,
		reconciler: reconciler,
		revoker:    revoker,
		clock:      clk,
		logger:     logger,
	}, nil
}

// Store returns the underlying cache.
func (c *Client) Store() *taskstore.Store { return c.store }

// Manager returns the push connection manager.
func (c *Client) Manager() *Manager { return c.manager }

// Connect opens the push connection if it is not already open.
func (c *Client) Connect() { c.manager.Connect() }

// Disconnect closes the push connection and cancels any pending
// reconnect.
func (c *Client) Disconnect() { c.manager.Disconnect() }

// Healthy reports push connection health.
func (c *Client) Healthy() bool { return c.manager.Healthy() }

// SubscribeHealth returns a channel of health changes.
func (c *Client) SubscribeHealth() <-chan bool { return c.manager.SubscribeHealth() }

// UnsubscribeHealth releases a channel from SubscribeHealth.
func (c *Client) UnsubscribeHealth(channel <-chan bool) { c.manager.UnsubscribeHealth(channel) }

// Subscribe returns a channel of store changes.
func (c *Client) Subscribe() <-chan taskstore.Event { return c.store.Subscribe() }

// Unsubscribe releases a channel from Subscribe.
func (c *Client) Unsubscribe(channel <-chan taskstore.Event) { c.store.Unsubscribe(channel) }

// TaskStatus returns the cached record for taskID.
func (c *Client) TaskStatus(taskID string) (task.StatusRecord, bool) {
	return c.store.Get(taskID)
}

// ListForEntity returns the cached tasks acting on an entity, newest
// first.
func (c *Client) ListForEntity(entityType, entityID string) []task.StatusRecord {
	return c.store.ListForEntity(entityType, entityID)
}

// LatestForEntity returns the newest cached task matching query.
func (c *Client) LatestForEntity(query taskstore.EntityQuery) (task.StatusRecord, bool) {
	return c.store.LatestForEntity(query)
}

// FetchAndMerge reconciles one task from the server.
func (c *Client) FetchAndMerge(ctx context.Context, taskID string) (task.StatusRecord, error) {
	return c.reconciler.FetchAndMerge(ctx, taskID)
}

// ReconcileActive re-reads every cached task that has not reached a
// terminal status. Callers use it after the push connection recovers
// from an outage, since updates sent while it was down are not
// replayed.
func (c *Client) ReconcileActive(ctx context.Context) error {
	var taskIDs []string
	for _, record := range c.store.All() {
		if !record.Terminal() {
			taskIDs = append(taskIDs, record.TaskID)
		}
	}
	if len(taskIDs) == 0 {
		return nil
	}
	c.logger.Info("reconciling active tasks", "count", len(taskIDs))
	return c.reconciler.FetchAndMergeAll(ctx, taskIDs)
}

// Revoke requests cancellation of taskID. The store is not modified.
func (c *Client) Revoke(ctx context.Context, taskID string, options taskapi.RevokeOptions) (*task.RevokeResponse, error) {
	return c.revoker.Revoke(ctx, taskID, options)
}

// RevokeAndConfirm revokes taskID, waits delay for the worker to act,
// then reconciles the task so the store reflects the outcome even if
// the push connection is down.
func (c *Client) RevokeAndConfirm(ctx context.Context, taskID string, options taskapi.RevokeOptions, delay time.Duration) (task.StatusRecord, error) {
	if _, err := c.revoker.Revoke(ctx, taskID, options); err != nil {
		return task.StatusRecord{}, err
	}
	if delay > 0 {
		select {
		case <-c.clock.After(delay):
		case <-ctx.Done():
			return task.StatusRecord{}, fmt.Errorf("tasksync: confirming revoke of %s: %w", taskID, ctx.Err())
		}
	}
	return c.reconciler.FetchAndMerge(ctx, taskID)
}
