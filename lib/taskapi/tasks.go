// Copyright 2026 The Lattice Authors
// SPDX-License-Identifier: Apache-2.0

package taskapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/lattice-ml/lattice/lib/schema/task"
)

// ErrEmptyTaskID is returned for calls without a task id.
var ErrEmptyTaskID = errors.New("taskapi: task id is required")

// TaskStatus reads the authoritative status of one task.
func (c *Client) TaskStatus(ctx context.Context, taskID string) (*task.RemoteStatus, error) {
	if taskID == "" {
		return nil, ErrEmptyTaskID
	}
	var response task.RemoteStatus
	if err := c.doJSON(ctx, http.MethodGet, taskPath(taskID), nil, nil, &response); err != nil {
		return nil, fmt.Errorf("taskapi: reading status of %s: %w", taskID, err)
	}
	return &response, nil
}

// RevokeOptions control how a running task is cancelled.
type RevokeOptions struct {
	// Terminate asks the worker to kill a task that is already
	// executing, not just drop it from the queue.
	Terminate bool

	// Signal is the signal sent when terminating (e.g., "TERM", "KILL").
	// Empty means "TERM".
	Signal string
}

// DefaultRevokeOptions terminates with SIGTERM.
func DefaultRevokeOptions() RevokeOptions {
	return RevokeOptions{Terminate: true, Signal: "TERM"}
}

// Revoke asks the worker pool to cancel a task. The response only
// confirms the request was accepted; the resulting status change is
// reported later by the event stream or a status read.
func (c *Client) Revoke(ctx context.Context, taskID string, options RevokeOptions) (*task.RevokeResponse, error) {
	if taskID == "" {
		return nil, ErrEmptyTaskID
	}
	signal := options.Signal
	if signal == "" {
		signal = "TERM"
	}
	query := url.Values{
		"terminate": {strconv.FormatBool(options.Terminate)},
		"signal":    {signal},
	}
	var response task.RevokeResponse
	if err := c.doJSON(ctx, http.MethodPost, taskPath(taskID, "/revoke"), query, nil, &response); err != nil {
		return nil, fmt.Errorf("taskapi: revoking %s: %w", taskID, err)
	}
	c.logger.Info("task revoke requested",
		"task_id", taskID,
		"terminate", options.Terminate,
		"signal", signal,
	)
	return &response, nil
}
