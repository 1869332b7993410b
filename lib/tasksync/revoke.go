// Copyright 2026 The Lattice Authors
// SPDX-License-Identifier: Apache-2.0

package tasksync

import (
	"context"
	"errors"
	"fmt"

	"github.com/lattice-ml/lattice/lib/schema/task"
	"github.com/lattice-ml/lattice/lib/taskapi"
)

// RevokeRequester sends revocation requests. *taskapi.Client implements
// it.
type RevokeRequester interface {
	Revoke(ctx context.Context, taskID string, options taskapi.RevokeOptions) (*task.RevokeResponse, error)
}

// Revoker asks the server to cancel tasks. It has no access to the
// store: the resulting REVOKED status arrives through the push stream
// or a reconciliation like any other change.
type Revoker struct {
	api RevokeRequester
}

// NewRevoker returns a Revoker sending requests through api.
func NewRevoker(api RevokeRequester) (*Revoker, error) {
	if api == nil {
		return nil, errors.New("tasksync: revoke requester is required")
	}
	return &Revoker{api: api}, nil
}

// Revoke requests cancellation of taskID and returns the server's
// acknowledgement.
func (r *Revoker) Revoke(ctx context.Context, taskID string, options taskapi.RevokeOptions) (*task.RevokeResponse, error) {
	response, err := r.api.Revoke(ctx, taskID, options)
	if err != nil {
		return nil, fmt.Errorf("tasksync: revoke %s: %w", taskID, err)
	}
	return response, nil
}
