// Copyright 2026 The Lattice Authors
// SPDX-License-Identifier: Apache-2.0

package tasksync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/lattice-ml/lattice/lib/clock"
	"github.com/lattice-ml/lattice/lib/schema/task"
	"github.com/lattice-ml/lattice/lib/taskstore"
)

// DefaultReconcileConcurrency bounds parallel status reads in
// FetchAndMergeAll.
const DefaultReconcileConcurrency = 4

// StatusReader reads one task's authoritative status.
// *taskapi.Client implements it.
type StatusReader interface {
	TaskStatus(ctx context.Context, taskID string) (*task.RemoteStatus, error)
}

// ReconcilerConfig configures a Reconciler.
type ReconcilerConfig struct {
	// API performs the status reads. Required.
	API StatusReader

	// Store receives the merged records. Required.
	Store *taskstore.Store

	// Clock stamps reconciled records. Nil means the real clock.
	Clock clock.Clock

	// Concurrency bounds FetchAndMergeAll. Zero means
	// DefaultReconcileConcurrency.
	Concurrency int

	// Logger is used for structured logging. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// Reconciler pulls task status over REST and merges it into the store.
type Reconciler struct {
	api         StatusReader
	store       *taskstore.Store
	clock       clock.Clock
	concurrency int
	logger      *slog.Logger
}

// NewReconciler validates config and returns a Reconciler.
func NewReconciler(config ReconcilerConfig) (*Reconciler, error) {
	if config.API == nil {
		return nil, errors.New("tasksync: ReconcilerConfig.API is required")
	}
	if config.Store == nil {
		return nil, errors.New("tasksync: ReconcilerConfig.Store is required")
	}
	reconciler := &Reconciler{
		api:         config.API,
		store:       config.Store,
		clock:       config.Clock,
		concurrency: config.Concurrency,
		logger:      config.Logger,
	}
	if reconciler.clock == nil {
		reconciler.clock = clock.Real()
	}
	if reconciler.concurrency <= 0 {
		reconciler.concurrency = DefaultReconcileConcurrency
	}
	if reconciler.logger == nil {
		reconciler.logger = slog.Default()
	}
	return reconciler, nil
}

// FetchAndMerge reads the task's status and merges it, stamped with the
// current local time, into the store. It returns the merged record. On
// any error the store is left unchanged.
//
// The REST response has no task name, job type or entity reference, so
// those fields of an existing record survive the merge.
func (r *Reconciler) FetchAndMerge(ctx context.Context, taskID string) (task.StatusRecord, error) {
	if taskID == "" {
		return task.StatusRecord{}, taskstore.ErrEmptyTaskID
	}
	remote, err := r.api.TaskStatus(ctx, taskID)
	if err != nil {
		return task.StatusRecord{}, fmt.Errorf("tasksync: reconciling %s: %w", taskID, err)
	}

	update := remote.Record(r.clock.Now())
	if update.TaskID == "" {
		update.TaskID = taskID
	} else if update.TaskID != taskID {
		return task.StatusRecord{}, fmt.Errorf("tasksync: reconciling %s: server answered for task %s", taskID, update.TaskID)
	}

	merged, err := r.store.Merge(update)
	if err != nil {
		return task.StatusRecord{}, fmt.Errorf("tasksync: reconciling %s: %w", taskID, err)
	}
	r.logger.Debug("task reconciled", "task_id", taskID, "status", merged.StatusValue())
	return merged, nil
}

// FetchAndMergeAll reconciles each task id with bounded concurrency.
// Every id is attempted; the returned error joins the failures.
func (r *Reconciler) FetchAndMergeAll(ctx context.Context, taskIDs []string) error {
	var group errgroup.Group
	group.SetLimit(r.concurrency)

	var mutex sync.Mutex
	var failures []error
	for _, taskID := range taskIDs {
		group.Go(func() error {
			if _, err := r.FetchAndMerge(ctx, taskID); err != nil {
				mutex.Lock()
				failures = append(failures, err)
				mutex.Unlock()
			}
			return nil
		})
	}
	group.Wait()
	return errors.Join(failures...)
}
