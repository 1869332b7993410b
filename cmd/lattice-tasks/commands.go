// Copyright 2026 The Lattice Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/pflag"

	"github.com/lattice-ml/lattice/lib/schema/task"
	"github.com/lattice-ml/lattice/lib/taskapi"
	"github.com/lattice-ml/lattice/lib/taskstore"
)

func newCommandFlags(name string) *pflag.FlagSet {
	flagSet := pflag.NewFlagSet(binaryName+" "+name, pflag.ContinueOnError)
	flagSet.SetOutput(io.Discard)
	return flagSet
}

func parseCommandFlags(flagSet *pflag.FlagSet, args []string, wantArgs int, usage string) ([]string, error) {
	if err := flagSet.Parse(args); err != nil {
		return nil, usageError("%s: %v", flagSet.Name(), err)
	}
	if wantArgs >= 0 && flagSet.NArg() != wantArgs {
		return nil, usageError("usage: %s %s", flagSet.Name(), usage)
	}
	return flagSet.Args(), nil
}

// runStatus reconciles one task and prints the merged record.
func runStatus(ctx context.Context, env *environment, args []string) error {
	flagSet := newCommandFlags("status")
	positional, err := parseCommandFlags(flagSet, args, 1, "<task-id>")
	if err != nil {
		return err
	}

	record, err := env.client.FetchAndMerge(ctx, positional[0])
	if err != nil {
		if taskapi.IsNotFound(err) {
			return &exitError{code: exitFailure, err: fmt.Errorf("task %s not found", positional[0])}
		}
		return err
	}
	return env.printer.record(record)
}

// runRevoke requests cancellation. With --confirm it then waits and
// reconciles, printing the resulting record instead of the server's
// acknowledgement.
func runRevoke(ctx context.Context, env *environment, args []string) error {
	options := taskapi.DefaultRevokeOptions()
	var confirm time.Duration

	flagSet := newCommandFlags("revoke")
	flagSet.BoolVar(&options.Terminate, "terminate", options.Terminate, "kill the task if it is already running")
	flagSet.StringVar(&options.Signal, "signal", options.Signal, "signal sent when terminating (TERM, KILL, ...)")
	flagSet.DurationVar(&confirm, "confirm", 0, "wait this long after revoking, then re-read the task status")
	positional, err := parseCommandFlags(flagSet, args, 1, "[--terminate] [--signal SIG] [--confirm DURATION] <task-id>")
	if err != nil {
		return err
	}
	taskID := positional[0]

	if confirm > 0 {
		record, err := env.client.RevokeAndConfirm(ctx, taskID, options, confirm)
		if err != nil {
			return err
		}
		return env.printer.record(record)
	}

	response, err := env.client.Revoke(ctx, taskID, options)
	if err != nil {
		return err
	}
	return env.printer.message(taskID, response.Message)
}

// runLatest connects to the event stream, lets the cache fill for the
// settle period, and prints the newest task for the entity. A task id
// given with --reconcile is read over REST first, so the answer does
// not depend on the task having changed during the settle window.
func runLatest(ctx context.Context, env *environment, args []string) error {
	var query taskstore.EntityQuery
	var settle time.Duration
	var reconcile []string

	flagSet := newCommandFlags("latest")
	flagSet.StringVar(&query.EntityType, "entity-type", "", "entity type, e.g. Dataset (required)")
	flagSet.StringVar(&query.EntityID, "entity-id", "", "entity id (required)")
	flagSet.StringVar(&query.JobType, "job-type", "", "only consider tasks of this job type")
	flagSet.DurationVar(&settle, "settle", 2*time.Second, "how long to collect stream updates before answering")
	flagSet.StringSliceVar(&reconcile, "reconcile", nil, "task ids to read over REST before answering")
	if _, err := parseCommandFlags(flagSet, args, 0, "--entity-type TYPE --entity-id ID [--job-type TYPE] [--settle DURATION]"); err != nil {
		return err
	}
	if query.EntityType == "" || query.EntityID == "" {
		return usageError("latest: --entity-type and --entity-id are required")
	}

	for _, taskID := range reconcile {
		if _, err := env.client.FetchAndMerge(ctx, taskID); err != nil {
			env.logger.Warn("reconcile failed", "task_id", taskID, "error", err)
		}
	}

	env.client.Connect()
	select {
	case <-time.After(settle):
	case <-ctx.Done():
		return ctx.Err()
	}
	if !env.client.Healthy() {
		env.logger.Warn("event stream not connected, answer may be stale")
	}

	record, found := env.client.LatestForEntity(query)
	if !found {
		fmt.Fprintf(env.stderr, "no task found for %s/%s\n", query.EntityType, query.EntityID)
		return notFound()
	}
	return env.printer.record(record)
}

// runWatch prints every cache change and health change until ctx is
// cancelled. Records already cached by --reconcile are printed first.
func runWatch(ctx context.Context, env *environment, args []string) error {
	var entity taskstore.EntityQuery
	var reconcile []string

	flagSet := newCommandFlags("watch")
	flagSet.StringVar(&entity.EntityType, "entity-type", "", "only show tasks for this entity type")
	flagSet.StringVar(&entity.EntityID, "entity-id", "", "only show tasks for this entity id (with --entity-type)")
	flagSet.StringVar(&entity.JobType, "job-type", "", "only show tasks of this job type")
	flagSet.StringSliceVar(&reconcile, "reconcile", nil, "task ids to read over REST before streaming")
	if _, err := parseCommandFlags(flagSet, args, 0, "[--entity-type TYPE --entity-id ID] [--job-type TYPE]"); err != nil {
		return err
	}
	if (entity.EntityType == "") != (entity.EntityID == "") {
		return usageError("watch: --entity-type and --entity-id go together")
	}

	events := env.client.Subscribe()
	defer env.client.Unsubscribe(events)
	health := env.client.SubscribeHealth()
	defer env.client.UnsubscribeHealth(health)

	for _, taskID := range reconcile {
		if _, err := env.client.FetchAndMerge(ctx, taskID); err != nil {
			env.logger.Warn("reconcile failed", "task_id", taskID, "error", err)
		}
	}

	env.client.Connect()

	staleAfter := env.config.HeartbeatStaleAfter()
	staleCheck := time.NewTicker(staleCheckInterval(staleAfter))
	defer staleCheck.Stop()
	reportedStale := false
	connectedBefore := false

	for {
		select {
		case <-ctx.Done():
			return nil
		case event := <-events:
			if !watchFilter(entity, event.Record) {
				continue
			}
			var err error
			if event.Kind == taskstore.KindRemove {
				err = env.printer.removed(event.Record)
			} else {
				err = env.printer.update(event.Record)
			}
			if err != nil {
				return err
			}
		case healthy := <-health:
			if err := env.printer.health(healthy); err != nil {
				return err
			}
			if !healthy {
				continue
			}
			// Updates sent while the stream was down are not replayed.
			if connectedBefore {
				go func() {
					if err := env.client.ReconcileActive(ctx); err != nil {
						env.logger.Warn("reconciling after reconnect", "error", err)
					}
				}()
			}
			connectedBefore = true
		case <-staleCheck.C:
			stale := env.client.Manager().HeartbeatStale(staleAfter)
			if stale && !reportedStale {
				env.logger.Warn("no heartbeat from event stream", "stale_after", staleAfter)
			}
			reportedStale = stale
		}
	}
}

// minStaleCheckInterval bounds how often watch polls heartbeat
// staleness.
const minStaleCheckInterval = 10 * time.Millisecond

// staleCheckInterval is half the staleness threshold, never below
// minStaleCheckInterval.
func staleCheckInterval(staleAfter time.Duration) time.Duration {
	return max(staleAfter/2, minStaleCheckInterval)
}

// watchFilter applies the watch flags. Without an entity only the job
// type (if any) is checked.
func watchFilter(query taskstore.EntityQuery, record task.StatusRecord) bool {
	if query.EntityType == "" {
		return query.JobType == "" || record.JobTypeValue() == query.JobType
	}
	return query.Matches(record)
}
