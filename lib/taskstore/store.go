// Copyright 2026 The Lattice Authors
// SPDX-License-Identifier: Apache-2.0

package taskstore

import (
	"errors"
	"sort"
	"sync"

	"github.com/lattice-ml/lattice/lib/schema/task"
)

// ErrEmptyTaskID is returned by Merge for an update without a task id.
var ErrEmptyTaskID = errors.New("taskstore: update has no task_id")

// Event kinds.
const (
	KindMerge  = "merge"
	KindRemove = "remove"
)

// Event describes one change to the store.
type Event struct {
	Kind string

	// Record is the merged record for KindMerge and the removed record
	// for KindRemove.
	Record task.StatusRecord

	// Version is the store version after the change.
	Version uint64
}

// subscriberBuffer is the channel capacity given to each subscriber.
const subscriberBuffer = 64

// Store holds the latest known status record per task id. The zero
// value is not usable; call [New].
type Store struct {
	mutex       sync.RWMutex
	records     map[string]task.StatusRecord
	version     uint64
	subscribers []chan Event
}

// New returns an empty Store.
func New() *Store {
	return &Store{records: make(map[string]task.StatusRecord)}
}

// Merge inserts update, or shallow-merges it into the existing record
// for the same task id, and returns the resulting record. Only an empty
// task id is rejected; every other update is stored as received.
func (store *Store) Merge(update task.StatusRecord) (task.StatusRecord, error) {
	if update.TaskID == "" {
		return task.StatusRecord{}, ErrEmptyTaskID
	}

	store.mutex.Lock()
	merged := store.records[update.TaskID].Merge(update)
	store.records[update.TaskID] = merged
	store.version++
	store.dispatchLocked(Event{Kind: KindMerge, Record: merged.Clone(), Version: store.version})
	store.mutex.Unlock()

	return merged.Clone(), nil
}

// Get returns a copy of the record for taskID.
func (store *Store) Get(taskID string) (task.StatusRecord, bool) {
	store.mutex.RLock()
	defer store.mutex.RUnlock()
	record, exists := store.records[taskID]
	if !exists {
		return task.StatusRecord{}, false
	}
	return record.Clone(), true
}

// Remove deletes the record for taskID. Removing an unknown id is a
// no-op and does not notify subscribers.
func (store *Store) Remove(taskID string) {
	store.mutex.Lock()
	record, exists := store.records[taskID]
	if !exists {
		store.mutex.Unlock()
		return
	}
	delete(store.records, taskID)
	store.version++
	store.dispatchLocked(Event{Kind: KindRemove, Record: record, Version: store.version})
	store.mutex.Unlock()
}

// Version returns a counter that increases on every change. Views can
// compare versions to skip redundant renders.
func (store *Store) Version() uint64 {
	store.mutex.RLock()
	defer store.mutex.RUnlock()
	return store.version
}

// Len returns the number of records.
func (store *Store) Len() int {
	store.mutex.RLock()
	defer store.mutex.RUnlock()
	return len(store.records)
}

// All returns copies of every record, ordered by task id.
func (store *Store) All() []task.StatusRecord {
	store.mutex.RLock()
	records := make([]task.StatusRecord, 0, len(store.records))
	for _, record := range store.records {
		records = append(records, record.Clone())
	}
	store.mutex.RUnlock()

	sort.Slice(records, func(i, j int) bool {
		return records[i].TaskID < records[j].TaskID
	})
	return records
}

// Subscribe returns a channel that receives an Event for every change.
// A subscriber that falls more than a buffer behind misses events; it
// should re-read current state from the store rather than rely on
// seeing every intermediate update.
func (store *Store) Subscribe() <-chan Event {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	channel := make(chan Event, subscriberBuffer)
	store.subscribers = append(store.subscribers, channel)
	return channel
}

// Unsubscribe stops delivery to channel and closes it.
func (store *Store) Unsubscribe(channel <-chan Event) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	subscribers := make([]chan Event, 0, len(store.subscribers))
	for _, subscriber := range store.subscribers {
		if subscriber == channel {
			close(subscriber)
			continue
		}
		subscribers = append(subscribers, subscriber)
	}
	store.subscribers = subscribers
}

// dispatchLocked delivers event to every subscriber. Must be called with
// the write lock held, which keeps delivery in version order and makes
// it impossible to send on a channel Unsubscribe has closed. Sends never
// block.
func (store *Store) dispatchLocked(event Event) {
	for _, subscriber := range store.subscribers {
		select {
		case subscriber <- event:
		default:
		}
	}
}
