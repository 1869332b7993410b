// Copyright 2026 The Lattice Authors
// SPDX-License-Identifier: Apache-2.0

package taskstore

import (
	"sort"
	"strconv"
	"strings"

	"github.com/lattice-ml/lattice/lib/schema/task"
)

// EntityQuery selects the tasks acting on one domain entity.
type EntityQuery struct {
	// EntityType is matched case-insensitively ("dataset" matches
	// "Dataset"). Records without an entity type never match.
	EntityType string

	// EntityID is compared as a string, so 7 and "7" are the same
	// entity. It is required: an empty EntityID matches nothing.
	EntityID string

	// JobType, when non-empty, restricts matches to records whose
	// job_type is exactly equal.
	JobType string
}

// ListForEntity returns the records for an entity, newest first. See
// [Newer] for the ordering.
func (store *Store) ListForEntity(entityType, entityID string) []task.StatusRecord {
	return store.query(EntityQuery{EntityType: entityType, EntityID: entityID})
}

// LatestForEntity returns the newest record matching query.
func (store *Store) LatestForEntity(query EntityQuery) (task.StatusRecord, bool) {
	matches := store.query(query)
	if len(matches) == 0 {
		return task.StatusRecord{}, false
	}
	return matches[0], true
}

func (store *Store) query(query EntityQuery) []task.StatusRecord {
	if query.EntityID == "" {
		return nil
	}

	store.mutex.RLock()
	var matches []task.StatusRecord
	for _, record := range store.records {
		if query.Matches(record) {
			matches = append(matches, record.Clone())
		}
	}
	store.mutex.RUnlock()

	sort.SliceStable(matches, func(i, j int) bool {
		return Newer(matches[i], matches[j])
	})
	return matches
}

// Matches reports whether record acts on the queried entity and, when
// JobType is set, has that job type.
func (query EntityQuery) Matches(record task.StatusRecord) bool {
	if record.EntityType == nil || !strings.EqualFold(*record.EntityType, query.EntityType) {
		return false
	}
	if record.EntityID == nil || record.EntityID.String() != query.EntityID {
		return false
	}
	if query.JobType != "" && record.JobTypeValue() != query.JobType {
		return false
	}
	return true
}

// Newer reports whether a should be shown before b when picking the
// latest task of an entity. The later timestamp wins; records without a
// timestamp count as the zero time. Equal timestamps fall back to the
// numeric suffix of the task id (producers that start several tasks in
// the same millisecond number them "<prefix>-<n>"), larger first, and
// finally to the task id itself so the order is total.
func Newer(a, b task.StatusRecord) bool {
	timeA, timeB := a.Time(), b.Time()
	if !timeA.Equal(timeB) {
		return timeA.After(timeB)
	}
	suffixA, suffixB := TaskIDSuffix(a.TaskID), TaskIDSuffix(b.TaskID)
	if suffixA != suffixB {
		return suffixA > suffixB
	}
	return a.TaskID > b.TaskID
}

// TaskIDSuffix parses the last "-"-separated segment of taskID as an
// integer. Ids without a numeric last segment yield 0.
func TaskIDSuffix(taskID string) int64 {
	segment := taskID
	if index := strings.LastIndex(taskID, "-"); index >= 0 {
		segment = taskID[index+1:]
	}
	value, err := strconv.ParseInt(segment, 10, 64)
	if err != nil {
		return 0
	}
	return value
}
