// Copyright 2026 The Lattice Authors
// SPDX-License-Identifier: Apache-2.0

package tasksync

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/lattice-ml/lattice/lib/clock"
	"github.com/lattice-ml/lattice/lib/schema/task"
	"github.com/lattice-ml/lattice/lib/taskapi"
	"github.com/lattice-ml/lattice/lib/taskstore"
)

// taskServer is an in-memory stand-in for the task REST endpoints.
type taskServer struct {
	mutex    sync.Mutex
	statuses map[string]string
	revoked  []string
	reads    []string
}

func (server *taskServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	server.mutex.Lock()
	defer server.mutex.Unlock()

	path, found := strings.CutPrefix(r.URL.Path, "/api/v1/tasks/")
	if !found {
		http.NotFound(w, r)
		return
	}
	if taskID, isRevoke := strings.CutSuffix(path, "/revoke"); isRevoke && r.Method == http.MethodPost {
		server.revoked = append(server.revoked, taskID)
		server.statuses[taskID] = "REVOKED"
		fmt.Fprintf(w, `{"message":"Revoke signal sent to task %s"}`, taskID)
		return
	}
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}

	server.reads = append(server.reads, path)
	status, exists := server.statuses[path]
	if !exists {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"detail":"Task not found"}`)
		return
	}
	fmt.Fprintf(w, `{"task_id":%q,"status":%q}`, path, status)
}

func newTestClient(t *testing.T, server *taskServer, clk clock.Clock) *Client {
	t.Helper()
	httpServer := httptest.NewServer(server)
	t.Cleanup(httpServer.Close)

	api, err := taskapi.NewClient(taskapi.ClientConfig{BaseURL: httpServer.URL, Logger: discardLogger()})
	if err != nil {
		t.Fatalf("taskapi.NewClient: %v", err)
	}
	client, err := NewClient(ClientConfig{
		API:       api,
		Transport: newFakeTransport(),
		Clock:     clk,
		Logger:    discardLogger(),
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	t.Cleanup(client.Disconnect)
	return client
}

func TestRevokeDoesNotTouchStore(t *testing.T) {
	server := &taskServer{statuses: map[string]string{"t1": "RUNNING"}}
	client := newTestClient(t, server, clock.Fake(epoch))
	if _, err := client.Store().Merge(task.StatusRecord{TaskID: "t1", Status: task.Ptr(task.StatusRunning)}); err != nil {
		t.Fatal(err)
	}
	version := client.Store().Version()

	response, err := client.Revoke(context.Background(), "t1", taskapi.DefaultRevokeOptions())
	if err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if response.Message == "" {
		t.Error("empty acknowledgement")
	}
	server.mutex.Lock()
	revoked := append([]string(nil), server.revoked...)
	server.mutex.Unlock()
	if len(revoked) != 1 || revoked[0] != "t1" {
		t.Errorf("server revoked %v, want [t1]", revoked)
	}
	if client.Store().Version() != version {
		t.Fatal("Revoke modified the store")
	}
	record, _ := client.TaskStatus("t1")
	if record.StatusValue() != task.StatusRunning {
		t.Fatalf("cached status = %q, want RUNNING until observed", record.StatusValue())
	}
}

func TestRevokeAndConfirm(t *testing.T) {
	server := &taskServer{statuses: map[string]string{"t1": "RUNNING"}}
	fake := clock.Fake(epoch)
	client := newTestClient(t, server, fake)

	type outcome struct {
		record task.StatusRecord
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		record, err := client.RevokeAndConfirm(context.Background(), "t1", taskapi.DefaultRevokeOptions(), 2*time.Second)
		done <- outcome{record, err}
	}()

	fake.WaitForTimers(1)
	fake.Advance(2 * time.Second)

	select {
	case result := <-done:
		if result.err != nil {
			t.Fatalf("RevokeAndConfirm: %v", result.err)
		}
		if result.record.StatusValue() != task.StatusRevoked {
			t.Fatalf("status = %q, want REVOKED", result.record.StatusValue())
		}
	case <-time.After(waitTimeout):
		t.Fatal("RevokeAndConfirm did not return")
	}
}

func TestReconcileActiveSkipsTerminalTasks(t *testing.T) {
	server := &taskServer{statuses: map[string]string{
		"running": "SUCCESS",
		"pending": "STARTED",
		"done":    "SUCCESS",
	}}
	client := newTestClient(t, server, clock.Fake(epoch))
	for id, status := range map[string]task.Status{
		"running": task.StatusRunning,
		"pending": task.StatusPending,
		"done":    task.StatusFailed,
	} {
		if _, err := client.Store().Merge(task.StatusRecord{TaskID: id, Status: task.Ptr(status)}); err != nil {
			t.Fatal(err)
		}
	}

	if err := client.ReconcileActive(context.Background()); err != nil {
		t.Fatalf("ReconcileActive: %v", err)
	}

	server.mutex.Lock()
	reads := len(server.reads)
	server.mutex.Unlock()
	if reads != 2 {
		t.Errorf("server saw %d reads, want 2 (terminal task skipped)", reads)
	}
	if record, _ := client.TaskStatus("running"); record.StatusValue() != task.StatusSuccess {
		t.Errorf("running = %q, want SUCCESS", record.StatusValue())
	}
	if record, _ := client.TaskStatus("done"); record.StatusValue() != task.StatusFailed {
		t.Errorf("done = %q, terminal task must not be re-read", record.StatusValue())
	}
}

func TestClientQueries(t *testing.T) {
	client := newTestClient(t, &taskServer{statuses: map[string]string{}}, clock.Fake(epoch))
	for i, id := range []string{"gen-1", "gen-2"} {
		if _, err := client.Store().Merge(task.StatusRecord{
			TaskID:     id,
			Status:     task.Ptr(task.StatusRunning),
			JobType:    task.Ptr("dataset_generation"),
			EntityType: task.Ptr("Dataset"),
			EntityID:   task.Ptr(task.EntityID("3")),
			Timestamp:  task.At(epoch.Add(time.Duration(i) * time.Minute)),
		}); err != nil {
			t.Fatal(err)
		}
	}

	if records := client.ListForEntity("Dataset", "3"); len(records) != 2 || records[0].TaskID != "gen-2" {
		t.Fatalf("ListForEntity = %v", records)
	}
	latest, found := client.LatestForEntity(taskstore.EntityQuery{EntityType: "Dataset", EntityID: "3", JobType: "dataset_generation"})
	if !found || latest.TaskID != "gen-2" {
		t.Fatalf("LatestForEntity = %v, %v", latest.TaskID, found)
	}
	if client.Healthy() {
		t.Fatal("client is healthy before Connect")
	}
}
