// Copyright 2026 The Lattice Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/lattice-ml/lattice/lib/codec"
	"github.com/lattice-ml/lattice/lib/schema/task"
	"github.com/lattice-ml/lattice/lib/tui"
)

// Output formats.
const (
	formatText = "text"
	formatJSON = "json"
	formatCBOR = "cbor"
)

func validFormat(format string) bool {
	return format == formatText || format == formatJSON || format == formatCBOR
}

// recordView is the serialized form of a task record. CBOR encoding
// reads the json tags.
type recordView struct {
	TaskID        string `json:"task_id"`
	TaskName      string `json:"task_name,omitempty"`
	Status        string `json:"status,omitempty"`
	Progress      *int   `json:"progress,omitempty"`
	StatusMessage string `json:"status_message,omitempty"`
	JobType       string `json:"job_type,omitempty"`
	EntityType    string `json:"entity_type,omitempty"`
	EntityID      string `json:"entity_id,omitempty"`
	Timestamp     string `json:"timestamp,omitempty"`
	ErrorDetails  any    `json:"error_details,omitempty"`
	ResultSummary any    `json:"result_summary,omitempty"`
}

func newRecordView(record task.StatusRecord) recordView {
	view := recordView{
		TaskID:     record.TaskID,
		Status:     string(record.StatusValue()),
		JobType:    record.JobTypeValue(),
		EntityType: record.EntityTypeValue(),
		EntityID:   record.EntityIDValue(),
	}
	if record.TaskName != nil {
		view.TaskName = *record.TaskName
	}
	if progress, ok := record.ProgressValue(); ok {
		view.Progress = &progress
	}
	if record.StatusMessage != nil {
		view.StatusMessage = *record.StatusMessage
	}
	if at := record.Time(); !at.IsZero() {
		view.Timestamp = at.UTC().Format(time.RFC3339Nano)
	}
	view.ErrorDetails = decodeRaw(record.ErrorDetails)
	view.ResultSummary = decodeRaw(record.ResultSummary)
	return view
}

// decodeRaw turns an opaque JSON payload into a generic value so the
// CBOR encoder sees structure rather than bytes. Undecodable payloads
// are passed through as text.
func decodeRaw(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return string(raw)
	}
	return value
}

// eventView is one line of watch output.
type eventView struct {
	Event   string      `json:"event"`
	Record  *recordView `json:"record,omitempty"`
	Healthy *bool       `json:"healthy,omitempty"`
	Message string      `json:"message,omitempty"`
}

// printer writes command results in the selected format. JSON output
// is one document per line; CBOR output is a sequence of items.
type printer struct {
	out      io.Writer
	format   string
	renderer *tui.Renderer
	json     *json.Encoder
	cbor     *codec.Encoder
}

func newPrinter(out io.Writer, format string, renderer *tui.Renderer) *printer {
	p := &printer{out: out, format: format, renderer: renderer}
	switch format {
	case formatJSON:
		p.json = json.NewEncoder(out)
	case formatCBOR:
		p.cbor = codec.NewEncoder(out)
	}
	return p
}

func (p *printer) encode(value any) error {
	switch p.format {
	case formatJSON:
		return p.json.Encode(value)
	case formatCBOR:
		return p.cbor.Encode(value)
	}
	return fmt.Errorf("no encoder for format %q", p.format)
}

func (p *printer) record(record task.StatusRecord) error {
	if p.format != formatText {
		return p.encode(newRecordView(record))
	}
	_, err := fmt.Fprintln(p.out, p.recordLine(record))
	return err
}

func (p *printer) recordLine(record task.StatusRecord) string {
	parts := []string{record.TaskID, p.renderer.StatusBadge(record.StatusValue())}
	if progress, ok := record.ProgressValue(); ok {
		parts = append(parts, p.renderer.ProgressBar(progress, 10))
	}
	if jobType := record.JobTypeValue(); jobType != "" {
		parts = append(parts, jobType)
	}
	if entityType := record.EntityTypeValue(); entityType != "" {
		parts = append(parts, entityType+"/"+record.EntityIDValue())
	}
	if at := record.Time(); !at.IsZero() {
		parts = append(parts, p.renderer.Faint(at.UTC().Format(time.RFC3339)))
	}
	if record.StatusMessage != nil && *record.StatusMessage != "" {
		parts = append(parts, *record.StatusMessage)
	}
	return strings.Join(parts, "  ")
}

func (p *printer) removed(record task.StatusRecord) error {
	if p.format != formatText {
		view := newRecordView(record)
		return p.encode(eventView{Event: "remove", Record: &view})
	}
	_, err := fmt.Fprintf(p.out, "%s  %s\n", record.TaskID, p.renderer.Faint("removed"))
	return err
}

func (p *printer) update(record task.StatusRecord) error {
	if p.format != formatText {
		view := newRecordView(record)
		return p.encode(eventView{Event: "update", Record: &view})
	}
	return p.record(record)
}

func (p *printer) health(healthy bool) error {
	if p.format != formatText {
		return p.encode(eventView{Event: "health", Healthy: &healthy})
	}
	_, err := fmt.Fprintf(p.out, "stream %s\n", p.renderer.Health(healthy))
	return err
}

func (p *printer) message(taskID, message string) error {
	if p.format != formatText {
		return p.encode(struct {
			TaskID  string `json:"task_id"`
			Message string `json:"message"`
		}{taskID, message})
	}
	_, err := fmt.Fprintln(p.out, message)
	return err
}
