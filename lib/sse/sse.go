// Copyright 2026 The Lattice Authors
// SPDX-License-Identifier: Apache-2.0

// Package sse reads Server-Sent Events (text/event-stream) from an
// [io.Reader].
package sse

import (
	"bufio"
	"io"
	"strconv"
	"strings"
	"time"
)

// ContentType is the media type of an event stream.
const ContentType = "text/event-stream"

// Event is one dispatched event.
type Event struct {
	// Type is the "event:" field; empty for the default event type.
	Type string

	// Data is the payload. Multiple "data:" lines are joined with "\n".
	Data string

	// ID is the last event id seen on the stream at dispatch time,
	// which persists across events until the server changes it.
	ID string
}

// Scanner reads events one at a time:
//
//	scanner := sse.NewScanner(response.Body)
//	for scanner.Next() {
//	    event := scanner.Event()
//	}
//	if err := scanner.Err(); err != nil { ... }
//
// Comment lines (starting with ":") are skipped and unknown fields are
// ignored.
type Scanner struct {
	reader  *bufio.Reader
	current Event
	lastID  string
	retry   time.Duration
	err     error
}

// NewScanner creates a Scanner reading from reader.
func NewScanner(reader io.Reader) *Scanner {
	return &Scanner{reader: bufio.NewReaderSize(reader, 64*1024)}
}

// Next advances to the next event. It returns false at end of stream
// or on a read error; use [Scanner.Err] to tell the two apart.
//
// An event still being assembled when the stream ends is discarded,
// since a connection cut mid-event does not deliver a complete event.
func (scanner *Scanner) Next() bool {
	if scanner.err != nil {
		return false
	}
	scanner.current = Event{}

	var dataLines []string
	var eventType string
	hasData := false

	for {
		line, err := scanner.reader.ReadString('\n')
		if err != nil {
			scanner.err = err
			return false
		}
		line = strings.TrimRight(line, "\r\n")

		if line == "" {
			if hasData {
				scanner.current = Event{
					Type: eventType,
					Data: strings.Join(dataLines, "\n"),
					ID:   scanner.lastID,
				}
				return true
			}
			eventType = ""
			continue
		}

		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, hasColon := strings.Cut(line, ":")
		if hasColon {
			value = strings.TrimPrefix(value, " ")
		} else {
			field, value = line, ""
		}

		switch field {
		case "data":
			dataLines = append(dataLines, value)
			hasData = true
		case "event":
			eventType = value
		case "id":
			// Ids containing NUL are ignored.
			if !strings.ContainsRune(value, 0) {
				scanner.lastID = value
			}
		case "retry":
			if milliseconds, parseErr := strconv.ParseInt(value, 10, 64); parseErr == nil && milliseconds >= 0 {
				scanner.retry = time.Duration(milliseconds) * time.Millisecond
			}
		}
	}
}

// Event returns the event read by the last successful [Scanner.Next].
func (scanner *Scanner) Event() Event {
	return scanner.current
}

// LastEventID returns the most recent "id:" value, for resuming a
// dropped stream with the Last-Event-ID header.
func (scanner *Scanner) LastEventID() string {
	return scanner.lastID
}

// Retry returns the reconnection delay most recently requested by the
// server with a "retry:" field, or zero if none was sent.
func (scanner *Scanner) Retry() time.Duration {
	return scanner.retry
}

// Err returns the error that stopped scanning, or nil on a clean EOF.
func (scanner *Scanner) Err() error {
	if scanner.err == io.EOF {
		return nil
	}
	return scanner.err
}
