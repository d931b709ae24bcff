// Copyright (C) 2026 Wasmforge
// SPDX-License-Identifier: AGPL-3.0-or-later

package pipeline

import "time"

// EventType identifies a pipeline lifecycle event.
type EventType string

const (
	EventStageStarted   EventType = "stage_started"
	EventStageCompleted EventType = "stage_completed"
	EventStageFailed    EventType = "stage_failed"
	EventRunCompleted   EventType = "run_completed"
)

// Event is a pipeline lifecycle notification, consumed by the status server's
// websocket stream.
type Event struct {
	Type     EventType `json:"type"`
	RunID    string    `json:"run_id"`
	Stage    string    `json:"stage,omitempty"`
	Error    string    `json:"error,omitempty"`
	Terminal bool      `json:"terminal,omitempty"`
	Time     time.Time `json:"time"`
}

// EventSink receives pipeline events. Implementations must not block: a slow
// consumer must not stall a run.
type EventSink func(Event)
