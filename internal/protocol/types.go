// Package protocol defines the shared types exchanged between the runner,
// the orchestrator, and the planning client: kind-tagged process events,
// plan results, and execution results.
package protocol

import (
	"time"
)

// EventKind labels a single unit of runner output.
type EventKind string

const (
	// EventCommand describes the invocation about to be spawned.
	EventCommand EventKind = "command"
	// EventStdout carries one line of agent standard output.
	EventStdout EventKind = "stdout"
	// EventStderr carries one line of agent standard error.
	EventStderr EventKind = "stderr"
	// EventStatus reports a non-error lifecycle change (completion, cancellation).
	EventStatus EventKind = "status"
	// EventError reports a failure (spawn error, nonzero exit, timeout).
	EventError EventKind = "error"
)

// Event is one timestamped unit of output or status from a run.
//
// Events are ordered by emission time within a single stream; no ordering is
// guaranteed between stdout and stderr. The terminal status/error event is
// always the last event of a run.
type Event struct {
	Kind      EventKind `json:"kind"`
	Data      string    `json:"data"`
	Timestamp time.Time `json:"timestamp"`
	// RunID identifies the execution that produced the event so consumers
	// can discard events from a run they no longer care about.
	RunID string `json:"run_id,omitempty"`
}

// Terminal reports whether the event kind can end a run's event stream.
func (k EventKind) Terminal() bool {
	return k == EventStatus || k == EventError
}

// ExecutionResult captures the outcome of one agent run.
type ExecutionResult struct {
	State    string  `json:"state"`
	ExitCode int     `json:"exit_code"`
	Stdout   string  `json:"stdout"`
	Stderr   string  `json:"stderr"`
	Events   []Event `json:"events"`
}
