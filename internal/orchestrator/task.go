package orchestrator

import (
	"github.com/codexpilot/codexpilot/internal/protocol"
)

// Task is the one task in flight. It is created by StartTask, mutated only by
// the orchestrator's own sequencing, and replaced when a new task starts.
type Task struct {
	ID            string
	Title         string
	UserRequest   string
	FolderPath    string
	SelectedFiles []string

	Plan            *protocol.PlanResult
	ExecutionResult *protocol.ExecutionResult
	Summary         string
}

// Sender classifies caller-visible messages.
type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
	SenderSystem    Sender = "system"
)

// Notifications are pushed to the caller as the task progresses. Handlers run
// on the orchestrator's background goroutines and must not block for long.
// Any handler may be nil.
type Notifications struct {
	OnStateChanged func(State)
	OnMessage      func(text string, sender Sender)
	OnPlanReady    func(*protocol.Plan)
	OnProcessEvent func(protocol.Event)
}
