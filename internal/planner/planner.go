// Package planner talks to the planning model: it turns a user request into
// an execution plan (or a clarification question) and summarizes execution
// results afterwards.
package planner

import (
	"context"
	"fmt"

	"github.com/codexpilot/codexpilot/internal/protocol"
)

// TaskContext identifies the task being planned.
type TaskContext struct {
	ID    string
	Title string
}

// FolderInfo describes the target directory handed to the planner.
type FolderInfo struct {
	Path          string
	SelectedFiles []string
	FileCount     int
}

// Client is the planning collaborator. Both calls block and may fail with a
// *ProviderError on transport or auth problems.
type Client interface {
	GeneratePlan(ctx context.Context, userRequest string, task TaskContext, folder FolderInfo) (*protocol.PlanResult, error)
	Summarize(ctx context.Context, plan *protocol.Plan, result *protocol.ExecutionResult) (string, error)
}

// ProviderError wraps a failure from the planning provider.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s provider error: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}
