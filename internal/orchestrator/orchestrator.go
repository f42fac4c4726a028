// Package orchestrator drives one task at a time through planning, optional
// clarification, user review, execution, and summarization.
//
// State machine:
//
//	Idle → Planning → [Clarifying] → Reviewing → Running → Summarizing → Completed
//	                                                     ↘ Error
//
// Cancel returns to Idle from any state.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/codexpilot/codexpilot/internal/history"
	"github.com/codexpilot/codexpilot/internal/planner"
	"github.com/codexpilot/codexpilot/internal/protocol"
	"github.com/codexpilot/codexpilot/internal/runner"
)

// State is the orchestrator lifecycle state.
type State string

const (
	StateIdle        State = "idle"
	StatePlanning    State = "planning"
	StateClarifying  State = "clarifying"
	StateReviewing   State = "reviewing"
	StateRunning     State = "running"
	StateSummarizing State = "summarizing"
	StateCompleted   State = "completed"
	StateError       State = "error"
)

// failureExitCode is the sentinel recorded when a run did not complete; the
// real exit code is carried in the terminal event text.
const failureExitCode = -1

// AgentRunner is the process-execution collaborator.
type AgentRunner interface {
	Execute(prompt, workingDir string, onEvent func(protocol.Event)) (string, error)
	Cancel()
	State() runner.State
	Events() []protocol.Event
}

// Settings provides the persisted configuration the orchestrator reads.
type Settings interface {
	APIKey() string
	Model() string
}

// Recorder persists finished tasks.
type Recorder interface {
	Add(history.Entry) error
}

// ClientFactory builds a planning client from an API key. Injected so tests
// and callers control the provider.
type ClientFactory func(apiKey, model string) planner.Client

// Orchestrator owns a single in-flight task.
type Orchestrator struct {
	runner    AgentRunner
	settings  Settings
	recorder  Recorder
	newClient ClientFactory
	notify    Notifications
	logger    *slog.Logger

	mu         sync.Mutex
	state      State
	client     planner.Client
	task       *Task
	runID      string
	staleRuns  map[string]bool
	taskCancel context.CancelFunc
}

// New creates an orchestrator with its collaborators injected. The planning
// client is initialized lazily from settings on the first StartTask.
func New(agentRunner AgentRunner, cfg Settings, recorder Recorder, factory ClientFactory, notify Notifications, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		runner:    agentRunner,
		settings:  cfg,
		recorder:  recorder,
		newClient: factory,
		notify:    notify,
		logger:    logger,
		state:     StateIdle,
		staleRuns: make(map[string]bool),
	}
}

// State returns the current orchestrator state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// IsBusy reports whether a task is in flight. Idle, Completed, and Error are
// the only non-busy states.
func (o *Orchestrator) IsBusy() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return busy(o.state)
}

func busy(s State) bool {
	return s != StateIdle && s != StateCompleted && s != StateError
}

// CurrentTask returns the in-flight task, nil when none.
func (o *Orchestrator) CurrentTask() *Task {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.task
}

// StartTask begins a new task: constructs the task record, transitions to
// Planning, and generates a plan in the background. Rejected while busy.
// Without a configured API key it emits a system message and stays Idle.
func (o *Orchestrator) StartTask(id, title, request, folderPath string, selectedFiles []string) {
	o.mu.Lock()
	if busy(o.state) {
		o.mu.Unlock()
		o.logger.Warn("start task rejected, orchestrator busy", "state", o.state)
		return
	}

	if o.client == nil {
		key := o.settings.APIKey()
		if key == "" {
			o.mu.Unlock()
			o.message("OpenAI API key is not configured. Set it with 'codexpilot config set openai_api_key <key>'.", SenderSystem)
			return
		}
		o.client = o.newClient(key, o.settings.Model())
	}

	task := &Task{
		ID:            id,
		Title:         title,
		UserRequest:   request,
		FolderPath:    folderPath,
		SelectedFiles: selectedFiles,
	}
	o.task = task

	ctx, cancel := context.WithCancel(context.Background())
	if o.taskCancel != nil {
		o.taskCancel()
	}
	o.taskCancel = cancel
	// Set in the same critical section as the busy check so a concurrent
	// StartTask cannot also pass the guard.
	o.state = StatePlanning
	o.mu.Unlock()

	o.logger.Info("task started", "task_id", id, "folder", folderPath)
	o.notifyState(StatePlanning)
	go o.generatePlan(ctx, task)
}

func (o *Orchestrator) generatePlan(ctx context.Context, task *Task) {
	o.message("Generating execution plan...", SenderSystem)

	client := o.planningClient()
	result, err := client.GeneratePlan(ctx, task.UserRequest,
		planner.TaskContext{ID: task.ID, Title: task.Title},
		planner.FolderInfo{
			Path:          task.FolderPath,
			SelectedFiles: task.SelectedFiles,
			FileCount:     len(task.SelectedFiles),
		})

	if !o.stillCurrent(ctx, task) {
		return
	}
	if err != nil {
		o.logger.Error("plan generation failed", "task_id", task.ID, "error", err)
		o.message(fmt.Sprintf("Plan generation failed: %v", err), SenderSystem)
		o.transition(StateError)
		return
	}

	o.mu.Lock()
	task.Plan = result
	o.mu.Unlock()

	// Notify before transitioning so callers reacting to the state change
	// already have the question or plan in hand.
	switch result.Kind {
	case protocol.PlanKindClarify:
		question := "More information is needed."
		if result.Clarify != nil && result.Clarify.Question != "" {
			question = result.Clarify.Question
		}
		o.message(question, SenderAssistant)
		o.transition(StateClarifying)

	case protocol.PlanKindPlan:
		o.planReady(result.Plan)
		o.transition(StateReviewing)
	}
}

// ProvideClarification appends the user's answer to the request as a
// supplementary note and replans. Ignored unless the state is Clarifying.
func (o *Orchestrator) ProvideClarification(answer string) {
	o.mu.Lock()
	if o.state != StateClarifying || o.task == nil {
		o.mu.Unlock()
		return
	}
	task := o.task
	task.UserRequest += fmt.Sprintf("\n\nSupplementary note: %s", answer)
	ctx, cancel := context.WithCancel(context.Background())
	if o.taskCancel != nil {
		o.taskCancel()
	}
	o.taskCancel = cancel
	o.state = StatePlanning
	o.mu.Unlock()

	o.notifyState(StatePlanning)
	go o.generatePlan(ctx, task)
}

// ExecutePlan hands the reviewed plan to the runner. Ignored unless the state
// is Reviewing.
func (o *Orchestrator) ExecutePlan() {
	o.mu.Lock()
	if o.state != StateReviewing || o.task == nil || o.task.Plan == nil {
		o.mu.Unlock()
		return
	}
	task := o.task
	prompt := protocol.BuildPrompt(task.Plan.Plan, task.UserRequest)
	o.state = StateRunning
	o.mu.Unlock()

	o.notifyState(StateRunning)
	o.message("Starting execution...", SenderSystem)

	runID, err := o.runner.Execute(prompt, task.FolderPath, o.onRunnerEvent)
	if err != nil {
		o.logger.Error("failed to start execution", "task_id", task.ID, "error", err)
		o.message(fmt.Sprintf("Failed to start execution: %v", err), SenderSystem)
		o.transition(StateError)
		return
	}

	o.mu.Lock()
	o.runID = runID
	o.mu.Unlock()
}

// onRunnerEvent forwards runner events to the caller and watches for the
// terminal event. Events from runs cancelled by a previous task are dropped
// so they cannot be misattributed to the current task.
func (o *Orchestrator) onRunnerEvent(ev protocol.Event) {
	o.mu.Lock()
	stale := o.staleRuns[ev.RunID]
	o.mu.Unlock()

	if stale {
		o.logger.Debug("dropping event from stale run", "run_id", ev.RunID, "kind", ev.Kind)
		return
	}

	if o.notify.OnProcessEvent != nil {
		o.notify.OnProcessEvent(ev)
	}

	if !ev.Kind.Terminal() {
		return
	}

	switch state := o.runner.State(); state {
	case runner.StateCompleted, runner.StateFailed, runner.StateCancelled:
		o.onExecutionFinished(state)
	}
}

// onExecutionFinished assembles the execution result from the runner's event
// buffer and either moves on to summarization or reports the failure.
func (o *Orchestrator) onExecutionFinished(runnerState runner.State) {
	o.mu.Lock()
	if o.state != StateRunning || o.task == nil {
		o.mu.Unlock()
		return
	}
	task := o.task
	task.ExecutionResult = buildResult(runnerState, o.runner.Events())

	if runnerState != runner.StateCompleted {
		o.state = StateError
		o.mu.Unlock()
		o.logger.Warn("execution did not complete", "task_id", task.ID, "runner_state", runnerState)
		o.message("Execution failed", SenderSystem)
		o.notifyState(StateError)
		return
	}

	// Fresh context for summarization so Cancel can interrupt it.
	ctx, cancel := context.WithCancel(context.Background())
	if o.taskCancel != nil {
		o.taskCancel()
	}
	o.taskCancel = cancel
	o.state = StateSummarizing
	o.mu.Unlock()

	o.notifyState(StateSummarizing)
	go o.summarize(ctx, task)
}

func buildResult(state runner.State, events []protocol.Event) *protocol.ExecutionResult {
	exitCode := failureExitCode
	if state == runner.StateCompleted {
		exitCode = 0
	}

	var stdout, stderr []string
	for _, ev := range events {
		switch ev.Kind {
		case protocol.EventStdout:
			stdout = append(stdout, ev.Data)
		case protocol.EventStderr:
			stderr = append(stderr, ev.Data)
		}
	}

	return &protocol.ExecutionResult{
		State:    string(state),
		ExitCode: exitCode,
		Stdout:   strings.Join(stdout, "\n"),
		Stderr:   strings.Join(stderr, "\n"),
		Events:   events,
	}
}

func (o *Orchestrator) summarize(ctx context.Context, task *Task) {
	client := o.planningClient()

	var plan *protocol.Plan
	if task.Plan != nil {
		plan = task.Plan.Plan
	}

	summary, err := client.Summarize(ctx, plan, task.ExecutionResult)

	if !o.stillCurrent(ctx, task) {
		return
	}
	if err != nil {
		o.logger.Error("summarization failed", "task_id", task.ID, "error", err)
		o.message(fmt.Sprintf("Summarization failed: %v", err), SenderSystem)
		o.transition(StateError)
		return
	}

	o.mu.Lock()
	task.Summary = summary
	o.mu.Unlock()

	// Persist and report before entering Completed so a caller shutting down
	// on the transition sees the full outcome.
	o.message(summary, SenderAssistant)
	o.saveToHistory(task)
	o.transition(StateCompleted)
}

func (o *Orchestrator) saveToHistory(task *Task) {
	if o.recorder == nil || task.ExecutionResult == nil {
		return
	}

	entry := history.Entry{
		TaskID:      task.ID,
		TaskTitle:   task.Title,
		UserRequest: task.UserRequest,
		FolderPath:  task.FolderPath,
		Success:     task.ExecutionResult.ExitCode == 0,
		Summary:     task.Summary,
	}
	if err := o.recorder.Add(entry); err != nil {
		o.logger.Error("failed to record task history", "task_id", task.ID, "error", err)
	}
}

// Cancel aborts the current operation. If the runner is executing it is
// cancelled too, but Cancel does not wait for the process to terminate: the
// state returns to Idle immediately and any late events from the dying run
// are discarded by run id.
func (o *Orchestrator) Cancel() {
	o.mu.Lock()
	wasRunning := o.state == StateRunning
	if wasRunning && o.runID != "" {
		o.staleRuns[o.runID] = true
	}
	o.runID = ""
	if o.taskCancel != nil {
		o.taskCancel()
		o.taskCancel = nil
	}
	o.mu.Unlock()

	if wasRunning {
		o.runner.Cancel()
	}

	o.message("Operation cancelled", SenderSystem)
	o.transition(StateIdle)
}

// planningClient returns the lazily initialized client. Only called on paths
// that StartTask has already gated on client availability.
func (o *Orchestrator) planningClient() planner.Client {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.client
}

// stillCurrent reports whether a background goroutine's task is still the
// orchestrator's current task and has not been cancelled.
func (o *Orchestrator) stillCurrent(ctx context.Context, task *Task) bool {
	if ctx.Err() != nil {
		return false
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.task == task
}

func (o *Orchestrator) transition(state State) {
	o.mu.Lock()
	o.state = state
	o.mu.Unlock()
	o.notifyState(state)
}

// notifyState reports a state change already recorded under the lock.
func (o *Orchestrator) notifyState(state State) {
	o.logger.Debug("state changed", "state", state)
	if o.notify.OnStateChanged != nil {
		o.notify.OnStateChanged(state)
	}
}

func (o *Orchestrator) message(text string, sender Sender) {
	if o.notify.OnMessage != nil {
		o.notify.OnMessage(text, sender)
	}
}

func (o *Orchestrator) planReady(plan *protocol.Plan) {
	if o.notify.OnPlanReady != nil {
		o.notify.OnPlanReady(plan)
	}
}
