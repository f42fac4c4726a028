// Package runner executes the codex CLI agent as a subprocess and streams
// its output back as timestamped events. One run at a time: Execute starts
// the process on background goroutines and returns immediately; progress and
// completion are reported exclusively through the event callback.
package runner

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/codexpilot/codexpilot/internal/protocol"
)

// State is the runner lifecycle state.
type State string

const (
	StateIdle       State = "idle"
	StateRunning    State = "running"
	StateCancelling State = "cancelling"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
	StateCancelled  State = "cancelled"
)

// ErrBusy is returned by Execute when a run is already in progress.
var ErrBusy = errors.New("runner: execution already in progress")

const (
	defaultGracePeriod = 500 * time.Millisecond
	defaultReaderJoin  = 2 * time.Second
	dispatchBuffer     = 1024
)

// agentArgs is the fixed non-interactive flag set: full automation, no
// confirmation prompts, and no git repository sanity check.
var agentArgs = []string{"exec", "--yolo", "--skip-git-repo-check"}

// Runner executes one codex invocation at a time.
type Runner struct {
	binary     string
	logger     *slog.Logger
	timeout    time.Duration
	grace      time.Duration
	readerJoin time.Duration

	mu       sync.Mutex
	state    State
	events   []protocol.Event
	process  *exec.Cmd
	runID    string
	timedOut bool
	waitDone chan struct{}
	killed   chan struct{}
	dispatch chan protocol.Event
}

// Option configures a Runner.
type Option func(*Runner)

// WithTimeout bounds each execution by a deadline. Zero means no deadline.
// A timed-out run is reported as Failed, distinct from an explicit cancel.
func WithTimeout(d time.Duration) Option {
	return func(r *Runner) { r.timeout = d }
}

// WithGracePeriod sets how long Cancel waits for a graceful exit before
// force-killing the process.
func WithGracePeriod(d time.Duration) Option {
	return func(r *Runner) { r.grace = d }
}

// New creates a runner for the given codex binary.
func New(binary string, logger *slog.Logger, opts ...Option) *Runner {
	r := &Runner{
		binary:     binary,
		logger:     logger,
		grace:      defaultGracePeriod,
		readerJoin: defaultReaderJoin,
		state:      StateIdle,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Execute starts the agent with the given prompt and working directory. It
// returns the run id without blocking; all subsequent activity is reported
// through onEvent. Fails with ErrBusy, starting nothing, if a run is already
// in progress.
func (r *Runner) Execute(prompt, workingDir string, onEvent func(protocol.Event)) (string, error) {
	r.mu.Lock()
	if r.state == StateRunning || r.state == StateCancelling {
		r.mu.Unlock()
		return "", ErrBusy
	}

	runID := uuid.New().String()
	r.state = StateRunning
	r.events = nil
	r.runID = runID
	r.timedOut = false
	r.waitDone = make(chan struct{})
	r.killed = make(chan struct{})
	r.dispatch = make(chan protocol.Event, dispatchBuffer)
	dispatch := r.dispatch
	r.mu.Unlock()

	r.logger.Info("starting agent run", "run_id", runID, "working_dir", workingDir)

	go dispatchLoop(dispatch, onEvent)
	go r.run(prompt, workingDir, runID)

	return runID, nil
}

// dispatchLoop delivers buffered events to the consumer on its own goroutine
// so a slow callback never stalls the stream readers.
func dispatchLoop(events <-chan protocol.Event, onEvent func(protocol.Event)) {
	for ev := range events {
		if onEvent != nil {
			onEvent(ev)
		}
	}
}

func (r *Runner) run(prompt, workingDir, runID string) {
	args := append(append([]string{}, agentArgs...), prompt)

	r.emit(protocol.Event{
		Kind:  protocol.EventCommand,
		Data:  fmt.Sprintf("Executing: %s %s", r.binary, strings.Join(args, " ")),
		RunID: runID,
	})

	cmd := exec.Command(r.binary, args...)
	cmd.Dir = workingDir

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		r.finishFailed(runID, fmt.Sprintf("Error during execution: %v", err))
		return
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		r.finishFailed(runID, fmt.Sprintf("Error during execution: %v", err))
		return
	}

	if err := cmd.Start(); err != nil {
		r.finishFailed(runID, fmt.Sprintf("Error during execution: %v", err))
		return
	}

	r.mu.Lock()
	r.process = cmd
	waitDone := r.waitDone
	killed := r.killed
	r.mu.Unlock()

	r.logger.Debug("agent process started", "run_id", runID, "pid", cmd.Process.Pid)

	// Deadline enforcement runs on its own timer so expiry terminates the
	// process even while the readers are still blocked on its output.
	var deadline *time.Timer
	if r.timeout > 0 {
		deadline = time.AfterFunc(r.timeout, func() {
			r.logger.Warn("agent run exceeded deadline, killing", "timeout", r.timeout)
			r.mu.Lock()
			r.timedOut = true
			r.mu.Unlock()
			if cmd.Process != nil {
				cmd.Process.Kill()
			}
			r.markKilled(killed)
		})
	}

	stdoutDone := r.readStream(stdout, protocol.EventStdout, runID)
	stderrDone := r.readStream(stderr, protocol.EventStderr, runID)

	// Both pipes must reach EOF before the process is reaped: Wait closes
	// the pipe read ends, discarding any tail output still buffered.
	r.joinReader(stdoutDone, killed, "stdout", runID)
	r.joinReader(stderrDone, killed, "stderr", runID)

	waitErr := cmd.Wait()
	if deadline != nil {
		deadline.Stop()
	}
	close(waitDone)

	r.mu.Lock()
	cancelled := r.state == StateCancelling
	timedOut := r.timedOut
	r.process = nil
	r.mu.Unlock()

	switch {
	case cancelled:
		r.finish(runID, StateCancelled, protocol.Event{
			Kind:  protocol.EventStatus,
			Data:  "Execution cancelled",
			RunID: runID,
		})
	case timedOut:
		r.finish(runID, StateFailed, protocol.Event{
			Kind:  protocol.EventError,
			Data:  fmt.Sprintf("Execution timed out after %s", r.timeout),
			RunID: runID,
		})
	case waitErr == nil:
		r.finish(runID, StateCompleted, protocol.Event{
			Kind:  protocol.EventStatus,
			Data:  "Completed successfully (exit code: 0)",
			RunID: runID,
		})
	default:
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			r.finish(runID, StateFailed, protocol.Event{
				Kind:  protocol.EventError,
				Data:  fmt.Sprintf("Execution failed (exit code: %d)", exitErr.ExitCode()),
				RunID: runID,
			})
		} else {
			r.finish(runID, StateFailed, protocol.Event{
				Kind:  protocol.EventError,
				Data:  fmt.Sprintf("Error during execution: %v", waitErr),
				RunID: runID,
			})
		}
	}
}

// readStream drains one pipe line by line, emitting a labeled event per line.
// Readers observe the cancelling state and stop early.
func (r *Runner) readStream(stream io.Reader, kind protocol.EventKind, runID string) <-chan struct{} {
	done := make(chan struct{})

	go func() {
		defer close(done)

		scanner := newLineScanner(stream)
		for scanner.Scan() {
			line := strings.ToValidUTF8(scanner.Text(), "�")
			r.emit(protocol.Event{Kind: kind, Data: line, RunID: runID})

			if r.cancelRequested() {
				return
			}
		}

		if err := scanner.Err(); err != nil && !errors.Is(err, io.EOF) {
			r.logger.Error("error reading agent output", "stream", kind, "error", err)
		}
	}()

	return done
}

// newLineScanner sizes the scanner buffer for long agent output lines.
func newLineScanner(stream io.Reader) *bufio.Scanner {
	scanner := bufio.NewScanner(stream)
	scanner.Buffer(make([]byte, 4096), 1024*1024)
	return scanner
}

// joinReader waits for a reader to hit EOF, which happens when the process
// exits and its write ends close. The wait is only bounded once the process
// has been force-killed: a descendant holding an inherited pipe fd can keep
// the stream open indefinitely.
func (r *Runner) joinReader(done, killed <-chan struct{}, stream, runID string) {
	select {
	case <-done:
		return
	case <-killed:
	}

	select {
	case <-done:
	case <-time.After(r.readerJoin):
		r.logger.Warn("reader did not finish draining", "stream", stream, "run_id", runID)
	}
}

// markKilled signals the run's force-kill to the reader joins. Safe to call
// more than once.
func (r *Runner) markKilled(killed chan struct{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	select {
	case <-killed:
	default:
		close(killed)
	}
}

// emit buffers a stream event and hands it to the dispatcher best-effort:
// when the dispatch queue is full the event stays in the buffer but is
// dropped from live delivery, keeping the readers unblocked.
func (r *Runner) emit(ev protocol.Event) {
	ev.Timestamp = time.Now()

	r.mu.Lock()
	r.events = append(r.events, ev)
	dispatch := r.dispatch
	r.mu.Unlock()

	if dispatch == nil {
		return
	}

	select {
	case dispatch <- ev:
	default:
		r.logger.Warn("event queue full, dropping live delivery", "kind", ev.Kind)
	}
}

// finish records the terminal state, emits the final event, and closes the
// dispatch queue. The terminal event is always the last event of the run and
// is always delivered.
func (r *Runner) finish(runID string, state State, ev protocol.Event) {
	ev.Timestamp = time.Now()

	r.mu.Lock()
	r.state = state
	r.events = append(r.events, ev)
	dispatch := r.dispatch
	r.dispatch = nil
	r.mu.Unlock()

	if dispatch != nil {
		dispatch <- ev
		close(dispatch)
	}

	r.logger.Info("agent run finished", "run_id", runID, "state", state)
}

func (r *Runner) finishFailed(runID, msg string) {
	r.finish(runID, StateFailed, protocol.Event{
		Kind:  protocol.EventError,
		Data:  msg,
		RunID: runID,
	})
}

// Cancel requests graceful termination of the current run. No-op unless the
// runner is Running. It returns without waiting for the process to exit: a
// background goroutine sends SIGTERM, waits the grace period, then kills.
func (r *Runner) Cancel() {
	r.mu.Lock()
	if r.state != StateRunning {
		r.mu.Unlock()
		return
	}
	r.state = StateCancelling
	proc := r.process
	waitDone := r.waitDone
	killed := r.killed
	runID := r.runID
	r.mu.Unlock()

	r.logger.Info("cancelling agent run", "run_id", runID)

	go func() {
		if proc != nil && proc.Process != nil {
			if err := proc.Process.Signal(syscall.SIGTERM); err != nil {
				r.logger.Debug("signal failed", "run_id", runID, "error", err)
			}
		}

		select {
		case <-waitDone:
		case <-time.After(r.grace):
			r.logger.Warn("agent did not stop gracefully, killing", "run_id", runID)
			if proc != nil && proc.Process != nil {
				proc.Process.Kill()
			}
			r.markKilled(killed)
		}
	}()
}

func (r *Runner) cancelRequested() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state == StateCancelling
}

// IsRunning reports whether a run is currently executing.
func (r *Runner) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state == StateRunning
}

// State returns the current runner state.
func (r *Runner) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// RunID returns the id of the most recent run.
func (r *Runner) RunID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.runID
}

// Events returns a snapshot copy of all events buffered for the most recent
// run. Safe to call while a run is in progress.
func (r *Runner) Events() []protocol.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]protocol.Event, len(r.events))
	copy(out, r.events)
	return out
}
