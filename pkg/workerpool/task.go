package workerpool

import (
	"context"
	"sync"
	"time"

	"github.com/tarsygate/llmgate/pkg/tracker"
)

// State is a Task's lifecycle stage.
type State string

const (
	StateQueued    State = "queued"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateTimedOut  State = "timed_out"
	StateCancelled State = "cancelled"
)

// Result is what a completed Task produced.
type Result struct {
	Content string
	Usage   tracker.Usage
}

// Task is the worker pool's in-memory record of one subprocess run. It is
// created on Submit and kept in the pool's task table for the pool's
// lifetime; claiming its result does not remove it, and no retention
// sweep removes finished tasks.
type Task struct {
	ID        string
	Prompt    string
	Model     tracker.Tier
	ProjectID string
	Deadline  time.Time

	mu        sync.Mutex
	state     State
	pid       int
	result    *Result
	err       error
	startedAt time.Time
	doneCh    chan struct{}
	cancel    context.CancelFunc
}

func newTask(id, prompt string, model tracker.Tier, projectID string, deadline time.Time) *Task {
	return &Task{
		ID:        id,
		Prompt:    prompt,
		Model:     model,
		ProjectID: projectID,
		Deadline:  deadline,
		state:     StateQueued,
		doneCh:    make(chan struct{}),
	}
}

// State returns the task's current lifecycle stage.
func (t *Task) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Snapshot returns the fields a caller needs without exposing the task's
// internal synchronization.
type Snapshot struct {
	ID        string
	State     State
	PID       int
	Result    *Result
	Err       error
	StartedAt time.Time
}

func (t *Task) snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Snapshot{ID: t.ID, State: t.state, PID: t.pid, Result: t.result, Err: t.err, StartedAt: t.startedAt}
}

func (t *Task) setRunning(pid int, cancel context.CancelFunc) {
	t.mu.Lock()
	t.state = StateRunning
	t.pid = pid
	t.startedAt = time.Now()
	t.cancel = cancel
	t.mu.Unlock()
}

// requestCancel triggers the running process's context cancellation,
// which Cmd.Cancel turns into a SIGTERM (see process.go), best-effort and
// safe to call from any goroutine.
func (t *Task) requestCancel() {
	t.mu.Lock()
	cancel := t.cancel
	t.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// finish transitions the task to a terminal state exactly once, waking
// every waiter. Calling it a second time is a no-op, satisfying the
// invariant that exactly one of {result, error} is ever produced.
func (t *Task) finish(state State, result *Result, err error) {
	t.mu.Lock()
	if isTerminal(t.state) {
		t.mu.Unlock()
		return
	}
	t.state = state
	t.result = result
	t.err = err
	t.mu.Unlock()
	close(t.doneCh)
}

func isTerminal(s State) bool {
	switch s {
	case StateCompleted, StateFailed, StateTimedOut, StateCancelled:
		return true
	default:
		return false
	}
}
