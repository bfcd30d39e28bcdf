// Package workerpool runs CLI subprocesses under a bounded concurrency
// cap with deadline enforcement, event-driven completion signalling, and
// guaranteed reaping. It replaces the teacher's database-polling queue
// (built for coordinating many pods against a shared Postgres table) with
// in-process supervision, because this gateway schedules subprocesses on
// a single host rather than dispatching work across a fleet — the one
// place this module's scheduler departs from the teacher's mechanism
// rather than generalizing it, per the shift from multi-pod coordination
// to a single supervisor owning one launch-slot set.
package workerpool

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tarsygate/llmgate/pkg/config"
	"github.com/tarsygate/llmgate/pkg/tracker"
)

// errTaskCancelled is the terminal error recorded for a task cancelled
// before or during execution.
var errTaskCancelled = fmt.Errorf("workerpool: task cancelled")

// Stats answers /health's worker-pool section.
type Stats struct {
	Queued        int
	Running       int
	Completed     int
	MaxConcurrent int
}

// WorkerPool is the bounded fan-out scheduler for CLI subprocess tasks.
type WorkerPool struct {
	cfg     config.WorkerPoolConfig
	tracker *tracker.Tracker
	logger  *slog.Logger

	mu           sync.Mutex
	cond         *sync.Cond
	pending      []*Task
	tasks        map[string]*Task
	running      int
	completedCnt int
	shuttingDown bool

	workersWG sync.WaitGroup
}

// New builds a WorkerPool and starts cfg.MaxConcurrent launch-slot
// workers, each pulling the next queued task in FIFO order.
func New(cfg config.WorkerPoolConfig, tr *tracker.Tracker, logger *slog.Logger) *WorkerPool {
	if logger == nil {
		logger = slog.Default()
	}
	p := &WorkerPool{
		cfg:     cfg,
		tracker: tr,
		logger:  logger,
		tasks:   make(map[string]*Task),
	}
	p.cond = sync.NewCond(&p.mu)

	for i := 0; i < cfg.MaxConcurrent; i++ {
		p.workersWG.Add(1)
		go p.workerLoop()
	}
	return p
}

// Submit enqueues a task and returns immediately; it never blocks on
// execution. The pool performs admission against its own concurrency cap
// internally — callers only see queued vs running via Stats/wait.
func (p *WorkerPool) Submit(prompt string, model tracker.Tier, projectID string, deadline time.Duration) (string, error) {
	if deadline <= 0 {
		deadline = p.cfg.DefaultDeadline
	}

	p.mu.Lock()
	if p.shuttingDown {
		p.mu.Unlock()
		return "", fmt.Errorf("workerpool: shutting down, not accepting submissions")
	}
	if p.cfg.QueueCapacity > 0 && len(p.pending) >= p.cfg.QueueCapacity {
		p.mu.Unlock()
		return "", fmt.Errorf("workerpool: queue capacity (%d) exceeded", p.cfg.QueueCapacity)
	}

	id := uuid.NewString()
	task := newTask(id, prompt, model, projectID, time.Now().Add(deadline))
	p.tasks[id] = task
	p.pending = append(p.pending, task)
	p.mu.Unlock()

	p.cond.Signal()
	return id, nil
}

// Wait blocks until the task reaches a terminal state or ctx is
// cancelled, using the task's doneCh event rather than polling.
func (p *WorkerPool) Wait(ctx context.Context, taskID string) (Snapshot, error) {
	p.mu.Lock()
	task, ok := p.tasks[taskID]
	p.mu.Unlock()
	if !ok {
		return Snapshot{}, fmt.Errorf("workerpool: unknown task %s", taskID)
	}

	select {
	case <-task.doneCh:
		return task.snapshot(), nil
	case <-ctx.Done():
		return task.snapshot(), ctx.Err()
	}
}

// Cancel is idempotent and safe from any goroutine. A queued task is
// removed and finalized without running; a running task's process group
// is killed.
func (p *WorkerPool) Cancel(taskID string) error {
	p.mu.Lock()
	task, ok := p.tasks[taskID]
	if !ok {
		p.mu.Unlock()
		return fmt.Errorf("workerpool: unknown task %s", taskID)
	}

	for i, t := range p.pending {
		if t.ID == taskID {
			p.pending = append(p.pending[:i], p.pending[i+1:]...)
			p.mu.Unlock()
			task.finish(StateCancelled, nil, errTaskCancelled)
			return nil
		}
	}
	p.mu.Unlock()

	if task.State() == StateRunning {
		task.requestCancel()
	}
	return nil
}

// Stats reports the pool's current queue depth and running count.
func (p *WorkerPool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		Queued:        len(p.pending),
		Running:       p.running,
		Completed:     p.completedCnt,
		MaxConcurrent: p.cfg.MaxConcurrent,
	}
}

// Shutdown stops accepting submissions, lets running tasks finish within
// timeout, cancels the remainder, and joins every worker goroutine.
func (p *WorkerPool) Shutdown(timeout time.Duration) {
	p.mu.Lock()
	p.shuttingDown = true
	remaining := append([]*Task(nil), p.pending...)
	p.pending = nil
	p.mu.Unlock()
	p.cond.Broadcast()

	for _, t := range remaining {
		t.finish(StateCancelled, nil, errTaskCancelled)
	}

	deadline := time.Now().Add(timeout)
	for {
		p.mu.Lock()
		running := p.running
		p.mu.Unlock()
		if running == 0 || time.Now().After(deadline) {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}

	p.mu.Lock()
	for _, t := range p.tasks {
		if t.State() == StateRunning {
			t.requestCancel()
		}
	}
	p.mu.Unlock()

	p.workersWG.Wait()
}

func (p *WorkerPool) workerLoop() {
	defer p.workersWG.Done()
	for {
		p.mu.Lock()
		for len(p.pending) == 0 && !p.shuttingDown {
			p.cond.Wait()
		}
		if len(p.pending) == 0 && p.shuttingDown {
			p.mu.Unlock()
			return
		}
		task := p.pending[0]
		p.pending = p.pending[1:]
		p.running++
		p.mu.Unlock()

		p.runTask(task)

		p.mu.Lock()
		p.running--
		p.completedCnt++
		p.mu.Unlock()
	}
}
