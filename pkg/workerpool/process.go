package workerpool

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/creack/pty"

	"github.com/tarsygate/llmgate/pkg/apierr"
	"github.com/tarsygate/llmgate/pkg/tracker"
)

// stderrExcerptLimit bounds how much of a failed child's stderr is kept
// in the task's error, so a runaway child can't blow up memory.
const stderrExcerptLimit = 4096

// runTask executes one task end to end: write the prompt to a temp file,
// spawn the CLI child, enforce the deadline, parse the result, and always
// release the launch slot on return.
func (p *WorkerPool) runTask(task *Task) {
	promptFile, cleanup, err := writePromptFile(p.cfg.WorkDir, task.ID, task.Prompt)
	if err != nil {
		task.finish(StateFailed, nil, apierr.TaskFailed(fmt.Sprintf("writing prompt file: %v", err)))
		return
	}
	defer cleanup()

	ctx, cancel := context.WithDeadline(context.Background(), task.Deadline)
	defer cancel()

	cmd := p.buildCommand(ctx, promptFile, task.Model)

	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}

	var copyDone chan struct{}
	if p.cfg.UsePTY {
		// Some CLIs only emit their structured JSON on the final line when
		// they detect a TTY; UsePTY runs the child under one instead of a
		// plain pipe. stdout and stderr are merged onto the PTY master, so
		// a failure's error excerpt comes from the combined stream.
		ptmx, err := pty.Start(cmd)
		if err != nil {
			task.finish(StateFailed, nil, apierr.TaskFailed(fmt.Sprintf("pty start error: %v", err)))
			return
		}
		defer ptmx.Close()

		copyDone = make(chan struct{})
		go func() {
			io.Copy(stdout, ptmx)
			close(copyDone)
		}()
	} else {
		cmd.Stdout = stdout
		cmd.Stderr = stderr
		if err := cmd.Start(); err != nil {
			task.finish(StateFailed, nil, apierr.TaskFailed(fmt.Sprintf("spawn error: %v", err)))
			return
		}
	}

	task.setRunning(cmd.Process.Pid, cancel)

	waitErr := cmd.Wait()
	if copyDone != nil {
		<-copyDone // drain whatever the PTY master still has buffered
	}

	if ctx.Err() == context.DeadlineExceeded {
		task.finish(StateTimedOut, nil, apierr.TaskTimedOut())
		return
	}
	if ctx.Err() == context.Canceled && waitErr != nil {
		task.finish(StateCancelled, nil, errTaskCancelled)
		return
	}

	if waitErr != nil {
		excerpt := stderr.String()
		if p.cfg.UsePTY {
			excerpt = stdout.String() // stderr is merged onto the PTY master
		}
		if len(excerpt) > stderrExcerptLimit {
			excerpt = excerpt[:stderrExcerptLimit]
		}
		task.finish(StateFailed, nil, apierr.TaskFailed(excerpt))
		return
	}

	usage, err := p.tracker.ParseJSON(stdout.Bytes())
	if err != nil {
		task.finish(StateFailed, nil, apierr.TaskFailed(fmt.Sprintf("parse error: %v", err)))
		return
	}

	task.finish(StateCompleted, &Result{Content: stdout.String(), Usage: usage}, nil)
}

// buildCommand constructs the CLI invocation, stripping the nesting-guard
// environment variable and wiring SIGTERM-then-SIGKILL deadline handling
// through the standard library's Cmd.Cancel/WaitDelay fields.
func (p *WorkerPool) buildCommand(ctx context.Context, promptFile string, model tracker.Tier) *exec.Cmd {
	args := []string{"-p", "@" + promptFile, "--model", string(model), "--output-format", "json"}
	if p.cfg.CapabilityConfig != "" {
		args = append(args, "--config", p.cfg.CapabilityConfig)
	}

	cmd := exec.CommandContext(ctx, p.cfg.CLIBinaryPath, args...)
	cmd.Dir = p.cfg.WorkDir
	cmd.Env = stripEnvVar(os.Environ(), p.cfg.StripEnvVar)

	cmd.SysProcAttr = processGroupAttr()

	cmd.Cancel = func() error {
		err := signalProcessGroup(cmd, syscall.SIGTERM)
		// WaitDelay's own kill reaches only the direct child, so the rest of
		// the group gets SIGKILL after the same grace period.
		if grace := p.cfg.KillGracePeriod; grace > 0 {
			time.AfterFunc(grace, func() { _ = signalProcessGroup(cmd, syscall.SIGKILL) })
		}
		return err
	}
	cmd.WaitDelay = p.cfg.KillGracePeriod

	return cmd
}

// stripEnvVar removes name (and its value) from env, unconditionally —
// the variable that would cause the child to detect it is already nested
// inside an agent session and refuse to start.
func stripEnvVar(env []string, name string) []string {
	if name == "" {
		return env
	}
	prefix := name + "="
	out := env[:0:0]
	for _, e := range env {
		if len(e) >= len(prefix) && e[:len(prefix)] == prefix {
			continue
		}
		out = append(out, e)
	}
	return out
}

// writePromptFile writes prompt to a per-task temp file under workDir and
// returns a cleanup func that removes it even if the caller panics.
func writePromptFile(workDir, taskID, prompt string) (path string, cleanup func(), err error) {
	if workDir != "" {
		if err := os.MkdirAll(workDir, 0o755); err != nil {
			return "", nil, err
		}
	}
	f, err := os.CreateTemp(workDir, "prompt-"+taskID+"-*.txt")
	if err != nil {
		return "", nil, err
	}
	defer f.Close()

	if _, err := f.WriteString(prompt); err != nil {
		os.Remove(f.Name())
		return "", nil, err
	}

	name := f.Name()
	return name, func() { os.Remove(name) }, nil
}
