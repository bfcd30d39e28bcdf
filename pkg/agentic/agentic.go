// Package agentic runs multi-step tasks that may invoke tools, agents, and
// skills through the CLI, returning a structured transcript plus any
// filesystem artifacts the run produced. It is the one caller of
// Registry.EnrichPrompt and the one component that gives a task its own
// workspace directory, grounded on the teacher's pkg/agent/orchestrator
// collector shape for turning a raw run into typed events.
package agentic

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tarsygate/llmgate/pkg/apierr"
	"github.com/tarsygate/llmgate/pkg/config"
	"github.com/tarsygate/llmgate/pkg/registry"
	"github.com/tarsygate/llmgate/pkg/tracker"
	"github.com/tarsygate/llmgate/pkg/workerpool"
)

// pool is the subset of *workerpool.WorkerPool AgenticExecutor drives,
// narrowed to an interface so tests can submit fixed outcomes without
// spawning real subprocesses.
type pool interface {
	Submit(prompt string, model tracker.Tier, projectID string, deadline time.Duration) (string, error)
	Wait(ctx context.Context, taskID string) (workerpool.Snapshot, error)
}

// Event is one entry in the CLI's structured execution log: a tool call, an
// agent invocation, or a skill invocation.
type Event struct {
	Type      string          `json:"type"` // "tool_call", "agent_invoke", "skill_invoke"
	Name      string          `json:"name"`
	Detail    json.RawMessage `json:"detail,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// Artifact describes one file the task left behind in its workspace.
type Artifact struct {
	Path string
	Size int64
}

// Request is a single agentic task; every named tool, agent, and skill has
// already been permission-validated by Policy before reaching here.
type Request struct {
	TaskID      string
	ProjectID   string
	Description string
	Tools       []string
	Agents      []string
	Skills      []string
	Model       tracker.Tier
	Deadline    time.Duration
	CostCeiling decimal.Decimal
}

// Result is what a terminal agentic run produced, successful or not.
type Result struct {
	Content      string
	Usage        tracker.Usage
	ExecutionLog []Event
	Artifacts    []Artifact
	OverBudget   bool
}

// Executor runs agentic tasks on top of WorkerPool, adding workspace
// isolation, prompt enrichment, and post-run artifact/log collection.
type Executor struct {
	pool     pool
	registry *registry.Registry
	cfg      config.AgenticConfig
}

// New builds an Executor around a live WorkerPool and Registry.
func New(wp *workerpool.WorkerPool, reg *registry.Registry, cfg config.AgenticConfig) *Executor {
	return &Executor{pool: wp, registry: reg, cfg: cfg}
}

// Execute runs one agentic task end to end: workspace creation, prompt
// enrichment, submission, waiting for the terminal event, and artifact plus
// execution-log collection. On any failure it still returns whatever
// partial execution log it could recover.
func (e *Executor) Execute(ctx context.Context, req Request) (*Result, error) {
	workspace := filepath.Join(e.cfg.WorkspaceRoot, req.TaskID)
	if err := os.MkdirAll(workspace, 0o755); err != nil {
		return nil, apierr.TaskFailed(fmt.Sprintf("creating workspace: %v", err))
	}

	prompt := e.buildPrompt(req, workspace)

	taskID, err := e.pool.Submit(prompt, req.Model, req.ProjectID, req.Deadline)
	if err != nil {
		return nil, err
	}

	snap, err := e.pool.Wait(ctx, taskID)
	if err != nil {
		return &Result{ExecutionLog: e.readExecutionLog(workspace)}, err
	}

	result := &Result{ExecutionLog: e.readExecutionLog(workspace)}

	if snap.Err != nil {
		return result, snap.Err
	}

	artifacts, err := collectArtifacts(workspace, e.cfg.ExecutionLogFile)
	if err != nil {
		return result, apierr.TaskFailed(fmt.Sprintf("collecting artifacts: %v", err))
	}
	result.Artifacts = artifacts

	if snap.Result != nil {
		result.Content = snap.Result.Content
		result.Usage = snap.Result.Usage
		if !req.CostCeiling.IsZero() && result.Usage.CostUSD.GreaterThan(req.CostCeiling) {
			result.OverBudget = true
		}
	}

	return result, nil
}

// buildPrompt prepends the enriched capability block to the task
// description and appends a preamble enumerating the tools the task is
// allowed to use, which the CLI reads to scope its own tool gating.
func (e *Executor) buildPrompt(req Request, workspace string) string {
	enriched := e.registry.EnrichPrompt(req.Description, req.Agents, req.Skills)

	var b strings.Builder
	b.WriteString(enriched)
	if len(req.Tools) > 0 {
		fmt.Fprintf(&b, "\n\nAllowed tools for this task: %s\n", strings.Join(req.Tools, ", "))
	}
	fmt.Fprintf(&b, "Workspace directory: %s\n", workspace)
	return b.String()
}

// readExecutionLog best-effort parses the CLI's structured execution log,
// returning nil (not an error) if the file is missing or malformed — a
// partial or absent log must never mask the task's real outcome.
func (e *Executor) readExecutionLog(workspace string) []Event {
	path := filepath.Join(workspace, e.cfg.ExecutionLogFile)
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var events []Event
	if err := json.Unmarshal(raw, &events); err != nil {
		return nil
	}
	return events
}

// collectArtifacts walks the workspace and returns every file's
// workspace-relative path and size, excluding the execution log itself.
// Artifacts are always relative by construction (derived from filepath.Walk
// under workspace); anti-escape is enforced by dropping any entry whose
// relative path would climb above the workspace root, which can only
// happen via a symlink the task created.
func collectArtifacts(workspace, executionLogFile string) ([]Artifact, error) {
	var artifacts []Artifact
	err := filepath.Walk(workspace, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(workspace, path)
		if err != nil {
			return err
		}
		if rel == executionLogFile {
			return nil
		}
		if strings.HasPrefix(rel, "..") {
			return nil // anti-escape: drop, don't fail the whole collection
		}
		artifacts = append(artifacts, Artifact{Path: rel, Size: info.Size()})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return artifacts, nil
}
