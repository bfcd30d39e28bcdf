package agentic

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tarsygate/llmgate/pkg/apierr"
	"github.com/tarsygate/llmgate/pkg/config"
	"github.com/tarsygate/llmgate/pkg/registry"
	"github.com/tarsygate/llmgate/pkg/tracker"
	"github.com/tarsygate/llmgate/pkg/workerpool"
)

type fakePool struct {
	snap workerpool.Snapshot
	err  error
}

func (f *fakePool) Submit(prompt string, model tracker.Tier, projectID string, deadline time.Duration) (string, error) {
	return "task-1", nil
}

func (f *fakePool) Wait(ctx context.Context, taskID string) (workerpool.Snapshot, error) {
	return f.snap, f.err
}

func newTestExecutor(t *testing.T, p pool) (*Executor, config.AgenticConfig) {
	t.Helper()
	root := t.TempDir()
	cfg := config.AgenticConfig{WorkspaceRoot: root, ExecutionLogFile: "execution_log.json"}
	reg := registry.New(t.TempDir(), t.TempDir(), time.Minute, nil)
	return &Executor{pool: p, registry: reg, cfg: cfg}, cfg
}

func TestExecute_CollectsArtifactsAndExecutionLog(t *testing.T) {
	fp := &fakePool{snap: workerpool.Snapshot{
		State:  workerpool.StateCompleted,
		Result: &workerpool.Result{Content: "done", Usage: tracker.Usage{CostUSD: decimal.NewFromFloat(0.01)}},
	}}
	exec, cfg := newTestExecutor(t, fp)

	req := Request{TaskID: "task-1", Description: "do a thing", Model: tracker.TierSmall, Deadline: time.Second}
	workspace := filepath.Join(cfg.WorkspaceRoot, req.TaskID)
	require.NoError(t, os.MkdirAll(workspace, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(workspace, "output.txt"), []byte("hello"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(workspace, cfg.ExecutionLogFile), []byte(`[{"type":"tool_call","name":"grep"}]`), 0o644))

	result, err := exec.Execute(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, "done", result.Content)
	require.Len(t, result.Artifacts, 1)
	assert.Equal(t, "output.txt", result.Artifacts[0].Path)
	require.Len(t, result.ExecutionLog, 1)
	assert.Equal(t, "grep", result.ExecutionLog[0].Name)
	assert.False(t, result.OverBudget)
}

func TestExecute_OverBudgetFlagged(t *testing.T) {
	fp := &fakePool{snap: workerpool.Snapshot{
		State:  workerpool.StateCompleted,
		Result: &workerpool.Result{Content: "done", Usage: tracker.Usage{CostUSD: decimal.NewFromFloat(10)}},
	}}
	exec, cfg := newTestExecutor(t, fp)

	req := Request{TaskID: "task-1", Description: "x", Model: tracker.TierSmall, Deadline: time.Second, CostCeiling: decimal.NewFromFloat(1)}
	require.NoError(t, os.MkdirAll(filepath.Join(cfg.WorkspaceRoot, req.TaskID), 0o755))

	result, err := exec.Execute(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, result.OverBudget)
}

func TestExecute_FailedTaskPropagatesErrWithPartialLog(t *testing.T) {
	fp := &fakePool{snap: workerpool.Snapshot{
		State: workerpool.StateFailed,
		Err:   apierr.TaskFailed("boom"),
	}}
	exec, cfg := newTestExecutor(t, fp)

	req := Request{TaskID: "task-1", Description: "x", Model: tracker.TierSmall, Deadline: time.Second}
	workspace := filepath.Join(cfg.WorkspaceRoot, req.TaskID)
	require.NoError(t, os.MkdirAll(workspace, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(workspace, cfg.ExecutionLogFile), []byte(`[{"type":"tool_call","name":"partial"}]`), 0o644))

	result, err := exec.Execute(context.Background(), req)
	require.Error(t, err)
	require.NotNil(t, result)
	require.Len(t, result.ExecutionLog, 1)
	assert.Equal(t, "partial", result.ExecutionLog[0].Name)
}

func TestExecute_MalformedExecutionLogIsNotFatal(t *testing.T) {
	fp := &fakePool{snap: workerpool.Snapshot{
		State:  workerpool.StateCompleted,
		Result: &workerpool.Result{Content: "done"},
	}}
	exec, cfg := newTestExecutor(t, fp)

	req := Request{TaskID: "task-1", Description: "x", Model: tracker.TierSmall, Deadline: time.Second}
	workspace := filepath.Join(cfg.WorkspaceRoot, req.TaskID)
	require.NoError(t, os.MkdirAll(workspace, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(workspace, cfg.ExecutionLogFile), []byte(`not json`), 0o644))

	result, err := exec.Execute(context.Background(), req)
	require.NoError(t, err)
	assert.Nil(t, result.ExecutionLog)
}
