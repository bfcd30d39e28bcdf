package workerpool

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tarsygate/llmgate/pkg/config"
	"github.com/tarsygate/llmgate/pkg/tracker"
)

func testPrices() map[string]config.ResolvedPrice {
	return map[string]config.ResolvedPrice{
		"small": {
			InputPerMillion:  decimal.NewFromInt(1),
			OutputPerMillion: decimal.NewFromInt(2),
			Names:            []string{"mock"},
		},
	}
}

// writeFakeCLI writes a shell script standing in for the real CLI binary: it
// ignores its arguments, optionally sleeps, and prints a
// tracker-shaped JSON usage blob (or garbage, or hangs past SIGTERM) to
// stdout, so tests exercise the real exec.Cmd lifecycle without a network
// dependency.
func writeFakeCLI(t *testing.T, dir, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake CLI script is a POSIX shell script")
	}
	path := filepath.Join(dir, "fake-cli.sh")
	script := "#!/bin/sh\n" + body + "\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func newTestPool(t *testing.T, cliBody string, maxConcurrent int) *WorkerPool {
	t.Helper()
	dir := t.TempDir()
	cli := writeFakeCLI(t, dir, cliBody)
	cfg := config.WorkerPoolConfig{
		MaxConcurrent:   maxConcurrent,
		DefaultDeadline: 2 * time.Second,
		WorkDir:         dir,
		CLIBinaryPath:   cli,
		KillGracePeriod: 500 * time.Millisecond,
		QueueCapacity:   10,
	}
	tr := tracker.New(testPrices())
	pool := New(cfg, tr, nil)
	t.Cleanup(func() { pool.Shutdown(2 * time.Second) })
	return pool
}

func TestWorkerPool_CompletedDeliversExactlyOneOf(t *testing.T) {
	pool := newTestPool(t, `echo '{"model":"mock-1","usage":{"input_tokens":10,"output_tokens":5}}'`, 1)

	id, err := pool.Submit("hello", tracker.TierSmall, "proj-a", time.Second)
	require.NoError(t, err)

	snap, err := pool.Wait(context.Background(), id)
	require.NoError(t, err)

	assert.Equal(t, StateCompleted, snap.State)
	require.NotNil(t, snap.Result)
	assert.Nil(t, snap.Err)
	assert.Equal(t, 10, snap.Result.Usage.InputTokens)
	assert.Equal(t, 5, snap.Result.Usage.OutputTokens)
}

func TestWorkerPool_FailedOutputDeliversErrNotResult(t *testing.T) {
	pool := newTestPool(t, `echo 'not json at all'`, 1)

	id, err := pool.Submit("hello", tracker.TierSmall, "proj-a", time.Second)
	require.NoError(t, err)

	snap, err := pool.Wait(context.Background(), id)
	require.NoError(t, err)

	assert.Equal(t, StateFailed, snap.State)
	assert.Nil(t, snap.Result)
	assert.Error(t, snap.Err)
}

func TestWorkerPool_NonZeroExitIsFailed(t *testing.T) {
	pool := newTestPool(t, `echo 'boom' 1>&2; exit 1`, 1)

	id, err := pool.Submit("hello", tracker.TierSmall, "proj-a", time.Second)
	require.NoError(t, err)

	snap, err := pool.Wait(context.Background(), id)
	require.NoError(t, err)

	assert.Equal(t, StateFailed, snap.State)
	assert.Nil(t, snap.Result)
	require.Error(t, snap.Err)
	assert.Contains(t, snap.Err.Error(), "boom")
}

func TestWorkerPool_DeadlineExpiryTimesOut(t *testing.T) {
	pool := newTestPool(t, `sleep 5; echo '{"model":"mock-1","usage":{"input_tokens":1,"output_tokens":1}}'`, 1)

	id, err := pool.Submit("hello", tracker.TierSmall, "proj-a", 200*time.Millisecond)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	snap, err := pool.Wait(ctx, id)
	require.NoError(t, err)

	assert.Equal(t, StateTimedOut, snap.State)
	assert.Nil(t, snap.Result)
	assert.Error(t, snap.Err)
}

func TestWorkerPool_CancelQueuedTaskNeverRuns(t *testing.T) {
	marker := filepath.Join(t.TempDir(), "ran")
	pool := newTestPool(t, fmt.Sprintf(`touch %s; echo '{"model":"mock-1","usage":{"input_tokens":1,"output_tokens":1}}'`, marker), 1)

	// Occupy the single worker so the second submission stays queued.
	blockerID, err := pool.Submit("block", tracker.TierSmall, "proj-a", 2*time.Second)
	require.NoError(t, err)

	queuedID, err := pool.Submit("queued", tracker.TierSmall, "proj-a", 2*time.Second)
	require.NoError(t, err)

	require.NoError(t, pool.Cancel(queuedID))

	snap, err := pool.Wait(context.Background(), queuedID)
	require.NoError(t, err)
	assert.Equal(t, StateCancelled, snap.State)

	_, err = pool.Wait(context.Background(), blockerID)
	require.NoError(t, err)

	_, statErr := os.Stat(marker)
	assert.True(t, os.IsNotExist(statErr), "cancelled queued task must never execute")
}

func TestWorkerPool_CancelRunningTaskKillsProcessGroup(t *testing.T) {
	pool := newTestPool(t, `trap '' TERM; sleep 10`, 1)

	id, err := pool.Submit("hello", tracker.TierSmall, "proj-a", 5*time.Second)
	require.NoError(t, err)

	// Give the process a moment to actually start before cancelling.
	time.Sleep(150 * time.Millisecond)
	require.NoError(t, pool.Cancel(id))

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	snap, err := pool.Wait(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StateCancelled, snap.State)
}

func TestWorkerPool_CancelIsIdempotent(t *testing.T) {
	pool := newTestPool(t, `echo '{"model":"mock-1","usage":{"input_tokens":1,"output_tokens":1}}'`, 1)

	id, err := pool.Submit("hello", tracker.TierSmall, "proj-a", time.Second)
	require.NoError(t, err)

	_, err = pool.Wait(context.Background(), id)
	require.NoError(t, err)

	// Calling Cancel after the task already finished must not panic or
	// overwrite its terminal state.
	require.NoError(t, pool.Cancel(id))
	require.NoError(t, pool.Cancel(id))

	snap, err := pool.Wait(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, snap.State)
}

func TestWorkerPool_ShutdownDrainsQueueAndJoinsWorkers(t *testing.T) {
	pool := newTestPool(t, `sleep 0.3; echo '{"model":"mock-1","usage":{"input_tokens":1,"output_tokens":1}}'`, 2)

	var ids []string
	for i := 0; i < 5; i++ {
		id, err := pool.Submit("hello", tracker.TierSmall, "proj-a", 2*time.Second)
		require.NoError(t, err)
		ids = append(ids, id)
	}

	pool.Shutdown(3 * time.Second)

	stats := pool.Stats()
	assert.Equal(t, 0, stats.Running)

	_, err := pool.Submit("after-shutdown", tracker.TierSmall, "proj-a", time.Second)
	assert.Error(t, err, "pool must refuse submissions after shutdown")
}

func TestWorkerPool_QueueCapacityRejectsOverflow(t *testing.T) {
	dir := t.TempDir()
	cli := writeFakeCLI(t, dir, `sleep 1; echo '{"model":"mock-1","usage":{"input_tokens":1,"output_tokens":1}}'`)
	cfg := config.WorkerPoolConfig{
		MaxConcurrent:   1,
		DefaultDeadline: 2 * time.Second,
		WorkDir:         dir,
		CLIBinaryPath:   cli,
		KillGracePeriod: 200 * time.Millisecond,
		QueueCapacity:   1,
	}
	pool := New(cfg, tracker.New(testPrices()), nil)
	t.Cleanup(func() { pool.Shutdown(2 * time.Second) })

	_, err := pool.Submit("occupies-worker", tracker.TierSmall, "proj-a", 2*time.Second)
	require.NoError(t, err)
	_, err = pool.Submit("fills-queue", tracker.TierSmall, "proj-a", 2*time.Second)
	require.NoError(t, err)

	_, err = pool.Submit("overflow", tracker.TierSmall, "proj-a", 2*time.Second)
	assert.Error(t, err)
}

func TestWorkerPool_WaitRespectsCallerContext(t *testing.T) {
	pool := newTestPool(t, `sleep 5; echo '{"model":"mock-1","usage":{"input_tokens":1,"output_tokens":1}}'`, 1)

	id, err := pool.Submit("hello", tracker.TierSmall, "proj-a", 2*time.Second)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = pool.Wait(ctx, id)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWorkerPool_UnknownTaskIDErrors(t *testing.T) {
	pool := newTestPool(t, `echo '{}'`, 1)

	_, err := pool.Wait(context.Background(), "does-not-exist")
	assert.Error(t, err)

	err = pool.Cancel("does-not-exist")
	assert.Error(t, err)
}
