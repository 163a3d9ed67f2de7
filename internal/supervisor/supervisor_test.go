package supervisor

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wbwatch/wbwatch/internal/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// shWorker builds options running a shell script in place of the real worker
// binary. The appended -article/-profile-root flags land in the script's
// positional parameters and are ignored.
func shWorker(t *testing.T, script string, timeout time.Duration) *Options {
	t.Helper()
	opts := DefaultOptions()
	opts.WorkerCommand = []string{"sh", "-c", script}
	opts.Timeout = timeout
	opts.TempRoot = t.TempDir()
	return opts
}

func scratchDirCount(t *testing.T, root string) int {
	t.Helper()
	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	return len(entries)
}

func TestRunReportsSnapshot(t *testing.T) {
	opts := shWorker(t, `echo '{"snapshot":{"product_id":"184729357","name":"Кроссовки","price":1196,"extraction_method":"structured-fetch","captured_at":"2026-08-30T12:00:00Z"}}'`, 5*time.Second)
	sup := New(opts, testLogger())

	snapshot, err := sup.Run(context.Background(), "184729357")
	require.NoError(t, err)

	assert.Equal(t, "184729357", snapshot.ProductID)
	require.NotNil(t, snapshot.Price)
	assert.Equal(t, 1196, *snapshot.Price)
	assert.Equal(t, models.MethodStructuredFetch, snapshot.ExtractionMethod)
	assert.Zero(t, scratchDirCount(t, opts.TempRoot), "scratch dir must be reclaimed after success")
}

func TestRunReportsTypedError(t *testing.T) {
	opts := shWorker(t, `echo '{"error":{"code":"out_of_stock","message":"listing unavailable"}}'`, 5*time.Second)
	sup := New(opts, testLogger())

	snapshot, err := sup.Run(context.Background(), "184729357")

	assert.Nil(t, snapshot)
	assert.True(t, models.IsCode(err, models.ErrOutOfStock))
	assert.Zero(t, scratchDirCount(t, opts.TempRoot))
}

func TestRunTimeoutKillsWorker(t *testing.T) {
	opts := shWorker(t, `sleep 30`, 300*time.Millisecond)
	sup := New(opts, testLogger())

	start := time.Now()
	snapshot, err := sup.Run(context.Background(), "184729357")
	elapsed := time.Since(start)

	assert.Nil(t, snapshot)
	assert.True(t, models.IsCode(err, models.ErrFetchTimeout))
	assert.Less(t, elapsed, 3*time.Second, "latency must stay near the deadline, not the worker's runtime")
	assert.Zero(t, scratchDirCount(t, opts.TempRoot), "scratch dir must be reclaimed after a kill")
}

func TestRunWorkerKilledExternally(t *testing.T) {
	opts := shWorker(t, `kill -9 $$`, 5*time.Second)
	sup := New(opts, testLogger())

	snapshot, err := sup.Run(context.Background(), "184729357")

	assert.Nil(t, snapshot)
	assert.True(t, models.IsCode(err, models.ErrWorkerCrashed))
	assert.Zero(t, scratchDirCount(t, opts.TempRoot))
}

func TestRunWorkerGarbageOutput(t *testing.T) {
	opts := shWorker(t, `echo 'stack trace: panic at 0xdeadbeef'`, 5*time.Second)
	sup := New(opts, testLogger())

	_, err := sup.Run(context.Background(), "184729357")
	assert.True(t, models.IsCode(err, models.ErrWorkerCrashed))
}

func TestRunWorkerExitNonZeroWithoutReport(t *testing.T) {
	opts := shWorker(t, `exit 1`, 5*time.Second)
	sup := New(opts, testLogger())

	_, err := sup.Run(context.Background(), "184729357")
	assert.True(t, models.IsCode(err, models.ErrWorkerCrashed))
}

func TestRunInvalidArticleSkipsWorker(t *testing.T) {
	opts := shWorker(t, `echo should-never-run`, 5*time.Second)
	sup := New(opts, testLogger())

	snapshot, err := sup.Run(context.Background(), "12ab")

	assert.Nil(t, snapshot)
	assert.True(t, models.IsCode(err, models.ErrInvalidIdentifier))
	assert.Zero(t, scratchDirCount(t, opts.TempRoot), "no scratch dir may be created for rejected input")
}

func TestRunCancelledContext(t *testing.T) {
	opts := shWorker(t, `sleep 30`, 10*time.Second)
	sup := New(opts, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := sup.Run(ctx, "184729357")

	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), 3*time.Second)
	assert.Zero(t, scratchDirCount(t, opts.TempRoot))
}

func TestRunPoolBoundsConcurrency(t *testing.T) {
	opts := shWorker(t, `sleep 0.3; echo '{"snapshot":{"product_id":"184729357","name":"x","extraction_method":"browser-automation","captured_at":"2026-08-30T12:00:00Z"}}'`, 5*time.Second)
	opts.PoolSize = 1
	sup := New(opts, testLogger())

	start := time.Now()
	done := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, err := sup.Run(context.Background(), "184729357")
			done <- err
		}()
	}
	for i := 0; i < 2; i++ {
		require.NoError(t, <-done)
	}

	// Two runs through a single slot cannot overlap.
	assert.GreaterOrEqual(t, time.Since(start), 600*time.Millisecond)
}

func TestParseReport(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"snapshot report", `{"snapshot":{"product_id":"1"}}`, false},
		{"error report", `{"error":{"code":"no_usable_data","message":"blocked"}}`, false},
		{"surrounding whitespace", "\n  {\"snapshot\":{\"product_id\":\"1\"}}  \n", false},
		{"empty output", "", true},
		{"garbage", "panic: runtime error", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseReport([]byte(tt.input))
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
