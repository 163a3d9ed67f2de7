package supervisor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/wbwatch/wbwatch/internal/models"
	"github.com/wbwatch/wbwatch/internal/scraper"
)

// Report is the JSON a worker process writes to stdout: exactly one of
// Snapshot or Error. The encoding must be lossless for every snapshot field.
type Report struct {
	Snapshot *models.Snapshot `json:"snapshot,omitempty"`
	Error    *ReportError     `json:"error,omitempty"`
}

type ReportError struct {
	Code    models.ErrorCode `json:"code"`
	Message string           `json:"message"`
}

// Options configures the supervisor.
type Options struct {
	// WorkerCommand is the argv prefix of the isolated worker binary.
	WorkerCommand []string
	// PoolSize bounds concurrent workers; one browser instance per slot.
	PoolSize int
	// Timeout is the hard wall-clock deadline per run, enforced from the
	// outside regardless of what the worker is doing.
	Timeout time.Duration
	// TempRoot is where per-run scratch directories are created.
	TempRoot string
}

func DefaultOptions() *Options {
	return &Options{
		WorkerCommand: []string{"wbwatch-worker"},
		PoolSize:      2,
		Timeout:       45 * time.Second,
		TempRoot:      os.TempDir(),
	}
}

// Supervisor executes one extraction per call inside a short-lived worker
// process. The worker gets its own scratch directory for browser profiles;
// the supervisor owns that directory and reclaims it on every exit path,
// including timeout and external kill. Workers are never respawned
// automatically; retrying is an explicit caller decision.
type Supervisor struct {
	opts   *Options
	slots  chan struct{}
	logger *slog.Logger
}

func New(opts *Options, logger *slog.Logger) *Supervisor {
	if opts == nil {
		opts = DefaultOptions()
	}
	if opts.PoolSize < 1 {
		opts.PoolSize = 1
	}
	return &Supervisor{
		opts:   opts,
		slots:  make(chan struct{}, opts.PoolSize),
		logger: logger.With("component", "supervisor"),
	}
}

// Run dispatches one extraction to a free worker slot, blocking until a slot
// opens or ctx is done. Worst-case latency is bounded by Timeout plus
// process reaping.
func (s *Supervisor) Run(ctx context.Context, article string) (*models.Snapshot, error) {
	// Malformed identifiers never cost a worker slot.
	if err := scraper.ValidateArticle(article); err != nil {
		return nil, err
	}

	select {
	case s.slots <- struct{}{}:
		defer func() { <-s.slots }()
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for worker slot: %w", ctx.Err())
	}

	return s.runWorker(ctx, article)
}

func (s *Supervisor) runWorker(ctx context.Context, article string) (*models.Snapshot, error) {
	runID := uuid.New().String()
	scratchDir := filepath.Join(s.opts.TempRoot, "wbwatch-run-"+runID)
	if err := os.MkdirAll(scratchDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create scratch dir: %w", err)
	}
	// Reclaimed unconditionally, even when the worker was killed and had no
	// chance to clean up after itself.
	defer func() {
		if err := os.RemoveAll(scratchDir); err != nil {
			s.logger.Error("failed to remove scratch dir", "dir", scratchDir, "error", err)
		}
	}()

	argv := append(append([]string{}, s.opts.WorkerCommand...),
		"-article", article, "-profile-root", scratchDir)

	var stdout, stderr bytes.Buffer
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	// Each worker runs in its own process group so a kill reaps the browser
	// processes it spawned, not just the worker itself.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, models.WrapExtractionError(models.ErrWorkerCrashed, "failed to start worker", err)
	}

	s.logger.Info("worker started", "article", article, "run", runID, "pid", cmd.Process.Pid)

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	timer := time.NewTimer(s.opts.Timeout)
	defer timer.Stop()

	select {
	case <-timer.C:
		s.killGroup(cmd)
		<-done
		s.logger.Warn("worker exceeded deadline", "article", article, "run", runID, "timeout", s.opts.Timeout)
		return nil, models.NewExtractionError(models.ErrFetchTimeout,
			fmt.Sprintf("extraction exceeded %s deadline", s.opts.Timeout))

	case <-ctx.Done():
		s.killGroup(cmd)
		<-done
		if ctx.Err() == context.DeadlineExceeded {
			return nil, models.NewExtractionError(models.ErrFetchTimeout, "caller deadline elapsed")
		}
		return nil, ctx.Err()

	case waitErr := <-done:
		return s.interpretExit(article, runID, waitErr, &stdout, &stderr, time.Since(start))
	}
}

func (s *Supervisor) interpretExit(article, runID string, waitErr error, stdout, stderr *bytes.Buffer, elapsed time.Duration) (*models.Snapshot, error) {
	report, parseErr := parseReport(stdout.Bytes())

	if parseErr != nil {
		s.logger.Error("worker produced no usable report",
			"article", article, "run", runID, "waitError", waitErr, "stderr", tail(stderr.String(), 2048))
		msg := "worker terminated without a report"
		if waitErr != nil {
			msg = fmt.Sprintf("worker terminated abnormally: %v", waitErr)
		}
		return nil, models.NewExtractionError(models.ErrWorkerCrashed, msg)
	}

	if report.Error != nil {
		s.logger.Info("worker reported failure",
			"article", article, "run", runID, "code", report.Error.Code, "elapsed", elapsed)
		return nil, models.NewExtractionError(report.Error.Code, report.Error.Message)
	}

	if report.Snapshot == nil {
		return nil, models.NewExtractionError(models.ErrWorkerCrashed, "worker report carried neither snapshot nor error")
	}

	s.logger.Info("worker finished", "article", article, "run", runID,
		"method", report.Snapshot.ExtractionMethod, "elapsed", elapsed)

	return report.Snapshot, nil
}

func (s *Supervisor) killGroup(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	if err := syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL); err != nil {
		// Group may be gone already; fall back to the direct pid.
		cmd.Process.Kill()
	}
}

func parseReport(out []byte) (*Report, error) {
	trimmed := bytes.TrimSpace(out)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty worker output")
	}

	var report Report
	if err := json.Unmarshal(trimmed, &report); err != nil {
		return nil, fmt.Errorf("malformed worker output: %w", err)
	}
	return &report, nil
}

func tail(s string, max int) string {
	s = strings.TrimSpace(s)
	if len(s) <= max {
		return s
	}
	return s[len(s)-max:]
}
