// Package wexecutor is the C3 component: a fixed pool of worker goroutines
// that shell out to run a task's command and report the result back.
//
// The original implementation this was modelled on silently dropped a task
// when the shell itself could not be spawned, leaving the scheduler
// waiting forever for a TaskCompleted that would never arrive. Workers
// here always reply — a spawn failure is reported as a synthetic
// completion with ExitCode -1 so the scheduler can free the slot.
package wexecutor

import (
	"bytes"
	"context"
	"log/slog"
	"os/exec"
	"unicode/utf8"

	"github.com/vitaliisemenov/webhookd/internal/wtask"
)

// Pool runs StartTask messages on a fixed number of worker goroutines.
type Pool struct {
	work    chan wtask.StartTask
	workers int
	logger  *slog.Logger
}

// New builds a Pool. Callers pass the same value used as the scheduler's
// global concurrency cap; with zero workers Run returns at once and no
// command is ever run. work is the channel the scheduler sends StartTask
// messages on.
func New(workers int, work chan wtask.StartTask, logger *slog.Logger) *Pool {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pool{work: work, workers: workers, logger: logger}
}

// Run starts the worker goroutines and blocks until ctx is cancelled and
// every in-flight command has returned.
func (p *Pool) Run(ctx context.Context) {
	done := make(chan struct{}, p.workers)
	for i := 0; i < p.workers; i++ {
		go p.worker(ctx, i, done)
	}
	for i := 0; i < p.workers; i++ {
		<-done
	}
}

func (p *Pool) worker(ctx context.Context, id int, done chan<- struct{}) {
	defer func() { done <- struct{}{} }()

	for {
		select {
		case <-ctx.Done():
			return
		case task, ok := <-p.work:
			if !ok {
				return
			}
			p.run(ctx, id, task)
		}
	}
}

func (p *Pool) run(ctx context.Context, workerID int, task wtask.StartTask) {
	p.logger.Info("starting task", "worker", workerID, "task_id", task.TaskID, "webhook", task.WebhookName, "command", task.Command)

	cmd := exec.CommandContext(ctx, "sh", "-c", task.Command)
	cmd.Dir = task.Cwd

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	completed := wtask.TaskCompleted{
		TaskID: task.TaskID,
		Stdout: sanitizeUTF8(stdout.String()),
		Stderr: sanitizeUTF8(stderr.String()),
	}

	switch e := err.(type) {
	case nil:
		completed.ExitCode = 0
	case *exec.ExitError:
		completed.ExitCode = int32(e.ExitCode())
		if e.ExitCode() < 0 {
			// Killed by a signal rather than a normal exit.
			completed.ExitCode = 1
		}
	default:
		// The command could never be spawned at all (missing shell,
		// permission denied, bad cwd, ...). Reply anyway so the
		// scheduler's running slot is freed instead of leaking.
		p.logger.Warn("task could not be spawned", "task_id", task.TaskID, "error", err)
		completed.ExitCode = -1
		completed.Stderr = err.Error()
	}

	p.logger.Info("task finished", "worker", workerID, "task_id", task.TaskID, "exit_code", completed.ExitCode)

	select {
	case task.ReplyTo <- completed:
	case <-ctx.Done():
	}
}

// sanitizeUTF8 replaces invalid byte sequences so the result is always
// safe to embed in a JSON snapshot.
func sanitizeUTF8(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	return string([]rune(s))
}
