// Package wscheduler is the C4 component: the single goroutine that owns
// the task queue and is the only thing ever allowed to mutate it. Every
// other part of the system talks to it exclusively through channels.
package wscheduler

import (
	"context"
	"log/slog"

	"github.com/vitaliisemenov/webhookd/internal/config"
	"github.com/vitaliisemenov/webhookd/internal/wqueue"
	"github.com/vitaliisemenov/webhookd/internal/wtask"
)

// Scheduler serialises all queue access behind a single processing loop.
// Construct with New and start it with Run in its own goroutine; every
// other method is just a channel send and is safe to call concurrently.
type Scheduler struct {
	newTaskCh   chan wtask.NewTask
	completedCh chan wtask.TaskCompleted
	getQueueCh  chan chan wqueue.Snapshot

	dispatch chan<- wtask.StartTask
	queue    *wqueue.TaskQueue
	logger   *slog.Logger
}

// New builds a Scheduler. dispatch is the channel the executor pool reads
// StartTask messages from; the scheduler never holds a reference to the
// pool itself, only to this channel.
func New(cfg *config.Config, dispatch chan<- wtask.StartTask, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		newTaskCh:   make(chan wtask.NewTask, 64),
		completedCh: make(chan wtask.TaskCompleted, 64),
		getQueueCh:  make(chan chan wqueue.Snapshot),
		dispatch:    dispatch,
		queue:       wqueue.New(cfg),
		logger:      logger,
	}
}

// Submit enqueues a rendered webhook invocation. Never blocks the caller
// on dispatch — admission and dispatch both happen on the scheduler's own
// goroutine.
func (s *Scheduler) Submit(ctx context.Context, task wtask.NewTask) {
	select {
	case s.newTaskCh <- task:
	case <-ctx.Done():
	}
}

// GetQueue returns a point-in-time snapshot of the queue's state.
func (s *Scheduler) GetQueue(ctx context.Context) (wqueue.Snapshot, error) {
	reply := make(chan wqueue.Snapshot, 1)
	select {
	case s.getQueueCh <- reply:
	case <-ctx.Done():
		return wqueue.Snapshot{}, ctx.Err()
	}
	select {
	case snap := <-reply:
		return snap, nil
	case <-ctx.Done():
		return wqueue.Snapshot{}, ctx.Err()
	}
}

// Run is the scheduler's single processing loop. It owns the queue
// exclusively: every mutation happens here, and a dispatch cycle runs
// after each one. Run blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Info("scheduler started")
	defer s.logger.Info("scheduler stopped")

	for {
		select {
		case <-ctx.Done():
			return

		case task := <-s.newTaskCh:
			before := s.queue.MaxID()
			s.queue.Admit(task)
			if s.queue.MaxID() != before {
				tasksAdmittedTotal.WithLabelValues(task.WebhookName).Inc()
			} else {
				tasksRejectedTotal.WithLabelValues(task.WebhookName).Inc()
			}
			s.dispatchCycle(ctx)

		case completed := <-s.completedCh:
			task, err := s.queue.Finalise(completed)
			if err != nil {
				s.logger.Error("finalise failed", "task_id", completed.TaskID, "error", err)
				continue
			}
			tasksCompletedTotal.WithLabelValues(task.WebhookName, outcomeLabel(completed.ExitCode)).Inc()
			s.dispatchCycle(ctx)

		case reply := <-s.getQueueCh:
			reply <- s.queue.Snapshot()
		}
	}
}

// dispatchCycle hands every newly eligible task to the executor pool.
// Sends are best-effort against ctx so a cancelled shutdown can't hang the
// scheduler loop on a full dispatch channel.
func (s *Scheduler) dispatchCycle(ctx context.Context) {
	for _, task := range s.queue.SelectForDispatch() {
		start := wtask.StartTask{
			TaskID:      task.TaskID,
			WebhookName: task.WebhookName,
			Command:     task.Command,
			Cwd:         task.Cwd,
			ReplyTo:     s.completedCh,
		}
		select {
		case s.dispatch <- start:
		case <-ctx.Done():
			return
		}
	}

	recordCounts(s.queue.Snapshot().QueuedCount, queuedGauge)
	recordCounts(s.queue.Snapshot().RunningCount, runningGauge)

	if s.logger.Enabled(ctx, slog.LevelDebug) {
		s.logger.Debug("queue snapshot", "snapshot", s.queue.Snapshot())
	}
}
