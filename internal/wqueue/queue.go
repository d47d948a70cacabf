// Package wqueue is the pure, single-threaded data structure behind the
// scheduler: per-webhook admission policy, FIFO dispatch ordering, and a
// serialisable snapshot. It owns no goroutines and performs no I/O — every
// operation here is called from the scheduler's single processing loop.
package wqueue

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/vitaliisemenov/webhookd/internal/config"
	"github.com/vitaliisemenov/webhookd/internal/wtask"
)

// defaultFinishedHistorySize bounds how many finished tasks are retained
// in memory. There is no persistence (by design — see spec Non-goals), so
// without a cap a long-lived process would grow `finished` without bound.
const defaultFinishedHistorySize = 1000

// TaskQueue is the C2 component: counters, the three task collections, and
// the admission/dispatch policy. Not safe for concurrent use — callers
// (the scheduler) must serialise access.
type TaskQueue struct {
	cfg   *config.Config
	maxID int32

	queuedCount  map[string]int
	runningCount map[string]int

	queued   *orderedTasks
	running  *orderedTasks
	finished *lru.Cache[int32, *wtask.Task]
}

// New builds an empty TaskQueue bound to the given (read-only) config.
func New(cfg *config.Config) *TaskQueue {
	queuedCount := make(map[string]int, len(cfg.Webhooks))
	runningCount := make(map[string]int, len(cfg.Webhooks))
	for _, wh := range cfg.Webhooks {
		queuedCount[wh.Name] = 0
		runningCount[wh.Name] = 0
	}

	finished, err := lru.New[int32, *wtask.Task](defaultFinishedHistorySize)
	if err != nil {
		// Only returns an error for a non-positive size, which the
		// constant above never is.
		panic(err)
	}

	return &TaskQueue{
		cfg:          cfg,
		queuedCount:  queuedCount,
		runningCount: runningCount,
		queued:       newOrderedTasks(),
		running:      newOrderedTasks(),
		finished:     finished,
	}
}

// Admit resolves the webhook by name and applies its mode's admission
// policy. Rejections are silent no-ops: the caller (the HTTP front-end)
// has already acknowledged the request by the time this runs.
func (q *TaskQueue) Admit(incoming wtask.NewTask) {
	wh, ok := q.cfg.WebhookByName(incoming.WebhookName)
	if !ok {
		return
	}

	switch wh.Mode {
	case config.ModeSingle:
		if q.queuedCount[wh.Name] > 0 || q.runningCount[wh.Name] > 0 {
			return
		}
	case config.ModeDeploy:
		if q.queuedCount[wh.Name] > 0 {
			return
		}
	case config.ModeParallel:
		// always accept
	default:
		return
	}

	q.maxID++
	task := &wtask.Task{
		TaskID:      q.maxID,
		WebhookName: incoming.WebhookName,
		Command:     incoming.Command,
		Cwd:         incoming.Cwd,
		AddedAt:     incoming.AddedAt,
	}
	q.queued.Put(task)
	q.queuedCount[wh.Name]++
}

// SelectForDispatch computes which queued tasks should start now and moves
// them into running. The walk snapshots queued ids first, then evaluates
// per-id eligibility, so removing entries mid-walk can't invalidate the
// iteration (see design notes in spec.md §9).
func (q *TaskQueue) SelectForDispatch() []*wtask.Task {
	slots := q.cfg.Workers - q.running.Len()
	if slots <= 0 {
		return nil
	}

	dispatched := make([]*wtask.Task, 0, slots)
	for _, id := range q.queued.IDsSnapshot() {
		if len(dispatched) == slots {
			break
		}

		task, ok := q.queued.Get(id)
		if !ok {
			// Already moved by an earlier iteration of this loop.
			continue
		}

		wh, ok := q.cfg.WebhookByName(task.WebhookName)
		if !ok {
			continue
		}

		eligible := false
		switch wh.Mode {
		case config.ModeSingle:
			eligible = true
		case config.ModeDeploy:
			eligible = q.runningCount[wh.Name] == 0
		case config.ModeParallel:
			eligible = q.runningCount[wh.Name] < wh.ParallelProcesses
		}
		if !eligible {
			continue
		}

		q.queued.Remove(id)
		q.queuedCount[wh.Name]--
		q.running.Put(task)
		q.runningCount[wh.Name]++
		dispatched = append(dispatched, task)
	}

	return dispatched
}

// Finalise records the outcome of a completed task, moving it from
// running to finished. It is a protocol error for the id to be missing
// from running — that can only happen if the executor pool sent a
// duplicate or stale TaskCompleted. Returns the finalised task so callers
// can label metrics/logs without a second lookup.
func (q *TaskQueue) Finalise(completed wtask.TaskCompleted) (*wtask.Task, error) {
	task, ok := q.running.Remove(completed.TaskID)
	if !ok {
		return nil, fmt.Errorf("wqueue: TaskCompleted for unknown running task %d", completed.TaskID)
	}

	exitCode := completed.ExitCode
	task.ExitCode = &exitCode
	task.Stdout = &completed.Stdout
	task.Stderr = &completed.Stderr

	q.runningCount[task.WebhookName]--
	q.finished.Add(task.TaskID, task)
	return task, nil
}

// Snapshot is the JSON-shaped view returned by GetQueue. Field names and
// ordering are part of the external interface — see spec.md §6.
type Snapshot struct {
	MaxID        int32                  `json:"max_id"`
	QueuedCount  map[string]int         `json:"queued_count"`
	RunningCount map[string]int         `json:"running_count"`
	Queued       map[string]*wtask.Task `json:"queued"`
	Running      map[string]*wtask.Task `json:"running"`
	Finished     map[string]*wtask.Task `json:"finished"`
}

// Snapshot produces a stable view of the queue's current state. Settings
// are deliberately excluded.
func (q *TaskQueue) Snapshot() Snapshot {
	toMap := func(tasks []*wtask.Task) map[string]*wtask.Task {
		m := make(map[string]*wtask.Task, len(tasks))
		for _, t := range tasks {
			m[fmt.Sprintf("%d", t.TaskID)] = t
		}
		return m
	}

	finishedTasks := make([]*wtask.Task, 0, q.finished.Len())
	for _, id := range q.finished.Keys() {
		if t, ok := q.finished.Peek(id); ok {
			finishedTasks = append(finishedTasks, t)
		}
	}

	return Snapshot{
		MaxID:        q.maxID,
		QueuedCount:  copyCounts(q.queuedCount),
		RunningCount: copyCounts(q.runningCount),
		Queued:       toMap(q.queued.Ordered()),
		Running:      toMap(q.running.Ordered()),
		Finished:     toMap(finishedTasks),
	}
}

func copyCounts(m map[string]int) map[string]int {
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// CheckInvariants validates the structural invariants from spec.md §3/§8.
// It is called from tests only; the scheduler does not call it, so the
// materialised counters are not checked at run time.
func (q *TaskQueue) CheckInvariants() error {
	seen := make(map[int32]string, q.queued.Len()+q.running.Len()+q.finished.Len())
	check := func(collection string, tasks []*wtask.Task) error {
		for _, t := range tasks {
			if prev, ok := seen[t.TaskID]; ok {
				return fmt.Errorf("task %d present in both %s and %s", t.TaskID, prev, collection)
			}
			seen[t.TaskID] = collection
		}
		return nil
	}
	if err := check("queued", q.queued.Ordered()); err != nil {
		return err
	}
	if err := check("running", q.running.Ordered()); err != nil {
		return err
	}
	for _, id := range q.finished.Keys() {
		if prev, ok := seen[id]; ok {
			return fmt.Errorf("task %d present in both %s and finished", id, prev)
		}
	}

	if q.running.Len() > q.cfg.Workers {
		return fmt.Errorf("running count %d exceeds worker cap %d", q.running.Len(), q.cfg.Workers)
	}

	counted := make(map[string]int)
	for _, t := range q.queued.Ordered() {
		counted[t.WebhookName]++
	}
	for name, want := range counted {
		if q.queuedCount[name] != want {
			return fmt.Errorf("queued_count[%s] = %d, want %d", name, q.queuedCount[name], want)
		}
	}
	for name, have := range q.queuedCount {
		if have != counted[name] {
			return fmt.Errorf("queued_count[%s] = %d, want %d", name, have, counted[name])
		}
	}

	runningCounted := make(map[string]int)
	for _, t := range q.running.Ordered() {
		runningCounted[t.WebhookName]++
	}
	for name, want := range runningCounted {
		if q.runningCount[name] != want {
			return fmt.Errorf("running_count[%s] = %d, want %d", name, q.runningCount[name], want)
		}
	}
	for name, have := range q.runningCount {
		if have != runningCounted[name] {
			return fmt.Errorf("running_count[%s] = %d, want %d", name, have, runningCounted[name])
		}
	}

	return nil
}

// MaxID exposes the monotone id counter, mostly for tests and metrics.
func (q *TaskQueue) MaxID() int32 { return q.maxID }

// QueuedLen and RunningLen are metrics/test conveniences.
func (q *TaskQueue) QueuedLen() int  { return q.queued.Len() }
func (q *TaskQueue) RunningLen() int { return q.running.Len() }
