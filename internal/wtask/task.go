// Package wtask defines the task record and the messages exchanged between
// the HTTP front-end, the scheduler and the executor pool.
package wtask

import "time"

// Task is one dispatched invocation of a webhook's command. Identity
// (TaskID, WebhookName, Command, Cwd, AddedAt) is fixed at admission time;
// the result fields are set exactly once, when the task finishes.
type Task struct {
	TaskID      int32      `json:"task_id"`
	WebhookName string     `json:"webhook_name"`
	Command     string     `json:"command"`
	Cwd         string     `json:"cwd"`
	AddedAt     time.Time  `json:"added_at"`
	ExitCode    *int32     `json:"exit_code"`
	Stdout      *string    `json:"stdout"`
	Stderr      *string    `json:"stderr"`
}

// NewTask is submitted by the HTTP front-end once a webhook's command
// template has been rendered. It carries no task id yet — the queue
// assigns one on admission.
type NewTask struct {
	WebhookName string
	Command     string
	Cwd         string
	AddedAt     time.Time
}

// StartTask is handed from the scheduler to the executor pool. It carries
// a plain value, not a shared reference: the executor replies by sending a
// TaskCompleted back down the channel it was given, never by holding a
// pointer to the scheduler.
type StartTask struct {
	TaskID      int32
	WebhookName string
	Command     string
	Cwd         string
	ReplyTo     chan<- TaskCompleted
}

// TaskCompleted reports the outcome of one StartTask. ExitCode is -1 for
// the synthetic completion the executor sends when the command itself
// could never be spawned.
type TaskCompleted struct {
	TaskID   int32
	ExitCode int32
	Stdout   string
	Stderr   string
}
