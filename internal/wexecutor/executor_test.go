package wexecutor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitaliisemenov/webhookd/internal/wtask"
)

func TestPool_RunsCommandAndReportsExitCode(t *testing.T) {
	work := make(chan wtask.StartTask, 1)
	reply := make(chan wtask.TaskCompleted, 1)
	p := New(1, work, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	work <- wtask.StartTask{TaskID: 1, WebhookName: "A", Command: "echo hello", ReplyTo: reply}

	select {
	case completed := <-reply:
		assert.Equal(t, int32(1), completed.TaskID)
		assert.Equal(t, int32(0), completed.ExitCode)
		assert.Equal(t, "hello\n", completed.Stdout)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for completion")
	}
}

func TestPool_NonZeroExitIsReported(t *testing.T) {
	work := make(chan wtask.StartTask, 1)
	reply := make(chan wtask.TaskCompleted, 1)
	p := New(1, work, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	work <- wtask.StartTask{TaskID: 2, WebhookName: "A", Command: "exit 7", ReplyTo: reply}

	select {
	case completed := <-reply:
		assert.Equal(t, int32(7), completed.ExitCode)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for completion")
	}
}

func TestPool_SpawnFailureStillRepliesWithSyntheticCompletion(t *testing.T) {
	work := make(chan wtask.StartTask, 1)
	reply := make(chan wtask.TaskCompleted, 1)
	p := New(1, work, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	work <- wtask.StartTask{TaskID: 3, WebhookName: "A", Command: "echo broken", Cwd: "/nonexistent-path-for-test", ReplyTo: reply}

	select {
	case completed := <-reply:
		assert.Equal(t, int32(-1), completed.ExitCode)
		assert.NotEmpty(t, completed.Stderr)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for synthetic completion")
	}
}

func TestPool_ZeroWorkersRunReturnsImmediately(t *testing.T) {
	p := New(0, make(chan wtask.StartTask), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run with zero workers should return immediately")
	}
	require.True(t, true)
}
