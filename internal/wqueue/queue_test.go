package wqueue

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitaliisemenov/webhookd/internal/config"
	"github.com/vitaliisemenov/webhookd/internal/wtask"
)

func newTask(name string) wtask.NewTask {
	return wtask.NewTask{WebhookName: name, Command: "echo hi", Cwd: ".", AddedAt: time.Now()}
}

func cfgWith(workers int, webhooks ...config.Webhook) *config.Config {
	return &config.Config{Workers: workers, Webhooks: webhooks}
}

func TestAdmit_SingleRejectsDuplicates(t *testing.T) {
	cfg := cfgWith(4, config.Webhook{Name: "A", Mode: config.ModeSingle})
	q := New(cfg)

	q.Admit(newTask("A"))
	q.Admit(newTask("A"))
	q.Admit(newTask("A"))

	assert.Equal(t, int32(1), q.MaxID())

	dispatched := q.SelectForDispatch()
	require.Len(t, dispatched, 1)
	assert.Equal(t, int32(1), dispatched[0].TaskID)
	assert.Equal(t, 0, q.queuedCount["A"])
	assert.Equal(t, 1, q.runningCount["A"])

	q.Admit(newTask("A"))
	q.Admit(newTask("A"))
	assert.Equal(t, int32(1), q.MaxID(), "duplicates while running must not issue new ids")

	require.NoError(t, q.CheckInvariants())
}

func TestAdmit_DeployCoalescesFollowUp(t *testing.T) {
	cfg := cfgWith(1, config.Webhook{Name: "A", Mode: config.ModeDeploy})
	q := New(cfg)

	q.Admit(newTask("A"))
	dispatched := q.SelectForDispatch()
	require.Len(t, dispatched, 1)
	assert.Equal(t, int32(1), dispatched[0].TaskID)

	q.Admit(newTask("A")) // id 2, queued
	q.Admit(newTask("A")) // dropped
	q.Admit(newTask("A")) // dropped
	assert.Equal(t, int32(2), q.MaxID())

	_, err := q.Finalise(wtask.TaskCompleted{TaskID: 1, ExitCode: 0})
	require.NoError(t, err)

	dispatched = q.SelectForDispatch()
	require.Len(t, dispatched, 1)
	assert.Equal(t, int32(2), dispatched[0].TaskID)
	assert.Equal(t, int32(2), q.MaxID(), "no id 3 should ever appear")

	require.NoError(t, q.CheckInvariants())
}

func TestParallelCapsAtParallelProcesses(t *testing.T) {
	cfg := cfgWith(8, config.Webhook{Name: "A", Mode: config.ModeParallel, ParallelProcesses: 2})
	q := New(cfg)

	for i := 0; i < 4; i++ {
		q.Admit(newTask("A"))
	}

	dispatched := q.SelectForDispatch()
	require.Len(t, dispatched, 2)
	assert.Equal(t, int32(1), dispatched[0].TaskID)
	assert.Equal(t, int32(2), dispatched[1].TaskID)

	_, err := q.Finalise(wtask.TaskCompleted{TaskID: 1})
	require.NoError(t, err)
	dispatched = q.SelectForDispatch()
	require.Len(t, dispatched, 1)
	assert.Equal(t, int32(3), dispatched[0].TaskID)

	_, err = q.Finalise(wtask.TaskCompleted{TaskID: 2})
	require.NoError(t, err)
	dispatched = q.SelectForDispatch()
	require.Len(t, dispatched, 1)
	assert.Equal(t, int32(4), dispatched[0].TaskID)

	require.NoError(t, q.CheckInvariants())
}

func TestGlobalCapTrumpsPerHook(t *testing.T) {
	cfg := cfgWith(3,
		config.Webhook{Name: "A", Mode: config.ModeParallel, ParallelProcesses: 8},
		config.Webhook{Name: "B", Mode: config.ModeParallel, ParallelProcesses: 8},
	)
	q := New(cfg)

	q.Admit(newTask("A"))
	q.Admit(newTask("A"))
	q.Admit(newTask("B"))
	q.Admit(newTask("B"))

	dispatched := q.SelectForDispatch()
	require.Len(t, dispatched, 3)
	assert.Equal(t, 1, q.QueuedLen(), "one task must remain queued under the global cap")
	assert.Equal(t, 3, q.RunningLen())

	require.NoError(t, q.CheckInvariants())
}

func TestHeadOfLineAvoidance(t *testing.T) {
	// Three workers: id 1 holds one slot, leaving two for B's tasks.
	cfg := cfgWith(3,
		config.Webhook{Name: "A", Mode: config.ModeDeploy},
		config.Webhook{Name: "B", Mode: config.ModeParallel, ParallelProcesses: 2},
	)
	q := New(cfg)

	q.Admit(newTask("A")) // id 1
	d := q.SelectForDispatch()
	require.Len(t, d, 1)
	assert.Equal(t, int32(1), d[0].TaskID)

	q.Admit(newTask("A")) // id 2, queued (deploy: running already occupied)
	q.Admit(newTask("B")) // id 3
	q.Admit(newTask("B")) // id 4

	d = q.SelectForDispatch()
	ids := []int32{d[0].TaskID}
	if len(d) > 1 {
		ids = append(ids, d[1].TaskID)
	}
	assert.ElementsMatch(t, []int32{3, 4}, ids, "B's tasks must dispatch while A's id 2 is still blocked")
	assert.Equal(t, 1, q.QueuedLen(), "id 2 remains queued until id 1 finishes")

	require.NoError(t, q.CheckInvariants())
}

func TestFinaliseUnknownTaskIsProtocolError(t *testing.T) {
	q := New(cfgWith(1))
	_, err := q.Finalise(wtask.TaskCompleted{TaskID: 99})
	assert.Error(t, err)
}

func TestWorkersZeroNeverDispatches(t *testing.T) {
	cfg := cfgWith(0, config.Webhook{Name: "A", Mode: config.ModeParallel, ParallelProcesses: 4})
	q := New(cfg)
	q.Admit(newTask("A"))
	assert.Empty(t, q.SelectForDispatch())
}

func TestSnapshotRoundTrips(t *testing.T) {
	cfg := cfgWith(2, config.Webhook{Name: "A", Mode: config.ModeDeploy})
	q := New(cfg)
	q.Admit(newTask("A"))
	q.SelectForDispatch()

	snap := q.Snapshot()
	assert.Equal(t, int32(1), snap.MaxID)
	assert.Len(t, snap.Running, 1)
	assert.Contains(t, snap.Running, "1")

	encoded, err := json.Marshal(snap)
	require.NoError(t, err)
	var decoded Snapshot
	require.NoError(t, json.Unmarshal(encoded, &decoded))
	reencoded, err := json.Marshal(decoded)
	require.NoError(t, err)
	assert.JSONEq(t, string(encoded), string(reencoded))
}
