package httpapi

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vitaliisemenov/webhookd/internal/wqueue"
)

// snapshotHub fans a queue snapshot out to every connected websocket
// client whenever the scheduler's state changes. There is no process
// output streaming here (see the non-goals) — only the same snapshot
// shape GET / already serves, pushed instead of polled.
type snapshotHub struct {
	mu      sync.Mutex
	clients map[chan wqueue.Snapshot]struct{}
}

func newSnapshotHub() *snapshotHub {
	return &snapshotHub{clients: make(map[chan wqueue.Snapshot]struct{})}
}

func (h *snapshotHub) subscribe() chan wqueue.Snapshot {
	ch := make(chan wqueue.Snapshot, 1)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *snapshotHub) unsubscribe(ch chan wqueue.Snapshot) {
	h.mu.Lock()
	delete(h.clients, ch)
	h.mu.Unlock()
	close(ch)
}

func (h *snapshotHub) broadcast(snap wqueue.Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.clients {
		select {
		case ch <- snap:
		default:
			// Slow client: drop the stale snapshot rather than block the
			// poll loop; the next tick will carry fresher state anyway.
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
}

// watchQueue polls the scheduler and broadcasts whenever max_id or the
// running/queued counts change, until ctx is cancelled.
func (s *Server) watchQueue(ctx context.Context) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	var lastMaxID int32 = -1
	var lastQueued, lastRunning int

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap, err := s.scheduler.GetQueue(ctx)
			if err != nil {
				continue
			}
			queued, running := len(snap.Queued), len(snap.Running)
			if snap.MaxID == lastMaxID && queued == lastQueued && running == lastRunning {
				continue
			}
			lastMaxID, lastQueued, lastRunning = snap.MaxID, queued, running
			s.hub.broadcast(snap)
		}
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// liveQueue handles GET /ws: authenticates once at connection time, sends
// the current snapshot, then pushes each snapshot that watchQueue
// broadcasts when its poll sees max_id or the queued/running counts change.
func (s *Server) liveQueue(w http.ResponseWriter, r *http.Request) {
	if err := s.verifier.Verify(r, nil); err != nil {
		writeError(w, r, http.StatusUnauthorized, "authentication failed")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ch := s.hub.subscribe()
	defer s.hub.unsubscribe(ch)

	if snap, err := s.scheduler.GetQueue(r.Context()); err == nil {
		_ = conn.WriteJSON(snap)
	}

	for snap := range ch {
		if err := conn.WriteJSON(snap); err != nil {
			return
		}
	}
}
