// Package httpapi is the C5 component: decodes and authenticates inbound
// requests, renders the matched webhook's command template, and submits
// the result to the scheduler. It also serves the queue snapshot and a
// live snapshot feed over a websocket.
package httpapi

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/vitaliisemenov/webhookd/internal/config"
	"github.com/vitaliisemenov/webhookd/internal/wauth"
	"github.com/vitaliisemenov/webhookd/internal/wscheduler"
	"github.com/vitaliisemenov/webhookd/internal/wtask"
	"github.com/vitaliisemenov/webhookd/internal/wtemplate"
)

// Server holds everything a handler needs: the webhook catalogue, the
// scheduler it submits tasks to, and the credential verifier.
type Server struct {
	cfg       *config.Config
	scheduler *wscheduler.Scheduler
	verifier  *wauth.Verifier
	logger    *slog.Logger
	hub       *snapshotHub
}

// New builds the HTTP front-end, always including the hub that backs the
// live snapshot feed.
func New(cfg *config.Config, scheduler *wscheduler.Scheduler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:       cfg,
		scheduler: scheduler,
		verifier:  wauth.New(cfg),
		logger:    logger,
		hub:       newSnapshotHub(),
	}
}

type requestPayload struct {
	Parameters map[string]string `json:"parameters"`
}

// postWebhook handles POST /{webhook_name}: body-driven parameters.
func (s *Server) postWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, r, http.StatusUnauthorized, "could not read request body")
		return
	}

	var payload requestPayload
	if len(body) > 0 {
		if err := json.Unmarshal(body, &payload); err != nil {
			writeError(w, r, http.StatusUnauthorized, "malformed request body")
			return
		}
	}

	s.dispatchWebhook(w, r, body, payload.Parameters)
}

// getWebhook handles GET /{webhook_name}: no body, parameters default to
// empty — for webhooks with no placeholders.
func (s *Server) getWebhook(w http.ResponseWriter, r *http.Request) {
	s.dispatchWebhook(w, r, nil, nil)
}

func (s *Server) dispatchWebhook(w http.ResponseWriter, r *http.Request, body []byte, params map[string]string) {
	if err := s.verifier.Verify(r, body); err != nil {
		s.logger.Warn("authentication failed", "error", err, "request_id", requestIDFromContext(r.Context()))
		writeError(w, r, http.StatusUnauthorized, "authentication failed")
		return
	}

	name := mux.Vars(r)["webhook_name"]
	wh, ok := s.cfg.WebhookByName(name)
	if !ok {
		writeError(w, r, http.StatusBadRequest, "unknown webhook: "+name)
		return
	}

	command, err := wtemplate.Render(wh.Command, params)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	s.scheduler.Submit(r.Context(), wtask.NewTask{
		WebhookName: wh.Name,
		Command:     command,
		Cwd:         wh.Cwd,
		AddedAt:     time.Now(),
	})

	w.WriteHeader(http.StatusOK)
}

// getQueue handles GET /: returns the current snapshot as JSON.
func (s *Server) getQueue(w http.ResponseWriter, r *http.Request) {
	if err := s.verifier.Verify(r, nil); err != nil {
		writeError(w, r, http.StatusUnauthorized, "authentication failed")
		return
	}

	snap, err := s.scheduler.GetQueue(r.Context())
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "scheduler unreachable")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(snap); err != nil {
		s.logger.Error("failed to encode snapshot", "error", err)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error":      message,
		"request_id": requestIDFromContext(r.Context()),
	})
}
