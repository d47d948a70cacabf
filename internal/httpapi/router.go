package httpapi

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/vitaliisemenov/webhookd/internal/config"
	"github.com/vitaliisemenov/webhookd/internal/wscheduler"
	applog "github.com/vitaliisemenov/webhookd/pkg/logger"
)

// NewRouter builds the full HTTP surface: the webhook endpoints, the
// queue snapshot, the live feed, metrics and docs. The middleware stack
// is applied in order: request id + logging, metrics, recovery, then a
// per-route rate limit.
//
// Run the returned Server's background watcher (via Server.Watch) in its
// own goroutine so the live feed has something to push.
func NewRouter(cfg *config.Config, scheduler *wscheduler.Scheduler, logger *slog.Logger) (*mux.Router, *Server) {
	srv := New(cfg, scheduler, logger)

	router := mux.NewRouter()
	router.Use(applog.LoggingMiddleware(srv.logger))
	router.Use(metricsMiddleware)
	router.Use(recoverMiddleware(srv.logger))

	// Registered before the catch-all /{webhook_name} routes so they take
	// match priority (gorilla/mux matches routes in registration order).
	router.Handle("/metrics", promhttp.Handler())
	router.PathPrefix("/docs").Handler(httpSwagger.WrapHandler)

	limited := router.NewRoute().Subrouter()
	limited.Use(rateLimitMiddleware(cfg.RateLimitPerMinute, cfg.RateLimitBurst))

	limited.HandleFunc("/", srv.getQueue).Methods(http.MethodGet)
	limited.HandleFunc("/ws", srv.liveQueue).Methods(http.MethodGet)
	limited.HandleFunc("/{webhook_name}", srv.postWebhook).Methods(http.MethodPost)
	limited.HandleFunc("/{webhook_name}", srv.getWebhook).Methods(http.MethodGet)

	return router, srv
}

// Watch starts the background poll that feeds the live snapshot hub.
// Blocks until ctx is cancelled; run it in its own goroutine.
func (s *Server) Watch(ctx context.Context) {
	s.watchQueue(ctx)
}
