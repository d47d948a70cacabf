package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/vitaliisemenov/webhookd/internal/config"
	"github.com/vitaliisemenov/webhookd/internal/httpapi"
	"github.com/vitaliisemenov/webhookd/internal/tlsutil"
	"github.com/vitaliisemenov/webhookd/internal/wexecutor"
	"github.com/vitaliisemenov/webhookd/internal/wscheduler"
	"github.com/vitaliisemenov/webhookd/internal/wtask"
	"github.com/vitaliisemenov/webhookd/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the webhook dispatcher HTTP server",
	RunE:  runServe,
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	instanceID := uuid.New().String()
	log := logger.NewFromAppConfig(cfg.Log).With("instance_id", instanceID)
	log.Info("config loaded",
		"domain", cfg.Domain,
		"port", cfg.Port,
		"workers", cfg.Workers,
		"webhooks", len(cfg.Webhooks),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dispatch := make(chan wtask.StartTask, 64)
	scheduler := wscheduler.New(cfg, dispatch, log)
	pool := wexecutor.New(cfg.Workers, dispatch, log)

	router, srv := httpapi.NewRouter(cfg, scheduler, log)

	var wg sync.WaitGroup
	wg.Add(3)
	go func() { defer wg.Done(); scheduler.Run(ctx) }()
	go func() { defer wg.Done(); pool.Run(ctx) }()
	go func() { defer wg.Done(); srv.Watch(ctx) }()

	httpServer := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Domain, cfg.Port),
		Handler: router,
	}

	serveErr := make(chan error, 1)
	go func() {
		if cfg.SSLEnabled() {
			tlsConfig, err := tlsutil.LoadConfig(cfg)
			if err != nil {
				serveErr <- fmt.Errorf("loading TLS config: %w", err)
				return
			}
			httpServer.TLSConfig = tlsConfig
			log.Info("listening", "addr", httpServer.Addr, "tls", true)
			serveErr <- httpServer.ListenAndServeTLS("", "")
			return
		}
		log.Info("listening", "addr", httpServer.Addr, "tls", false)
		serveErr <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			stop()
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("http server shutdown error", "error", err)
	}

	stop()
	wg.Wait()
	log.Info("webhookd stopped")
	return nil
}
