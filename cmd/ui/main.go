package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"option-screener-go/internal/config"
	"option-screener-go/internal/database"
	"option-screener-go/internal/evaluator"
	"option-screener-go/internal/logger"
	"option-screener-go/internal/persistence"
	"option-screener-go/internal/session"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// Load configuration
	cfg, err := config.LoadConfig("./configs")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.NewLogger(cfg.Logger.Level, cfg.Logger.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err = run(ctx, &cfg, log)
	stop()
	if err != nil {
		log.Error("Screener UI exited with error", zap.Error(err))
		_ = log.Sync()
		os.Exit(1)
	}
	_ = log.Sync()
}

// run wires the application and serves until ctx is cancelled. Pending writes are
// flushed only after every in-flight request has finished.
func run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	// Connect to the database
	db, err := database.NewDatabase(cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}

	// Restore the last session and keep it saved
	lifecycle := persistence.New(database.NewSlotStore(db), log)
	snap := lifecycle.Load(ctx)
	if err := lifecycle.Start(cfg.Persistence.FlushSchedule); err != nil {
		return fmt.Errorf("schedule persistence flush: %w", err)
	}
	defer lifecycle.Stop()

	client := evaluator.NewRestClient(&cfg.Evaluator, log)
	sess := session.Restore(log, client, lifecycle, snap)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}

	server := &http.Server{
		Handler:           NewAPIHandler(log, sess).Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	log.Info("Starting web server", zap.String("address", addr), zap.String("evaluator", cfg.Evaluator.BaseURL))
	return serve(ctx, server, ln, log)
}

// serve runs server on ln until ctx is cancelled, then shuts it down and waits for
// active requests to complete.
func serve(ctx context.Context, server *http.Server, ln net.Listener, log *zap.Logger) error {
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.Serve(ln)
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("web server failed: %w", err)
	case <-ctx.Done():
	}

	log.Info("Shutdown signal received, gracefully shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("web server shutdown: %w", err)
	}
	<-serveErr
	log.Info("Web server stopped")
	return nil
}
