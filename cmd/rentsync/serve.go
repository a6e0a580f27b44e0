package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/yanivzohar1971-cmd/Rent-a-Car-sub007/internal/api"
	"github.com/yanivzohar1971-cmd/Rent-a-Car-sub007/internal/outbox"
	"github.com/yanivzohar1971-cmd/Rent-a-Car-sub007/internal/reconcile"
	"github.com/yanivzohar1971-cmd/Rent-a-Car-sub007/internal/repository"
	"github.com/yanivzohar1971-cmd/Rent-a-Car-sub007/internal/restore"
	"github.com/yanivzohar1971-cmd/Rent-a-Car-sub007/internal/worker"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the operator API and background workers",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	// 1. Signal handling
	ctx, cancel := signal.NotifyContext(cmd.Context(),
		syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	// 2. Configuration, logger, local and remote stores
	a, err := openApp(os.Stdout)
	if err != nil {
		return err
	}
	defer a.Close()
	cfg := a.cfg
	slog.Info("configuration loaded",
		"remote_driver", cfg.Remote.Driver,
		"db_path", cfg.Database.Path,
		"log_level", cfg.Log.Level,
	)

	// 3. Sync components
	marker := outbox.NewMarker(a.store, cfg.Outbox.MarkerBuffer)
	drainer := outbox.NewDrainer(a.store, a.remote, cfg.Outbox.DrainBatch)
	engine := restore.NewEngine(a.store, a.remote, a.locker(), cfg.Restore.Concurrency)
	auditor := reconcile.NewAuditor(a.store, a.remote, cfg.Restore.Concurrency)
	records := repository.New(a.store, marker)
	slog.Info("sync components initialized")

	// 4. HTTP router
	handler := api.NewHandler(api.Deps{
		Store:          a.store,
		Backlog:        a.store,
		Restorer:       engine,
		Auditor:        auditor,
		Drainer:        drainer,
		Records:        records,
		APIKey:         cfg.Auth.APIKey,
		Version:        Version,
		RemoteDriver:   cfg.Remote.Driver,
		MetricsEnabled: cfg.Metrics.Enabled,
	})
	router := api.NewRouter(handler)
	slog.Info("router initialized")

	// 5. Configure HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout),
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout),
	}

	// 6. Background workers
	var wg sync.WaitGroup
	startWorker(ctx, &wg, "push", worker.NewPushWorker(drainer, time.Duration(cfg.Outbox.DrainInterval)).Run)
	if len(cfg.Reconcile.Tenants) > 0 {
		coordinator := worker.NewReconcileCoordinator(auditor, cfg.Reconcile.Tenants, time.Duration(cfg.Reconcile.Interval))
		startWorker(ctx, &wg, "reconcile", coordinator.Run)
	} else {
		slog.Info("reconcile coordinator disabled", "reason", "no tenants configured")
	}

	// 7. Start HTTP server in goroutine
	go func() {
		slog.Info("server starting", "address", addr, "version", Version)
		// ErrServerClosed is the expected error when Shutdown() is called gracefully.
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			cancel()
		}
	}()

	// 8. Block until signal received
	<-ctx.Done()
	slog.Info("shutdown initiated")

	// 9. Graceful shutdown sequence
	shutdownCtx, shutdownCancel := context.WithTimeout(
		context.Background(),
		time.Duration(cfg.Server.ShutdownTimeout))
	defer shutdownCancel()

	// 9a. Stop HTTP server (drains in-flight requests)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	// 9b. Wait for workers to complete
	wg.Wait()

	// 9c. Flush pending dirty marks before the store closes
	if err := marker.Close(); err != nil {
		slog.Error("marker close error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}

// startWorker launches a background worker goroutine that respects context cancellation.
// Workers are tracked via WaitGroup for graceful shutdown.
func startWorker(ctx context.Context, wg *sync.WaitGroup, name string, fn func(ctx context.Context)) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		slog.Info("worker started", "worker", name)
		fn(ctx)
		slog.Info("worker stopped", "worker", name)
	}()
}
