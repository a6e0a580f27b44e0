package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/yanivzohar1971-cmd/Rent-a-Car-sub007/internal/config"
	"github.com/yanivzohar1971-cmd/Rent-a-Car-sub007/internal/lock"
	"github.com/yanivzohar1971-cmd/Rent-a-Car-sub007/internal/logging"
	"github.com/yanivzohar1971-cmd/Rent-a-Car-sub007/internal/remote"
	"github.com/yanivzohar1971-cmd/Rent-a-Car-sub007/internal/store"
	"github.com/yanivzohar1971-cmd/Rent-a-Car-sub007/internal/tenant"
)

// Version is set at build time via ldflags: -ldflags "-X main.Version=1.0.0"
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:          "rentsync",
	Short:        "rentsync - local-first sync for rental business records",
	Long:         "Serves the operator API and background workers by default. Subcommands run one sync operation and exit.",
	SilenceUsage: true,
	RunE:         runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(restoreCmd)
	rootCmd.AddCommand(reconcileCmd)
	rootCmd.AddCommand(outboxCmd)
}

// app holds the components shared by every command.
type app struct {
	cfg     *config.Config
	store   *store.SQLiteStore
	remote  remote.Store
	closers []io.Closer
}

// openApp loads configuration, installs the logger and opens the local and
// remote stores. Logs go to logOut unless a log file is configured.
func openApp(logOut io.Writer) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg}

	var logger *slog.Logger
	if cfg.Log.File != "" {
		var closer io.Closer
		logger, closer = logging.New(cfg.Log)
		a.closers = append(a.closers, closer)
	} else {
		logger = logging.NewWithWriter(logOut, cfg.Log.Level, cfg.Log.Format)
	}
	slog.SetDefault(logger)

	db, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.store = db
	a.closers = append(a.closers, db)

	rs, closer, err := remote.Open(cfg.Remote)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("open remote store: %w", err)
	}
	a.remote = rs
	a.closers = append(a.closers, closer)

	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			slog.Error("close failed", "error", err)
		}
	}
	a.closers = nil
}

// locker returns the restore lock: Redis-backed when lock.redis_addr is
// set, in-process otherwise.
func (a *app) locker() lock.Locker {
	if a.cfg.Lock.RedisAddr == "" {
		return lock.NewLocal()
	}
	client := redis.NewClient(&redis.Options{
		Addr:     a.cfg.Lock.RedisAddr,
		Password: a.cfg.Lock.RedisPassword,
		DB:       a.cfg.Lock.RedisDB,
	})
	a.closers = append(a.closers, client)
	slog.Info("redis lock enabled", "addr", a.cfg.Lock.RedisAddr)
	return lock.NewRedis(client, time.Duration(a.cfg.Lock.TTL))
}

// resolveTenant returns the --tenant flag value, falling back to the
// configured default tenant.
func (a *app) resolveTenant(flag string) (string, error) {
	id := flag
	if id == "" {
		id = a.cfg.Tenant.Default
	}
	if id == "" {
		return "", fmt.Errorf("--tenant is required (or set tenant.default / RENTSYNC_TENANT)")
	}
	if err := tenant.Validate(id); err != nil {
		return "", err
	}
	return id, nil
}

// printJSON marshals v to JSON and writes to the given writer.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// newTabWriter returns a configured tabwriter for aligned columns.
func newTabWriter(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
}
