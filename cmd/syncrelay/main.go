package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/syncrelay/syncrelay/internal/api"
	"github.com/syncrelay/syncrelay/internal/lockfile"
	"github.com/syncrelay/syncrelay/internal/notify"
	"github.com/syncrelay/syncrelay/internal/queue"
	"github.com/syncrelay/syncrelay/internal/scheduler"
	"github.com/syncrelay/syncrelay/internal/store"
	"github.com/syncrelay/syncrelay/internal/util"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for SyncRelay state data
	DefaultStateDir = "/var/lib/syncrelay"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "syncrelay.db"
	// DefaultShutdownTimeout bounds graceful HTTP shutdown
	DefaultShutdownTimeout = 5 * time.Second
)

// Config holds environment configuration
type Config struct {
	StateDir     string
	DatabaseDSN  string
	APIAddr      string
	SyncInterval string
	Debug        bool
}

// Flags holds command line flag values
type Flags struct {
	stateDir     *string
	dbDSN        *string
	apiAddr      *string
	syncInterval *string
}

func main() {
	config := loadEnvironmentConfig()
	initializeLogger(config.Debug)
	flags := parseCommandLineFlags(config)

	if err := ensureDirectoriesExist(flags); err != nil {
		slog.Error("Failed to create required directories", "error", err)
		os.Exit(1)
	}

	lock, err := lockfile.AcquireLock(*flags.stateDir)
	if err != nil {
		slog.Error("Failed to acquire state directory lock", "error", err)
		os.Exit(1)
	}
	defer lock.Release()

	st, err := store.Open(*flags.dbDSN)
	if err != nil {
		slog.Error("Failed to open queue store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	hub := notify.NewHub()
	deliverer := queue.NewDeliverer(nil)

	// The scheduler closure is resolved lazily so it can reference the
	// processor it wakes up.
	var processor *queue.Processor
	sched := scheduler.NewScheduler(*flags.syncInterval, func(ctx context.Context) {
		processor.Drain(ctx)
	})
	processor = queue.NewProcessor(st, deliverer, sched, hub)

	server := api.NewServer(processor, st, hub, api.WithAddr(*flags.apiAddr))
	server.Start()

	// Activation drain: anything left over from a previous run is retried
	// immediately, before the first wake-up or client request.
	go processor.Drain(context.Background())

	slog.Info("SyncRelay running",
		"api_addr", *flags.apiAddr, "state_dir", *flags.stateDir, "sync_interval", *flags.syncInterval)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	slog.Info("Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}
	sched.Stop()
	slog.Info("SyncRelay exited")
}

// initializeLogger sets up structured logging.
func initializeLogger(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	}

	config := Config{
		StateDir:     os.Getenv("SYNCRELAY_STATE_DIR"),
		DatabaseDSN:  os.Getenv("DATABASE_URL"),
		APIAddr:      util.GetenvDefault("API_ADDR", api.DefaultAddr),
		SyncInterval: os.Getenv("SYNC_INTERVAL"),
		Debug:        util.ParseBoolEnv("SYNCRELAY_DEBUG", false),
	}

	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
	}

	// If no database URL is provided, default to SQLite in the state directory
	if config.DatabaseDSN == "" {
		config.DatabaseDSN = filepath.Join(config.StateDir, DefaultDBFileName)
	}

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		stateDir:     flag.String("state-dir", config.StateDir, "state directory for SyncRelay data (overrides $SYNCRELAY_STATE_DIR)"),
		dbDSN:        flag.String("db-dsn", config.DatabaseDSN, "queue store DSN: SQLite path, postgres:// or redis:// URL (overrides $DATABASE_URL)"),
		apiAddr:      flag.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
		syncInterval: flag.String("sync-interval", config.SyncInterval, "cron spec for background retry wake-ups (overrides $SYNC_INTERVAL)"),
	}

	flag.Parse()

	// Follow a changed state directory when the DSN was left at its default.
	if *flags.dbDSN == config.DatabaseDSN &&
		config.DatabaseDSN == filepath.Join(config.StateDir, DefaultDBFileName) &&
		*flags.stateDir != config.StateDir {
		*flags.dbDSN = filepath.Join(*flags.stateDir, DefaultDBFileName)
	}

	return flags
}

// ensureDirectoriesExist creates necessary directories for file-based storage
func ensureDirectoriesExist(flags Flags) error {
	if store.DetectDSNType(*flags.dbDSN) != "sqlite3" {
		return nil
	}
	dir := filepath.Dir(*flags.dbDSN)
	if err := os.MkdirAll(dir, 0755); err != nil {
		slog.Error("Failed to create state directory", "error", err, "state_dir", dir)
		return err
	}
	return nil
}
