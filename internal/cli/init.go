// Package cli holds the start-up and shutdown steps shared by cmd/paybot and
// cmd/paybot-worker.
package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"paybot/internal/backend"
	"paybot/internal/config"
	applog "paybot/internal/log"
)

// ShutdownTimeout bounds the cleanup run after a shutdown signal.
const ShutdownTimeout = 15 * time.Second

// exit is swapped in tests.
var exit = os.Exit

// LoadEnvFile loads .env for local development. A missing file is fine.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// SetupLogger builds the application logger from LOG_LEVEL and LOG_FORMAT
// and installs it as the slog default.
func SetupLogger(cfg *config.Config) *applog.Logger {
	lc := applog.DefaultConfig()
	lc.Level = applog.ParseLevel(cfg.LogLevel)
	lc.Format = cfg.LogFormat
	logger := applog.New(lc)
	applog.SetDefault(logger)
	return logger
}

// MustValidate runs every check and exits the process on the first failure.
func MustValidate(logger *applog.Logger, checks ...func() error) {
	for _, check := range checks {
		if err := check(); err != nil {
			logger.Error("Configuration validation failed", applog.FieldError, err)
			exit(1)
			return
		}
	}
}

// InitBackend opens the configured transaction store, exiting on failure.
func InitBackend(ctx context.Context, logger *applog.Logger, cfg *config.Config) (backend.Factory, backend.Config, *backend.BackendResult) {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", applog.FieldError, err)
		exit(1)
		return nil, backend.Config{}, nil
	}
	factory := backend.NewFactory(logger)
	res, err := factory.CreateBackend(ctx, bcfg)
	if err != nil {
		logger.Error("Failed to initialize backend", applog.FieldError, err, applog.FieldBackend, bcfg.Type)
		exit(1)
		return nil, backend.Config{}, nil
	}
	return factory, bcfg, res
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext(logger *applog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

// Cleanup runs fns in order under ShutdownTimeout and logs every failure.
// It returns the joined errors.
func Cleanup(logger *applog.Logger, fns ...func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()

	var errs []error
	for _, fn := range fns {
		if fn == nil {
			continue
		}
		if err := fn(ctx); err != nil {
			logger.Error("Cleanup step failed", applog.FieldOperation, applog.OpShutdown, applog.FieldError, err)
			errs = append(errs, err)
		}
	}
	if ctx.Err() != nil {
		logger.Warn("Shutdown timeout reached")
	}
	return errors.Join(errs...)
}

// Close adapts a context-free close function for Cleanup.
func Close(fn func() error) func(context.Context) error {
	if fn == nil {
		return nil
	}
	return func(context.Context) error { return fn() }
}
