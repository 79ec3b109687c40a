// cmd/pass-server/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"walletpass/internal/api"
	"walletpass/internal/common/config"
	"walletpass/internal/common/logger"
	"walletpass/internal/common/observability"
	"walletpass/internal/pass"
	"walletpass/internal/registry"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2 // Exponential backoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()

	// Wrap zap logger with our logger interface
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting pass server...",
		zap.String("app", cfg.App.Name),
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	obs := observability.New("pass-server")
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Init issuance registry (optional) with retry ---
	var store *registry.Store
	if cfg.Registry.Enabled {
		err = retryWithBackoff(func() error {
			var err error
			store, err = registry.New(cfg.Registry)
			if err != nil {
				return err
			}
			// Test the connection with context
			return store.Ping(ctx)
		}, 15, 2*time.Second, zapLog, "PostgreSQL connection")

		if err != nil {
			zapLog.Fatal("postgres failed after retries", zap.Error(err))
		}
		defer store.Close()

		if err := store.EnsureSchema(ctx); err != nil {
			zapLog.Fatal("registry schema setup failed", zap.Error(err))
		}
		zapLog.Info("PostgreSQL issuance registry connected successfully")
	} else {
		zapLog.Info("Issuance registry disabled")
	}

	// --- Init pass generator ---
	// Template and required assets load at startup so a bad deployment fails
	// here, not on the first request.
	gen, err := pass.New(cfg.Pass, cfg.Credentials, log, obs)
	if err != nil {
		zapLog.Fatal("pass generator initialization failed", zap.Error(err))
	}
	zapLog.Info("Pass generator initialized",
		zap.String("assetsRoot", cfg.Pass.AssetsRoot),
		zap.String("workDir", cfg.Pass.WorkDir),
	)

	handler, err := api.NewHandler(gen, store, log)
	if err != nil {
		zapLog.Fatal("handler initialization failed", zap.Error(err))
	}

	mux := api.NewRouter(handler)
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      mux,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		zapLog.Info("HTTP server listening", zap.Int("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, draining requests...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error shutting down HTTP server", zap.Error(err))
	}

	zapLog.Info("Pass server stopped gracefully")
}
