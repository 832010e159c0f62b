// Command nuggetd runs the nugget counter server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"nuggetcore/internal/config"
	"nuggetcore/internal/counter"
	"nuggetcore/internal/export"
	"nuggetcore/internal/logger"
	"nuggetcore/internal/store"
	"nuggetcore/internal/web"
	"nuggetcore/pkg/domain"
)

func main() {
	_ = godotenv.Load()
	cfg := config.FromEnv()

	log, err := logger.New("nuggetd", cfg.Env)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Error("fatal", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backend, err := store.OpenBackend(cfg.Storage)
	if err != nil {
		return err
	}
	defer func() { _ = backend.Close() }()

	teamDriver, err := backend.Driver("teams")
	if err != nil {
		return err
	}
	userDriver, err := backend.Driver("users")
	if err != nil {
		return err
	}
	teams, err := store.New[domain.Team](ctx, "team", teamDriver, log)
	if err != nil {
		return err
	}
	users, err := store.New[domain.User](ctx, "user", userDriver, log)
	if err != nil {
		return err
	}
	log.Info("stores loaded", zap.Int("teams", teams.Len()), zap.Int("users", users.Len()))

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())

	svc, err := counter.NewService(teams, users, counter.NewPrometheusRecorder(registry), log)
	if err != nil {
		return err
	}
	defer svc.Close()

	blobs, err := export.Open(ctx, cfg.Snapshot)
	if err != nil {
		return err
	}
	exporter := counter.NewSnapshotExporter(teams, users, blobs, log)

	server := web.NewServer(svc, teams, users, exporter, registry, log)
	defer server.Close()

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server starting", zap.String("addr", cfg.HTTPAddr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful shutdown failed", zap.Error(err))
		}
		log.Info("server stopped")
		return nil
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
