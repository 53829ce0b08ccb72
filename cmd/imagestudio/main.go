// Command imagestudio serves a single image studio session over HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/mhpenta/imagestudio"
	"github.com/mhpenta/imagestudio/internal/config"
	"github.com/mhpenta/imagestudio/internal/metrics"
	"github.com/mhpenta/imagestudio/internal/server"
	"github.com/mhpenta/imagestudio/provider/gemini"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.NewLoader().WithConfigPath(configPath).Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)

	if cfg.Gemini.APIKey == "" {
		logger.Warn("no API key configured; generation calls will fail")
	}

	service := gemini.New(cfg.Gemini.APIKey,
		gemini.WithLogger(logger),
		gemini.WithSafetySettings(cfg.Gemini.Safety()),
	)

	genCfg := imagestudio.DefaultGenerateConfig()
	editCfg := imagestudio.DefaultEditConfig()
	for _, c := range []*imagestudio.GenerateConfig{genCfg, editCfg} {
		c.WaitOnRateLimit = cfg.Gemini.WaitOnRateLimit
		c.MaxWaitDuration = cfg.Gemini.MaxWait
	}

	client := imagestudio.NewClient(service,
		imagestudio.WithLogger(logger),
		imagestudio.WithGenerateConfig(genCfg),
		imagestudio.WithEditConfig(editCfg),
	)
	defer client.Close()

	collector := metrics.NewCollector("imagestudio")

	sessionOpts := []imagestudio.SessionOption{
		imagestudio.WithSessionLogger(logger),
		imagestudio.WithObserver(collector),
	}
	if cfg.Session.DualImageCompose {
		sessionOpts = append(sessionOpts, imagestudio.WithDualImageCompose())
	}
	session := imagestudio.NewSession(client, sessionOpts...)

	storage, err := imagestudio.NewFileStorage(cfg.Storage.DownloadDir)
	if err != nil {
		return err
	}

	handler := server.New(session,
		server.WithLogger(logger),
		server.WithMetrics(collector),
		server.WithStorage(storage),
		server.WithMaxUploadBytes(cfg.Server.MaxUploadBytes),
	).Handler()

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.Server.Addr, "download_dir", storage.BasePath())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	level, _ := cfg.SlogLevel()
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
