package main

import (
	"context"
	"log"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"montaj/internal/api"
	"montaj/internal/arabic"
	"montaj/internal/config"
	"montaj/internal/fonts"
	"montaj/internal/jobs"
	"montaj/internal/logging"
	"montaj/internal/media"
	"montaj/internal/pipeline"
	"montaj/internal/render"
	"montaj/internal/uploads"
	"montaj/internal/workspace"
)

const (
	queueSize       = 16
	sweepInterval   = time.Hour
	sweepMaxAge     = 24 * time.Hour
	shutdownTimeout = 30 * time.Second
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ws, err := workspace.New(logger, cfg.TempDir)
	if err != nil {
		logger.Fatal("prepare workspace", zap.Error(err))
	}

	fontReg, err := fonts.NewRegistry(logger, cfg.FontsDir)
	if err != nil {
		logger.Fatal("load fonts", zap.Error(err))
	}

	presets, err := config.LoadPresets(cfg.PresetsFile)
	if err != nil {
		logger.Fatal("load style presets", zap.Error(err))
	}

	shaper := arabic.NewShaper(logger, arabic.Options{})
	renderer := render.NewRenderer(logger, shaper, fontReg)
	prober := media.NewProber(logger, cfg.FFprobePath)
	compositor := media.NewCompositor(logger, cfg.FFmpegPath)
	registry := uploads.NewRegistry()

	pipe := pipeline.New(logger, registry, ws, renderer, prober, compositor, presets, cfg.RenderWorkers)
	manager := jobs.NewManager(logger, pipe, queueSize)
	go manager.Run(ctx)

	// Uploads and outputs go stale quickly; sweep them so TEMP_DIR does
	// not grow without bound.
	go func() {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				ws.Sweep(sweepMaxAge)
			}
		}
	}()

	// YTDLP_PATH="" disables URL fetching entirely.
	var fetcher *media.Fetcher
	if cfg.YtdlpPath != "" {
		fetcher = media.NewFetcher(logger, cfg.YtdlpPath)
	}

	handler := api.NewHandler(api.Deps{
		Log:            logger,
		Uploads:        registry,
		Workspace:      ws,
		Prober:         prober,
		Fetcher:        fetcher,
		Compositor:     compositor,
		Shaper:         shaper,
		Fonts:          fontReg,
		Jobs:           manager,
		Pipeline:       pipe,
		Presets:        presets,
		MaxUploadBytes: cfg.MaxUploadBytes(),
	})
	router := api.NewRouter(handler, api.RouterConfig{
		APIKey:             cfg.APIKey,
		CorsAllowedOrigins: cfg.CorsAllowedOrigins,
	})

	if cfg.APIKey == "" {
		logger.Warn("no API_KEY set, API is unprotected (dev mode)")
	}

	server := &http.Server{
		Addr:    net.JoinHostPort(cfg.Host, cfg.Port),
		Handler: router,
	}

	go func() {
		logger.Info("montajd listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("montajd exited")
}
