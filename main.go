package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/video-translate/backend/internal/api"
	"github.com/video-translate/backend/internal/auth"
	"github.com/video-translate/backend/internal/config"
	"github.com/video-translate/backend/internal/logger"
	"github.com/video-translate/backend/internal/media"
	"github.com/video-translate/backend/internal/pipeline"
	"github.com/video-translate/backend/internal/run"
	"github.com/video-translate/backend/internal/storage"
	"github.com/video-translate/backend/internal/transcribe"
	"github.com/video-translate/backend/internal/translate"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Invalid configuration: %v", err)
	}

	if err := os.MkdirAll(cfg.DataPath, 0o755); err != nil {
		logrus.Fatalf("Failed to create data directory: %v", err)
	}
	if err := logger.Setup(cfg.LogPath); err != nil {
		logrus.Fatalf("Failed to set up logging: %v", err)
	}
	log := logger.WithComponent("main")

	store, err := run.NewStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open run store: %v", err)
	}
	defer store.Close()

	uploads, err := storage.NewUploadStore(cfg.UploadPath)
	if err != nil {
		log.Fatalf("Failed to create upload store: %v", err)
	}

	// Pipeline components
	extractor := media.NewExtractor()
	transcriber := transcribe.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.WhisperModel)
	engines := translate.NewRegistry(cfg)
	pl := pipeline.New(extractor, transcriber, engines, cfg.TranslateConcurrency)

	handler := func(ctx context.Context, r *run.Run, onProgress pipeline.Progress) (*pipeline.Result, error) {
		return pl.Run(ctx, pipeline.Request{
			VideoPath: r.VideoPath,
			Languages: r.Languages,
			Engine:    r.Engine,
		}, onProgress)
	}
	cleanup := func(r *run.Run) {
		if err := uploads.Remove(r.VideoPath); err != nil {
			log.WithField("run", r.ID).WithError(err).Warn("failed to remove uploaded video")
		}
	}

	queue := run.NewQueue(store, handler, cleanup)
	defer queue.Stop()

	jwtService := auth.NewJWTService(cfg.JWTSecret)
	router := api.NewRouter(cfg, store, queue, uploads, engines, jwtService)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: router,
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("Shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	log.WithFields(logrus.Fields{
		"addr":    server.Addr,
		"engines": engines.Names(),
	}).Info("Starting server")

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Server failed: %v", err)
	}
}
