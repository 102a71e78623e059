package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/obiente/hnsep/internal/config"
	"github.com/obiente/hnsep/internal/engine"
	serverhttp "github.com/obiente/hnsep/internal/http"
	"github.com/obiente/hnsep/internal/pipeline"
	"github.com/obiente/hnsep/internal/remote"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	lvl := zerolog.InfoLevel
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		if l, err := zerolog.ParseLevel(v); err == nil {
			lvl = l
		}
	}
	log.Logger = log.Level(lvl)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}
	timeout := time.Duration(cfg.InferenceTimeoutSec) * time.Second

	var factory engine.Factory
	if cfg.RemoteEngineURL != "" {
		factory = remote.Factory(cfg.RemoteEngineURL, timeout)
		log.Info().Str("remote", cfg.RemoteEngineURL).Msg("using remote engine")
	} else {
		models, err := engine.Discover(cfg.WorkDir)
		if err != nil {
			log.Fatal().Err(err).Str("work_dir", cfg.WorkDir).Msg("no models to serve")
		}
		if cfg.DefaultModel == "" {
			cfg.DefaultModel = models[0]
		}
		log.Info().Strs("models", models).Str("default", cfg.DefaultModel).Msg("models discovered")
		factory = engine.LocalFactory(cfg.WorkDir, engine.Options{LibraryPath: cfg.ORTLibraryPath})
	}
	cache := engine.NewCache(factory)
	runner := pipeline.New(cache, pipeline.Options{
		ModelRate:     cfg.SampleRate,
		ChunkSeconds:  cfg.ChunkSeconds,
		BatchSize:     cfg.BatchSize,
		MaxConcurrent: cfg.MaxConcurrent,
		Quality:       cfg.Quality(),
		Timeout:       timeout,
	})

	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      serverhttp.NewRouter(cfg, runner, cache),
		ReadTimeout:  60 * time.Second,
		WriteTimeout: timeout + 30*time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("shutdown")
		}
	}()

	log.Info().Str("addr", cfg.Addr).Msg("hnsep server starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("server failed")
	}
	<-drained
	if err := cache.Close(); err != nil {
		log.Warn().Err(err).Msg("close engines")
	}
	log.Info().Msg("hnsep server stopped")
}
