/* Copyright (c) 2025 Brad Jones
 * SPDX-License-Identifier: BSD-3-Clause */
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bradnjones/gitlab-metrics-tracker-sub002/internal/adapters/gitlab"
	"github.com/bradnjones/gitlab-metrics-tracker-sub002/internal/cache"
	"github.com/bradnjones/gitlab-metrics-tracker-sub002/internal/config"
	httpx "github.com/bradnjones/gitlab-metrics-tracker-sub002/internal/http"
	"github.com/bradnjones/gitlab-metrics-tracker-sub002/internal/jobs"
	"github.com/bradnjones/gitlab-metrics-tracker-sub002/internal/logger"
	"github.com/bradnjones/gitlab-metrics-tracker-sub002/internal/repo"
	"github.com/bradnjones/gitlab-metrics-tracker-sub002/internal/services"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db := repo.MustOpen(ctx, cfg, log)
	defer db.Close()

	repository := repo.NewRepository(db, log)
	{
		ctx2, cancel2 := context.WithTimeout(ctx, 20*time.Second)
		if err := repository.EnsureSchema(ctx2); err != nil {
			log.Fatal().Err(err).Msg("schema setup failed")
		}
		cancel2()
	}

	gl := gitlab.NewClient(cfg, log)
	var provider services.IterationDataProvider = services.NewProvider(cfg, log, gl)
	if cfg.CacheDir != "" {
		fc, err := cache.NewFileCache(cfg.CacheDir)
		if err != nil {
			log.Fatal().Err(err).Str("dir", cfg.CacheDir).Msg("cache init failed")
		}
		defer fc.Close()
		provider = services.NewCachedProvider(provider, fc, cfg.CacheTTL, log)
	}

	svc := services.NewService(provider, repository, log)

	router := httpx.NewRouter(cfg, log, svc, repository)

	cr := jobs.NewCron(cfg, log, svc, repository)
	cr.Start()
	defer cr.Stop()

	errCh := make(chan error, 1)
	go func() { errCh <- router.Run(cfg.HTTPAddr) }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		log.Info().Msg("shutting down...")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("http server error")
		}
	}

	time.Sleep(500 * time.Millisecond)
}
