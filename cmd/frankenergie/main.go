package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/frankenergie/frankenergie/pkg/cache"
	"github.com/frankenergie/frankenergie/pkg/coordinator"
	"github.com/frankenergie/frankenergie/pkg/credentials"
	"github.com/frankenergie/frankenergie/pkg/frank"
	"github.com/frankenergie/frankenergie/pkg/log"
	"github.com/frankenergie/frankenergie/pkg/server"
	"github.com/frankenergie/frankenergie/pkg/storage"
	"github.com/frankenergie/frankenergie/pkg/types"

	"github.com/levenlabs/go-lflag"
	"github.com/levenlabs/go-llog"
)

func main() {
	// init packages
	fc := frank.Configured()
	s := storage.Configured()
	snaps := cache.Configured()
	cipher := credentials.Configured()
	entries := coordinator.Configured(s, snaps, cipher, func(auth types.Authentication) coordinator.Client {
		return fc.New(auth)
	})

	// init server
	srv := server.Configured(entries, s, snaps, cipher, func() server.LoginClient {
		return fc.New(types.Authentication{})
	})

	// parse flags
	lflag.Configure()

	// lflag automatically sets llog's level, but we need to set the slog level
	level, err := log.LevelFromLLog(llog.GetLevel())
	if err != nil {
		panic(err)
	}
	log.SetDefaultLogLevel(level)
	slog.SetDefault(log.Ctx(context.Background()))
	slog.Debug("logger configured", slog.String("level", level.String()))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// If initialization inside lflag.Do failed, we wouldn't be here (panic).
	defer func() {
		if err := s.Close(); err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "failed to close storage", slog.Any("error", err))
		}
		if err := snaps.Close(); err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "failed to close snapshot cache", slog.Any("error", err))
		}
	}()

	if err := entries.Bootstrap(ctx); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to load entries", slog.Any("error", err))
		os.Exit(1)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		entries.Run(ctx)
	}()

	// Run will block until context is canceled or error happens
	if err := srv.Run(ctx); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "server failed", slog.Any("error", err))
		cancel()
		wg.Wait()
		os.Exit(1)
	}
	wg.Wait()
	log.Ctx(ctx).InfoContext(ctx, "server exited cleanly")
}
