package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/cheapcharge/cheapcharge/pkg/app"
	"github.com/cheapcharge/cheapcharge/pkg/charger"
	"github.com/cheapcharge/cheapcharge/pkg/log"
	"github.com/cheapcharge/cheapcharge/pkg/pricesource"
	"github.com/cheapcharge/cheapcharge/pkg/server"
	"github.com/cheapcharge/cheapcharge/pkg/storage"
	"github.com/cheapcharge/cheapcharge/pkg/vehicle"

	"github.com/levenlabs/go-lflag"
	"github.com/levenlabs/go-llog"
)

func main() {
	// init packages
	s := storage.Configured()
	p := pricesource.Configured()
	v := vehicle.Configured()
	c := charger.Configured()
	a := app.Configured(s, p, v, c)

	// init server
	srv := server.Configured(a, s)

	// parse flags
	lflag.Configure()

	var level slog.Level
	// lflag automatically sets llog's level, but we need to set the slog level
	switch llog.GetLevel() {
	case llog.DebugLevel:
		level = slog.LevelDebug
	case llog.InfoLevel:
		level = slog.LevelInfo
	case llog.WarnLevel:
		level = slog.LevelWarn
	case llog.ErrorLevel:
		level = slog.LevelError
	default:
		panic(fmt.Errorf("unknown log level: %s", llog.GetLevel().String()))
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
	slog.Debug("logger configured", slog.String("level", level.String()))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// If initialization inside lflag.Do failed, we wouldn't be here (panic).
	defer func() {
		if err := s.Close(); err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "failed to close storage", "error", err)
		}
	}()

	var wg sync.WaitGroup
	var engineErr, serverErr error

	wg.Add(1)
	go func() {
		defer wg.Done()
		// the engine only stops when the context is canceled
		engineErr = a.Run(ctx)
		cancel()
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		// Run blocks until the context is canceled or an error happens
		serverErr = srv.Run(ctx)
		cancel()
	}()

	wg.Wait()

	if engineErr != nil {
		log.Ctx(ctx).ErrorContext(ctx, "engine failed", "error", engineErr)
		os.Exit(1)
	}
	if serverErr != nil {
		log.Ctx(ctx).ErrorContext(ctx, "server failed", "error", serverErr)
		os.Exit(1)
	}
	log.Ctx(ctx).InfoContext(ctx, "exited cleanly")
}
